package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/ai-saas-backend/internal/domain"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
	"github.com/sandeepkv93/ai-saas-backend/internal/security"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func newTestJWTManager() *security.JWTManager {
	return security.NewJWTManager("ai-saas-backend", "ai-saas-client", testJWTSecret, 15*time.Minute, 7*24*time.Hour)
}

type inMemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.User

	// failCreate makes the next Create return the error once.
	failCreate error
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, byID: map[uint]*domain.User{}}
}

func (r *inMemoryUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) FindByGoogleID(_ context.Context, googleID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		err := r.failCreate
		r.failCreate = nil
		return err
	}
	for _, u := range r.byID {
		if u.Email == user.Email || (u.GoogleID != nil && user.GoogleID != nil && *u.GoogleID == *user.GoogleID) {
			return repository.ErrUserConflict
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.byID[cp.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	cp := *user
	r.byID[cp.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) Transaction(_ context.Context, fn func(repository.UserRepository) error) error {
	return fn(r)
}

func (r *inMemoryUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type inMemoryRefreshTokenRepo struct {
	mu      sync.Mutex
	nextID  uint
	rows    map[uint]*domain.RefreshToken
	lookups int
}

func newInMemoryRefreshTokenRepo() *inMemoryRefreshTokenRepo {
	return &inMemoryRefreshTokenRepo{nextID: 1, rows: map[uint]*domain.RefreshToken{}}
}

func (r *inMemoryRefreshTokenRepo) Create(_ context.Context, userID uint, token string, expiresAt time.Time) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := &domain.RefreshToken{ID: r.nextID, UserID: userID, Token: token, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	r.nextID++
	r.rows[row.ID] = row
	cp := *row
	return &cp, nil
}

func (r *inMemoryRefreshTokenRepo) FindByToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.sorted() {
		if row.Token == token {
			cp := *row
			return &cp, nil
		}
	}
	return nil, repository.ErrRefreshTokenNotFound
}

func (r *inMemoryRefreshTokenRepo) FindByTokenForUser(_ context.Context, userID uint, token string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, row := range r.sorted() {
		if row.Token == token && row.UserID == userID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, repository.ErrRefreshTokenNotFound
}

func (r *inMemoryRefreshTokenRepo) DeleteByToken(_ context.Context, token string) (int64, error) {
	return r.deleteWhere(func(row *domain.RefreshToken) bool { return row.Token == token }), nil
}

func (r *inMemoryRefreshTokenRepo) DeleteByID(_ context.Context, id uint) error {
	r.deleteWhere(func(row *domain.RefreshToken) bool { return row.ID == id })
	return nil
}

func (r *inMemoryRefreshTokenRepo) DeleteByUserID(_ context.Context, userID uint) (int64, error) {
	return r.deleteWhere(func(row *domain.RefreshToken) bool { return row.UserID == userID }), nil
}

func (r *inMemoryRefreshTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(row *domain.RefreshToken) bool { return row.ExpiresAt.Before(now) }), nil
}

func (r *inMemoryRefreshTokenRepo) CountByUserID(_ context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *inMemoryRefreshTokenRepo) deleteWhere(match func(*domain.RefreshToken) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, row := range r.rows {
		if match(row) {
			delete(r.rows, id)
			n++
		}
	}
	return n
}

func (r *inMemoryRefreshTokenRepo) expireAll(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		row.ExpiresAt = at
	}
}

// sorted must be called with mu held.
func (r *inMemoryRefreshTokenRepo) sorted() []*domain.RefreshToken {
	out := make([]*domain.RefreshToken, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type inMemoryCreationRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   []domain.Creation
}

func (r *inMemoryCreationRepo) Create(_ context.Context, c *domain.Creation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	r.rows = append(r.rows, *c)
	return nil
}

func (r *inMemoryCreationRepo) ListByUser(_ context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.Creation], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := repository.PageResult[domain.Creation]{Page: page.Page, PageSize: page.PageSize, Items: []domain.Creation{}}
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].UserID == userID {
			out.Items = append(out.Items, r.rows[i])
		}
	}
	out.Total = int64(len(out.Items))
	return out, nil
}

func (r *inMemoryCreationRepo) StatsByUser(_ context.Context, userID uint) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	tools := map[string]struct{}{}
	for _, c := range r.rows {
		if c.UserID == userID {
			total++
			tools[c.Tool] = struct{}{}
		}
	}
	return total, int64(len(tools)), nil
}

func (r *inMemoryCreationRepo) DeleteForUser(_ context.Context, userID, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.rows {
		if c.ID == id && c.UserID == userID {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrCreationNotFound
}

type stubGenerator struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
	temps   []float64
}

func (g *stubGenerator) Generate(_ context.Context, prompt string, temperature float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.temps = append(g.temps, temperature)
	return g.out, g.err
}
