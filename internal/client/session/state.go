package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// User mirrors the sanitized profile served by /auth/me.
type User struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfilePicture *string   `json:"profilePicture"`
	Provider       string    `json:"provider"`
	IsVerified     bool      `json:"isVerified"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Snapshot is the observable part of the session. Tokens are deliberately
// absent so a Persister can never write them.
type Snapshot struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}

type Persister interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// State is the session container shared by the Controller and Transport.
type State struct {
	mu        sync.RWMutex
	snap      Snapshot
	persister Persister
	subs      map[int]func(Snapshot)
	nextSub   int
}

// NewState restores the last persisted snapshot when p is non-nil.
func NewState(p Persister) *State {
	s := &State{persister: p, subs: map[int]func(Snapshot){}}
	if p != nil {
		snap, err := p.Load()
		if err != nil {
			slog.Warn("session state restore failed", "error", err.Error())
		} else {
			s.snap = snap
		}
	}
	return s
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snap)
}

func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.IsAuthenticated
}

func (s *State) SetUser(u User) {
	s.set(Snapshot{User: &u, IsAuthenticated: true})
}

// Reset drops the cached user and marks the session unauthenticated.
func (s *State) Reset() {
	s.set(Snapshot{})
}

// Subscribe registers fn for every change. The returned func unsubscribes.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *State) set(next Snapshot) {
	s.mu.Lock()
	s.snap = next
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Save(copySnapshot(next)); err != nil {
			slog.Warn("session state persist failed", "error", err.Error())
		}
	}
	for _, fn := range subs {
		fn(copySnapshot(next))
	}
}

func copySnapshot(in Snapshot) Snapshot {
	if in.User == nil {
		return in
	}
	u := *in.User
	return Snapshot{User: &u, IsAuthenticated: in.IsAuthenticated}
}

// FilePersister stores the snapshot as a 0600 JSON file.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Load() (Snapshot, error) {
	var snap Snapshot
	if err := readJSONFile(p.path, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("load session state: %w", err)
	}
	return snap, nil
}

func (p *FilePersister) Save(snap Snapshot) error {
	if err := writeJSONFile(p.path, snap); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}
