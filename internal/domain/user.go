package domain

import "time"

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User is the credential record shared by local and federated logins.
// Email is the join key between the two identities.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash   *string   `gorm:"column:password;size:255" json:"-"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	GoogleID       *string   `gorm:"size:255;uniqueIndex" json:"-"`
	ProfilePicture *string   `gorm:"type:text" json:"profile_picture,omitempty"`
	Provider       string    `gorm:"size:32;not null;default:local" json:"provider"`
	IsVerified     bool      `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsOAuthOnly reports whether the account can only sign in through its provider.
func (u *User) IsOAuthOnly() bool {
	return u.Provider != ProviderLocal && !u.HasPassword()
}

// UserView is the sanitized projection returned to clients and attached to
// request contexts. It never carries the password hash or provider subject.
type UserView struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfilePicture *string   `json:"profilePicture"`
	Provider       string    `json:"provider"`
	IsVerified     bool      `json:"isVerified"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (u *User) View() UserView {
	return UserView{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Provider:       u.Provider,
		IsVerified:     u.IsVerified,
		CreatedAt:      u.CreatedAt,
	}
}
