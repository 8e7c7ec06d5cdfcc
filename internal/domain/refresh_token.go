package domain

import "time"

// RefreshToken is the revocation point for a signed refresh token. A token is
// honoured only while its row exists; rows reference users by id and are
// removed by cascade when the user goes away.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Token     string    `gorm:"type:text;index;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *RefreshToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
