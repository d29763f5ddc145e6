package tables

import "time"

// PasswordResetTokenTable represents the password_reset_tokens table
type PasswordResetTokenTable struct {
	ID        int64      `db:"id,omitempty"`
	UserID    int64      `db:"user_id"`
	Token     string     `db:"token"`
	IsUsed    bool       `db:"is_used"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	UsedAt    *time.Time `db:"used_at"`
}
