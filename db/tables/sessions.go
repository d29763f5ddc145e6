package tables

import "time"

// UserSessionTable represents the user_sessions table, one row per
// successful login
type UserSessionTable struct {
	ID           int64      `db:"id,omitempty"`
	UserID       int64      `db:"user_id"`
	SessionToken string     `db:"session_token"`
	RefreshToken string     `db:"refresh_token"`
	IPAddress    *string    `db:"ip_address"`
	UserAgent    *string    `db:"user_agent"`
	IsActive     bool       `db:"is_active"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	LastActivity *time.Time `db:"last_activity"`
}
