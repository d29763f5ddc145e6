package tables

import "time"

// BlacklistedTokenTable represents the blacklisted_tokens table,
// rows past expires_at are treated as absent and swept periodically
type BlacklistedTokenTable struct {
	ID            int64     `db:"id,omitempty"`
	TokenJTI      string    `db:"token_jti"`
	UserID        *int64    `db:"user_id"`
	TokenType     string    `db:"token_type"`
	Reason        *string   `db:"reason"`
	BlacklistedAt time.Time `db:"blacklisted_at"`
	ExpiresAt     time.Time `db:"expires_at"`
}
