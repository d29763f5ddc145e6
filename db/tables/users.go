package tables

import (
	"time"
)

// UserTable represents the users table, (email, is_admin) is unique
// so the same address may hold a customer and an admin account
type UserTable struct {
	ID                int64      `db:"id,omitempty"`
	Email             string     `db:"email"`
	Password          string     `db:"password"       json:"-"`
	FirstName         string     `db:"first_name"`
	LastName          string     `db:"last_name"`
	Phone             *string    `db:"phone"`
	Address           *string    `db:"address"`
	IsActive          bool       `db:"is_active"`
	IsVerified        bool       `db:"is_verified"`
	IsAdmin           bool       `db:"is_admin"`
	LastLogin         *time.Time `db:"last_login"`
	LastLoginIP       *string    `db:"last_login_ip"`
	CreatedByIP       *string    `db:"created_by_ip"`
	PasswordChangedAt time.Time  `db:"password_changed_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at,omitempty"`
}
