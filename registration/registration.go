// Package registration holds not yet verified signups, entries live
// for 24 hours and only become persistent users once the emailed code
// has been confirmed.
package registration

import (
	"context"
	"strings"
	"time"
)

// DefaultTTL is how long a pending registration stays redeemable when
// no TTL was configured
const DefaultTTL = 24 * time.Hour

// Registration is a signup waiting for email verification, the
// password already arrives hashed
type Registration struct {
	Email            string  `json:"email"`
	HashedPassword   string  `json:"hashed_password"`
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Phone            *string `json:"phone"`
	Address          *string `json:"address"`
	VerificationCode string  `json:"verification_code"`
	CreatedByIP      string  `json:"created_by_ip"`
	IsAdmin          bool    `json:"is_admin"`
	CreatedAt        int64   `json:"created_at"`
	ExpiresAt        int64   `json:"expires_at"`
}

// Expired reports whether the entry has outlived its TTL
func (r *Registration) Expired(now time.Time) bool {
	return now.Unix() >= r.ExpiresAt
}

// Stats is a snapshot of the store for the health endpoint
type Stats struct {
	Pending int
	Keys    []string
}

// Store keeps pending registrations keyed by (email, kind), a
// customer and an admin signup for the same address coexist
type Store interface {
	// Add upserts the entry, a repeated signup replaces the prior
	// entry entirely including its code and expiry
	Add(ctx context.Context, reg *Registration) error
	// Get returns the entry or nil when absent or expired
	Get(ctx context.Context, email string, isAdmin bool) (*Registration, error)
	// VerifyAndRemove atomically checks the code and removes the
	// entry on success. A wrong code leaves the entry untouched, an
	// expired entry is removed, both return nil
	VerifyAndRemove(ctx context.Context, email string, code string, isAdmin bool) (*Registration, error)
	// UpdateCode swaps in a fresh code and restarts the TTL, returns
	// false when no live entry exists
	UpdateCode(ctx context.Context, email string, code string, isAdmin bool) (bool, error)
	// Stats counts the live entries
	Stats(ctx context.Context) (*Stats, error)
	// Ping checks the backing store is reachable
	Ping(ctx context.Context) error
	Close() error
}

// Key derives the store key, the email is lowercased so lookups are
// case insensitive
func Key(email string, isAdmin bool) string {
	kind := "_user"
	if isAdmin {
		kind = "_admin"
	}
	return strings.ToLower(strings.TrimSpace(email)) + kind
}

// NewEntry builds a Registration, the store stamps the expiry when
// the entry is added
func NewEntry(
	email string,
	hashedPassword string,
	firstName string,
	lastName string,
	phone *string,
	address *string,
	code string,
	ip string,
	isAdmin bool,
) *Registration {
	now := time.Now().UTC()
	return &Registration{
		Email:            strings.ToLower(strings.TrimSpace(email)),
		HashedPassword:   hashedPassword,
		FirstName:        firstName,
		LastName:         lastName,
		Phone:            phone,
		Address:          address,
		VerificationCode: code,
		CreatedByIP:      ip,
		IsAdmin:          isAdmin,
		CreatedAt:        now.Unix(),
	}
}
