package user

import (
	"context"
	"errors"
	"strings"

	"github.com/sepetli/kimlik/events"
)

var (
	ErrEntityDoesNotExist  = errors.New("entity does not exist")
	ErrEntityAlreadyExists = errors.New("entity already exists in system")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account is locked out")
	ErrEmailNotVerified    = errors.New("email address has not been verified")
	ErrAccountInactive     = errors.New("account has been deactivated")
	ErrVerificationFailed  = errors.New("verification code invalid or expired")
	ErrPasswordGuidelines  = errors.New("password doesnt match password guidlines")
	ErrTokenExpired        = errors.New("supplied token has expired")
	ErrEmailDeliveryFailed = errors.New("verification email could not be delivered")
	ErrNothingToResend     = errors.New("no pending registration or unverified account")
)

// Dispatcher raises domain events, audit listeners hang off it
type Dispatcher interface {
	Dispatch(ctx context.Context, event events.Event)
}

// ClientInfo is what the transport layer knows about the caller
type ClientInfo struct {
	IP        string
	UserAgent string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
