package event

import (
	"time"

	"github.com/sepetli/kimlik/events"
)

const (
	RegistrationStartedEvent  events.EventName = "registration_started"
	RegistrationReplacedEvent events.EventName = "registration_replaced"
	UserVerifiedEvent         events.EventName = "user_verified"

	EmailVerificationSentEvent   events.EventName = "email_verification_sent"
	EmailVerificationResentEvent events.EventName = "email_verification_resent"

	UserLoginEvent       events.EventName = "user_login"
	UserLoginFailedEvent events.EventName = "user_login_failed"
	UserLockedOutEvent   events.EventName = "user_locked_out"

	TokenRefreshedEvent  events.EventName = "token_refreshed"
	TokensRevokedEvent   events.EventName = "tokens_revoked"
	SessionRevokedEvent  events.EventName = "session_revoked"
	BlacklistSweptEvent  events.EventName = "blacklist_swept"
	TrackerDegradedEvent events.EventName = "attempt_tracker_degraded"

	PasswordResetRequestedEvent events.EventName = "password_reset_requested"
	PasswordResetUsedEvent      events.EventName = "password_reset_used"
)

type RegistrationStarted struct {
	Email   string
	IsAdmin bool
	IP      string
}

func (*RegistrationStarted) Name() events.EventName { return RegistrationStartedEvent }

// RegistrationReplaced is raised when a repeated registration
// overwrites a still pending entry for the same (email, kind)
type RegistrationReplaced struct {
	Email   string
	IsAdmin bool
}

func (*RegistrationReplaced) Name() events.EventName { return RegistrationReplacedEvent }

type UserVerified struct {
	UserID  int64
	Email   string
	IsAdmin bool
}

func (*UserVerified) Name() events.EventName { return UserVerifiedEvent }

type EmailVerificationSent struct {
	Email string
	Sent  time.Time
}

func (*EmailVerificationSent) Name() events.EventName { return EmailVerificationSentEvent }

type EmailVerificationResent struct {
	Email string
	Sent  time.Time
}

func (*EmailVerificationResent) Name() events.EventName { return EmailVerificationResentEvent }

type UserLogin struct {
	UserID    int64
	SessionID int64
	IP        string
}

func (*UserLogin) Name() events.EventName { return UserLoginEvent }

// UserLoginFailed carries the internal reason, the API response
// never discloses it
type UserLoginFailed struct {
	Email   string
	IsAdmin bool
	Reason  string
	IP      string
}

func (*UserLoginFailed) Name() events.EventName { return UserLoginFailedEvent }

type UserLockedOut struct {
	Email    string
	Attempts int64
	Until    time.Time
}

func (*UserLockedOut) Name() events.EventName { return UserLockedOutEvent }

type TokenRefreshed struct {
	UserID    int64
	SessionID int64
}

func (*TokenRefreshed) Name() events.EventName { return TokenRefreshedEvent }

type TokensRevoked struct {
	UserID int64
	JTIs   []string
	Reason string
}

func (*TokensRevoked) Name() events.EventName { return TokensRevokedEvent }

type SessionRevoked struct {
	UserID    int64
	SessionID int64
}

func (*SessionRevoked) Name() events.EventName { return SessionRevokedEvent }

type BlacklistSwept struct {
	Removed int64
}

func (*BlacklistSwept) Name() events.EventName { return BlacklistSweptEvent }

// TrackerDegraded is raised when the login attempt tracker fails open
type TrackerDegraded struct {
	Operation string
	Cause     string
}

func (*TrackerDegraded) Name() events.EventName { return TrackerDegradedEvent }

type PasswordResetRequested struct {
	UserID int64
	Email  string
}

func (*PasswordResetRequested) Name() events.EventName { return PasswordResetRequestedEvent }

type PasswordResetUsed struct {
	UserID int64
	Email  string
}

func (*PasswordResetUsed) Name() events.EventName { return PasswordResetUsedEvent }
