package db

import (
	"context"
	"strconv"

	"github.com/sepetli/kimlik/db/tables"
	"github.com/sepetli/kimlik/events"
	"github.com/sepetli/kimlik/events/event"
	"go.uber.org/zap"
)

// Auditor is a way to write audit log events into a persistent store
type Auditor interface {
	addToAuditLog(event string, payload tables.MapStructure) error
}

// BootstrapListeners registers all the event listeners from this package
func BootstrapListeners(store Auditor, log *zap.Logger) []events.EventListener {
	return []events.EventListener{
		&registrationStartedListener{
			log:   log,
			store: store,
		},
		&registrationReplacedListener{
			log:   log,
			store: store,
		},
		&userVerifiedListener{
			log:   log,
			store: store,
		},
		&emailVerificationSentListener{
			log:   log,
			store: store,
		},
		&emailVerificationResentListener{
			log:   log,
			store: store,
		},
		&userLoginListener{
			log:   log,
			store: store,
		},
		&userLoginFailedListener{
			log:   log,
			store: store,
		},
		&userLockedOutListener{
			log:   log,
			store: store,
		},
		&tokenRefreshedListener{
			log:   log,
			store: store,
		},
		&tokensRevokedListener{
			log:   log,
			store: store,
		},
		&sessionRevokedListener{
			log:   log,
			store: store,
		},
		&blacklistSweptListener{
			log:   log,
			store: store,
		},
		&trackerDegradedListener{
			log:   log,
			store: store,
		},
		&passwordResetRequestedListener{
			log:   log,
			store: store,
		},
		&passwordResetUsedListener{
			log:   log,
			store: store,
		},
	}
}

func toString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

type registrationStartedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*registrationStartedListener) ForEvent() events.EventName {
	return event.RegistrationStartedEvent
}

func (l *registrationStartedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.RegistrationStarted)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"email":    e.Email,
		"is_admin": toString(e.IsAdmin),
		"ip":       e.IP,
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type registrationReplacedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*registrationReplacedListener) ForEvent() events.EventName {
	return event.RegistrationReplacedEvent
}

func (l *registrationReplacedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.RegistrationReplaced)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"email":    e.Email,
		"is_admin": toString(e.IsAdmin),
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type userVerifiedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*userVerifiedListener) ForEvent() events.EventName {
	return event.UserVerifiedEvent
}

func (l *userVerifiedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.UserVerified)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"user_id":  strconv.FormatInt(e.UserID, 10),
		"email":    e.Email,
		"is_admin": toString(e.IsAdmin),
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type emailVerificationSentListener struct {
	store Auditor
	log   *zap.Logger
}

func (*emailVerificationSentListener) ForEvent() events.EventName {
	return event.EmailVerificationSentEvent
}

func (l *emailVerificationSentListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.EmailVerificationSent)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"email": e.Email,
		"sent":  e.Sent.Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type emailVerificationResentListener struct {
	store Auditor
	log   *zap.Logger
}

func (*emailVerificationResentListener) ForEvent() events.EventName {
	return event.EmailVerificationResentEvent
}

func (l *emailVerificationResentListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.EmailVerificationResent)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"email": e.Email,
		"sent":  e.Sent.Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type userLoginListener struct {
	store Auditor
	log   *zap.Logger
}

func (*userLoginListener) ForEvent() events.EventName {
	return event.UserLoginEvent
}

func (l *userLoginListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.UserLogin)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"user_id":    strconv.FormatInt(e.UserID, 10),
		"session_id": strconv.FormatInt(e.SessionID, 10),
		"ip":         e.IP,
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type userLoginFailedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*userLoginFailedListener) ForEvent() events.EventName {
	return event.UserLoginFailedEvent
}

func (l *userLoginFailedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.UserLoginFailed)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"email":    e.Email,
		"is_admin": toString(e.IsAdmin),
		"reason":   e.Reason,
		"ip":       e.IP,
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type userLockedOutListener struct {
	store Auditor
	log   *zap.Logger
}

func (*userLockedOutListener) ForEvent() events.EventName {
	return event.UserLockedOutEvent
}

func (l *userLockedOutListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.UserLockedOut)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"email":    e.Email,
		"attempts": strconv.FormatInt(e.Attempts, 10),
		"until":    e.Until.Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type tokenRefreshedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*tokenRefreshedListener) ForEvent() events.EventName {
	return event.TokenRefreshedEvent
}

func (l *tokenRefreshedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.TokenRefreshed)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"user_id":    strconv.FormatInt(e.UserID, 10),
		"session_id": strconv.FormatInt(e.SessionID, 10),
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type tokensRevokedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*tokensRevokedListener) ForEvent() events.EventName {
	return event.TokensRevokedEvent
}

func (l *tokensRevokedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.TokensRevoked)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"user_id": strconv.FormatInt(e.UserID, 10),
		"jtis":    e.JTIs,
		"reason":  e.Reason,
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type sessionRevokedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*sessionRevokedListener) ForEvent() events.EventName {
	return event.SessionRevokedEvent
}

func (l *sessionRevokedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.SessionRevoked)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"user_id":    strconv.FormatInt(e.UserID, 10),
		"session_id": strconv.FormatInt(e.SessionID, 10),
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type blacklistSweptListener struct {
	store Auditor
	log   *zap.Logger
}

func (*blacklistSweptListener) ForEvent() events.EventName {
	return event.BlacklistSweptEvent
}

func (l *blacklistSweptListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.BlacklistSwept)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"removed": strconv.FormatInt(e.Removed, 10),
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type trackerDegradedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*trackerDegradedListener) ForEvent() events.EventName {
	return event.TrackerDegradedEvent
}

func (l *trackerDegradedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.TrackerDegraded)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"operation": e.Operation,
		"cause":     e.Cause,
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type passwordResetRequestedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*passwordResetRequestedListener) ForEvent() events.EventName {
	return event.PasswordResetRequestedEvent
}

func (l *passwordResetRequestedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.PasswordResetRequested)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"user_id": strconv.FormatInt(e.UserID, 10),
		"email":   e.Email,
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}

type passwordResetUsedListener struct {
	store Auditor
	log   *zap.Logger
}

func (*passwordResetUsedListener) ForEvent() events.EventName {
	return event.PasswordResetUsedEvent
}

func (l *passwordResetUsedListener) Handle(_ context.Context, ev events.Event) error {
	e := ev.(*event.PasswordResetUsed)
	err := l.store.addToAuditLog(string(l.ForEvent()), map[string]interface{}{
		"user_id": strconv.FormatInt(e.UserID, 10),
		"email":   e.Email,
	})
	if err != nil {
		l.log.Warn("Could not persist event to audit log", zap.Error(err))
	}
	return nil
}
