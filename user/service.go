package user

import (
	"context"
	"errors"
	"time"

	"github.com/sepetli/kimlik/config"
	"github.com/sepetli/kimlik/db"
	"github.com/sepetli/kimlik/events/event"
	"github.com/sepetli/kimlik/generator"
	"github.com/sepetli/kimlik/registration"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence the registration service needs
type UserStore interface {
	UserByEmail(ctx context.Context, email string, isAdmin bool) (*db.UserData, error)
	UserByID(ctx context.Context, id int64) (*db.UserData, error)
	IsRegistered(ctx context.Context, email string, isAdmin bool) (bool, error)
	UnverifiedUserExists(ctx context.Context, email string) (bool, error)
	InsertUser(ctx context.Context, user db.NewUser) (int64, error)
	InsertResetToken(ctx context.Context, userID int64, token string, expiresAt time.Time) (int64, error)
	UsableResetToken(ctx context.Context, token string) (*db.ResetTokenData, error)
	ConsumeResetToken(ctx context.Context, id int64) error
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	DeactivateSessionsForUser(ctx context.Context, userID int64) (int64, error)
}

// Mailer sends out the transactional mails
type Mailer interface {
	SendVerificationMail(to string, name string, code string) error
	SendPasswordResetMail(to string, name string, token string) error
}

// RegisterInput is a signup as it arrives from the transport layer
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
	Address   *string
	IsAdmin   bool
	IP        string
}

func New(store UserStore,
	pending registration.Store,
	logger *zap.Logger,
	cfg *config.BehaviourConfiguration,
	mailer Mailer,
	dispatcher Dispatcher) *Service {
	return &Service{
		store:      store,
		pending:    pending,
		log:        logger,
		cfg:        cfg,
		mailer:     mailer,
		dispatcher: dispatcher,
		policy:     NewPasswordPolicy(cfg.PasswordMinLength),
		gen:        generator.New(),
	}
}

// Service drives the registration lifecycle: signup goes into the
// pending store, the emailed code turns it into a persistent user
type Service struct {
	store      UserStore
	pending    registration.Store
	log        *zap.Logger
	cfg        *config.BehaviourConfiguration
	mailer     Mailer
	dispatcher Dispatcher
	policy     *PasswordPolicy
	gen        *generator.RandomTokenGenerator
}

// PasswordPolicy exposes the policy for handlers that want to report
// all violations
func (g *Service) PasswordPolicy() *PasswordPolicy {
	return g.policy
}

// Register validates the signup, stores it as pending and sends the
// verification code. Nothing is written to the users table yet, a
// repeated signup for the same (email, kind) replaces the prior entry
func (g *Service) Register(ctx context.Context, input RegisterInput) error {
	email := normalizeEmail(input.Email)
	if violations := g.policy.Validate(input.Password); len(violations) > 0 {
		return ErrPasswordGuidelines
	}
	registered, err := g.store.IsRegistered(ctx, email, input.IsAdmin)
	if err != nil {
		g.log.Error(
			"Could not check registration in data store",
			zap.String("email", email),
			zap.Error(err),
		)
		return err
	}
	if registered {
		return ErrEntityAlreadyExists
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		g.log.Error("could not hash password", zap.Error(err))
		return err
	}
	code := string(g.gen.CreateVerificationCode())
	prior, err := g.pending.Get(ctx, email, input.IsAdmin)
	if err != nil {
		return err
	}
	entry := registration.NewEntry(
		email,
		string(hashed),
		input.FirstName,
		input.LastName,
		input.Phone,
		input.Address,
		code,
		input.IP,
		input.IsAdmin,
	)
	if err := g.pending.Add(ctx, entry); err != nil {
		return err
	}
	if prior != nil {
		g.dispatcher.Dispatch(ctx, &event.RegistrationReplaced{
			Email:   email,
			IsAdmin: input.IsAdmin,
		})
	}
	g.dispatcher.Dispatch(ctx, &event.RegistrationStarted{
		Email:   email,
		IsAdmin: input.IsAdmin,
		IP:      input.IP,
	})
	err = g.mailer.SendVerificationMail(email, input.FirstName, code)
	if err != nil {
		g.log.Error("could not send verification mail", zap.Error(err))
		return ErrEmailDeliveryFailed
	}
	g.dispatcher.Dispatch(ctx, &event.EmailVerificationSent{
		Email: email,
		Sent:  time.Now().UTC(),
	})
	return nil
}

// VerifyEmail redeems the code and persists the user as verified and
// active, the pending entry is gone afterwards
func (g *Service) VerifyEmail(
	ctx context.Context,
	email string,
	code string,
	isAdmin bool,
) (int64, error) {
	email = normalizeEmail(email)
	reg, err := g.pending.VerifyAndRemove(ctx, email, code, isAdmin)
	if err != nil {
		return 0, err
	}
	if reg == nil {
		return 0, ErrVerificationFailed
	}
	ip := reg.CreatedByIP
	id, err := g.store.InsertUser(ctx, db.NewUser{
		Email:       reg.Email,
		Password:    reg.HashedPassword,
		FirstName:   reg.FirstName,
		LastName:    reg.LastName,
		Phone:       reg.Phone,
		Address:     reg.Address,
		IsAdmin:     reg.IsAdmin,
		IsVerified:  true,
		IsActive:    true,
		CreatedByIP: &ip,
	})
	if err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			// somebody verified between signup and now
			return 0, ErrEntityAlreadyExists
		}
		return 0, err
	}
	g.dispatcher.Dispatch(ctx, &event.UserVerified{
		UserID:  id,
		Email:   reg.Email,
		IsAdmin: reg.IsAdmin,
	})
	return id, nil
}

// ResendVerification issues a fresh code for a pending signup and
// restarts its TTL. When no pending entry exists but an unverified
// account does, that is reported as ErrTokenExpired so the caller can
// tell the user to register again, with neither present the operation
// fails with ErrNothingToResend
func (g *Service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	reg, err := g.pending.Get(ctx, email, false)
	if err != nil {
		return err
	}
	if reg != nil {
		code := string(g.gen.CreateVerificationCode())
		updated, err := g.pending.UpdateCode(ctx, email, code, false)
		if err != nil {
			return err
		}
		if !updated {
			// entry ran out between the read and the update
			return ErrNothingToResend
		}
		err = g.mailer.SendVerificationMail(email, reg.FirstName, code)
		if err != nil {
			g.log.Error("could not resend verification mail", zap.Error(err))
			return ErrEmailDeliveryFailed
		}
		g.dispatcher.Dispatch(ctx, &event.EmailVerificationResent{
			Email: email,
			Sent:  time.Now().UTC(),
		})
		return nil
	}
	unverified, err := g.store.UnverifiedUserExists(ctx, email)
	if err != nil {
		return err
	}
	if unverified {
		return ErrTokenExpired
	}
	return ErrNothingToResend
}

// TriggerPasswordReset creates a reset token and mails it out. The
// response never discloses whether the address exists, an unknown
// address is a silent no-op
func (g *Service) TriggerPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	ud, err := g.store.UserByEmail(ctx, email, false)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		g.log.Error("unexpected data store error", zap.Error(err))
		return err
	}
	if !ud.IsActive {
		return nil
	}
	token := string(g.gen.CreateSecureToken())
	expiry := g.cfg.PasswordResetExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	_, err = g.store.InsertResetToken(ctx, ud.ID, token, time.Now().UTC().Add(expiry))
	if err != nil {
		return err
	}
	g.dispatcher.Dispatch(ctx, &event.PasswordResetRequested{
		UserID: ud.ID,
		Email:  email,
	})
	err = g.mailer.SendPasswordResetMail(email, ud.FirstName, token)
	if err != nil {
		g.log.Error("could not send password reset mail", zap.Error(err))
		return ErrEmailDeliveryFailed
	}
	return nil
}

// ResetPassword redeems a reset token, the new password has to pass
// the policy and every active session of the user is revoked
func (g *Service) ResetPassword(ctx context.Context, token string, password string) error {
	if violations := g.policy.Validate(password); len(violations) > 0 {
		return ErrPasswordGuidelines
	}
	data, err := g.store.UsableResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrTokenExpired
		}
		return err
	}
	if err := g.store.ConsumeResetToken(ctx, data.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrTokenExpired
		}
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := g.store.SetPassword(ctx, data.UserID, string(hashed)); err != nil {
		return err
	}
	if _, err := g.store.DeactivateSessionsForUser(ctx, data.UserID); err != nil {
		g.log.Warn("could not revoke sessions after password reset", zap.Error(err))
	}
	ud, err := g.store.UserByID(ctx, data.UserID)
	if err == nil {
		g.dispatcher.Dispatch(ctx, &event.PasswordResetUsed{
			UserID: data.UserID,
			Email:  ud.Email,
		})
	}
	return nil
}
