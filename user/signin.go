package user

import (
	"context"
	"errors"
	"time"

	"github.com/sepetli/kimlik/db"
	"github.com/sepetli/kimlik/events/event"
	"github.com/sepetli/kimlik/lockout"
	"github.com/sepetli/kimlik/tokens"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SigninStore is the persistence the signin service needs
type SigninStore interface {
	UserByEmail(ctx context.Context, email string, isAdmin bool) (*db.UserData, error)
	UserByID(ctx context.Context, id int64) (*db.UserData, error)
	SetLastLogin(ctx context.Context, id int64, ip *string) error
	InsertSession(ctx context.Context, session db.NewSession) (int64, error)
	ActiveSessionByRefreshToken(ctx context.Context, refreshToken string) (*db.SessionData, error)
	TouchSession(ctx context.Context, id int64, sessionToken string) error
	DeactivateSession(ctx context.Context, refreshToken string, userID int64) (int64, error)
}

// TokenRevoker puts tokens on the blacklist
type TokenRevoker interface {
	Add(ctx context.Context, raw string, reason string) (*tokens.Claims, error)
}

// TokenVerifier validates presented tokens
type TokenVerifier interface {
	Verify(ctx context.Context, raw string, expected tokens.TokenType) (*tokens.Claims, error)
}

// SignInResult carries the issued token pair and the signed in user
type SignInResult struct {
	User         *db.UserData
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// RefreshResult carries the re-issued access token
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int64
}

type SigninService struct {
	store      SigninStore
	log        *zap.Logger
	tracker    lockout.Tracker
	issuer     *tokens.TokenIssuer
	verifier   TokenVerifier
	blacklist  TokenRevoker
	dispatcher Dispatcher
}

func NewSignInService(store SigninStore,
	log *zap.Logger,
	tracker lockout.Tracker,
	issuer *tokens.TokenIssuer,
	verifier TokenVerifier,
	blacklist TokenRevoker,
	dispatcher Dispatcher) *SigninService {
	return &SigninService{
		store:      store,
		log:        log,
		tracker:    tracker,
		issuer:     issuer,
		verifier:   verifier,
		blacklist:  blacklist,
		dispatcher: dispatcher,
	}
}

// SignIn authenticates the credentials and opens a session. The
// lockout gate runs before anything else, and a missing user is
// indistinguishable from a wrong password on the outside. Unverified
// and deactivated accounts are rejected distinctly, those answers do
// not leak whether a password was right
func (g *SigninService) SignIn(
	ctx context.Context,
	email string,
	password string,
	isAdmin bool,
	client ClientInfo,
) (*SignInResult, error) {
	email = normalizeEmail(email)
	if g.tracker.IsLocked(ctx, email) {
		g.dispatcher.Dispatch(ctx, &event.UserLoginFailed{
			Email:   email,
			IsAdmin: isAdmin,
			Reason:  "locked_out",
			IP:      client.IP,
		})
		return nil, ErrAccountLocked
	}
	ud, err := g.store.UserByEmail(ctx, email, isAdmin)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			g.recordFailure(ctx, email, isAdmin, "unknown_user", client.IP)
			return nil, ErrInvalidCredentials
		}
		g.log.Error("unexpected data store error", zap.Error(err))
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(ud.PasswordHash, []byte(password)) != nil {
		g.recordFailure(ctx, email, isAdmin, "wrong_password", client.IP)
		return nil, ErrInvalidCredentials
	}
	if !ud.IsVerified {
		g.dispatcher.Dispatch(ctx, &event.UserLoginFailed{
			Email:   email,
			IsAdmin: isAdmin,
			Reason:  "unverified",
			IP:      client.IP,
		})
		return nil, ErrEmailNotVerified
	}
	if !ud.IsActive {
		g.dispatcher.Dispatch(ctx, &event.UserLoginFailed{
			Email:   email,
			IsAdmin: isAdmin,
			Reason:  "inactive",
			IP:      client.IP,
		})
		return nil, ErrAccountInactive
	}
	g.tracker.Clear(ctx, email)
	accessToken, accessClaims, err := g.issuer.IssueAccessToken(ud.ID)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshClaims, err := g.issuer.IssueRefreshToken(ud.ID)
	if err != nil {
		return nil, err
	}
	var ip, agent *string
	if client.IP != "" {
		ip = &client.IP
	}
	if client.UserAgent != "" {
		agent = &client.UserAgent
	}
	sessionID, err := g.store.InsertSession(ctx, db.NewSession{
		UserID:       ud.ID,
		SessionToken: accessClaims.ID(),
		RefreshToken: refreshToken,
		IPAddress:    ip,
		UserAgent:    agent,
		ExpiresAt:    refreshClaims.ExpiresAt(),
	})
	if err != nil {
		return nil, err
	}
	if err := g.store.SetLastLogin(ctx, ud.ID, ip); err != nil {
		g.log.Warn("could not stamp last login", zap.Error(err))
	}
	g.dispatcher.Dispatch(ctx, &event.UserLogin{
		UserID:    ud.ID,
		SessionID: sessionID,
		IP:        client.IP,
	})
	return &SignInResult{
		User:         ud,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(g.issuer.AccessTokenExpiry().Seconds()),
	}, nil
}

// Refresh re-issues an access token against a valid refresh token and
// its still active session row, the refresh token itself is not
// rotated. Every failure surfaces as ErrInvalidCredentials
func (g *SigninService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := g.verifier.Verify(ctx, refreshToken, tokens.RefreshTokenType)
	if err != nil {
		if errors.Is(err, tokens.ErrInvalidToken) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	session, err := g.store.ActiveSessionByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	ud, err := g.store.UserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !ud.IsActive {
		return nil, ErrInvalidCredentials
	}
	accessToken, accessClaims, err := g.issuer.IssueAccessToken(ud.ID)
	if err != nil {
		return nil, err
	}
	if err := g.store.TouchSession(ctx, session.ID, accessClaims.ID()); err != nil {
		g.log.Warn("could not touch session", zap.Error(err))
	}
	g.dispatcher.Dispatch(ctx, &event.TokenRefreshed{
		UserID:    ud.ID,
		SessionID: session.ID,
	})
	return &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(g.issuer.AccessTokenExpiry().Seconds()),
	}, nil
}

// SignOut blacklists the presented access token and, when a refresh
// token is handed along, blacklists it too and deactivates its
// session. Signing out twice is fine
func (g *SigninService) SignOut(
	ctx context.Context,
	accessToken string,
	refreshToken string,
	userID int64,
) error {
	jtis := make([]string, 0, 2)
	claims, err := g.blacklist.Add(ctx, accessToken, "logout")
	if err != nil {
		return err
	}
	jtis = append(jtis, claims.ID())
	if refreshToken != "" {
		refreshClaims, err := g.blacklist.Add(ctx, refreshToken, "logout")
		if err != nil {
			g.log.Warn("could not blacklist refresh token on logout", zap.Error(err))
		} else {
			jtis = append(jtis, refreshClaims.ID())
		}
		sessionID, err := g.store.DeactivateSession(ctx, refreshToken, userID)
		if err != nil {
			g.log.Warn("could not deactivate session on logout", zap.Error(err))
		}
		if sessionID != 0 {
			g.dispatcher.Dispatch(ctx, &event.SessionRevoked{
				UserID:    userID,
				SessionID: sessionID,
			})
		}
	}
	g.dispatcher.Dispatch(ctx, &event.TokensRevoked{
		UserID: userID,
		JTIs:   jtis,
		Reason: "logout",
	})
	return nil
}

// UserFromSubject loads the user behind a validated access token
func (g *SigninService) UserFromSubject(ctx context.Context, userID int64) (*db.UserData, error) {
	ud, err := g.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrEntityDoesNotExist
		}
		return nil, err
	}
	if !ud.IsActive {
		return nil, ErrAccountInactive
	}
	return ud, nil
}

func (g *SigninService) recordFailure(
	ctx context.Context,
	email string,
	isAdmin bool,
	reason string,
	ip string,
) {
	count := g.tracker.RecordFailure(ctx, email)
	g.dispatcher.Dispatch(ctx, &event.UserLoginFailed{
		Email:   email,
		IsAdmin: isAdmin,
		Reason:  reason,
		IP:      ip,
	})
	if count >= int64(g.tracker.MaxAttempts()) {
		g.dispatcher.Dispatch(ctx, &event.UserLockedOut{
			Email:    email,
			Attempts: count,
			Until:    time.Now().UTC().Add(g.tracker.LockoutDuration()),
		})
	}
}
