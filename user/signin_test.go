package user

import (
	"context"
	"testing"
	"time"

	"github.com/sepetli/kimlik/config"
	"github.com/sepetli/kimlik/db"
	"github.com/sepetli/kimlik/events/event"
	"github.com/sepetli/kimlik/lockout"
	"github.com/sepetli/kimlik/tokens"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type signinStoreMock struct {
	user         *db.UserData
	sessions     []*db.SessionData
	emailLookups int
	lastLoginIP  *string
}

func (m *signinStoreMock) UserByEmail(_ context.Context, email string, isAdmin bool) (*db.UserData, error) {
	m.emailLookups++
	if m.user != nil && m.user.Email == email && m.user.IsAdmin == isAdmin {
		return m.user, nil
	}
	return nil, db.ErrNotFound
}

func (m *signinStoreMock) UserByID(_ context.Context, id int64) (*db.UserData, error) {
	if m.user != nil && m.user.ID == id {
		return m.user, nil
	}
	return nil, db.ErrNotFound
}

func (m *signinStoreMock) SetLastLogin(_ context.Context, _ int64, ip *string) error {
	m.lastLoginIP = ip
	return nil
}

func (m *signinStoreMock) InsertSession(_ context.Context, session db.NewSession) (int64, error) {
	id := int64(len(m.sessions) + 1)
	m.sessions = append(m.sessions, &db.SessionData{
		ID:           id,
		UserID:       session.UserID,
		SessionToken: session.SessionToken,
		RefreshToken: session.RefreshToken,
		IPAddress:    session.IPAddress,
		UserAgent:    session.UserAgent,
		IsActive:     true,
		ExpiresAt:    session.ExpiresAt,
		CreatedAt:    time.Now().UTC(),
	})
	return id, nil
}

func (m *signinStoreMock) ActiveSessionByRefreshToken(_ context.Context, refreshToken string) (*db.SessionData, error) {
	for _, s := range m.sessions {
		if s.RefreshToken == refreshToken && s.IsActive && s.ExpiresAt.After(time.Now().UTC()) {
			return s, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *signinStoreMock) TouchSession(_ context.Context, id int64, sessionToken string) error {
	for _, s := range m.sessions {
		if s.ID == id {
			s.SessionToken = sessionToken
		}
	}
	return nil
}

func (m *signinStoreMock) DeactivateSession(_ context.Context, refreshToken string, userID int64) (int64, error) {
	for _, s := range m.sessions {
		if s.RefreshToken == refreshToken && s.UserID == userID && s.IsActive {
			s.IsActive = false
			return s.ID, nil
		}
	}
	return 0, nil
}

type revokerMock struct {
	decoder *tokens.TokenVerifier
	revoked []string
}

func (m *revokerMock) Add(_ context.Context, raw string, _ string) (*tokens.Claims, error) {
	claims, err := m.decoder.DecodeExpired(raw)
	if err != nil {
		return nil, err
	}
	m.revoked = append(m.revoked, claims.ID())
	return claims, nil
}

func mustHash(t *testing.T, password string) []byte {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)
	return hashed
}

func verifiedUser(t *testing.T) *db.UserData {
	return &db.UserData{
		ID:           7,
		Email:        "ayse@kimlik.local",
		FirstName:    "Ayşe",
		LastName:     "Yılmaz",
		IsActive:     true,
		IsVerified:   true,
		PasswordHash: mustHash(t, goodPassword),
	}
}

func testSigninService(
	t *testing.T,
	store *signinStoreMock,
	tracker lockout.Tracker,
) (*SigninService, *revokerMock, *fakeDispatcher) {
	logger := zaptest.NewLogger(t)
	issuer := tokens.NewIssuer(logger, &config.JWTConfiguration{
		Algorithm:          "HS256",
		Issuer:             "kimlik.test",
		Audience:           []string{"kimlik.test"},
		Expiry:             30 * time.Minute,
		RefreshTokenExpiry: 168 * time.Hour,
		HMACSigningKey:     "all-your-base-are-belong-to-us-1234567890",
	})
	verifier := tokens.NewTokenVerifier(logger, issuer, nil)
	revoker := &revokerMock{decoder: verifier}
	dispatcher := &fakeDispatcher{}
	service := NewSignInService(store, logger, tracker, issuer, verifier, revoker, dispatcher)
	return service, revoker, dispatcher
}

func testClient() ClientInfo {
	return ClientInfo{IP: "10.0.0.1", UserAgent: "go-test"}
}

func TestSignIn(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	result, err := service.SignIn(context.Background(), "Ayse@Kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, int64(1800), result.ExpiresIn)
	assert.Equal(t, int64(7), result.User.ID)

	//every login opens its own session row
	if assert.Len(t, store.sessions, 1) {
		assert.Equal(t, result.RefreshToken, store.sessions[0].RefreshToken)
		assert.Equal(t, int64(7), store.sessions[0].UserID)
	}
	if assert.NotNil(t, store.lastLoginIP) {
		assert.Equal(t, "10.0.0.1", *store.lastLoginIP)
	}
}

func TestSignInEverySessionIsItsOwnRow(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	_, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)
	_, err = service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)
	assert.Len(t, store.sessions, 2)
}

func TestSignInUnknownUserLooksLikeWrongPassword(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	_, unknownErr := service.SignIn(context.Background(), "nope@kimlik.local", goodPassword, false, testClient())
	_, wrongErr := service.SignIn(context.Background(), "ayse@kimlik.local", "YanlisSifre1!", false, testClient())
	assert.ErrorIs(t, ErrInvalidCredentials, unknownErr)
	assert.ErrorIs(t, ErrInvalidCredentials, wrongErr)
}

func TestSignInWrongKindRejected(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	//a customer account does not open the admin door
	_, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, true, testClient())
	assert.ErrorIs(t, ErrInvalidCredentials, err)
}

func TestSignInUnverified(t *testing.T) {
	ud := verifiedUser(t)
	ud.IsVerified = false
	store := &signinStoreMock{user: ud}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	_, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.ErrorIs(t, ErrEmailNotVerified, err)
	assert.Empty(t, store.sessions)
}

func TestSignInInactive(t *testing.T) {
	ud := verifiedUser(t)
	ud.IsActive = false
	store := &signinStoreMock{user: ud}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	_, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.ErrorIs(t, ErrAccountInactive, err)
	assert.Empty(t, store.sessions)
}

func TestSignInLockoutGateRunsBeforeCredentials(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(1, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	tracker.RecordFailure(context.Background(), "ayse@kimlik.local")
	assert.True(t, tracker.IsLocked(context.Background(), "ayse@kimlik.local"))

	//even the right password bounces off the lockout
	_, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.ErrorIs(t, ErrAccountLocked, err)
	assert.Equal(t, 0, store.emailLookups)
}

func TestSignInLocksAfterRepeatedFailures(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(2, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	_, err := service.SignIn(context.Background(), "ayse@kimlik.local", "YanlisSifre1!", false, testClient())
	assert.ErrorIs(t, ErrInvalidCredentials, err)
	_, err = service.SignIn(context.Background(), "ayse@kimlik.local", "YanlisSifre1!", false, testClient())
	assert.ErrorIs(t, ErrInvalidCredentials, err)

	_, err = service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.ErrorIs(t, ErrAccountLocked, err)
}

func TestSignInClearsCounterOnSuccess(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(2, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	_, err := service.SignIn(context.Background(), "ayse@kimlik.local", "YanlisSifre1!", false, testClient())
	assert.ErrorIs(t, ErrInvalidCredentials, err)
	_, err = service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)

	//the earlier failure no longer counts
	_, err = service.SignIn(context.Background(), "ayse@kimlik.local", "YanlisSifre1!", false, testClient())
	assert.ErrorIs(t, ErrInvalidCredentials, err)
	assert.False(t, tracker.IsLocked(context.Background(), "ayse@kimlik.local"))
}

func TestRefreshDoesNotRotateRefreshToken(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	signedIn, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)
	priorSessionToken := store.sessions[0].SessionToken

	refreshed, err := service.Refresh(context.Background(), signedIn.RefreshToken)
	assert.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, signedIn.AccessToken, refreshed.AccessToken)
	assert.Equal(t, int64(1800), refreshed.ExpiresIn)

	//the session sticks to its refresh token, only the access token moves
	assert.Equal(t, signedIn.RefreshToken, store.sessions[0].RefreshToken)
	assert.NotEqual(t, priorSessionToken, store.sessions[0].SessionToken)

	//and the same refresh token keeps working
	_, err = service.Refresh(context.Background(), signedIn.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	signedIn, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)

	_, err = service.Refresh(context.Background(), signedIn.AccessToken)
	assert.ErrorIs(t, ErrInvalidCredentials, err)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	_, err := service.Refresh(context.Background(), "not.a.token")
	assert.ErrorIs(t, ErrInvalidCredentials, err)
}

func TestRefreshRejectsDeactivatedSession(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	signedIn, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)
	store.sessions[0].IsActive = false

	_, err = service.Refresh(context.Background(), signedIn.RefreshToken)
	assert.ErrorIs(t, ErrInvalidCredentials, err)
}

func TestRefreshRejectsInactiveUser(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	signedIn, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)
	store.user.IsActive = false

	_, err = service.Refresh(context.Background(), signedIn.RefreshToken)
	assert.ErrorIs(t, ErrInvalidCredentials, err)
}

func TestSignOut(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, revoker, _ := testSigninService(t, store, tracker)

	signedIn, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)

	err = service.SignOut(context.Background(), signedIn.AccessToken, signedIn.RefreshToken, 7)
	assert.NoError(t, err)
	//both tokens land on the blacklist and the session is closed
	assert.Len(t, revoker.revoked, 2)
	assert.False(t, store.sessions[0].IsActive)
}

func TestSignOutAuditsSessionID(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, dispatcher := testSigninService(t, store, tracker)

	signedIn, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)

	err = service.SignOut(context.Background(), signedIn.AccessToken, signedIn.RefreshToken, 7)
	assert.NoError(t, err)

	var revoked *event.SessionRevoked
	for _, ev := range dispatcher.dispatched {
		if e, ok := ev.(*event.SessionRevoked); ok {
			revoked = e
		}
	}
	if assert.NotNil(t, revoked) {
		assert.Equal(t, store.sessions[0].ID, revoked.SessionID)
		assert.Equal(t, int64(7), revoked.UserID)
	}
}

func TestSignOutIsIdempotent(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	signedIn, err := service.SignIn(context.Background(), "ayse@kimlik.local", goodPassword, false, testClient())
	assert.NoError(t, err)

	err = service.SignOut(context.Background(), signedIn.AccessToken, signedIn.RefreshToken, 7)
	assert.NoError(t, err)
	err = service.SignOut(context.Background(), signedIn.AccessToken, signedIn.RefreshToken, 7)
	assert.NoError(t, err)
}

func TestUserFromSubject(t *testing.T) {
	store := &signinStoreMock{user: verifiedUser(t)}
	tracker := lockout.NewMemoryTracker(5, 15*time.Minute)
	service, _, _ := testSigninService(t, store, tracker)

	ud, err := service.UserFromSubject(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, "ayse@kimlik.local", ud.Email)

	_, err = service.UserFromSubject(context.Background(), 99)
	assert.ErrorIs(t, ErrEntityDoesNotExist, err)

	store.user.IsActive = false
	_, err = service.UserFromSubject(context.Background(), 7)
	assert.ErrorIs(t, ErrAccountInactive, err)
}
