package users

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sepetli/kimlik/config"
	"github.com/sepetli/kimlik/db"
	"github.com/sepetli/kimlik/events"
	"github.com/sepetli/kimlik/lockout"
	"github.com/sepetli/kimlik/registration"
	"github.com/sepetli/kimlik/tokens"
	"github.com/sepetli/kimlik/user"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type fakeDispatcher struct{}

func (*fakeDispatcher) Dispatch(_ context.Context, _ events.Event) {}

type sentMail struct {
	to   string
	code string
}

type fakeMailer struct {
	verificationMails []sentMail
	resetMails        []sentMail
}

func (f *fakeMailer) SendVerificationMail(to string, _ string, code string) error {
	f.verificationMails = append(f.verificationMails, sentMail{to: to, code: code})
	return nil
}

func (f *fakeMailer) SendPasswordResetMail(to string, _ string, token string) error {
	f.resetMails = append(f.resetMails, sentMail{to: to, code: token})
	return nil
}

type fakeRevoker struct {
	decoder *tokens.TokenVerifier
}

func (f *fakeRevoker) Add(_ context.Context, raw string, _ string) (*tokens.Claims, error) {
	return f.decoder.DecodeExpired(raw)
}

// fakeStore backs both the registration and the signin service in the
// handler tests
type fakeStore struct {
	users       map[int64]*db.UserData
	sessions    []*db.SessionData
	resetTokens map[string]*db.ResetTokenData
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[int64]*db.UserData),
		resetTokens: make(map[string]*db.ResetTokenData),
	}
}

func (m *fakeStore) UserByEmail(_ context.Context, email string, isAdmin bool) (*db.UserData, error) {
	for _, ud := range m.users {
		if ud.Email == email && ud.IsAdmin == isAdmin {
			return ud, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *fakeStore) UserByID(_ context.Context, id int64) (*db.UserData, error) {
	if ud, ok := m.users[id]; ok {
		return ud, nil
	}
	return nil, db.ErrNotFound
}

func (m *fakeStore) IsRegistered(_ context.Context, email string, isAdmin bool) (bool, error) {
	_, err := m.UserByEmail(context.Background(), email, isAdmin)
	return err == nil, nil
}

func (m *fakeStore) UnverifiedUserExists(_ context.Context, email string) (bool, error) {
	for _, ud := range m.users {
		if ud.Email == email && !ud.IsVerified {
			return true, nil
		}
	}
	return false, nil
}

func (m *fakeStore) InsertUser(_ context.Context, nu db.NewUser) (int64, error) {
	if taken, _ := m.IsRegistered(context.Background(), nu.Email, nu.IsAdmin); taken {
		return 0, db.ErrAlreadyExists
	}
	m.nextID++
	m.users[m.nextID] = &db.UserData{
		ID:           m.nextID,
		Email:        nu.Email,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Phone:        nu.Phone,
		Address:      nu.Address,
		IsActive:     nu.IsActive,
		IsVerified:   nu.IsVerified,
		IsAdmin:      nu.IsAdmin,
		PasswordHash: []byte(nu.Password),
		CreatedAt:    time.Now().UTC(),
	}
	return m.nextID, nil
}

func (m *fakeStore) SetLastLogin(_ context.Context, id int64, ip *string) error {
	if ud, ok := m.users[id]; ok {
		now := time.Now().UTC()
		ud.LastLogin = &now
		ud.LastLoginIP = ip
	}
	return nil
}

func (m *fakeStore) SetPassword(_ context.Context, id int64, passwordHash string) error {
	if ud, ok := m.users[id]; ok {
		ud.PasswordHash = []byte(passwordHash)
		return nil
	}
	return db.ErrNotFound
}

func (m *fakeStore) InsertSession(_ context.Context, session db.NewSession) (int64, error) {
	id := int64(len(m.sessions) + 1)
	m.sessions = append(m.sessions, &db.SessionData{
		ID:           id,
		UserID:       session.UserID,
		SessionToken: session.SessionToken,
		RefreshToken: session.RefreshToken,
		IsActive:     true,
		ExpiresAt:    session.ExpiresAt,
		CreatedAt:    time.Now().UTC(),
	})
	return id, nil
}

func (m *fakeStore) ActiveSessionByRefreshToken(_ context.Context, refreshToken string) (*db.SessionData, error) {
	for _, s := range m.sessions {
		if s.RefreshToken == refreshToken && s.IsActive && s.ExpiresAt.After(time.Now().UTC()) {
			return s, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *fakeStore) TouchSession(_ context.Context, id int64, sessionToken string) error {
	for _, s := range m.sessions {
		if s.ID == id {
			s.SessionToken = sessionToken
		}
	}
	return nil
}

func (m *fakeStore) DeactivateSession(_ context.Context, refreshToken string, userID int64) (int64, error) {
	for _, s := range m.sessions {
		if s.RefreshToken == refreshToken && s.UserID == userID && s.IsActive {
			s.IsActive = false
			return s.ID, nil
		}
	}
	return 0, nil
}

func (m *fakeStore) DeactivateSessionsForUser(_ context.Context, userID int64) (int64, error) {
	var count int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			count++
		}
	}
	return count, nil
}

func (m *fakeStore) InsertResetToken(
	_ context.Context,
	userID int64,
	token string,
	expiresAt time.Time,
) (int64, error) {
	id := int64(len(m.resetTokens) + 1)
	m.resetTokens[token] = &db.ResetTokenData{
		ID:        id,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return id, nil
}

func (m *fakeStore) UsableResetToken(_ context.Context, token string) (*db.ResetTokenData, error) {
	if data, ok := m.resetTokens[token]; ok && !data.IsUsed && data.ExpiresAt.After(time.Now().UTC()) {
		return data, nil
	}
	return nil, db.ErrNotFound
}

func (m *fakeStore) ConsumeResetToken(_ context.Context, id int64) error {
	for _, data := range m.resetTokens {
		if data.ID == id && !data.IsUsed {
			data.IsUsed = true
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *fakeStore) seedVerifiedUser(t *testing.T, email string, password string) int64 {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)
	id, err := m.InsertUser(context.Background(), db.NewUser{
		Email:      email,
		Password:   string(hashed),
		FirstName:  "Ayşe",
		LastName:   "Yılmaz",
		IsVerified: true,
		IsActive:   true,
	})
	assert.NoError(t, err)
	return id
}

func testRessource(t *testing.T) (*UsersRessource, *fakeStore, *fakeMailer) {
	logger := zaptest.NewLogger(t)
	store := newFakeStore()
	mailer := &fakeMailer{}
	dispatcher := &fakeDispatcher{}
	behaviour := &config.BehaviourConfiguration{
		Name:                   "kimlik",
		Site:                   "https://kimlik.local",
		MaxLoginAttempts:       5,
		LockoutDuration:        15 * time.Minute,
		PasswordMinLength:      8,
		PendingRegistrationTTL: 24 * time.Hour,
		PasswordResetExpiry:    time.Hour,
	}
	service := user.New(
		store,
		registration.NewMemoryStore(behaviour.PendingRegistrationTTL),
		logger,
		behaviour,
		mailer,
		dispatcher,
	)
	issuer := tokens.NewIssuer(logger, &config.JWTConfiguration{
		Algorithm:          "HS256",
		Issuer:             "kimlik.test",
		Audience:           []string{"kimlik.test"},
		Expiry:             30 * time.Minute,
		RefreshTokenExpiry: 168 * time.Hour,
		HMACSigningKey:     "all-your-base-are-belong-to-us-1234567890",
	})
	verifier := tokens.NewTokenVerifier(logger, issuer, nil)
	tracker := lockout.NewMemoryTracker(behaviour.MaxLoginAttempts, behaviour.LockoutDuration)
	signIn := user.NewSignInService(
		store,
		logger,
		tracker,
		issuer,
		verifier,
		&fakeRevoker{decoder: verifier},
		dispatcher,
	)
	ressource := NewUsersRessource(logger, service, signIn, validator.New(), verifier, RouteLimits{})
	return ressource, store, mailer
}

type loginResult struct {
	User struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	} `json:"tokens"`
	Message string `json:"message"`
}

func doLogin(t *testing.T, router http.Handler, email string, password string) loginResult {
	result := apitest.New().
		Handler(router).
		Post("/login").
		JSON(map[string]interface{}{"email": email, "password": password}).
		Expect(t).
		Status(http.StatusOK).
		End()
	var res loginResult
	err := json.NewDecoder(result.Response.Body).Decode(&res)
	assert.NoError(t, err)
	return res
}

func TestRegisterEndpoint(t *testing.T) {
	ressource, store, mailer := testRessource(t)

	apitest.New().
		Handler(ressource.Router()).
		Post("/register").
		JSON(map[string]interface{}{
			"email":      "Ayse@Kimlik.local",
			"password":   "Sifre123!",
			"first_name": "Ayşe",
			"last_name":  "Yılmaz",
		}).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"Kayıt alındı. Doğrulama kodu e-posta adresinize gönderildi.","email":"ayse@kimlik.local"}`).
		End()

	//still pending, nothing persisted
	assert.Empty(t, store.users)
	assert.Len(t, mailer.verificationMails, 1)
}

func TestRegisterEndpointMissingFields(t *testing.T) {
	ressource, _, _ := testRessource(t)

	apitest.New().
		Handler(ressource.Router()).
		Post("/register").
		JSON(map[string]interface{}{"email": "ayse@kimlik.local"}).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"validation_error","message":"Eksik veya hatalı alanlar var: e-posta, şifre, ad ve soyad zorunludur."}`).
		End()
}

func TestRegisterEndpointWeakPassword(t *testing.T) {
	ressource, _, _ := testRessource(t)

	apitest.New().
		Handler(ressource.Router()).
		Post("/register").
		JSON(map[string]interface{}{
			"email":      "ayse@kimlik.local",
			"password":   "zayif",
			"first_name": "Ayşe",
			"last_name":  "Yılmaz",
		}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestRegisterEndpointTakenEmail(t *testing.T) {
	ressource, store, _ := testRessource(t)
	store.seedVerifiedUser(t, "ayse@kimlik.local", "Sifre123!")

	apitest.New().
		Handler(ressource.Router()).
		Post("/register").
		JSON(map[string]interface{}{
			"email":      "ayse@kimlik.local",
			"password":   "Sifre123!",
			"first_name": "Ayşe",
			"last_name":  "Yılmaz",
		}).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"conflict","message":"Bu e-posta adresi ile bir hesap zaten mevcut."}`).
		End()
}

func TestVerifyEmailEndpoint(t *testing.T) {
	ressource, store, mailer := testRessource(t)
	router := ressource.Router()

	apitest.New().
		Handler(router).
		Post("/register").
		JSON(map[string]interface{}{
			"email":      "ayse@kimlik.local",
			"password":   "Sifre123!",
			"first_name": "Ayşe",
			"last_name":  "Yılmaz",
		}).
		Expect(t).
		Status(http.StatusOK).
		End()

	code := mailer.verificationMails[0].code
	apitest.New().
		Handler(router).
		Post("/verify-email").
		JSON(map[string]interface{}{"email": "ayse@kimlik.local", "code": code}).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"E-posta adresiniz doğrulandı. Artık giriş yapabilirsiniz.","success":true}`).
		End()

	//the account exists now and can sign in
	assert.Len(t, store.users, 1)
	doLogin(t, router, "ayse@kimlik.local", "Sifre123!")
}

func TestVerifyEmailEndpointWrongCode(t *testing.T) {
	ressource, _, mailer := testRessource(t)
	router := ressource.Router()

	apitest.New().
		Handler(router).
		Post("/register").
		JSON(map[string]interface{}{
			"email":      "ayse@kimlik.local",
			"password":   "Sifre123!",
			"first_name": "Ayşe",
			"last_name":  "Yılmaz",
		}).
		Expect(t).
		Status(http.StatusOK).
		End()

	wrong := "000000"
	if mailer.verificationMails[0].code == wrong {
		wrong = "000001"
	}
	apitest.New().
		Handler(router).
		Post("/verify-email").
		JSON(map[string]interface{}{"email": "ayse@kimlik.local", "code": wrong}).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"validation_error","message":"Doğrulama kodu hatalı veya süresi dolmuş."}`).
		End()
}

func TestLoginEndpoint(t *testing.T) {
	ressource, store, _ := testRessource(t)
	store.seedVerifiedUser(t, "ayse@kimlik.local", "Sifre123!")

	res := doLogin(t, ressource.Router(), "ayse@kimlik.local", "Sifre123!")
	assert.Equal(t, "ayse@kimlik.local", res.User.Email)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, int64(1800), res.Tokens.ExpiresIn)
	assert.Equal(t, "Giriş başarılı.", res.Message)
	assert.Len(t, store.sessions, 1)
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	ressource, store, _ := testRessource(t)
	store.seedVerifiedUser(t, "ayse@kimlik.local", "Sifre123!")

	apitest.New().
		Handler(ressource.Router()).
		Post("/login").
		JSON(map[string]interface{}{"email": "ayse@kimlik.local", "password": "YanlisSifre1!"}).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(`{"error":"authentication_error","message":"E-posta veya şifre hatalı."}`).
		End()
}

func TestLoginEndpointLockout(t *testing.T) {
	ressource, store, _ := testRessource(t)
	store.seedVerifiedUser(t, "ayse@kimlik.local", "Sifre123!")
	router := ressource.Router()

	for i := 0; i < 5; i++ {
		apitest.New().
			Handler(router).
			Post("/login").
			JSON(map[string]interface{}{"email": "ayse@kimlik.local", "password": "YanlisSifre1!"}).
			Expect(t).
			Status(http.StatusUnauthorized).
			End()
	}

	//the right password no longer helps
	apitest.New().
		Handler(router).
		Post("/login").
		JSON(map[string]interface{}{"email": "ayse@kimlik.local", "password": "Sifre123!"}).
		Expect(t).
		Status(http.StatusLocked).
		End()
}

func TestLoginEndpointUnverified(t *testing.T) {
	ressource, store, _ := testRessource(t)
	hashed, err := bcrypt.GenerateFromPassword([]byte("Sifre123!"), bcrypt.MinCost)
	assert.NoError(t, err)
	_, err = store.InsertUser(context.Background(), db.NewUser{
		Email:    "ayse@kimlik.local",
		Password: string(hashed),
		IsActive: true,
	})
	assert.NoError(t, err)

	apitest.New().
		Handler(ressource.Router()).
		Post("/login").
		JSON(map[string]interface{}{"email": "ayse@kimlik.local", "password": "Sifre123!"}).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(`{"error":"authentication_error","message":"E-posta adresiniz henüz doğrulanmamış. Lütfen gelen kutunuzu kontrol edin."}`).
		End()
}

func TestRefreshEndpoint(t *testing.T) {
	ressource, store, _ := testRessource(t)
	store.seedVerifiedUser(t, "ayse@kimlik.local", "Sifre123!")
	router := ressource.Router()

	signedIn := doLogin(t, router, "ayse@kimlik.local", "Sifre123!")

	result := apitest.New().
		Handler(router).
		Post("/refresh").
		JSON(map[string]interface{}{"refresh_token": signedIn.Tokens.RefreshToken}).
		Expect(t).
		Status(http.StatusOK).
		End()

	var res struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	err := json.NewDecoder(result.Response.Body).Decode(&res)
	assert.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, int64(1800), res.ExpiresIn)

	//the session keeps its refresh token
	assert.Equal(t, signedIn.Tokens.RefreshToken, store.sessions[0].RefreshToken)
}

func TestRefreshEndpointInvalidToken(t *testing.T) {
	ressource, _, _ := testRessource(t)

	apitest.New().
		Handler(ressource.Router()).
		Post("/refresh").
		JSON(map[string]interface{}{"refresh_token": "not.a.token"}).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(`{"error":"authentication_error","message":"Oturum geçersiz veya süresi dolmuş. Lütfen tekrar giriş yapın."}`).
		End()
}

func TestLogoutEndpoint(t *testing.T) {
	ressource, store, _ := testRessource(t)
	store.seedVerifiedUser(t, "ayse@kimlik.local", "Sifre123!")
	router := ressource.Router()

	signedIn := doLogin(t, router, "ayse@kimlik.local", "Sifre123!")

	apitest.New().
		Handler(router).
		Post("/logout").
		Header("Authorization", "Bearer "+signedIn.Tokens.AccessToken).
		JSON(map[string]interface{}{"refresh_token": signedIn.Tokens.RefreshToken}).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"Çıkış yapıldı."}`).
		End()

	assert.False(t, store.sessions[0].IsActive)

	//logging out twice is fine
	apitest.New().
		Handler(router).
		Post("/logout").
		Header("Authorization", "Bearer "+signedIn.Tokens.AccessToken).
		JSON(map[string]interface{}{"refresh_token": signedIn.Tokens.RefreshToken}).
		Expect(t).
		Status(http.StatusOK).
		End()
}

func TestLogoutEndpointRequiresToken(t *testing.T) {
	ressource, _, _ := testRessource(t)

	apitest.New().
		Handler(ressource.Router()).
		Post("/logout").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestMeEndpoint(t *testing.T) {
	ressource, store, _ := testRessource(t)
	store.seedVerifiedUser(t, "ayse@kimlik.local", "Sifre123!")
	router := ressource.Router()

	signedIn := doLogin(t, router, "ayse@kimlik.local", "Sifre123!")

	result := apitest.New().
		Handler(router).
		Get("/me").
		Header("Authorization", "Bearer "+signedIn.Tokens.AccessToken).
		Expect(t).
		Status(http.StatusOK).
		End()

	var res struct {
		Email string `json:"email"`
	}
	err := json.NewDecoder(result.Response.Body).Decode(&res)
	assert.NoError(t, err)
	assert.Equal(t, "ayse@kimlik.local", res.Email)
}

func TestResendVerificationEndpoint(t *testing.T) {
	ressource, _, mailer := testRessource(t)
	router := ressource.Router()

	apitest.New().
		Handler(router).
		Post("/register").
		JSON(map[string]interface{}{
			"email":      "ayse@kimlik.local",
			"password":   "Sifre123!",
			"first_name": "Ayşe",
			"last_name":  "Yılmaz",
		}).
		Expect(t).
		Status(http.StatusOK).
		End()

	apitest.New().
		HandlerFunc(ressource.ResendVerification).
		Post("/resend-verification").
		Query("email", "ayse@kimlik.local").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"Yeni doğrulama kodu e-posta adresinize gönderildi."}`).
		End()

	assert.Len(t, mailer.verificationMails, 2)
}

func TestResendVerificationEndpointNothingPending(t *testing.T) {
	ressource, _, _ := testRessource(t)

	apitest.New().
		HandlerFunc(ressource.ResendVerification).
		Post("/resend-verification").
		Query("email", "ayse@kimlik.local").
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"not_found","message":"Bekleyen bir kayıt bulunamadı."}`).
		End()
}

func TestPasswordResetFlow(t *testing.T) {
	ressource, store, mailer := testRessource(t)
	store.seedVerifiedUser(t, "ayse@kimlik.local", "Sifre123!")
	router := ressource.Router()

	apitest.New().
		Handler(router).
		Post("/password-reset-request").
		JSON(map[string]interface{}{"email": "ayse@kimlik.local"}).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"Eğer bu e-posta adresi kayıtlıysa, şifre sıfırlama bağlantısı gönderildi."}`).
		End()

	token := mailer.resetMails[0].code
	apitest.New().
		Handler(router).
		Post("/password-reset").
		JSON(map[string]interface{}{"token": token, "password": "YeniSifre1!"}).
		Expect(t).
		Status(http.StatusOK).
		End()

	//old password is out, the new one works
	apitest.New().
		Handler(router).
		Post("/login").
		JSON(map[string]interface{}{"email": "ayse@kimlik.local", "password": "Sifre123!"}).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	doLogin(t, router, "ayse@kimlik.local", "YeniSifre1!")
}

func TestPasswordResetRequestUnknownAddress(t *testing.T) {
	ressource, _, mailer := testRessource(t)

	//same answer as for a known address
	apitest.New().
		Handler(ressource.Router()).
		Post("/password-reset-request").
		JSON(map[string]interface{}{"email": "nope@kimlik.local"}).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"Eğer bu e-posta adresi kayıtlıysa, şifre sıfırlama bağlantısı gönderildi."}`).
		End()
	assert.Empty(t, mailer.resetMails)
}

func TestPasswordResetExpiredToken(t *testing.T) {
	ressource, _, _ := testRessource(t)

	apitest.New().
		Handler(ressource.Router()).
		Post("/password-reset").
		JSON(map[string]interface{}{"token": "nope", "password": "YeniSifre1!"}).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"validation_error","message":"Şifre sıfırlama bağlantısı geçersiz veya süresi dolmuş."}`).
		End()
}
