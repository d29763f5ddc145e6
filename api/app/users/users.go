package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sepetli/kimlik/api/auth"
	"github.com/sepetli/kimlik/db"
	"github.com/sepetli/kimlik/user"
	"go.uber.org/zap"
)

// RouteLimits carries the per-endpoint rate limit middlewares, a nil
// entry means the endpoint is not limited
type RouteLimits struct {
	Register      func(http.Handler) http.Handler
	Login         func(http.Handler) http.Handler
	Refresh       func(http.Handler) http.Handler
	PasswordReset func(http.Handler) http.Handler
}

// UsersRessource contains the registration and session endpoints
type UsersRessource struct {
	logger     *zap.Logger
	userSignIn *user.SigninService
	service    *user.Service
	validate   *validator.Validate
	verifier   auth.TokenVerifier
	limits     RouteLimits
}

func (u *UsersRessource) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Group(func(ri chi.Router) {
		if u.limits.Register != nil {
			ri.Use(u.limits.Register)
		}
		ri.Post("/register", u.register)
		ri.Post("/verify-email", u.verifyEmail)
	})

	r.Group(func(ri chi.Router) {
		if u.limits.Login != nil {
			ri.Use(u.limits.Login)
		}
		ri.Post("/login", u.login)
	})

	r.Group(func(ri chi.Router) {
		if u.limits.Refresh != nil {
			ri.Use(u.limits.Refresh)
		}
		ri.Post("/refresh", u.refresh)
	})

	r.Group(func(ri chi.Router) {
		if u.limits.PasswordReset != nil {
			ri.Use(u.limits.PasswordReset)
		}
		ri.Post("/password-reset-request", u.passwordResetRequest)
	})
	r.Post("/password-reset", u.passwordReset)

	r.Group(func(ri chi.Router) {
		ri.Use(auth.Authenticator(u.verifier))
		ri.Post("/logout", u.logout)
		ri.Get("/me", u.me)
	})

	return r
}

func mapUserResponse(ud *db.UserData) *userResponse {
	return &userResponse{
		ID:         ud.ID,
		Email:      ud.Email,
		FirstName:  ud.FirstName,
		LastName:   ud.LastName,
		Phone:      ud.Phone,
		Address:    ud.Address,
		IsAdmin:    ud.IsAdmin,
		IsVerified: ud.IsVerified,
		LastLogin:  ud.LastLogin,
	}
}

func NewUsersRessource(logger *zap.Logger,
	service *user.Service,
	userSignIn *user.SigninService,
	validate *validator.Validate,
	verifier auth.TokenVerifier,
	limits RouteLimits) *UsersRessource {
	return &UsersRessource{
		logger:     logger,
		service:    service,
		userSignIn: userSignIn,
		validate:   validate,
		verifier:   verifier,
		limits:     limits,
	}
}
