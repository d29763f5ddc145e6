package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sepetli/kimlik/api/app/meta"
	"github.com/sepetli/kimlik/api/app/users"
	"github.com/sepetli/kimlik/config"
	"github.com/sepetli/kimlik/registration"
	"github.com/sepetli/kimlik/tokens"
	"github.com/sepetli/kimlik/user"
	"go.uber.org/zap"
)

var validate *validator.Validate

func compose(logger *zap.Logger,
	cfg *config.Configuration,
	userService *user.Service,
	signInService *user.SigninService,
	verifier *tokens.TokenVerifier,
	dataStore meta.DatabasePinger,
	pending registration.Store,
	rdb *redis.Client) (*chi.Mux, error) {
	validate = validator.New()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(loggerMiddleware(logger))

	r.Use(middleware.Recoverer)

	r.Use(middleware.Timeout(50 * time.Second))

	if cfg.CORS != nil {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           300,
		}))
	}

	if cfg.DebugMode() {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("running in debug mode - no auto redirects to site"))
		})
	} else {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, cfg.Behaviour.Site, http.StatusFound)
		})
	}

	limits := users.RouteLimits{}
	if cfg.Limits != nil {
		limits = users.RouteLimits{
			Register:      rateLimiter(logger, rdb, "register", cfg.Limits.Register),
			Login:         rateLimiter(logger, rdb, "login", cfg.Limits.Login),
			Refresh:       rateLimiter(logger, rdb, "refresh", cfg.Limits.Refresh),
			PasswordReset: rateLimiter(logger, rdb, "password_reset", cfg.Limits.PasswordReset),
		}
	}

	usersRessource := users.NewUsersRessource(
		logger.Named("users_ressource"),
		userService,
		signInService,
		validate,
		verifier,
		limits,
	)
	metaRessource := meta.NewMetaRessource(
		logger.Named("meta_ressource"),
		dataStore,
		pending,
	)

	r.Mount("/users", usersRessource.Router())

	// lives outside /users for compatibility with the storefront clients
	r.Post("/resend-verification", usersRessource.ResendVerification)

	r.Mount("/healthz", metaRessource.Router())

	return r, nil
}
