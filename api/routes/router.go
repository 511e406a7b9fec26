package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authcontrollers "github.com/dcastillo/authcore-backend/api/controllers/auth"
	usercontrollers "github.com/dcastillo/authcore-backend/api/controllers/users"
	"github.com/dcastillo/authcore-backend/api/handlers"
	"github.com/dcastillo/authcore-backend/api/middleware"
	"github.com/dcastillo/authcore-backend/internal/accounts"
	"github.com/dcastillo/authcore-backend/pkg/config"
	"github.com/dcastillo/authcore-backend/pkg/logger"
	"github.com/dcastillo/authcore-backend/pkg/redis"
)

// NewRouter assembles the full HTTP surface: health probes, the public auth
// endpoints, and the authenticated user endpoints.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	accountsService accounts.Service,
	readyDeps map[string]handlers.Pinger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.LoginPolicy(cfg.AuthRateLimit)
	signupPolicy := middleware.SignupPolicy(cfg.AuthRateLimit)
	resetPolicy := middleware.ResetPolicy(cfg.AuthRateLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", handlers.HealthLive(cfg))
		r.Get("/ready", handlers.HealthReady(cfg, logg, readyDeps))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(signupPolicy, redisClient, logg)).
			Post("/signup", authcontrollers.Signup(accountsService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/login", authcontrollers.Login(accountsService, logg))
		r.Get("/verify-email", authcontrollers.VerifyEmail(accountsService, logg))
		r.With(middleware.AuthRateLimit(resetPolicy, redisClient, logg)).
			Post("/forgot-password", authcontrollers.ForgotPassword(accountsService, logg))
		r.Post("/reset-password", authcontrollers.ResetPassword(accountsService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/me", authcontrollers.Me(accountsService, logg))
		})
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", usercontrollers.Index(accountsService, logg))
		r.Post("/change-password", usercontrollers.ChangePassword(accountsService, logg))
		r.Put("/profile", usercontrollers.UpdateProfile(accountsService, logg))
	})

	return r
}
