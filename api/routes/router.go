package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiranalabs/merchant-admin-api/api/controllers"
	"github.com/kiranalabs/merchant-admin-api/api/middleware"
	"github.com/kiranalabs/merchant-admin-api/internal/auth"
	"github.com/kiranalabs/merchant-admin-api/internal/dashboard"
	"github.com/kiranalabs/merchant-admin-api/internal/merchants"
	"github.com/kiranalabs/merchant-admin-api/internal/users"
	"github.com/kiranalabs/merchant-admin-api/pkg/config"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
	"github.com/kiranalabs/merchant-admin-api/pkg/logger"
	"github.com/kiranalabs/merchant-admin-api/pkg/metrics"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config           *config.Config
	Logger           *logger.Logger
	HealthChecks     map[string]controllers.Pinger
	RateStore        middleware.RateLimiterStore
	Metrics          *metrics.HTTPMetrics
	MetricsGatherer  prometheus.Gatherer
	Sessions         middleware.AccessSessionChecker
	AuthService      auth.Service
	RegisterService  auth.RegisterService
	UsersService     users.Service
	MerchantsService merchants.Service
	DashboardService dashboard.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	refreshPolicy := middleware.NewAuthRateLimitPolicy(
		"refresh",
		cfg.AuthRateLimit.RefreshWindow,
		cfg.AuthRateLimit.RefreshIPLimit,
		0,
	)
	forgotPolicy := middleware.NewAuthRateLimitPolicy(
		"forgot",
		cfg.AuthRateLimit.ForgotWindow,
		cfg.AuthRateLimit.ForgotIPLimit,
		cfg.AuthRateLimit.ForgotEmailLimit,
	)
	resetPolicy := middleware.NewAuthRateLimitPolicy(
		"reset",
		cfg.AuthRateLimit.ResetWindow,
		cfg.AuthRateLimit.ResetIPLimit,
		cfg.AuthRateLimit.ResetEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.HealthChecks))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.RateStore, logg)).
			Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(refreshPolicy, deps.RateStore, logg)).
			Post("/refresh", controllers.AuthRefresh(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(forgotPolicy, deps.RateStore, logg)).
			Post("/forgot-password", controllers.AuthForgotPassword(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(resetPolicy, deps.RateStore, logg)).
			Post("/reset-password", controllers.AuthResetPassword(deps.AuthService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Post("/logout", controllers.AuthLogout(deps.AuthService, logg))
			r.With(
				middleware.RequireRoles(logg, enums.RoleSuperAdmin),
				middleware.AuthRateLimit(registerPolicy, deps.RateStore, logg),
			).Post("/register", controllers.AuthRegister(deps.RegisterService, logg))
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

		r.Get("/dashboard", controllers.DashboardOverview(deps.DashboardService, logg))

		r.Route("/settings", func(r chi.Router) {
			r.Get("/profile", controllers.SettingsProfile(deps.UsersService, logg))
			r.Patch("/profile", controllers.SettingsUpdateProfile(deps.UsersService, logg))
			r.Post("/change-password", controllers.SettingsChangePassword(deps.UsersService, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.RoleSuperAdmin))
			r.Get("/", controllers.UsersList(deps.UsersService, logg))
			r.Post("/", controllers.UsersCreate(deps.UsersService, logg))
			r.Get("/{userId}", controllers.UsersGet(deps.UsersService, logg))
			r.Put("/{userId}", controllers.UsersUpdate(deps.UsersService, logg))
			r.Delete("/{userId}", controllers.UsersDelete(deps.UsersService, logg))
			r.Post("/{userId}/restore", controllers.UsersRestore(deps.UsersService, logg))
		})

		r.With(middleware.RequireRoles(logg, enums.RoleSuperAdmin, enums.RoleAdmin)).
			Get("/merchant-owners", controllers.MerchantOwnersList(deps.UsersService, logg))

		r.Route("/merchants", func(r chi.Router) {
			r.Get("/", controllers.MerchantsList(deps.MerchantsService, logg))
			r.Get("/{merchantId}", controllers.MerchantsGet(deps.MerchantsService, logg))
			r.Put("/{merchantId}", controllers.MerchantsUpdate(deps.MerchantsService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(logg, enums.RoleSuperAdmin, enums.RoleAdmin))
				r.Post("/", controllers.MerchantsCreate(deps.MerchantsService, logg))
				r.Delete("/{merchantId}", controllers.MerchantsDelete(deps.MerchantsService, logg))
			})
		})
	})

	return r
}
