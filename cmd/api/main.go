package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/kiranalabs/merchant-admin-api/api/controllers"
	"github.com/kiranalabs/merchant-admin-api/api/routes"
	"github.com/kiranalabs/merchant-admin-api/internal/activity"
	"github.com/kiranalabs/merchant-admin-api/internal/auth"
	"github.com/kiranalabs/merchant-admin-api/internal/dashboard"
	"github.com/kiranalabs/merchant-admin-api/internal/merchants"
	"github.com/kiranalabs/merchant-admin-api/internal/tokens"
	"github.com/kiranalabs/merchant-admin-api/internal/users"
	"github.com/kiranalabs/merchant-admin-api/pkg/config"
	"github.com/kiranalabs/merchant-admin-api/pkg/db"
	"github.com/kiranalabs/merchant-admin-api/pkg/logger"
	"github.com/kiranalabs/merchant-admin-api/pkg/metrics"
	"github.com/kiranalabs/merchant-admin-api/pkg/migrate"
	"github.com/kiranalabs/merchant-admin-api/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	userRepo := users.NewRepository(dbClient.DB())
	merchantRepo := merchants.NewRepository(dbClient.DB())
	accessRepo := tokens.NewAccessRepository(dbClient.DB())
	refreshRepo := tokens.NewRefreshRepository(dbClient.DB())
	recorder := activity.NewRecorder(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		DB:             dbClient,
		Users:          userRepo,
		AccessTokens:   accessRepo,
		RefreshTokens:  refreshRepo,
		Recorder:       recorder,
		ResetStore:     redisClient,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Users:          userRepo,
		AccessTokens:   accessRepo,
		RefreshTokens:  refreshRepo,
		Recorder:       recorder,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.ServiceParams{
		DB:             dbClient,
		Users:          userRepo,
		Merchants:      merchantRepo,
		AccessTokens:   accessRepo,
		Recorder:       recorder,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	merchantsService, err := merchants.NewService(merchants.ServiceParams{
		DB:        dbClient,
		Merchants: merchantRepo,
		Recorder:  recorder,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create merchants service", err)
		os.Exit(1)
	}

	dashboardService, err := dashboard.NewService(dashboard.ServiceParams{
		Users:     userRepo,
		Merchants: merchantRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboard service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	handler := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		HealthChecks: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		RateStore:        redisClient,
		Metrics:          httpMetrics,
		MetricsGatherer:  registry,
		Sessions:         accessRepo,
		AuthService:      authService,
		RegisterService:  registerService,
		UsersService:     usersService,
		MerchantsService: merchantsService,
		DashboardService: dashboardService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor := tokens.NewJanitor(accessRepo, refreshRepo, logg)
	go janitor.Run(runCtx, tokens.DefaultSweepInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}
