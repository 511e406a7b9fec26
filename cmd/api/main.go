package main

import (
	"context"
	"net/http"
	"os"

	"github.com/dcastillo/authcore-backend/api/handlers"
	"github.com/dcastillo/authcore-backend/api/routes"
	"github.com/dcastillo/authcore-backend/internal/accounts"
	"github.com/dcastillo/authcore-backend/internal/mailer"
	"github.com/dcastillo/authcore-backend/pkg/config"
	"github.com/dcastillo/authcore-backend/pkg/db"
	"github.com/dcastillo/authcore-backend/pkg/logger"
	"github.com/dcastillo/authcore-backend/pkg/migrate"
	"github.com/dcastillo/authcore-backend/pkg/redis"
	"github.com/dcastillo/authcore-backend/pkg/security"
	"github.com/dcastillo/authcore-backend/pkg/tokens"
	"github.com/joho/godotenv"
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

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

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
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	mailClient, err := mailer.New(cfg.SMTP, cfg.App.FrontendURL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mailer", err)
		os.Exit(1)
	}

	accountsService, err := accounts.NewService(accounts.ServiceParams{
		Repo:      accounts.NewRepository(dbClient.DB()),
		Hasher:    security.NewHasher(cfg.Password),
		Tokens:    tokens.NewGenerator(),
		Mailer:    mailClient,
		Logger:    logg,
		JWTConfig: cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	readyDeps := handlers.Deps(map[string]handlers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
		"smtp":     mailClient,
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
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, accountsService, readyDeps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
