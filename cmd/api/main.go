package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/erdstudio/engine/internal/api"
	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/queue/tasks"
	"github.com/erdstudio/engine/internal/services"
	"github.com/erdstudio/engine/pkg/config"
	"github.com/erdstudio/engine/pkg/database"
	"github.com/erdstudio/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting ledger api",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("driver", cfg.DatabaseDriver),
	)

	ctx := context.Background()
	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if cfg.DatabaseDriver == "sqlite" {
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			log.Fatal("failed to migrate sqlite database", zap.Error(err))
		}
	}
	log.Info("database connected")

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		if cfg.AppEnv == "production" {
			log.Fatal("JWT_SECRET must be set in production")
		}
		log.Warn("JWT_SECRET not set, using an insecure development secret")
		secret = []byte("dev-only-secret-change-me")
	}

	var opts []services.Option
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		opts = append(opts, services.WithSweeper(tasks.NewSweepEnqueuer(client)))
		log.Info("orphan sweeps enabled", zap.String("redis", cfg.RedisAddr))
	} else {
		log.Warn("REDIS_ADDR not set, failed cascades will not schedule sweeps")
	}

	dep := api.NewDependencies(db, secret, opts...)
	dep.RateLimit = cfg.RateLimit

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(dep),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
