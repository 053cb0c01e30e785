package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erdstudio/engine/internal/queue/tasks"
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

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	_ = rdb.Close()

	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.AsynqConcurrency,
		Logger:      log.Sugar().Named("asynq"),
	})

	mux := asynq.NewServeMux()
	handler := tasks.NewSweepTaskHandler(tasks.DatabaseSweep(db))
	mux.HandleFunc(tasks.TypeSweepOrphans, handler.HandleSweep)

	var scheduler *asynq.Scheduler
	if cfg.SweepInterval > 0 {
		scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: log.Sugar().Named("scheduler")})
		task, err := tasks.NewSweepTask("scheduled", time.Now().UTC())
		if err != nil {
			log.Fatal("failed to build sweep task", zap.Error(err))
		}
		entryID, err := scheduler.Register("@every "+cfg.SweepInterval.String(), task)
		if err != nil {
			log.Fatal("failed to register sweep schedule", zap.Error(err))
		}
		log.Info("sweep scheduled", zap.String("entry_id", entryID), zap.Duration("interval", cfg.SweepInterval))
	}

	log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
	if err := srv.Start(mux); err != nil {
		log.Fatal("failed to start worker", zap.Error(err))
	}
	if scheduler != nil {
		if err := scheduler.Start(); err != nil {
			log.Fatal("failed to start scheduler", zap.Error(err))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	if scheduler != nil {
		scheduler.Shutdown()
	}
	// lets in-flight sweeps finish
	srv.Shutdown()
}
