// Package main runs the background worker: the asynq task server that indexes
// CVs and the scheduler that enqueues the orphan sweep.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/pathfinder/internal/config"
	"github.com/dharsanguruparan/pathfinder/internal/database"
	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
	"github.com/dharsanguruparan/pathfinder/internal/queue"
	"github.com/dharsanguruparan/pathfinder/internal/repository"
	"github.com/dharsanguruparan/pathfinder/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", "")
		log := logger.Get("worker")
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get("worker")

	if !cfg.UsesDatabase() || !cfg.UsesRedis() {
		log.Fatal().Msg("worker needs PATHFINDER_DATABASE_URL and PATHFINDER_REDIS_ADDR")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	docs, err := docstore.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init document store")
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	server := asynq.NewServer(redisOpt, asynq.Config{Concurrency: cfg.WorkerConcurrency})
	processor := worker.NewProcessor(repository.NewApplicationRepository(pool), docs, cfg.MaxFileSize, cfg.OrphanGrace)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	sweep, err := queue.NewSweepTask(queue.SweepPayload{}, cfg.SweepInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("build sweep task")
	}
	if _, err := scheduler.Register("@every "+cfg.SweepInterval.String(), sweep); err != nil {
		log.Fatal().Err(err).Msg("register sweep")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(processor.Handler()); err != nil {
			return fmt.Errorf("start task server: %w", err)
		}
		<-gctx.Done()
		server.Shutdown()
		return nil
	})
	g.Go(func() error {
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		<-gctx.Done()
		scheduler.Shutdown()
		return nil
	})
	log.Info().Int("concurrency", cfg.WorkerConcurrency).Dur("sweep_interval", cfg.SweepInterval).Msg("worker started")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
}
