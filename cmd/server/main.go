// Package main runs the PathFinder HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/pathfinder/internal/api"
	"github.com/dharsanguruparan/pathfinder/internal/auth"
	"github.com/dharsanguruparan/pathfinder/internal/catalog"
	"github.com/dharsanguruparan/pathfinder/internal/config"
	"github.com/dharsanguruparan/pathfinder/internal/database"
	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
	"github.com/dharsanguruparan/pathfinder/internal/queue"
	"github.com/dharsanguruparan/pathfinder/internal/repository"
	"github.com/dharsanguruparan/pathfinder/internal/session"
	"github.com/dharsanguruparan/pathfinder/internal/signing"
	"github.com/dharsanguruparan/pathfinder/internal/storage"
	"github.com/dharsanguruparan/pathfinder/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", "")
		log := logger.Get("main")
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		jobs  catalog.Jobs
		apps  workflow.Applications
		users auth.Users
	)
	if cfg.UsesDatabase() {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect database")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("ensure schema")
		}
		jobs = repository.NewJobRepository(pool)
		apps = repository.NewApplicationRepository(pool)
		users = repository.NewUserRepository(pool)
	} else {
		log.Warn().Msg("PATHFINDER_DATABASE_URL not set; using in-memory store")
		mem := storage.NewMemoryStore()
		jobs, apps, users = mem.Jobs(), mem.Applications(), mem.Users()
	}

	docs, err := docstore.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init document store")
	}

	var (
		sessions session.Store = session.NewMemoryStore(cfg.SessionTTL)
		enqueuer workflow.Enqueuer
	)
	if cfg.UsesRedis() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL)

		client := queue.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		enqueuer = client
	} else {
		log.Warn().Msg("PATHFINDER_REDIS_ADDR not set; sessions are in-memory and CVs are not indexed")
	}

	srv := api.New(cfg, api.Deps{
		Applications: workflow.NewService(jobs, apps, docs, enqueuer),
		Jobs:         catalog.NewService(jobs),
		Auth:         auth.NewService(users, sessions),
		Documents:    docs,
		Signer:       signing.NewSigner(cfg.SigningSecret, cfg.SignedURLTTL),
	})
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
