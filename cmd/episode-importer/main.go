package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/bingefriend/episode-importer/pkg/api"
	"github.com/bingefriend/episode-importer/pkg/config"
	"github.com/bingefriend/episode-importer/pkg/episodes"
	"github.com/bingefriend/episode-importer/pkg/importer"
	"github.com/bingefriend/episode-importer/pkg/logging"
	"github.com/bingefriend/episode-importer/pkg/monitor"
	"github.com/bingefriend/episode-importer/pkg/queue"
	"github.com/bingefriend/episode-importer/pkg/retry"
	"github.com/bingefriend/episode-importer/pkg/tablestore"
	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

const reclaimInterval = time.Minute

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	logging.Setup(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	if err := episodes.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Database migration failed")
	}
	repository := episodes.NewRepository(db)

	store := tablestore.NewStore(redisClient)

	workQueue, err := queue.New(redisClient, queue.Config{
		Name:              cfg.Queue.Name,
		MaxDeliveries:     cfg.Queue.MaxDeliveries,
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Queue setup failed")
	}

	tracker, err := monitor.New(store, repository, monitor.DefaultConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Tracker setup failed")
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Importer.MaxAttempts
	policy.InitialBackoff = cfg.Importer.InitialBackoff
	policy.MaxBackoff = cfg.Importer.MaxBackoff
	coordinator := retry.NewCoordinator(policy, tracker)

	clientCfg := tvmaze.DefaultConfig()
	clientCfg.BaseURL = cfg.TVMaze.BaseURL
	clientCfg.Timeout = cfg.TVMaze.Timeout
	clientCfg.RequestsPerSecond = cfg.TVMaze.RequestsPerSecond
	clientCfg.Burst = cfg.TVMaze.Burst
	client, err := tvmaze.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("TVMaze client setup failed")
	}

	importCfg := importer.DefaultConfig()
	importCfg.BatchSize = cfg.Importer.BatchSize
	importCfg.CatalogTable = cfg.Importer.CatalogTable
	importCfg.CatalogPartition = cfg.Importer.CatalogPartition

	enumerator, err := importer.NewEnumerator(store, importCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Enumerator setup failed")
	}
	dispatcher, err := importer.NewDispatcher(workQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("Dispatcher setup failed")
	}
	processor, err := importer.NewProcessor(enumerator, dispatcher, tracker, client, repository, coordinator, importCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Processor setup failed")
	}
	service, err := importer.NewService(enumerator, processor, tracker, workQueue, client, coordinator, importCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Service setup failed")
	}
	consumer, err := importer.NewConsumer(workQueue, processor, coordinator, cfg.Importer.Workers)
	if err != nil {
		log.Fatal().Err(err).Msg("Consumer setup failed")
	}

	// Replaying a failed unit means pushing its original message back
	// through the processor.
	coordinator.RegisterReplayer(importer.OperationShowEpisodes, func(ctx context.Context, op retry.FailedOperation) error {
		if len(op.Payload) == 0 {
			return fmt.Errorf("failed operation %s has no payload to replay", op.Identifier)
		}
		return processor.HandleMessage(ctx, op.Payload)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		workQueue.RunReclaimer(ctx, reclaimInterval)
	}()

	if cfg.Updates.Enabled {
		scheduler, err := importer.NewUpdatesScheduler(service, cfg.Updates.Schedule, tvmaze.Period(cfg.Updates.Period))
		if err != nil {
			log.Fatal().Err(err).Msg("Updates scheduler setup failed")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
	}

	server := api.NewServer(service, repository)
	go func() {
		if err := server.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()
	log.Info().
		Str("addr", cfg.Server.Addr).
		Int("workers", cfg.Importer.Workers).
		Bool("updates_enabled", cfg.Updates.Enabled).
		Msg("Episode importer started")

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	wg.Wait()
}
