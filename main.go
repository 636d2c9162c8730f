package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctionhouse/internal/config"
	"auctionhouse/internal/database/db_client"
	"auctionhouse/internal/events"
	"auctionhouse/internal/http/http_server"
	"auctionhouse/internal/redis/redis_client"
	"auctionhouse/internal/redis/watcher/listingwatcher"
	"auctionhouse/internal/services/bidding"
	"auctionhouse/internal/services/engagement"
	"auctionhouse/internal/services/listing"
	"auctionhouse/internal/settler"
	"auctionhouse/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client + schema
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()
	if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Services
	publisher := events.NewPublisher(redisClient)
	listingService := listing.NewListingService(pgDb, redisClient, publisher,
		cfg.DefaultDurationDays, cfg.MaxDurationDays)
	biddingService := bidding.NewBiddingService(pgDb, publisher)
	engagementService := engagement.NewEngagementService(pgDb)

	// 6. Background: key-expiry watcher settles listings as soon as they expire
	go listingwatcher.Run(ctx, redisClient, listingService)

	// 7. Background: 30 s expired-listing sweep
	settler.Run(ctx, listingService)

	// 8. WebSockets hub + Redis fan-out
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, listingService, biddingService)

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv,
		listingService, biddingService, engagementService)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
