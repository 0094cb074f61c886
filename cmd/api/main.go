// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"proximate/internal/adapter/cache"
	"proximate/internal/adapter/storage"
	"proximate/internal/config"
	notifyDomain "proximate/internal/domain/notify"
	"proximate/internal/server"
	"proximate/internal/service/ingest"
	matchService "proximate/internal/service/match"
	notifyService "proximate/internal/service/notify"
	"proximate/internal/service/scan"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zone, err := time.LoadLocation(cfg.Ingest.TimeZone)
	if err != nil {
		log.Fatalf("Failed to load time zone: %v", err)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	db, err := initDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := initNATS(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()

	// Initialize adapters
	spatialCache := cache.NewRedisCache(redisClient)
	userStore := storage.NewUserStore(db)

	var notifier notifyDomain.Notifier = notifyService.NewNATSNotifier(natsConn)

	// Initialize ingestion
	pipeline := ingest.NewPipeline(spatialCache, zone, ingest.PipelineConfig{
		CellPrecision: cfg.Scan.CellPrecision,
		MaxEventAge:   cfg.Ingest.MaxEventAge,
	})

	consumer, err := ingest.NewConsumer(pipeline, ingest.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		GroupID:       cfg.Kafka.GroupID,
		FlushInterval: cfg.Ingest.FlushInterval,
		BatchSize:     cfg.Ingest.BatchSize,
	})
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}

	publisher, err := ingest.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zone)
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer publisher.Close()

	// Initialize proximity scanner
	scanner := scan.NewProximityScanner(
		spatialCache,
		notifier,
		natsConn,
		zone,
		scan.ScannerConfig{
			ScanInterval:       cfg.Scan.ScanInterval,
			RadiusKm:           cfg.Scan.RadiusKm,
			CellPrecision:      cfg.Scan.CellPrecision,
			MaxConcurrentReads: cfg.Scan.MaxConcurrentReads,
			EventsTopic:        cfg.Scan.EventsTopic,
		},
	)

	// Initialize match engine
	engine := matchService.NewMatchEngine(spatialCache, natsConn, matchService.EngineConfig{
		EventsTopic: cfg.Match.EventsTopic,
	})

	// Start background services
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start Kafka consumer: %v", err)
	}
	if err := scanner.Start(ctx); err != nil {
		log.Fatalf("Failed to start proximity scanner: %v", err)
	}

	// Initialize HTTP server
	httpServer := server.NewServer(
		cfg.Server,
		cfg.Auth,
		natsConn,
		publisher,
		scanner,
		engine,
		userStore,
	)

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	log.Println("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	log.Println("Shutting down services...")

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop the consumer first so no new positions land mid-shutdown
	if err := consumer.Stop(shutdownCtx); err != nil {
		log.Printf("Kafka consumer shutdown error: %v", err)
	}

	// Stop the proximity scanner
	if err := scanner.Stop(shutdownCtx); err != nil {
		log.Printf("Proximity scanner shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize Redis connection
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping Redis: %w", err)
	}

	return client, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
