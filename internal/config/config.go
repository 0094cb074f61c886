// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	NATS        NATSConfig
	Ingest      IngestConfig
	Scan        ScanConfig
	Match       MatchConfig
	Auth        AuthConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// RedisConfig holds cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// IngestConfig holds ingestion pipeline configuration
type IngestConfig struct {
	FlushInterval time.Duration
	BatchSize     int
	MaxEventAge   time.Duration
	TimeZone      string
}

// ScanConfig holds proximity scanner configuration
type ScanConfig struct {
	ScanInterval       time.Duration
	RadiusKm           float64
	CellPrecision      int
	MaxConcurrentReads int
	EventsTopic        string
}

// MatchConfig holds match engine configuration
type MatchConfig struct {
	EventsTopic string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	TokenSecret string
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "proximate"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_LOCATION_TOPIC", "location-updates"),
			GroupID: getEnv("KAFKA_GROUP_ID", "location-ingest"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Ingest: IngestConfig{
			FlushInterval: getEnvAsDuration("INGEST_FLUSH_INTERVAL", 5*time.Second),
			BatchSize:     getEnvAsInt("INGEST_BATCH_SIZE", 500),
			MaxEventAge:   getEnvAsDuration("INGEST_MAX_EVENT_AGE", 1*time.Hour),
			TimeZone:      getEnv("INGEST_TIME_ZONE", "Asia/Kolkata"),
		},
		Scan: ScanConfig{
			ScanInterval:       getEnvAsDuration("SCAN_INTERVAL", 10*time.Second),
			RadiusKm:           getEnvAsFloat("SCAN_RADIUS_KM", 5.0),
			CellPrecision:      getEnvAsInt("SCAN_CELL_PRECISION", 5),
			MaxConcurrentReads: getEnvAsInt("SCAN_MAX_CONCURRENT_READS", 8),
			EventsTopic:        getEnv("SCAN_EVENTS_TOPIC", "proximity.nearby"),
		},
		Match: MatchConfig{
			EventsTopic: getEnv("MATCH_EVENTS_TOPIC", "proximity.matched"),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("AUTH_TOKEN_SECRET", "your-secret-key"),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Auth.TokenSecret == "your-secret-key" && config.Environment != "development" {
		return fmt.Errorf("token secret must be set in non-development environments")
	}
	if len(config.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Scan.RadiusKm <= 0 {
		return fmt.Errorf("scan radius must be positive")
	}
	if config.Scan.CellPrecision < 1 || config.Scan.CellPrecision > 12 {
		return fmt.Errorf("cell precision must be between 1 and 12")
	}
	if _, err := time.LoadLocation(config.Ingest.TimeZone); err != nil {
		return fmt.Errorf("invalid ingest time zone %q: %w", config.Ingest.TimeZone, err)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
