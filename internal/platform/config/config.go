package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by LEDGER_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string
	Store         StoreConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
}

// StoreConfig selects and locates the transaction store.
type StoreConfig struct {
	Backend       string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
}

// RedisConfig configures the optional verify cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig configures the optional receipt feed. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	BufferSize int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          getEnv("LEDGER_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSigningKey: getEnv("JWT_SECRET", "dev-secret-key-change-in-production"),
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("LEDGER_STORE", StoreMemory)),
			DatabaseURL:   os.Getenv("DATABASE_URL"),
			MongoURI:      os.Getenv("MONGODB_URI"),
			MongoDatabase: getEnv("MONGODB_DATABASE", "licitacoes"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "ledger.receipts"),
		},
	}

	var err error
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return Server{}, err
	}
	if cfg.Redis.MinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Server{}, err
	}
	if cfg.Redis.DialTimeout, err = getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.ReadTimeout, err = getDuration("REDIS_READ_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.WriteTimeout, err = getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.CacheTTL, err = getDuration("LEDGER_CACHE_TTL", time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.Kafka.BufferSize, err = getInt("KAFKA_RECEIPT_BUFFER", 1024); err != nil {
		return Server{}, err
	}

	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	switch s.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if s.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when LEDGER_STORE=%s", StorePostgres)
		}
	case StoreMongo:
		if s.Store.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when LEDGER_STORE=%s", StoreMongo)
		}
	default:
		return fmt.Errorf("unknown LEDGER_STORE %q", s.Store.Backend)
	}
	if s.Redis.CacheTTL <= 0 {
		return fmt.Errorf("LEDGER_CACHE_TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
