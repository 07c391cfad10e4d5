// Package config defines the configuration structures of the learning engine
// together with defaults, validation and the viper-backed loader. The
// versioned lookup tables consumed by the similarity engine and the outcome
// memory live in tables.go.
package config

import (
	"fmt"
	"math"
	"time"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
)

// Product aggregation modes.
const (
	AggregationBestMatch     = "best_match"
	AggregationCartesianMean = "cartesian_mean"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// LogConfig mirrors logging.LogConfig.
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// StorageConfig selects the backend for the append/query collections.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "memory" | "postgres" | "mongodb"
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds the profile cache connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ProfileTTL   time.Duration `mapstructure:"profile_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the change-event producer parameters.
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	ChangeTopic string   `mapstructure:"change_topic"`
	Acks        string   `mapstructure:"acks"` // "none" | "one" | "all"
	MaxRetries  int      `mapstructure:"max_retries"`
	BatchSize   int      `mapstructure:"batch_size"`
	Compression string   `mapstructure:"compression"`
}

// MetricsConfig holds Prometheus registration parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	// ListenAddr serves /metrics when non-empty, e.g. ":9102".
	ListenAddr string `mapstructure:"listen_addr"`
}

// BreakerConfig tunes the circuit breaker in front of outcome persistence.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	MinRequests      uint32        `mapstructure:"min_requests"`
}

// SimilarityWeights are the sub-score weights; they must sum to 1.
type SimilarityWeights struct {
	Industry   float64 `mapstructure:"industry"`
	Size       float64 `mapstructure:"size"`
	Product    float64 `mapstructure:"product"`
	Experience float64 `mapstructure:"experience"`
}

// Sum returns the total weight.
func (w SimilarityWeights) Sum() float64 {
	return w.Industry + w.Size + w.Product + w.Experience
}

// LearningConfig tunes similarity scoring and strategy retrieval.
type LearningConfig struct {
	Weights             SimilarityWeights `mapstructure:"weights"`
	ProductAggregation  string            `mapstructure:"product_aggregation"`
	SimilarityThreshold float64           `mapstructure:"similarity_threshold"`
	ConfidenceCap       float64           `mapstructure:"confidence_cap"`
	SimilarityShare     float64           `mapstructure:"similarity_share"`
	RecencyShare        float64           `mapstructure:"recency_share"`
	LookupTablesPath    string            `mapstructure:"lookup_tables_path"`
	WatchLookupTables   bool              `mapstructure:"watch_lookup_tables"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Learning LearningConfig `mapstructure:"learning"`
}

const weightTolerance = 1e-9

// Validate checks cross-field consistency. It is called after ApplyDefaults,
// so only explicitly wrong values fail.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
		}
	case BackendMongoDB:
		if c.Mongo.URI == "" {
			return fmt.Errorf("config: mongo.uri is required")
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("config: mongo.database is required")
		}
	default:
		return fmt.Errorf("config: storage.backend %q is invalid; expected memory|postgres|mongodb", c.Storage.Backend)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis is enabled")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.ChangeTopic == "" {
			return fmt.Errorf("config: kafka.change_topic is required when kafka is enabled")
		}
	}

	if c.Breaker.Enabled && (c.Breaker.FailureThreshold <= 0 || c.Breaker.FailureThreshold > 1) {
		return fmt.Errorf("config: breaker.failure_threshold must be in (0, 1], got %v", c.Breaker.FailureThreshold)
	}

	return c.Learning.Validate()
}

// Validate checks the learning parameters on their own so that hot-reloaded
// values can be vetted without a full Config.
func (l *LearningConfig) Validate() error {
	w := l.Weights
	for name, v := range map[string]float64{
		"industry": w.Industry, "size": w.Size, "product": w.Product, "experience": w.Experience,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: learning.weights.%s must be in [0, 1], got %v", name, v)
		}
	}
	if math.Abs(w.Sum()-1) > weightTolerance {
		return fmt.Errorf("config: learning.weights must sum to 1, got %v", w.Sum())
	}
	switch l.ProductAggregation {
	case AggregationBestMatch, AggregationCartesianMean:
	default:
		return fmt.Errorf("config: learning.product_aggregation %q is invalid; expected best_match|cartesian_mean", l.ProductAggregation)
	}
	if l.SimilarityThreshold < 0 || l.SimilarityThreshold >= 1 {
		return fmt.Errorf("config: learning.similarity_threshold must be in [0, 1), got %v", l.SimilarityThreshold)
	}
	if l.ConfidenceCap <= 0 || l.ConfidenceCap > 1 {
		return fmt.Errorf("config: learning.confidence_cap must be in (0, 1], got %v", l.ConfidenceCap)
	}
	if math.Abs(l.SimilarityShare+l.RecencyShare-1) > weightTolerance {
		return fmt.Errorf("config: learning.similarity_share + recency_share must equal 1")
	}
	return nil
}
