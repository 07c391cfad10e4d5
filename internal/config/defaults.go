package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultStorageBackend = BackendMemory

	DefaultDBHost            = "localhost"
	DefaultDBPort            = 5432
	DefaultDBUser            = "exportready"
	DefaultDBName            = "exportready"
	DefaultDBSSLMode         = "disable"
	DefaultDBMaxConns        = 20
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = 30 * time.Minute
	DefaultDBConnMaxIdleTime = 5 * time.Minute

	DefaultMongoURI            = "mongodb://localhost:27017"
	DefaultMongoDatabase       = "exportready"
	DefaultMongoConnectTimeout = 10 * time.Second

	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisPoolSize   = 10
	DefaultRedisTimeout    = 3 * time.Second
	DefaultRedisProfileTTL = 15 * time.Minute
	DefaultRedisKeyPrefix  = "exportready:"

	DefaultKafkaBroker      = "localhost:9092"
	DefaultKafkaChangeTopic = "exportready.profile.significant-changes"
	DefaultKafkaAcks        = "one"
	DefaultKafkaMaxRetries  = 3
	DefaultKafkaBatchSize   = 100

	DefaultMetricsNamespace = "exportready"
	DefaultMetricsSubsystem = "learning"

	DefaultBreakerMaxRequests      = 5
	DefaultBreakerInterval         = 30 * time.Second
	DefaultBreakerTimeout          = 60 * time.Second
	DefaultBreakerFailureThreshold = 0.6
	DefaultBreakerMinRequests      = 5

	DefaultIndustryWeight      = 0.3
	DefaultSizeWeight          = 0.2
	DefaultProductWeight       = 0.4
	DefaultExperienceWeight    = 0.1
	DefaultProductAggregation  = AggregationBestMatch
	DefaultSimilarityThreshold = 0.7
	DefaultConfidenceCap       = 0.95
	DefaultSimilarityShare     = 0.8
	DefaultRecencyShare        = 0.2
)

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields in cfg. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = DefaultDBSSLMode
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = DefaultDBConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = DefaultDBConnMaxIdleTime
	}

	// ── Mongo ─────────────────────────────────────────────────────────────────
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = DefaultMongoURI
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = DefaultMongoDatabase
	}
	if cfg.Mongo.ConnectTimeout == 0 {
		cfg.Mongo.ConnectTimeout = DefaultMongoConnectTimeout
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = DefaultRedisTimeout
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = DefaultRedisTimeout
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = DefaultRedisTimeout
	}
	if cfg.Redis.ProfileTTL == 0 {
		cfg.Redis.ProfileTTL = DefaultRedisProfileTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.ChangeTopic == "" {
		cfg.Kafka.ChangeTopic = DefaultKafkaChangeTopic
	}
	if cfg.Kafka.Acks == "" {
		cfg.Kafka.Acks = DefaultKafkaAcks
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = DefaultKafkaBatchSize
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}

	// ── Breaker ───────────────────────────────────────────────────────────────
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker.MaxRequests = DefaultBreakerMaxRequests
	}
	if cfg.Breaker.Interval == 0 {
		cfg.Breaker.Interval = DefaultBreakerInterval
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = DefaultBreakerTimeout
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = DefaultBreakerFailureThreshold
	}
	if cfg.Breaker.MinRequests == 0 {
		cfg.Breaker.MinRequests = DefaultBreakerMinRequests
	}

	// ── Learning ──────────────────────────────────────────────────────────────
	ApplyLearningDefaults(&cfg.Learning)
}

// ApplyLearningDefaults fills zero-value learning parameters. Weights are
// defaulted as a group: an all-zero weight set means "not configured".
func ApplyLearningDefaults(l *LearningConfig) {
	if l.Weights == (SimilarityWeights{}) {
		l.Weights = SimilarityWeights{
			Industry:   DefaultIndustryWeight,
			Size:       DefaultSizeWeight,
			Product:    DefaultProductWeight,
			Experience: DefaultExperienceWeight,
		}
	}
	if l.ProductAggregation == "" {
		l.ProductAggregation = DefaultProductAggregation
	}
	if l.SimilarityThreshold == 0 {
		l.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if l.ConfidenceCap == 0 {
		l.ConfidenceCap = DefaultConfidenceCap
	}
	if l.SimilarityShare == 0 && l.RecencyShare == 0 {
		l.SimilarityShare = DefaultSimilarityShare
		l.RecencyShare = DefaultRecencyShare
	}
}
