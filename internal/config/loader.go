package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "EXPORTREADY"

// newViper builds a Viper instance with YAML input, EXPORTREADY_ env
// overrides and a "." → "_" key replacer, so "database.host" resolves to
// EXPORTREADY_DATABASE_HOST.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerKeys(v)
	return v
}

// registerKeys seeds viper with every known key. AutomaticEnv only consults
// the environment for keys viper already knows about, so without this an
// env-only deployment would never see its overrides.
func registerKeys(v *viper.Viper) {
	d := Default()
	defaults := map[string]interface{}{
		"log.level":                     d.Log.Level,
		"log.format":                    d.Log.Format,
		"log.output_paths":              d.Log.OutputPaths,
		"storage.backend":               d.Storage.Backend,
		"database.host":                 d.Database.Host,
		"database.port":                 d.Database.Port,
		"database.user":                 d.Database.User,
		"database.password":             d.Database.Password,
		"database.db_name":              d.Database.DBName,
		"database.ssl_mode":             d.Database.SSLMode,
		"database.max_conns":            d.Database.MaxConns,
		"database.max_idle_conns":       d.Database.MaxIdleConns,
		"database.conn_max_lifetime":    d.Database.ConnMaxLifetime,
		"database.conn_max_idle_time":   d.Database.ConnMaxIdleTime,
		"database.auto_migrate":         d.Database.AutoMigrate,
		"mongo.uri":                     d.Mongo.URI,
		"mongo.database":                d.Mongo.Database,
		"mongo.connect_timeout":         d.Mongo.ConnectTimeout,
		"redis.enabled":                 d.Redis.Enabled,
		"redis.addr":                    d.Redis.Addr,
		"redis.password":                d.Redis.Password,
		"redis.db":                      d.Redis.DB,
		"redis.pool_size":               d.Redis.PoolSize,
		"redis.profile_ttl":             d.Redis.ProfileTTL,
		"redis.key_prefix":              d.Redis.KeyPrefix,
		"kafka.enabled":                 d.Kafka.Enabled,
		"kafka.brokers":                 d.Kafka.Brokers,
		"kafka.change_topic":            d.Kafka.ChangeTopic,
		"kafka.acks":                    d.Kafka.Acks,
		"metrics.enabled":               d.Metrics.Enabled,
		"metrics.namespace":             d.Metrics.Namespace,
		"metrics.listen_addr":           d.Metrics.ListenAddr,
		"breaker.enabled":               d.Breaker.Enabled,
		"breaker.failure_threshold":     d.Breaker.FailureThreshold,
		"learning.weights.industry":     d.Learning.Weights.Industry,
		"learning.weights.size":         d.Learning.Weights.Size,
		"learning.weights.product":      d.Learning.Weights.Product,
		"learning.weights.experience":   d.Learning.Weights.Experience,
		"learning.product_aggregation":  d.Learning.ProductAggregation,
		"learning.similarity_threshold": d.Learning.SimilarityThreshold,
		"learning.confidence_cap":       d.Learning.ConfidenceCap,
		"learning.similarity_share":     d.Learning.SimilarityShare,
		"learning.recency_share":        d.Learning.RecencyShare,
		"learning.lookup_tables_path":   d.Learning.LookupTablesPath,
		"learning.watch_lookup_tables":  d.Learning.WatchLookupTables,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load reads the YAML file at configPath, merges EXPORTREADY_* overrides,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from EXPORTREADY_* variables alone.
//
//	EXPORTREADY_<SECTION>_<FIELD>   e.g.  EXPORTREADY_STORAGE_BACKEND=postgres
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch re-parses configPath on every write and hands valid results to
// onChange. Invalid edits are reported to onError (if non-nil) and otherwise
// ignored. Watch does not block.
func Watch(configPath string, onChange func(*Config), onError func(error)) {
	v := newViper()
	v.SetConfigFile(configPath)
	_ = v.ReadInConfig()

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// MustLoad is Load that panics on error, for use in main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
