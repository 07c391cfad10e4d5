package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.InDelta(t, 1.0, cfg.Learning.Weights.Sum(), 1e-9)
	assert.Equal(t, 0.3, cfg.Learning.Weights.Industry)
	assert.Equal(t, 0.2, cfg.Learning.Weights.Size)
	assert.Equal(t, 0.4, cfg.Learning.Weights.Product)
	assert.Equal(t, 0.1, cfg.Learning.Weights.Experience)
	assert.Equal(t, 0.7, cfg.Learning.SimilarityThreshold)
	assert.Equal(t, 0.95, cfg.Learning.ConfidenceCap)
	assert.Equal(t, AggregationBestMatch, cfg.Learning.ProductAggregation)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Storage:  StorageConfig{Backend: BackendPostgres},
		Database: DatabaseConfig{Host: "db.internal", Port: 6543},
		Learning: LearningConfig{
			Weights:             SimilarityWeights{Industry: 0.25, Size: 0.25, Product: 0.25, Experience: 0.25},
			SimilarityThreshold: 0.65,
		},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, DefaultDBName, cfg.Database.DBName)
	assert.Equal(t, 0.25, cfg.Learning.Weights.Industry)
	assert.Equal(t, 0.65, cfg.Learning.SimilarityThreshold)
	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_NilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad backend", func(c *Config) { c.Storage.Backend = "sqlite" }, "storage.backend"},
		{"postgres port", func(c *Config) {
			c.Storage.Backend = BackendPostgres
			c.Database.Port = 70000
		}, "database.port"},
		{"postgres user", func(c *Config) {
			c.Storage.Backend = BackendPostgres
			c.Database.User = ""
		}, "database.user"},
		{"mongo uri", func(c *Config) {
			c.Storage.Backend = BackendMongoDB
			c.Mongo.URI = ""
		}, "mongo.uri"},
		{"redis addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"kafka brokers", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}, "kafka.brokers"},
		{"breaker threshold", func(c *Config) {
			c.Breaker.Enabled = true
			c.Breaker.FailureThreshold = 1.5
		}, "breaker.failure_threshold"},
		{"weights sum", func(c *Config) { c.Learning.Weights.Industry = 0.5 }, "sum to 1"},
		{"negative weight", func(c *Config) {
			c.Learning.Weights = SimilarityWeights{Industry: -0.1, Size: 0.3, Product: 0.7, Experience: 0.1}
		}, "learning.weights.industry"},
		{"aggregation", func(c *Config) { c.Learning.ProductAggregation = "max" }, "product_aggregation"},
		{"threshold", func(c *Config) { c.Learning.SimilarityThreshold = 1 }, "similarity_threshold"},
		{"cap", func(c *Config) { c.Learning.ConfidenceCap = 1.2 }, "confidence_cap"},
		{"shares", func(c *Config) { c.Learning.RecencyShare = 0.5 }, "recency_share"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
