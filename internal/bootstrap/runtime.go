// Package bootstrap assembles the learning engine from configuration:
// storage backend, optional profile cache, change-event forwarding, metrics
// and the outcome store breaker.
package bootstrap

import (
	"context"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/application/learning"
	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/similarity"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/memory"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/mongodb"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
	"github.com/turtacn/ExportReady-Intelligence/pkg/types/common"
)

// Stores is the set of collections a backend provides.
type Stores struct {
	Profiles   business.ProfileRepository
	Changes    business.ChangeLog
	Outcomes   export.OutcomeRepository
	Patterns   export.PatternRepository
	Selections export.MarketSelectionRepository
}

// HealthChecker checks one backing component.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// Runtime owns every wired component and the resources behind them.
type Runtime struct {
	Config     *config.Config
	Logger     logging.Logger
	Tables     *config.TableStore
	Similarity *similarity.Engine
	Memory     *learning.ExportStrategyMemory
	Engine     *learning.LearningEngine
	Profiles   *learning.ProfileService
	Notifier   *learning.ChangeNotifier
	Metrics    *prometheus.LearningMetrics
	Collector  prometheus.MetricsCollector
	// MetricsServer is nil unless metrics.listen_addr is set.
	MetricsServer *prometheus.Server
	Stores        Stores

	checkers []HealthChecker
	closers  []func(context.Context) error
}

// Options overrides parts of the wiring, mainly for tests.
type Options struct {
	// Stores replaces the configured storage backend.
	Stores *Stores
	Clock  learning.Clock
	NewID  learning.IDGenerator
}

// New wires a Runtime from cfg. On error every resource opened so far is
// released.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, opts Options) (rt *Runtime, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	rt = &Runtime{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
			rt = nil
		}
	}()

	if err = rt.initTables(); err != nil {
		return nil, err
	}
	if err = rt.initMetrics(); err != nil {
		return nil, err
	}

	if opts.Stores != nil {
		rt.Stores = *opts.Stores
	} else if err = rt.initStorage(ctx); err != nil {
		return nil, err
	}

	if cfg.Breaker.Enabled {
		rt.Stores.Outcomes = resilience.NewOutcomeRepository(rt.Stores.Outcomes, cfg.Breaker, rt.Metrics, log)
	}

	rt.Notifier = learning.NewChangeNotifier(log, rt.Metrics)
	if cfg.Redis.Enabled {
		if err = rt.initProfileCache(); err != nil {
			return nil, err
		}
	}
	if cfg.Kafka.Enabled {
		if err = rt.initChangeForwarding(); err != nil {
			return nil, err
		}
	}

	if err = rt.initServices(opts); err != nil {
		return nil, err
	}

	log.Info("learning engine ready",
		logging.String("storage", cfg.Storage.Backend),
		logging.Bool("cache", cfg.Redis.Enabled),
		logging.Bool("kafka", cfg.Kafka.Enabled),
		logging.Bool("breaker", cfg.Breaker.Enabled),
		logging.String("tables_version", rt.Tables.Version()),
	)
	return rt, nil
}

func (rt *Runtime) initTables() error {
	path := rt.Config.Learning.LookupTablesPath
	if path == "" {
		rt.Tables = config.NewTableStore(nil)
		return nil
	}
	t, err := config.LoadLookupTables(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeLookupTablesInvalid, "failed to load lookup tables").WithDetail("path=" + path)
	}
	rt.Tables = config.NewTableStore(t)
	if rt.Config.Learning.WatchLookupTables {
		log := rt.Logger.Named("lookup_tables")
		w, err := rt.Tables.WatchLookupTables(path, func(version string, err error) {
			if err != nil {
				log.Warn("lookup table reload rejected", logging.Err(err))
				return
			}
			log.Info("lookup tables reloaded", logging.String("version", version))
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfiguration, "failed to watch lookup tables")
		}
		rt.closers = append(rt.closers, func(context.Context) error { return w.Close() })
	}
	return nil
}

func (rt *Runtime) initMetrics() error {
	mc := rt.Config.Metrics
	namespace := mc.Namespace
	if namespace == "" {
		namespace = "exportready"
	}
	c, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            namespace,
		Subsystem:            mc.Subsystem,
		EnableProcessMetrics: mc.Enabled,
		EnableGoMetrics:      mc.Enabled,
	}, rt.Logger)
	if err != nil {
		return err
	}
	rt.Collector = c
	rt.Metrics = prometheus.NewLearningMetrics(c)
	if mc.ListenAddr == "" {
		return nil
	}
	srv, err := prometheus.StartServer(mc.ListenAddr, c, rt.Logger)
	if err != nil {
		return err
	}
	rt.MetricsServer = srv
	rt.closers = append(rt.closers, srv.Shutdown)
	return nil
}

func (rt *Runtime) initStorage(ctx context.Context) error {
	cfg := rt.Config
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		conn, err := postgres.NewConnection(cfg.Database, rt.Logger)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return conn.Close() })
		rt.checkers = append(rt.checkers, namedCheck{"postgres", conn.HealthCheck})
		if cfg.Database.AutoMigrate {
			if err := migrateUp(cfg.Database, rt.Logger); err != nil {
				return err
			}
		}
		rt.Stores = Stores{
			Profiles:   repositories.NewProfileRepository(conn, rt.Logger),
			Changes:    repositories.NewChangeLog(conn, rt.Logger),
			Outcomes:   repositories.NewOutcomeRepository(conn, rt.Logger),
			Patterns:   repositories.NewPatternRepository(conn, rt.Logger),
			Selections: repositories.NewMarketSelectionRepository(conn, rt.Logger),
		}

	case config.BackendMongoDB:
		store, err := mongodb.NewStore(ctx, cfg.Mongo, rt.Logger)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, store.Close)
		rt.checkers = append(rt.checkers, namedCheck{"mongodb", store.Ping})
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		rt.Stores = Stores{
			Profiles:   store.Profiles(),
			Changes:    store.Changes(),
			Outcomes:   store.Outcomes(),
			Patterns:   store.Patterns(),
			Selections: store.Selections(),
		}

	default:
		store := memory.NewStore()
		rt.Stores = Stores{
			Profiles:   store.Profiles(),
			Changes:    store.Changes(),
			Outcomes:   store.Outcomes(),
			Patterns:   store.Patterns(),
			Selections: store.Selections(),
		}
	}
	return nil
}

func migrateUp(cfg config.DatabaseConfig, log logging.Logger) error {
	m, err := postgres.NewMigrator(cfg, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

func (rt *Runtime) initProfileCache() error {
	rc := rt.Config.Redis
	client, err := redis.NewClient(rc, rt.Logger)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
	rt.checkers = append(rt.checkers, namedCheck{"redis", client.Ping})

	var opts []redis.CacheOption
	if rc.KeyPrefix != "" {
		opts = append(opts, redis.WithPrefix(rc.KeyPrefix))
	}
	if rc.ProfileTTL > 0 {
		opts = append(opts, redis.WithDefaultTTL(rc.ProfileTTL))
	}
	cached := redis.NewCachedProfileRepository(rt.Stores.Profiles,
		redis.NewRedisCache(client, rt.Logger, opts...), 0, rt.Logger, rt.Metrics)
	rt.Stores.Profiles = cached
	rt.Notifier.Subscribe("profile_cache", cached)
	return nil
}

func (rt *Runtime) initChangeForwarding() error {
	kc := rt.Config.Kafka
	producer, err := kafka.NewProducer(kc, rt.Logger)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, func(context.Context) error { return producer.Close() })
	rt.Notifier.Subscribe("kafka", kafka.NewChangeEventPublisher(producer, kc.ChangeTopic, rt.Logger))
	return nil
}

func (rt *Runtime) initServices(opts Options) error {
	lc := rt.Config.Learning
	agg, err := similarity.ParseProductAggregation(lc.ProductAggregation)
	if err != nil {
		return err
	}
	rt.Similarity, err = similarity.NewEngine(rt.Tables,
		similarity.WithWeights(similarity.Weights{
			Industry:   lc.Weights.Industry,
			Size:       lc.Weights.Size,
			Product:    lc.Weights.Product,
			Experience: lc.Weights.Experience,
		}),
		similarity.WithAggregation(agg))
	if err != nil {
		return err
	}

	rt.Memory, err = learning.NewExportStrategyMemory(learning.MemoryDeps{
		Outcomes: rt.Stores.Outcomes,
		Patterns: rt.Stores.Patterns,
		Scorer:   rt.Similarity,
		Regions:  rt.Tables,
		Params: learning.MemoryParams{
			SimilarityThreshold: lc.SimilarityThreshold,
			ConfidenceCap:       lc.ConfidenceCap,
			SimilarityShare:     lc.SimilarityShare,
			RecencyShare:        lc.RecencyShare,
		},
		Logger:  rt.Logger,
		Metrics: rt.Metrics,
		Clock:   opts.Clock,
		NewID:   opts.NewID,
	})
	if err != nil {
		return err
	}

	tracker, err := learning.NewProfileChangeTracker(learning.TrackerDeps{
		ChangeLog: rt.Stores.Changes,
		Publisher: rt.Notifier,
		Logger:    rt.Logger,
		Metrics:   rt.Metrics,
		Clock:     opts.Clock,
		NewID:     opts.NewID,
	})
	if err != nil {
		return err
	}
	rt.Profiles, err = learning.NewProfileService(rt.Stores.Profiles, rt.Stores.Changes, tracker, rt.Logger)
	if err != nil {
		return err
	}

	rt.Engine, err = learning.NewLearningEngine(learning.EngineDeps{
		Profiles:   rt.Stores.Profiles,
		Strategies: rt.Memory,
		Selections: rt.Stores.Selections,
		Logger:     rt.Logger,
		Metrics:    rt.Metrics,
		Clock:      opts.Clock,
		NewID:      opts.NewID,
	})
	return err
}

// Health checks every backing component. The in-memory backend has none.
func (rt *Runtime) Health(ctx context.Context) []common.ComponentHealth {
	out := make([]common.ComponentHealth, 0, len(rt.checkers))
	for _, c := range rt.checkers {
		start := time.Now()
		err := c.Check(ctx)
		h := common.ComponentHealth{Name: c.Name(), Status: common.HealthUp, Latency: time.Since(start)}
		if err != nil {
			h.Status = common.HealthDown
			h.Message = err.Error()
		}
		out = append(out, h)
	}
	return out
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close(ctx context.Context) error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.Logger.Warn("failed to release resource", logging.Err(err))
			if first == nil {
				first = err
			}
		}
	}
	rt.closers = nil
	return first
}

type namedCheck struct {
	name  string
	check func(context.Context) error
}

func (n namedCheck) Name() string                    { return n.name }
func (n namedCheck) Check(ctx context.Context) error { return n.check(ctx) }
