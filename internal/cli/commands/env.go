package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/conduit-lang/dynres/internal/cache"
	"github.com/conduit-lang/dynres/internal/cli/config"
	"github.com/conduit-lang/dynres/internal/logging"
	"github.com/conduit-lang/dynres/pkg/invoker"
	"github.com/conduit-lang/dynres/pkg/invoker/awsinvoker"
	"github.com/conduit-lang/dynres/pkg/metadata"
	"github.com/conduit-lang/dynres/pkg/metadata/bundled"
	"github.com/conduit-lang/dynres/pkg/resources"

	// SQL drivers for metadata.sql.driver
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// environment is everything a command needs, built from the config
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	cache   *cache.Documents
	sql     *metadata.SQLSource
	store   *metadata.Store
	session *resources.Session

	metricsRegistry *prometheus.Registry
	metrics         *invoker.Metrics

	awsOnce sync.Once
	awsCfg  aws.Config
	awsErr  error

	closers []func() error
}

func (a *app) open(ctx context.Context) (*environment, error) {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	env := &environment{
		cfg:             cfg,
		logger:          logger,
		metricsRegistry: prometheus.NewRegistry(),
	}
	env.closers = append(env.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	if env.metrics, err = invoker.NewMetrics(env.metricsRegistry); err != nil {
		env.Close()
		return nil, err
	}

	sources, err := env.openSources(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}

	if err := env.openCache(ctx); err != nil {
		env.Close()
		return nil, err
	}

	opts := []metadata.StoreOption{
		metadata.WithLogger(logger),
		metadata.WithPinnedVersions(cfg.Metadata.Pinned),
	}
	if env.cache != nil {
		opts = append(opts, metadata.WithSharedCache(env.cache))
	}
	env.store = metadata.NewStore(sources, opts...)

	base := a.invokers
	if base == nil {
		base = env.awsInvoker
	}
	provider := func(ctx context.Context, service string) (invoker.Invoker, error) {
		inv, err := base(ctx, service)
		if err != nil {
			return nil, err
		}
		return env.instrument(inv), nil
	}
	env.session = resources.NewSession(env.store,
		resources.WithLogger(logger),
		resources.WithInvokerProvider(provider),
	)

	if cfg.Metadata.Watch && len(cfg.Metadata.Dirs) > 0 {
		w, err := env.session.WatchDirs(ctx, cfg.Metadata.Dirs...)
		if err != nil {
			logger.Warn("metadata watch disabled", zap.Error(err))
		} else {
			env.closers = append(env.closers, w.Stop)
		}
	}

	return env, nil
}

// openSources builds the search order: directories, then SQL, then bundled
func (e *environment) openSources(ctx context.Context) ([]metadata.Source, error) {
	var sources []metadata.Source
	for _, dir := range e.cfg.Metadata.Dirs {
		sources = append(sources, metadata.NewDirSource(dir))
	}

	if sc := e.cfg.Metadata.SQL; sc.Enabled() {
		db, err := sql.Open(sc.Driver, sc.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata database: %w", err)
		}
		e.closers = append(e.closers, db.Close)

		opts := []metadata.SQLOption{metadata.WithTable(sc.Table)}
		if sc.Driver == "pgx" {
			opts = append(opts, metadata.WithDollarPlaceholders())
		}
		e.sql = metadata.NewSQLSource(db, opts...)
		if err := e.sql.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sources = append(sources, e.sql)
	}

	if e.cfg.Metadata.Bundled {
		sources = append(sources, bundled.Source())
	}

	if len(sources) == 0 {
		return nil, errors.New("no metadata sources configured")
	}
	return sources, nil
}

func (e *environment) openCache(ctx context.Context) error {
	if e.cfg.Cache.Backend != config.CacheRedis {
		return nil
	}

	rc, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     e.cfg.Cache.Redis.Addr,
		Password: e.cfg.Cache.Redis.Password,
		DB:       e.cfg.Cache.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis cache: %w", err)
	}
	e.closers = append(e.closers, rc.Close)
	e.cache = cache.NewDocuments(rc,
		cache.WithPrefix(e.cfg.Cache.Prefix),
		cache.WithTTL(e.cfg.Cache.TTL),
	)
	return nil
}

// awsInvoker builds an AWS client adapter for service, loading the AWS config once
func (e *environment) awsInvoker(ctx context.Context, service string) (invoker.Invoker, error) {
	e.awsOnce.Do(func() {
		e.awsCfg, e.awsErr = awsinvoker.LoadConfig(ctx, e.cfg.AWS.Region, e.cfg.AWS.Endpoint)
	})
	if e.awsErr != nil {
		return nil, e.awsErr
	}

	adapter, err := awsinvoker.NewForService(service, e.awsCfg)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

// instrument wraps inv with tracing, logging and metrics
func (e *environment) instrument(inv invoker.Invoker) invoker.Invoker {
	return invoker.Chain(inv,
		invoker.WithTracing(nil),
		invoker.WithLogging(e.logger),
		invoker.WithMetrics(e.metrics),
	)
}

// Close releases resources in reverse order of acquisition
func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && e.logger != nil {
			e.logger.Debug("close failed", zap.Error(err))
		}
	}
	e.closers = nil
}
