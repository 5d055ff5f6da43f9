package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/conversation"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/scheduling"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Runtime holds the process-wide dependencies shared by the API and worker binaries.
type Runtime struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry

	Pool  *pgxpool.Pool
	DB    *sql.DB
	Redis *redis.Client

	Scheduling          *scheduling.Service
	Engine              *conversation.Engine
	Queue               conversation.Queue
	ConversationMetrics *metrics.ConversationMetrics

	closers []func()
}

// Build connects storage, selects the phrasing provider and queue, and wires
// the scheduling service and conversation engine. Without DATABASE_URL the
// scheduling data lives in memory; without REDIS_ADDR so do sessions.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rt := &Runtime{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	pool, db, err := BuildPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		rt.Pool, rt.DB = pool, db
		rt.closers = append(rt.closers, pool.Close, func() { _ = db.Close() })
	}

	var repo scheduling.Repository
	if rt.Pool != nil {
		repo = scheduling.NewPostgresRepository(rt.Pool)
	} else {
		logger.Warn("DATABASE_URL not set; scheduling data is kept in memory")
		repo = scheduling.NewMemoryRepository()
	}
	rt.Scheduling = scheduling.NewService(repo,
		scheduling.WithLogger(logger),
		scheduling.WithMetrics(metrics.NewSchedulingMetrics(rt.Registry)),
	)

	var sessions conversation.SessionStore
	if rt.Redis = BuildRedisClient(ctx, cfg, logger, true); rt.Redis != nil {
		rt.closers = append(rt.closers, func() { _ = rt.Redis.Close() })
		sessions = conversation.NewRedisSessionStore(rt.Redis)
	} else {
		logger.Warn("redis unavailable; conversation sessions are kept in memory")
		sessions = conversation.NewMemorySessionStore()
	}

	phrasingClient, closePhrasing, err := BuildPhrasingClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closePhrasing)

	rt.ConversationMetrics = metrics.NewConversationMetrics(rt.Registry)
	opts := []conversation.EngineOption{
		conversation.WithEngineLogger(logger),
		conversation.WithEngineMetrics(rt.ConversationMetrics),
		conversation.WithSessionTTL(cfg.SessionTTL),
		conversation.WithHistoryLimit(cfg.SessionHistoryLimit),
	}
	if phrasingClient != nil {
		opts = append(opts, conversation.WithPhraser(conversation.NewPhraser(phrasingClient,
			conversation.WithPhrasingTimeout(cfg.PhrasingTimeout),
			conversation.WithPhrasingLogger(logger),
			conversation.WithPhrasingMetrics(rt.ConversationMetrics),
		)))
	}
	if cfg.PersistTranscripts {
		if rt.DB != nil {
			opts = append(opts, conversation.WithTranscriptArchive(conversation.NewSQLTranscriptArchive(rt.DB)))
			logger.Info("transcript archive enabled")
		} else {
			logger.Warn("PERSIST_TRANSCRIPTS set without DATABASE_URL; transcripts are not archived")
		}
	}
	rt.Engine = conversation.NewEngine(sessions, rt.Scheduling, opts...)

	if rt.Queue, err = BuildQueue(ctx, cfg, logger); err != nil {
		return nil, err
	}

	ok = true
	return rt, nil
}

// MetricsHandler exposes the runtime registry for GET /metrics.
func (rt *Runtime) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{})
}

// Close releases connections in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// BuildPostgres opens a pgx pool and a database/sql handle over the same pool.
// An empty URL returns nil handles.
func BuildPostgres(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, *sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, stdlib.OpenDBFromPool(pool), nil
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
