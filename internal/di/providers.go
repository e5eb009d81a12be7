package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"BetPulse/internal/domain/repository"
	domsvc "BetPulse/internal/domain/service"
	"BetPulse/internal/handler/api"
	internalrepo "BetPulse/internal/repository"
	"BetPulse/internal/service/cache"
	svcmetrics "BetPulse/internal/service/metrics"
	"BetPulse/internal/service/ratelimit"
	"BetPulse/internal/service/stream"
	"BetPulse/internal/services/agents"
	"BetPulse/internal/services/consensus"
	"BetPulse/internal/services/schema"
	"BetPulse/internal/usecase"
	pkgch "BetPulse/pkg/clickhouse"
	"BetPulse/pkg/config"
	xhttp "BetPulse/pkg/http"
	pkgkafka "BetPulse/pkg/kafka"
	applogger "BetPulse/pkg/logger"
	"BetPulse/pkg/metrics"
	"BetPulse/pkg/postgres"
	"BetPulse/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideLogger builds the service logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log.Config)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideEngine(cfg *config.Config) (*consensus.Engine, error) {
	return consensus.NewEngine(cfg.Consensus)
}

func ProvideAgents(cfg *config.Config) []domsvc.ForecastAgent {
	return agents.NewHTTPAgents(cfg.Agents)
}

func ProvideForecastCollector(cfg *config.Config, list []domsvc.ForecastAgent, m repository.Metrics, l *applogger.Logger) *usecase.ForecastCollector {
	return usecase.NewForecastCollector(list, cfg.Collector.Timeout, cfg.Collector.PerAgentTimeout, m, l)
}

// ProvideRedisClient returns nil when redis is disabled.
func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cli, nil
}

// ProvideScoreSource prefers live scores from redis and falls back to the
// configured agent stats.
func ProvideScoreSource(cfg *config.Config, rdb redis.UniversalClient, l *applogger.Logger) repository.ScoreSource {
	stats := make([]internalrepo.AgentStats, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		stats = append(stats, internalrepo.AgentStats{ID: a.ID, Sharpe: a.Sharpe, ROIPct: a.ROIPct})
	}
	static := internalrepo.NewStaticScoreSource(stats)
	if rdb == nil {
		return static
	}
	return internalrepo.NewFallbackScoreSource(
		internalrepo.NewRedisScoreSource(rdb, cfg.Redis.ScoresKey),
		static,
		func(err error) { l.Warn("redis score lookup failed", applogger.Error(err)) },
	)
}

func ProvideDecisionCache(rdb redis.UniversalClient) cache.BytesCache {
	if rdb == nil {
		return cache.NewTTLCache()
	}
	return cache.NewRedisCache(rdb, "betpulse:")
}

// Storage bundles the decision store with the ledger living beside it.
type Storage struct {
	Decisions repository.DecisionStore
	Ledger    repository.LedgerStore
}

// ProvideStorage opens the configured backend and applies its schema.
func ProvideStorage(cfg *config.Config, l *applogger.Logger) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	var s *Storage
	switch cfg.Store.Type {
	case "clickhouse":
		ch, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store := internalrepo.NewCHDecisionStore(ch)
		store.SetLogger(l)
		s = &Storage{Decisions: store, Ledger: internalrepo.NewCHLedger(ch)}
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.Postgres.DSN,
			postgres.WithPool(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLife))
		if err != nil {
			return nil, err
		}
		s = &Storage{Decisions: internalrepo.NewPGDecisionStore(db), Ledger: internalrepo.NewPGLedger(db)}
	default:
		s = &Storage{
			Decisions: internalrepo.NewMemoryDecisionStore(),
			Ledger:    internalrepo.NewMemoryLedger(cfg.Ledger.Capacity),
		}
	}
	if err := s.Decisions.Init(ctx); err != nil {
		_ = s.Decisions.Close()
		return nil, fmt.Errorf("%s schema: %w", cfg.Store.Type, err)
	}
	l.Info("decision store ready", applogger.String("type", cfg.Store.Type))
	return s, nil
}

func ProvideDecisionStore(s *Storage) repository.DecisionStore { return s.Decisions }

func ProvideLedger(s *Storage) repository.LedgerStore { return s.Ledger }

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(p.BatchSize, p.BatchBytes, p.Linger),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithAsync(p.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideDecisionPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.DecisionPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionTopic)
}

// ProvideKafkaConsumer returns nil when kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook{},
		pkgkafka.HookFuncs{
			Err: func(_ context.Context, topic string, km kafkago.Message, _ []byte, err error) {
				l.Warn("evaluation request failed",
					applogger.String("topic", topic),
					applogger.String("key", string(km.Key)),
					applogger.Int64("offset", km.Offset),
					applogger.Error(err))
			},
		},
	))
	return consumer, nil
}

func ProvideHub(cfg *config.Config, l *applogger.Logger) *stream.Hub {
	return stream.NewHub(cfg.Stream.PingInterval, cfg.Stream.SendBuffer, l)
}

func ProvideSchemaValidator() (*schema.Validator, error) {
	return schema.NewEvaluateRequestValidator()
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.Refill)
}

func ProvideEvaluateFixture(
	engine *consensus.Engine,
	collector *usecase.ForecastCollector,
	scores repository.ScoreSource,
	store repository.DecisionStore,
	publisher repository.DecisionPublisher,
	ledger repository.LedgerStore,
	c cache.BytesCache,
	hub *stream.Hub,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.EvaluateFixture {
	return usecase.NewEvaluateFixture(usecase.EvaluateDeps{
		Engine: engine, Collector: collector, Scores: scores,
		Store: store, Publisher: publisher, Ledger: ledger,
		Cache: c, Feed: hub, Metrics: m, Logger: l,
	})
}

func ProvideDecisionQueries(cfg *config.Config, store repository.DecisionStore, ledger repository.LedgerStore, c cache.BytesCache) *usecase.DecisionQueries {
	return usecase.NewDecisionQueries(store, ledger, c, cfg.Redis.CacheTTL)
}

func ProvideKafkaRequestsHandler(cfg *config.Config, v *schema.Validator, eval *usecase.EvaluateFixture, m repository.Metrics) *usecase.KafkaRequestsHandler {
	return usecase.NewKafkaRequestsHandler(cfg.Kafka.RequestTopic, v, eval, m)
}

func ProvideDecisionsHandler(
	cfg *config.Config,
	l *applogger.Logger,
	eval *usecase.EvaluateFixture,
	queries *usecase.DecisionQueries,
	store repository.DecisionStore,
	v *schema.Validator,
	limiter *ratelimit.Limiter,
	hub *stream.Hub,
) *api.DecisionsEchoHandler {
	var feed api.FeedServer
	if cfg.Stream.Enabled {
		feed = hub
	}
	return api.NewDecisionsEchoHandler(l, eval, queries, store, v, limiter, feed)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.DecisionsEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp assembles the lifecycle. The error digest ships through the
// producer when both kafka and a digest topic are configured.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaRequestsHandler,
	producer *pkgkafka.Producer,
	publisher repository.DecisionPublisher,
	storage *Storage,
	rdb redis.UniversalClient,
	hub *stream.Hub,
) *server.App {
	opts := []server.Option{
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithBackground("stream-hub", hub.Run),
		server.WithCloser("decision-store", storage.Decisions.Close),
		server.WithCloser("publisher", publisher.Close),
		server.WithConsumer(consumer, kh),
	}
	if rdb != nil {
		opts = append(opts, server.WithCloser("redis", rdb.Close))
	}
	if producer != nil && cfg.Log.Digest.Topic != "" {
		dcfg := cfg.Log.Digest
		dcfg.Publisher = producer
		d := applogger.NewDigest(dcfg)
		l.AttachDigest(d)
		opts = append(opts, server.WithCloser("log-digest", func() error {
			l.DetachDigest()
			d.Close()
			return nil
		}))
	}
	return server.New(l, srv, opts...)
}
