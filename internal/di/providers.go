package di

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"Areopagus/internal/domain/models"
	domrepo "Areopagus/internal/domain/repository"
	domsvc "Areopagus/internal/domain/service"
	"Areopagus/internal/handler/api"
	"Areopagus/internal/middleware"
	"Areopagus/internal/repository"
	svcmetrics "Areopagus/internal/service/metrics"
	"Areopagus/internal/services/agents"
	"Areopagus/internal/services/analytics"
	"Areopagus/internal/services/risk"
	"Areopagus/internal/usecase"
	"Areopagus/pkg/cache"
	pkgch "Areopagus/pkg/clickhouse"
	"Areopagus/pkg/config"
	xhttp "Areopagus/pkg/http"
	pkgkafka "Areopagus/pkg/kafka"
	applogger "Areopagus/pkg/logger"
	"Areopagus/pkg/metrics"
	"Areopagus/pkg/queue"
	"Areopagus/pkg/server"
)

const serviceName = "areopagus"

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegisterer returns the registry every collector is registered with.
func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) domrepo.Metrics {
	return metrics.New(reg)
}

// ProvideRemoteMetrics creates the remote agent call and breaker metrics.
func ProvideRemoteMetrics(reg prometheus.Registerer) *svcmetrics.RemoteMetrics {
	return svcmetrics.NewRemoteMetrics(reg)
}

// ProvideRedisClient connects the client shared by the Redis queues and the
// Redis weight store. It returns nil when neither is configured.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Redis.Queue.Enabled && cfg.Weights.Backend != "redis" {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideClickHouseClient connects to ClickHouse and creates the audit table.
// It returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx, pkgch.Config{
		Host:             cfg.ClickHouse.Host,
		Port:             cfg.ClickHouse.Port,
		Database:         cfg.ClickHouse.Database,
		User:             cfg.ClickHouse.User,
		Password:         cfg.ClickHouse.Password,
		UseHTTP:          cfg.ClickHouse.UseHTTP,
		DialTimeout:      cfg.ClickHouse.DialTimeout,
		ReadTimeout:      cfg.ClickHouse.ReadTimeout,
		MaxExecutionTime: cfg.ClickHouse.MaxExecutionTime,
		AsyncInsert:      cfg.ClickHouse.AsyncInsert,
		WaitForAsync:     cfg.ClickHouse.WaitForAsync,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, repository.DecisionSchema(cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg prometheus.Registerer) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(cfg.Kafka.Brokers,
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriterTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideWeightStore selects the persistence backend for agent weights.
func ProvideWeightStore(cfg *config.Config, rdb *redis.Client) (domrepo.WeightStore, func(), error) {
	switch cfg.Weights.Backend {
	case "redis":
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis weight store: no redis client")
		}
		rs := cache.NewRedisStore(rdb, cfg.Redis.Prefix)
		return repository.NewCacheWeightStore(rs, cfg.Weights.Key), func() {}, nil
	case "memory":
		ms := cache.NewMemoryStore(cache.WithMaxEntries(16))
		return repository.NewCacheWeightStore(ms, cfg.Weights.Key), func() { _ = ms.Close() }, nil
	default:
		return repository.NewFileWeightStore(cfg.Weights.Path), func() {}, nil
	}
}

func agentSpecs(cfg *config.Config) []agents.Spec {
	if len(cfg.Council.Agents) == 0 {
		return agents.DefaultSpecs()
	}
	specs := make([]agents.Spec, 0, len(cfg.Council.Agents))
	for _, a := range cfg.Council.Agents {
		specs = append(specs, agents.Spec{Name: a.Name, Kind: a.Kind, URL: a.URL, Timeout: a.Timeout})
	}
	return specs
}

// ProvideMeritBook creates the shared weight book and loads persisted weights.
// A missing or unreadable store leaves every agent at the default weight.
func ProvideMeritBook(cfg *config.Config, store domrepo.WeightStore, l *applogger.Logger, m domrepo.Metrics) *usecase.MeritBook {
	book := usecase.NewMeritBook(store, agents.Names(agentSpecs(cfg)),
		usecase.WithMeritLogger(l.Named("merit")),
		usecase.WithMeritMetrics(m),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := book.Load(ctx); err != nil {
		l.Warn("agent weights not loaded, starting from defaults", applogger.Error(err))
	}
	return book
}

// ProvideCouncils builds one council per configured symbol. Agents hold
// per-symbol state, so every council gets its own instances.
func ProvideCouncils(cfg *config.Config, merit *usecase.MeritBook, l *applogger.Logger, m domrepo.Metrics, rm *svcmetrics.RemoteMetrics) ([]*usecase.Council, error) {
	specs := agentSpecs(cfg)
	breaker := []analytics.ServiceOption{
		analytics.WithBreaker(cfg.Council.BreakerFailures, cfg.Council.BreakerCoolDown),
		analytics.WithCallObserver(rm.ObserveCall),
		analytics.WithBreakerStateHook(rm.BreakerStateChanged),
	}
	councils := make([]*usecase.Council, 0, len(cfg.Trading.Symbols))
	for _, symbol := range cfg.Trading.Symbols {
		members, err := agents.Build(specs, breaker...)
		if err != nil {
			return nil, fmt.Errorf("council %s: %w", symbol, err)
		}
		councils = append(councils, newCouncil(cfg, symbol, members, merit, l, m))
	}
	return councils, nil
}

func newCouncil(cfg *config.Config, symbol string, members []domsvc.Agent, merit *usecase.MeritBook, l *applogger.Logger, m domrepo.Metrics) *usecase.Council {
	detector := analytics.NewVolatilityRegimeDetector(
		analytics.WithRegimeWindow(cfg.Council.RegimeWindow),
		analytics.WithRegimeThreshold(cfg.Council.RegimeThreshold),
	)
	return usecase.NewCouncil(symbol, members, merit,
		usecase.WithVotingMethod(models.ParseVotingMethod(cfg.Council.VotingMethod)),
		usecase.WithMinConfidence(cfg.Council.MinConfidence),
		usecase.WithShadowDepth(cfg.Council.ShadowDepth),
		usecase.WithRegimeDetector(detector),
		usecase.WithCouncilLogger(l.Named("council")),
		usecase.WithCouncilMetrics(m),
	)
}

// ProvideRiskManager creates the risk gate seeded with the configured thresholds.
func ProvideRiskManager(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) *risk.Manager {
	return risk.NewManager(
		risk.WithSettings(models.RiskSettings{
			MaxDrawdownPct:     cfg.Risk.MaxDrawdownPct,
			MaxPositionSizePct: cfg.Risk.MaxPositionSizePct,
			MaxSlippagePct:     cfg.Risk.MaxSlippagePct,
			StopLossPct:        cfg.Risk.StopLossPct,
			TakeProfitPct:      cfg.Risk.TakeProfitPct,
		}),
		risk.WithLogger(l.Named("risk")),
		risk.WithMetrics(m),
	)
}

func ProvideBalanceSource(cfg *config.Config) domrepo.BalanceSource {
	return repository.NewPaperBalance(cfg.Trading.PaperCapital)
}

func ProvideOrderBookCache(cfg *config.Config) *repository.OrderBookCache {
	return repository.NewOrderBookCache(cfg.Risk.OrderBookTTL)
}

// ProvideIntentPublisher publishes to Kafka when enabled and otherwise keeps
// intents in memory.
func ProvideIntentPublisher(cfg *config.Config, producer *pkgkafka.Producer, rdb *redis.Client, l *applogger.Logger) (domrepo.IntentPublisher, error) {
	switch {
	case producer != nil:
		return repository.NewKafkaIntentPublisher(producer, cfg.Kafka.Topics.Intents), nil
	case rdb != nil:
		q, err := queue.NewRedisPublisher(l, rdb, queue.WithKeyPrefix(cfg.Redis.Queue.Prefix+":intents"))
		if err != nil {
			return nil, fmt.Errorf("intent queue: %w", err)
		}
		return repository.NewQueueIntentPublisher(q), nil
	default:
		return repository.NewMemoryIntentPublisher(), nil
	}
}

// ProvideDecisionStore returns the ClickHouse audit store behind a buffering
// pipeline, or nil when ClickHouse is disabled.
func ProvideDecisionStore(cfg *config.Config, client *pkgch.Client, l *applogger.Logger, m domrepo.Metrics) domrepo.DecisionStore {
	if client == nil {
		return nil
	}
	store := repository.NewCHDecisionStore(client.DB(), cfg.ClickHouse.Table)
	store.SetLogger(l.Named("decision_store"))

	pipeline := middleware.NewAuditPipeline(store, m, middleware.WithPipelineLogger(l.Named("audit")))
	pipeline.Start(context.Background())
	return pipeline
}

// ProvideEngine wires councils, the risk gate and the sinks together.
func ProvideEngine(
	cfg *config.Config,
	councils []*usecase.Council,
	gate *risk.Manager,
	merit *usecase.MeritBook,
	balances domrepo.BalanceSource,
	books *repository.OrderBookCache,
	intents domrepo.IntentPublisher,
	audit domrepo.DecisionStore,
	l *applogger.Logger,
	m domrepo.Metrics,
) (*usecase.Engine, error) {
	opts := []usecase.EngineOption{
		usecase.WithBalanceSource(balances),
		usecase.WithOrderBookSource(books),
		usecase.WithIntentPublisher(intents),
		usecase.WithEngineLogger(l.Named("engine")),
		usecase.WithEngineMetrics(m),
		usecase.WithMinTradeValue(cfg.Trading.MinTradeValue),
		usecase.WithMinTradeInterval(cfg.Trading.MinTradeInterval),
		usecase.WithLiquidityProbe(cfg.Risk.LiquidityProbeAmount),
	}
	if audit != nil {
		opts = append(opts, usecase.WithDecisionStore(audit))
	}
	return usecase.NewEngine(councils, gate, merit, opts...)
}

// ProvideKafkaConsumer creates the candle and order book consumer, or nil
// when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics, reg prometheus.Registerer) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, _ kafka.Message, _ []byte, _ error) {
			m.RecordError("consume_" + topic)
		},
	})
	return consumer, nil
}

// ProvideMessageHandlers returns the handlers for the candle and order book topics.
func ProvideMessageHandlers(cfg *config.Config, engine *usecase.Engine, books *repository.OrderBookCache, l *applogger.Logger, m domrepo.Metrics) []pkgkafka.MessageHandler {
	return []pkgkafka.MessageHandler{
		usecase.NewCandlesHandler(cfg.Kafka.Topics.Candles, engine, m, l.Named("candles")),
		usecase.NewOrderBookHandler(cfg.Kafka.Topics.OrderBooks, books, m),
	}
}

// ProvideQueueIntake returns a Redis consumer dispatching to the same
// handlers as Kafka, or nil when the queue is disabled.
func ProvideQueueIntake(cfg *config.Config, rdb *redis.Client, handlers []pkgkafka.MessageHandler, l *applogger.Logger) *queue.RedisQueue {
	if rdb == nil {
		return nil
	}
	jobs := make([]queue.Job, 0, len(handlers))
	for _, h := range handlers {
		h := h
		jobs = append(jobs, queue.JobFunc{
			JobName: h.Topic(),
			JobType: h.Topic(),
			Fn: func(ctx context.Context, payload json.RawMessage) error {
				return h.Handle(ctx, payload)
			},
		})
	}
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
	}, rdb, jobs, queue.WithKeyPrefix(cfg.Redis.Queue.Prefix))
}

// ProvideSettingsWatcher returns nil when no settings file is configured.
func ProvideSettingsWatcher(cfg *config.Config, gate *risk.Manager, l *applogger.Logger) *usecase.SettingsWatcher {
	if cfg.Trading.SettingsFile == "" {
		return nil
	}
	return usecase.NewSettingsWatcher(cfg.Trading.SettingsFile, cfg.Trading.SettingsReloadInterval, gate, l.Named("settings"))
}

// ProvideHTTPServer creates the Echo server with the status and risk routes.
func ProvideHTTPServer(cfg *config.Config, engine *usecase.Engine, l *applogger.Logger, reg prometheus.Registerer) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		opts = append(opts, xhttp.WithPrometheus(reg, g))
	}
	return xhttp.NewServer(api.NewRiskEchoHandler(l.Named("api"), engine), opts...)
}

// ProvideApp assembles the application and attaches the log collector when
// a producer is available.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	engine *usecase.Engine,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	intake *queue.RedisQueue,
	watcher *usecase.SettingsWatcher,
	producer *pkgkafka.Producer,
	intents domrepo.IntentPublisher,
	audit domrepo.DecisionStore,
) *server.App {
	opts := []server.Option{
		server.WithSettingsWatcher(watcher),
		server.WithCloser("intent_publisher", intents.Close),
	}
	if audit != nil {
		opts = append(opts, server.WithCloser("decision_store", audit.Close))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, handlers...))
	}
	if intake != nil {
		opts = append(opts, server.WithQueueIntake(intake))
	}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        serviceName,
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
		opts = append(opts, server.WithCloser("log_collector", func() error {
			l.RemoveCollector()
			return nil
		}))
	}
	return server.New(cfg, l, engine, httpServer, opts...)
}
