package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"

	"FinScore/internal/domain/repository"
	"FinScore/internal/handler/api"
	internalrepo "FinScore/internal/repository"
	"FinScore/internal/scheduler"
	icache "FinScore/internal/service/cache"
	imetrics "FinScore/internal/service/metrics"
	"FinScore/internal/service/ratelimit"
	"FinScore/internal/service/session"
	"FinScore/internal/services/indicators"
	"FinScore/internal/usecase"
	pkgcache "FinScore/pkg/cache"
	pkgch "FinScore/pkg/clickhouse"
	"FinScore/pkg/config"
	xhttp "FinScore/pkg/http"
	pkgkafka "FinScore/pkg/kafka"
	applogger "FinScore/pkg/logger"
	"FinScore/pkg/metrics"
	"FinScore/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvidePromRegistry creates the registry every collector registers on.
func ProvidePromRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

func ProvideScanMetrics(reg *prometheus.Registry) *imetrics.ScanMetrics {
	return imetrics.NewScanMetrics(reg)
}

func ProvideCalendar(cfg *config.Config) (*session.Calendar, error) {
	cal, err := session.NewCalendar(cfg.Market.Timezone, cfg.Market.Open, cfg.Market.Close, cfg.Market.Holidays)
	if err != nil {
		return nil, fmt.Errorf("market calendar: %w", err)
	}
	return cal, nil
}

func chTables(cfg *config.Config) internalrepo.Tables {
	return internalrepo.Tables{
		Bars:         cfg.ClickHouse.BarsTable,
		Fundamentals: cfg.ClickHouse.FundamentalsTable,
		CapitalFlow:  cfg.ClickHouse.CapitalFlowTable,
	}
}

// ProvideClickHouseClient creates a ClickHouse client. It returns nil when
// market data is served from memory.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Provider.Type != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(20, 10),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.SchemaStatements(chTables(cfg))); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, nil
}

// ProvideMarketStore picks the backend named by provider.type.
func ProvideMarketStore(cfg *config.Config, chClient *pkgch.Client, log *applogger.Logger) repository.MarketStore {
	if chClient == nil {
		log.Warn("serving synthetic market data from memory")
		return internalrepo.NewMemorySeriesStore(true)
	}
	store := internalrepo.NewCHSeriesStore(chClient, chTables(cfg))
	store.SetLogger(log.With(applogger.String("component", "clickhouse")))
	return store
}

// ProvideMarketData throttles price history reads.
func ProvideMarketData(cfg *config.Config, store repository.MarketStore) repository.MarketDataProvider {
	return internalrepo.NewThrottledProvider(store, cfg.Provider.RatePerSecond, cfg.Provider.Burst)
}

func ProvideFundamentals(store repository.MarketStore) repository.FundamentalProvider {
	return store
}

// ProvideRedisCache connects the shared cache level. It returns nil when
// Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	rc := cfg.Cache.Redis
	if !rc.Enabled {
		return nil, nil
	}
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(rc.Host),
		pkgcache.WithRedisPort(rc.Port),
		pkgcache.WithRedisPassword(rc.Password),
		pkgcache.WithRedisDB(rc.DB),
		pkgcache.WithRedisPool(rc.PoolSize, rc.PoolSize/2, 5*time.Second),
		pkgcache.WithRedisPrefix(rc.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return c, nil
}

func ProvideResultCache(cfg *config.Config, cal *session.Calendar, redis *pkgcache.RedisCache, m repository.Metrics, log *applogger.Logger) *icache.ResultCache {
	opts := []icache.Option{
		icache.WithLogger(log.With(applogger.String("component", "result_cache"))),
		icache.WithMetrics(m),
		icache.WithL2Timeout(cfg.Cache.L2Timeout),
	}
	if redis != nil {
		opts = append(opts, icache.WithL2(redis))
	}
	return icache.NewResultCache(cfg.Cache.MaxEntries, icache.NewSessionPolicy(cal, cfg.Cache.IntradayTTL), opts...)
}

func ProvideAnalyzer(cfg *config.Config, provider repository.MarketDataProvider, cache *icache.ResultCache, m repository.Metrics, log *applogger.Logger) *usecase.Analyzer {
	return usecase.NewAnalyzer(provider, indicators.NewEngine(), cache, usecase.AnalyzerConfig{
		RetryMax:      cfg.Scanner.RetryMax,
		BackoffMin:    cfg.Scanner.BackoffMin,
		BackoffMax:    cfg.Scanner.BackoffMax,
		DefaultWindow: cfg.DefaultWindow(),
	},
		usecase.WithAnalyzerLogger(log.With(applogger.String("component", "analyzer"))),
		usecase.WithAnalyzerMetrics(m),
	)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.Producer.AutoCreate),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerMetrics(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideResultPublisher publishes finished scans to Kafka when enabled.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaScanPublisher(producer, cfg.Kafka.ScanResultTopic)
}

func ProvideScanner(
	cfg *config.Config,
	analyzer *usecase.Analyzer,
	fundamentals repository.FundamentalProvider,
	publisher repository.ResultPublisher,
	scanMetrics *imetrics.ScanMetrics,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Scanner {
	opts := []usecase.ScannerOption{
		usecase.WithScanObserver(scanMetrics),
		usecase.WithScannerLogger(log.With(applogger.String("component", "scanner"))),
		usecase.WithScannerMetrics(m),
	}
	if publisher != nil {
		opts = append(opts, usecase.WithScanPublisher(publisher))
	}
	if fundamentals != nil {
		opts = append(opts, usecase.WithCapitalFlow(fundamentals))
	}
	return usecase.NewScanner(analyzer, usecase.ScannerConfig{
		DefaultConcurrency: cfg.Scanner.DefaultConcurrency,
		MaxConcurrency:     cfg.Scanner.MaxConcurrency,
		SymbolTimeout:      cfg.Scanner.SymbolTimeout,
		MaxSymbols:         cfg.Scanner.MaxSymbols,
		DefaultWindow:      cfg.DefaultWindow(),
	}, opts...)
}

func ProvideScanRegistry(cfg *config.Config, scanner *usecase.Scanner, log *applogger.Logger) *usecase.ScanRegistry {
	return usecase.NewScanRegistry(scanner, cfg.Scanner.JobRetention, cfg.Scanner.MaxJobs, log.With(applogger.String("component", "scan_registry")))
}

func ProvideProfileUseCase(cfg *config.Config, analyzer *usecase.Analyzer, fundamentals repository.FundamentalProvider) *usecase.ProfileUseCase {
	return usecase.NewProfileUseCase(analyzer, fundamentals, cfg.Analysis.Params, cfg.Analysis.RequestTimeout)
}

// ProvideScanLimiter limits scan submissions per client address.
func ProvideScanLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.ScanRateLimit.Capacity, cfg.Server.ScanRateLimit.RefillPerSec)
}

func ProvideHandlers(
	cfg *config.Config,
	log *applogger.Logger,
	analyzer *usecase.Analyzer,
	profiles *usecase.ProfileUseCase,
	registry *usecase.ScanRegistry,
	limiter *ratelimit.Limiter,
	cache *icache.ResultCache,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewAnalysisHandler(log, analyzer, profiles, cfg.Analysis.Params, cfg.Analysis.RequestTimeout),
		api.NewScanHandler(log, registry, limiter, cfg.Analysis.Params),
		api.NewCacheHandler(log, cache),
	}
}

func ProvideHTTPServer(
	cfg *config.Config,
	handlers []xhttp.Handler,
	reg *prometheus.Registry,
	chClient *pkgch.Client,
	redis *pkgcache.RedisCache,
	log *applogger.Logger,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(log.With(applogger.String("component", "http"))),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path))
	}
	if chClient != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", chClient.Health))
	}
	if redis != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", redis.Ping))
	}
	return xhttp.NewServer(handlers, opts...)
}

func ProvideScheduler(
	cfg *config.Config,
	cal *session.Calendar,
	cache *icache.ResultCache,
	scanner *usecase.Scanner,
	registry *usecase.ScanRegistry,
	limiter *ratelimit.Limiter,
	redis *pkgcache.RedisCache,
	m repository.Metrics,
	log *applogger.Logger,
) (*scheduler.Scheduler, error) {
	s := scheduler.New(scheduler.Config{
		SweepSpec:     cfg.Cache.SweepCron,
		WarmupEnabled: cfg.Scanner.Warmup.Enabled,
		WarmupSpec:    cfg.Scanner.Warmup.Cron,
		Watchlist:     cfg.Scanner.Watchlist,
	}, cal, cache, scanner, registry, limiter, m, log)
	if redis != nil {
		s.SetLocker(redis)
	}
	if err := s.Register(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, m repository.Metrics, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(startOffset(cfg.Kafka.Consumer.StartAt)),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log.With(applogger.String("component", "kafka_consumer"))),
		pkgkafka.WithConsumerMetrics(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	retryLog := log.With(applogger.String("component", "kafka_retry"))
	consumer.SetHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafka.Message, err error, attempt int) {
			m.RecordError("kafka_retry")
			retryLog.Debug("retrying message",
				applogger.String("topic", topic),
				applogger.Int64("offset", km.Offset),
				applogger.Int("attempt", attempt),
				applogger.Error(err),
			)
		},
	})
	return consumer, nil
}

func startOffset(at string) int64 {
	if at == "earliest" {
		return kafka.FirstOffset
	}
	return kafka.LastOffset
}

// ProvideKafkaScanHandler handles scan requests arriving on Kafka.
func ProvideKafkaScanHandler(cfg *config.Config, scanner *usecase.Scanner, m repository.Metrics, log *applogger.Logger) *usecase.KafkaScanHandler {
	return usecase.NewKafkaScanHandler(cfg.Kafka.ScanRequestTopic, scanner, cfg.Analysis.Params, m, log.With(applogger.String("component", "kafka_scan")))
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	registry *usecase.ScanRegistry,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaScanHandler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	redis *pkgcache.RedisCache,
) *server.App {
	return server.New(server.Deps{
		Config:      cfg,
		Logger:      log,
		HTTP:        httpServer,
		Scheduler:   sched,
		Scans:       registry,
		Consumer:    consumer,
		ScanHandler: kh,
		Producer:    producer,
		ClickHouse:  chClient,
		Redis:       redis,
	})
}
