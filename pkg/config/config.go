package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FinScore/internal/domain/models"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
		CORS            bool          `yaml:"cors" default:"true"`
		ScanRateLimit   struct {
			Capacity     float64 `yaml:"capacity" default:"5" validate:"gt=0"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"0.2" validate:"gt=0"`
		} `yaml:"scan_rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Market struct {
		Timezone string   `yaml:"timezone" default:"America/New_York" validate:"required"`
		Open     string   `yaml:"open" default:"09:30" validate:"required"`
		Close    string   `yaml:"close" default:"16:00" validate:"required"`
		Holidays []string `yaml:"holidays"`
	} `yaml:"market"`
	Analysis struct {
		Timeframe      string        `yaml:"timeframe" default:"1d" validate:"oneof=1d 60m 30m 15m 5m 1m"`
		Bars           int           `yaml:"bars" default:"120" validate:"gte=2,lte=5000"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"15s"`
		Params         models.Params `yaml:"params"`
	} `yaml:"analysis"`
	Cache struct {
		MaxEntries  int           `yaml:"max_entries" default:"10000" validate:"gte=1"`
		IntradayTTL time.Duration `yaml:"intraday_ttl" default:"5m"`
		SweepCron   string        `yaml:"sweep_cron" default:"@every 1m"`
		L2Timeout   time.Duration `yaml:"l2_timeout" default:"200ms"`
		Redis       struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size" default:"10"`
			Prefix   string `yaml:"prefix" default:"finscore"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Scanner struct {
		DefaultConcurrency int           `yaml:"default_concurrency" default:"8" validate:"gte=1"`
		MaxConcurrency     int           `yaml:"max_concurrency" default:"64" validate:"gte=1,lte=1024"`
		SymbolTimeout      time.Duration `yaml:"symbol_timeout" default:"10s"`
		RetryMax           int           `yaml:"retry_max" default:"3" validate:"gte=1,lte=20"`
		BackoffMin         time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax         time.Duration `yaml:"backoff_max" default:"2s"`
		MaxSymbols         int           `yaml:"max_symbols" default:"5000" validate:"gte=1"`
		JobRetention       time.Duration `yaml:"job_retention" default:"30m"`
		MaxJobs            int           `yaml:"max_jobs" default:"64" validate:"gte=1"`
		Watchlist          []string      `yaml:"watchlist"`
		Warmup             struct {
			Enabled bool   `yaml:"enabled"`
			Cron    string `yaml:"cron" default:"35 9 * * 1-5"`
		} `yaml:"warmup"`
	} `yaml:"scanner"`
	Provider struct {
		Type          string  `yaml:"type" default:"clickhouse" validate:"oneof=clickhouse memory"`
		RatePerSecond float64 `yaml:"rate_per_second" default:"50" validate:"gt=0"`
		Burst         int     `yaml:"burst" default:"10" validate:"gte=1"`
	} `yaml:"provider"`
	Kafka struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers"`
		ScanRequestTopic string   `yaml:"scan_request_topic" default:"finscore.scan.requests"`
		ScanResultTopic  string   `yaml:"scan_result_topic" default:"finscore.scan.results"`
		LogTopic         string   `yaml:"log_topic" default:"finscore.logs"`
		RequiredAcks     int      `yaml:"required_acks" default:"-1"`
		Compression      string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"20ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"200"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
			AutoCreate   bool          `yaml:"auto_create_topics" default:"true"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"finscore-scanner"`
			StartAt    string        `yaml:"start_at" default:"latest" validate:"oneof=earliest latest"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"finscore.scan.requests.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host              string        `yaml:"host" default:"localhost"`
		Port              int           `yaml:"port" default:"9000"`
		Database          string        `yaml:"database" default:"market"`
		User              string        `yaml:"user" default:"default"`
		Password          string        `yaml:"password"`
		UseHTTP           bool          `yaml:"use_http"`
		DialTimeout       time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout       time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime  time.Duration `yaml:"max_execution_time" default:"30s"`
		InitSchema        bool          `yaml:"init_schema" default:"true"`
		BarsTable         string        `yaml:"bars_table" default:"bars"`
		FundamentalsTable string        `yaml:"fundamentals_table" default:"fundamentals"`
		CapitalFlowTable  string        `yaml:"capital_flow_table" default:"capital_flow"`
	} `yaml:"clickhouse"`
}

var validate = validator.New()

// Default returns a configuration holding only defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load applies defaults, then the YAML file on top, then validates. Fields
// absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("FINSCORE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR port: %w", err)
		}
		c.Cache.Redis.Host = host
		c.Cache.Redis.Port = p
		c.Cache.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("SCAN_WATCHLIST"); v != "" {
		c.Scanner.Watchlist = splitList(v)
	}
	return nil
}

// Validate checks tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Analysis.Params.Validate(); err != nil {
		return fmt.Errorf("analysis.params: %w", err)
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	for _, s := range []string{c.Market.Open, c.Market.Close} {
		if _, err := time.Parse("15:04", s); err != nil {
			return fmt.Errorf("market open/close must be HH:MM, got %q", s)
		}
	}
	if c.Scanner.DefaultConcurrency > c.Scanner.MaxConcurrency {
		return fmt.Errorf("scanner.default_concurrency (%d) exceeds max_concurrency (%d)", c.Scanner.DefaultConcurrency, c.Scanner.MaxConcurrency)
	}
	if c.Scanner.BackoffMin > c.Scanner.BackoffMax {
		return errors.New("scanner.backoff_min must not exceed backoff_max")
	}
	if c.Scanner.SymbolTimeout <= 0 {
		return errors.New("scanner.symbol_timeout must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// DefaultWindow is the analysis window used when a request omits one.
func (c *Config) DefaultWindow() models.Window {
	return models.Window{Timeframe: models.NormalizeTimeframe(c.Analysis.Timeframe), Bars: c.Analysis.Bars}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
