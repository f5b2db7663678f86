package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"Areopagus/pkg/util"
)

// AgentConfig describes one council member.
type AgentConfig struct {
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Council struct {
		VotingMethod    string        `yaml:"voting_method" default:"weighted"`
		MinConfidence   float64       `yaml:"min_confidence" default:"0.6"`
		ShadowDepth     int           `yaml:"shadow_depth" default:"5"`
		RegimeWindow    int           `yaml:"regime_window" default:"14"`
		RegimeThreshold float64       `yaml:"regime_threshold" default:"0.015"`
		Agents          []AgentConfig `yaml:"agents"`
		BreakerFailures uint32        `yaml:"breaker_failures" default:"5"`
		BreakerCoolDown time.Duration `yaml:"breaker_cool_down" default:"30s"`
	} `yaml:"council"`
	Risk struct {
		MaxDrawdownPct       float64       `yaml:"max_drawdown_pct" default:"0.10"`
		MaxPositionSizePct   float64       `yaml:"max_position_size_pct" default:"0.05"`
		MaxSlippagePct       float64       `yaml:"max_slippage_pct" default:"0.02"`
		StopLossPct          float64       `yaml:"stop_loss_pct" default:"0.05"`
		TakeProfitPct        float64       `yaml:"take_profit_pct" default:"0.10"`
		LiquidityProbeAmount float64       `yaml:"liquidity_probe_amount" default:"1.0"`
		OrderBookTTL         time.Duration `yaml:"orderbook_ttl" default:"30s"`
	} `yaml:"risk"`
	Weights struct {
		Backend string `yaml:"backend" default:"file"`
		Path    string `yaml:"path" default:"data/agent_weights.json"`
		Key     string `yaml:"key" default:"council:weights"`
	} `yaml:"weights"`
	Trading struct {
		Symbols                []string      `yaml:"symbols" default:"[\"BTC/USDT\"]"`
		PaperCapital           float64       `yaml:"paper_capital" default:"10000"`
		MinTradeInterval       time.Duration `yaml:"min_trade_interval" default:"1s"`
		MinTradeValue          float64       `yaml:"min_trade_value" default:"1.0"`
		SettingsFile           string        `yaml:"settings_file"`
		SettingsReloadInterval time.Duration `yaml:"settings_reload_interval" default:"5s"`
	} `yaml:"trading"`
	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topics  struct {
			Candles    string `yaml:"candles" default:"candles"`
			OrderBooks string `yaml:"orderbooks" default:"orderbooks"`
			Intents    string `yaml:"intents" default:"order_intents"`
			Logs       string `yaml:"logs" default:"areopagus_logs"`
		} `yaml:"topics"`
		RequiredAcks int    `yaml:"required_acks" default:"-1"`
		Compression  string `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID         string        `yaml:"group_id" default:"areopagus"`
			AutoOffsetReset string        `yaml:"auto_offset_reset" default:"latest"`
			Workers         int           `yaml:"workers" default:"1"`
			BufferSize      int           `yaml:"buffer_size" default:"64"`
			RetryMax        int           `yaml:"retry_max" default:"3"`
			BackoffMin      time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax      time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic        string        `yaml:"dlq_topic"`
			MinBytes        int           `yaml:"min_bytes" default:"1"`
			MaxBytes        int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"council_decisions"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"areopagus"`
		Queue    struct {
			Enabled    bool          `yaml:"enabled"`
			Prefix     string        `yaml:"prefix" default:"areopagus:queue"`
			Workers    int           `yaml:"workers" default:"1"`
			RetryLimit int           `yaml:"retry_limit" default:"3"`
			RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		} `yaml:"queue"`
	} `yaml:"redis"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

func parse(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("AREOPAGUS_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.Trading.Symbols = util.SplitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("REDIS_DB"); v != "" {
		c.Redis.DB = util.ParseIntDefault(v, c.Redis.DB)
	}
	if v := getenv("REDIS_QUEUE_ENABLED"); v != "" {
		c.Redis.Queue.Enabled = util.ParseBoolDefault(v, c.Redis.Queue.Enabled)
	}
	if v := getenv("WEIGHTS_BACKEND"); v != "" {
		c.Weights.Backend = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("PAPER_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Trading.PaperCapital = f
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("trading.symbols cannot be empty")
	}
	switch c.Council.VotingMethod {
	case "majority", "weighted", "veto":
	default:
		return fmt.Errorf("council.voting_method must be 'majority', 'weighted' or 'veto', got '%s'", c.Council.VotingMethod)
	}
	if c.Council.MinConfidence < 0 || c.Council.MinConfidence > 1 {
		return fmt.Errorf("council.min_confidence must be within [0, 1]")
	}
	for i, a := range c.Council.Agents {
		if a.Kind == "remote" && (a.Name == "" || a.URL == "") {
			return fmt.Errorf("council.agents[%d]: remote agent needs name and url", i)
		}
	}
	for name, v := range map[string]float64{
		"risk.max_drawdown_pct":      c.Risk.MaxDrawdownPct,
		"risk.max_position_size_pct": c.Risk.MaxPositionSizePct,
		"risk.max_slippage_pct":      c.Risk.MaxSlippagePct,
		"risk.stop_loss_pct":         c.Risk.StopLossPct,
		"risk.take_profit_pct":       c.Risk.TakeProfitPct,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	switch c.Weights.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("weights.backend must be 'file', 'redis' or 'memory', got '%s'", c.Weights.Backend)
	}
	if c.Weights.Backend == "file" && c.Weights.Path == "" {
		return fmt.Errorf("weights.path is required for the file backend")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Redis.Queue.Enabled && c.Redis.Queue.Workers <= 0 {
		return fmt.Errorf("redis.queue.workers must be positive")
	}
	if c.Trading.PaperCapital <= 0 {
		return fmt.Errorf("trading.paper_capital must be positive")
	}
	return nil
}
