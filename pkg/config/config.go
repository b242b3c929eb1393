package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type"` // kafka | clickhouse
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Engine struct {
		BuyThreshold  float64       `yaml:"buy_thr"`
		SellThreshold float64       `yaml:"sell_thr"`
		ScoreEMAAlpha float64       `yaml:"score_ema_alpha"`
		CooldownHours float64       `yaml:"cooldown_hours"`
		StateStore    string        `yaml:"state_store"` // memory | redis
		RunInterval   time.Duration `yaml:"run_interval"`
	} `yaml:"engine"`
	Watchlist struct {
		ScoreMin     float64 `yaml:"score_min"`
		BearOK       bool    `yaml:"bear_ok"`
		IncludeRSI   bool    `yaml:"include_rsi"`
		IncludeTrend bool    `yaml:"include_trend"`
		Limit        int     `yaml:"limit"`
	} `yaml:"watchlist"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		ErrorTopic   string   `yaml:"error_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Hyperliquid struct {
		InfoURL        string        `yaml:"info_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Coins          []string      `yaml:"coins"` // e.g. "@107" for HYPE/USDC
		StartISO       string        `yaml:"start_iso"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"hyperliquid"`
	Mailer struct {
		Enabled        bool          `yaml:"enabled"`
		SMTPHost       string        `yaml:"smtp_host"`
		SMTPPort       int           `yaml:"smtp_port"`
		SMTPUser       string        `yaml:"smtp_user"`
		SMTPPass       string        `yaml:"smtp_pass"`
		From           string        `yaml:"from"`
		To             []string      `yaml:"to"`
		SubjectPrefix  string        `yaml:"subject_prefix"`
		LookbackHours  int           `yaml:"lookback_hours"`
		MinConfidence  float64       `yaml:"min_confidence"`
		StateFile      string        `yaml:"state_file"`
		StatusInterval time.Duration `yaml:"status_interval"`
	} `yaml:"mailer"`
	Cache struct {
		TTL   time.Duration `yaml:"ttl"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := defaultConfig()
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

	if v := os.Getenv("COINS"); v != "" {
		c.Hyperliquid.Coins = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		c.Mailer.SMTPPass = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("BUY_THR"); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return nil, fmt.Errorf("parse BUY_THR: %w", perr)
		}
		c.Engine.BuyThreshold = f
	}
	if v := os.Getenv("SELL_THR"); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return nil, fmt.Errorf("parse SELL_THR: %w", perr)
		}
		c.Engine.SellThreshold = f
	}

	// Env overrides can re-break threshold ordering; check again.
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func defaultConfig() *Config {
	c := &Config{}
	c.Engine.BuyThreshold = -2.75
	c.Engine.SellThreshold = 0.75
	c.Engine.ScoreEMAAlpha = 0.4
	c.Engine.CooldownHours = 12
	c.Engine.StateStore = "memory"
	c.Watchlist.ScoreMin = 2
	c.Watchlist.BearOK = true
	c.Mailer.LookbackHours = 24
	return c
}

// Validate checks if the configuration is valid. Engine threshold problems
// are fatal here: the alert run must refuse to start rather than emit
// undefined output.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.Hyperliquid.Coins) == 0 {
		return fmt.Errorf("hyperliquid.coins cannot be empty")
	}
	if c.Engine.BuyThreshold >= c.Engine.SellThreshold {
		return fmt.Errorf("engine.buy_thr (%.4f) must be below engine.sell_thr (%.4f)",
			c.Engine.BuyThreshold, c.Engine.SellThreshold)
	}
	if c.Engine.ScoreEMAAlpha <= 0 || c.Engine.ScoreEMAAlpha > 1 {
		return fmt.Errorf("engine.score_ema_alpha (%.4f) must be in (0,1]", c.Engine.ScoreEMAAlpha)
	}
	if c.Engine.CooldownHours < 0 {
		return fmt.Errorf("engine.cooldown_hours (%.2f) must be non-negative", c.Engine.CooldownHours)
	}
	if c.Engine.StateStore != "memory" && c.Engine.StateStore != "redis" {
		return fmt.Errorf("engine.state_store must be 'memory' or 'redis', got '%s'", c.Engine.StateStore)
	}
	if c.Mailer.Enabled {
		if c.Mailer.SMTPHost == "" || c.Mailer.From == "" || len(c.Mailer.To) == 0 {
			return fmt.Errorf("mailer requires smtp_host, from, to when enabled")
		}
	}
	return nil
}

// Cooldown converts the configured hours to a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Engine.CooldownHours * float64(time.Hour))
}
