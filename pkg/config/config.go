package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

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
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		EventTopic   string   `yaml:"event_topic"`
		OutcomeTopic string   `yaml:"outcome_topic"`
		Consumer     struct {
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
	// Vector selects the nearest-neighbor backend once at startup.
	// The exact backend stays available as the fallback regardless.
	Vector struct {
		Backend      string        `yaml:"backend"` // "exact" or "ann"
		Dimensions   int           `yaml:"dimensions"`
		ANNBaseURL   string        `yaml:"ann_base_url"`
		ANNAPIKey    string        `yaml:"ann_api_key"`
		ANNTimeout   time.Duration `yaml:"ann_timeout"`
		OverFetch    int           `yaml:"over_fetch"` // multiplier for post-filtered queries
		MaxCandidate int           `yaml:"max_candidates"`
	} `yaml:"vector"`
	Forecast struct {
		KDefault         int           `yaml:"k_default"`
		KMax             int           `yaml:"k_max"`
		Alpha            float64       `yaml:"alpha"`
		EpsilonDistance  float64       `yaml:"epsilon_distance"`
		MinNeighbors     int           `yaml:"min_neighbors"`
		BaselineLookback int           `yaml:"baseline_lookback"`
		CacheTTL         time.Duration `yaml:"cache_ttl"`
	} `yaml:"forecast"`
	Calibration struct {
		Scale          float64            `yaml:"scale"`
		HalfSample     float64            `yaml:"half_sample"`
		HorizonNorm    map[string]float64 `yaml:"horizon_norm"`
		LowSampleSize  int                `yaml:"low_sample_size"`
		LowConfidence  float64            `yaml:"low_confidence"`
		HighSampleSize int                `yaml:"high_sample_size"`
		HighConfidence float64            `yaml:"high_confidence"`
	} `yaml:"calibration"`
	Regime struct {
		Window         int     `yaml:"window"`
		TrendThreshold float64 `yaml:"trend_threshold"`
		VolThreshold   float64 `yaml:"vol_threshold"`
	} `yaml:"regime"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Backtest struct {
		Targets   []string      `yaml:"targets"`
		Horizons  []string      `yaml:"horizons"`
		From      time.Time     `yaml:"from"`
		To        time.Time     `yaml:"to"`
		Step      time.Duration `yaml:"step"`
		OutputDir string        `yaml:"output_dir"`
		Format    string        `yaml:"format"` // "csv", "json", or "both"
	} `yaml:"backtest"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("VECTOR_BACKEND"); v != "" {
		c.Vector.Backend = v
	}
	if v := os.Getenv("ANN_BASE_URL"); v != "" {
		c.Vector.ANNBaseURL = v
	}
	if v := os.Getenv("ANN_API_KEY"); v != "" {
		c.Vector.ANNAPIKey = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Vector.Backend == "" {
		c.Vector.Backend = "exact"
	}
	if c.Vector.OverFetch <= 0 {
		c.Vector.OverFetch = 4
	}
	if c.Vector.MaxCandidate <= 0 {
		c.Vector.MaxCandidate = 1000
	}
	if c.Vector.ANNTimeout <= 0 {
		c.Vector.ANNTimeout = 2 * time.Second
	}
	if c.Forecast.KDefault <= 0 {
		c.Forecast.KDefault = 50
	}
	if c.Forecast.KMax <= 0 {
		c.Forecast.KMax = 200
	}
	if c.Forecast.Alpha <= 0 {
		c.Forecast.Alpha = 4.0
	}
	if c.Forecast.EpsilonDistance <= 0 {
		c.Forecast.EpsilonDistance = 1e-6
	}
	if c.Forecast.MinNeighbors <= 0 {
		c.Forecast.MinNeighbors = 3
	}
	if c.Forecast.BaselineLookback <= 0 {
		c.Forecast.BaselineLookback = 250
	}
	if c.Calibration.Scale <= 0 {
		c.Calibration.Scale = 1.0
	}
	if c.Calibration.HalfSample <= 0 {
		c.Calibration.HalfSample = 10
	}
	if c.Calibration.LowSampleSize <= 0 {
		c.Calibration.LowSampleSize = 8
	}
	if c.Calibration.LowConfidence <= 0 {
		c.Calibration.LowConfidence = 0.4
	}
	if c.Calibration.HighSampleSize <= 0 {
		c.Calibration.HighSampleSize = 20
	}
	if c.Calibration.HighConfidence <= 0 {
		c.Calibration.HighConfidence = 0.6
	}
	if c.Regime.Window <= 0 {
		c.Regime.Window = 20
	}
	if c.Regime.TrendThreshold <= 0 {
		c.Regime.TrendThreshold = 0.03
	}
	if c.Regime.VolThreshold <= 0 {
		c.Regime.VolThreshold = 0.04
	}
	if c.Backtest.Step <= 0 {
		c.Backtest.Step = 24 * time.Hour
	}
	if c.Backtest.Format == "" {
		c.Backtest.Format = "both"
	}
	if c.Backtest.OutputDir == "" {
		c.Backtest.OutputDir = "reports"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Vector.Backend != "exact" && c.Vector.Backend != "ann" {
		return fmt.Errorf("vector.backend must be 'exact' or 'ann', got '%s'", c.Vector.Backend)
	}
	if c.Vector.Backend == "ann" && c.Vector.ANNBaseURL == "" {
		return fmt.Errorf("vector.ann_base_url is required when vector.backend is 'ann'")
	}
	if c.Vector.Dimensions <= 0 {
		return fmt.Errorf("vector.dimensions must be positive")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Forecast.KMax > 200 {
		return fmt.Errorf("forecast.k_max cannot exceed 200")
	}
	if c.Calibration.LowConfidence >= c.Calibration.HighConfidence {
		return fmt.Errorf("calibration.low_confidence must be below calibration.high_confidence")
	}
	return nil
}
