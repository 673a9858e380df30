package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"price_forecast/internal/model"
)

type Config struct {
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	DefaultModel string        `mapstructure:"default_model"`
	Server       ServerConfig  `mapstructure:"server"`
	Weather      WeatherConfig `mapstructure:"weather"`
	Prices       PricesConfig  `mapstructure:"prices"`
	Refresh      RefreshConfig `mapstructure:"refresh"`
	Redis        RedisConfig   `mapstructure:"redis"`
}

type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

type WeatherConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Latitude  float64       `mapstructure:"latitude"`
	Longitude float64       `mapstructure:"longitude"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type PricesConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	BiddingZone string        `mapstructure:"bidding_zone"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Load reads configuration from an optional .env file, config.yaml in
// ./configs or the working directory, and environment variables (server.addr
// is SERVER_ADDR). Missing files are not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	return load(v)
}

// LoadFile reads configuration from an explicit YAML file plus the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %s", c.Refresh.Interval)
	}
	if c.Refresh.Timeout <= 0 {
		return fmt.Errorf("refresh.timeout must be positive, got %s", c.Refresh.Timeout)
	}
	if !model.Known(c.DefaultModel) {
		return fmt.Errorf("unknown default_model %q", c.DefaultModel)
	}
	if c.Weather.Latitude < -90 || c.Weather.Latitude > 90 {
		return fmt.Errorf("weather.latitude out of range: %v", c.Weather.Latitude)
	}
	if c.Weather.Longitude < -180 || c.Weather.Longitude > 180 {
		return fmt.Errorf("weather.longitude out of range: %v", c.Weather.Longitude)
	}
	if c.Prices.BiddingZone == "" {
		return errors.New("prices.bidding_zone is required")
	}
	if c.Server.HistoryLimit < 1 {
		return fmt.Errorf("server.history_limit must be at least 1, got %d", c.Server.HistoryLimit)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("default_model", string(model.DefaultModel))

	// Server
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.history_limit", 48)

	// Open-Meteo, Helsinki
	v.SetDefault("weather.base_url", "https://api.open-meteo.com")
	v.SetDefault("weather.latitude", 60.1699)
	v.SetDefault("weather.longitude", 24.9384)
	v.SetDefault("weather.timeout", "15s")

	// Energy-Charts day-ahead
	v.SetDefault("prices.base_url", "https://api.energy-charts.info")
	v.SetDefault("prices.bidding_zone", "FI")
	v.SetDefault("prices.timeout", "15s")

	v.SetDefault("refresh.interval", "15m")
	v.SetDefault("refresh.timeout", "45s")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "6h")
}
