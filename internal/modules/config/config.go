package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const configFilePathENV = "CONFIG_FILE"

type TickServerConfig struct {
	WSURL                string        `mapstructure:"ws_url"`
	HTTPURL              string        `mapstructure:"http_url"`
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
}

type BrokerConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	PointLookups bool          `mapstructure:"point_lookups"`
}

type StrategyConfig struct {
	BarInterval time.Duration `mapstructure:"bar_interval"`

	MarketCapThreshold float64 `mapstructure:"market_cap_threshold"`
	GapUpThreshold     float64 `mapstructure:"gap_up_threshold"`
	GapDownThreshold   float64 `mapstructure:"gap_down_threshold"`
	FailureThreshold   int     `mapstructure:"failure_threshold"`
	EntryFactor        float64 `mapstructure:"entry_factor"`
	ExitFactor         float64 `mapstructure:"exit_factor"`

	MaxDailyTrades  int           `mapstructure:"max_daily_trades"`
	LatestEntryTime string        `mapstructure:"latest_entry_time"` // "14:30:00"
	PositionSize    float64       `mapstructure:"position_size"`
	ExitTimeout     time.Duration `mapstructure:"exit_timeout"`
	SessionStart    string        `mapstructure:"session_start"` // "08:50:00", reconcile watermark origin
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type JaegerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type Config struct {
	TickServer TickServerConfig `mapstructure:"tick_server"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Jaeger     JaegerConfig     `mapstructure:"jaeger"`

	DB         string `mapstructure:"db_dsn"`
	HealthAddr string `mapstructure:"health_addr"`
}

func NewConfig() (*Config, error) {
	v := viper.New()

	name := os.Getenv(configFilePathENV)
	if name == "" {
		name = "values_local"
	}
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, defaults + env carry the run
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tick_server.ws_url", "ws://127.0.0.1:8001/ws")
	v.SetDefault("tick_server.http_url", "http://127.0.0.1:8001")
	v.SetDefault("tick_server.reconnect_interval", "5s")
	v.SetDefault("tick_server.max_reconnect_attempts", 10)

	v.SetDefault("broker.poll_interval", "1s")
	v.SetDefault("broker.query_timeout", "5s")
	v.SetDefault("broker.point_lookups", true)

	v.SetDefault("strategy.bar_interval", "1m")
	v.SetDefault("strategy.market_cap_threshold", 100_000_000_000)
	v.SetDefault("strategy.gap_up_threshold", 0.02)
	v.SetDefault("strategy.gap_down_threshold", -0.02)
	v.SetDefault("strategy.failure_threshold", 3)
	v.SetDefault("strategy.entry_factor", 1.5)
	v.SetDefault("strategy.exit_factor", 1.0)
	v.SetDefault("strategy.max_daily_trades", 3)
	v.SetDefault("strategy.latest_entry_time", "14:30:00")
	v.SetDefault("strategy.position_size", 100)
	v.SetDefault("strategy.exit_timeout", "5m")
	v.SetDefault("strategy.session_start", "08:50:00")

	v.SetDefault("health_addr", ":8080")
}
