package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"floodguard/pkg/database"
)

// EnvPrefix is the prefix for environment overrides, e.g. FLOODGUARD_SERVER_PORT
const EnvPrefix = "FLOODGUARD"

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	NOAA     NOAAConfig     `mapstructure:"noaa"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	APIToken     string        `mapstructure:"api_token"` // bearer token for POST /api/ledger/sync
}

// DatabaseConfig holds persistence configuration
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// FallbackConfig holds the demo values used when NOAA has no data
type FallbackConfig struct {
	WaterLevel     float64 `mapstructure:"water_level"`
	TidePrediction float64 `mapstructure:"tide_prediction"`
	CurrentSpeed   float64 `mapstructure:"current_speed"`
}

// NOAAConfig holds data provider configuration
type NOAAConfig struct {
	BaseURL         string         `mapstructure:"base_url"`
	DefaultStation  string         `mapstructure:"default_station"`
	Datum           string         `mapstructure:"datum"`
	Units           string         `mapstructure:"units"`
	TimeZone        string         `mapstructure:"time_zone"`
	Application     string         `mapstructure:"application"`
	UserAgent       string         `mapstructure:"user_agent"`
	Timeout         time.Duration  `mapstructure:"timeout"`
	FallbackEnabled bool           `mapstructure:"fallback_enabled"`
	Fallback        FallbackConfig `mapstructure:"fallback"`
}

// LedgerConfig holds chain and contract configuration
type LedgerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	RPCURL           string        `mapstructure:"rpc_url"`
	ContractAddress  string        `mapstructure:"contract_address"`
	ChainID          int64         `mapstructure:"chain_id"`
	ChainName        string        `mapstructure:"chain_name"`
	CurrencyName     string        `mapstructure:"currency_name"`
	CurrencySymbol   string        `mapstructure:"currency_symbol"`
	CurrencyDecimals int           `mapstructure:"currency_decimals"`
	ExplorerURL      string        `mapstructure:"explorer_url"`
	PrivateKey       string        `mapstructure:"private_key"`
	GasLimit         uint64        `mapstructure:"gas_limit"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// WalletConfig holds session watcher configuration
type WalletConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// SyncConfig holds oracle loop configuration
type SyncConfig struct {
	Schedule      string `mapstructure:"schedule"`
	Station       string `mapstructure:"station"`
	SubmitOnChain bool   `mapstructure:"submit_on_chain"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         int64         `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoadConfig loads .env, then the optional YAML file named by FLOODGUARD_CONFIG,
// then environment overrides
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	return Load(os.Getenv(EnvPrefix + "_CONFIG"))
}

// Load reads configuration from path (may be empty) and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.api_token", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", database.DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "floodguard")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "floodguard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "./data/floodguard.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	v.SetDefault("logging.level", "info")

	v.SetDefault("noaa.base_url", "https://tidesandcurrents.noaa.gov")
	v.SetDefault("noaa.default_station", "8518750")
	v.SetDefault("noaa.datum", "MLLW")
	v.SetDefault("noaa.units", "metric")
	v.SetDefault("noaa.time_zone", "gmt")
	v.SetDefault("noaa.application", "FloodPredictor")
	v.SetDefault("noaa.user_agent", "FloodPredictor/1.0")
	v.SetDefault("noaa.timeout", "10s")
	v.SetDefault("noaa.fallback_enabled", true)
	v.SetDefault("noaa.fallback.water_level", 1.5)
	v.SetDefault("noaa.fallback.tide_prediction", 1.2)
	v.SetDefault("noaa.fallback.current_speed", 1.8)

	v.SetDefault("ledger.enabled", false)
	v.SetDefault("ledger.rpc_url", "https://rpc.blockdag.network")
	v.SetDefault("ledger.contract_address", "0x8AB8315fa4aFD44923E834623f04b757b23f039e")
	v.SetDefault("ledger.chain_id", 1043)
	v.SetDefault("ledger.chain_name", "Primordial BlockDAG Testnet")
	v.SetDefault("ledger.currency_name", "BDAG")
	v.SetDefault("ledger.currency_symbol", "BDAG")
	v.SetDefault("ledger.currency_decimals", 18)
	v.SetDefault("ledger.explorer_url", "https://explorer.blockdag.network")
	v.SetDefault("ledger.private_key", "")
	v.SetDefault("ledger.gas_limit", 300000)
	v.SetDefault("ledger.timeout", "60s")

	v.SetDefault("wallet.poll_interval", "5s")

	v.SetDefault("sync.schedule", "*/10 * * * *")
	v.SetDefault("sync.station", "")
	v.SetDefault("sync.submit_on_chain", false)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case database.DriverPostgres:
			if c.Database.Host == "" {
				return fmt.Errorf("database.host is required for the postgres driver")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database.database is required for the postgres driver")
			}
		case database.DriverSQLite:
			if c.Database.Path == "" {
				return fmt.Errorf("database.path is required for the sqlite driver")
			}
		default:
			return fmt.Errorf("database.driver must be one of: postgres, sqlite")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	if _, err := url.ParseRequestURI(c.NOAA.BaseURL); err != nil {
		return fmt.Errorf("noaa.base_url is invalid: %w", err)
	}
	if c.NOAA.DefaultStation == "" {
		return fmt.Errorf("noaa.default_station is required")
	}
	if c.NOAA.Timeout <= 0 {
		return fmt.Errorf("noaa.timeout must be positive")
	}
	if c.NOAA.Fallback.WaterLevel < 0 || c.NOAA.Fallback.TidePrediction < 0 || c.NOAA.Fallback.CurrentSpeed < 0 {
		return fmt.Errorf("noaa.fallback values must not be negative")
	}

	if c.Ledger.Enabled {
		if c.Ledger.RPCURL == "" {
			return fmt.Errorf("ledger.rpc_url is required when ledger is enabled")
		}
		if !common.IsHexAddress(c.Ledger.ContractAddress) {
			return fmt.Errorf("ledger.contract_address must be a 0x-prefixed 20-byte hex address")
		}
		if c.Ledger.ChainID <= 0 {
			return fmt.Errorf("ledger.chain_id must be positive")
		}
		if c.Ledger.GasLimit == 0 {
			return fmt.Errorf("ledger.gas_limit must be positive")
		}
		if c.Ledger.Timeout <= 0 {
			return fmt.Errorf("ledger.timeout must be positive")
		}
	}

	if c.Wallet.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("wallet.poll_interval must be at least 100ms")
	}

	if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
		return fmt.Errorf("sync.schedule is not a valid cron expression: %w", err)
	}
	if c.Sync.SubmitOnChain && !c.Ledger.Enabled {
		return fmt.Errorf("sync.submit_on_chain requires ledger.enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 0 {
			return fmt.Errorf("telegram.max_retries must not be negative")
		}
	}

	return nil
}

// SyncStation returns the station the oracle loop watches
func (c *Config) SyncStation() string {
	if c.Sync.Station != "" {
		return c.Sync.Station
	}
	return c.NOAA.DefaultStation
}

// DatabaseOptions converts the database section into connection options
func (c *Config) DatabaseOptions() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}
