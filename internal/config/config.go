package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"AppStatus/internal/shared/constants"
	"AppStatus/pkg/validator"
)

const envPrefix = "APPSTATUS"

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Status   StatusConfig   `mapstructure:"status"`
	TimeSync TimeSyncConfig `mapstructure:"time_sync"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type StatusConfig struct {
	UpdateInterval time.Duration `mapstructure:"update_interval"`
	// 0 отключает отчет о часовом поясе
	TimezoneInterval time.Duration `mapstructure:"timezone_interval"`
	IncludeIP        bool          `mapstructure:"include_ip"`
	RunOnStart       bool          `mapstructure:"run_on_start"`
	Timezone         string        `mapstructure:"timezone"`
}

type TimeSyncConfig struct {
	Server  string        `mapstructure:"server"`
	Timeout time.Duration `mapstructure:"timeout"`
	// DNS сервер для резолва NTP хоста, пусто - системный резолвер
	Resolver string `mapstructure:"resolver"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	RecordsKey    string `mapstructure:"records_key"`
	RecordsMaxLen int64  `mapstructure:"records_max_len"`
	EventsChannel string `mapstructure:"events_channel"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Location resolves the configured zone; empty or "Local" means the host zone.
func (s *StatusConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Loader reads the config file and watches it for changes.
type Loader struct {
	v *viper.Viper
}

// NewLoader uses path when set, otherwise looks for config.yaml in ./configs and ./.
func NewLoader(path string) *Loader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return &Loader{v: v}
}

func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var errViper viper.ConfigFileNotFoundError
		if errors.As(err, &errViper) {
			slog.Warn("config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config, err := l.decode()
	if err != nil {
		return nil, err
	}

	slog.Info("configuration loaded successfully", "file", l.v.ConfigFileUsed())
	return config, nil
}

// Watch calls onChange with every valid revision of the config file.
// Invalid revisions are logged and skipped.
func (l *Loader) Watch(onChange func(*Config)) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		config, err := l.decode()
		if err != nil {
			slog.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		slog.Info("config file changed", "file", e.Name)
		onChange(config)
	})
	l.v.WatchConfig()
	return true
}

func (l *Loader) decode() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config, %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed, %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "appstatus")
	v.SetDefault("app.version", "dev")

	// status defaults
	v.SetDefault("status.update_interval", constants.DefaultStatusInterval)
	v.SetDefault("status.timezone_interval", constants.DefaultTimezoneInterval)
	v.SetDefault("status.include_ip", false)
	v.SetDefault("status.run_on_start", true)
	v.SetDefault("status.timezone", "Local")

	// time sync defaults
	v.SetDefault("time_sync.server", "")
	v.SetDefault("time_sync.timeout", constants.TimeSyncTimeout)
	v.SetDefault("time_sync.resolver", "")

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	// database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "appstatus")
	v.SetDefault("database.password", "appstatus")
	v.SetDefault("database.dbname", "appstatus")
	v.SetDefault("database.sslmode", "disable")

	// redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.records_key", "appstatus:records")
	v.SetDefault("redis.records_max_len", 10000)
	v.SetDefault("redis.events_channel", "appstatus:events")

	// logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func validateConfig(cfg *Config) error {
	if cfg.Status.UpdateInterval <= 0 {
		return fmt.Errorf("invalid status update interval %s", cfg.Status.UpdateInterval)
	}

	if _, err := cfg.Status.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Status.Timezone, err)
	}

	if !validator.ValidateServerAddress(cfg.TimeSync.Server) {
		return fmt.Errorf("invalid time sync server %q", cfg.TimeSync.Server)
	}

	if !validator.ValidateServerAddress(cfg.TimeSync.Resolver) {
		return fmt.Errorf("invalid time sync resolver %q", cfg.TimeSync.Resolver)
	}

	if cfg.TimeSync.Timeout <= 0 {
		return fmt.Errorf("invalid time sync timeout %s", cfg.TimeSync.Timeout)
	}

	if cfg.Server.Enabled {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server port %d", cfg.Server.Port)
		}

		if !validator.ValidateServerMode(cfg.Server.Mode) {
			return fmt.Errorf("invalid server mode %s", cfg.Server.Mode)
		}
	}

	if cfg.Database.Enabled {
		if cfg.Database.Host == "" {
			return errors.New("database host is required")
		}

		if cfg.Database.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if !validator.ValidateLogLevel(cfg.Logging.Level) {
		return fmt.Errorf("invalid log level %s", cfg.Logging.Level)
	}

	if !validator.ValidateLogFormat(cfg.Logging.Format) {
		return fmt.Errorf("invalid log format %s", cfg.Logging.Format)
	}

	return nil
}

// возвращает DSN строку для PostgreSQL
func (d *DatabaseConfig) GetDNS() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// возвращает настройки для Redis клиента
func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:            r.Addr,
		Password:        r.Password,
		DB:              r.DB,
		DisableIdentity: true,
	}
}
