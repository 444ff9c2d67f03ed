package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	DatabaseAutoMigrate   bool
	DatabaseMaxOpenConns  int
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	AuthSecret            string
	AccessTokenTTLMinutes int
	LoginRatePerMinute    int
	LogLevel              string
	LogFormat             string
	StoreTimezone         string
}

// Load reads configuration with this priority, highest first:
// environment variables (a local .env is loaded into the environment first),
// config.yaml or config.toml in . or ./config, built-in defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Port:                  v.GetString("port"),
		AllowedOrigin:         strings.TrimSpace(v.GetString("allowed_origin")),
		DatabaseURL:           strings.TrimSpace(v.GetString("database.url")),
		DatabaseAutoMigrate:   v.GetBool("database.auto_migrate"),
		DatabaseMaxOpenConns:  v.GetInt("database.max_open_conns"),
		RedisAddr:             strings.TrimSpace(v.GetString("redis.addr")),
		RedisPassword:         v.GetString("redis.password"),
		RedisDB:               v.GetInt("redis.db"),
		ReportCacheTTLSeconds: v.GetInt("report.cache_ttl_seconds"),
		AuthSecret:            strings.TrimSpace(v.GetString("auth.secret")),
		AccessTokenTTLMinutes: v.GetInt("access_token_ttl_minutes"),
		LoginRatePerMinute:    v.GetInt("login_rate_per_minute"),
		LogLevel:              v.GetString("log.level"),
		LogFormat:             v.GetString("log.format"),
		StoreTimezone:         strings.TrimSpace(v.GetString("store.timezone")),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origin", "http://127.0.0.1:3000")
	v.SetDefault("database.url", "")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 30)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("report.cache_ttl_seconds", 60)
	v.SetDefault("auth.secret", "")
	v.SetDefault("access_token_ttl_minutes", 480)
	v.SetDefault("login_rate_per_minute", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.timezone", "Local")
}

func (c Config) validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.DatabaseMaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("DATABASE_MAX_OPEN_CONNS must be positive, got %d", c.DatabaseMaxOpenConns))
	}
	if c.ReportCacheTTLSeconds < 1 {
		errs = append(errs, fmt.Errorf("REPORT_CACHE_TTL_SECONDS must be positive, got %d", c.ReportCacheTTLSeconds))
	}
	if c.AccessTokenTTLMinutes < 1 {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_TTL_MINUTES must be positive, got %d", c.AccessTokenTTLMinutes))
	}
	if c.LoginRatePerMinute < 1 {
		errs = append(errs, fmt.Errorf("LOGIN_RATE_PER_MINUTE must be positive, got %d", c.LoginRatePerMinute))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if _, err := time.LoadLocation(c.StoreTimezone); err != nil {
		errs = append(errs, fmt.Errorf("STORE_TIMEZONE %q: %w", c.StoreTimezone, err))
	}
	return errors.Join(errs...)
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location is the timezone that defines a calendar day for reports.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StoreTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}
