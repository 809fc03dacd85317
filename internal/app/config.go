package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv            string `mapstructure:"app_env"`
	HTTPAddr          string `mapstructure:"http_addr"`
	DBDSN             string `mapstructure:"db_dsn"`
	RedisURL          string `mapstructure:"redis_url"`
	BankDir           string `mapstructure:"bank_dir"`
	SessionTTLMinutes int    `mapstructure:"session_ttl_minutes"`

	DBMaxOpenConns    int `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifeMins int `mapstructure:"db_conn_max_lifetime_minutes"`

	CSRFEnforced           bool `mapstructure:"csrf_enforced"`
	SelectRateLimitPerMin  int  `mapstructure:"select_rate_limit_per_minute"`
	SessionRateLimitPerMin int  `mapstructure:"session_rate_limit_per_minute"`

	AdminTokenHash string `mapstructure:"admin_token_hash"`
}

var configKeys = []string{
	"app_env",
	"http_addr",
	"db_dsn",
	"redis_url",
	"bank_dir",
	"session_ttl_minutes",
	"db_max_open_conns",
	"db_max_idle_conns",
	"db_conn_max_lifetime_minutes",
	"csrf_enforced",
	"select_rate_limit_per_minute",
	"session_rate_limit_per_minute",
	"admin_token_hash",
}

func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) (Config, error) {
	v.SetDefault("app_env", "development")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_dsn", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("bank_dir", "banks")
	v.SetDefault("session_ttl_minutes", 120)
	v.SetDefault("db_max_open_conns", 10)
	v.SetDefault("db_max_idle_conns", 10)
	v.SetDefault("db_conn_max_lifetime_minutes", 30)
	v.SetDefault("csrf_enforced", false)
	v.SetDefault("select_rate_limit_per_minute", 120)
	v.SetDefault("session_rate_limit_per_minute", 30)
	v.SetDefault("admin_token_hash", "")

	for _, k := range configKeys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.SessionTTLMinutes <= 0 {
		cfg.SessionTTLMinutes = 120
	}
	if cfg.SelectRateLimitPerMin <= 0 {
		cfg.SelectRateLimitPerMin = 120
	}
	if cfg.SessionRateLimitPerMin <= 0 {
		cfg.SessionRateLimitPerMin = 30
	}
	cfg.DBDSN = strings.TrimSpace(cfg.DBDSN)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.AdminTokenHash = strings.TrimSpace(cfg.AdminTokenHash)
	return cfg, nil
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
