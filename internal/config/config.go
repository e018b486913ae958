package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	RunMigrations   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type AuthConfig struct {
	TokenSecret    string
	AccessTokenTTL time.Duration
	CookieMaxAge   time.Duration
	BcryptCost     int
	PayloadSecret  string
}

type SecurityConfig struct {
	AdminEmails        []string
	SingleAccountPerIP bool
	RateLimitWindow    time.Duration
	RateLimitMax       int
}

type QueueConfig struct {
	ClaimInterval time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Auth             AuthConfig
	Security         SecurityConfig
	Queues           QueueConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// PayloadKey is the symmetric-codec secret, falling back to the token secret
// when none is configured.
func (c *AppConfig) PayloadKey() string {
	if c.Auth.PayloadSecret != "" {
		return c.Auth.PayloadSecret
	}
	return c.Auth.TokenSecret
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("FINRECORD")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.runmigrations", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "entitlements:tasks")
	v.SetDefault("redis.group", "reconcilers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("auth.tokensecret", "SIMPLE_SECRET_KEY")
	v.SetDefault("auth.accesstokenttl", "720h") // 30 days
	v.SetDefault("auth.cookiemaxage", "720h")
	v.SetDefault("auth.bcryptcost", 10)

	v.SetDefault("security.singleaccountperip", true)
	v.SetDefault("security.ratelimitwindow", "30m")
	v.SetDefault("security.ratelimitmax", 10)

	v.SetDefault("queues.claiminterval", "60s")
}
