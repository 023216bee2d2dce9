package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	AuthSecret     string        `mapstructure:"AUTH_SECRET"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	MediaAPIKey    string        `mapstructure:"MEDIA_API_KEY"`
	MediaAPISecret string        `mapstructure:"MEDIA_API_SECRET"`
	MediaWSURL     string        `mapstructure:"MEDIA_WS_URL"`
	MediaHTTPURL   string        `mapstructure:"MEDIA_HTTP_URL"`
	MediaTokenTTL  time.Duration `mapstructure:"MEDIA_TOKEN_TTL"`
	SendBuffer     int           `mapstructure:"SEND_BUFFER"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MEDIA_WS_URL", "ws://localhost:7880")
	v.SetDefault("MEDIA_HTTP_URL", "http://localhost:7880")
	v.SetDefault("MEDIA_TOKEN_TTL", time.Hour)
	v.SetDefault("SEND_BUFFER", 256)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("MEDIA_API_KEY")
	v.BindEnv("MEDIA_API_SECRET")
	v.BindEnv("MEDIA_WS_URL")
	v.BindEnv("MEDIA_HTTP_URL")
	v.BindEnv("MEDIA_TOKEN_TTL")
	v.BindEnv("SEND_BUFFER")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Unsigned placeholder media tokens may be issued.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development,
// real signing credentials are mandatory: the access-token secret checked on
// websocket attach, and non-placeholder media credentials for call tokens.
// This is what keeps the unsigned dev token path unreachable in production.
func (c *Config) Validate() error {
	if c.IsDev() {
		return nil
	}

	if c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when ENV=%q. "+
			"Refusing to start without access-token verification", c.Env)
	}
	if c.MediaAPIKey == "" || c.MediaAPISecret == "" {
		return fmt.Errorf("MEDIA_API_KEY and MEDIA_API_SECRET are required when ENV=%q. "+
			"Generate secure keys from your media server", c.Env)
	}
	if c.MediaAPIKey == "devkey" || c.MediaAPISecret == "secret" {
		return fmt.Errorf("placeholder media credentials are not allowed when ENV=%q", c.Env)
	}
	if c.MediaTokenTTL <= 0 {
		return fmt.Errorf("MEDIA_TOKEN_TTL must be positive, got %s", c.MediaTokenTTL)
	}

	return nil
}
