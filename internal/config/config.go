package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sourishdey2005/Med-Saarthi/internal/platform/llm"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	Timezone          string        `mapstructure:"TIMEZONE"`
	LLMBaseURL        string        `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey         string        `mapstructure:"LLM_API_KEY"`
	LLMModel          string        `mapstructure:"LLM_MODEL"`
	LLMTTSModel       string        `mapstructure:"LLM_TTS_MODEL"`
	LLMTTSVoice       string        `mapstructure:"LLM_TTS_VOICE"`
	LLMTimeout        time.Duration `mapstructure:"LLM_TIMEOUT"`
	LLMMaxRetries     uint64        `mapstructure:"LLM_MAX_RETRIES"`
	ReasoningCacheTTL time.Duration `mapstructure:"REASONING_CACHE_TTL"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "TIMEZONE",
	"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL", "LLM_TTS_MODEL", "LLM_TTS_VOICE",
	"LLM_TIMEOUT", "LLM_MAX_RETRIES", "REASONING_CACHE_TTL",
}

// Load reads configuration from the environment and an optional .env file.
// DATABASE_URL and REDIS_URL may be empty, in which case the server keeps
// patients and cached answers in memory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	llmDefaults := llm.DefaultConfig()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "90s")
	v.SetDefault("TIMEZONE", "Asia/Kolkata")
	v.SetDefault("LLM_BASE_URL", llmDefaults.BaseURL)
	v.SetDefault("LLM_MODEL", llmDefaults.Model)
	v.SetDefault("LLM_TTS_MODEL", llmDefaults.SpeechModel)
	v.SetDefault("LLM_TTS_VOICE", llmDefaults.Voice)
	v.SetDefault("LLM_TIMEOUT", llmDefaults.Timeout.String())
	v.SetDefault("LLM_MAX_RETRIES", llmDefaults.MaxRetries)
	v.SetDefault("REASONING_CACHE_TTL", "10m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	origins := v.GetString("CORS_ORIGINS")
	cfg.CORSOrigins = nil
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
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

// UsesPostgres reports whether patients are stored in PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// Location loads the zone used to bucket adherence events by day.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LLM returns the model client settings, keeping client defaults for
// anything not configured.
func (c *Config) LLM() llm.Config {
	out := llm.DefaultConfig()
	out.APIKey = c.LLMAPIKey
	if c.LLMBaseURL != "" {
		out.BaseURL = c.LLMBaseURL
	}
	if c.LLMModel != "" {
		out.Model = c.LLMModel
	}
	if c.LLMTTSModel != "" {
		out.SpeechModel = c.LLMTTSModel
	}
	if c.LLMTTSVoice != "" {
		out.Voice = c.LLMTTSVoice
	}
	if c.LLMTimeout > 0 {
		out.Timeout = c.LLMTimeout
	}
	out.MaxRetries = c.LLMMaxRetries
	return out
}

// Validate checks that the configuration is safe to run. In production the
// model API key is required, since every reasoning endpoint depends on it.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Env != "development" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be \"development\", \"production\", or \"test\", got %q", c.Env)
	}
	if c.IsProduction() && c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required in production")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	if c.ReasoningCacheTTL < 0 {
		return fmt.Errorf("REASONING_CACHE_TTL must not be negative, got %s", c.ReasoningCacheTTL)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
