package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	AllowOrigins       string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	EventsChannel      string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ScorerDefaultModel string
	ScorerMaxTokens    int
	ScorerTimeout      time.Duration
	RunConcurrency     int
	RunRetryMax        int
	RunRetryBaseDelay  time.Duration
	RunRetryMaxDelay   time.Duration
	RunLockTTL         time.Duration
	ResultsPageSize    int
	RateLimitPerMinute int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("JUDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Judge")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.allow_origins", "*")
	v.SetDefault("events.channel", "judge")
	v.SetDefault("scorer.default_model", "gpt-4o-mini")
	v.SetDefault("scorer.max_tokens", 512)
	v.SetDefault("scorer.timeout", "60s")
	v.SetDefault("run.concurrency", 1)
	v.SetDefault("run.retry_max", 0)
	v.SetDefault("run.retry_base_delay", "500ms")
	v.SetDefault("run.retry_max_delay", "15s")
	v.SetDefault("run.lock_ttl", "30m")
	v.SetDefault("results.page_size", 500)
	v.SetDefault("rate_limit.per_minute", 30)

	durations := make(map[string]time.Duration, 4)
	for _, key := range []string{"scorer.timeout", "run.retry_base_delay", "run.retry_max_delay", "run.lock_ttl"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		AllowOrigins:       v.GetString("app.allow_origins"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		EventsChannel:      v.GetString("events.channel"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		OpenAIBaseURL:      v.GetString("openai_base_url"),
		ScorerDefaultModel: v.GetString("scorer.default_model"),
		ScorerMaxTokens:    v.GetInt("scorer.max_tokens"),
		ScorerTimeout:      durations["scorer.timeout"],
		RunConcurrency:     v.GetInt("run.concurrency"),
		RunRetryMax:        v.GetInt("run.retry_max"),
		RunRetryBaseDelay:  durations["run.retry_base_delay"],
		RunRetryMaxDelay:   durations["run.retry_max_delay"],
		RunLockTTL:         durations["run.lock_ttl"],
		ResultsPageSize:    v.GetInt("results.page_size"),
		RateLimitPerMinute: v.GetInt("rate_limit.per_minute"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}
	if cfg.RunConcurrency <= 0 {
		cfg.RunConcurrency = 1
	}
	if cfg.RunRetryMax < 0 {
		cfg.RunRetryMax = 0
	}
	if cfg.ResultsPageSize <= 0 || cfg.ResultsPageSize > 500 {
		cfg.ResultsPageSize = 500
	}

	return cfg, nil
}
