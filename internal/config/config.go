package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CrawlConfig configures identifier resolution and the review crawl.
type CrawlConfig struct {
	MaxReviews         int      `yaml:"max_reviews" mapstructure:"max_reviews"`
	Concurrency        int      `yaml:"concurrency" mapstructure:"concurrency"`
	NavTimeoutSecs     int      `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	ResolveTimeoutSecs int      `yaml:"resolve_timeout_secs" mapstructure:"resolve_timeout_secs"`
	ReviewURLTemplate  string   `yaml:"review_url_template" mapstructure:"review_url_template"`
	BlockMarkers       []string `yaml:"block_markers" mapstructure:"block_markers"`
	SmallCap           int      `yaml:"small_cap" mapstructure:"small_cap"`
	SmallBudget        int      `yaml:"small_budget" mapstructure:"small_budget"`
	Budget             int      `yaml:"budget" mapstructure:"budget"`
	Seed               uint64   `yaml:"seed" mapstructure:"seed"`
	SessionsPerMinute  float64  `yaml:"sessions_per_minute" mapstructure:"sessions_per_minute"`
}

// BrowserConfig configures the Chrome launcher.
type BrowserConfig struct {
	Headless bool   `yaml:"headless" mapstructure:"headless"`
	ExecPath string `yaml:"exec_path" mapstructure:"exec_path"`
	Locale   string `yaml:"locale" mapstructure:"locale"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnalysisConfig configures retries and the circuit breaker around the
// red-flag analysis call.
type AnalysisConfig struct {
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int `yaml:"port" mapstructure:"port"`
	MaxConcurrent      int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RequestTimeoutSecs int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REDFLAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_concurrent", 2)
	v.SetDefault("server.request_timeout_secs", 180)
	v.SetDefault("crawl.max_reviews", 50)
	v.SetDefault("crawl.concurrency", 2)
	v.SetDefault("crawl.nav_timeout_secs", 30)
	v.SetDefault("crawl.resolve_timeout_secs", 15)
	v.SetDefault("crawl.review_url_template", "https://m.place.naver.com/place/%s/review/visitor")
	v.SetDefault("crawl.block_markers", []string{"이용이 제한되었습니다"})
	v.SetDefault("crawl.small_cap", 10)
	v.SetDefault("crawl.small_budget", 2)
	v.SetDefault("crawl.budget", 5)
	v.SetDefault("crawl.seed", 0)
	v.SetDefault("crawl.sessions_per_minute", 0)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.locale", "ko-KR")
	v.SetDefault("browser.timezone", "Asia/Seoul")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("analysis.timeout_secs", 120)
	v.SetDefault("analysis.max_attempts", 3)
	v.SetDefault("analysis.initial_backoff_ms", 1000)
	v.SetDefault("analysis.max_backoff_ms", 15000)
	v.SetDefault("analysis.multiplier", 2.0)
	v.SetDefault("analysis.jitter_fraction", 0.25)
	v.SetDefault("analysis.failure_threshold", 5)
	v.SetDefault("analysis.reset_timeout_secs", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Mode is one of
// "crawl", "analyze" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "crawl":
	case "analyze":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.MaxConcurrent < 1 {
			problems = append(problems, "server.max_concurrent must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Crawl.MaxReviews < 1 {
		problems = append(problems, "crawl.max_reviews must be >= 1")
	}
	if c.Crawl.Concurrency < 1 || c.Crawl.Concurrency > 16 {
		problems = append(problems, "crawl.concurrency must be between 1 and 16")
	}
	if strings.Count(c.Crawl.ReviewURLTemplate, "%s") != 1 {
		problems = append(problems, "crawl.review_url_template must contain exactly one %s")
	}
	if c.Crawl.NavTimeoutSecs <= 0 {
		problems = append(problems, "crawl.nav_timeout_secs must be > 0")
	}
	if c.Crawl.SessionsPerMinute < 0 {
		problems = append(problems, "crawl.sessions_per_minute must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New(fmt.Sprintf("config: invalid for %s: %s", mode, strings.Join(problems, "; ")))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
