package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/tenderwatch/internal/models"
)

// Config represents the application configuration
type Config struct {
	Sources   []models.SourceAccount `toml:"sources" validate:"dive"`
	Fetcher   FetcherConfig          `toml:"fetcher"`
	Extractor ExtractorConfig        `toml:"extractor"`
	Scrape    ScrapeConfig           `toml:"scrape"`
	Email     EmailConfig            `toml:"email"`
	Scheduler SchedulerConfig        `toml:"scheduler"`
	Storage   StorageConfig          `toml:"storage"`
	Logging   LoggingConfig          `toml:"logging"`
}

// FetcherConfig controls the article list fetcher protocol
type FetcherConfig struct {
	MaxArticlesPerCrawl int           `toml:"max_articles_per_crawl" validate:"gte=0"`
	DefaultPageSize     int           `toml:"default_page_size" validate:"gte=1,lte=100"`
	RetryCount          int           `toml:"retry_count" validate:"gte=0"`        // attempts per page for transient failures
	RetryDelay          time.Duration `toml:"retry_delay"`                         // fixed delay between attempts
	RateLimitCooldown   time.Duration `toml:"rate_limit_cooldown"`                 // sleep after a soft rate-limit before retrying the same offset
	RequestDelayMin     time.Duration `toml:"request_delay_min"`                   // politeness delay between pages, lower bound
	RequestDelayMax     time.Duration `toml:"request_delay_max" validate:"gte=0"`  // politeness delay between pages, upper bound
	RequestTimeout      time.Duration `toml:"request_timeout" validate:"required"` // per-request HTTP timeout
	UserAgent           string        `toml:"user_agent"`
}

// ExtractorConfig holds the tunable validation rules for bid extraction.
// These are heuristics tied to the upstream text format, so they live in
// config rather than in the parser.
type ExtractorConfig struct {
	MinProjectNameLen int    `toml:"min_project_name_len" validate:"gte=0"`
	CurrencyMarker    string `toml:"currency_marker"`
}

// ScrapeConfig controls the article content retriever
type ScrapeConfig struct {
	RetryCount     int           `toml:"retry_count" validate:"gte=0"`
	RetryDelay     time.Duration `toml:"retry_delay"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	RequestsPerSec float64       `toml:"requests_per_sec" validate:"gt=0"` // per-domain rate limit
	UserAgent      string        `toml:"user_agent"`
}

// EmailConfig holds SMTP settings for bid notifications
type EmailConfig struct {
	Enabled    bool     `toml:"enabled"`
	Host       string   `toml:"host" validate:"required_if=Enabled true"`
	Port       int      `toml:"port" validate:"omitempty,gte=1,lte=65535"`
	Username   string   `toml:"username"`
	Password   string   `toml:"password"`
	From       string   `toml:"from" validate:"omitempty,email"`
	FromName   string   `toml:"from_name"`
	Recipients []string `toml:"recipients" validate:"dive,email"`
	UseTLS     bool     `toml:"use_tls"`
}

// SchedulerConfig controls unattended crawl triggering. Exactly one of
// interval/cron/daily time is authoritative, in that priority order.
type SchedulerConfig struct {
	Enabled         bool   `toml:"enabled"`
	IntervalMinutes int    `toml:"interval_minutes" validate:"gte=0"`
	Cron            string `toml:"cron"`
	DailyTime       string `toml:"daily_time"` // "HH:MM", normalized into a cron expression
	Timezone        string `toml:"timezone"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Output []string `toml:"output" validate:"dive,oneof=stdout console file"`
}

// NewDefaultConfig creates a configuration with default values. The fetcher
// and extractor defaults mirror the upstream feed's tolerances and should
// only be tightened with care.
func NewDefaultConfig() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			MaxArticlesPerCrawl: 50,
			DefaultPageSize:     5,
			RetryCount:          3,
			RetryDelay:          5 * time.Second,
			RateLimitCooldown:   60 * time.Second,
			RequestDelayMin:     5 * time.Second,
			RequestDelayMax:     10 * time.Second,
			RequestTimeout:      10 * time.Second,
			UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Extractor: ExtractorConfig{
			MinProjectNameLen: 5,
			CurrencyMarker:    "元",
		},
		Scrape: ScrapeConfig{
			RetryCount:     3,
			RetryDelay:     5 * time.Second,
			RequestTimeout: 30 * time.Second,
			RequestsPerSec: 0.5,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Email: EmailConfig{
			Port:     465,
			FromName: "TenderWatch",
			UseTLS:   true,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Cron:     "0 7 * * *",
			Timezone: "Asia/Shanghai",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if level := os.Getenv("TENDERWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("TENDERWATCH_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if host := os.Getenv("TENDERWATCH_SMTP_HOST"); host != "" {
		config.Email.Host = host
	}
	if port := os.Getenv("TENDERWATCH_SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Email.Port = p
		}
	}
	if password := os.Getenv("TENDERWATCH_SMTP_PASSWORD"); password != "" {
		config.Email.Password = password
	}
	if tz := os.Getenv("TENDERWATCH_TIMEZONE"); tz != "" {
		config.Scheduler.Timezone = tz
	}
	if delay := os.Getenv("TENDERWATCH_REQUEST_DELAY_MIN"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Fetcher.RequestDelayMin = d
		}
	}
	if delay := os.Getenv("TENDERWATCH_REQUEST_DELAY_MAX"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Fetcher.RequestDelayMax = d
		}
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Fetcher.RequestDelayMax < c.Fetcher.RequestDelayMin {
		return fmt.Errorf("invalid configuration: fetcher request_delay_max %v is below request_delay_min %v",
			c.Fetcher.RequestDelayMax, c.Fetcher.RequestDelayMin)
	}
	return nil
}

// EnabledSources returns the enabled source accounts, with per-account
// defaults filled from the fetcher section.
func (c *Config) EnabledSources() []models.SourceAccount {
	sources := make([]models.SourceAccount, 0, len(c.Sources))
	for _, src := range c.Sources {
		if !src.Enabled {
			continue
		}
		if src.PageSize <= 0 {
			src.PageSize = c.Fetcher.DefaultPageSize
		}
		if src.FilterLogic == "" {
			src.FilterLogic = models.FilterLogicOr
		}
		sources = append(sources, src)
	}
	return sources
}

// DeepCloneConfig creates a deep copy of the Config struct. Reloading
// constructs new components from a clone rather than mutating live ones.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Sources) > 0 {
		clone.Sources = make([]models.SourceAccount, len(c.Sources))
		copy(clone.Sources, c.Sources)
		for i := range clone.Sources {
			if len(c.Sources[i].FilterKeywords) > 0 {
				clone.Sources[i].FilterKeywords = make([]string, len(c.Sources[i].FilterKeywords))
				copy(clone.Sources[i].FilterKeywords, c.Sources[i].FilterKeywords)
			}
		}
	}

	if len(c.Email.Recipients) > 0 {
		clone.Email.Recipients = make([]string, len(c.Email.Recipients))
		copy(clone.Email.Recipients, c.Email.Recipients)
	}

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	return &clone
}
