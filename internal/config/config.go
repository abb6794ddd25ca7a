package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tejaschuahan/job-scraper-bot/internal/filter"
)

type SiteConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Search struct {
		Queries         []string `yaml:"queries"`
		DefaultLocation string   `yaml:"default_location"`
	} `yaml:"search"`

	Scraping struct {
		IntervalSeconds   int      `yaml:"interval_seconds"`
		MinDelaySeconds   int      `yaml:"min_delay_seconds"`
		MaxDelaySeconds   int      `yaml:"max_delay_seconds"`
		MaxRetries        int      `yaml:"max_retries"`
		RetryDelaySeconds int      `yaml:"retry_delay_seconds"`
		TimeoutSeconds    int      `yaml:"timeout_seconds"`
		PoolSize          int      `yaml:"pool_size"`
		PerHost           int      `yaml:"per_host"`
		Proxies           []string `yaml:"proxies"`
	} `yaml:"scraping"`

	Sites map[string]SiteConfig `yaml:"sites"`

	Adzuna struct {
		AppID  string `yaml:"app_id"`
		AppKey string `yaml:"app_key"`
	} `yaml:"adzuna"`

	Email struct {
		Enabled     bool   `yaml:"enabled"`
		IMAPHost    string `yaml:"imap_host"`
		IMAPPort    int    `yaml:"imap_port"`
		Username    string `yaml:"username"`
		Mailbox     string `yaml:"mailbox"`
		MaxMessages int    `yaml:"max_messages"`
	} `yaml:"email"`

	Filters filter.RuleSet `yaml:"filters"`

	Telegram struct {
		BotToken       string  `yaml:"bot_token"`
		ChatID         string  `yaml:"chat_id"`
		DisablePreview bool    `yaml:"disable_preview"`
		PerSecond      float64 `yaml:"per_second"`
	} `yaml:"telegram"`

	Enrichment struct {
		Enabled       bool   `yaml:"enabled"`
		APIKey        string `yaml:"api_key"`
		Model         string `yaml:"model"`
		Summaries     bool   `yaml:"summaries"`
		Scores        bool   `yaml:"scores"`
		ExpandQueries bool   `yaml:"expand_queries"`
	} `yaml:"enrichment"`

	Monitoring struct {
		HealthCheckMinutes    int  `yaml:"health_check_minutes"`
		StaleAfterMinutes     int  `yaml:"stale_after_minutes"`
		SummaryHours          int  `yaml:"summary_hours"`
		ResetAfterSummary     bool `yaml:"reset_after_summary"`
		FailureAlertThreshold int  `yaml:"failure_alert_threshold"`
	} `yaml:"monitoring"`

	Dedupe struct {
		RetentionDays int `yaml:"retention_days"`
		SimilarWindow int `yaml:"similar_window"`
	} `yaml:"dedupe"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv lets secrets come from the environment instead of the config
// file. The file value wins only when the variable is unset.
func (c *Config) applyEnv() {
	envOr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envOr(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	envOr(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	envOr(&c.Adzuna.AppID, "ADZUNA_APP_ID")
	envOr(&c.Adzuna.AppKey, "ADZUNA_APP_KEY")
	envOr(&c.Enrichment.APIKey, "OPENAI_API_KEY")
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 8675
	}
	if c.App.DataDir == "" {
		c.App.DataDir = "data"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/jobs.db"
	}
	if c.Scraping.IntervalSeconds == 0 {
		c.Scraping.IntervalSeconds = 300
	}
	if c.Scraping.MinDelaySeconds == 0 {
		c.Scraping.MinDelaySeconds = 1
	}
	if c.Scraping.MaxDelaySeconds == 0 {
		c.Scraping.MaxDelaySeconds = 3
	}
	if c.Scraping.MaxRetries == 0 {
		c.Scraping.MaxRetries = 3
	}
	if c.Scraping.RetryDelaySeconds == 0 {
		c.Scraping.RetryDelaySeconds = 5
	}
	if c.Scraping.TimeoutSeconds == 0 {
		c.Scraping.TimeoutSeconds = 30
	}
	if c.Scraping.PoolSize == 0 {
		c.Scraping.PoolSize = 10
	}
	if c.Scraping.PerHost == 0 {
		c.Scraping.PerHost = 5
	}
	if c.Telegram.PerSecond == 0 {
		c.Telegram.PerSecond = 2
	}
	if c.Monitoring.HealthCheckMinutes == 0 {
		c.Monitoring.HealthCheckMinutes = 30
	}
	if c.Monitoring.StaleAfterMinutes == 0 {
		c.Monitoring.StaleAfterMinutes = 60
	}
	if c.Monitoring.SummaryHours == 0 {
		c.Monitoring.SummaryHours = 24
	}
	if c.Monitoring.FailureAlertThreshold == 0 {
		c.Monitoring.FailureAlertThreshold = 5
	}
	if c.Dedupe.RetentionDays == 0 {
		c.Dedupe.RetentionDays = 30
	}
	if c.Dedupe.SimilarWindow == 0 {
		c.Dedupe.SimilarWindow = 100
	}
	if c.Email.IMAPPort == 0 {
		c.Email.IMAPPort = 993
	}
	if c.Email.Mailbox == "" {
		c.Email.Mailbox = "INBOX"
	}
	if c.Email.MaxMessages == 0 {
		c.Email.MaxMessages = 10
	}
}

// SiteEnabled reports whether a source is switched on in config.
// Unknown names are off.
func (c Config) SiteEnabled(name string) bool {
	s, ok := c.Sites[name]
	return ok && s.Enabled
}
