// Package config holds the simwatch configuration structs and YAML loader.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/simwatch/score"
)

// Config holds all simwatch configuration.
type Config struct {
	DBPath     string            `yaml:"db_path"`
	Entities   []string          `yaml:"entities"`
	Indicators []score.Indicator `yaml:"indicators"`
	Detect     DetectConfig      `yaml:"detect"`
	Crawler    CrawlerConfig     `yaml:"crawler"`
	Scheduler  SchedulerConfig   `yaml:"scheduler"`
	Server     ServerConfig      `yaml:"server"`
	Report     ReportConfig      `yaml:"report"`
	Webhooks   []WebhookConfig   `yaml:"webhooks"`
}

// DetectConfig controls change detection.
type DetectConfig struct {
	SignificanceThreshold float64 `yaml:"significance_threshold"`
}

// CrawlerConfig controls evidence collection.
type CrawlerConfig struct {
	UserAgent string         `yaml:"user_agent"`
	Timeout   time.Duration  `yaml:"timeout"`
	MaxBytes  int64          `yaml:"max_bytes"`
	Queries   []string       `yaml:"queries"` // {entity} expanded per entity
	Engines   []EngineConfig `yaml:"engines"`
	Pages     []PageConfig   `yaml:"pages"`
}

// EngineConfig describes one JSON search API.
type EngineConfig struct {
	Name        string            `yaml:"name"`
	URLTemplate string            `yaml:"url_template"` // {query} expanded per query
	Method      string            `yaml:"method"`
	Headers     map[string]string `yaml:"headers"` // ${ENV_VAR} expanded at request time
	ResultPath  string            `yaml:"result_path"`
	Fields      map[string]string `yaml:"fields"`
	RateLimitMs int64             `yaml:"rate_limit_ms"`
	MaxResults  int               `yaml:"max_results"`
	Disabled    bool              `yaml:"disabled"`
}

// PageConfig describes one directly monitored page.
type PageConfig struct {
	Entity string `yaml:"entity"` // entity hint; page text is attributed here
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
}

// SchedulerConfig controls the continuous cycle runner.
type SchedulerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Jitter       float64       `yaml:"jitter"` // fraction of interval, [0,1)
	DeadManAfter time.Duration `yaml:"dead_man_after"`
}

// ServerConfig controls the HTTP API and dashboard.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassHash string `yaml:"admin_pass_hash"` // bcrypt hash
	RateLimit     int    `yaml:"rate_limit"` // requests per IP per minute, 0 disables
}

// ReportConfig controls report generation.
type ReportConfig struct {
	TopN       int    `yaml:"top_n"`
	OutputDir  string `yaml:"output_dir"`
	SealKeyEnv string `yaml:"seal_key_env"` // env var holding the hex seal key
}

// WebhookConfig describes one change notification target.
type WebhookConfig struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	SecretEnv string `yaml:"secret_env"` // env var holding the HMAC secret
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "simwatch.db"
	}
	if c.Detect.SignificanceThreshold <= 0 {
		c.Detect.SignificanceThreshold = 0.3
	}
	if c.Crawler.UserAgent == "" {
		c.Crawler.UserAgent = "simwatch/1.0"
	}
	if c.Crawler.Timeout <= 0 {
		c.Crawler.Timeout = 30 * time.Second
	}
	if c.Crawler.MaxBytes <= 0 {
		c.Crawler.MaxBytes = 10 * 1024 * 1024
	}
	if len(c.Crawler.Queries) == 0 {
		c.Crawler.Queries = []string{"{entity} prepaid sim registration requirements"}
	}
	for i := range c.Crawler.Engines {
		if c.Crawler.Engines[i].MaxResults <= 0 {
			c.Crawler.Engines[i].MaxResults = 10
		}
	}
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = 6 * time.Hour
	}
	if c.Scheduler.Jitter < 0 {
		c.Scheduler.Jitter = 0
	}
	if c.Scheduler.DeadManAfter <= 0 {
		c.Scheduler.DeadManAfter = 3 * c.Scheduler.Interval
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Report.TopN <= 0 {
		c.Report.TopN = 10
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "reports"
	}
}

// Validate checks the parts that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.Entities) == 0 {
		return fmt.Errorf("config: no entities configured")
	}
	if len(c.Indicators) == 0 {
		return fmt.Errorf("config: no indicators configured")
	}
	for i, ind := range c.Indicators {
		if strings.TrimSpace(ind.Phrase) == "" {
			return fmt.Errorf("config: indicator %d has an empty phrase", i)
		}
	}
	if c.Scheduler.Jitter >= 1 {
		return fmt.Errorf("config: scheduler jitter %v must be below 1", c.Scheduler.Jitter)
	}
	for _, e := range c.Crawler.Engines {
		if e.Name == "" {
			return fmt.Errorf("config: engine with empty name")
		}
		if !strings.Contains(e.URLTemplate, "{query}") {
			return fmt.Errorf("config: engine %q url_template lacks {query}", e.Name)
		}
	}
	for _, p := range c.Crawler.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: page %q has no url", p.Name)
		}
	}
	for _, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("config: webhook %q has no url", w.Name)
		}
	}
	return nil
}

// Load reads a YAML config file, applies defaults, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses YAML config bytes, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
