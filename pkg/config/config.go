// Package config loads the crawler's YAML configuration and applies
// deployment defaults for the São Paulo city council portal.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// PortalConfig locates the listing API.
type PortalConfig struct {
	BaseURL     string `yaml:"base_url"`
	ListingPath string `yaml:"listing_path"`
	Referer     string `yaml:"referer"`
	UserAgent   string `yaml:"user_agent"`
}

// SourceConfig identifies the crawled house in stored records.
type SourceConfig struct {
	House string `yaml:"house"`
	UF    string `yaml:"uf"`
	Slug  string `yaml:"slug"`
}

// CrawlConfig bounds a crawl run.
type CrawlConfig struct {
	PageSize int `yaml:"page_size"`

	// DataInicio and DataFim filter by filing date, dd/mm/yyyy. Empty
	// means unbounded.
	DataInicio string `yaml:"data_inicio"`
	DataFim    string `yaml:"data_fim"`

	// Limit stops the crawl after that many records. Zero means no limit.
	Limit int `yaml:"limit"`
}

// FetchConfig tunes the HTTP layer.
type FetchConfig struct {
	TimeoutSec     int `yaml:"timeout_sec"`
	CacheTTLMin    int `yaml:"cache_ttl_min"`
	MinIntervalSec int `yaml:"min_interval_sec"`
	MaxIntervalSec int `yaml:"max_interval_sec"`
	MaxRetries     int `yaml:"max_retries"`
}

// StorageConfig locates the document root and the proposal store.
type StorageConfig struct {
	Root  string `yaml:"root"`
	Mongo struct {
		URI        string `yaml:"uri"`
		Database   string `yaml:"database"`
		Collection string `yaml:"collection"`
	} `yaml:"mongo"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Config is the full crawler configuration.
type Config struct {
	Portal  PortalConfig  `yaml:"portal"`
	Source  SourceConfig  `yaml:"source"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Storage StorageConfig `yaml:"storage"`
	Redis   string        `yaml:"redis"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log LogConfig `yaml:"log"`
}

// Default returns the configuration for the SP deployment. A config file
// only needs to state what differs.
func Default() *Config {
	cfg := &Config{
		Portal: PortalConfig{
			BaseURL:     "https://splegisconsulta.saopaulo.sp.leg.br",
			ListingPath: "/Pesquisa/PageDataProjeto",
			Referer:     "https://splegisconsulta.saopaulo.sp.leg.br/Pesquisa/IndexProjeto",
			UserAgent:   "splegis-crawler/1.0",
		},
		Source: SourceConfig{
			House: "Câmara Municipal de São Paulo",
			UF:    "SP",
			Slug:  "sp-sao-paulo",
		},
		Crawl: CrawlConfig{
			PageSize: 100,
		},
		Fetch: FetchConfig{
			TimeoutSec:     30,
			CacheTTLMin:    15,
			MinIntervalSec: 2,
			MaxIntervalSec: 60,
			MaxRetries:     3,
		},
		Redis: "redis://localhost:6379",
		Log: LogConfig{
			Level: "info",
		},
	}
	cfg.Storage.Root = "data"
	cfg.Storage.Mongo.URI = "mongodb://localhost:27017"
	cfg.Storage.Mongo.Database = "splegis"
	cfg.Storage.Mongo.Collection = "proposals"
	cfg.Metrics.Addr = ":9090"
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the crawler cannot default its way around.
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	if c.Portal.UserAgent == "" {
		return fmt.Errorf("portal.user_agent is required")
	}
	if c.Source.UF == "" || c.Source.Slug == "" {
		return fmt.Errorf("source.uf and source.slug are required")
	}
	if c.Crawl.PageSize <= 0 {
		return fmt.Errorf("crawl.page_size must be positive")
	}
	if c.Crawl.Limit < 0 {
		return fmt.Errorf("crawl.limit must not be negative")
	}
	if c.Fetch.MinIntervalSec <= 0 {
		return fmt.Errorf("fetch.min_interval_sec must be positive")
	}
	return nil
}

// Timeout returns the HTTP timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// CacheTTL returns the listing-cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Fetch.CacheTTLMin) * time.Minute
}

// MinInterval returns the politeness interval as a duration.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.Fetch.MinIntervalSec) * time.Second
}

// MaxInterval returns the backoff ceiling as a duration.
func (c *Config) MaxInterval() time.Duration {
	return time.Duration(c.Fetch.MaxIntervalSec) * time.Second
}
