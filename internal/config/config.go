// Package config holds the explicit configuration value passed to every
// standardstore component.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full standardstore configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	API      APIConfig      `yaml:"api"`
	Index    IndexConfig    `yaml:"index"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig configures the Common Standards Project client.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxAttempts       int           `yaml:"max_attempts"`
	Timeout           time.Duration `yaml:"timeout"`
	Concurrency       int           `yaml:"concurrency"`
}

// IndexConfig configures the vector index and upload batching.
type IndexConfig struct {
	Path       string        `yaml:"path"`
	Name       string        `yaml:"name"`
	Namespace  string        `yaml:"namespace"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
	BatchPause time.Duration `yaml:"batch_pause"`
}

// EmbedderConfig configures the embedding model.
type EmbedderConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig configures the search tool.
type SearchConfig struct {
	DefaultResults  int     `yaml:"default_results"`
	MaxResults      int     `yaml:"max_results"`
	Threshold       float64 `yaml:"threshold"`
	CandidateFactor int     `yaml:"candidate_factor"`
}

// ServerConfig configures the daemon listeners.
type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	WithCaller bool   `yaml:"with_caller"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: "data",
		API: APIConfig{
			BaseURL:           "https://api.commonstandardsproject.com/api/v1",
			RequestsPerMinute: 60,
			MaxAttempts:       3,
			Timeout:           30 * time.Second,
			Concurrency:       4,
		},
		Index: IndexConfig{
			Path:       filepath.Join("data", "index.db"),
			Name:       "common-core-standards",
			Namespace:  "standards",
			BatchSize:  96,
			MaxRetries: 5,
			MaxBackoff: 60 * time.Second,
			BatchPause: 100 * time.Millisecond,
		},
		Embedder: EmbedderConfig{
			URL:     "http://localhost:11434",
			Model:   "nomic-embed-text",
			Timeout: 60 * time.Second,
		},
		Search: SearchConfig{
			DefaultResults:  5,
			MaxResults:      20,
			Threshold:       0,
			CandidateFactor: 2,
		},
		Server: ServerConfig{
			Port:        50051,
			MetricsPort: 9090,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (if
// path is non-empty) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"CSP_API_KEY":               &c.API.APIKey,
		"CSP_BASE_URL":              &c.API.BaseURL,
		"STANDARDSTORE_DATA_DIR":    &c.DataDir,
		"STANDARDSTORE_INDEX_PATH":  &c.Index.Path,
		"STANDARDSTORE_NAMESPACE":   &c.Index.Namespace,
		"STANDARDSTORE_LOG_LEVEL":   &c.Log.Level,
		"STANDARDSTORE_EMBED_MODEL": &c.Embedder.Model,
		"OLLAMA_HOST":               &c.Embedder.URL,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("MAX_REQUESTS_PER_MINUTE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_REQUESTS_PER_MINUTE: %w", err)
		}
		c.API.RequestsPerMinute = n
	}
	return nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]int{
		"api.requests_per_minute": c.API.RequestsPerMinute,
		"api.max_attempts":        c.API.MaxAttempts,
		"api.concurrency":         c.API.Concurrency,
		"index.batch_size":        c.Index.BatchSize,
		"index.max_retries":       c.Index.MaxRetries,
		"search.default_results":  c.Search.DefaultResults,
		"search.max_results":      c.Search.MaxResults,
		"search.candidate_factor": c.Search.CandidateFactor,
		"server.port":             c.Server.Port,
		"server.metrics_port":     c.Server.MetricsPort,
	}
	for _, name := range slices.Sorted(maps.Keys(positive)) {
		if positive[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, positive[name]))
		}
	}
	if c.Search.DefaultResults > c.Search.MaxResults {
		errs = append(errs, fmt.Errorf("search.default_results (%d) exceeds search.max_results (%d)",
			c.Search.DefaultResults, c.Search.MaxResults))
	}
	if c.Index.Namespace == "" {
		errs = append(errs, errors.New("index.namespace must be set"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must be set"))
	}
	return errors.Join(errs...)
}

// RawDir is where API responses are cached.
func (c *Config) RawDir() string {
	return filepath.Join(c.DataDir, "raw")
}
