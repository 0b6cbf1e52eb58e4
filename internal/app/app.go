// ABOUTME: Component wiring shared by the standardstore and stdctl binaries
// ABOUTME: Builds every collaborator from one explicit Config value

package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nainya/standardstore/internal/config"
	"github.com/nainya/standardstore/internal/logger"
	"github.com/nainya/standardstore/internal/metrics"
	"github.com/nainya/standardstore/pkg/cspapi"
	"github.com/nainya/standardstore/pkg/datastore"
	"github.com/nainya/standardstore/pkg/index"
	"github.com/nainya/standardstore/pkg/tools"
)

// App holds the configuration and the shared ambient components.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    *datastore.Store
}

// New builds the ambient components for cfg and installs the process logger.
func New(cfg *config.Config) *App {
	log := logger.InitGlobalLogger(logger.Config{
		Level:      cfg.Log.Level,
		Pretty:     cfg.Log.Pretty,
		WithCaller: cfg.Log.WithCaller,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Metrics:  metrics.NewMetrics(reg),
		Store:    datastore.New(cfg.DataDir, log),
	}
}

// APIClient returns a standards API client caching under the data directory.
func (a *App) APIClient() *cspapi.Client {
	c := a.Config.API
	return cspapi.New(cspapi.Options{
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		RequestsPerMinute: c.RequestsPerMinute,
		MaxAttempts:       c.MaxAttempts,
		Timeout:           c.Timeout,
		Concurrency:       c.Concurrency,
		Cache:             a.Store,
		Logger:            a.Log,
		Metrics:           a.Metrics,
	})
}

// OpenIndex opens the vector index with the configured embedder.
func (a *App) OpenIndex() (*index.Index, error) {
	e := a.Config.Embedder
	return index.Open(index.Options{
		Path:            a.Config.Index.Path,
		Name:            a.Config.Index.Name,
		Namespace:       a.Config.Index.Namespace,
		Embedder:        index.NewOllamaEmbedder(e.URL, e.Model, e.Timeout),
		Model:           e.Model,
		Threshold:       a.Config.Search.Threshold,
		CandidateFactor: a.Config.Search.CandidateFactor,
		Logger:          a.Log,
		Metrics:         a.Metrics,
	})
}

// Uploader returns an uploader with the configured batching policy. A
// positive batchSize overrides the configuration.
func (a *App) Uploader(ix *index.Index, batchSize int) *index.Uploader {
	c := a.Config.Index
	if batchSize <= 0 {
		batchSize = c.BatchSize
	}
	return index.NewUploader(ix, index.UploaderOptions{
		BatchSize:  batchSize,
		MaxRetries: c.MaxRetries,
		MaxBackoff: c.MaxBackoff,
		BatchPause: c.BatchPause,
	})
}

// Tools returns the tool service over ix.
func (a *App) Tools(ix tools.Index) *tools.Service {
	return tools.NewService(ix, tools.Defaults{
		Results:    a.Config.Search.DefaultResults,
		MaxResults: a.Config.Search.MaxResults,
	}, a.Log)
}
