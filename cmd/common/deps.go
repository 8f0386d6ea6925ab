// Package common wires shared dependencies for the CLI commands.
package common

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/north-identity/reconvalidator/internal/artifact"
	"github.com/north-identity/reconvalidator/internal/auth"
	"github.com/north-identity/reconvalidator/internal/config"
	"github.com/north-identity/reconvalidator/internal/directory"
	"github.com/north-identity/reconvalidator/internal/httpx"
	"github.com/north-identity/reconvalidator/internal/logger"
	"github.com/north-identity/reconvalidator/internal/metrics"
	"github.com/north-identity/reconvalidator/internal/profile"
	"github.com/north-identity/reconvalidator/internal/recon"
)

// Options are the global CLI flags shared by all commands.
type Options struct {
	ConfigFile string
	Debug      bool
}

// Deps holds the constructed service graph.
type Deps struct {
	Config       *config.Config
	Logger       logger.Logger
	Orchestrator *recon.Orchestrator
	Store        artifact.Store
	Registry     *prometheus.Registry
}

// Build loads configuration and constructs the dependency graph.
func Build(opts Options) (*Deps, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	httpClient := httpx.NewDefaultClient()
	store := artifact.NewMemoryStore(cfg.Validation.ArtifactTTL)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	orch := recon.NewOrchestrator(
		auth.NewClient(httpClient, log),
		directory.NewClient(httpClient, log, cfg.Directory.UserPath),
		profile.NewClient(cfg.ProfileStore, httpClient, log),
		store,
		m,
		log,
	)

	return &Deps{
		Config:       cfg,
		Logger:       log,
		Orchestrator: orch,
		Store:        store,
		Registry:     registry,
	}, nil
}
