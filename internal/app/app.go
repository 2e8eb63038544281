// Package app wires settings into a running dependency-resolution stack:
// index store, catalog, registry, engine, orchestrator, and scanner.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jkoski/flowdeps/internal/catalog"
	"github.com/jkoski/flowdeps/internal/conf"
	"github.com/jkoski/flowdeps/internal/logging"
	"github.com/jkoski/flowdeps/internal/manifest"
	"github.com/jkoski/flowdeps/internal/modelindex"
	"github.com/jkoski/flowdeps/internal/observability/metrics"
	"github.com/jkoski/flowdeps/internal/registry"
	"github.com/jkoski/flowdeps/internal/resolver"
	"github.com/jkoski/flowdeps/internal/scanner"
	"github.com/jkoski/flowdeps/internal/workflow"
)

// App holds the wired components for one invocation.
type App struct {
	Settings *conf.Settings
	Store    *modelindex.Store
	Catalog  *catalog.Catalog
	Registry *registry.Registry
	Engine   *resolver.Engine
	Manifest *manifest.Manifest
	Scanner  *scanner.Scanner

	manager      modelindex.Manager
	indexMetrics *metrics.ModelIndexMetrics
	log          *slog.Logger
}

// New opens the index database and loads catalog, registry and manifest per
// the settings. Close must be called when done.
func New(settings *conf.Settings) (*App, error) {
	a := &App{
		Settings: settings,
		log:      logging.ForService("app"),
	}
	if a.log == nil {
		a.log = slog.Default()
	}

	reg := prometheus.NewRegistry()
	indexMetrics, err := metrics.NewModelIndexMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create index metrics: %w", err)
	}
	resolverMetrics, err := metrics.NewResolverMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver metrics: %w", err)
	}
	a.indexMetrics = indexMetrics

	manager, err := modelindex.NewSQLiteManager(modelindex.Config{
		Path:  settings.Index.Path,
		Debug: settings.Index.Debug,
	})
	if err != nil {
		return nil, err
	}
	if err := manager.Initialize(); err != nil {
		manager.Close()
		return nil, err
	}
	a.manager = manager
	a.Store = modelindex.NewStore(manager.DB(), modelindex.WithMetrics(indexMetrics))

	// A missing catalog or registry file degrades to an empty one so scan
	// and stats work before either is provisioned.
	if _, statErr := os.Stat(settings.Catalog.Path); statErr == nil {
		a.Catalog, err = catalog.Load(settings.Catalog.Path)
		if err != nil {
			manager.Close()
			return nil, err
		}
	} else {
		a.log.Warn("catalog file not found, continuing without it", "path", settings.Catalog.Path)
		a.Catalog = catalog.NewCatalog(nil)
	}

	ttl := time.Duration(settings.Registry.CacheTTLMinutes) * time.Minute
	if _, statErr := os.Stat(settings.Registry.Path); statErr == nil {
		a.Registry, err = registry.Load(settings.Registry.Path, ttl)
		if err != nil {
			manager.Close()
			return nil, err
		}
	} else {
		a.log.Warn("registry file not found, continuing without it", "path", settings.Registry.Path)
		a.Registry = registry.New(nil, ttl)
	}

	a.Manifest, err = manifest.Load(settings.Manifest.Path)
	if err != nil {
		manager.Close()
		return nil, err
	}

	a.Engine = resolver.New(resolver.Config{
		Categories:          settings.Models.Categories,
		ConfidenceThreshold: settings.Resolve.ConfidenceThreshold,
		MaxSuggestions:      settings.Resolve.MaxCandidates,
	}, a.Store, a.Registry, a.Catalog, resolver.WithMetrics(resolverMetrics))

	a.Scanner = scanner.New(a.Store, scanner.Config{
		Root:       settings.Models.Root,
		Extensions: settings.Models.Extensions,
		Workers:    settings.Models.ScanWorkers,
	}, scanner.WithMetrics(indexMetrics))

	return a, nil
}

// Close releases the index database connection.
func (a *App) Close() error {
	if a.manager == nil {
		return nil
	}
	return a.manager.Close()
}

// Orchestrator builds the merge orchestrator over the wired components.
func (a *App) Orchestrator() *resolver.Orchestrator {
	return resolver.NewOrchestrator(a.Manifest, a.Store, a.Catalog)
}

// ResolveWorkflowFile parses and resolves one workflow file.
func (a *App) ResolveWorkflowFile(ctx context.Context, path string) (*resolver.WorkflowResolutionResult, error) {
	analysis, err := workflow.ParseFile(path, a.Settings.Models.Extensions)
	if err != nil {
		return nil, err
	}
	return a.Engine.ResolveWorkflow(ctx, analysis)
}
