// Command taskvault runs the TaskVault MCP server.
//
// It communicates over stdio using JSON-RPC 2.0 (MCP protocol) and stores
// all data in a local SQLite database. When MD_VAULT_PATH is set, every
// successful write is mirrored into a Markdown vault.
//
// Optional environment variables:
//
//	DATABASE_PATH         - SQLite database file (default: data/tasks.db)
//	USE_FLYWAY            - Skip built-in migrations; an external tool owns the schema
//	MD_VAULT_PATH         - Markdown vault directory (unset disables export)
//	MD_VAULT_RECONCILE    - Interval for periodic full re-exports, e.g. 30m (default: off)
//	AGENT_CONFIG_DIR      - Directory holding workflow-config.yaml (default: .)
//	TASKVAULT_HTTP_ADDR   - Listen address for the HTTP transport (unset disables it)
//	TASKVAULT_HTTP_TOKEN  - Bearer token required by the HTTP transport
//	TASKVAULT_HTTP_CORS   - Allowed CORS origins (default: *)
//	TASKVAULT_LOG_LEVEL   - Log level: debug, info, warn, error (default: info)
//	TASKVAULT_LOG_FILE    - Also write logs to this file, with rotation
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/taskvault/taskvault/internal/config"
	"github.com/taskvault/taskvault/internal/content"
	"github.com/taskvault/taskvault/internal/graph"
	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/scheduler"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/storage/sqlite"
	"github.com/taskvault/taskvault/internal/template"
	"github.com/taskvault/taskvault/internal/tools/containers"
	"github.com/taskvault/taskvault/internal/tools/dependencies"
	"github.com/taskvault/taskvault/internal/tools/sections"
	"github.com/taskvault/taskvault/internal/tools/tags"
	"github.com/taskvault/taskvault/internal/tools/templates"
	vaulttools "github.com/taskvault/taskvault/internal/tools/vault"
	wftools "github.com/taskvault/taskvault/internal/tools/workflow"
	"github.com/taskvault/taskvault/internal/vault"
	"github.com/taskvault/taskvault/internal/workflow"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskvault: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Structured logging goes to stderr (stdout is for MCP protocol),
	// optionally duplicated into a rotating file.
	logger := newLogger(cfg.Log)

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}

	logger.Info("starting taskvault",
		"version", version,
		"database", cfg.Database.Path,
		"vault", cfg.Vault.Path,
	)

	// Set up signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Open storage
	store, err := sqlite.Open(ctx, cfg.Database.Path, sqlite.Options{
		RunMigrations: !cfg.Database.UseFlyway,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	if err := template.SeedBuiltins(ctx, store, logger); err != nil {
		return fmt.Errorf("seeding built-in templates: %w", err)
	}

	// Workflow engine. A missing or broken config falls back to the
	// built-in default flows; the watcher picks up fixes live.
	snap, err := workflow.Load(cfg.Workflow.Dir)
	if err != nil {
		logger.Warn("workflow config not loaded, using defaults",
			"dir", cfg.Workflow.Dir, "error", err)
		snap = workflow.DefaultSnapshot()
	}
	wf := workflow.NewEngine(store, snap, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := workflow.Watch(ctx, cfg.Workflow.Dir, wf, logger); err != nil {
			logger.Warn("workflow config watcher unavailable", "error", err)
		}
		return nil
	})

	// Vault export pipeline. Tools write through the synced store so
	// every successful mutation schedules the matching export.
	var (
		toolStore storage.Store = store
		pipeline  *vault.Pipeline
		exporter  containers.Exporter
	)
	if cfg.Vault.Path != "" {
		pipeline, err = vault.NewPipeline(cfg.Vault.Path, store, wf, logger)
		if err != nil {
			return fmt.Errorf("opening vault: %w", err)
		}
		toolStore = vault.NewSyncedStore(store, pipeline)
		exporter = pipeline
		g.Go(func() error { return pipeline.Run(ctx) })

		if cfg.Vault.ReconcileInterval > 0 {
			sched := scheduler.NewScheduler(logger)
			sched.AddJob(vault.NewReconcileJob(pipeline), cfg.Vault.ReconcileInterval)
			sched.Start(ctx)
			defer sched.Stop()
		}
	}

	graphEngine := graph.NewEngine(toolStore, wf)
	tmplEngine := template.NewEngine(toolStore)

	// Create tool registry and register tools
	registry := mcp.NewRegistry()

	// Container tools
	registry.Register(containers.NewManageContainer(toolStore, wf, tmplEngine, exporter))
	registry.Register(containers.NewQueryContainer(toolStore, wf))

	// Section tools
	registry.Register(sections.NewManageSections(toolStore))
	registry.Register(sections.NewQuerySections(toolStore))

	// Template tools
	registry.Register(templates.NewManageTemplate(toolStore))
	registry.Register(templates.NewQueryTemplates(toolStore))
	registry.Register(templates.NewApplyTemplate(tmplEngine, exporter))

	// Dependency tools
	registry.Register(dependencies.NewManageDependency(toolStore, graphEngine))
	registry.Register(dependencies.NewQueryDependencies(toolStore, graphEngine))

	// Tag tools
	registry.Register(tags.NewListTags(toolStore))
	registry.Register(tags.NewGetTagUsage(toolStore))
	registry.Register(tags.NewRenameTag(toolStore))

	// Workflow tools
	registry.Register(wftools.NewGetNextStatus(toolStore, wf))
	registry.Register(wftools.NewQueryWorkflowState(toolStore, wf))

	// Vault tools
	registry.Register(vaulttools.NewRebuildVault(pipeline))

	// Register prompts
	registry.RegisterPrompt(&content.GuidePrompt{})
	registry.RegisterPrompt(&content.NextWorkPrompt{})

	// Register resources
	registry.RegisterResource(&content.EntityModelResource{})
	registry.RegisterResource(&content.GuideResource{})
	registry.RegisterResource(&content.WorkflowResource{})
	registry.RegisterResource(&content.ToolReferenceResource{})
	registry.RegisterResource(&content.VaultLayoutResource{})

	// Create and run MCP server
	server := mcp.NewServer(registry, mcp.ServerInfo{
		Name:    cfg.Server.Name,
		Version: version,
	}, logger)

	g.Go(func() error { return server.Run(ctx) })

	// Optional HTTP transport alongside stdio.
	if cfg.HTTP.Addr != "" {
		httpSrv := mcp.NewHTTPServer(server, cfg.HTTP.Token, cfg.HTTP.CORS, logger)
		hs := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpSrv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http transport listening", "addr", cfg.HTTP.Addr)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if pipeline != nil {
		// The pipeline drains queued exports on shutdown; wait for it so
		// the vault reflects every acknowledged write.
		pipeline.Wait()
	}
	return err
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Level),
	}))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
