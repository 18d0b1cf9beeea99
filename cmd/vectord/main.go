// Vectord bootstraps vector database collections and keeps the chosen
// engine healthy.
//
// On startup it selects a storage engine in configured priority order,
// creates the configured collections from templates, then serves an admin
// HTTP surface (/healthz, /readyz, /metrics) while a background loop probes
// the active engine and fails over when it goes down.
//
// Configuration is layered: compiled defaults, then an optional YAML file,
// then VECTORD_* environment variables.
//
// Usage:
//
//	# Start with defaults (qdrant primary, chromem fallback)
//	vectord
//
//	# Configure via file and environment
//	VECTORD_AUTO_INIT_PRIMARY_ENGINE=chromem vectord -config /etc/vectord/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/backend"
	"github.com/fyrsmithlabs/vectord/internal/bootstrap"
	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/server"
	"github.com/fyrsmithlabs/vectord/internal/template"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vectord\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n",
			version, gitCommit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("vectord error: %v", err)
	}
	log.Println("Shutdown complete")
}

// run wires configuration, templates, backends and the orchestrator, starts
// the admin server and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting vectord",
		zap.Int("port", cfg.Server.Port),
		zap.String("primary_engine", string(cfg.VectorDatabase.AutoInit.PrimaryEngine)),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	templates, err := template.Load(cfg.VectorDatabase.TemplatesPath, logger)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	logger.Info("Templates loaded",
		zap.Strings("collections", templates.Templates()))

	backends := backend.NewRegistry(logger)
	orch := bootstrap.New(cfg, backends, templates, logger)

	// A degraded bootstrap is not fatal: the admin surface still serves and
	// /readyz reports 503 until a later reinitialization succeeds.
	ok, err := orch.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if !ok {
		logger.Warn("No engine available at startup, running degraded")
	}

	srv := server.New(cfg, orch)
	logger.Info("Server configured",
		zap.String("ready_endpoint", fmt.Sprintf("http://localhost:%d/readyz", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"))

	serveErr := srv.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Orchestrator shutdown failed", zap.Error(err))
	}

	if serveErr != nil && serveErr != http.ErrServerClosed {
		return serveErr
	}
	return nil
}
