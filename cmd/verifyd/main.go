// Verifyd is the HealthGuard verification daemon.
//
// It serves the evidence-fusion verdict engine over HTTP: ingestion of
// facts, misinformation, and reference imagery; direct search; agent
// queries; and per-user memory management.
//
// Usage:
//
//	# Start with defaults (Qdrant on localhost:6334)
//	verifyd
//
//	# Start with a config file
//	verifyd --config /etc/verifyd/config.yaml
//
//	# Configure via environment
//	VERIFYD_SERVER__PORT=9000 VERIFYD_STORE__BACKEND=chromem verifyd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/healthguardlabs/verifyd/internal/compose"
	"github.com/healthguardlabs/verifyd/internal/config"
	"github.com/healthguardlabs/verifyd/internal/embeddings"
	"github.com/healthguardlabs/verifyd/internal/httpapi"
	"github.com/healthguardlabs/verifyd/internal/ingest"
	"github.com/healthguardlabs/verifyd/internal/logging"
	"github.com/healthguardlabs/verifyd/internal/memory"
	"github.com/healthguardlabs/verifyd/internal/observability"
	"github.com/healthguardlabs/verifyd/internal/vectorstore"
	"github.com/healthguardlabs/verifyd/internal/verdict"
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
		fmt.Printf("verifyd by HealthGuard Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
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

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// run initializes all dependencies, starts the HTTP server, and blocks
// until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logging.Sync(logger) //nolint:errcheck

	logger.Info("starting verifyd",
		zap.String("version", version),
		zap.String("store_backend", string(cfg.Store.Backend)))

	store, err := vectorstore.New(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer store.Close()

	textEmbedder, err := embeddings.NewTextEmbedder(cfg.Embeddings.Text)
	if err != nil {
		return fmt.Errorf("initializing text embedder: %w", err)
	}
	imageEmbedder, err := embeddings.NewImageEmbedder(cfg.Embeddings.Image)
	if err != nil {
		return fmt.Errorf("initializing image embedder: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics("verifyd", registry)

	memories, err := memory.NewStore(store, textEmbedder, cfg.Memory, logger)
	if err != nil {
		return fmt.Errorf("initializing memory store: %w", err)
	}
	memories.SetMetrics(metrics)

	var generator compose.Generator
	if cfg.Generator.Enabled() {
		gen, err := compose.NewOpenAIGenerator(cfg.Generator)
		if err != nil {
			return fmt.Errorf("initializing generator: %w", err)
		}
		generator = gen
		logger.Info("grounded-text generator enabled", zap.String("model", cfg.Generator.Model))
	} else {
		logger.Warn("no generator API key set, responses use rule-based fallback text")
	}
	composer := compose.NewComposer(generator, logger)
	composer.SetMetrics(metrics)

	engine, err := verdict.NewEngine(store, textEmbedder, imageEmbedder, memories, composer, nil, cfg.Verdict, logger)
	if err != nil {
		return fmt.Errorf("initializing verdict engine: %w", err)
	}
	engine.SetMetrics(metrics)

	ingestor, err := ingest.NewService(store, textEmbedder, imageEmbedder, cfg.Verdict, cfg.Memory, logger)
	if err != nil {
		return fmt.Errorf("initializing ingest service: %w", err)
	}
	if err := ingestor.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("ensuring collections: %w", err)
	}

	server, err := httpapi.NewServer(httpapi.Deps{
		Engine:   engine,
		Memories: memories,
		Ingestor: ingestor,
		Vectors:  store,
		Text:     textEmbedder,
		Image:    imageEmbedder,
		Verdict:  cfg.Verdict,
		Registry: registry,
		Logger:   logger,
		Addr:     cfg.Addr(),
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return <-errCh
	}
}
