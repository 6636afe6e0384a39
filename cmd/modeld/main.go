// Modeld is a financial model generation daemon.
//
// It exposes an HTTP API that takes a company name or ticker, researches its
// fundamentals, recommends a model type, and delivers a finished Excel
// workbook with scenarios, comparables and a dashboard.
//
// Configuration is loaded from an optional YAML file plus MODELD_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	modeld
//
//	# Start with a config file
//	modeld -config /etc/modeld/config.yaml
//
//	# Configure via environment
//	MODELD_SERVER_PORT=9090 MODELD_PROVIDERS_GROQ_API_KEY=... modeld
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fintrustlabs/modeld/internal/config"
	"github.com/fintrustlabs/modeld/internal/httpapi"
	"github.com/fintrustlabs/modeld/internal/logging"
	"github.com/fintrustlabs/modeld/internal/marketdata"
	"github.com/fintrustlabs/modeld/internal/pipeline"
	"github.com/fintrustlabs/modeld/internal/provider"
	"github.com/fintrustlabs/modeld/internal/qa"
	"github.com/fintrustlabs/modeld/internal/render"
	"github.com/fintrustlabs/modeld/internal/session"
	"github.com/fintrustlabs/modeld/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  modeld           Start the modeld daemon\n")
			fmt.Fprintf(os.Stderr, "  modeld version   Show version information\n")
			os.Exit(1)
		}
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
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("modeld by Fintrust Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the modeld server and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting modeld",
		zap.String("version", version),
		zap.String("commit", gitCommit))

	// Install the meter provider before any instruments are created so the
	// pipeline and HTTP counters reach /metrics.
	shutdownMetrics, err := telemetry.Setup("modeld", version, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdownMetrics(context.Background()) //nolint:errcheck

	store := session.NewStore()

	fetcher := marketdata.NewYahooClient(
		cfg.MarketData.BaseURL,
		cfg.MarketData.Timeout.Duration(),
		logger.Named("marketdata"),
	)

	reasoning, narrative := buildAdapters(cfg, logger)

	renderer, err := render.NewRenderer(cfg.Output.Dir, logger.Named("render"))
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	auditor := qa.NewAuditor(logger.Named("qa"))

	orch, err := pipeline.New(store, fetcher, renderer, auditor, pipeline.Options{
		ReasoningAdapters: reasoning,
		NarrativeAdapters: narrative,
		AttemptTimeout:    cfg.Providers.Timeout.Duration(),
		AutoConfirm:       cfg.Pipeline.AutoConfirm,
		LogWindow:         cfg.Pipeline.StatusLogWindow,
	}, logger.Named("pipeline"))
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	server, err := httpapi.NewServer(store, orch, logger.Named("http"), &httpapi.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// buildAdapters wires the configured providers into the two cascades. The
// reasoning chain prefers the local model; the narrative chain prefers the
// hosted models. Misconfigured providers are skipped with a log line so a
// bare install still works through the deterministic fallbacks.
func buildAdapters(cfg *config.Config, logger *zap.Logger) (reasoning, narrative []provider.Adapter) {
	if cfg.Providers.Ollama.Enabled {
		ollama, err := provider.NewOllamaAdapter(cfg.Providers.Ollama.ServerURL, cfg.Providers.Ollama.Model)
		if err != nil {
			logger.Warn("skipping ollama provider", zap.Error(err))
		} else {
			reasoning = append(reasoning, ollama)
		}
	}

	if cfg.Providers.Gemini.APIKey.IsSet() {
		gemini, err := provider.NewGeminiAdapter(
			cfg.Providers.Gemini.BaseURL,
			cfg.Providers.Gemini.APIKey.Value(),
			cfg.Providers.Gemini.Model,
			cfg.Providers.Timeout.Duration(),
		)
		if err != nil {
			logger.Warn("skipping gemini provider", zap.Error(err))
		} else {
			narrative = append(narrative, gemini)
		}
	}

	if cfg.Providers.Groq.APIKey.IsSet() {
		groq, err := provider.NewGroqAdapter(
			cfg.Providers.Groq.BaseURL,
			cfg.Providers.Groq.APIKey.Value(),
			cfg.Providers.Groq.Model,
		)
		if err != nil {
			logger.Warn("skipping groq provider", zap.Error(err))
		} else {
			narrative = append(narrative, groq)
			reasoning = append(reasoning, groq)
		}
	}

	logger.Info("providers configured",
		zap.Int("reasoning", len(reasoning)),
		zap.Int("narrative", len(narrative)))
	return reasoning, narrative
}
