// Command retryctl is the operator tool for the durable retry queue.
//
// Usage:
//
//	retryctl status                 show queue counters and per-provider failures
//	retryctl list                   list active queue items
//	retryctl retry-all              retry every active item now, ignoring schedules
//	retryctl retry-provider <name>  retry items that failed on the given provider
//	retryctl reset <id>             return an exhausted item to the active state
//	retryctl cleanup                remove exhausted and over-age items
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	appconfig "ai-news-digest/internal/config"
	"ai-news-digest/internal/infra/summarizer"
	"ai-news-digest/internal/observability/logging"
	"ai-news-digest/internal/provider"
	"ai-news-digest/internal/retryqueue"
	"ai-news-digest/internal/usecase/summarize"
)

func main() {
	_ = godotenv.Load()
	logger := logging.Setup()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := appconfig.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	storage := retryqueue.NewStorage(cfg.RetryQueuePath, logger)
	manager, err := retryqueue.NewManager(storage, cfg.Retry, logger, nil)
	if err != nil {
		logger.Error("failed to open retry queue", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "status":
		printJSON(manager.Status())

	case "list":
		printJSON(manager.ActiveItems())

	case "retry-all":
		handler := newHandler(cfg, manager, logger)
		stats, err := handler.RetryAll(ctx)
		reportRun(logger, stats, err)

	case "retry-provider":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		handler := newHandler(cfg, manager, logger)
		stats, err := handler.RetryByProvider(ctx, os.Args[2])
		reportRun(logger, stats, err)

	case "reset":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		if err := manager.ResetExhausted(os.Args[2]); err != nil {
			logger.Error("reset failed", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Println("item reset and eligible for retry")

	case "cleanup":
		removed, err := manager.Cleanup(cfg.CleanupMaxAge)
		if err != nil {
			logger.Error("cleanup failed", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("removed %d items\n", removed)

	default:
		usage()
		os.Exit(2)
	}
}

// newHandler wires a manual retry handler backed by the live providers.
func newHandler(cfg *appconfig.AppConfig, manager *retryqueue.Manager, logger *slog.Logger) *retryqueue.ManualHandler {
	providers := make(map[string]summarize.Provider)
	metrics := summarizer.NoopMetrics{}
	if cfg.AnthropicAPIKey != "" {
		c := summarizer.NewClaude(cfg.AnthropicAPIKey, metrics)
		providers[c.Name()] = c
	}
	if cfg.OpenAIAPIKey != "" {
		o := summarizer.NewOpenAI(cfg.OpenAIAPIKey, metrics)
		providers[o.Name()] = o
	}
	if len(providers) == 0 {
		logger.Error("no provider configured: set ANTHROPIC_API_KEY or OPENAI_API_KEY")
		os.Exit(1)
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	registry := provider.NewRegistry(names, logger)
	selector := provider.NewSelector(registry, cfg.ProviderWeights, nil, nil, logger)

	svcCfg := summarize.DefaultConfig()
	svcCfg.RateLimitCooldown = cfg.RateLimitCooldown
	service := summarize.NewService(providers, registry, selector, manager, svcCfg, logger)
	return retryqueue.NewManualHandler(manager, service, logger)
}

func reportRun(logger *slog.Logger, stats *retryqueue.RunStats, err error) {
	if err != nil {
		logger.Error("manual retry aborted", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("attempted %d, succeeded %d, failed %d\n",
		stats.Attempted, stats.Succeeded, stats.Failed)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: retryctl <command>

commands:
  status                 show queue counters and per-provider failures
  list                   list active queue items
  retry-all              retry every active item now, ignoring schedules
  retry-provider <name>  retry items that failed on the given provider
  reset <id>             return an exhausted item to the active state
  cleanup                remove exhausted and over-age items`)
}
