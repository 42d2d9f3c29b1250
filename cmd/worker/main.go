// Command worker runs the scheduled digest pipeline: it collects articles
// from configured feeds, summarizes them across the available AI providers,
// publishes the daily output, and sweeps the retry queue for failed items.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	appconfig "ai-news-digest/internal/config"
	"ai-news-digest/internal/infra/collector"
	"ai-news-digest/internal/infra/publisher"
	"ai-news-digest/internal/infra/summarizer"
	workerPkg "ai-news-digest/internal/infra/worker"
	"ai-news-digest/internal/observability/logging"
	"ai-news-digest/internal/provider"
	"ai-news-digest/internal/retryqueue"
	"ai-news-digest/internal/usecase/summarize"
)

func main() {
	// Missing .env is fine; containers inject real environment.
	_ = godotenv.Load()

	logger := logging.Setup()

	appCfg, err := appconfig.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	workerCfg := workerPkg.LoadConfigFromEnv(logger)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerCfg.CronSchedule),
		slog.String("retry_cron_schedule", workerCfg.RetryCronSchedule),
		slog.String("timezone", workerCfg.Timezone),
		slog.Duration("pipeline_timeout", workerCfg.PipelineTimeout))

	feeds, err := appconfig.LoadFeeds(appCfg.FeedsFile)
	if err != nil {
		logger.Error("failed to load feeds file", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("feeds loaded",
		slog.String("file", appCfg.FeedsFile),
		slog.Int("sources", len(feeds.Sources)),
		slog.Int("enabled", len(feeds.EnabledSources())))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := buildApp(appCfg, feeds, logger)
	if err != nil {
		logger.Error("failed to initialize pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	workerMetrics := workerPkg.NewMetrics()
	startMetricsServer(ctx, logger, workerCfg.MetricsPort, app)

	healthAddr := fmt.Sprintf(":%d", workerCfg.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	runCron(ctx, logger, app, appCfg, workerCfg, workerMetrics, healthServer)
}

// app bundles the wired pipeline components.
type app struct {
	collector *collector.RSS
	service   *summarize.Service
	scheduler *retryqueue.Scheduler
	manager   *retryqueue.Manager
	registry  *provider.Registry
	publisher *publisher.Publisher
	feeds     *appconfig.FeedsConfig
	timezone  *time.Location
}

// buildApp wires providers, registry, selector, retry queue, orchestrator,
// collector, and publisher from the loaded configuration.
func buildApp(cfg *appconfig.AppConfig, feeds *appconfig.FeedsConfig, logger *slog.Logger) (*app, error) {
	providers := buildProviders(cfg, logger)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no summarization provider configured: set ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	registry := provider.NewRegistry(names, logger)

	weights := cfg.ProviderWeights
	if len(feeds.Weights) > 0 {
		weights = feeds.Weights
	}
	selector := provider.NewSelector(registry, weights, feeds.Preferences, nil, logger)

	storage := retryqueue.NewStorage(cfg.RetryQueuePath, logger)
	manager, err := retryqueue.NewManager(storage, cfg.Retry, logger, retryqueue.NewPrometheusQueueMetrics())
	if err != nil {
		return nil, fmt.Errorf("initialize retry queue: %w", err)
	}

	svcCfg := summarize.DefaultConfig()
	svcCfg.RateLimitCooldown = cfg.RateLimitCooldown
	service := summarize.NewService(providers, registry, selector, manager, svcCfg, logger)

	return &app{
		collector: collector.NewRSS(newFeedHTTPClient(), logger),
		service:   service,
		scheduler: retryqueue.NewScheduler(manager, service, logger),
		manager:   manager,
		registry:  registry,
		publisher: publisher.New(cfg.OutputPath, logger),
		feeds:     feeds,
	}, nil
}

// buildProviders creates one adapter per configured API key. Setting
// SUMMARIZER_NOOP=true swaps in a pass-through provider for local runs
// without credentials.
func buildProviders(cfg *appconfig.AppConfig, logger *slog.Logger) map[string]summarize.Provider {
	providers := make(map[string]summarize.Provider)

	if os.Getenv("SUMMARIZER_NOOP") == "true" {
		noop := summarizer.NewNoOp("noop")
		providers[noop.Name()] = noop
		logger.Warn("using no-op summarizer, summaries will be truncated source text")
		return providers
	}

	metrics := summarizer.NewPrometheusMetrics()
	if cfg.AnthropicAPIKey != "" {
		c := summarizer.NewClaude(cfg.AnthropicAPIKey, metrics)
		providers[c.Name()] = c
		logger.Info("provider enabled", slog.String("provider", c.Name()))
	}
	if cfg.OpenAIAPIKey != "" {
		o := summarizer.NewOpenAI(cfg.OpenAIAPIKey, metrics)
		providers[o.Name()] = o
		logger.Info("provider enabled", slog.String("provider", o.Name()))
	}
	return providers
}

// newFeedHTTPClient creates the HTTP client used for feed fetching with
// connection pooling and TLS 1.2+.
func newFeedHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// runCron registers the pipeline and retry sweep jobs and blocks until the
// context is cancelled.
func runCron(ctx context.Context, logger *slog.Logger, a *app, appCfg *appconfig.AppConfig, workerCfg workerPkg.Config, metrics *workerPkg.Metrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(workerCfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC",
			slog.String("timezone", workerCfg.Timezone),
			slog.Any("error", err))
		loc = time.UTC
	}
	a.timezone = loc

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(workerCfg.CronSchedule, func() {
		runPipelineJob(logger, a, appCfg, workerCfg, metrics)
	}); err != nil {
		logger.Error("failed to register pipeline job", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := c.AddFunc(workerCfg.RetryCronSchedule, func() {
		runRetrySweep(logger, a, workerCfg, metrics)
	}); err != nil {
		logger.Error("failed to register retry sweep job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("pipeline_schedule", workerCfg.CronSchedule),
		slog.String("retry_schedule", workerCfg.RetryCronSchedule),
		slog.String("timezone", workerCfg.Timezone))

	<-ctx.Done()
	healthServer.SetReady(false)
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("worker stopped")
}

// runPipelineJob executes one full pipeline run: collect, summarize,
// publish, clean up.
func runPipelineJob(logger *slog.Logger, a *app, appCfg *appconfig.AppConfig, workerCfg workerPkg.Config, metrics *workerPkg.Metrics) {
	start := time.Now()
	logger.Info("pipeline run started")

	ctx, cancel := context.WithTimeout(context.Background(), workerCfg.PipelineTimeout)
	defer cancel()

	articles, err := a.collector.Collect(ctx, a.feeds.EnabledSources())
	if err != nil {
		logger.Error("feed collection failed", slog.Any("error", err))
		metrics.RecordJobRun(workerPkg.JobPipeline, "failure")
		metrics.RecordJobDuration(workerPkg.JobPipeline, time.Since(start).Seconds())
		return
	}

	result, err := a.service.ProcessBatch(ctx, articles)
	if err != nil {
		logger.Error("batch processing failed", slog.Any("error", err))
		metrics.RecordJobRun(workerPkg.JobPipeline, "failure")
		metrics.RecordJobDuration(workerPkg.JobPipeline, time.Since(start).Seconds())
		return
	}

	date := time.Now().In(a.timezone).Format("2006-01-02")
	digest := a.service.GenerateDigest(ctx, date, result.Succeeded)

	if err := a.publisher.MergeDailyNews(date, result.Succeeded); err != nil {
		logger.Error("publishing daily news failed", slog.Any("error", err))
	}
	if err := a.publisher.PublishDigest(digest); err != nil {
		logger.Error("publishing digest failed", slog.Any("error", err))
	}
	if err := a.publisher.PublishDiagnostics(a.registry.Snapshot(), a.manager.Status()); err != nil {
		logger.Error("publishing diagnostics failed", slog.Any("error", err))
	}

	if removed, err := a.manager.Cleanup(appCfg.CleanupMaxAge); err != nil {
		logger.Error("retry queue cleanup failed", slog.Any("error", err))
	} else if removed > 0 {
		metrics.RecordJobRun(workerPkg.JobCleanup, "success")
	}
	if _, err := a.publisher.CleanupOldNews(appCfg.RetentionDays); err != nil {
		logger.Error("published data cleanup failed", slog.Any("error", err))
	}

	metrics.RecordJobRun(workerPkg.JobPipeline, "success")
	metrics.RecordJobDuration(workerPkg.JobPipeline, time.Since(start).Seconds())
	metrics.RecordArticlesProcessed(len(result.Succeeded))
	metrics.RecordLastSuccess(workerPkg.JobPipeline)

	logger.Info("pipeline run completed",
		slog.String("date", date),
		slog.Int("collected", len(articles)),
		slog.Int("succeeded", len(result.Succeeded)),
		slog.Int("queued", len(result.Queued)),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("duration", time.Since(start)))
}

// runRetrySweep executes one scheduled retry sweep and merges any recovered
// articles into today's published output.
func runRetrySweep(logger *slog.Logger, a *app, workerCfg workerPkg.Config, metrics *workerPkg.Metrics) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), workerCfg.RetryTimeout)
	defer cancel()

	stats, err := a.scheduler.ExecuteScheduledRetries(ctx)
	if err != nil {
		logger.Error("retry sweep failed", slog.Any("error", err))
		metrics.RecordJobRun(workerPkg.JobRetrySweep, "failure")
		metrics.RecordJobDuration(workerPkg.JobRetrySweep, time.Since(start).Seconds())
		return
	}

	if len(stats.Recovered) > 0 {
		date := time.Now().In(a.timezone).Format("2006-01-02")
		if err := a.publisher.MergeDailyNews(date, stats.Recovered); err != nil {
			logger.Error("merging recovered articles failed", slog.Any("error", err))
		}
		metrics.RecordArticlesProcessed(len(stats.Recovered))
	}
	if err := a.publisher.PublishDiagnostics(a.registry.Snapshot(), a.manager.Status()); err != nil {
		logger.Error("publishing diagnostics failed", slog.Any("error", err))
	}

	metrics.RecordJobRun(workerPkg.JobRetrySweep, "success")
	metrics.RecordJobDuration(workerPkg.JobRetrySweep, time.Since(start).Seconds())
	metrics.RecordLastSuccess(workerPkg.JobRetrySweep)
}
