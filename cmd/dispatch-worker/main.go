// The dispatch worker consumes queued fan-out jobs from SQS and runs
// the inline dispatcher for each. It shares state with the API server
// through Redis, so both binaries see the same request registry.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yakushift/staffing-platform/internal/app/bootstrap"
	"github.com/yakushift/staffing-platform/internal/chat"
	appconfig "github.com/yakushift/staffing-platform/internal/config"
	"github.com/yakushift/staffing-platform/internal/dispatch"
	"github.com/yakushift/staffing-platform/internal/observability/metrics"
	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting staffing-platform dispatch worker",
		"env", cfg.Env,
		"workers", cfg.WorkerCount,
	)

	if cfg.DispatchQueueURL == "" {
		logger.Error("DISPATCH_QUEUE_URL is required for the dispatch worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("REDIS_ADDR is required: the worker shares the request registry with the API server")
		os.Exit(1)
	}
	registry := staffing.NewRedisRegistry(redisClient)
	history := dispatch.NewRedisHistory(redisClient)

	dir, err := bootstrap.BuildDirectory(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build directory store", "error", err)
		os.Exit(1)
	}

	build, reason := chat.BuildNotifier(chat.ProviderSelectionConfig{
		Preference:        cfg.ChatProvider,
		LineChannelSecret: cfg.LineChannelSecret,
		LineChannelToken:  cfg.LineChannelToken,
		LineAPIBaseURL:    cfg.LineAPIBaseURL,
		TelegramBotToken:  cfg.TelegramBotToken,
		TelegramAllowFrom: cfg.TelegramAllowFrom,
	}, logger)
	if build == nil {
		logger.Error("failed to build chat provider", "reason", reason)
		os.Exit(1)
	}

	awsCfg, err := bootstrap.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.DispatchQueueURL)

	reg := prometheus.NewRegistry()
	dispMetrics := metrics.NewDispatchMetrics(reg)

	inline := dispatch.New(dir, registry, build.Notifier, logger,
		dispatch.WithHistory(history),
		dispatch.WithMetrics(dispMetrics),
	)

	workerOpts := []dispatch.WorkerOption{
		dispatch.WithWorkerCount(cfg.WorkerCount),
		dispatch.WithWorkerMetrics(dispMetrics),
	}
	if cfg.DispatchJobsTable != "" {
		jobs := dispatch.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.DispatchJobsTable, logger)
		workerOpts = append(workerOpts, dispatch.WithJobUpdater(jobs))
	}

	worker := dispatch.NewWorker(queue, registry, inline, logger, workerOpts...)
	worker.Start(ctx)
	logger.Info("dispatch worker running", "queue", cfg.DispatchQueueURL)

	<-ctx.Done()
	logger.Info("shutting down, draining in-flight jobs...")
	worker.Wait()
	logger.Info("dispatch worker stopped")
}
