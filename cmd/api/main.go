package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yakushift/staffing-platform/internal/app/bootstrap"
	"github.com/yakushift/staffing-platform/internal/archive"
	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/chatlog"
	appconfig "github.com/yakushift/staffing-platform/internal/config"
	"github.com/yakushift/staffing-platform/internal/conversation"
	"github.com/yakushift/staffing-platform/internal/dispatch"
	"github.com/yakushift/staffing-platform/internal/events"
	"github.com/yakushift/staffing-platform/internal/httpapi"
	"github.com/yakushift/staffing-platform/internal/observability/metrics"
	"github.com/yakushift/staffing-platform/internal/opsalert"
	"github.com/yakushift/staffing-platform/internal/records"
	"github.com/yakushift/staffing-platform/internal/reminder"
	"github.com/yakushift/staffing-platform/internal/session"
	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/internal/webchat"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// notificationHistory is the full history surface: dispatch records
// send outcomes through it and the admin API reads them back.
type notificationHistory interface {
	dispatch.History
	Notifications(ctx context.Context, requestID string) (map[string]string, error)
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting staffing-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	convMetrics := metrics.NewConversationMetrics(reg)
	dispMetrics := metrics.NewDispatchMetrics(reg)
	arbMetrics := metrics.NewArbitrationMetrics(reg)
	remMetrics := metrics.NewReminderMetrics(reg)
	webMetrics := metrics.NewWebhookMetrics(reg)

	// Keyed stores: Redis when reachable, in-memory otherwise.
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	var (
		sessions session.Store
		registry staffing.Registry
		deduper  events.Deduper
		limiter  reminder.Limiter
		history  notificationHistory
	)
	if redisClient != nil && cfg.SessionBackend == "redis" {
		sessions = session.NewRedisStore(redisClient)
	} else {
		sessions = session.NewMemoryStore()
	}
	if redisClient != nil {
		registry = staffing.NewRedisRegistry(redisClient)
		deduper = events.NewRedisStore(redisClient)
		limiter = reminder.NewRedisLimiter(redisClient, cfg.ReminderMaxSends, cfg.ReminderCooldown)
		history = dispatch.NewRedisHistory(redisClient)
	} else {
		registry = staffing.NewMemoryRegistry()
		deduper = events.NewMemoryDeduper()
		limiter = reminder.NewMemoryLimiter(cfg.ReminderMaxSends, cfg.ReminderCooldown)
		history = dispatch.NewMemoryHistory()
	}

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
	logger.Info("chat provider selected", "provider", build.Provider)

	arbiter := staffing.NewArbiter(registry, dir, logger)
	inline := dispatch.New(dir, registry, build.Notifier, logger,
		dispatch.WithHistory(history),
		dispatch.WithMetrics(dispMetrics),
	)

	// AWS clients are only built when a component needs them.
	needsAWS := cfg.DispatchQueueURL != "" || cfg.DispatchJobsTable != "" ||
		cfg.ArchiveBucket != "" || (cfg.OpsAlertEmail != "" && cfg.EmailProvider == "ses")
	var (
		dynamoClient *dynamodb.Client
		s3Client     *s3.Client
		sesClient    *sesv2.Client
		sqsClient    *sqs.Client
	)
	if needsAWS {
		awsCfg, err := bootstrap.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
		s3Client = s3.NewFromConfig(awsCfg)
		sesClient = sesv2.NewFromConfig(awsCfg)
		sqsClient = sqs.NewFromConfig(awsCfg)
	}

	var jobs *dispatch.JobStore
	if cfg.DispatchJobsTable != "" && dynamoClient != nil {
		jobs = dispatch.NewJobStore(dynamoClient, cfg.DispatchJobsTable, logger)
	}

	// Fan-out path: inline by default; a queue defers it to the worker
	// pool (in-process for the memory queue, cmd/dispatch-worker for SQS).
	var engineDispatcher conversation.Dispatcher = inline
	var worker *dispatch.Worker
	switch {
	case cfg.DispatchInline:
		// keep inline
	case cfg.UseMemoryQueue:
		queue := dispatch.NewMemoryQueue(128)
		enqOpts := []dispatch.EnqueuerOption{}
		workerOpts := []dispatch.WorkerOption{
			dispatch.WithWorkerCount(cfg.WorkerCount),
			dispatch.WithWorkerMetrics(dispMetrics),
		}
		if jobs != nil {
			enqOpts = append(enqOpts, dispatch.WithJobRecorder(jobs))
			workerOpts = append(workerOpts, dispatch.WithJobUpdater(jobs))
		}
		engineDispatcher = dispatch.NewEnqueuer(queue, logger, enqOpts...)
		worker = dispatch.NewWorker(queue, registry, inline, logger, workerOpts...)
		worker.Start(ctx)
	case cfg.DispatchQueueURL != "" && sqsClient != nil:
		queue := dispatch.NewSQSQueue(sqsClient, cfg.DispatchQueueURL)
		enqOpts := []dispatch.EnqueuerOption{}
		if jobs != nil {
			enqOpts = append(enqOpts, dispatch.WithJobRecorder(jobs))
		}
		engineDispatcher = dispatch.NewEnqueuer(queue, logger, enqOpts...)
	}

	engineOpts := []conversation.Option{
		conversation.WithDispatcher(engineDispatcher),
		conversation.WithMetrics(convMetrics, arbMetrics),
	}

	// Best-effort persistence: records (pgx) and the chat log (lib/pq).
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Warn("records store disabled", "error", err)
	}
	var recordsStore *records.Store
	if pool != nil {
		defer pool.Close()
		recordsStore = records.NewStore(pool, logger)
		engineOpts = append(engineOpts, conversation.WithRecorder(recordsStore))
		deduper = events.NewPostgresStore(pool)
	}
	var transcript *chatlog.Store
	if db, err := bootstrap.BuildChatLogDB(cfg); err != nil {
		logger.Warn("chat log disabled", "error", err)
	} else if db != nil {
		defer func() { _ = db.Close() }()
		transcript = chatlog.NewStore(db)
		engineOpts = append(engineOpts, conversation.WithTranscript(transcript))
	}

	if cfg.ArchiveBucket != "" && s3Client != nil {
		engineOpts = append(engineOpts,
			conversation.WithArchiver(archive.NewStore(s3Client, cfg.ArchiveBucket, logger)))
	}

	if cfg.OpsAlertEmail != "" {
		var sender opsalert.EmailSender
		switch cfg.EmailProvider {
		case "sendgrid":
			if s := opsalert.NewSendGridSender(opsalert.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger); s != nil {
				sender = s
			}
		default:
			if s := opsalert.NewSESSender(sesClient, opsalert.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SESFromName,
			}, logger); s != nil {
				sender = s
			}
		}
		if sender != nil {
			engineOpts = append(engineOpts,
				conversation.WithAlerter(opsalert.NewService(sender, cfg.OpsAlertEmail, logger)))
		} else {
			logger.Warn("ops alerts configured without a usable email sender",
				"provider", cfg.EmailProvider)
		}
	}

	engine := conversation.NewEngine(sessions, registry, arbiter, dir, build.Notifier, logger, engineOpts...)

	// Bounded nudge to notified-but-silent pharmacists.
	nudge := reminder.NewService(registry, limiter, build.Notifier, logger,
		reminder.WithMetrics(remMetrics))
	if err := nudge.Start(cfg.ReminderSweepSchedule); err != nil {
		logger.Error("failed to start reminder sweep", "error", err)
		os.Exit(1)
	}
	defer nudge.Stop()

	if build.Telegram != nil {
		go func() {
			if err := build.Telegram.Start(ctx, engine.HandleEvent); err != nil && ctx.Err() == nil {
				logger.Error("telegram transport failed", "error", err)
			}
		}()
	}

	adminOpts := []httpapi.AdminOption{
		httpapi.WithAdminDispatcher(engineDispatcher),
		httpapi.WithAdminHistory(history),
		httpapi.WithAdminLatencySnapshot(httpapi.DispatchLatency(reg)),
	}
	if recordsStore != nil {
		adminOpts = append(adminOpts, httpapi.WithAdminStatistics(recordsStore.Statistics))
	}

	routerCfg := &httpapi.Config{
		Logger:         logger,
		Webhook:        httpapi.NewWebhookHandler(cfg.LineChannelSecret, engine, deduper, webMetrics, logger),
		Admin:          httpapi.NewAdminHandler(registry, arbiter, engine, dir, logger, adminOpts...),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminToken:     cfg.AdminToken,
	}
	if cfg.DevConsoleEnabled && build.Memory != nil {
		routerCfg.DevChat = webchat.NewHandler(engine, build.Memory, transcript, logger)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpapi.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if worker != nil {
		worker.Wait()
	}
	logger.Info("server stopped")
}
