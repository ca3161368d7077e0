package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/config"
	"gitlab.com/timkado/api/wa-property-crm/internal/httpserver"
	"gitlab.com/timkado/api/wa-property-crm/internal/jetstream"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/internal/realtime"
	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/internal/usecase"
	"gitlab.com/timkado/api/wa-property-crm/internal/whatsapp"
	"gitlab.com/timkado/api/wa-property-crm/internal/worker"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Log.Fatal("Configuration is incomplete", zap.Error(err))
	}

	observer.InitMetrics(cfg.Metrics.Enabled)

	logger.Log.Info("Starting WA Property CRM",
		zap.String("environment", cfg.Environment),
		zap.String("phone_number_id", cfg.WhatsApp.PhoneNumberID),
		zap.Bool("nats_enabled", cfg.NATS.URL != ""),
	)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.AutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	contactRepo := storage.NewContactRepoAdapter(postgresRepo)
	messageRepo := storage.NewMessageRepoAdapter(postgresRepo)
	campaignRepo := storage.NewCampaignRepoAdapter(postgresRepo)
	activityRepo := storage.NewActivityRepoAdapter(postgresRepo)
	propertyRepo := storage.NewPropertyRepoAdapter(postgresRepo)

	waClient := whatsapp.NewClient(cfg.WhatsApp)
	verifyCtx, verifyCancel := context.WithTimeout(mainCtx, cfg.WhatsApp.Timeout)
	if err := waClient.VerifyCredentials(verifyCtx); err != nil {
		// Sends will fail until the token is fixed, but webhooks can still be stored.
		if apperrors.IsUnauthorizedError(err) {
			logger.Log.Error("WhatsApp access token rejected, outbound sends will fail", zap.Error(err))
		} else {
			logger.Log.Warn("WhatsApp credential check failed", zap.Error(err))
		}
	}
	verifyCancel()

	// Realtime: the hub always serves local websocket clients. With NATS, events
	// go through JetStream and come back to every replica's hub via the relay.
	hub := realtime.NewHub()
	go hub.Run(mainCtx)

	var publisher realtime.Publisher = hub
	var broker httpserver.BrokerStatus
	var jsClient *jetstream.Client
	if cfg.NATS.URL != "" {
		jsClient, err = initJetStreamClient(mainCtx, cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.SubjectPrefix)
		if err != nil {
			logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
		}
		if _, err := realtime.StartRelay(jsClient, cfg.NATS.SubjectPrefix, hub); err != nil {
			logger.Log.Fatal("Failed to start realtime relay", zap.Error(err))
		}
		publisher = realtime.NewNATSPublisher(jsClient, cfg.NATS.SubjectPrefix)
		broker = jsClient
	}

	webhookPool, err := worker.NewPool("webhook", cfg.WorkerPools.Webhook, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize webhook worker pool", zap.Error(err))
	}
	campaignPool, err := worker.NewPool("campaign", cfg.WorkerPools.Campaign, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize campaign worker pool", zap.Error(err))
	}

	personalizer := usecase.NewPersonalizer(cfg.Business.CurrencySymbol)
	outbox := usecase.NewOutbox(waClient, messageRepo, contactRepo)
	stageService := usecase.NewStageService(contactRepo, activityRepo, publisher)
	statusService := usecase.NewStatusService(messageRepo, campaignRepo, publisher)
	responder := usecase.NewAutoResponder(outbox, stageService, contactRepo, cfg.Business.Name)
	webhookService := usecase.NewWebhookService(contactRepo, messageRepo, statusService, responder, publisher, webhookPool)
	campaignService := usecase.NewCampaignService(
		campaignRepo,
		contactRepo,
		outbox,
		usecase.NewRateLimiter(cfg.Campaign.SendsPerSecond, cfg.Campaign.Burst),
		personalizer,
		publisher,
	)
	messagingService := usecase.NewMessagingService(contactRepo, propertyRepo, outbox, personalizer)
	scheduler := usecase.NewScheduler(campaignRepo, campaignService, campaignPool, cfg.Campaign.SchedulerInterval)

	deps := httpserver.Dependencies{
		Health:    postgresRepo,
		Webhook:   webhookService,
		Campaigns: campaignService,
		Stages:    stageService,
		Messaging: messagingService,
		Broker:    broker,
		Hub:       hub,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = promhttp.Handler()
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	}

	server := httpserver.NewServer(cfg, deps, logger.Log)
	server.Start()

	schedulerDone := make(chan struct{})
	utils.SafeGo(func() {
		defer close(schedulerDone)
		scheduler.Run(mainCtx)
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("Campaign scheduler panicked", zap.Any("panic", r), zap.ByteString("stack", stack))
	})

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", shutdownTimeout))

	// Stop accepting requests first so no new work reaches the pools.
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Log.Error("[shutdown] Error stopping HTTP server", zap.Error(err))
	}

	mainCancel()
	<-schedulerDone

	var wg sync.WaitGroup
	wg.Add(2)

	for _, pool := range []*worker.Pool{webhookPool, campaignPool} {
		pool := pool
		utils.SafeGo(func() {
			defer wg.Done()
			start := time.Now()
			pool.Stop(shutdownTimeout)
			logger.Log.Info("[shutdown] Worker pool stopped", zap.Duration("duration", time.Since(start)))
		}, func(r interface{}, stack []byte) {
			logger.Log.Error("[shutdown] Panic while stopping worker pool",
				zap.Any("panic", r),
				zap.ByteString("stack", stack),
			)
		})
	}

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] Worker pools drained")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	if jsClient != nil {
		jsClient.Close()
		logger.Log.Info("[shutdown] JetStream connection closed")
	}
	if err := postgresRepo.Close(shutdownCtx); err != nil {
		logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
	}

	logger.Log.Info("WA Property CRM shutdown complete")
}

// Initialize PostgreSQL repository
func initPostgresRepo(dsn string, autoMigrate bool) (*storage.PostgresRepo, error) {
	repo, err := storage.NewPostgresRepo(dsn, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

// initJetStreamClient connects to NATS and makes sure the event stream exists.
func initJetStreamClient(ctx context.Context, url, stream, subjectPrefix string) (*jetstream.Client, error) {
	client, err := jetstream.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}
	if err := client.SetupStream(ctx, jetstream.EventStreamConfig(stream, subjectPrefix)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set up stream %s: %w", stream, err)
	}
	return client, nil
}
