package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/config"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/internal/whatsapp"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

const (
	kindMessage = "message"
	kindStatus  = "status"

	defaultBatchSize = 20
)

// WebhookTask is one simulated provider callback.
type WebhookTask struct {
	Kind  string
	Phone string
}

// BatchTask is a batch of callbacks handled by one worker.
type BatchTask struct {
	Tasks  []WebhookTask
	Target string
}

// sender posts payloads the way the provider does, signing them when a secret is set.
type sender struct {
	client    *http.Client
	appSecret string
}

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	target := flag.String("target", fmt.Sprintf("http://localhost:%d/webhook", cfg.Server.Port), "Webhook URL")
	kindsStr := flag.String("kinds", kindMessage+","+kindStatus, "Comma-separated callback kinds (message, status)")
	rate := flag.Int("rate", 20, "Target callbacks per second (total)")
	duration := flag.Duration("duration", time.Minute, "Load test duration")
	concurrency := flag.Int("concurrency", 10, "Number of concurrent workers")
	senders := flag.Int("senders", 50, "Number of distinct customer phone numbers")
	batchSize := flag.Int("batch-size", defaultBatchSize, "Number of callbacks per worker batch")
	metricsPort := flag.Int("metrics-port", 9091, "Port for Prometheus metrics endpoint")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Webhook Load Generator\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Posts simulated WhatsApp callbacks to the CRM webhook.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *batchSize <= 0 {
		*batchSize = defaultBatchSize
	}
	if *rate <= 0 || *senders <= 0 || *concurrency <= 0 {
		fmt.Println("rate, senders and concurrency must be positive")
		os.Exit(1)
	}

	if err := logger.Initialize(*logLevel, cfg.Environment); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	observer.InitMetrics(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsServer := startMetricsServer(*metricsPort)
	var metricsWg sync.WaitGroup
	metricsWg.Add(1)
	go func() {
		defer metricsWg.Done()
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Metrics server shutdown error", zap.Error(err))
		}
	}()

	kinds := strings.Split(*kindsStr, ",")
	for _, k := range kinds {
		if k != kindMessage && k != kindStatus {
			logger.Log.Fatal("Unsupported callback kind", zap.String("kind", k))
		}
	}

	phones := make([]string, *senders)
	for i := range phones {
		phones[i] = model.FakePhone()
	}

	logger.Log.Info("Starting webhook load generator",
		zap.String("target", *target),
		zap.Strings("kinds", kinds),
		zap.Int("rate_per_sec", *rate),
		zap.Duration("duration", *duration),
		zap.Int("concurrency", *concurrency),
		zap.Int("senders", *senders),
		zap.Bool("signed", cfg.WhatsApp.AppSecret != ""),
	)

	s := &sender{
		client:    &http.Client{Timeout: 10 * time.Second},
		appSecret: cfg.WhatsApp.AppSecret,
	}

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(*concurrency, func(data interface{}) {
		s.runBatch(data.(BatchTask), &wg)
	})
	if err != nil {
		logger.Log.Fatal("Failed to create worker pool", zap.Error(err))
	}
	defer pool.Release()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		runLoadLoop(ctx, *rate, *duration, *batchSize, *target, kinds, phones, pool, &wg)
	}()

	select {
	case sig := <-sigChan:
		logger.Log.Info("Received termination signal, shutting down...", zap.String("signal", sig.String()))
	case <-loopDone:
		logger.Log.Info("Load generation duration finished")
	}
	cancel()
	<-loopDone

	wg.Wait()
	metricsWg.Wait()
	logger.Log.Info("Load generator shutdown complete")
}

func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Failed to start Prometheus metrics server", zap.Error(err))
		}
	}()
	return server
}

// runLoadLoop generates callbacks at the target rate and hands them to the pool in batches.
func runLoadLoop(ctx context.Context, rate int, duration time.Duration, batchSize int, target string, kinds, phones []string, pool *ants.PoolWithFunc, wg *sync.WaitGroup) {
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	durationTimer := time.NewTimer(duration)
	defer durationTimer.Stop()

	counter := 0
	batch := make([]WebhookTask, 0, batchSize)

	submit := func() {
		if len(batch) == 0 {
			return
		}
		wg.Add(len(batch))
		if err := pool.Invoke(BatchTask{Tasks: batch, Target: target}); err != nil {
			logger.Log.Warn("Failed to invoke worker pool for batch", zap.Int("batch_task_count", len(batch)), zap.Error(err))
			wg.Add(-len(batch))
			for _, t := range batch {
				observer.ObserveLoadgenRequest(t.Kind, "not_submitted", 0)
			}
		}
		batch = make([]WebhookTask, 0, batchSize)
	}

	for {
		select {
		case <-ctx.Done():
			submit()
			return
		case <-durationTimer.C:
			submit()
			return
		case <-ticker.C:
			batch = append(batch, WebhookTask{
				Kind:  kinds[counter%len(kinds)],
				Phone: phones[counter%len(phones)],
			})
			counter++
			if len(batch) >= batchSize {
				submit()
			}
		}
	}
}

func (s *sender) runBatch(batch BatchTask, wg *sync.WaitGroup) {
	for _, task := range batch.Tasks {
		func(t WebhookTask) {
			defer wg.Done()

			var payload *model.WebhookPayload
			switch t.Kind {
			case kindStatus:
				// Unknown provider IDs exercise the ignore path of the reconciler.
				status := gofakeit.RandomString([]string{"delivered", "read", "failed"})
				payload = model.NewStatusPayload("wamid."+gofakeit.LetterN(24), model.DeliveryStatus(status), t.Phone)
			default:
				payload = model.NewInboundMessagePayload(t.Phone, "")
			}

			start := time.Now()
			result, err := s.post(batch.Target, payload)
			observer.ObserveLoadgenRequest(t.Kind, result, time.Since(start))
			if err != nil {
				logger.Log.Warn("Webhook call failed", zap.String("kind", t.Kind), zap.Error(err))
			}
		}(task)
	}
}

func (s *sender) post(target string, payload *model.WebhookPayload) (string, error) {
	body := utils.MustMarshalJSON(payload)
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "request_error", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.appSecret != "" {
		req.Header.Set(whatsapp.SignatureHeader, whatsapp.Sign(body, s.appSecret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "transport_error", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return "ok", nil
}
