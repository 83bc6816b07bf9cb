// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"social-support-wizard/internal/ai"
	"social-support-wizard/internal/common/aws"
	"social-support-wizard/internal/common/camunda"
	"social-support-wizard/internal/common/config"
	"social-support-wizard/internal/common/database"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/observability"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/wizard/schema"
	"social-support-wizard/pkg/registry"

	cra "social-support-wizard/internal/workers/application/create-support-application-record"
	dsd "social-support-wizard/internal/workers/application/draft-situation-description"
	isa "social-support-wizard/internal/workers/application/index-support-application"
	ssn "social-support-wizard/internal/workers/application/send-submission-notification"
	vsa "social-support-wizard/internal/workers/application/validate-support-application"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load(config.TargetWorkerManager)
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init Zeebe Client with retry ---
	var zc *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zc, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Shared domain services ---
	bundle, err := i18n.NewBundle(cfg.I18n.Default, cfg.I18n.Supported)
	if err != nil {
		zapLog.Fatal("i18n catalogs failed to load", zap.Error(err))
	}
	rules := schema.NewRules(time.Now)

	generator, err := ai.New(ctx, cfg.AI, log)
	if err != nil {
		zapLog.Fatal("ai generator setup failed", zap.Error(err))
	}

	var (
		mailer ssn.EmailSender
		sms    ssn.SMSSender
	)
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}
		if cfg.Notifications.Email.Enabled {
			mailer = aws.NewSESMailer(awsCfg, cfg.Notifications.Email.FromEmail)
		}
		if cfg.Notifications.SMS.Enabled {
			sms = aws.NewSNSSender(awsCfg)
		}
	}

	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Warn("activity registry unavailable, skipping task type checks", zap.Error(err))
	}

	// --- Register workers ---
	zeebe := zc.GetClient()
	var workers []*camunda.Worker
	register := func(taskType string, handler camunda.JobHandler) {
		if reg != nil {
			if a, ok := reg.Find(taskType); !ok || !a.Deployable() {
				zapLog.Warn("worker not marked deployable in activity registry", zap.String("taskType", taskType))
			}
		}
		w := camunda.StartWorker(zeebe, taskType, config.GetWorkerConfig(cfg, taskType), handler, log)
		if w != nil {
			workers = append(workers, w)
		}
	}

	register(vsa.TaskType, vsa.NewHandler(
		&vsa.Config{Timeout: workerTimeout(cfg, vsa.TaskType), RejectInvalid: true},
		rules, bundle, obs, log,
	))
	register(cra.TaskType, cra.NewHandler(
		&cra.Config{Timeout: workerTimeout(cfg, cra.TaskType)},
		pg.DB, obs, log,
	))
	register(isa.TaskType, isa.NewHandler(
		&isa.Config{Timeout: workerTimeout(cfg, isa.TaskType), Index: cfg.Database.Elasticsearch.Index},
		esClient.Client, obs, log,
	))
	register(ssn.TaskType, ssn.NewHandler(
		&ssn.Config{
			Timeout:      workerTimeout(cfg, ssn.TaskType),
			EmailEnabled: cfg.Notifications.Email.Enabled,
			SMSEnabled:   cfg.Notifications.SMS.Enabled,
		},
		bundle, mailer, sms, obs, log,
	))
	register(dsd.TaskType, dsd.NewHandler(
		&dsd.Config{
			Timeout:           workerTimeout(cfg, dsd.TaskType),
			GenerationTimeout: config.GetDuration(cfg.AI.Timeout),
		},
		generator, obs, log,
	))
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		failing := map[string]string{}
		checks := map[string]func(context.Context) error{
			"zeebe":         zc.HealthCheck,
			"postgres":      pg.Ping,
			"elasticsearch": esClient.Ping,
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				failing[name] = err.Error()
			}
		}
		if len(failing) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", failing)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	srv := &http.Server{Addr: cfg.Server.Address, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zc.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func workerTimeout(cfg *config.Config, taskType string) time.Duration {
	return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
}

func writeStatus(w http.ResponseWriter, code int, status string, failing map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if len(failing) > 0 {
		body["failing"] = failing
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
