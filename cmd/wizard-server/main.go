// cmd/wizard-server/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"social-support-wizard/internal/ai"
	"social-support-wizard/internal/common/camunda"
	"social-support-wizard/internal/common/config"
	"social-support-wizard/internal/common/database"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/observability"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/wizard"
	"social-support-wizard/internal/wizard/handler"
	"social-support-wizard/internal/wizard/schema"
	"social-support-wizard/internal/wizard/session"
	"social-support-wizard/internal/wizard/storage"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i < maxRetries-1 {
			log.Warn(operationName+" failed, retrying",
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// readiness is a named dependency check for /ready.
type readiness struct {
	name  string
	check func(context.Context) error
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load(config.TargetServer)
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting wizard server...",
		zap.String("version", cfg.App.Version),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("submission", cfg.Submission.Mode),
		zap.String("aiProvider", cfg.AI.Provider),
	)

	obs := observability.New("wizard-server")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []readiness

	// --- Persistence substrate ---
	var kv storage.KV = storage.NewMemory()
	if cfg.Storage.Backend == config.StorageRedis {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			if rdb, err = database.NewRedis(cfg.Database.Redis); err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		kv = storage.NewRedis(rdb.Client, time.Duration(cfg.Storage.TTL)*time.Second)
		checks = append(checks, readiness{"redis", rdb.Ping})
		zapLog.Info("Redis connected successfully")
	}
	prefs := storage.NewSessions(storage.NewAdapter(kv, log.With(map[string]interface{}{"component": "storage"})), cfg.Storage.Key)

	// --- Workflow engine, only for process submissions ---
	var starter wizard.ProcessStarter
	if cfg.Submission.Mode == config.SubmissionProcess {
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
		defer zc.Close()
		starter = zc
		checks = append(checks, readiness{"zeebe", zc.HealthCheck})
		zapLog.Info("Zeebe client connected successfully")
	}

	submitter, err := wizard.NewSubmitter(cfg.Submission, starter, obs, log)
	if err != nil {
		zapLog.Fatal("submission sink setup failed", zap.Error(err))
	}

	generator, err := ai.New(ctx, cfg.AI, log)
	if err != nil {
		zapLog.Fatal("ai generator setup failed", zap.Error(err))
	}

	bundle, err := i18n.NewBundle(cfg.I18n.Default, cfg.I18n.Supported)
	if err != nil {
		zapLog.Fatal("i18n catalogs failed to load", zap.Error(err))
	}

	sessions := session.NewManager(session.Config{
		CookieName:   cfg.Server.SessionCookie,
		CookieMaxAge: time.Duration(cfg.Server.SessionTTL) * time.Second,
		Secure:       cfg.Server.SecureCookies,
	}, prefs, wizard.Options{
		Rules:             schema.NewRules(time.Now),
		Generator:         generator,
		Submitter:         submitter,
		SuggestionTimeout: config.GetDuration(cfg.AI.Timeout),
	}, log)

	detector := i18n.NewDetector(bundle, prefs, sessions.ID, cfg.Server.SecureCookies)

	// --- Routes ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		failing := map[string]string{}
		for _, c := range checks {
			if err := c.check(req.Context()); err != nil {
				failing[c.name] = err.Error()
			}
		}
		if len(failing) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", failing)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	r.Handle("/metrics", promhttp.Handler())

	if cfg.AI.BaseURL != "" {
		proxy, err := ai.NewProxy(cfg.AI.ProxyPath, cfg.AI.BaseURL, cfg.AI.APIKey, log)
		if err != nil {
			zapLog.Fatal("ai proxy setup failed", zap.Error(err))
		}
		r.Handle(cfg.AI.ProxyPath+"/*", proxy)
	} else {
		zapLog.Info("AI proxy not mounted: no upstream base url", zap.String("provider", cfg.AI.Provider))
	}
	r.Mount("/api", handler.New(sessions, detector, log).Routes())

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("Wizard API listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutdown signal received, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("wizard server stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("Wizard server stopped gracefully")
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
