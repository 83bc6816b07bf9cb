package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"social-support-wizard/internal/common/config"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/metrics"
)

const (
	defaultMaxJobsActive = 10
	defaultJobTimeout    = 30 * time.Second
)

// JobHandler completes, fails or throws every job it is given.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Worker is one open job subscription.
type Worker struct {
	worker   worker.JobWorker
	taskType string
	logger   logger.Logger
}

// StartWorker opens a subscription for taskType. It returns nil when the
// worker is disabled in configuration.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandler, log logger.Logger) *Worker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	if !wcfg.Enabled {
		log.Info("worker disabled", nil)
		return nil
	}

	maxJobs := wcfg.MaxJobsActive
	if maxJobs <= 0 {
		maxJobs = defaultMaxJobsActive
	}
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(tracked(taskType, handler)).
		MaxJobsActive(maxJobs).
		Timeout(timeout).
		Name("social-support-" + taskType).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": maxJobs,
		"timeout_ms":    timeout / time.Millisecond,
	})
	return &Worker{worker: jobWorker, taskType: taskType, logger: log}
}

// tracked keeps worker_jobs_active current around each job.
func tracked(taskType string, handler JobHandler) worker.JobHandler {
	active := metrics.WorkerJobsActive.WithLabelValues(taskType)
	return func(client worker.JobClient, job entities.Job) {
		active.Inc()
		defer active.Dec()
		handler.Handle(client, job)
	}
}

func (w *Worker) TaskType() string {
	return w.taskType
}

// Stop closes the subscription and waits for in-flight jobs.
func (w *Worker) Stop() {
	if w == nil {
		return
	}
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
