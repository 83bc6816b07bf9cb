package camunda

import (
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"social-support-wizard/internal/common/config"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/metrics"
)

type handlerFunc func(worker.JobClient, entities.Job)

func (f handlerFunc) Handle(c worker.JobClient, j entities.Job) { f(c, j) }

func TestTracked_CountsActiveJobs(t *testing.T) {
	gauge := metrics.WorkerJobsActive.WithLabelValues("tracked-test")
	var during float64

	h := tracked("tracked-test", handlerFunc(func(worker.JobClient, entities.Job) {
		during = testutil.ToFloat64(gauge)
	}))
	h(nil, entities.Job{})

	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))
}

func TestTracked_DecrementsOnPanic(t *testing.T) {
	gauge := metrics.WorkerJobsActive.WithLabelValues("tracked-panic")

	h := tracked("tracked-panic", handlerFunc(func(worker.JobClient, entities.Job) {
		panic("boom")
	}))
	assert.Panics(t, func() { h(nil, entities.Job{}) })
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))
}

func TestStartWorker_Disabled(t *testing.T) {
	w := StartWorker(nil, "disabled-task", config.WorkerConfig{Enabled: false}, nil, logger.NewTestLogger(t))
	assert.Nil(t, w)
	assert.NotPanics(t, w.Stop)
}
