// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"bankruptcy-workers/internal/common/config"
	"bankruptcy-workers/internal/common/logger"
	"bankruptcy-workers/internal/common/metrics"
	"bankruptcy-workers/internal/common/observability"
)

// HandlerFunc is the shape every worker's Handle method has.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// Instrument wraps handler with duration metrics.
func Instrument(taskType string, handler HandlerFunc, obs *observability.Observability) HandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		handler(client, job)
		elapsed := time.Since(start)

		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		obs.RecordJobProcessed(context.Background(), taskType, "handled")
		obs.RecordJobDuration(context.Background(), taskType, elapsed, "handled")
	}
}

// StartWorker opens a job worker for taskType unless it is disabled. The
// returned worker is nil when nothing was opened.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler HandlerFunc, obs *observability.Observability, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(Instrument(taskType, handler, obs))).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jw
}
