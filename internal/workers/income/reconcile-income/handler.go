// internal/workers/income/reconcile-income/handler.go
package reconcileincome

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"bankruptcy-workers/internal/casefile"
	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/logger"
	"bankruptcy-workers/internal/common/metrics"
)

const (
	TaskType = "reconcile-income"
)

type Reconciler interface {
	RecomputeIncome(ctx context.Context, caseID string, opts casefile.RecomputeOptions) (casefile.RecomputeResult, error)
}

type Handler struct {
	config       *Config
	reconciler   Reconciler
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, reconciler Reconciler, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		reconciler:   reconciler,
		errorHandler: errors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, errors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}

	result, err := h.reconciler.RecomputeIncome(ctx, input.CaseID, casefile.RecomputeOptions{
		CollectDocuments: input.DocumentIDs,
	})
	if err != nil {
		return nil, err
	}

	summary := result.Summary
	unmatched := make([]string, 0, len(result.UnmatchedOverrides))
	for _, o := range result.UnmatchedOverrides {
		unmatched = append(unmatched, o.SourceKey)
	}
	review := summary.SourcesNeedingReview
	if review == nil {
		review = []string{}
	}

	return &Output{
		TotalMonthlyGross:    summary.TotalMonthlyGross,
		AllSourcesReconciled: summary.AllSourcesReconciled,
		SourcesNeedingReview: review,
		UnmatchedOverrides:   unmatched,
		EvidenceComplete:     summary.EvidenceComplete,
		ReviewAlertID:        result.AlertID,
		IncomeSummary:        summary,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}
