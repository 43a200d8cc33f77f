// internal/workers/income/collect-income-evidence/handler.go
package collectincomeevidence

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
	TaskType = "collect-income-evidence"
)

type EvidenceCollector interface {
	CollectEvidence(ctx context.Context, caseID string, documentIDs []string) (casefile.CollectResult, error)
}

type Handler struct {
	config       *Config
	collector    EvidenceCollector
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, collector EvidenceCollector, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		collector:    collector,
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

// Execute fetches and stores the extractions of every listed document.
// Documents the collaborator cannot serve are reported, not failed.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}

	result, err := h.collector.CollectEvidence(ctx, input.CaseID, input.DocumentIDs)
	if err != nil {
		return nil, err
	}

	h.logger.Info("evidence collected", map[string]interface{}{
		"caseId":      result.CaseID,
		"stored":      result.Stored,
		"duplicates":  result.Duplicates,
		"rejected":    len(result.Rejected),
		"unavailable": len(result.Unavailable),
	})

	rejected := result.Rejected
	if rejected == nil {
		rejected = []string{}
	}
	unavailable := result.Unavailable
	if unavailable == nil {
		unavailable = []casefile.UnavailableDocument{}
	}
	return &Output{
		EvidenceStored:       result.Stored,
		EvidenceDuplicates:   result.Duplicates,
		RejectedExtractions:  rejected,
		UnavailableDocuments: unavailable,
		EvidenceComplete:     len(unavailable) == 0,
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
