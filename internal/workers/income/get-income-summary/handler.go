// internal/workers/income/get-income-summary/handler.go
package getincomesummary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/logger"
	"bankruptcy-workers/internal/common/metrics"
	"bankruptcy-workers/internal/models"
)

const (
	TaskType = "get-income-summary"
)

type SummaryReader interface {
	IncomeSummary(ctx context.Context, caseID string) (models.IncomeSummary, error)
}

type Handler struct {
	config       *Config
	reader       SummaryReader
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, reader SummaryReader, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		reader:       reader,
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

	summary, err := h.reader.IncomeSummary(ctx, input.CaseID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeIncomeNotComputed) && !h.config.RequireComputed {
			h.logger.Info("income not computed yet", map[string]interface{}{"caseId": input.CaseID})
			return &Output{IncomeComputed: false}, nil
		}
		return nil, err
	}

	return &Output{IncomeComputed: true, IncomeSummary: &summary}, nil
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
