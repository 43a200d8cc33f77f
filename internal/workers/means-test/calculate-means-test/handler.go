// internal/workers/means-test/calculate-means-test/handler.go
package calculatemeanstest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/logger"
	"bankruptcy-workers/internal/common/metrics"
	"bankruptcy-workers/internal/models"
)

const (
	TaskType = "calculate-means-test"
)

type Calculator interface {
	MeansTest(ctx context.Context, caseID string, asOf time.Time) (models.MeansTestResult, error)
}

type Handler struct {
	config       *Config
	calculator   Calculator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, calculator Calculator, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		calculator:   calculator,
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

	var asOf time.Time
	if v := strings.TrimSpace(input.AsOf); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, errors.NewInvalidRequestError(fmt.Sprintf("asOf %q is not a YYYY-MM-DD date", input.AsOf))
		}
		asOf = t
	}

	result, err := h.calculator.MeansTest(ctx, input.CaseID, asOf)
	if err != nil {
		return nil, err
	}

	return &Output{
		Recommendation:       result.Recommendation,
		PassesStep1:          result.PassesStep1,
		PassesStep2:          result.PassesStep2,
		CurrentMonthlyIncome: result.CurrentMonthlyIncome,
		MeansTestResult:      result,
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
