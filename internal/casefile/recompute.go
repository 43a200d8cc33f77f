package casefile

import (
	"context"

	"bankruptcy-workers/internal/common/aws"
	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/metrics"
	"bankruptcy-workers/internal/income"
	"bankruptcy-workers/internal/models"
)

type RecomputeOptions struct {
	// CollectDocuments are fetched and stored before reconciling.
	CollectDocuments []string
}

type RecomputeResult struct {
	Summary            models.IncomeSummary    `json:"summary"`
	UnmatchedOverrides []models.IncomeOverride `json:"unmatchedOverrides,omitempty"`
	Collected          *CollectResult          `json:"collected,omitempty"`
	AlertID            string                  `json:"alertId,omitempty"`
}

// RecomputeIncome re-derives every reconciled source of a case from the
// stored evidence and replaces the persisted set. Runs for the same case are
// serialised by the case lock.
func (s *Service) RecomputeIncome(ctx context.Context, caseID string, opts RecomputeOptions) (RecomputeResult, error) {
	caseID, err := requireCaseID(caseID)
	if err != nil {
		return RecomputeResult{}, err
	}
	log := s.log.WithFields(map[string]interface{}{"caseId": caseID})

	var result RecomputeResult
	if len(opts.CollectDocuments) > 0 {
		collected, err := s.CollectEvidence(ctx, caseID, opts.CollectDocuments)
		if err != nil {
			metrics.ReconciliationRuns.WithLabelValues("failed").Inc()
			return RecomputeResult{}, err
		}
		result.Collected = &collected
	}

	lock, err := s.locker.Acquire(ctx, caseID)
	if err != nil {
		metrics.ReconciliationRuns.WithLabelValues("lock_timeout").Inc()
		return RecomputeResult{}, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to release case lock", map[string]interface{}{"error": err.Error()})
		}
	}()

	done := s.obs.Stage(ctx, "reconcile_income")
	reconciled, err := s.reconcile(ctx, caseID)
	done()
	if err != nil {
		outcome := "failed"
		if errors.HasCode(err, errors.ErrCodeDataIntegrityViolation) {
			outcome = "integrity_violation"
		}
		metrics.ReconciliationRuns.WithLabelValues(outcome).Inc()
		return RecomputeResult{}, err
	}

	if err := s.store.ReplaceReconciledSources(ctx, caseID, reconciled.Sources, reconciled.Summary); err != nil {
		metrics.ReconciliationRuns.WithLabelValues("failed").Inc()
		return RecomputeResult{}, err
	}

	metrics.ReconciliationRuns.WithLabelValues("success").Inc()
	for _, src := range reconciled.Sources {
		metrics.ReconciledSources.WithLabelValues(string(src.Status), string(src.DeterminationMethod)).Inc()
	}

	summary := reconciled.Summary
	result.Summary = summary
	result.UnmatchedOverrides = reconciled.UnmatchedOverrides

	log.Info("Income reconciled", map[string]interface{}{
		"sources":              len(summary.Sources),
		"sourcesNeedingReview": len(summary.SourcesNeedingReview),
		"skippedExtractions":   len(summary.SkippedExtractions),
		"unavailableDocuments": len(summary.UnavailableDocuments),
		"totalMonthlyGross":    summary.TotalMonthlyGross.String(),
	})
	for _, o := range reconciled.UnmatchedOverrides {
		log.Warn("Override matches no income source", map[string]interface{}{
			"sourceKey":  o.SourceKey,
			"incomeType": string(o.IncomeType),
			"incomeYear": o.IncomeYear,
		})
	}

	if !summary.AllSourcesReconciled {
		result.AlertID = s.sendReviewAlert(ctx, summary)
	}
	return result, nil
}

// reconcile loads and normalises the case evidence. Unparseable extractions
// are skipped and listed; an integrity violation aborts the run.
func (s *Service) reconcile(ctx context.Context, caseID string) (income.Result, error) {
	log := s.log.WithFields(map[string]interface{}{"caseId": caseID})
	params := s.opts.Params

	stored, err := s.store.ListRawExtractions(ctx, caseID)
	if err != nil {
		return income.Result{}, err
	}
	manual, err := s.store.ListManualRecords(ctx, caseID)
	if err != nil {
		return income.Result{}, err
	}
	overrides, err := s.store.ListOverrides(ctx, caseID)
	if err != nil {
		return income.Result{}, err
	}
	unavailable, err := s.store.ListUnavailableDocuments(ctx, caseID)
	if err != nil {
		return income.Result{}, err
	}

	var (
		raws    []models.RawIncomeExtraction
		skipped []models.SkippedExtraction
	)
	skip := func(id string, err error) {
		metrics.SkippedExtractions.Inc()
		log.Warn("Skipping extraction", map[string]interface{}{"extractionId": id, "error": err.Error()})
		skipped = append(skipped, models.SkippedExtraction{ExtractionID: id, Reason: err.Error()})
	}

	for _, e := range stored {
		raw, err := s.parser.Parse(e.Payload)
		if err != nil {
			skip(e.ID, err)
			continue
		}
		if raw.ID == "" {
			raw.ID = e.ID
		}
		raw.CaseID = caseID
		if raw.DocumentID == "" {
			raw.DocumentID = e.DocumentID
		}
		raws = append(raws, raw)
	}
	for _, rec := range manual {
		raws = append(raws, income.FromManualRecord(rec, params))
	}

	normalized := make([]models.NormalizedIncome, 0, len(raws))
	for _, raw := range raws {
		n, err := income.Normalize(raw, params)
		switch {
		case err == nil:
			normalized = append(normalized, n)
		case errors.HasCode(err, errors.ErrCodeExtractionParseFailed):
			skip(raw.ID, err)
		default:
			log.Error("Extraction violates data integrity", map[string]interface{}{
				"extractionId": raw.ID,
				"error":        err.Error(),
			})
			return income.Result{}, err
		}
	}

	return income.Reconcile(income.Input{
		CaseID:               caseID,
		Incomes:              normalized,
		Overrides:            overrides,
		Skipped:              skipped,
		UnavailableDocuments: unavailable,
	}, params, s.opts.Now())
}

// sendReviewAlert is best effort; the reconciled set is already persisted.
func (s *Service) sendReviewAlert(ctx context.Context, summary models.IncomeSummary) string {
	if s.notifier == nil {
		return ""
	}
	conflicts := 0
	for _, src := range summary.Sources {
		if src.Status == models.StatusConflict {
			conflicts++
		}
	}
	id, err := s.notifier.Notify(ctx, aws.ReviewAlert{
		CaseID:               summary.CaseID,
		SourcesNeedingReview: summary.SourcesNeedingReview,
		ConflictCount:        conflicts,
		SkippedExtractions:   len(summary.SkippedExtractions),
		UnavailableDocuments: len(summary.UnavailableDocuments),
	})
	if err != nil {
		s.log.Warn("Failed to send review alert", map[string]interface{}{
			"caseId": summary.CaseID,
			"error":  err.Error(),
		})
	}
	return id
}
