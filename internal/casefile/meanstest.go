package casefile

import (
	"context"
	"time"

	"bankruptcy-workers/internal/common/metrics"
	"bankruptcy-workers/internal/income"
	"bankruptcy-workers/internal/meanstest"
	"bankruptcy-workers/internal/models"
)

// MeansTest evaluates the case as of asOf. A zero asOf means the filing date
// when one is on file, otherwise today. Nothing is persisted.
func (s *Service) MeansTest(ctx context.Context, caseID string, asOf time.Time) (models.MeansTestResult, error) {
	caseID, err := requireCaseID(caseID)
	if err != nil {
		return models.MeansTestResult{}, err
	}
	defer s.obs.Stage(ctx, "means_test")()

	financials, err := s.store.GetCaseFinancials(ctx, caseID)
	if err != nil {
		return models.MeansTestResult{}, err
	}
	sources, err := s.store.ListReconciledSources(ctx, caseID)
	if err != nil {
		return models.MeansTestResult{}, err
	}

	now := s.opts.Now()
	if asOf.IsZero() {
		asOf = now
		if financials.FilingDate != nil {
			asOf = *financials.FilingDate
		}
	}

	result, err := meanstest.Calculate(InputFromFinancials(financials, income.MonthlySeries(sources, asOf)), s.opts.Tables, now)
	if err != nil {
		return models.MeansTestResult{}, err
	}
	if len(sources) == 0 {
		result.Warnings = append(result.Warnings, "no reconciled income sources on file; income treated as zero")
	}

	metrics.MeansTestRecommendations.WithLabelValues(string(result.Recommendation)).Inc()
	s.log.Info("Means test calculated", map[string]interface{}{
		"caseId":         caseID,
		"asOf":           asOf.Format("2006-01-02"),
		"cmi":            result.CurrentMonthlyIncome.String(),
		"passesStep1":    result.PassesStep1,
		"recommendation": string(result.Recommendation),
		"warnings":       len(result.Warnings),
	})
	return result, nil
}

// InputFromFinancials combines stored case facts with a monthly income series.
func InputFromFinancials(f models.CaseFinancials, entries []models.MonthlyIncomeEntry) models.MeansTestInput {
	return models.MeansTestInput{
		CaseID:                      f.CaseID,
		State:                       f.State,
		County:                      f.County,
		HouseholdSize:               f.HouseholdSize,
		VehicleCount:                f.VehicleCount,
		IncomeEntries:               entries,
		MonthlyExpenses:             f.MonthlyExpenses,
		SecuredDebtTotal:            f.SecuredDebtTotal,
		UnsecuredDebtTotal:          f.UnsecuredDebtTotal,
		SecuredDebtMonthlyPayments:  f.SecuredDebtMonthlyPayments,
		PriorityDebtMonthlyPayments: f.PriorityDebtMonthlyPayments,
		OtherExpenses:               f.OtherExpenses,
	}
}
