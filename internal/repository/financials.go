package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
)

const financialsColumns = `
	case_id, state, county, household_size, vehicle_count, monthly_expenses,
	secured_debt_total, unsecured_debt_total, secured_debt_monthly_payments,
	priority_debt_monthly_payments, health_insurance, childcare,
	court_ordered_payments, education, filing_date`

// GetCaseFinancials returns CASE_FINANCIALS_MISSING when the case has no row.
func (s *Store) GetCaseFinancials(ctx context.Context, caseID string) (models.CaseFinancials, error) {
	var (
		f      models.CaseFinancials
		county sql.NullString
		filed  sql.NullTime
	)
	err := s.pg.QueryRow(ctx, `SELECT `+financialsColumns+` FROM case_financials WHERE case_id = $1`, caseID).Scan(
		&f.CaseID, &f.State, &county, &f.HouseholdSize, &f.VehicleCount, &f.MonthlyExpenses,
		&f.SecuredDebtTotal, &f.UnsecuredDebtTotal, &f.SecuredDebtMonthlyPayments,
		&f.PriorityDebtMonthlyPayments, &f.OtherExpenses.HealthInsurance, &f.OtherExpenses.Childcare,
		&f.OtherExpenses.CourtOrderedPayments, &f.OtherExpenses.Education, &filed,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.CaseFinancials{}, errors.NewCaseFinancialsMissingError(caseID)
	}
	if err != nil {
		return models.CaseFinancials{}, errors.NewQueryExecutionFailedError("get_case_financials", err)
	}

	f.County = stringPtr(county)
	if filed.Valid {
		t := filed.Time
		f.FilingDate = &t
	}
	return f, nil
}

func (s *Store) UpsertCaseFinancials(ctx context.Context, f models.CaseFinancials) error {
	var filed interface{}
	if f.FilingDate != nil {
		filed = *f.FilingDate
	}
	_, err := s.pg.Exec(ctx, `
		INSERT INTO case_financials (`+financialsColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (case_id) DO UPDATE SET
			state = EXCLUDED.state, county = EXCLUDED.county,
			household_size = EXCLUDED.household_size, vehicle_count = EXCLUDED.vehicle_count,
			monthly_expenses = EXCLUDED.monthly_expenses,
			secured_debt_total = EXCLUDED.secured_debt_total,
			unsecured_debt_total = EXCLUDED.unsecured_debt_total,
			secured_debt_monthly_payments = EXCLUDED.secured_debt_monthly_payments,
			priority_debt_monthly_payments = EXCLUDED.priority_debt_monthly_payments,
			health_insurance = EXCLUDED.health_insurance, childcare = EXCLUDED.childcare,
			court_ordered_payments = EXCLUDED.court_ordered_payments, education = EXCLUDED.education,
			filing_date = EXCLUDED.filing_date, updated_at = EXCLUDED.updated_at`,
		f.CaseID, f.State, nullString(f.County), f.HouseholdSize, f.VehicleCount, f.MonthlyExpenses,
		f.SecuredDebtTotal, f.UnsecuredDebtTotal, f.SecuredDebtMonthlyPayments,
		f.PriorityDebtMonthlyPayments, f.OtherExpenses.HealthInsurance, f.OtherExpenses.Childcare,
		f.OtherExpenses.CourtOrderedPayments, f.OtherExpenses.Education, filed, time.Now().UTC(),
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}
