package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
)

// ReplaceReconciledSources swaps the case's reconciled sources and summary in
// one transaction. Readers see either the previous run or this one.
func (s *Store) ReplaceReconciledSources(ctx context.Context, caseID string, sources []models.ReconciledIncomeSource, summary models.IncomeSummary) error {
	stored := summary
	stored.Sources = nil
	summaryJSON, err := json.Marshal(stored)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(fmt.Errorf("encode summary: %w", err))
	}

	err = s.pg.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reconciled_income_sources WHERE case_id = $1`, caseID); err != nil {
			return fmt.Errorf("delete sources: %w", err)
		}

		for _, src := range sources {
			evidence, err := json.Marshal(src.Evidence)
			if err != nil {
				return fmt.Errorf("encode evidence for %s: %w", src.ID, err)
			}
			var discrepancy interface{}
			if src.Discrepancy != nil {
				b, err := json.Marshal(src.Discrepancy)
				if err != nil {
					return fmt.Errorf("encode discrepancy for %s: %w", src.ID, err)
				}
				discrepancy = string(b)
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO reconciled_income_sources
					(id, case_id, employer_name, employer_ein, source_key, income_type, income_year,
					 verified_annual_gross, verified_monthly_gross, verified_annual_net, verified_monthly_net,
					 determination_method, evidence, confidence, status, discrepancy, calculated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
				src.ID, caseID, src.EmployerName, nullString(src.EmployerEIN), src.SourceKey,
				string(src.IncomeType), src.IncomeYear,
				src.VerifiedAnnualGross, src.VerifiedMonthlyGross, src.VerifiedAnnualNet, src.VerifiedMonthlyNet,
				string(src.DeterminationMethod), string(evidence), src.Confidence, string(src.Status),
				discrepancy, src.CalculatedAt,
			); err != nil {
				return fmt.Errorf("insert source %s: %w", src.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO income_summaries (case_id, summary, calculated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (case_id) DO UPDATE
			SET summary = EXCLUDED.summary, calculated_at = EXCLUDED.calculated_at`,
			caseID, string(summaryJSON), summary.LastCalculatedAt,
		); err != nil {
			return fmt.Errorf("upsert summary: %w", err)
		}
		return nil
	})
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *Store) ListReconciledSources(ctx context.Context, caseID string) ([]models.ReconciledIncomeSource, error) {
	return listReconciledSources(ctx, s.pg.DB, caseID)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listReconciledSources(ctx context.Context, q queryer, caseID string) ([]models.ReconciledIncomeSource, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, case_id, employer_name, employer_ein, source_key, income_type, income_year,
		       verified_annual_gross, verified_monthly_gross, verified_annual_net, verified_monthly_net,
		       determination_method, evidence, confidence, status, discrepancy, calculated_at
		FROM reconciled_income_sources
		WHERE case_id = $1
		ORDER BY source_key, income_year, income_type, id`, caseID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_reconciled_sources", err)
	}
	defer rows.Close()

	var out []models.ReconciledIncomeSource
	for rows.Next() {
		var (
			src         models.ReconciledIncomeSource
			ein         sql.NullString
			incomeType  string
			method      string
			status      string
			evidence    []byte
			discrepancy []byte
		)
		if err := rows.Scan(&src.ID, &src.CaseID, &src.EmployerName, &ein, &src.SourceKey, &incomeType,
			&src.IncomeYear, &src.VerifiedAnnualGross, &src.VerifiedMonthlyGross, &src.VerifiedAnnualNet,
			&src.VerifiedMonthlyNet, &method, &evidence, &src.Confidence, &status, &discrepancy,
			&src.CalculatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_reconciled_sources", err)
		}

		src.EmployerEIN = stringPtr(ein)
		src.IncomeType = models.IncomeType(incomeType)
		src.DeterminationMethod = models.DeterminationMethod(method)
		src.Status = models.SourceStatus(status)
		if err := json.Unmarshal(evidence, &src.Evidence); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_reconciled_sources", fmt.Errorf("decode evidence for %s: %w", src.ID, err))
		}
		if len(discrepancy) > 0 {
			var d models.Discrepancy
			if err := json.Unmarshal(discrepancy, &d); err != nil {
				return nil, errors.NewQueryExecutionFailedError("list_reconciled_sources", fmt.Errorf("decode discrepancy for %s: %w", src.ID, err))
			}
			src.Discrepancy = &d
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_reconciled_sources", err)
	}
	return out, nil
}

// GetIncomeSummary returns the last persisted summary with its sources.
// INCOME_NOT_COMPUTED means the case was never reconciled. Both reads share one
// snapshot, so a concurrent ReplaceReconciledSources is seen whole or not at all.
func (s *Store) GetIncomeSummary(ctx context.Context, caseID string) (models.IncomeSummary, error) {
	var summary models.IncomeSummary
	err := s.pg.WithReadTx(ctx, func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRowContext(ctx, `SELECT summary FROM income_summaries WHERE case_id = $1`, caseID).Scan(&raw)
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NewIncomeNotComputedError(caseID)
		}
		if err != nil {
			return errors.NewQueryExecutionFailedError("get_income_summary", err)
		}
		if err := json.Unmarshal(raw, &summary); err != nil {
			return errors.NewQueryExecutionFailedError("get_income_summary", fmt.Errorf("decode summary: %w", err))
		}

		sources, err := listReconciledSources(ctx, tx, caseID)
		if err != nil {
			return err
		}
		summary.Sources = sources
		return nil
	})
	if err != nil {
		if _, ok := errors.AsStandardError(err); ok {
			return models.IncomeSummary{}, err
		}
		return models.IncomeSummary{}, errors.NewQueryExecutionFailedError("get_income_summary", err)
	}
	if summary.Sources == nil {
		summary.Sources = []models.ReconciledIncomeSource{}
	}
	return summary, nil
}
