// Package repository persists raw evidence, reconciled income and case facts
// in Postgres.
package repository

import (
	"context"
	"database/sql"

	"bankruptcy-workers/internal/common/database"
	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
)

const (
	DocumentCollected   = "collected"
	DocumentUnavailable = "unavailable"
)

type Store struct {
	pg *database.PostgresClient
}

func New(pg *database.PostgresClient) *Store {
	return &Store{pg: pg}
}

// StoredExtraction is a collaborator payload as it was received.
type StoredExtraction struct {
	ID         string
	CaseID     string
	DocumentID string
	Payload    []byte
}

// SaveRawExtraction stores payload once. Raw evidence is immutable, so a
// second save of the same id is ignored and reported as not inserted.
func (s *Store) SaveRawExtraction(ctx context.Context, e StoredExtraction) (bool, error) {
	res, err := s.pg.Exec(ctx, `
		INSERT INTO raw_income_extractions (id, case_id, document_id, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.CaseID, e.DocumentID, string(e.Payload))
	if err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	return n > 0, nil
}

func (s *Store) ListRawExtractions(ctx context.Context, caseID string) ([]StoredExtraction, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT id, case_id, document_id, payload
		FROM raw_income_extractions
		WHERE case_id = $1
		ORDER BY id`, caseID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_raw_extractions", err)
	}
	defer rows.Close()

	var out []StoredExtraction
	for rows.Next() {
		var e StoredExtraction
		if err := rows.Scan(&e.ID, &e.CaseID, &e.DocumentID, &e.Payload); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_raw_extractions", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_raw_extractions", err)
	}
	return out, nil
}

// MarkDocument records the latest collection outcome for a document.
func (s *Store) MarkDocument(ctx context.Context, caseID, documentID, status, errorCode, detail string) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO evidence_documents (case_id, document_id, status, error_code, detail, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NOW())
		ON CONFLICT (case_id, document_id) DO UPDATE
		SET status = EXCLUDED.status, error_code = EXCLUDED.error_code,
		    detail = EXCLUDED.detail, updated_at = EXCLUDED.updated_at`,
		caseID, documentID, status, errorCode, detail)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *Store) ListUnavailableDocuments(ctx context.Context, caseID string) ([]string, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT document_id FROM evidence_documents
		WHERE case_id = $1 AND status = $2
		ORDER BY document_id`, caseID, DocumentUnavailable)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_unavailable_documents", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_unavailable_documents", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_unavailable_documents", err)
	}
	return ids, nil
}

func (s *Store) SaveManualRecord(ctx context.Context, rec models.ManualIncomeRecord) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO manual_income_records
			(id, case_id, payer_name, payer_ein, amount, frequency, amount_type, income_type, income_date, document_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''))
		ON CONFLICT (id) DO UPDATE
		SET payer_name = EXCLUDED.payer_name, payer_ein = EXCLUDED.payer_ein, amount = EXCLUDED.amount,
		    frequency = EXCLUDED.frequency, amount_type = EXCLUDED.amount_type, income_type = EXCLUDED.income_type,
		    income_date = EXCLUDED.income_date, document_type = EXCLUDED.document_type`,
		rec.ID, rec.CaseID, rec.PayerName, nullString(rec.PayerEIN), rec.Amount, string(rec.Frequency),
		amountTypeOrGross(rec.AmountType), string(rec.IncomeType), rec.IncomeDate, string(rec.DocumentType))
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *Store) ListManualRecords(ctx context.Context, caseID string) ([]models.ManualIncomeRecord, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT id, case_id, payer_name, payer_ein, amount, frequency, amount_type,
		       COALESCE(income_type, ''), income_date, COALESCE(document_type, '')
		FROM manual_income_records
		WHERE case_id = $1
		ORDER BY id`, caseID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_manual_records", err)
	}
	defer rows.Close()

	var out []models.ManualIncomeRecord
	for rows.Next() {
		var (
			rec        models.ManualIncomeRecord
			ein        sql.NullString
			frequency  string
			amountType string
			incomeType string
			docType    string
		)
		if err := rows.Scan(&rec.ID, &rec.CaseID, &rec.PayerName, &ein, &rec.Amount, &frequency,
			&amountType, &incomeType, &rec.IncomeDate, &docType); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_manual_records", err)
		}
		rec.PayerEIN = stringPtr(ein)
		rec.Frequency = models.Frequency(frequency)
		rec.AmountType = models.AmountType(amountType)
		rec.IncomeType = models.IncomeType(incomeType)
		rec.DocumentType = models.DocumentType(docType)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_manual_records", err)
	}
	return out, nil
}

func (s *Store) UpsertOverride(ctx context.Context, o models.IncomeOverride) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO income_overrides
			(case_id, source_key, employer_ein, income_type, income_year, annual_gross, annual_net, note, entered_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (case_id, source_key, income_type, income_year, employer_ein) DO UPDATE
		SET annual_gross = EXCLUDED.annual_gross, annual_net = EXCLUDED.annual_net,
		    note = EXCLUDED.note, entered_by = EXCLUDED.entered_by, updated_at = EXCLUDED.updated_at`,
		o.CaseID, o.SourceKey, derefString(o.EmployerEIN), string(o.IncomeType), o.IncomeYear,
		o.AnnualGross, o.AnnualNet, o.Note, o.EnteredBy)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *Store) ListOverrides(ctx context.Context, caseID string) ([]models.IncomeOverride, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT case_id, source_key, employer_ein, income_type, income_year, annual_gross, annual_net,
		       COALESCE(note, ''), COALESCE(entered_by, '')
		FROM income_overrides
		WHERE case_id = $1
		ORDER BY source_key, income_type, income_year, employer_ein`, caseID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_overrides", err)
	}
	defer rows.Close()

	var out []models.IncomeOverride
	for rows.Next() {
		var (
			o          models.IncomeOverride
			ein        string
			incomeType string
		)
		if err := rows.Scan(&o.CaseID, &o.SourceKey, &ein, &incomeType, &o.IncomeYear,
			&o.AnnualGross, &o.AnnualNet, &o.Note, &o.EnteredBy); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_overrides", err)
		}
		if ein != "" {
			o.EmployerEIN = &ein
		}
		o.IncomeType = models.IncomeType(incomeType)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_overrides", err)
	}
	return out, nil
}

func amountTypeOrGross(t models.AmountType) string {
	if t == "" {
		return string(models.AmountTypeGross)
	}
	return string(t)
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
