package income

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/validation"
	"bankruptcy-workers/internal/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const envelopeSchema = "envelope"

// Envelope is the collaborator's wrapper around one extraction. Fields holds
// the document-type specific payload.
type Envelope struct {
	ExtractionID         string              `json:"extractionId"`
	CaseID               string              `json:"caseId,omitempty"`
	DocumentID           string              `json:"documentId"`
	DocumentType         models.DocumentType `json:"documentType"`
	DocumentDate         string              `json:"documentDate"`
	ExtractionConfidence float64             `json:"extractionConfidence"`
	Fields               json.RawMessage     `json:"fields"`
}

type PaystubFields struct {
	EmployerName       string              `json:"employerName"`
	EmployerEIN        *string             `json:"employerEin"`
	PayFrequency       models.Frequency    `json:"payFrequency"`
	GrossPay           decimal.NullDecimal `json:"grossPay"`
	NetPay             decimal.NullDecimal `json:"netPay"`
	PeriodStart        *string             `json:"periodStart"`
	PeriodEnd          *string             `json:"periodEnd"`
	YTDGross           decimal.NullDecimal `json:"ytdGross"`
	YTDNet             decimal.NullDecimal `json:"ytdNet"`
	YTDFederalWithheld decimal.NullDecimal `json:"ytdFederalWithheld"`
	HoursWorked        decimal.NullDecimal `json:"hoursWorked"`
	HourlyRate         decimal.NullDecimal `json:"hourlyRate"`
}

type W2Fields struct {
	EmployerName        string              `json:"employerName"`
	EmployerEIN         *string             `json:"employerEin"`
	TaxYear             int                 `json:"taxYear"`
	Wages               decimal.Decimal     `json:"wages"`
	FederalWithheld     decimal.NullDecimal `json:"federalWithheld"`
	SocialSecurityWages decimal.NullDecimal `json:"socialSecurityWages"`
}

type TaxReturnFields struct {
	PayerName   string              `json:"payerName"`
	PayerEIN    *string             `json:"payerEin"`
	TaxYear     int                 `json:"taxYear"`
	IncomeType  models.IncomeType   `json:"incomeType"`
	GrossIncome decimal.Decimal     `json:"grossIncome"`
	NetIncome   decimal.NullDecimal `json:"netIncome"`
}

type BankStatementFields struct {
	DepositorName    string           `json:"depositorName"`
	DepositAmount    decimal.Decimal  `json:"depositAmount"`
	DepositFrequency models.Frequency `json:"depositFrequency"`
	PeriodStart      *string          `json:"periodStart"`
	PeriodEnd        *string          `json:"periodEnd"`
}

type Form1099Fields struct {
	PayerName       string              `json:"payerName"`
	PayerTIN        *string             `json:"payerTin"`
	TaxYear         int                 `json:"taxYear"`
	FormVariant     string              `json:"formVariant"`
	Amount          decimal.Decimal     `json:"amount"`
	FederalWithheld decimal.NullDecimal `json:"federalWithheld"`
}

// Parser validates collaborator payloads against per-document-type schemas
// and decodes them into RawIncomeExtraction values.
type Parser struct {
	schemas *validation.SchemaSet
}

func NewParser() (*Parser, error) {
	set, err := validation.LoadSchemaSet(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	return &Parser{schemas: set}, nil
}

var (
	defaultParser     *Parser
	defaultParserErr  error
	defaultParserOnce sync.Once
)

// ParseExtraction parses one payload with the embedded schemas.
func ParseExtraction(payload []byte) (models.RawIncomeExtraction, error) {
	defaultParserOnce.Do(func() {
		defaultParser, defaultParserErr = NewParser()
	})
	if defaultParserErr != nil {
		return models.RawIncomeExtraction{}, defaultParserErr
	}
	return defaultParser.Parse(payload)
}

// PeekEnvelope decodes only the envelope, without schema validation.
func PeekEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Parse returns EXTRACTION_PARSE_FAILED for any payload that does not match
// its document type's shape.
func (p *Parser) Parse(payload []byte) (models.RawIncomeExtraction, error) {
	env, err := PeekEnvelope(payload)
	if err != nil {
		return models.RawIncomeExtraction{}, errors.NewExtractionParseFailedError("", err.Error())
	}
	id := env.ExtractionID

	if err := p.validate(envelopeSchema, id, payload); err != nil {
		return models.RawIncomeExtraction{}, err
	}
	if err := p.validate(string(env.DocumentType), id, env.Fields); err != nil {
		return models.RawIncomeExtraction{}, err
	}

	docDate, err := parseDate(env.DocumentDate)
	if err != nil {
		return models.RawIncomeExtraction{}, errors.NewExtractionParseFailedError(id, fmt.Sprintf("documentDate: %v", err))
	}

	raw := models.RawIncomeExtraction{
		ID:                   id,
		CaseID:               env.CaseID,
		DocumentID:           env.DocumentID,
		DocumentType:         env.DocumentType,
		DocumentDate:         docDate,
		ExtractionConfidence: env.ExtractionConfidence,
	}

	switch env.DocumentType {
	case models.DocumentTypePaystub:
		err = decodePaystub(env.Fields, &raw)
	case models.DocumentTypeW2:
		err = decodeW2(env.Fields, &raw)
	case models.DocumentTypeTaxReturn:
		err = decodeTaxReturn(env.Fields, &raw)
	case models.DocumentTypeBankStatement:
		err = decodeBankStatement(env.Fields, &raw)
	case models.DocumentType1099:
		err = decode1099(env.Fields, &raw)
	default:
		err = fmt.Errorf("unsupported document type %q", env.DocumentType)
	}
	if err != nil {
		return models.RawIncomeExtraction{}, errors.NewExtractionParseFailedError(id, err.Error())
	}
	return raw, nil
}

func (p *Parser) validate(schema, id string, document []byte) error {
	result, err := p.schemas.Validate(schema, document)
	if err != nil {
		return errors.NewExtractionParseFailedError(id, err.Error())
	}
	if !result.Valid {
		return errors.NewExtractionParseFailedError(id, fmt.Sprintf("%s: %s", schema, result.Error()))
	}
	return nil
}

func decodePaystub(data json.RawMessage, raw *models.RawIncomeExtraction) error {
	var f PaystubFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	raw.PayerName = f.EmployerName
	raw.PayerEIN = nonEmpty(f.EmployerEIN)
	raw.Frequency = f.PayFrequency
	raw.IncomeType = models.IncomeTypeEmployment
	switch {
	case f.GrossPay.Valid:
		raw.RawAmount = f.GrossPay.Decimal
		raw.AmountType = models.AmountTypeGross
	case f.NetPay.Valid:
		raw.RawAmount = f.NetPay.Decimal
		raw.AmountType = models.AmountTypeNet
	case f.HoursWorked.Valid && f.HourlyRate.Valid:
		// hours x rate is filled in during normalization
		raw.RawAmount = decimal.Zero
		raw.AmountType = models.AmountTypeGross
	default:
		return fmt.Errorf("paystub states no grossPay, netPay or hoursWorked with hourlyRate")
	}
	raw.YTDGross = f.YTDGross
	raw.YTDNet = f.YTDNet
	raw.YTDFederalWithheld = f.YTDFederalWithheld
	raw.HoursWorked = f.HoursWorked
	raw.HourlyRate = f.HourlyRate

	var err error
	if raw.PeriodStart, err = parseOptionalDate(f.PeriodStart); err != nil {
		return fmt.Errorf("periodStart: %w", err)
	}
	if raw.PeriodEnd, err = parseOptionalDate(f.PeriodEnd); err != nil {
		return fmt.Errorf("periodEnd: %w", err)
	}
	return nil
}

func decodeW2(data json.RawMessage, raw *models.RawIncomeExtraction) error {
	var f W2Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	raw.PayerName = f.EmployerName
	raw.PayerEIN = nonEmpty(f.EmployerEIN)
	raw.RawAmount = f.Wages
	raw.Frequency = models.FrequencyAnnual
	raw.AmountType = models.AmountTypeGross
	raw.IncomeType = models.IncomeTypeEmployment
	raw.YTDFederalWithheld = f.FederalWithheld
	setTaxYear(raw, f.TaxYear)
	return nil
}

func decodeTaxReturn(data json.RawMessage, raw *models.RawIncomeExtraction) error {
	var f TaxReturnFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	raw.PayerName = f.PayerName
	raw.PayerEIN = nonEmpty(f.PayerEIN)
	raw.RawAmount = f.GrossIncome
	raw.Frequency = models.FrequencyAnnual
	raw.AmountType = models.AmountTypeGross
	raw.IncomeType = f.IncomeType
	if f.NetIncome.Valid {
		raw.YTDGross = decimal.NewNullDecimal(f.GrossIncome)
		raw.YTDNet = f.NetIncome
	}
	setTaxYear(raw, f.TaxYear)
	return nil
}

func decodeBankStatement(data json.RawMessage, raw *models.RawIncomeExtraction) error {
	var f BankStatementFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	raw.PayerName = f.DepositorName
	raw.RawAmount = f.DepositAmount
	raw.Frequency = f.DepositFrequency
	// deposits land after withholding
	raw.AmountType = models.AmountTypeNet

	var err error
	if raw.PeriodStart, err = parseOptionalDate(f.PeriodStart); err != nil {
		return fmt.Errorf("periodStart: %w", err)
	}
	if raw.PeriodEnd, err = parseOptionalDate(f.PeriodEnd); err != nil {
		return fmt.Errorf("periodEnd: %w", err)
	}
	return nil
}

func decode1099(data json.RawMessage, raw *models.RawIncomeExtraction) error {
	var f Form1099Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	raw.PayerName = f.PayerName
	raw.PayerEIN = nonEmpty(f.PayerTIN)
	raw.RawAmount = f.Amount
	raw.Frequency = models.FrequencyAnnual
	raw.AmountType = models.AmountTypeGross
	raw.YTDFederalWithheld = f.FederalWithheld
	switch strings.ToUpper(f.FormVariant) {
	case "INT", "DIV":
		raw.IncomeType = models.IncomeTypeOther
	default:
		raw.IncomeType = models.IncomeTypeSelfEmployment
	}
	setTaxYear(raw, f.TaxYear)
	return nil
}

// setTaxYear pins an annual document to the calendar year it reports on.
func setTaxYear(raw *models.RawIncomeExtraction, year int) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	raw.PeriodStart = &start
	raw.PeriodEnd = &end
}

// FromManualRecord converts a staff-entered income line into the extraction
// schema. Such records carry a fixed confidence since no extraction model
// scored them.
func FromManualRecord(rec models.ManualIncomeRecord, p Params) models.RawIncomeExtraction {
	docType := rec.DocumentType
	if docType == "" {
		docType = models.DocumentTypePaystub
	}
	amountType := rec.AmountType
	if amountType == "" {
		amountType = models.AmountTypeGross
	}
	id := "manual:" + rec.ID
	return models.RawIncomeExtraction{
		ID:                   id,
		CaseID:               rec.CaseID,
		DocumentID:           id,
		DocumentType:         docType,
		DocumentDate:         rec.IncomeDate,
		RawAmount:            rec.Amount,
		Frequency:            rec.Frequency,
		AmountType:           amountType,
		PayerName:            rec.PayerName,
		PayerEIN:             rec.PayerEIN,
		IncomeType:           rec.IncomeType,
		ExtractionConfidence: p.ManualRecordConfidence,
	}
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
	return t.UTC(), nil
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
