package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentType string

const (
	DocumentTypePaystub       DocumentType = "paystub"
	DocumentTypeW2            DocumentType = "w2"
	DocumentTypeTaxReturn     DocumentType = "tax_return"
	DocumentTypeBankStatement DocumentType = "bank_statement"
	DocumentType1099          DocumentType = "1099"
)

func (d DocumentType) IsValid() bool {
	switch d {
	case DocumentTypePaystub, DocumentTypeW2, DocumentTypeTaxReturn, DocumentTypeBankStatement, DocumentType1099:
		return true
	}
	return false
}

// IsAuthoritative reports whether the document states a full-year figure
// that supersedes projection-based evidence.
func (d DocumentType) IsAuthoritative() bool {
	return d == DocumentTypeTaxReturn || d == DocumentTypeW2
}

type Frequency string

const (
	FrequencyWeekly      Frequency = "weekly"
	FrequencyBiweekly    Frequency = "biweekly"
	FrequencySemiMonthly Frequency = "semi_monthly"
	FrequencyMonthly     Frequency = "monthly"
	FrequencyAnnual      Frequency = "annual"
	FrequencyOneTime     Frequency = "one_time"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencySemiMonthly, FrequencyMonthly, FrequencyAnnual, FrequencyOneTime:
		return true
	}
	return false
}

type AmountType string

const (
	AmountTypeGross AmountType = "gross"
	AmountTypeNet   AmountType = "net"
)

type IncomeType string

const (
	IncomeTypeEmployment     IncomeType = "employment"
	IncomeTypeSelfEmployment IncomeType = "self_employment"
	IncomeTypeOther          IncomeType = "other"
)

// RawIncomeExtraction is one document-derived income claim. It is immutable
// once created.
type RawIncomeExtraction struct {
	ID                   string              `json:"id"`
	CaseID               string              `json:"caseId"`
	DocumentID           string              `json:"documentId"`
	DocumentType         DocumentType        `json:"documentType"`
	DocumentDate         time.Time           `json:"documentDate"`
	RawAmount            decimal.Decimal     `json:"rawAmount"`
	Frequency            Frequency           `json:"frequency"`
	AmountType           AmountType          `json:"amountType"`
	PayerName            string              `json:"payerName"`
	PayerEIN             *string             `json:"payerEin,omitempty"`
	IncomeType           IncomeType          `json:"incomeType,omitempty"`
	PeriodStart          *time.Time          `json:"periodStart,omitempty"`
	PeriodEnd            *time.Time          `json:"periodEnd,omitempty"`
	YTDGross             decimal.NullDecimal `json:"ytdGross"`
	YTDNet               decimal.NullDecimal `json:"ytdNet"`
	YTDFederalWithheld   decimal.NullDecimal `json:"ytdFederalWithheld"`
	HoursWorked          decimal.NullDecimal `json:"hoursWorked"`
	HourlyRate           decimal.NullDecimal `json:"hourlyRate"`
	ExtractionConfidence float64             `json:"extractionConfidence"`
}

// IncomeYear is the calendar year the claim belongs to.
func (r RawIncomeExtraction) IncomeYear() int {
	if r.PeriodEnd != nil {
		return r.PeriodEnd.Year()
	}
	return r.DocumentDate.Year()
}

// AsOf is the date the claim's figures were stated at.
func (r RawIncomeExtraction) AsOf() time.Time {
	if r.PeriodEnd != nil {
		return *r.PeriodEnd
	}
	return r.DocumentDate
}

// NormalizedIncome is derived from exactly one RawIncomeExtraction.
type NormalizedIncome struct {
	ExtractionID           string              `json:"extractionId"`
	DocumentID             string              `json:"documentId"`
	DocumentType           DocumentType        `json:"documentType"`
	DocumentDate           time.Time           `json:"documentDate"`
	PayerName              string              `json:"payerName"`
	PayerEIN               string              `json:"payerEin,omitempty"`
	SourceKey              string              `json:"sourceKey"`
	IncomeType             IncomeType          `json:"incomeType"`
	IncomeYear             int                 `json:"incomeYear"`
	NormalizedMonthlyGross decimal.NullDecimal `json:"normalizedMonthlyGross"`
	NormalizedAnnualGross  decimal.NullDecimal `json:"normalizedAnnualGross"`
	NormalizedMonthlyNet   decimal.NullDecimal `json:"normalizedMonthlyNet"`
	NormalizedAnnualNet    decimal.NullDecimal `json:"normalizedAnnualNet"`
	GrossFromYTD           bool                `json:"grossFromYtd"`
	HasYTD                 bool                `json:"hasYtd"`
	Recurring              bool                `json:"recurring"`
	Confidence             float64             `json:"confidence"`
	Adjustments            []string            `json:"adjustments,omitempty"`
}

type DeterminationMethod string

const (
	MethodSingleSource     DeterminationMethod = "single_source"
	MethodWeightedAverage  DeterminationMethod = "weighted_average"
	MethodDocumentPriority DeterminationMethod = "document_priority"
	MethodManualOverride   DeterminationMethod = "manual_override"
)

type SourceStatus string

const (
	StatusReconciled  SourceStatus = "reconciled"
	StatusNeedsReview SourceStatus = "needs_review"
	StatusConflict    SourceStatus = "conflict"
)

type EvidenceItem struct {
	ExtractionID string              `json:"extractionId"`
	DocumentID   string              `json:"documentId"`
	DocumentType DocumentType        `json:"documentType"`
	DocumentDate time.Time           `json:"documentDate"`
	MonthlyGross decimal.NullDecimal `json:"monthlyGross"`
	AnnualGross  decimal.NullDecimal `json:"annualGross"`
	MonthlyNet   decimal.NullDecimal `json:"monthlyNet"`
	Confidence   float64             `json:"confidence"`
	Superseded   bool                `json:"superseded"`
}

type DiscrepancyValue struct {
	ExtractionID string          `json:"extractionId"`
	MonthlyGross decimal.Decimal `json:"monthlyGross"`
}

type Discrepancy struct {
	Values    []DiscrepancyValue `json:"values"`
	Magnitude float64            `json:"magnitude"`
	Spread    decimal.Decimal    `json:"spread"`
	Tolerance float64            `json:"tolerance"`
	SourceIDs []string           `json:"sourceIds"`
}

type ReconciledIncomeSource struct {
	ID                   string              `json:"id"`
	CaseID               string              `json:"caseId"`
	EmployerName         string              `json:"employerName"`
	EmployerEIN          *string             `json:"employerEin,omitempty"`
	SourceKey            string              `json:"sourceKey"`
	IncomeType           IncomeType          `json:"incomeType"`
	IncomeYear           int                 `json:"incomeYear"`
	VerifiedAnnualGross  decimal.Decimal     `json:"verifiedAnnualGross"`
	VerifiedMonthlyGross decimal.Decimal     `json:"verifiedMonthlyGross"`
	VerifiedAnnualNet    decimal.NullDecimal `json:"verifiedAnnualNet"`
	VerifiedMonthlyNet   decimal.NullDecimal `json:"verifiedMonthlyNet"`
	DeterminationMethod  DeterminationMethod `json:"determinationMethod"`
	Evidence             []EvidenceItem      `json:"evidence"`
	Confidence           float64             `json:"confidence"`
	Status               SourceStatus        `json:"status"`
	Discrepancy          *Discrepancy        `json:"discrepancy,omitempty"`
	CalculatedAt         time.Time           `json:"calculatedAt"`
}

type SkippedExtraction struct {
	ExtractionID string `json:"extractionId"`
	Reason       string `json:"reason"`
}

type IncomeSummary struct {
	CaseID               string                   `json:"caseId"`
	Sources              []ReconciledIncomeSource `json:"sources"`
	TotalMonthlyGross    decimal.Decimal          `json:"totalMonthlyGross"`
	TotalAnnualGross     decimal.Decimal          `json:"totalAnnualGross"`
	TotalMonthlyNet      decimal.NullDecimal      `json:"totalMonthlyNet"`
	SourcesNeedingReview []string                 `json:"sourcesNeedingReview"`
	AllSourcesReconciled bool                     `json:"allSourcesReconciled"`
	NonRecurring         []EvidenceItem           `json:"nonRecurring,omitempty"`
	SkippedExtractions   []SkippedExtraction      `json:"skippedExtractions,omitempty"`
	UnavailableDocuments []string                 `json:"unavailableDocuments,omitempty"`
	EvidenceComplete     bool                     `json:"evidenceComplete"`
	LastCalculatedAt     time.Time                `json:"lastCalculatedAt"`
}

// ManualIncomeRecord is an income line typed in by case staff rather than
// extracted from a document.
type ManualIncomeRecord struct {
	ID           string          `json:"id"`
	CaseID       string          `json:"caseId"`
	PayerName    string          `json:"payerName"`
	PayerEIN     *string         `json:"payerEin,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Frequency    Frequency       `json:"frequency"`
	AmountType   AmountType      `json:"amountType"`
	IncomeType   IncomeType      `json:"incomeType,omitempty"`
	IncomeDate   time.Time       `json:"incomeDate"`
	DocumentType DocumentType    `json:"documentType,omitempty"`
}

// IncomeOverride is a reviewer-entered figure for one income source. It
// survives reconciliation runs and wins over document evidence.
type IncomeOverride struct {
	CaseID      string              `json:"caseId"`
	SourceKey   string              `json:"sourceKey"`
	EmployerEIN *string             `json:"employerEin,omitempty"`
	IncomeType  IncomeType          `json:"incomeType"`
	IncomeYear  int                 `json:"incomeYear"`
	AnnualGross decimal.Decimal     `json:"annualGross"`
	AnnualNet   decimal.NullDecimal `json:"annualNet"`
	Note        string              `json:"note,omitempty"`
	EnteredBy   string              `json:"enteredBy,omitempty"`
}
