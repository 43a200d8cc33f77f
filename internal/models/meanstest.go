package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Recommendation string

const (
	RecommendationChapter7  Recommendation = "chapter7_eligible"
	RecommendationChapter13 Recommendation = "chapter13_recommended"
)

// MonthlyIncomeEntry is gross income attributed to one calendar month.
type MonthlyIncomeEntry struct {
	Month    time.Time       `json:"month"`
	Gross    decimal.Decimal `json:"gross"`
	SourceID string          `json:"sourceId,omitempty"`
}

type OtherExpenses struct {
	HealthInsurance      decimal.Decimal `json:"healthInsurance"`
	Childcare            decimal.Decimal `json:"childcare"`
	CourtOrderedPayments decimal.Decimal `json:"courtOrderedPayments"`
	Education            decimal.Decimal `json:"education"`
}

func (o OtherExpenses) Total() decimal.Decimal {
	return o.HealthInsurance.Add(o.Childcare).Add(o.CourtOrderedPayments).Add(o.Education)
}

// CaseFinancials are the household, expense and debt facts kept in case
// storage.
type CaseFinancials struct {
	CaseID                      string          `json:"caseId"`
	State                       string          `json:"state"`
	County                      *string         `json:"county,omitempty"`
	HouseholdSize               int             `json:"householdSize"`
	VehicleCount                int             `json:"vehicleCount"`
	MonthlyExpenses             decimal.Decimal `json:"monthlyExpenses"`
	SecuredDebtTotal            decimal.Decimal `json:"securedDebtTotal"`
	UnsecuredDebtTotal          decimal.Decimal `json:"unsecuredDebtTotal"`
	SecuredDebtMonthlyPayments  decimal.Decimal `json:"securedDebtMonthlyPayments"`
	PriorityDebtMonthlyPayments decimal.Decimal `json:"priorityDebtMonthlyPayments"`
	OtherExpenses               OtherExpenses   `json:"otherExpenses"`
	FilingDate                  *time.Time      `json:"filingDate,omitempty"`
}

type MeansTestInput struct {
	CaseID                      string               `json:"caseId"`
	State                       string               `json:"state"`
	County                      *string              `json:"county,omitempty"`
	HouseholdSize               int                  `json:"householdSize"`
	VehicleCount                int                  `json:"vehicleCount"`
	IncomeEntries               []MonthlyIncomeEntry `json:"incomeEntries"`
	MonthlyExpenses             decimal.Decimal      `json:"monthlyExpenses"`
	SecuredDebtTotal            decimal.Decimal      `json:"securedDebtTotal"`
	UnsecuredDebtTotal          decimal.Decimal      `json:"unsecuredDebtTotal"`
	SecuredDebtMonthlyPayments  decimal.Decimal      `json:"securedDebtMonthlyPayments"`
	PriorityDebtMonthlyPayments decimal.Decimal      `json:"priorityDebtMonthlyPayments"`
	OtherExpenses               OtherExpenses        `json:"otherExpenses"`
}

type NationalStandards struct {
	Food          decimal.Decimal `json:"food" yaml:"food"`
	Housekeeping  decimal.Decimal `json:"housekeeping" yaml:"housekeeping"`
	Apparel       decimal.Decimal `json:"apparel" yaml:"apparel"`
	PersonalCare  decimal.Decimal `json:"personalCare" yaml:"personal_care"`
	Miscellaneous decimal.Decimal `json:"miscellaneous" yaml:"miscellaneous"`
}

func (n NationalStandards) Total() decimal.Decimal {
	return n.Food.Add(n.Housekeeping).Add(n.Apparel).Add(n.PersonalCare).Add(n.Miscellaneous)
}

type LocalStandards struct {
	Housing        decimal.Decimal `json:"housing"`
	Utilities      decimal.Decimal `json:"utilities"`
	Transportation decimal.Decimal `json:"transportation"`
	Region         string          `json:"region"`
}

func (l LocalStandards) Total() decimal.Decimal {
	return l.Housing.Add(l.Utilities).Add(l.Transportation)
}

type MeansTestAllowances struct {
	NationalStandards NationalStandards `json:"nationalStandards"`
	LocalStandards    LocalStandards    `json:"localStandards"`
	OtherExpenses     OtherExpenses     `json:"otherExpenses"`
}

func (a MeansTestAllowances) Total() decimal.Decimal {
	return a.NationalStandards.Total().Add(a.LocalStandards.Total()).Add(a.OtherExpenses.Total())
}

type MonthTotal struct {
	Month string          `json:"month"`
	Gross decimal.Decimal `json:"gross"`
}

// MeansTestResult carries every intermediate figure of a determination.
type MeansTestResult struct {
	CaseID                      string               `json:"caseId"`
	MonthlyTotals               []MonthTotal         `json:"monthlyTotals"`
	SixMonthTotal               decimal.Decimal      `json:"sixMonthTotal"`
	MonthsCovered               int                  `json:"monthsCovered"`
	IsComplete                  bool                 `json:"isComplete"`
	CurrentMonthlyIncome        decimal.Decimal      `json:"currentMonthlyIncome"`
	AnnualizedIncome            decimal.Decimal      `json:"annualizedIncome"`
	State                       string               `json:"state"`
	County                      string               `json:"county,omitempty"`
	HouseholdSize               int                  `json:"householdSize"`
	VehicleCount                int                  `json:"vehicleCount"`
	StateMedianIncome           decimal.Decimal      `json:"stateMedianIncome"`
	PassesStep1                 bool                 `json:"passesStep1"`
	Step2Evaluated              bool                 `json:"step2Evaluated"`
	Allowances                  *MeansTestAllowances `json:"allowances,omitempty"`
	TotalAllowances             decimal.Decimal      `json:"totalAllowances"`
	SecuredDebtMonthlyPayments  decimal.Decimal      `json:"securedDebtMonthlyPayments"`
	PriorityDebtMonthlyPayments decimal.Decimal      `json:"priorityDebtMonthlyPayments"`
	ReportedMonthlyExpenses     decimal.Decimal      `json:"reportedMonthlyExpenses"`
	SecuredDebtTotal            decimal.Decimal      `json:"securedDebtTotal"`
	UnsecuredDebtTotal          decimal.Decimal      `json:"unsecuredDebtTotal"`
	TotalDeductions             decimal.Decimal      `json:"totalDeductions"`
	DisposableIncome            decimal.Decimal      `json:"disposableIncome"`
	SixtyMonthDisposable        decimal.Decimal      `json:"sixtyMonthDisposable"`
	StatutoryFloor              decimal.Decimal      `json:"statutoryFloor"`
	PassesStep2                 bool                 `json:"passesStep2"`
	Recommendation              Recommendation       `json:"recommendation"`
	TablesEffectiveDate         string               `json:"tablesEffectiveDate,omitempty"`
	Warnings                    []string             `json:"warnings,omitempty"`
	CalculatedAt                time.Time            `json:"calculatedAt"`
}
