// internal/workers/income/get-income-summary/models.go
package getincomesummary

import "bankruptcy-workers/internal/models"

type Input struct {
	CaseID string `json:"caseId"`
}

type Output struct {
	IncomeComputed bool                  `json:"incomeComputed"`
	IncomeSummary  *models.IncomeSummary `json:"incomeSummary,omitempty"`
}
