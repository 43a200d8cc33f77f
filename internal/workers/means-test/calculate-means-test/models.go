// internal/workers/means-test/calculate-means-test/models.go
package calculatemeanstest

import (
	"github.com/shopspring/decimal"

	"bankruptcy-workers/internal/models"
)

type Input struct {
	CaseID string `json:"caseId"`
	// AsOf is a YYYY-MM-DD date; empty uses the filing date.
	AsOf string `json:"asOf,omitempty"`
}

type Output struct {
	Recommendation       models.Recommendation  `json:"recommendation"`
	PassesStep1          bool                   `json:"passesStep1"`
	PassesStep2          bool                   `json:"passesStep2"`
	CurrentMonthlyIncome decimal.Decimal        `json:"currentMonthlyIncome"`
	MeansTestResult      models.MeansTestResult `json:"meansTestResult"`
}
