// internal/workers/income/reconcile-income/models.go
package reconcileincome

import (
	"github.com/shopspring/decimal"

	"bankruptcy-workers/internal/models"
)

type Input struct {
	CaseID      string   `json:"caseId"`
	DocumentIDs []string `json:"documentIds,omitempty"`
}

// Output is flattened for gateway conditions in the process model; the full
// summary rides along for downstream tasks.
type Output struct {
	TotalMonthlyGross    decimal.Decimal      `json:"totalMonthlyGross"`
	AllSourcesReconciled bool                 `json:"allSourcesReconciled"`
	SourcesNeedingReview []string             `json:"sourcesNeedingReview"`
	UnmatchedOverrides   []string             `json:"unmatchedOverrides"`
	EvidenceComplete     bool                 `json:"evidenceComplete"`
	ReviewAlertID        string               `json:"reviewAlertId,omitempty"`
	IncomeSummary        models.IncomeSummary `json:"incomeSummary"`
}
