// internal/workers/income/collect-income-evidence/models.go
package collectincomeevidence

import "bankruptcy-workers/internal/casefile"

type Input struct {
	CaseID      string   `json:"caseId"`
	DocumentIDs []string `json:"documentIds"`
}

type Output struct {
	EvidenceStored       int                            `json:"evidenceStored"`
	EvidenceDuplicates   int                            `json:"evidenceDuplicates"`
	RejectedExtractions  []string                       `json:"rejectedExtractions"`
	UnavailableDocuments []casefile.UnavailableDocument `json:"unavailableDocuments"`
	EvidenceComplete     bool                           `json:"evidenceComplete"`
}
