package income

import (
	"fmt"

	"bankruptcy-workers/internal/models"
)

const (
	DefaultReviewThreshold        = 0.6
	DefaultDiscrepancyTolerance   = 0.15
	DefaultNetOnlyPenalty         = 0.2
	DefaultManualRecordConfidence = 0.8
)

// Params are the tunable constants of normalization and reconciliation.
type Params struct {
	ReviewThreshold        float64
	DiscrepancyTolerance   float64
	NetOnlyPenalty         float64
	ManualRecordConfidence float64
	ReliabilityWeights     map[models.DocumentType]float64
}

// DefaultReliabilityWeights returns a fresh copy of the per-document-type weights.
func DefaultReliabilityWeights() map[models.DocumentType]float64 {
	return map[models.DocumentType]float64{
		models.DocumentTypeTaxReturn:     1.0,
		models.DocumentTypeW2:            1.0,
		models.DocumentTypePaystub:       0.9,
		models.DocumentType1099:          0.85,
		models.DocumentTypeBankStatement: 0.7,
	}
}

// DefaultParams returns the built-in thresholds and weights.
func DefaultParams() Params {
	return Params{
		ReviewThreshold:        DefaultReviewThreshold,
		DiscrepancyTolerance:   DefaultDiscrepancyTolerance,
		NetOnlyPenalty:         DefaultNetOnlyPenalty,
		ManualRecordConfidence: DefaultManualRecordConfidence,
		ReliabilityWeights:     DefaultReliabilityWeights(),
	}
}

// Validate rejects thresholds and weights outside their allowed ranges.
func (p Params) Validate() error {
	unit := map[string]float64{
		"reviewThreshold":        p.ReviewThreshold,
		"netOnlyPenalty":         p.NetOnlyPenalty,
		"manualRecordConfidence": p.ManualRecordConfidence,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	if p.DiscrepancyTolerance < 0 {
		return fmt.Errorf("discrepancyTolerance must not be negative, got %v", p.DiscrepancyTolerance)
	}
	for docType, w := range p.ReliabilityWeights {
		if !docType.IsValid() {
			return fmt.Errorf("reliability weight for unknown document type %q", docType)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("reliability weight for %s must be within [0,1], got %v", docType, w)
		}
	}
	return nil
}

// weight returns the reliability weight for a document type. Types missing
// from the configured map fall back to the built-in defaults.
func (p Params) weight(docType models.DocumentType) float64 {
	if w, ok := p.ReliabilityWeights[docType]; ok {
		return w
	}
	return DefaultReliabilityWeights()[docType]
}
