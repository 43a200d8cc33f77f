package income

import (
	"time"

	"bankruptcy-workers/internal/models"
)

// LookbackMonths is the statutory CMI window.
const LookbackMonths = 6

// MonthlySeries spreads reconciled sources over the six full calendar months
// before asOf. A month only receives a source's monthly gross when the source
// covers that month's year; sources pending review contribute nothing.
func MonthlySeries(sources []models.ReconciledIncomeSource, asOf time.Time) []models.MonthlyIncomeEntry {
	current := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)

	var entries []models.MonthlyIncomeEntry
	for i := 1; i <= LookbackMonths; i++ {
		month := current.AddDate(0, -i, 0)
		for _, src := range sources {
			if src.Status != models.StatusReconciled || src.IncomeYear != month.Year() {
				continue
			}
			entries = append(entries, models.MonthlyIncomeEntry{
				Month:    month,
				Gross:    src.VerifiedMonthlyGross,
				SourceID: src.ID,
			})
		}
	}
	return entries
}
