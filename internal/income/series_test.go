package income

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankruptcy-workers/internal/models"
)

func TestMonthlySeries(t *testing.T) {
	sources := []models.ReconciledIncomeSource{
		{ID: "src-2024", IncomeYear: 2024, Status: models.StatusReconciled, VerifiedMonthlyGross: dec("5000")},
		{ID: "src-2023", IncomeYear: 2023, Status: models.StatusReconciled, VerifiedMonthlyGross: dec("4000")},
		{ID: "src-review", IncomeYear: 2024, Status: models.StatusNeedsReview, VerifiedMonthlyGross: dec("9999")},
	}

	t.Run("window inside one year", func(t *testing.T) {
		entries := MonthlySeries(sources, date(2024, time.July, 15))

		require.Len(t, entries, 6)
		for _, e := range entries {
			assert.Equal(t, "src-2024", e.SourceID)
			assert.Equal(t, 2024, e.Month.Year())
		}
		assert.Equal(t, time.June, entries[0].Month.Month())
		assert.Equal(t, time.January, entries[5].Month.Month())
	})

	t.Run("window spanning a year boundary", func(t *testing.T) {
		entries := MonthlySeries(sources, date(2024, time.March, 1))

		// Sep-Dec 2023 from the 2023 source, Jan-Feb 2024 from the 2024 source
		require.Len(t, entries, 6)
		counts := map[string]int{}
		for _, e := range entries {
			counts[e.SourceID]++
		}
		assert.Equal(t, 2, counts["src-2024"])
		assert.Equal(t, 4, counts["src-2023"])
		assert.Zero(t, counts["src-review"])
	})

	t.Run("no reconciled sources", func(t *testing.T) {
		assert.Empty(t, MonthlySeries(sources[2:], date(2024, time.July, 15)))
	})
}
