package income

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
)

var testNow = time.Date(2025, time.February, 10, 12, 0, 0, 0, time.UTC)

func mustNormalize(t *testing.T, raws ...models.RawIncomeExtraction) []models.NormalizedIncome {
	t.Helper()
	out := make([]models.NormalizedIncome, 0, len(raws))
	for _, r := range raws {
		n, err := Normalize(r, DefaultParams())
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

func reconcile(t *testing.T, incomes []models.NormalizedIncome) Result {
	t.Helper()
	res, err := Reconcile(Input{CaseID: "case-1", Incomes: incomes}, DefaultParams(), testNow)
	require.NoError(t, err)
	return res
}

func paystub(id, amount string, freq models.Frequency, confidence float64) models.RawIncomeExtraction {
	r := createRaw(id, models.DocumentTypePaystub, amount, freq)
	r.ExtractionConfidence = confidence
	return r
}

func w2(id, wages string, year int) models.RawIncomeExtraction {
	r := createRaw(id, models.DocumentTypeW2, wages, models.FrequencyAnnual)
	r.DocumentDate = date(year+1, time.January, 31)
	r.PeriodStart = datePtr(year, time.January, 1)
	r.PeriodEnd = datePtr(year, time.December, 31)
	r.ExtractionConfidence = 0.95
	return r
}

func TestReconcile_SingleSource(t *testing.T) {
	tests := []struct {
		name           string
		confidence     float64
		expectedStatus models.SourceStatus
	}{
		{name: "confident record is reconciled", confidence: 0.95, expectedStatus: models.StatusReconciled},
		{name: "weak record needs review", confidence: 0.5, expectedStatus: models.StatusNeedsReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reconcile(t, mustNormalize(t, paystub("ext-1", "1000", models.FrequencyWeekly, tt.confidence)))

			require.Len(t, res.Sources, 1)
			src := res.Sources[0]
			assert.Equal(t, models.MethodSingleSource, src.DeterminationMethod)
			assert.Equal(t, tt.expectedStatus, src.Status)
			assert.Equal(t, "4333.33", src.VerifiedMonthlyGross.StringFixed(2))
			assert.Equal(t, "52000.00", src.VerifiedAnnualGross.StringFixed(2))
			assert.Equal(t, "Acme Corp", src.EmployerName)
			assert.Equal(t, 2024, src.IncomeYear)
			require.Len(t, src.Evidence, 1)
			assert.Equal(t, "ext-1", src.Evidence[0].ExtractionID)
		})
	}
}

func TestReconcile_SingleNetOnlySourceNeedsReviewWithZeroFigures(t *testing.T) {
	raw := paystub("ext-1", "800", models.FrequencyWeekly, 1.0)
	raw.AmountType = models.AmountTypeNet

	res := reconcile(t, mustNormalize(t, raw))

	require.Len(t, res.Sources, 1)
	src := res.Sources[0]
	assert.Equal(t, models.StatusNeedsReview, src.Status)
	assert.True(t, src.VerifiedMonthlyGross.IsZero())
	assert.True(t, src.VerifiedAnnualGross.IsZero())
	assert.Equal(t, []string{src.ID}, res.Summary.SourcesNeedingReview)
}

func TestReconcile_DocumentPriorityScenario(t *testing.T) {
	// W-2 for 60,000 against three paystubs projecting 55,000
	raws := []models.RawIncomeExtraction{
		w2("ext-w2", "60000", 2024),
		paystub("ext-p1", "2291.67", models.FrequencySemiMonthly, 0.9),
		paystub("ext-p2", "2291.67", models.FrequencySemiMonthly, 0.9),
		paystub("ext-p3", "2291.67", models.FrequencySemiMonthly, 0.9),
	}
	raws[1].DocumentDate = date(2024, time.May, 15)
	raws[2].DocumentDate = date(2024, time.May, 31)
	raws[3].DocumentDate = date(2024, time.June, 15)

	res := reconcile(t, mustNormalize(t, raws...))

	require.Len(t, res.Sources, 1)
	src := res.Sources[0]
	assert.Equal(t, models.MethodDocumentPriority, src.DeterminationMethod)
	assert.Equal(t, models.StatusReconciled, src.Status)
	assert.Equal(t, "60000.00", src.VerifiedAnnualGross.StringFixed(2))
	assert.Equal(t, "5000.00", src.VerifiedMonthlyGross.StringFixed(2))
	assert.InDelta(t, 0.95, src.Confidence, 1e-9)
	assert.Nil(t, src.Discrepancy)

	require.Len(t, src.Evidence, 4)
	assert.Equal(t, "ext-w2", src.Evidence[0].ExtractionID)
	assert.False(t, src.Evidence[0].Superseded)
	for _, e := range src.Evidence[1:] {
		assert.True(t, e.Superseded, e.ExtractionID)
	}
	// most recent paystub first after the authoritative document
	assert.Equal(t, "ext-p3", src.Evidence[1].ExtractionID)

	assert.True(t, res.Summary.AllSourcesReconciled)
	assert.Equal(t, "5000.00", res.Summary.TotalMonthlyGross.StringFixed(2))
}

func TestReconcile_TaxReturnOutranksW2(t *testing.T) {
	tr := createRaw("ext-tr", models.DocumentTypeTaxReturn, "61000", models.FrequencyAnnual)
	tr.PeriodEnd = datePtr(2024, time.December, 31)

	res := reconcile(t, mustNormalize(t, tr, w2("ext-w2", "60000", 2024)))

	require.Len(t, res.Sources, 1)
	assert.Equal(t, models.MethodDocumentPriority, res.Sources[0].DeterminationMethod)
	assert.Equal(t, "61000.00", res.Sources[0].VerifiedAnnualGross.StringFixed(2))
}

func TestReconcile_ConflictBeyondTolerance(t *testing.T) {
	res := reconcile(t, mustNormalize(t,
		paystub("ext-a", "4000", models.FrequencyMonthly, 0.9),
		paystub("ext-b", "5000", models.FrequencyMonthly, 0.9),
	))

	require.Len(t, res.Sources, 1)
	src := res.Sources[0]
	assert.Equal(t, models.StatusConflict, src.Status)
	assert.Equal(t, models.MethodWeightedAverage, src.DeterminationMethod)
	require.NotNil(t, src.Discrepancy)
	assert.InDelta(t, 1000.0/4500.0, src.Discrepancy.Magnitude, 1e-6)
	assert.Equal(t, "1000.00", src.Discrepancy.Spread.StringFixed(2))
	assert.ElementsMatch(t, []string{"ext-a", "ext-b"}, src.Discrepancy.SourceIDs)
	assert.Len(t, src.Discrepancy.Values, 2)
	// provisional figure is still reported
	assert.Equal(t, "4500.00", src.VerifiedMonthlyGross.StringFixed(2))

	assert.False(t, res.Summary.AllSourcesReconciled)
	assert.Equal(t, []string{src.ID}, res.Summary.SourcesNeedingReview)
	assert.True(t, res.Summary.TotalMonthlyGross.IsZero())
}

func TestReconcile_WeightedAverageWithinTolerance(t *testing.T) {
	bank := createRaw("ext-bank", models.DocumentTypeBankStatement, "4200", models.FrequencyMonthly)
	bank.ExtractionConfidence = 1.0

	res := reconcile(t, mustNormalize(t,
		paystub("ext-pay", "4000", models.FrequencyMonthly, 1.0),
		bank,
	))

	require.Len(t, res.Sources, 1)
	src := res.Sources[0]
	assert.Equal(t, models.MethodWeightedAverage, src.DeterminationMethod)
	assert.Equal(t, models.StatusReconciled, src.Status)
	assert.Nil(t, src.Discrepancy)
	// weights 0.9 and 0.7: (4000*0.9 + 4200*0.7) / 1.6
	assert.Equal(t, "4087.50", src.VerifiedMonthlyGross.StringFixed(2))
	assert.InDelta(t, 0.8, src.Confidence, 1e-9)
}

func TestReconcile_MultiRecordWithoutGross(t *testing.T) {
	a := paystub("ext-a", "800", models.FrequencyWeekly, 1.0)
	a.AmountType = models.AmountTypeNet
	b := paystub("ext-b", "810", models.FrequencyWeekly, 1.0)
	b.AmountType = models.AmountTypeNet

	res := reconcile(t, mustNormalize(t, a, b))

	require.Len(t, res.Sources, 1)
	assert.Equal(t, models.StatusNeedsReview, res.Sources[0].Status)
	assert.True(t, res.Sources[0].VerifiedMonthlyGross.IsZero())
}

func TestReconcile_W2SupersedesNetOnlyBankStatement(t *testing.T) {
	bank := createRaw("ext-bank", models.DocumentTypeBankStatement, "4100", models.FrequencyMonthly)
	bank.AmountType = models.AmountTypeNet
	bank.DocumentDate = date(2024, time.June, 30)

	res := reconcile(t, mustNormalize(t, w2("ext-w2", "60000", 2024), bank))

	require.Len(t, res.Sources, 1)
	src := res.Sources[0]
	assert.Equal(t, models.MethodDocumentPriority, src.DeterminationMethod)
	assert.Equal(t, models.StatusReconciled, src.Status)
	assert.Equal(t, "5000.00", src.VerifiedMonthlyGross.StringFixed(2))

	require.Len(t, src.Evidence, 2)
	assert.Equal(t, "ext-w2", src.Evidence[0].ExtractionID)
	assert.False(t, src.Evidence[0].Superseded)
	assert.Equal(t, "ext-bank", src.Evidence[1].ExtractionID)
	assert.True(t, src.Evidence[1].Superseded)
}

func TestReconcile_ZeroGrossPaystubIsNotReconciled(t *testing.T) {
	res := reconcile(t, mustNormalize(t, paystub("ext-zero", "0", models.FrequencyWeekly, 0.95)))

	require.Len(t, res.Sources, 1)
	src := res.Sources[0]
	assert.Equal(t, models.StatusNeedsReview, src.Status)
	assert.True(t, src.VerifiedMonthlyGross.IsZero())
	assert.False(t, res.Summary.AllSourcesReconciled)
	assert.Equal(t, []string{src.ID}, res.Summary.SourcesNeedingReview)
}

func TestReconcile_GroupingByNameEINAndYear(t *testing.T) {
	a := paystub("ext-a", "1000", models.FrequencyMonthly, 0.9)
	a.PayerName = "ACME CORP."
	a.PayerEIN = strPtr("12-3456789")

	b := paystub("ext-b", "1000", models.FrequencyMonthly, 0.9)
	b.PayerName = "acme corp"

	c := paystub("ext-c", "3000", models.FrequencyMonthly, 0.9)
	c.PayerName = "Acme Corp"
	c.PayerEIN = strPtr("98-7654321")

	d := paystub("ext-d", "1000", models.FrequencyMonthly, 0.9)
	d.DocumentDate = date(2023, time.November, 30)

	res := reconcile(t, mustNormalize(t, a, b, c, d))

	// two EINs under one name: one group per EIN plus the EIN-less record,
	// and the 2023 record on its own
	require.Len(t, res.Sources, 4)

	byEvidence := map[string]models.ReconciledIncomeSource{}
	for _, s := range res.Sources {
		for _, e := range s.Evidence {
			byEvidence[e.ExtractionID] = s
		}
	}
	assert.NotEqual(t, byEvidence["ext-a"].ID, byEvidence["ext-c"].ID)
	assert.NotEqual(t, byEvidence["ext-a"].ID, byEvidence["ext-b"].ID)
	assert.Equal(t, 2023, byEvidence["ext-d"].IncomeYear)
	require.NotNil(t, byEvidence["ext-c"].EmployerEIN)
	assert.Equal(t, "987654321", *byEvidence["ext-c"].EmployerEIN)
}

func TestReconcile_EINlessRecordJoinsSingleEINGroup(t *testing.T) {
	a := paystub("ext-a", "1000", models.FrequencyMonthly, 0.9)
	a.PayerEIN = strPtr("12-3456789")
	b := paystub("ext-b", "1010", models.FrequencyMonthly, 0.9)

	res := reconcile(t, mustNormalize(t, a, b))

	require.Len(t, res.Sources, 1)
	assert.Len(t, res.Sources[0].Evidence, 2)
	require.NotNil(t, res.Sources[0].EmployerEIN)
	assert.Equal(t, "123456789", *res.Sources[0].EmployerEIN)
}

func TestReconcile_Idempotent(t *testing.T) {
	raws := []models.RawIncomeExtraction{
		w2("ext-w2", "60000", 2024),
		paystub("ext-p1", "2291.67", models.FrequencySemiMonthly, 0.9),
		paystub("ext-x1", "4000", models.FrequencyMonthly, 0.8),
		paystub("ext-x2", "5200", models.FrequencyMonthly, 0.7),
	}
	raws[2].PayerName = "Other LLC"
	raws[3].PayerName = "Other, LLC"

	incomes := mustNormalize(t, raws...)
	first := reconcile(t, incomes)

	shuffled := append([]models.NormalizedIncome(nil), incomes...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	second := reconcile(t, shuffled)

	assert.Equal(t, first.Sources, second.Sources)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestReconcile_SummaryTotalsAndNet(t *testing.T) {
	withNet := paystub("ext-a", "2000", models.FrequencyMonthly, 1.0)
	withNet.YTDGross = decimal.NewNullDecimal(dec("10000"))
	withNet.YTDNet = decimal.NewNullDecimal(dec("8000"))

	noNet := paystub("ext-b", "1000", models.FrequencyMonthly, 1.0)
	noNet.PayerName = "Beta Inc"

	t.Run("net total is null when a counted source lacks net", func(t *testing.T) {
		res := reconcile(t, mustNormalize(t, withNet, noNet))
		assert.Equal(t, "3000.00", res.Summary.TotalMonthlyGross.StringFixed(2))
		assert.Equal(t, "36000.00", res.Summary.TotalAnnualGross.StringFixed(2))
		assert.False(t, res.Summary.TotalMonthlyNet.Valid)
		assert.True(t, res.Summary.AllSourcesReconciled)
	})

	t.Run("net total is summed when every source has net", func(t *testing.T) {
		res := reconcile(t, mustNormalize(t, withNet))
		require.True(t, res.Summary.TotalMonthlyNet.Valid)
		assert.Equal(t, "1600.00", res.Summary.TotalMonthlyNet.Decimal.StringFixed(2))
	})
}

func TestReconcile_NonRecurringKeptForAuditOnly(t *testing.T) {
	res := reconcile(t, mustNormalize(t,
		paystub("ext-pay", "1000", models.FrequencyMonthly, 1.0),
		paystub("ext-bonus", "5000", models.FrequencyOneTime, 1.0),
	))

	require.Len(t, res.Sources, 1)
	assert.Equal(t, "1000.00", res.Summary.TotalMonthlyGross.StringFixed(2))
	require.Len(t, res.Summary.NonRecurring, 1)
	assert.Equal(t, "ext-bonus", res.Summary.NonRecurring[0].ExtractionID)
}

func TestReconcile_ManualOverride(t *testing.T) {
	incomes := mustNormalize(t,
		paystub("ext-a", "4000", models.FrequencyMonthly, 0.9),
		paystub("ext-b", "5000", models.FrequencyMonthly, 0.9),
	)
	overrides := []models.IncomeOverride{
		{CaseID: "case-1", SourceKey: "Acme Corp", IncomeType: models.IncomeTypeEmployment, IncomeYear: 2024, AnnualGross: dec("54000")},
		{CaseID: "case-1", SourceKey: "Nobody", IncomeType: models.IncomeTypeEmployment, IncomeYear: 2024, AnnualGross: dec("1")},
	}

	res, err := Reconcile(Input{CaseID: "case-1", Incomes: incomes, Overrides: overrides}, DefaultParams(), testNow)
	require.NoError(t, err)

	require.Len(t, res.Sources, 1)
	src := res.Sources[0]
	assert.Equal(t, models.MethodManualOverride, src.DeterminationMethod)
	assert.Equal(t, models.StatusReconciled, src.Status)
	assert.Equal(t, "4500.00", src.VerifiedMonthlyGross.StringFixed(2))
	assert.Equal(t, 1.0, src.Confidence)
	assert.NotNil(t, src.Discrepancy)
	assert.Len(t, src.Evidence, 2)

	require.Len(t, res.UnmatchedOverrides, 1)
	assert.Equal(t, "Nobody", res.UnmatchedOverrides[0].SourceKey)
}

func TestReconcile_CompletenessFlags(t *testing.T) {
	incomes := mustNormalize(t, paystub("ext-a", "1000", models.FrequencyMonthly, 1.0))

	res, err := Reconcile(Input{CaseID: "case-1", Incomes: incomes}, DefaultParams(), testNow)
	require.NoError(t, err)
	assert.True(t, res.Summary.EvidenceComplete)
	assert.Equal(t, testNow, res.Summary.LastCalculatedAt)

	res, err = Reconcile(Input{
		CaseID:               "case-1",
		Incomes:              incomes,
		Skipped:              []models.SkippedExtraction{{ExtractionID: "ext-bad", Reason: "EXTRACTION_PARSE_FAILED"}},
		UnavailableDocuments: []string{"doc-9"},
	}, DefaultParams(), testNow)
	require.NoError(t, err)
	assert.False(t, res.Summary.EvidenceComplete)
	assert.Equal(t, []string{"doc-9"}, res.Summary.UnavailableDocuments)

	res, err = Reconcile(Input{CaseID: "case-1"}, DefaultParams(), testNow)
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.False(t, res.Summary.EvidenceComplete)
	assert.NotNil(t, res.Summary.SourcesNeedingReview)
}

func TestReconcile_MissingCaseID(t *testing.T) {
	_, err := Reconcile(Input{}, DefaultParams(), testNow)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCaseContextMissing))
}

func TestReconcile_ConfidenceAlwaysInUnitRange(t *testing.T) {
	res := reconcile(t, mustNormalize(t,
		w2("ext-w2", "60000", 2024),
		paystub("ext-a", "4000", models.FrequencyMonthly, 0.0),
		paystub("ext-b", "9000", models.FrequencyMonthly, 1.0),
	))
	for _, s := range res.Sources {
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
		if s.Status == models.StatusConflict {
			assert.NotNil(t, s.Discrepancy)
		}
	}
}
