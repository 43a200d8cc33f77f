package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bankruptcy-workers/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleReport() Report {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	ein := "12-3456789"
	summary := &models.IncomeSummary{
		CaseID: "case-1",
		Sources: []models.ReconciledIncomeSource{
			{
				ID: "src-1", EmployerName: "Acme Corp", EmployerEIN: &ein,
				IncomeType: models.IncomeTypeEmployment, IncomeYear: 2025,
				VerifiedMonthlyGross: d("9500"), VerifiedAnnualGross: d("114000"),
				VerifiedMonthlyNet:  decimal.NewNullDecimal(d("7100")),
				DeterminationMethod: models.MethodDocumentPriority, Confidence: 0.97,
				Status:   models.StatusReconciled,
				Evidence: []models.EvidenceItem{{ExtractionID: "ext-w2"}, {ExtractionID: "ext-stub"}},
			},
			{
				ID: "src-2", EmployerName: "Side Gig", IncomeType: models.IncomeTypeSelfEmployment, IncomeYear: 2025,
				VerifiedMonthlyGross: d("400"), VerifiedAnnualGross: d("4800"),
				DeterminationMethod: models.MethodWeightedAverage, Confidence: 0.4, Status: models.StatusConflict,
			},
		},
		TotalMonthlyGross:    d("9500"),
		TotalAnnualGross:     d("114000"),
		TotalMonthlyNet:      decimal.NewNullDecimal(d("7100")),
		SourcesNeedingReview: []string{"src-2"},
		SkippedExtractions:   []models.SkippedExtraction{{ExtractionID: "ext-bad", Reason: "EXTRACTION_PARSE_FAILED"}},
		LastCalculatedAt:     now,
	}
	means := &models.MeansTestResult{
		CaseID:               "case-1",
		MonthlyTotals:        []models.MonthTotal{{Month: "2025-06", Gross: d("9500")}},
		SixMonthTotal:        d("9500"),
		MonthsCovered:        1,
		CurrentMonthlyIncome: d("1583.33"),
		AnnualizedIncome:     d("18999.96"),
		State:                "CA",
		HouseholdSize:        2,
		StateMedianIncome:    d("89000"),
		PassesStep1:          true,
		Recommendation:       models.RecommendationChapter7,
		TablesEffectiveDate:  "2025-04-01",
		Warnings:             []string{"income found for 1 of 6 months; total still divided by 6"},
	}
	return Report{CaseID: "case-1", Income: summary, MeansTest: means, GeneratedAt: now}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"": FormatText, "table": FormatText, "TEXT": FormatText, " xlsx ": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "Acme Corp")
	assert.Contains(t, out, "$9500.00")
	assert.Contains(t, out, "conflict")
	assert.Contains(t, out, "Skipped extraction ext-bad")
	assert.Contains(t, out, "1 of 6")
	assert.Contains(t, out, "chapter7_eligible")
	assert.Contains(t, out, "Warning: income found for 1 of 6 months")
	assert.NotContains(t, out, "Statutory floor", "step 2 lines only when evaluated")
}

func TestWriteText_NoIncome(t *testing.T) {
	r := sampleReport()
	r.Income = nil

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	assert.Contains(t, buf.String(), "Income has not been reconciled")
}

func TestMeansTestLines_Step2(t *testing.T) {
	m := *sampleReport().MeansTest
	m.PassesStep1 = false
	m.Step2Evaluated = true
	m.Allowances = &models.MeansTestAllowances{
		NationalStandards: models.NationalStandards{Food: d("700")},
		LocalStandards:    models.LocalStandards{Housing: d("2000"), Region: "CA/los angeles"},
	}
	m.SixtyMonthDisposable = d("-1200")
	m.StatutoryFloor = d("8175")

	labels := map[string]string{}
	for _, l := range MeansTestLines(m) {
		labels[l.Label] = l.Value
	}
	assert.Equal(t, "$700.00", labels["National standards"])
	assert.Equal(t, "$2000.00", labels["Local standards (CA/los angeles)"])
	assert.Equal(t, "$8175.00", labels["Statutory floor"])
	assert.Equal(t, "$-1200.00", labels["60-month disposable income"])
}

func TestXLSX(t *testing.T) {
	data, err := XLSX(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{incomeSheet, meansTestSheet}, f.GetSheetList())

	header, err := f.GetCellValue(incomeSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Employer", header)

	employer, err := f.GetCellValue(incomeSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", employer)

	gross, err := f.GetCellValue(incomeSheet, "F2")
	require.NoError(t, err)
	assert.Equal(t, "9500", gross)

	rows, err := f.GetRows(meansTestSheet)
	require.NoError(t, err)
	var found bool
	for _, row := range rows {
		if len(row) == 2 && row[0] == "Recommendation" {
			found = true
			assert.Equal(t, "chapter7_eligible", row[1])
		}
	}
	assert.True(t, found)
}

func TestXLSX_NothingComputed(t *testing.T) {
	data, err := XLSX(Report{CaseID: "case-1"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(incomeSheet, "A2")
	require.NoError(t, err)
	assert.Contains(t, v, "not been reconciled")
}
