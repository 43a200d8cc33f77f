// Package report renders compliance reports of a case's income and means
// test as plain text tables or as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"bankruptcy-workers/internal/meanstest"
	"bankruptcy-workers/internal/models"
)

const (
	FormatText = "text"
	FormatXLSX = "xlsx"
)

// Report is everything a compliance report shows for one case. Income is
// nil when the case was never reconciled.
type Report struct {
	CaseID      string
	Income      *models.IncomeSummary
	MeansTest   *models.MeansTestResult
	GeneratedAt time.Time
}

// ParseFormat accepts "text" (or its alias "table") and "xlsx".
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatText, "table":
		return FormatText, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

// WriteText renders r as text tables.
func WriteText(w io.Writer, r Report) error {
	fmt.Fprintf(w, "Case %s  generated %s\n\n", r.CaseID, r.GeneratedAt.UTC().Format(time.RFC3339))

	if r.Income != nil {
		if err := WriteIncome(w, *r.Income); err != nil {
			return err
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Income has not been reconciled for this case.")
		fmt.Fprintln(w)
	}

	if r.MeansTest != nil {
		return WriteMeansTest(w, *r.MeansTest)
	}
	return nil
}

// WriteIncome renders the reconciled income sources and totals.
func WriteIncome(w io.Writer, s models.IncomeSummary) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Reconciled income")
	t.AppendHeader(table.Row{"Source", "Type", "Year", "Monthly Gross", "Annual Gross", "Monthly Net", "Method", "Confidence", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})

	for _, src := range s.Sources {
		t.AppendRow(table.Row{
			src.EmployerName,
			string(src.IncomeType),
			src.IncomeYear,
			money(src.VerifiedMonthlyGross),
			money(src.VerifiedAnnualGross),
			nullMoney(src.VerifiedMonthlyNet),
			string(src.DeterminationMethod),
			fmt.Sprintf("%.2f", src.Confidence),
			string(src.Status),
		})
	}
	t.AppendFooter(table.Row{"Total (reconciled)", "", "", money(s.TotalMonthlyGross), money(s.TotalAnnualGross), nullMoney(s.TotalMonthlyNet), "", "", ""})
	t.Render()

	fmt.Fprintf(w, "All sources reconciled: %s   Evidence complete: %s   Last calculated: %s\n",
		yesNo(s.AllSourcesReconciled), yesNo(s.EvidenceComplete), s.LastCalculatedAt.UTC().Format(time.RFC3339))
	for _, sk := range s.SkippedExtractions {
		fmt.Fprintf(w, "Skipped extraction %s: %s\n", sk.ExtractionID, sk.Reason)
	}
	for _, doc := range s.UnavailableDocuments {
		fmt.Fprintf(w, "Unavailable document %s\n", doc)
	}
	return nil
}

// WriteMeansTest renders every step of a means test determination.
func WriteMeansTest(w io.Writer, m models.MeansTestResult) error {
	months := table.NewWriter()
	months.SetOutputMirror(w)
	months.SetTitle("Current monthly income")
	months.AppendHeader(table.Row{"Month", "Gross"})
	months.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	for _, mt := range m.MonthlyTotals {
		months.AppendRow(table.Row{mt.Month, money(mt.Gross)})
	}
	months.AppendFooter(table.Row{fmt.Sprintf("Total / %d", meanstest.CMIDivisor), money(m.SixMonthTotal)})
	months.Render()
	fmt.Fprintln(w)

	steps := table.NewWriter()
	steps.SetOutputMirror(w)
	steps.SetTitle("Means test")
	steps.AppendHeader(table.Row{"Line", "Value"})
	steps.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	for _, line := range MeansTestLines(m) {
		steps.AppendRow(table.Row{line.Label, line.Value})
	}
	steps.Render()

	for _, warning := range m.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	return nil
}

// Line is one labelled figure of a means test report.
type Line struct {
	Label string
	Value string
}

// MeansTestLines lists the determination in statutory order. Step 2 lines
// only appear when step 2 was evaluated.
func MeansTestLines(m models.MeansTestResult) []Line {
	lines := []Line{
		{"Months with income", fmt.Sprintf("%d of %d", m.MonthsCovered, meanstest.CMIDivisor)},
		{"Current monthly income", money(m.CurrentMonthlyIncome)},
		{"Annualized income", money(m.AnnualizedIncome)},
		{"State", m.State},
		{"Household size", fmt.Sprintf("%d", m.HouseholdSize)},
		{"State median income", money(m.StateMedianIncome)},
		{"Passes step 1", yesNo(m.PassesStep1)},
	}
	if m.Step2Evaluated && m.Allowances != nil {
		a := m.Allowances
		lines = append(lines,
			Line{"National standards", money(a.NationalStandards.Total())},
			Line{"Local standards (" + a.LocalStandards.Region + ")", money(a.LocalStandards.Total())},
			Line{"Other expenses", money(a.OtherExpenses.Total())},
			Line{"Secured debt payments", money(m.SecuredDebtMonthlyPayments)},
			Line{"Priority debt payments", money(m.PriorityDebtMonthlyPayments)},
			Line{"Total deductions", money(m.TotalDeductions)},
			Line{"Monthly disposable income", money(m.DisposableIncome)},
			Line{"60-month disposable income", money(m.SixtyMonthDisposable)},
			Line{"Statutory floor", money(m.StatutoryFloor)},
			Line{"Passes step 2", yesNo(m.PassesStep2)},
		)
	}
	lines = append(lines,
		Line{"Recommendation", string(m.Recommendation)},
		Line{"Tables effective", m.TablesEffectiveDate},
	)
	return lines
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return money(d.Decimal)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
