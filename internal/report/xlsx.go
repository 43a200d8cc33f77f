package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	incomeSheet    = "Income"
	meansTestSheet = "Means Test"
)

var incomeHeader = []string{
	"Source ID", "Employer", "EIN", "Type", "Year", "Monthly Gross", "Annual Gross",
	"Monthly Net", "Method", "Confidence", "Status", "Evidence",
}

// XLSX renders r as a workbook with an income sheet and a means test sheet.
func XLSX(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if _, err := f.NewSheet(incomeSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeIncomeSheet(f, r, headerStyle); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(meansTestSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeMeansTestSheet(f, r, headerStyle); err != nil {
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(incomeSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeIncomeSheet(f *excelize.File, r Report, headerStyle int) error {
	if err := writeRow(f, incomeSheet, 1, toRow(incomeHeader)); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(incomeHeader), 1)
	if err := f.SetCellStyle(incomeSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(incomeSheet, "A", "B", 38); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if r.Income == nil {
		return writeRow(f, incomeSheet, 2, []interface{}{"Income has not been reconciled for this case."})
	}

	row := 2
	for _, src := range r.Income.Sources {
		ein := ""
		if src.EmployerEIN != nil {
			ein = *src.EmployerEIN
		}
		var net interface{}
		if src.VerifiedMonthlyNet.Valid {
			net = src.VerifiedMonthlyNet.Decimal.InexactFloat64()
		}
		evidence := make([]string, 0, len(src.Evidence))
		for _, e := range src.Evidence {
			evidence = append(evidence, e.ExtractionID)
		}
		if err := writeRow(f, incomeSheet, row, []interface{}{
			src.ID, src.EmployerName, ein, string(src.IncomeType), src.IncomeYear,
			src.VerifiedMonthlyGross.InexactFloat64(), src.VerifiedAnnualGross.InexactFloat64(), net,
			string(src.DeterminationMethod), src.Confidence, string(src.Status), fmt.Sprint(evidence),
		}); err != nil {
			return err
		}
		row++
	}

	s := r.Income
	return writeRow(f, incomeSheet, row+1, []interface{}{
		"Total (reconciled)", "", "", "", "",
		s.TotalMonthlyGross.InexactFloat64(), s.TotalAnnualGross.InexactFloat64(),
	})
}

func writeMeansTestSheet(f *excelize.File, r Report, headerStyle int) error {
	if err := writeRow(f, meansTestSheet, 1, []interface{}{"Line", "Value"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(meansTestSheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(meansTestSheet, "A", "A", 32); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if r.MeansTest == nil {
		return writeRow(f, meansTestSheet, 2, []interface{}{"Means test not calculated."})
	}

	row := 2
	for _, mt := range r.MeansTest.MonthlyTotals {
		if err := writeRow(f, meansTestSheet, row, []interface{}{"Income " + mt.Month, money(mt.Gross)}); err != nil {
			return err
		}
		row++
	}
	for _, line := range MeansTestLines(*r.MeansTest) {
		if err := writeRow(f, meansTestSheet, row, []interface{}{line.Label, line.Value}); err != nil {
			return err
		}
		row++
	}
	for _, warning := range r.MeansTest.Warnings {
		if err := writeRow(f, meansTestSheet, row, []interface{}{"Warning", warning}); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toRow(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
