package meanstest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
)

const (
	// CMIDivisor is fixed by statute. It does not shrink when fewer months
	// carry income.
	CMIDivisor     = 6
	lookbackMonths = 6
	commitmentTerm = 60
)

var (
	cmiDivisor  = decimal.NewFromInt(CMIDivisor)
	twelve      = decimal.NewFromInt(12)
	sixtyMonths = decimal.NewFromInt(commitmentTerm)
)

// Calculate runs the two-step means test. It never caches and never fails on
// missing optional facts; every default it applies is listed in Warnings.
func Calculate(input models.MeansTestInput, tables *Tables, now time.Time) (models.MeansTestResult, error) {
	if strings.TrimSpace(input.CaseID) == "" {
		return models.MeansTestResult{}, errors.NewCaseContextMissingError("caseId is required for the means test")
	}
	if tables == nil {
		return models.MeansTestResult{}, errors.NewStatutoryTablesInvalidError("no tables supplied")
	}

	res := models.MeansTestResult{
		CaseID:                      input.CaseID,
		VehicleCount:                input.VehicleCount,
		SecuredDebtMonthlyPayments:  input.SecuredDebtMonthlyPayments,
		PriorityDebtMonthlyPayments: input.PriorityDebtMonthlyPayments,
		ReportedMonthlyExpenses:     input.MonthlyExpenses,
		SecuredDebtTotal:            input.SecuredDebtTotal,
		UnsecuredDebtTotal:          input.UnsecuredDebtTotal,
		StatutoryFloor:              tables.Floor(),
		TablesEffectiveDate:         tables.EffectiveDate,
		CalculatedAt:                now,
	}
	warn := func(format string, args ...interface{}) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
	}

	// Step A: current monthly income
	res.MonthlyTotals = recentMonthTotals(input.IncomeEntries)
	res.SixMonthTotal = decimal.Zero
	for _, m := range res.MonthlyTotals {
		res.SixMonthTotal = res.SixMonthTotal.Add(m.Gross)
	}
	res.MonthsCovered = len(res.MonthlyTotals)
	res.IsComplete = res.MonthsCovered >= lookbackMonths
	if !res.IsComplete {
		warn("income found for %d of %d months; total still divided by %d", res.MonthsCovered, lookbackMonths, CMIDivisor)
	}
	res.CurrentMonthlyIncome = res.SixMonthTotal.Div(cmiDivisor).Round(2)

	// Step B: median comparison
	res.AnnualizedIncome = res.CurrentMonthlyIncome.Mul(twelve)
	res.State = stateKey(input.State)
	if res.State == "" {
		warn("state missing; default median income and national standards used")
	}
	res.HouseholdSize = input.HouseholdSize
	if res.HouseholdSize < 1 {
		warn("household size %d invalid; 1 used", input.HouseholdSize)
		res.HouseholdSize = 1
	}
	res.StateMedianIncome = medianIncome(tables, res.State, res.HouseholdSize, warn)
	res.PassesStep1 = res.AnnualizedIncome.LessThanOrEqual(res.StateMedianIncome)

	if res.PassesStep1 {
		res.Recommendation = models.RecommendationChapter7
		return res, nil
	}

	// Step C: allowances
	res.Step2Evaluated = true
	if input.County != nil {
		res.County = strings.TrimSpace(*input.County)
	}
	allowances := models.MeansTestAllowances{
		NationalStandards: nationalStandards(tables, res.HouseholdSize, warn),
		LocalStandards:    localStandards(tables, res.State, res.County, res.HouseholdSize, input.VehicleCount, warn),
		OtherExpenses:     input.OtherExpenses,
	}
	res.Allowances = &allowances
	res.TotalAllowances = allowances.Total()

	// Step D: disposable income
	res.TotalDeductions = res.TotalAllowances.
		Add(input.SecuredDebtMonthlyPayments).
		Add(input.PriorityDebtMonthlyPayments)
	res.DisposableIncome = res.CurrentMonthlyIncome.Sub(res.TotalDeductions)

	// Step E: statutory floor
	res.SixtyMonthDisposable = res.DisposableIncome.Mul(sixtyMonths)
	res.PassesStep2 = res.DisposableIncome.IsNegative() || res.SixtyMonthDisposable.LessThan(res.StatutoryFloor)

	if res.PassesStep2 {
		res.Recommendation = models.RecommendationChapter7
	} else {
		res.Recommendation = models.RecommendationChapter13
	}
	return res, nil
}

// recentMonthTotals sums entries per calendar month and keeps the six most
// recent months, newest first.
func recentMonthTotals(entries []models.MonthlyIncomeEntry) []models.MonthTotal {
	byMonth := make(map[string]decimal.Decimal)
	for _, e := range entries {
		key := e.Month.UTC().Format("2006-01")
		byMonth[key] = byMonth[key].Add(e.Gross)
	}

	months := make([]string, 0, len(byMonth))
	for k := range byMonth {
		months = append(months, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	if len(months) > lookbackMonths {
		months = months[:lookbackMonths]
	}

	totals := make([]models.MonthTotal, 0, len(months))
	for _, m := range months {
		totals = append(totals, models.MonthTotal{Month: m, Gross: byMonth[m]})
	}
	return totals
}

func medianIncome(t *Tables, state string, size int, warn func(string, ...interface{})) decimal.Decimal {
	row, ok := t.MedianIncome.States[state]
	if !ok {
		if state != "" {
			warn("no median income for state %s; default entry used", state)
		}
		row = t.MedianIncome.Default
	}
	v, clamped := pick(row, size-1)
	if clamped {
		warn("household size %d beyond median income table; largest bracket (%d) used", size, len(row))
	}
	return v
}

func nationalStandards(t *Tables, size int, warn func(string, ...interface{})) models.NationalStandards {
	i := size - 1
	if i >= len(t.NationalStandards) {
		warn("household size %d beyond national standards table; largest bracket (%d) used", size, len(t.NationalStandards))
		i = len(t.NationalStandards) - 1
	}
	return t.NationalStandards[i]
}

func localStandards(t *Tables, state, county string, size, vehicles int, warn func(string, ...interface{})) models.LocalStandards {
	schedule, region := resolveSchedule(t, state, county, warn)

	housing, hClamped := pick(schedule.Housing, size-1)
	utilities, uClamped := pick(schedule.Utilities, size-1)
	if hClamped || uClamped {
		warn("household size %d beyond local standards for %s; largest bracket used", size, region)
	}
	if vehicles < 0 {
		warn("vehicle count %d invalid; 0 used", vehicles)
		vehicles = 0
	}
	transport, tClamped := pick(schedule.Transportation, vehicles)
	if tClamped {
		warn("vehicle count %d beyond transportation standards; %d used", vehicles, len(schedule.Transportation)-1)
	}

	return models.LocalStandards{
		Housing:        housing,
		Utilities:      utilities,
		Transportation: transport,
		Region:         region,
	}
}

// resolveSchedule walks county, then state default, then the national
// fallback.
func resolveSchedule(t *Tables, state, county string, warn func(string, ...interface{})) (LocalSchedule, string) {
	s, ok := t.LocalStandards.States[state]
	if ok {
		if county != "" {
			if c, found := s.Counties[countyKey(county)]; found {
				return c, state + "/" + countyKey(county)
			}
		}
		if s.Default != nil {
			if county == "" {
				warn("county missing; state-level local standards for %s used", state)
			} else {
				warn("no local standards for county %q in %s; state-level values used", county, state)
			}
			return *s.Default, state
		}
	}
	if state != "" {
		warn("no local standards for %s; national fallback used", state)
	}
	return t.LocalStandards.National, "national"
}
