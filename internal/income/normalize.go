package income

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
)

const (
	AdjustmentNonRecurring   = "non_recurring"
	AdjustmentGrossFromYTD   = "gross_from_ytd"
	AdjustmentNetFromYTD     = "net_from_ytd_ratio"
	AdjustmentNetOnlyPenalty = "net_only_penalty"
	AdjustmentAmountFromRate = "amount_from_hours_and_rate"
	AdjustmentAmountMissing  = "amount_missing"
)

var monthsPerYear = decimal.NewFromInt(12)

// periodsPerYear maps a pay frequency to the number of payments in a year.
// Monthly figures are annual / 12, so weekly is exactly raw x 52/12.
var periodsPerYear = map[models.Frequency]int64{
	models.FrequencyWeekly:      52,
	models.FrequencyBiweekly:    26,
	models.FrequencySemiMonthly: 24,
	models.FrequencyMonthly:     12,
	models.FrequencyAnnual:      1,
	models.FrequencyOneTime:     1,
}

// MonthlyMultiplier is the factor that turns one payment into a monthly
// amount.
func MonthlyMultiplier(f models.Frequency) (decimal.Decimal, bool) {
	periods, ok := periodsPerYear[f]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(periods).Div(monthsPerYear), true
}

// Normalize converts one raw claim into its canonical monthly and annual
// figures. Missing optional data degrades to null figures and a lower
// confidence. A StandardError is returned when the claim is structurally
// unusable (EXTRACTION_PARSE_FAILED) or breaks a data integrity invariant
// (DATA_INTEGRITY_VIOLATION).
func Normalize(raw models.RawIncomeExtraction, p Params) (models.NormalizedIncome, error) {
	if err := checkIntegrity(raw); err != nil {
		return models.NormalizedIncome{}, err
	}
	if !raw.DocumentType.IsValid() {
		return models.NormalizedIncome{}, errors.NewExtractionParseFailedError(raw.ID, fmt.Sprintf("unknown document type %q", raw.DocumentType))
	}
	periods, ok := periodsPerYear[raw.Frequency]
	if !ok {
		return models.NormalizedIncome{}, errors.NewExtractionParseFailedError(raw.ID, fmt.Sprintf("unknown frequency %q", raw.Frequency))
	}

	n := models.NormalizedIncome{
		ExtractionID: raw.ID,
		DocumentID:   raw.DocumentID,
		DocumentType: raw.DocumentType,
		DocumentDate: raw.DocumentDate,
		PayerName:    strings.TrimSpace(raw.PayerName),
		SourceKey:    SourceKey(raw.PayerName),
		IncomeType:   incomeTypeOf(raw),
		IncomeYear:   raw.IncomeYear(),
		HasYTD:       raw.YTDGross.Valid,
		Recurring:    raw.Frequency != models.FrequencyOneTime,
	}
	if raw.PayerEIN != nil {
		n.PayerEIN = NormalizeEIN(*raw.PayerEIN)
	}
	if !n.Recurring {
		n.Adjustments = append(n.Adjustments, AdjustmentNonRecurring)
	}

	amount := raw.RawAmount
	stated := !amount.IsZero()
	if !stated && raw.HoursWorked.Valid && raw.HourlyRate.Valid {
		amount = raw.HoursWorked.Decimal.Mul(raw.HourlyRate.Decimal)
		stated = true
		n.Adjustments = append(n.Adjustments, AdjustmentAmountFromRate)
	}
	annual := amount.Mul(decimal.NewFromInt(periods))

	penalty := 0.0
	switch {
	case raw.AmountType == models.AmountTypeGross && !stated:
		// a zero gross with nothing to derive it from is a missing figure
		n.Adjustments = append(n.Adjustments, AdjustmentAmountMissing)
	case raw.AmountType == models.AmountTypeGross:
		n.NormalizedAnnualGross = decimal.NewNullDecimal(annual)
		n.NormalizedMonthlyGross = decimal.NewNullDecimal(annual.Div(monthsPerYear))
		if raw.YTDGross.Valid && raw.YTDGross.Decimal.IsPositive() && raw.YTDNet.Valid {
			ratio := raw.YTDNet.Decimal.Div(raw.YTDGross.Decimal)
			annualNet := annual.Mul(ratio)
			n.NormalizedAnnualNet = decimal.NewNullDecimal(annualNet)
			n.NormalizedMonthlyNet = decimal.NewNullDecimal(annualNet.Div(monthsPerYear))
			n.Adjustments = append(n.Adjustments, AdjustmentNetFromYTD)
		}
	default:
		n.NormalizedAnnualNet = decimal.NewNullDecimal(annual)
		n.NormalizedMonthlyNet = decimal.NewNullDecimal(annual.Div(monthsPerYear))
		if raw.YTDGross.Valid && raw.YTDGross.Decimal.IsPositive() {
			annualGross := raw.YTDGross.Decimal.Div(elapsedYearFraction(raw.AsOf()))
			n.NormalizedAnnualGross = decimal.NewNullDecimal(annualGross)
			n.NormalizedMonthlyGross = decimal.NewNullDecimal(annualGross.Div(monthsPerYear))
			n.GrossFromYTD = true
			n.Adjustments = append(n.Adjustments, AdjustmentGrossFromYTD)
		} else {
			penalty = p.NetOnlyPenalty
			n.Adjustments = append(n.Adjustments, AdjustmentNetOnlyPenalty)
		}
	}

	n.Confidence = math.Max(0, raw.ExtractionConfidence*p.weight(raw.DocumentType)-penalty)
	return n, nil
}

func checkIntegrity(raw models.RawIncomeExtraction) error {
	c := raw.ExtractionConfidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return errors.NewDataIntegrityViolationError(raw.ID, fmt.Sprintf("extractionConfidence %v outside [0,1]", c))
	}
	if raw.RawAmount.IsNegative() {
		return errors.NewDataIntegrityViolationError(raw.ID, fmt.Sprintf("rawAmount %s is negative", raw.RawAmount))
	}
	optional := []struct {
		name  string
		value decimal.NullDecimal
	}{
		{"ytdGross", raw.YTDGross},
		{"ytdNet", raw.YTDNet},
		{"ytdFederalWithheld", raw.YTDFederalWithheld},
		{"hoursWorked", raw.HoursWorked},
		{"hourlyRate", raw.HourlyRate},
	}
	for _, f := range optional {
		if f.value.Valid && f.value.Decimal.IsNegative() {
			return errors.NewDataIntegrityViolationError(raw.ID, fmt.Sprintf("%s %s is negative", f.name, f.value.Decimal))
		}
	}
	return nil
}

func incomeTypeOf(raw models.RawIncomeExtraction) models.IncomeType {
	if raw.IncomeType != "" {
		return raw.IncomeType
	}
	if raw.DocumentType == models.DocumentType1099 {
		return models.IncomeTypeSelfEmployment
	}
	return models.IncomeTypeEmployment
}

// elapsedYearFraction is the share of the calendar year up to and including t.
func elapsedYearFraction(t time.Time) decimal.Decimal {
	days := time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
	return decimal.NewFromInt(int64(t.YearDay())).Div(decimal.NewFromInt(int64(days)))
}

// SourceKey is the payer identity used for grouping: lower case, punctuation
// removed, whitespace collapsed.
func SourceKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeEIN strips an employer identification number to its digits.
func NormalizeEIN(ein string) string {
	var b strings.Builder
	for _, r := range ein {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
