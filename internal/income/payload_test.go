package income

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
)

func TestParseExtraction_DocumentTypes(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		validate func(t *testing.T, raw models.RawIncomeExtraction)
	}{
		{
			name: "paystub with gross and ytd",
			payload: `{"extractionId":"ext-1","caseId":"case-1","documentId":"doc-1","documentType":"paystub",
				"documentDate":"2024-06-30","extractionConfidence":0.92,
				"fields":{"employerName":"Acme Corp","employerEin":"12-3456789","payFrequency":"biweekly",
				"grossPay":2115.38,"netPay":1650.10,"periodStart":"2024-06-17","periodEnd":"2024-06-30",
				"ytdGross":27500,"ytdNet":21450}}`,
			validate: func(t *testing.T, raw models.RawIncomeExtraction) {
				assert.Equal(t, models.AmountTypeGross, raw.AmountType)
				assert.Equal(t, "2115.38", raw.RawAmount.StringFixed(2))
				assert.Equal(t, models.FrequencyBiweekly, raw.Frequency)
				require.NotNil(t, raw.PayerEIN)
				assert.Equal(t, "12-3456789", *raw.PayerEIN)
				require.NotNil(t, raw.PeriodEnd)
				assert.Equal(t, 2024, raw.PeriodEnd.Year())
				assert.True(t, raw.YTDGross.Valid)
				assert.InDelta(t, 0.92, raw.ExtractionConfidence, 1e-9)
			},
		},
		{
			name: "net-only paystub",
			payload: `{"extractionId":"ext-2","documentId":"doc-2","documentType":"paystub",
				"documentDate":"2024-06-30","extractionConfidence":0.8,
				"fields":{"employerName":"Acme Corp","payFrequency":"weekly","netPay":800}}`,
			validate: func(t *testing.T, raw models.RawIncomeExtraction) {
				assert.Equal(t, models.AmountTypeNet, raw.AmountType)
				assert.Nil(t, raw.PayerEIN)
				assert.False(t, raw.YTDGross.Valid)
			},
		},
		{
			name: "w2",
			payload: `{"extractionId":"ext-3","documentId":"doc-3","documentType":"w2",
				"documentDate":"2025-01-31","extractionConfidence":0.97,
				"fields":{"employerName":"Acme Corp","employerEin":"12-3456789","taxYear":2024,"wages":60000,"federalWithheld":7200}}`,
			validate: func(t *testing.T, raw models.RawIncomeExtraction) {
				assert.Equal(t, models.FrequencyAnnual, raw.Frequency)
				assert.Equal(t, models.AmountTypeGross, raw.AmountType)
				assert.Equal(t, 2024, raw.IncomeYear())
				assert.Equal(t, "7200", raw.YTDFederalWithheld.Decimal.String())
			},
		},
		{
			name: "tax return line",
			payload: `{"extractionId":"ext-4","documentId":"doc-4","documentType":"tax_return",
				"documentDate":"2025-04-10","extractionConfidence":0.9,
				"fields":{"payerName":"Self Consulting","taxYear":2024,"incomeType":"self_employment","grossIncome":48000,"netIncome":36000}}`,
			validate: func(t *testing.T, raw models.RawIncomeExtraction) {
				assert.Equal(t, models.IncomeTypeSelfEmployment, raw.IncomeType)
				assert.Equal(t, 2024, raw.IncomeYear())
				assert.True(t, raw.YTDNet.Valid)
			},
		},
		{
			name: "bank statement deposit",
			payload: `{"extractionId":"ext-5","documentId":"doc-5","documentType":"bank_statement",
				"documentDate":"2024-05-31","extractionConfidence":0.7,
				"fields":{"depositorName":"ACME CORP PAYROLL","depositAmount":1650.10,"depositFrequency":"biweekly"}}`,
			validate: func(t *testing.T, raw models.RawIncomeExtraction) {
				assert.Equal(t, models.AmountTypeNet, raw.AmountType)
				assert.Equal(t, time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC), raw.DocumentDate)
			},
		},
		{
			name: "1099 interest",
			payload: `{"extractionId":"ext-6","documentId":"doc-6","documentType":"1099",
				"documentDate":"2025-01-31","extractionConfidence":0.88,
				"fields":{"payerName":"First Bank","taxYear":2024,"formVariant":"INT","amount":310.22}}`,
			validate: func(t *testing.T, raw models.RawIncomeExtraction) {
				assert.Equal(t, models.IncomeTypeOther, raw.IncomeType)
				assert.Equal(t, models.FrequencyAnnual, raw.Frequency)
			},
		},
		{
			name: "1099 nec",
			payload: `{"extractionId":"ext-7","documentId":"doc-7","documentType":"1099",
				"documentDate":"2025-01-31","extractionConfidence":0.88,
				"fields":{"payerName":"Gig Platform","payerTin":"45-0000001","taxYear":2024,"formVariant":"NEC","amount":18000}}`,
			validate: func(t *testing.T, raw models.RawIncomeExtraction) {
				assert.Equal(t, models.IncomeTypeSelfEmployment, raw.IncomeType)
				require.NotNil(t, raw.PayerEIN)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ParseExtraction([]byte(tt.payload))
			require.NoError(t, err)
			tt.validate(t, raw)

			// every parsed document must normalize
			_, err = Normalize(raw, DefaultParams())
			assert.NoError(t, err)
		})
	}
}

func TestParseExtraction_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		expectedID string
	}{
		{
			name:       "not json",
			payload:    `{"extractionId":`,
			expectedID: "",
		},
		{
			name: "unknown document type",
			payload: `{"extractionId":"ext-1","documentId":"doc-1","documentType":"pay_slip",
				"documentDate":"2024-06-30","extractionConfidence":0.9,"fields":{}}`,
			expectedID: "ext-1",
		},
		{
			name: "paystub without any amount",
			payload: `{"extractionId":"ext-2","documentId":"doc-2","documentType":"paystub",
				"documentDate":"2024-06-30","extractionConfidence":0.9,
				"fields":{"employerName":"Acme","payFrequency":"weekly"}}`,
			expectedID: "ext-2",
		},
		{
			name: "paystub with null gross and net",
			payload: `{"extractionId":"ext-5","documentId":"doc-5","documentType":"paystub",
				"documentDate":"2024-06-30","extractionConfidence":0.9,
				"fields":{"employerName":"Acme","payFrequency":"weekly","grossPay":null,"netPay":null}}`,
			expectedID: "ext-5",
		},
		{
			name: "paystub with hours but null rate",
			payload: `{"extractionId":"ext-6","documentId":"doc-6","documentType":"paystub",
				"documentDate":"2024-06-30","extractionConfidence":0.9,
				"fields":{"employerName":"Acme","payFrequency":"weekly","hoursWorked":40,"hourlyRate":null}}`,
			expectedID: "ext-6",
		},
		{
			name: "w2 with wages as text",
			payload: `{"extractionId":"ext-3","documentId":"doc-3","documentType":"w2",
				"documentDate":"2025-01-31","extractionConfidence":0.9,
				"fields":{"employerName":"Acme","taxYear":2024,"wages":"sixty thousand"}}`,
			expectedID: "ext-3",
		},
		{
			name: "bad document date",
			payload: `{"extractionId":"ext-4","documentId":"doc-4","documentType":"w2",
				"documentDate":"31/01/2025","extractionConfidence":0.9,
				"fields":{"employerName":"Acme","taxYear":2024,"wages":1}}`,
			expectedID: "ext-4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExtraction([]byte(tt.payload))
			require.Error(t, err)

			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeExtractionParseFailed, stdErr.Code)
			assert.Equal(t, tt.expectedID, stdErr.Metadata["extractionId"])
		})
	}
}

func TestDecodePaystub_RequiresAnAmount(t *testing.T) {
	var raw models.RawIncomeExtraction
	err := decodePaystub(json.RawMessage(`{"employerName":"Acme","payFrequency":"weekly","grossPay":null,"netPay":null}`), &raw)
	require.Error(t, err)

	err = decodePaystub(json.RawMessage(`{"employerName":"Acme","payFrequency":"weekly","hoursWorked":40,"hourlyRate":25}`), &raw)
	require.NoError(t, err)
	assert.True(t, raw.RawAmount.IsZero())
	assert.Equal(t, models.AmountTypeGross, raw.AmountType)
}

func TestParseExtraction_OutOfRangeConfidenceIsLeftForIntegrityCheck(t *testing.T) {
	payload := `{"extractionId":"ext-1","documentId":"doc-1","documentType":"w2",
		"documentDate":"2025-01-31","extractionConfidence":1.7,
		"fields":{"employerName":"Acme","taxYear":2024,"wages":50000}}`

	raw, err := ParseExtraction([]byte(payload))
	require.NoError(t, err)

	_, err = Normalize(raw, DefaultParams())
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataIntegrityViolation))
}

func TestFromManualRecord(t *testing.T) {
	rec := models.ManualIncomeRecord{
		ID:         "m-1",
		CaseID:     "case-1",
		PayerName:  "Corner Diner",
		Amount:     dec("600"),
		Frequency:  models.FrequencyWeekly,
		IncomeDate: date(2024, time.August, 2),
	}

	raw := FromManualRecord(rec, DefaultParams())

	assert.Equal(t, "manual:m-1", raw.ID)
	assert.Equal(t, models.DocumentTypePaystub, raw.DocumentType)
	assert.Equal(t, models.AmountTypeGross, raw.AmountType)
	assert.Equal(t, DefaultManualRecordConfidence, raw.ExtractionConfidence)

	n, err := Normalize(raw, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "2600.00", n.NormalizedMonthlyGross.Decimal.StringFixed(2))
}
