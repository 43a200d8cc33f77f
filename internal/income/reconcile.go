package income

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
)

// sourceNamespace seeds the UUIDv5 ids of reconciled sources so that the same
// evidence always yields the same ids.
var sourceNamespace = uuid.MustParse("3b0b7c5e-8a54-4f0c-9d9e-6c1f2f0a6b71")

type Input struct {
	CaseID               string
	Incomes              []models.NormalizedIncome
	Overrides            []models.IncomeOverride
	Skipped              []models.SkippedExtraction
	UnavailableDocuments []string
}

type Result struct {
	Sources            []models.ReconciledIncomeSource
	Summary            models.IncomeSummary
	UnmatchedOverrides []models.IncomeOverride
}

type group struct {
	key        string
	sourceKey  string
	ein        string
	incomeType models.IncomeType
	year       int
	records    []models.NormalizedIncome
}

// Reconcile groups normalized claims by income source and resolves each group
// to one verified figure. The output depends only on the set of inputs, never
// on their order, so re-running over the same evidence yields identical
// sources.
func Reconcile(in Input, p Params, now time.Time) (Result, error) {
	if strings.TrimSpace(in.CaseID) == "" {
		return Result{}, errors.NewCaseContextMissingError("caseId is required for reconciliation")
	}

	incomes := append([]models.NormalizedIncome(nil), in.Incomes...)
	sort.SliceStable(incomes, func(i, j int) bool {
		return incomes[i].ExtractionID < incomes[j].ExtractionID
	})

	var recurring []models.NormalizedIncome
	var nonRecurring []models.EvidenceItem
	for _, n := range incomes {
		if !n.Recurring {
			nonRecurring = append(nonRecurring, evidenceItem(n))
			continue
		}
		recurring = append(recurring, n)
	}

	overrides := make(map[string]models.IncomeOverride, len(in.Overrides))
	for _, o := range in.Overrides {
		overrides[overrideKey(o)] = o
	}

	groups := groupIncomes(recurring)
	sources := make([]models.ReconciledIncomeSource, 0, len(groups))
	for _, g := range groups {
		src := reconcileGroup(in.CaseID, g, p, now)
		if o, ok := overrides[g.key]; ok {
			applyOverride(&src, o)
			delete(overrides, g.key)
		}
		sources = append(sources, src)
	}

	var unmatched []models.IncomeOverride
	for _, o := range in.Overrides {
		if _, ok := overrides[overrideKey(o)]; ok {
			unmatched = append(unmatched, o)
		}
	}

	return Result{
		Sources:            sources,
		Summary:            summarize(in, sources, nonRecurring, now),
		UnmatchedOverrides: unmatched,
	}, nil
}

func groupKey(sourceKey string, incomeType models.IncomeType, year int, ein string) string {
	return fmt.Sprintf("%s|%s|%d|%s", sourceKey, incomeType, year, ein)
}

func overrideKey(o models.IncomeOverride) string {
	ein := ""
	if o.EmployerEIN != nil {
		ein = NormalizeEIN(*o.EmployerEIN)
	}
	return groupKey(SourceKey(o.SourceKey), o.IncomeType, o.IncomeYear, ein)
}

// SourceID is the deterministic id of the reconciled source for a grouping key.
func SourceID(caseID, key string) string {
	return uuid.NewSHA1(sourceNamespace, []byte(caseID+"|"+key)).String()
}

// groupIncomes buckets records by payer name, income type and year, then
// splits a bucket by EIN only when it carries more than one distinct EIN.
// Records without an EIN join the bucket's single EIN group, or form their own
// name-only group when the EINs disagree.
func groupIncomes(records []models.NormalizedIncome) []group {
	type bucketKey struct {
		sourceKey  string
		incomeType models.IncomeType
		year       int
	}
	buckets := make(map[bucketKey][]models.NormalizedIncome)
	for _, r := range records {
		k := bucketKey{r.SourceKey, r.IncomeType, r.IncomeYear}
		buckets[k] = append(buckets[k], r)
	}

	var groups []group
	for k, recs := range buckets {
		einSet := make(map[string]struct{})
		for _, r := range recs {
			if r.PayerEIN != "" {
				einSet[r.PayerEIN] = struct{}{}
			}
		}

		if len(einSet) <= 1 {
			ein := ""
			for e := range einSet {
				ein = e
			}
			groups = append(groups, group{
				key:        groupKey(k.sourceKey, k.incomeType, k.year, ein),
				sourceKey:  k.sourceKey,
				ein:        ein,
				incomeType: k.incomeType,
				year:       k.year,
				records:    recs,
			})
			continue
		}

		byEIN := make(map[string][]models.NormalizedIncome)
		for _, r := range recs {
			byEIN[r.PayerEIN] = append(byEIN[r.PayerEIN], r)
		}
		for ein, eRecs := range byEIN {
			groups = append(groups, group{
				key:        groupKey(k.sourceKey, k.incomeType, k.year, ein),
				sourceKey:  k.sourceKey,
				ein:        ein,
				incomeType: k.incomeType,
				year:       k.year,
				records:    eRecs,
			})
		}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

// evidenceRank orders document types from most to least authoritative.
func evidenceRank(n models.NormalizedIncome) int {
	switch n.DocumentType {
	case models.DocumentTypeTaxReturn:
		return 0
	case models.DocumentTypeW2:
		return 1
	case models.DocumentTypePaystub:
		if n.HasYTD {
			return 2
		}
		return 3
	case models.DocumentTypeBankStatement:
		return 4
	case models.DocumentType1099:
		return 5
	default:
		return 6
	}
}

func isAuthoritativeRank(rank int) bool {
	return rank <= 1
}

func sortEvidence(records []models.NormalizedIncome) {
	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := evidenceRank(records[i]), evidenceRank(records[j])
		if ri != rj {
			return ri < rj
		}
		if !records[i].DocumentDate.Equal(records[j].DocumentDate) {
			return records[i].DocumentDate.After(records[j].DocumentDate)
		}
		return records[i].ExtractionID < records[j].ExtractionID
	})
}

func evidenceItem(n models.NormalizedIncome) models.EvidenceItem {
	return models.EvidenceItem{
		ExtractionID: n.ExtractionID,
		DocumentID:   n.DocumentID,
		DocumentType: n.DocumentType,
		DocumentDate: n.DocumentDate,
		MonthlyGross: roundNull(n.NormalizedMonthlyGross),
		AnnualGross:  roundNull(n.NormalizedAnnualGross),
		MonthlyNet:   roundNull(n.NormalizedMonthlyNet),
		Confidence:   n.Confidence,
	}
}

func reconcileGroup(caseID string, g group, p Params, now time.Time) models.ReconciledIncomeSource {
	records := append([]models.NormalizedIncome(nil), g.records...)
	sortEvidence(records)

	src := models.ReconciledIncomeSource{
		ID:                   SourceID(caseID, g.key),
		CaseID:               caseID,
		EmployerName:         records[0].PayerName,
		SourceKey:            g.sourceKey,
		IncomeType:           g.incomeType,
		IncomeYear:           g.year,
		VerifiedAnnualGross:  decimal.Zero,
		VerifiedMonthlyGross: decimal.Zero,
		CalculatedAt:         now,
	}
	if g.ein != "" {
		ein := g.ein
		src.EmployerEIN = &ein
	}
	src.Evidence = make([]models.EvidenceItem, len(records))
	for i, r := range records {
		src.Evidence[i] = evidenceItem(r)
	}

	if len(records) == 1 {
		r := records[0]
		src.DeterminationMethod = models.MethodSingleSource
		src.Confidence = r.Confidence
		src.Status = models.StatusNeedsReview
		if r.NormalizedMonthlyGross.Valid {
			setFigures(&src, figures{
				annualGross:  r.NormalizedAnnualGross.Decimal,
				monthlyGross: r.NormalizedMonthlyGross.Decimal,
				annualNet:    r.NormalizedAnnualNet,
				monthlyNet:   r.NormalizedMonthlyNet,
				weighted:     true,
			})
			if r.Confidence >= p.ReviewThreshold {
				src.Status = models.StatusReconciled
			}
		}
		return src
	}

	var usable []models.NormalizedIncome
	for _, r := range records {
		if r.NormalizedMonthlyGross.Valid {
			usable = append(usable, r)
		}
	}

	src.DeterminationMethod = models.MethodWeightedAverage
	if len(usable) == 0 {
		// nothing states a gross figure; surface the gap rather than impute one
		src.Confidence = meanConfidence(records)
		src.Status = models.StatusNeedsReview
		return src
	}

	// records is rank-ordered, so the last record carries the lowest-ranked evidence
	chosen := usable
	topRank := evidenceRank(usable[0])
	if isAuthoritativeRank(topRank) && evidenceRank(records[len(records)-1]) > topRank {
		src.DeterminationMethod = models.MethodDocumentPriority
		chosen = nil
		for _, r := range usable {
			if evidenceRank(r) == topRank {
				chosen = append(chosen, r)
			}
		}
		selected := make(map[string]bool, len(chosen))
		for _, r := range chosen {
			selected[r.ExtractionID] = true
		}
		for i := range src.Evidence {
			src.Evidence[i].Superseded = !selected[src.Evidence[i].ExtractionID]
		}
	}

	fig := average(chosen)
	setFigures(&src, fig)
	src.Confidence = meanConfidence(chosen)

	if len(chosen) > 1 {
		d := discrepancy(chosen, p.DiscrepancyTolerance)
		if d.Magnitude > p.DiscrepancyTolerance {
			src.Status = models.StatusConflict
			src.Discrepancy = &d
			return src
		}
	}

	if fig.weighted && src.Confidence >= p.ReviewThreshold {
		src.Status = models.StatusReconciled
	} else {
		src.Status = models.StatusNeedsReview
	}
	return src
}

type figures struct {
	annualGross  decimal.Decimal
	monthlyGross decimal.Decimal
	annualNet    decimal.NullDecimal
	monthlyNet   decimal.NullDecimal
	// false when every contributing record had zero confidence and a plain
	// mean was used instead
	weighted bool
}

func setFigures(src *models.ReconciledIncomeSource, f figures) {
	src.VerifiedAnnualGross = f.annualGross.Round(2)
	src.VerifiedMonthlyGross = f.monthlyGross.Round(2)
	src.VerifiedAnnualNet = roundNull(f.annualNet)
	src.VerifiedMonthlyNet = roundNull(f.monthlyNet)
}

func average(records []models.NormalizedIncome) figures {
	annualGross, weighted := weightedMean(records, func(n models.NormalizedIncome) decimal.NullDecimal { return n.NormalizedAnnualGross })
	monthlyGross, _ := weightedMean(records, func(n models.NormalizedIncome) decimal.NullDecimal { return n.NormalizedMonthlyGross })
	f := figures{
		annualGross:  annualGross.Decimal,
		monthlyGross: monthlyGross.Decimal,
		weighted:     weighted,
	}
	f.annualNet, _ = weightedMean(records, func(n models.NormalizedIncome) decimal.NullDecimal { return n.NormalizedAnnualNet })
	f.monthlyNet, _ = weightedMean(records, func(n models.NormalizedIncome) decimal.NullDecimal { return n.NormalizedMonthlyNet })
	return f
}

// weightedMean averages the present values weighted by record confidence.
// It falls back to a plain mean when all weights are zero.
func weightedMean(records []models.NormalizedIncome, value func(models.NormalizedIncome) decimal.NullDecimal) (decimal.NullDecimal, bool) {
	sumW, sumWV, sum := decimal.Zero, decimal.Zero, decimal.Zero
	count := 0
	for _, r := range records {
		v := value(r)
		if !v.Valid {
			continue
		}
		w := decimal.NewFromFloat(r.Confidence)
		sumW = sumW.Add(w)
		sumWV = sumWV.Add(v.Decimal.Mul(w))
		sum = sum.Add(v.Decimal)
		count++
	}
	if count == 0 {
		return decimal.NullDecimal{}, false
	}
	if sumW.IsZero() {
		return decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(count)))), false
	}
	return decimal.NewNullDecimal(sumWV.Div(sumW)), true
}

func meanConfidence(records []models.NormalizedIncome) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range records {
		total += r.Confidence
	}
	return total / float64(len(records))
}

// discrepancy measures the spread of monthly gross values relative to their
// plain mean.
func discrepancy(records []models.NormalizedIncome, tolerance float64) models.Discrepancy {
	d := models.Discrepancy{Tolerance: tolerance}
	var lo, hi, sum decimal.Decimal
	for i, r := range records {
		v := r.NormalizedMonthlyGross.Decimal
		d.Values = append(d.Values, models.DiscrepancyValue{
			ExtractionID: r.ExtractionID,
			MonthlyGross: v.Round(2),
		})
		d.SourceIDs = append(d.SourceIDs, r.ExtractionID)
		if i == 0 || v.LessThan(lo) {
			lo = v
		}
		if i == 0 || v.GreaterThan(hi) {
			hi = v
		}
		sum = sum.Add(v)
	}
	d.Spread = hi.Sub(lo).Round(2)
	mean := sum.Div(decimal.NewFromInt(int64(len(records))))
	if mean.IsPositive() {
		d.Magnitude = hi.Sub(lo).Div(mean).Round(6).InexactFloat64()
	}
	return d
}

func applyOverride(src *models.ReconciledIncomeSource, o models.IncomeOverride) {
	src.DeterminationMethod = models.MethodManualOverride
	src.VerifiedAnnualGross = o.AnnualGross.Round(2)
	src.VerifiedMonthlyGross = o.AnnualGross.Div(monthsPerYear).Round(2)
	src.VerifiedAnnualNet = roundNull(o.AnnualNet)
	src.VerifiedMonthlyNet = decimal.NullDecimal{}
	if o.AnnualNet.Valid {
		src.VerifiedMonthlyNet = decimal.NewNullDecimal(o.AnnualNet.Decimal.Div(monthsPerYear).Round(2))
	}
	src.Confidence = 1.0
	src.Status = models.StatusReconciled
}

func summarize(in Input, sources []models.ReconciledIncomeSource, nonRecurring []models.EvidenceItem, now time.Time) models.IncomeSummary {
	s := models.IncomeSummary{
		CaseID:               in.CaseID,
		Sources:              sources,
		TotalMonthlyGross:    decimal.Zero,
		TotalAnnualGross:     decimal.Zero,
		SourcesNeedingReview: []string{},
		NonRecurring:         nonRecurring,
		SkippedExtractions:   in.Skipped,
		UnavailableDocuments: in.UnavailableDocuments,
		LastCalculatedAt:     now,
	}

	netTotal := decimal.Zero
	netComplete := true
	counted := 0
	for _, src := range sources {
		if src.Status != models.StatusReconciled {
			s.SourcesNeedingReview = append(s.SourcesNeedingReview, src.ID)
			continue
		}
		counted++
		s.TotalMonthlyGross = s.TotalMonthlyGross.Add(src.VerifiedMonthlyGross)
		s.TotalAnnualGross = s.TotalAnnualGross.Add(src.VerifiedAnnualGross)
		if src.VerifiedMonthlyNet.Valid {
			netTotal = netTotal.Add(src.VerifiedMonthlyNet.Decimal)
		} else {
			netComplete = false
		}
	}
	if counted > 0 && netComplete {
		s.TotalMonthlyNet = decimal.NewNullDecimal(netTotal)
	}

	s.AllSourcesReconciled = len(s.SourcesNeedingReview) == 0
	s.EvidenceComplete = len(sources) > 0 && len(in.Skipped) == 0 && len(in.UnavailableDocuments) == 0
	return s
}

func roundNull(v decimal.NullDecimal) decimal.NullDecimal {
	if !v.Valid {
		return v
	}
	return decimal.NewNullDecimal(v.Decimal.Round(2))
}
