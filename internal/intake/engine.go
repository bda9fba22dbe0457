package intake

import (
	"context"
	"time"

	"dealflow-backend/internal/documents"
	"dealflow-backend/internal/extractions"
)

// Engine produces an extraction for an uploaded document. The document's
// plain text is passed when the parser could recover it; engines that work
// from structured tables may ignore it.
type Engine interface {
	Extract(ctx context.Context, doc documents.Document, text string) (extractions.Extraction, error)
}

// StubEngine synthesizes a deterministic trailing-twelve-month extraction.
// It stands in for a real extraction vendor: the figures are fixed and
// internally consistent (noi = egi - opex, dscr derivable from noi and debt
// service), so downstream mapping and scoring behave the way they would on
// real output.
type StubEngine struct {
	Now func() time.Time
}

func (e StubEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Extract builds the synthetic extraction for doc.
func (e StubEngine) Extract(ctx context.Context, doc documents.Document, text string) (extractions.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return extractions.Extraction{}, err
	}

	now := e.now()
	gpr := 1_840_000.0
	egi := 1_600_000.0
	opex := 480_000.0
	noi := egi - opex
	ads := 860_000.0

	endIn := func(years int) *time.Time {
		t := now.AddDate(years, 0, 0)
		return &t
	}
	startAgo := func(years int) *time.Time {
		t := now.AddDate(-years, 0, 0)
		return &t
	}

	ext := extractions.Extraction{
		DocumentID:   doc.ID,
		DocumentType: extractions.DocTypeTTMStatement,
		LineItems: []extractions.LineItem{
			{Month: now.AddDate(0, -2, 0).Format("2006-01"), Category: "income", Subcategory: "base_rent", Amount: 133_300},
			{Month: now.AddDate(0, -2, 0).Format("2006-01"), Category: "expense", Subcategory: "operating", Amount: -40_000},
			{Month: now.AddDate(0, -1, 0).Format("2006-01"), Category: "income", Subcategory: "base_rent", Amount: 133_400},
			{Month: now.AddDate(0, -1, 0).Format("2006-01"), Category: "expense", Subcategory: "operating", Amount: -40_000},
		},
		Totals: extractions.Totals{
			GrossPotentialRent:   &gpr,
			EffectiveGrossIncome: &egi,
			OperatingExpenses:    &opex,
			NetOperatingIncome:   &noi,
			AnnualDebtService:    &ads,
		},
		RentRoll: []extractions.Lease{
			{UnitID: "100", Tenant: "Meridian Logistics", AreaSqft: 42_000, LeaseStart: startAgo(3), LeaseEnd: endIn(4), BaseRent: 38_500},
			{UnitID: "200", Tenant: "Castell Health Group", AreaSqft: 31_500, LeaseStart: startAgo(2), LeaseEnd: endIn(6), BaseRent: 31_200},
			{UnitID: "300", Tenant: "Arroyo Analytics", AreaSqft: 28_000, LeaseStart: startAgo(1), LeaseEnd: endIn(3), BaseRent: 27_400},
			{UnitID: "310", Tenant: "Blue Fir Coffee", AreaSqft: 4_200, LeaseStart: startAgo(1), LeaseEnd: endIn(5), BaseRent: 6_100},
		},
		DebtTerms: &extractions.DebtTerms{
			Lender:             "First Meridian Bank",
			Principal:          f64(12_400_000),
			RateType:           "fixed",
			Index:              "",
			AllInRate:          f64(0.0585),
			AmortizationMonths: pint(360),
			IOMonths:           pint(24),
			MaturityDate:       endIn(7),
		},
		Covenants: []extractions.Covenant{
			{Type: "min_dscr", Threshold: 1.20, Frequency: "quarterly"},
		},
		Assumptions: []extractions.Assumption{
			{Note: "Vacancy held at trailing actuals", Source: "ttm_statement"},
		},
		Validations: []extractions.ValidationCheck{
			{ID: "noi_reconciliation", Label: "NOI equals EGI minus OpEx", Passed: true},
			{ID: "rent_roll_totals", Label: "Rent roll sums to reported base rent", Passed: true},
		},
		Confidence: extractions.Confidence{
			RentRoll: f64(0.97),
			TTM:      f64(0.96),
		},
		CreatedAt: now,
	}
	return ext, nil
}

func f64(v float64) *float64 { return &v }
func pint(v int) *int        { return &v }

var _ Engine = StubEngine{}
