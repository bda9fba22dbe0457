package underwriting

import (
	"reflect"
	"testing"
	"time"

	"dealflow-backend/internal/extractions"
)

func f64(v float64) *float64 { return &v }

func tp(t time.Time) *time.Time { return &t }

func TestMapDeterminism(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ext := extractions.Extraction{
		DocumentID: "doc-1",
		Totals: extractions.Totals{
			EffectiveGrossIncome: f64(1_600_000),
			OperatingExpenses:    f64(480_000),
			AnnualDebtService:    f64(860_000),
		},
		RentRoll: []extractions.Lease{
			{UnitID: "101", Tenant: "Acme Logistics", BaseRent: 3500, LeaseEnd: tp(now.AddDate(2, 0, 0))},
		},
		DebtTerms: &extractions.DebtTerms{Lender: "First Meridian", RateType: "fixed"},
	}

	first := Map(ext, now)
	second := Map(ext, now)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic mapping: %+v vs %+v", first, second)
	}
}

func TestMapDerivesNOI(t *testing.T) {
	summary := Map(extractions.Extraction{
		Totals: extractions.Totals{
			EffectiveGrossIncome: f64(1_600_000),
			OperatingExpenses:    f64(480_000),
		},
	}, time.Now())

	if summary.NOI == nil || *summary.NOI != 1_120_000 {
		t.Fatalf("expected NOI 1120000, got %v", summary.NOI)
	}
}

func TestMapPrefersReportedNOI(t *testing.T) {
	summary := Map(extractions.Extraction{
		Totals: extractions.Totals{
			NetOperatingIncome:   f64(900_000),
			EffectiveGrossIncome: f64(1_600_000),
			OperatingExpenses:    f64(480_000),
		},
	}, time.Now())

	if summary.NOI == nil || *summary.NOI != 900_000 {
		t.Fatalf("expected reported NOI 900000, got %v", summary.NOI)
	}
}

func TestMapDerivesDSCR(t *testing.T) {
	summary := Map(extractions.Extraction{
		Totals: extractions.Totals{
			NetOperatingIncome: f64(740_000),
			AnnualDebtService:  f64(860_000),
		},
	}, time.Now())

	if summary.DSCR == nil || *summary.DSCR != 0.86 {
		t.Fatalf("expected DSCR 0.86, got %v", summary.DSCR)
	}
}

func TestMapDSCRNilCases(t *testing.T) {
	cases := []struct {
		name   string
		totals extractions.Totals
	}{
		{name: "no_debt_service", totals: extractions.Totals{NetOperatingIncome: f64(740_000)}},
		{name: "zero_debt_service", totals: extractions.Totals{NetOperatingIncome: f64(740_000), AnnualDebtService: f64(0)}},
		{name: "no_noi_operands", totals: extractions.Totals{AnnualDebtService: f64(860_000)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summary := Map(extractions.Extraction{Totals: tc.totals}, time.Now())
			if summary.DSCR != nil {
				t.Fatalf("expected nil DSCR, got %v", *summary.DSCR)
			}
		})
	}
}

func TestMapWALT(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	ext := extractions.Extraction{
		RentRoll: []extractions.Lease{
			{UnitID: "101", Tenant: "A", BaseRent: 3500, LeaseEnd: tp(now.Add(time.Duration(2 * 365.25 * 24 * float64(time.Hour))))},
			{UnitID: "102", Tenant: "B", BaseRent: 2900, LeaseEnd: tp(now.Add(time.Duration(365.25 * 24 * float64(time.Hour))))},
		},
	}

	summary := Map(ext, now)
	// (2*3500 + 1*2900) / 6400 = 1.546875 -> 1.55
	if summary.WALTYears == nil || *summary.WALTYears != 1.55 {
		t.Fatalf("expected WALT 1.55, got %v", summary.WALTYears)
	}
}

func TestMapWALTSkipsInvalidEntries(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	ext := extractions.Extraction{
		RentRoll: []extractions.Lease{
			{UnitID: "101", Tenant: "A", BaseRent: 3500}, // no end date
			{UnitID: "102", Tenant: "B", BaseRent: 0, LeaseEnd: tp(now.AddDate(1, 0, 0))},  // no rent
			{UnitID: "103", Tenant: "C", BaseRent: 1000, LeaseEnd: tp(now.AddDate(2, 0, 0))},
		},
	}

	summary := Map(ext, now)
	if summary.WALTYears == nil || *summary.WALTYears != 2.0 {
		t.Fatalf("expected WALT 2.0 from the single valid entry, got %v", summary.WALTYears)
	}
}

func TestMapWALTNilWhenNoValidEntries(t *testing.T) {
	now := time.Now()
	ext := extractions.Extraction{
		RentRoll: []extractions.Lease{
			{UnitID: "101", Tenant: "A", BaseRent: 0, LeaseEnd: tp(now.AddDate(1, 0, 0))},
			{UnitID: "102", Tenant: "B", BaseRent: 2000},
		},
	}
	if summary := Map(ext, now); summary.WALTYears != nil {
		t.Fatalf("expected nil WALT, got %v", *summary.WALTYears)
	}
	if summary := Map(extractions.Extraction{}, now); summary.WALTYears != nil {
		t.Fatalf("expected nil WALT on empty rent roll, got %v", *summary.WALTYears)
	}
}

func TestMapWALTClampsExpiredLeases(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	ext := extractions.Extraction{
		RentRoll: []extractions.Lease{
			{UnitID: "101", Tenant: "A", BaseRent: 1000, LeaseEnd: tp(now.AddDate(-1, 0, 0))},
			{UnitID: "102", Tenant: "B", BaseRent: 1000, LeaseEnd: tp(now.AddDate(1, 0, 0))},
		},
	}

	summary := Map(ext, now)
	// Expired lease contributes 0 years but still weights the denominator.
	if summary.WALTYears == nil || *summary.WALTYears != 0.5 {
		t.Fatalf("expected WALT 0.5, got %v", summary.WALTYears)
	}
}

func TestMapDebtPassThrough(t *testing.T) {
	maturity := time.Date(2031, 7, 1, 0, 0, 0, 0, time.UTC)
	amort := 360
	io := 24
	ext := extractions.Extraction{
		DebtTerms: &extractions.DebtTerms{
			Lender:             "First Meridian Bank",
			Principal:          f64(48_500_000),
			RateType:           "floating",
			Index:              "SOFR",
			SpreadBps:          f64(285),
			AllInRate:          f64(0.0715),
			AmortizationMonths: &amort,
			IOMonths:           &io,
			MaturityDate:       &maturity,
			RateCap:            "3.50% strike through maturity",
		},
	}

	summary := Map(ext, time.Now())
	debt := summary.Debt
	if debt.Lender != "First Meridian Bank" || debt.RateType != "floating" || debt.Index != "SOFR" {
		t.Fatalf("unexpected debt identity fields: %+v", debt)
	}
	if debt.Principal == nil || *debt.Principal != 48_500_000 {
		t.Fatalf("expected principal pass-through, got %v", debt.Principal)
	}
	if debt.AmortizationMonths == nil || *debt.AmortizationMonths != 360 || debt.IOMonths == nil || *debt.IOMonths != 24 {
		t.Fatalf("expected amortization pass-through, got %+v", debt)
	}
	if debt.MaturityDate == nil || !debt.MaturityDate.Equal(maturity) {
		t.Fatalf("expected maturity pass-through, got %v", debt.MaturityDate)
	}
}

func TestMapDebtAbsent(t *testing.T) {
	summary := Map(extractions.Extraction{}, time.Now())
	if !reflect.DeepEqual(summary.Debt, DebtSummary{}) {
		t.Fatalf("expected empty debt summary, got %+v", summary.Debt)
	}
}
