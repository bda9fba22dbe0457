package underwriting

import (
	"math"
	"time"

	"dealflow-backend/internal/extractions"
)

const daysPerYear = 365.25

// Map normalizes a raw extraction into a Summary. It is pure: identical
// inputs (including now) always produce identical output, and no input is
// ever treated as an error. Missing figures stay nil.
func Map(ext extractions.Extraction, now time.Time) Summary {
	noi := deriveNOI(ext.Totals)

	var dscr *float64
	if raw := deriveDSCR(ext.Totals); raw != nil {
		rounded := round2(*raw)
		dscr = &rounded
	}

	return Summary{
		NOI:       noi,
		DSCR:      dscr,
		WALTYears: waltYears(ext.RentRoll, now),
		Debt:      mapDebt(ext.DebtTerms),
	}
}

// deriveNOI returns the reported NOI, falling back to EGI minus opex when
// both operands are present.
func deriveNOI(totals extractions.Totals) *float64 {
	if totals.NetOperatingIncome != nil {
		v := *totals.NetOperatingIncome
		return &v
	}
	if totals.EffectiveGrossIncome == nil || totals.OperatingExpenses == nil {
		return nil
	}
	v := *totals.EffectiveGrossIncome - *totals.OperatingExpenses
	return &v
}

// deriveDSCR returns the reported DSCR, falling back to NOI over annual debt
// service. The returned value is unrounded; Map rounds for presentation while
// scoring tiers compare against the raw ratio.
func deriveDSCR(totals extractions.Totals) *float64 {
	if totals.DebtServiceCoverage != nil {
		v := *totals.DebtServiceCoverage
		return &v
	}
	noi := deriveNOI(totals)
	if noi == nil || totals.AnnualDebtService == nil || *totals.AnnualDebtService == 0 {
		return nil
	}
	v := *noi / *totals.AnnualDebtService
	return &v
}

// waltYears computes the rent-weighted average remaining lease term in years
// over entries with a valid end date and positive base rent, rounded to two
// decimals. Nil when no entry qualifies or the rent denominator is zero.
func waltYears(rentRoll []extractions.Lease, now time.Time) *float64 {
	var weighted, totalRent float64
	for _, lease := range rentRoll {
		if lease.LeaseEnd == nil || lease.LeaseEnd.IsZero() || lease.BaseRent <= 0 {
			continue
		}
		yearsRemaining := lease.LeaseEnd.Sub(now).Hours() / 24 / daysPerYear
		if yearsRemaining < 0 {
			yearsRemaining = 0
		}
		weighted += yearsRemaining * lease.BaseRent
		totalRent += lease.BaseRent
	}
	if totalRent == 0 {
		return nil
	}
	v := round2(weighted / totalRent)
	return &v
}

func mapDebt(terms *extractions.DebtTerms) DebtSummary {
	if terms == nil {
		return DebtSummary{}
	}
	out := DebtSummary{
		Lender:   terms.Lender,
		RateType: terms.RateType,
		Index:    terms.Index,
		RateCap:  terms.RateCap,
	}
	out.Principal = copyFloat(terms.Principal)
	out.SpreadBps = copyFloat(terms.SpreadBps)
	out.AllInRate = copyFloat(terms.AllInRate)
	out.AmortizationMonths = copyInt(terms.AmortizationMonths)
	out.IOMonths = copyInt(terms.IOMonths)
	if terms.MaturityDate != nil {
		v := *terms.MaturityDate
		out.MaturityDate = &v
	}
	return out
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
