package underwriting

import (
	"strings"

	"dealflow-backend/internal/extractions"
)

// Deal Quality Index constants. The tiers and penalties below are the
// underwriting contract; every adjustment is additive and order-insensitive.
const (
	dqiBase = 70

	dscrStrongBonus = 8  // dscr >= 1.40
	dscrSolidBonus  = 4  // 1.20 <= dscr < 1.40
	dscrThinBonus   = 1  // 1.10 <= dscr < 1.20
	dscrWeakPenalty = -8 // dscr < 1.10, missing, or zero

	uncappedFloatingPenalty = -5
	concentrationPenalty    = -5
	concentrationThreshold  = 0.40

	confidenceFloor     = 0.95
	rentRollConfPenalty = -2
	ttmConfPenalty      = -1
)

// Score computes the Deal Quality Index for an extraction: an integer in
// [0,100] derived from debt coverage, rate risk, tenant concentration, and
// extraction confidence.
func Score(ext extractions.Extraction) int {
	score := dqiBase
	score += dscrAdjustment(deriveDSCR(ext.Totals))
	score += rateRiskAdjustment(ext.DebtTerms)
	score += concentrationAdjustment(ext.RentRoll)
	score += confidenceAdjustment(ext.Confidence)

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func dscrAdjustment(dscr *float64) int {
	if dscr == nil {
		return dscrWeakPenalty
	}
	switch v := *dscr; {
	case v >= 1.40:
		return dscrStrongBonus
	case v >= 1.20:
		return dscrSolidBonus
	case v >= 1.10:
		return dscrThinBonus
	default:
		return dscrWeakPenalty
	}
}

// rateRiskAdjustment penalizes floating-rate debt with no rate cap in place.
func rateRiskAdjustment(terms *extractions.DebtTerms) int {
	if terms == nil {
		return 0
	}
	if strings.EqualFold(strings.TrimSpace(terms.RateType), "floating") && strings.TrimSpace(terms.RateCap) == "" {
		return uncappedFloatingPenalty
	}
	return 0
}

// concentrationAdjustment penalizes a single tenant holding more than the
// threshold share of total base rent.
func concentrationAdjustment(rentRoll []extractions.Lease) int {
	if len(rentRoll) == 0 {
		return 0
	}
	byTenant := make(map[string]float64, len(rentRoll))
	var total float64
	for _, lease := range rentRoll {
		byTenant[lease.Tenant] += lease.BaseRent
		total += lease.BaseRent
	}
	if total <= 0 {
		return 0
	}
	for _, rent := range byTenant {
		if rent/total > concentrationThreshold {
			return concentrationPenalty
		}
	}
	return 0
}

// confidenceAdjustment penalizes low per-section extraction confidence.
// Each penalty applies only when the respective value is present.
func confidenceAdjustment(conf extractions.Confidence) int {
	adj := 0
	if conf.RentRoll != nil && *conf.RentRoll < confidenceFloor {
		adj += rentRollConfPenalty
	}
	if conf.TTM != nil && *conf.TTM < confidenceFloor {
		adj += ttmConfPenalty
	}
	return adj
}
