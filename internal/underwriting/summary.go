package underwriting

import "time"

// DebtSummary carries normalized debt terms. Fields the extraction could not
// read stay at their zero/null value.
type DebtSummary struct {
	Lender             string     `json:"lender,omitempty"`
	Principal          *float64   `json:"principal,omitempty"`
	RateType           string     `json:"rate_type,omitempty"`
	Index              string     `json:"index,omitempty"`
	SpreadBps          *float64   `json:"spread_bps,omitempty"`
	AllInRate          *float64   `json:"all_in_rate,omitempty"`
	AmortizationMonths *int       `json:"amortization_months,omitempty"`
	IOMonths           *int       `json:"io_months,omitempty"`
	MaturityDate       *time.Time `json:"maturity_date,omitempty"`
	RateCap            string     `json:"rate_cap,omitempty"`
}

// Summary is the normalized financial view of an extraction, the input for
// scoring and deal creation.
type Summary struct {
	NOI       *float64    `json:"noi"`
	DSCR      *float64    `json:"dscr"`
	WALTYears *float64    `json:"walt_years"`
	Debt      DebtSummary `json:"debt_terms"`
}
