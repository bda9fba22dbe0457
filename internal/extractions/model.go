package extractions

import "time"

// DocTypeTTMStatement is the document type for a trailing-twelve-month
// operating statement, the primary intake document.
const DocTypeTTMStatement = "ttm_operating_statement"

// LineItem is one monthly operating-statement line.
type LineItem struct {
	Month       string  `json:"month"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Amount      float64 `json:"amount"`
}

// Totals holds aggregate operating-statement figures. All fields are optional:
// an extraction engine reports only what it could read.
type Totals struct {
	GrossPotentialRent   *float64 `json:"gross_potential_rent,omitempty"`
	EffectiveGrossIncome *float64 `json:"effective_gross_income,omitempty"`
	OperatingExpenses    *float64 `json:"operating_expenses,omitempty"`
	NetOperatingIncome   *float64 `json:"net_operating_income,omitempty"`
	AnnualDebtService    *float64 `json:"annual_debt_service,omitempty"`
	DebtServiceCoverage  *float64 `json:"dscr,omitempty"`
}

// Lease is one rent-roll entry.
type Lease struct {
	UnitID     string     `json:"unit_id"`
	Tenant     string     `json:"tenant"`
	AreaSqft   float64    `json:"area_sqft,omitempty"`
	LeaseStart *time.Time `json:"lease_start,omitempty"`
	LeaseEnd   *time.Time `json:"lease_end,omitempty"`
	BaseRent   float64    `json:"base_rent"`
}

// DebtTerms describes the in-place financing read from loan documents.
type DebtTerms struct {
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

// Covenant is a loan covenant extracted from debt documents.
type Covenant struct {
	Type      string  `json:"type"`
	Threshold float64 `json:"threshold"`
	Frequency string  `json:"frequency"`
}

// Assumption is an extraction assumption with its source reference.
type Assumption struct {
	Note   string `json:"note"`
	Source string `json:"source,omitempty"`
}

// ValidationCheck records one internal consistency check the engine ran.
type ValidationCheck struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Passed bool   `json:"passed"`
}

// Confidence holds per-section extraction confidence scores in [0,1].
type Confidence struct {
	RentRoll *float64 `json:"rent_roll,omitempty"`
	TTM      *float64 `json:"ttm,omitempty"`
}

// Extraction is the parsed financial data for one uploaded document.
// It is written once by the intake service and never mutated.
type Extraction struct {
	DocumentID   string            `json:"document_id"`
	DocumentType string            `json:"document_type"`
	LineItems    []LineItem        `json:"line_items"`
	Totals       Totals            `json:"totals"`
	RentRoll     []Lease           `json:"rent_roll"`
	DebtTerms    *DebtTerms        `json:"debt_terms,omitempty"`
	Covenants    []Covenant        `json:"covenants,omitempty"`
	Assumptions  []Assumption      `json:"assumptions,omitempty"`
	Validations  []ValidationCheck `json:"validations,omitempty"`
	Confidence   Confidence        `json:"confidence"`
	CreatedAt    time.Time         `json:"created_at"`
}
