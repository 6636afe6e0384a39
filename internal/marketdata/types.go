// Package marketdata resolves free-text company queries to tickers and
// fetches historical financials from an external data source.
//
// The package is a collaborator of the pipeline: the orchestrator consumes it
// through the Fetcher interface and treats "not found" as a result, not an
// error. Upstream outages surface as Found=false so the research stage can
// fail the session with a user-facing suggestion instead of a stack trace.
package marketdata

import "context"

// CompanyData is the structured record the research stage produces. History
// slices are ordered most recent first. Monetary values are in crores for
// Indian listings and millions otherwise.
type CompanyData struct {
	Found             bool    `json:"found"`
	CompanyName       string  `json:"company_name"`
	Ticker            string  `json:"ticker,omitempty"`
	Source            string  `json:"source,omitempty"`
	Sector            string  `json:"sector,omitempty"`
	Industry          string  `json:"industry,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	IsIndian          bool    `json:"is_indian"`
	CurrentPrice      float64 `json:"current_price,omitempty"`
	MarketCap         float64 `json:"market_cap,omitempty"`
	Beta              float64 `json:"beta,omitempty"`
	PERatio           float64 `json:"pe_ratio,omitempty"`
	PBRatio           float64 `json:"pb_ratio,omitempty"`
	TotalDebt         float64 `json:"total_debt,omitempty"`
	Cash              float64 `json:"cash,omitempty"`
	SharesOutstanding float64 `json:"shares_outstanding,omitempty"`

	RevenueHistory   []float64 `json:"revenue_history,omitempty"`
	EBITDAHistory    []float64 `json:"ebitda_history,omitempty"`
	NetIncomeHistory []float64 `json:"net_income_history,omitempty"`

	Peers []PeerSnapshot `json:"peers,omitempty"`
}

// PeerSnapshot is one comparable company row for the COMPS sheet.
type PeerSnapshot struct {
	Name          string  `json:"name"`
	Ticker        string  `json:"ticker"`
	MarketCap     float64 `json:"market_cap"`
	EVEBITDA      float64 `json:"ev_ebitda"`
	PERatio       float64 `json:"pe_ratio"`
	EVRevenue     float64 `json:"ev_revenue"`
	RevenueGrowth float64 `json:"revenue_growth"`
	EBITDAMargin  float64 `json:"ebitda_margin"`
	ROE           float64 `json:"roe"`
}

// MissingFinancials lists the history fields absent from d, in a stable
// order, so the research stage can record them as missing rather than fail.
func (d *CompanyData) MissingFinancials() []string {
	var missing []string
	if len(d.RevenueHistory) == 0 {
		missing = append(missing, "revenue_history")
	}
	if len(d.EBITDAHistory) == 0 {
		missing = append(missing, "ebitda_history")
	}
	if d.Beta == 0 {
		missing = append(missing, "beta")
	}
	if d.SharesOutstanding == 0 {
		missing = append(missing, "shares_outstanding")
	}
	return missing
}

// Fetcher fetches company financial history for a resolved query. Upstream
// failures must return a record with Found=false, not an error; errors are
// reserved for programmer mistakes (nil context and the like).
type Fetcher interface {
	Fetch(ctx context.Context, query string) (*CompanyData, error)
}
