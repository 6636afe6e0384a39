package planning

import (
	"fmt"

	"github.com/fintrustlabs/modeld/internal/analysis"
	"github.com/fintrustlabs/modeld/internal/marketdata"
)

// AssumptionSet is the full driver package handed to the model builder.
type AssumptionSet struct {
	ModelType analysis.ModelType        `json:"model_type"`
	Values    map[string]float64        `json:"values"`
	Meta      map[string]string         `json:"meta"`
	Scenarios map[string]Scenario       `json:"scenarios"`
	Notes     []NarratorNote            `json:"notes"`
	Peers     []marketdata.PeerSnapshot `json:"peers,omitempty"`
}

// NarratorNote explains a single assumption in plain language.
type NarratorNote struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Explanation string `json:"explanation"`
}

// Build assembles assumptions for the recommended model type from company
// fundamentals and the computed key metrics.
func Build(data *marketdata.CompanyData, rec analysis.Recommendation) AssumptionSet {
	growth := rec.KeyMetrics["revenue_cagr"]
	margin := rec.KeyMetrics["ebitda_margin"]

	set := AssumptionSet{
		ModelType: rec.ModelType,
		Values:    map[string]float64{},
		Meta: map[string]string{
			"company":  data.CompanyName,
			"ticker":   data.Ticker,
			"currency": data.Currency,
			"sector":   data.Sector,
		},
		Peers: data.Peers,
	}

	mkt := marketFor(data)

	v := set.Values
	v["revenue_growth"] = growth
	v["ebitda_margin"] = margin
	v["tax_rate"] = 0.25
	v["forecast_years"] = 5

	switch rec.ModelType {
	case analysis.ModelDCF:
		for i, decay := range growthDecay {
			v[fmt.Sprintf("revenue_growth_y%d", i+1)] = growth * decay
		}
		v["risk_free_rate"] = mkt.riskFree
		v["equity_risk_premium"] = mkt.equityPremium
		v["cost_of_debt"] = mkt.costOfDebt
		v["terminal_growth"] = mkt.terminalGrowth
		v["wacc"] = waccEstimate(data, mkt)
		v["capex_pct_revenue"] = 0.05
		v["nwc_pct_revenue"] = 0.02
		v["depreciation_pct_revenue"] = 0.04
	case analysis.ModelLBO:
		v["entry_multiple"] = 8.5
		v["exit_multiple"] = 9.5
		v["txn_fees_pct"] = 0.02
		v["senior_leverage"] = seniorLeverage
		v["senior_rate"] = mkt.seniorRate
		v["sub_leverage"] = subLeverage
		v["sub_rate"] = mkt.subRate
		v["amort_pct"] = 0.05
		v["cash_sweep_pct"] = 0.50
		v["debt_pct"] = 0.60
		v["interest_rate"] = blendedDebtRate(mkt)
		v["hold_years"] = 5
	case analysis.ModelThreeStatement:
		v["capex_pct_revenue"] = 0.05
		v["depreciation_pct_revenue"] = 0.04
		v["dso_days"] = 45
		v["dpo_days"] = 30
		v["inventory_days"] = 35
		v["interest_rate"] = mkt.borrowRate
		v["dividend_payout"] = 0.20
	case analysis.ModelFPA:
		v["headcount_growth"] = 0.10
		v["opex_growth"] = growth * 0.8
		v["budget_months"] = 12
		v["q1_weight"] = 0.22
		v["q2_weight"] = 0.25
		v["q3_weight"] = 0.24
		v["q4_weight"] = 0.29
	}

	if len(data.RevenueHistory) > 0 {
		v["base_revenue"] = data.RevenueHistory[0]
	}
	if len(data.EBITDAHistory) > 0 {
		v["base_ebitda"] = data.EBITDAHistory[0]
	}

	set.Scenarios = DeriveScenarios(v)
	set.Notes = Narrate(set, data)
	return set
}

// growthDecay tapers the year-one growth rate over the explicit forecast so
// the business glides toward terminal growth instead of compounding flat.
var growthDecay = [...]float64{1.00, 0.95, 0.90, 0.85, 0.80}

// Capital-structure constants for the two-tranche LBO financing package.
const (
	seniorLeverage = 4.0
	subLeverage    = 1.5
)

// marketInputs are the capital-market constants that differ between Indian
// and global listings.
type marketInputs struct {
	riskFree       float64
	equityPremium  float64
	costOfDebt     float64
	terminalGrowth float64
	seniorRate     float64
	subRate        float64
	borrowRate     float64
}

func marketFor(data *marketdata.CompanyData) marketInputs {
	if data.IsIndian {
		return marketInputs{
			riskFree:       0.070,
			equityPremium:  0.065,
			costOfDebt:     0.090,
			terminalGrowth: 0.055,
			seniorRate:     0.090,
			subRate:        0.12,
			borrowRate:     0.08,
		}
	}
	return marketInputs{
		riskFree:       0.045,
		equityPremium:  0.055,
		costOfDebt:     0.065,
		terminalGrowth: 0.025,
		seniorRate:     0.070,
		subRate:        0.10,
		borrowRate:     0.06,
	}
}

// blendedDebtRate weights the tranche rates by their leverage contribution.
func blendedDebtRate(mkt marketInputs) float64 {
	total := seniorLeverage + subLeverage
	return (seniorLeverage*mkt.seniorRate + subLeverage*mkt.subRate) / total
}

// waccEstimate derives a discount rate from CAPM using the listing market's
// risk-free rate and equity premium. Beta defaults to 1.0 when the feed has
// none.
func waccEstimate(data *marketdata.CompanyData, mkt marketInputs) float64 {
	const taxRate = 0.25
	beta := data.Beta
	if beta <= 0 {
		beta = 1.0
	}
	costOfEquity := mkt.riskFree + beta*mkt.equityPremium

	ev := data.MarketCap + data.TotalDebt
	if ev <= 0 {
		return costOfEquity
	}
	we := data.MarketCap / ev
	wd := data.TotalDebt / ev
	return we*costOfEquity + wd*mkt.costOfDebt*(1-taxRate)
}

// MissingFields lists the fundamentals the model still needs from the user,
// formatted as human-readable prompts.
func MissingFields(data *marketdata.CompanyData, mt analysis.ModelType) []string {
	var missing []string
	for _, f := range data.MissingFinancials() {
		missing = append(missing, fmt.Sprintf("%s (not available from market data)", f))
	}
	if mt == analysis.ModelLBO && data.TotalDebt <= 0 {
		missing = append(missing, "total debt (required for an LBO capital structure)")
	}
	return missing
}
