package planning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrustlabs/modeld/internal/analysis"
	"github.com/fintrustlabs/modeld/internal/marketdata"
)

func companyFixture() *marketdata.CompanyData {
	return &marketdata.CompanyData{
		Found:             true,
		CompanyName:       "Acme Industries",
		Ticker:            "ACME",
		Sector:            "Industrials",
		Currency:          "USD",
		MarketCap:         1500,
		TotalDebt:         300,
		Beta:              1.2,
		SharesOutstanding: 100,
		RevenueHistory:    []float64{121, 110, 100},
		EBITDAHistory:     []float64{30, 27, 24},
	}
}

func recFixture(mt analysis.ModelType) analysis.Recommendation {
	return analysis.Recommendation{
		ModelType: mt,
		Reasoning: "test",
		KeyMetrics: map[string]float64{
			"revenue_cagr":   0.10,
			"ebitda_margin":  0.25,
			"debt_to_ebitda": 1.5,
		},
		Confidence: "high",
	}
}

func TestBuildDCFAssumptions(t *testing.T) {
	set := Build(companyFixture(), recFixture(analysis.ModelDCF))

	assert.Equal(t, analysis.ModelDCF, set.ModelType)
	for _, key := range []string{"revenue_growth", "ebitda_margin", "tax_rate", "wacc", "terminal_growth", "capex_pct_revenue", "base_revenue"} {
		assert.Contains(t, set.Values, key, key)
	}
	assert.Equal(t, 121.0, set.Values["base_revenue"])
	assert.Equal(t, "ACME", set.Meta["ticker"])

	// WACC from CAPM must land between the risk-free rate and cost of equity.
	assert.Greater(t, set.Values["wacc"], 0.043)
	assert.Less(t, set.Values["wacc"], 0.20)

	require.Len(t, set.Scenarios, 3)
	require.NotEmpty(t, set.Notes)
	for _, note := range set.Notes {
		assert.NotEmpty(t, note.Explanation, note.Field)
	}
}

func TestBuildDCFGrowthSchedule(t *testing.T) {
	set := Build(companyFixture(), recFixture(analysis.ModelDCF))
	v := set.Values

	// Year-one carries the full CAGR; later years taper toward terminal.
	assert.InDelta(t, 0.10, v["revenue_growth_y1"], 0.0001)
	assert.InDelta(t, 0.095, v["revenue_growth_y2"], 0.0001)
	assert.InDelta(t, 0.08, v["revenue_growth_y5"], 0.0001)
	assert.Greater(t, v["revenue_growth_y1"], v["revenue_growth_y5"])
}

func TestBuildDCFMarketInputs(t *testing.T) {
	global := Build(companyFixture(), recFixture(analysis.ModelDCF))
	assert.Equal(t, 0.045, global.Values["risk_free_rate"])
	assert.Equal(t, 0.055, global.Values["equity_risk_premium"])
	assert.Equal(t, 0.025, global.Values["terminal_growth"])

	c := companyFixture()
	c.IsIndian = true
	c.Currency = "INR"
	indian := Build(c, recFixture(analysis.ModelDCF))
	assert.Equal(t, 0.070, indian.Values["risk_free_rate"])
	assert.Equal(t, 0.065, indian.Values["equity_risk_premium"])
	assert.Equal(t, 0.090, indian.Values["cost_of_debt"])
	assert.Equal(t, 0.055, indian.Values["terminal_growth"])

	// Indian capital costs more, so the discount rate must be higher.
	assert.Greater(t, indian.Values["wacc"], global.Values["wacc"])
}

func TestBuildLBOAssumptions(t *testing.T) {
	set := Build(companyFixture(), recFixture(analysis.ModelLBO))
	for _, key := range []string{"entry_multiple", "exit_multiple", "debt_pct", "interest_rate", "hold_years"} {
		assert.Contains(t, set.Values, key, key)
	}
	assert.NotContains(t, set.Values, "wacc")
	assert.Equal(t, 8.5, set.Values["entry_multiple"])
	assert.Equal(t, 9.5, set.Values["exit_multiple"])
	assert.Equal(t, 0.02, set.Values["txn_fees_pct"])
}

func TestBuildLBOTranches(t *testing.T) {
	set := Build(companyFixture(), recFixture(analysis.ModelLBO))
	v := set.Values

	assert.Equal(t, 4.0, v["senior_leverage"])
	assert.Equal(t, 0.070, v["senior_rate"])
	assert.Equal(t, 1.5, v["sub_leverage"])
	assert.Equal(t, 0.10, v["sub_rate"])
	assert.Equal(t, 0.05, v["amort_pct"])
	assert.Equal(t, 0.50, v["cash_sweep_pct"])

	// Blended rate is the leverage-weighted average of the tranche rates.
	want := (4.0*0.070 + 1.5*0.10) / 5.5
	assert.InDelta(t, want, v["interest_rate"], 0.0001)
	assert.Greater(t, v["interest_rate"], v["senior_rate"])
	assert.Less(t, v["interest_rate"], v["sub_rate"])

	c := companyFixture()
	c.IsIndian = true
	indian := Build(c, recFixture(analysis.ModelLBO))
	assert.Equal(t, 0.090, indian.Values["senior_rate"])
	assert.Equal(t, 0.12, indian.Values["sub_rate"])
}

func TestBuildThreeStatementAssumptions(t *testing.T) {
	set := Build(companyFixture(), recFixture(analysis.ModelThreeStatement))
	for _, key := range []string{"dso_days", "dpo_days", "inventory_days"} {
		assert.Contains(t, set.Values, key, key)
	}
	assert.Equal(t, 0.06, set.Values["interest_rate"])
	assert.Equal(t, 0.20, set.Values["dividend_payout"])

	c := companyFixture()
	c.IsIndian = true
	indian := Build(c, recFixture(analysis.ModelThreeStatement))
	assert.Equal(t, 0.08, indian.Values["interest_rate"])
}

func TestBuildFPAAssumptions(t *testing.T) {
	set := Build(companyFixture(), recFixture(analysis.ModelFPA))
	assert.Contains(t, set.Values, "headcount_growth")
	assert.Equal(t, 12.0, set.Values["budget_months"])
}

func TestBuildFPAQuarterlyWeights(t *testing.T) {
	set := Build(companyFixture(), recFixture(analysis.ModelFPA))
	v := set.Values

	assert.Equal(t, 0.22, v["q1_weight"])
	assert.Equal(t, 0.25, v["q2_weight"])
	assert.Equal(t, 0.24, v["q3_weight"])
	assert.Equal(t, 0.29, v["q4_weight"])
	assert.InDelta(t, 1.0, v["q1_weight"]+v["q2_weight"]+v["q3_weight"]+v["q4_weight"], 0.0001)
}

func TestWACCDefaultsBetaToOne(t *testing.T) {
	c := companyFixture()
	c.Beta = 0
	set := Build(c, recFixture(analysis.ModelDCF))
	assert.Greater(t, set.Values["wacc"], 0.0)
}

func TestMissingFields(t *testing.T) {
	c := companyFixture()
	c.SharesOutstanding = 0
	c.TotalDebt = 0

	missing := MissingFields(c, analysis.ModelLBO)
	require.NotEmpty(t, missing)

	var hasDebt bool
	for _, m := range missing {
		if m == "total debt (required for an LBO capital structure)" {
			hasDebt = true
		}
	}
	assert.True(t, hasDebt)

	// Same company without the LBO requirement drops the debt prompt.
	missing = MissingFields(c, analysis.ModelDCF)
	for _, m := range missing {
		assert.NotContains(t, m, "LBO")
	}
}

func TestNarrateFormatsPercentages(t *testing.T) {
	set := Build(companyFixture(), recFixture(analysis.ModelDCF))
	byField := map[string]NarratorNote{}
	for _, n := range set.Notes {
		byField[n.Field] = n
	}
	require.Contains(t, byField, "revenue_growth")
	assert.Contains(t, byField["revenue_growth"].Value, "%")
	assert.Contains(t, byField["base_revenue"].Value, "USD")
}
