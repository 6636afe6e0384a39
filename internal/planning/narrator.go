package planning

import (
	"fmt"
	"sort"

	"github.com/fintrustlabs/modeld/internal/marketdata"
)

// explanations maps assumption fields to plain-language rationale templates.
// The %s placeholder receives the formatted value.
var explanations = map[string]string{
	"revenue_growth":           "Annual revenue growth of %s, derived from the historical CAGR and clamped to a defensible range.",
	"revenue_growth_y1":        "Year-one revenue growth of %s, the full historical CAGR.",
	"revenue_growth_y2":        "Year-two revenue growth of %s, decelerating from the year-one rate.",
	"revenue_growth_y3":        "Year-three revenue growth of %s, decelerating toward terminal growth.",
	"revenue_growth_y4":        "Year-four revenue growth of %s, decelerating toward terminal growth.",
	"revenue_growth_y5":        "Year-five revenue growth of %s, the final explicit-forecast rate.",
	"risk_free_rate":           "Risk-free rate of %s from the listing market's sovereign yield.",
	"equity_risk_premium":      "Equity risk premium of %s for the listing market.",
	"cost_of_debt":             "Pre-tax cost of debt of %s for the listing market.",
	"ebitda_margin":            "EBITDA margin of %s, the average of reported history held flat across the forecast.",
	"tax_rate":                 "Effective tax rate of %s, a standard corporate assumption absent company guidance.",
	"terminal_growth":          "Terminal growth of %s, roughly long-run inflation so the business never outgrows the economy forever.",
	"wacc":                     "Discount rate of %s from CAPM using the company's beta against fixed market inputs.",
	"capex_pct_revenue":        "Capital expenditure at %s of revenue, a maintenance-level reinvestment assumption.",
	"nwc_pct_revenue":          "Net working capital change at %s of incremental revenue.",
	"depreciation_pct_revenue": "Depreciation at %s of revenue, broadly tracking the capex assumption.",
	"entry_multiple":           "Entry at %sx EBITDA, a mid-market sponsor purchase multiple.",
	"exit_multiple":            "Exit at %sx EBITDA, allowing modest multiple expansion over the hold.",
	"txn_fees_pct":             "Transaction fees at %s of the purchase price.",
	"senior_leverage":          "Senior tranche sized at %sx LTM EBITDA.",
	"senior_rate":              "Senior debt priced at %s.",
	"sub_leverage":             "Subordinated tranche sized at %sx LTM EBITDA.",
	"sub_rate":                 "Subordinated debt priced at %s.",
	"amort_pct":                "Mandatory amortisation of %s of senior principal per year.",
	"cash_sweep_pct":           "A cash sweep directing %s of free cash flow to early paydown.",
	"debt_pct":                 "Debt financing at %s of the purchase price, typical sponsor leverage.",
	"interest_rate":            "Blended cost of debt of %s across the financing tranches.",
	"hold_years":               "A %s-year hold period before exit.",
	"dividend_payout":          "Dividends at %s of net income.",
	"q1_weight":                "First quarter phased at %s of the annual revenue budget.",
	"q2_weight":                "Second quarter phased at %s of the annual revenue budget.",
	"q3_weight":                "Third quarter phased at %s of the annual revenue budget.",
	"q4_weight":                "Fourth quarter phased at %s of the annual revenue budget, the seasonal peak.",
	"dso_days":                 "Days sales outstanding of %s, driving the receivables balance.",
	"dpo_days":                 "Days payable outstanding of %s, driving the payables balance.",
	"inventory_days":           "Inventory days of %s for the working capital build.",
	"headcount_growth":         "Headcount growth of %s per year in the budget plan.",
	"opex_growth":              "Operating expense growth of %s, scaling a step behind revenue.",
	"forecast_years":           "A %s-year explicit forecast horizon.",
	"budget_months":            "A %s-month budgeting horizon.",
	"base_revenue":             "Latest reported revenue of %s as the forecast starting point.",
	"base_ebitda":              "Latest reported EBITDA of %s as the forecast starting point.",
}

// percentFields render as percentages rather than absolute numbers.
var percentFields = map[string]bool{
	"revenue_growth":           true,
	"revenue_growth_y1":        true,
	"revenue_growth_y2":        true,
	"revenue_growth_y3":        true,
	"revenue_growth_y4":        true,
	"revenue_growth_y5":        true,
	"ebitda_margin":            true,
	"tax_rate":                 true,
	"terminal_growth":          true,
	"wacc":                     true,
	"risk_free_rate":           true,
	"equity_risk_premium":      true,
	"cost_of_debt":             true,
	"capex_pct_revenue":        true,
	"nwc_pct_revenue":          true,
	"depreciation_pct_revenue": true,
	"debt_pct":                 true,
	"interest_rate":            true,
	"txn_fees_pct":             true,
	"senior_rate":              true,
	"sub_rate":                 true,
	"amort_pct":                true,
	"cash_sweep_pct":           true,
	"dividend_payout":          true,
	"headcount_growth":         true,
	"opex_growth":              true,
	"q1_weight":                true,
	"q2_weight":                true,
	"q3_weight":                true,
	"q4_weight":                true,
}

// Narrate produces one note per assumption value, in stable field order.
func Narrate(set AssumptionSet, data *marketdata.CompanyData) []NarratorNote {
	fields := make([]string, 0, len(set.Values))
	for f := range set.Values {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	notes := make([]NarratorNote, 0, len(fields))
	for _, f := range fields {
		val := formatValue(f, set.Values[f], data.Currency)
		tmpl, ok := explanations[f]
		if !ok {
			tmpl = "Set to %s."
		}
		notes = append(notes, NarratorNote{
			Field:       f,
			Value:       val,
			Explanation: fmt.Sprintf(tmpl, val),
		})
	}
	return notes
}

func formatValue(field string, v float64, currency string) string {
	switch {
	case percentFields[field]:
		return fmt.Sprintf("%.1f%%", v*100)
	case field == "base_revenue" || field == "base_ebitda":
		return fmt.Sprintf("%s %.1fM", currency, v)
	case v == float64(int64(v)):
		return fmt.Sprintf("%d", int64(v))
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
