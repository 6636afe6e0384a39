package analysis

import (
	"fmt"
	"strings"

	"github.com/fintrustlabs/modeld/internal/marketdata"
)

// ModelType identifies which financial model template to build.
type ModelType string

const (
	ModelDCF            ModelType = "DCF"
	ModelLBO            ModelType = "LBO"
	ModelThreeStatement ModelType = "3-Statement"
	ModelFPA            ModelType = "FP&A"
)

// Valid reports whether t is a known model type.
func (t ModelType) Valid() bool {
	switch t {
	case ModelDCF, ModelLBO, ModelThreeStatement, ModelFPA:
		return true
	}
	return false
}

// Recommendation is the analysis outcome: a model type with the metrics and
// reasoning that produced it.
type Recommendation struct {
	ModelType  ModelType          `json:"model_type"`
	Reasoning  string             `json:"reasoning"`
	KeyMetrics map[string]float64 `json:"key_metrics"`
	Confidence string             `json:"confidence"`
}

// Decision thresholds for the rule-based model selection.
const (
	leverageLBOThreshold  = 3.0
	growthDCFThreshold    = 0.20
	marginDCFThreshold    = 0.25
	marketCapDCFThreshold = 1000.0
)

// Recommend picks a model type from fundamentals. The rules apply in a fixed
// priority order: leverage first, then growth profile, then mature-company
// cash generation, with 3-Statement as the catch-all. FP&A is only ever
// produced on an explicit request, which OverrideFPA handles separately.
func Recommend(data *marketdata.CompanyData) Recommendation {
	growth := CAGR(data.RevenueHistory)
	margin := EBITDAMargin(data.RevenueHistory, data.EBITDAHistory)
	leverage := DebtToEBITDA(data.TotalDebt, data.EBITDAHistory)

	metrics := map[string]float64{
		"revenue_cagr":   growth,
		"ebitda_margin":  margin,
		"debt_to_ebitda": leverage,
		"market_cap":     data.MarketCap,
	}

	sector := strings.ToLower(data.Sector + " " + data.Industry)
	highGrowthSector := strings.Contains(sector, "tech") || strings.Contains(sector, "software")

	switch {
	case leverage > leverageLBOThreshold:
		return Recommendation{
			ModelType: ModelLBO,
			Reasoning: fmt.Sprintf(
				"Debt/EBITDA of %.1fx exceeds %.1fx, so the capital structure dominates the story. An LBO model captures leverage, debt paydown and sponsor returns.",
				leverage, leverageLBOThreshold),
			KeyMetrics: metrics,
			Confidence: "high",
		}
	case growth > growthDCFThreshold || highGrowthSector:
		reason := fmt.Sprintf("Revenue CAGR of %.1f%% puts most of the value in future cash flows", growth*100)
		if highGrowthSector {
			reason = fmt.Sprintf("%s sector economics put most of the value in future cash flows", data.Sector)
		}
		return Recommendation{
			ModelType:  ModelDCF,
			Reasoning:  reason + ", which a DCF values directly through explicit forecasts and a terminal value.",
			KeyMetrics: metrics,
			Confidence: "high",
		}
	case margin > marginDCFThreshold && data.MarketCap > marketCapDCFThreshold:
		return Recommendation{
			ModelType: ModelDCF,
			Reasoning: fmt.Sprintf(
				"Stable %.1f%% EBITDA margins at scale make the free cash flows predictable enough for a DCF to be the primary valuation lens.",
				margin*100),
			KeyMetrics: metrics,
			Confidence: "medium",
		}
	default:
		return Recommendation{
			ModelType:  ModelThreeStatement,
			Reasoning:  "No single driver dominates, so an integrated 3-Statement model gives the fullest picture of operations, balance sheet and cash flows.",
			KeyMetrics: metrics,
			Confidence: "medium",
		}
	}
}

// OverrideFPA returns an FP&A recommendation carrying over the metrics of a
// prior recommendation. Used when the requester explicitly asks for a
// budgeting and planning model.
func OverrideFPA(prior Recommendation) Recommendation {
	return Recommendation{
		ModelType:  ModelFPA,
		Reasoning:  "FP&A model requested explicitly: monthly budget, headcount and variance planning instead of a valuation.",
		KeyMetrics: prior.KeyMetrics,
		Confidence: "high",
	}
}
