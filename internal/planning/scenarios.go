package planning

import "strings"

// Scenario is one perturbed copy of the base driver values.
type Scenario struct {
	Name   string             `json:"name"`
	Values map[string]float64 `json:"values"`
}

// Perturbation bounds. Bull and bear cases stay inside the same clamps the
// base-case metrics use so no scenario produces an implausible driver.
const (
	bullGrowthFactor = 1.30
	bearGrowthFactor = 0.75
	bullGrowthCap    = 0.40
	bearGrowthFloor  = 0.01
	marginShift      = 0.02
	marginCap        = 0.60
	marginFloor      = 0.05
	terminalShift    = 0.005
)

// DeriveScenarios produces base, bull and bear cases from the base values.
// Bull strictly dominates base which strictly dominates bear on growth, as
// long as the base growth is inside the caps.
func DeriveScenarios(base map[string]float64) map[string]Scenario {
	return map[string]Scenario{
		"base": {Name: "Base", Values: copyValues(base)},
		"bull": {Name: "Bull", Values: perturb(base, 1)},
		"bear": {Name: "Bear", Values: perturb(base, -1)},
	}
}

func perturb(base map[string]float64, direction int) map[string]float64 {
	out := copyValues(base)

	for k, g := range out {
		if k != "revenue_growth" && !strings.HasPrefix(k, "revenue_growth_y") {
			continue
		}
		if direction > 0 {
			g *= bullGrowthFactor
			if g > bullGrowthCap {
				g = bullGrowthCap
			}
		} else {
			g *= bearGrowthFactor
			if g < bearGrowthFloor {
				g = bearGrowthFloor
			}
		}
		out[k] = g
	}

	if m, ok := out["ebitda_margin"]; ok {
		m += float64(direction) * marginShift
		if m > marginCap {
			m = marginCap
		}
		if m < marginFloor {
			m = marginFloor
		}
		out["ebitda_margin"] = m
	}

	if t, ok := out["terminal_growth"]; ok {
		out["terminal_growth"] = t + float64(direction)*terminalShift
	}

	return out
}

func copyValues(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
