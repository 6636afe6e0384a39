package planning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveScenariosOrdering(t *testing.T) {
	base := map[string]float64{
		"revenue_growth":  0.10,
		"ebitda_margin":   0.25,
		"terminal_growth": 0.025,
	}
	scenarios := DeriveScenarios(base)
	require.Len(t, scenarios, 3)

	bull := scenarios["bull"].Values
	bear := scenarios["bear"].Values
	mid := scenarios["base"].Values

	assert.Greater(t, bull["revenue_growth"], mid["revenue_growth"])
	assert.Less(t, bear["revenue_growth"], mid["revenue_growth"])
	assert.Greater(t, bull["ebitda_margin"], mid["ebitda_margin"])
	assert.Less(t, bear["ebitda_margin"], mid["ebitda_margin"])
	assert.Greater(t, bull["terminal_growth"], mid["terminal_growth"])
	assert.Less(t, bear["terminal_growth"], mid["terminal_growth"])

	assert.InDelta(t, 0.13, bull["revenue_growth"], 0.0001)
	assert.InDelta(t, 0.075, bear["revenue_growth"], 0.0001)
}

func TestDeriveScenariosScalesGrowthSchedule(t *testing.T) {
	base := map[string]float64{
		"revenue_growth":    0.10,
		"revenue_growth_y1": 0.10,
		"revenue_growth_y3": 0.09,
		"revenue_growth_y5": 0.08,
	}
	scenarios := DeriveScenarios(base)

	bull := scenarios["bull"].Values
	bear := scenarios["bear"].Values
	assert.InDelta(t, 0.13, bull["revenue_growth_y1"], 0.0001)
	assert.InDelta(t, 0.117, bull["revenue_growth_y3"], 0.0001)
	assert.InDelta(t, 0.06, bear["revenue_growth_y5"], 0.0001)

	// Scaling preserves the deceleration ordering in both cases.
	assert.Greater(t, bull["revenue_growth_y1"], bull["revenue_growth_y5"])
	assert.Greater(t, bear["revenue_growth_y1"], bear["revenue_growth_y5"])
}

func TestDeriveScenariosRespectsBounds(t *testing.T) {
	base := map[string]float64{
		"revenue_growth": 0.38,
		"ebitda_margin":  0.59,
	}
	scenarios := DeriveScenarios(base)
	assert.Equal(t, bullGrowthCap, scenarios["bull"].Values["revenue_growth"])
	assert.Equal(t, marginCap, scenarios["bull"].Values["ebitda_margin"])

	low := map[string]float64{
		"revenue_growth": 0.01,
		"ebitda_margin":  0.05,
	}
	scenarios = DeriveScenarios(low)
	assert.Equal(t, bearGrowthFloor, scenarios["bear"].Values["revenue_growth"])
	assert.Equal(t, marginFloor, scenarios["bear"].Values["ebitda_margin"])
}

func TestDeriveScenariosDoesNotMutateBase(t *testing.T) {
	base := map[string]float64{"revenue_growth": 0.10, "wacc": 0.09}
	_ = DeriveScenarios(base)
	assert.Equal(t, 0.10, base["revenue_growth"])

	// Drivers without perturbation rules carry over unchanged.
	scenarios := DeriveScenarios(base)
	assert.Equal(t, 0.09, scenarios["bull"].Values["wacc"])
	assert.Equal(t, 0.09, scenarios["bear"].Values["wacc"])
}
