package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCAGR(t *testing.T) {
	tests := []struct {
		name    string
		revenue []float64
		want    float64
	}{
		{"steady growth", []float64{121, 110, 100}, 0.1},
		{"too short", []float64{100}, defaultGrowth},
		{"empty", nil, defaultGrowth},
		{"zero earliest", []float64{100, 50, 0}, defaultGrowth},
		{"negative latest", []float64{-10, 50, 100}, defaultGrowth},
		{"clamped high", []float64{1000, 100}, maxGrowth},
		{"clamped low", []float64{10, 100}, minGrowth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CAGR(tt.revenue), 0.001)
		})
	}
}

func TestCAGRAlwaysInBounds(t *testing.T) {
	histories := [][]float64{
		{500, 1, 1}, {1, 500}, {3, 2, 1}, {1, 2, 3}, {100, 100, 100},
	}
	for _, h := range histories {
		g := CAGR(h)
		assert.GreaterOrEqual(t, g, minGrowth)
		assert.LessOrEqual(t, g, maxGrowth)
	}
}

func TestEBITDAMargin(t *testing.T) {
	tests := []struct {
		name    string
		revenue []float64
		ebitda  []float64
		want    float64
	}{
		{"simple average", []float64{100, 100}, []float64{20, 30}, 0.25},
		{"uneven lengths use paired years", []float64{100, 100, 100}, []float64{10}, 0.1},
		{"empty", nil, nil, defaultMargin},
		{"zero revenue skipped", []float64{0, 100}, []float64{50, 20}, 0.2},
		{"all zero revenue", []float64{0, 0}, []float64{10, 10}, defaultMargin},
		{"clamped high", []float64{100}, []float64{90}, maxMargin},
		{"clamped low", []float64{100}, []float64{-10}, minMargin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EBITDAMargin(tt.revenue, tt.ebitda), 0.001)
		})
	}
}

func TestDebtToEBITDA(t *testing.T) {
	assert.InDelta(t, 4.0, DebtToEBITDA(100, []float64{25}), 0.001)
	assert.Zero(t, DebtToEBITDA(100, nil))
	assert.Zero(t, DebtToEBITDA(100, []float64{0}))
	assert.Zero(t, DebtToEBITDA(100, []float64{-5}))
	assert.Zero(t, DebtToEBITDA(0, []float64{25}))
}
