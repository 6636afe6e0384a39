package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/fintrustlabs/modeld/internal/analysis"
	"github.com/fintrustlabs/modeld/internal/marketdata"
	"github.com/fintrustlabs/modeld/internal/planning"
)

const (
	sheetCover      = "COVER"
	sheetAssumption = "ASSUMPTIONS"
	sheetScenarios  = "SCENARIOS"
	sheetComps      = "COMPS"
	sheetDashboard  = "DASHBOARD"

	forecastYears = 5
)

// Renderer writes financial model workbooks.
type Renderer struct {
	outputDir string
	logger    *zap.Logger
}

// NewRenderer creates a renderer writing into outputDir, creating it when
// missing.
func NewRenderer(outputDir string, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &Renderer{outputDir: outputDir, logger: logger}, nil
}

// Input is everything the renderer needs for one workbook.
type Input struct {
	Company     *marketdata.CompanyData
	Rec         analysis.Recommendation
	Assumptions planning.AssumptionSet
	Provided    map[string]float64
}

// Render builds the workbook and returns its path. The layout always
// includes the cover, assumptions, model, scenarios and dashboard sheets,
// plus a comparables sheet when peer data exists.
func (r *Renderer) Render(in Input) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	values := mergedValues(in.Assumptions.Values, in.Provided)

	if err := f.SetSheetName("Sheet1", sheetCover); err != nil {
		return "", fmt.Errorf("failed to name cover sheet: %w", err)
	}

	modelSheet := modelSheetName(in.Rec.ModelType)
	sheets := []string{sheetAssumption, modelSheet, sheetScenarios}
	if len(in.Assumptions.Peers) > 0 {
		sheets = append(sheets, sheetComps)
	}
	sheets = append(sheets, sheetDashboard)
	for _, name := range sheets {
		if _, err := f.NewSheet(name); err != nil {
			return "", fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	st, err := newStyles(f)
	if err != nil {
		return "", err
	}

	if err := r.buildCover(f, st, in); err != nil {
		return "", err
	}
	if err := r.buildAssumptions(f, st, in, values); err != nil {
		return "", err
	}
	if err := r.buildModel(f, st, modelSheet, in, values); err != nil {
		return "", err
	}
	if err := r.buildScenarios(f, st, in); err != nil {
		return "", err
	}
	if len(in.Assumptions.Peers) > 0 {
		if err := r.buildComps(f, st, in); err != nil {
			return "", err
		}
	}
	if err := r.buildDashboard(f, st, in, values); err != nil {
		return "", err
	}

	if err := r.applyViewDefaults(f); err != nil {
		return "", err
	}

	if idx, err := f.GetSheetIndex(sheetCover); err == nil {
		f.SetActiveSheet(idx)
	}

	path := filepath.Join(r.outputDir, workbookName(in.Company.CompanyName))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	r.logger.Info("workbook rendered",
		zap.String("path", path),
		zap.String("model_type", string(in.Rec.ModelType)))
	return path, nil
}

func workbookName(company string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, company)
	if slug == "" {
		slug = "Company"
	}
	return fmt.Sprintf("%s_Model_%s.xlsx", slug, time.Now().UTC().Format("20060102_150405"))
}

func modelSheetName(mt analysis.ModelType) string {
	switch mt {
	case analysis.ModelDCF:
		return "DCF"
	case analysis.ModelLBO:
		return "LBO"
	case analysis.ModelFPA:
		return "FP&A"
	default:
		return "3-STATEMENT"
	}
}

// mergedValues overlays user-provided values on the derived assumptions.
func mergedValues(base, provided map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range provided {
		out[k] = v
	}
	return out
}

// styles is the shared style set for all sheets.
type styles struct {
	title   int
	section int
	header  int
	label   int
	number  int
	percent int
	input   int
}

func newStyles(f *excelize.File) (*styles, error) {
	title, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 18, Color: "1F4E79"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build styles: %w", err)
	}
	section, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E79"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build styles: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build styles: %w", err)
	}
	label, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build styles: %w", err)
	}
	numFmt := "#,##0.0"
	number, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to build styles: %w", err)
	}
	pctFmt := "0.0%"
	percent, err := f.NewStyle(&excelize.Style{CustomNumFmt: &pctFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to build styles: %w", err)
	}
	input, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "0000FF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFF2CC"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build styles: %w", err)
	}
	return &styles{
		title:   title,
		section: section,
		header:  header,
		label:   label,
		number:  number,
		percent: percent,
		input:   input,
	}, nil
}

// applyViewDefaults hides gridlines everywhere and freezes header panes on
// the working sheets. The cover and dashboard stay unfrozen.
// tabColors distinguishes the presentation sheets from the working sheets.
var tabColors = map[string]string{
	sheetCover:     "1F4E79",
	sheetDashboard: "1F4E79",
	sheetScenarios: "2E75B6",
	sheetComps:     "2E75B6",
}

func (r *Renderer) applyViewDefaults(f *excelize.File) error {
	show := false
	for _, sheet := range f.GetSheetList() {
		if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{ShowGridLines: &show}); err != nil {
			return fmt.Errorf("failed to set sheet view on %s: %w", sheet, err)
		}
		if color, ok := tabColors[sheet]; ok {
			if err := f.SetSheetProps(sheet, &excelize.SheetPropsOptions{TabColorRGB: &color}); err != nil {
				return fmt.Errorf("failed to set tab color on %s: %w", sheet, err)
			}
		}
		if sheet == sheetCover || sheet == sheetDashboard {
			continue
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			XSplit:      2,
			YSplit:      4,
			TopLeftCell: "C5",
			ActivePane:  "bottomRight",
		}); err != nil {
			return fmt.Errorf("failed to freeze panes on %s: %w", sheet, err)
		}
	}
	return nil
}

func (r *Renderer) buildCover(f *excelize.File, st *styles, in Input) error {
	c := in.Company
	set := map[string]any{
		"B2":  fmt.Sprintf("%s (%s)", c.CompanyName, c.Ticker),
		"B4":  fmt.Sprintf("%s Financial Model", in.Rec.ModelType),
		"B6":  "Sector",
		"C6":  c.Sector,
		"B7":  "Industry",
		"C7":  c.Industry,
		"B8":  "Currency",
		"C8":  c.Currency,
		"B9":  "Data source",
		"C9":  c.Source,
		"B11": "Prepared",
		"C11": time.Now().UTC().Format("2 January 2006"),
		"B13": "Recommendation",
		"C13": in.Rec.Reasoning,
	}
	for cell, v := range set {
		if err := f.SetCellValue(sheetCover, cell, v); err != nil {
			return fmt.Errorf("failed to write cover: %w", err)
		}
	}
	if err := f.SetCellStyle(sheetCover, "B2", "B2", st.title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetCover, "B4", "B4", st.section); err != nil {
		return err
	}
	for _, cell := range []string{"B6", "B7", "B8", "B9", "B11", "B13"} {
		if err := f.SetCellStyle(sheetCover, cell, cell, st.label); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetCover, "B", "B", 18); err != nil {
		return err
	}
	return f.SetColWidth(sheetCover, "C", "C", 80)
}

func (r *Renderer) buildAssumptions(f *excelize.File, st *styles, in Input, values map[string]float64) error {
	if err := f.SetCellValue(sheetAssumption, "B2", "Model Assumptions"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetAssumption, "B2", "B2", st.title); err != nil {
		return err
	}
	headers := map[string]string{"B4": "Driver", "C4": "Value", "D4": "Rationale"}
	for cell, v := range headers {
		if err := f.SetCellValue(sheetAssumption, cell, v); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetAssumption, cell, cell, st.header); err != nil {
			return err
		}
	}

	row := 5
	for _, note := range in.Assumptions.Notes {
		labelCell := fmt.Sprintf("B%d", row)
		valueCell := fmt.Sprintf("C%d", row)
		noteCell := fmt.Sprintf("D%d", row)
		if err := f.SetCellValue(sheetAssumption, labelCell, driverLabel(note.Field)); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetAssumption, valueCell, values[note.Field]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetAssumption, noteCell, note.Explanation); err != nil {
			return err
		}
		style := st.number
		if isPercentDriver(note.Field) {
			style = st.percent
		}
		if _, userSet := in.Provided[note.Field]; userSet {
			style = st.input
		}
		if err := f.SetCellStyle(sheetAssumption, valueCell, valueCell, style); err != nil {
			return err
		}
		row++
	}

	if err := f.SetColWidth(sheetAssumption, "B", "B", 26); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetAssumption, "C", "C", 14); err != nil {
		return err
	}
	return f.SetColWidth(sheetAssumption, "D", "D", 90)
}

func (r *Renderer) buildScenarios(f *excelize.File, st *styles, in Input) error {
	if err := f.SetCellValue(sheetScenarios, "B2", "Scenario Analysis"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetScenarios, "B2", "B2", st.title); err != nil {
		return err
	}

	cases := []string{"bear", "base", "bull"}
	if err := f.SetCellValue(sheetScenarios, "B4", "Driver"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetScenarios, "B4", "B4", st.header); err != nil {
		return err
	}
	for i, name := range cases {
		cell, _ := excelize.CoordinatesToCellName(3+i, 4)
		sc := in.Assumptions.Scenarios[name]
		if err := f.SetCellValue(sheetScenarios, cell, sc.Name); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetScenarios, cell, cell, st.header); err != nil {
			return err
		}
	}

	drivers := []string{"revenue_growth", "ebitda_margin", "terminal_growth"}
	row := 5
	for _, d := range drivers {
		if _, ok := in.Assumptions.Scenarios["base"].Values[d]; !ok {
			continue
		}
		if err := f.SetCellValue(sheetScenarios, fmt.Sprintf("B%d", row), driverLabel(d)); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetScenarios, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), st.label); err != nil {
			return err
		}
		for i, name := range cases {
			cell, _ := excelize.CoordinatesToCellName(3+i, row)
			if err := f.SetCellValue(sheetScenarios, cell, in.Assumptions.Scenarios[name].Values[d]); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheetScenarios, cell, cell, st.percent); err != nil {
				return err
			}
		}
		row++
	}
	return f.SetColWidth(sheetScenarios, "B", "B", 26)
}

func (r *Renderer) buildComps(f *excelize.File, st *styles, in Input) error {
	if err := f.SetCellValue(sheetComps, "B2", "Comparable Companies"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetComps, "B2", "B2", st.title); err != nil {
		return err
	}

	headers := []string{"Company", "Ticker", "Mkt Cap", "EV/EBITDA", "EV/Rev", "P/E", "Rev Growth %", "EBITDA Margin %", "ROE %"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(2+i, 4)
		if err := f.SetCellValue(sheetComps, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetComps, cell, cell, st.header); err != nil {
			return err
		}
	}

	for pi, p := range in.Assumptions.Peers {
		row := 5 + pi
		cols := []any{p.Name, p.Ticker, p.MarketCap, p.EVEBITDA, p.EVRevenue, p.PERatio, p.RevenueGrowth, p.EBITDAMargin, p.ROE}
		for i, v := range cols {
			cell, _ := excelize.CoordinatesToCellName(2+i, row)
			if err := f.SetCellValue(sheetComps, cell, v); err != nil {
				return err
			}
			if i >= 2 {
				if err := f.SetCellStyle(sheetComps, cell, cell, st.number); err != nil {
					return err
				}
			}
		}
	}

	// Median row via formulas over the peer block.
	medianRow := 5 + len(in.Assumptions.Peers) + 1
	if err := f.SetCellValue(sheetComps, fmt.Sprintf("B%d", medianRow), "Median"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetComps, fmt.Sprintf("B%d", medianRow), fmt.Sprintf("B%d", medianRow), st.label); err != nil {
		return err
	}
	for col := 4; col <= 10; col++ {
		cell, _ := excelize.CoordinatesToCellName(col, medianRow)
		top, _ := excelize.CoordinatesToCellName(col, 5)
		bottom, _ := excelize.CoordinatesToCellName(col, 4+len(in.Assumptions.Peers))
		formula := fmt.Sprintf("MEDIAN(%s:%s)", top, bottom)
		if err := f.SetCellFormula(sheetComps, cell, formula); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetComps, cell, cell, st.number); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetComps, "B", "B", 28)
}

func (r *Renderer) buildDashboard(f *excelize.File, st *styles, in Input, values map[string]float64) error {
	if err := f.SetCellValue(sheetDashboard, "B2", fmt.Sprintf("%s Dashboard", in.Company.CompanyName)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetDashboard, "B2", "B2", st.title); err != nil {
		return err
	}

	metrics := []struct {
		label string
		value float64
		pct   bool
	}{
		{"Revenue CAGR", in.Rec.KeyMetrics["revenue_cagr"], true},
		{"EBITDA Margin", in.Rec.KeyMetrics["ebitda_margin"], true},
		{"Debt / EBITDA", in.Rec.KeyMetrics["debt_to_ebitda"], false},
		{fmt.Sprintf("Market Cap (%sM)", in.Company.Currency), in.Company.MarketCap, false},
	}
	for i, m := range metrics {
		labelCell := fmt.Sprintf("B%d", 4+i)
		valueCell := fmt.Sprintf("C%d", 4+i)
		if err := f.SetCellValue(sheetDashboard, labelCell, m.label); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetDashboard, labelCell, labelCell, st.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetDashboard, valueCell, m.value); err != nil {
			return err
		}
		style := st.number
		if m.pct {
			style = st.percent
		}
		if err := f.SetCellStyle(sheetDashboard, valueCell, valueCell, style); err != nil {
			return err
		}
	}

	// Chart source block: forecast years and projected revenue.
	forecast := revenueForecast(in.Company, values)
	if err := f.SetCellValue(sheetDashboard, "B10", "Year"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheetDashboard, "B11", "Revenue"); err != nil {
		return err
	}
	baseYear := time.Now().UTC().Year()
	for i, rev := range forecast {
		yearCell, _ := excelize.CoordinatesToCellName(3+i, 10)
		revCell, _ := excelize.CoordinatesToCellName(3+i, 11)
		if err := f.SetCellValue(sheetDashboard, yearCell, baseYear+i); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetDashboard, revCell, rev); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetDashboard, revCell, revCell, st.number); err != nil {
			return err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(2 + len(forecast))
	if err := f.AddChart(sheetDashboard, "B13", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$11", sheetDashboard),
			Categories: fmt.Sprintf("%s!$C$10:$%s$10", sheetDashboard, lastCol),
			Values:     fmt.Sprintf("%s!$C$11:$%s$11", sheetDashboard, lastCol),
		}},
		Title: []excelize.RichTextRun{{
			Text: fmt.Sprintf("Projected Revenue (%sM)", in.Company.Currency),
		}},
	}); err != nil {
		return fmt.Errorf("failed to add chart: %w", err)
	}
	return f.SetColWidth(sheetDashboard, "B", "B", 24)
}

// revenueForecast projects revenue forward from the latest reported year at
// the assumed growth rate.
func revenueForecast(c *marketdata.CompanyData, values map[string]float64) []float64 {
	base := values["base_revenue"]
	if base <= 0 {
		base = 100
	}
	growth := values["revenue_growth"]
	out := make([]float64, forecastYears)
	for i := range out {
		base *= 1 + growth
		out[i] = base
	}
	return out
}

var driverLabels = map[string]string{
	"revenue_growth":           "Revenue growth",
	"revenue_growth_y1":        "Revenue growth Y1",
	"revenue_growth_y2":        "Revenue growth Y2",
	"revenue_growth_y3":        "Revenue growth Y3",
	"revenue_growth_y4":        "Revenue growth Y4",
	"revenue_growth_y5":        "Revenue growth Y5",
	"ebitda_margin":            "EBITDA margin",
	"tax_rate":                 "Tax rate",
	"terminal_growth":          "Terminal growth",
	"wacc":                     "WACC",
	"risk_free_rate":           "Risk-free rate",
	"equity_risk_premium":      "Equity risk premium",
	"cost_of_debt":             "Cost of debt (pre-tax)",
	"capex_pct_revenue":        "Capex (% revenue)",
	"nwc_pct_revenue":          "NWC change (% revenue)",
	"depreciation_pct_revenue": "Depreciation (% revenue)",
	"entry_multiple":           "Entry multiple (x EBITDA)",
	"exit_multiple":            "Exit multiple (x EBITDA)",
	"txn_fees_pct":             "Transaction fees",
	"senior_leverage":          "Senior debt (x EBITDA)",
	"senior_rate":              "Senior rate",
	"sub_leverage":             "Sub debt (x EBITDA)",
	"sub_rate":                 "Sub rate",
	"amort_pct":                "Mandatory amortisation",
	"cash_sweep_pct":           "Cash sweep",
	"debt_pct":                 "Debt financing",
	"interest_rate":            "Interest rate",
	"hold_years":               "Hold period (years)",
	"dividend_payout":          "Dividend payout",
	"q1_weight":                "Q1 revenue weight",
	"q2_weight":                "Q2 revenue weight",
	"q3_weight":                "Q3 revenue weight",
	"q4_weight":                "Q4 revenue weight",
	"dso_days":                 "DSO (days)",
	"dpo_days":                 "DPO (days)",
	"inventory_days":           "Inventory (days)",
	"headcount_growth":         "Headcount growth",
	"opex_growth":              "Opex growth",
	"forecast_years":           "Forecast horizon (years)",
	"budget_months":            "Budget horizon (months)",
	"base_revenue":             "Base revenue",
	"base_ebitda":              "Base EBITDA",
}

func driverLabel(field string) string {
	if label, ok := driverLabels[field]; ok {
		return label
	}
	return field
}

var percentDrivers = map[string]bool{
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

func isPercentDriver(field string) bool { return percentDrivers[field] }
