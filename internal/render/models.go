package render

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fintrustlabs/modeld/internal/analysis"
)

// buildModel writes the model sheet for the recommended type.
func (r *Renderer) buildModel(f *excelize.File, st *styles, sheet string, in Input, values map[string]float64) error {
	switch in.Rec.ModelType {
	case analysis.ModelDCF:
		return r.buildDCF(f, st, sheet, in, values)
	case analysis.ModelLBO:
		return r.buildLBO(f, st, sheet, in, values)
	case analysis.ModelFPA:
		return r.buildFPA(f, st, sheet, in, values)
	default:
		return r.buildThreeStatement(f, st, sheet, in, values)
	}
}

// sheetWriter batches cell writes so the builders read as layout tables
// instead of error-check ladders.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) value(cell string, v any) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellValue(w.sheet, cell, v)
}

func (w *sheetWriter) formula(cell, formula string) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellFormula(w.sheet, cell, formula)
}

func (w *sheetWriter) style(from, to string, style int) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, from, to, style)
}

// row writes label into column B and one value or formula per forecast year
// starting at column C. Formula strings are detected by their leading '='.
func (w *sheetWriter) row(rowNum int, label string, cells []any) {
	w.value(fmt.Sprintf("B%d", rowNum), label)
	for i, c := range cells {
		cell, _ := excelize.CoordinatesToCellName(3+i, rowNum)
		if s, ok := c.(string); ok && len(s) > 0 && s[0] == '=' {
			w.formula(cell, s[1:])
			continue
		}
		w.value(cell, c)
	}
}

func (w *sheetWriter) yearHeader(rowNum, years int) {
	w.value(fmt.Sprintf("B%d", rowNum), "Forecast year")
	for i := 0; i < years; i++ {
		cell, _ := excelize.CoordinatesToCellName(3+i, rowNum)
		w.value(cell, fmt.Sprintf("Year %d", i+1))
	}
}

// repeatFormula builds one formula per year column from a template where
// %s is replaced by the current column letter.
func repeatFormula(years int, template string) []any {
	out := make([]any, years)
	for i := 0; i < years; i++ {
		col, _ := excelize.ColumnNumberToName(3 + i)
		out[i] = fmt.Sprintf(template, col)
	}
	return out
}

// chainFormula builds a row where each column derives from the previous
// column of the same row; the first column gets the seed instead.
func chainFormula(years int, seed any, template string) []any {
	out := make([]any, years)
	out[0] = seed
	for i := 1; i < years; i++ {
		prev, _ := excelize.ColumnNumberToName(3 + i - 1)
		out[i] = fmt.Sprintf(template, prev)
	}
	return out
}

func (r *Renderer) writeDriverBlock(w *sheetWriter, st *styles, startRow int, drivers [][2]any) {
	for i, d := range drivers {
		row := startRow + i
		w.value(fmt.Sprintf("B%d", row), d[0])
		w.value(fmt.Sprintf("C%d", row), d[1])
		w.style(fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), st.label)
	}
}

func (r *Renderer) buildDCF(f *excelize.File, st *styles, sheet string, in Input, v map[string]float64) error {
	w := &sheetWriter{f: f, sheet: sheet}
	years := forecastYears

	w.value("B2", "Discounted Cash Flow")
	w.style("B2", "B2", st.title)

	w.yearHeader(4, years)
	w.style("B4", lastCell(years, 4), st.header)

	// Driver block sits below the grid so the forecast rows can reference
	// fixed cells.
	const driverRow = 18
	r.writeDriverBlock(w, st, driverRow, [][2]any{
		{"Revenue growth", v["revenue_growth"]},
		{"EBITDA margin", v["ebitda_margin"]},
		{"Tax rate", v["tax_rate"]},
		{"WACC", v["wacc"]},
		{"Terminal growth", v["terminal_growth"]},
		{"Capex % revenue", v["capex_pct_revenue"]},
		{"D&A % revenue", v["depreciation_pct_revenue"]},
		{"NWC % revenue", v["nwc_pct_revenue"]},
	})

	base := v["base_revenue"]
	if base <= 0 {
		base = 100
	}

	// Per-year growth schedule drives the revenue ramp; years without a
	// scheduled rate fall back to the headline growth driver.
	schedule := make([]float64, years)
	for i := range schedule {
		g, ok := v[fmt.Sprintf("revenue_growth_y%d", i+1)]
		if !ok {
			g = v["revenue_growth"]
		}
		schedule[i] = g
	}
	growthRow := make([]any, years)
	for i, g := range schedule {
		growthRow[i] = g
	}
	w.row(16, "Growth by year", growthRow)

	revenue := make([]any, years)
	revenue[0] = base * (1 + schedule[0])
	for i := 1; i < years; i++ {
		prev, _ := excelize.ColumnNumberToName(3 + i - 1)
		cur, _ := excelize.ColumnNumberToName(3 + i)
		revenue[i] = fmt.Sprintf("=%s5*(1+%s16)", prev, cur)
	}
	w.row(5, "Revenue", revenue)
	w.row(6, "EBITDA", repeatFormula(years, "=%[1]s5*$C$19"))
	w.row(7, "D&A", repeatFormula(years, "=%[1]s5*$C$24"))
	w.row(8, "EBIT", repeatFormula(years, "=%[1]s6-%[1]s7"))
	w.row(9, "Taxes", repeatFormula(years, "=%[1]s8*$C$20"))
	w.row(10, "NOPAT", repeatFormula(years, "=%[1]s8-%[1]s9"))
	w.row(11, "Capex", repeatFormula(years, "=%[1]s5*$C$23"))
	w.row(12, "NWC change", repeatFormula(years, "=%[1]s5*$C$25"))
	w.row(13, "Free cash flow", repeatFormula(years, "=%[1]s10+%[1]s7-%[1]s11-%[1]s12"))
	w.row(14, "Discount factor", repeatFormula(years, "=1/(1+$C$21)^(COLUMN(%[1]s14)-2)"))
	w.row(15, "PV of FCF", repeatFormula(years, "=%[1]s13*%[1]s14"))

	lastCol, _ := excelize.ColumnNumberToName(2 + years)
	w.value("B27", "Terminal value")
	w.formula("C27", fmt.Sprintf("%s13*(1+$C$22)/($C$21-$C$22)", lastCol))
	w.value("B28", "PV of terminal value")
	w.formula("C28", fmt.Sprintf("C27*%s14", lastCol))
	w.value("B29", "Enterprise value")
	w.formula("C29", fmt.Sprintf("SUM(C15:%s15)+C28", lastCol))
	w.style("B27", "B29", st.label)
	w.style("C27", "C29", st.number)

	r.styleGrid(w, st, 5, 15, years)
	w.style("B16", "B16", st.label)
	w.style("C16", lastCell(years, 16), st.percent)
	w.style("C18", "C25", st.percent)
	if w.err != nil {
		return fmt.Errorf("failed to build DCF sheet: %w", w.err)
	}
	return f.SetColWidth(sheet, "B", "B", 24)
}

func (r *Renderer) buildLBO(f *excelize.File, st *styles, sheet string, in Input, v map[string]float64) error {
	w := &sheetWriter{f: f, sheet: sheet}
	years := forecastYears

	w.value("B2", "Leveraged Buyout")
	w.style("B2", "B2", st.title)

	baseEBITDA := v["base_ebitda"]
	if baseEBITDA <= 0 {
		baseEBITDA = 25
	}

	// Sources and uses.
	r.writeDriverBlock(w, st, 4, [][2]any{
		{"LTM EBITDA", baseEBITDA},
		{"Entry multiple (x)", v["entry_multiple"]},
		{"Exit multiple (x)", v["exit_multiple"]},
		{"Debt financing", v["debt_pct"]},
		{"Interest rate", v["interest_rate"]},
		{"EBITDA growth", v["revenue_growth"]},
		{"Tax rate", v["tax_rate"]},
		{"Cash sweep", sweepPct(v)},
	})
	w.value("B12", "Purchase price")
	w.formula("C12", "C4*C5")
	w.value("B13", "Debt")
	w.formula("C13", "C12*C7")
	w.value("B14", "Sponsor equity")
	w.formula("C14", "C12-C13")
	w.style("B12", "B14", st.label)
	w.style("C12", "C14", st.number)

	// Debt schedule.
	w.yearHeader(16, years)
	w.style("B16", lastCell(years, 16), st.header)
	w.row(17, "EBITDA", chainFormula(years, "=C4*(1+$C$9)", "=%s17*(1+$C$9)"))
	w.row(18, "Opening debt", chainFormula(years, "=$C$13", "=%s21"))
	w.row(19, "Interest", repeatFormula(years, "=%[1]s18*$C$8"))
	w.row(20, "Cash for paydown", repeatFormula(years, "=MAX(0,(%[1]s17-%[1]s19)*(1-$C$10)*$C$11)"))
	w.row(21, "Closing debt", repeatFormula(years, "=MAX(0,%[1]s18-%[1]s20)"))

	lastCol, _ := excelize.ColumnNumberToName(2 + years)
	w.value("B23", "Exit enterprise value")
	w.formula("C23", fmt.Sprintf("%s17*$C$6", lastCol))
	w.value("B24", "Exit equity")
	w.formula("C24", fmt.Sprintf("C23-%s21", lastCol))
	w.value("B25", "Multiple of invested capital")
	w.formula("C25", "C24/C14")
	w.value("B26", "IRR")
	w.formula("C26", fmt.Sprintf("C25^(1/%d)-1", years))
	w.style("B23", "B26", st.label)
	w.style("C23", "C25", st.number)
	w.style("C26", "C26", st.percent)

	r.styleGrid(w, st, 17, 21, years)
	w.style("C7", "C11", st.percent)
	if w.err != nil {
		return fmt.Errorf("failed to build LBO sheet: %w", w.err)
	}
	return f.SetColWidth(sheet, "B", "B", 28)
}

func (r *Renderer) buildThreeStatement(f *excelize.File, st *styles, sheet string, in Input, v map[string]float64) error {
	w := &sheetWriter{f: f, sheet: sheet}
	years := forecastYears

	w.value("B2", "Integrated 3-Statement Model")
	w.style("B2", "B2", st.title)

	const driverRow = 24
	r.writeDriverBlock(w, st, driverRow, [][2]any{
		{"Revenue growth", v["revenue_growth"]},
		{"EBITDA margin", v["ebitda_margin"]},
		{"Tax rate", v["tax_rate"]},
		{"Capex % revenue", v["capex_pct_revenue"]},
		{"D&A % revenue", v["depreciation_pct_revenue"]},
		{"DSO (days)", v["dso_days"]},
		{"DPO (days)", v["dpo_days"]},
		{"Inventory (days)", v["inventory_days"]},
	})

	w.yearHeader(4, years)
	w.style("B4", lastCell(years, 4), st.header)

	base := v["base_revenue"]
	if base <= 0 {
		base = 100
	}

	// Income statement.
	w.row(5, "Revenue", chainFormula(years, base*(1+v["revenue_growth"]), "=%s5*(1+$C$24)"))
	w.row(6, "EBITDA", repeatFormula(years, "=%[1]s5*$C$25"))
	w.row(7, "D&A", repeatFormula(years, "=%[1]s5*$C$28"))
	w.row(8, "EBIT", repeatFormula(years, "=%[1]s6-%[1]s7"))
	w.row(9, "Taxes", repeatFormula(years, "=%[1]s8*$C$26"))
	w.row(10, "Net income", repeatFormula(years, "=%[1]s8-%[1]s9"))

	// Working capital.
	w.row(12, "Accounts receivable", repeatFormula(years, "=%[1]s5*$C$29/365"))
	w.row(13, "Inventory", repeatFormula(years, "=%[1]s5*$C$31/365"))
	w.row(14, "Accounts payable", repeatFormula(years, "=%[1]s5*$C$30/365"))
	w.row(15, "Net working capital", repeatFormula(years, "=%[1]s12+%[1]s13-%[1]s14"))

	// Cash flow.
	w.row(17, "Cash from operations", repeatFormula(years, "=%[1]s10+%[1]s7"))
	w.row(18, "Capex", repeatFormula(years, "=%[1]s5*$C$27"))
	w.row(19, "Free cash flow", repeatFormula(years, "=%[1]s17-%[1]s18"))

	r.styleGrid(w, st, 5, 19, years)
	w.style("C24", "C28", st.percent)
	if w.err != nil {
		return fmt.Errorf("failed to build 3-statement sheet: %w", w.err)
	}
	return f.SetColWidth(sheet, "B", "B", 26)
}

func (r *Renderer) buildFPA(f *excelize.File, st *styles, sheet string, in Input, v map[string]float64) error {
	w := &sheetWriter{f: f, sheet: sheet}
	months := 12

	w.value("B2", "FP&A Budget Plan")
	w.style("B2", "B2", st.title)

	const driverRow = 14
	r.writeDriverBlock(w, st, driverRow, [][2]any{
		{"Revenue growth (annual)", v["revenue_growth"]},
		{"EBITDA margin", v["ebitda_margin"]},
		{"Opex growth (annual)", v["opex_growth"]},
		{"Headcount growth (annual)", v["headcount_growth"]},
		{"Q1 revenue weight", quarterWeight(v, 1)},
		{"Q2 revenue weight", quarterWeight(v, 2)},
		{"Q3 revenue weight", quarterWeight(v, 3)},
		{"Q4 revenue weight", quarterWeight(v, 4)},
	})

	w.value("B4", "Month")
	for m := 0; m < months; m++ {
		cell, _ := excelize.CoordinatesToCellName(3+m, 4)
		w.value(cell, fmt.Sprintf("M%d", m+1))
	}
	w.style("B4", lastCell(months, 4), st.header)

	base := v["base_revenue"]
	if base <= 0 {
		base = 120
	}
	w.value("B11", "Prior-year revenue")
	w.value("C11", base)
	w.value("B12", "Annual revenue budget")
	w.formula("C12", "C11*(1+$C$14)")
	w.style("B11", "B12", st.label)
	w.style("C11", "C12", st.number)

	// Each month takes a third of its quarter's share of the annual budget.
	w.value("B5", "Revenue")
	for m := 0; m < months; m++ {
		cell, _ := excelize.CoordinatesToCellName(3+m, 5)
		w.formula(cell, fmt.Sprintf("$C$12*$C$%d/3", 18+m/3))
	}
	w.row(6, "Operating expenses", repeatFormula(months, "=%[1]s5*(1-$C$15)"))
	w.row(7, "EBITDA", repeatFormula(months, "=%[1]s5-%[1]s6"))
	w.row(8, "EBITDA margin", repeatFormula(months, "=%[1]s7/%[1]s5"))

	w.value("B10", "Cumulative revenue")
	w.formula("C10", "C5")
	for m := 1; m < months; m++ {
		cell, _ := excelize.CoordinatesToCellName(3+m, 10)
		prev, _ := excelize.ColumnNumberToName(3 + m - 1)
		cur, _ := excelize.ColumnNumberToName(3 + m)
		w.formula(cell, fmt.Sprintf("%s10+%s5", prev, cur))
	}

	r.styleGrid(w, st, 5, 10, months)
	w.style("C14", "C21", st.percent)
	if w.err != nil {
		return fmt.Errorf("failed to build FP&A sheet: %w", w.err)
	}
	return f.SetColWidth(sheet, "B", "B", 26)
}

// styleGrid applies the label style to row captions and the number format to
// the forecast cells.
func (r *Renderer) styleGrid(w *sheetWriter, st *styles, fromRow, toRow, cols int) {
	w.style(fmt.Sprintf("B%d", fromRow), fmt.Sprintf("B%d", toRow), st.label)
	lastCol, _ := excelize.ColumnNumberToName(2 + cols)
	w.style(fmt.Sprintf("C%d", fromRow), fmt.Sprintf("%s%d", lastCol, toRow), st.number)
}

func lastCell(cols, row int) string {
	cell, _ := excelize.CoordinatesToCellName(2+cols, row)
	return cell
}

// quarterWeight returns the seasonal revenue share for quarter q, defaulting
// to an even split when no phasing driver is present.
func quarterWeight(v map[string]float64, q int) float64 {
	if w, ok := v[fmt.Sprintf("q%d_weight", q)]; ok {
		return w
	}
	return 0.25
}

// sweepPct is the share of free cash flow directed to debt paydown.
func sweepPct(v map[string]float64) float64 {
	if s, ok := v["cash_sweep_pct"]; ok {
		return s
	}
	return 0.5
}
