package qa

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Workbook error markers that indicate a broken formula chain.
var formulaErrorMarkers = []string{"#REF!", "#DIV/0!", "#VALUE!", "#NAME?", "#NUM!", "#N/A"}

// requiredSheets must exist in every delivered workbook.
var requiredSheets = []string{"COVER", "ASSUMPTIONS", "DASHBOARD"}

// presentationSheets are exempt from the freeze-pane requirement.
var presentationSheets = map[string]bool{
	"COVER":     true,
	"DASHBOARD": true,
}

// Auditor runs the workbook quality checks.
type Auditor struct {
	logger *zap.Logger
}

// NewAuditor creates an Auditor.
func NewAuditor(logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{logger: logger}
}

type checker struct {
	name string
	run  func(f *excelize.File) []Issue
}

// Audit opens the workbook at path and runs every check. The report records
// findings only; it never blocks delivery.
func (a *Auditor) Audit(path string) (*Report, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	checks := []checker{
		{"formula_errors", a.checkFormulaErrors},
		{"charts", a.checkCharts},
		{"formatting", a.checkFormatting},
		{"structure", a.checkStructure},
	}

	report := &Report{ChecksRun: len(checks)}
	for _, c := range checks {
		issues := c.run(f)
		if len(issues) == 0 {
			report.ChecksPassed++
		} else {
			a.logger.Debug("workbook check found issues",
				zap.String("check", c.name), zap.Int("count", len(issues)))
		}
		report.Issues = append(report.Issues, issues...)
	}
	report.Passed = len(report.Issues) == 0
	return report, nil
}

// checkFormulaErrors scans every cached cell value for spreadsheet error
// markers.
func (a *Auditor) checkFormulaErrors(f *excelize.File) []Issue {
	var issues []Issue
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for ri, row := range rows {
			for ci, val := range row {
				if !hasErrorMarker(val) {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(ci+1, ri+1)
				issues = append(issues, Issue{
					Category: CategoryFormula,
					Severity: SeverityError,
					Sheet:    sheet,
					Cell:     cell,
					Message:  fmt.Sprintf("cell contains error value %q", val),
					Fixable:  false,
				})
			}
		}
	}
	return issues
}

func hasErrorMarker(val string) bool {
	for _, m := range formulaErrorMarkers {
		if strings.Contains(val, m) {
			return true
		}
	}
	return false
}

// checkCharts requires at least one chart on the dashboard, and every chart
// to carry a title and at least one data series.
func (a *Auditor) checkCharts(f *excelize.File) []Issue {
	var issues []Issue
	total := 0
	for _, sheet := range f.GetSheetList() {
		charts, err := f.GetCharts(sheet)
		if err != nil {
			continue
		}
		total += len(charts)
		for i, ch := range charts {
			if len(ch.Series) == 0 {
				issues = append(issues, Issue{
					Category: CategoryChart,
					Severity: SeverityError,
					Sheet:    sheet,
					Message:  fmt.Sprintf("chart %d has no data series", i+1),
					Fixable:  false,
				})
			}
			if chartTitle(ch) == "" {
				issues = append(issues, Issue{
					Category: CategoryChart,
					Severity: SeverityWarning,
					Sheet:    sheet,
					Message:  fmt.Sprintf("chart %d has no title", i+1),
					Fixable:  false,
				})
			}
		}
	}
	if total == 0 {
		issues = append(issues, Issue{
			Category: CategoryChart,
			Severity: SeverityWarning,
			Sheet:    "DASHBOARD",
			Message:  "workbook has no charts",
			Fixable:  false,
		})
	}
	return issues
}

func chartTitle(ch excelize.Chart) string {
	var b strings.Builder
	for _, run := range ch.Title {
		b.WriteString(run.Text)
	}
	return strings.TrimSpace(b.String())
}

// checkFormatting requires hidden gridlines everywhere and frozen header
// panes on data sheets.
func (a *Auditor) checkFormatting(f *excelize.File) []Issue {
	var issues []Issue
	for _, sheet := range f.GetSheetList() {
		view, err := f.GetSheetView(sheet, 0)
		if err == nil && (view.ShowGridLines == nil || *view.ShowGridLines) {
			issues = append(issues, Issue{
				Category: CategoryFormatting,
				Severity: SeverityWarning,
				Sheet:    sheet,
				Message:  "gridlines are visible",
				Fixable:  true,
			})
		}

		if presentationSheets[strings.ToUpper(sheet)] {
			continue
		}
		panes, err := f.GetPanes(sheet)
		if err != nil || !panes.Freeze {
			issues = append(issues, Issue{
				Category: CategoryFormatting,
				Severity: SeverityWarning,
				Sheet:    sheet,
				Message:  "header panes are not frozen",
				Fixable:  true,
			})
		}
	}
	return issues
}

// checkStructure requires the standard sheet skeleton.
func (a *Auditor) checkStructure(f *excelize.File) []Issue {
	present := map[string]bool{}
	for _, sheet := range f.GetSheetList() {
		present[strings.ToUpper(sheet)] = true
	}

	var issues []Issue
	for _, want := range requiredSheets {
		if !present[want] {
			issues = append(issues, Issue{
				Category: CategoryStructure,
				Severity: SeverityError,
				Sheet:    want,
				Message:  fmt.Sprintf("required sheet %s is missing", want),
				Fixable:  false,
			})
		}
	}
	return issues
}
