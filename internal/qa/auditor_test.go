package qa

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// writeWorkbook builds a minimal workbook for audit tests and returns its
// path. The mutate hook runs before saving.
func writeWorkbook(t *testing.T, mutate func(f *excelize.File)) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "COVER"))
	for _, sheet := range []string{"ASSUMPTIONS", "DASHBOARD"} {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	require.NoError(t, f.SetCellValue("DASHBOARD", "C10", 1))
	require.NoError(t, f.SetCellValue("DASHBOARD", "D10", 2))
	require.NoError(t, f.SetCellValue("DASHBOARD", "C11", 10))
	require.NoError(t, f.SetCellValue("DASHBOARD", "D11", 12))
	require.NoError(t, f.AddChart("DASHBOARD", "B13", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Categories: "DASHBOARD!$C$10:$D$10",
			Values:     "DASHBOARD!$C$11:$D$11",
		}},
		Title: []excelize.RichTextRun{{Text: "Revenue"}},
	}))

	show := false
	for _, sheet := range f.GetSheetList() {
		require.NoError(t, f.SetSheetView(sheet, 0, &excelize.ViewOptions{ShowGridLines: &show}))
	}
	require.NoError(t, f.SetPanes("ASSUMPTIONS", &excelize.Panes{
		Freeze: true, XSplit: 2, YSplit: 4, TopLeftCell: "C5", ActivePane: "bottomRight",
	}))

	if mutate != nil {
		mutate(f)
	}

	path := filepath.Join(t.TempDir(), "model.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestAuditCleanWorkbookPasses(t *testing.T) {
	path := writeWorkbook(t, nil)
	report, err := NewAuditor(zap.NewNop()).Audit(path)
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Equal(t, report.ChecksRun, report.ChecksPassed)
	assert.Empty(t, report.Issues)
}

func TestAuditReportInvariants(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		show := true
		_ = f.SetSheetView("ASSUMPTIONS", 0, &excelize.ViewOptions{ShowGridLines: &show})
		_ = f.SetCellValue("ASSUMPTIONS", "B5", "#REF!")
	})
	report, err := NewAuditor(zap.NewNop()).Audit(path)
	require.NoError(t, err)

	assert.False(t, report.Passed)
	assert.LessOrEqual(t, report.ChecksPassed, report.ChecksRun)
	assert.Equal(t, report.Passed, len(report.Issues) == 0)
	assert.Positive(t, report.ErrorCount())
}

func TestAuditDetectsFormulaErrors(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		_ = f.SetCellValue("ASSUMPTIONS", "C7", "#DIV/0!")
	})
	report, err := NewAuditor(zap.NewNop()).Audit(path)
	require.NoError(t, err)

	var found *Issue
	for i := range report.Issues {
		if report.Issues[i].Category == CategoryFormula {
			found = &report.Issues[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, SeverityError, found.Severity)
	assert.Equal(t, "ASSUMPTIONS", found.Sheet)
	assert.Equal(t, "C7", found.Cell)
	assert.False(t, found.Fixable)
}

func TestAuditDetectsMissingSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "COVER"))
	path := filepath.Join(t.TempDir(), "bare.xlsx")
	require.NoError(t, f.SaveAs(path))

	report, err := NewAuditor(zap.NewNop()).Audit(path)
	require.NoError(t, err)

	missing := map[string]bool{}
	for _, issue := range report.Issues {
		if issue.Category == CategoryStructure {
			missing[issue.Sheet] = true
		}
	}
	assert.True(t, missing["ASSUMPTIONS"])
	assert.True(t, missing["DASHBOARD"])
	assert.False(t, missing["COVER"])
}

func TestAuditDetectsChartProblems(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		_ = f.AddChart("DASHBOARD", "H13", &excelize.Chart{
			Type: excelize.Line,
			Series: []excelize.ChartSeries{{
				Categories: "DASHBOARD!$C$10:$D$10",
				Values:     "DASHBOARD!$C$11:$D$11",
			}},
		})
	})
	report, err := NewAuditor(zap.NewNop()).Audit(path)
	require.NoError(t, err)

	var untitled bool
	for _, issue := range report.Issues {
		if issue.Category == CategoryChart && issue.Severity == SeverityWarning {
			untitled = true
		}
	}
	assert.True(t, untitled)
}

func TestAutoFixRepairsFormattingIssues(t *testing.T) {
	// Three formatting defects: gridlines on two sheets plus a missing
	// freeze, all fixable.
	path := writeWorkbook(t, func(f *excelize.File) {
		show := true
		_ = f.SetSheetView("COVER", 0, &excelize.ViewOptions{ShowGridLines: &show})
		_ = f.SetSheetView("ASSUMPTIONS", 0, &excelize.ViewOptions{ShowGridLines: &show})
		_ = f.SetPanes("ASSUMPTIONS", &excelize.Panes{Freeze: false})
	})

	auditor := NewAuditor(zap.NewNop())
	report, err := auditor.Audit(path)
	require.NoError(t, err)
	require.Equal(t, 3, report.FixableCount())

	fixedPath, fixed, err := auditor.AutoFix(path, report)
	require.NoError(t, err)
	assert.Equal(t, 3, fixed)
	assert.Contains(t, fixedPath, "_fixed.xlsx")
	assert.Equal(t, fixedPath, report.FixedPath)

	after, err := auditor.Audit(fixedPath)
	require.NoError(t, err)
	for _, issue := range after.Issues {
		assert.NotEqual(t, CategoryFormatting, issue.Category, issue.Message)
	}
}

func TestAutoFixNoopWithoutFixableIssues(t *testing.T) {
	path := writeWorkbook(t, nil)
	auditor := NewAuditor(zap.NewNop())
	report, err := auditor.Audit(path)
	require.NoError(t, err)

	fixedPath, fixed, err := auditor.AutoFix(path, report)
	require.NoError(t, err)
	assert.Empty(t, fixedPath)
	assert.Zero(t, fixed)
}
