package qa

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// AutoFix applies the fixable formatting issues from a report and saves the
// repaired workbook next to the original with a _fixed suffix. It returns the
// new path and the number of issues it addressed. Non-fixable issues are left
// for the report.
func (a *Auditor) AutoFix(path string, report *Report) (string, int, error) {
	if report.FixableCount() == 0 {
		return "", 0, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open workbook for repair: %w", err)
	}
	defer f.Close()

	fixed := 0
	changed := false
	for _, issue := range report.Issues {
		if !issue.Fixable || issue.Category != CategoryFormatting {
			continue
		}
		switch {
		case strings.Contains(issue.Message, "gridlines"):
			if err := hideGridlines(f, issue.Sheet); err != nil {
				a.logger.Warn("gridline fix failed",
					zap.String("sheet", issue.Sheet), zap.Error(err))
				continue
			}
			fixed++
		case strings.Contains(issue.Message, "frozen"):
			if err := freezeHeader(f, issue.Sheet); err != nil {
				a.logger.Warn("freeze pane fix failed",
					zap.String("sheet", issue.Sheet), zap.Error(err))
				continue
			}
			fixed++
		}
		changed = true
	}
	if !changed {
		return "", 0, nil
	}

	fixedPath := strings.TrimSuffix(path, ".xlsx") + "_fixed.xlsx"
	if err := f.SaveAs(fixedPath); err != nil {
		return "", 0, fmt.Errorf("failed to save repaired workbook: %w", err)
	}
	report.FixedPath = fixedPath
	return fixedPath, fixed, nil
}

func hideGridlines(f *excelize.File, sheet string) error {
	show := false
	return f.SetSheetView(sheet, 0, &excelize.ViewOptions{ShowGridLines: &show})
}

// freezeHeader freezes the standard two header rows and label columns so
// scrolling keeps the row and column captions in view.
func freezeHeader(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      4,
		TopLeftCell: "C5",
		ActivePane:  "bottomRight",
	})
}
