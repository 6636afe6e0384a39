package qa

// Category groups issues by which checker raised them.
type Category string

const (
	CategoryFormula    Category = "formula"
	CategoryChart      Category = "chart"
	CategoryFormatting Category = "formatting"
	CategoryStructure  Category = "structure"
)

// Severity ranks an issue. Errors would mislead a reader of the workbook;
// warnings are polish.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding from the workbook audit.
type Issue struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Sheet    string   `json:"sheet,omitempty"`
	Cell     string   `json:"cell,omitempty"`
	Message  string   `json:"message"`
	Fixable  bool     `json:"fixable"`
}

// Report is the outcome of auditing one workbook.
type Report struct {
	Passed       bool    `json:"passed"`
	ChecksRun    int     `json:"checks_run"`
	ChecksPassed int     `json:"checks_passed"`
	Issues       []Issue `json:"issues"`
	FixedPath    string  `json:"fixed_path,omitempty"`
}

// ErrorCount returns the number of error-severity issues.
func (r *Report) ErrorCount() int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			n++
		}
	}
	return n
}

// FixableCount returns the number of issues the auto-fixer can address.
func (r *Report) FixableCount() int {
	n := 0
	for _, is := range r.Issues {
		if is.Fixable {
			n++
		}
	}
	return n
}
