package schemas

import "fmt"

// -- Finding Schemas --

// Check is the vulnerability category reported by an analyzer. The string
// values are the ones written to reports, so they must stay stable.
type Check string

// Checks produced by the Python taint engine.
const (
	CheckSQLInjection            Check = "SQL Injection"
	CheckCommandInjection        Check = "Command Injection"
	CheckInsecureDeserialization Check = "Insecure Deserialization"
	CheckXSS                     Check = "XSS"
	CheckUnknown                 Check = "Unknown Vulnerability"
)

// Checks produced by the JSX analyzer.
const (
	CheckDangerouslySetInnerHTML Check = "DangerouslySetInnerHTML"
	CheckEvalUsage               Check = "Eval Usage"
	CheckDirectDOMManipulation   Check = "Direct DOM Manipulation"
)

// Severity represents the severity level of a finding. The values are
// lowercase to align with database ENUMs.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// SeverityOf maps a check to the severity used by SARIF and text reports.
func SeverityOf(c Check) Severity {
	switch c {
	case CheckSQLInjection, CheckCommandInjection, CheckInsecureDeserialization:
		return SeverityHigh
	case CheckXSS, CheckDangerouslySetInnerHTML, CheckEvalUsage:
		return SeverityMedium
	case CheckDirectDOMManipulation:
		return SeverityInfo
	default:
		return SeverityLow
	}
}

// CWEOf returns the Common Weakness Enumeration identifier for a check, or
// an empty string when there is none.
func CWEOf(c Check) string {
	switch c {
	case CheckSQLInjection:
		return "CWE-89"
	case CheckCommandInjection:
		return "CWE-78"
	case CheckInsecureDeserialization:
		return "CWE-502"
	case CheckXSS, CheckDangerouslySetInnerHTML:
		return "CWE-79"
	case CheckEvalUsage:
		return "CWE-95"
	default:
		return ""
	}
}

// Finding is a single tainted-data-to-sink pairing. File, Check, Message,
// Line and Column form the persisted record; the remaining fields enrich
// SARIF, text output and the database row.
type Finding struct {
	File    string `json:"file"`
	Check   Check  `json:"check"`
	Message string `json:"message"`
	Line    int    `json:"line"`   // 1-based.
	Column  int    `json:"column"` // 0-based, in bytes.

	Sink     string   `json:"-"` // Source text of the sink callee, e.g. "cursor.execute".
	Snippet  string   `json:"-"` // Trimmed source line containing the sink.
	Language Language `json:"-"`
}

// Location formats the finding position as file:line:column.
func (f Finding) Location() string {
	return fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column)
}

// NewFinding builds the canonical finding for a check at a position, using
// the standard "Potential <check> detected." message.
func NewFinding(file string, check Check, line, column int) Finding {
	return Finding{
		File:    file,
		Check:   check,
		Message: fmt.Sprintf("Potential %s detected.", check),
		Line:    line,
		Column:  column,
	}
}
