package schemas

import "time"

// Language identifies the front end used to analyze a source file.
type Language string

const (
	LanguagePython Language = "python"
	LanguageJSX    Language = "jsx"
)

// FileError records a file that could not be analyzed. It is reported
// alongside findings instead of aborting the whole scan.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// ScanResult is everything produced by one run of the scan engine.
type ScanResult struct {
	ScanID       string      `json:"scan_id"`
	Targets      []string    `json:"targets"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
	FilesScanned int         `json:"files_scanned"`
	Findings     []Finding   `json:"findings"`
	Errors       []FileError `json:"errors,omitempty"`
}

// Duration reports how long the scan took.
func (r *ScanResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// CountByCheck tallies findings per check.
func (r *ScanResult) CountByCheck() map[Check]int {
	counts := make(map[Check]int)
	for _, f := range r.Findings {
		counts[f.Check]++
	}
	return counts
}
