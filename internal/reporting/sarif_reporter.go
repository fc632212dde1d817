// internal/reporting/sarif_reporter.go
package reporting

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/observability"
	"github.com/xkilldash9x/tainttrace/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "tainttrace"
	ToolInfoURI  = "https://github.com/xkilldash9x/tainttrace"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	rulePrefix   = "TAINTTRACE-"
)

// ruleIDSanitizer replaces characters not allowed in SARIF rule IDs,
// collapsing consecutive sequences into a single hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the rule index.
	mu sync.Mutex
	// ruleIndex maps a check to the position of its rule in the driver.
	ruleIndex map[schemas.Check]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						// Empty slices (not nil) for proper JSON marshalling.
						Rules: []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:    writer,
		logger:    observability.GetLogger().Named("sarif_reporter"),
		log:       log,
		ruleIndex: make(map[schemas.Check]int),
	}
}

// Write converts the findings of a scan into SARIF results and records the
// scan itself as an invocation.
func (r *SARIFReporter) Write(result *schemas.ScanResult) error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	for _, finding := range result.Findings {
		index, ruleID := r.ensureRule(finding.Check)

		sarifResult := &sarif.Result{
			RuleID:    ruleID,
			RuleIndex: index,
			Message:   &sarif.Message{Text: pString(finding.Message)},
			Level:     levelOf(schemas.SeverityOf(finding.Check)),
			Locations: []*sarif.Location{createLocation(finding)},
		}
		fp, err := Fingerprint(finding)
		if err != nil {
			return fmt.Errorf("failed to fingerprint finding at %s: %w", finding.Location(), err)
		}
		sarifResult.PartialFingerprints = map[string]string{FingerprintVersion: fp}
		run.Results = append(run.Results, sarifResult)
	}
	run.Invocations = append(run.Invocations, createInvocation(result))

	if len(result.Findings) > 0 {
		r.logger.Debug("Wrote findings to SARIF buffer",
			zap.Int("findings_count", len(result.Findings)),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Info("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	if err := closeWriter(r.writer, encoder.Encode(r.log), "SARIF"); err != nil {
		r.logger.Error("Failed to write SARIF report", zap.Error(err))
		return err
	}
	return nil
}

// RuleID returns the SARIF rule ID of a check, e.g. TAINTTRACE-SQL-INJECTION.
func RuleID(check schemas.Check) string {
	name := strings.ToUpper(string(check))
	name = strings.Trim(ruleIDSanitizer.ReplaceAllString(name, "-"), "-")
	if name == "" {
		name = "UNKNOWN-VULNERABILITY"
	}
	return rulePrefix + name
}

// ensureRule returns the index and ID of the rule for check, registering it
// on first use. Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(check schemas.Check) (int, string) {
	ruleID := RuleID(check)
	if index, ok := r.ruleIndex[check]; ok {
		return index, ruleID
	}

	driver := r.log.Runs[0].Tool.Driver
	severity := schemas.SeverityOf(check)
	properties := sarif.PropertyBag{
		"tags":      []string{"security", "taint"},
		"precision": "medium",
		"severity":  string(severity),
	}
	if cwe := schemas.CWEOf(check); cwe != "" {
		properties["CWE"] = []string{cwe}
	}

	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:                   ruleID,
		Name:                 pString(string(check)),
		ShortDescription:     &sarif.MultiformatMessageString{Text: pString(string(check))},
		FullDescription:      &sarif.MultiformatMessageString{Text: pString(describe(check))},
		DefaultConfiguration: &sarif.ReportingConfiguration{Level: levelOf(severity)},
		Properties:           &properties,
	})
	index := len(driver.Rules) - 1
	r.ruleIndex[check] = index
	r.logger.Debug("Registering new SARIF rule definition", zap.String("rule_id", ruleID))
	return index, ruleID
}

func describe(check schemas.Check) string {
	switch check {
	case schemas.CheckDangerouslySetInnerHTML, schemas.CheckEvalUsage, schemas.CheckDirectDOMManipulation:
		return fmt.Sprintf("%s: a risky React construct that can execute or render user input.", check)
	default:
		return fmt.Sprintf("%s: untrusted request data reaches a dangerous call without sanitization.", check)
	}
}

// createLocation converts a finding position into a SARIF location. Finding
// columns are 0-based, SARIF columns 1-based.
func createLocation(f schemas.Finding) *sarif.Location {
	region := &sarif.Region{StartLine: f.Line, StartColumn: f.Column + 1}
	if f.Snippet != "" {
		region.Snippet = &sarif.ArtifactContent{Text: pString(f.Snippet)}
	}
	return &sarif.Location{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(toURI(f.File))},
			Region:           region,
		},
	}
}

func createInvocation(result *schemas.ScanResult) *sarif.Invocation {
	inv := &sarif.Invocation{
		ExecutionSuccessful: true,
		StartTimeUTC:        pString(result.StartedAt.UTC().Format(time.RFC3339)),
		EndTimeUTC:          pString(result.FinishedAt.UTC().Format(time.RFC3339)),
		Properties: &sarif.PropertyBag{
			"scanId":       result.ScanID,
			"filesScanned": result.FilesScanned,
		},
	}
	for _, fe := range result.Errors {
		inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, &sarif.Notification{
			Message: &sarif.Message{Text: pString(fe.Error)},
			Level:   sarif.LevelWarning,
			Locations: []*sarif.Location{{
				PhysicalLocation: &sarif.PhysicalLocation{
					ArtifactLocation: &sarif.ArtifactLocation{URI: pString(toURI(fe.File))},
				},
			}},
		})
	}
	return inv
}

// toURI turns an OS path into the forward-slash form SARIF viewers expect.
func toURI(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// levelOf converts a severity to the SARIF standard.
func levelOf(severity schemas.Severity) sarif.Level {
	switch severity {
	case schemas.SeverityHigh:
		return sarif.LevelError
	case schemas.SeverityMedium:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
