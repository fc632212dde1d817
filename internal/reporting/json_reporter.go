package reporting

import (
	"io"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/observability"
)

// JSONReporter writes all findings as one indented JSON array of
// {file, check, message, line, column} records. It is thread safe.
type JSONReporter struct {
	writer   io.WriteCloser
	logger   *zap.Logger
	mu       sync.Mutex
	findings []schemas.Finding
}

// NewJSONReporter creates a reporter that writes the JSON array on Close.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{
		writer:   writer,
		logger:   observability.GetLogger().Named("json_reporter"),
		findings: []schemas.Finding{},
	}
}

// Write buffers the findings of result.
func (r *JSONReporter) Write(result *schemas.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = append(r.findings, result.Findings...)
	return nil
}

// Close writes the array and closes the output writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	err := closeWriter(r.writer, encoder.Encode(r.findings), "JSON")
	if err != nil {
		r.logger.Error("Failed to write JSON report", zap.Error(err))
		return err
	}
	r.logger.Debug("Wrote JSON report", zap.Int("findings_count", len(r.findings)))
	return nil
}
