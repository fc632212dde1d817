// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xkilldash9x/tainttrace/api/schemas"
)

// Reporter defines the interface for writing scan results to an output.
type Reporter interface {
	// Write adds the findings of a scan result to the report.
	Write(result *schemas.ScanResult) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// Option tunes a reporter created by New.
type Option func(*options)

type options struct {
	color bool
}

// WithColor enables ANSI colors in the text report. Other formats ignore it.
func WithColor(enabled bool) Option {
	return func(o *options) { o.color = enabled }
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath, toolVersion string, opts ...Option) (Reporter, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	format = strings.ToLower(format)
	switch format {
	case "json", "sarif", "text":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	// Each reporter takes ownership of the writer.
	switch format {
	case "sarif":
		return NewSARIFReporter(writer, toolVersion), nil
	case "text":
		return NewTextReporter(writer, o.color), nil
	default:
		return NewJSONReporter(writer), nil
	}
}

// closeWriter closes w and prefers encodeErr over the close error.
func closeWriter(w io.Closer, encodeErr error, format string) error {
	closeErr := w.Close()
	if encodeErr != nil {
		return fmt.Errorf("failed to encode %s output: %w", format, encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
