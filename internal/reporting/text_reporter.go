package reporting

import (
	_ "embed" // use go embed to import template
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/gookit/color"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/observability"
)

var (
	highTheme   = color.New(color.FgLightWhite, color.BgRed)
	mediumTheme = color.New(color.FgBlack, color.BgYellow)
	lowTheme    = color.New(color.FgWhite, color.BgBlack)

	//go:embed text.tmpl
	textTemplate string
)

// TextReporter writes a human-readable listing, optionally colorized. Each
// Write renders one scan immediately.
type TextReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	tmpl   *template.Template
	mu     sync.Mutex
}

type checkCount struct {
	Check schemas.Check
	Count int
}

type textData struct {
	*schemas.ScanResult
	Counts []checkCount
}

// NewTextReporter creates a text reporter.
func NewTextReporter(writer io.WriteCloser, enableColor bool) *TextReporter {
	return &TextReporter{
		writer: writer,
		logger: observability.GetLogger().Named("text_reporter"),
		tmpl:   template.Must(template.New("tainttrace").Funcs(textFuncMap(enableColor)).Parse(textTemplate)),
	}
}

func textFuncMap(enableColor bool) template.FuncMap {
	severity := func(c schemas.Check) string {
		return strings.ToUpper(string(schemas.SeverityOf(c)))
	}
	if enableColor {
		return template.FuncMap{
			"highlight": highlight,
			"severity":  severity,
			"danger":    color.Danger.Render,
			"notice":    color.Notice.Render,
			"success":   color.Success.Render,
		}
	}
	// Without color the helpers return their input untouched.
	return template.FuncMap{
		"highlight": func(c schemas.Check) string { return string(c) },
		"severity":  severity,
		"danger":    fmt.Sprint,
		"notice":    fmt.Sprint,
		"success":   fmt.Sprint,
	}
}

// highlight renders the check name in the theme of its severity.
func highlight(c schemas.Check) string {
	switch schemas.SeverityOf(c) {
	case schemas.SeverityHigh:
		return highTheme.Sprint(string(c))
	case schemas.SeverityMedium:
		return mediumTheme.Sprint(string(c))
	default:
		return lowTheme.Sprint(string(c))
	}
}

// Write renders result.
func (r *TextReporter) Write(result *schemas.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make([]checkCount, 0)
	for check, n := range result.CountByCheck() {
		counts = append(counts, checkCount{Check: check, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Check < counts[j].Check })

	if err := r.tmpl.Execute(r.writer, textData{ScanResult: result, Counts: counts}); err != nil {
		r.logger.Error("Failed to render text report", zap.Error(err))
		return fmt.Errorf("failed to render text report: %w", err)
	}
	return nil
}

// Close closes the output writer.
func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return closeWriter(r.writer, nil, "text")
}
