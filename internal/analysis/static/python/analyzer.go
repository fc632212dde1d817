// Filename: python/analyzer.go
// Package python implements the taint analysis of Python (Django style)
// sources: request data flowing into query execution, process spawning,
// deserialization or raw responses without passing through a sanitizer.
package python

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/analysis/core"
	"github.com/xkilldash9x/tainttrace/internal/config"
)

// Analyzer is the Python front end of the scan engine. It is safe for
// concurrent use: each Analyze call parses and walks its file with its own
// state.
type Analyzer struct {
	*core.BaseAnalyzer
	rules *Classifier
}

var _ core.Analyzer = (*Analyzer)(nil)

// NewAnalyzer creates a Python analyzer using the given rule set.
func NewAnalyzer(cfg config.PythonRulesConfig, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		BaseAnalyzer: core.NewBaseAnalyzer("python", schemas.LanguagePython, logger),
		rules:        NewClassifier(cfg),
	}
}

// Analyze parses src and returns the findings in discovery order. A file
// with syntax errors returns an error wrapping ErrSyntax.
func (a *Analyzer) Analyze(ctx context.Context, file string, src []byte) ([]schemas.Finding, error) {
	a.Logger.Debug("Starting analysis of Python file", zap.String("filename", file), zap.Int("size_bytes", len(src)))

	tree, err := Parse(ctx, file, src)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeTree(tree), nil
}

// AnalyzeTree runs the taint walker over an already parsed file.
func (a *Analyzer) AnalyzeTree(tree *Tree) []schemas.Finding {
	registry := NewRegistry(tree)
	walker := newASTWalker(a.Logger, tree, a.rules, registry)
	findings := walker.WalkFile(make(VisitedSet))

	if len(findings) > 0 {
		a.Logger.Info("Analysis completed with findings",
			zap.String("filename", tree.File),
			zap.Int("functions", registry.Len()),
			zap.Int("findings_count", len(findings)),
		)
	}
	return findings
}
