package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
)

// Analyzer is the contract between the scan engine and a language front
// end. Analyze is called concurrently for different files and must keep all
// per-file state local to the call.
type Analyzer interface {
	Name() string
	Language() schemas.Language
	// Analyze inspects one file. Findings are returned in discovery order.
	// A file that cannot be parsed yields an error and no findings.
	Analyze(ctx context.Context, file string, src []byte) ([]schemas.Finding, error)
}

// BaseAnalyzer provides the name and language plumbing of the Analyzer
// interface. It is intended to be embedded within specific analyzer
// implementations.
type BaseAnalyzer struct {
	name     string
	language schemas.Language
	Logger   *zap.Logger // Exposed for use in specific analyzer implementations.
}

// NewBaseAnalyzer creates a BaseAnalyzer with a logger named after it.
func NewBaseAnalyzer(name string, language schemas.Language, logger *zap.Logger) *BaseAnalyzer {
	return &BaseAnalyzer{
		name:     name,
		language: language,
		Logger:   logger.Named(name),
	}
}

// Name returns the analyzer's name.
func (b *BaseAnalyzer) Name() string {
	return b.name
}

// Language returns the language the analyzer handles.
func (b *BaseAnalyzer) Language() schemas.Language {
	return b.language
}
