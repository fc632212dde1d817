// Package engine runs a scan: it discovers the source files of the targets,
// dispatches each one to the analyzer of its language and collects the
// findings into a single ScanResult.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/analysis/core"
	"github.com/xkilldash9x/tainttrace/internal/analysis/static/jsx"
	"github.com/xkilldash9x/tainttrace/internal/analysis/static/python"
	"github.com/xkilldash9x/tainttrace/internal/config"
	"github.com/xkilldash9x/tainttrace/internal/discovery"
)

// -- Interfaces for Dependency Inversion --

// FileSource lists and reads the files of the scan targets.
type FileSource interface {
	Discover(ctx context.Context, roots []string) ([]discovery.SourceFile, error)
	ReadFile(ctx context.Context, f discovery.SourceFile) ([]byte, error)
}

// ErrNoTargets is returned by Run when it is given nothing to scan.
var ErrNoTargets = errors.New("no scan targets given")

// Engine analyzes files concurrently. Analyzers keep their state per call,
// so one Engine may run several scans, one after the other or in parallel.
type Engine struct {
	cfg       config.EngineConfig
	files     FileSource
	analyzers map[schemas.Language]core.Analyzer
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an Engine. When two analyzers handle the same language the
// last one wins.
func New(cfg config.EngineConfig, files FileSource, analyzers []core.Analyzer, logger *zap.Logger) *Engine {
	byLang := make(map[schemas.Language]core.Analyzer, len(analyzers))
	for _, a := range analyzers {
		byLang[a.Language()] = a
	}
	return &Engine{
		cfg:       cfg,
		files:     files,
		analyzers: byLang,
		logger:    logger.Named("engine"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewFromConfig wires the discovery layer and the Python and JSX analyzers
// from the application configuration.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) *Engine {
	return New(cfg.Engine,
		discovery.New(cfg.Discovery, logger),
		[]core.Analyzer{
			python.NewAnalyzer(cfg.Rules.Python, logger),
			jsx.NewAnalyzer(cfg.Rules.JSX, logger),
		},
		logger,
	)
}

// fileOutcome is the result slot of one file, indexed like the discovered
// file list so the merge stays in discovery order.
type fileOutcome struct {
	findings []schemas.Finding
	err      error
	scanned  bool
}

// Run scans the targets and returns the merged result. Per-file failures are
// recorded in ScanResult.Errors unless FailOnParseError is set, in which case
// the first one aborts the scan. Cancelling ctx stops the scan and returns
// the context error.
func (e *Engine) Run(ctx context.Context, targets []string) (*schemas.ScanResult, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	result := &schemas.ScanResult{
		ScanID:    uuid.NewString(),
		Targets:   append([]string(nil), targets...),
		StartedAt: e.now(),
		Findings:  []schemas.Finding{},
	}
	logger := e.logger.With(zap.String("scan_id", result.ScanID))
	logger.Info("Starting scan", zap.Strings("targets", targets))

	files, err := e.files.Discover(ctx, targets)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	concurrency := e.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4 // A sensible default.
	}

	outcomes := make([]fileOutcome, len(files))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range files {
		if groupCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = e.analyzeFile(groupCtx, files[i], logger)
			if outcomes[i].err != nil && e.cfg.FailOnParseError {
				return outcomes[i].err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Scan aborted", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("Scan cancelled", zap.Error(err))
		return nil, err
	}

	for i, out := range outcomes {
		if out.err != nil {
			result.Errors = append(result.Errors, schemas.FileError{File: files[i].Path, Error: out.err.Error()})
			continue
		}
		if out.scanned {
			result.FilesScanned++
			result.Findings = append(result.Findings, out.findings...)
		}
	}
	result.FinishedAt = e.now()

	logger.Info("Scan finished",
		zap.Int("files_discovered", len(files)),
		zap.Int("files_scanned", result.FilesScanned),
		zap.Int("findings", len(result.Findings)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration()),
	)
	return result, nil
}

func (e *Engine) analyzeFile(ctx context.Context, f discovery.SourceFile, logger *zap.Logger) fileOutcome {
	if err := ctx.Err(); err != nil {
		return fileOutcome{err: err}
	}

	analyzer, ok := e.analyzers[f.Language]
	if !ok {
		logger.Debug("No analyzer registered for language", zap.String("file", f.Path), zap.String("language", string(f.Language)))
		return fileOutcome{}
	}

	src, err := e.files.ReadFile(ctx, f)
	if err != nil {
		logger.Warn("Failed to read file", zap.String("file", f.Path), zap.Error(err))
		return fileOutcome{err: err}
	}

	findings, err := analyzer.Analyze(ctx, f.Path, src)
	if err != nil {
		logger.Warn("Failed to analyze file",
			zap.String("file", f.Path),
			zap.String("analyzer", analyzer.Name()),
			zap.Error(err),
		)
		return fileOutcome{err: fmt.Errorf("%s: %w", analyzer.Name(), err)}
	}
	return fileOutcome{findings: findings, scanned: true}
}
