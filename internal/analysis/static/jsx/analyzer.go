// Filename: jsx/analyzer.go
// Package jsx implements a lightweight security check of React components:
// values read from input events are tracked through component state, and a
// small set of risky constructs is reported.
package jsx

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/analysis/core"
	"github.com/xkilldash9x/tainttrace/internal/config"
)

// ErrSyntax is returned (wrapped) when the parser reports an error anywhere
// in the file.
var ErrSyntax = errors.New("javascript syntax error")

// Analyzer is the React front end of the scan engine. It is safe for
// concurrent use.
type Analyzer struct {
	*core.BaseAnalyzer
	rules *rules
}

var _ core.Analyzer = (*Analyzer)(nil)

// NewAnalyzer creates a JSX analyzer using the given rule set.
func NewAnalyzer(cfg config.JSXRulesConfig, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		BaseAnalyzer: core.NewBaseAnalyzer("jsx", schemas.LanguageJSX, logger),
		rules:        newRules(cfg),
	}
}

// Analyze parses src and runs the taint pass followed by every check. The
// findings are grouped by check, each group in source order.
func (a *Analyzer) Analyze(ctx context.Context, file string, src []byte) ([]schemas.Finding, error) {
	a.Logger.Debug("Starting analysis of JSX file", zap.String("filename", file), zap.Int("size_bytes", len(src)))

	parser := sitter.NewParser()
	parser.SetLanguage(grammarFor(file))

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed to parse %s: %w", file, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		p := firstError(root).StartPoint()
		return nil, fmt.Errorf("%s:%d:%d: %w", file, p.Row+1, p.Column, ErrSyntax)
	}

	tracker := newTaintTracker(a.rules, src)
	tracker.Track(root)
	a.Logger.Debug("Taint pass finished",
		zap.String("filename", file),
		zap.Int("state_setters", len(tracker.setters)),
		zap.Int("tainted", len(tracker.tainted)),
	)

	c := &checker{file: file, src: src, rules: a.rules, tracker: tracker, logger: a.Logger}
	findings := []schemas.Finding{}
	for _, check := range c.checks() {
		findings = append(findings, c.run(root, check)...)
	}
	return findings, nil
}

// grammarFor picks the grammar from the file extension. TypeScript sources
// without JSX use the plain typescript grammar, since `<T>x` casts are
// ambiguous with JSX.
func grammarFor(file string) *sitter.Language {
	switch strings.ToLower(path.Ext(file)) {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && (child.IsError() || child.IsMissing() || child.HasError()) {
			return firstError(child)
		}
	}
	return n
}

type rules struct {
	events     map[string]struct{}
	stateHooks map[string]struct{}
	evals      map[string]struct{}
	domGlobals map[string]struct{}
}

func newRules(cfg config.JSXRulesConfig) *rules {
	return &rules{
		events:     toSet(cfg.EventNames),
		stateHooks: toSet(cfg.StateHookNames),
		evals:      toSet(cfg.EvalNames),
		domGlobals: toSet(cfg.DOMGlobals),
	}
}

func toSet(names []string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func in(set map[string]struct{}, name string) bool {
	_, ok := set[name]
	return ok
}

// walk visits n and its descendants depth first, in source order.
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil || n.IsNull() {
		return
	}
	visit(n)

	cursor := sitter.NewTreeCursor(n)
	defer cursor.Close()
	if ok := cursor.GoToFirstChild(); ok {
		for {
			walk(cursor.CurrentNode(), visit)
			if ok := cursor.GoToNextSibling(); !ok {
				break
			}
		}
	}
}

// namedChildren returns the named children of n, without comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child != nil && child.Type() != "comment" {
			out = append(out, child)
		}
	}
	return out
}
