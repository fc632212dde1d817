// Filename: python/walker.go
// Statement walker: tracks variable taint through one file and reports
// tainted data reaching a sink. Calls to functions defined in the same file
// are followed once per file pass.
package python

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
)

// astWalker holds the per-file analysis context. It is not safe for
// concurrent use; every file gets its own walker.
type astWalker struct {
	logger   *zap.Logger
	tree     *Tree
	rules    *Classifier
	registry *Registry
	eval     *Evaluator
	findings []schemas.Finding
}

func newASTWalker(logger *zap.Logger, tree *Tree, rules *Classifier, registry *Registry) *astWalker {
	return &astWalker{
		logger:   logger.Named("py_walker"),
		tree:     tree,
		rules:    rules,
		registry: registry,
		eval:     NewEvaluator(tree, rules, registry),
		findings: []schemas.Finding{},
	}
}

// WalkFile runs the full file pass: the module body first, then every
// function not reached through a call, each with a fresh state.
func (w *astWalker) WalkFile(visited VisitedSet) []schemas.Finding {
	w.Walk(w.tree.Root, make(TaintState), visited)

	for _, id := range w.registry.Functions() {
		fn := w.tree.Node(id).(*FunctionDef)
		if !visited.Visit(fn.Name) {
			continue
		}
		w.logger.Debug("Entry walk",
			zap.String("function", fn.Name),
			zap.Int("line", fn.Pos().Line),
			zap.Strings("untainted_params", fn.Params),
		)
		w.walkBody(fn, make(TaintState), visited)
	}
	return w.findings
}

// Walk visits id and its sub-nodes in source order. Function definitions
// are not descended into.
func (w *astWalker) Walk(id NodeID, state TaintState, visited VisitedSet) {
	switch n := w.tree.Node(id).(type) {
	case nil, *FunctionDef:
		return
	case *Assign:
		w.handleAssign(n, state)
	case *AugAssign:
		w.handleAugAssign(n, state)
	case *Call:
		w.handleCall(id, n, state, visited)
	}

	for _, child := range w.tree.Children(id) {
		w.Walk(child, state, visited)
	}
}

func (w *astWalker) walkBody(fn *FunctionDef, state TaintState, visited VisitedSet) {
	for _, stmt := range fn.Body {
		w.Walk(stmt, state, visited)
	}
}

func (w *astWalker) handleAssign(n *Assign, state TaintState) {
	if n.Value == NoNode || len(n.Targets) != 1 {
		return
	}
	target, ok := w.tree.Node(n.Targets[0]).(*Name)
	if !ok {
		return
	}
	if w.eval.IsTainted(n.Value, state) {
		state.Taint(target.Ident)
	} else {
		state.Clear(target.Ident)
	}
}

func (w *astWalker) handleAugAssign(n *AugAssign, state TaintState) {
	target, ok := w.tree.Node(n.Target).(*Name)
	if !ok {
		return
	}
	if w.eval.IsTainted(n.Value, state) {
		state.Taint(target.Ident)
	}
}

// handleCall dispatches a call to the first matching role: source, sink,
// sanitizer, then local function.
func (w *astWalker) handleCall(id NodeID, call *Call, state TaintState, visited VisitedSet) {
	switch {
	case w.rules.IsSource(w.tree, call):
		if target, ok := w.assignedName(id); ok {
			state.Taint(target)
		}

	case w.rules.IsSink(w.tree, call):
		w.checkSink(id, call, state)

	case w.rules.IsSanitizer(w.tree, call):
		if target, ok := w.assignedName(id); ok {
			state.Clear(target)
		}

	default:
		if name := SimpleName(w.tree, call); name != "" && w.registry.Has(name) {
			w.expand(name, state, visited)
		}
	}
}

// expand walks a local function with a copy of the caller's state. The
// caller's state is untouched by anything the callee does.
func (w *astWalker) expand(name string, state TaintState, visited VisitedSet) {
	if !visited.Visit(name) {
		return
	}
	id, _ := w.registry.Lookup(name)
	fn := w.tree.Node(id).(*FunctionDef)

	w.logger.Debug("Expanding local function call",
		zap.String("function", name),
		zap.Strings("inherited_taint", state.Tainted()),
	)
	w.walkBody(fn, state.Clone(), visited)
}

// assignedName returns the target of `name = <call>` when the call is the
// value of a single-target assignment.
func (w *astWalker) assignedName(id NodeID) (string, bool) {
	assign, ok := w.tree.Node(w.tree.Parent(id)).(*Assign)
	if !ok || assign.Value != id || len(assign.Targets) != 1 {
		return "", false
	}
	name, ok := w.tree.Node(assign.Targets[0]).(*Name)
	if !ok {
		return "", false
	}
	return name.Ident, true
}

// checkSink reports one finding per tainted positional argument. Query
// execution only considers its first argument. Sanitizer calls never
// evaluate as tainted, so a wrapped argument does not trigger. Keyword
// arguments are not inspected.
func (w *astWalker) checkSink(id NodeID, call *Call, state TaintState) {
	kind := w.rules.Sink(w.tree, call)

	args := call.Args
	if kind == SinkQueryExecution && len(args) > 1 {
		args = args[:1]
	}
	for _, arg := range args {
		if w.eval.IsTainted(arg, state) {
			w.reportFinding(id, call, kind)
		}
	}
}

func (w *astWalker) reportFinding(id NodeID, call *Call, kind SinkKind) {
	pos := call.Pos()
	finding := schemas.NewFinding(w.tree.File, kind.Check(), pos.Line, pos.Column)
	finding.Sink = w.tree.Text(call.Func)
	finding.Snippet = w.tree.Line(id)
	finding.Language = schemas.LanguagePython

	w.findings = append(w.findings, finding)
	w.logger.Warn("Taint flow detected",
		zap.String("check", string(finding.Check)),
		zap.String("sink", finding.Sink),
		zap.String("location", finding.Location()),
	)
}
