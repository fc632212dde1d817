// Filename: python/evaluator.go
package python

// Evaluator decides whether evaluating an expression yields tainted data.
// It never mutates the state it is given.
type Evaluator struct {
	tree     *Tree
	rules    *Classifier
	registry *Registry
}

// NewEvaluator creates an Evaluator over one parsed file.
func NewEvaluator(tree *Tree, rules *Classifier, registry *Registry) *Evaluator {
	return &Evaluator{tree: tree, rules: rules, registry: registry}
}

// IsTainted evaluates the expression id against state. Unknown constructs
// are not tainted.
func (e *Evaluator) IsTainted(id NodeID, state TaintState) bool {
	switch n := e.tree.Node(id).(type) {
	case *Name:
		return state.IsTainted(n.Ident)

	case *BinaryExpr:
		return e.IsTainted(n.Left, state) || e.IsTainted(n.Right, state)

	case *Interpolation:
		return e.any(n.Parts, state)

	case *Call:
		if e.rules.IsSanitizer(e.tree, n) {
			return false
		}
		// Any call to a function defined in the same file is assumed to
		// return tainted data.
		if name := SimpleName(e.tree, n); name != "" && e.registry.Has(name) {
			return true
		}
		return e.rules.IsSource(e.tree, n)

	case *Attribute:
		return e.IsTainted(n.Value, state)

	case *Collection:
		return e.any(n.Elts, state)

	case *Mapping:
		for i := range n.Values {
			if (n.Keys[i] != NoNode && e.IsTainted(n.Keys[i], state)) || e.IsTainted(n.Values[i], state) {
				return true
			}
		}
		return false

	case *Subscript:
		return e.IsTainted(n.Value, state) || e.any(n.Index, state)

	default:
		return false
	}
}

func (e *Evaluator) any(ids []NodeID, state TaintState) bool {
	for _, id := range ids {
		if e.IsTainted(id, state) {
			return true
		}
	}
	return false
}
