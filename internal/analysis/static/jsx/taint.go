// Filename: jsx/taint.go
package jsx

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// taintTracker collects the identifiers holding user input: variables
// assigned from `<event>.target.value` and state variables whose setter was
// called with such a value.
type taintTracker struct {
	rules   *rules
	src     []byte
	setters map[string]string // setter name -> state variable
	tainted map[string]struct{}
}

func newTaintTracker(r *rules, src []byte) *taintTracker {
	return &taintTracker{
		rules:   r,
		src:     src,
		setters: make(map[string]string),
		tainted: make(map[string]struct{}),
	}
}

// Track runs the taint pass over the whole tree in source order.
func (t *taintTracker) Track(root *sitter.Node) {
	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "variable_declarator":
			t.handleDeclarator(n)
		case "assignment_expression":
			t.handleAssignment(n.ChildByFieldName("left"), n.ChildByFieldName("right"))
		case "call_expression":
			t.handleSetterCall(n)
		}
	})
}

// handleDeclarator records `const [state, setState] = useState(...)` and
// treats `const v = event.target.value` like an assignment.
func (t *taintTracker) handleDeclarator(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if name == nil || value == nil {
		return
	}

	if name.Type() == "identifier" {
		t.handleAssignment(name, value)
		return
	}

	if name.Type() != "array_pattern" || value.Type() != "call_expression" {
		return
	}
	callee := value.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" || !in(t.rules.stateHooks, callee.Content(t.src)) {
		return
	}
	elems := namedChildren(name)
	if len(elems) < 2 || elems[0].Type() != "identifier" || elems[1].Type() != "identifier" {
		return
	}
	t.setters[elems[1].Content(t.src)] = elems[0].Content(t.src)
}

func (t *taintTracker) handleAssignment(left, right *sitter.Node) {
	if left == nil || !t.isEventValue(right) {
		return
	}
	if name := baseIdentifier(left, t.src); name != "" {
		t.tainted[name] = struct{}{}
	}
}

func (t *taintTracker) handleSetterCall(n *sitter.Node) {
	callee := n.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" {
		return
	}
	state, ok := t.setters[callee.Content(t.src)]
	if !ok {
		return
	}
	args := namedChildren(n.ChildByFieldName("arguments"))
	if len(args) == 0 {
		return
	}
	if t.IsTainted(args[0]) || t.isEventValue(args[0]) {
		t.tainted[state] = struct{}{}
	}
}

// isEventValue matches `<event>.target.value`, including TypeScript forms
// such as `(e.target as HTMLInputElement).value`.
func (t *taintTracker) isEventValue(n *sitter.Node) bool {
	n = unwrap(n)
	if n == nil || n.Type() != "member_expression" || propertyName(n, t.src) != "value" {
		return false
	}
	target := unwrap(n.ChildByFieldName("object"))
	if target == nil || target.Type() != "member_expression" || propertyName(target, t.src) != "target" {
		return false
	}
	event := unwrap(target.ChildByFieldName("object"))
	return event != nil && event.Type() == "identifier" && in(t.rules.events, event.Content(t.src))
}

// unwrap strips parentheses and TypeScript type assertions (`x as T`,
// `x!`, `<T>x`, `x satisfies T`), which carry the value of their operand.
func unwrap(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "parenthesized_expression", "as_expression", "non_null_expression",
			"satisfies_expression", "type_assertion":
			inner := valueOperand(n)
			if inner == nil {
				return n
			}
			n = inner
		default:
			return n
		}
	}
	return nil
}

// valueOperand returns the expression operand of a wrapper node. The
// operand comes first in every wrapper except `<T>x`, whose type arguments
// are skipped.
func valueOperand(n *sitter.Node) *sitter.Node {
	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "type_arguments", "type_annotation":
			continue
		}
		return child
	}
	return nil
}

// IsTainted evaluates an expression against the tainted identifiers.
func (t *taintTracker) IsTainted(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier":
		_, ok := t.tainted[n.Content(t.src)]
		return ok

	case "member_expression", "subscript_expression":
		return t.IsTainted(n.ChildByFieldName("object"))

	case "call_expression":
		return t.anyTainted(namedChildren(n.ChildByFieldName("arguments")))

	case "binary_expression":
		return t.IsTainted(n.ChildByFieldName("left")) || t.IsTainted(n.ChildByFieldName("right"))

	case "ternary_expression":
		return t.IsTainted(n.ChildByFieldName("condition")) ||
			t.IsTainted(n.ChildByFieldName("consequence")) ||
			t.IsTainted(n.ChildByFieldName("alternative"))

	case "object":
		for _, prop := range namedChildren(n) {
			switch prop.Type() {
			case "pair":
				if t.IsTainted(prop.ChildByFieldName("value")) {
					return true
				}
			case "shorthand_property_identifier":
				if t.IsTainted(prop) {
					return true
				}
			}
		}
		return false

	case "array":
		for _, el := range namedChildren(n) {
			if el.Type() != "spread_element" && t.IsTainted(el) {
				return true
			}
		}
		return false

	case "parenthesized_expression", "as_expression", "non_null_expression",
		"satisfies_expression", "type_assertion":
		inner := unwrap(n)
		return inner != n && t.IsTainted(inner)

	default:
		return false
	}
}

func (t *taintTracker) anyTainted(nodes []*sitter.Node) bool {
	for _, n := range nodes {
		if t.IsTainted(n) {
			return true
		}
	}
	return false
}

// baseIdentifier returns the root identifier of `a` or `a.b.c`.
func baseIdentifier(n *sitter.Node, src []byte) string {
	for n != nil {
		switch n.Type() {
		case "identifier":
			return n.Content(src)
		case "member_expression":
			n = n.ChildByFieldName("object")
		default:
			return ""
		}
	}
	return ""
}

func propertyName(member *sitter.Node, src []byte) string {
	prop := member.ChildByFieldName("property")
	if prop == nil {
		return ""
	}
	return prop.Content(src)
}
