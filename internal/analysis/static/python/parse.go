// Filename: python/parse.go
package python

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	tspython "github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is returned (wrapped) when the parser reports an error or a
// missing node anywhere in the file.
var ErrSyntax = errors.New("python syntax error")

// Parse parses src with tree-sitter and converts the result into a Tree.
// A file with syntax errors is rejected as a whole.
func Parse(ctx context.Context, file string, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(tspython.GetLanguage())

	tsTree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed to parse %s: %w", file, err)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.HasError() {
		pos := firstError(root)
		return nil, fmt.Errorf("%s:%d:%d: %w", file, pos.Line, pos.Column, ErrSyntax)
	}

	c := &converter{src: src, tree: &Tree{File: file, Source: src}}
	c.tree.Root = c.convert(root)
	return c.tree, nil
}

// firstError locates the first ERROR or MISSING node in source order.
func firstError(n *sitter.Node) Position {
	if n.IsError() || n.IsMissing() {
		return positionOf(n)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if child.IsError() || child.IsMissing() || child.HasError() {
			return firstError(child)
		}
	}
	return positionOf(n)
}

func positionOf(n *sitter.Node) Position {
	p := n.StartPoint()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column)}
}

// converter maps tree-sitter nodes onto the arena. Children are always added
// before their parent so the parent index can be filled in by Tree.add.
type converter struct {
	src  []byte
	tree *Tree
}

func (c *converter) base(n *sitter.Node) base {
	return base{pos: positionOf(n), start: n.StartByte(), end: n.EndByte()}
}

func (c *converter) namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func (c *converter) convertAll(nodes []*sitter.Node) []NodeID {
	ids := make([]NodeID, 0, len(nodes))
	for _, n := range nodes {
		if id := c.convert(n); id != NoNode {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *converter) convert(n *sitter.Node) NodeID {
	if n == nil || n.IsNull() {
		return NoNode
	}

	switch n.Type() {
	case "comment":
		return NoNode

	case "parenthesized_expression":
		if inner := c.namedChildren(n); len(inner) == 1 {
			return c.convert(inner[0])
		}

	case "identifier":
		return c.tree.add(&Name{base: c.base(n), Ident: n.Content(c.src)})

	case "integer", "float", "true", "false", "none", "ellipsis":
		return c.tree.add(&Literal{base: c.base(n), Text: n.Content(c.src)})

	case "string":
		return c.convertString(n)

	case "concatenated_string":
		return c.tree.add(&Interpolation{base: c.base(n), Parts: c.convertAll(c.namedChildren(n))})

	case "binary_operator", "boolean_operator":
		left := c.convert(n.ChildByFieldName("left"))
		right := c.convert(n.ChildByFieldName("right"))
		return c.tree.add(&BinaryExpr{base: c.base(n), Left: left, Right: right})

	case "comparison_operator":
		return c.convertComparison(n)

	case "attribute":
		value := c.convert(n.ChildByFieldName("object"))
		attr := ""
		if a := n.ChildByFieldName("attribute"); a != nil {
			attr = a.Content(c.src)
		}
		return c.tree.add(&Attribute{base: c.base(n), Value: value, Attr: attr})

	case "subscript":
		children := c.namedChildren(n)
		if len(children) == 0 {
			break
		}
		value := c.convert(children[0])
		index := c.convertAll(children[1:])
		return c.tree.add(&Subscript{base: c.base(n), Value: value, Index: index})

	case "list", "tuple", "set", "expression_list", "pattern_list", "tuple_pattern", "list_pattern":
		return c.tree.add(&Collection{base: c.base(n), Elts: c.convertAll(c.namedChildren(n))})

	case "dictionary":
		return c.convertDictionary(n)

	case "call":
		return c.convertCall(n)

	case "assignment":
		return c.convertAssignment(n)

	case "augmented_assignment":
		target := c.convert(n.ChildByFieldName("left"))
		value := c.convert(n.ChildByFieldName("right"))
		return c.tree.add(&AugAssign{base: c.base(n), Target: target, Value: value})

	case "function_definition":
		return c.convertFunction(n)
	}

	// A decorated_definition lands here too: its decorators, then the FunctionDef.
	return c.tree.add(&Generic{base: c.base(n), Type: n.Type(), Children: c.convertAll(c.namedChildren(n))})
}

// convertString yields an Interpolation for f-strings with embedded
// expressions and a Literal otherwise.
func (c *converter) convertString(n *sitter.Node) NodeID {
	var parts []NodeID
	for _, child := range c.namedChildren(n) {
		if child.Type() != "interpolation" {
			continue
		}
		expr := child.ChildByFieldName("expression")
		if expr == nil {
			if inner := c.namedChildren(child); len(inner) > 0 {
				expr = inner[0]
			}
		}
		if id := c.convert(expr); id != NoNode {
			parts = append(parts, id)
		}
	}
	if len(parts) > 0 {
		return c.tree.add(&Interpolation{base: c.base(n), Parts: parts})
	}
	return c.tree.add(&Literal{base: c.base(n), Text: n.Content(c.src)})
}

// convertComparison folds `a < b <= c` into ((a < b) <= c).
func (c *converter) convertComparison(n *sitter.Node) NodeID {
	operands := c.namedChildren(n)
	if len(operands) == 0 {
		return c.tree.add(&Generic{base: c.base(n), Type: n.Type()})
	}
	left := c.convert(operands[0])
	for _, next := range operands[1:] {
		right := c.convert(next)
		b := c.base(n)
		b.end = next.EndByte()
		left = c.tree.add(&BinaryExpr{base: b, Left: left, Right: right})
	}
	return left
}

func (c *converter) convertDictionary(n *sitter.Node) NodeID {
	m := &Mapping{base: c.base(n)}
	for _, entry := range c.namedChildren(n) {
		switch entry.Type() {
		case "pair":
			m.Keys = append(m.Keys, c.convert(entry.ChildByFieldName("key")))
			m.Values = append(m.Values, c.convert(entry.ChildByFieldName("value")))
		case "dictionary_splat":
			inner := c.namedChildren(entry)
			if len(inner) == 0 {
				continue
			}
			m.Keys = append(m.Keys, NoNode)
			m.Values = append(m.Values, c.convert(inner[0]))
		}
	}
	return c.tree.add(m)
}

func (c *converter) convertCall(n *sitter.Node) NodeID {
	call := &Call{base: c.base(n), Func: c.convert(n.ChildByFieldName("function"))}

	args := n.ChildByFieldName("arguments")
	switch {
	case args == nil:
	case args.Type() == "argument_list":
		for _, arg := range c.namedChildren(args) {
			switch arg.Type() {
			case "keyword_argument":
				name := ""
				if nm := arg.ChildByFieldName("name"); nm != nil {
					name = nm.Content(c.src)
				}
				call.Keywords = append(call.Keywords, Keyword{Name: name, Value: c.convert(arg.ChildByFieldName("value"))})
			case "dictionary_splat":
				if inner := c.namedChildren(arg); len(inner) > 0 {
					call.Keywords = append(call.Keywords, Keyword{Value: c.convert(inner[0])})
				}
			default:
				if id := c.convert(arg); id != NoNode {
					call.Args = append(call.Args, id)
				}
			}
		}
	default:
		// A bare generator argument: f(x for x in xs).
		if id := c.convert(args); id != NoNode {
			call.Args = append(call.Args, id)
		}
	}
	return c.tree.add(call)
}

// convertAssignment flattens `a = b = value` into one Assign with two targets.
func (c *converter) convertAssignment(n *sitter.Node) NodeID {
	var targets []NodeID
	cur := n
	for {
		if id := c.convert(cur.ChildByFieldName("left")); id != NoNode {
			targets = append(targets, id)
		}
		right := cur.ChildByFieldName("right")
		if right != nil && right.Type() == "assignment" {
			cur = right
			continue
		}
		value := c.convert(right)
		return c.tree.add(&Assign{base: c.base(n), Targets: targets, Value: value})
	}
}

func (c *converter) convertFunction(n *sitter.Node) NodeID {
	fn := &FunctionDef{base: c.base(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		fn.Name = name.Content(c.src)
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		for _, p := range c.namedChildren(params) {
			if name := c.parameterName(p); name != "" {
				fn.Params = append(fn.Params, name)
			}
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		fn.Body = c.convertAll(c.namedChildren(body))
	}
	return c.tree.add(fn)
}

func (c *converter) parameterName(p *sitter.Node) string {
	switch p.Type() {
	case "identifier":
		return p.Content(c.src)
	case "default_parameter", "typed_default_parameter":
		if name := p.ChildByFieldName("name"); name != nil {
			return name.Content(c.src)
		}
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		for _, child := range c.namedChildren(p) {
			if child.Type() == "identifier" {
				return child.Content(c.src)
			}
		}
	}
	return ""
}
