// Filename: python/syntax.go
// Arena-backed syntax tree consumed by the taint walker. The tree is produced
// once by Parse and never mutated afterwards.
package python

import "strings"

// NodeID indexes a node in the Tree arena.
type NodeID int32

// NoNode marks an absent child or the parent of the root.
const NoNode NodeID = -1

// Position is a source location: 1-based line, 0-based byte column.
type Position struct {
	Line   int
	Column int
}

// Node is the closed set of syntax kinds the walker understands.
type Node interface {
	Pos() Position
	// Span returns the byte range of the node in the source.
	Span() (start, end uint32)
	node()
}

type base struct {
	pos        Position
	start, end uint32
}

func (b base) Pos() Position             { return b.pos }
func (b base) Span() (start, end uint32) { return b.start, b.end }
func (base) node()                       {}

// Name is an identifier reference.
type Name struct {
	base
	Ident string
}

// Literal is a constant: string, number, boolean, None or Ellipsis.
type Literal struct {
	base
	Text string
}

// BinaryExpr covers arithmetic, boolean and comparison operators. Chained
// comparisons are folded left to right.
type BinaryExpr struct {
	base
	Left, Right NodeID
}

// Interpolation is an f-string or an implicit concatenation of strings.
// Parts holds the embedded expressions (or the concatenated strings).
type Interpolation struct {
	base
	Parts []NodeID
}

// Attribute is `Value.Attr`.
type Attribute struct {
	base
	Value NodeID
	Attr  string
}

// Subscript is `Value[Index...]`.
type Subscript struct {
	base
	Value NodeID
	Index []NodeID
}

// Collection is a list, tuple or set display.
type Collection struct {
	base
	Elts []NodeID
}

// Mapping is a dict display. Keys[i] is NoNode for `**splat` entries.
type Mapping struct {
	base
	Keys   []NodeID
	Values []NodeID
}

// Keyword is a `name=value` call argument. Name is empty for `**kwargs`.
type Keyword struct {
	Name  string
	Value NodeID
}

// Call is a call expression.
type Call struct {
	base
	Func     NodeID
	Args     []NodeID
	Keywords []Keyword
}

// Assign is a plain or annotated assignment. Chained assignments are
// flattened into one node with several targets. Value is NoNode for a bare
// annotation.
type Assign struct {
	base
	Targets []NodeID
	Value   NodeID
}

// AugAssign is `Target op= Value`.
type AugAssign struct {
	base
	Target NodeID
	Value  NodeID
}

// FunctionDef is a `def` or `async def` statement.
type FunctionDef struct {
	base
	Name   string
	Params []string
	Body   []NodeID
}

// Generic is any other statement or expression. Children are its named
// sub-nodes in source order.
type Generic struct {
	base
	Type     string
	Children []NodeID
}

// Tree owns the node arena and the parent index of one parsed file.
type Tree struct {
	File   string
	Source []byte
	Root   NodeID

	nodes   []Node
	parents []NodeID
}

// Node returns the node stored at id, or nil for NoNode.
func (t *Tree) Node(id NodeID) Node {
	if id == NoNode || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Parent returns the parent of id, or NoNode for the root.
func (t *Tree) Parent(id NodeID) NodeID {
	if id == NoNode || int(id) >= len(t.parents) {
		return NoNode
	}
	return t.parents[id]
}

// Len is the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// Text returns the source text covered by id.
func (t *Tree) Text(id NodeID) string {
	n := t.Node(id)
	if n == nil {
		return ""
	}
	start, end := n.Span()
	if int(end) > len(t.Source) || start > end {
		return ""
	}
	return string(t.Source[start:end])
}

// Line returns the trimmed source line containing id.
func (t *Tree) Line(id NodeID) string {
	n := t.Node(id)
	if n == nil {
		return ""
	}
	start, _ := n.Span()
	return lineAt(t.Source, int(start))
}

// Children lists the direct sub-nodes of id in source order.
func (t *Tree) Children(id NodeID) []NodeID {
	return childrenOf(t.Node(id))
}

func childrenOf(node Node) []NodeID {
	switch n := node.(type) {
	case *BinaryExpr:
		return []NodeID{n.Left, n.Right}
	case *Interpolation:
		return n.Parts
	case *Attribute:
		return []NodeID{n.Value}
	case *Subscript:
		return append([]NodeID{n.Value}, n.Index...)
	case *Collection:
		return n.Elts
	case *Mapping:
		out := make([]NodeID, 0, len(n.Keys)+len(n.Values))
		for i := range n.Values {
			if n.Keys[i] != NoNode {
				out = append(out, n.Keys[i])
			}
			out = append(out, n.Values[i])
		}
		return out
	case *Call:
		out := append([]NodeID{n.Func}, n.Args...)
		for _, kw := range n.Keywords {
			out = append(out, kw.Value)
		}
		return out
	case *Assign:
		out := append([]NodeID(nil), n.Targets...)
		if n.Value != NoNode {
			out = append(out, n.Value)
		}
		return out
	case *AugAssign:
		return []NodeID{n.Target, n.Value}
	case *FunctionDef:
		return n.Body
	case *Generic:
		return n.Children
	default:
		return nil
	}
}

// add appends n to the arena and records it as the parent of its children,
// which must already be in the arena.
func (t *Tree) add(n Node) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	t.parents = append(t.parents, NoNode)
	for _, c := range childrenOf(n) {
		if c != NoNode {
			t.parents[c] = id
		}
	}
	return id
}

// lineAt returns the trimmed line of src containing offset.
func lineAt(src []byte, offset int) string {
	if offset > len(src) {
		return ""
	}
	start := offset
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := offset
	for end < len(src) && src[end] != '\n' {
		end++
	}
	return strings.TrimSpace(string(src[start:end]))
}
