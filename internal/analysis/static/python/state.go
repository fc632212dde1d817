// Filename: python/state.go
package python

import "sort"

// TaintState maps variable names to their taint flag for one function-body
// traversal. A missing entry means "not known to be tainted".
type TaintState map[string]bool

// IsTainted reports whether name currently holds tainted data.
func (s TaintState) IsTainted(name string) bool {
	return s[name]
}

// Taint marks name as tainted.
func (s TaintState) Taint(name string) {
	s[name] = true
}

// Clear removes any taint from name.
func (s TaintState) Clear(name string) {
	delete(s, name)
}

// Clone returns an independent copy of the state.
func (s TaintState) Clone() TaintState {
	out := make(TaintState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Tainted returns the tainted names in sorted order.
func (s TaintState) Tainted() []string {
	names := make([]string, 0, len(s))
	for k, v := range s {
		if v {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// VisitedSet records the functions already walked during one file pass.
type VisitedSet map[string]struct{}

// Visit adds name to the set and reports whether it was not there before.
func (v VisitedSet) Visit(name string) bool {
	if _, seen := v[name]; seen {
		return false
	}
	v[name] = struct{}{}
	return true
}

// Has reports whether name was visited.
func (v VisitedSet) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// Registry indexes every function definition of a file by name. Methods and
// nested functions are included; on duplicate names the later definition
// wins.
type Registry struct {
	byName map[string]NodeID
	order  []NodeID
}

// NewRegistry collects the function definitions of t.
func NewRegistry(t *Tree) *Registry {
	var defs []NodeID
	for i := 0; i < t.Len(); i++ {
		if _, ok := t.Node(NodeID(i)).(*FunctionDef); ok {
			defs = append(defs, NodeID(i))
		}
	}
	// The arena is in post-order; definitions are wanted in source order.
	sort.SliceStable(defs, func(i, j int) bool {
		a, _ := t.Node(defs[i]).Span()
		b, _ := t.Node(defs[j]).Span()
		return a < b
	})

	r := &Registry{byName: make(map[string]NodeID, len(defs))}
	for _, id := range defs {
		r.byName[t.Node(id).(*FunctionDef).Name] = id
	}
	for _, id := range defs {
		if r.byName[t.Node(id).(*FunctionDef).Name] == id {
			r.order = append(r.order, id)
		}
	}
	return r
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (NodeID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Has reports whether name is a function defined in the file.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Functions lists the registered definitions in source order.
func (r *Registry) Functions() []NodeID {
	return r.order
}

// Len is the number of distinct function names.
func (r *Registry) Len() int {
	return len(r.byName)
}
