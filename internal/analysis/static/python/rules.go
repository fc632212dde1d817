// Filename: python/rules.go
package python

import (
	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/config"
)

type nameSet map[string]struct{}

func newNameSet(names []string) nameSet {
	s := make(nameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// SinkKind is the syntactic pattern a sink call matched.
type SinkKind int

const (
	SinkNone SinkKind = iota
	SinkQueryExecution
	SinkProcessSpawn
	SinkDeserialization
	SinkRawResponse
	SinkGeneric
)

// Check maps the sink pattern to the reported vulnerability category.
func (k SinkKind) Check() schemas.Check {
	switch k {
	case SinkQueryExecution:
		return schemas.CheckSQLInjection
	case SinkProcessSpawn:
		return schemas.CheckCommandInjection
	case SinkDeserialization:
		return schemas.CheckInsecureDeserialization
	case SinkRawResponse:
		return schemas.CheckXSS
	default:
		return schemas.CheckUnknown
	}
}

// Classifier recognizes sources, sinks and sanitizers by name. Matching is
// purely syntactic: an aliased import or a renamed variable is not matched.
type Classifier struct {
	sourceRoots        nameSet
	sourceBuckets      nameSet
	sourceMethods      nameSet
	sqlCursors         nameSet
	sqlExecute         nameSet
	processModules     nameSet
	processFunctions   nameSet
	deserializeModules nameSet
	deserializeFuncs   nameSet
	rawResponses       nameSet
	genericSinks       nameSet
	sanitizers         nameSet
}

// NewClassifier builds a Classifier from the rules configuration.
func NewClassifier(cfg config.PythonRulesConfig) *Classifier {
	return &Classifier{
		sourceRoots:        newNameSet(cfg.SourceRootNames),
		sourceBuckets:      newNameSet(cfg.SourceBucketNames),
		sourceMethods:      newNameSet(cfg.SourceMethodNames),
		sqlCursors:         newNameSet(cfg.SQLCursorNames),
		sqlExecute:         newNameSet(cfg.SQLExecuteMethodNames),
		processModules:     newNameSet(cfg.ProcessModuleNames),
		processFunctions:   newNameSet(cfg.ProcessFunctionNames),
		deserializeModules: newNameSet(cfg.DeserializeModuleNames),
		deserializeFuncs:   newNameSet(cfg.DeserializeFunctionNames),
		rawResponses:       newNameSet(cfg.RawResponseConstructorNames),
		genericSinks:       newNameSet(cfg.GenericSinkNames),
		sanitizers:         newNameSet(cfg.SanitizerFunctionNames),
	}
}

// IsSource reports whether call is `<root>.<bucket>.<method>(...)`.
func (c *Classifier) IsSource(t *Tree, call *Call) bool {
	method, ok := t.Node(call.Func).(*Attribute)
	if !ok || !c.sourceMethods.has(method.Attr) {
		return false
	}
	bucket, ok := t.Node(method.Value).(*Attribute)
	if !ok || !c.sourceBuckets.has(bucket.Attr) {
		return false
	}
	root, ok := t.Node(bucket.Value).(*Name)
	return ok && c.sourceRoots.has(root.Ident)
}

// IsSanitizer reports whether the simple name of the callee is a trusted
// sanitizer.
func (c *Classifier) IsSanitizer(t *Tree, call *Call) bool {
	name := SimpleName(t, call)
	return name != "" && c.sanitizers.has(name)
}

// Sink classifies call as a sink, returning SinkNone when it is not one.
func (c *Classifier) Sink(t *Tree, call *Call) SinkKind {
	switch fn := t.Node(call.Func).(type) {
	case *Attribute:
		recv, ok := t.Node(fn.Value).(*Name)
		if !ok {
			return SinkNone
		}
		switch {
		case c.sqlExecute.has(fn.Attr) && c.sqlCursors.has(recv.Ident):
			return SinkQueryExecution
		case c.processFunctions.has(fn.Attr) && c.processModules.has(recv.Ident):
			return SinkProcessSpawn
		case c.deserializeFuncs.has(fn.Attr) && c.deserializeModules.has(recv.Ident):
			return SinkDeserialization
		}
	case *Name:
		switch {
		case c.rawResponses.has(fn.Ident):
			return SinkRawResponse
		case c.genericSinks.has(fn.Ident):
			return SinkGeneric
		}
	}
	return SinkNone
}

// IsSink reports whether call matches any sink pattern.
func (c *Classifier) IsSink(t *Tree, call *Call) bool {
	return c.Sink(t, call) != SinkNone
}

// SimpleName is the bare callee name, or the final attribute of a dotted
// callee. It is empty for any other callee shape.
func SimpleName(t *Tree, call *Call) string {
	switch fn := t.Node(call.Func).(type) {
	case *Name:
		return fn.Ident
	case *Attribute:
		return fn.Attr
	}
	return ""
}
