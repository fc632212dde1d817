// Filename: jsx/checks.go
package jsx

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
)

// Messages reported for each check.
const (
	MessageDangerouslySetInnerHTML = "Potential XSS vulnerability: dangerouslySetInnerHTML found."
	MessageEvalUsage               = "Potential security risk: Usage of eval detected."
	MessageDirectDOMManipulation   = "Potential security risk: Direct DOM manipulation detected."
)

type check struct {
	name    schemas.Check
	message string
	// match returns the sink text when n violates the check.
	match func(n *sitter.Node) (string, bool)
}

type checker struct {
	file    string
	src     []byte
	rules   *rules
	tracker *taintTracker
	logger  *zap.Logger
}

// checks lists the checks in reporting order.
func (c *checker) checks() []check {
	return []check{
		{schemas.CheckDangerouslySetInnerHTML, MessageDangerouslySetInnerHTML, c.matchDangerouslySetInnerHTML},
		{schemas.CheckEvalUsage, MessageEvalUsage, c.matchEval},
		{schemas.CheckDirectDOMManipulation, MessageDirectDOMManipulation, c.matchDirectDOM},
	}
}

func (c *checker) run(root *sitter.Node, chk check) []schemas.Finding {
	var findings []schemas.Finding
	walk(root, func(n *sitter.Node) {
		sink, ok := chk.match(n)
		if !ok {
			return
		}
		p := n.StartPoint()
		f := schemas.NewFinding(c.file, chk.name, int(p.Row)+1, int(p.Column))
		f.Message = chk.message
		f.Sink = sink
		f.Snippet = lineSnippet(c.src, int(n.StartByte()))
		f.Language = schemas.LanguageJSX
		findings = append(findings, f)

		c.logger.Warn("Risky construct detected",
			zap.String("check", string(chk.name)),
			zap.String("location", f.Location()),
		)
	})
	return findings
}

// matchDangerouslySetInnerHTML flags the attribute when its expression is
// tainted. A literal value cannot be inspected and is always flagged.
func (c *checker) matchDangerouslySetInnerHTML(n *sitter.Node) (string, bool) {
	if n.Type() != "jsx_attribute" {
		return "", false
	}
	children := namedChildren(n)
	if len(children) == 0 || children[0].Content(c.src) != "dangerouslySetInnerHTML" {
		return "", false
	}
	const sink = "dangerouslySetInnerHTML"
	if len(children) < 2 || children[1].Type() != "jsx_expression" {
		return sink, true
	}
	expr := namedChildren(children[1])
	if len(expr) == 0 {
		return "", false
	}
	return sink, c.tracker.IsTainted(expr[0])
}

// matchEval flags eval calls with at least one tainted argument.
func (c *checker) matchEval(n *sitter.Node) (string, bool) {
	if n.Type() != "call_expression" {
		return "", false
	}
	callee := n.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" || !in(c.rules.evals, callee.Content(c.src)) {
		return "", false
	}
	return callee.Content(c.src), c.tracker.anyTainted(namedChildren(n.ChildByFieldName("arguments")))
}

// matchDirectDOM flags any property access on a DOM global, tainted or not.
func (c *checker) matchDirectDOM(n *sitter.Node) (string, bool) {
	if n.Type() != "member_expression" && n.Type() != "subscript_expression" {
		return "", false
	}
	object := n.ChildByFieldName("object")
	if object == nil || object.Type() != "identifier" || !in(c.rules.domGlobals, object.Content(c.src)) {
		return "", false
	}
	return n.Content(c.src), true
}

// lineSnippet returns the trimmed source line containing offset.
func lineSnippet(src []byte, offset int) string {
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
