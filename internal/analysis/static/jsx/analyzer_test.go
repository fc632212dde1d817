package jsx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/config"
)

// -- Test Helpers --

func runAnalysis(t *testing.T, code string) []schemas.Finding {
	t.Helper()
	return runAnalysisFile(t, "Component.jsx", code)
}

func runAnalysisFile(t *testing.T, file, code string) []schemas.Finding {
	t.Helper()
	a := NewAnalyzer(config.NewDefaultConfig().Rules.JSX, zaptest.NewLogger(t))
	findings, err := a.Analyze(context.Background(), file, []byte(code))
	require.NoError(t, err, "Analysis failed")
	return findings
}

func checksOf(findings []schemas.Finding) []schemas.Check {
	out := make([]schemas.Check, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Check)
	}
	return out
}

// -- Integration Tests --

const vulnerableComponent = `// vulnerable_xss.jsx

import React, { useState } from 'react';

function VulnerableXSSComponent() {
  const [userInput, setUserInput] = useState('');

  const handleChange = (e) => {
    setUserInput(e.target.value);  // Tainted data
  };

  return (
    <div>
      <input type="text" onChange={handleChange} />
      <div dangerouslySetInnerHTML={{ __html: userInput }} />  {/* Vulnerable to XSS */}
    </div>
  );
}

export default VulnerableXSSComponent;
`

const safeComponent = `import React, { useState } from 'react';
import DOMPurify from 'dompurify';

function SafeXSSComponent() {
  const [userInput, setUserInput] = useState('');

  const handleChange = (e) => {
    const sanitizedInput = DOMPurify.sanitize(e.target.value);
    setUserInput(sanitizedInput);
  };

  return <div dangerouslySetInnerHTML={{ __html: userInput }} />;
}
`

func TestStateSetterTaintsInnerHTML(t *testing.T) {
	t.Parallel()
	findings := runAnalysis(t, vulnerableComponent)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, schemas.CheckDangerouslySetInnerHTML, f.Check)
	assert.Equal(t, MessageDangerouslySetInnerHTML, f.Message)
	assert.Equal(t, 15, f.Line)
	assert.Equal(t, 11, f.Column)
	assert.Equal(t, "Component.jsx", f.File)
	assert.Equal(t, schemas.LanguageJSX, f.Language)
}

func TestSanitizedStateIsSafe(t *testing.T) {
	t.Parallel()
	assert.Empty(t, runAnalysis(t, safeComponent))
}

func TestAssignmentFromEvent(t *testing.T) {
	t.Parallel()
	code := `let form = {};
function onInput(event) {
  form.comment = event.target.value;
  eval("render(" + form + ")");
}
`
	findings := runAnalysis(t, code)
	require.Len(t, findings, 1)
	assert.Equal(t, schemas.CheckEvalUsage, findings[0].Check)
	assert.Equal(t, MessageEvalUsage, findings[0].Message)
	assert.Equal(t, 4, findings[0].Line)
	assert.Equal(t, "eval", findings[0].Sink)
}

func TestEvalWithoutTaintIsIgnored(t *testing.T) {
	t.Parallel()
	code := `const x = 1;
eval("2 + " + x);
other(event.target.value);
`
	assert.Empty(t, runAnalysis(t, code))
}

func TestUnknownEventNameIsIgnored(t *testing.T) {
	t.Parallel()
	code := `let v;
function onInput(ev) {
  v = ev.target.value;
  eval(v);
}
`
	assert.Empty(t, runAnalysis(t, code))
}

func TestTaintPropagationForms(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		expr string
	}{
		{"identifier", "v"},
		{"member", "v.length"},
		{"subscript", "v[0]"},
		{"call argument", "wrap(v)"},
		{"binary", `"a" + v`},
		{"logical", `v || "x"`},
		{"ternary", `ok ? v : ""`},
		{"object", `{ a: v }`},
		{"shorthand object", `{ v }`},
		{"array", `[1, v]`},
		{"parenthesized", `(v)`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code := "let v;\nfunction f(e) { v = e.target.value; }\neval(" + tt.expr + ");\n"
			findings := runAnalysis(t, code)
			require.Len(t, findings, 1)
			assert.Equal(t, schemas.CheckEvalUsage, findings[0].Check)
		})
	}
}

func TestLiteralInnerHTMLIsFlagged(t *testing.T) {
	t.Parallel()
	code := `const A = () => <div dangerouslySetInnerHTML="<b>hi</b>" />;
const B = () => <div dangerouslySetInnerHTML={{ __html: "static" }} />;
`
	findings := runAnalysis(t, code)
	require.Len(t, findings, 1)
	assert.Equal(t, 1, findings[0].Line)
}

func TestDirectDOMManipulation(t *testing.T) {
	t.Parallel()
	code := `function f() {
  document.getElementById("x").innerHTML = "hi";
  window.location.href = "/home";
  const w = window["name"];
  mydocument.title = "no";
}
`
	findings := runAnalysis(t, code)
	require.Len(t, findings, 3)
	for _, f := range findings {
		assert.Equal(t, schemas.CheckDirectDOMManipulation, f.Check)
		assert.Equal(t, MessageDirectDOMManipulation, f.Message)
	}
	assert.Equal(t, []int{2, 3, 4}, []int{findings[0].Line, findings[1].Line, findings[2].Line})
	assert.Equal(t, "document.getElementById", findings[0].Sink)
	assert.Equal(t, "window.location", findings[1].Sink)
}

func TestFindingsAreGroupedByCheck(t *testing.T) {
	t.Parallel()
	code := `let v;
function h(evt) { v = evt.target.value; }
document.body.append(v);
eval(v);
const C = () => <p dangerouslySetInnerHTML={{ __html: v }} />;
`
	findings := runAnalysis(t, code)
	assert.Equal(t, []schemas.Check{
		schemas.CheckDangerouslySetInnerHTML,
		schemas.CheckEvalUsage,
		schemas.CheckDirectDOMManipulation,
	}, checksOf(findings))
}

func TestCustomRules(t *testing.T) {
	t.Parallel()
	cfg := config.JSXRulesConfig{
		EventNames:     []string{"ev"},
		StateHookNames: []string{"useLocalState"},
		EvalNames:      []string{"Function"},
		DOMGlobals:     []string{"globalThis"},
	}
	a := NewAnalyzer(cfg, zaptest.NewLogger(t))
	code := `const [val, setVal] = useLocalState();
function h(ev) { setVal(ev.target.value); }
Function(val);
eval(val);
globalThis.x = 1;
document.x = 1;
`
	findings, err := a.Analyze(context.Background(), "custom.js", []byte(code))
	require.NoError(t, err)
	assert.Equal(t, []schemas.Check{schemas.CheckEvalUsage, schemas.CheckDirectDOMManipulation}, checksOf(findings))
}

const typedComponent = `import React, { useState, ChangeEvent } from 'react';

interface Props {
  title: string;
}

export function Preview({ title }: Props): JSX.Element {
  const [html, setHtml] = useState<string>('');

  const onChange = (e: ChangeEvent<HTMLTextAreaElement>): void => {
    setHtml(e.target.value);
  };

  return (
    <section>
      <h1>{title}</h1>
      <textarea onChange={onChange} />
      <div dangerouslySetInnerHTML={{ __html: html }} />
    </section>
  );
}
`

func TestTypeScriptSources(t *testing.T) {
	t.Parallel()

	t.Run("typed state setter in tsx", func(t *testing.T) {
		t.Parallel()
		findings := runAnalysisFile(t, "Preview.tsx", typedComponent)
		require.Len(t, findings, 1)
		assert.Equal(t, schemas.CheckDangerouslySetInnerHTML, findings[0].Check)
		assert.Equal(t, 18, findings[0].Line)
		assert.Equal(t, "Preview.tsx", findings[0].File)
	})

	t.Run("type assertions keep event taint", func(t *testing.T) {
		t.Parallel()
		code := `function onInput(e: Event) {
  const raw = (e.target as HTMLInputElement).value;
  eval((raw as string)!);
}
`
		findings := runAnalysisFile(t, "handlers.ts", code)
		assert.Equal(t, []schemas.Check{schemas.CheckEvalUsage}, checksOf(findings))
	})

	t.Run("angle bracket cast parses as typescript", func(t *testing.T) {
		t.Parallel()
		code := "const x: string = 'a';\nconst n = <number>(x.length);\n"
		assert.Empty(t, runAnalysisFile(t, "util.ts", code))
	})

	t.Run("grammar follows the extension", func(t *testing.T) {
		t.Parallel()
		a := NewAnalyzer(config.NewDefaultConfig().Rules.JSX, zaptest.NewLogger(t))
		_, err := a.Analyze(context.Background(), "typed.js", []byte("const x: string = 'a';\n"))
		assert.True(t, errors.Is(err, ErrSyntax))
	})
}

func TestSyntaxError(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(config.NewDefaultConfig().Rules.JSX, zaptest.NewLogger(t))
	findings, err := a.Analyze(context.Background(), "broken.jsx", []byte("function (\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))
	assert.Nil(t, findings)
}

func TestFindingsAreLogged(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.WarnLevel)
	a := NewAnalyzer(config.NewDefaultConfig().Rules.JSX, zap.New(core))

	_, err := a.Analyze(context.Background(), "a.js", []byte("window.alert(1);\n"))
	require.NoError(t, err)
	entries := logs.FilterMessage("Risky construct detected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "a.js:1:0", entries[0].ContextMap()["location"])
}
