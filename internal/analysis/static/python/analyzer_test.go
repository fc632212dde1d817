package python

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

func defaultRules() config.PythonRulesConfig {
	return config.NewDefaultConfig().Rules.Python
}

func runAnalysis(t *testing.T, code string) []schemas.Finding {
	t.Helper()
	a := NewAnalyzer(defaultRules(), zaptest.NewLogger(t))

	findings, err := a.Analyze(context.Background(), "views.py", []byte(code))
	require.NoError(t, err, "Analysis failed")
	return findings
}

func assertFindings(t *testing.T, findings []schemas.Finding, expectedCount int) {
	t.Helper()
	if !assert.Len(t, findings, expectedCount) {
		for i, f := range findings {
			t.Logf("Finding %d: %s at %s (%s)", i, f.Check, f.Location(), f.Snippet)
		}
	}
}

func assertFinding(t *testing.T, f schemas.Finding, check schemas.Check, line, column int) {
	t.Helper()
	assert.Equal(t, check, f.Check)
	assert.Equal(t, line, f.Line, "line")
	assert.Equal(t, column, f.Column, "column")
}

// -- Scenarios --

func TestSourceToQueryExecution(t *testing.T) {
	t.Parallel()
	code := `def search(request):
    data = request.GET.get('username')
    cursor.execute(data)
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)

	f := findings[0]
	assertFinding(t, f, schemas.CheckSQLInjection, 3, 4)
	assert.Equal(t, "views.py", f.File)
	assert.Equal(t, "Potential SQL Injection detected.", f.Message)
	assert.Equal(t, "cursor.execute", f.Sink)
	assert.Equal(t, "cursor.execute(data)", f.Snippet)
	assert.Equal(t, schemas.LanguagePython, f.Language)
}

func TestParameterizedQueryIsSafe(t *testing.T) {
	t.Parallel()
	code := `def search(request):
    data = request.GET.get('username')
    cursor.execute("SELECT * FROM users WHERE name = ?", (data,))
`
	assertFindings(t, runAnalysis(t, code), 0)
}

func TestSanitizedResponseIsSafe(t *testing.T) {
	t.Parallel()
	code := `def greet(request):
    msg = request.GET.get('msg')
    safe = escape(msg)
    return HttpResponse(safe)
`
	assertFindings(t, runAnalysis(t, code), 0)
}

func TestRawResponse(t *testing.T) {
	t.Parallel()
	code := `def greet(request):
    msg = request.GET.get('msg')
    return HttpResponse(msg)
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assertFinding(t, findings[0], schemas.CheckXSS, 3, 11)
}

// -- Sink categories --

func TestSinkCategories(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		sink  string
		check schemas.Check
	}{
		{"process spawn", "os.system(data)", schemas.CheckCommandInjection},
		{"process check_output", "os.check_output(data)", schemas.CheckCommandInjection},
		{"pickle", "pickle.loads(data)", schemas.CheckInsecureDeserialization},
		{"yaml", "yaml.unsafe_load(data)", schemas.CheckInsecureDeserialization},
		{"raw response", "HttpResponse(data)", schemas.CheckXSS},
		{"generic redirect", "redirect(data)", schemas.CheckUnknown},
		{"generic render", "render(req, 'page.html', {'q': data})", schemas.CheckUnknown},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code := "data = request.POST.get('x')\n" + tt.sink + "\n"
			findings := runAnalysis(t, code)
			assertFindings(t, findings, 1)
			assertFinding(t, findings[0], tt.check, 2, 0)
		})
	}
}

func TestUnmatchedCallsAreNotSinks(t *testing.T) {
	t.Parallel()
	code := `data = request.GET.get('x')
conn.execute(data)
subprocess.system(data)
json.loads(data)
self.cursor.execute(data)
`
	assertFindings(t, runAnalysis(t, code), 0)
}

// -- Propagation --

func TestTaintPropagation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		expr string
	}{
		{"concatenation", `"SELECT " + data`},
		{"f-string", `f"SELECT {data}"`},
		{"implicit concatenation", `"SELECT " f"{data}"`},
		{"percent format", `"SELECT %s" % data`},
		{"boolean operator", `data or "default"`},
		{"comparison", `data == "admin"`},
		{"list", `[1, data]`},
		{"tuple", `(data, 2)`},
		{"set", `{data}`},
		{"dict value", `{"k": data}`},
		{"dict key", `{data: 1}`},
		{"dict splat", `{**data}`},
		{"attribute", `data.strip`},
		{"subscript base", `data[0]`},
		{"subscript index", `lookup[data]`},
		{"slice", `data[1:]`},
		{"parenthesized", `(data)`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code := "data = request.GET.get('x')\nv = " + tt.expr + "\nos.system(v)\n"
			findings := runAnalysis(t, code)
			assertFindings(t, findings, 1)
		})
	}
}

func TestUnknownCallResultIsClean(t *testing.T) {
	t.Parallel()
	code := `data = request.GET.get('x')
v = data.strip()
w = int(data)
os.system(v)
os.system(w)
`
	assertFindings(t, runAnalysis(t, code), 0)
}

func TestSourceWithoutAssignmentTaintsExpression(t *testing.T) {
	t.Parallel()
	code := `cursor.execute(request.GET.get('q'))
cursor.execute("x" + request.COOKIES.get('id'))
cursor.execute(request.session.get('uid'))
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 3)
	for i, f := range findings {
		assert.Equal(t, i+1, f.Line)
	}
}

func TestUnknownSourceBucketIsIgnored(t *testing.T) {
	t.Parallel()
	code := `data = request.FILES.get('upload')
other = req.GET.get('x')
os.system(data)
os.system(other)
`
	assertFindings(t, runAnalysis(t, code), 0)
}

func TestReassignmentClearsTaint(t *testing.T) {
	t.Parallel()
	code := `data = request.GET.get('x')
data = "constant"
os.system(data)
`
	assertFindings(t, runAnalysis(t, code), 0)
}

func TestAnnotatedAssignment(t *testing.T) {
	t.Parallel()
	code := `data: str = request.GET.get('x')
os.system(data)
data: str = "constant"
os.system(data)
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assert.Equal(t, 2, findings[0].Line)
}

func TestAugmentedAssignment(t *testing.T) {
	t.Parallel()

	t.Run("adds taint", func(t *testing.T) {
		code := `cmd = "ls "
cmd += request.GET.get('dir')
os.system(cmd)
`
		assertFindings(t, runAnalysis(t, code), 1)
	})

	t.Run("never clears taint", func(t *testing.T) {
		code := `cmd = request.GET.get('dir')
cmd += " -la"
os.system(cmd)
`
		assertFindings(t, runAnalysis(t, code), 1)
	})
}

func TestComplexTargetsAreUntracked(t *testing.T) {
	t.Parallel()
	code := `a = b = request.GET.get('x')
c, d = request.GET.get('x'), 1
self.e = request.GET.get('x')
os.system(a)
os.system(b)
os.system(c)
os.system(self.e)
`
	assertFindings(t, runAnalysis(t, code), 0)
}

func TestComplexTargetDoesNotClearTaint(t *testing.T) {
	t.Parallel()
	code := `a = request.GET.get('x')
a, b = 1, 2
os.system(a)
`
	assertFindings(t, runAnalysis(t, code), 1)
}

// -- Sink argument rules --

func TestQueryExecutionChecksFirstArgumentOnly(t *testing.T) {
	t.Parallel()
	code := `data = request.GET.get('x')
cursor.execute("SELECT * FROM t WHERE id = %s", data)
cursor.execute("SELECT * FROM t WHERE id = " + data, [])
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assert.Equal(t, 3, findings[0].Line)
}

func TestOneFindingPerTaintedArgument(t *testing.T) {
	t.Parallel()
	code := `a = request.GET.get('a')
b = request.GET.get('b')
os.popen(a, b)
os.popen(a, "r")
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 3)
	for i, line := range []int{3, 3, 4} {
		assertFinding(t, findings[i], schemas.CheckCommandInjection, line, 0)
	}
}

func TestSanitizerArgumentIsSkipped(t *testing.T) {
	t.Parallel()
	code := `data = request.GET.get('x')
HttpResponse(escape(data))
HttpResponse(html.strip_tags(data))
HttpResponse(escape(data), data)
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assert.Equal(t, 4, findings[0].Line)
}

func TestKeywordArgumentsAreNotChecked(t *testing.T) {
	t.Parallel()
	code := `data = request.GET.get('x')
render(req, template_name="page.html", context=data)
HttpResponse(content=data)
`
	assertFindings(t, runAnalysis(t, code), 0)
}

func TestNestedSinkInsideExpression(t *testing.T) {
	t.Parallel()
	code := `data = request.GET.get('x')
log(os.system(data))
items = [os.popen(data) for _ in range(3)]
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 2)
	assertFinding(t, findings[0], schemas.CheckCommandInjection, 2, 4)
	assertFinding(t, findings[1], schemas.CheckCommandInjection, 3, 9)
}

func TestNoBranchSensitivity(t *testing.T) {
	t.Parallel()
	code := `data = request.GET.get('x')
if data == "":
    data = "default"
else:
    pass
os.system(data)
for i in range(3):
    value = request.GET.get('v')
os.system(value)
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assert.Equal(t, 9, findings[0].Line)
}

// -- Interprocedural --

func TestInterproceduralCallDetectedOnce(t *testing.T) {
	t.Parallel()
	code := `def view(request):
    run_query()
    run_query()

def run_query():
    q = request.POST.get('q')
    cursor.execute(q)
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assertFinding(t, findings[0], schemas.CheckSQLInjection, 7, 4)
}

func TestEntryWalkWithoutCaller(t *testing.T) {
	t.Parallel()
	code := `def run_query():
    q = request.POST.get('q')
    cursor.execute(q)

def view(request):
    run_query()
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assert.Equal(t, 3, findings[0].Line)
}

func TestCalleeInheritsCallerTaint(t *testing.T) {
	t.Parallel()
	code := `def view(request):
    cmd = request.GET.get('c')
    run()

def run():
    os.system(cmd)
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assertFinding(t, findings[0], schemas.CheckCommandInjection, 6, 4)
}

func TestCalleeStateDoesNotLeak(t *testing.T) {
	t.Parallel()
	code := `def view(request):
    x = "safe"
    taint_it()
    os.system(x)

def taint_it():
    x = request.GET.get('a')
`
	assertFindings(t, runAnalysis(t, code), 0)
}

func TestLocalCallResultIsTainted(t *testing.T) {
	t.Parallel()
	code := `def helper():
    return "constant"

def view(request):
    value = helper()
    os.system(value)
    os.system(self.helper())
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 2)
}

func TestRecursiveFunctionsTerminate(t *testing.T) {
	t.Parallel()
	code := `def ping(n):
    data = request.GET.get('x')
    pong(n)
    os.system(data)

def pong(n):
    ping(n)
    pong(n)
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assert.Equal(t, 4, findings[0].Line)
}

func TestMethodsAndNestedFunctionsAreRegistered(t *testing.T) {
	t.Parallel()
	code := `class SearchView(View):
    @method_decorator(login_required)
    def get(self, request):
        term = request.GET.get('term')
        cursor.execute("SELECT " + term)

def outer():
    def inner():
        os.system(request.GET.get('cmd'))
    return inner
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 2)
	assertFinding(t, findings[0], schemas.CheckSQLInjection, 5, 8)
	assertFinding(t, findings[1], schemas.CheckCommandInjection, 9, 8)
}

func TestDecoratorCallsAreWalked(t *testing.T) {
	t.Parallel()
	code := `cmd = request.GET.get('c')

@cache(os.system(cmd))
def view():
    return None
`
	findings := runAnalysis(t, code)
	assertFindings(t, findings, 1)
	assertFinding(t, findings[0], schemas.CheckCommandInjection, 3, 7)
}

func TestDuplicateDefinitionLaterWins(t *testing.T) {
	t.Parallel()
	code := `def handler():
    os.system(request.GET.get('a'))

def handler():
    return None
`
	assertFindings(t, runAnalysis(t, code), 0)
}

// -- Errors and logging --

func TestSyntaxErrorRejectsFile(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(defaultRules(), zaptest.NewLogger(t))

	findings, err := a.Analyze(context.Background(), "broken.py", []byte("def broken(:\n    os.system(request.GET.get('x'))\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))
	assert.Contains(t, err.Error(), "broken.py:1:")
	assert.Nil(t, findings)
}

func TestEmptyFile(t *testing.T) {
	t.Parallel()
	findings := runAnalysis(t, "")
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

func TestFindingsAreLogged(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.WarnLevel)
	a := NewAnalyzer(defaultRules(), zap.New(core))

	_, err := a.Analyze(context.Background(), "views.py", []byte("os.system(request.GET.get('x'))\n"))
	require.NoError(t, err)

	entries := logs.FilterMessage("Taint flow detected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "python.py_walker", entries[0].LoggerName)
	assert.Equal(t, "Command Injection", entries[0].ContextMap()["check"])
	assert.Equal(t, "views.py:1:0", entries[0].ContextMap()["location"])
}

func TestEntryWalkIsLogged(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.DebugLevel)
	a := NewAnalyzer(defaultRules(), zap.New(core))

	code := `def detail(request, pk):
    return pk
`
	_, err := a.Analyze(context.Background(), "views.py", []byte(code))
	require.NoError(t, err)

	entries := logs.FilterMessage("Entry walk").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "detail", fields["function"])
	assert.Equal(t, []interface{}{"request", "pk"}, fields["untainted_params"])
}

func TestCustomRules(t *testing.T) {
	t.Parallel()
	rules := defaultRules()
	rules.SourceRootNames = []string{"flask_request"}
	rules.SourceBucketNames = []string{"args"}
	rules.SQLCursorNames = []string{"db"}
	rules.SanitizerFunctionNames = []string{"bleach_clean"}
	a := NewAnalyzer(rules, zaptest.NewLogger(t))

	code := `q = flask_request.args.get('q')
db.execute(q)
db.execute(bleach_clean(q))
cursor.execute(q)
`
	findings, err := a.Analyze(context.Background(), "app.py", []byte(code))
	require.NoError(t, err)
	assertFindings(t, findings, 1)
	assert.Equal(t, 2, findings[0].Line)
}
