package instrument

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

const source = `package pipeline

import "fmt"

type Model struct{}

// Forward runs the model.
func (m *Model) Forward(x int) int {
	return x * 2
}

func preprocess(x int) int {
	f := func() int { return x + 1 }
	return f()
}

func main() {
	fmt.Println(preprocess(1))
}
`

func TestSource(t *testing.T) {
	out, count, err := Source("pipeline.go", []byte(source), Options{Skip: []string{"main"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("want 2 instrumented functions, got %d", count)
	}

	got := string(out)
	if n := strings.Count(got, "defer hook.Enter()()"); n != 2 {
		t.Fatalf("want 2 hooks, got %d in\n%s", n, got)
	}
	if !strings.Contains(got, `"`+HookImportPath+`"`) {
		t.Fatalf("the hook import should be added, got\n%s", got)
	}
	if !strings.Contains(got, "func main() {\n\tfmt.Println(preprocess(1))\n}") {
		t.Fatalf("main should be skipped, got\n%s", got)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "out.go", out, 0); err != nil {
		t.Fatalf("the output should parse: %v", err)
	}
}

func TestSourceIsIdempotent(t *testing.T) {
	once, _, err := Source("pipeline.go", []byte(source), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, count, err := Source("pipeline.go", once, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("nothing should be instrumented twice, got %d", count)
	}
	if string(once) != string(twice) {
		t.Fatalf("second pass changed the source:\n%s\n---\n%s", once, twice)
	}
}

func TestSourceSkipQualifiedName(t *testing.T) {
	out, count, err := Source("pipeline.go", []byte(source), Options{Skip: []string{"Model.Forward"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("want 2 instrumented functions, got %d", count)
	}
	if !strings.Contains(string(out), "func (m *Model) Forward(x int) int {\n\treturn x * 2\n}") {
		t.Fatalf("Forward should be skipped, got\n%s", out)
	}
}

func TestSourceUsesExistingImportName(t *testing.T) {
	src := `package pipeline

import callhook "` + HookImportPath + `"

var _ = callhook.Enter

func run() {}
`
	out, count, err := Source("pipeline.go", []byte(src), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("want 1 instrumented function, got %d", count)
	}
	got := string(out)
	if !strings.Contains(got, "defer callhook.Enter()()") {
		t.Fatalf("the existing import name should be used, got\n%s", got)
	}
	if strings.Count(got, HookImportPath) != 1 {
		t.Fatalf("the import should not be duplicated, got\n%s", got)
	}
}

func TestSourceImports(t *testing.T) {
	tests := []struct {
		name    string
		imports string
		stmt    string
		// number of imports of the hook package in the output
		hookImports int
		contains    string
	}{
		{
			name:        "blank import",
			imports:     `import _ "` + HookImportPath + `"`,
			stmt:        "defer hook.Enter()()",
			hookImports: 1,
			contains:    "import \"" + HookImportPath + "\"",
		},
		{
			name:        "dot import",
			imports:     `import . "` + HookImportPath + `"`,
			stmt:        "defer Enter()()",
			hookImports: 1,
			contains:    `. "` + HookImportPath + `"`,
		},
		{
			name:        "unrelated hook package",
			imports:     `import "example.com/git/hook"` + "\n\nvar _ = hook.Install",
			stmt:        "defer callprofhook.Enter()()",
			hookImports: 1,
			contains:    `callprofhook "` + HookImportPath + `"`,
		},
		{
			name:        "unrelated hook package and blank import",
			imports:     "import (\n\t\"example.com/git/hook\"\n\t_ \"" + HookImportPath + "\"\n)\n\nvar _ = hook.Install",
			stmt:        "defer callprofhook.Enter()()",
			hookImports: 1,
			contains:    `callprofhook "` + HookImportPath + `"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package pipeline\n\n" + tt.imports + "\n\nfunc run() {}\n"
			out, count, err := Source("pipeline.go", []byte(src), Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if count != 1 {
				t.Fatalf("want 1 instrumented function, got %d", count)
			}
			got := string(out)
			if !strings.Contains(got, tt.stmt) {
				t.Fatalf("want %q, got\n%s", tt.stmt, got)
			}
			if n := strings.Count(got, `"`+HookImportPath+`"`); n != tt.hookImports {
				t.Fatalf("want %d hook imports, got %d in\n%s", tt.hookImports, n, got)
			}
			if !strings.Contains(got, tt.contains) {
				t.Fatalf("want %q, got\n%s", tt.contains, got)
			}

			again, count, err := Source("pipeline.go", out, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if count != 0 || string(again) != got {
				t.Fatalf("second pass changed the source:\n%s", again)
			}
		})
	}
}

func TestSourceInvalid(t *testing.T) {
	if _, _, err := Source("broken.go", []byte("package"), Options{}); err == nil {
		t.Fatal("invalid source should fail to parse")
	}
}
