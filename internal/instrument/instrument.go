// Package instrument rewrites Go source so that every function reports its
// calls to the hook runtime.
//
// Each function declaration with a body gets
//
//	defer hook.Enter()()
//
// as its first statement, qualified with the name the file imports the hook
// package under. Function literals are left alone, they are timed
// as part of the function declaring them. Operators are never wrapped: Go
// operators don't dispatch to user code, so there is no call to time.
package instrument

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"
)

// HookImportPath is the import path of the runtime instrumented code calls.
const HookImportPath = "github.com/getsentry/callprof/pkg/hook"

type Options struct {
	// Skip lists the functions left untouched, by name ("main") or by
	// receiver type and name ("Model.Forward").
	Skip []string
}

// File instruments the function declarations of file and adds the hook
// import if needed. It returns the number of functions it instrumented.
func File(fset *token.FileSet, file *ast.File, opts Options) int {
	skip := make(map[string]struct{}, len(opts.Skip))
	for _, s := range opts.Skip {
		skip[s] = struct{}{}
	}
	name, imported := importName(file)

	count := 0
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		if _, exists := skip[fn.Name.Name]; exists {
			continue
		}
		if _, exists := skip[qualifiedName(fn)]; exists {
			continue
		}
		if isInstrumented(fn.Body, name) {
			continue
		}
		fn.Body.List = append([]ast.Stmt{enterStmt(name)}, fn.Body.List...)
		count++
	}
	if count > 0 && !imported {
		addImport(fset, file, name)
	}
	return count
}

// Source parses, instruments and formats a Go source file.
func Source(filename string, src []byte, opts Options) ([]byte, int, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, 0, fmt.Errorf("instrument: %w", err)
	}
	count := File(fset, file, opts)
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, 0, fmt.Errorf("instrument: %s: %w", filename, err)
	}
	return buf.Bytes(), count, nil
}

// importName returns the name the hook package is imported under in file and
// true, "." for a dot import, or the name to import it under and false if it
// can't be referred to yet. That name is "hook", or fallbackImportName when
// another import already uses "hook".
func importName(file *ast.File) (string, bool) {
	taken, dot := false, false
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if p != HookImportPath {
			if localName(imp, p) == "hook" {
				taken = true
			}
			continue
		}
		switch {
		case imp.Name == nil:
			return "hook", true
		case imp.Name.Name == ".":
			dot = true
		case imp.Name.Name != "_":
			return imp.Name.Name, true
		}
	}
	if dot {
		return ".", true
	}
	if taken {
		return fallbackImportName, false
	}
	return "hook", false
}

// fallbackImportName is the hook import name used when "hook" is taken.
const fallbackImportName = "callprofhook"

// localName is the name an import is referred to by, assuming the package
// name is the last element of its path.
func localName(imp *ast.ImportSpec, importPath string) string {
	if imp.Name != nil {
		return imp.Name.Name
	}
	return path.Base(importPath)
}

// addImport imports the hook package under name. A blank import of it is
// turned into the named one rather than imported twice.
func addImport(fset *token.FileSet, file *ast.File, name string) {
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || p != HookImportPath || imp.Name == nil || imp.Name.Name != "_" {
			continue
		}
		if name == "hook" {
			imp.Name = nil
		} else {
			imp.Name.Name = name
		}
		return
	}
	if name == "hook" {
		astutil.AddImport(fset, file, HookImportPath)
		return
	}
	astutil.AddNamedImport(fset, file, name, HookImportPath)
}

func qualifiedName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	return receiverTypeName(fn.Recv.List[0].Type) + "." + fn.Name.Name
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	case *ast.ParenExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

// enterStmt returns the deferred Enter call, unqualified when the hook
// package is dot imported.
func enterStmt(name string) ast.Stmt {
	var enter ast.Expr = ast.NewIdent("Enter")
	if name != "." {
		enter = &ast.SelectorExpr{
			X:   ast.NewIdent(name),
			Sel: ast.NewIdent("Enter"),
		}
	}
	return &ast.DeferStmt{
		Call: &ast.CallExpr{
			Fun: &ast.CallExpr{Fun: enter},
		},
	}
}

func isInstrumented(body *ast.BlockStmt, name string) bool {
	if len(body.List) == 0 {
		return false
	}
	d, ok := body.List[0].(*ast.DeferStmt)
	if !ok {
		return false
	}
	inner, ok := d.Call.Fun.(*ast.CallExpr)
	if !ok {
		return false
	}
	if name == "." {
		id, ok := inner.Fun.(*ast.Ident)
		return ok && id.Name == "Enter"
	}
	sel, ok := inner.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	x, ok := sel.X.(*ast.Ident)
	return ok && x.Name == name && sel.Sel.Name == "Enter"
}
