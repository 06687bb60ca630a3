// Package nodefaultclient implements an analyzer forbidding the package-level
// net/http client helpers.
package nodefaultclient

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports http.Get, http.Head, http.Post, http.PostForm and any use
// of http.DefaultClient outside tests. Those bypass the configured client and
// its timeout.
var Analyzer = &analysis.Analyzer{
	Name:     "nodefaultclient",
	Doc:      "forbid net/http package-level client helpers and http.DefaultClient",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var forbidden = map[string]bool{
	"Get":           true,
	"Head":          true,
	"Post":          true,
	"PostForm":      true,
	"DefaultClient": true,
}

func run(pass *analysis.Pass) (any, error) {
	ins := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	skip := make(map[*ast.File]bool)
	for _, f := range pass.Files {
		fn := pass.Fset.Position(f.Pos()).Filename
		if strings.HasSuffix(fn, "_test.go") || strings.Contains(fn, "/.cache/go-build/") || isGenerated(f) {
			skip[f] = true
		}
	}

	var file *ast.File
	ins.Preorder([]ast.Node{(*ast.File)(nil), (*ast.SelectorExpr)(nil)}, func(n ast.Node) {
		if f, ok := n.(*ast.File); ok {
			file = f
			return
		}
		if skip[file] {
			return
		}

		sel := n.(*ast.SelectorExpr)
		if !forbidden[sel.Sel.Name] {
			return
		}
		obj := pass.TypesInfo.Uses[sel.Sel]
		if obj == nil || obj.Pkg() == nil || obj.Pkg().Path() != "net/http" {
			return
		}
		// methods such as (*http.Client).Get are fine
		if fn, ok := obj.(*types.Func); ok && fn.Type().(*types.Signature).Recv() != nil {
			return
		}
		pass.Reportf(sel.Pos(), "use of http.%s bypasses the configured client; pass an *http.Client", sel.Sel.Name)
	})
	return nil, nil
}

func isGenerated(f *ast.File) bool {
	for _, cg := range f.Comments {
		for _, c := range cg.List {
			if strings.Contains(c.Text, "Code generated") && strings.Contains(c.Text, "DO NOT EDIT") {
				return true
			}
		}
	}
	return false
}
