package httpx

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Upstream requests must go through the session client so that headers,
// cookies, query parameters and the rate limit apply to every one of them.
// These net/http entry points use http.DefaultClient and bypass it.
var bypassingSelectors = map[string]bool{
	"DefaultClient": true,
	"Get":           true,
	"Head":          true,
	"Post":          true,
	"PostForm":      true,
}

func TestNoRequestsBypassSessionClient(t *testing.T) {
	root := filepath.Clean(filepath.Join("..", "..", ".."))
	var violations []string
	fset := token.NewFileSet()

	for _, dir := range []string{"internal", "cmd"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
			if err != nil {
				return err
			}
			violations = append(violations, bypassingUses(fset, file)...)
			return nil
		})
		if err != nil {
			t.Fatalf("scan %s: %v", dir, err)
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("requests bypassing the session client:\n%s", strings.Join(violations, "\n"))
	}
}

// bypassingUses reports http.<sel> references for the selectors above. The
// net/http import may be renamed.
func bypassingUses(fset *token.FileSet, file *ast.File) []string {
	pkg := ""
	for _, imp := range file.Imports {
		if imp.Path.Value != `"net/http"` {
			continue
		}
		pkg = "http"
		if imp.Name != nil {
			pkg = imp.Name.Name
		}
	}
	if pkg == "" {
		return nil
	}

	var out []string
	ast.Inspect(file, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == pkg && bypassingSelectors[sel.Sel.Name] {
			out = append(out, fset.Position(sel.Pos()).String()+": http."+sel.Sel.Name)
		}
		return true
	})
	return out
}

func TestBypassingUses(t *testing.T) {
	src := `package x

import nethttp "net/http"

func f() {
	_, _ = nethttp.Get("http://example.com")
	_ = nethttp.DefaultClient
	_ = nethttp.MethodGet
}
`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "x.go", src, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := bypassingUses(fset, file)
	if len(got) != 2 {
		t.Fatalf("got %d violations, want 2: %v", len(got), got)
	}
}
