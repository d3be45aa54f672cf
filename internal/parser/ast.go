package parser

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/robotomize/go-rpcjunit/internal/golist"
	"github.com/robotomize/go-rpcjunit/internal/mark"
)

// Declaration is a top level test function and the marks of its doc comment.
type Declaration struct {
	Package string
	Test    string
	File    string
	Line    int
	Marks   mark.Set
}

// Key identifies the declaration the same way go test -json does.
func (d Declaration) Key() string {
	return d.Package + "/" + d.Test
}

// ParseTestFiles parses the test files of packages concurrently and returns
// their test declarations sorted by package, file and line.
func ParseTestFiles(ctx context.Context, packages []golist.Package) ([]Declaration, error) {
	var decls []Declaration

	wg, childCtx := errgroup.WithContext(ctx)
	wg.SetLimit(runtime.NumCPU())

	ch := make(chan []Declaration)
	closeCh := make(chan struct{})

	go func() {
		defer close(closeCh)

		for d := range ch {
			decls = append(decls, d...)
		}
	}()

OuterLoop:
	for _, pkg := range packages {
		pkg := pkg

		for _, pth := range pkg.TestFiles() {
			pth := pth

			select {
			case <-childCtx.Done():
				break OuterLoop
			default:
			}

			wg.Go(
				func() error {
					select {
					case <-childCtx.Done():
						return nil
					default:
					}

					found, err := ParseFile(pth, pkg.ImportPath)
					if err != nil {
						return fmt.Errorf("ParseFile: %w", err)
					}

					ch <- found

					return nil
				},
			)
		}
	}

	err := wg.Wait()
	close(ch)
	<-closeCh

	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(
		decls, func(i, j int) bool {
			a, b := decls[i], decls[j]
			if a.Package != b.Package {
				return a.Package < b.Package
			}
			if a.File != b.File {
				return a.File < b.File
			}
			return a.Line < b.Line
		},
	)

	return decls, nil
}

// ParseFile returns the test functions declared in the file at pth.
func ParseFile(pth, importPath string) ([]Declaration, error) {
	fileSet := token.NewFileSet()

	f, err := parser.ParseFile(fileSet, pth, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parser.ParseFile: %w", err)
	}

	var decls []Declaration
	for _, d := range f.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok || !isTestFunc(fn) {
			continue
		}

		pos := fileSet.Position(fn.Pos())
		decls = append(
			decls, Declaration{
				Package: importPath,
				Test:    fn.Name.Name,
				File:    filepath.Base(pos.Filename),
				Line:    pos.Line,
				Marks:   docMarks(fn.Doc),
			},
		)
	}

	return decls, nil
}

// docMarks reads the raw comment lines: directives are stripped by
// CommentGroup.Text.
func docMarks(doc *ast.CommentGroup) mark.Set {
	if doc == nil {
		return nil
	}

	lines := make([]string, 0, len(doc.List))
	for _, c := range doc.List {
		lines = append(lines, c.Text)
	}

	return mark.ParseLines(lines)
}

// isTestFunc matches the signature go test runs: func TestXxx(*testing.T).
func isTestFunc(fn *ast.FuncDecl) bool {
	if fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") {
		return false
	}

	if rest := fn.Name.Name[len("Test"):]; rest != "" {
		r, _ := utf8.DecodeRuneInString(rest)
		if unicode.IsLower(r) {
			return false
		}
	}

	params := fn.Type.Params.List
	if len(params) != 1 || len(params[0].Names) > 1 {
		return false
	}

	star, ok := params[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}

	sel, ok := star.X.(*ast.SelectorExpr)

	return ok && sel.Sel.Name == "T"
}
