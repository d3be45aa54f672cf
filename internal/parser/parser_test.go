package parser

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robotomize/go-rpcjunit/internal/golist"
	"github.com/robotomize/go-rpcjunit/internal/mark"
)

type staticRetriever struct {
	packages []golist.Package
	err      error
}

func (s staticRetriever) Retrieve(context.Context) ([]golist.Package, error) {
	return s.packages, s.err
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	decls, err := ParseFile(filepath.Join("testdata", "uuid_test.go"), "example.com/sample")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	expected := []Declaration{
		{
			Package: "example.com/sample",
			Test:    "TestUUID",
			File:    "uuid_test.go",
			Line:    11,
			Marks:   mark.Set{{Name: mark.TestID, Arg: "123e4567-e89b-12d3-a456-426655440000"}},
		},
		{
			Package: "example.com/sample",
			Test:    "TestLastWins",
			File:    "uuid_test.go",
			Line:    16,
			Marks: mark.Set{
				{Name: mark.TestID, Arg: "first"},
				{Name: mark.TestID, Arg: "second"},
				{Name: mark.Jira, Arg: "ASC-123"},
			},
		},
		{
			Package: "example.com/sample",
			Test:    "TestSleep",
			File:    "uuid_test.go",
			Line:    20,
			Marks:   mark.Set{{Name: mark.Jira, Arg: "ASC-7"}},
		},
		{
			Package: "example.com/sample",
			Test:    "TestNoMarks",
			File:    "uuid_test.go",
			Line:    24,
		},
	}

	if diff := cmp.Diff(expected, decls); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}

	if arg, _ := decls[1].Marks.Last(mark.TestID); arg != "second" {
		t.Errorf("got: %s, want: %s", arg, "second")
	}
}

func TestParser_ParseFiles(t *testing.T) {
	t.Parallel()

	dir, err := filepath.Abs("testdata")
	if err != nil {
		t.Fatalf("filepath.Abs: %v", err)
	}

	p := New(
		staticRetriever{
			packages: []golist.Package{
				{Dir: dir, ImportPath: "example.com/sample", TestGoFiles: []string{"uuid_test.go", "other_test.go"}},
			},
		},
	)

	decls, err := p.ParseFiles(context.Background())
	if err != nil {
		t.Fatalf("ParseFiles: %v", err)
	}

	got := make([]string, 0, len(decls))
	for _, d := range decls {
		got = append(got, d.Key())
	}

	expected := []string{
		"example.com/sample/TestOther",
		"example.com/sample/TestUUID",
		"example.com/sample/TestLastWins",
		"example.com/sample/TestSleep",
		"example.com/sample/TestNoMarks",
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestParser_ParseFilesErrors(t *testing.T) {
	t.Parallel()

	errRetrieve := errors.New("go list failed")
	if _, err := New(staticRetriever{err: errRetrieve}).ParseFiles(context.Background()); !errors.Is(err, errRetrieve) {
		t.Errorf("got: %v, want: %v", err, errRetrieve)
	}

	missing := staticRetriever{packages: []golist.Package{{Dir: t.TempDir(), TestGoFiles: []string{"gone_test.go"}}}}
	if _, err := New(missing).ParseFiles(context.Background()); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestIndex(t *testing.T) {
	t.Parallel()

	decls := []Declaration{
		{Package: "example.com/sample", Test: "TestUUID", File: "uuid_test.go", Line: 11},
		{Package: "example.com/sample", Test: "TestUUID", File: "uuid_linux_test.go", Line: 9},
		{Package: "example.com/other", Test: "TestUUID", File: "uuid_test.go", Line: 5},
	}

	idx := Index(decls)
	if diff := cmp.Diff(2, len(idx)); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(decls[0], idx["example.com/sample/TestUUID"]); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(decls[2], idx["example.com/other/TestUUID"]); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}
