package gotest

import (
	"context"
	_ "embed"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/robotomize/go-rpcjunit/internal/mark"
	"github.com/robotomize/go-rpcjunit/internal/slice"
)

//go:embed testdata/positive_run.txt
var positiveRun string

//go:embed testdata/negative_run.txt
var negativeRun string

const pkg = "github.com/robotomize/go-rpcjunit/internal/slice"

func TestReader_ReadAll(t *testing.T) {
	t.Parallel()

	type expectedTest struct {
		Name    string
		Status  string
		Elapsed time.Duration
		Marks   mark.Set
		Message string
	}

	testCases := []struct {
		name       string
		input      string
		expected   []expectedTest
		failed     bool
		marshalErr bool
	}{
		{
			name:  "test_pass_run",
			input: positiveRun,
			expected: []expectedTest{
				{Name: "TestFilter", Status: ActionPass, Elapsed: 1300 * time.Microsecond},
				{
					Name:    "TestFilter/test_filtered",
					Status:  ActionPass,
					Elapsed: 500 * time.Microsecond,
					Marks: mark.Set{
						{Name: mark.TestID, Arg: "6e9e5f3a-0b4e-4bde-a0b8-5c1d0e9e4b11"},
						{Name: mark.Jira, Arg: "ASC-101"},
					},
				},
				{Name: "TestFilter/test_empty_input", Status: ActionPass, Elapsed: 300 * time.Microsecond},
				{Name: "TestSleep", Status: ActionPass, Elapsed: 2 * time.Second},
				{Name: "TestSkipped", Status: ActionSkip, Elapsed: 400 * time.Microsecond, Message: "slice_test.go:90: needs a cloud"},
			},
		},
		{
			name:       "test_fail_run",
			input:      negativeRun,
			failed:     true,
			marshalErr: true,
			expected: []expectedTest{
				{
					Name:    "TestFind",
					Status:  ActionFail,
					Elapsed: 600 * time.Microsecond,
					Marks: mark.Set{
						{Name: mark.TestID, Arg: "first"},
						{Name: mark.TestID, Arg: "second"},
					},
					Message: "slice_test.go:20: got: 1, want: 2",
				},
				{Name: "TestFlat", Status: StatusError, Elapsed: 500 * time.Microsecond, Message: "panic: runtime error: index out of range [3] with length 3 [recovered]"},
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				reader := NewReader(strings.NewReader(tc.input))
				all, err := reader.ReadAll(context.Background())
				if err != nil {
					t.Fatal(err)
				}

				if (all.Err != nil) != tc.marshalErr {
					t.Errorf("got: %v, want: %v", all.Err, tc.marshalErr)
				}

				if diff := cmp.Diff(tc.failed, all.Failed()); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}

				got := slice.Map(
					all.Tests, func(t Test) expectedTest {
						return expectedTest{
							Name:    t.Name,
							Status:  t.Status,
							Elapsed: t.Elapsed,
							Marks:   t.Marks(),
							Message: func() string {
								if t.Status == ActionPass {
									return ""
								}
								return t.Message()
							}(),
						}
					},
				)

				if diff := cmp.Diff(tc.expected, got); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}

				for _, test := range all.Tests {
					if test.Package != pkg {
						t.Errorf("got: %s, want: %s", test.Package, pkg)
					}
					if test.Stop.Before(test.Start) {
						t.Errorf("%s: stop %v before start %v", test.Name, test.Stop, test.Start)
					}
				}
			},
		)
	}
}

func TestReader_ReadAllCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader(strings.NewReader(positiveRun)).ReadAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got: %v, want: %v", err, context.Canceled)
	}
}

func TestTest_Names(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		parent string
		root   string
	}{
		{name: "TestFilter", parent: "", root: "TestFilter"},
		{name: "TestFilter/test_filtered", parent: "TestFilter", root: "TestFilter"},
		{name: "TestFilter/a/b", parent: "TestFilter/a", root: "TestFilter"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				test := Test{Name: tc.name, Package: pkg}
				if diff := cmp.Diff(tc.parent, test.Parent()); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
				if diff := cmp.Diff(tc.root, test.Root()); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
				if diff := cmp.Diff(pkg+"/"+tc.name, test.FullName()); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
			},
		)
	}
}
