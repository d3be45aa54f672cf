package junit

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	suite := NewSuite("gotest")
	suite.AddProperty("BUILD_URL", "Unknown")
	tc := &TestCase{ClassName: "pkg", Name: "TestUUID"}
	tc.AddProperty("test_id", "123e4567-e89b-12d3-a456-426655440000")
	suite.TestCases = append(suite.TestCases, tc, &TestCase{ClassName: "pkg", Name: "TestBare"})
	suite.Recount()

	var buf bytes.Buffer
	if err := Encode(&buf, suite); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("missing xml header: %q", out)
	}

	props := strings.Index(out, `<property name="BUILD_URL" value="Unknown">`)
	firstCase := strings.Index(out, "<testcase")
	if props < 0 || firstCase < 0 || props > firstCase {
		t.Errorf("suite properties must precede test cases:\n%s", out)
	}

	if strings.Count(out, "<properties>") != 2 {
		t.Errorf("a case without properties must not carry an empty properties block:\n%s", out)
	}

	if !strings.Contains(out, `tests="2" errors="0" failures="0" skips="0"`) {
		t.Errorf("unexpected suite attributes:\n%s", out)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected *Suite
		err      error
	}{
		{
			name: "test_bare_suite",
			input: `<?xml version="1.0" encoding="UTF-8"?>
<testsuite name="pytest" tests="1" errors="0" failures="0" skips="0">
  <properties><property name="RPC_RELEASE" value="r17.1.0"/></properties>
  <testcase classname="test_rpc" name="test_uuid">
    <properties><property name="test_id" value="abc"/><property name="jira" value="ASC-1"/></properties>
  </testcase>
</testsuite>`,
			expected: &Suite{
				Name:       "pytest",
				Tests:      1,
				Properties: []Property{{Name: "RPC_RELEASE", Value: "r17.1.0"}},
				TestCases: []*TestCase{
					{
						ClassName:  "test_rpc",
						Name:       "test_uuid",
						Properties: []Property{{Name: "test_id", Value: "abc"}, {Name: "jira", Value: "ASC-1"}},
					},
				},
			},
		},
		{
			name: "test_wrapped_suite",
			input: `<testsuites><testsuite name="first" tests="0" errors="0" failures="0" skips="0"/>
<testsuite name="second" tests="0" errors="0" failures="0" skips="0"/></testsuites>`,
			expected: &Suite{Name: "first"},
		},
		{
			name:  "test_empty_wrapper",
			input: `<testsuites></testsuites>`,
			err:   ErrNoSuite,
		},
		{
			name:  "test_wrong_root",
			input: `<report/>`,
			err:   ErrNoSuite,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				suite, err := Decode(strings.NewReader(tc.input))
				if tc.err != nil {
					if !errors.Is(err, tc.err) {
						t.Fatalf("got: %v, want: %v", err, tc.err)
					}
					return
				}
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}

				if diff := cmp.Diff(tc.expected, suite, cmpopts.IgnoreFields(Suite{}, "XMLName")); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
			},
		)
	}
}

func TestSuite_Recount(t *testing.T) {
	t.Parallel()

	suite := &Suite{
		TestCases: []*TestCase{
			{Name: "pass"},
			{Name: "fail", Failure: &Result{Message: "boom"}},
			{Name: "err", Error: &Result{Message: "panic"}},
			{Name: "skip", Skipped: &Result{}},
			{Name: "skip2", Skipped: &Result{}},
		},
	}
	suite.Recount()

	got := []int{suite.Tests, suite.Errors, suite.Failures, suite.Skips}
	if diff := cmp.Diff([]int{5, 1, 1, 2}, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}
