package schema

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robotomize/go-rpcjunit/internal/envsnap"
	"github.com/robotomize/go-rpcjunit/internal/junit"
)

func validSuite(p envsnap.Profile) *junit.Suite {
	s := junit.NewSuite("gotest")
	snap := envsnap.Capture(p, func(string) (string, bool) { return "", false }).With(RunnerProperty, "gotest")
	s.Properties = snap.Properties()

	tc := &junit.TestCase{ClassName: "pkg", Name: "TestUUID"}
	tc.AddProperty("test_id", "123e4567-e89b-12d3-a456-426655440000")
	tc.AddProperty("jira", "ASC-123")
	tc.AddProperty("start_time", "2018-10-16T16:23:54Z")
	tc.AddProperty("end_time", "2018-10-16T16:23:56Z")
	s.TestCases = append(s.TestCases, tc)
	s.Recount()

	return s
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mutate   func(s *junit.Suite)
		expected []Violation
	}{
		{
			name:   "test_conformant_report",
			mutate: func(s *junit.Suite) {},
		},
		{
			name: "test_without_timestamps",
			mutate: func(s *junit.Suite) {
				s.TestCases[0].Properties = s.TestCases[0].Properties[:2]
			},
		},
		{
			name: "test_missing_jira",
			mutate: func(s *junit.Suite) {
				s.TestCases[0].Properties = s.TestCases[0].Properties[:1]
			},
			expected: []Violation{{Case: "pkg.TestUUID", Property: "jira", Reason: ReasonMissing}},
		},
		{
			name: "test_missing_test_id",
			mutate: func(s *junit.Suite) {
				s.TestCases[0].Properties = s.TestCases[0].Properties[1:]
			},
			expected: []Violation{{Case: "pkg.TestUUID", Property: "test_id", Reason: ReasonMissing}},
		},
		{
			name: "test_extra_case_property",
			mutate: func(s *junit.Suite) {
				s.TestCases[0].AddProperty("foo", "bar")
			},
			expected: []Violation{{Case: "pkg.TestUUID", Property: "foo", Reason: ReasonUnknown}},
		},
		{
			name: "test_duplicate_case_property",
			mutate: func(s *junit.Suite) {
				s.TestCases[0].AddProperty("jira", "ASC-456")
			},
			expected: []Violation{{Case: "pkg.TestUUID", Property: "jira", Reason: ReasonDuplicate}},
		},
		{
			name: "test_missing_suite_property",
			mutate: func(s *junit.Suite) {
				s.Properties = s.Properties[1:]
			},
			expected: []Violation{{Property: "BUILD_URL", Reason: ReasonMissing}},
		},
		{
			name: "test_extra_suite_property",
			mutate: func(s *junit.Suite) {
				s.AddProperty("foo", "bar")
			},
			expected: []Violation{{Property: "foo", Reason: ReasonUnknown}},
		},
		{
			name: "test_missing_runner",
			mutate: func(s *junit.Suite) {
				s.Properties = s.Properties[:len(s.Properties)-1]
			},
			expected: []Violation{{Property: RunnerProperty, Reason: ReasonMissing}},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				s := validSuite(envsnap.Release)
				tc.mutate(s)

				res := Validate(s, DefaultRules(envsnap.Release))
				if diff := cmp.Diff(tc.expected, res.Violations); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
				if res.Valid != (len(tc.expected) == 0) {
					t.Errorf("got: %v, want: %v", res.Valid, len(tc.expected) == 0)
				}
			},
		)
	}
}

func TestValidate_ProfileMismatch(t *testing.T) {
	t.Parallel()

	res := Validate(validSuite(envsnap.CI), DefaultRules(envsnap.Release))
	if res.Valid {
		t.Fatal("a ci report must not satisfy the release contract")
	}
}

func TestValidateReader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := junit.Encode(&buf, validSuite(envsnap.CI)); err != nil {
		t.Fatalf("junit.Encode: %v", err)
	}

	res, err := ValidateReader(&buf, DefaultRules(envsnap.CI))
	if err != nil {
		t.Fatalf("ValidateReader: %v", err)
	}
	if !res.Valid {
		t.Errorf("unexpected violations: %v", res.Violations)
	}

	if _, err := ValidateReader(bytes.NewBufferString("<html/>"), DefaultRules(envsnap.CI)); !errors.Is(err, junit.ErrNoSuite) {
		t.Errorf("got: %v, want: %v", err, junit.ErrNoSuite)
	}
}

func TestXSD(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff([]string{"ci", "release"}, Profiles()); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}

	for _, p := range []envsnap.Profile{envsnap.Release, envsnap.CI} {
		p := p
		t.Run(
			p.Name, func(t *testing.T) {
				t.Parallel()

				r, err := XSD(p.Name)
				if err != nil {
					t.Fatalf("XSD: %v", err)
				}

				enums, count := readXSD(t, r)
				rules := DefaultRules(p)

				if diff := cmp.Diff(rules.SuiteRequired, enums["suitePropertyName"]); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
				caseNames := append(append([]string(nil), rules.CaseRequired...), rules.CaseOptional...)
				if diff := cmp.Diff(caseNames, enums["casePropertyName"]); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
				if diff := cmp.Diff(len(rules.SuiteRequired), count); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
			},
		)
	}

	if _, err := XSD("nightly"); !errors.Is(err, ErrNoSchema) {
		t.Errorf("got: %v, want: %v", err, ErrNoSchema)
	}
}

// readXSD returns the enumerations of every named simple type and the fixed
// occurrence count of suite properties.
func readXSD(t *testing.T, r io.Reader) (map[string][]string, int) {
	t.Helper()

	enums := make(map[string][]string)
	count := -1

	var current string
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("xml.Decoder.Token: %v", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		attrs := make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			attrs[a.Name.Local] = a.Value
		}

		switch start.Name.Local {
		case "simpleType":
			current = attrs["name"]
		case "enumeration":
			enums[current] = append(enums[current], attrs["value"])
		case "element":
			if attrs["type"] == "suiteProperty" {
				count, err = strconv.Atoi(attrs["minOccurs"])
				if err != nil {
					t.Fatalf("strconv.Atoi: %v", err)
				}
			}
		}
	}

	return enums, count
}
