// Package schema ships the closed JUnit report contract, both as an XSD
// artifact for external validators and as Rules checked in Go.
//
// The XSD keeps property names closed and unique and fixes their count. What
// XSD 1.0 cannot say about repeated <property> elements, such as "test_id must be
// one of the case properties", is enforced by Validate.
package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/robotomize/go-rpcjunit/internal/envsnap"
	"github.com/robotomize/go-rpcjunit/internal/junit"
	"github.com/robotomize/go-rpcjunit/internal/mark"
)

// RunnerProperty is the suite property recording the runner identity.
const RunnerProperty = "test-runner"

var ErrNoSchema = errors.New("no schema for profile")

//go:embed data/*.xsd
var xsdFS embed.FS

// XSD returns the schema document for the named environment profile.
func XSD(profile string) (io.Reader, error) {
	b, err := xsdFS.ReadFile("data/" + profile + ".xsd")
	if err != nil {
		return nil, fmt.Errorf("%q: %w", profile, ErrNoSchema)
	}

	return bytes.NewReader(b), nil
}

// Profiles lists the profiles an XSD is shipped for.
func Profiles() []string {
	entries, err := xsdFS.ReadDir("data")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".xsd"))
	}
	sort.Strings(names)

	return names
}

// Rules is the property contract of a report revision. Names outside the
// required and optional lists are rejected.
type Rules struct {
	SuiteRequired []string
	CaseRequired  []string
	CaseOptional  []string
}

// DefaultRules returns the contract matching the XSD of profile p.
func DefaultRules(p envsnap.Profile) Rules {
	suite := make([]string, 0, len(p.Vars)+1)
	suite = append(suite, p.Vars...)

	return Rules{
		SuiteRequired: append(suite, RunnerProperty),
		CaseRequired:  append([]string(nil), mark.Known...),
		CaseOptional:  []string{"start_time", "end_time"},
	}
}

type Reason string

const (
	ReasonMissing   Reason = "missing"
	ReasonDuplicate Reason = "duplicate"
	ReasonUnknown   Reason = "unknown"
)

// Violation describes one breach of the contract. Case is empty for suite
// level violations.
type Violation struct {
	Case     string
	Property string
	Reason   Reason
}

func (v Violation) String() string {
	if v.Case == "" {
		return fmt.Sprintf("testsuite: %s property %q", v.Reason, v.Property)
	}

	return fmt.Sprintf("testcase %s: %s property %q", v.Case, v.Reason, v.Property)
}

type Result struct {
	Valid      bool
	Violations []Violation
}

// Validate checks suite against rules. Non-conformance is reported in the
// result, never as an error.
func Validate(suite *junit.Suite, rules Rules) Result {
	var violations []Violation
	if suite == nil {
		return Result{Violations: []Violation{{Property: "testsuite", Reason: ReasonMissing}}}
	}

	violations = append(violations, check("", suite.Properties, rules.SuiteRequired, nil)...)
	for _, tc := range suite.TestCases {
		id := tc.ClassName + "." + tc.Name
		if tc.ClassName == "" {
			id = tc.Name
		}
		violations = append(violations, check(id, tc.Properties, rules.CaseRequired, rules.CaseOptional)...)
	}

	return Result{Valid: len(violations) == 0, Violations: violations}
}

// ValidateReader decodes a report from r and validates it.
func ValidateReader(r io.Reader, rules Rules) (Result, error) {
	suite, err := junit.Decode(r)
	if err != nil {
		return Result{}, fmt.Errorf("junit.Decode: %w", err)
	}

	return Validate(suite, rules), nil
}

func check(caseID string, props []junit.Property, required, optional []string) []Violation {
	allowed := make(map[string]bool, len(required)+len(optional))
	for _, n := range required {
		allowed[n] = true
	}
	for _, n := range optional {
		allowed[n] = true
	}

	var out []Violation
	seen := make(map[string]int, len(props))
	for _, p := range props {
		seen[p.Name]++
		switch {
		case !allowed[p.Name]:
			out = append(out, Violation{Case: caseID, Property: p.Name, Reason: ReasonUnknown})
		case seen[p.Name] == 2:
			out = append(out, Violation{Case: caseID, Property: p.Name, Reason: ReasonDuplicate})
		}
	}

	for _, n := range required {
		if seen[n] == 0 {
			out = append(out, Violation{Case: caseID, Property: n, Reason: ReasonMissing})
		}
	}

	return out
}
