// Package mark models the declarative marks a test carries: an ordered list of
// (name, argument) pairs where the last declaration of a name wins.
package mark

import (
	"regexp"
	"strings"

	"github.com/robotomize/go-rpcjunit/internal/slice"
)

const (
	TestID = "test_id"
	Jira   = "jira"
)

// Known lists every mark name the augmenter understands, in attachment order.
var Known = []string{TestID, Jira}

// Prefix starts a mark directive in a comment or in test output.
const Prefix = "rpc:"

var directiveRe = regexp.MustCompile(`(?:^|\s|//)rpc:([A-Za-z_][A-Za-z0-9_]*)(?:\s+|=)(\S.*)$`)

type Mark struct {
	Name string
	Arg  string
}

// Set keeps marks in declaration order.
type Set []Mark

// Last returns the argument of the last mark named name.
func (s Set) Last(name string) (string, bool) {
	m, ok := slice.FindLast(
		s, func(m Mark) bool {
			return m.Name == name
		},
	)

	return m.Arg, ok
}

// Effective returns the winning declaration of every mark in names, ordered
// by the position of that declaration. Other marks are dropped.
func (s Set) Effective(names ...string) Set {
	out := make(Set, 0, len(names))
	for idx, m := range s {
		if !slice.Contains(names, m.Name) {
			continue
		}

		if _, later := s[idx+1:].Last(m.Name); later {
			continue
		}

		out = append(out, m)
	}

	return out
}

// Merge returns a new set holding s followed by other.
func (s Set) Merge(other Set) Set {
	out := make(Set, 0, len(s)+len(other))
	out = append(out, s...)

	return append(out, other...)
}

func IsKnown(name string) bool {
	return slice.Contains(Known, name)
}

// Parse extracts a directive such as "rpc:test_id 123" or "rpc:jira=ASC-1"
// from a single line. Unknown mark names are rejected.
func Parse(line string) (Mark, bool) {
	m := directiveRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Mark{}, false
	}

	name, arg := m[1], strings.TrimSpace(m[2])
	if !IsKnown(name) || arg == "" {
		return Mark{}, false
	}

	return Mark{Name: name, Arg: arg}, true
}

// ParseLines collects every directive found in lines, in order.
func ParseLines(lines []string) Set {
	var set Set
	for _, line := range lines {
		for _, l := range strings.Split(line, "\n") {
			if m, ok := Parse(l); ok {
				set = append(set, m)
			}
		}
	}

	return set
}
