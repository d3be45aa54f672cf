package gotest

import (
	"strings"
	"time"

	"github.com/robotomize/go-rpcjunit/internal/mark"
	"github.com/robotomize/go-rpcjunit/internal/slice"
)

const (
	ActionOutput = "output"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionRun    = "run"
	ActionCont   = "cont"
	ActionPause  = "pause"
	ActionSkip   = "skip"
	ActionPanic  = "panic"
)

// StatusError marks a failed test whose output shows a panic.
const StatusError = "error"

type Entry struct {
	Time     time.Time
	TestName string `json:"Test"`
	Action   string
	Package  string
	Elapsed  float64
	Output   string
}

type Test struct {
	Name    string
	Package string
	Stage   string
	Start   time.Time
	Stop    time.Time
	Status  string
	Elapsed time.Duration
	Output  []string
}

func (t *Test) FullName() string {
	return t.Package + "/" + t.Name
}

// Parent returns the name of the enclosing test, or "" for a top level test.
func (t *Test) Parent() string {
	idx := strings.LastIndex(t.Name, "/")
	if idx < 0 {
		return ""
	}

	return t.Name[:idx]
}

// Root returns the top level test function name.
func (t *Test) Root() string {
	name, _, _ := strings.Cut(t.Name, "/")
	return name
}

func (t *Test) Update(row Entry) {
	switch row.Action {
	case ActionCont:
		t.Stage = ActionCont
	case ActionSkip, ActionFail, ActionPass:
		t.Stop = row.Time
		t.Status = row.Action
		t.Stage = row.Action
		t.Elapsed = 0
		if !t.Start.IsZero() {
			t.Elapsed = t.Stop.Sub(t.Start)
		}
		if row.Elapsed > 0 {
			t.Elapsed = time.Duration(row.Elapsed * float64(time.Second))
		}
		if t.Status == ActionFail && t.panicked() {
			t.Status = StatusError
		}
	case ActionOutput:
		t.Output = append(t.Output, row.Output)
	case ActionPause:
		t.Stage = ActionPause
	case ActionRun:
		t.Start = row.Time
		t.Stage = ActionRun
	}
}

// Finished reports whether a terminal action was seen for the test.
func (t *Test) Finished() bool {
	return t.Status != ""
}

// Marks returns the directives the test printed, in output order.
func (t *Test) Marks() mark.Set {
	return mark.ParseLines(t.Output)
}

// Log returns the output of the test without the framing lines emitted by
// the test runner itself.
func (t *Test) Log() string {
	rows := slice.Filter(
		t.Output, func(s string) bool {
			return !isFramingRow(strings.TrimSpace(s))
		},
	)

	return strings.Join(rows, "")
}

// Message returns the first log line that is not a mark directive, used as
// the failure or skip message.
func (t *Test) Message() string {
	for _, row := range strings.Split(t.Log(), "\n") {
		if row = strings.TrimSpace(row); row == "" {
			continue
		}
		if _, ok := mark.Parse(row); ok {
			continue
		}
		return row
	}

	return ""
}

func (t *Test) panicked() bool {
	_, ok := slice.Find(
		t.Output, func(s string) bool {
			return strings.HasPrefix(strings.TrimSpace(s), ActionPanic+":")
		},
	)

	return ok
}

func isFramingRow(s string) bool {
	for _, p := range []string{"=== RUN", "=== PAUSE", "=== CONT", "--- PASS", "--- FAIL", "--- SKIP"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}
