// Package augment injects suite-level and case-level properties into a JUnit
// report at well defined lifecycle points of a test run.
//
// An embedding harness calls the extension points serially, in this order:
//
//	BeforeRun(snapshot)        once, before any test executes
//	Collect(cases...)          after discovery, before execution
//	BeforeCase(key, at)        immediately before a test body runs
//	AfterCase(key, result)     immediately after it completes, whatever the outcome
//	Suite()                    at run end, before serialization
//
// No hook returns an error: a missing mark or an unset environment variable is
// a representable state, not a failure. An Augmenter built without a report
// is disabled and every hook is a no-op.
package augment

import (
	"fmt"
	"strings"
	"time"

	"github.com/robotomize/go-rpcjunit/internal/envsnap"
	"github.com/robotomize/go-rpcjunit/internal/junit"
	"github.com/robotomize/go-rpcjunit/internal/logging"
	"github.com/robotomize/go-rpcjunit/internal/mark"
)

const (
	PropStartTime = "start_time"
	PropEndTime   = "end_time"
)

const subsystem = "augment"

type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeFail
	OutcomeError
	OutcomeSkip
)

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeFail:
		return "fail"
	case OutcomeError:
		return "error"
	case OutcomeSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Case identifies one test case and the marks declared on it.
type Case struct {
	ClassName string
	Name      string
	Marks     mark.Set
}

func (c Case) Key() string {
	return Key(c.ClassName, c.Name)
}

// Key builds the identity used by BeforeCase and AfterCase.
func Key(className, name string) string {
	return className + "::" + name
}

// Result describes how a test body finished.
type Result struct {
	Outcome Outcome
	Stop    time.Time
	Elapsed time.Duration
	Message string
	Output  string
}

type Option func(*Options)

type Options struct {
	marks []string
	clock func() time.Time
}

// WithMarks selects which marks produce case properties. Unknown names are ignored.
func WithMarks(names ...string) Option {
	return func(o *Options) {
		o.marks = o.marks[:0]
		for _, n := range names {
			if mark.IsKnown(n) {
				o.marks = append(o.marks, n)
			}
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

type Augmenter struct {
	opts   Options
	suite  *junit.Suite
	cases  map[string]*junit.TestCase
	ranPre bool
}

// New returns an augmenter writing into suite. A nil suite disables it.
func New(suite *junit.Suite, opts ...Option) *Augmenter {
	a := Augmenter{
		suite: suite,
		cases: make(map[string]*junit.TestCase),
		opts: Options{
			marks: append([]string(nil), mark.Known...),
			clock: time.Now,
		},
	}

	for _, o := range opts {
		o(&a.opts)
	}

	return &a
}

func (a *Augmenter) Enabled() bool {
	return a != nil && a.suite != nil
}

// BeforeRun attaches every snapshot property to the suite. Only the first
// call of a run has an effect.
func (a *Augmenter) BeforeRun(snap envsnap.Snapshot) {
	if !a.Enabled() {
		return
	}

	if a.ranPre {
		logging.Debug(subsystem, "suite properties already attached, ignoring")
		return
	}
	a.ranPre = true

	for _, p := range snap.Properties() {
		a.suite.AddProperty(p.Name, p.Value)
	}

	if a.suite.Timestamp == "" {
		a.suite.Timestamp = a.opts.clock().UTC().Format(junit.TimeLayout)
	}

	logging.Debug(subsystem, "attached %d suite properties", snap.Len())
}

// Collect registers cases in order and attaches one property per supported
// mark, taken from the last declaration of that mark. Properties follow the
// order of those declarations.
func (a *Augmenter) Collect(cases ...Case) {
	if !a.Enabled() {
		return
	}

	for _, c := range cases {
		if _, ok := a.cases[c.Key()]; ok {
			logging.Debug(subsystem, "case %q collected twice, keeping the first", c.Key())
			continue
		}

		tc := a.testCase(c.ClassName, c.Name)
		for _, m := range c.Marks.Effective(a.opts.marks...) {
			tc.AddProperty(m.Name, m.Arg)
		}
	}
}

// BeforeCase attaches start_time. A zero at means now.
func (a *Augmenter) BeforeCase(key string, at time.Time) {
	if !a.Enabled() {
		return
	}

	tc := a.lookup(key)
	tc.AddProperty(PropStartTime, a.stamp(at))
}

// AfterCase attaches end_time and records the outcome of the case.
func (a *Augmenter) AfterCase(key string, res Result) {
	if !a.Enabled() {
		return
	}

	tc := a.lookup(key)
	tc.AddProperty(PropEndTime, a.stamp(res.Stop))

	if res.Elapsed > 0 {
		tc.Time = fmt.Sprintf("%.3f", res.Elapsed.Seconds())
	}

	body := &junit.Result{Message: res.Message, Contents: res.Output}
	switch res.Outcome {
	case OutcomeFail:
		body.Type = "failure"
		tc.Failure = body
	case OutcomeError:
		body.Type = "error"
		tc.Error = body
	case OutcomeSkip:
		tc.Skipped = &junit.Result{Message: res.Message}
	default:
		if res.Output != "" {
			tc.SystemOut = res.Output
		}
	}
}

// Suite finishes the run and returns the report, or nil when disabled.
func (a *Augmenter) Suite() *junit.Suite {
	if !a.Enabled() {
		return nil
	}

	a.suite.Recount()

	return a.suite
}

func (a *Augmenter) stamp(at time.Time) string {
	if at.IsZero() {
		at = a.opts.clock()
	}

	return at.UTC().Format(junit.TimeLayout)
}

func (a *Augmenter) lookup(key string) *junit.TestCase {
	if tc, ok := a.cases[key]; ok {
		return tc
	}

	className, name := splitKey(key)
	logging.Debug(subsystem, "case %q was not collected, creating it", key)

	return a.testCase(className, name)
}

func (a *Augmenter) testCase(className, name string) *junit.TestCase {
	key := Key(className, name)
	if tc, ok := a.cases[key]; ok {
		return tc
	}

	tc := &junit.TestCase{ClassName: className, Name: name}
	a.cases[key] = tc
	a.suite.TestCases = append(a.suite.TestCases, tc)

	return tc
}

func splitKey(key string) (string, string) {
	className, name, ok := strings.Cut(key, "::")
	if !ok {
		return "", key
	}

	return className, name
}
