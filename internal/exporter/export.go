package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/robotomize/go-rpcjunit/internal/augment"
	"github.com/robotomize/go-rpcjunit/internal/envsnap"
	"github.com/robotomize/go-rpcjunit/internal/gotest"
	"github.com/robotomize/go-rpcjunit/internal/junit"
	"github.com/robotomize/go-rpcjunit/internal/logging"
	"github.com/robotomize/go-rpcjunit/internal/mark"
	"github.com/robotomize/go-rpcjunit/internal/parser"
)

const subsystem = "exporter"

var hostname string

func init() {
	hostname, _ = os.Hostname()
}

// Report is the result of one export. Suite is nil when reporting is disabled.
type Report struct {
	Err       error
	OutputLog io.Reader
	Suite     *junit.Suite
	Failed    bool
}

type Option func(options *Options)

type Options struct {
	disabled  bool
	suiteName string
	snapshot  envsnap.Snapshot
	augment   []augment.Option
}

// WithSnapshot sets the suite properties attached before the first case.
func WithSnapshot(snap envsnap.Snapshot) Option {
	return func(o *Options) {
		o.snapshot = snap
	}
}

func WithSuiteName(name string) Option {
	return func(o *Options) {
		o.suiteName = name
	}
}

func WithAugmentOptions(opts ...augment.Option) Option {
	return func(o *Options) {
		o.augment = append(o.augment, opts...)
	}
}

// WithoutReport disables the augmenter. The run is still read and its log
// and outcome are still reported.
func WithoutReport() Option {
	return func(o *Options) {
		o.disabled = true
	}
}

type Reader interface {
	ReadAll(ctx context.Context) (gotest.Set, error)
}

type FileParser interface {
	ParseFiles(ctx context.Context) ([]parser.Declaration, error)
}

type ReportExporter interface {
	Read(ctx context.Context) error
	Export() (Report, error)
}

// New returns an exporter reading events from reader. A nil fileParser means
// that only marks printed by the tests are used.
func New(fileParser FileParser, reader Reader, opts ...Option) ReportExporter {
	c := exporter{
		stdinReader: reader,
		fileParser:  fileParser,
		decls:       make(map[string]parser.Declaration),
		opts:        Options{suiteName: "gotest"},
	}

	for _, o := range opts {
		o(&c.opts)
	}

	return &c
}

type exporter struct {
	opts        Options
	readErr     error
	failed      bool
	fileParser  FileParser
	stdinReader Reader
	tests       []gotest.Test
	decls       map[string]parser.Declaration
}

func (e *exporter) Read(ctx context.Context) error {
	if e.fileParser != nil {
		decls, err := e.fileParser.ParseFiles(ctx)
		if err != nil {
			return fmt.Errorf("go parser ParseFiles: %w", err)
		}

		e.decls = parser.Index(decls)
	}

	all, err := e.stdinReader.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("stdin reader ReadAll: %w", err)
	}

	e.tests = make([]gotest.Test, len(all.Tests))
	copy(e.tests, all.Tests)
	e.readErr = all.Err
	e.failed = all.Failed()

	if all.Err != nil {
		logging.Warn(subsystem, "skipped malformed input lines: %v", all.Err)
	}

	return nil
}

// Export drives the augmenter through the lifecycle of the run that was read.
func (e *exporter) Export() (Report, error) {
	const sampleBufferSize = 4096

	logBuf := bytes.NewBuffer(make([]byte, 0, sampleBufferSize))
	result := Report{Err: e.readErr, OutputLog: logBuf, Failed: e.failed}

	first := e.runStart()

	var suite *junit.Suite
	if !e.opts.disabled {
		suite = junit.NewSuite(e.opts.suiteName)
		suite.Hostname = hostname
		if !first.IsZero() {
			suite.Timestamp = first.UTC().Format(junit.TimeLayout)
		}
	}

	aug := augment.New(suite, e.opts.augment...)
	aug.BeforeRun(e.opts.snapshot)

	cases := make([]augment.Case, 0, len(e.tests))
	for _, tc := range e.tests {
		cases = append(
			cases, augment.Case{
				ClassName: tc.Package,
				Name:      tc.Name,
				Marks:     e.marks(tc),
			},
		)
	}
	aug.Collect(cases...)

	var last time.Time
	for idx, tc := range e.tests {
		key := cases[idx].Key()
		aug.BeforeCase(key, started(tc))
		res := e.result(tc)
		aug.AfterCase(key, res)

		if res.Stop.After(last) {
			last = res.Stop
		}

		for _, row := range tc.Output {
			logBuf.WriteString(row)
		}
	}

	result.Suite = aug.Suite()
	if result.Suite != nil && !first.IsZero() && last.After(first) {
		result.Suite.Time = fmt.Sprintf("%.3f", last.Sub(first).Seconds())
	}

	logging.Info(subsystem, "exported %d test cases", len(cases))

	return result, nil
}

// marks returns the source marks of a top level test followed by the marks it
// printed, so a printed mark overrides a declared one.
func (e *exporter) marks(tc gotest.Test) mark.Set {
	var set mark.Set
	if tc.Parent() == "" {
		if d, ok := e.decls[tc.FullName()]; ok {
			set = d.Marks
		}
	}

	return set.Merge(tc.Marks())
}

// runStart returns the earliest start of the tests that were read.
func (e *exporter) runStart() time.Time {
	var first time.Time
	for _, tc := range e.tests {
		start := started(tc)
		if !start.IsZero() && (first.IsZero() || start.Before(first)) {
			first = start
		}
	}

	return first
}

// started returns the start of tc. A finished test whose run event is missing
// from the stream started Elapsed before its stop.
func started(tc gotest.Test) time.Time {
	if !tc.Start.IsZero() || !tc.Finished() || tc.Stop.IsZero() {
		return tc.Start
	}

	return tc.Stop.Add(-tc.Elapsed)
}

func (e *exporter) result(tc gotest.Test) augment.Result {
	stop := tc.Stop
	if stop.Before(started(tc)) {
		stop = time.Now()
	}

	res := augment.Result{
		Stop:    stop,
		Elapsed: tc.Elapsed,
		Output:  strings.TrimRight(tc.Log(), "\n"),
	}

	switch tc.Status {
	case gotest.ActionPass:
		res.Outcome = augment.OutcomePass
	case gotest.ActionSkip:
		res.Outcome = augment.OutcomeSkip
		res.Message = tc.Message()
	case gotest.ActionFail:
		res.Outcome = augment.OutcomeFail
		res.Message = tc.Message()
	default:
		res.Outcome = augment.OutcomeError
		res.Message = tc.Message()
		if !tc.Finished() {
			res.Message = "test did not finish"
		}
	}

	return res
}
