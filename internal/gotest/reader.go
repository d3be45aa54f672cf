package gotest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Set is the outcome of reading a whole event stream. Err joins the errors of
// malformed lines, which never abort the read.
type Set struct {
	Err   error
	Tests []Test
}

// Failed reports whether any test failed or panicked.
func (s Set) Failed() bool {
	for _, t := range s.Tests {
		if t.Status == ActionFail || t.Status == StatusError {
			return true
		}
	}

	return false
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	return &Reader{r: sc}
}

type Reader struct {
	r *bufio.Scanner
}

// ReadAll aggregates the events of every test in first-seen order.
func (r *Reader) ReadAll(ctx context.Context) (Set, error) {
	var errs []error

	index := make(map[string]int)
	tests := make([]*Test, 0)

	for r.r.Scan() {
		select {
		case <-ctx.Done():
			return Set{}, ctx.Err()
		default:
		}

		line := r.r.Bytes()
		if len(line) == 0 {
			continue
		}

		var row Entry
		if err := json.Unmarshal(line, &row); err != nil {
			errs = append(errs, fmt.Errorf("json.Unmarshal: %w", err))
			continue
		}

		if len(row.TestName) == 0 {
			continue
		}

		key := row.Package + "/" + row.TestName
		idx, ok := index[key]
		if !ok {
			idx = len(tests)
			index[key] = idx
			tests = append(tests, &Test{Name: row.TestName, Package: row.Package})
		}

		tests[idx].Update(row)
	}

	if err := r.r.Err(); err != nil {
		return Set{}, fmt.Errorf("bufio.Scanner.Scan: %w", err)
	}

	result := Set{
		Err:   errors.Join(errs...), // nolint
		Tests: make([]Test, 0, len(tests)),
	}

	for _, t := range tests {
		result.Tests = append(result.Tests, *t)
	}

	return result, nil
}
