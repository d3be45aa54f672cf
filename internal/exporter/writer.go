package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/robotomize/go-rpcjunit/internal/junit"
)

type Writer interface {
	WriteReport(ctx context.Context, suite *junit.Suite) error
}

type WriterOption func(*writer)

// WriteToFile writes the report to the file at pth, creating its directory.
func WriteToFile(pth string) WriterOption {
	return func(w *writer) {
		w.pth = pth
	}
}

func WriteReportTo(writers ...io.Writer) WriterOption {
	return func(w *writer) {
		w.reportWriters = append(w.reportWriters, writers...)
	}
}

func NewWriter(opts ...WriterOption) Writer {
	w := writer{reportWriters: []io.Writer{io.Discard}}
	for _, o := range opts {
		o(&w)
	}

	return &w
}

type writer struct {
	pth           string
	reportWriters []io.Writer
}

// WriteReport encodes suite once and copies the document to every writer.
func (o *writer) WriteReport(ctx context.Context, suite *junit.Suite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if suite == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := junit.Encode(&buf, suite); err != nil {
		return fmt.Errorf("junit.Encode: %w", err)
	}

	for _, w := range o.reportWriters {
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("io.Writer Write: %w", err)
		}
	}

	if o.pth == "" {
		return nil
	}

	if err := ensureDir(filepath.Dir(o.pth)); err != nil {
		return err
	}

	return writeFile(o.pth, buf.Bytes())
}

// ensureDir creates dir and its parents. An existing file in its place is an
// error.
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("report directory %s: %w", dir, syscall.ENOTDIR)
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("os.Stat: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("os.MkdirAll: %w", err)
	}

	return nil
}

// writeFile writes b to pth and syncs it to disk.
func writeFile(pth string, b []byte) (err error) {
	file, err := os.OpenFile(pth, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("os.OpenFile: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("file Close: %w", closeErr)
		}
	}()

	if _, err = file.Write(b); err != nil {
		return fmt.Errorf("os.OpenFile Write: %w", err)
	}

	if err = file.Sync(); err != nil {
		return fmt.Errorf("os.OpenFile Sync: %w", err)
	}

	return nil
}
