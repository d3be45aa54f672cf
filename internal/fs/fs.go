package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var ErrNotDir = errors.New("not a directory")

// FS is a read-only view of a source tree that remembers its absolute root,
// which the go tool needs as a working directory.
type FS interface {
	fs.FS
	RootDir() string
}

var _ FS = (*rootDirFS)(nil)

// New opens entry as the root of a source tree.
func New(entry string) (FS, error) {
	abs, err := filepath.Abs(entry)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("os.Stat: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotDir)
	}

	return &rootDirFS{entry: abs, FS: os.DirFS(abs)}, nil
}

type rootDirFS struct {
	fs.FS
	entry string
}

func (r rootDirFS) RootDir() string {
	return r.entry
}
