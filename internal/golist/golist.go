package golist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

type Package struct {
	Dir          string   `json:"Dir"`
	ImportPath   string   `json:"ImportPath"`
	Name         string   `json:"Name"`
	Module       Module   `json:"Module"`
	TestGoFiles  []string `json:"TestGoFiles"`
	XTestGoFiles []string `json:"XTestGoFiles"`
}

// TestFiles returns the absolute paths of every test file of the package.
func (p Package) TestFiles() []string {
	files := make([]string, 0, len(p.TestGoFiles)+len(p.XTestGoFiles))
	for _, f := range append(append([]string(nil), p.TestGoFiles...), p.XTestGoFiles...) {
		files = append(files, filepath.Join(p.Dir, f))
	}

	return files
}

type Module struct {
	Path      string `json:"Path"`
	Main      bool   `json:"Main"`
	Dir       string `json:"Dir"`
	GoMod     string `json:"GoMod"`
	GoVersion string `json:"GoVersion"`
}

// ListFunc runs "go list" with args in dir and returns its standard output.
type ListFunc func(ctx context.Context, dir string, args []string) (io.Reader, error)

// ModuleDirs returns the directories of dfs holding a go.mod file.
func ModuleDirs(dfs FS) ([]string, error) {
	var dirs []string

	if err := fs.WalkDir(
		dfs, ".", func(pth string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if entry.IsDir() {
				name := entry.Name()
				if pth != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "vendor") {
					return fs.SkipDir
				}
				return nil
			}

			if entry.Name() == "go.mod" {
				dirs = append(dirs, filepath.Join(dfs.RootDir(), filepath.FromSlash(path.Dir(pth))))
			}

			return nil
		},
	); err != nil {
		return nil, fmt.Errorf("fs.WalkDir: %w", err)
	}

	return dirs, nil
}

// DirPackages lists the packages of every module found under dfs. Modules
// are listed concurrently; the result is sorted by import path.
func DirPackages(ctx context.Context, dfs FS, list ListFunc, args ...string) ([]Package, error) {
	if list == nil {
		list = goList
	}

	dirs, err := ModuleDirs(dfs)
	if err != nil {
		return nil, err
	}

	packages := make([][]Package, len(dirs))

	wg, grpCtx := errgroup.WithContext(ctx)
	wg.SetLimit(runtime.NumCPU())

	for idx, dir := range dirs {
		idx, dir := idx, dir

		wg.Go(
			func() error {
				pkgs, lErr := listPackages(grpCtx, list, dir, args...)
				if lErr != nil {
					return fmt.Errorf("listPackages %s: %w", dir, lErr)
				}

				packages[idx] = pkgs

				return nil
			},
		)
	}

	if err = wg.Wait(); err != nil {
		return nil, err
	}

	all := make([]Package, 0)
	for _, pkgs := range packages {
		all = append(all, pkgs...)
	}

	sort.SliceStable(
		all, func(i, j int) bool {
			return all[i].ImportPath < all[j].ImportPath
		},
	)

	return all, nil
}

// listPackages decodes the stream of JSON objects printed by "go list -json".
func listPackages(ctx context.Context, list ListFunc, dir string, args ...string) ([]Package, error) {
	pkgArgs := append([]string{"-json"}, args...)
	pkgArgs = append(pkgArgs, "./...")

	buf, err := list(ctx, dir, pkgArgs)
	if err != nil {
		return nil, err
	}

	var pkgs []Package

	dec := json.NewDecoder(buf)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var pkg Package
		if err := dec.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("json.Decoder.Decode: %w", err)
		}

		pkgs = append(pkgs, pkg)
	}

	return pkgs, nil
}

func goList(ctx context.Context, dir string, args []string) (io.Reader, error) {
	const bufSize = 4096

	b := bytes.NewBuffer(make([]byte, 0, bufSize))
	cmd := exec.CommandContext(ctx, "go", append([]string{"list"}, args...)...)
	cmd.Stdout = b
	cmd.Dir = dir

	cmd.Stdin = strings.NewReader("")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("command Run go list %s: %w", strings.Join(args, " "), err)
	}

	return b, nil
}
