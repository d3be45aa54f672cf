package golist

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

type FS interface {
	fs.FS
	RootDir() string
}

type PackageRetriever interface {
	Retrieve(ctx context.Context) ([]Package, error)
}

type Option func(*retriever)

// WithListFunc replaces the "go list" invocation.
func WithListFunc(f ListFunc) Option {
	return func(r *retriever) {
		r.list = f
	}
}

// NewRetriever lists packages under fs, building with the given tags.
func NewRetriever(fs FS, goBuildTags []string, opts ...Option) PackageRetriever {
	r := &retriever{fs: fs, list: goList}
	if len(goBuildTags) > 0 {
		r.args = []string{"-tags=" + strings.Join(goBuildTags, ",")}
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

type retriever struct {
	fs   FS
	list ListFunc
	args []string
}

func (r *retriever) Retrieve(ctx context.Context) ([]Package, error) {
	packages, err := DirPackages(ctx, r.fs, r.list, r.args...)
	if err != nil {
		return nil, fmt.Errorf("DirPackages: %w", err)
	}

	return packages, nil
}
