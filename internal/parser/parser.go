package parser

import (
	"context"
	"fmt"

	"github.com/robotomize/go-rpcjunit/internal/golist"
	"github.com/robotomize/go-rpcjunit/internal/logging"
)

const subsystem = "parser"

type PackageRetriever interface {
	Retrieve(ctx context.Context) ([]golist.Package, error)
}

// Parser finds the mark declarations of every test function in the packages
// returned by its retriever.
type Parser struct {
	retriever PackageRetriever
}

func New(retriever PackageRetriever) *Parser {
	return &Parser{retriever: retriever}
}

func (p *Parser) ParseFiles(ctx context.Context) ([]Declaration, error) {
	packages, err := p.retriever.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("PackageRetriever Retrieve: %w", err)
	}

	decls, err := ParseTestFiles(ctx, packages)
	if err != nil {
		return nil, fmt.Errorf("ParseTestFiles: %w", err)
	}

	logging.Debug(subsystem, "parsed %d test declarations in %d packages", len(decls), len(packages))

	return decls, nil
}

// Index maps declarations by Key. When a test is declared twice, as happens
// with files selected by different build tags, the first declaration is kept.
func Index(decls []Declaration) map[string]Declaration {
	idx := make(map[string]Declaration, len(decls))
	for _, d := range decls {
		if prev, ok := idx[d.Key()]; ok {
			logging.Warn(subsystem, "%s declared in %s:%d and %s:%d, using the first", d.Key(), prev.File, prev.Line, d.File, d.Line)
			continue
		}

		idx[d.Key()] = d
	}

	return idx
}
