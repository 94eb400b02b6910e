package parser

import (
	"fmt"
	"os"

	"ledgerline/policyforge/pkg/rulebook/ast"
	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
)

const (
	// DefaultMaxFileSize bounds a single catalog file.
	DefaultMaxFileSize = 10 * 1024 * 1024

	// DefaultMaxDepth bounds condition nesting.
	DefaultMaxDepth = 10
)

// Parser parses catalog files into templates.
type Parser struct {
	maxFileSize int64
	maxDepth    int
}

// NewParser creates a parser with default limits.
func NewParser() *Parser {
	return &Parser{
		maxFileSize: DefaultMaxFileSize,
		maxDepth:    DefaultMaxDepth,
	}
}

// WithMaxFileSize sets the maximum file size limit.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	if size > 0 {
		p.maxFileSize = size
	}
	return p
}

// WithMaxDepth sets the maximum condition nesting depth.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	if depth > 0 {
		p.maxDepth = depth
	}
	return p
}

// Parse parses the catalog file at path. Structural errors are returned as an
// *errors.ErrorList with source context attached.
func (p *Parser) Parse(path string) (*ast.Template, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, &rbErrors.Error{
			Type:     rbErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("Failed to access file: %v", err),
			Location: ast.Location{File: path},
		}
	}

	if fileInfo.Size() > p.maxFileSize {
		return nil, &rbErrors.Error{
			Type:     rbErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("File size %d exceeds maximum %d bytes", fileInfo.Size(), p.maxFileSize),
			Location: ast.Location{File: path},
		}
	}

	yt, err := parseYAMLFile(path)
	if err != nil {
		return nil, syntaxError(path, err)
	}

	tmpl, err := newBuilder(path, p.maxDepth).buildTemplate(yt)
	if err != nil {
		if errList, ok := err.(*rbErrors.ErrorList); ok {
			errList.AddContext(2)
		}
		return nil, err
	}
	return tmpl, nil
}

// ParseBytes parses catalog YAML held in memory. sourcePath is recorded in
// locations only.
func (p *Parser) ParseBytes(data []byte, sourcePath string) (*ast.Template, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, &rbErrors.Error{
			Type:     rbErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("Data size %d exceeds maximum %d bytes", len(data), p.maxFileSize),
			Location: ast.Location{File: sourcePath},
		}
	}

	yt, err := parseYAMLBytes(data)
	if err != nil {
		return nil, syntaxError(sourcePath, err)
	}

	return newBuilder(sourcePath, p.maxDepth).buildTemplate(yt)
}

func syntaxError(path string, err error) *rbErrors.Error {
	return &rbErrors.Error{
		Type:       rbErrors.ErrorTypeSyntax,
		Message:    fmt.Sprintf("YAML parsing failed: %v", err),
		Location:   ast.Location{File: path, Line: 1, Column: 1},
		Suggestion: "Check YAML syntax (indentation, colons, quotes)",
	}
}
