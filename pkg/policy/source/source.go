package source

import (
	"context"
	"time"

	"ledgerline/policyforge/pkg/rulebook/ast"
)

// Source loads template catalogs.
type Source interface {
	// LoadTemplates returns every template the source currently holds.
	LoadTemplates(ctx context.Context) ([]*ast.Template, error)

	// Watch reports changes until ctx is cancelled, then closes the channel.
	Watch(ctx context.Context) (<-chan Event, error)
}

// Event signals that the catalog may have changed.
type Event struct {
	Path  string
	Op    string
	Time  time.Time
	Error error
}
