package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Provider that has no value for a name.
var ErrNotFound = errors.New("secret not found")

// Provider looks up secret values by name.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Lookup returns the value for name, or an error wrapping ErrNotFound.
	Lookup(ctx context.Context, name string) (string, error)
}

// Refresher is implemented by providers that hold their own cache.
type Refresher interface {
	Refresh()
}
