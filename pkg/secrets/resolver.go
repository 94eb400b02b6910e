package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

var refPattern = regexp.MustCompile(`\$\{secret:([^}]*)\}`)

// Resolver resolves secret names against an ordered list of providers.
type Resolver struct {
	providers []Provider
	cache     *cache
	logger    *slog.Logger
}

// NewResolver creates a resolver over providers, tried in order.
func NewResolver(providers []Provider, cfg *Config, logger *slog.Logger) *Resolver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		providers: providers,
		cache:     newCache(cfg.CacheTTL, cfg.CacheSize),
		logger:    logger.With("component", "secrets"),
	}
	return r
}

// New builds the environment provider and, when cfg.Dir is set, the file
// provider. Environment variables take precedence.
func New(cfg *Config, logger *slog.Logger) (*Resolver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	providers := []Provider{NewEnvProvider(cfg.EnvPrefix)}
	if cfg.Dir != "" {
		fp, err := NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	return NewResolver(providers, cfg, logger), nil
}

// Get returns the value of the named secret from the first provider that
// has it. A provider failing for any reason other than ErrNotFound stops
// the search.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	if v, ok := r.cache.get(name); ok {
		return v, nil
	}
	for _, p := range r.providers {
		v, err := p.Lookup(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("secret %s: %s provider: %w", redact(name), p.Name(), err)
		}
		r.cache.put(name, v)
		r.logger.Debug("secret resolved", "name", redact(name), "provider", p.Name())
		return v, nil
	}
	return "", fmt.Errorf("secret %s: %w", redact(name), ErrNotFound)
}

// Resolve replaces every ${secret:name} in s. Any reference that cannot be
// resolved fails the whole call; the returned string is then empty.
func (r *Resolver) Resolve(ctx context.Context, s string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		if name == "" {
			errs = append(errs, errors.New("empty secret reference"))
			return ref
		}
		v, err := r.Get(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return v
	})
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return out, nil
}

// ResolveAll resolves each field in place. Fields without references are
// left untouched.
func (r *Resolver) ResolveAll(ctx context.Context, fields map[string]*string) error {
	var errs []error
	for field, ptr := range fields {
		if ptr == nil || !HasReference(*ptr) {
			continue
		}
		v, err := r.Resolve(ctx, *ptr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			continue
		}
		*ptr = v
	}
	return errors.Join(errs...)
}

// Refresh drops cached values in the resolver and its providers.
func (r *Resolver) Refresh() {
	for _, p := range r.providers {
		if rp, ok := p.(Refresher); ok {
			rp.Refresh()
		}
	}
	r.cache.clear()
}

// HasReference reports whether s contains a ${secret:...} reference.
func HasReference(s string) bool {
	return refPattern.MatchString(s)
}

// redact keeps the first and last two characters of longer names.
func redact(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
