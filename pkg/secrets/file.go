package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileProvider reads one secret per file from a directory. Values are
// trimmed of surrounding whitespace and kept until Refresh.
type FileProvider struct {
	dir string

	mu     sync.RWMutex
	values map[string]string
}

// NewFileProvider opens dir.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path %s is not a directory", dir)
	}
	return &FileProvider{dir: dir, values: make(map[string]string)}, nil
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// Lookup reads <dir>/<name>. The file must be a regular file with mode 0600
// or 0400.
func (p *FileProvider) Lookup(_ context.Context, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid secret name %s", redact(name))
	}

	p.mu.RLock()
	value, ok := p.values[name]
	p.mu.RUnlock()
	if ok {
		return value, nil
	}

	path := filepath.Join(p.dir, name)
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: no file %s", ErrNotFound, redact(name))
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret %s is not a regular file", redact(name))
	}
	if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
		return "", fmt.Errorf("secret file %s has mode %o, want 0600 or 0400", redact(name), perm)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- name has no separators
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	value = strings.TrimSpace(string(data))

	p.mu.Lock()
	p.values[name] = value
	p.mu.Unlock()
	return value, nil
}

// Refresh drops every value read so far.
func (p *FileProvider) Refresh() {
	p.mu.Lock()
	p.values = make(map[string]string)
	p.mu.Unlock()
}
