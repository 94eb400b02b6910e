package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotCloned is returned by operations that need a clone before Clone ran.
var ErrNotCloned = errors.New("repository not cloned")

// Repository is a local clone of the catalog repository. It is safe for
// concurrent use.
type Repository struct {
	config    Config
	localPath string
	auth      AuthProvider
	logger    *slog.Logger

	mu      sync.RWMutex
	repo    *gogit.Repository
	metrics Metrics
}

// NewRepository validates cfg and prepares a repository. Nothing touches the
// network until Clone.
func NewRepository(cfg Config, logger *slog.Logger) (*Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	auth, err := NewAuthProvider(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	localPath := cfg.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "policyforge-catalog")
	}

	return &Repository{
		config:    cfg,
		localPath: localPath,
		auth:      auth,
		logger:    logger.With("component", "catalog.git", "repository", cfg.Repository),
	}, nil
}

// Clone clones the configured branch, or opens an existing clone at the
// local path unless CleanOnStart is set.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { r.metrics.CloneDuration = time.Since(start) }()

	if r.config.CleanOnStart {
		if err := os.RemoveAll(r.localPath); err != nil {
			return fmt.Errorf("failed to clean existing clone: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		r.repo = repo
		r.logger.Info("opened existing catalog clone", "path", r.localPath)
		return nil
	}

	if err := os.MkdirAll(r.localPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	auth, err := r.auth.Method()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, r.localPath, false, &gogit.CloneOptions{
		URL:           r.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  r.config.Depth > 0,
		Depth:         r.config.Depth,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", r.config.Repository, err)
	}
	r.repo = repo

	r.logger.Info("cloned catalog repository",
		"branch", r.config.Branch,
		"auth", r.auth.Type(),
		"path", r.localPath,
	)
	return nil
}

// Pull fetches the tracked branch and fast-forwards the working tree. The
// result lists files changed between the old and new HEAD.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		r.metrics.PullDuration = time.Since(start)
		r.metrics.LastPullTime = time.Now()
	}()

	if r.repo == nil {
		return nil, ErrNotCloned
	}

	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	fromSHA := ref.Hash().String()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	auth, err := r.auth.Method()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		r.metrics.FailedPulls++
		return nil, fmt.Errorf("failed to pull: %w", err)
	}
	r.metrics.SuccessfulPulls++

	newRef, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get new HEAD: %w", err)
	}
	result := &PullResult{
		FromSHA:    fromSHA,
		ToSHA:      newRef.Hash().String(),
		HadChanges: fromSHA != newRef.Hash().String(),
	}
	if result.HadChanges {
		files, err := r.changedFiles(result.FromSHA, result.ToSHA)
		if err != nil {
			return nil, fmt.Errorf("failed to list changed files: %w", err)
		}
		result.ChangedFiles = files
		r.metrics.LastCommitSHA = result.ToSHA
	}
	return result, nil
}

// Head returns the commit the working tree is at.
func (r *Repository) Head() (*CommitInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return r.commitInfo(commit), nil
}

// History returns up to limit commits reachable from HEAD, newest first.
func (r *Repository) History(limit int) ([]*CommitInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to read commit log: %w", err)
	}
	defer iter.Close()

	var history []*CommitInfo
	for len(history) < limit {
		c, err := iter.Next()
		if err != nil {
			break
		}
		history = append(history, r.commitInfo(c))
	}
	return history, nil
}

func (r *Repository) commitInfo(c *object.Commit) *CommitInfo {
	return &CommitInfo{
		SHA:       c.Hash.String(),
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		Timestamp: c.Author.When,
		Message:   strings.TrimSpace(c.Message),
		Branch:    r.config.Branch,
	}
}

// changedFiles must be called with the lock held.
func (r *Repository) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", shortSHA(fromSHA), err)
	}
	toCommit, err := r.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", shortSHA(toSHA), err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, err
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	var files []string
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// TouchesCatalog reports whether any of files lies under the catalog path
// and has a catalog extension.
func (r *Repository) TouchesCatalog(files []string) bool {
	prefix := filepath.ToSlash(filepath.Clean(r.config.Path))
	for _, f := range files {
		f = filepath.ToSlash(f)
		if prefix != "." && prefix != "" && !strings.HasPrefix(f, prefix+"/") {
			continue
		}
		switch strings.ToLower(filepath.Ext(f)) {
		case ".yaml", ".yml":
			return true
		}
	}
	return false
}

// CatalogPath returns the catalog directory inside the clone.
func (r *Repository) CatalogPath() string {
	return filepath.Join(r.localPath, r.config.Path)
}

// LocalPath returns the clone directory.
func (r *Repository) LocalPath() string {
	return r.localPath
}

// Config returns the repository configuration.
func (r *Repository) Config() Config {
	return r.config
}

// Metrics returns a copy of the operation counters.
func (r *Repository) Metrics() Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics
}
