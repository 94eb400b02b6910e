package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledgerline/policyforge/pkg/policy/git"
	"ledgerline/policyforge/pkg/rulebook/ast"
)

// GitSource serves templates from a git clone and reports new commits that
// touch the catalog. The clone is made on first use.
type GitSource struct {
	repo     *git.Repository
	files    *FileSource
	interval time.Duration
	logger   *slog.Logger

	cloneOnce sync.Once
	cloneErr  error
}

// NewGitSource creates a git-backed source.
func NewGitSource(cfg git.Config, logger *slog.Logger) (*GitSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	repo, err := git.NewRepository(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &GitSource{
		repo:     repo,
		files:    NewFileSource(repo.CatalogPath(), logger),
		interval: cfg.PollInterval,
		logger:   logger.With("component", "catalog.source.git"),
	}, nil
}

// Repository returns the underlying clone.
func (s *GitSource) Repository() *git.Repository {
	return s.repo
}

func (s *GitSource) ensureCloned(ctx context.Context) error {
	s.cloneOnce.Do(func() {
		s.cloneErr = s.repo.Clone(ctx)
	})
	return s.cloneErr
}

// LoadTemplates clones on first call and loads the catalog directory of the
// current checkout.
func (s *GitSource) LoadTemplates(ctx context.Context) ([]*ast.Template, error) {
	if err := s.ensureCloned(ctx); err != nil {
		return nil, err
	}
	templates, err := s.files.LoadTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if head, err := s.repo.Head(); err == nil {
		s.logger.Info("catalog checkout", "commit", head.Short(), "message", head.Message)
	}
	return templates, nil
}

// Watch pulls every poll interval and sends an Event when a new commit
// changed catalog files. Pull failures are reported as error events and
// polling continues.
func (s *GitSource) Watch(ctx context.Context) (<-chan Event, error) {
	if err := s.ensureCloned(ctx); err != nil {
		return nil, err
	}
	head, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to read initial commit: %w", err)
	}

	out := make(chan Event, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("catalog poller started",
			"poll_interval", s.interval,
			"initial_commit", head.Short(),
		)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("catalog poller stopped")
				return
			case <-ticker.C:
			}

			ev, ok := s.poll(ctx)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *GitSource) poll(ctx context.Context) (Event, bool) {
	res, err := s.repo.Pull(ctx)
	if err != nil {
		s.logger.Error("catalog pull failed", "error", err)
		return Event{Error: err, Time: time.Now()}, true
	}
	if !res.HadChanges {
		return Event{}, false
	}
	if !s.repo.TouchesCatalog(res.ChangedFiles) {
		s.logger.Info("new commit does not touch the catalog",
			"to_commit", res.ToSHA,
			"changed_files", len(res.ChangedFiles),
		)
		return Event{}, false
	}
	s.logger.Info("catalog changed upstream",
		"from_commit", res.FromSHA,
		"to_commit", res.ToSHA,
		"changed_files", len(res.ChangedFiles),
	)
	return Event{Path: s.repo.CatalogPath(), Op: "commit " + res.ToSHA, Time: time.Now()}, true
}
