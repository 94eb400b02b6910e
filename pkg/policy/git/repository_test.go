package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// upstream is a throwaway repository the tests clone from.
type upstream struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	u := &upstream{t: t, dir: dir, repo: repo}
	u.commit("initial commit", map[string]string{"catalog/aml.yaml": "code: aml\n"})
	return u
}

func (u *upstream) commit(msg string, files map[string]string) string {
	u.t.Helper()
	wt, err := u.repo.Worktree()
	if err != nil {
		u.t.Fatal(err)
	}
	for name, body := range files {
		path := filepath.Join(u.dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			u.t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			u.t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			u.t.Fatal(err)
		}
	}
	hash, err := wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		u.t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

func (u *upstream) config(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Repository = u.dir
	cfg.Branch = "master"
	cfg.Path = "catalog"
	cfg.LocalPath = t.TempDir()
	cfg.Timeout = 10 * time.Second
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) { c.Repository = "https://example.com/r.git" }, false},
		{"no repository", func(c *Config) {}, true},
		{"no branch", func(c *Config) { c.Repository = "r"; c.Branch = "" }, true},
		{"zero poll", func(c *Config) { c.Repository = "r"; c.PollInterval = 0 }, true},
		{"negative depth", func(c *Config) { c.Repository = "r"; c.Depth = -1 }, true},
		{"bad auth", func(c *Config) { c.Repository = "r"; c.Auth.Type = "kerberos" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewAuthProvider(t *testing.T) {
	keyDir := t.TempDir()
	openKey := filepath.Join(keyDir, "id_open")
	if err := os.WriteFile(openKey, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		cfg       AuthConfig
		wantType  string
		wantErr   bool
		methodErr bool
		nilMethod bool
	}{
		{name: "none", cfg: AuthConfig{Type: "none"}, wantType: "none", nilMethod: true},
		{name: "empty means none", cfg: AuthConfig{}, wantType: "none", nilMethod: true},
		{name: "token", cfg: AuthConfig{Type: "token", Token: "ghp_x"}, wantType: "token"},
		{name: "token missing", cfg: AuthConfig{Type: "token"}, wantErr: true},
		{name: "ssh missing path", cfg: AuthConfig{Type: "ssh"}, wantErr: true},
		{name: "ssh open permissions", cfg: AuthConfig{Type: "ssh", SSHKeyPath: openKey}, wantType: "ssh", methodErr: true},
		{name: "ssh missing file", cfg: AuthConfig{Type: "ssh", SSHKeyPath: filepath.Join(keyDir, "nope")}, wantType: "ssh", methodErr: true},
		{name: "unknown", cfg: AuthConfig{Type: "ldap"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewAuthProvider(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewAuthProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if p.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", p.Type(), tt.wantType)
			}
			m, err := p.Method()
			if (err != nil) != tt.methodErr {
				t.Errorf("Method() error = %v, wantErr %v", err, tt.methodErr)
			}
			if tt.nilMethod && m != nil {
				t.Errorf("Method() = %v, want nil", m)
			}
		})
	}
}

func TestRepository_CloneAndHead(t *testing.T) {
	up := newUpstream(t)
	repo, err := NewRepository(up.config(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Head(); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Head() before clone error = %v, want ErrNotCloned", err)
	}
	if _, err := repo.Pull(context.Background()); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Pull() before clone error = %v, want ErrNotCloned", err)
	}

	if err := repo.Clone(context.Background()); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	if head.Message != "initial commit" || head.Author != "Test User" || head.Branch != "master" {
		t.Errorf("Head() = %+v", head)
	}
	if len(head.Short()) != 8 {
		t.Errorf("Short() = %q", head.Short())
	}
	if _, err := os.Stat(filepath.Join(repo.CatalogPath(), "aml.yaml")); err != nil {
		t.Errorf("catalog file missing from clone: %v", err)
	}
	if repo.Metrics().CloneDuration == 0 {
		t.Error("clone duration not recorded")
	}

	// A second Clone opens the existing checkout.
	again, _ := NewRepository(repo.Config(), nil)
	if err := again.Clone(context.Background()); err != nil {
		t.Errorf("Clone() over existing checkout error = %v", err)
	}
}

func TestRepository_CloneMissingRemote(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Repository = filepath.Join(t.TempDir(), "missing")
	cfg.LocalPath = t.TempDir()
	repo, err := NewRepository(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Clone(context.Background()); err == nil {
		t.Error("Clone() of a missing remote succeeded")
	}
}

func TestRepository_Pull(t *testing.T) {
	up := newUpstream(t)
	repo, _ := NewRepository(up.config(t), nil)
	ctx := context.Background()
	if err := repo.Clone(ctx); err != nil {
		t.Fatal(err)
	}

	res, err := repo.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if res.HadChanges {
		t.Errorf("Pull() with no upstream change = %+v", res)
	}

	sha := up.commit("add complaints", map[string]string{
		"catalog/complaints.yaml": "code: complaints\n",
		"README.md":               "docs\n",
	})
	res, err = repo.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if !res.HadChanges || res.ToSHA != sha || len(res.ChangedFiles) != 2 {
		t.Errorf("Pull() = %+v", res)
	}
	if !repo.TouchesCatalog(res.ChangedFiles) {
		t.Error("TouchesCatalog() = false for a catalog change")
	}
	m := repo.Metrics()
	if m.SuccessfulPulls != 2 || m.LastCommitSHA != sha {
		t.Errorf("Metrics() = %+v", m)
	}

	history, err := repo.History(5)
	if err != nil || len(history) != 2 || history[0].Message != "add complaints" {
		t.Errorf("History() = %+v, %v", history, err)
	}
}

func TestRepository_TouchesCatalog(t *testing.T) {
	repo := &Repository{config: Config{Path: "catalog"}}
	tests := []struct {
		files []string
		want  bool
	}{
		{[]string{"catalog/aml.yaml"}, true},
		{[]string{"catalog/nested/x.YML"}, true},
		{[]string{"README.md", "catalog/notes.txt"}, false},
		{[]string{"other/aml.yaml"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := repo.TouchesCatalog(tt.files); got != tt.want {
			t.Errorf("TouchesCatalog(%v) = %v, want %v", tt.files, got, tt.want)
		}
	}

	root := &Repository{config: Config{}}
	if !root.TouchesCatalog([]string{"aml.yaml"}) {
		t.Error("root catalog should match top-level files")
	}
}
