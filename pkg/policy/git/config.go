package git

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when the repository configuration is invalid.
var ErrInvalidConfig = errors.New("invalid git catalog configuration")

// Config describes the catalog repository.
type Config struct {
	// Repository is the clone URL or a local path.
	Repository string `yaml:"repository"`

	// Branch is the branch to track.
	// Default: "main".
	Branch string `yaml:"branch"`

	// Path is the catalog directory inside the repository.
	// Default: "" (repository root).
	Path string `yaml:"path"`

	// LocalPath is where the clone lives.
	// Default: "<tmp>/policyforge-catalog".
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history; zero clones everything.
	// Default: 0.
	Depth int `yaml:"depth"`

	// CleanOnStart removes an existing clone before cloning.
	// Default: false.
	CleanOnStart bool `yaml:"clean_on_start"`

	// PollInterval is how often the source pulls for new commits.
	// Default: 30s.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds one clone or pull.
	// Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig selects how the repository is accessed.
type AuthConfig struct {
	// Type is one of "token", "ssh" or "none".
	// Default: "none".
	Type string `yaml:"type"`

	Token            string `yaml:"token"`
	SSHKeyPath       string `yaml:"ssh_key_path"`
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// DefaultConfig returns defaults for every field except Repository.
func DefaultConfig() Config {
	return Config{
		Branch:       "main",
		PollInterval: 30 * time.Second,
		Timeout:      30 * time.Second,
		Auth:         AuthConfig{Type: "none"},
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Repository == "" {
		return fmt.Errorf("%w: repository cannot be empty", ErrInvalidConfig)
	}
	if c.Branch == "" {
		return fmt.Errorf("%w: branch cannot be empty", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.Depth < 0 {
		return fmt.Errorf("%w: depth cannot be negative", ErrInvalidConfig)
	}
	switch c.Auth.Type {
	case "", "none", "token", "ssh":
	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrInvalidConfig, c.Auth.Type)
	}
	return nil
}

// CommitInfo describes a commit.
type CommitInfo struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Branch    string    `json:"branch"`
}

// Short returns the abbreviated SHA.
func (c *CommitInfo) Short() string {
	return shortSHA(c.SHA)
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// PullResult describes one pull.
type PullResult struct {
	FromSHA      string
	ToSHA        string
	ChangedFiles []string
	HadChanges   bool
}

// Metrics counts repository operations.
type Metrics struct {
	CloneDuration   time.Duration
	PullDuration    time.Duration
	LastCommitSHA   string
	LastPullTime    time.Time
	FailedPulls     int64
	SuccessfulPulls int64
}
