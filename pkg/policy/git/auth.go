package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// AuthProvider supplies the transport credentials for clone and pull.
type AuthProvider interface {
	Method() (transport.AuthMethod, error)
	Type() string
}

// TokenAuth authenticates over HTTPS with a personal access token.
type TokenAuth struct {
	token string
}

// Method returns basic auth carrying the token as password.
func (a *TokenAuth) Method() (transport.AuthMethod, error) {
	if a.token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	return &http.BasicAuth{Username: "git", Password: a.token}, nil
}

// Type implements AuthProvider.
func (a *TokenAuth) Type() string { return "token" }

// SSHAuth authenticates with a private key file.
type SSHAuth struct {
	keyPath    string
	passphrase string
}

// Method loads the key. Keys readable by group or others are refused.
func (a *SSHAuth) Method() (transport.AuthMethod, error) {
	if a.keyPath == "" {
		return nil, fmt.Errorf("ssh key path cannot be empty")
	}
	info, err := os.Stat(a.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access SSH key file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
	}
	auth, err := ssh.NewPublicKeysFromFile("git", a.keyPath, a.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}
	return auth, nil
}

// Type implements AuthProvider.
func (a *SSHAuth) Type() string { return "ssh" }

// NoAuth is used for public repositories and local paths.
type NoAuth struct{}

// Method returns nil credentials.
func (NoAuth) Method() (transport.AuthMethod, error) { return nil, nil }

// Type implements AuthProvider.
func (NoAuth) Type() string { return "none" }

// NewAuthProvider builds the provider named by cfg.Type.
func NewAuthProvider(cfg AuthConfig) (AuthProvider, error) {
	switch cfg.Type {
	case "token":
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires non-empty token")
		}
		return &TokenAuth{token: cfg.Token}, nil
	case "ssh":
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		return &SSHAuth{keyPath: cfg.SSHKeyPath, passphrase: cfg.SSHKeyPassphrase}, nil
	case "none", "":
		return NoAuth{}, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}
