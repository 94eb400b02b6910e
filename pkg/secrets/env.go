package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider reads secrets from environment variables.
// "generator-api-key" with prefix "POLICYFORGE_SECRET_" is read from
// POLICYFORGE_SECRET_GENERATOR_API_KEY.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// Lookup reads the variable for name. An empty variable counts as unset.
func (p *EnvProvider) Lookup(_ context.Context, name string) (string, error) {
	key := p.varName(name)
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrNotFound, key)
	}
	return value, nil
}

func (p *EnvProvider) varName(name string) string {
	return p.prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
