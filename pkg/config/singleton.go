package config

import (
	"fmt"
	"sync"
)

var (
	mu      sync.RWMutex
	current *Config
	initErr error
	once    sync.Once
)

// Initialize loads configuration from path with .env preloading and
// environment overrides and installs it as the process-wide configuration.
// Only the first call loads anything; later calls return the first result.
func Initialize(path string) error {
	once.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		SetConfig(cfg)
	})
	return initErr
}

// GetConfig returns the process-wide configuration, or nil before a
// successful Initialize or SetConfig.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetConfig installs cfg as the process-wide configuration.
func SetConfig(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	current = cfg
}

// ReloadConfig loads path again and swaps it in. On failure the installed
// configuration is left as it was.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	SetConfig(cfg)
	return nil
}

// MustGetConfig is GetConfig for code that runs after startup. It panics
// when nothing is installed.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}

// reset clears the singleton. Tests only.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
	initErr = nil
	once = sync.Once{}
}
