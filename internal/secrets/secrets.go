// Package secrets resolves credentials from environment variables, a local
// JSON file, or HashiCorp Vault, so API keys never have to live in the
// project config file.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Key identifies the credentials the editor needs.
type Key string

const (
	KeyLLMAPIKey      Key = "llm_api_key"
	KeyMirrorPassword Key = "mirror_password"
)

// Provider is one secret backend.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Name() string
}

// Config selects and configures the backend.
type Config struct {
	// Provider is "env", "file" or "vault". Empty means env.
	Provider string
	Vault    *VaultConfig
	File     *FileConfig
	// EnvPrefix prepends environment variable lookups (default "BRAINSTORMER_").
	EnvPrefix string
}

// DefaultConfig returns the env-backed default.
func DefaultConfig() *Config {
	return &Config{Provider: "env", EnvPrefix: "BRAINSTORMER_"}
}

// Manager resolves secrets through a primary backend with the environment as
// fallback. Resolved values are cached for the life of the manager.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager builds a manager for the configured backend.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var primary Provider
	var err error
	switch cfg.Provider {
	case "vault":
		primary, err = NewVaultProvider(cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("vault provider: %w", err)
		}
	case "file":
		primary, err = NewFileProvider(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("file provider: %w", err)
		}
	case "env", "":
		primary = NewEnvProvider(cfg.EnvPrefix)
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", cfg.Provider)
	}

	return &Manager{
		primary:  primary,
		fallback: NewEnvProvider(cfg.EnvPrefix),
		cache:    make(map[string]string),
	}, nil
}

// Get resolves a secret, trying the primary backend, then the environment.
func (m *Manager) Get(ctx context.Context, key Key) (string, error) {
	m.mu.RLock()
	if val, ok := m.cache[string(key)]; ok {
		m.mu.RUnlock()
		return val, nil
	}
	m.mu.RUnlock()

	if val, err := m.primary.Get(ctx, string(key)); err == nil && val != "" {
		m.remember(key, val)
		return val, nil
	}
	if val, err := m.fallback.Get(ctx, string(key)); err == nil && val != "" {
		m.remember(key, val)
		return val, nil
	}
	return "", fmt.Errorf("secret %q not found in %s or environment", key, m.primary.Name())
}

// GetOrDefault resolves a secret, falling back to the given value.
func (m *Manager) GetOrDefault(ctx context.Context, key Key, fallback string) string {
	val, err := m.Get(ctx, key)
	if err != nil || val == "" {
		return fallback
	}
	return val
}

// Set writes a secret through the primary backend.
func (m *Manager) Set(ctx context.Context, key Key, value string) error {
	if err := m.primary.Set(ctx, string(key), value); err != nil {
		return err
	}
	m.remember(key, value)
	return nil
}

// Delete removes a secret from the primary backend and the cache.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.primary.Delete(ctx, string(key)); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.cache, string(key))
	m.mu.Unlock()
	return nil
}

// ClearCache forgets all cached values.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[string]string)
	m.mu.Unlock()
}

func (m *Manager) remember(key Key, value string) {
	m.mu.Lock()
	m.cache[string(key)] = value
	m.mu.Unlock()
}

// EnvProvider reads secrets from environment variables. Keys are upper-cased
// and looked up with the prefix first, then bare.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment-backed provider.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "BRAINSTORMER_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(ctx context.Context, key string) (string, error) {
	name := p.prefix + strings.ToUpper(key)
	if val := os.Getenv(name); val != "" {
		return val, nil
	}
	if val := os.Getenv(strings.ToUpper(key)); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var %s not set", name)
}

func (p *EnvProvider) Set(ctx context.Context, key, value string) error {
	return os.Setenv(p.prefix+strings.ToUpper(key), value)
}

func (p *EnvProvider) Delete(ctx context.Context, key string) error {
	return os.Unsetenv(p.prefix + strings.ToUpper(key))
}
