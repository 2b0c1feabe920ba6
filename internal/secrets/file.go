package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileConfig configures the JSON-file provider. The file maps secret names
// to values and is written with 0600 permissions. Intended for local
// development next to the project file, not for shared machines.
type FileConfig struct {
	Path string
	// CreateIfMissing writes an empty file on first use.
	CreateIfMissing bool
}

// FileProvider stores secrets in a local JSON file.
type FileProvider struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// NewFileProvider loads (or creates) the secrets file.
func NewFileProvider(cfg *FileConfig) (*FileProvider, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("secrets file path required")
	}

	p := &FileProvider{path: cfg.Path, data: make(map[string]string)}
	err := p.load()
	switch {
	case err == nil:
	case os.IsNotExist(err) && cfg.CreateIfMissing:
		if err := p.save(); err != nil {
			return nil, fmt.Errorf("create secrets file: %w", err)
		}
	case os.IsNotExist(err):
		// Missing file without CreateIfMissing: start empty, save on Set.
	default:
		return nil, fmt.Errorf("load secrets file: %w", err)
	}
	return p, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(ctx context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	val, ok := p.data[key]
	if !ok {
		return "", fmt.Errorf("secret %q not in %s", key, p.path)
	}
	return val, nil
}

func (p *FileProvider) Set(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data[key] = value
	return p.save()
}

func (p *FileProvider) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.data, key)
	return p.save()
}

// Reload re-reads the file, picking up external edits.
func (p *FileProvider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

func (p *FileProvider) load() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, &p.data)
}

func (p *FileProvider) save() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("create secrets directory: %w", err)
	}
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	return os.WriteFile(p.path, raw, 0600)
}
