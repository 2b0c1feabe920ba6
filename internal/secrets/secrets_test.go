package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider_Name(t *testing.T) {
	p := NewEnvProvider("")
	if p.Name() != "env" {
		t.Fatalf("expected 'env', got %s", p.Name())
	}
}

func TestEnvProvider_GetWithPrefix(t *testing.T) {
	t.Setenv("BRAINSTORMER_TEST_SECRET", "secret_value")

	p := NewEnvProvider("BRAINSTORMER_")
	val, err := p.Get(context.Background(), "test_secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "secret_value" {
		t.Fatalf("expected 'secret_value', got %s", val)
	}
}

func TestEnvProvider_GetWithoutPrefix(t *testing.T) {
	t.Setenv("TEST_SECRET_NO_PREFIX", "direct_value")

	p := NewEnvProvider("BRAINSTORMER_")
	val, err := p.Get(context.Background(), "test_secret_no_prefix")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "direct_value" {
		t.Fatalf("expected 'direct_value', got %s", val)
	}
}

func TestEnvProvider_GetNotFound(t *testing.T) {
	p := NewEnvProvider("BRAINSTORMER_")
	_, err := p.Get(context.Background(), "nonexistent_secret_xyz")
	if err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestEnvProvider_SetAndDelete(t *testing.T) {
	p := NewEnvProvider("BRAINSTORMER_")
	if err := p.Set(context.Background(), "set_test", "new_value"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Unsetenv("BRAINSTORMER_SET_TEST")

	if os.Getenv("BRAINSTORMER_SET_TEST") != "new_value" {
		t.Fatal("expected env var to be set")
	}

	if err := p.Delete(context.Background(), "set_test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if os.Getenv("BRAINSTORMER_SET_TEST") != "" {
		t.Fatal("expected env var to be deleted")
	}
}

func TestDefaultEnvPrefix(t *testing.T) {
	p := NewEnvProvider("")
	if p.prefix != "BRAINSTORMER_" {
		t.Fatalf("expected default prefix, got %s", p.prefix)
	}
}

func TestFileProvider_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	p, err := NewFileProvider(&FileConfig{Path: path, CreateIfMissing: true})
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}

	ctx := context.Background()
	if err := p.Set(ctx, "llm_api_key", "sk-test"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, err := p.Get(ctx, "llm_api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "sk-test" {
		t.Fatalf("expected 'sk-test', got %s", val)
	}

	// A fresh provider must see the persisted value.
	p2, err := NewFileProvider(&FileConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	val, err = p2.Get(ctx, "llm_api_key")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if val != "sk-test" {
		t.Fatalf("expected persisted value, got %s", val)
	}
}

func TestFileProvider_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	p, err := NewFileProvider(&FileConfig{Path: path, CreateIfMissing: true})
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}
	if err := p.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected 0600 permissions, got %o", info.Mode().Perm())
	}
}

func TestFileProvider_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	p, _ := NewFileProvider(&FileConfig{Path: path, CreateIfMissing: true})

	ctx := context.Background()
	p.Set(ctx, "k", "v")
	if err := p.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := p.Get(ctx, "k"); err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestFileProvider_MissingPath(t *testing.T) {
	if _, err := NewFileProvider(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := NewFileProvider(&FileConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFileProvider_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	os.WriteFile(path, []byte("not json"), 0600)

	if _, err := NewFileProvider(&FileConfig{Path: path}); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestManager_PrimaryThenFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	m, err := NewManager(&Config{
		Provider:  "file",
		File:      &FileConfig{Path: path, CreateIfMissing: true},
		EnvPrefix: "BRAINSTORMER_",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx := context.Background()

	// Not in the file, but in the environment.
	t.Setenv("BRAINSTORMER_LLM_API_KEY", "from-env")
	val, err := m.Get(ctx, KeyLLMAPIKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "from-env" {
		t.Fatalf("expected fallback value, got %s", val)
	}
}

func TestManager_CachesValues(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx := context.Background()
	t.Setenv("BRAINSTORMER_LLM_API_KEY", "first")
	if _, err := m.Get(ctx, KeyLLMAPIKey); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Value changes underneath; the cache keeps the first read.
	t.Setenv("BRAINSTORMER_LLM_API_KEY", "second")
	val, _ := m.Get(ctx, KeyLLMAPIKey)
	if val != "first" {
		t.Fatalf("expected cached value, got %s", val)
	}

	m.ClearCache()
	val, _ = m.Get(ctx, KeyLLMAPIKey)
	if val != "second" {
		t.Fatalf("expected fresh value after ClearCache, got %s", val)
	}
}

func TestManager_GetOrDefault(t *testing.T) {
	m, _ := NewManager(nil)
	val := m.GetOrDefault(context.Background(), "definitely_not_set_anywhere", "fallback")
	if val != "fallback" {
		t.Fatalf("expected 'fallback', got %s", val)
	}
}

func TestManager_UnknownProvider(t *testing.T) {
	if _, err := NewManager(&Config{Provider: "s3"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestManager_VaultRequiresConfig(t *testing.T) {
	if _, err := NewManager(&Config{Provider: "vault", Vault: &VaultConfig{}}); err == nil {
		t.Fatal("expected error for vault without address")
	}
}

func TestVaultProvider_GetSetDelete(t *testing.T) {
	stored := map[string]any{"llm_api_key": "sk-vault"}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"data": stored},
			})
		case http.MethodPost:
			var payload struct {
				Data map[string]any `json:"data"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			stored = payload.Data
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer ts.Close()

	p, err := NewVaultProvider(&VaultConfig{Address: ts.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewVaultProvider: %v", err)
	}

	ctx := context.Background()
	val, err := p.Get(ctx, "llm_api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "sk-vault" {
		t.Fatalf("expected 'sk-vault', got %s", val)
	}

	if err := p.Set(ctx, "mirror_password", "n4j"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if stored["mirror_password"] != "n4j" {
		t.Fatalf("expected merged write, stored = %v", stored)
	}
	if stored["llm_api_key"] != "sk-vault" {
		t.Fatal("merge dropped existing key")
	}

	if err := p.Delete(ctx, "llm_api_key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := stored["llm_api_key"]; ok {
		t.Fatal("expected key removed from vault")
	}
}

func TestVaultProvider_KeyNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"data": map[string]any{}},
		})
	}))
	defer ts.Close()

	p, _ := NewVaultProvider(&VaultConfig{Address: ts.URL, Token: "t"})
	if _, err := p.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestVaultProvider_Defaults(t *testing.T) {
	p, err := NewVaultProvider(&VaultConfig{Address: "http://localhost:8200", Token: "t"})
	if err != nil {
		t.Fatalf("NewVaultProvider: %v", err)
	}
	if p.config.MountPath != "secret" {
		t.Errorf("MountPath = %s", p.config.MountPath)
	}
	if p.config.SecretPath != "brainstormer" {
		t.Errorf("SecretPath = %s", p.config.SecretPath)
	}
}
