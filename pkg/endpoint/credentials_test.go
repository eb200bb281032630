package endpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvVar(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"together", "TOGETHER_API_KEY"},
		{"open-router", "OPEN_ROUTER_API_KEY"},
		{"deepseek.com", "DEEPSEEK_COM_API_KEY"},
	}
	for _, tt := range tests {
		if got := EnvVar(tt.name); got != tt.want {
			t.Errorf("EnvVar(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestKeyLoaderPrefersEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "acme"), []byte("from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ACME_API_KEY", "from-env")

	got, err := NewKeyLoader(dir).Load("acme")
	if err != nil {
		t.Fatal(err)
	}
	if got != "from-env" {
		t.Errorf("got %q, want from-env", got)
	}
}

func TestKeyLoaderFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "acmefile"), []byte("  sk-file \n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ACMEFILE_API_KEY", "")

	got, err := NewKeyLoader(dir).Load("acmefile")
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-file" {
		t.Errorf("got %q, want sk-file", got)
	}
}

func TestKeyLoaderMissing(t *testing.T) {
	t.Setenv("GHOST_API_KEY", "")
	_, err := NewKeyLoader(t.TempDir()).Load("ghost")
	if !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}
