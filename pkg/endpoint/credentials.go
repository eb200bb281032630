package endpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoKey is returned when no API key is configured for a provider.
var ErrNoKey = errors.New("no api key")

// KeyLoader resolves provider API keys from the environment or a directory
// holding one key file per provider name.
type KeyLoader struct {
	dir    string
	getenv func(string) string
}

// NewKeyLoader creates a KeyLoader reading key files from dir. A leading
// "~/" is expanded to the user's home directory.
func NewKeyLoader(dir string) *KeyLoader {
	if rest, ok := strings.CutPrefix(dir, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, rest)
		}
	}
	return &KeyLoader{dir: dir, getenv: os.Getenv}
}

// EnvVar returns the environment variable consulted for a provider name,
// e.g. "together" -> "TOGETHER_API_KEY".
func EnvVar(name string) string {
	upper := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	return upper + "_API_KEY"
}

// Load returns the API key for the named provider.
func (k *KeyLoader) Load(name string) (string, error) {
	if k == nil || name == "" {
		return "", ErrNoKey
	}
	if v := strings.TrimSpace(k.getenv(EnvVar(name))); v != "" {
		return v, nil
	}
	if k.dir == "" {
		return "", fmt.Errorf("%s: %w", name, ErrNoKey)
	}
	data, err := os.ReadFile(filepath.Join(k.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", name, ErrNoKey)
	}
	if err != nil {
		return "", fmt.Errorf("read key for %s: %w", name, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%s: %w", name, ErrNoKey)
	}
	return key, nil
}
