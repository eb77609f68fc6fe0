package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Save writes cfg as TOML. An empty path falls back to cfg.Source and then to
// DefaultPath. The file is created 0600.
func Save(path string, cfg Config) error {
	for _, candidate := range []string{path, cfg.Source, DefaultPath()} {
		if candidate != "" {
			path = candidate
			break
		}
	}
	if path == "" {
		return errors.New("config path is empty and $HOME is not set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
