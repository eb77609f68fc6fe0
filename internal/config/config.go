package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultProfile is used when no profile is given.
	DefaultProfile = "default"
	// DefaultAgent is used when no agent is given.
	DefaultAgent = "default"
)

// Config is the persisted CLI config file schema.
type Config struct {
	// Home holds trusted-command files, agent records, logs and the audit log.
	Home      string `toml:"home"`
	Profile   string `toml:"profile"`
	Agent     string `toml:"agent"`
	LogPath   string `toml:"log_path"`
	LogLevel  string `toml:"log_level"`
	AuditPath string `toml:"audit_path"`
	Source    string `toml:"-"`
}

func Default() Config {
	return Config{
		Home:     DefaultHome(),
		Profile:  DefaultProfile,
		Agent:    DefaultAgent,
		LogLevel: "info",
	}
}

// DefaultHome returns ~/.echo-guard, or "" when $HOME cannot be resolved.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".echo-guard")
}

func DefaultPath() string {
	home := DefaultHome()
	if home == "" {
		return ""
	}
	return filepath.Join(home, "config.toml")
}

// Load reads the TOML config at path (DefaultPath when empty). A missing file
// yields defaults; environment overrides are applied in both cases.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, err
	}
	return applyEnv(cfg).normalized(), nil
}

// LoadFile is Load without environment overrides, for rewriting the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg.normalized(), nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return cfg.normalized(), nil
}

// ResolvedLogPath returns LogPath, relative paths resolved against Home.
func (c Config) ResolvedLogPath() string {
	return c.resolve(c.LogPath, "logs/echo-guard.log")
}

// ResolvedAuditPath returns AuditPath, relative paths resolved against Home.
func (c Config) ResolvedAuditPath() string {
	return c.resolve(c.AuditPath, "audit.jsonl")
}

func (c Config) resolve(path string, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) || c.Home == "" {
		return path
	}
	return filepath.Join(c.Home, path)
}

func applyEnv(cfg Config) Config {
	if env := strings.TrimSpace(os.Getenv("ECHO_GUARD_HOME")); env != "" {
		cfg.Home = env
	}
	if env := strings.TrimSpace(os.Getenv("ECHO_GUARD_PROFILE")); env != "" {
		cfg.Profile = env
	}
	if env := strings.TrimSpace(os.Getenv("ECHO_GUARD_AGENT")); env != "" {
		cfg.Agent = env
	}
	return cfg
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.Profile) == "" {
		c.Profile = DefaultProfile
	}
	if strings.TrimSpace(c.Agent) == "" {
		c.Agent = DefaultAgent
	}
	if strings.TrimSpace(c.Home) == "" {
		c.Home = DefaultHome()
	}
	return c
}
