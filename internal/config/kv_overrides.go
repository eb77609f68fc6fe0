package config

import (
	"strings"
)

// ApplyKVOverrides applies free-form -c key=value overrides.
// Unknown keys and malformed entries are ignored.
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	if len(overrides) == 0 {
		return cfg
	}
	for _, raw := range overrides {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "home":
			cfg.Home = val
		case "profile":
			cfg.Profile = val
		case "agent":
			cfg.Agent = val
		case "log_path":
			cfg.LogPath = val
		case "log_level":
			cfg.LogLevel = val
		case "audit_path":
			cfg.AuditPath = val
		}
	}
	return cfg.normalized()
}
