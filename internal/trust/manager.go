package trust

import (
	"strings"

	"echo-guard/internal/logger"
)

// Scope selects which layer a trusted command lives in.
type Scope int

const (
	// ScopeProfile applies only to the active profile.
	ScopeProfile Scope = iota
	// ScopeGlobal applies to every profile.
	ScopeGlobal
)

// ScopeFor maps the collaborator-facing "global" flag onto a Scope.
func ScopeFor(global bool) Scope {
	if global {
		return ScopeGlobal
	}
	return ScopeProfile
}

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "profile"
}

// Persister loads and saves one scope's list. profile is ignored for
// ScopeGlobal.
type Persister interface {
	LoadTrustedCommands(scope Scope, profile string) (Config, error)
	SaveTrustedCommands(scope Scope, profile string, cfg Config) error
}

// Manager owns the global and profile trusted-command lists of one session.
// It is not safe for concurrent use.
type Manager struct {
	store    Persister
	profile  string
	global   Config
	local    Config
	combined *Combined
	log      *logger.LogEntry
}

// NewManager loads both scopes. A parse error from either file is returned
// as is so the caller can decide between aborting and starting empty.
func NewManager(store Persister, profile string) (*Manager, error) {
	m := &Manager{
		store:   store,
		profile: profile,
		log:     logger.Named("trust"),
	}
	global, err := store.LoadTrustedCommands(ScopeGlobal, "")
	if err != nil {
		return nil, err
	}
	local, err := store.LoadTrustedCommands(ScopeProfile, profile)
	if err != nil {
		return nil, err
	}
	m.global = global
	m.local = local
	m.refresh()
	return m, nil
}

func (m *Manager) Profile() string { return m.profile }

// SwitchProfile reloads the profile scope wholesale. On error the previous
// profile stays active.
func (m *Manager) SwitchProfile(profile string) error {
	local, err := m.store.LoadTrustedCommands(ScopeProfile, profile)
	if err != nil {
		return err
	}
	m.profile = profile
	m.local = local
	m.refresh()
	m.log.WithField("profile", profile).Debug("switched trusted command profile")
	return nil
}

// Add stores pattern in scope, or replaces the description of an existing
// identical pattern.
func (m *Manager) Add(pattern string, description string, scope Scope) error {
	if err := ValidatePattern(pattern); err != nil {
		return err
	}
	cfg := m.config(scope)
	desc := descriptionPtr(description)
	if i := cfg.index(pattern); i >= 0 {
		cfg.TrustedCommands[i].Description = desc
		m.refresh()
		if err := m.save(scope); err != nil {
			return &PersistError{Op: "update", Scope: scope, Err: err}
		}
		m.log.WithFields(logger.Fields{"pattern": pattern, "scope": scope.String()}).
			Info("updated description for trusted command pattern")
		return nil
	}
	cfg.TrustedCommands = append(cfg.TrustedCommands, TrustedCommand{Command: pattern, Description: desc})
	m.refresh()
	if err := m.save(scope); err != nil {
		return &PersistError{Op: "add", Scope: scope, Err: err}
	}
	m.log.WithFields(logger.Fields{"pattern": pattern, "scope": scope.String()}).
		Info("added trusted command pattern")
	return nil
}

// Remove deletes the exact literal pattern from scope.
func (m *Manager) Remove(pattern string, scope Scope) error {
	cfg := m.config(scope)
	i := cfg.index(pattern)
	if i < 0 {
		return &NotFoundError{Pattern: pattern, Scope: scope}
	}
	cfg.TrustedCommands = append(cfg.TrustedCommands[:i], cfg.TrustedCommands[i+1:]...)
	m.refresh()
	if err := m.save(scope); err != nil {
		return &PersistError{Op: "remove", Scope: scope, Err: err}
	}
	m.log.WithFields(logger.Fields{"pattern": pattern, "scope": scope.String()}).
		Info("removed trusted command pattern")
	return nil
}

// Clear empties scope.
func (m *Manager) Clear(scope Scope) error {
	cfg := m.config(scope)
	cfg.TrustedCommands = []TrustedCommand{}
	m.refresh()
	if err := m.save(scope); err != nil {
		return &PersistError{Op: "clear", Scope: scope, Err: err}
	}
	m.log.WithField("scope", scope.String()).Info("cleared trusted command patterns")
	return nil
}

// Result is the outcome for one pattern of a batch operation.
type Result struct {
	Pattern string
	Err     error
}

// AddAll adds each pattern with the same description. A failure on one
// pattern does not stop the others.
func (m *Manager) AddAll(patterns []string, description string, scope Scope) []Result {
	out := make([]Result, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, Result{Pattern: p, Err: m.Add(p, description, scope)})
	}
	return out
}

// RemoveAll removes each pattern independently.
func (m *Manager) RemoveAll(patterns []string, scope Scope) []Result {
	out := make([]Result, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, Result{Pattern: p, Err: m.Remove(p, scope)})
	}
	return out
}

// Get returns a copy of one scope's stored list.
func (m *Manager) Get(scope Scope) Config {
	return m.config(scope).Clone()
}

// Combined returns the merged view: global first, then profile entries not
// already present in global. Stored entries that would be rejected by
// ValidatePattern are left out of the view but stay in their file.
func (m *Manager) Combined() *Combined {
	return m.combined
}

// IsTrusted reports whether command matches any pattern of the merged view.
func (m *Manager) IsTrusted(command string) bool {
	return m.combined.IsTrusted(command)
}

// MatchingPattern returns the first pattern of the merged view matching
// command.
func (m *Manager) MatchingPattern(command string) (string, bool) {
	return m.combined.MatchingPattern(command)
}

func (m *Manager) config(scope Scope) *Config {
	if scope == ScopeGlobal {
		return &m.global
	}
	return &m.local
}

func (m *Manager) save(scope Scope) error {
	profile := m.profile
	if scope == ScopeGlobal {
		profile = ""
	}
	return m.store.SaveTrustedCommands(scope, profile, m.config(scope).Clone())
}

func (m *Manager) refresh() {
	m.combined = NewCombined(m.sanitized(ScopeGlobal), m.sanitized(ScopeProfile))
}

func (m *Manager) sanitized(scope Scope) Config {
	cfg := m.config(scope)
	out := Config{TrustedCommands: make([]TrustedCommand, 0, len(cfg.TrustedCommands))}
	for _, cmd := range cfg.TrustedCommands {
		if err := ValidatePattern(cmd.Command); err != nil {
			m.log.WithFields(logger.Fields{"scope": scope.String(), "pattern": cmd.Command}).
				Warnf("ignoring stored trusted command pattern: %v", err)
			continue
		}
		out.TrustedCommands = append(out.TrustedCommands, cmd)
	}
	return out
}

func descriptionPtr(description string) *string {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil
	}
	return &description
}
