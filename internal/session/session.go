// Package session ties one conversation's trust state together.
//
// A Session owns the tool overrides for its lifetime. Nothing it holds is
// written to disk unless SaveTools is called; trusted-command changes go
// through trust.Manager, which persists them immediately.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"echo-guard/internal/logger"
	"echo-guard/internal/policy"
	"echo-guard/internal/toolperm"
	"echo-guard/internal/trust"
)

// Store is the persistence a session needs.
type Store interface {
	trust.Persister
	toolperm.AgentStore
	LoadAgentTrust(agent string) (toolperm.AgentState, error)
}

type Session struct {
	ID      string
	Agent   string
	Started time.Time

	commands  *trust.Manager
	tools     *toolperm.Permissions
	overrides *toolperm.Overrides
	store     Store
	catalog   toolperm.Catalog
	log       *logger.LogEntry
}

// Options configures Open. Empty Profile and Agent fall back to "default".
type Options struct {
	Profile string
	Agent   string
	Catalog toolperm.Catalog
}

// Open loads the trusted commands for opts.Profile and the tool trust for
// opts.Agent. A malformed file fails the whole open.
func Open(store Store, opts Options) (*Session, error) {
	if opts.Profile == "" {
		opts.Profile = "default"
	}
	if opts.Agent == "" {
		opts.Agent = "default"
	}
	commands, err := trust.NewManager(store, opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("load trusted commands: %w", err)
	}
	agent, err := store.LoadAgentTrust(opts.Agent)
	if err != nil {
		return nil, fmt.Errorf("load agent %s: %w", opts.Agent, err)
	}
	overrides := toolperm.NewOverrides()
	s := &Session{
		ID:        uuid.NewString(),
		Agent:     opts.Agent,
		Started:   time.Now(),
		commands:  commands,
		tools:     toolperm.New(agent, overrides, opts.Catalog),
		overrides: overrides,
		store:     store,
		catalog:   opts.Catalog,
	}
	s.log = logger.Named("session").WithField("session", s.ID)
	s.log.WithFields(logger.Fields{"profile": opts.Profile, "agent": opts.Agent}).Debug("session opened")
	return s, nil
}

func (s *Session) Commands() *trust.Manager { return s.commands }

func (s *Session) Tools() *toolperm.Permissions { return s.tools }

func (s *Session) Profile() string { return s.commands.Profile() }

// Evaluator returns a verdict source bound to this session's current state.
func (s *Session) Evaluator() *policy.Evaluator {
	return policy.New(s.commands, s.tools)
}

// SwitchProfile reloads the trusted commands of profile. Tool overrides are
// kept.
func (s *Session) SwitchProfile(profile string) error {
	if err := s.commands.SwitchProfile(profile); err != nil {
		return fmt.Errorf("switch to profile %s: %w", profile, err)
	}
	return nil
}

// SwitchAgent loads another agent's tool trust and discards the session
// overrides, which were made against the previous agent.
func (s *Session) SwitchAgent(agent string) error {
	state, err := s.store.LoadAgentTrust(agent)
	if err != nil {
		return fmt.Errorf("load agent %s: %w", agent, err)
	}
	s.overrides.Reset()
	s.tools = toolperm.New(state, s.overrides, s.catalog)
	s.Agent = agent
	s.log.WithField("agent", agent).Debug("switched agent")
	return nil
}

// SaveTools merges the session overrides into the agent record.
func (s *Session) SaveTools() error {
	return s.tools.Save(s.store, s.Agent)
}

// End discards the session overrides.
func (s *Session) End() {
	dropped := !s.overrides.Empty()
	s.overrides.Reset()
	s.log.WithField("dropped_overrides", dropped).WithField("duration", time.Since(s.Started).Round(time.Second)).
		Debug("session ended")
}
