// Package storage keeps trusted commands and agent tool trust in JSON files.
//
// Layout under Root:
//
//	global_context.json
//	profiles/<profile>/context.json
//	agents/<agent>.json
//
// Only the trust fields are read and written. Every other field of a file is
// left as it was, so the same files can be shared with whatever owns the rest
// of the profile or agent record.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"echo-guard/internal/logger"
	"echo-guard/internal/toolperm"
	"echo-guard/internal/trust"
)

const (
	globalFile  = "global_context.json"
	profileDir  = "profiles"
	profileFile = "context.json"
	agentDir    = "agents"

	keyTrustedCommands = "trusted_commands"
	keyAllowedTools    = "allowedTools"
	keyTrustAllTools   = "trustAllTools"
)

// ParseError reports a file that exists but does not hold what it should.
// Callers decide whether to abort or to start over; the file is never
// rewritten on their behalf.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Files implements trust.Persister and toolperm.AgentStore on a directory.
type Files struct {
	Root string
}

// New returns a Files rooted at root.
func New(root string) *Files {
	return &Files{Root: root}
}

var log = logger.Named("storage")

// GlobalPath is the file holding global trusted commands.
func (f *Files) GlobalPath() string {
	return filepath.Join(f.Root, globalFile)
}

// ProfilePath is the file holding profile's trusted commands.
func (f *Files) ProfilePath(profile string) string {
	return filepath.Join(f.Root, profileDir, profile, profileFile)
}

// AgentPath is the agent record for agent.
func (f *Files) AgentPath(agent string) string {
	return filepath.Join(f.Root, agentDir, agent+".json")
}

func (f *Files) scopePath(scope trust.Scope, profile string) (string, error) {
	if scope == trust.ScopeGlobal {
		return f.GlobalPath(), nil
	}
	if err := checkName("profile", profile); err != nil {
		return "", err
	}
	return f.ProfilePath(profile), nil
}

// LoadTrustedCommands reads one scope. A missing or blank file is an empty
// list.
func (f *Files) LoadTrustedCommands(scope trust.Scope, profile string) (trust.Config, error) {
	cfg := trust.Config{TrustedCommands: []trust.TrustedCommand{}}
	path, err := f.scopePath(scope, profile)
	if err != nil {
		return cfg, err
	}
	doc, ok, err := readDocument(path)
	if err != nil || !ok {
		return cfg, err
	}
	list := doc.Get(keyTrustedCommands)
	if !list.Exists() || list.Type == gjson.Null {
		return cfg, nil
	}
	if !list.IsArray() {
		return cfg, &ParseError{Path: path, Err: fmt.Errorf("%s is not an array", keyTrustedCommands)}
	}
	for i, item := range list.Array() {
		cmd, err := decodeTrustedCommand(item)
		if err != nil {
			return trust.Config{TrustedCommands: []trust.TrustedCommand{}},
				&ParseError{Path: path, Err: fmt.Errorf("%s[%d]: %w", keyTrustedCommands, i, err)}
		}
		cfg.TrustedCommands = append(cfg.TrustedCommands, cmd)
	}
	return cfg, nil
}

func decodeTrustedCommand(item gjson.Result) (trust.TrustedCommand, error) {
	if !item.IsObject() {
		return trust.TrustedCommand{}, errors.New("entry is not an object")
	}
	command := item.Get("command")
	if command.Type != gjson.String {
		return trust.TrustedCommand{}, errors.New("command must be a string")
	}
	out := trust.TrustedCommand{Command: command.Str}
	switch desc := item.Get("description"); desc.Type {
	case gjson.String:
		s := desc.Str
		out.Description = &s
	case gjson.Null:
	default:
		return trust.TrustedCommand{}, errors.New("description must be a string")
	}
	return out, nil
}

// SaveTrustedCommands writes one scope. Other fields of the file are kept.
func (f *Files) SaveTrustedCommands(scope trust.Scope, profile string, cfg trust.Config) error {
	path, err := f.scopePath(scope, profile)
	if err != nil {
		return err
	}
	commands := cfg.TrustedCommands
	if commands == nil {
		commands = []trust.TrustedCommand{}
	}
	raw, err := json.Marshal(commands)
	if err != nil {
		return err
	}
	return updateDocument(path, func(doc []byte) ([]byte, error) {
		return sjson.SetRawBytes(doc, keyTrustedCommands, raw)
	})
}

// LoadAgentTrust reads the trust fields of an agent record. A missing or
// blank file yields toolperm.DefaultAgentState; a record without an
// allowedTools key gets the default allow-list too.
func (f *Files) LoadAgentTrust(agent string) (toolperm.AgentState, error) {
	state := toolperm.DefaultAgentState()
	if err := checkName("agent", agent); err != nil {
		return state, err
	}
	path := f.AgentPath(agent)
	doc, ok, err := readDocument(path)
	if err != nil || !ok {
		return state, err
	}

	if allowed := doc.Get(keyAllowedTools); allowed.Exists() && allowed.Type != gjson.Null {
		if !allowed.IsArray() {
			return toolperm.DefaultAgentState(), &ParseError{Path: path, Err: fmt.Errorf("%s is not an array", keyAllowedTools)}
		}
		state.AllowedTools = toolperm.NewSet()
		for i, item := range allowed.Array() {
			if item.Type != gjson.String {
				return toolperm.DefaultAgentState(), &ParseError{Path: path, Err: fmt.Errorf("%s[%d] is not a string", keyAllowedTools, i)}
			}
			state.AllowedTools[item.Str] = struct{}{}
		}
	}
	switch all := doc.Get(keyTrustAllTools); all.Type {
	case gjson.True, gjson.False:
		state.TrustAllTools = all.Bool()
	case gjson.Null:
	default:
		return toolperm.DefaultAgentState(), &ParseError{Path: path, Err: fmt.Errorf("%s is not a boolean", keyTrustAllTools)}
	}
	return state, nil
}

// SaveAgentTrust writes the trust fields of an agent record and keeps the
// rest of it.
func (f *Files) SaveAgentTrust(agent string, state toolperm.AgentState) error {
	if err := checkName("agent", agent); err != nil {
		return err
	}
	raw, err := json.Marshal(state.AllowedTools.Sorted())
	if err != nil {
		return err
	}
	return updateDocument(f.AgentPath(agent), func(doc []byte) ([]byte, error) {
		doc, err := sjson.SetRawBytes(doc, keyAllowedTools, raw)
		if err != nil {
			return nil, err
		}
		return sjson.SetBytes(doc, keyTrustAllTools, state.TrustAllTools)
	})
}

// readDocument returns the parsed file. ok is false for a missing or blank
// file.
func readDocument(path string) (gjson.Result, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return gjson.Result{}, false, nil
		}
		return gjson.Result{}, false, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return gjson.Result{}, false, nil
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, false, &ParseError{Path: path, Err: errors.New("invalid JSON")}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return gjson.Result{}, false, &ParseError{Path: path, Err: errors.New("top-level value is not an object")}
	}
	return doc, true, nil
}

// updateDocument applies edit to the file's current content, or to an empty
// object when the file is missing or blank, and writes the result back.
func updateDocument(path string, edit func([]byte) ([]byte, error)) error {
	current := []byte("{}")
	if doc, ok, err := readDocument(path); err != nil {
		return err
	} else if ok {
		current = []byte(doc.Raw)
	}
	updated, err := edit(current)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, updated, "", "  "); err != nil {
		return fmt.Errorf("format %s: %w", path, err)
	}
	pretty.WriteByte('\n')
	if err := writeFileAtomic(path, pretty.Bytes()); err != nil {
		return err
	}
	log.WithField("path", path).Debug("saved trust file")
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// checkName rejects names that would escape Root.
func checkName(kind, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%s name is empty", kind)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}
