package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"echo-guard/internal/toolperm"
	"echo-guard/internal/trust"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestLoadMissingAndBlankFiles(t *testing.T) {
	f := New(t.TempDir())

	cfg, err := f.LoadTrustedCommands(trust.ScopeGlobal, "")
	require.NoError(t, err)
	assert.NotNil(t, cfg.TrustedCommands)
	assert.Empty(t, cfg.TrustedCommands)

	writeFile(t, f.ProfilePath("default"), "  \n")
	cfg, err = f.LoadTrustedCommands(trust.ScopeProfile, "default")
	require.NoError(t, err)
	assert.Empty(t, cfg.TrustedCommands)

	state, err := f.LoadAgentTrust("default")
	require.NoError(t, err)
	assert.Equal(t, []string{"fs_read"}, state.AllowedTools.Sorted())
	assert.False(t, state.TrustAllTools)
}

func TestRoundTripWithoutDescription(t *testing.T) {
	f := New(t.TempDir())
	desc := "all npm scripts"
	in := trust.Config{TrustedCommands: []trust.TrustedCommand{
		{Command: "git status"},
		{Command: "npm run *", Description: &desc},
	}}
	require.NoError(t, f.SaveTrustedCommands(trust.ScopeProfile, "work", in))

	raw := readFile(t, f.ProfilePath("work"))
	first := gjson.Get(raw, "trusted_commands.0")
	assert.False(t, first.Get("description").Exists(), "description omitted, not null: %s", raw)

	out, err := f.LoadTrustedCommands(trust.ScopeProfile, "work")
	require.NoError(t, err)
	require.Len(t, out.TrustedCommands, 2)
	assert.Nil(t, out.TrustedCommands[0].Description)
	assert.Equal(t, "git status", out.TrustedCommands[0].Command)
	require.NotNil(t, out.TrustedCommands[1].Description)
	assert.Equal(t, desc, *out.TrustedCommands[1].Description)
}

func TestSaveEmptyWritesArray(t *testing.T) {
	f := New(t.TempDir())
	require.NoError(t, f.SaveTrustedCommands(trust.ScopeGlobal, "", trust.Config{}))

	raw := readFile(t, f.GlobalPath())
	assert.True(t, gjson.Get(raw, "trusted_commands").IsArray(), raw)
}

func TestSavePreservesOtherFields(t *testing.T) {
	f := New(t.TempDir())
	writeFile(t, f.GlobalPath(), `{"paths":["README.md"],"hooks":{"start":{"command":"date"}},"trusted_commands":[]}`)

	require.NoError(t, f.SaveTrustedCommands(trust.ScopeGlobal, "", trust.Config{
		TrustedCommands: []trust.TrustedCommand{{Command: "ls *"}},
	}))

	raw := readFile(t, f.GlobalPath())
	assert.Equal(t, "README.md", gjson.Get(raw, "paths.0").String())
	assert.Equal(t, "date", gjson.Get(raw, "hooks.start.command").String())
	assert.Equal(t, "ls *", gjson.Get(raw, "trusted_commands.0.command").String())
}

func TestMalformedFilesReturnParseError(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"trusted_commands": [`},
		{"not an object", `[1,2,3]`},
		{"list not array", `{"trusted_commands": "git*"}`},
		{"entry not object", `{"trusted_commands": ["git*"]}`},
		{"command not string", `{"trusted_commands": [{"command": 1}]}`},
		{"description not string", `{"trusted_commands": [{"command": "ls", "description": 3}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(t.TempDir())
			writeFile(t, f.GlobalPath(), tt.content)

			_, err := f.LoadTrustedCommands(trust.ScopeGlobal, "")
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, f.GlobalPath(), perr.Path)
		})
	}
}

func TestSaveRefusesToOverwriteMalformedFile(t *testing.T) {
	f := New(t.TempDir())
	writeFile(t, f.GlobalPath(), `{broken`)

	err := f.SaveTrustedCommands(trust.ScopeGlobal, "", trust.Config{})
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, `{broken`, readFile(t, f.GlobalPath()))
}

func TestNullDescriptionLoadsAsNil(t *testing.T) {
	f := New(t.TempDir())
	writeFile(t, f.GlobalPath(), `{"trusted_commands":[{"command":"ls","description":null}]}`)

	cfg, err := f.LoadTrustedCommands(trust.ScopeGlobal, "")
	require.NoError(t, err)
	require.Len(t, cfg.TrustedCommands, 1)
	assert.Nil(t, cfg.TrustedCommands[0].Description)
}

func TestAgentTrustRoundTrip(t *testing.T) {
	f := New(t.TempDir())
	writeFile(t, f.AgentPath("dev"), `{"name":"dev","prompt":"be careful","allowedTools":["fs_read"]}`)

	state, err := f.LoadAgentTrust("dev")
	require.NoError(t, err)
	assert.Equal(t, []string{"fs_read"}, state.AllowedTools.Sorted())

	state.AllowedTools = toolperm.NewSet("@fetch", "fs_write")
	state.TrustAllTools = true
	require.NoError(t, f.SaveAgentTrust("dev", state))

	raw := readFile(t, f.AgentPath("dev"))
	assert.Equal(t, "be careful", gjson.Get(raw, "prompt").String())
	assert.Equal(t, `["@fetch","fs_write"]`, compact(gjson.Get(raw, "allowedTools").Raw))
	assert.True(t, gjson.Get(raw, "trustAllTools").Bool())

	again, err := f.LoadAgentTrust("dev")
	require.NoError(t, err)
	assert.Equal(t, []string{"@fetch", "fs_write"}, again.AllowedTools.Sorted())
	assert.True(t, again.TrustAllTools)
}

func TestAgentWithEmptyAllowList(t *testing.T) {
	f := New(t.TempDir())
	writeFile(t, f.AgentPath("strict"), `{"allowedTools":[]}`)

	state, err := f.LoadAgentTrust("strict")
	require.NoError(t, err)
	assert.Empty(t, state.AllowedTools)
}

func TestMalformedAgent(t *testing.T) {
	f := New(t.TempDir())
	writeFile(t, f.AgentPath("bad"), `{"allowedTools":"fs_read"}`)
	_, err := f.LoadAgentTrust("bad")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))

	writeFile(t, f.AgentPath("bad"), `{"trustAllTools":"yes"}`)
	_, err = f.LoadAgentTrust("bad")
	require.True(t, errors.As(err, &perr))
}

func TestRejectsPathEscapes(t *testing.T) {
	f := New(t.TempDir())
	_, err := f.LoadTrustedCommands(trust.ScopeProfile, "../evil")
	require.Error(t, err)
	_, err = f.LoadAgentTrust("")
	require.Error(t, err)
	require.Error(t, f.SaveAgentTrust("a/b", toolperm.DefaultAgentState()))
}

func TestManagerOverFiles(t *testing.T) {
	f := New(t.TempDir())
	m, err := trust.NewManager(f, "default")
	require.NoError(t, err)

	require.NoError(t, m.Add("npm run *", "", trust.ScopeGlobal))
	require.NoError(t, m.Add("git status", "git", trust.ScopeProfile))

	reloaded, err := trust.NewManager(f, "default")
	require.NoError(t, err)
	assert.True(t, reloaded.IsTrusted("npm run build"))
	assert.True(t, reloaded.IsTrusted("git status"))

	other, err := trust.NewManager(f, "other")
	require.NoError(t, err)
	assert.False(t, other.IsTrusted("git status"))
}

func compact(raw string) string {
	out := make([]rune, 0, len(raw))
	for _, r := range raw {
		if r == ' ' || r == '\n' || r == '\t' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
