package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func patterns(opts []PatternOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Pattern)
	}
	return out
}

func TestSuggestPatterns(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"cat file.txt", []string{"cat file.txt", "cat*"}},
		{"git restore --staged Makefile frontend/ opentofu/", []string{"git restore --staged Makefile frontend/ opentofu/", "git restore*", "git*"}},
		{"npm run build", []string{"npm run build", "npm run*", "npm*"}},
		{"pwd", []string{"pwd"}},
		{"ls -la", []string{"ls -la", "ls*"}},
		{"docker --version", []string{"docker --version", "docker*"}},
		{"git commit -m 'my message'", []string{"git commit -m 'my message'", "git commit*", "git*"}},
		{"rsync source dest backup", []string{"rsync source dest backup", "rsync source*", "rsync*"}},
		{"cat a.txt | grep x", nil},
		{"git log | sh", nil},
		{"rm -rf build", []string{"rm*"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got := SuggestPatterns(tt.command)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, patterns(got))
		})
	}
}

func TestSuggestPatterns_Descriptions(t *testing.T) {
	got := SuggestPatterns("pwd")
	assert.Equal(t, "Trust this exact command only", got[0].Description)

	got = SuggestPatterns("npm run build")
	assert.Equal(t, "Trust all 'npm run' commands", got[1].Description)
	assert.Equal(t, "Trust all 'npm' commands", got[2].Description)
}
