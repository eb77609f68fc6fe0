package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestPlainFormatter_ComponentAndFieldOrdering(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	cases := []struct {
		name    string
		data    logrus.Fields
		message string
		want    string
	}{
		{
			name: "with component",
			data: logrus.Fields{
				"component": "trust",
				"caller":    "x.go:1",
				"scope":     "global",
				"pattern":   "git *",
			},
			message: "added trusted command pattern",
			want:    "x.go:1 [2025-01-02T03:04:05Z] [INFO] [trust] added trusted command pattern pattern=git * scope=global\n",
		},
		{
			name: "without component",
			data: logrus.Fields{
				"caller": "x.go:1",
				"foo":    "bar",
			},
			message: "hello",
			want:    "x.go:1 [2025-01-02T03:04:05Z] [INFO] hello foo=bar\n",
		},
		{
			name:    "no fields",
			data:    logrus.Fields{},
			message: "bare",
			want:    "[2025-01-02T03:04:05Z] [INFO] bare\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := &logrus.Entry{
				Logger:  logrus.New(),
				Time:    ts,
				Level:   logrus.InfoLevel,
				Message: tc.message,
				Data:    tc.data,
			}
			out, err := (PlainFormatter{}).Format(entry)
			if err != nil {
				t.Fatalf("Format() error: %v", err)
			}
			if got := string(out); got != tc.want {
				t.Fatalf("unexpected format:\nwant: %q\ngot:  %q", tc.want, got)
			}
		})
	}
}

func TestParseLevel_FallsBackToInfo(t *testing.T) {
	if got := ParseLevel("debug"); got != logrus.DebugLevel {
		t.Fatalf("ParseLevel(debug) = %v", got)
	}
	if got := ParseLevel(" WARN "); got != logrus.WarnLevel {
		t.Fatalf("ParseLevel(WARN) = %v", got)
	}
	if got := ParseLevel("loud"); got != logrus.InfoLevel {
		t.Fatalf("ParseLevel(loud) = %v, want info", got)
	}
}

func TestSetupComponentFile_WritesComponentField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.log")
	entry, closer, resolved, err := SetupComponentFile("storage", path)
	if err != nil {
		t.Fatalf("SetupComponentFile: %v", err)
	}
	defer closer.Close()
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}

	entry.Info("saved trusted commands")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "[storage] saved trusted commands") {
		t.Fatalf("missing component prefix: %q", line)
	}
	if !strings.Contains(line, "logger/logger_test.go:") {
		t.Fatalf("expected shortened caller, got %q", line)
	}
}

func TestShortenFilePath(t *testing.T) {
	cases := map[string]string{
		"/home/u/src/echo-guard/internal/trust/manager.go": "internal/trust/manager.go",
		"/home/u/src/echo-guard/cmd/echo-guard/main.go":    "cmd/echo-guard/main.go",
		"/tmp/other.go": "other.go",
	}
	for in, want := range cases {
		if got := shortenFilePath(in); got != want {
			t.Fatalf("shortenFilePath(%q) = %q, want %q", in, got, want)
		}
	}
}
