// Package audit appends every trust decision to a JSONL file.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one recorded decision.
type Entry struct {
	TS       time.Time `json:"ts"`
	Session  string    `json:"session,omitempty"`
	CallID   string    `json:"call_id,omitempty"`
	Kind     string    `json:"kind"` // command|tool
	Tool     string    `json:"tool,omitempty"`
	Origin   string    `json:"origin,omitempty"`
	Command  string    `json:"command,omitempty"`
	Verdict  string    `json:"verdict"`
	Step     string    `json:"step,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Approved *bool     `json:"approved,omitempty"`
	// Remembered is the rule the user chose to persist (a pattern or a tool name).
	Remembered string `json:"remembered,omitempty"`
}

const (
	KindCommand = "command"
	KindTool    = "tool"
)

type Log struct {
	Path string

	mu sync.Mutex
}

func New(path string) *Log {
	return &Log{Path: path}
}

func (l *Log) ensureDir() error {
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return errors.New("audit log path is empty")
	}
	return os.MkdirAll(filepath.Dir(l.Path), 0o755)
}

// Record appends an entry, stamping TS with the current time when empty.
func (l *Log) Record(e Entry) error {
	if l == nil {
		return errors.New("audit log is nil")
	}
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureDir(); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Load returns the last limit entries (all of them when limit<=0) in write order.
// Lines that fail to parse are skipped.
func (l *Log) Load(limit int) ([]Entry, error) {
	if l == nil {
		return nil, errors.New("audit log is nil")
	}
	if strings.TrimSpace(l.Path) == "" {
		return nil, errors.New("audit log path is empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var out []Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		if e.Verdict == "" {
			continue
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
