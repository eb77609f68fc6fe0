package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"echo-guard/internal/audit"
	"echo-guard/internal/config"
	"echo-guard/internal/logger"
	"echo-guard/internal/session"
	"echo-guard/internal/storage"
)

// app holds state shared for the duration of one command.
type app struct {
	cfgPath   string
	overrides []string
	profile   string
	agent     string

	cfg     config.Config
	files   *storage.Files
	audit   *audit.Log
	sess    *session.Session
	closers []io.Closer
}

// execute builds the command tree, runs it and releases log files and the session.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "echo-guard",
		Short: "Decide which shell commands and tools may run without asking",
		Long: `echo-guard is the trust layer of an AI coding assistant.

It answers one question before anything runs: execute right away, ask the
user, or ask and offer to remember the answer.

Commands:
  check     Verdict for a shell command
  allow     Trust command patterns
  remove    Forget command patterns
  clear     Forget every pattern of a scope
  list      Show trusted command patterns
  suggest   Show the patterns offered for a command
  tools     Inspect and change tool trust
  gate      Run a proposed action through the approval gate
  audit     Show recent decisions
  config    Show or change the config file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "Config file (default: ~/.echo-guard/config.toml)")
	flags.StringArrayVarP(&a.overrides, "set", "c", nil, "Override config value key=value (repeatable)")
	flags.StringVar(&a.profile, "profile", "", "Profile whose trusted commands apply")
	flags.StringVar(&a.agent, "agent", "", "Agent whose tool trust applies")

	root.AddCommand(
		newCheckCmd(a),
		newAllowCmd(a),
		newRemoveCmd(a),
		newClearCmd(a),
		newListCmd(a),
		newSuggestCmd(a),
		newToolsCmd(a),
		newGateCmd(a),
		newAuditCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = config.ApplyKVOverrides(cfg, a.overrides)
	if p := strings.TrimSpace(a.profile); p != "" {
		cfg.Profile = p
	}
	if ag := strings.TrimSpace(a.agent); ag != "" {
		cfg.Agent = ag
	}
	if strings.TrimSpace(cfg.Home) == "" {
		return fmt.Errorf("cannot resolve home directory; set home in %s or ECHO_GUARD_HOME", cfg.Source)
	}
	a.cfg = cfg

	logger.Configure(cfg.LogLevel)
	if f, _, err := logger.SetupFile(cfg.ResolvedLogPath()); err != nil {
		logger.Warnf("failed to initialize log file: %v", err)
	} else {
		a.closers = append(a.closers, f)
	}

	a.files = storage.New(cfg.Home)
	a.audit = audit.New(cfg.ResolvedAuditPath())
	return nil
}

// session loads trusted commands and agent trust state on first use.
func (a *app) session() (*session.Session, error) {
	if a.sess != nil {
		return a.sess, nil
	}
	s, err := session.Open(a.files, session.Options{Profile: a.cfg.Profile, Agent: a.cfg.Agent})
	if err != nil {
		return nil, err
	}
	a.sess = s
	return s, nil
}

func (a *app) record(e audit.Entry) {
	if a.sess != nil && e.Session == "" {
		e.Session = a.sess.ID
	}
	if err := a.audit.Record(e); err != nil {
		logger.Warnf("audit record failed: %v", err)
	}
}

func (a *app) close() {
	if a.sess != nil {
		a.sess.End()
		a.sess = nil
	}
	if len(a.closers) > 0 {
		logger.Discard()
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}
