package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"echo-guard/internal/audit"
	"echo-guard/internal/policy"
	"echo-guard/internal/toolperm"
)

func newToolsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and change tool trust",
		Long: `Inspect and change which tools an agent may run without confirmation.

Entries are tool names ("fs_write"), a whole server ("@git") or one tool of
a server ("@git/git_status"). Changes are saved to the agent record.

Examples:
  echo-guard tools list
  echo-guard tools trust fs_write @git
  echo-guard tools untrust fs_read
  echo-guard tools reset fs_write
  echo-guard tools check get_page --server fetch`,
	}
	cmd.AddCommand(
		newToolsListCmd(a),
		newToolsTrustCmd(a),
		newToolsUntrustCmd(a),
		newToolsTrustAllCmd(a),
		newToolsResetCmd(a),
		newToolsCheckCmd(a),
	)
	return cmd
}

func newToolsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every known tool and its trust",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			perms := sess.Tools()
			out := cmd.OutOrStdout()
			known := perms.Known()
			rows := make([][]string, 0, len(known))
			for _, id := range known {
				rows = append(rows, []string{id.Namespaced(), perms.DisplayLabel(id.Name, id.Origin)})
			}
			printTable(out, []string{"TOOL", "PERMISSION"}, rows)
			if perms.TrustAllEnabled() {
				fmt.Fprintln(out, warnStyle.Render("All tools are trusted for this agent"))
			}
			fmt.Fprintln(out, dimStyle.Render("* = changed from the default"))
			return nil
		},
	}
}

func newToolsTrustCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trust <tool>...",
		Short: "Trust tools for the agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			warnUnknownTools(cmd, sess.Tools(), args)
			sess.Tools().Trust(args...)
			if err := sess.SaveTools(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trusted %s for agent '%s'\n", strings.Join(args, ", "), sess.Agent)
			return nil
		},
	}
}

func newToolsUntrustCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "untrust <tool>...",
		Short: "Stop trusting tools for the agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			warnUnknownTools(cmd, sess.Tools(), args)
			sess.Tools().Untrust(args...)
			if err := sess.SaveTools(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Untrusted %s for agent '%s'\n", strings.Join(args, ", "), sess.Agent)
			for _, n := range args {
				// Built-in defaults can only be revoked by a session override; the persisted allow-list does not cover them.
				if toolperm.DefaultTrusted(n) {
					fmt.Fprintf(out, "note: '%s' is trusted by default and stays trusted in new sessions\n", n)
				}
			}
			return nil
		},
	}
}

func newToolsTrustAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trust-all",
		Short: "Trust every tool for the agent",
		Long: `Trust every tool for the agent. Shell commands carrying a dangerous
pattern still ask for confirmation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			sess.Tools().TrustAll()
			if err := sess.SaveTools(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "All tools are now trusted for agent '%s'\n", sess.Agent)
			return nil
		},
	}
}

func newToolsResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [tool]",
		Short: "Restore default tool trust",
		Long: `Without an argument, restore the agent's default tool trust. With a
tool name, remove that entry from the agent record and turn off trust-all.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if err := a.files.SaveAgentTrust(sess.Agent, toolperm.DefaultAgentState()); err != nil {
					return err
				}
				fmt.Fprintf(out, "Reset all tool permissions to default for agent '%s'\n", sess.Agent)
				return nil
			}
			name := args[0]
			state, ok := sess.Tools().Agent().ResetTool(name)
			if !ok {
				return &toolperm.NotFoundError{Name: name}
			}
			if err := a.files.SaveAgentTrust(sess.Agent, state); err != nil {
				return err
			}
			fmt.Fprintf(out, "Reset tool '%s' to default for agent '%s'\n", name, sess.Agent)
			return nil
		},
	}
}

func newToolsCheckCmd(a *app) *cobra.Command {
	var (
		server  string
		command string
	)
	cmd := &cobra.Command{
		Use:   "check <tool>",
		Short: "Show whether a tool call would run without asking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			call := toolCall(args[0], server, command)
			d := sess.Evaluator().Tool(call)
			a.record(audit.Entry{
				Kind:    auditKind(call),
				Tool:    call.Name,
				Origin:  call.Origin.String(),
				Command: call.Command,
				Verdict: d.Verdict.String(),
				Step:    string(d.Step),
				Reason:  d.Reason,
			})
			printDecision(cmd.OutOrStdout(), d)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Server exposing the tool")
	cmd.Flags().StringVar(&command, "command", "", "Shell command for execute_bash / execute_cmd")
	return cmd
}

func toolCall(name, server, command string) policy.Call {
	origin := toolperm.NativeOrigin()
	if s := strings.TrimPrefix(strings.TrimSpace(server), "@"); s != "" {
		origin = toolperm.ServerOrigin(s)
	}
	return policy.Call{Name: name, Origin: origin, Command: command}
}

func auditKind(call policy.Call) string {
	if policy.IsShellCall(call.Name, call.Origin) {
		return audit.KindCommand
	}
	return audit.KindTool
}

// warnUnknownTools warns about unknown tool names but still applies them, since the tool may appear later.
func warnUnknownTools(cmd *cobra.Command, perms *toolperm.Permissions, names []string) {
	known := map[string]bool{}
	for _, id := range perms.Known() {
		known[id.Namespaced()] = true
	}
	for _, n := range names {
		if known[n] || strings.HasPrefix(n, "@") {
			continue
		}
		msg := fmt.Sprintf("%s unknown tool '%s'", warnStyle.Render("warning:"), n)
		if s := perms.Suggest(n); len(s) > 0 {
			msg += fmt.Sprintf(", did you mean %s?", strings.Join(s, ", "))
		}
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
}

