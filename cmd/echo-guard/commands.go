package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"echo-guard/internal/trust"
)

func newAllowCmd(a *app) *cobra.Command {
	var (
		patterns    []string
		description string
		global      bool
	)
	cmd := &cobra.Command{
		Use:   "allow --command <pattern>...",
		Short: "Trust command patterns",
		Long: `Add glob patterns to the trusted commands of the active profile, or of
every profile with --global. "*" matches any run of characters and "?"
exactly one.

Examples:
  echo-guard allow --command "npm run*" --description "npm scripts"
  echo-guard allow --command "git status" --command "git diff*" --global`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			scope := trust.ScopeFor(global)
			results := sess.Commands().AddAll(patterns, description, scope)
			return reportResults(cmd.OutOrStdout(), cmd.ErrOrStderr(), results, "Trusted", scope, sess.Profile())
		},
	}
	cmd.Flags().StringArrayVar(&patterns, "command", nil, "Command pattern to trust (repeatable)")
	cmd.Flags().StringVar(&description, "description", "", "Why the pattern is trusted")
	cmd.Flags().BoolVar(&global, "global", false, "Apply to every profile")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var (
		patterns []string
		global   bool
	)
	cmd := &cobra.Command{
		Use:   "remove --command <pattern>...",
		Short: "Forget trusted command patterns",
		Long: `Remove patterns from the trusted commands. The pattern must match a
stored entry exactly; no glob matching is applied.

Examples:
  echo-guard remove --command "npm run*"
  echo-guard remove --command "git status" --global`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			scope := trust.ScopeFor(global)
			results := sess.Commands().RemoveAll(patterns, scope)
			return reportResults(cmd.OutOrStdout(), cmd.ErrOrStderr(), results, "Removed", scope, sess.Profile())
		},
	}
	cmd.Flags().StringArrayVar(&patterns, "command", nil, "Command pattern to remove (repeatable)")
	cmd.Flags().BoolVar(&global, "global", false, "Remove from the global list")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every trusted command pattern of a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			scope := trust.ScopeFor(global)
			if err := sess.Commands().Clear(scope); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared all %s\n", scopeLabel(scope, sess.Profile()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Clear the global list")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		global   bool
		combined bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show trusted command patterns",
		Long: `List the trusted command patterns of the active profile. --global shows
the global list and --combined the merged view that is actually matched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if global && combined {
				return errors.New("--global and --combined are mutually exclusive")
			}
			sess, err := a.session()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var (
				commands []trust.TrustedCommand
				label    string
			)
			switch {
			case combined:
				commands = sess.Commands().Combined().Commands()
				label = fmt.Sprintf("trusted commands (global + profile '%s')", sess.Profile())
			default:
				scope := trust.ScopeFor(global)
				commands = sess.Commands().Get(scope).TrustedCommands
				label = scopeLabel(scope, sess.Profile())
			}
			if len(commands) == 0 {
				fmt.Fprintf(out, "No %s\n", label)
				return nil
			}
			rows := make([][]string, 0, len(commands))
			for _, c := range commands {
				rows = append(rows, []string{c.Command, c.DescriptionText()})
			}
			printTable(out, []string{"PATTERN", "DESCRIPTION"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Show the global list")
	cmd.Flags().BoolVar(&combined, "combined", false, "Show the merged list used for matching")
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <command...>",
		Short: "Show the patterns that would be offered for a command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			options := trust.SuggestPatterns(joinArgs(args))
			if len(options) == 0 {
				fmt.Fprintln(out, "No pattern can be offered for this command")
				return nil
			}
			rows := make([][]string, 0, len(options))
			for _, o := range options {
				rows = append(rows, []string{o.Pattern, o.Description})
			}
			printTable(out, []string{"PATTERN", "DESCRIPTION"}, rows)
			return nil
		},
	}
}

func scopeLabel(scope trust.Scope, profile string) string {
	if scope == trust.ScopeGlobal {
		return "global trusted commands"
	}
	return fmt.Sprintf("trusted commands for profile '%s'", profile)
}

// reportResults prints one line per batch result and returns an error if any failed.
// A PersistError (applied in memory but not written to disk) counts as a failure.
func reportResults(out, errOut io.Writer, results []trust.Result, verb string, scope trust.Scope, profile string) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			var perr *trust.PersistError
			if errors.As(r.Err, &perr) {
				fmt.Fprintf(errOut, "%s '%s' for this session only: %v\n", warnStyle.Render("warning:"), r.Pattern, r.Err)
				continue
			}
			fmt.Fprintf(errOut, "%s %v\n", warnStyle.Render("error:"), r.Err)
			continue
		}
		fmt.Fprintf(out, "%s '%s' in %s\n", verb, r.Pattern, scopeLabel(scope, profile))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d patterns failed", failed, len(results))
	}
	return nil
}
