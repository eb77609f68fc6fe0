package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"echo-guard/internal/audit"
	"echo-guard/internal/policy"
)

// checkOutput is the shape of check --json.
type checkOutput struct {
	Command  string         `json:"command"`
	Verdict  string         `json:"verdict"`
	Step     string         `json:"step,omitempty"`
	Reason   string         `json:"reason"`
	Danger   *dangerOutput  `json:"danger,omitempty"`
	Patterns []optionOutput `json:"patterns,omitempty"`
}

type dangerOutput struct {
	Pattern  string `json:"pattern"`
	Category string `json:"category"`
}

type optionOutput struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		asJSON   bool
		exitCode bool
	)
	cmd := &cobra.Command{
		Use:   "check <command...>",
		Short: "Show whether a shell command would run without asking",
		Long: `Evaluate a shell command against the dangerous-pattern lists, the
trusted command patterns of the active profile and the read-only rules.

Examples:
  echo-guard check ls -la
  echo-guard check -- "cat a.txt | grep foo"
  echo-guard check --exit-code -- npm run build`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := joinArgs(args)
			sess, err := a.session()
			if err != nil {
				return err
			}
			d := sess.Evaluator().Command(command)
			a.record(audit.Entry{
				Kind:    audit.KindCommand,
				Command: command,
				Verdict: d.Verdict.String(),
				Step:    string(d.Step),
				Reason:  d.Reason,
			})

			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, toCheckOutput(command, d)); err != nil {
					return err
				}
			} else {
				printDecision(out, d)
			}
			if exitCode && d.RequiresApproval() {
				return &exitError{code: 2}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the decision as JSON")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit with status 2 when the command needs approval")
	return cmd
}

func toCheckOutput(command string, d policy.Decision) checkOutput {
	out := checkOutput{
		Command: command,
		Verdict: d.Verdict.String(),
		Step:    string(d.Step),
		Reason:  d.Reason,
	}
	if d.Danger != nil {
		out.Danger = &dangerOutput{Pattern: d.Danger.Pattern, Category: d.Danger.Category.String()}
	}
	for _, p := range d.Patterns {
		out.Patterns = append(out.Patterns, optionOutput{Pattern: p.Pattern, Description: p.Description})
	}
	return out
}

func printDecision(w io.Writer, d policy.Decision) {
	fmt.Fprintf(w, "%s: %s\n", headerStyle.Render(d.Verdict.String()), d.Reason)
	if len(d.Patterns) > 0 {
		fmt.Fprintln(w, "Always allow options:")
		for i, p := range d.Patterns {
			fmt.Fprintf(w, "  %d. %s  %s\n", i+1, p.Pattern, dimStyle.Render(p.Description))
		}
	}
	if len(d.Tools) > 0 {
		fmt.Fprintln(w, "Trust options:")
		for i, t := range d.Tools {
			fmt.Fprintf(w, "  %d. %s\n", i+1, t)
		}
	}
}
