package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"echo-guard/internal/audit"
)

func newAuditCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent trust decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.audit.Load(limit)
			if err != nil {
				return fmt.Errorf("read audit log: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No decisions recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.TS.Local().Format("2006-01-02 15:04:05"),
					e.Verdict,
					answerText(e),
					subject(e),
				})
			}
			printTable(out, []string{"TIME", "VERDICT", "ANSWER", "SUBJECT"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show (0 for all)")
	return cmd
}

func answerText(e audit.Entry) string {
	switch {
	case e.Approved == nil:
		return "-"
	case !*e.Approved:
		return "denied"
	case e.Remembered != "":
		return "always"
	default:
		return "once"
	}
}

func subject(e audit.Entry) string {
	if e.Kind == audit.KindCommand && e.Command != "" {
		return e.Command
	}
	if e.Origin != "" && e.Origin != "native" {
		return e.Origin + "/" + e.Tool
	}
	return e.Tool
}
