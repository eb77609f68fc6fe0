package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"echo-guard/internal/logger"
	"echo-guard/internal/policy"
	"echo-guard/internal/tools"
)

// dryRunHandler executes nothing and only reports that the call was allowed.
type dryRunHandler struct {
	name string
}

func (h dryRunHandler) Name() string { return h.name }

func (h dryRunHandler) Handle(ctx context.Context, inv tools.Invocation) (tools.ToolResult, error) {
	return tools.ToolResult{Output: "dry run: not executed"}, nil
}

func newGateCmd(a *app) *cobra.Command {
	var (
		tool     string
		server   string
		command  string
		global   bool
		toolsLog string
	)
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Run a proposed action through the approval gate",
		Long: `Evaluate a tool call the way an assistant would before running it. When
approval is needed you are asked on stdin:

  y     allow once
  a<N>  allow and always trust option N
  n     deny

Nothing is executed; an allowed call is reported as a dry run.

Examples:
  echo-guard gate --tool execute_bash --command "npm run build"
  echo-guard gate --tool get_page --server fetch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			if toolsLog != "" {
				if _, _, err := tools.SetupToolsLog(toolsLog); err != nil {
					logger.Warnf("failed to initialize tools log: %v", err)
				}
				defer tools.CloseToolsLog()
			}

			approvals := tools.NewApprovalStore()
			orch := tools.NewOrchestrator(tools.OrchestratorOptions{
				Decider:   sess.Evaluator(),
				Approvals: approvals,
				Commands:  sess.Commands(),
				Tools:     sess.Tools(),
				Recorder:  a.audit,
				SessionID: sess.ID,
			})

			call := toolCall(tool, server, command)
			workdir, _ := os.Getwd()
			p := &prompter{
				in:        bufio.NewReader(cmd.InOrStdin()),
				out:       cmd.OutOrStdout(),
				approvals: approvals,
				global:    global,
			}
			result := orch.Run(cmd.Context(), tools.Invocation{
				Call:    tools.ToolCall{Name: call.Name, Origin: call.Origin, Command: call.Command},
				Workdir: workdir,
			}, dryRunHandler{name: call.Name}, p.handle)

			if p.rememberedTool {
				if err := sess.SaveTools(); err != nil {
					return err
				}
			}
			if result.Status == tools.StatusError {
				return errors.New(result.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", headerStyle.Render("allowed:"), result.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "Tool name, e.g. execute_bash or fs_write")
	cmd.Flags().StringVar(&server, "server", "", "Server exposing the tool")
	cmd.Flags().StringVar(&command, "command", "", "Shell command for execute_bash / execute_cmd")
	cmd.Flags().BoolVar(&global, "global", false, "Remember command patterns in the global list")
	cmd.Flags().StringVar(&toolsLog, "tools-log", "", "Also write tool call logs to this file")
	_ = cmd.MarkFlagRequired("tool")
	return cmd
}

// prompter reads the user's answer when approval is needed and resolves it in the ApprovalStore.
type prompter struct {
	in        *bufio.Reader
	out       io.Writer
	approvals *tools.ApprovalStore
	global    bool

	rememberedTool bool
}

func (p *prompter) handle(ev tools.ToolEvent) {
	if ev.Type != tools.EventUpdated || ev.Result.Status != tools.StatusRequiresApproval || ev.Decision == nil {
		return
	}
	d := *ev.Decision
	printDecision(p.out, d)

	options := len(d.Patterns) + len(d.Tools)
	if d.Verdict == policy.OfferTrust && options > 0 {
		fmt.Fprintf(p.out, "Allow? [y/n/a1-a%d]: ", options)
	} else {
		fmt.Fprint(p.out, "Allow? [y/n]: ")
	}

	decision := tools.ApprovalDecision{ApprovalID: ev.Result.ApprovalID}
	line, _ := p.in.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	switch {
	case answer == "y" || answer == "yes":
		decision.Approved = true
	case strings.HasPrefix(answer, "a") && d.Verdict == policy.OfferTrust:
		n, err := strconv.Atoi(strings.TrimPrefix(answer, "a"))
		if err != nil || n < 1 || n > options {
			fmt.Fprintln(p.out, "unknown option, denying")
			break
		}
		decision.Approved = true
		if n <= len(d.Patterns) {
			opt := d.Patterns[n-1]
			decision.Remember = tools.Remember{Pattern: opt.Pattern, Description: opt.Description, Global: p.global}
		} else {
			decision.Remember = tools.Remember{Tool: d.Tools[n-1-len(d.Patterns)]}
			p.rememberedTool = true
		}
	}
	p.approvals.Resolve(decision)
}
