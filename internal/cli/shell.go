package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlplan/internal/app"
	"github.com/roach88/sqlplan/internal/engine"
)

// BatchSeparator ends a batch in shell input, on a line of its own.
const BatchSeparator = "GO"

// maxBatchLine bounds a single input line.
const maxBatchLine = 4 << 20

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Conn     connectionFlags
	Profile  string
	Plan     string
	ShowPlan bool
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run batches from stdin over one session",
		Long: `Read SQL from stdin and execute it batch by batch over a single
session. A line containing only GO ends a batch; the final batch runs at end
of input. A failing batch is reported and the shell moves on.

Example:
  sqlplan shell --profile reporting < report.sql
  printf 'SELECT 1\nGO\nSELECT 2\n' | sqlplan shell -H localhost -U sa --plan estimated`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(opts, cmd)
		},
	}

	opts.Conn.register(cmd)
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "saved profile id or name")
	cmd.Flags().StringVar(&opts.Plan, "plan", "none", "plan capture mode for every batch (none|estimated|actual)")
	cmd.Flags().BoolVar(&opts.ShowPlan, "show-plan", false, "print captured plan XML in text output")

	return cmd
}

func runShell(opts *ShellOptions, cmd *cobra.Command) error {
	mode, err := engine.ParsePlanMode(opts.Plan)
	if err != nil {
		return newFormatter(opts.RootOptions, cmd).Fail(ExitCommandError, ErrCodeInput, "", err)
	}

	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer env.Close(context.WithoutCancel(ctx))

	if err := env.connect(ctx, opts.Profile, &opts.Conn); err != nil {
		return err
	}

	var failed, total int
	run := func(sql string) {
		total++
		if total > 1 && env.out.Format != "json" {
			fmt.Fprintln(env.out.Writer)
		}
		if err := env.runBatch(ctx, app.QueryRequest{SQL: sql, PlanMode: mode}, opts.ShowPlan); err != nil {
			failed++
		}
	}

	if err := splitBatches(cmd.InOrStdin(), run); err != nil {
		return env.out.Fail(ExitCommandError, ErrCodeInput, "failed to read input", err)
	}

	env.out.VerboseLog("%d batch(es), %d failed", total, failed)
	if failed > 0 {
		return env.out.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("%d of %d batch(es) failed", failed, total), nil)
	}
	return nil
}

// splitBatches calls fn with each non-blank batch read from r.
func splitBatches(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBatchLine)

	var lines []string
	flush := func() {
		sql := strings.TrimSpace(strings.Join(lines, "\n"))
		lines = lines[:0]
		if sql != "" {
			fn(sql)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), BatchSeparator) {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	flush()
	return nil
}
