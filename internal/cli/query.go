package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlplan/internal/app"
	"github.com/roach88/sqlplan/internal/engine"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Conn     connectionFlags
	Profile  string
	Plan     string
	File     string
	Timeout  time.Duration
	ShowPlan bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Execute a query, optionally capturing its execution plan",
		Long: `Execute one SQL batch and print its result.

--plan estimated compiles the batch without running it and returns the
estimated plan. --plan actual runs it, counts rows and returns the plan
with runtime statistics.

Example:
  sqlplan query -H db.internal -d Sales -U reporter "SELECT * FROM Orders"
  sqlplan query --profile reporting --plan actual --file slow.sql --show-plan`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	opts.Conn.register(cmd)
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "saved profile id or name")
	cmd.Flags().StringVar(&opts.Plan, "plan", "none", "plan capture mode (none|estimated|actual)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read SQL from file")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "query timeout (default from config; 0 = none)")
	cmd.Flags().BoolVar(&opts.ShowPlan, "show-plan", false, "print captured plan XML in text output")

	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	mode, err := engine.ParsePlanMode(opts.Plan)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInput, "", err)
	}
	sql, err := readSQL(args, opts.File)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInput, "", err)
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
	return env.runBatch(ctx, app.QueryRequest{SQL: sql, PlanMode: mode, Timeout: opts.Timeout}, opts.ShowPlan)
}

// runBatch executes one batch, records it in history and prints the result.
func (e *environment) runBatch(ctx context.Context, req app.QueryRequest, showPlan bool) error {
	slog.Debug("executing", "mode", req.PlanMode, "sql", app.Preview(req.SQL))
	res, execErr := e.app.ExecuteQuery(ctx, req)

	if _, err := e.app.Record(context.WithoutCancel(ctx), req, res, execErr); err != nil {
		slog.Warn("failed to record history", "error", err)
	}

	if execErr != nil {
		return e.engineFailure(execErr)
	}
	if e.out.Format == "json" {
		return e.out.Success(res)
	}
	renderResult(e.out.Writer, res, showPlan)
	return nil
}

func readSQL(args []string, file string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("give the query as an argument or with --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read query file: %w", err)
		}
		return nonEmptySQL(string(data))
	case len(args) == 1:
		return nonEmptySQL(args[0])
	default:
		return "", fmt.Errorf("no query given: pass SQL as an argument or use --file")
	}
}

func nonEmptySQL(sql string) (string, error) {
	if strings.TrimSpace(sql) == "" {
		return "", fmt.Errorf("query is empty")
	}
	return sql, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
