package cli

import (
	"github.com/spf13/cobra"
)

// HistoryOptions holds flags for the history commands.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded queries and plans",
		Long: `Show recorded queries and plans, newest first.

The last 100 queries and the last 50 plans are kept.`,
	}
	cmd.PersistentFlags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum entries to show (0 = all)")

	queries := &cobra.Command{
		Use:           "queries",
		Short:         "Show query history",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryQueries(opts, cmd)
		},
	}

	plans := &cobra.Command{
		Use:           "plans",
		Short:         "Show plan history",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryPlans(opts, cmd)
		},
	}

	cmd.AddCommand(queries, plans)
	return cmd
}

func runHistoryQueries(opts *HistoryOptions, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer env.Close(ctx)

	entries, err := env.app.QueryHistory(ctx)
	if err != nil {
		return env.out.Fail(ExitCommandError, ErrCodeStore, "failed to read query history", err)
	}
	entries = limit(entries, opts.Limit)
	if env.out.Format == "json" {
		return env.out.Success(entries)
	}
	renderQueryHistory(env.out.Writer, entries)
	return nil
}

func runHistoryPlans(opts *HistoryOptions, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer env.Close(ctx)

	entries, err := env.app.PlanHistory(ctx)
	if err != nil {
		return env.out.Fail(ExitCommandError, ErrCodeStore, "failed to read plan history", err)
	}
	entries = limit(entries, opts.Limit)
	if env.out.Format == "json" {
		return env.out.Success(entries)
	}
	renderPlanHistory(env.out.Writer, entries)
	return nil
}

func limit[T any](entries []T, n int) []T {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}
