package cli

import (
	"github.com/spf13/cobra"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Conn connectionFlags
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check that a server is reachable and accepts the login",
		Long: `Open a throwaway session, run SELECT 1 and close it.

Example:
  sqlplan test -H db.internal -d Sales -U reporter`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, cmd)
		},
	}

	opts.Conn.register(cmd)
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

func runTest(opts *TestOptions, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer env.Close(ctx)

	msg, err := env.app.TestConnection(ctx, opts.Conn.request())
	if err != nil {
		return env.engineFailure(err)
	}
	return env.out.Success(msg)
}
