package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlplan/internal/app"
	"github.com/roach88/sqlplan/internal/engine"
	"github.com/roach88/sqlplan/internal/wire"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	StorePath  string

	// Connector overrides the SQL Server session factory (for testing).
	// If nil, defaults to wire.Connect.
	Connector wire.ConnectFunc

	// Clock and IDs override timing and record ids (for testing).
	Clock engine.Clock
	IDs   app.IDGenerator

	// CipherMaterial overrides the machine-derived key material (for
	// testing). If empty, defaults to secret.MachineMaterial().
	CipherMaterial string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sqlplan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlplan",
		Short: "sqlplan - SQL Server queries with execution plans",
		Long: `Run queries against SQL Server and capture estimated or actual
execution plans.

SELECT * queries over tables with alias types or date columns are rewritten
with explicit casts so their results can always be decoded.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return newFormatter(opts, cmd).Fail(ExitCommandError, ErrCodeInput,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default <user config dir>/sqlplan/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.StorePath, "store", "", "profile and history database (overrides config)")

	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
