package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/sqlplan/internal/app"
)

// ProfileOptions holds flags for the profile commands.
type ProfileOptions struct {
	*RootOptions
	Conn connectionFlags
	Name string
}

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProfileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved connection profiles",
		Long: `Save, list and delete connection profiles.

Passwords are encrypted with a key derived from this machine's hostname and
the current OS user; a profile saved elsewhere cannot be used here.`,
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Save a connection profile",
		Long: `Save a connection profile.

Example:
  SQLPLAN_PASSWORD=... sqlplan profile save --name reporting -H db.internal -d Sales -U reporter`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileSave(opts, cmd)
		},
	}
	opts.Conn.register(save)
	save.Flags().StringVar(&opts.Name, "name", "", "profile name (required)")
	_ = save.MarkFlagRequired("name")
	_ = save.MarkFlagRequired("host")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List saved profiles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileList(opts, cmd)
		},
	}

	del := &cobra.Command{
		Use:           "delete <id|name>",
		Short:         "Delete a saved profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileDelete(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(save, list, del)
	return cmd
}

func runProfileSave(opts *ProfileOptions, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer env.Close(ctx)

	p, err := env.app.SaveConnection(ctx, app.SaveConnectionRequest{
		Name:     opts.Name,
		Host:     opts.Conn.Host,
		Port:     opts.Conn.Port,
		Database: opts.Conn.Database,
		Username: opts.Conn.User,
		Password: opts.Conn.password(),
	})
	if err != nil {
		return env.out.Fail(ExitCommandError, ErrCodeStore, "failed to save profile", err)
	}
	if env.out.Format == "json" {
		return env.out.Success(p)
	}
	return env.out.Success("Saved profile " + p.Name + " (" + p.ID + ")")
}

func runProfileList(opts *ProfileOptions, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer env.Close(ctx)

	profiles, err := env.app.Connections(ctx)
	if err != nil {
		return env.out.Fail(ExitCommandError, ErrCodeStore, "failed to read profiles", err)
	}
	if env.out.Format == "json" {
		return env.out.Success(profiles)
	}
	renderProfiles(env.out.Writer, profiles)
	return nil
}

func runProfileDelete(opts *ProfileOptions, ref string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer env.Close(ctx)

	p, err := env.findProfile(ctx, ref)
	if err != nil {
		return err
	}
	if err := env.app.DeleteConnection(ctx, p.ID); err != nil {
		return env.out.Fail(ExitCommandError, ErrCodeStore, "failed to delete profile", err)
	}
	return env.out.Success("Deleted profile " + p.Name)
}
