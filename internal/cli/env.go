package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlplan/internal/app"
	"github.com/roach88/sqlplan/internal/catalog"
	"github.com/roach88/sqlplan/internal/config"
	"github.com/roach88/sqlplan/internal/engine"
	"github.com/roach88/sqlplan/internal/rewrite"
	"github.com/roach88/sqlplan/internal/secret"
	"github.com/roach88/sqlplan/internal/store"
)

// PasswordEnv supplies the password when --password is not given.
const PasswordEnv = "SQLPLAN_PASSWORD"

// environment is everything a command needs: resolved config, an open
// store and the App wired to both.
type environment struct {
	cfg   *config.Config
	store *store.Store
	app   *app.App
	out   *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openEnv loads config, configures logging and opens the store.
// Failures are reported through the formatter and returned as ExitErrors.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*environment, error) {
	out := newFormatter(opts, cmd)

	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if opts.StorePath != "" {
		cfg.Store = opts.StorePath
	}
	configureLogging(out.GetErrWriter(), cfg, opts.Verbose)

	if err := os.MkdirAll(filepath.Dir(cfg.Store), 0o700); err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeStore, "failed to create store directory", err)
	}
	slog.Debug("opening store", "path", cfg.Store)
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
	}

	material := opts.CipherMaterial
	if material == "" {
		material = secret.MachineMaterial()
	}
	cipher, err := secret.NewCipher(material)
	if err != nil {
		st.Close()
		return nil, out.Fail(ExitCommandError, ErrCodeSecret, "failed to initialize encryption", err)
	}

	var rw *rewrite.Rewriter
	if cfg.Rewrite.Enabled {
		rw = rewrite.New(catalog.Inspector{}, cfg.Rewrite.Permissive)
	}

	appOpts := []app.Option{
		app.WithDefaultPort(cfg.DefaultPort),
		app.WithConnectTimeout(cfg.ConnectTimeout),
		app.WithQueryTimeout(cfg.QueryTimeout),
	}
	engOpts := []engine.Option{engine.WithRewriter(rw)}
	if opts.Connector != nil {
		appOpts = append(appOpts, app.WithConnector(opts.Connector))
	}
	if opts.Clock != nil {
		engOpts = append(engOpts, engine.WithClock(opts.Clock))
		appOpts = append(appOpts, app.WithClock(opts.Clock))
	}
	if opts.IDs != nil {
		appOpts = append(appOpts, app.WithIDGenerator(opts.IDs))
	}

	return &environment{
		cfg:   cfg,
		store: st,
		app:   app.New(engine.New(engOpts...), st, cipher, appOpts...),
		out:   out,
	}, nil
}

// Close disconnects and closes the store.
func (e *environment) Close(ctx context.Context) {
	if err := e.app.Disconnect(ctx); err != nil {
		slog.Warn("error closing session", "error", err)
	}
	if err := e.store.Close(); err != nil {
		slog.Error("error closing store", "error", err)
	}
}

func configureLogging(w io.Writer, cfg *config.Config, verbose bool) {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// connectionFlags are the ad hoc connection flags shared by commands.
type connectionFlags struct {
	Host     string
	Port     uint16
	Database string
	User     string
	Password string
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Host, "host", "H", "", "SQL Server host")
	cmd.Flags().Uint16VarP(&f.Port, "port", "P", 0, "SQL Server port (default from config, 1433)")
	cmd.Flags().StringVarP(&f.Database, "database", "d", "", "database name")
	cmd.Flags().StringVarP(&f.User, "user", "U", "", "login name")
	cmd.Flags().StringVar(&f.Password, "password", "", "login password (default $"+PasswordEnv+")")
}

func (f *connectionFlags) password() string {
	if f.Password != "" {
		return f.Password
	}
	return os.Getenv(PasswordEnv)
}

func (f *connectionFlags) request() app.ConnectRequest {
	return app.ConnectRequest{
		Host:     f.Host,
		Port:     f.Port,
		Database: f.Database,
		Username: f.User,
		Password: f.password(),
	}
}

// connect attaches a session from --profile (id or name) or from the
// connection flags.
func (e *environment) connect(ctx context.Context, profile string, flags *connectionFlags) error {
	if profile == "" {
		if flags.Host == "" {
			return e.out.Fail(ExitCommandError, ErrCodeInput, "either --host or --profile is required", nil)
		}
		msg, err := e.app.Connect(ctx, flags.request())
		if err != nil {
			return e.engineFailure(err)
		}
		e.out.VerboseLog("%s", msg)
		return nil
	}

	p, err := e.findProfile(ctx, profile)
	if err != nil {
		return err
	}
	msg, err := e.app.ConnectSaved(ctx, p.ID)
	switch {
	case errors.Is(err, secret.ErrAuthentication), errors.Is(err, secret.ErrInvalidData):
		return e.out.Fail(ExitCommandError, ErrCodeSecret,
			fmt.Sprintf("cannot decrypt password for profile %q (saved on another machine or by another user?)", p.Name), err)
	case err != nil:
		return e.engineFailure(err)
	}
	e.out.VerboseLog("%s", msg)
	return nil
}

// findProfile resolves a saved profile by id, then by name.
func (e *environment) findProfile(ctx context.Context, ref string) (store.Profile, error) {
	profiles, err := e.app.Connections(ctx)
	if err != nil {
		return store.Profile{}, e.out.Fail(ExitCommandError, ErrCodeStore, "failed to read profiles", err)
	}
	for _, p := range profiles {
		if p.ID == ref {
			return p, nil
		}
	}
	for _, p := range profiles {
		if p.Name == ref {
			return p, nil
		}
	}
	return store.Profile{}, e.out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("profile %q not found", ref), nil)
}

// engineFailure reports an engine or connection error with its code.
func (e *environment) engineFailure(err error) error {
	code := string(engine.CodeOf(err))
	if code == "" {
		code = ErrCodeGeneric
	}
	return e.out.Fail(ExitFailure, code, "", err)
}
