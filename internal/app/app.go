// Package app is the invocation surface: it owns the process-scoped
// execution engine and exposes every user-facing operation (connect,
// query, saved profiles, history) as one method each.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/sqlplan/internal/engine"
	"github.com/roach88/sqlplan/internal/secret"
	"github.com/roach88/sqlplan/internal/store"
	"github.com/roach88/sqlplan/internal/wire"
)

// TestQuery is the probe run by TestConnection.
const TestQuery = "SELECT 1 AS test"

// App wires the engine to persistence and encryption.
//
// Thread-safety: All methods are safe for concurrent use. Query execution
// is serialized by the engine.
type App struct {
	engine  *engine.Engine
	store   *store.Store
	cipher  *secret.Cipher
	connect wire.ConnectFunc
	ids     IDGenerator
	clock   engine.Clock

	defaultPort    uint16
	connectTimeout time.Duration
	queryTimeout   time.Duration

	mu      sync.Mutex
	current *Connection
}

// Option configures an App.
type Option func(*App)

// WithConnector replaces the session factory (wire.Connect by default).
func WithConnector(fn wire.ConnectFunc) Option {
	return func(a *App) {
		a.connect = fn
	}
}

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(a *App) {
		a.ids = g
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c engine.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithDefaultPort sets the port used when a request leaves it zero.
func WithDefaultPort(port uint16) Option {
	return func(a *App) {
		a.defaultPort = port
	}
}

// WithConnectTimeout bounds connection establishment.
func WithConnectTimeout(d time.Duration) Option {
	return func(a *App) {
		a.connectTimeout = d
	}
}

// WithQueryTimeout sets the default per-query timeout. Zero means none.
func WithQueryTimeout(d time.Duration) Option {
	return func(a *App) {
		a.queryTimeout = d
	}
}

// New creates an App around an engine, a store and a cipher.
func New(eng *engine.Engine, st *store.Store, c *secret.Cipher, opts ...Option) *App {
	a := &App{
		engine:      eng,
		store:       st,
		cipher:      c,
		connect:     wire.Connect,
		ids:         UUIDv7Generator{},
		clock:       engine.SystemClock{},
		defaultPort: wire.DefaultPort,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect opens a session and makes it the live one, replacing any
// previous session.
func (a *App) Connect(ctx context.Context, req ConnectRequest) (string, error) {
	cfg := a.wireConfig(req.Host, req.Port, req.Database, req.Username, req.Password)
	if err := a.attach(ctx, cfg); err != nil {
		return "", err
	}
	a.setCurrent(&Connection{Name: displayName(cfg)})
	return connectedMessage(cfg), nil
}

// Disconnect drops the live session. Disconnecting while not connected is
// not an error.
func (a *App) Disconnect(ctx context.Context) error {
	a.setCurrent(nil)
	return a.engine.Detach(ctx)
}

// Connected reports whether a session is live.
func (a *App) Connected() bool {
	return a.engine.Connected()
}

// Current returns the live connection, or a zero Connection.
func (a *App) Current() Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Connection{}
	}
	return *a.current
}

// TestConnection opens a separate session, runs TestQuery and closes it.
// The live session, if any, is untouched.
func (a *App) TestConnection(ctx context.Context, req ConnectRequest) (string, error) {
	cfg := a.wireConfig(req.Host, req.Port, req.Database, req.Username, req.Password)
	sess, err := a.connect(ctx, cfg)
	if err != nil {
		return "", engine.NewConnectionError(err)
	}

	probe := engine.New(engine.WithRewriter(nil), engine.WithClock(a.clock))
	if err := probe.Attach(ctx, sess); err != nil {
		sess.Close()
		return "", err
	}
	defer func() {
		if err := probe.Detach(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("closing test session", "error", err)
		}
	}()

	res, err := probe.Execute(ctx, TestQuery, engine.PlanNone)
	if err != nil {
		return "", err
	}
	if len(res.Rows) == 0 {
		return "", errors.New("Connection test failed: no response from server")
	}
	return "Connection successful", nil
}

// ExecuteQuery runs one query on the live session. The timeout covers the
// wait for the session as well as execution.
func (a *App) ExecuteQuery(ctx context.Context, req QueryRequest) (*engine.Result, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = a.queryTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return a.engine.Execute(ctx, req.SQL, req.PlanMode)
}

// SaveConnection encrypts the password and stores a new profile.
func (a *App) SaveConnection(ctx context.Context, req SaveConnectionRequest) (store.Profile, error) {
	blob, err := a.cipher.Encrypt(req.Password)
	if err != nil {
		return store.Profile{}, fmt.Errorf("encrypt password: %w", err)
	}

	now := a.clock.Now().UTC()
	port := req.Port
	if port == 0 {
		port = a.defaultPort
	}
	p := store.Profile{
		ID:                a.ids.Generate(),
		Name:              req.Name,
		Host:              req.Host,
		Port:              port,
		Database:          req.Database,
		Username:          req.Username,
		EncryptedPassword: blob,
		LastUsed:          &now,
		CreatedAt:         now,
	}
	if err := a.store.AddProfile(ctx, p); err != nil {
		return store.Profile{}, fmt.Errorf("save connection: %w", err)
	}
	return p, nil
}

// Connections lists saved profiles.
func (a *App) Connections(ctx context.Context) ([]store.Profile, error) {
	return a.store.Profiles(ctx)
}

// DeleteConnection removes a saved profile.
func (a *App) DeleteConnection(ctx context.Context, id string) error {
	return a.store.DeleteProfile(ctx, id)
}

// ConnectSaved connects with a saved profile and stamps its LastUsed.
func (a *App) ConnectSaved(ctx context.Context, id string) (string, error) {
	p, err := a.store.FindProfile(ctx, id)
	if err != nil {
		return "", err
	}
	password, err := a.cipher.Decrypt(p.EncryptedPassword)
	if err != nil {
		return "", fmt.Errorf("decrypt password for %q: %w", p.Name, err)
	}

	cfg := a.wireConfig(p.Host, p.Port, p.Database, p.Username, password)
	if err := a.attach(ctx, cfg); err != nil {
		return "", err
	}
	a.setCurrent(&Connection{ID: p.ID, Name: p.Name})

	if err := a.store.TouchProfile(ctx, p.ID, a.clock.Now().UTC()); err != nil {
		slog.Warn("recording last use", "connection", p.ID, "error", err)
	}
	return connectedMessage(cfg), nil
}

// QueryHistory lists recorded queries, newest first.
func (a *App) QueryHistory(ctx context.Context) ([]store.QueryHistoryEntry, error) {
	return a.store.QueryHistory(ctx)
}

// AppendQueryHistory records a query history entry.
func (a *App) AppendQueryHistory(ctx context.Context, e store.QueryHistoryEntry) error {
	return a.store.AppendQueryHistory(ctx, e)
}

// PlanHistory lists recorded plans, newest first.
func (a *App) PlanHistory(ctx context.Context) ([]store.PlanHistoryEntry, error) {
	return a.store.PlanHistory(ctx)
}

// AppendPlanHistory records a plan history entry.
func (a *App) AppendPlanHistory(ctx context.Context, e store.PlanHistoryEntry) error {
	return a.store.AppendPlanHistory(ctx, e)
}

func (a *App) attach(ctx context.Context, cfg wire.Config) error {
	slog.Debug("connecting", "address", cfg.Address(), "database", cfg.Database)
	sess, err := a.connect(ctx, cfg)
	if err != nil {
		return engine.NewConnectionError(err)
	}
	if err := a.engine.Attach(ctx, sess); err != nil {
		sess.Close()
		return err
	}
	slog.Info("connected", "address", cfg.Address(), "database", cfg.Database)
	return nil
}

func (a *App) setCurrent(c *Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = c
}

func (a *App) wireConfig(host string, port uint16, database, username, password string) wire.Config {
	if port == 0 {
		port = a.defaultPort
	}
	return wire.Config{
		Host:           host,
		Port:           port,
		Database:       database,
		Username:       username,
		Password:       password,
		ConnectTimeout: a.connectTimeout,
	}
}

func displayName(cfg wire.Config) string {
	return cfg.Address() + "/" + cfg.Database
}

func connectedMessage(cfg wire.Config) string {
	return fmt.Sprintf("Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
}
