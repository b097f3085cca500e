package wire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
)

// DefaultPort is the SQL Server TCP port.
const DefaultPort uint16 = 1433

const appName = "sqlplan"

// Session is one live, authenticated connection to the server.
// Session-scoped SET options (SHOWPLAN_XML, STATISTICS XML) persist across
// calls on the same Session.
type Session interface {
	// Query runs a batch and returns every result set it produced, in order.
	Query(ctx context.Context, query string) ([]*ResultSet, error)

	// Exec runs a statement that produces no result set.
	Exec(ctx context.Context, stmt string) error

	// Close ends the session.
	Close() error
}

// ConnectFunc opens a Session. Connect is the production implementation;
// tests substitute their own.
type ConnectFunc func(ctx context.Context, cfg Config) (Session, error)

// Config describes where and as whom to connect.
type Config struct {
	Host           string
	Port           uint16
	Database       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Address returns host:port.
func (c Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(int(port)))
}

// DSN returns the sqlserver:// connection string. The server certificate is
// trusted unconditionally.
func (c Config) DSN() string {
	q := url.Values{}
	if c.Database != "" {
		q.Set("database", c.Database)
	}
	q.Set("TrustServerCertificate", "true")
	q.Set("app name", appName)
	if c.ConnectTimeout > 0 {
		secs := strconv.Itoa(int(c.ConnectTimeout.Round(time.Second) / time.Second))
		q.Set("dial timeout", secs)
		q.Set("connection timeout", secs)
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Address(),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Phase identifies which step of connection setup failed.
type Phase string

const (
	// PhaseConfig indicates the connection settings were rejected.
	PhaseConfig Phase = "config"
	// PhaseTCP indicates the TCP connection could not be established.
	PhaseTCP Phase = "tcp"
	// PhaseHandshake indicates TLS prelogin or authentication failed.
	PhaseHandshake Phase = "handshake"
)

// ConnectError reports a failure to establish a Session.
type ConnectError struct {
	Phase Phase
	Err   error
}

func (e *ConnectError) Error() string {
	switch e.Phase {
	case PhaseTCP:
		return fmt.Sprintf("TCP connection failed: %v", e.Err)
	case PhaseConfig:
		return fmt.Sprintf("invalid connection settings: %v", e.Err)
	default:
		return fmt.Sprintf("SQL Server connection failed: %v", e.Err)
	}
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsConnectError reports whether err is a ConnectError.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

// trackingDialer records the last dial failure so a failed login can be
// attributed to the TCP phase or the handshake phase.
type trackingDialer struct {
	net.Dialer

	mu      sync.Mutex
	dialErr error
}

func (d *trackingDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, addr)
	if err != nil {
		d.mu.Lock()
		d.dialErr = err
		d.mu.Unlock()
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}

func (d *trackingDialer) classify(err error) *ConnectError {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return &ConnectError{Phase: PhaseTCP, Err: d.dialErr}
	}
	return &ConnectError{Phase: PhaseHandshake, Err: err}
}

// Connect opens a single-connection session to SQL Server.
func Connect(ctx context.Context, cfg Config) (Session, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, &ConnectError{Phase: PhaseConfig, Err: errors.New("host is required")}
	}

	connector, err := mssql.NewConnector(cfg.DSN())
	if err != nil {
		return nil, &ConnectError{Phase: PhaseConfig, Err: err}
	}
	dialer := &trackingDialer{}
	dialer.Timeout = cfg.ConnectTimeout
	connector.Dialer = dialer

	db := sql.OpenDB(connector)
	// One session only: SET options are connection state.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, dialer.classify(err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, dialer.classify(err)
	}

	return &mssqlSession{db: db, conn: conn}, nil
}

type mssqlSession struct {
	db   *sql.DB
	conn *sql.Conn
}

func (s *mssqlSession) Query(ctx context.Context, query string) ([]*ResultSet, error) {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []*ResultSet
	for {
		rs, err := readResultSet(rows)
		if err != nil {
			return nil, err
		}
		if rs != nil {
			sets = append(sets, rs)
		}
		if !rows.NextResultSet() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sets, nil
}

// readResultSet drains the current result set. Statements that produce no
// columns yield nil.
func readResultSet(rows *sql.Rows) (*ResultSet, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	if len(types) == 0 {
		return nil, nil
	}

	cols := make([]Column, len(types))
	for i, ct := range types {
		name := strings.ToUpper(ct.DatabaseTypeName())
		if name == "" {
			return nil, fmt.Errorf("unsupported column type for column %q", ct.Name())
		}
		cols[i] = Column{Name: ct.Name(), Ordinal: i, Type: name}
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		cells := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(rs.Rows), err)
		}
		rs.Rows = append(rs.Rows, NewRow(cols, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *mssqlSession) Exec(ctx context.Context, stmt string) error {
	_, err := s.conn.ExecContext(ctx, stmt)
	return err
}

func (s *mssqlSession) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}
