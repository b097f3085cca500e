package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/sqlplan/internal/catalog"
	"github.com/roach88/sqlplan/internal/decode"
	"github.com/roach88/sqlplan/internal/rewrite"
	"github.com/roach88/sqlplan/internal/wire"
)

// Session options toggled for plan capture.
const (
	OptionShowplanXML   = "SHOWPLAN_XML"
	OptionStatisticsXML = "STATISTICS XML"
)

// PlanMarker identifies the plan document among Actual-mode result sets.
const PlanMarker = "ShowPlanXML"

// NoteCastApplied is prepended to the messages of a rewritten query.
const NoteCastApplied = "Note: Alias types and date columns automatically cast to their base types for compatibility."

// Engine serializes query execution over a single attached session.
//
// Thread-safety model:
//   - Attach, Detach, Execute: safe from any goroutine, serialized by sem
//   - Connected: safe from any goroutine, lock-free
type Engine struct {
	sem      *semaphore.Weighted
	session  wire.Session
	attached atomic.Bool
	rewriter *rewrite.Rewriter
	clock    Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to time executions.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRewriter sets the SELECT * rewriter. A nil rewriter disables
// rewriting entirely.
func WithRewriter(rw *rewrite.Rewriter) Option {
	return func(e *Engine) {
		e.rewriter = rw
	}
}

// New creates an Engine with no session attached.
//
// Defaults: strict rewriting against the live catalog and the system clock.
func New(opts ...Option) *Engine {
	e := &Engine{
		sem:      semaphore.NewWeighted(1),
		rewriter: rewrite.New(catalog.Inspector{}, false),
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach installs s as the live session, closing any session it replaces.
func (e *Engine) Attach(ctx context.Context, s wire.Session) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.sem.Release(1)

	var closeErr error
	if e.session != nil {
		closeErr = e.session.Close()
	}
	e.session = s
	e.attached.Store(s != nil)
	if closeErr != nil {
		slog.Warn("closing replaced session", "error", closeErr)
	}
	return nil
}

// Detach closes and drops the live session. Detaching with no session
// attached is a no-op.
func (e *Engine) Detach(ctx context.Context) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.sem.Release(1)

	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	e.attached.Store(false)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// Connected reports whether a session is attached.
func (e *Engine) Connected() bool {
	return e.attached.Load()
}

// WithSession runs fn with exclusive use of the live session.
func (e *Engine) WithSession(ctx context.Context, fn func(wire.Session) error) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.sem.Release(1)

	if e.session == nil {
		return ErrNotConnected
	}
	return fn(e.session)
}

// Execute runs sql under the given plan mode and returns the normalized
// result. Concurrent callers are served one at a time.
func (e *Engine) Execute(ctx context.Context, sql string, mode PlanMode) (*Result, error) {
	var res *Result
	err := e.WithSession(ctx, func(sess wire.Session) error {
		var err error
		res, err = e.execute(ctx, sess, sql, mode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) acquire(ctx context.Context) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return &Error{
			Code:    ErrCodeSessionBusy,
			Message: fmt.Sprintf("Gave up waiting for the database session: %v", err),
			Err:     err,
		}
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, sess wire.Session, sql string, mode PlanMode) (*Result, error) {
	query := sql
	res := newResult()
	if e.rewriter != nil {
		out := e.rewriter.Rewrite(ctx, sess, sql)
		if out.Rewritten {
			query = out.SQL
			res.Messages = append(res.Messages, NoteCastApplied)
			slog.Debug("query rewritten", "sql", query)
		}
	}

	start := e.clock.Now()
	var err error
	switch mode {
	case PlanNone:
		err = runNone(ctx, sess, query, res)
	case PlanEstimated:
		err = runEstimated(ctx, sess, query, res)
	case PlanActual:
		err = runActual(ctx, sess, query, res)
	default:
		return nil, fmt.Errorf("unknown plan mode %v", mode)
	}
	if err != nil {
		return nil, err
	}

	res.Duration = e.clock.Now().Sub(start)
	res.Messages = append(res.Messages, fmt.Sprintf("Execution time: %.2fms", float64(res.Duration.Microseconds())/1000))
	return res, nil
}

func runNone(ctx context.Context, sess wire.Session, query string, res *Result) error {
	sets, err := sess.Query(ctx, query)
	if err != nil {
		return newQueryError(PlanNone, err)
	}

	captured := false
	for i, rs := range sets {
		if rs.Empty() {
			continue
		}
		if !captured {
			res.Columns = rs.ColumnNames()
			captured = true
		}
		if len(rs.Columns) != len(res.Columns) {
			res.Messages = append(res.Messages, fmt.Sprintf(
				"Result set %d skipped: %d column(s), expected %d.", i+1, len(rs.Columns), len(res.Columns)))
			continue
		}
		for _, row := range rs.Rows {
			res.Rows = append(res.Rows, decode.Row(row))
		}
	}
	res.RowsAffected = int64(len(res.Rows))
	res.Messages = append(res.Messages, fmt.Sprintf("Query executed. %d row(s) returned.", res.RowsAffected))
	return nil
}

func runEstimated(ctx context.Context, sess wire.Session, query string, res *Result) error {
	err := withSessionOption(ctx, sess, OptionShowplanXML, func() error {
		sets, err := sess.Query(ctx, query)
		if err != nil {
			return newQueryError(PlanEstimated, err)
		}
		if len(sets) > 0 && !sets[0].Empty() {
			if plan, ok, err := sets[0].Rows[0].Text(0); err == nil && ok {
				res.PlanXML = &plan
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	res.Messages = append(res.Messages, "Estimated execution plan generated.")
	return nil
}

func runActual(ctx context.Context, sess wire.Session, query string, res *Result) error {
	err := withSessionOption(ctx, sess, OptionStatisticsXML, func() error {
		sets, err := sess.Query(ctx, query)
		if err != nil {
			return newQueryError(PlanActual, err)
		}
		for _, rs := range sets {
			if rs.Empty() {
				continue
			}
			if text, ok, err := rs.Rows[0].Text(0); err == nil && ok && strings.Contains(text, PlanMarker) {
				res.PlanXML = &text
				continue
			}
			res.RowsAffected += int64(rs.Len())
		}
		return nil
	})
	if err != nil {
		return err
	}
	res.Messages = append(res.Messages, fmt.Sprintf(
		"Query executed. %d row(s) returned with actual execution plan.", res.RowsAffected))
	return nil
}

// withSessionOption runs fn with a session option switched on. The option
// is switched off afterwards whatever fn returned, on a context that
// ignores cancellation.
func withSessionOption(ctx context.Context, sess wire.Session, option string, fn func() error) error {
	slog.Debug("enabling session option", "option", option)
	if err := sess.Exec(ctx, "SET "+option+" ON"); err != nil {
		return newToggleError("enable", option, err)
	}

	runErr := fn()

	var offErr error
	if err := sess.Exec(context.WithoutCancel(ctx), "SET "+option+" OFF"); err != nil {
		offErr = newToggleError("disable", option, err)
		slog.Error("session option left enabled", "option", option, "error", err)
	}

	switch {
	case runErr != nil && offErr != nil:
		return errors.Join(runErr, offErr)
	case runErr != nil:
		return runErr
	default:
		return offErr
	}
}
