package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/roach88/sqlplan/internal/wire"
)

// Response is the scripted outcome of a query.
type Response struct {
	Sets []*wire.ResultSet
	Err  error
}

type matcher struct {
	match func(string) bool
	resp  Response
}

// FakeSession is a scriptable wire.Session.
//
// Queries are answered by exact text first, then by predicate in
// registration order, then by Default. Every Query and Exec is logged in
// call order. Successful "SET <option> ON|OFF" statements are tracked so
// tests can assert no session option was left enabled.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeSession struct {
	mu       sync.Mutex
	exact    map[string]Response
	matchers []matcher
	execErrs map[string]error
	options  map[string]bool
	log      []string
	closed   bool

	// Default answers queries nothing else matched.
	Default Response

	// OnCall, when set, runs at the start of every Query and Exec outside
	// the session's own lock.
	OnCall func(stmt string)
}

var _ wire.Session = (*FakeSession)(nil)

// NewFakeSession returns a session that answers every query with no
// result sets.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		exact:    make(map[string]Response),
		execErrs: make(map[string]error),
		options:  make(map[string]bool),
	}
}

// OnQuery scripts the result sets for an exact query text.
func (f *FakeSession) OnQuery(query string, sets ...*wire.ResultSet) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exact[query] = Response{Sets: sets}
	return f
}

// OnQueryError scripts a failure for an exact query text.
func (f *FakeSession) OnQueryError(query string, err error) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exact[query] = Response{Err: err}
	return f
}

// OnQueryContaining scripts the result sets for any query containing substr.
func (f *FakeSession) OnQueryContaining(substr string, sets ...*wire.ResultSet) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchers = append(f.matchers, matcher{
		match: func(q string) bool { return strings.Contains(q, substr) },
		resp:  Response{Sets: sets},
	})
	return f
}

// OnQueryContainingError scripts a failure for any query containing substr.
func (f *FakeSession) OnQueryContainingError(substr string, err error) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchers = append(f.matchers, matcher{
		match: func(q string) bool { return strings.Contains(q, substr) },
		resp:  Response{Err: err},
	})
	return f
}

// OnExecError scripts a failure for an exact statement passed to Exec.
func (f *FakeSession) OnExecError(stmt string, err error) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execErrs[stmt] = err
	return f
}

// Query implements wire.Session.
func (f *FakeSession) Query(_ context.Context, query string) ([]*wire.ResultSet, error) {
	if f.OnCall != nil {
		f.OnCall(query)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, query)

	if resp, ok := f.exact[query]; ok {
		return resp.Sets, resp.Err
	}
	for _, m := range f.matchers {
		if m.match(query) {
			return m.resp.Sets, m.resp.Err
		}
	}
	return f.Default.Sets, f.Default.Err
}

// Exec implements wire.Session.
func (f *FakeSession) Exec(_ context.Context, stmt string) error {
	if f.OnCall != nil {
		f.OnCall(stmt)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, stmt)

	if err := f.execErrs[stmt]; err != nil {
		return err
	}
	if opt, on, ok := parseSetOption(stmt); ok {
		f.options[opt] = on
	}
	return nil
}

// Close implements wire.Session.
func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Statements returns every statement seen, in call order.
func (f *FakeSession) Statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

// EnabledOptions returns the SET options currently left ON.
func (f *FakeSession) EnabledOptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var on []string
	for opt, enabled := range f.options {
		if enabled {
			on = append(on, opt)
		}
	}
	return on
}

// Closed reports whether Close was called.
func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// parseSetOption recognizes "SET <option> ON|OFF".
func parseSetOption(stmt string) (option string, on bool, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(stmt))
	if !strings.HasPrefix(s, "SET ") {
		return "", false, false
	}
	s = strings.TrimPrefix(s, "SET ")
	switch {
	case strings.HasSuffix(s, " ON"):
		return strings.TrimSuffix(s, " ON"), true, true
	case strings.HasSuffix(s, " OFF"):
		return strings.TrimSuffix(s, " OFF"), false, true
	}
	return "", false, false
}

// Columns builds column descriptors from alternating name, type pairs.
//
//	Columns("Id", wire.TypeInt, "Name", wire.TypeNVarChar)
func Columns(nameTypes ...string) []wire.Column {
	cols := make([]wire.Column, 0, len(nameTypes)/2)
	for i := 0; i+1 < len(nameTypes); i += 2 {
		cols = append(cols, wire.Column{Name: nameTypes[i], Ordinal: len(cols), Type: nameTypes[i+1]})
	}
	return cols
}

// ResultSet builds a result set from columns and raw cell rows.
func ResultSet(cols []wire.Column, rows ...[]any) *wire.ResultSet {
	rs := &wire.ResultSet{Columns: cols}
	for _, cells := range rows {
		rs.Rows = append(rs.Rows, wire.NewRow(cols, cells))
	}
	return rs
}

// Connector returns a wire.ConnectFunc that hands out the given sessions in
// order and records the configs it was called with.
func Connector(sessions ...*FakeSession) (wire.ConnectFunc, *[]wire.Config) {
	var mu sync.Mutex
	var seen []wire.Config
	return func(_ context.Context, cfg wire.Config) (wire.Session, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, cfg)
		if len(sessions) == 0 {
			panic("testutil.Connector: no sessions left")
		}
		s := sessions[0]
		sessions = sessions[1:]
		return s, nil
	}, &seen
}
