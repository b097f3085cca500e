package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlplan/internal/wire"
)

func TestFakeSession_Routing(t *testing.T) {
	ctx := context.Background()
	one := ResultSet(Columns("n", wire.TypeInt), []any{int64(1)})
	meta := ResultSet(Columns("name", wire.TypeNVarChar), []any{"Id"})
	boom := errors.New("boom")

	s := NewFakeSession().
		OnQuery("SELECT 1", one).
		OnQueryContaining("sys.columns", meta).
		OnQueryError("SELECT bad", boom)

	sets, err := s.Query(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, []*wire.ResultSet{one}, sets)

	sets, err = s.Query(ctx, "SELECT name FROM sys.columns")
	require.NoError(t, err)
	assert.Equal(t, []*wire.ResultSet{meta}, sets)

	_, err = s.Query(ctx, "SELECT bad")
	assert.ErrorIs(t, err, boom)

	sets, err = s.Query(ctx, "anything else")
	require.NoError(t, err)
	assert.Empty(t, sets)

	assert.Equal(t, []string{"SELECT 1", "SELECT name FROM sys.columns", "SELECT bad", "anything else"}, s.Statements())
}

func TestFakeSession_TracksSetOptions(t *testing.T) {
	ctx := context.Background()
	s := NewFakeSession().OnExecError("SET STATISTICS XML OFF", errors.New("nope"))

	require.NoError(t, s.Exec(ctx, "SET SHOWPLAN_XML ON"))
	assert.Equal(t, []string{"SHOWPLAN_XML"}, s.EnabledOptions())
	require.NoError(t, s.Exec(ctx, "SET SHOWPLAN_XML OFF"))
	assert.Empty(t, s.EnabledOptions())

	require.NoError(t, s.Exec(ctx, "SET STATISTICS XML ON"))
	require.Error(t, s.Exec(ctx, "SET STATISTICS XML OFF"))
	assert.Equal(t, []string{"STATISTICS XML"}, s.EnabledOptions())
}

func TestConnector(t *testing.T) {
	a, b := NewFakeSession(), NewFakeSession()
	connect, seen := Connector(a, b)

	got, err := connect(context.Background(), wire.Config{Host: "one"})
	require.NoError(t, err)
	assert.Same(t, a, got)
	got, err = connect(context.Background(), wire.Config{Host: "two"})
	require.NoError(t, err)
	assert.Same(t, b, got)

	require.Len(t, *seen, 2)
	assert.Equal(t, "two", (*seen)[1].Host)
}
