package rewrite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlplan/internal/catalog"
	"github.com/roach88/sqlplan/internal/testutil"
	"github.com/roach88/sqlplan/internal/wire"
)

// stubCatalog answers from a map keyed by table reference.
type stubCatalog struct {
	tables map[string][]catalog.Column
	err    error
	calls  []string
}

func (s *stubCatalog) Columns(_ context.Context, _ wire.Session, table string) ([]catalog.Column, error) {
	s.calls = append(s.calls, table)
	if s.err != nil {
		return nil, s.err
	}
	return s.tables[table], nil
}

func widgets() []catalog.Column {
	return []catalog.Column{
		{Name: "Id", DeclaredType: "int", SystemTypeID: 56, UserTypeID: 56, SystemTypeName: "int"},
		{Name: "Code", DeclaredType: "CodeType", SystemTypeID: 167, UserTypeID: 257, SystemTypeName: "varchar", IsAlias: true},
		{Name: "ExpiresOn", DeclaredType: "date", SystemTypeID: 40, UserTypeID: 40, SystemTypeName: "date"},
	}
}

func plain() []catalog.Column {
	return []catalog.Column{
		{Name: "Id", SystemTypeID: 56, UserTypeID: 56, SystemTypeName: "int"},
		{Name: "Name", SystemTypeID: 231, UserTypeID: 231, SystemTypeName: "nvarchar"},
	}
}

func newRewriter(permissive bool) (*Rewriter, *stubCatalog) {
	cat := &stubCatalog{tables: map[string][]catalog.Column{
		"Widgets":         widgets(),
		"[dbo].[Widgets]": widgets(),
		"Plain":           plain(),
	}}
	return New(cat, permissive), cat
}

func TestRewriteAliasAndDateColumns(t *testing.T) {
	rw, _ := newRewriter(false)

	out := rw.Rewrite(context.Background(), testutil.NewFakeSession(), "SELECT * FROM Widgets")

	assert.True(t, out.Rewritten)
	assert.Equal(t,
		"SELECT [Id], CAST([Code] AS varchar) AS [Code], CAST([ExpiresOn] AS datetime) AS [ExpiresOn] FROM Widgets",
		out.SQL)
}

func TestRewriteNoCastNeeded(t *testing.T) {
	rw, _ := newRewriter(false)
	sql := "SELECT * FROM Plain"

	out := rw.Rewrite(context.Background(), testutil.NewFakeSession(), sql)

	assert.False(t, out.Rewritten)
	assert.Equal(t, sql, out.SQL)
}

func TestRewritePreservesTrailingClauses(t *testing.T) {
	rw, _ := newRewriter(false)

	out := rw.Rewrite(context.Background(), testutil.NewFakeSession(),
		"  select *\n  from Widgets where Id > 10\n  order by Code desc;  ")

	require.True(t, out.Rewritten)
	assert.Equal(t,
		"SELECT [Id], CAST([Code] AS varchar) AS [Code], CAST([ExpiresOn] AS datetime) AS [ExpiresOn] FROM Widgets where Id > 10\n  order by Code desc;",
		out.SQL)
}

func TestRewriteKeepsTrailingBytesVerbatim(t *testing.T) {
	rw, _ := newRewriter(false)
	tail := " WHERE Code = N'cafe\u0301' ORDER BY Id"

	out := rw.Rewrite(context.Background(), testutil.NewFakeSession(), "SELECT * FROM Widgets"+tail)

	require.True(t, out.Rewritten)
	assert.True(t, strings.HasSuffix(out.SQL, tail), "decomposed literal must not be normalized: %q", out.SQL)
	assert.NotContains(t, out.SQL, "caf\u00e9")
}

func TestRewriteBracketDirectlyAfterFrom(t *testing.T) {
	rw, cat := newRewriter(false)
	cat.tables["[Widgets]"] = widgets()

	out := rw.Rewrite(context.Background(), testutil.NewFakeSession(), "select*from[Widgets] where Id = 1")

	require.True(t, out.Rewritten)
	assert.Equal(t, []string{"[Widgets]"}, cat.calls)
	assert.True(t, strings.HasSuffix(out.SQL, " FROM [Widgets] where Id = 1"))
}

func TestRewriteTrailingSemicolonStaysInRemainder(t *testing.T) {
	rw, cat := newRewriter(false)

	out := rw.Rewrite(context.Background(), testutil.NewFakeSession(), "SELECT * FROM Widgets;")

	require.True(t, out.Rewritten)
	assert.Equal(t, []string{"Widgets"}, cat.calls)
	assert.Equal(t, ";", out.SQL[len(out.SQL)-1:])
}

func TestRewriteIsIdempotent(t *testing.T) {
	rw, cat := newRewriter(true)
	sess := testutil.NewFakeSession()

	first := rw.Rewrite(context.Background(), sess, "SELECT * FROM Widgets")
	require.True(t, first.Rewritten)

	second := rw.Rewrite(context.Background(), sess, first.SQL)
	assert.False(t, second.Rewritten)
	assert.Equal(t, first.SQL, second.SQL)
	assert.Len(t, cat.calls, 1)
}

func TestRewriteCatalogFailureReturnsOriginal(t *testing.T) {
	rw, cat := newRewriter(false)
	cat.err = errors.New("VIEW DEFINITION permission denied")
	sql := "SELECT * FROM Widgets"

	out := rw.Rewrite(context.Background(), testutil.NewFakeSession(), sql)

	assert.False(t, out.Rewritten)
	assert.Equal(t, sql, out.SQL)
}

func TestRewriteUnknownTable(t *testing.T) {
	rw, _ := newRewriter(false)
	out := rw.Rewrite(context.Background(), testutil.NewFakeSession(), "SELECT * FROM Missing")
	assert.False(t, out.Rewritten)
}

func TestMatchShapes(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		strict     bool
		permissive bool
		table      string
		rest       string
	}{
		{"canonical", "SELECT * FROM Widgets", true, true, "Widgets", ""},
		{"no spaces", "select*from Widgets", true, true, "Widgets", ""},
		{"mixed spacing", "Select *From   Widgets  WHERE 1=1", true, true, "Widgets", "  WHERE 1=1"},
		{"bracketed schema", "SELECT * FROM [dbo].[My Widgets] w", true, true, "[dbo].[My Widgets]", " w"},
		{"semicolon", "SELECT * FROM Widgets;", true, true, "Widgets", ";"},
		{"explicit columns", "SELECT Id FROM Widgets", false, false, "", ""},
		{"multiplication", "SELECT Price * Qty FROM Orders", false, true, "Orders", ""},
		{"count star", "select count(*) from Orders where x = 1", false, true, "Orders", " where x = 1"},
		{"no from", "SELECT 1 * 2", false, false, "", ""},
		{"bracket after from", "select*from[Widgets]", true, true, "[Widgets]", ""},
		{"bracketed schema after from", "SELECT * FROM[dbo].[T] x", true, true, "[dbo].[T]", " x"},
		{"name glued to from", "select*fromWidgets", false, false, "", ""},
		{"from prefix of identifier", "select x * y fromage from Orders", false, true, "Orders", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := (&Rewriter{}).Match(tt.sql)
			assert.Equal(t, tt.strict, ok, "strict")
			if ok {
				assert.Equal(t, tt.table, m.Table)
				assert.Equal(t, tt.rest, m.Rest)
			}

			m, ok = (&Rewriter{Permissive: true}).Match(tt.sql)
			assert.Equal(t, tt.permissive, ok, "permissive")
			if ok {
				assert.Equal(t, tt.table, m.Table)
				assert.Equal(t, tt.rest, m.Rest)
			}
		})
	}
}

func TestRewriteBracketedTable(t *testing.T) {
	rw, cat := newRewriter(false)

	out := rw.Rewrite(context.Background(), testutil.NewFakeSession(), "SELECT * FROM [dbo].[Widgets]")

	require.True(t, out.Rewritten)
	assert.Equal(t, []string{"[dbo].[Widgets]"}, cat.calls)
	assert.Contains(t, out.SQL, " FROM [dbo].[Widgets]")
}

func TestColumnListEscapesBrackets(t *testing.T) {
	list, casts := ColumnList([]catalog.Column{
		{Name: "odd]name", SystemTypeID: 40, UserTypeID: 40},
	})
	assert.Equal(t, 1, casts)
	assert.Equal(t, "CAST([odd]]name] AS datetime) AS [odd]]name]", list)
}

func TestRewriteAgainstInspector(t *testing.T) {
	meta := testutil.ResultSet(
		testutil.Columns(
			"name", wire.TypeSysname,
			"system_type_id", wire.TypeTinyInt,
			"user_type_id", wire.TypeInt,
			"type_name", wire.TypeSysname,
			"system_type_name", wire.TypeSysname,
		),
		[]any{"Id", int64(56), int64(56), "int", "int"},
		[]any{"ExpiresOn", int64(40), int64(40), "date", "date"},
	)
	sess := testutil.NewFakeSession().OnQuery(catalog.ColumnsQuery("Licenses"), meta)
	rw := New(catalog.Inspector{}, false)

	out := rw.Rewrite(context.Background(), sess, "SELECT * FROM Licenses")

	assert.Equal(t, "SELECT [Id], CAST([ExpiresOn] AS datetime) AS [ExpiresOn] FROM Licenses", out.SQL)
}

func TestRewriteKeepsCLRColumnsInList(t *testing.T) {
	meta := testutil.ResultSet(
		testutil.Columns(
			"name", wire.TypeSysname,
			"system_type_id", wire.TypeTinyInt,
			"user_type_id", wire.TypeInt,
			"type_name", wire.TypeSysname,
			"system_type_name", wire.TypeSysname,
		),
		[]any{"Shape", int64(240), int64(130), "geography", nil},
		[]any{"SurveyedOn", int64(40), int64(40), "date", "date"},
	)
	sess := testutil.NewFakeSession().OnQuery(catalog.ColumnsQuery("Parcels"), meta)
	rw := New(catalog.Inspector{}, false)

	out := rw.Rewrite(context.Background(), sess, "SELECT * FROM Parcels")

	assert.Equal(t, "SELECT [Shape], CAST([SurveyedOn] AS datetime) AS [SurveyedOn] FROM Parcels", out.SQL)
}
