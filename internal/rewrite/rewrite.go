// Package rewrite injects CASTs into simple SELECT * queries so that every
// returned column has a wire type the client can decode.
//
// Matching is lexical, not a parse. Only "SELECT * FROM <table>" (any
// spacing, any case, including "select*from") is considered unless
// Permissive is set. Anything that does not match, or whose metadata cannot
// be read, is returned unchanged: rewriting never blocks execution.
package rewrite

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sqlplan/internal/catalog"
	"github.com/roach88/sqlplan/internal/wire"
)

// Catalog supplies column metadata for a table or view.
type Catalog interface {
	Columns(ctx context.Context, sess wire.Session, table string) ([]catalog.Column, error)
}

// tableToken is a table reference: bracketed parts or runs of characters
// other than whitespace, '[' and ';'.
const tableToken = `((?:\[[^\]]*\]|[^\s\[;])+)`

// Both shapes capture the whitespace after FROM (group 1) and the table
// reference (group 2).
var (
	strictShape = regexp.MustCompile(`(?is)^select\s*\*\s*from(\s*)` + tableToken)
	fromClause  = regexp.MustCompile(`(?is)\bfrom(\s*)` + tableToken)
)

// Match is a recognized SELECT * shape.
type Match struct {
	Table string // table reference as written
	Rest  string // everything after the table reference, verbatim
}

// Outcome is the result of Rewrite.
type Outcome struct {
	SQL       string
	Rewritten bool
}

// Rewriter rewrites SELECT * queries using catalog metadata.
type Rewriter struct {
	Catalog Catalog

	// Permissive also accepts any query containing "select", "*" and "from",
	// taking the token after the first FROM as the table. It misfires on
	// queries such as "SELECT a * b FROM t".
	Permissive bool
}

// New returns a Rewriter over the given catalog.
func New(cat Catalog, permissive bool) *Rewriter {
	return &Rewriter{Catalog: cat, Permissive: permissive}
}

// Match reports whether sql has the rewritable shape and extracts the
// table reference and trailing text. Both are slices of sql with only the
// surrounding whitespace removed.
func (rw *Rewriter) Match(sql string) (Match, bool) {
	text := strings.TrimSpace(sql)

	if loc := strictShape.FindStringSubmatchIndex(text); loc != nil && separated(text, loc) {
		return matchAt(text, loc), true
	}
	if !rw.Permissive || !containsSelectStarFrom(text) {
		return Match{}, false
	}
	for _, loc := range fromClause.FindAllStringSubmatchIndex(text, -1) {
		if separated(text, loc) {
			return matchAt(text, loc), true
		}
	}
	return Match{}, false
}

// separated reports whether FROM is followed by whitespace or directly by
// a bracketed name, so "fromage" is not read as FROM age.
func separated(text string, loc []int) bool {
	return loc[3] > loc[2] || text[loc[4]] == '['
}

func matchAt(text string, loc []int) Match {
	return Match{Table: text[loc[4]:loc[5]], Rest: text[loc[5]:]}
}

func containsSelectStarFrom(text string) bool {
	folded := cases.Fold().String(norm.NFC.String(text))
	return strings.Contains(folded, "select") &&
		strings.Contains(folded, "*") &&
		strings.Contains(folded, "from")
}

// Rewrite returns sql with explicit casts for columns whose storage type
// the client cannot decode, or sql unchanged.
func (rw *Rewriter) Rewrite(ctx context.Context, sess wire.Session, sql string) Outcome {
	unchanged := Outcome{SQL: sql}

	m, ok := rw.Match(sql)
	if !ok {
		slog.Debug("rewrite: query shape not eligible")
		return unchanged
	}
	slog.Debug("rewrite: matched select star", "table", m.Table)

	cols, err := rw.Catalog.Columns(ctx, sess, m.Table)
	if err != nil {
		slog.Warn("column metadata lookup failed, casts not applied", "table", m.Table, "error", err)
		return unchanged
	}

	list, casts := ColumnList(cols)
	if casts == 0 {
		slog.Debug("rewrite: no column needs a cast", "table", m.Table, "columns", len(cols))
		return unchanged
	}

	rewritten := "SELECT " + list + " FROM " + m.Table + m.Rest
	slog.Debug("rewrite: applied casts", "table", m.Table, "casts", casts, "sql", rewritten)
	return Outcome{SQL: rewritten, Rewritten: true}
}

// ColumnList renders the explicit select list for cols and reports how many
// columns were cast.
func ColumnList(cols []catalog.Column) (string, int) {
	items := make([]string, len(cols))
	casts := 0
	for i, c := range cols {
		ident := quoteIdent(c.Name)
		if typ, ok := c.CastType(); ok {
			items[i] = "CAST(" + ident + " AS " + typ + ") AS " + ident
			casts++
			continue
		}
		items[i] = ident
	}
	return strings.Join(items, ", "), casts
}

func quoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
