// Package catalog reads column type metadata from SQL Server's sys.*
// catalog views.
//
// For a table or view it reports each column's declared type (which may be
// a user-defined alias) next to the primitive storage type the server puts
// on the wire.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/sqlplan/internal/wire"
)

// DateTypeID is sys.types.system_type_id for the date-only DATE type.
const DateTypeID = 40

// Column is one column's declared and underlying storage type.
type Column struct {
	Name           string
	DeclaredType   string // sys.types.name for user_type_id, possibly an alias
	SystemTypeID   int
	UserTypeID     int
	SystemTypeName string // sys.types.name for system_type_id
	IsAlias        bool
}

// CastType returns the type the column must be cast to before the client
// can decode it. DATE becomes datetime; an alias becomes its storage type.
func (c Column) CastType() (string, bool) {
	if c.SystemTypeID == DateTypeID {
		return "datetime", true
	}
	if c.IsAlias && c.SystemTypeName != "" {
		return c.SystemTypeName, true
	}
	return "", false
}

// ObjectName is a possibly schema-qualified table or view name.
type ObjectName struct {
	Schema string
	Name   string
}

// ParseObjectName splits a table reference such as "[dbo].[Widgets]" or
// "Sales.dbo.Orders" into schema and object name, dropping brackets and
// any database qualifier.
func ParseObjectName(ref string) ObjectName {
	var parts []string
	var cur strings.Builder
	inBracket := false
	for _, r := range ref {
		switch {
		case r == '[' && !inBracket:
			inBracket = true
		case r == ']' && inBracket:
			inBracket = false
		case r == '.' && !inBracket:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	parts = append(parts, cur.String())

	name := ObjectName{Name: parts[len(parts)-1]}
	if len(parts) > 1 {
		name.Schema = parts[len(parts)-2]
	}
	return name
}

// quote renders s as an N'' string literal.
func quote(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ColumnsQuery builds the metadata query for a table or view reference.
// sys.types is joined twice: once on user_type_id for the declared type and
// once on system_type_id for the storage type. CLR types (system_type_id
// 240) have no storage row, so the second join is outer and such columns
// come back with a NULL system_type_name.
func ColumnsQuery(ref string) string {
	obj := ParseObjectName(ref)

	var b strings.Builder
	b.WriteString("SELECT c.name, c.system_type_id, c.user_type_id, t.name AS type_name, st.name AS system_type_name\n")
	b.WriteString("FROM sys.columns c\n")
	b.WriteString("INNER JOIN sys.objects o ON c.object_id = o.object_id\n")
	b.WriteString("INNER JOIN sys.types t ON c.user_type_id = t.user_type_id\n")
	b.WriteString("LEFT JOIN sys.types st ON c.system_type_id = st.user_type_id\n")
	fmt.Fprintf(&b, "WHERE LOWER(o.name) = LOWER(%s)\n", quote(obj.Name))
	if obj.Schema != "" {
		fmt.Fprintf(&b, "AND LOWER(SCHEMA_NAME(o.schema_id)) = LOWER(%s)\n", quote(obj.Schema))
	}
	b.WriteString("AND o.type IN ('U', 'V')\n")
	b.WriteString("ORDER BY c.column_id")
	return b.String()
}

// Inspector looks up column metadata over a live session.
type Inspector struct{}

// Columns returns the columns of the named table or view in ordinal order.
// An unknown object yields an empty slice, not an error.
func (Inspector) Columns(ctx context.Context, sess wire.Session, table string) ([]Column, error) {
	sets, err := sess.Query(ctx, ColumnsQuery(table))
	if err != nil {
		return nil, fmt.Errorf("query column metadata for %q: %w", table, err)
	}

	columns := []Column{}
	for _, rs := range sets {
		for _, row := range rs.Rows {
			col, ok := scanColumn(row)
			if ok {
				columns = append(columns, col)
			}
		}
	}
	return columns, nil
}

// scanColumn reads one metadata row. Rows without a column name are
// skipped; unreadable type ids leave the column uncast.
func scanColumn(row *wire.Row) (Column, bool) {
	name, ok, err := row.Text(0)
	if err != nil || !ok {
		return Column{}, false
	}
	col := Column{Name: name}

	sysID, sysOK, sysErr := row.Uint8(1)
	userID, userOK, userErr := row.Int32(2)
	if sysErr == nil && sysOK {
		col.SystemTypeID = int(sysID)
	}
	if userErr == nil && userOK {
		col.UserTypeID = int(userID)
	}
	if sysErr == nil && sysOK && userErr == nil && userOK {
		col.IsAlias = col.SystemTypeID != col.UserTypeID
	}
	if v, ok, err := row.Text(3); err == nil && ok {
		col.DeclaredType = v
	}
	if v, ok, err := row.Text(4); err == nil && ok {
		col.SystemTypeName = v
	}
	return col, true
}
