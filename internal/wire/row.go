package wire

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
)

// ErrTypeMismatch is returned by a Row accessor when the column cannot be
// read as the requested type.
var ErrTypeMismatch = errors.New("column type mismatch")

// Wire type names as reported by the driver.
const (
	TypeNVarChar         = "NVARCHAR"
	TypeVarChar          = "VARCHAR"
	TypeNChar            = "NCHAR"
	TypeChar             = "CHAR"
	TypeNText            = "NTEXT"
	TypeText             = "TEXT"
	TypeXML              = "XML"
	TypeSysname          = "SYSNAME"
	TypeInt              = "INT"
	TypeBigInt           = "BIGINT"
	TypeSmallInt         = "SMALLINT"
	TypeTinyInt          = "TINYINT"
	TypeReal             = "REAL"
	TypeFloat            = "FLOAT"
	TypeDecimal          = "DECIMAL"
	TypeNumeric          = "NUMERIC"
	TypeMoney            = "MONEY"
	TypeSmallMoney       = "SMALLMONEY"
	TypeBit              = "BIT"
	TypeDateTime         = "DATETIME"
	TypeDateTime2        = "DATETIME2"
	TypeSmallDateTime    = "SMALLDATETIME"
	TypeDate             = "DATE"
	TypeTime             = "TIME"
	TypeDateTimeOffset   = "DATETIMEOFFSET"
	TypeUniqueIdentifier = "UNIQUEIDENTIFIER"
	TypeVarBinary        = "VARBINARY"
)

type accessor int

const (
	accText accessor = iota
	accInt32
	accInt64
	accInt16
	accFloat32
	accFloat64
	accUint8
	accBool
	accTime
	accUUID
)

func (a accessor) String() string {
	return [...]string{"text", "int32", "int64", "int16", "float32", "float64", "uint8", "bool", "time", "uuid"}[a]
}

// compatible maps each accessor to the wire types it can read.
// DATE, TIME and DATETIMEOFFSET are deliberately absent.
var compatible = map[accessor][]string{
	accText:    {TypeNVarChar, TypeVarChar, TypeNChar, TypeChar, TypeNText, TypeText, TypeXML, TypeSysname},
	accInt32:   {TypeInt},
	accInt64:   {TypeBigInt},
	accInt16:   {TypeSmallInt},
	accFloat32: {TypeReal},
	accFloat64: {TypeFloat, TypeDecimal, TypeNumeric, TypeMoney, TypeSmallMoney},
	accUint8:   {TypeTinyInt},
	accBool:    {TypeBit},
	accTime:    {TypeDateTime, TypeDateTime2, TypeSmallDateTime},
	accUUID:    {TypeUniqueIdentifier},
}

// Column describes one result column.
type Column struct {
	Name    string
	Ordinal int
	Type    string // wire type name, upper case
}

// ResultSet is one result set of a batch, fully read.
type ResultSet struct {
	Columns []Column
	Rows    []*Row
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	return len(rs.Rows)
}

// Empty reports whether the result set has no rows.
func (rs *ResultSet) Empty() bool {
	return len(rs.Rows) == 0
}

// ColumnNames returns the column names in server order.
func (rs *ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	return names
}

// Row is one row of raw driver values with typed accessors.
type Row struct {
	columns []Column
	cells   []any
}

// NewRow builds a row. cells[i] is the raw driver value for columns[i];
// nil means NULL.
func NewRow(columns []Column, cells []any) *Row {
	return &Row{columns: columns, cells: cells}
}

// Columns returns the row's column descriptors.
func (r *Row) Columns() []Column {
	return r.columns
}

// Len returns the number of cells.
func (r *Row) Len() int {
	return len(r.cells)
}

// cell returns the raw value at i after checking the column's wire type
// against the accessor.
func (r *Row) cell(i int, acc accessor) (any, error) {
	if i < 0 || i >= len(r.cells) || i >= len(r.columns) {
		return nil, fmt.Errorf("column index %d out of range (%d columns)", i, len(r.cells))
	}
	typ := strings.ToUpper(r.columns[i].Type)
	for _, t := range compatible[acc] {
		if t == typ {
			return r.cells[i], nil
		}
	}
	return nil, fmt.Errorf("%w: column %q is %s, not %s", ErrTypeMismatch, r.columns[i].Name, typ, acc)
}

func mismatch(r *Row, i int, acc accessor, raw any) error {
	return fmt.Errorf("%w: column %q holds %T, not %s", ErrTypeMismatch, r.columns[i].Name, raw, acc)
}

// Text reads a character column.
func (r *Row) Text(i int) (string, bool, error) {
	raw, err := r.cell(i, accText)
	if err != nil || raw == nil {
		return "", false, err
	}
	switch v := raw.(type) {
	case string:
		return v, true, nil
	case []byte:
		return string(v), true, nil
	}
	return "", false, mismatch(r, i, accText, raw)
}

// Int32 reads an INT column.
func (r *Row) Int32(i int) (int32, bool, error) {
	raw, err := r.cell(i, accInt32)
	if err != nil || raw == nil {
		return 0, false, err
	}
	n, ok := asInt64(raw)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false, mismatch(r, i, accInt32, raw)
	}
	return int32(n), true, nil
}

// Int64 reads a BIGINT column.
func (r *Row) Int64(i int) (int64, bool, error) {
	raw, err := r.cell(i, accInt64)
	if err != nil || raw == nil {
		return 0, false, err
	}
	n, ok := asInt64(raw)
	if !ok {
		return 0, false, mismatch(r, i, accInt64, raw)
	}
	return n, true, nil
}

// Int16 reads a SMALLINT column.
func (r *Row) Int16(i int) (int16, bool, error) {
	raw, err := r.cell(i, accInt16)
	if err != nil || raw == nil {
		return 0, false, err
	}
	n, ok := asInt64(raw)
	if !ok || n < math.MinInt16 || n > math.MaxInt16 {
		return 0, false, mismatch(r, i, accInt16, raw)
	}
	return int16(n), true, nil
}

// Uint8 reads a TINYINT column.
func (r *Row) Uint8(i int) (uint8, bool, error) {
	raw, err := r.cell(i, accUint8)
	if err != nil || raw == nil {
		return 0, false, err
	}
	n, ok := asInt64(raw)
	if !ok || n < 0 || n > math.MaxUint8 {
		return 0, false, mismatch(r, i, accUint8, raw)
	}
	return uint8(n), true, nil
}

// Float32 reads a REAL column.
func (r *Row) Float32(i int) (float32, bool, error) {
	raw, err := r.cell(i, accFloat32)
	if err != nil || raw == nil {
		return 0, false, err
	}
	switch v := raw.(type) {
	case float32:
		return v, true, nil
	case float64:
		return float32(v), true, nil
	}
	return 0, false, mismatch(r, i, accFloat32, raw)
}

// Float64 reads a FLOAT column. DECIMAL, NUMERIC and MONEY columns arrive
// from the driver as text and are parsed, which may lose precision.
func (r *Row) Float64(i int) (float64, bool, error) {
	raw, err := r.cell(i, accFloat64)
	if err != nil || raw == nil {
		return 0, false, err
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case []byte:
		if f, perr := strconv.ParseFloat(string(v), 64); perr == nil {
			return f, true, nil
		}
	case string:
		if f, perr := strconv.ParseFloat(v, 64); perr == nil {
			return f, true, nil
		}
	}
	return 0, false, mismatch(r, i, accFloat64, raw)
}

// Bool reads a BIT column.
func (r *Row) Bool(i int) (bool, bool, error) {
	raw, err := r.cell(i, accBool)
	if err != nil || raw == nil {
		return false, false, err
	}
	if v, ok := raw.(bool); ok {
		return v, true, nil
	}
	return false, false, mismatch(r, i, accBool, raw)
}

// Time reads a DATETIME, DATETIME2 or SMALLDATETIME column.
func (r *Row) Time(i int) (time.Time, bool, error) {
	raw, err := r.cell(i, accTime)
	if err != nil || raw == nil {
		return time.Time{}, false, err
	}
	if v, ok := raw.(time.Time); ok {
		return v, true, nil
	}
	return time.Time{}, false, mismatch(r, i, accTime, raw)
}

// UUID reads a UNIQUEIDENTIFIER column. The driver delivers SQL Server's
// mixed-endian byte layout; the result is the RFC 4122 value.
func (r *Row) UUID(i int) (uuid.UUID, bool, error) {
	raw, err := r.cell(i, accUUID)
	if err != nil || raw == nil {
		return uuid.Nil, false, err
	}
	switch v := raw.(type) {
	case uuid.UUID:
		return v, true, nil
	case []byte:
		var id mssql.UniqueIdentifier
		if serr := id.Scan(v); serr == nil {
			return uuid.UUID(id), true, nil
		}
	case string:
		if id, perr := uuid.Parse(v); perr == nil {
			return id, true, nil
		}
	}
	return uuid.Nil, false, mismatch(r, i, accUUID, raw)
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case int:
		return int64(v), true
	case uint8:
		return int64(v), true
	}
	return 0, false
}
