package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/sqlplan/internal/testutil"
	"github.com/roach88/sqlplan/internal/value"
	"github.com/roach88/sqlplan/internal/wire"
)

func TestProbeOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"text", "int32", "int64", "int16", "float32", "float64", "uint8", "bool", "datetime", "uuid"},
		ProbeNames())
}

func TestRowMixedCells(t *testing.T) {
	cols := testutil.Columns(
		"Id", wire.TypeInt,
		"Note", wire.TypeNVarChar,
		"Greeting", wire.TypeNVarChar,
		"CreatedAt", wire.TypeDateTime,
	)
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	r := wire.NewRow(cols, []any{int64(42), nil, "hello", ts})

	got := Row(r)

	assert.Equal(t, value.Row{
		value.Int(42),
		value.Null{},
		value.String("hello"),
		value.String("2024-05-06 07:08:09"),
	}, got)
}

func TestCellPerWireType(t *testing.T) {
	guid := []byte{0xFF, 0x19, 0x96, 0x6F, 0x86, 0x8B, 0x11, 0xD0, 0xB4, 0x2D, 0x00, 0xC0, 0x4F, 0xC9, 0x64, 0xFF}

	tests := []struct {
		name string
		typ  string
		raw  any
		want value.Value
	}{
		{"varchar", wire.TypeVarChar, "abc", value.String("abc")},
		{"xml", wire.TypeXML, "<a/>", value.String("<a/>")},
		{"bigint", wire.TypeBigInt, int64(9007199254740993), value.Int(9007199254740993)},
		{"smallint", wire.TypeSmallInt, int64(-3), value.Int(-3)},
		{"tinyint", wire.TypeTinyInt, int64(7), value.Int(7)},
		{"real", wire.TypeReal, float64(0.5), value.Float(0.5)},
		{"float", wire.TypeFloat, 3.25, value.Float(3.25)},
		{"decimal", wire.TypeDecimal, []byte("10.75"), value.Float(10.75)},
		{"bit", wire.TypeBit, true, value.Bool(true)},
		{"datetime2 fraction", wire.TypeDateTime2, time.Date(2024, 1, 1, 0, 0, 0, 500_000_000, time.UTC), value.String("2024-01-01 00:00:00.5")},
		{"uniqueidentifier", wire.TypeUniqueIdentifier, guid, value.String("6f9619ff-8b86-d011-b42d-00c04fc964ff")},
		{"null tinyint", wire.TypeTinyInt, nil, value.Null{}},
		{"null uniqueidentifier", wire.TypeUniqueIdentifier, nil, value.Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := wire.NewRow(testutil.Columns("c", tt.typ), []any{tt.raw})
			assert.Equal(t, tt.want, Cell(r, 0))
		})
	}
}

func TestCellUnsupportedNamesColumn(t *testing.T) {
	r := wire.NewRow(testutil.Columns("Shape", "GEOGRAPHY", "Day", wire.TypeDate), []any{[]byte{1, 2}, time.Now()})

	got := Row(r)

	assert.Equal(t, value.Row{
		value.Unsupported("[Unsupported type: Shape]"),
		value.Unsupported("[Unsupported type: Day]"),
	}, got)
}

func TestCellMalformedValueFallsThrough(t *testing.T) {
	// A DECIMAL the float probe cannot parse matches no probe at all.
	r := wire.NewRow(testutil.Columns("Amount", wire.TypeDecimal), []any{[]byte("n/a")})
	assert.Equal(t, value.UnsupportedFor("Amount"), Cell(r, 0))
}
