// Package decode converts wire rows into portable values.
//
// The wire adapter only offers type-directed accessors, so each cell is
// probed in ProbeOrder. The first probe that does not report a type
// mismatch decides the cell. Output stability depends on that order.
package decode

import (
	"github.com/roach88/sqlplan/internal/value"
	"github.com/roach88/sqlplan/internal/wire"
)

// TimeLayout is how date/time cells are rendered as strings.
const TimeLayout = "2006-01-02 15:04:05.999999999"

// Probe attempts to read cell i of a row as one wire type.
// err != nil means "not this type, try the next probe".
// ok == false with a nil error means the cell is NULL.
type Probe struct {
	Name string
	Read func(r *wire.Row, i int) (v value.Value, ok bool, err error)
}

// ProbeOrder is the fixed tie-break order for ambiguous cells.
var ProbeOrder = []Probe{
	{"text", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.Text(i)
		return value.String(v), ok, err
	}},
	{"int32", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.Int32(i)
		return value.Int(v), ok, err
	}},
	{"int64", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.Int64(i)
		return value.Int(v), ok, err
	}},
	{"int16", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.Int16(i)
		return value.Int(v), ok, err
	}},
	{"float32", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.Float32(i)
		return value.Float(v), ok, err
	}},
	{"float64", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.Float64(i)
		return value.Float(v), ok, err
	}},
	{"uint8", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.Uint8(i)
		return value.Int(v), ok, err
	}},
	{"bool", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.Bool(i)
		return value.Bool(v), ok, err
	}},
	{"datetime", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.Time(i)
		return value.String(v.Format(TimeLayout)), ok, err
	}},
	{"uuid", func(r *wire.Row, i int) (value.Value, bool, error) {
		v, ok, err := r.UUID(i)
		return value.String(v.String()), ok, err
	}},
}

// ProbeNames returns the probe names in order.
func ProbeNames() []string {
	names := make([]string, len(ProbeOrder))
	for i, p := range ProbeOrder {
		names[i] = p.Name
	}
	return names
}

// Cell decodes a single cell.
func Cell(r *wire.Row, i int) value.Value {
	for _, p := range ProbeOrder {
		v, ok, err := p.Read(r, i)
		if err != nil {
			continue
		}
		if !ok {
			return value.Null{}
		}
		return v
	}
	name := ""
	if cols := r.Columns(); i < len(cols) {
		name = cols[i].Name
	}
	return value.UnsupportedFor(name)
}

// Row decodes every cell of r in column order.
func Row(r *wire.Row) value.Row {
	out := make(value.Row, r.Len())
	for i := range out {
		out[i] = Cell(r, i)
	}
	return out
}
