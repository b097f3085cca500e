package value

import (
	"encoding/json"
	"fmt"
	"math"
)

// Value is a sealed interface over the portable cell kinds.
// Only Null, String, Int, Float, Bool and Unsupported implement it.
type Value interface {
	portable() // Sealed - only these types implement it
}

// Row is one decoded result row, in server column order.
type Row []Value

// Null represents a SQL NULL.
type Null struct{}

func (Null) portable() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text cell, or any cell projected to text (timestamps, UUIDs).
type String string

func (String) portable() {}

// Int is an integer cell of any width.
type Int int64

func (Int) portable() {}

// Float is a floating point or decimal cell.
type Float float64

func (Float) portable() {}

// MarshalJSON writes NaN and infinities as null, which JSON cannot carry.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Bool is a bit cell.
type Bool bool

func (Bool) portable() {}

// Unsupported is the placeholder for a cell no probe could read.
// It marshals as a plain string.
type Unsupported string

func (Unsupported) portable() {}

// UnsupportedFor returns the placeholder naming the given column.
func UnsupportedFor(column string) Unsupported {
	return Unsupported(fmt.Sprintf("[Unsupported type: %s]", column))
}

// Interface returns the plain Go value behind v, nil for Null.
func Interface(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Unsupported:
		return string(val)
	default:
		return nil
	}
}

// Format renders v for human-readable output. Null renders as "NULL".
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "NULL"
	case String:
		return string(val)
	case Unsupported:
		return string(val)
	default:
		return fmt.Sprint(Interface(val))
	}
}
