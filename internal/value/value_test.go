package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("x")
	var _ Value = Int(1)
	var _ Value = Float(1.5)
	var _ Value = Bool(true)
	var _ Value = Unsupported("[Unsupported type: Shape]")
}

func TestRowMarshalJSON(t *testing.T) {
	row := Row{Int(42), Null{}, String("hello"), Float(2.5), Bool(false), UnsupportedFor("Shape")}

	data, err := json.Marshal(row)
	require.NoError(t, err)

	assert.JSONEq(t, `[42,null,"hello",2.5,false,"[Unsupported type: Shape]"]`, string(data))
}

func TestFloatNonFiniteMarshalsNull(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		data, err := json.Marshal(Float(f))
		require.NoError(t, err)
		assert.Equal(t, "null", string(data))
	}
}

func TestInterface(t *testing.T) {
	tests := []struct {
		in   Value
		want any
	}{
		{Null{}, nil},
		{nil, nil},
		{String("a"), "a"},
		{Int(-7), int64(-7)},
		{Float(0.25), 0.25},
		{Bool(true), true},
		{Unsupported("u"), "u"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Interface(tt.in))
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "NULL", Format(Null{}))
	assert.Equal(t, "42", Format(Int(42)))
	assert.Equal(t, "true", Format(Bool(true)))
	assert.Equal(t, "hello", Format(String("hello")))
}
