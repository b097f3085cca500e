// Package value defines the portable cell values returned at the query
// boundary.
//
// A Value is one of Null, String, Int, Float, Bool or Unsupported. There is
// no date/time, binary or UUID variant: those are projected to String by
// the decoder before they reach this package.
package value
