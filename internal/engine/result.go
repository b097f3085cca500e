package engine

import (
	"encoding/json"
	"time"

	"github.com/roach88/sqlplan/internal/value"
)

// Result is the normalized outcome of one Execute call.
//
// INVARIANTS:
//   - every row has len(Columns) values
//   - PlanEstimated: no rows, RowsAffected == 0
//   - PlanActual: rows are counted in RowsAffected but never materialized
type Result struct {
	Columns      []string
	Rows         []value.Row
	Messages     []string
	PlanXML      *string
	Duration     time.Duration
	RowsAffected int64
}

func newResult() *Result {
	return &Result{
		Columns:  []string{},
		Rows:     []value.Row{},
		Messages: []string{},
	}
}

// DurationMs returns the elapsed time in whole milliseconds.
func (r *Result) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

type resultJSON struct {
	Columns      []string    `json:"columns"`
	Rows         []value.Row `json:"rows"`
	Messages     []string    `json:"messages"`
	PlanXML      *string     `json:"planXml"`
	DurationMs   int64       `json:"durationMs"`
	RowsAffected int64       `json:"rowsAffected"`
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Columns:      r.Columns,
		Rows:         r.Rows,
		Messages:     r.Messages,
		PlanXML:      r.PlanXML,
		DurationMs:   r.DurationMs(),
		RowsAffected: r.RowsAffected,
	})
}
