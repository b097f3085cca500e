package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PlanMode selects whether and how an execution plan is captured.
type PlanMode int

const (
	// PlanNone executes normally and returns rows.
	PlanNone PlanMode = iota
	// PlanEstimated compiles only and returns the estimated plan; no rows.
	PlanEstimated
	// PlanActual executes, counts rows and returns the runtime plan.
	PlanActual
)

// PlanModes lists every mode in declaration order.
var PlanModes = []PlanMode{PlanNone, PlanEstimated, PlanActual}

func (m PlanMode) String() string {
	switch m {
	case PlanNone:
		return "None"
	case PlanEstimated:
		return "Estimated"
	case PlanActual:
		return "Actual"
	default:
		return fmt.Sprintf("PlanMode(%d)", int(m))
	}
}

// ParsePlanMode parses a mode name, case-insensitively. The empty string
// is PlanNone.
func ParsePlanMode(s string) (PlanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PlanNone, nil
	case "estimated":
		return PlanEstimated, nil
	case "actual":
		return PlanActual, nil
	}
	return PlanNone, fmt.Errorf("invalid plan mode %q: must be one of none, estimated, actual", s)
}

// MarshalJSON implements json.Marshaler.
func (m PlanMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *PlanMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	mode, err := ParsePlanMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
