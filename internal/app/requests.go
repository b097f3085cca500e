package app

import (
	"time"

	"github.com/roach88/sqlplan/internal/engine"
)

// ConnectRequest describes an ad hoc connection. A zero Port means the
// configured default port.
type ConnectRequest struct {
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SaveConnectionRequest describes a profile to save. The password is
// encrypted before it is stored.
type SaveConnectionRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// QueryRequest is one query execution. A zero Timeout means the
// configured query timeout.
type QueryRequest struct {
	SQL      string          `json:"sql"`
	PlanMode engine.PlanMode `json:"planType"`
	Timeout  time.Duration   `json:"-"`
}

// Connection identifies the live session for history records.
type Connection struct {
	// ID is the saved profile id, empty for ad hoc connections.
	ID   string `json:"id"`
	Name string `json:"name"`
}
