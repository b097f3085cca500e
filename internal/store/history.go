package store

import (
	"context"
	"time"
)

// History document keys and retention caps.
const (
	HistoryDocument = "history"
	QueryHistoryKey = "queryHistory"
	PlanHistoryKey  = "planHistory"

	MaxQueryHistory = 100
	MaxPlanHistory  = 50
)

// QueryHistoryEntry records one executed query.
type QueryHistoryEntry struct {
	ID             string    `json:"id"`
	SQL            string    `json:"sql"`
	ConnectionID   string    `json:"connectionId"`
	ConnectionName string    `json:"connectionName"`
	ExecutedAt     time.Time `json:"executedAt"`
	DurationMs     int64     `json:"durationMs"`
	Success        bool      `json:"success"`
	Error          *string   `json:"error"`
}

// PlanHistoryEntry records one captured plan.
type PlanHistoryEntry struct {
	ID           string    `json:"id"`
	QueryID      string    `json:"queryId"`
	PlanXML      string    `json:"planXml"`
	PlanType     string    `json:"planType"`
	ExecutedAt   time.Time `json:"executedAt"`
	ConnectionID string    `json:"connectionId"`
	SQLPreview   string    `json:"sqlPreview"`
}

// QueryHistory returns query history, newest first.
func (s *Store) QueryHistory(ctx context.Context) ([]QueryHistoryEntry, error) {
	var entries []QueryHistoryEntry
	if err := getList(ctx, s.Document(HistoryDocument), QueryHistoryKey, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendQueryHistory inserts e at the front, keeping at most
// MaxQueryHistory entries.
func (s *Store) AppendQueryHistory(ctx context.Context, e QueryHistoryEntry) error {
	s.update.Lock()
	defer s.update.Unlock()

	entries, err := s.QueryHistory(ctx)
	if err != nil {
		return err
	}
	return s.saveHistory(ctx, QueryHistoryKey, prepend(entries, e, MaxQueryHistory))
}

// PlanHistory returns plan history, newest first.
func (s *Store) PlanHistory(ctx context.Context) ([]PlanHistoryEntry, error) {
	var entries []PlanHistoryEntry
	if err := getList(ctx, s.Document(HistoryDocument), PlanHistoryKey, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendPlanHistory inserts e at the front, keeping at most
// MaxPlanHistory entries.
func (s *Store) AppendPlanHistory(ctx context.Context, e PlanHistoryEntry) error {
	s.update.Lock()
	defer s.update.Unlock()

	entries, err := s.PlanHistory(ctx)
	if err != nil {
		return err
	}
	return s.saveHistory(ctx, PlanHistoryKey, prepend(entries, e, MaxPlanHistory))
}

func (s *Store) saveHistory(ctx context.Context, key string, v any) error {
	doc := s.Document(HistoryDocument)
	if err := doc.Set(key, v); err != nil {
		return err
	}
	return doc.Save(ctx)
}

func prepend[T any](list []T, e T, limit int) []T {
	out := make([]T, 0, min(len(list)+1, limit))
	out = append(out, e)
	for _, v := range list {
		if len(out) == limit {
			break
		}
		out = append(out, v)
	}
	return out
}
