package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/roach88/sqlplan/internal/engine"
	"github.com/roach88/sqlplan/internal/store"
)

// PreviewLength caps the SQL preview stored with a plan.
const PreviewLength = 100

// Record appends a query history entry for one execution and, when a plan
// was captured, a plan history entry linked to it. execErr is the error
// ExecuteQuery returned, if any.
func (a *App) Record(ctx context.Context, req QueryRequest, res *engine.Result, execErr error) (store.QueryHistoryEntry, error) {
	cur := a.Current()
	entry := store.QueryHistoryEntry{
		ID:             a.ids.Generate(),
		SQL:            req.SQL,
		ConnectionID:   cur.ID,
		ConnectionName: cur.Name,
		ExecutedAt:     a.clock.Now().UTC(),
		Success:        execErr == nil,
	}
	if res != nil {
		entry.DurationMs = res.DurationMs()
	}
	if execErr != nil {
		msg := execErr.Error()
		entry.Error = &msg
	}
	if err := a.store.AppendQueryHistory(ctx, entry); err != nil {
		return entry, err
	}

	if res == nil || res.PlanXML == nil {
		return entry, nil
	}
	return entry, a.store.AppendPlanHistory(ctx, store.PlanHistoryEntry{
		ID:           a.ids.Generate(),
		QueryID:      entry.ID,
		PlanXML:      *res.PlanXML,
		PlanType:     req.PlanMode.String(),
		ExecutedAt:   entry.ExecutedAt,
		ConnectionID: cur.ID,
		SQLPreview:   Preview(req.SQL),
	})
}

// Preview collapses whitespace and truncates sql to PreviewLength runes.
func Preview(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if utf8.RuneCountInString(s) <= PreviewLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:PreviewLength-3]) + "..."
}
