package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/sqlplan/internal/app"
	"github.com/roach88/sqlplan/internal/engine"
	"github.com/roach88/sqlplan/internal/store"
	"github.com/roach88/sqlplan/internal/value"
)

const timeLayout = "2006-01-02 15:04:05"

var cellReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeRow(w io.Writer, cells ...string) {
	for i, c := range cells {
		cells[i] = cellReplacer.Replace(c)
	}
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

// renderResult prints a result grid followed by its messages.
func renderResult(w io.Writer, res *engine.Result, showPlan bool) {
	if len(res.Columns) > 0 {
		tw := newTable(w)
		writeRow(tw, append([]string(nil), res.Columns...)...)
		rule := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			rule[i] = strings.Repeat("-", max(len(c), 1))
		}
		writeRow(tw, rule...)
		for _, row := range res.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = value.Format(v)
			}
			writeRow(tw, cells...)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	for _, msg := range res.Messages {
		fmt.Fprintln(w, msg)
	}

	if res.PlanXML != nil {
		if showPlan {
			fmt.Fprintln(w)
			fmt.Fprintln(w, *res.PlanXML)
		} else {
			fmt.Fprintf(w, "Plan captured (%d bytes). Use --show-plan to print it.\n", len(*res.PlanXML))
		}
	}
}

func renderProfiles(w io.Writer, profiles []store.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No saved profiles.")
		return
	}
	tw := newTable(w)
	writeRow(tw, "ID", "NAME", "HOST", "PORT", "DATABASE", "USER", "LAST USED")
	for _, p := range profiles {
		writeRow(tw, p.ID, p.Name, p.Host, fmt.Sprint(p.Port), p.Database, p.Username, formatOptionalTime(p.LastUsed))
	}
	tw.Flush()
}

func renderQueryHistory(w io.Writer, entries []store.QueryHistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No query history.")
		return
	}
	tw := newTable(w)
	writeRow(tw, "EXECUTED", "STATUS", "DURATION", "CONNECTION", "SQL")
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		writeRow(tw, e.ExecutedAt.Local().Format(timeLayout), status, fmt.Sprintf("%dms", e.DurationMs), e.ConnectionName, app.Preview(e.SQL))
	}
	tw.Flush()
}

func renderPlanHistory(w io.Writer, entries []store.PlanHistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No plan history.")
		return
	}
	tw := newTable(w)
	writeRow(tw, "EXECUTED", "TYPE", "QUERY", "SQL")
	for _, e := range entries {
		writeRow(tw, e.ExecutedAt.Local().Format(timeLayout), e.PlanType, e.QueryID, e.SQLPreview)
	}
	tw.Flush()
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(timeLayout)
}
