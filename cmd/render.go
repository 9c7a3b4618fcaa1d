package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/scrylang/scry/internal/engine"
	"github.com/scrylang/scry/internal/query"
)

// renderResult writes a human-readable rendering of a query result.
func renderResult(w io.Writer, res *engine.Result) {
	switch res.Kind {
	case query.KindPath:
		renderPath(w, res)
	case query.KindAnalyze:
		renderCycles(w, res)
	case query.KindHistory:
		renderHistory(w, res)
	case query.KindBlame:
		renderBlame(w, res)
	default:
		renderTable(w, res)
	}
	fmt.Fprintf(w, "\n%d result(s) in %s\n", res.RowCount, res.ExecutionTime.Round(10*time.Microsecond))
}

func renderTable(w io.Writer, res *engine.Result) {
	if len(res.Rows) == 0 {
		fmt.Fprintln(w, "No results")
		return
	}

	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(res.Rows))
	for r, row := range res.Rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			s := cellString(v)
			cells[r][i] = s
			if i < len(widths) && len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	header := color.New(color.Bold)
	for i, c := range res.Columns {
		header.Fprintf(w, "%-*s", widths[i], c)
		if i < len(res.Columns)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
	for i := range res.Columns {
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
		if i < len(res.Columns)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
	for _, row := range cells {
		for i, s := range row {
			fmt.Fprintf(w, "%-*s", widths[i], s)
			if i < len(row)-1 {
				fmt.Fprint(w, "  ")
			}
		}
		fmt.Fprintln(w)
	}
}

func renderPath(w io.Writer, res *engine.Result) {
	if res.Path == nil || !res.Path.Found {
		fmt.Fprintln(w, "No path found within the depth bound")
		return
	}
	fmt.Fprintf(w, "Path (%d hops):\n", len(res.Path.Path)-1)
	for i, id := range res.Path.Path {
		if i == 0 {
			fmt.Fprintf(w, "  %s\n", id)
		} else {
			fmt.Fprintf(w, "  -> %s\n", id)
		}
	}
}

func renderCycles(w io.Writer, res *engine.Result) {
	if len(res.Cycles) == 0 {
		color.New(color.FgGreen).Fprintln(w, "No circular dependencies")
		return
	}
	color.New(color.FgYellow).Fprintf(w, "Found %d cycle(s):\n", len(res.Cycles))
	for i, cycle := range res.Cycles {
		fmt.Fprintf(w, "  %d. %s -> %s\n", i+1, strings.Join(cycle, " -> "), cycle[0])
	}
}

func renderHistory(w io.Writer, res *engine.Result) {
	if len(res.History) == 0 {
		fmt.Fprintln(w, "No history")
		return
	}
	for _, entry := range res.History {
		line := fmt.Sprintf("%s  %-9s %s",
			entry.Snapshot.Time.Format("2006-01-02 15:04"),
			entry.Record.Kind,
			entry.Snapshot.ID)
		if entry.Snapshot.CommitRef != "" {
			line += " (" + entry.Snapshot.CommitRef + ")"
		}
		if len(entry.Record.Attrs) > 0 {
			line += "  [" + strings.Join(entry.Record.Attrs, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
}

func renderBlame(w io.Writer, res *engine.Result) {
	if len(res.Blame) == 0 {
		fmt.Fprintln(w, "No blame information")
		return
	}
	attrs := make([]string, 0, len(res.Blame))
	for attr := range res.Blame {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		rec := res.Blame[attr]
		fmt.Fprintf(w, "%-10s %s (%s)\n", attr, rec.Snapshot, rec.Kind)
	}
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
