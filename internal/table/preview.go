package table

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Preview prints the first limit rows in a compact console table.
func Preview(w io.Writer, t *Table, limit int) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Key", "Type", "Status", "Cycle (d)", "Blocked (d)", "Completed"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	n := t.Len()
	if limit > 0 && limit < n {
		n = limit
	}

	data := make([][]string, 0, n)
	for _, r := range t.Records[:n] {
		cycle := ""
		if days, ok := r.CycleTimeDays(); ok {
			cycle = strconv.FormatFloat(days, 'f', 1, 64)
		}
		completed := ""
		if r.CompletedTimestamp != nil {
			completed = r.CompletedTimestamp.Format(DateFormat)
		}
		data = append(data, []string{r.Key, r.IssueType, r.Status, cycle, strconv.Itoa(r.BlockedDays), completed})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if n < t.Len() {
		fmt.Fprintf(w, "Showing %d of %d rows\n", n, t.Len())
	}
	return nil
}
