package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flow-metrics/internal/cycletime"
)

const (
	TimestampFormat = "2006-01-02 15:04:05"
	DateFormat      = "2006-01-02"
)

// Values returns row i in column order with typed values; nil marks a missing value.
// Durations are reported in fractional days.
func (t *Table) Values(i int) []any {
	r := t.Records[i]
	row := make([]any, 0, len(t.Columns))
	row = append(row, r.Key, r.URL, r.IssueType, r.Summary, r.Status, r.Resolution, floatOrNil(r.EstimationDays))
	for _, a := range t.Attributes {
		row = append(row, r.Attributes[a])
	}
	if t.QueryAttribute != "" {
		row = append(row, r.QueryValue)
	}
	row = append(row, daysOrNil(r.CycleTime), timeOrNil(r.CompletedTimestamp), r.BlockedDays, FormatImpediments(r.Impediments))
	for _, s := range t.Steps {
		st, _ := r.State(s)
		row = append(row, timeOrNil(st.Entry), daysOrNil(st.Duration))
	}
	return row
}

// Strings returns row i formatted for text outputs. Missing values are empty.
func (t *Table) Strings(i int) []string {
	values := t.Values(i)
	out := make([]string, len(values))
	for j, v := range values {
		out[j] = formatValue(v)
	}
	return out
}

// FormatImpediments renders intervals as "start..end@status", separated by "; ".
// An open interval has no end.
func FormatImpediments(ivs []cycletime.ImpedimentInterval) string {
	parts := make([]string, 0, len(ivs))
	for _, iv := range ivs {
		end := ""
		if iv.End != nil {
			end = iv.End.Format(DateFormat)
		}
		parts = append(parts, fmt.Sprintf("%s..%s@%s", iv.Start.Format(DateFormat), end, iv.Status))
	}
	return strings.Join(parts, "; ")
}

// Days converts a duration to fractional days.
func Days(d time.Duration) float64 {
	return d.Hours() / 24
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case time.Time:
		return x.Format(TimestampFormat)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func daysOrNil(d *time.Duration) any {
	if d == nil {
		return nil
	}
	return Days(*d)
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
