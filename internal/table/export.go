package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Format is an export format selected by file extension.
type Format string

const (
	CSV     Format = "csv"
	JSON    Format = "json"
	Parquet Format = "parquet"
)

// FormatFor picks the export format from a file name.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".json":
		return JSON, nil
	case ".parquet":
		return Parquet, nil
	default:
		return "", fmt.Errorf("unsupported output format for %q (use .csv, .json or .parquet)", path)
	}
}

// WriteFile exports the table to path in the format implied by its extension.
func WriteFile(path string, t *Table) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	return writeWithFile(path, func(w io.Writer) error {
		switch format {
		case CSV:
			return WriteCSV(w, t)
		case JSON:
			return WriteJSON(w, t)
		default:
			return WriteParquet(w, t)
		}
	})
}

// writeWithFile creates path, runs the writer and closes the file.
func writeWithFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteCSV writes the header row followed by one row per record.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for i := range t.Records {
		if err := cw.Write(t.Strings(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonTable struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// WriteJSON writes {"columns": [...], "data": [[...], ...]} so column order survives.
func WriteJSON(w io.Writer, t *Table) error {
	out := jsonTable{Columns: t.Columns, Data: make([][]any, 0, t.Len())}
	for i := range t.Records {
		out.Data = append(out.Data, t.Values(i))
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ParquetState is the history of one workflow state in a ParquetRow.
type ParquetState struct {
	Step         string     `parquet:"step,snappy"`
	Entry        *time.Time `parquet:"entry,optional,snappy"`
	DurationDays *float64   `parquet:"duration_days,optional,snappy"`
}

// ParquetImpediment mirrors cycletime.ImpedimentInterval.
type ParquetImpediment struct {
	Start  time.Time  `parquet:"start,snappy"`
	End    *time.Time `parquet:"end,optional,snappy"`
	Status string     `parquet:"status,snappy"`
	Flag   string     `parquet:"flag,snappy"`
}

// ParquetRow is the parquet schema of one cycle-data row. Custom attributes
// are stored as a map since their names come from configuration.
type ParquetRow struct {
	Key                string              `parquet:"key,snappy"`
	URL                string              `parquet:"url,snappy"`
	IssueType          string              `parquet:"issue_type,snappy"`
	Summary            string              `parquet:"summary,snappy"`
	Status             string              `parquet:"status,snappy"`
	Resolution         string              `parquet:"resolution,snappy"`
	EstimationDays     *float64            `parquet:"estimation_days,optional,snappy"`
	Attributes         map[string]string   `parquet:"attributes"`
	QueryValue         *string             `parquet:"query_value,optional,snappy"`
	CycleTimeDays      *float64            `parquet:"cycle_time,optional,snappy"`
	CompletedTimestamp *time.Time          `parquet:"completed_timestamp,optional,snappy"`
	BlockedDays        int32               `parquet:"blocked_days,snappy"`
	Impediments        []ParquetImpediment `parquet:"impediments"`
	States             []ParquetState      `parquet:"states"`
}

// ParquetRows converts the table to its parquet schema.
func ParquetRows(t *Table) []ParquetRow {
	rows := make([]ParquetRow, 0, t.Len())
	for _, r := range t.Records {
		row := ParquetRow{
			Key:                r.Key,
			URL:                r.URL,
			IssueType:          r.IssueType,
			Summary:            r.Summary,
			Status:             r.Status,
			Resolution:         r.Resolution,
			EstimationDays:     r.EstimationDays,
			Attributes:         make(map[string]string, len(t.Attributes)),
			CompletedTimestamp: r.CompletedTimestamp,
			BlockedDays:        int32(r.BlockedDays),
		}
		for _, a := range t.Attributes {
			row.Attributes[a] = r.Attributes[a]
		}
		if t.QueryAttribute != "" {
			v := r.QueryValue
			row.QueryValue = &v
		}
		if r.CycleTime != nil {
			d := Days(*r.CycleTime)
			row.CycleTimeDays = &d
		}
		for _, iv := range r.Impediments {
			row.Impediments = append(row.Impediments, ParquetImpediment{Start: iv.Start, End: iv.End, Status: iv.Status, Flag: iv.Flag})
		}
		for _, s := range t.Steps {
			st, _ := r.State(s)
			ps := ParquetState{Step: s, Entry: st.Entry}
			if st.Duration != nil {
				d := Days(*st.Duration)
				ps.DurationDays = &d
			}
			row.States = append(row.States, ps)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteParquet writes the table using the ParquetRow schema.
func WriteParquet(w io.Writer, t *Table) error {
	writer := parquet.NewGenericWriter[ParquetRow](w)
	if _, err := writer.Write(ParquetRows(t)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
