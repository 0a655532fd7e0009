package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"flow-metrics/internal/cycletime"
	"flow-metrics/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow(t *testing.T) *workflow.Workflow {
	t.Helper()
	wf, err := workflow.New([]workflow.StepConfig{
		{Name: "Backlog"}, {Name: "Committed"}, {Name: "Build"}, {Name: "Done"},
	}, "Committed", "Done", workflow.PolicyReset)
	require.NoError(t, err)
	return wf
}

func ts(day int) *time.Time {
	v := time.Date(2024, 2, day, 9, 0, 0, 0, time.UTC)
	return &v
}

func dur(days int) *time.Duration {
	v := time.Duration(days) * 24 * time.Hour
	return &v
}

func record(key string) cycletime.Record {
	return cycletime.Record{
		Key:                key,
		IssueType:          "Story",
		Status:             "Done",
		Attributes:         map[string]string{"Team": "Core", "Area": "API"},
		CycleTime:          dur(3),
		CompletedTimestamp: ts(5),
		BlockedDays:        1,
		Impediments: []cycletime.ImpedimentInterval{
			{Start: *ts(3), End: ts(4), Status: "Build", Flag: "Impediment"},
		},
		States: []cycletime.StateEntry{
			{Step: "Backlog", Entry: ts(1), Duration: dur(1)},
			{Step: "Committed", Entry: ts(2), Duration: dur(1)},
			{Step: "Build", Entry: ts(3), Duration: dur(2)},
			{Step: "Done", Entry: ts(5), Duration: dur(0)},
		},
	}
}

func TestAssemble_ColumnContract(t *testing.T) {
	tbl := Assemble(testWorkflow(t), []string{"Team", "Area"}, "Squad", []Group{
		{QueryValue: "Red", Records: []cycletime.Record{record("A-1")}},
		{QueryValue: "Blue", Records: []cycletime.Record{record("A-2"), record("A-3")}},
	})

	want := []string{
		"key", "url", "issue_type", "summary", "status", "resolution", "estimation_days",
		"Area", "Team", "Squad",
		"cycle_time", "completed_timestamp", "blocked_days", "impediments",
		"Backlog", "Backlog duration", "Committed", "Committed duration",
		"Build", "Build duration", "Done", "Done duration",
	}
	assert.Equal(t, want, tbl.Columns)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, "Red", tbl.Records[0].QueryValue)
	assert.Equal(t, "Blue", tbl.Attribute(2, "Squad"))
	assert.Equal(t, "Core", tbl.Attribute(1, "Team"))

	row := tbl.Strings(0)
	require.Len(t, row, len(want))
	assert.Equal(t, "A-1", row[0])
	assert.Equal(t, "3.00", row[10])
	assert.Equal(t, "2024-02-05 09:00:00", row[11])
	assert.Equal(t, "2024-02-03..2024-02-04@Build", row[13])
}

func TestAssemble_Empty(t *testing.T) {
	tbl := Assemble(testWorkflow(t), nil, "", nil)

	assert.Zero(t, tbl.Len())
	assert.Len(t, tbl.Columns, 7+4+8)
	assert.Empty(t, tbl.Completed())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
	assert.Equal(t, tbl.Columns, rows[0])
}

func TestAssemble_MissingValuesAreBlank(t *testing.T) {
	rec := cycletime.Record{Key: "A-9", States: []cycletime.StateEntry{{Step: "Backlog", Entry: ts(1), Duration: dur(2)}, {Step: "Committed"}, {Step: "Build"}, {Step: "Done"}}}
	tbl := Assemble(testWorkflow(t), nil, "", []Group{{Records: []cycletime.Record{rec}}})

	values := tbl.Values(0)
	assert.Nil(t, values[6], "estimation")
	assert.Nil(t, values[7], "cycle time")
	assert.Nil(t, values[8], "completed")
	assert.Equal(t, "", tbl.Strings(0)[7])
	assert.Nil(t, tbl.Entry(0, "Build"))
	assert.Equal(t, *ts(1), *tbl.Entry(0, "Backlog"))
}

func TestWriteJSON_KeepsColumnOrder(t *testing.T) {
	tbl := Assemble(testWorkflow(t), []string{"Team"}, "", []Group{{Records: []cycletime.Record{record("A-1")}}})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, tbl))

	var decoded struct {
		Columns []string `json:"columns"`
		Data    [][]any  `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, tbl.Columns, decoded.Columns)
	require.Len(t, decoded.Data, 1)
	assert.Equal(t, "A-1", decoded.Data[0][0])
	assert.InDelta(t, 3.0, decoded.Data[0][8], 1e-9)
}

func TestWriteFile_ByExtension(t *testing.T) {
	tbl := Assemble(testWorkflow(t), []string{"Team"}, "Squad", []Group{{QueryValue: "Red", Records: []cycletime.Record{record("A-1"), record("A-2")}}})
	dir := t.TempDir()

	for _, name := range []string{"out.csv", "out.json", "nested/out.parquet"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, tbl), name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "nested/out.parquet"))
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(raw[:4]))

	assert.Error(t, WriteFile(filepath.Join(dir, "out.xlsx"), tbl))
}

func TestParquetRows(t *testing.T) {
	tbl := Assemble(testWorkflow(t), []string{"Team"}, "", []Group{{Records: []cycletime.Record{record("A-1")}}})

	rows := ParquetRows(tbl)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{"Team": "Core"}, rows[0].Attributes)
	assert.Nil(t, rows[0].QueryValue)
	require.Len(t, rows[0].States, 4)
	assert.Equal(t, "Build", rows[0].States[2].Step)
	assert.InDelta(t, 2.0, *rows[0].States[2].DurationDays, 1e-9)
	require.Len(t, rows[0].Impediments, 1)
}

func TestPreview(t *testing.T) {
	tbl := Assemble(testWorkflow(t), nil, "", []Group{{Records: []cycletime.Record{record("A-1"), record("A-2"), record("A-3")}}})

	var buf bytes.Buffer
	require.NoError(t, Preview(&buf, tbl, 2))
	out := buf.String()
	assert.Contains(t, out, "A-1")
	assert.NotContains(t, out, "A-3")
	assert.Contains(t, out, "Showing 2 of 3 rows")
}
