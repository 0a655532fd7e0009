package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// series is a small tabular output: CSV by default, JSON for .json paths.
type series struct {
	header []string
	rows   [][]string
	// value is marshalled instead of rows for JSON output.
	value any
}

func writeSeries(path string, s series) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".csv" && ext != "" {
		return fmt.Errorf("unsupported output extension %q (use .csv or .json)", filepath.Ext(path))
	}
	return writeFile(path, func(f *os.File) error {
		if ext == ".json" {
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			return enc.Encode(s.value)
		}
		w := csv.NewWriter(f)
		if err := w.Write(s.header); err != nil {
			return err
		}
		if err := w.WriteAll(s.rows); err != nil {
			return err
		}
		return w.Error()
	})
}

func writeText(path, text string) error {
	return writeFile(path, func(f *os.File) error {
		_, err := f.WriteString(text)
		return err
	})
}

func writeFile(path string, write func(*os.File) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
