// Package report renders a self-contained HTML summary of a run.
package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"flow-metrics/internal/simulation"
	"flow-metrics/internal/stats"
	"flow-metrics/internal/table"
	"flow-metrics/internal/visuals"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
)

// MaxRows caps the cycle data rows embedded in the page.
const MaxRows = 500

//go:embed report.html.tmpl
var pageTemplate string

//go:embed report.js
var pageScript string

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": func(v float64) float64 { return v * 100 },
}).Parse(pageTemplate))

// Chart is one Mermaid block, without its markdown fence.
type Chart struct {
	Title string
	Body  string
}

// Data is everything the page shows.
type Data struct {
	Title       string
	GeneratedAt time.Time
	Records     int
	Completed   int
	Percentiles []stats.PercentileValue
	Efficiency  *stats.FlowEfficiency
	Forecast    *simulation.ForecastResult
	Charts      []Chart
	Warnings    []string
	Columns     []string
	Rows        [][]string
	Truncated   bool

	Script template.JS
}

// AddChart appends a fenced Mermaid chart; empty charts are dropped.
func (d *Data) AddChart(title, fenced string) {
	if fenced == "" {
		return
	}
	d.Charts = append(d.Charts, Chart{Title: title, Body: visuals.Body(fenced)})
}

// SetTable embeds up to MaxRows rows of the cycle data.
func (d *Data) SetTable(t *table.Table) {
	d.Records = t.Len()
	d.Completed = len(t.Completed())
	d.Columns = t.Columns
	n := min(t.Len(), MaxRows)
	d.Truncated = n < t.Len()
	d.Rows = make([][]string, n)
	for i := 0; i < n; i++ {
		d.Rows[i] = t.Strings(i)
	}
}

// Minify shrinks the page script with esbuild.
func Minify(js string) (string, error) {
	result := api.Transform(js, api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("minify report script: %s", result.Errors[0].Text)
	}
	return string(result.Code), nil
}

// Render writes the page.
func Render(w io.Writer, data Data) error {
	if data.Title == "" {
		data.Title = "Flow metrics"
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}
	script, err := Minify(pageScript)
	if err != nil {
		return err
	}
	data.Script = template.JS(script)
	return page.Execute(w, data)
}

// WriteFile renders the page to path, creating parent directories.
func WriteFile(path string, data Data) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := Render(f, data); err != nil {
		f.Close()
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("charts", len(data.Charts)).Msg("Report written")
	return nil
}

// Open shows the report in the default browser.
func Open(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return browser.OpenFile(abs)
}
