package config

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
	"time"

	"flow-metrics/internal/eventlog"
	"flow-metrics/internal/jira"
	"flow-metrics/internal/simulation"
	"flow-metrics/internal/stats"
	"flow-metrics/internal/workflow"

	"github.com/spf13/viper"
)

var ErrInvalidSettings = errors.New("invalid settings")

// DefaultConfigName is looked up in . and $HOME when no --config is given.
const DefaultConfigName = "flow-metrics"

// RawSettings mirrors the YAML file before validation.
type RawSettings struct {
	Workflow        []StepRaw      `mapstructure:"workflow"`
	CommittedColumn string         `mapstructure:"committed_column"`
	DoneColumn      string         `mapstructure:"done_column"`
	BackwardsPolicy string         `mapstructure:"backwards_policy"`
	ImpedimentField string         `mapstructure:"impediment_field"`
	TrimToArrival   bool           `mapstructure:"trim_to_arrival"`
	Attributes      []AttributeRaw `mapstructure:"attributes"`
	EstimationField string         `mapstructure:"estimation_field"`
	QueryAttribute  string         `mapstructure:"query_attribute"`
	Queries         []QueryRaw     `mapstructure:"queries"`
	MaxResults      int            `mapstructure:"max_results"`
	Timezone        string         `mapstructure:"timezone"`
	Workers         int            `mapstructure:"workers"`
	Outputs         OutputsRaw     `mapstructure:"outputs"`
	Forecast        ForecastRaw    `mapstructure:"forecast"`
}

type StepRaw struct {
	Name     string   `mapstructure:"name"`
	Statuses []string `mapstructure:"statuses"`
}

// AttributeRaw is a list entry rather than a map so names keep their case.
type AttributeRaw struct {
	Name        string   `mapstructure:"name"`
	Field       string   `mapstructure:"field"`
	KnownValues []string `mapstructure:"known_values"`
}

type QueryRaw struct {
	JQL   string `mapstructure:"jql"`
	Value string `mapstructure:"value"`
}

type OutputsRaw struct {
	CycleData        string    `mapstructure:"cycle_data"`
	CFD              string    `mapstructure:"cfd"`
	Throughput       string    `mapstructure:"throughput"`
	ThroughputBucket string    `mapstructure:"throughput_bucket"`
	Percentiles      string    `mapstructure:"percentiles"`
	Quantiles        []float64 `mapstructure:"quantiles"`
	Histogram        string    `mapstructure:"histogram"`
	HistogramBinDays int       `mapstructure:"histogram_bin_days"`
	Scatterplot      string    `mapstructure:"scatterplot"`
	WIP              string    `mapstructure:"wip"`
	Ageing           string    `mapstructure:"ageing"`
	NetFlow          string    `mapstructure:"net_flow"`
	NetFlowBucket    string    `mapstructure:"net_flow_bucket"`
	Stability        string    `mapstructure:"stability"`
	Forecast         string    `mapstructure:"forecast"`
	Charts           string    `mapstructure:"charts"`
	Report           string    `mapstructure:"report"`
}

type ForecastRaw struct {
	Target        int    `mapstructure:"target"`
	StartCount    *int   `mapstructure:"start_count"`
	StartDate     string `mapstructure:"start_date"`
	Period        string `mapstructure:"period"`
	SamplePeriods int    `mapstructure:"sample_periods"`
	Trials        int    `mapstructure:"trials"`
	MaxIterations int    `mapstructure:"max_iterations"`
	Seed          int64  `mapstructure:"seed"`
}

// Attribute is a custom field carried into the cycle data.
type Attribute struct {
	Name        string
	Field       string
	KnownValues []string
}

// Query is one criteria group. Value tags its records in the query attribute column.
type Query struct {
	JQL   string
	Value string
}

// Outputs holds the validated file paths. An empty path disables that output.
type Outputs struct {
	CycleData        string
	CFD              string
	Throughput       string
	ThroughputBucket stats.Bucket
	Percentiles      string
	Quantiles        []float64
	Histogram        string
	HistogramBinDays int
	Scatterplot      string
	WIP              string
	Ageing           string
	NetFlow          string
	NetFlowBucket    stats.Bucket
	Stability        string
	Forecast         string
	Charts           string
	Report           string
}

// ForecastSettings parameterises the Monte-Carlo run. A nil StartCount
// means the number of items completed in the table.
type ForecastSettings struct {
	Target        int
	StartCount    *int
	StartDate     time.Time
	Period        stats.Bucket
	SamplePeriods int
	Trials        int
	MaxIterations int
	Seed          int64
}

// Enabled reports whether a forecast target was configured.
func (f ForecastSettings) Enabled() bool { return f.Target > 0 }

// Settings is the validated, immutable analysis configuration.
type Settings struct {
	Workflow        *workflow.Workflow
	ImpedimentField string
	TrimToArrival   bool
	Attributes      []Attribute
	EstimationField string
	QueryAttribute  string
	Queries         []Query
	MaxResults      int
	Location        *time.Location
	Workers         int
	Outputs         Outputs
	Forecast        ForecastSettings
}

// AttributeNames lists the configured attribute names in file order.
func (s *Settings) AttributeNames() []string {
	names := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		names[i] = a.Name
	}
	return names
}

// KnownValues indexes the disambiguation lists by attribute name.
func (s *Settings) KnownValues() map[string][]string {
	known := make(map[string][]string, len(s.Attributes))
	for _, a := range s.Attributes {
		if len(a.KnownValues) > 0 {
			known[a.Name] = a.KnownValues
		}
	}
	return known
}

// NormalizeOptions derives the change-history normalizer options.
func (s *Settings) NormalizeOptions() eventlog.Options {
	return eventlog.Options{ImpedimentField: s.ImpedimentField, TrimToArrival: s.TrimToArrival}
}

// MapOptions derives the issue mapper options for a given Jira base URL.
func (s *Settings) MapOptions(baseURL string) jira.MapOptions {
	return jira.MapOptions{BaseURL: baseURL, Location: s.Location}
}

// NewViper returns a viper instance with defaults and env overrides applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("FLOW_METRICS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backwards_policy", string(workflow.PolicyReset))
	v.SetDefault("impediment_field", eventlog.DefaultImpedimentField)
	v.SetDefault("max_results", 100)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("outputs.throughput_bucket", string(stats.Week))
	v.SetDefault("outputs.net_flow_bucket", string(stats.Week))
	v.SetDefault("outputs.histogram_bin_days", 1)
	v.SetDefault("outputs.quantiles", stats.DefaultQuantiles)
	v.SetDefault("forecast.period", string(stats.Week))
	v.SetDefault("forecast.trials", simulation.DefaultTrials)
	v.SetDefault("forecast.max_iterations", simulation.DefaultMaxIterations)
	return v
}

// ReadSettings reads configFile (or flow-metrics.yaml from . and $HOME) into v
// and validates the result.
func ReadSettings(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		return nil, fmt.Errorf("%w: no %s.yaml found in . or $HOME", ErrInvalidSettings, DefaultConfigName)
	}
	return decode(v)
}

// ParseSettings validates YAML settings from r.
func ParseSettings(r io.Reader) (*Settings, error) {
	v := NewViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading settings: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Settings, error) {
	var raw RawSettings
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("unable to unmarshal settings: %w", err)
	}
	return raw.Validate()
}

// Validate turns raw settings into Settings. Workflow errors are fatal for the run.
func (raw RawSettings) Validate() (*Settings, error) {
	policy, err := workflow.ParsePolicy(raw.BackwardsPolicy)
	if err != nil {
		return nil, err
	}

	steps := make([]workflow.StepConfig, len(raw.Workflow))
	for i, s := range raw.Workflow {
		steps[i] = workflow.StepConfig{Name: s.Name, Statuses: s.Statuses}
	}
	wf, err := workflow.New(steps, raw.CommittedColumn, raw.DoneColumn, policy)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(raw.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidSettings, raw.Timezone, err)
	}

	s := &Settings{
		Workflow:        wf,
		ImpedimentField: raw.ImpedimentField,
		TrimToArrival:   raw.TrimToArrival,
		EstimationField: strings.TrimSpace(raw.EstimationField),
		QueryAttribute:  strings.TrimSpace(raw.QueryAttribute),
		MaxResults:      raw.MaxResults,
		Location:        loc,
		Workers:         raw.Workers,
	}
	if s.ImpedimentField == "" {
		s.ImpedimentField = eventlog.DefaultImpedimentField
	}
	if s.MaxResults <= 0 {
		s.MaxResults = 100
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}

	seen := make(map[string]bool)
	for _, a := range raw.Attributes {
		name := strings.TrimSpace(a.Name)
		if name == "" || strings.TrimSpace(a.Field) == "" {
			return nil, fmt.Errorf("%w: attribute needs both name and field", ErrInvalidSettings)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate attribute %q", ErrInvalidSettings, name)
		}
		seen[name] = true
		s.Attributes = append(s.Attributes, Attribute{Name: name, Field: strings.TrimSpace(a.Field), KnownValues: a.KnownValues})
	}

	for _, q := range raw.Queries {
		if strings.TrimSpace(q.JQL) == "" {
			return nil, fmt.Errorf("%w: query without jql", ErrInvalidSettings)
		}
		s.Queries = append(s.Queries, Query{JQL: q.JQL, Value: q.Value})
	}
	if len(s.Queries) > 1 && s.QueryAttribute == "" {
		return nil, fmt.Errorf("%w: multiple queries need a query_attribute", ErrInvalidSettings)
	}

	if s.Outputs, err = raw.Outputs.validate(); err != nil {
		return nil, err
	}
	if s.Forecast, err = raw.Forecast.validate(loc); err != nil {
		return nil, err
	}
	return s, nil
}

func (o OutputsRaw) validate() (Outputs, error) {
	out := Outputs{
		CycleData:        o.CycleData,
		CFD:              o.CFD,
		Throughput:       o.Throughput,
		Percentiles:      o.Percentiles,
		Quantiles:        slices.Clone(o.Quantiles),
		Histogram:        o.Histogram,
		HistogramBinDays: o.HistogramBinDays,
		Scatterplot:      o.Scatterplot,
		WIP:              o.WIP,
		Ageing:           o.Ageing,
		NetFlow:          o.NetFlow,
		Stability:        o.Stability,
		Forecast:         o.Forecast,
		Charts:           o.Charts,
		Report:           o.Report,
	}

	var err error
	if out.ThroughputBucket, err = stats.ParseBucket(o.ThroughputBucket); err != nil {
		return out, fmt.Errorf("%w: throughput_bucket: %v", ErrInvalidSettings, err)
	}
	if out.NetFlowBucket, err = stats.ParseBucket(o.NetFlowBucket); err != nil {
		return out, fmt.Errorf("%w: net_flow_bucket: %v", ErrInvalidSettings, err)
	}
	for _, q := range out.Quantiles {
		if q < 0 || q > 1 {
			return out, fmt.Errorf("%w: quantile %v outside [0, 1]", ErrInvalidSettings, q)
		}
	}
	if len(out.Quantiles) == 0 {
		out.Quantiles = stats.DefaultQuantiles
	}
	if out.HistogramBinDays <= 0 {
		out.HistogramBinDays = 1
	}
	return out, nil
}

func (f ForecastRaw) validate(loc *time.Location) (ForecastSettings, error) {
	out := ForecastSettings{
		Target:        f.Target,
		StartCount:    f.StartCount,
		SamplePeriods: f.SamplePeriods,
		Trials:        f.Trials,
		MaxIterations: f.MaxIterations,
		Seed:          f.Seed,
	}
	if f.Target < 0 || (f.StartCount != nil && *f.StartCount < 0) {
		return out, fmt.Errorf("%w: forecast counts must be non-negative", ErrInvalidSettings)
	}

	period, err := stats.ParseBucket(f.Period)
	if err != nil {
		return out, fmt.Errorf("%w: forecast period: %v", ErrInvalidSettings, err)
	}
	out.Period = period

	if f.StartDate != "" {
		t, err := time.ParseInLocation("2006-01-02", f.StartDate, loc)
		if err != nil {
			return out, fmt.Errorf("%w: forecast start_date %q: %v", ErrInvalidSettings, f.StartDate, err)
		}
		out.StartDate = t.UTC()
	}
	return out, nil
}
