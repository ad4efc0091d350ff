package engine

import "errors"

// ============================================================================
// ENGINE TYPES — QuerySpec in, Result out
// ============================================================================
// The translator (model-backed or heuristic) produces a QuerySpec; Execute
// runs it against any RecordView and returns a render-ready Result.
// ============================================================================

var (
	// ErrUnknownMeasure is returned when a QuerySpec aggregates a measure
	// the view does not have.
	ErrUnknownMeasure = errors.New("unknown measure")
	// ErrUnknownDimension is returned for groupBy keys the view does not have.
	ErrUnknownDimension = errors.New("unknown dimension")
)

// RecordCountMeasure is a synthetic measure worth 1 per row. Views are not
// required to list it in MeasureKeys.
const RecordCountMeasure = "record_count"

// Aggregations understood by the engine.
var Aggregations = []string{"sum", "count", "avg", "median", "max", "min", "list", "growth", "ratio", "none"}

// IsAggregation reports whether agg is one of Aggregations.
func IsAggregation(agg string) bool {
	for _, a := range Aggregations {
		if a == agg {
			return true
		}
	}
	return false
}

// ============================================================================
// QUERYSPEC — contract between translator and engine
// ============================================================================

// QuerySpec defines what the engine should compute.
type QuerySpec struct {
	Intent         string   `json:"intent"`                   // "text", "table", "chart"
	Filters        Filters  `json:"filters"`                  // Which records to include
	CompareFilters *Filters `json:"compareFilters,omitempty"` // For ratio: numerator filters
	Aggregation    string   `json:"aggregation"`              // see Aggregations
	Measure        string   `json:"measure"`                  // Which measure to aggregate (empty → default)
	GroupBy        []string `json:"groupBy"`                  // Dimension keys: ["region"], ["region", "product"]
	SortBy         string   `json:"sortBy"`                   // "value_desc", "value_asc", "date_asc", "date_desc", "alpha_asc"
	Limit          int      `json:"limit"`                    // 0 = all
	Visualize      string   `json:"visualize"`                // "bar", "line", "pie", "stacked_bar", "area", "scatter", "table", "text"
	Title          string   `json:"title"`                    // Chart/table title
	Reply          string   `json:"reply"`                    // Template: "Total revenue was {total} across {count} rows."
	Confidence     float64  `json:"confidence"`               // 0.0–1.0
}

// Filters define which records to include.
// Keys are dimension names. Values are allowed values.
// OR within a dimension, AND across dimensions. Empty = all.
type Filters struct {
	Dimensions map[string][]string `json:"dimensions"`
}

// HasFilter returns true if a specific dimension filter is set.
func (f Filters) HasFilter(dimension string) bool {
	if f.Dimensions == nil {
		return false
	}
	vals, ok := f.Dimensions[dimension]
	return ok && len(vals) > 0
}

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// ============================================================================
// RESULT — render-ready output
// ============================================================================

// Result is the engine's render-ready output.
type Result struct {
	Success bool   `json:"success"`
	Type    string `json:"type"` // "chart", "table", "text"
	Reply   string `json:"reply"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`

	// Exactly one of these is populated based on Type.
	ChartConfig *ChartConfig `json:"chartConfig,omitempty"`
	TableData   *TableData   `json:"tableData,omitempty"`
	Data        *TextData    `json:"data,omitempty"`

	Measure     string   `json:"measure,omitempty"`
	DisplayUnit string   `json:"displayUnit,omitempty"`
	RowsScanned int      `json:"rowsScanned"`
	RowsMatched int      `json:"rowsMatched"`
	Errors      []string `json:"errors,omitempty"`
}

// ============================================================================
// GROUP — intermediate computation result
// ============================================================================

// Group represents a grouped/aggregated result.
// Builders convert these into ChartConfig, TableData, or TextData.
type Group struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Count     int        `json:"count"`
	SubGroups []Group    `json:"subGroups,omitempty"`
	View      RecordView `json:"-"` // rows in this group, zero-copy
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint represents a single data point.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides totals or aggregations for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// ============================================================================
// TEXT TYPES
// ============================================================================

// TextData is structured data for simple query answers (type="text").
type TextData struct {
	Value    string      `json:"value"`
	RawValue float64     `json:"rawValue"`
	Unit     string      `json:"unit,omitempty"`
	Period   string      `json:"period"`
	Count    int         `json:"count"`
	Growth   *GrowthData `json:"growth,omitempty"`
	Ratio    *RatioData  `json:"ratio,omitempty"`
}

// GrowthData contains change-over-time metrics.
type GrowthData struct {
	EarliestValue  float64 `json:"earliestValue"`
	LatestValue    float64 `json:"latestValue"`
	EarliestPeriod string  `json:"earliestPeriod"`
	LatestPeriod   string  `json:"latestPeriod"`
	ChangeAmount   float64 `json:"changeAmount"`
	ChangePercent  float64 `json:"changePercent"`
	Direction      string  `json:"direction"` // "increased", "decreased", "unchanged", "insufficient data"
}

// RatioData contains cross-group percentage comparison.
type RatioData struct {
	NumeratorTotal   float64 `json:"numeratorTotal"`
	DenominatorTotal float64 `json:"denominatorTotal"`
	Percentage       float64 `json:"percentage"`
	NumeratorLabel   string  `json:"numeratorLabel"`
	DenominatorLabel string  `json:"denominatorLabel"`
}

// ============================================================================
// INTERPRETATION — what the translator understood
// ============================================================================

// Interpretation describes what the translator understood from the query.
type Interpretation struct {
	VisualType  string                `json:"visualType"`
	Summary     string                `json:"summary"`
	Details     []InterpretDetail     `json:"details"`
	Suggestions []InterpretSuggestion `json:"suggestions,omitempty"`
	Confidence  float64               `json:"confidence"`
}

// InterpretDetail is a label-value pair.
type InterpretDetail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// InterpretSuggestion is a refinement option.
type InterpretSuggestion struct {
	Label    string `json:"label"`
	Modifier string `json:"modifier"`
}
