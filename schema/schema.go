package schema

import "github.com/spektr-org/asktable/engine"

// ============================================================================
// SCHEMA — Describes the shape of a dataset for the engine + translator
// ============================================================================
// Discovered from a frame.DataFrame (FromFrame) and optionally refined by a
// language model (Refine). The translator builds prompts and the heuristic
// matcher from it; the engine takes the default measure and temporal
// dimension from it.
// ============================================================================

// Config describes the complete shape of a dataset.
type Config struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	RowCount    int    `json:"rowCount"`

	Dimensions []DimensionMeta `json:"dimensions"`
	Measures   []MeasureMeta   `json:"measures"`

	// Discovery metadata
	DiscoveredFrom string `json:"discoveredFrom,omitempty"`
	DiscoveredAt   string `json:"discoveredAt,omitempty"`
	RefinedAt      string `json:"refinedAt,omitempty"`
	RefinedBy      string `json:"refinedBy,omitempty"`

	// Columns skipped during discovery
	SkippedColumns []SkippedColumn `json:"skippedColumns,omitempty"`
}

// DimensionMeta describes a field used for grouping/filtering.
type DimensionMeta struct {
	Key             string   `json:"key"`
	DisplayName     string   `json:"displayName"`
	Description     string   `json:"description,omitempty"`
	DType           string   `json:"dtype,omitempty"`
	SampleValues    []string `json:"sampleValues"`
	UniqueCount     int      `json:"uniqueCount"`
	Groupable       bool     `json:"groupable"`
	Filterable      bool     `json:"filterable"`
	Parent          string   `json:"parent,omitempty"` // Parent dimension key for hierarchies
	IsTemporal      bool     `json:"isTemporal,omitempty"`
	TemporalFormat  string   `json:"temporalFormat,omitempty"`
	TemporalOrder   string   `json:"temporalOrder,omitempty"` // "chronological" or "reverse"
	SortHint        string   `json:"sortHint,omitempty"`      // "P1 > P2 > P3"
	CardinalityHint string   `json:"cardinalityHint,omitempty"`
	DerivedFrom     string   `json:"derivedFrom,omitempty"` // source column of year/quarter/month buckets
}

// MeasureMeta describes a numeric field used for aggregation.
type MeasureMeta struct {
	Key                string   `json:"key"`
	DisplayName        string   `json:"displayName"`
	Description        string   `json:"description,omitempty"`
	DType              string   `json:"dtype,omitempty"`
	Unit               string   `json:"unit,omitempty"` // "currency", "units", "hours", "points", "percent"
	IsSynthetic        bool     `json:"isSynthetic,omitempty"`
	Aggregations       []string `json:"aggregations,omitempty"`
	DefaultAggregation string   `json:"defaultAggregation,omitempty"`
	Min                float64  `json:"min"`
	Max                float64  `json:"max"`
}

// SkippedColumn records why a column was excluded during discovery.
type SkippedColumn struct {
	Column      string `json:"column"`
	Reason      string `json:"reason"`
	Recoverable bool   `json:"recoverable"` // Can be restored with DiscoverOptions.RecoverColumns
}

var measureAggregations = []string{"sum", "avg", "median", "min", "max", "count"}

// DefaultDimension creates a DimensionMeta with sensible defaults.
func DefaultDimension(key, displayName string, samples []string) DimensionMeta {
	return DimensionMeta{
		Key:          key,
		DisplayName:  displayName,
		SampleValues: samples,
		Groupable:    true,
		Filterable:   true,
	}
}

// DefaultMeasure creates a MeasureMeta with sensible defaults.
func DefaultMeasure(key, displayName string) MeasureMeta {
	return MeasureMeta{
		Key:                key,
		DisplayName:        displayName,
		Aggregations:       append([]string(nil), measureAggregations...),
		DefaultAggregation: "sum",
	}
}

// GetDefaultMeasure returns the first real measure's key, falling back to
// the synthetic record count.
func (c Config) GetDefaultMeasure() string {
	for _, m := range c.Measures {
		if !m.IsSynthetic {
			return m.Key
		}
	}
	return engine.RecordCountMeasure
}

// TemporalDimension returns the first temporal dimension backed by a real
// column, or "".
func (c Config) TemporalDimension() string {
	for _, d := range c.Dimensions {
		if d.IsTemporal && d.DerivedFrom == "" {
			return d.Key
		}
	}
	return ""
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// MeasureKeys returns all measure keys.
func (c Config) MeasureKeys() []string {
	keys := make([]string, len(c.Measures))
	for i, m := range c.Measures {
		keys[i] = m.Key
	}
	return keys
}

// Dimension looks up a dimension by key.
func (c Config) Dimension(key string) (DimensionMeta, bool) {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return DimensionMeta{}, false
}

// Measure looks up a measure by key.
func (c Config) Measure(key string) (MeasureMeta, bool) {
	for _, m := range c.Measures {
		if m.Key == key {
			return m, true
		}
	}
	return MeasureMeta{}, false
}
