package schema

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/frame"
	"github.com/spektr-org/asktable/helpers"
)

// ============================================================================
// AUTO-DISCOVERY — heuristic column classification
// ============================================================================
// Inspects a DataFrame and generates a schema.Config. No model needed.
//
// Classification pipeline per column:
//   1. dtype from the frame (inferred at load time)
//   2. dtype + cardinality → role (dimension, measure, skip)
//   3. pattern matching → temporal string columns
//   4. synthetic record_count measure
//   5. year/quarter/month dimensions derived from the temporal column
//   6. hierarchies between dimensions
// ============================================================================

// DiscoverOptions controls discovery behavior.
type DiscoverOptions struct {
	SampleSize     int      // Max rows to inspect (0 = all). Default: 1000
	RecoverColumns []string // Force-include columns that were auto-skipped
	Name           string   // Dataset name override (otherwise the frame's name)
}

// DefaultDiscoverOptions returns sensible defaults.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		SampleSize: 1000,
	}
}

// DiscoverFromCSV parses CSV data and runs FromFrame on it.
func DiscoverFromCSV(data []byte, opts ...DiscoverOptions) (*Config, error) {
	df, err := frame.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	cfg, err := FromFrame(df, opts...)
	if err != nil {
		return nil, err
	}
	cfg.DiscoveredFrom = "CSV"
	return cfg, nil
}

// FromFrame generates a schema.Config by inspecting a DataFrame.
func FromFrame(df *frame.DataFrame, opts ...DiscoverOptions) (*Config, error) {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if df == nil {
		return nil, fmt.Errorf("nil dataframe")
	}

	rows, cols := df.Shape()
	if cols == 0 {
		return nil, fmt.Errorf("dataframe has no columns")
	}
	if rows == 0 {
		return nil, fmt.Errorf("dataframe has no rows")
	}

	sample := df
	if opt.SampleSize > 0 && rows > opt.SampleSize {
		sample = df.Head(opt.SampleSize)
	}
	sampleRows, _ := sample.Shape()

	recoverSet := make(map[string]bool)
	for _, col := range opt.RecoverColumns {
		recoverSet[strings.ToLower(col)] = true
	}

	config := &Config{
		Name:           opt.Name,
		Version:        "1.0",
		RowCount:       rows,
		DiscoveredFrom: "DataFrame",
		DiscoveredAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if config.Name == "" {
		config.Name = df.Name()
	}
	if config.Name == "" {
		config.Name = "dataset"
	}

	var analyses []columnAnalysis
	for i := 0; i < cols; i++ {
		col := analyzeColumn(sample.ColumnAt(i), sampleRows)
		if col.role == roleSkipped && recoverSet[strings.ToLower(col.key)] {
			col.role = roleDimension
		}
		analyses = append(analyses, col)

		switch col.role {
		case roleDimension:
			config.Dimensions = append(config.Dimensions, col.toDimension())
		case roleMeasure:
			config.Measures = append(config.Measures, col.toMeasure())
		case roleSkipped:
			config.SkippedColumns = append(config.SkippedColumns, SkippedColumn{
				Column:      col.key,
				Reason:      col.skipReason,
				Recoverable: col.recoverable,
			})
		}
	}

	config.Measures = append(config.Measures, MeasureMeta{
		Key:                engine.RecordCountMeasure,
		DisplayName:        "Record Count",
		Description:        "Number of records (auto-generated)",
		IsSynthetic:        true,
		Aggregations:       []string{"count"},
		DefaultAggregation: "count",
	})

	config.Dimensions = append(config.Dimensions, derivePeriodDimensions(sample, config)...)
	detectHierarchies(config.Dimensions, sample, analyses)

	return config, nil
}

// ============================================================================
// COLUMN ANALYSIS
// ============================================================================

type columnRole int

const (
	roleDimension columnRole = iota
	roleMeasure
	roleSkipped
)

type columnAnalysis struct {
	key         string
	dtype       frame.DType
	role        columnRole
	skipReason  string
	recoverable bool

	uniqueCount int
	nonNull     int
	sampleVals  []string
	min, max    float64

	isTemporal      bool
	temporalFormat  string
	cardinalityHint string
}

// analyzeColumn inspects one series and classifies it.
func analyzeColumn(s *frame.Series, totalRows int) columnAnalysis {
	col := columnAnalysis{
		key:     s.Name(),
		dtype:   s.DType(),
		nonNull: s.Count(),
	}

	unique := s.Unique()
	col.uniqueCount = len(unique)

	if col.nonNull == 0 {
		col.role = roleSkipped
		col.skipReason = "All values are empty/null"
		return col
	}

	col.sampleVals = collectSamples(unique, 10)

	if vals := s.Floats(); len(vals) > 0 {
		sorted := frame.Sorted(vals)
		col.min, col.max = sorted[0], sorted[len(sorted)-1]
	}

	switch col.dtype {
	case frame.Time:
		col.isTemporal = true
		col.temporalFormat = "datetime"
	case frame.String:
		col.isTemporal, col.temporalFormat = detectTemporalPattern(col.sampleVals)
	}

	col.classifyRole(totalRows)
	col.cardinalityHint = cardinality(col.uniqueCount)
	return col
}

// classifyRole determines dimension vs measure vs skip.
func (col *columnAnalysis) classifyRole(totalRows int) {
	uniquePerRow := col.uniqueCount == totalRows && totalRows > 10

	switch col.dtype {
	case frame.Float:
		// Continuous data is always a measure
		col.role = roleMeasure

	case frame.Int:
		if uniquePerRow {
			col.role = roleSkipped
			col.skipReason = "Unique per row — likely an ID column"
			return
		}
		// Few values at a low ratio → coded dimension (e.g. priority 1-5).
		// An absolute cap alone misfires on small datasets.
		uniqueRatio := float64(col.uniqueCount) / float64(totalRows)
		if col.uniqueCount < 20 && uniqueRatio < 0.3 {
			col.role = roleDimension
			return
		}
		col.role = roleMeasure

	case frame.Time, frame.Bool:
		col.role = roleDimension

	default:
		if uniquePerRow && !col.isTemporal {
			col.role = roleSkipped
			col.skipReason = "Unique per row — likely an identifier or free text"
			return
		}
		if col.uniqueCount > totalRows/2 && col.uniqueCount > 50 && !col.isTemporal {
			col.role = roleSkipped
			col.skipReason = fmt.Sprintf("High cardinality (%d unique values) — not useful for grouping", col.uniqueCount)
			col.recoverable = true
			return
		}
		col.role = roleDimension
	}
}

// ============================================================================
// TEMPORAL DETECTION
// ============================================================================

var periodPatterns = []struct {
	re     *regexp.Regexp
	format string
}{
	{regexp.MustCompile(`^[A-Z][a-z]{2}-\d{4}$`), "MMM-yyyy"}, // Jan-2026
	{regexp.MustCompile(`^\d{4}-\d{2}$`), "yyyy-MM"},          // 2026-01
	{regexp.MustCompile(`^Q[1-4]-\d{4}$`), "QN-yyyy"},         // Q1-2026
	{regexp.MustCompile(`^Q[1-4]\s+\d{4}$`), "QN yyyy"},       // Q1 2026
	{regexp.MustCompile(`^\d{4}-Q[1-4]$`), "yyyy-QN"},         // 2026-Q1
	{regexp.MustCompile(`^\d{4}$`), "yyyy"},                   // 2026
	{regexp.MustCompile(`^[A-Z][a-z]+ \d{4}$`), "MMMM yyyy"},  // January 2026
}

// detectTemporalPattern checks if values match known month/quarter/year patterns.
func detectTemporalPattern(samples []string) (bool, string) {
	if len(samples) == 0 {
		return false, ""
	}

	for _, pattern := range periodPatterns {
		matches := 0
		for _, s := range samples {
			if pattern.re.MatchString(strings.TrimSpace(s)) {
				matches++
			}
		}
		if float64(matches)/float64(len(samples)) >= 0.8 {
			return true, pattern.format
		}
	}

	return false, ""
}

// derivePeriodDimensions describes the year/quarter/month buckets the
// engine derives from the temporal dimension, for columns not already present.
func derivePeriodDimensions(df *frame.DataFrame, cfg *Config) []DimensionMeta {
	temporal := cfg.TemporalDimension()
	if temporal == "" {
		return nil
	}
	s, err := df.Column(temporal)
	if err != nil {
		return nil
	}

	finest := engine.GranularityYear
	buckets := map[string][]string{}
	seen := map[string]map[string]bool{}
	for _, raw := range s.Unique() {
		p, ok := engine.ParsePeriod(raw)
		if !ok {
			continue
		}
		if p.Granularity > finest {
			finest = p.Granularity
		}
		for key, label := range map[string]string{
			engine.PeriodYear:    p.YearLabel(),
			engine.PeriodQuarter: p.QuarterLabel(),
			engine.PeriodMonth:   p.MonthLabel(),
		} {
			if seen[key] == nil {
				seen[key] = map[string]bool{}
			}
			if !seen[key][label] {
				seen[key][label] = true
				buckets[key] = append(buckets[key], label)
			}
		}
	}

	var keys []string
	switch {
	case finest >= engine.GranularityMonth:
		keys = []string{engine.PeriodYear, engine.PeriodQuarter, engine.PeriodMonth}
	case finest == engine.GranularityQuarter:
		keys = []string{engine.PeriodYear}
	}

	var out []DimensionMeta
	for _, key := range keys {
		if df.HasColumn(key) {
			continue
		}
		labels := buckets[key]
		out = append(out, DimensionMeta{
			Key:             key,
			DisplayName:     helpers.ToDisplayName(key),
			Description:     fmt.Sprintf("%s bucket derived from %s", helpers.ToDisplayName(key), temporal),
			DType:           "object",
			SampleValues:    collectSamples(labels, 10),
			UniqueCount:     len(labels),
			Groupable:       true,
			Filterable:      true,
			IsTemporal:      true,
			TemporalOrder:   "chronological",
			CardinalityHint: cardinality(len(labels)),
			DerivedFrom:     temporal,
		})
	}
	return out
}

// ============================================================================
// HIERARCHY DETECTION
// ============================================================================

// detectHierarchies finds parent/child relationships between dimensions.
// If every value of dimension B maps to exactly one value of dimension A,
// and A has fewer unique values, then A is parent of B.
// When multiple valid parents exist, picks the closest (highest cardinality).
func detectHierarchies(dimensions []DimensionMeta, df *frame.DataFrame, columns []columnAnalysis) {
	dimUniques := make(map[string]int)
	for _, col := range columns {
		if col.role == roleDimension && !col.isTemporal {
			dimUniques[col.key] = col.uniqueCount
		}
	}

	for i := range dimensions {
		childKey := dimensions[i].Key
		if _, ok := dimUniques[childKey]; !ok {
			continue
		}

		bestParent := ""
		bestParentUniques := 0

		for j := range dimensions {
			if i == j {
				continue
			}
			parentKey := dimensions[j].Key
			if _, ok := dimUniques[parentKey]; !ok {
				continue
			}
			// Parent must have fewer unique values than child
			if dimUniques[parentKey] >= dimUniques[childKey] {
				continue
			}

			if mapsToSingleParent(df, childKey, parentKey) && dimUniques[parentKey] > bestParentUniques {
				bestParent = parentKey
				bestParentUniques = dimUniques[parentKey]
			}
		}

		if bestParent != "" {
			dimensions[i].Parent = bestParent
		}
	}
}

func mapsToSingleParent(df *frame.DataFrame, childKey, parentKey string) bool {
	childToParent := make(map[string]string)
	for r := 0; r < df.Len(); r++ {
		child := df.Dimension(r, childKey)
		parent := df.Dimension(r, parentKey)
		if child == "" || parent == "" {
			continue
		}
		if existing, ok := childToParent[child]; ok {
			if existing != parent {
				return false
			}
		} else {
			childToParent[child] = parent
		}
	}
	return len(childToParent) > 1
}

// ============================================================================
// CONVERSION HELPERS
// ============================================================================

func (col *columnAnalysis) toDimension() DimensionMeta {
	d := DefaultDimension(col.key, helpers.ToDisplayName(col.key), col.sampleVals)
	d.DType = col.dtype.String()
	d.UniqueCount = col.uniqueCount
	d.IsTemporal = col.isTemporal
	d.TemporalFormat = col.temporalFormat
	d.CardinalityHint = col.cardinalityHint
	if col.isTemporal {
		d.TemporalOrder = "chronological"
	}
	return d
}

func (col *columnAnalysis) toMeasure() MeasureMeta {
	m := DefaultMeasure(col.key, helpers.ToDisplayName(col.key))
	m.DType = col.dtype.String()
	m.Min, m.Max = col.min, col.max
	return m
}

func cardinality(n int) string {
	switch {
	case n <= 10:
		return "low"
	case n <= 100:
		return "medium"
	default:
		return "high"
	}
}

// collectSamples picks up to maxSamples values in deterministic order:
// chronological when every value is a period, lexical otherwise.
func collectSamples(values []string, maxSamples int) []string {
	samples := append([]string(nil), values...)
	orders := make(map[string]int, len(samples))
	for _, v := range samples {
		p, ok := engine.ParsePeriod(v)
		if !ok {
			orders = nil
			break
		}
		orders[v] = p.Order()
	}
	if orders != nil {
		sort.SliceStable(samples, func(i, j int) bool { return orders[samples[i]] < orders[samples[j]] })
	} else {
		sort.Strings(samples)
	}
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	return samples
}
