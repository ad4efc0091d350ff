package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ============================================================================
// EXECUTOR — Dispatcher + Placeholder Resolution
// ============================================================================
// Entry point: Execute(spec, view, opts...)
//
// Pipeline:
//   1. Resolve measure + temporal dimension, validate column references
//   2. Apply filters from QuerySpec → SubView
//   3. Group and aggregate
//   4. Dispatch to builder (chart / table / text)
//   5. Resolve reply template placeholders
//   6. Return Result
//
// This function never calls a language model. All computation is local.
// ============================================================================

// Execute runs a QuerySpec against a RecordView and returns a render-ready Result.
func Execute(spec QuerySpec, view RecordView, opts ...Option) (*Result, error) {
	return ExecuteContext(context.Background(), spec, view, opts...)
}

// ExecuteContext is Execute with cancellation checked between pipeline stages.
func ExecuteContext(ctx context.Context, spec QuerySpec, view RecordView, opts ...Option) (*Result, error) {
	cfg := applyOptions(opts)
	log := cfg.Logger

	if view.Len() == 0 {
		return &Result{
			Success: true,
			Type:    "text",
			Reply:   "No data available to analyze.",
		}, nil
	}

	temporal := cfg.TemporalDimension
	if temporal == "" {
		temporal = DetectTemporal(view)
	}
	view = withPeriods(withRecordCount(view), temporal)

	measure, err := resolveMeasure(spec, view, cfg.DefaultMeasure)
	if err != nil {
		return nil, err
	}
	if err := validateDimensions(spec, view); err != nil {
		return nil, err
	}

	log.Debug().
		Int("rows", view.Len()).
		Str("intent", spec.Intent).
		Str("visualize", spec.Visualize).
		Str("aggregation", spec.Aggregation).
		Str("measure", measure).
		Str("temporal", temporal).
		Msg("executing query spec")

	// ── RATIO AGGREGATION (early return) ──────────────────────────────────
	if spec.Aggregation == "ratio" && spec.CompareFilters != nil {
		return executeRatio(spec, view, measure, temporal, cfg), nil
	}

	// 1. Apply filters → SubView (zero-copy)
	filtered := ApplyFilters(view, spec.Filters)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if filtered.Len() == 0 {
		return &Result{
			Success:     true,
			Type:        "text",
			Reply:       "No records match your query filters. Try broadening your search.",
			Measure:     measure,
			RowsScanned: view.Len(),
		}, nil
	}

	log.Debug().Int("matched", filtered.Len()).Int("scanned", view.Len()).Msg("filters applied")

	// 2. Group and aggregate
	groups := GroupAndAggregate(filtered, spec.GroupBy, measure, spec.Aggregation, spec.SortBy, spec.Limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Dispatch to builder
	result := &Result{
		Success:     true,
		Title:       spec.Title,
		Measure:     measure,
		DisplayUnit: cfg.Unit,
		RowsScanned: view.Len(),
		RowsMatched: filtered.Len(),
	}

	switch spec.Intent {
	case "chart":
		result.Type = "chart"
		result.ChartConfig = BuildChart(spec, groups, measure, cfg.Palette)
		if result.ChartConfig == nil {
			result.Type = "text"
			result.Reply = "Not enough data to generate a chart."
			return result, nil
		}

	case "table":
		result.Type = "table"
		result.TableData = BuildTable(spec, groups, filtered, measure, cfg.Unit)

	default:
		result.Type = "text"
		result.Data = BuildText(spec, filtered, measure, cfg.Unit, temporal)
		if g := result.Data.Growth; spec.Aggregation == "growth" && g != nil && g.Direction == "insufficient data" {
			result.Reply = fmt.Sprintf("Your data shows %s for %s. Need at least 2 periods of data to show trends.",
				result.Data.Value, result.Data.Period)
			return result, nil
		}
	}

	// 4. Resolve reply template placeholders
	result.Reply = ResolvePlaceholders(spec.Reply, groups, filtered, measure, cfg.Unit, temporal)
	result.Summary = buildSummary(spec, filtered, measure)

	return result, nil
}

// ============================================================================
// VALIDATION
// ============================================================================

// resolveMeasure picks the measure to aggregate. Count-like aggregations
// fall back to record_count instead of failing.
func resolveMeasure(spec QuerySpec, view RecordView, defaultMeasure string) (string, error) {
	measure := spec.Measure
	if measure == "" {
		measure = defaultMeasure
	}
	if measure == "" {
		if keys := view.MeasureKeys(); len(keys) > 0 {
			measure = keys[0]
		} else {
			measure = RecordCountMeasure
		}
	}
	if measure == RecordCountMeasure || containsKey(view.MeasureKeys(), measure) {
		return measure, nil
	}
	switch spec.Aggregation {
	case "count", "list", "none":
		return RecordCountMeasure, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMeasure, measure)
}

func validateDimensions(spec QuerySpec, view RecordView) error {
	known := make(map[string]bool)
	for _, k := range view.DimensionKeys() {
		known[k] = true
	}
	// Numeric columns can be grouped on too (e.g. a year column).
	for _, k := range view.MeasureKeys() {
		known[k] = true
	}
	for k := range virtualKeys(view) {
		known[k] = true
	}

	for _, dim := range spec.GroupBy {
		if !known[dim] {
			return fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
		}
	}
	check := func(f *Filters) error {
		if f == nil {
			return nil
		}
		for dim, vals := range f.Dimensions {
			if len(vals) > 0 && !known[dim] {
				return fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
			}
		}
		return nil
	}
	if err := check(&spec.Filters); err != nil {
		return err
	}
	return check(spec.CompareFilters)
}

// ============================================================================
// RATIO EXECUTION (early return path)
// ============================================================================

func executeRatio(spec QuerySpec, view RecordView, measure, temporal string, cfg *config) *Result {
	denominator := ApplyFilters(view, spec.Filters)
	numerator := ApplyFilters(view, *spec.CompareFilters)

	denomSum := SumMeasure(denominator, measure)
	numSum := SumMeasure(numerator, measure)

	var pct float64
	if denomSum != 0 {
		pct = (numSum / denomSum) * 100
	}

	unit := cfg.Unit
	numLabel := buildFilterLabel(spec.CompareFilters)
	denomLabel := buildFilterLabel(&spec.Filters)

	displayValue := fmt.Sprintf("%.1f%%", pct)
	// ConcatView for period derivation — no data copy
	combined := newConcatView(denominator, numerator)
	period := DerivePeriod(combined, temporal)

	textData := &TextData{
		Value:    displayValue,
		RawValue: pct,
		Unit:     unit,
		Period:   period,
		Count:    numerator.Len() + denominator.Len(),
		Ratio: &RatioData{
			NumeratorTotal:   numSum,
			DenominatorTotal: denomSum,
			Percentage:       pct,
			NumeratorLabel:   numLabel,
			DenominatorLabel: denomLabel,
		},
	}

	reply := spec.Reply
	if reply == "" {
		reply = "{numerator_label} is {ratio_percent} of {denominator_label}."
	}
	replacements := map[string]string{
		"{ratio_percent}":     displayValue,
		"{numerator_total}":   FormatValue(numSum, unit),
		"{denominator_total}": FormatValue(denomSum, unit),
		"{numerator_label}":   numLabel,
		"{denominator_label}": denomLabel,
		"{period}":            period,
		"{total}":             FormatValue(numSum, unit),
		"{measure}":           LabelForDimension(measure),
		"{unit}":              unit,
	}
	for k, v := range replacements {
		reply = strings.ReplaceAll(reply, k, v)
	}

	cfg.Logger.Debug().
		Str("numerator", numLabel).
		Str("denominator", denomLabel).
		Float64("percent", pct).
		Msg("ratio computed")

	return &Result{
		Success:     true,
		Type:        "text",
		Title:       spec.Title,
		Reply:       stripUnresolvedPlaceholders(reply),
		Data:        textData,
		Measure:     measure,
		DisplayUnit: unit,
		RowsScanned: view.Len(),
		RowsMatched: denominator.Len(),
	}
}

// ============================================================================
// PLACEHOLDER RESOLUTION
// ============================================================================

// ResolvePlaceholders substitutes computed values into the reply template.
func ResolvePlaceholders(template string, groups []Group, view RecordView, measure, unit, temporal string) string {
	if template == "" {
		return buildDefaultReply(view, measure, unit)
	}

	total := SumMeasure(view, measure)
	count := view.Len()
	period := DerivePeriod(view, temporal)

	replacements := map[string]string{
		"{total}":    FormatValue(total, unit),
		"{count}":    FormatInt(count),
		"{period}":   period,
		"{measure}":  LabelForDimension(measure),
		"{unit}":     unit,
		"{currency}": unit,
	}

	// Top group (highest value)
	if len(groups) > 0 {
		topGroup := groups[0]
		for _, g := range groups[1:] {
			if g.Value > topGroup.Value {
				topGroup = g
			}
		}
		replacements["{top_category}"] = topGroup.Label
		replacements["{top_amount}"] = FormatValue(topGroup.Value, unit)
	}

	if count > 0 {
		replacements["{avg}"] = FormatValue(total/float64(count), unit)
		replacements["{median}"] = FormatValue(MedianMeasure(view, measure), unit)
		replacements["{max}"] = FormatValue(MaxMeasure(view, measure), unit)
		replacements["{min}"] = FormatValue(MinMeasure(view, measure), unit)
	}

	// Growth placeholders
	if strings.Contains(template, "{") {
		growthData := BuildGrowthText(view, measure, unit, temporal)
		if g := growthData.Growth; g != nil {
			replacements["{growth_percent}"] = fmt.Sprintf("%.1f%%", g.ChangePercent)
			replacements["{change_amount}"] = FormatValue(g.ChangeAmount, unit)
			replacements["{earliest_value}"] = FormatValue(g.EarliestValue, unit)
			replacements["{latest_value}"] = FormatValue(g.LatestValue, unit)
			replacements["{earliest_period}"] = g.EarliestPeriod
			replacements["{latest_period}"] = g.LatestPeriod
			replacements["{direction}"] = g.Direction
		}
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Safety net: strip unresolved placeholders
	return stripUnresolvedPlaceholders(result)
}

// ============================================================================
// QUERYSPEC NORMALIZATION
// ============================================================================

// NormalizeQuerySpec applies deterministic rules to fix common model
// inconsistencies. It reports whether anything changed.
func NormalizeQuerySpec(spec QuerySpec) (QuerySpec, bool) {
	changed := false

	if spec.Aggregation == "" {
		spec.Aggregation = "sum"
		changed = true
	}
	if spec.Intent == "" {
		spec.Intent = "text"
		changed = true
	}

	// Rule 1: "list" aggregation must be a table
	if spec.Aggregation == "list" && spec.Intent != "table" {
		spec.Intent = "table"
		spec.Visualize = "table"
		changed = true
	}

	// Rule 2: Charts must have a groupBy dimension
	if spec.Intent == "chart" && len(spec.GroupBy) == 0 {
		spec.Intent = "text"
		spec.Visualize = "text"
		changed = true
	}

	// Rule 3: max/min with no groupBy → text
	if (spec.Aggregation == "max" || spec.Aggregation == "min") && len(spec.GroupBy) == 0 && spec.Intent != "text" {
		spec.Intent = "text"
		spec.Visualize = "text"
		changed = true
	}

	// Rule 4: ratio without a numerator is a plain sum
	if spec.Aggregation == "ratio" && spec.CompareFilters == nil {
		spec.Aggregation = "sum"
		changed = true
	}

	return spec, changed
}

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

func buildDefaultReply(view RecordView, measure string, unit string) string {
	if view.Len() == 0 {
		return "No matching records found."
	}
	if measure == RecordCountMeasure {
		return fmt.Sprintf("Found %s records.", FormatInt(view.Len()))
	}
	return fmt.Sprintf("Found %s records with a total %s of %s.",
		FormatInt(view.Len()), LabelForDimension(measure), FormatValue(SumMeasure(view, measure), unit))
}

func buildSummary(spec QuerySpec, view RecordView, measure string) string {
	parts := []string{fmt.Sprintf("%s of %s", LabelForAggregation(spec.Aggregation), LabelForDimension(measure))}
	if len(spec.GroupBy) > 0 {
		parts = append(parts, "by "+strings.Join(spec.GroupBy, ", "))
	}
	if !spec.Filters.IsEmpty() {
		parts = append(parts, "where "+buildFilterLabel(&spec.Filters))
	}
	parts = append(parts, fmt.Sprintf("(%d rows)", view.Len()))
	return strings.Join(parts, " ")
}

// buildFilterLabel creates a human-readable label from Filters.
// Dimensions are listed alphabetically so labels are stable.
func buildFilterLabel(f *Filters) string {
	if f == nil || f.IsEmpty() {
		return "All"
	}

	dims := make([]string, 0, len(f.Dimensions))
	for dim, vals := range f.Dimensions {
		if len(vals) > 0 {
			dims = append(dims, dim)
		}
	}
	sort.Strings(dims)

	parts := make([]string, 0, len(dims))
	for _, dim := range dims {
		parts = append(parts, strings.Join(f.Dimensions[dim], ", "))
	}
	return strings.Join(parts, " / ")
}

var placeholderRegex = regexp.MustCompile(`\{[a-z_]+\}`)

func stripUnresolvedPlaceholders(text string) string {
	if !placeholderRegex.MatchString(text) {
		return text
	}
	cleaned := placeholderRegex.ReplaceAllString(text, "")
	for strings.Contains(cleaned, "  ") {
		cleaned = strings.ReplaceAll(cleaned, "  ", " ")
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, " .—-–")
	if cleaned == "" {
		return text
	}
	return cleaned
}
