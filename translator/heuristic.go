package translator

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/query"
	"github.com/spektr-org/asktable/schema"
)

// ============================================================================
// HEURISTIC TRANSLATOR — NL → QuerySpec without a model
// ============================================================================
// Matches column names and known dimension values in the question and uses
// the keyword analysis to pick intent, aggregation, grouping, filters,
// sort order and limit. Used when no model is configured or reachable.
// ============================================================================

// HeuristicName is the backend name reported by Heuristic.
const HeuristicName = "heuristic"

var limitRegex = regexp.MustCompile(`(?i)\b(?:top|bottom|first|last)\s+(\d+)\b`)

// periodWords maps period phrasing to the engine's period buckets.
var periodWords = []struct {
	dim   string
	words []string
}{
	{engine.PeriodMonth, []string{"monthly", "by month", "per month", "each month", "month over month"}},
	{engine.PeriodQuarter, []string{"quarterly", "by quarter", "per quarter", "each quarter"}},
	{engine.PeriodYear, []string{"yearly", "annually", "annual", "by year", "per year", "each year", "year over year"}},
}

// Heuristic implements Translator with keyword and value matching.
type Heuristic struct{}

// NewHeuristic creates a heuristic translator.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Name returns "heuristic".
func (h *Heuristic) Name() string { return HeuristicName }

// Translate never fails on well-formed input.
func (h *Heuristic) Translate(ctx context.Context, q string, sch schema.Config, summary *DataSummary) (*TranslateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	columns := append(sch.DimensionKeys(), sch.MeasureKeys()...)
	a := query.Analyze(q, columns...)
	temporal := sch.TemporalDimension()
	matched := 0

	spec := engine.QuerySpec{
		Aggregation: a.SuggestedAggregation,
		Filters:     engine.Filters{Dimensions: map[string][]string{}},
	}

	// measure
	for _, col := range a.MentionedColumns {
		if m, ok := sch.Measure(col); ok && !m.IsSynthetic {
			spec.Measure = m.Key
			matched++
			break
		}
	}
	if spec.Measure == "" {
		spec.Measure = sch.GetDefaultMeasure()
	}
	if spec.Aggregation == "count" {
		spec.Measure = engine.RecordCountMeasure
	}

	// filters from dimension values named in the question
	for _, d := range sch.Dimensions {
		if d.DerivedFrom != "" || !d.Filterable {
			continue
		}
		values := d.SampleValues
		if summary != nil {
			if vals, ok := summary.Dimensions[d.Key]; ok {
				values = vals
			}
		}
		for _, v := range values {
			if filterableValue(v) && query.ContainsPhrase(q, v) {
				spec.Filters.Dimensions[d.Key] = append(spec.Filters.Dimensions[d.Key], v)
			}
		}
		if len(spec.Filters.Dimensions[d.Key]) > 0 {
			matched++
		}
	}

	// groupBy from named dimensions and period words
	for _, col := range a.MentionedColumns {
		d, ok := sch.Dimension(col)
		if !ok || !d.Groupable || spec.Filters.HasFilter(col) {
			continue
		}
		spec.GroupBy = appendUnique(spec.GroupBy, d.Key)
	}
	if temporal != "" {
		for _, p := range periodWords {
			for _, w := range p.words {
				if query.ContainsPhrase(q, w) {
					spec.GroupBy = appendUnique(spec.GroupBy, p.dim)
					break
				}
			}
		}
		if len(spec.GroupBy) == 0 && a.Has(query.CategoryTrend) && spec.Aggregation != "growth" {
			spec.GroupBy = []string{engine.PeriodMonth}
		}
	}
	if len(spec.GroupBy) > 2 {
		spec.GroupBy = spec.GroupBy[:2]
	}
	matched += len(spec.GroupBy)

	switch spec.Aggregation {
	case "growth":
		if temporal == "" {
			spec.Aggregation = "sum"
		} else {
			spec.GroupBy = nil
		}
	case "ratio":
		if !spec.Filters.IsEmpty() {
			numerator := spec.Filters
			spec.CompareFilters = &numerator
			spec.Filters = engine.Filters{Dimensions: map[string][]string{}}
		}
		spec.GroupBy = nil
	}

	if m := limitRegex.FindStringSubmatch(q); m != nil {
		spec.Limit, _ = strconv.Atoi(m[1])
	}
	spec.SortBy = pickSort(q, spec.GroupBy, sch)

	// max/min across groups names the winning group
	if (spec.Aggregation == "max" || spec.Aggregation == "min") && len(spec.GroupBy) > 0 {
		if spec.Aggregation == "min" {
			spec.SortBy = "value_asc"
		} else {
			spec.SortBy = "value_desc"
		}
		spec.Aggregation = "sum"
		if spec.Limit == 0 {
			spec.Limit = 1
		}
		spec.Intent = "text"
		spec.Visualize = "text"
		spec.Reply = "{top_category} has the " + extremeWord(a.SuggestedAggregation) + " {measure} at {top_amount}."
	}

	if spec.Intent == "" {
		spec.Intent, spec.Visualize = pickIntent(q, a, spec, sch)
	}
	if spec.Reply == "" {
		spec.Reply = replyTemplate(spec)
	}
	spec.Title = buildTitle(spec)
	spec.Confidence = math.Min(0.8, 0.3+0.1*float64(matched))

	spec, normalized := engine.NormalizeQuerySpec(spec)
	return &TranslateResult{
		QuerySpec:      spec,
		Interpretation: interpret(spec, sch),
		Normalized:     normalized,
	}, nil
}

// filterableValue skips values too short or too numeric to match safely.
func filterableValue(v string) bool {
	v = strings.TrimSpace(v)
	if len([]rune(v)) < 2 {
		return false
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return false
	}
	return true
}

func pickSort(q string, groupBy []string, sch schema.Config) string {
	if len(groupBy) > 0 {
		if d, ok := sch.Dimension(groupBy[0]); ok && d.IsTemporal {
			return "date_asc"
		}
		if isPeriodBucket(groupBy[0]) {
			return "date_asc"
		}
	}
	switch {
	case query.ContainsPhrase(q, "alphabetical"), query.ContainsPhrase(q, "alphabetically"):
		return "alpha_asc"
	case query.ContainsPhrase(q, "bottom"), query.ContainsPhrase(q, "lowest"),
		query.ContainsPhrase(q, "least"), query.ContainsPhrase(q, "ascending"):
		return "value_asc"
	}
	return "value_desc"
}

func pickIntent(q string, a query.Analysis, spec engine.QuerySpec, sch schema.Config) (intent, visualize string) {
	switch {
	case spec.Aggregation == "list":
		return "table", "table"
	case spec.Aggregation == "growth" || spec.Aggregation == "ratio":
		return "text", "text"
	case len(spec.GroupBy) == 0:
		return "text", "text"
	case query.ContainsPhrase(q, "table"):
		return "table", "table"
	}

	chart := a.SuggestedChart
	temporalGroup := isPeriodBucket(spec.GroupBy[0])
	if d, ok := sch.Dimension(spec.GroupBy[0]); ok && d.IsTemporal {
		temporalGroup = true
	}
	switch {
	case len(spec.GroupBy) == 2 && (chart == "" || chart == "bar"):
		chart = "stacked_bar"
	case temporalGroup && (chart == "" || chart == "bar"):
		chart = "line"
	case chart == "":
		chart = "bar"
	}
	return "chart", chart
}

func replyTemplate(spec engine.QuerySpec) string {
	if len(spec.GroupBy) > 0 && spec.Aggregation != "list" {
		return "{top_category} is highest at {top_amount}."
	}
	switch spec.Aggregation {
	case "sum":
		return "Total {measure} was {total} across {count} records."
	case "count":
		return "There are {count} records."
	case "avg":
		return "Average {measure} was {avg} across {count} records."
	case "median":
		return "Median {measure} was {median}."
	case "max":
		return "Highest {measure} was {max}."
	case "min":
		return "Lowest {measure} was {min}."
	case "growth":
		return "{measure} {direction} from {earliest_value} in {earliest_period} to {latest_value} in {latest_period} ({growth_percent})."
	}
	return ""
}

func buildTitle(spec engine.QuerySpec) string {
	if spec.Aggregation == "list" {
		return "Records"
	}
	title := engine.LabelForDimension(spec.Measure)
	switch spec.Aggregation {
	case "count":
		title = "Record Count"
	case "growth":
		title += " Growth"
	case "ratio":
		title += " Share"
	default:
		title = engine.LabelForAggregation(spec.Aggregation) + " " + title
	}
	if len(spec.GroupBy) > 0 {
		labels := make([]string, len(spec.GroupBy))
		for i, g := range spec.GroupBy {
			labels[i] = engine.LabelForDimension(g)
		}
		title += " by " + strings.Join(labels, " and ")
	}
	return title
}

func interpret(spec engine.QuerySpec, sch schema.Config) engine.Interpretation {
	data := engine.LabelForDimension(spec.Measure)
	if !spec.Filters.IsEmpty() {
		data += " where " + describeFilters(spec.Filters)
	}
	if spec.CompareFilters != nil {
		data += " compared to " + describeFilters(*spec.CompareFilters)
	}

	interp := engine.Interpretation{
		VisualType: spec.Visualize,
		Summary:    spec.Title,
		Details: []engine.InterpretDetail{
			{Label: "Data", Value: data},
			{Label: "Aggregation", Value: spec.Aggregation},
			{Label: "Display", Value: spec.Visualize},
		},
		Confidence: spec.Confidence,
	}
	if len(spec.GroupBy) == 0 && spec.Aggregation != "list" {
		for _, d := range sch.Dimensions {
			if d.DerivedFrom == "" && d.Groupable && !d.IsTemporal {
				interp.Suggestions = append(interp.Suggestions, engine.InterpretSuggestion{
					Label:    "Break down by " + d.DisplayName,
					Modifier: "by " + d.Key,
				})
				break
			}
		}
	}
	return interp
}

func describeFilters(f engine.Filters) string {
	var parts []string
	for _, d := range sortedKeys(f.Dimensions) {
		if vals := f.Dimensions[d]; len(vals) > 0 {
			parts = append(parts, fmt.Sprintf("%s is %s", d, strings.Join(vals, " or ")))
		}
	}
	return strings.Join(parts, " and ")
}

func isPeriodBucket(key string) bool {
	return key == engine.PeriodYear || key == engine.PeriodQuarter || key == engine.PeriodMonth
}

func extremeWord(agg string) string {
	if agg == "min" {
		return "lowest"
	}
	return "highest"
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
