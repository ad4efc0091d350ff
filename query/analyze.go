// Package query inspects natural-language questions before translation:
// keyword categories, mentioned columns, suggested chart and aggregation,
// and input validation.
package query

import (
	"math"
	"strings"
	"unicode"

	"github.com/spektr-org/asktable/helpers"
)

// Categories, in tie-break order.
const (
	CategoryVisualization = "visualization"
	CategoryAggregation   = "aggregation"
	CategoryFiltering     = "filtering"
	CategorySorting       = "sorting"
	CategoryStatistical   = "statistical"
	CategoryComparison    = "comparison"
	CategoryTrend         = "trend"
	CategoryDataInfo      = "data_info"
	CategoryGeneral       = "general"
)

var categoryOrder = []string{
	CategoryVisualization,
	CategoryAggregation,
	CategoryFiltering,
	CategorySorting,
	CategoryStatistical,
	CategoryComparison,
	CategoryTrend,
	CategoryDataInfo,
}

var categoryKeywords = map[string][]string{
	CategoryVisualization: {"plot", "chart", "graph", "visualize", "visualise", "draw", "histogram", "bar", "pie", "line", "scatter", "heatmap", "show"},
	CategoryAggregation:   {"total", "sum", "average", "avg", "mean", "median", "count", "how many", "how much", "maximum", "max", "minimum", "min", "highest", "lowest", "largest", "smallest", "biggest"},
	CategoryFiltering:     {"where", "only", "filter", "filtered", "exclude", "excluding", "except", "greater than", "less than", "more than", "equal to", "between"},
	CategorySorting:       {"sort", "sorted", "order", "ordered", "rank", "ranking", "top", "bottom", "ascending", "descending"},
	CategoryStatistical:   {"correlation", "correlate", "standard deviation", "std", "variance", "outlier", "outliers", "distribution", "regression", "significant", "t-test", "ttest", "normality", "skew", "skewness", "percentile", "quantile"},
	CategoryComparison:    {"compare", "comparison", "versus", "vs", "difference", "against", "relative to"},
	CategoryTrend:         {"trend", "trends", "over time", "growth", "grow", "grown", "increase", "increased", "decrease", "decreased", "change", "changed", "monthly", "yearly", "quarterly", "daily", "timeline", "time series", "forecast"},
	CategoryDataInfo:      {"columns", "column", "rows", "shape", "info", "describe", "summary", "schema", "dtype", "dtypes", "types", "missing", "null", "nulls", "head", "preview"},
}

var ratioKeywords = []string{"percentage of", "% of", "how much of", "portion of", "fraction of", "what part of", "share of", "proportion of"}

// Category is one matched keyword category.
type Category struct {
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

// Analysis is the keyword-level reading of a question.
type Analysis struct {
	Query                string              `json:"query"`
	Categories           map[string]Category `json:"categories"`
	PrimaryCategory      string              `json:"primaryCategory"`
	SuggestedChart       string              `json:"suggestedChart,omitempty"`
	SuggestedAggregation string              `json:"suggestedAggregation"`
	MentionedColumns     []string            `json:"mentionedColumns,omitempty"`
	IsRatio              bool                `json:"isRatio"`
}

// Has reports whether category matched.
func (a Analysis) Has(category string) bool {
	_, ok := a.Categories[category]
	return ok
}

// Analyze categorizes q. Columns, if given, are matched against the text
// by name and display name.
func Analyze(q string, columns ...string) Analysis {
	text := normalize(q)
	a := Analysis{
		Query:           q,
		Categories:      make(map[string]Category),
		PrimaryCategory: CategoryGeneral,
	}

	best := 0.0
	for _, name := range categoryOrder {
		matched := matchKeywords(text, categoryKeywords[name])
		if len(matched) == 0 {
			continue
		}
		conf := math.Min(1, float64(len(matched))/3)
		conf = math.Round(conf*100) / 100
		a.Categories[name] = Category{Confidence: conf, Keywords: matched}
		if conf > best {
			best = conf
			a.PrimaryCategory = name
		}
	}

	a.IsRatio = IsRatio(q)
	a.MentionedColumns = MentionedColumns(q, columns)
	a.SuggestedAggregation = suggestAggregation(text, a.IsRatio)
	a.SuggestedChart = suggestChart(text, a)
	return a
}

// IsRatio reports whether q asks for a part of a whole.
func IsRatio(q string) bool {
	lower := strings.ToLower(q)
	for _, kw := range ratioKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// MentionedColumns returns the columns q refers to, in column order.
// "story_points", "Story Points" and "story points" all match each other.
func MentionedColumns(q string, columns []string) []string {
	text := normalize(q)
	var out []string
	for _, col := range columns {
		if mentions(text, col) {
			out = append(out, col)
		}
	}
	return out
}

// ContainsPhrase reports whether phrase occurs in q as whole words,
// ignoring case and punctuation.
func ContainsPhrase(q, phrase string) bool {
	p := normalize(phrase)
	return p != " " && strings.Contains(normalize(q), p)
}

func mentions(text, column string) bool {
	for _, form := range []string{column, helpers.ToDisplayName(column), strings.ReplaceAll(helpers.ToSnakeCase(column), "_", " ")} {
		f := normalize(form)
		if f != " " && strings.Contains(text, f) {
			return true
		}
	}
	return false
}

func suggestAggregation(text string, ratio bool) string {
	switch {
	case ratio:
		return "ratio"
	case containsAny(text, "list", "show all", "all rows", "all records"):
		return "list"
	case containsAny(text, "average", "avg", "mean"):
		return "avg"
	case containsAny(text, "median"):
		return "median"
	case containsAny(text, "how many", "count", "number of"):
		return "count"
	case containsAny(text, "maximum", "max", "highest", "largest", "biggest"):
		return "max"
	case containsAny(text, "minimum", "min", "lowest", "smallest"):
		return "min"
	case containsAny(text, "growth", "grow", "grown", "increase", "increased", "decrease", "decreased", "change", "changed"):
		return "growth"
	default:
		return "sum"
	}
}

func suggestChart(text string, a Analysis) string {
	switch {
	case containsAny(text, "pie", "share", "proportion", "breakdown"):
		return "pie"
	case containsAny(text, "stacked"):
		return "stacked_bar"
	case containsAny(text, "scatter", "correlation", "correlate"):
		return "scatter"
	case containsAny(text, "area"):
		return "area"
	case containsAny(text, "line") || a.Has(CategoryTrend):
		return "line"
	case containsAny(text, "bar", "histogram", "distribution") || a.Has(CategoryComparison):
		return "bar"
	case a.Has(CategoryVisualization):
		return "bar"
	}
	return ""
}

// normalize lowercases s, turns punctuation into spaces and pads both
// ends, so keywords match on word boundaries with " kw ".
func normalize(s string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func matchKeywords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(text, " "+kw+" ") {
			matched = append(matched, kw)
		}
	}
	return matched
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, " "+kw+" ") {
			return true
		}
	}
	return false
}
