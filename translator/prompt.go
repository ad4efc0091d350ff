package translator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/schema"
)

// ============================================================================
// PROMPT BUILDER — schema-driven model prompt
// ============================================================================
// Generated from schema.Config:
//   - Dimensions → listed with sample values
//   - Measures → listed with aggregation types
//   - Hierarchies → parent/child relationships explained
//   - Temporal → identified for date-based queries, with derived buckets
//
// Total data sent to the model: a few KB of metadata per query.
// ============================================================================

// now is replaced in tests.
var now = time.Now

// BuildPrompt generates the system prompt for the model translator.
func BuildPrompt(sch schema.Config, dataSummary *DataSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a query translator for the dataset "%s".

CURRENT DATE: %s

YOUR ROLE:
Translate the user's question into a structured QuerySpec that a computation engine will execute.
You are a TRANSLATOR ONLY. Do NOT compute any values. The engine does all computation locally.

`, sch.Name, now().Format("2006-01-02"))

	if sch.Description != "" {
		fmt.Fprintf(&b, "DATASET: %s (%d rows)\n\n", sch.Description, sch.RowCount)
	}

	if dataSummary != nil {
		summaryJSON, _ := json.MarshalIndent(dataSummary, "", "  ")
		fmt.Fprintf(&b, "DATA SUMMARY (distinct dimension values, NOT rows):\n%s\n\n", string(summaryJSON))
	}

	b.WriteString("DATA MODEL:\n")
	b.WriteString(buildDimensionDescription(sch))
	b.WriteString(buildMeasureDescription(sch))
	b.WriteString("\n")

	if hierarchies := buildHierarchyDescription(sch); hierarchies != "" {
		b.WriteString("DIMENSION HIERARCHIES:\n")
		b.WriteString(hierarchies)
		b.WriteString("\n")
	}

	b.WriteString(buildResponseFormat(sch))
	b.WriteString(buildQuerySpecRules(sch))
	b.WriteString(buildExampleTranslations(sch))

	b.WriteString("\nRemember: you are a TRANSLATOR. Output structured instructions for the engine. Do NOT compute values.\n")

	return b.String()
}

// ============================================================================
// SECTION BUILDERS
// ============================================================================

func buildDimensionDescription(sch schema.Config) string {
	var b strings.Builder

	b.WriteString("DIMENSIONS (fields for grouping and filtering):\n")
	for _, d := range sch.Dimensions {
		fmt.Fprintf(&b, "- %q", d.Key)
		if d.DisplayName != "" && d.DisplayName != d.Key {
			fmt.Fprintf(&b, " (%s)", d.DisplayName)
		}
		if d.Description != "" {
			fmt.Fprintf(&b, ": %s", d.Description)
		}
		if len(d.SampleValues) > 0 {
			fmt.Fprintf(&b, ", values: [%s]", strings.Join(quotedValues(d.SampleValues), ", "))
		}
		if d.SortHint != "" {
			fmt.Fprintf(&b, ", order: %s", d.SortHint)
		}
		if d.IsTemporal {
			b.WriteString(" [TEMPORAL]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func buildMeasureDescription(sch schema.Config) string {
	var b strings.Builder

	b.WriteString("\nMEASURES (numeric fields for aggregation):\n")
	for _, m := range sch.Measures {
		fmt.Fprintf(&b, "- %q", m.Key)
		if m.DisplayName != "" && m.DisplayName != m.Key {
			fmt.Fprintf(&b, " (%s)", m.DisplayName)
		}
		if m.Description != "" {
			fmt.Fprintf(&b, ": %s", m.Description)
		}
		if m.Unit != "" {
			fmt.Fprintf(&b, " [unit: %s]", m.Unit)
		}
		aggs := m.Aggregations
		if len(aggs) == 0 {
			aggs = []string{"sum", "avg", "median", "min", "max", "count"}
		}
		fmt.Fprintf(&b, ", aggregations: [%s]", strings.Join(aggs, ", "))
		if m.DefaultAggregation != "" {
			fmt.Fprintf(&b, ", default: %s", m.DefaultAggregation)
		}
		if m.IsSynthetic {
			b.WriteString(" [auto-generated, 1 per row]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func buildHierarchyDescription(sch schema.Config) string {
	var b strings.Builder
	for _, d := range sch.Dimensions {
		if d.Parent != "" {
			fmt.Fprintf(&b, "- %q is a child of %q (filter the parent, then group by the child for a breakdown)\n", d.Key, d.Parent)
		}
	}
	return b.String()
}

func buildResponseFormat(sch schema.Config) string {
	var filter strings.Builder
	filter.WriteString("{\n")
	for _, d := range sch.Dimensions {
		if d.Filterable {
			fmt.Fprintf(&filter, "      %q: [],\n", d.Key)
		}
	}
	filter.WriteString("    }")

	return fmt.Sprintf(`RESPONSE FORMAT (ALWAYS valid JSON, no markdown):
{
  "interpretation": {
    "visualType": "bar|line|pie|area|stacked_bar|scatter|table|text",
    "summary": "A one-line description of what will be shown",
    "details": [
      {"label": "Data", "value": "Description of data being analyzed"},
      {"label": "Time Period", "value": "Period description"},
      {"label": "Display", "value": "Chart/table/text description"}
    ],
    "suggestions": [
      {"label": "refinement label", "modifier": "appended to query"}
    ],
    "confidence": 0.9
  },
  "querySpec": {
    "intent": "text|table|chart",
    "filters": {
      "dimensions": %s
    },
    "compareFilters": null,
    "aggregation": "%s",
    "measure": %q,
    "groupBy": [],
    "sortBy": "value_desc|value_asc|date_asc|date_desc|alpha_asc|alpha_desc",
    "limit": 0,
    "visualize": "bar|line|pie|stacked_bar|area|scatter|table|text",
    "title": "Chart or table title",
    "reply": "Template with {total}, {count}, {period}, {top_category}, {top_amount}, {avg}, {median}, {max}, {min}, {growth_percent}, {direction}, {earliest_value}, {latest_value}, {ratio_percent} placeholders",
    "confidence": 0.9
  }
}

`, filter.String(), strings.Join(engine.Aggregations, "|"), sch.GetDefaultMeasure())
}

func buildQuerySpecRules(sch schema.Config) string {
	var dimKeys, temporalDims []string
	for _, d := range sch.Dimensions {
		dimKeys = append(dimKeys, fmt.Sprintf("%q", d.Key))
		if d.IsTemporal {
			temporalDims = append(temporalDims, d.Key)
		}
	}

	temporalNote := ""
	if len(temporalDims) > 0 {
		temporalNote = fmt.Sprintf(`
TEMPORAL DIMENSIONS: %s
- Use these for time series, trends and growth.
- "year", "quarter" and "month" buckets group by calendar period.
- Sort by "date_asc" for chronological, "date_desc" for reverse.
`, strings.Join(temporalDims, ", "))
	}

	return fmt.Sprintf(`QUERYSPEC RULES:

1. "intent": what type of response to generate
   - "text" → a single number (e.g. "how much?", "how many?")
   - "table" → records or a summary table (e.g. "show all", "list")
   - "chart" → a visual breakdown (e.g. "show by X", "compare", "breakdown")

2. "filters": which records to include
   - Keys are dimension names: %s
   - Empty array = no filter on that dimension
   - Values must come from the DATA SUMMARY or sample values above
   - AND across dimensions, OR within a dimension

3. "aggregation": how to combine records
   - "sum" → total (default for "how much")
   - "count" → number of records ("how many")
   - "avg" → average value
   - "median" → middle value
   - "max" / "min" → largest / smallest value
   - "list" → individual records ("show all", "list")
   - "growth" → change from the earliest to the latest period ("trend", "increased")
   - "ratio" → one subset as a percentage of another ("what %% of X was Y")
   - "none" → pass-through

4. "measure": which numeric field to aggregate (from MEASURES). Use "record_count" to count rows.

5. "groupBy": dimensions to group by: %s
   - [] → a single result
   - Two keys for a stacked or pivoted breakdown: ["dim1", "dim2"]
%s
6. "sortBy": "value_desc" (default for totals), "value_asc", "date_asc", "date_desc", "alpha_asc", "alpha_desc"

7. "limit": max results (0 = all)

8. "visualize":
   - intent "chart": "bar", "line", "pie", "stacked_bar", "area", "scatter"
   - intent "table": "table"
   - intent "text": "text"

9. "reply": a sentence with placeholders the engine fills in:
   {total}, {count}, {period}, {top_category}, {top_amount}, {avg}, {median}, {max}, {min}, {measure}
   Growth: {growth_percent}, {change_amount}, {earliest_value}, {latest_value}, {earliest_period}, {latest_period}, {direction}
   Ratio: {ratio_percent}, {numerator_total}, {denominator_total}, {numerator_label}, {denominator_label}

RATIO QUERIES:
- aggregation: "ratio", intent: "text"
- "filters" = DENOMINATOR (the whole)
- "compareFilters" = NUMERATOR (the part)

IMPORTANT:
- "list" aggregation → always intent "table"
- Charts must have at least one groupBy dimension
- max/min with no groupBy → intent "text"
`, strings.Join(dimKeys, ", "), strings.Join(dimKeys, ", "), temporalNote)
}

func buildExampleTranslations(sch schema.Config) string {
	if len(sch.Dimensions) == 0 || len(sch.Measures) == 0 {
		return ""
	}

	measure := sch.GetDefaultMeasure()
	temporalDim := sch.TemporalDimension()
	var firstDim, secondDim string
	for _, d := range sch.Dimensions {
		if d.IsTemporal {
			continue
		}
		if firstDim == "" {
			firstDim = d.Key
		} else if secondDim == "" {
			secondDim = d.Key
		}
	}

	var b strings.Builder
	b.WriteString("EXAMPLE QUERY TRANSLATIONS:\n")
	fmt.Fprintf(&b, "- \"total %s\" → intent:\"text\", aggregation:\"sum\", measure:%q\n", measure, measure)
	b.WriteString("- \"show all records\" → intent:\"table\", aggregation:\"list\"\n")
	if firstDim != "" {
		fmt.Fprintf(&b, "- \"show %s by %s\" → groupBy:[%q], intent:\"chart\", aggregation:\"sum\", measure:%q\n",
			measure, firstDim, firstDim, measure)
		fmt.Fprintf(&b, "- \"top 5 by %s\" → groupBy:[%q], sortBy:\"value_desc\", limit:5\n", firstDim, firstDim)
	}
	if temporalDim != "" {
		b.WriteString("- \"monthly trend\" → groupBy:[\"month\"], intent:\"chart\", visualize:\"line\", sortBy:\"date_asc\"\n")
		b.WriteString("- \"has it increased?\" → intent:\"text\", aggregation:\"growth\"\n")
	}
	if firstDim != "" && secondDim != "" {
		fmt.Fprintf(&b, "- \"compare %s across %s\" → groupBy:[%q, %q], intent:\"chart\", visualize:\"stacked_bar\"\n",
			firstDim, secondDim, secondDim, firstDim)
	}

	b.WriteString("\n")
	return b.String()
}

// ============================================================================
// HELPERS
// ============================================================================

func quotedValues(vals []string) []string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return quoted
}
