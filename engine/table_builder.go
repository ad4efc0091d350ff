package engine

import (
	"fmt"
	"strconv"
)

// ============================================================================
// TABLE BUILDER — Produces TableData from QuerySpec + Groups
// ============================================================================
// Column discovery uses view.DimensionKeys() and view.MeasureKeys().
// ============================================================================

// BuildTable produces a TableData from a QuerySpec, groups, filtered view, and display unit.
func BuildTable(spec QuerySpec, groups []Group, view RecordView, measure string, unit string) *TableData {
	if spec.Aggregation == "list" || spec.Aggregation == "none" {
		return buildListTable(spec, view, measure, unit)
	}
	if len(spec.GroupBy) >= 2 && hasSubGroups(groups) {
		return buildPivotTable(spec, groups)
	}
	return buildAggregatedTable(spec, groups, unit)
}

// ============================================================================
// LIST TABLE — Row per record
// ============================================================================

func buildListTable(spec QuerySpec, view RecordView, measure string, unit string) *TableData {
	if view.Len() == 0 {
		return &TableData{
			Title:   spec.Title,
			Columns: []Column{},
			Rows:    [][]string{},
		}
	}

	dimKeys := view.DimensionKeys()
	mesKeys := view.MeasureKeys()
	columns := make([]Column, 0, len(dimKeys)+len(mesKeys))

	for _, key := range dimKeys {
		columns = append(columns, Column{
			Key:   key,
			Label: LabelForDimension(key),
			Type:  "text",
			Align: "left",
		})
	}
	for _, key := range mesKeys {
		columns = append(columns, Column{
			Key:   key,
			Label: LabelForDimension(key),
			Type:  "number",
			Align: "right",
		})
	}

	limit := view.Len()
	if spec.Limit > 0 && spec.Limit < limit {
		limit = spec.Limit
	}

	rows := make([][]string, 0, limit)
	for i := 0; i < limit; i++ {
		row := make([]string, 0, len(columns))
		for _, key := range dimKeys {
			row = append(row, view.Dimension(i, key))
		}
		for _, key := range mesKeys {
			row = append(row, strconv.FormatFloat(view.Measure(i, key), 'f', -1, 64))
		}
		rows = append(rows, row)
	}

	table := &TableData{
		Title:   spec.Title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label:  fmt.Sprintf("Total (%d records)", view.Len()),
			Values: map[string]string{},
		},
	}
	if measure != RecordCountMeasure && containsKey(mesKeys, measure) {
		table.Summary.Values[measure] = FormatValue(SumMeasure(view, measure), unit)
	}
	return table
}

// ============================================================================
// AGGREGATED TABLE — Summary rows
// ============================================================================

func buildAggregatedTable(spec QuerySpec, groups []Group, unit string) *TableData {
	if len(groups) == 0 {
		return &TableData{
			Title:   spec.Title,
			Columns: []Column{},
			Rows:    [][]string{},
		}
	}

	groupLabel := "Group"
	if len(spec.GroupBy) > 0 {
		groupLabel = LabelForDimension(spec.GroupBy[0])
	}
	valueLabel := LabelForAggregation(spec.Aggregation)

	columns := []Column{
		{Key: "group", Label: groupLabel, Type: "text", Align: "left"},
		{Key: "value", Label: valueLabel, Type: "number", Align: "right"},
		{Key: "count", Label: "Count", Type: "number", Align: "center"},
	}

	rows := make([][]string, 0, len(groups))
	var totalValue float64
	var totalCount int

	for _, g := range groups {
		rows = append(rows, []string{
			g.Label,
			fmt.Sprintf("%.2f", g.Value),
			fmt.Sprintf("%d", g.Count),
		})
		totalValue += g.Value
		totalCount += g.Count
	}

	summary := &Summary{
		Label:  "Total",
		Values: map[string]string{"count": fmt.Sprintf("%d", totalCount)},
	}
	// Only additive aggregations have a meaningful column total.
	if spec.Aggregation == "sum" || spec.Aggregation == "count" || spec.Aggregation == "" {
		summary.Values["value"] = FormatValue(totalValue, unit)
	}

	return &TableData{
		Title:   spec.Title,
		Columns: columns,
		Rows:    rows,
		Summary: summary,
	}
}

// ============================================================================
// PIVOT TABLE — first groupBy as rows, second as columns
// ============================================================================

func buildPivotTable(spec QuerySpec, groups []Group) *TableData {
	var subKeys []string
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, sg := range g.SubGroups {
			if !seen[sg.Key] {
				seen[sg.Key] = true
				subKeys = append(subKeys, sg.Key)
			}
		}
	}

	columns := []Column{{Key: "group", Label: LabelForDimension(spec.GroupBy[0]), Type: "text", Align: "left"}}
	for _, k := range subKeys {
		columns = append(columns, Column{Key: k, Label: k, Type: "number", Align: "right"})
	}

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		lookup := make(map[string]float64, len(g.SubGroups))
		for _, sg := range g.SubGroups {
			lookup[sg.Key] = sg.Value
		}
		row := []string{g.Label}
		for _, k := range subKeys {
			row = append(row, fmt.Sprintf("%.2f", lookup[k]))
		}
		rows = append(rows, row)
	}

	return &TableData{
		Title:   spec.Title,
		Columns: columns,
		Rows:    rows,
	}
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
