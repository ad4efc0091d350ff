package translator

import (
	"sort"

	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/schema"
)

// DefaultMaxValues caps the distinct values listed per dimension.
const DefaultMaxValues = 30

// BuildDataSummary collects the distinct values of each non-derived schema
// dimension from view. Dimensions with more than maxValues distinct values
// are cut and listed in Truncated. maxValues <= 0 means DefaultMaxValues.
func BuildDataSummary(view engine.RecordView, sch schema.Config, maxValues int) *DataSummary {
	if maxValues <= 0 {
		maxValues = DefaultMaxValues
	}
	summary := &DataSummary{Dimensions: map[string][]string{}}
	if view == nil {
		return summary
	}
	summary.RecordCount = view.Len()

	for _, d := range sch.Dimensions {
		if d.DerivedFrom != "" {
			continue
		}
		seen := make(map[string]bool)
		var vals []string
		for i := 0; i < view.Len(); i++ {
			v := view.Dimension(i, d.Key)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			vals = append(vals, v)
		}
		if d.IsTemporal {
			sortChronologically(vals)
		} else {
			sort.Strings(vals)
		}
		if len(vals) > maxValues {
			vals = vals[:maxValues]
			summary.Truncated = append(summary.Truncated, d.Key)
		}
		summary.Dimensions[d.Key] = vals
	}
	return summary
}

// sortChronologically orders parseable periods first, oldest first.
func sortChronologically(vals []string) {
	order := func(v string) int {
		if p, ok := engine.ParsePeriod(v); ok {
			return p.Order()
		}
		return 1 << 30
	}
	sort.SliceStable(vals, func(i, j int) bool { return order(vals[i]) < order(vals[j]) })
}
