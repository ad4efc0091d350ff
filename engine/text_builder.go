package engine

import (
	"fmt"
	"sort"
)

// ============================================================================
// TEXT BUILDER — Produces TextData for simple queries
// ============================================================================
// temporal names the dimension periods are read from. An empty temporal
// dimension means the data has no time axis: periods read "All time" and
// growth reports insufficient data.
// ============================================================================

// BuildText produces text response data from filtered records.
func BuildText(spec QuerySpec, view RecordView, measure, unit, temporal string) *TextData {
	if view.Len() == 0 {
		return &TextData{
			Value:    "0",
			RawValue: 0,
			Unit:     unit,
			Period:   DerivePeriod(view, temporal),
			Count:    0,
		}
	}

	var value float64
	switch spec.Aggregation {
	case "sum":
		value = SumMeasure(view, measure)
	case "count":
		value = float64(view.Len())
	case "avg":
		value = AvgMeasure(view, measure)
	case "median":
		value = MedianMeasure(view, measure)
	case "max":
		value = MaxMeasure(view, measure)
	case "min":
		value = MinMeasure(view, measure)
	case "growth":
		return BuildGrowthText(view, measure, unit, temporal)
	default:
		value = SumMeasure(view, measure)
	}

	var formatted string
	if spec.Aggregation == "count" {
		formatted = FormatInt(int(value))
	} else {
		formatted = FormatValue(value, unit)
	}

	return &TextData{
		Value:    formatted,
		RawValue: value,
		Unit:     unit,
		Period:   DerivePeriod(view, temporal),
		Count:    view.Len(),
	}
}

// ============================================================================
// GROWTH BUILDER
// ============================================================================

type bucket struct {
	label string
	order int
	total float64
}

// periodBuckets totals measure per Period.Bucket of the temporal dimension,
// in chronological order. Unparseable values are skipped.
func periodBuckets(view RecordView, measure, temporal string) []bucket {
	if temporal == "" {
		return nil
	}
	idx := make(map[string]int)
	var out []bucket
	for i := 0; i < view.Len(); i++ {
		p, ok := ParsePeriod(view.Dimension(i, temporal))
		if !ok {
			continue
		}
		label := p.Bucket()
		j, seen := idx[label]
		if !seen {
			j = len(out)
			idx[label] = j
			out = append(out, bucket{label: label, order: p.bucketOrder()})
		}
		out[j].total += view.Measure(i, measure)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].order < out[b].order })
	return out
}

// BuildGrowthText compares the earliest and latest period totals.
func BuildGrowthText(view RecordView, measure, unit, temporal string) *TextData {
	if view.Len() == 0 {
		return &TextData{
			Value:  "No data",
			Unit:   unit,
			Period: "No data",
			Count:  0,
		}
	}

	buckets := periodBuckets(view, measure, temporal)

	// Need at least 2 distinct periods
	if len(buckets) < 2 {
		total := SumMeasure(view, measure)
		period := DerivePeriod(view, temporal)
		return &TextData{
			Value:    FormatValue(total, unit),
			RawValue: total,
			Unit:     unit,
			Period:   period,
			Count:    view.Len(),
			Growth: &GrowthData{
				EarliestValue:  total,
				LatestValue:    total,
				EarliestPeriod: period,
				LatestPeriod:   period,
				Direction:      "insufficient data",
			},
		}
	}

	earliest := buckets[0]
	latest := buckets[len(buckets)-1]

	changeAmount := latest.total - earliest.total
	var changePercent float64
	if earliest.total != 0 {
		changePercent = (changeAmount / earliest.total) * 100
	}

	direction := "unchanged"
	if changePercent > 0.5 {
		direction = "increased"
	} else if changePercent < -0.5 {
		direction = "decreased"
	}

	absPercent := changePercent
	if absPercent < 0 {
		absPercent = -absPercent
	}
	var displayValue string
	switch direction {
	case "increased":
		displayValue = fmt.Sprintf("↑ %.1f%%", absPercent)
	case "decreased":
		displayValue = fmt.Sprintf("↓ %.1f%%", absPercent)
	default:
		displayValue = "→ No change"
	}

	return &TextData{
		Value:    displayValue,
		RawValue: changePercent,
		Unit:     unit,
		Period:   fmt.Sprintf("%s – %s", earliest.label, latest.label),
		Count:    view.Len(),
		Growth: &GrowthData{
			EarliestValue:  earliest.total,
			LatestValue:    latest.total,
			EarliestPeriod: earliest.label,
			LatestPeriod:   latest.label,
			ChangeAmount:   changeAmount,
			ChangePercent:  changePercent,
			Direction:      direction,
		},
	}
}

// ============================================================================
// PERIOD HELPER
// ============================================================================

// DerivePeriod builds a human-readable period string from the earliest and
// latest values of the temporal dimension.
func DerivePeriod(view RecordView, temporal string) string {
	if view.Len() == 0 {
		return "No data"
	}
	if temporal == "" {
		return "All time"
	}

	var earliest, latest string
	var earliestOrder, latestOrder int
	found := false
	for i := 0; i < view.Len(); i++ {
		raw := view.Dimension(i, temporal)
		p, ok := ParsePeriod(raw)
		if !ok {
			continue
		}
		order := p.Order()
		if !found || order < earliestOrder {
			earliest, earliestOrder = raw, order
		}
		if !found || order > latestOrder {
			latest, latestOrder = raw, order
		}
		found = true
	}

	if !found {
		return "All time"
	}
	if earliest == latest {
		return earliest
	}
	return fmt.Sprintf("%s – %s", earliest, latest)
}
