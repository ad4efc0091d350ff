package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/frame"
)

const salesCSV = `date,region,product,units,revenue
2024-01-05,North,Widget,10,100
2024-01-20,South,Gadget,4,80
2024-02-03,North,Gadget,7,140
2024-02-15,East,Widget,3,30
2024-03-01,South,Widget,12,120
2024-03-15,North,Widget,9,90
`

func sales(t *testing.T) *frame.DataFrame {
	t.Helper()
	df, err := frame.ReadCSV(strings.NewReader(salesCSV))
	require.NoError(t, err)
	return df
}

func TestExecuteChartByRegion(t *testing.T) {
	spec := engine.QuerySpec{
		Intent:      "chart",
		Aggregation: "sum",
		Measure:     "revenue",
		GroupBy:     []string{"region"},
		SortBy:      "value_desc",
		Visualize:   "bar",
		Title:       "Revenue by region",
	}
	res, err := engine.Execute(spec, sales(t), engine.WithPalette(engine.Palette("ggplot")))
	require.NoError(t, err)
	require.Equal(t, "chart", res.Type)
	require.NotNil(t, res.ChartConfig)

	cfg := res.ChartConfig
	assert.Equal(t, "bar", cfg.ChartType)
	assert.Equal(t, "Region", cfg.XAxis)
	assert.Equal(t, "Total Revenue", cfg.YAxis)
	require.Len(t, cfg.Series, 1)
	pts := cfg.Series[0].Data
	require.Len(t, pts, 3)
	assert.Equal(t, engine.ChartPoint{Label: "North", Value: 330}, pts[0])
	assert.Equal(t, engine.ChartPoint{Label: "South", Value: 200}, pts[1])
	assert.Equal(t, engine.ChartPoint{Label: "East", Value: 30}, pts[2])
	assert.Equal(t, []string{"#E24A33"}, cfg.Colors)
	assert.Equal(t, 6, res.RowsMatched)
}

func TestExecuteStackedChart(t *testing.T) {
	spec := engine.QuerySpec{
		Intent:      "chart",
		Aggregation: "sum",
		Measure:     "revenue",
		GroupBy:     []string{"region", "product"},
		Visualize:   "stacked_bar",
	}
	res, err := engine.Execute(spec, sales(t))
	require.NoError(t, err)
	series := res.ChartConfig.Series
	require.Len(t, series, 2)
	assert.Equal(t, "Widget", series[0].Name)
	assert.Equal(t, "Gadget", series[1].Name)
	assert.Equal(t, 190.0, series[0].Data[0].Value)
	assert.Equal(t, 120.0, series[0].Data[1].Value)
	assert.Equal(t, 30.0, series[0].Data[2].Value)
	assert.Equal(t, 0.0, series[1].Data[2].Value)
}

func TestExecuteTextWithPlaceholders(t *testing.T) {
	spec := engine.QuerySpec{
		Intent:      "text",
		Aggregation: "sum",
		Measure:     "revenue",
		Reply:       "Total {measure} was {total} across {count} rows{unknown}.",
	}
	res, err := engine.Execute(spec, sales(t), engine.WithUnit("$"))
	require.NoError(t, err)
	assert.Equal(t, "text", res.Type)
	assert.Equal(t, "Total Revenue was $ 560 across 6 rows", res.Reply)
	assert.Equal(t, "$ 560", res.Data.Value)
	assert.Equal(t, "2024-01-05 – 2024-03-15", res.Data.Period)
	assert.Equal(t, "$", res.DisplayUnit)
}

func TestExecuteAverageAndMedian(t *testing.T) {
	df := sales(t)

	res, err := engine.Execute(engine.QuerySpec{Intent: "text", Aggregation: "avg", Measure: "revenue"}, df)
	require.NoError(t, err)
	assert.InDelta(t, 93.333, res.Data.RawValue, 0.001)
	assert.Equal(t, "93.33", res.Data.Value)

	res, err = engine.Execute(engine.QuerySpec{Intent: "text", Aggregation: "median", Measure: "revenue"}, df)
	require.NoError(t, err)
	assert.Equal(t, 95.0, res.Data.RawValue)
}

func TestExecuteGrowth(t *testing.T) {
	spec := engine.QuerySpec{Intent: "text", Aggregation: "growth", Measure: "revenue"}
	res, err := engine.Execute(spec, sales(t))
	require.NoError(t, err)

	g := res.Data.Growth
	require.NotNil(t, g)
	assert.Equal(t, "Jan-2024", g.EarliestPeriod)
	assert.Equal(t, "Mar-2024", g.LatestPeriod)
	assert.Equal(t, 180.0, g.EarliestValue)
	assert.Equal(t, 210.0, g.LatestValue)
	assert.Equal(t, "increased", g.Direction)
	assert.InDelta(t, 16.667, g.ChangePercent, 0.001)
	assert.Equal(t, "↑ 16.7%", res.Data.Value)
}

func TestExecuteGrowthInsufficientData(t *testing.T) {
	spec := engine.QuerySpec{
		Intent:      "text",
		Aggregation: "growth",
		Measure:     "revenue",
		Filters:     engine.Filters{Dimensions: map[string][]string{"region": {"East"}}},
	}
	res, err := engine.Execute(spec, sales(t))
	require.NoError(t, err)
	assert.Equal(t, "insufficient data", res.Data.Growth.Direction)
	assert.Contains(t, res.Reply, "Need at least 2 periods")
}

func TestExecuteRatio(t *testing.T) {
	spec := engine.QuerySpec{
		Intent:         "text",
		Aggregation:    "ratio",
		Measure:        "revenue",
		CompareFilters: &engine.Filters{Dimensions: map[string][]string{"region": {"north"}}},
	}
	res, err := engine.Execute(spec, sales(t))
	require.NoError(t, err)
	require.NotNil(t, res.Data.Ratio)
	assert.InDelta(t, 58.93, res.Data.Ratio.Percentage, 0.01)
	assert.Equal(t, 330.0, res.Data.Ratio.NumeratorTotal)
	assert.Equal(t, 560.0, res.Data.Ratio.DenominatorTotal)
	assert.Equal(t, "north is 58.9% of All.", res.Reply)
}

func TestExecuteVirtualMonthTable(t *testing.T) {
	spec := engine.QuerySpec{
		Intent:      "table",
		Aggregation: "sum",
		Measure:     "revenue",
		GroupBy:     []string{"month"},
		SortBy:      "date_desc",
	}
	res, err := engine.Execute(spec, sales(t))
	require.NoError(t, err)
	require.Equal(t, "table", res.Type)
	rows := res.TableData.Rows
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Mar-2024", "210.00", "2"}, rows[0])
	assert.Equal(t, []string{"Jan-2024", "180.00", "2"}, rows[2])
	assert.Equal(t, "560", res.TableData.Summary.Values["value"])
}

func TestExecuteListTable(t *testing.T) {
	spec := engine.QuerySpec{
		Intent:      "table",
		Aggregation: "list",
		Measure:     "revenue",
		Filters:     engine.Filters{Dimensions: map[string][]string{"product": {"widget"}}},
	}
	res, err := engine.Execute(spec, sales(t))
	require.NoError(t, err)
	td := res.TableData
	require.Len(t, td.Rows, 4)

	keys := make([]string, len(td.Columns))
	for i, c := range td.Columns {
		keys[i] = c.Key
	}
	assert.Equal(t, []string{"date", "region", "product", "units", "revenue"}, keys)
	assert.Equal(t, []string{"2024-01-05", "North", "Widget", "10", "100"}, td.Rows[0])
	assert.Equal(t, "340", td.Summary.Values["revenue"])
}

func TestExecuteValidation(t *testing.T) {
	df := sales(t)

	_, err := engine.Execute(engine.QuerySpec{Intent: "text", Aggregation: "sum", Measure: "profit"}, df)
	assert.ErrorIs(t, err, engine.ErrUnknownMeasure)

	res, err := engine.Execute(engine.QuerySpec{Intent: "text", Aggregation: "count", Measure: "profit"}, df)
	require.NoError(t, err)
	assert.Equal(t, "6", res.Data.Value)
	assert.Equal(t, engine.RecordCountMeasure, res.Measure)

	_, err = engine.Execute(engine.QuerySpec{Intent: "chart", Aggregation: "sum", GroupBy: []string{"colour"}}, df)
	assert.ErrorIs(t, err, engine.ErrUnknownDimension)

	_, err = engine.Execute(engine.QuerySpec{
		Intent:  "text",
		Filters: engine.Filters{Dimensions: map[string][]string{"colour": {"red"}}},
	}, df)
	assert.ErrorIs(t, err, engine.ErrUnknownDimension)
}

func TestExecuteNoMatchesAndEmpty(t *testing.T) {
	spec := engine.QuerySpec{
		Intent:  "text",
		Filters: engine.Filters{Dimensions: map[string][]string{"region": {"West"}}},
	}
	res, err := engine.Execute(spec, sales(t))
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "No records match")

	empty, err := frame.FromMap(map[string]any{"x": []float64{}})
	require.NoError(t, err)
	res, err = engine.Execute(engine.QuerySpec{Intent: "text"}, empty)
	require.NoError(t, err)
	assert.Equal(t, "No data available to analyze.", res.Reply)
}

func TestExecuteContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.ExecuteContext(ctx, engine.QuerySpec{Intent: "text", Aggregation: "sum"}, sales(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeQuerySpec(t *testing.T) {
	spec, changed := engine.NormalizeQuerySpec(engine.QuerySpec{Intent: "chart", Aggregation: "list"})
	assert.True(t, changed)
	assert.Equal(t, "table", spec.Intent)

	spec, _ = engine.NormalizeQuerySpec(engine.QuerySpec{Intent: "chart", Aggregation: "sum"})
	assert.Equal(t, "text", spec.Intent)

	spec, _ = engine.NormalizeQuerySpec(engine.QuerySpec{Intent: "table", Aggregation: "max"})
	assert.Equal(t, "text", spec.Intent)

	spec, _ = engine.NormalizeQuerySpec(engine.QuerySpec{Intent: "text", Aggregation: "ratio"})
	assert.Equal(t, "sum", spec.Aggregation)

	_, changed = engine.NormalizeQuerySpec(engine.QuerySpec{Intent: "chart", Aggregation: "sum", GroupBy: []string{"region"}})
	assert.False(t, changed)
}

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in      string
		order   int
		quarter string
		month   string
	}{
		{"2024-03-15", 20240315, "Q1-2024", "Mar-2024"},
		{"Mar-2024", 20240300, "Q1-2024", "Mar-2024"},
		{"2024-11", 20241100, "Q4-2024", "Nov-2024"},
		{"Q2-2024", 20240400, "Q2-2024", "Q2-2024"},
		{"2024-q3", 20240700, "Q3-2024", "Q3-2024"},
		{"2024", 20240000, "2024", "2024"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			p, ok := engine.ParsePeriod(tc.in)
			require.True(t, ok)
			assert.Equal(t, tc.order, p.Order())
			assert.Equal(t, tc.quarter, p.QuarterLabel())
			assert.Equal(t, tc.month, p.MonthLabel())
		})
	}

	_, ok := engine.ParsePeriod("North")
	assert.False(t, ok)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "1,234.50", engine.FormatValue(1234.5, ""))
	assert.Equal(t, "$ 1,234,567", engine.FormatValue(1234567, "$"))
	assert.Equal(t, "-$ 1,234.50", engine.FormatValue(-1234.5, "$"))
	assert.Equal(t, "12,345", engine.FormatInt(12345))
}

func TestDetectTemporal(t *testing.T) {
	assert.Equal(t, "date", engine.DetectTemporal(sales(t)))

	df, err := frame.FromMap(map[string]any{"name": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "", engine.DetectTemporal(df))
}
