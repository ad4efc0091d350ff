package translator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/frame"
	"github.com/spektr-org/asktable/schema"
)

const salesCSV = `date,region,product,units,revenue
2024-01-05,North,Widget,10,100
2024-01-20,South,Gadget,4,80
2024-02-03,North,Gadget,7,140
2024-02-15,East,Widget,3,30
2024-03-01,South,Widget,12,120
2024-03-15,North,Widget,9,90
`

type fixture struct {
	df      *frame.DataFrame
	sch     schema.Config
	summary *DataSummary
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	df, err := frame.ReadCSV(strings.NewReader(salesCSV), frame.WithFrameName("sales"))
	require.NoError(t, err)
	sch, err := schema.FromFrame(df)
	require.NoError(t, err)
	return fixture{df: df, sch: *sch, summary: BuildDataSummary(df, *sch, 0)}
}

func (f fixture) translate(t *testing.T, q string) engine.QuerySpec {
	t.Helper()
	res, err := NewHeuristic().Translate(context.Background(), q, f.sch, f.summary)
	require.NoError(t, err)
	return res.QuerySpec
}

func (f fixture) execute(t *testing.T, spec engine.QuerySpec) *engine.Result {
	t.Helper()
	res, err := engine.Execute(spec, f.df,
		engine.WithTemporalDimension(f.sch.TemporalDimension()),
		engine.WithDefaultMeasure(f.sch.GetDefaultMeasure()))
	require.NoError(t, err)
	return res
}

// ============================================================================
// HEURISTIC
// ============================================================================

func TestHeuristicGroupedChart(t *testing.T) {
	f := newFixture(t)
	spec := f.translate(t, "Show me revenue by region")

	assert.Equal(t, "chart", spec.Intent)
	assert.Equal(t, "bar", spec.Visualize)
	assert.Equal(t, "sum", spec.Aggregation)
	assert.Equal(t, "revenue", spec.Measure)
	assert.Equal(t, []string{"region"}, spec.GroupBy)
	assert.Equal(t, "value_desc", spec.SortBy)
	assert.Equal(t, "Total Revenue by Region", spec.Title)
	assert.InDelta(t, 0.5, spec.Confidence, 1e-9)

	res := f.execute(t, spec)
	assert.Equal(t, "North is highest at 330.", res.Reply)
}

func TestHeuristicFilteredTotal(t *testing.T) {
	f := newFixture(t)
	spec := f.translate(t, "total revenue for north")

	assert.Equal(t, "text", spec.Intent)
	assert.Equal(t, map[string][]string{"region": {"North"}}, spec.Filters.Dimensions)
	assert.Empty(t, spec.GroupBy)

	res := f.execute(t, spec)
	assert.Equal(t, "Total Revenue was 330 across 3 records.", res.Reply)
}

func TestHeuristicGrowth(t *testing.T) {
	f := newFixture(t)
	spec := f.translate(t, "How has revenue changed over time?")

	assert.Equal(t, "growth", spec.Aggregation)
	assert.Equal(t, "text", spec.Intent)
	assert.Empty(t, spec.GroupBy)

	res := f.execute(t, spec)
	assert.Equal(t, "Revenue increased from 180 in Jan-2024 to 210 in Mar-2024 (16.7%).", res.Reply)
}

func TestHeuristicRatio(t *testing.T) {
	f := newFixture(t)
	spec := f.translate(t, "What percentage of revenue came from North?")

	assert.Equal(t, "ratio", spec.Aggregation)
	require.NotNil(t, spec.CompareFilters)
	assert.Equal(t, []string{"North"}, spec.CompareFilters.Dimensions["region"])
	assert.True(t, spec.Filters.IsEmpty())

	res := f.execute(t, spec)
	assert.Equal(t, "North is 58.9% of All.", res.Reply)
}

func TestHeuristicPeriods(t *testing.T) {
	f := newFixture(t)
	spec := f.translate(t, "monthly revenue")

	assert.Equal(t, []string{"month"}, spec.GroupBy)
	assert.Equal(t, "chart", spec.Intent)
	assert.Equal(t, "line", spec.Visualize)
	assert.Equal(t, "date_asc", spec.SortBy)

	res := f.execute(t, spec)
	require.NotNil(t, res.ChartConfig)
	pts := res.ChartConfig.Series[0].Data
	require.Len(t, pts, 3)
	assert.Equal(t, "Jan-2024", pts[0].Label)
	assert.Equal(t, 180.0, pts[0].Value)
}

func TestHeuristicCountAndList(t *testing.T) {
	f := newFixture(t)

	spec := f.translate(t, "How many orders per product")
	assert.Equal(t, "count", spec.Aggregation)
	assert.Equal(t, engine.RecordCountMeasure, spec.Measure)
	assert.Equal(t, []string{"product"}, spec.GroupBy)
	assert.Equal(t, "chart", spec.Intent)

	spec = f.translate(t, "list all the widget sales")
	assert.Equal(t, "list", spec.Aggregation)
	assert.Equal(t, "table", spec.Intent)
	assert.Equal(t, []string{"Widget"}, spec.Filters.Dimensions["product"])

	res := f.execute(t, spec)
	require.NotNil(t, res.TableData)
	assert.Len(t, res.TableData.Rows, 4)
}

func TestHeuristicWinningGroup(t *testing.T) {
	f := newFixture(t)
	spec := f.translate(t, "Which region has the highest revenue")

	assert.Equal(t, "sum", spec.Aggregation)
	assert.Equal(t, 1, spec.Limit)
	assert.Equal(t, "text", spec.Intent)

	res := f.execute(t, spec)
	assert.Equal(t, "North has the highest Revenue at 330.", res.Reply)
}

func TestHeuristicTopN(t *testing.T) {
	f := newFixture(t)
	spec := f.translate(t, "units by product, top 2")

	assert.Equal(t, 2, spec.Limit)
	assert.Equal(t, "units", spec.Measure)
	assert.Equal(t, []string{"product"}, spec.GroupBy)
}

func TestHeuristicCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristic().Translate(ctx, "total", schema.Config{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// MODEL TRANSLATOR
// ============================================================================

type fakeClient struct {
	resp   string
	err    error
	prompt string
}

func (c *fakeClient) Name() string                 { return "fake" }
func (c *fakeClient) Model() string                { return "fake-1" }
func (c *fakeClient) Ping(ctx context.Context) error { return nil }
func (c *fakeClient) Complete(_ context.Context, prompt string) (string, error) {
	c.prompt = prompt
	return c.resp, c.err
}

func TestLLMTranslate(t *testing.T) {
	f := newFixture(t)
	client := &fakeClient{resp: "```json\n" + `{
		"interpretation": {"visualType": "bar", "summary": "Revenue by region", "confidence": 0.9},
		"querySpec": {"intent": "chart", "aggregation": "sum", "measure": "revenue", "groupBy": ["region"], "visualize": "bar"}
	}` + "\n```"}

	res, err := NewLLM(client, zerolog.Nop()).Translate(context.Background(), "revenue by region", f.sch, f.summary)
	require.NoError(t, err)

	assert.Equal(t, "chart", res.QuerySpec.Intent)
	assert.Equal(t, []string{"region"}, res.QuerySpec.GroupBy)
	assert.Equal(t, 0.9, res.QuerySpec.Confidence)
	assert.False(t, res.Normalized)
	assert.Equal(t, "Revenue by region", res.Interpretation.Summary)

	assert.Contains(t, client.prompt, "USER QUERY: revenue by region")
	assert.NotContains(t, client.prompt, "RATIO query")
}

func TestLLMTranslateNormalizes(t *testing.T) {
	f := newFixture(t)
	client := &fakeClient{resp: `{"querySpec": {"intent": "chart", "aggregation": "max", "measure": "revenue"}}`}

	res, err := NewLLM(client, zerolog.Nop()).Translate(context.Background(), "biggest sale", f.sch, nil)
	require.NoError(t, err)
	assert.Equal(t, "text", res.QuerySpec.Intent)
	assert.True(t, res.Normalized)
}

func TestLLMTranslateRatioHint(t *testing.T) {
	f := newFixture(t)
	client := &fakeClient{resp: `{"querySpec": {"intent": "text", "aggregation": "sum"}}`}

	_, err := NewLLM(client, zerolog.Nop()).Translate(context.Background(), "what % of revenue is North", f.sch, nil)
	require.NoError(t, err)
	assert.Contains(t, client.prompt, "RATIO query")
}

func TestLLMTranslateFallback(t *testing.T) {
	f := newFixture(t)
	client := &fakeClient{resp: "I think you want a bar chart!"}

	res, err := NewLLM(client, zerolog.Nop()).Translate(context.Background(), "revenue", f.sch, nil)
	require.NoError(t, err)
	assert.Equal(t, "list", res.QuerySpec.Aggregation)
	assert.Equal(t, "table", res.QuerySpec.Intent)
	assert.Equal(t, 0.5, res.QuerySpec.Confidence)
	assert.Equal(t, "table", res.Interpretation.VisualType)
}

func TestLLMTranslateError(t *testing.T) {
	f := newFixture(t)
	client := &fakeClient{err: errors.New("boom")}

	_, err := NewLLM(client, zerolog.Nop()).Translate(context.Background(), "revenue", f.sch, nil)
	assert.ErrorContains(t, err, "boom")
}

// ============================================================================
// PROMPT + SUMMARY
// ============================================================================

func TestBuildPrompt(t *testing.T) {
	f := newFixture(t)
	defer func(orig func() time.Time) { now = orig }(now)
	now = func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) }

	p := BuildPrompt(f.sch, f.summary)

	assert.Contains(t, p, `dataset "sales"`)
	assert.Contains(t, p, "CURRENT DATE: 2026-10-18")
	assert.Contains(t, p, `- "region"`)
	assert.Contains(t, p, `- "revenue"`)
	assert.Contains(t, p, "TEMPORAL DIMENSIONS: date, year, quarter, month")
	assert.Contains(t, p, `"measure": "units"`)
	assert.Contains(t, p, "sum|count|avg|median|max|min|list|growth|ratio|none")
	assert.NotContains(t, p, "DIMENSION HIERARCHIES")
}

func TestBuildDataSummary(t *testing.T) {
	f := newFixture(t)

	s := f.summary
	assert.Equal(t, 6, s.RecordCount)
	assert.Equal(t, []string{"East", "North", "South"}, s.Dimensions["region"])
	assert.Equal(t, "2024-01-05", s.Dimensions["date"][0])
	assert.NotContains(t, s.Dimensions, "month")
	assert.Empty(t, s.Truncated)

	small := BuildDataSummary(f.df, f.sch, 2)
	assert.Equal(t, []string{"East", "North"}, small.Dimensions["region"])
	assert.Contains(t, small.Truncated, "region")

	empty := BuildDataSummary(nil, f.sch, 0)
	assert.Zero(t, empty.RecordCount)
}
