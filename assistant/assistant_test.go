package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/frame"
	"github.com/spektr-org/asktable/history"
	"github.com/spektr-org/asktable/schema"
	"github.com/spektr-org/asktable/translator"
)

const salesCSV = `date,region,product,units,revenue
2024-01-05,North,Widget,10,100
2024-01-20,South,Gadget,4,80
2024-02-03,North,Gadget,7,140
2024-02-15,East,Widget,3,30
2024-03-01,South,Widget,12,120
2024-03-15,North,Widget,9,90
`

const staffCSV = `name,department,salary
Ann,Engineering,120
Raj,Engineering,110
Li,Sales,90
`

func load(t *testing.T, name, data string) *frame.DataFrame {
	t.Helper()
	df, err := frame.ReadCSV(strings.NewReader(data), frame.WithFrameName(name))
	require.NoError(t, err)
	return df
}

type fakeRecorder struct {
	entries []history.Entry
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, e history.Entry) (history.Entry, error) {
	r.entries = append(r.entries, e)
	return e, r.err
}

type fakeTranslator struct {
	spec engine.QuerySpec
	err  error
}

func (f *fakeTranslator) Name() string { return "fake" }
func (f *fakeTranslator) Translate(context.Context, string, schema.Config, *translator.DataSummary) (*translator.TranslateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &translator.TranslateResult{QuerySpec: f.spec}, nil
}

type fakeClient struct {
	pingErr error
	resp    string
}

func (c *fakeClient) Name() string                   { return "ollama" }
func (c *fakeClient) Model() string                  { return "mistral" }
func (c *fakeClient) Ping(context.Context) error     { return c.pingErr }
func (c *fakeClient) Complete(context.Context, string) (string, error) {
	return c.resp, nil
}

// slowClient never answers before its context ends.
type slowClient struct{ fakeClient }

func (c *slowClient) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestChatSlowModelFallsBack(t *testing.T) {
	df := load(t, "sales", salesCSV)

	for name, overrides := range map[string]map[string]any{
		"execution budget": {"max_execution_time": 1},
		"model timeout":    {"llm.timeout": 1},
	} {
		t.Run(name, func(t *testing.T) {
			a := New(nil, WithLLM(&slowClient{}))
			require.NoError(t, a.SetConfig(overrides))

			start := time.Now()
			ans, err := a.Chat(context.Background(), "Show me revenue by region", df)
			require.NoError(t, err)
			assert.Less(t, time.Since(start), 5*time.Second)

			assert.True(t, ans.FellBack)
			assert.Equal(t, translator.HeuristicName, ans.Backend)
			assert.Equal(t, "North is highest at 330.", ans.Result.Reply)
			assert.Contains(t, strings.Join(ans.Warnings, "\n"), "no reply within 1s")
		})
	}
}

func TestChatCancelledWhileTranslating(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(nil, WithLLM(&slowClient{}))
	_, err := a.Chat(ctx, "total revenue by region", load(t, "sales", salesCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChatHeuristic(t *testing.T) {
	rec := &fakeRecorder{}
	a := New(nil, WithHistory(rec))

	ans, err := a.Chat(context.Background(), "Show me revenue by region", load(t, "sales", salesCSV))
	require.NoError(t, err)

	assert.Equal(t, "sales", ans.Dataset)
	assert.Equal(t, translator.HeuristicName, ans.Backend)
	assert.False(t, ans.FellBack)
	assert.Equal(t, "North is highest at 330.", ans.Result.Reply)
	assert.Equal(t, []string{"region"}, ans.QuerySpec.GroupBy)
	assert.Equal(t, "Total Revenue by Region", ans.Interpretation.Summary)
	assert.Contains(t, ans.Analysis.MentionedColumns, "revenue")
	assert.Len(t, ans.ID, 36)

	require.Len(t, rec.entries, 1)
	e := rec.entries[0]
	assert.Equal(t, ans.ID, e.ID)
	assert.True(t, e.Success)
	assert.Equal(t, "chart", e.Intent)
	assert.Equal(t, ans.Result.Reply, e.Reply)
	require.NotNil(t, e.QuerySpec)
}

func TestChatPicksFrame(t *testing.T) {
	sales, staff := load(t, "sales", salesCSV), load(t, "staff", staffCSV)
	a := New(nil)

	ans, err := a.Chat(context.Background(), "average salary by department", sales, staff)
	require.NoError(t, err)
	assert.Equal(t, "staff", ans.Dataset)
	assert.Equal(t, "salary", ans.QuerySpec.Measure)

	assert.Same(t, sales, PickFrame("hello there", []*frame.DataFrame{sales, staff}))
}

func TestChatErrors(t *testing.T) {
	a := New(nil)
	df := load(t, "sales", salesCSV)

	_, err := a.Chat(context.Background(), "revenue by region")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = a.Chat(context.Background(), "   ", df)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = a.Chat(context.Background(), "revenue; drop table sales", df)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorContains(t, err, "disallowed pattern")
}

func TestChatTranslatorFailureFallsBack(t *testing.T) {
	a := New(nil, WithTranslator(&fakeTranslator{err: errors.New("model exploded")}))

	ans, err := a.Chat(context.Background(), "total revenue for north", load(t, "sales", salesCSV))
	require.NoError(t, err)
	assert.True(t, ans.FellBack)
	assert.Equal(t, translator.HeuristicName, ans.Backend)
	require.NotEmpty(t, ans.Warnings)
	assert.Contains(t, ans.Warnings[len(ans.Warnings)-1], "model exploded")
	assert.Equal(t, "Total Revenue was 330 across 3 records.", ans.Result.Reply)
}

func TestChatTranslatorUsed(t *testing.T) {
	spec := engine.QuerySpec{Intent: "text", Aggregation: "sum", Measure: "units", Reply: "Units: {total}."}
	a := New(nil, WithTranslator(&fakeTranslator{spec: spec}))

	ans, err := a.Chat(context.Background(), "how many units in total", load(t, "sales", salesCSV))
	require.NoError(t, err)
	assert.Equal(t, "fake", ans.Backend)
	assert.False(t, ans.FellBack)
	assert.Equal(t, "Units: 45.", ans.Result.Reply)
}

func TestChatUnrunnableSpecRetriesHeuristic(t *testing.T) {
	spec := engine.QuerySpec{Intent: "text", Aggregation: "sum", Measure: "profit"}
	a := New(nil, WithTranslator(&fakeTranslator{spec: spec}))

	ans, err := a.Chat(context.Background(), "total revenue", load(t, "sales", salesCSV))
	require.NoError(t, err)
	assert.True(t, ans.FellBack)
	assert.Equal(t, translator.HeuristicName, ans.Backend)
	assert.Equal(t, "revenue", ans.QuerySpec.Measure)
	assert.Contains(t, strings.Join(ans.Warnings, "\n"), "could not run")
}

func TestChatLLM(t *testing.T) {
	df := load(t, "sales", salesCSV)

	down := New(nil, WithLLM(&fakeClient{pingErr: errors.New("connection refused")}))
	ans, err := down.Chat(context.Background(), "revenue by region", df)
	require.NoError(t, err)
	assert.True(t, ans.FellBack)
	assert.Contains(t, strings.Join(ans.Warnings, "\n"), "ollama model mistral is not reachable")

	up := New(nil)
	up.SetLLM(&fakeClient{resp: `{"querySpec": {"intent": "text", "aggregation": "sum", "measure": "revenue",
		"filters": {"dimensions": {"region": ["North"]}}, "reply": "North made {total}."}}`})
	ans, err = up.Chat(context.Background(), "revenue for north", df)
	require.NoError(t, err)
	assert.Equal(t, "ollama", ans.Backend)
	assert.False(t, ans.FellBack)
	assert.Equal(t, "North made 330.", ans.Result.Reply)
}

func TestSetConfig(t *testing.T) {
	a := New(nil)

	require.NoError(t, a.SetConfig(map[string]any{"max_rows": 2}))
	assert.Equal(t, 2, a.Config().MaxRows)

	assert.Error(t, a.SetConfig(map[string]any{"output": "pdf"}))
	assert.Equal(t, "table", a.Config().Output)

	ans, err := a.Chat(context.Background(), "list all revenue", load(t, "sales", salesCSV))
	require.NoError(t, err)
	assert.Contains(t, ans.Warnings, "analyzing the first 2 of 6 rows")
	assert.Equal(t, 2, ans.Result.RowsScanned)
}

func TestChatRecordsToStore(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	a := New(nil, WithHistory(store))
	ans, err := a.Chat(context.Background(), "monthly revenue", load(t, "sales", salesCSV))
	require.NoError(t, err)

	got, err := store.Get(context.Background(), ans.ID)
	require.NoError(t, err)
	assert.Equal(t, "monthly revenue", got.Question)
	assert.Equal(t, "sales", got.Dataset)
	assert.Equal(t, []string{"month"}, got.QuerySpec.GroupBy)
}

func TestChatHistoryErrorIgnored(t *testing.T) {
	a := New(nil, WithHistory(&fakeRecorder{err: errors.New("disk full")}))
	_, err := a.Chat(context.Background(), "total revenue", load(t, "sales", salesCSV))
	assert.NoError(t, err)
}
