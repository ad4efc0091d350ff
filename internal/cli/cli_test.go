package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/asktable/engine"
)

const salesCSV = `date,region,product,units,revenue
2024-01-05,North,Widget,10,100
2024-01-20,South,Gadget,4,80
2024-02-03,North,Gadget,7,140
2024-02-15,East,Widget,3,30
2024-03-01,South,Widget,12,120
2024-03-15,North,Widget,9,90
`

// workdir moves the test into an empty directory so no asktable.yaml is
// picked up, and clears the settings tests rely on.
func workdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ASKTABLE_HISTORY_PATH", "")
	t.Setenv("ASKTABLE_LLM__PROVIDER", "none")
	return dir
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	workdir(t)
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "asktable v"+Version+"\n", out)
}

func TestInfoAndHead(t *testing.T) {
	dir := workdir(t)
	path := writeFile(t, dir, "sales.csv", salesCSV)

	out, _, err := run(t, "", "info", path)
	require.NoError(t, err)
	assert.Contains(t, out, "== sales ==")
	assert.Contains(t, out, "6 entries, 5 columns")

	out, _, err = run(t, "", "head", path, "-n", "2", "-o", "csv", "--max-rows", "4")
	require.NoError(t, err)
	assert.Equal(t, "date,region,product,units,revenue\n2024-01-05,North,Widget,10,100\n2024-01-20,South,Gadget,4,80\n", out)
}

func TestGroupByAndQuery(t *testing.T) {
	dir := workdir(t)
	path := writeFile(t, dir, "sales.csv", salesCSV)

	out, _, err := run(t, "", "groupby", path, "--by", "region", "--agg", "revenue:sum", "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "region,revenue\nNorth,330\nSouth,200\nEast,30\n", out)

	out, _, err = run(t, "", "query", "units >= 9", path, "--sort", "revenue", "--desc", "-o", "json")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "South", rows[0]["region"])
	assert.Equal(t, float64(120), rows[0]["revenue"])

	_, _, err = run(t, "", "groupby", path, "--by", "region", "--agg", "revenue")
	assert.ErrorContains(t, err, "want column:func")
}

func TestParseAggs(t *testing.T) {
	aggs, err := parseAggs([]string{"revenue:sum", "revenue:MEAN", "units:max"})
	require.NoError(t, err)
	require.Len(t, aggs, 3)
	assert.Equal(t, "revenue_sum", aggs[0].As)
	assert.Equal(t, "mean", aggs[1].Func)
	assert.Equal(t, "revenue_mean", aggs[1].As)
	assert.Empty(t, aggs[2].As)
}

func TestAskHeuristic(t *testing.T) {
	dir := workdir(t)
	path := writeFile(t, dir, "sales.csv", salesCSV)

	out, _, err := run(t, "", "ask", path, "-q", "Show me revenue by region", "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, "North is highest at 330.\n", out)

	out, _, err = run(t, "", "ask", path, "-q", "Show me revenue by region")
	require.NoError(t, err)
	assert.Contains(t, out, "North is highest at 330.")
	assert.Contains(t, out, "330")
	assert.Contains(t, out, "heuristic · 6 of 6 rows")

	out, _, err = run(t, "", "ask", path, "-q", "Show me revenue by region", "-o", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "North,330\n")

	_, _, err = run(t, "", "ask", path, "-q", "revenue; drop table sales")
	assert.ErrorContains(t, err, "invalid query")
}

func TestAskInteractive(t *testing.T) {
	dir := workdir(t)
	path := writeFile(t, dir, "sales.csv", salesCSV)

	out, errOut, err := run(t, "total revenue\n\nset output=pdf\nexit\nnever asked\n", "ask", path, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "560")
	assert.NotContains(t, out, "never asked")
	assert.Contains(t, errOut, "loaded sales (6 x 5)")
	assert.Contains(t, errOut, "error: invalid config")
}

func TestAskHistoryAndSave(t *testing.T) {
	dir := workdir(t)
	path := writeFile(t, dir, "sales.csv", salesCSV)
	t.Setenv("ASKTABLE_HISTORY_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("ASKTABLE_OUTPUT_DIR", filepath.Join(dir, "out"))

	_, errOut, err := run(t, "", "ask", path, "-q", "revenue by region", "--save")
	require.NoError(t, err)
	assert.Contains(t, errOut, "saved ")

	saved, err := filepath.Glob(filepath.Join(dir, "out", "*.json"))
	require.NoError(t, err)
	require.Len(t, saved, 1)
	data, err := os.ReadFile(saved[0])
	require.NoError(t, err)
	var res engine.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "North is highest at 330.", res.Reply)

	out, _, err := run(t, "", "history", "-o", "json")
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "revenue by region", entries[0]["question"])
	id := entries[0]["id"].(string)

	out, _, err = run(t, "", "history", id)
	require.NoError(t, err)
	assert.Contains(t, out, "North is highest at 330.")

	out, _, err = run(t, "", "history", "--clear")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1 entries\n", out)
}

func TestHistoryDisabled(t *testing.T) {
	workdir(t)
	_, _, err := run(t, "", "history")
	assert.ErrorIs(t, err, errHistoryDisabled)
}

func TestConfigSetAndShow(t *testing.T) {
	workdir(t)

	out, _, err := run(t, "", "config", "set", "max_rows=10", "plot_style=ggplot")
	require.NoError(t, err)
	assert.Equal(t, "saved 2 setting(s) to asktable.yaml\n", out)

	out, _, err = run(t, "", "config", "show", "-o", "json")
	require.NoError(t, err)
	var values map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, float64(10), values["max_rows"])
	assert.Equal(t, "ggplot", values["plot_style"])
	assert.Equal(t, "none", values["llm.provider"])

	// env values stay out of the file
	data, err := os.ReadFile("asktable.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "provider: ollama")

	_, _, err = run(t, "", "config", "set", "plot_style=neon")
	assert.ErrorContains(t, err, "invalid config")
	_, _, err = run(t, "", "config", "set", "max_rows")
	assert.ErrorContains(t, err, "want KEY=VALUE")
}

func TestStatsAndQuality(t *testing.T) {
	dir := workdir(t)
	path := writeFile(t, dir, "sales.csv", salesCSV)

	out, _, err := run(t, "", "stats", path, "-o", "json")
	require.NoError(t, err)
	var bundle map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &bundle))
	assert.Len(t, bundle["descriptive"], 2)
	assert.Contains(t, bundle, "correlations")

	out, _, err = run(t, "", "stats", path, "--outliers", "zscore")
	require.NoError(t, err)
	assert.Contains(t, out, "zscore")

	out, _, err = run(t, "", "stats", path, "--group", "region", "--value", "revenue", "--compare", "North,South")
	require.NoError(t, err)
	assert.Contains(t, out, "Welch t-test: revenue by region")

	_, _, err = run(t, "", "stats", path, "--group", "region")
	assert.ErrorContains(t, err, "exactly two groups")

	out, _, err = run(t, "", "quality", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Data quality score:")
}

func TestClean(t *testing.T) {
	dir := workdir(t)
	path := writeFile(t, dir, "messy.csv", "Item Name,Qty\nA,1\nA,1\nB,\nC,3\n")
	target := filepath.Join(dir, "clean", "out.csv")

	out, errOut, err := run(t, "", "clean", path, "--out", target)
	require.NoError(t, err)
	assert.Equal(t, "wrote 3 rows x 2 columns to "+target+"\n", out)
	assert.Contains(t, errOut, "- dropped 1 duplicate rows")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "item_name,qty\nA,1\nB,2\nC,3\n", string(data))
}

func TestAnalyze(t *testing.T) {
	dir := workdir(t)
	path := writeFile(t, dir, "sales.csv", salesCSV)

	out, _, err := run(t, "", "analyze", "plot revenue by region", path, "-o", "json")
	require.NoError(t, err)
	var got struct {
		Validation struct {
			IsValid bool `json:"isValid"`
		} `json:"validation"`
		Analysis struct {
			Categories       map[string]any `json:"categories"`
			MentionedColumns []string       `json:"mentionedColumns"`
		} `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Validation.IsValid)
	assert.Contains(t, got.Analysis.Categories, "visualization")
	assert.ElementsMatch(t, []string{"revenue", "region"}, got.Analysis.MentionedColumns)

	out, _, err = run(t, "", "analyze", "--examples")
	require.NoError(t, err)
	assert.Contains(t, out, "visualization:\n")

	_, _, err = run(t, "", "analyze")
	assert.Error(t, err)
}

func TestSQLSource(t *testing.T) {
	dir := workdir(t)
	dsn := filepath.Join(dir, "shop.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE items (name TEXT, qty INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO items VALUES ('pear', 5), ('apple', 3)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, _, err := run(t, "", "head", "--sql", "SELECT name, qty FROM items ORDER BY qty", "--dsn", dsn, "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "name,qty\napple,3\npear,5\n", out)

	_, _, err = run(t, "", "head", "--sql", "SELECT 1", "--driver", "oracle", "--dsn", dsn)
	assert.ErrorContains(t, err, "unsupported driver")
	_, _, err = run(t, "", "head", "--sql", "SELECT 1")
	assert.ErrorContains(t, err, "--dsn is required")
}

func TestNoInput(t *testing.T) {
	workdir(t)
	_, _, err := run(t, "", "info")
	assert.ErrorIs(t, err, errNoInput)
}

func TestSQLDriver(t *testing.T) {
	for in, want := range map[string]string{"": "sqlite", "SQLite3": "sqlite", "postgres": "pgx", "pgx": "pgx"} {
		got, err := sqlDriver(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestChartGridMultiSeries(t *testing.T) {
	cc := &engine.ChartConfig{
		XAxis: "Month",
		Series: []engine.ChartSeries{
			{Name: "North", Data: []engine.ChartPoint{{Label: "Jan", Value: 100}, {Label: "Feb", Value: 140.5}}},
			{Name: "South", Data: []engine.ChartPoint{{Label: "Feb", Value: 80}, {Label: "Mar", Value: 120}}},
		},
	}
	header, rows := chartGrid(cc, csvNumber)
	assert.Equal(t, []string{"Month", "North", "South"}, header)
	assert.Equal(t, [][]string{
		{"Jan", "100", ""},
		{"Feb", "140.50", "80"},
		{"Mar", "", "120"},
	}, rows)
}

func TestWriteResultCSVText(t *testing.T) {
	var buf bytes.Buffer
	res := &engine.Result{Reply: "Total was 5, roughly", Data: &engine.TextData{RawValue: 5.25, Unit: "kg"}}
	require.NoError(t, writeResultCSV(&buf, res))
	assert.Equal(t, "Summary,Value,Unit\n\"Total was 5, roughly\",5.25,kg\n", buf.String())
}

func TestJSONValueDropsNaN(t *testing.T) {
	type point struct {
		X float64 `json:"x"`
		Y float64 `json:"y,omitempty"`
	}
	got := jsonValue(reflect.ValueOf([]point{{X: 1, Y: math.NaN()}}))
	assert.Equal(t, []any{map[string]any{"x": float64(1), "y": nil}}, got)
}
