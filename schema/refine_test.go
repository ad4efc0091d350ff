package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	name   string
	resp   string
	err    error
	prompt string
}

func (f *fakeCompleter) Name() string { return f.name }

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.resp, f.err
}

const refineResponse = "```json\n" + `{
  "datasetName": "Sprint Tracker",
  "datasetDescription": "Jira issues for the current quarter",
  "enrichments": [
    {"key": "Priority", "displayName": "Priority Level", "sortHint": "P1 > P2 > P3 > P4"},
    {"key": "Story Points", "description": "Estimated effort", "unit": "points", "defaultAggregation": "avg"},
    {"key": "Time Spent Hours", "unit": "hours", "defaultAggregation": "geometric_mean"}
  ],
  "suggestedHierarchies": [
    {"parent": "Component", "child": "Assignee", "reason": "teams own components"},
    {"parent": "Nope", "child": "Status", "reason": "unknown parent"}
  ]
}` + "\n```"

func TestRefine(t *testing.T) {
	draft, err := DiscoverFromCSV(jiraCSV)
	require.NoError(t, err)

	c := &fakeCompleter{name: "ollama:llama3", resp: refineResponse}
	refined, err := Refine(context.Background(), draft, c)
	require.NoError(t, err)

	assert.Equal(t, "Sprint Tracker", refined.Name)
	assert.Equal(t, "Jira issues for the current quarter", refined.Description)
	assert.Equal(t, "ollama:llama3", refined.RefinedBy)
	assert.NotEmpty(t, refined.RefinedAt)

	priority, _ := refined.Dimension("Priority")
	assert.Equal(t, "Priority Level", priority.DisplayName)
	assert.Equal(t, "P1 > P2 > P3 > P4", priority.SortHint)

	points, _ := refined.Measure("Story Points")
	assert.Equal(t, "Story Points", points.DisplayName)
	assert.Equal(t, "Estimated effort", points.Description)
	assert.Equal(t, "points", points.Unit)
	assert.Equal(t, "avg", points.DefaultAggregation)

	hours, _ := refined.Measure("Time Spent Hours")
	assert.Equal(t, "hours", hours.Unit)
	assert.Equal(t, "sum", hours.DefaultAggregation, "unknown aggregation is ignored")

	status, _ := refined.Dimension("Status")
	assert.Empty(t, status.Parent)

	// draft is untouched
	assert.Equal(t, "dataset", draft.Name)
	assert.Empty(t, draft.RefinedBy)
	original, _ := draft.Dimension("Priority")
	assert.Equal(t, "Priority", original.DisplayName)

	// the prompt carries metadata only
	assert.Contains(t, c.prompt, "Story Points")
	assert.NotContains(t, c.prompt, "Login timeout on mobile")
}

func TestRefineKeepsExistingParent(t *testing.T) {
	draft := &Config{
		Name: "geo",
		Dimensions: []DimensionMeta{
			DefaultDimension("country", "Country", nil),
			DefaultDimension("region", "Region", nil),
			DefaultDimension("city", "City", nil),
		},
	}
	draft.Dimensions[2].Parent = "country"

	resp := `{"suggestedHierarchies": [
		{"parent": "region", "child": "city"},
		{"parent": "country", "child": "region"},
		{"parent": "city", "child": "city"}
	]}`
	refined, err := Refine(context.Background(), draft, &fakeCompleter{name: "fake", resp: resp})
	require.NoError(t, err)

	city, _ := refined.Dimension("city")
	assert.Equal(t, "country", city.Parent)
	region, _ := refined.Dimension("region")
	assert.Equal(t, "country", region.Parent)
	assert.Equal(t, "geo", refined.Name)
}

func TestRefineFailures(t *testing.T) {
	draft, err := DiscoverFromCSV(jiraCSV)
	require.NoError(t, err)

	_, err = Refine(context.Background(), nil, &fakeCompleter{})
	assert.Error(t, err)

	got, err := Refine(context.Background(), draft, nil)
	assert.Error(t, err)
	assert.Same(t, draft, got)

	got, err = Refine(context.Background(), draft, &fakeCompleter{name: "down", err: errors.New("connection refused")})
	assert.ErrorContains(t, err, "connection refused")
	assert.Same(t, draft, got)

	got, err = Refine(context.Background(), draft, &fakeCompleter{name: "chatty", resp: "Sure! Here is your schema."})
	assert.ErrorContains(t, err, "parse")
	assert.Same(t, draft, got)
}

func TestBuildRefinePayload(t *testing.T) {
	draft, err := DiscoverFromCSV(jiraCSV)
	require.NoError(t, err)

	payload := buildRefinePayload(draft)
	assert.Equal(t, 12, payload.RowCount)
	assert.True(t, payload.Detected.HasTemporal)
	assert.Equal(t, []string{"Issue Key", "Summary"}, payload.Detected.SkippedColumns)

	for _, col := range payload.Columns {
		assert.NotEqual(t, "record_count", col.Key)
		assert.NotContains(t, []string{"year", "quarter", "month"}, col.Key)
		assert.LessOrEqual(t, len(col.Samples), 5)
	}
}

func TestParseRefineResponse(t *testing.T) {
	e, err := parseRefineResponse("```\n{\"datasetName\": \"x\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "x", e.DatasetName)

	_, err = parseRefineResponse("{not json")
	assert.Error(t, err)
}
