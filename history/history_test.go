package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/asktable/engine"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	spec := &engine.QuerySpec{Intent: "chart", Aggregation: "sum", Measure: "revenue", GroupBy: []string{"region"}}
	e, err := s.Record(ctx, Entry{
		Question:  "revenue by region",
		Dataset:   "sales",
		Backend:   "heuristic",
		Intent:    "chart",
		Reply:     "North is highest at 330.",
		QuerySpec: spec,
		Success:   true,
		Duration:  1500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Len(t, e.ID, 36)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "revenue by region", got.Question)
	assert.Equal(t, "sales", got.Dataset)
	assert.True(t, got.Success)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	require.NotNil(t, got.QuerySpec)
	assert.Equal(t, []string{"region"}, got.QuerySpec.GroupBy)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	for i, q := range []string{"first", "second", "third"} {
		_, err := s.Record(ctx, Entry{Question: q, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Question)
	assert.Equal(t, "first", all[2].Question)
	assert.Nil(t, all[0].QuerySpec)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Record(ctx, Entry{Question: "q", Error: "boom"})
	require.NoError(t, err)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Record(context.Background(), Entry{Question: "q"})
	require.NoError(t, err)
	all, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
