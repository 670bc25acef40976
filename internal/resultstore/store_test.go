package resultstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/goproblog/pkg/problog"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadBatch(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	results := []problog.BatchResult{
		{
			Program:       "coins",
			Queries:       []string{"heads", "tails"},
			Probabilities: map[string]float64{"heads": 0.5, "tails": 0.25},
			Duration:      3 * time.Millisecond,
		},
		{Program: "broken", Err: errors.New("parse error")},
	}
	require.NoError(t, s.SaveBatch(ctx, "run-1", results))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, runs)

	recs, err := s.Results(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "heads", recs[0].Query)
	assert.InDelta(t, 0.5, recs[0].Probability, 1e-12)
	assert.Equal(t, 3*time.Millisecond, recs[0].Duration)
	assert.Equal(t, "tails", recs[1].Query)
	assert.Equal(t, "broken", recs[2].Program)
	assert.Equal(t, "parse error", recs[2].Error)
	assert.Empty(t, recs[2].Query)
}

func TestSaveBatchDuplicateRun(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	require.NoError(t, s.SaveBatch(ctx, "run-1", nil))
	assert.Error(t, s.SaveBatch(ctx, "run-1", nil))
}

func TestRunBatchWithStore(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	runID, results, err := problog.RunBatch(ctx, []problog.Program{
		{Name: "a", Source: "0.25::a. query(a)."},
		{Name: "b", Source: "0.5::b. 0.5::c. x :- b, c. query(x)."},
	}, problog.BatchOptions{Workers: 2, Sink: s})
	require.NoError(t, err)
	require.Len(t, results, 2)

	recs, err := s.Results(ctx, runID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Program)
	assert.InDelta(t, 0.25, recs[0].Probability, 1e-9)
	assert.Equal(t, "x", recs[1].Query)
	assert.InDelta(t, 0.25, recs[1].Probability, 1e-9)
}
