package problog

import (
	"context"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu   sync.Mutex
	runs map[string][]BatchResult
}

func (m *memorySink) SaveBatch(_ context.Context, runID string, results []BatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs == nil {
		m.runs = make(map[string][]BatchResult)
	}
	m.runs[runID] = results
	return nil
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.NotEqual(t, a, b)
	_, err := ulid.Parse(a)
	assert.NoError(t, err)
}

func TestRunBatch(t *testing.T) {
	programs := []Program{
		{Name: "fact", Source: `0.25::a. query(a).`},
		{Name: "rule", Source: `0.5::b. 0.5::c. x :- b, c. query(x).`},
		{Name: "syntax", Source: `a :- .`},
		{Name: "undefined", Source: `a :- b. query(a).`},
		{Name: "ad", Source: `0.3::h; 0.6::t. query(h). query(t).`},
	}
	sink := &memorySink{}
	runID, results, err := RunBatch(context.Background(), programs, BatchOptions{Workers: 2, Sink: sink})
	require.NoError(t, err)
	require.Len(t, results, len(programs))

	for i, r := range results {
		assert.Equal(t, runID, r.RunID)
		assert.Equal(t, programs[i].Name, r.Program)
	}
	assert.InDelta(t, 0.25, results[0].Probabilities["a"], 1e-12)
	assert.InDelta(t, 0.25, results[1].Probabilities["x"], 1e-12)
	var perr *ParseError
	assert.ErrorAs(t, results[2].Err, &perr)
	assert.ErrorIs(t, results[3].Err, ErrUndefinedPredicate)
	assert.Equal(t, []string{"h", "t"}, results[4].Queries)
	assert.InDelta(t, 0.6, results[4].Probabilities["t"], 1e-12)

	require.Contains(t, sink.runs, runID)
	assert.Equal(t, results, sink.runs[runID])
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	programs := make([]Program, 64)
	for i := range programs {
		programs[i] = Program{Name: "p", Source: `0.5::a. query(a).`}
	}
	_, _, err := RunBatch(ctx, programs, BatchOptions{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBatchDirectCompiler(t *testing.T) {
	_, results, err := RunBatch(context.Background(),
		[]Program{{Name: "c", Source: `0.5::a. 0.4::b. c :- a, b. query(c).`}},
		BatchOptions{Compiler: DirectCompiler{}})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	assert.InDelta(t, 0.2, results[0].Probabilities["c"], 1e-12)
}
