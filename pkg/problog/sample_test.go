package problog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groundDAG(t *testing.T, src string, opts ...Option) *Formula {
	t.Helper()
	db, err := Parse(src)
	require.NoError(t, err)
	raw, err := NewEngine(opts...).GroundAll(db, nil)
	require.NoError(t, err)
	dag, err := BreakCycles(raw)
	require.NoError(t, err)
	return dag
}

func TestSample(t *testing.T) {
	dag := groundDAG(t, `0.5::a. 0.5::b. c :- a, b. query(a). query(c).`)

	worlds, err := Sample(dag, 50, 7)
	require.NoError(t, err)
	require.Len(t, worlds, 50)
	for _, w := range worlds {
		assert.Len(t, w, 2)
		if w["c"] {
			assert.True(t, w["a"])
		}
	}

	again, err := Sample(dag, 50, 7)
	require.NoError(t, err)
	assert.Equal(t, worlds, again)
}

func TestSampleRejectsEvidence(t *testing.T) {
	dag := groundDAG(t, `0.5::a. 0.5::b. evidence(a, true). query(b). query(a).`)
	worlds, err := Sample(dag, 200, 3)
	require.NoError(t, err)
	assert.Less(t, len(worlds), 200)
	for _, w := range worlds {
		assert.True(t, w["a"])
	}
}

func TestSampleGroupsAreExclusive(t *testing.T) {
	dag := groundDAG(t, `0.5::a; 0.5::b. query(a). query(b).`)
	worlds, err := Sample(dag, 100, 1)
	require.NoError(t, err)
	for _, w := range worlds {
		assert.True(t, w["a"] != w["b"])
	}
}

func TestSampleSymbolicWeight(t *testing.T) {
	dag := groundDAG(t, `p::a. query(a).`)
	_, err := Sample(dag, 1, 1)
	assert.ErrorIs(t, err, ErrUnsupportedWeight)
}

func TestEstimate(t *testing.T) {
	dag := groundDAG(t, `0.5::a. 0.4::b. c :- a; b. query(c). query(a).`)
	opts := EstimateOptions{Trials: 20000, Seed: 11, Workers: 4}

	res, err := Estimate(context.Background(), dag, opts)
	require.NoError(t, err)
	assert.Equal(t, 20000, res.Trials)
	assert.Equal(t, 20000, res.Accepted)
	assert.InDelta(t, 0.7, res.Probabilities["c"], 0.02)
	assert.InDelta(t, 0.5, res.Probabilities["a"], 0.02)

	t.Run("reproducible", func(t *testing.T) {
		again, err := Estimate(context.Background(), dag, opts)
		require.NoError(t, err)
		assert.Equal(t, res, again)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Estimate(ctx, dag, opts)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEstimateWithEvidence(t *testing.T) {
	dag := groundDAG(t, `0.5::a. 0.5::b. c :- a; b. evidence(c, true). query(a).`)
	res, err := Estimate(context.Background(), dag, EstimateOptions{Trials: 30000, Seed: 5, Workers: 3})
	require.NoError(t, err)
	assert.Less(t, res.Accepted, res.Trials)
	assert.InDelta(t, 2.0/3.0, res.Probabilities["a"], 0.02)
}

func TestEstimateImpossibleEvidence(t *testing.T) {
	dag := groundDAG(t, `0.5::a. b :- \+ a. evidence(a, true). evidence(b, true). query(a).`)
	_, err := Estimate(context.Background(), dag, EstimateOptions{Trials: 100, Seed: 1, Workers: 2})
	assert.ErrorIs(t, err, ErrInconsistentEvidence)
}
