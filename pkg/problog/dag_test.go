package problog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopFormula builds p :- a. p :- p, b. with p queried.
func loopFormula() (*Formula, Ref) {
	f := NewFormula()
	a := addAtom(f, "a", 0.5)
	b := addAtom(f, "b", 0.5)
	p := f.AddPlaceholder(NewAtom("p"))
	f.AddDisjunct(p, a)
	f.AddDisjunct(p, f.AddAnd(p, b))
	f.AddQuery(NewAtom("p"), p)
	return f, p
}

func singletons(t *testing.T, f *Formula) {
	t.Helper()
	for _, scc := range f.DetectCycles() {
		assert.Len(t, scc, 1)
		assert.False(t, f.selfLoop(scc[0]))
	}
}

func TestDetectCycles(t *testing.T) {
	f, p := loopFormula()
	require.True(t, f.IsCyclic())

	var cyclic [][]NodeID
	for _, scc := range f.DetectCycles() {
		if len(scc) > 1 {
			cyclic = append(cyclic, scc)
		}
	}
	require.Len(t, cyclic, 1)
	assert.Contains(t, cyclic[0], p.Node())

	t.Run("dependencies first", func(t *testing.T) {
		pos := make(map[NodeID]int)
		for i, scc := range f.DetectCycles() {
			for _, id := range scc {
				pos[id] = i
			}
		}
		for id, i := range pos {
			for _, c := range f.Node(id).Children {
				assert.LessOrEqual(t, pos[c.Node()], i)
			}
		}
	})

	t.Run("self loop", func(t *testing.T) {
		g := NewFormula()
		q := g.AddPlaceholder(NewAtom("q"))
		g.AddDisjunct(q, q)
		g.AddDisjunct(q, addAtom(g, "a", 0.5))
		g.AddQuery(NewAtom("q"), q)
		assert.True(t, g.IsCyclic())
	})

	t.Run("acyclic", func(t *testing.T) {
		g := NewFormula()
		a := addAtom(g, "a", 0.5)
		g.AddQuery(NewAtom("x"), g.AddOr(a, addAtom(g, "b", 0.2)))
		assert.False(t, g.IsCyclic())
	})
}

func TestBreakCycles(t *testing.T) {
	raw, _ := loopFormula()
	dag, err := BreakCycles(raw)
	require.NoError(t, err)
	assert.False(t, dag.IsCyclic())
	singletons(t, dag)

	q := dag.Queries()
	require.Len(t, q, 1)
	assert.Equal(t, "p", q[0].Name.String())

	circ, err := EnumCompiler{}.Compile(dag)
	require.NoError(t, err)
	p, err := circ.Probabilities()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p["p"], 1e-9)
}

func TestBreakCyclesCollapsesSingleAnswer(t *testing.T) {
	raw := NewFormula()
	a := addAtom(raw, "a", 0.3)
	p := raw.AddPlaceholder(NewAtom("p"))
	raw.AddDisjunct(p, a)
	raw.AddQuery(NewAtom("p"), p)

	dag, err := BreakCycles(raw)
	require.NoError(t, err)
	ref := dag.Queries()[0].Ref
	assert.Equal(t, NodeAtom, dag.Node(ref.Node()).Kind)
	assert.False(t, ref.Negated())
}

func TestBreakCyclesRejectsNegativeCycle(t *testing.T) {
	raw := NewFormula()
	p := raw.AddPlaceholder(NewAtom("p"))
	raw.AddDisjunct(p, raw.AddAnd(p.Not(), addAtom(raw, "a", 0.5)))
	raw.AddQuery(NewAtom("p"), p)

	_, err := BreakCycles(raw)
	assert.ErrorIs(t, err, ErrCyclicNegation)
}

func TestBreakCyclesGroundedPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want map[string]float64
	}{
		{
			name: "two node loop",
			src: `0.5::edge(1,2). 0.5::edge(2,1). 0.5::edge(2,3).
				path(X,Y) :- edge(X,Y).
				path(X,Y) :- edge(X,Z), path(Z,Y).
				query(path(1,3)).`,
			want: map[string]float64{"path(1,3)": 0.25},
		},
		{
			name: "mutual recursion",
			src: `0.4::a. 0.7::b.
				p :- a.
				p :- q.
				q :- p.
				q :- b.
				query(p). query(q).`,
			want: map[string]float64{"p": 0.82, "q": 0.82},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Parse(tt.src)
			require.NoError(t, err)
			raw, err := NewEngine().GroundAll(db, nil)
			require.NoError(t, err)
			assert.True(t, raw.IsCyclic())

			dag, err := BreakCycles(raw)
			require.NoError(t, err)
			singletons(t, dag)

			circ, err := EnumCompiler{}.Compile(dag)
			require.NoError(t, err)
			got, err := circ.Probabilities()
			require.NoError(t, err)
			require.ElementsMatch(t, keys(tt.want), keys(got))
			for k, v := range tt.want {
				assert.InDelta(t, v, got[k], 1e-9, k)
			}
		})
	}
}
