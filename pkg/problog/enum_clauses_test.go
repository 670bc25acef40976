package problog

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enumClauseStrings(t *testing.T, src string, opts ...Option) []string {
	t.Helper()
	db, err := Parse(src)
	require.NoError(t, err)
	raw, err := NewEngine(opts...).GroundAll(db, nil)
	require.NoError(t, err)
	dag, err := BreakCycles(raw)
	require.NoError(t, err)
	var out []string
	for view := range dag.EnumClauses() {
		out = append(out, view.String())
	}
	return out
}

func TestEnumClauses(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "facts and rule",
			src:  `0.3::a. 0.5::b. c :- a, b. query(c).`,
			want: []string{"0.3::a.", "0.5::b.", "c :- a, b."},
		},
		{
			name: "annotated disjunction",
			src:  `0.3::a; 0.4::b. query(a). query(b).`,
			want: []string{"0.3::a; 0.4::b."},
		},
		{
			name: "negated body",
			src:  `0.3::a. c :- \+ a. query(c).`,
			want: []string{"0.3::a.", `c :- \+a.`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, enumClauseStrings(t, tt.src))
		})
	}
}

func TestEnumClausesKindsAndIndices(t *testing.T) {
	db, err := Parse(`0.3::a; 0.4::b. 0.5::c. d :- a, c. query(b). query(d).`)
	require.NoError(t, err)
	raw, err := NewEngine().GroundAll(db, nil)
	require.NoError(t, err)
	dag, err := BreakCycles(raw)
	require.NoError(t, err)

	views := slices.Collect(dag.EnumClauses())
	require.NotEmpty(t, views)
	for i, v := range views {
		assert.Equal(t, i, v.Index)
	}
	assert.Equal(t, KindDisjunction, views[0].Kind)
	assert.Len(t, views[0].Heads, 2)
	last := views[len(views)-1]
	assert.Equal(t, KindRule, last.Kind)
	assert.Equal(t, []string{"a", "c"}, last.Body.Atoms())

	t.Run("sequence restarts", func(t *testing.T) {
		assert.Len(t, slices.Collect(dag.EnumClauses()), len(views))
	})

	t.Run("early stop", func(t *testing.T) {
		n := 0
		for range dag.EnumClauses() {
			n++
			break
		}
		assert.Equal(t, 1, n)
	})
}

func TestBodyExpr(t *testing.T) {
	e := AndExpr(LitExpr("a"), OrExpr(LitExpr("b"), NotExpr(LitExpr("c"))), LitExpr("a"))
	assert.Equal(t, `a, (b; \+c), a`, e.String())
	assert.Equal(t, []string{"a", "b", "c"}, e.Atoms())

	t.Run("eval", func(t *testing.T) {
		v, err := e.Eval(map[string]bool{"a": true, "b": false, "c": false})
		require.NoError(t, err)
		assert.True(t, v)

		v, err = e.Eval(map[string]bool{"a": false})
		require.NoError(t, err)
		assert.False(t, v)
	})

	t.Run("unknown atom", func(t *testing.T) {
		_, err := e.Eval(map[string]bool{"a": true})
		assert.ErrorIs(t, err, ErrBodyNotBoolean)
	})

	t.Run("constants", func(t *testing.T) {
		v, err := (&BodyExpr{Op: BodyTrue}).Eval(nil)
		require.NoError(t, err)
		assert.True(t, v)
		assert.Equal(t, "fail", (&BodyExpr{Op: BodyFalse}).String())
	})
}
