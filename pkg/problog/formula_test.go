package problog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addAtom(f *Formula, name string, p float64) Ref {
	return f.AddAtom(AtomInfo{Key: name, Name: NewAtom(name), Probability: NewFloat(p), Group: NoGroup})
}

func TestRefEncoding(t *testing.T) {
	r := MakeRef(5, false)
	assert.Equal(t, NodeID(5), r.Node())
	assert.False(t, r.Negated())
	assert.True(t, r.Not().Negated())
	assert.Equal(t, r, r.Not().Not())
	assert.Equal(t, False, True.Not())
	assert.True(t, True.IsConstant())
	assert.True(t, False.IsConstant())
	assert.False(t, r.IsConstant())
	assert.Equal(t, "-5", r.Not().String())
	assert.Equal(t, "true", True.String())
}

func TestFormulaHashConsing(t *testing.T) {
	f := NewFormula()
	a := addAtom(f, "a", 0.5)
	b := addAtom(f, "b", 0.5)

	t.Run("atoms dedup by key", func(t *testing.T) {
		assert.Equal(t, a, addAtom(f, "a", 0.5))
	})

	t.Run("child order does not matter", func(t *testing.T) {
		assert.Equal(t, f.AddAnd(a, b), f.AddAnd(b, a))
		assert.Equal(t, f.AddOr(a, b), f.AddOr(b, a, a))
		assert.NotEqual(t, f.AddAnd(a, b), f.AddOr(a, b))
	})

	t.Run("constants fold", func(t *testing.T) {
		assert.Equal(t, a, f.AddAnd(a, True))
		assert.Equal(t, False, f.AddAnd(a, False))
		assert.Equal(t, True, f.AddOr(a, True))
		assert.Equal(t, a, f.AddOr(a, False))
		assert.Equal(t, True, f.AddAnd())
		assert.Equal(t, False, f.AddOr())
	})

	t.Run("complementary children", func(t *testing.T) {
		assert.Equal(t, False, f.AddAnd(a, a.Not()))
		assert.Equal(t, True, f.AddOr(b, b.Not()))
	})

	t.Run("negation allocates nothing", func(t *testing.T) {
		before := f.Len()
		assert.Equal(t, a.Not(), f.AddNot(a))
		assert.Equal(t, before, f.Len())
	})

	t.Run("children precede parents", func(t *testing.T) {
		c := f.AddOr(f.AddAnd(a, b), a.Not())
		for _, ch := range f.Node(c.Node()).Children {
			assert.Less(t, ch.Node(), c.Node())
		}
	})
}

func TestFormulaPlaceholders(t *testing.T) {
	f := NewFormula()
	a := addAtom(f, "a", 0.5)
	ph := f.AddPlaceholder(NewAtom("p"))
	require.True(t, f.Node(ph.Node()).IsPlaceholder())

	assert.True(t, f.AddDisjunct(ph, a))
	assert.False(t, f.AddDisjunct(ph, a))
	assert.False(t, f.AddDisjunct(ph, False))
	assert.True(t, f.AddDisjunct(ph, ph))
	assert.Len(t, f.Node(ph.Node()).Children, 2)

	// placeholders stay outside the content cache
	other := f.AddPlaceholder(NewAtom("q"))
	assert.NotEqual(t, ph, other)

	assert.Panics(t, func() { f.AddDisjunct(a, a) })
}

func TestFormulaNamesAndLabels(t *testing.T) {
	f := NewFormula()
	a := addAtom(f, "a", 0.5)
	b := addAtom(f, "b", 0.5)

	f.AddName(NewAtom("x"), a)
	f.AddName(NewAtom("x"), b)
	got, ok := f.Lookup(NewAtom("x"))
	require.True(t, ok)
	assert.Equal(t, a, got)
	_, ok = f.Lookup(NewAtom("y"))
	assert.False(t, ok)

	f.AddQuery(NewAtom("a"), a)
	f.AddQuery(NewAtom("a"), a)
	f.AddEvidence(NewAtom("b"), b, false)
	f.AddLabel(Label{Role: RoleObservation, Name: NewAtom("a"), Ref: a, Value: true})

	assert.Len(t, f.Queries(), 1)
	ev := f.Evidence()
	require.Len(t, ev, 2)
	assert.Equal(t, RoleEvidence, ev[0].Role)
	assert.Equal(t, b.Not(), ev[0].Condition())
	assert.Equal(t, RoleObservation, ev[1].Role)
	assert.Equal(t, a, ev[1].Condition())
}

func TestFormulaGroups(t *testing.T) {
	f := NewFormula()
	g, created := f.Group("0:a;b", 0)
	require.True(t, created)
	again, created := f.Group("0:a;b", 0)
	assert.False(t, created)
	assert.Equal(t, g, again)

	x := f.AddAtom(AtomInfo{Key: "x", Name: NewAtom("a"), Probability: NewFloat(0.3), Group: g})
	y := f.AddAtom(AtomInfo{Key: "y", Name: NewAtom("b"), Probability: NewFloat(0.4), Group: g, GroupIndex: 1})
	require.Len(t, f.Groups(), 1)
	assert.Equal(t, []NodeID{x.Node(), y.Node()}, f.Groups()[0].Atoms)
}

func TestFormulaChoiceRules(t *testing.T) {
	f := NewFormula()
	body := addAtom(f, "b", 0.5)
	choice := addAtom(f, "c", 0.6)
	conj := f.AddChoiceRule(body, choice)

	atom, ok := f.ChoiceOf(conj.Node())
	require.True(t, ok)
	assert.Equal(t, choice.Node(), atom)
	assert.Equal(t, []Ref{body}, f.ChoiceBodies(choice.Node()))

	// a fact is a choice rule with a true body
	fact := addAtom(f, "d", 0.2)
	assert.Equal(t, fact, f.AddChoiceRule(True, fact))
	assert.Equal(t, []Ref{True}, f.ChoiceBodies(fact.Node()))
}

func TestFormulaStats(t *testing.T) {
	f := NewFormula()
	a := addAtom(f, "a", 0.5)
	b := f.AddAtom(AtomInfo{Key: "b", Name: NewAtom("b"), Group: NoGroup})
	f.AddOr(f.AddAnd(a, b), a.Not())

	s := f.Stats()
	assert.Equal(t, 5, s.Nodes)
	assert.Equal(t, 2, s.Atoms)
	assert.Equal(t, 1, s.Probabilistic)
	assert.Equal(t, 1, s.Conjunctions)
	assert.Equal(t, 1, s.Disjunctions)
	assert.Contains(t, f.String(), "atom(0.5::a)")
}

func TestPropagateEvidence(t *testing.T) {
	f := NewFormula()
	a := addAtom(f, "a", 0.5)
	b := addAtom(f, "b", 0.5)
	c := addAtom(f, "c", 0.5)
	and := f.AddAnd(a, b.Not())
	f.AddEvidence(NewAtom("ab"), and, true)

	require.NoError(t, f.PropagateEvidence())
	forced := f.ForcedValues()
	assert.Equal(t, map[NodeID]bool{and.Node(): true, a.Node(): true, b.Node(): false}, forced)

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, f.PropagateEvidence())
		assert.Equal(t, forced, f.ForcedValues())
	})

	t.Run("new nodes fold forced children", func(t *testing.T) {
		assert.Equal(t, c, f.AddAnd(a, c))
		assert.Equal(t, False, f.AddAnd(b, c))
		v, ok := f.Forced(a.Node())
		assert.True(t, ok)
		assert.True(t, v)
	})

	t.Run("contradiction", func(t *testing.T) {
		g := NewFormula()
		x := addAtom(g, "x", 0.5)
		g.AddEvidence(NewAtom("x"), x, true)
		g.AddLabel(Label{Role: RoleObservation, Name: NewAtom("y"), Ref: x, Value: false})
		assert.ErrorIs(t, g.PropagateEvidence(), ErrInconsistentEvidence)
	})
}

func TestPropagateEvidenceOption(t *testing.T) {
	src := `0.5::a. 0.5::b.
		c :- a, b.
		evidence(c, true).
		query(a).`
	db, err := Parse(src)
	require.NoError(t, err)
	f, err := NewEngine(WithPropagateEvidence(true)).GroundAll(db, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, f.ForcedValues())

	p := probabilities(t, src, WithPropagateEvidence(true))
	assert.InDelta(t, 1, p["a"], 1e-9)
}
