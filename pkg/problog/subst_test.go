package problog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnify(t *testing.T) {
	t.Run("binds variables both ways", func(t *testing.T) {
		x, y := Fresh("X"), Fresh("Y")
		s, ok := Unify(NewCompound("f", x, NewAtom("b")), NewCompound("f", NewAtom("a"), y), NewSubstitution())
		require.True(t, ok)
		assert.Equal(t, "a", s.Walk(x).String())
		assert.Equal(t, "b", s.Walk(y).String())
	})

	t.Run("shared variable must agree", func(t *testing.T) {
		x := Fresh("X")
		_, ok := Unify(NewCompound("f", x, x), NewCompound("f", NewAtom("a"), NewAtom("b")), NewSubstitution())
		assert.False(t, ok)
	})

	t.Run("failure leaves the input untouched", func(t *testing.T) {
		x := Fresh("X")
		empty := NewSubstitution()
		s, ok := Unify(NewCompound("f", x, NewAtom("a")), NewCompound("f", NewInt(1), NewAtom("b")), empty)
		assert.False(t, ok)
		assert.Same(t, empty, s)
		assert.Equal(t, 0, empty.Size())
	})

	t.Run("functor and arity must match", func(t *testing.T) {
		_, ok := Unify(NewCompound("f", NewAtom("a")), NewCompound("g", NewAtom("a")), NewSubstitution())
		assert.False(t, ok)
		_, ok = Unify(NewCompound("f", NewAtom("a")), NewCompound("f", NewAtom("a"), NewAtom("b")), NewSubstitution())
		assert.False(t, ok)
	})

	t.Run("numbers keep their kind", func(t *testing.T) {
		_, ok := Unify(NewInt(1), NewFloat(1), NewSubstitution())
		assert.False(t, ok)
	})

	t.Run("variable with itself", func(t *testing.T) {
		x := Fresh("X")
		s, ok := Unify(x, x, NewSubstitution())
		require.True(t, ok)
		assert.Equal(t, 0, s.Size())
	})
}

func TestSubstitutionIsPersistent(t *testing.T) {
	x := Fresh("X")
	s0 := NewSubstitution()
	s1 := s0.Bind(x, NewAtom("a"))
	assert.Nil(t, s0.Lookup(x))
	assert.Equal(t, "a", s1.Lookup(x).String())
}

func TestResolve(t *testing.T) {
	x, y := Fresh("X"), Fresh("Y")
	s := NewSubstitution().Bind(x, List(y, NewInt(2))).Bind(y, NewInt(1))
	got := s.Resolve(NewCompound("p", x))
	assert.Equal(t, "p([1,2])", got.String())
	assert.True(t, IsGround(got))
	assert.False(t, IsGround(NewCompound("p", x)))
}

func TestRename(t *testing.T) {
	x := Fresh("X")
	varMap := make(map[int64]*Var)
	head := Rename(NewCompound("p", x, x), varMap)
	body := Rename(NewCompound("q", x), varMap)

	hc := head.(*Compound)
	bc := body.(*Compound)
	assert.Same(t, hc.Arg(0), hc.Arg(1))
	assert.Same(t, hc.Arg(0), bc.Arg(0))
	assert.False(t, hc.Arg(0).Equal(x))
}

func TestVariantKey(t *testing.T) {
	x, y := Fresh("X"), Fresh("Y")
	assert.Equal(t, "path(X0,a,X0)", VariantKey(NewCompound("path", x, NewAtom("a"), x)))
	assert.Equal(t,
		VariantKey(NewCompound("p", x, y)),
		VariantKey(NewCompound("p", y, x)),
	)
	assert.NotEqual(t,
		VariantKey(NewCompound("p", x, x)),
		VariantKey(NewCompound("p", x, y)),
	)
}
