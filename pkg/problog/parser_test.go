package problog

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clauseStrings(db *ClauseDB) []string {
	out := make([]string, 0, db.Len())
	for _, c := range db.Clauses() {
		out = append(out, c.String())
	}
	return out
}

func TestParse(t *testing.T) {
	src := `
% coins
0.5::heads(C) :- coin(C).
coin(c1). coin(c2).
someHeads :- heads(_).
/* annotated
   disjunction */
0.3::red; 0.7::'dark blue'.
win :- red, \+ someHeads.
total(X) :- X is 1 + 2 * 3.
member(X, [X|_]).
:- initialization(main).
query(someHeads).
`
	db, err := Parse(src)
	require.NoError(t, err)

	kinds := make([]ClauseKind, 0, db.Len())
	for _, c := range db.Clauses() {
		kinds = append(kinds, c.Kind)
	}
	want := []ClauseKind{KindRule, KindFact, KindFact, KindRule, KindDisjunction, KindRule, KindRule, KindFact, KindFact}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("clause kinds mismatch (-want +got):\n%s", diff)
	}

	got := clauseStrings(db)
	assert.Equal(t, "coin(c1).", got[1])
	assert.Equal(t, "0.3::red; 0.7::'dark blue'.", got[4])
	assert.Equal(t, `win :- red,\+someHeads.`, got[5])
	assert.Equal(t, "query(someHeads).", got[8])

	require.Len(t, db.Directives(), 1)
	assert.Equal(t, "initialization(main)", db.Directives()[0].String())

	for i, c := range db.Clauses() {
		assert.Equal(t, i, c.Index)
	}
}

func TestParseVariablesAreScopedPerClause(t *testing.T) {
	db, err := Parse("p(X, X). q(X).")
	require.NoError(t, err)
	p := db.Clauses()[0].Heads[0].Term.(*Compound)
	q := db.Clauses()[1].Heads[0].Term.(*Compound)
	assert.Same(t, p.Arg(0), p.Arg(1))
	assert.False(t, p.Arg(0).Equal(q.Arg(0)))
}

func TestParseTerm(t *testing.T) {
	term, err := ParseTerm("path(a, X).")
	require.NoError(t, err)
	c, ok := term.(*Compound)
	require.True(t, ok)
	assert.Equal(t, "path", c.Functor())
	assert.True(t, c.Arg(1).IsVar())

	term, err = ParseTerm("[1, 2 | T]")
	require.NoError(t, err)
	assert.Equal(t, "[1,2|", term.String()[:5])
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"a :- .",
		"a(b",
		"0.5::a ; b.",
		"3.",
		"a :- b",
		"'unterminated.",
		"/* open comment",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			var perr *ParseError
			if errors.As(err, &perr) {
				assert.Positive(t, perr.Line)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidDeclaration)
		})
	}
}
