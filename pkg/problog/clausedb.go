package problog

import (
	"fmt"
	"strconv"
)

// DefinitionID identifies the clause set of one functor/arity pair.
type DefinitionID int

// DefinitionEntry is one clause usable to resolve a goal of a definition.
// HeadIndex selects the head of an annotated disjunction that matches the
// definition's functor/arity.
type DefinitionEntry struct {
	Clause    *Clause
	HeadIndex int
}

// Head returns the matching head.
func (e DefinitionEntry) Head() Head { return e.Clause.Heads[e.HeadIndex] }

// definition holds the entries and first-argument index of one predicate.
type definition struct {
	functor string
	arity   int
	entries []DefinitionEntry
	// first-argument index: key of an atomic or compound first argument
	// to entry positions; entries whose first argument is a variable are
	// listed in open and match every key.
	index map[string][]int
	open  []int
}

// ClauseDB is an indexed store of program clauses.
// It is written by the parser or loader and read-only during grounding.
//
// Example usage:
//
//	db := NewClauseDB()
//	_ = db.Add(NewFact(NewCompound("edge", NewAtom("a"), NewAtom("b")), NewFloat(0.4)))
//	id, ok := db.Find("edge", 2)
type ClauseDB struct {
	clauses    []*Clause
	defs       []*definition
	byKey      map[string]DefinitionID
	directives []Term
}

// NewClauseDB creates an empty database.
func NewClauseDB() *ClauseDB {
	return &ClauseDB{byKey: make(map[string]DefinitionID)}
}

func indicatorKey(functor string, arity int) string {
	return functor + "/" + strconv.Itoa(arity)
}

// Add appends a clause and indexes each of its heads.
// Returns an error if a head is not callable.
func (db *ClauseDB) Add(c *Clause) error {
	if len(c.Heads) == 0 {
		return fmt.Errorf("clausedb: clause without head")
	}
	for _, h := range c.Heads {
		if _, _, ok := Indicator(h.Term); !ok {
			return fmt.Errorf("clausedb: head %v is not callable", h.Term)
		}
	}
	c.Index = len(db.clauses)
	db.clauses = append(db.clauses, c)
	for i, h := range c.Heads {
		functor, arity, _ := Indicator(h.Term)
		def := db.definitionFor(functor, arity)
		pos := len(def.entries)
		def.entries = append(def.entries, DefinitionEntry{Clause: c, HeadIndex: i})
		if key, ok := firstArgKey(h.Term); ok {
			def.index[key] = append(def.index[key], pos)
		} else {
			def.open = append(def.open, pos)
		}
	}
	return nil
}

// AddDirective stores a ':- Goal.' directive.
func (db *ClauseDB) AddDirective(goal Term) {
	db.directives = append(db.directives, goal)
}

// Directives returns the stored directives in source order.
func (db *ClauseDB) Directives() []Term { return db.directives }

func (db *ClauseDB) definitionFor(functor string, arity int) *definition {
	key := indicatorKey(functor, arity)
	if id, ok := db.byKey[key]; ok {
		return db.defs[id]
	}
	def := &definition{functor: functor, arity: arity, index: make(map[string][]int)}
	db.byKey[key] = DefinitionID(len(db.defs))
	db.defs = append(db.defs, def)
	return def
}

// Find returns the definition of functor/arity, if any clause defines it.
func (db *ClauseDB) Find(functor string, arity int) (DefinitionID, bool) {
	id, ok := db.byKey[indicatorKey(functor, arity)]
	return id, ok
}

// Indicator returns the functor and arity of a definition.
func (db *ClauseDB) Indicator(id DefinitionID) (string, int) {
	def := db.defs[id]
	return def.functor, def.arity
}

// Definition returns every entry of a definition in clause order.
func (db *ClauseDB) Definition(id DefinitionID) []DefinitionEntry {
	return db.defs[id].entries
}

// Candidates returns the entries whose head may unify with goal, using the
// first-argument index when the goal's first argument is bound. Clause
// order is preserved.
func (db *ClauseDB) Candidates(id DefinitionID, goal Term) []DefinitionEntry {
	def := db.defs[id]
	key, ok := firstArgKey(goal)
	if !ok {
		return def.entries
	}
	keyed := def.index[key]
	out := make([]DefinitionEntry, 0, len(keyed)+len(def.open))
	i, j := 0, 0
	for i < len(keyed) || j < len(def.open) {
		if j >= len(def.open) || (i < len(keyed) && keyed[i] < def.open[j]) {
			out = append(out, def.entries[keyed[i]])
			i++
		} else {
			out = append(out, def.entries[def.open[j]])
			j++
		}
	}
	return out
}

// Definitions returns all definition ids in first-definition order.
func (db *ClauseDB) Definitions() []DefinitionID {
	out := make([]DefinitionID, len(db.defs))
	for i := range db.defs {
		out[i] = DefinitionID(i)
	}
	return out
}

// Clauses returns every clause in insertion order.
func (db *ClauseDB) Clauses() []*Clause { return db.clauses }

// Len returns the number of clauses.
func (db *ClauseDB) Len() int { return len(db.clauses) }

func firstArgKey(t Term) (string, bool) {
	c, ok := t.(*Compound)
	if !ok || len(c.args) == 0 {
		return "", false
	}
	switch a := c.args[0].(type) {
	case *Atom, *Number:
		return a.String(), true
	case *Compound:
		return indicatorKey(a.functor, len(a.args)), true
	default:
		return "", false
	}
}
