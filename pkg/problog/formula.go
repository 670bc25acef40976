// Package problog represents ground programs as hash-consed Boolean DAGs.
//
// A Ref packs a node id and a negation bit; TRUE and FALSE are the two
// literals of node 0. Compound nodes are built through a content cache:
// constants are folded, children deduplicated and sorted, so structurally
// equal conjunctions and disjunctions collapse onto one node. Placeholder
// disjunctions stay outside the cache and grow while grounding runs; they
// are the only mutable nodes and the only source of cycles.
package problog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NodeID is the stable identity of a formula node. Ids are assigned
// monotonically from 0; node 0 is the TRUE constant.
type NodeID int

// Ref is a signed reference to a node: id<<1 | negated.
type Ref uint32

// Constant references.
const (
	True  Ref = 0
	False Ref = 1
)

// MakeRef builds a reference to id, negated if neg is set.
func MakeRef(id NodeID, neg bool) Ref {
	r := Ref(id) << 1
	if neg {
		r |= 1
	}
	return r
}

// Node returns the referenced node id.
func (r Ref) Node() NodeID { return NodeID(r >> 1) }

// Negated reports whether the reference carries the negation bit.
func (r Ref) Negated() bool { return r&1 == 1 }

// Not returns the negated reference. Double negation cancels.
func (r Ref) Not() Ref { return r ^ 1 }

// IsConstant reports whether r is True or False.
func (r Ref) IsConstant() bool { return r>>1 == 0 }

func (r Ref) String() string {
	switch r {
	case True:
		return "true"
	case False:
		return "false"
	}
	if r.Negated() {
		return "-" + strconv.Itoa(int(r.Node()))
	}
	return strconv.Itoa(int(r.Node()))
}

// NodeKind tags the node variant. Negation and FALSE are expressed through
// the sign bit of a Ref.
type NodeKind int

const (
	NodeTrue NodeKind = iota
	NodeAtom
	NodeAnd
	NodeOr
)

func (k NodeKind) String() string {
	switch k {
	case NodeTrue:
		return "true"
	case NodeAtom:
		return "atom"
	case NodeAnd:
		return "conj"
	case NodeOr:
		return "disj"
	default:
		return "unknown"
	}
}

// NoGroup marks an atom that is not part of an annotated disjunction.
const NoGroup = -1

// AtomInfo describes an ATOM node.
type AtomInfo struct {
	// Key identifies the atom for deduplication; atoms with equal
	// non-empty keys share one node.
	Key string
	// Name is the ground term the atom stands for.
	Name Term
	// Probability is the annotation; nil marks a deterministic atom.
	Probability Term
	// Group is the annotated-disjunction group, or NoGroup.
	Group int
	// GroupIndex is the head position inside the group.
	GroupIndex int
	// Clause is the source clause index, -1 for builtin atoms.
	Clause int
}

// IsProbabilistic reports whether the atom carries a weight.
func (a *AtomInfo) IsProbabilistic() bool { return a.Probability != nil }

// Node is one formula node.
type Node struct {
	Kind     NodeKind
	Children []Ref
	Atom     *AtomInfo
	// Name is set on placeholder disjunctions created for call answers.
	Name        Term
	placeholder bool
}

// IsPlaceholder reports whether the node is a mutable answer disjunction.
func (n *Node) IsPlaceholder() bool { return n.placeholder }

// ChoiceGroup is the set of mutually exclusive atoms of one ground
// annotated disjunction.
type ChoiceGroup struct {
	ID     int
	Key    string
	Clause int
	Atoms  []NodeID
}

// Role is the kind of a label.
type Role int

const (
	RoleQuery Role = iota
	RoleEvidence
	RoleObservation
	RoleCustom
)

func (r Role) String() string {
	switch r {
	case RoleQuery:
		return "query"
	case RoleEvidence:
		return "evidence"
	case RoleObservation:
		return "observation"
	default:
		return "label"
	}
}

// Label registers a node under a role. Value is the observed truth value
// for evidence and observations and true otherwise. Custom holds the label
// predicate for RoleCustom.
type Label struct {
	Role   Role
	Custom string
	Name   Term
	Ref    Ref
	Value  bool
}

// Condition returns the reference that must hold for the label: Ref for
// positive evidence, its negation for negative evidence.
func (l Label) Condition() Ref {
	if l.Value {
		return l.Ref
	}
	return l.Ref.Not()
}

// NamedRef associates a ground term with a reference.
type NamedRef struct {
	Name Term
	Ref  Ref
}

type choiceRule struct {
	atom NodeID
	body Ref
}

// Formula is a hash-consed Boolean DAG over weighted atoms.
//
// AND/OR nodes are deduplicated on their sorted signed child set; empty
// conjunctions and disjunctions resolve to True and False. Placeholder
// disjunctions are the only mutable nodes and may introduce cycles; use
// BreakCycles to obtain an acyclic formula.
//
// A Formula is not safe for concurrent mutation. Once construction is
// complete it may be read from any number of goroutines.
type Formula struct {
	nodes    []Node
	cache    map[string]NodeID
	atomKeys map[string]NodeID

	groups    []*ChoiceGroup
	groupKeys map[string]int

	// choice conjunction node -> its atom and body
	choiceConj map[NodeID]choiceRule
	// choice atom -> bodies it was derived under
	choiceBodies map[NodeID][]Ref

	names     []NamedRef
	nameIndex map[string]int
	labels    []Label

	forced map[NodeID]bool
}

// NewFormula creates an empty formula holding only the TRUE node.
func NewFormula() *Formula {
	return &Formula{
		nodes:        []Node{{Kind: NodeTrue}},
		cache:        make(map[string]NodeID),
		atomKeys:     make(map[string]NodeID),
		groupKeys:    make(map[string]int),
		choiceConj:   make(map[NodeID]choiceRule),
		choiceBodies: make(map[NodeID][]Ref),
		nameIndex:    make(map[string]int),
		forced:       make(map[NodeID]bool),
	}
}

// Len returns the number of nodes, including the TRUE node.
func (f *Formula) Len() int { return len(f.nodes) }

// Node returns the node with the given id.
func (f *Formula) Node(id NodeID) *Node { return &f.nodes[id] }

// lookup folds a reference whose node has a forced truth value.
func (f *Formula) lookup(r Ref) Ref {
	if len(f.forced) == 0 || r.IsConstant() {
		return r
	}
	v, ok := f.forced[r.Node()]
	if !ok {
		return r
	}
	if v != r.Negated() {
		return True
	}
	return False
}

func (f *Formula) newNode(n Node) Ref {
	id := NodeID(len(f.nodes))
	f.nodes = append(f.nodes, n)
	return MakeRef(id, false)
}

// AddAtom adds a weighted or deterministic atom. An atom with a known key
// returns the existing node.
func (f *Formula) AddAtom(info AtomInfo) Ref {
	if info.Key != "" {
		if id, ok := f.atomKeys[info.Key]; ok {
			return f.lookup(MakeRef(id, false))
		}
	}
	a := info
	r := f.newNode(Node{Kind: NodeAtom, Atom: &a})
	if info.Key != "" {
		f.atomKeys[info.Key] = r.Node()
	}
	if info.Group != NoGroup {
		g := f.groups[info.Group]
		g.Atoms = append(g.Atoms, r.Node())
	}
	return r
}

// Group returns the id of the choice group with the given key, creating
// it on first use. The boolean reports whether the group is new.
func (f *Formula) Group(key string, clause int) (int, bool) {
	if id, ok := f.groupKeys[key]; ok {
		return id, false
	}
	id := len(f.groups)
	f.groups = append(f.groups, &ChoiceGroup{ID: id, Key: key, Clause: clause})
	f.groupKeys[key] = id
	return id, true
}

// Groups returns every choice group in creation order.
func (f *Formula) Groups() []*ChoiceGroup { return f.groups }

// AddAnd adds a conjunction.
func (f *Formula) AddAnd(children ...Ref) Ref {
	return f.addCompound(NodeAnd, children)
}

// AddOr adds a disjunction.
func (f *Formula) AddOr(children ...Ref) Ref {
	return f.addCompound(NodeOr, children)
}

// AddNot negates a reference without allocating a node.
func (f *Formula) AddNot(r Ref) Ref { return r.Not() }

func (f *Formula) addCompound(kind NodeKind, children []Ref) Ref {
	// For AND the absorbing element is False and the neutral one True;
	// for OR it is the other way round.
	absorb, neutral := False, True
	if kind == NodeOr {
		absorb, neutral = True, False
	}
	set := make(map[Ref]struct{}, len(children))
	kids := make([]Ref, 0, len(children))
	for _, c := range children {
		c = f.lookup(c)
		switch {
		case c == absorb:
			return absorb
		case c == neutral:
			continue
		}
		if _, dup := set[c]; dup {
			continue
		}
		if _, opp := set[c.Not()]; opp {
			return absorb
		}
		set[c] = struct{}{}
		kids = append(kids, c)
	}
	switch len(kids) {
	case 0:
		return neutral
	case 1:
		return kids[0]
	}
	sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
	key := contentKey(kind, kids)
	if id, ok := f.cache[key]; ok {
		return MakeRef(id, false)
	}
	r := f.newNode(Node{Kind: kind, Children: kids})
	f.cache[key] = r.Node()
	return r
}

func contentKey(kind NodeKind, kids []Ref) string {
	var sb strings.Builder
	if kind == NodeAnd {
		sb.WriteByte('a')
	} else {
		sb.WriteByte('o')
	}
	for _, k := range kids {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(uint64(k), 36))
	}
	return sb.String()
}

// AddPlaceholder creates an empty mutable disjunction for a call answer.
// It is not entered in the content cache.
func (f *Formula) AddPlaceholder(name Term) Ref {
	return f.newNode(Node{Kind: NodeOr, Name: name, placeholder: true})
}

// AddDisjunct appends child to a placeholder. It reports whether the child
// was new.
func (f *Formula) AddDisjunct(ph Ref, child Ref) bool {
	n := &f.nodes[ph.Node()]
	if !n.placeholder {
		panic(fmt.Sprintf("problog: node %d is not a placeholder", ph.Node()))
	}
	child = f.lookup(child)
	if child == False {
		return false
	}
	if containsRef(n.Children, child) {
		return false
	}
	n.Children = append(n.Children, child)
	return true
}

// AddChoiceRule conjoins body with a choice atom and records the pair, so
// clause enumeration can recover the rule that produced the conjunction.
func (f *Formula) AddChoiceRule(body Ref, choice Ref) Ref {
	r := f.AddAnd(body, choice)
	f.recordChoiceRule(r, choice.Node(), f.lookup(body))
	return r
}

func (f *Formula) recordChoiceRule(conj Ref, atom NodeID, body Ref) {
	if body == False || conj == False {
		return
	}
	if !containsRef(f.choiceBodies[atom], body) {
		f.choiceBodies[atom] = append(f.choiceBodies[atom], body)
	}
	if !conj.Negated() && f.nodes[conj.Node()].Kind == NodeAnd {
		f.choiceConj[conj.Node()] = choiceRule{atom: atom, body: body}
	}
}

func containsRef(refs []Ref, r Ref) bool {
	for _, x := range refs {
		if x == r {
			return true
		}
	}
	return false
}

// ChoiceOf returns the choice atom of a conjunction built by AddChoiceRule.
func (f *Formula) ChoiceOf(id NodeID) (NodeID, bool) {
	rule, ok := f.choiceConj[id]
	return rule.atom, ok
}

// ChoiceBodies returns the bodies under which a choice atom was derived.
// An empty result means the atom was never used in a rule.
func (f *Formula) ChoiceBodies(atom NodeID) []Ref { return f.choiceBodies[atom] }

// AddName registers name for ref. The first registration of a name wins.
func (f *Formula) AddName(name Term, ref Ref) {
	key := name.String()
	if _, ok := f.nameIndex[key]; ok {
		return
	}
	f.nameIndex[key] = len(f.names)
	f.names = append(f.names, NamedRef{Name: name, Ref: ref})
}

// Lookup returns the reference registered for name.
func (f *Formula) Lookup(name Term) (Ref, bool) {
	i, ok := f.nameIndex[name.String()]
	if !ok {
		return False, false
	}
	return f.names[i].Ref, true
}

// Names returns the registered names in registration order.
func (f *Formula) Names() []NamedRef { return f.names }

// AddLabel registers ref under a role. Evidence and observations carry
// their observed value; queries and custom labels pass true.
func (f *Formula) AddLabel(l Label) {
	for _, existing := range f.labels {
		if existing.Role == l.Role && existing.Custom == l.Custom && existing.Name.Equal(l.Name) {
			return
		}
	}
	f.labels = append(f.labels, l)
}

// AddQuery labels ref as a query.
func (f *Formula) AddQuery(name Term, ref Ref) {
	f.AddLabel(Label{Role: RoleQuery, Name: name, Ref: ref, Value: true})
}

// AddEvidence labels ref as evidence with the observed value.
func (f *Formula) AddEvidence(name Term, ref Ref, value bool) {
	f.AddLabel(Label{Role: RoleEvidence, Name: name, Ref: ref, Value: value})
}

// Labels returns every label in registration order.
func (f *Formula) Labels() []Label { return f.labels }

// LabelsOf returns the labels with the given role.
func (f *Formula) LabelsOf(role Role) []Label {
	var out []Label
	for _, l := range f.labels {
		if l.Role == role {
			out = append(out, l)
		}
	}
	return out
}

// Queries returns the query labels.
func (f *Formula) Queries() []Label { return f.LabelsOf(RoleQuery) }

// Evidence returns evidence and observation labels, evidence first.
func (f *Formula) Evidence() []Label {
	return append(f.LabelsOf(RoleEvidence), f.LabelsOf(RoleObservation)...)
}

// Forced returns the truth value evidence propagation assigned to a node.
func (f *Formula) Forced(id NodeID) (value bool, ok bool) {
	value, ok = f.forced[id]
	return value, ok
}

// ForcedValues returns a copy of the evidence propagation lookup.
func (f *Formula) ForcedValues() map[NodeID]bool {
	out := make(map[NodeID]bool, len(f.forced))
	for k, v := range f.forced {
		out[k] = v
	}
	return out
}

// FormulaStats counts nodes by kind.
type FormulaStats struct {
	Nodes         int
	Atoms         int
	Probabilistic int
	Conjunctions  int
	Disjunctions  int
	Groups        int
	Names         int
	Labels        int
}

// Stats returns node counts.
func (f *Formula) Stats() FormulaStats {
	s := FormulaStats{Nodes: len(f.nodes), Groups: len(f.groups), Names: len(f.names), Labels: len(f.labels)}
	for i := range f.nodes {
		switch n := &f.nodes[i]; n.Kind {
		case NodeAtom:
			s.Atoms++
			if n.Atom.IsProbabilistic() {
				s.Probabilistic++
			}
		case NodeAnd:
			s.Conjunctions++
		case NodeOr:
			s.Disjunctions++
		}
	}
	return s
}

// String renders the formula one node per line, followed by names and
// labels.
func (f *Formula) String() string {
	var sb strings.Builder
	for i := 1; i < len(f.nodes); i++ {
		n := &f.nodes[i]
		fmt.Fprintf(&sb, "%d: ", i)
		switch n.Kind {
		case NodeAtom:
			a := n.Atom
			sb.WriteString("atom(")
			if a.Probability != nil {
				sb.WriteString(a.Probability.String())
				sb.WriteString("::")
			}
			sb.WriteString(a.Name.String())
			if a.Group != NoGroup {
				fmt.Fprintf(&sb, ", group=%d", a.Group)
			}
			sb.WriteByte(')')
		case NodeAnd, NodeOr:
			sb.WriteString(n.Kind.String())
			sb.WriteByte('(')
			for j, c := range n.Children {
				if j > 0 {
					sb.WriteByte(',')
				}
				sb.WriteString(c.String())
			}
			sb.WriteByte(')')
			if n.Name != nil {
				sb.WriteString(" ")
				sb.WriteString(n.Name.String())
			}
		}
		sb.WriteByte('\n')
	}
	for _, nr := range f.names {
		fmt.Fprintf(&sb, "name %s: %s\n", nr.Name, nr.Ref)
	}
	for _, l := range f.labels {
		role := l.Role.String()
		if l.Role == RoleCustom {
			role = l.Custom
		}
		if l.Role == RoleEvidence || l.Role == RoleObservation {
			fmt.Fprintf(&sb, "%s %s: %s = %t\n", role, l.Name, l.Ref, l.Value)
		} else {
			fmt.Fprintf(&sb, "%s %s: %s\n", role, l.Name, l.Ref)
		}
	}
	return sb.String()
}
