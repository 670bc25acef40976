package problog

import (
	"fmt"
	"strings"
)

// CircuitKind tags a circuit node.
type CircuitKind int

const (
	CircuitTrue CircuitKind = iota
	CircuitFalse
	CircuitLit
	CircuitGroupNone
	CircuitAnd
	CircuitOr
	CircuitNot
)

// CircuitNode is one node of a compiled circuit. Children index earlier
// nodes.
type CircuitNode struct {
	Kind CircuitKind
	// Atom and Negated describe a literal.
	Atom    NodeID
	Negated bool
	// Group is the choice group of a CircuitGroupNone literal, which holds
	// when no atom of the group is chosen.
	Group    int
	Children []int
}

// CircuitRoot is the output node of one query.
type CircuitRoot struct {
	Name Term
	Root int
}

// Circuit is the backend-neutral result of compiling an acyclic formula.
// Nodes are topologically ordered; node 0 is true and node 1 is false.
//
// With Exclusive set, choice groups are encoded explicitly: a negative
// literal of a group member weighs One, and the residual probability of a
// group is carried by its CircuitGroupNone literal. Otherwise every atom is
// weighted independently.
type Circuit struct {
	Backend   string
	Nodes     []CircuitNode
	Atoms     map[NodeID]*AtomInfo
	Groups    map[int][]NodeID
	Queries   []CircuitRoot
	Evidence  int
	Exclusive bool
}

func newCircuit(backend string) *Circuit {
	return &Circuit{
		Backend:  backend,
		Nodes:    []CircuitNode{{Kind: CircuitTrue}, {Kind: CircuitFalse}},
		Atoms:    make(map[NodeID]*AtomInfo),
		Groups:   make(map[int][]NodeID),
		Evidence: 0,
	}
}

func (c *Circuit) add(n CircuitNode) int {
	c.Nodes = append(c.Nodes, n)
	return len(c.Nodes) - 1
}

func (c *Circuit) and(children []int) int {
	switch len(children) {
	case 0:
		return 0
	case 1:
		return children[0]
	}
	return c.add(CircuitNode{Kind: CircuitAnd, Children: children})
}

func (c *Circuit) or(children []int) int {
	switch len(children) {
	case 0:
		return 1
	case 1:
		return children[0]
	}
	return c.add(CircuitNode{Kind: CircuitOr, Children: children})
}

// Len returns the number of circuit nodes.
func (c *Circuit) Len() int { return len(c.Nodes) }

func (c *Circuit) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "circuit %s: %d nodes\n", c.Backend, len(c.Nodes))
	for _, q := range c.Queries {
		fmt.Fprintf(&sb, "query %s: %d\n", q.Name, q.Root)
	}
	fmt.Fprintf(&sb, "evidence: %d\n", c.Evidence)
	return sb.String()
}

// Compiler turns an acyclic formula into a circuit.
type Compiler interface {
	Compile(dag *Formula) (*Circuit, error)
}

// DirectCompiler takes the formula structure as already compiled: every
// conjunction is assumed decomposable and every disjunction deterministic.
// Results are exact when the program satisfies this, for instance when no
// atom is shared between alternatives of a disjunction.
type DirectCompiler struct{}

// Compile builds a circuit mirroring the formula nodes reachable from the
// query and evidence labels.
func (DirectCompiler) Compile(dag *Formula) (*Circuit, error) {
	c := newCircuit("direct")
	index := map[NodeID]int{0: 0}
	var visit func(id NodeID) int
	visit = func(id NodeID) int {
		if i, ok := index[id]; ok {
			return i
		}
		n := &dag.nodes[id]
		var i int
		switch n.Kind {
		case NodeAtom:
			c.Atoms[id] = n.Atom
			if n.Atom.Group != NoGroup {
				c.Groups[n.Atom.Group] = dag.groups[n.Atom.Group].Atoms
			}
			i = c.add(CircuitNode{Kind: CircuitLit, Atom: id})
		default:
			kids := make([]int, len(n.Children))
			for j, ch := range n.Children {
				kids[j] = c.ref(visit, ch)
			}
			if n.Kind == NodeAnd {
				i = c.and(kids)
			} else {
				i = c.or(kids)
			}
		}
		index[id] = i
		return i
	}
	evidence := make([]int, 0)
	for _, l := range dag.Evidence() {
		evidence = append(evidence, c.ref(visit, l.Condition()))
	}
	c.Evidence = c.and(evidence)
	for _, q := range dag.Queries() {
		root := c.ref(visit, q.Ref)
		if c.Evidence != 0 {
			root = c.and([]int{root, c.Evidence})
		}
		c.Queries = append(c.Queries, CircuitRoot{Name: q.Name, Root: root})
	}
	return c, nil
}

// ref returns the circuit node of a signed reference. Negated atoms become
// negative literals, other negations a CircuitNot node.
func (c *Circuit) ref(visit func(NodeID) int, r Ref) int {
	switch r {
	case True:
		return 0
	case False:
		return 1
	}
	i := visit(r.Node())
	if !r.Negated() {
		return i
	}
	if n := c.Nodes[i]; n.Kind == CircuitLit {
		return c.add(CircuitNode{Kind: CircuitLit, Atom: n.Atom, Negated: true})
	}
	return c.add(CircuitNode{Kind: CircuitNot, Children: []int{i}})
}

// Evaluate computes the weight of every query of c, normalised by the
// weight of the evidence. Atom weights come from the annotations through
// sr.Value, which maps a missing annotation to One; weights overrides them
// by atom name.
//
// Every node is evaluated once. Zero-weight evidence yields
// ErrInconsistentEvidence.
func Evaluate[W any](c *Circuit, sr Semiring[W], weights map[string]W) (map[string]W, error) {
	pos := make(map[NodeID]W, len(c.Atoms))
	neg := make(map[NodeID]W, len(c.Atoms))
	for id, a := range c.Atoms {
		w, ok := weights[a.Name.String()]
		if !ok {
			var err error
			if w, err = sr.Value(a.Probability); err != nil {
				return nil, fmt.Errorf("atom %s: %w", a.Name, err)
			}
		}
		switch {
		case !a.IsProbabilistic():
			pos[id], neg[id] = w, sr.Zero()
		case c.Exclusive && a.Group != NoGroup:
			pos[id], neg[id] = w, sr.One()
		default:
			pos[id], neg[id] = w, sr.Negate(w)
		}
	}

	vals := make([]W, len(c.Nodes))
	for i, n := range c.Nodes {
		switch n.Kind {
		case CircuitTrue:
			vals[i] = sr.One()
		case CircuitFalse:
			vals[i] = sr.Zero()
		case CircuitLit:
			if n.Negated {
				vals[i] = neg[n.Atom]
			} else {
				vals[i] = pos[n.Atom]
			}
		case CircuitGroupNone:
			sum := sr.Zero()
			for _, m := range c.Groups[n.Group] {
				sum = sr.Plus(sum, pos[m])
			}
			vals[i] = sr.Negate(sum)
		case CircuitAnd:
			v := sr.One()
			for _, ch := range n.Children {
				v = sr.Times(v, vals[ch])
			}
			vals[i] = v
		case CircuitOr:
			v := sr.Zero()
			for _, ch := range n.Children {
				v = sr.Plus(v, vals[ch])
			}
			vals[i] = v
		case CircuitNot:
			vals[i] = sr.Negate(vals[n.Children[0]])
		}
	}

	z := vals[c.Evidence]
	if sr.IsZero(z) {
		return nil, fmt.Errorf("%w: evidence has zero weight", ErrInconsistentEvidence)
	}
	out := make(map[string]W, len(c.Queries))
	for _, q := range c.Queries {
		v := vals[q.Root]
		if c.Evidence != 0 {
			v = sr.Normalize(v, z)
		}
		out[q.Name.String()] = v
	}
	return out, nil
}

// Probabilities evaluates c under the probability semiring.
func (c *Circuit) Probabilities() (map[string]float64, error) {
	return Evaluate[float64](c, ProbabilitySemiring{}, nil)
}

// CompileProgram grounds db with e, breaks cycles and compiles the result.
func CompileProgram(e *Engine, db *ClauseDB, goals *Goals, comp Compiler) (*Circuit, error) {
	raw, err := e.GroundAll(db, goals)
	if err != nil {
		return nil, err
	}
	dag, err := BreakCycles(raw)
	if err != nil {
		return nil, err
	}
	defer StartTimer(e.logger, "compile")()
	return comp.Compile(dag)
}
