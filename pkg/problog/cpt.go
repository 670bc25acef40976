package problog

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// CPD is a conditional probability distribution of one network variable:
// a *CPT or an *OrCPT.
type CPD interface {
	Var() string
	isCPD()
}

// CPT is an explicit conditional probability table. Parents are Boolean;
// Rows holds one distribution over Domain per parent assignment, in the
// order false before true with the first parent varying slowest.
type CPT struct {
	Variable string
	Domain   []int
	Parents  []string
	Rows     [][]float64
	// Latent marks an auxiliary choice variable.
	Latent bool
}

func (c *CPT) Var() string { return c.Variable }
func (*CPT) isCPD() {}

// Row returns the distribution for a parent assignment.
func (c *CPT) Row(assignment []bool) []float64 {
	i := 0
	for _, v := range assignment {
		i <<= 1
		if v {
			i |= 1
		}
	}
	return c.Rows[i]
}

// ParentValue is a condition on a categorical parent.
type ParentValue struct {
	Var   string
	Value int
}

func (p ParentValue) String() string { return p.Var + "=" + strconv.Itoa(p.Value) }

// OrCPT defines a Boolean variable that is true iff at least one parent
// takes its listed value.
type OrCPT struct {
	Variable string
	Parents  []ParentValue
}

func (o *OrCPT) Var() string { return o.Variable }
func (*OrCPT) isCPD() {}

// PGM is a Bayesian network built from CPDs. Variables keep the order in
// which they were first added.
type PGM struct {
	order []string
	cpds  map[string]CPD
}

// NewPGM creates an empty network.
func NewPGM() *PGM {
	return &PGM{cpds: make(map[string]CPD)}
}

// Add inserts a CPD. An OrCPT for a variable that already has one extends
// its parents, so a head defined by several clauses is the disjunction of
// their choices. Any other CPD replaces the previous one.
func (p *PGM) Add(c CPD) {
	name := c.Var()
	prev, ok := p.cpds[name]
	if !ok {
		p.order = append(p.order, name)
		p.cpds[name] = c
		return
	}
	po, okPrev := prev.(*OrCPT)
	no, okNew := c.(*OrCPT)
	if okPrev && okNew {
		merged := &OrCPT{Variable: name, Parents: slices.Clone(po.Parents)}
		for _, pv := range no.Parents {
			if !slices.Contains(merged.Parents, pv) {
				merged.Parents = append(merged.Parents, pv)
			}
		}
		p.cpds[name] = merged
		return
	}
	p.cpds[name] = c
}

// CPD returns the distribution of a variable.
func (p *PGM) CPD(name string) (CPD, bool) {
	c, ok := p.cpds[name]
	return c, ok
}

// Variables returns the variable names in insertion order.
func (p *PGM) Variables() []string { return p.order }

// Len returns the number of variables.
func (p *PGM) Len() int { return len(p.order) }

// Card returns the domain size of a variable. Variables without a CPD
// are Boolean.
func (p *PGM) Card(name string) int {
	if c, ok := p.cpds[name].(*CPT); ok {
		return len(c.Domain)
	}
	return 2
}

// Validate checks table shapes and that every row sums to 1.
func (p *PGM) Validate() error {
	for _, name := range p.order {
		c, ok := p.cpds[name].(*CPT)
		if !ok {
			continue
		}
		if want := 1 << len(c.Parents); len(c.Rows) != want {
			return fmt.Errorf("cpt %s: %d rows, want %d", name, len(c.Rows), want)
		}
		for i, row := range c.Rows {
			if len(row) != len(c.Domain) {
				return fmt.Errorf("cpt %s: row %d has %d entries, want %d", name, i, len(row), len(c.Domain))
			}
			sum := 0.0
			for _, v := range row {
				sum += v
			}
			if math.Abs(sum-1) > 1e-9 {
				return fmt.Errorf("cpt %s: row %d sums to %g", name, i, sum)
			}
		}
	}
	return nil
}

// factor is a CPD expanded to a full table over categorical parents.
// Rows are indexed by parent assignment with the first parent varying
// slowest.
type factor struct {
	variable string
	card     int
	parents  []string
	pcards   []int
	rows     [][]float64
	latent   bool
}

func (p *PGM) factor(name string) factor {
	switch c := p.cpds[name].(type) {
	case *CPT:
		f := factor{variable: name, card: len(c.Domain), parents: c.Parents, rows: c.Rows, latent: c.Latent}
		f.pcards = make([]int, len(c.Parents))
		for i := range f.pcards {
			f.pcards[i] = 2
		}
		return f
	case *OrCPT:
		f := factor{variable: name, card: 2}
		for _, pv := range c.Parents {
			if !slices.Contains(f.parents, pv.Var) {
				f.parents = append(f.parents, pv.Var)
				f.pcards = append(f.pcards, p.Card(pv.Var))
			}
		}
		assign := make([]int, len(f.parents))
		for {
			on := false
			for _, pv := range c.Parents {
				if assign[slices.Index(f.parents, pv.Var)] == pv.Value {
					on = true
					break
				}
			}
			if on {
				f.rows = append(f.rows, []float64{0, 1})
			} else {
				f.rows = append(f.rows, []float64{1, 0})
			}
			if !nextAssignment(assign, f.pcards) {
				break
			}
		}
		return f
	}
	return factor{variable: name, card: 2, rows: [][]float64{{0.5, 0.5}}}
}

// nextAssignment advances a mixed-radix counter, last digit fastest.
func nextAssignment(assign, cards []int) bool {
	for i := len(assign) - 1; i >= 0; i-- {
		assign[i]++
		if assign[i] < cards[i] {
			return true
		}
		assign[i] = 0
	}
	return false
}

func rowIndex(assign, cards []int) int {
	i := 0
	for j, v := range assign {
		i = i*cards[j] + v
	}
	return i
}

// topological returns the factors with every parent before its children.
// Undefined parents are skipped; cycles are broken in insertion order.
func (p *PGM) topological() []factor {
	done := make(map[string]bool, len(p.order))
	visiting := make(map[string]bool)
	var out []factor
	var visit func(name string)
	visit = func(name string) {
		if done[name] || visiting[name] {
			return
		}
		if _, ok := p.cpds[name]; !ok {
			return
		}
		visiting[name] = true
		f := p.factor(name)
		for _, par := range f.parents {
			visit(par)
		}
		visiting[name] = false
		done[name] = true
		out = append(out, f)
	}
	for _, name := range p.order {
		visit(name)
	}
	return out
}

// MaxMarginalStates bounds the joint state space explored by Marginals.
const MaxMarginalStates = 1 << 22

// Marginals computes the prior distribution of every variable by
// enumerating the joint state space.
func (p *PGM) Marginals() (map[string][]float64, error) {
	factors := p.topological()
	states := 1
	for _, f := range factors {
		states *= f.card
		if states > MaxMarginalStates {
			return nil, fmt.Errorf("%w: joint state space exceeds %d", ErrModelLimit, MaxMarginalStates)
		}
	}
	pos := make(map[string]int, len(factors))
	for i, f := range factors {
		pos[f.variable] = i
	}
	out := make(map[string][]float64, len(factors))
	for _, f := range factors {
		out[f.variable] = make([]float64, f.card)
	}
	values := make([]int, len(factors))
	var walk func(i int, w float64)
	walk = func(i int, w float64) {
		if w == 0 {
			return
		}
		if i == len(factors) {
			for j, f := range factors {
				out[f.variable][values[j]] += w
			}
			return
		}
		f := factors[i]
		assign := make([]int, len(f.parents))
		for j, par := range f.parents {
			// Parents without a CPD are taken as false.
			if k, ok := pos[par]; ok && k < i {
				assign[j] = values[k]
			}
		}
		row := f.rows[rowIndex(assign, f.pcards)]
		for v, pv := range row {
			values[i] = v
			walk(i+1, w*pv)
		}
	}
	walk(0, 1)
	return out, nil
}

// String renders the network one CPD per block.
func (p *PGM) String() string {
	var sb strings.Builder
	for i, name := range p.order {
		if i > 0 {
			sb.WriteByte('\n')
		}
		switch c := p.cpds[name].(type) {
		case *CPT:
			sb.WriteString("CPT ")
			sb.WriteString(name)
			if c.Latent {
				sb.WriteString(" (latent)")
			}
			sb.WriteString("\n  domain:")
			for _, d := range c.Domain {
				sb.WriteString(" " + strconv.Itoa(d))
			}
			sb.WriteByte('\n')
			if len(c.Parents) == 0 {
				sb.WriteString("  " + formatRow(c.Rows[0]) + "\n")
				continue
			}
			sb.WriteString("  parents: " + strings.Join(c.Parents, ", ") + "\n")
			assign := make([]bool, len(c.Parents))
			for r, row := range c.Rows {
				for j := range assign {
					assign[j] = r&(1<<(len(assign)-1-j)) != 0
				}
				parts := make([]string, len(assign))
				for j, v := range assign {
					parts[j] = c.Parents[j] + "=" + strconv.FormatBool(v)
				}
				sb.WriteString("  " + strings.Join(parts, ",") + ": " + formatRow(row) + "\n")
			}
		case *OrCPT:
			parts := make([]string, len(c.Parents))
			for j, pv := range c.Parents {
				parts[j] = pv.String()
			}
			sb.WriteString("OrCPT " + name + "\n  " + strings.Join(parts, " | ") + "\n")
		}
	}
	return sb.String()
}

func formatRow(row []float64) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = formatProb(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatProb(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
