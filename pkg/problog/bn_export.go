package problog

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// ToDOT renders the network structure in Graphviz syntax. Latent choice
// variables are drawn dashed.
func (p *PGM) ToDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph bayesnet {\n")
	for _, f := range p.topological() {
		style := ""
		if f.latent {
			style = ", style=dashed"
		}
		fmt.Fprintf(&sb, "  %s [label=%s%s];\n", strconv.Quote(f.variable), strconv.Quote(f.variable), style)
	}
	for _, f := range p.topological() {
		for _, par := range f.parents {
			fmt.Fprintf(&sb, "  %s -> %s;\n", strconv.Quote(par), strconv.Quote(f.variable))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

// ToUAI08 renders the network in the UAI 2008 evaluation format. Variables
// are numbered in topological order; each function scope lists the parents
// followed by the variable.
func (p *PGM) ToUAI08() string {
	factors := p.topological()
	index := make(map[string]int, len(factors))
	for i, f := range factors {
		index[f.variable] = i
	}
	var sb strings.Builder
	sb.WriteString("BAYES\n")
	fmt.Fprintf(&sb, "%d\n", len(factors))
	cards := make([]string, len(factors))
	for i, f := range factors {
		cards[i] = strconv.Itoa(f.card)
	}
	sb.WriteString(strings.Join(cards, " ") + "\n")
	fmt.Fprintf(&sb, "%d\n", len(factors))
	for _, f := range factors {
		scope := []string{strconv.Itoa(len(f.parents) + 1)}
		for _, par := range f.parents {
			scope = append(scope, strconv.Itoa(index[par]))
		}
		scope = append(scope, strconv.Itoa(index[f.variable]))
		sb.WriteString(strings.Join(scope, " ") + "\n")
	}
	for _, f := range factors {
		sb.WriteByte('\n')
		fmt.Fprintf(&sb, "%d\n", len(f.rows)*f.card)
		for _, row := range f.rows {
			parts := make([]string, len(row))
			for i, v := range row {
				parts[i] = formatProb(v)
			}
			sb.WriteString(" " + strings.Join(parts, " ") + "\n")
		}
	}
	return sb.String()
}

func stateNames(f factor) []string {
	if f.latent || f.card != 2 {
		out := make([]string, f.card)
		for i := range out {
			out[i] = strconv.Itoa(i)
		}
		return out
	}
	return []string{"false", "true"}
}

// ToHugin renders the network in the Hugin .net format.
func (p *PGM) ToHugin() string {
	factors := p.topological()
	var sb strings.Builder
	sb.WriteString("net\n{\n}\n")
	for _, f := range factors {
		states := stateNames(f)
		for i, s := range states {
			states[i] = strconv.Quote(s)
		}
		fmt.Fprintf(&sb, "node %s\n{\n  label = %s;\n  states = (%s);\n}\n",
			identifier(f.variable), strconv.Quote(f.variable), strings.Join(states, " "))
	}
	for _, f := range factors {
		fmt.Fprintf(&sb, "potential (%s", identifier(f.variable))
		if len(f.parents) > 0 {
			ids := make([]string, len(f.parents))
			for i, par := range f.parents {
				ids[i] = identifier(par)
			}
			sb.WriteString(" | " + strings.Join(ids, " "))
		}
		sb.WriteString(")\n{\n  data = ")
		writeHuginData(&sb, f, 0, 0)
		sb.WriteString(";\n}\n")
	}
	return sb.String()
}

// writeHuginData writes the table nested by parent, first parent
// outermost.
func writeHuginData(sb *strings.Builder, f factor, depth, offset int) {
	if depth == len(f.parents) {
		parts := make([]string, f.card)
		for i, v := range f.rows[offset] {
			parts[i] = formatProb(v)
		}
		sb.WriteString("(" + strings.Join(parts, " ") + ")")
		return
	}
	sb.WriteByte('(')
	for v := 0; v < f.pcards[depth]; v++ {
		if v > 0 {
			sb.WriteByte(' ')
		}
		writeHuginData(sb, f, depth+1, offset*f.pcards[depth]+v)
	}
	sb.WriteByte(')')
}

type xdslDoc struct {
	XMLName xml.Name   `xml:"smile"`
	Version string     `xml:"version,attr"`
	ID      string     `xml:"id,attr"`
	Samples int        `xml:"numsamples,attr"`
	Nodes   []xdslNode `xml:"nodes>cpt"`
}

type xdslNode struct {
	ID            string      `xml:"id,attr"`
	States        []xdslState `xml:"state"`
	Parents       string      `xml:"parents,omitempty"`
	Probabilities string      `xml:"probabilities"`
}

type xdslState struct {
	ID string `xml:"id,attr"`
}

// ToXDSL renders the network in the GeNIe/SMILE XDSL format.
func (p *PGM) ToXDSL() (string, error) {
	doc := xdslDoc{Version: "1.0", ID: "Network", Samples: 1000}
	for _, f := range p.topological() {
		n := xdslNode{ID: identifier(f.variable)}
		for _, s := range stateNames(f) {
			n.States = append(n.States, xdslState{ID: identifier("s_" + s)})
		}
		if len(f.parents) > 0 {
			ids := make([]string, len(f.parents))
			for i, par := range f.parents {
				ids[i] = identifier(par)
			}
			n.Parents = strings.Join(ids, " ")
		}
		var probs []string
		for _, row := range f.rows {
			for _, v := range row {
				probs = append(probs, formatProb(v))
			}
		}
		n.Probabilities = strings.Join(probs, " ")
		doc.Nodes = append(doc.Nodes, n)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("xdsl: %w", err)
	}
	return xml.Header + string(out) + "\n", nil
}

// identifier maps a variable name to [A-Za-z0-9_], starting with a letter.
func identifier(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteString("n")
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "v"
	}
	return sb.String()
}
