package problog

// PropagateEvidence pushes the truth values of evidence and observation
// labels through the formula. A conjunction forced true forces its
// children true, a disjunction forced false forces its children false and
// negation flips the value. The result is recorded in the lookup returned
// by ForcedValues, and nodes added afterwards fold forced children to
// constants.
//
// Propagation is idempotent. It returns ErrInconsistentEvidence if a node
// is forced to both values.
func (f *Formula) PropagateEvidence() error {
	type item struct {
		id    NodeID
		value bool
	}
	var work []item
	for _, l := range f.Evidence() {
		cond := l.Condition()
		work = append(work, item{id: cond.Node(), value: !cond.Negated()})
	}
	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]
		if prev, ok := f.forced[it.id]; ok {
			if prev != it.value {
				return groundingErr(ErrInconsistentEvidence, f.termOf(it.id), "node %d forced to both values", it.id)
			}
			continue
		}
		n := &f.nodes[it.id]
		if n.Kind == NodeTrue {
			if !it.value {
				return groundingErr(ErrInconsistentEvidence, nil, "evidence contradicts a deterministic fact")
			}
			continue
		}
		f.forced[it.id] = it.value
		if (n.Kind == NodeAnd && it.value) || (n.Kind == NodeOr && !it.value) {
			for _, c := range n.Children {
				work = append(work, item{id: c.Node(), value: it.value != c.Negated()})
			}
		}
	}
	return nil
}

// termOf returns a printable term for a node, if it has one.
func (f *Formula) termOf(id NodeID) Term {
	n := &f.nodes[id]
	switch {
	case n.Atom != nil:
		return n.Atom.Name
	case n.Name != nil:
		return n.Name
	}
	for _, nr := range f.names {
		if nr.Ref.Node() == id {
			return nr.Name
		}
	}
	return nil
}
