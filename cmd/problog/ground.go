package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitrdm/goproblog/pkg/problog"
)

func newGroundCmd(a *app) *cobra.Command {
	var (
		formula bool
		stats   bool
	)
	cmd := &cobra.Command{
		Use:   "ground MODEL",
		Short: "Print the ground program",
		Long: `Grounds MODEL, breaks cycles and prints the ground program as clauses.
With --formula the raw formula is printed node by node instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := loadModel(args[0])
			if err != nil {
				return err
			}
			f, err := a.engine().GroundAll(db, nil)
			if err != nil {
				return err
			}
			if formula {
				fmt.Fprint(a.out, f.String())
			} else {
				if f, err = problog.BreakCycles(f); err != nil {
					return err
				}
				for view := range f.EnumClauses() {
					fmt.Fprintln(a.out, view.String())
				}
				for _, l := range f.Labels() {
					fmt.Fprintln(a.out, labelClause(l))
				}
			}
			if stats {
				s := f.Stats()
				fmt.Fprintf(a.out, "%% nodes=%d atoms=%d probabilistic=%d and=%d or=%d\n",
					s.Nodes, s.Atoms, s.Probabilistic, s.Conjunctions, s.Disjunctions)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&formula, "formula", false, "Print the raw formula nodes")
	cmd.Flags().BoolVar(&stats, "stats", false, "Append node counts")
	return cmd
}

// labelClause renders a label as the directive that declares it.
func labelClause(l problog.Label) string {
	switch l.Role {
	case problog.RoleQuery:
		return fmt.Sprintf("query(%s).", l.Name)
	case problog.RoleEvidence, problog.RoleObservation:
		return fmt.Sprintf("%s(%s, %t).", l.Role, l.Name, l.Value)
	default:
		return fmt.Sprintf("%s(%s).", l.Custom, l.Name)
	}
}
