package main

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gitrdm/goproblog/pkg/problog"
)

func newProbCmd(a *app) *cobra.Command {
	var (
		semiring  string
		backend   string
		propagate bool
		weights   map[string]string
	)
	cmd := &cobra.Command{
		Use:   "prob MODEL",
		Short: "Print the probability of every query",
		Long: `Grounds MODEL, compiles the formula with the configured backend and
prints one "query: value" line per query, conditioned on the evidence.

Examples:
  problog prob coins.pl
  problog prob --semiring log coins.pl
  problog prob --weight heads=0.3 coins.pl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("semiring") {
				a.cfg.Evaluation.Semiring = semiring
			}
			if cmd.Flags().Changed("backend") {
				a.cfg.Evaluation.Backend = backend
			}
			if cmd.Flags().Changed("propagate-evidence") {
				a.cfg.Engine.PropagateEvidence = propagate
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			db, err := loadModel(args[0])
			if err != nil {
				return err
			}
			circ, err := problog.CompileProgram(a.engine(), db, nil, a.cfg.Compiler(a.logger))
			if err != nil {
				return err
			}
			return printWeights(a.out, circ, a.cfg.Evaluation.Semiring, weights)
		},
	}
	cmd.Flags().StringVar(&semiring, "semiring", "prob", "Semiring: prob, log or symbolic")
	cmd.Flags().StringVar(&backend, "backend", "enum", "Circuit backend: enum or direct")
	cmd.Flags().BoolVar(&propagate, "propagate-evidence", false, "Propagate evidence before grounding queries")
	cmd.Flags().StringToStringVar(&weights, "weight", nil, "Override an atom weight (name=value, repeatable)")
	return cmd
}

// printWeights evaluates circ in the named semiring and prints the query
// weights in declaration order.
func printWeights(w io.Writer, circ *problog.Circuit, semiring string, overrides map[string]string) error {
	var format func(name string) string
	switch semiring {
	case "log":
		ws, err := numericOverrides(overrides, math.Log)
		if err != nil {
			return err
		}
		res, err := problog.Evaluate[float64](circ, problog.LogProbabilitySemiring{}, ws)
		if err != nil {
			return err
		}
		format = func(name string) string { return formatFloat(res[name]) }
	case "symbolic":
		ws := make(map[string]*problog.Expr, len(overrides))
		for name, v := range overrides {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				ws[name] = problog.Const(f)
			} else {
				ws[name] = problog.Param(v)
			}
		}
		res, err := problog.Evaluate[*problog.Expr](circ, problog.SymbolicSemiring{}, ws)
		if err != nil {
			return err
		}
		format = func(name string) string { return res[name].String() }
	default:
		ws, err := numericOverrides(overrides, func(p float64) float64 { return p })
		if err != nil {
			return err
		}
		res, err := problog.Evaluate[float64](circ, problog.ProbabilitySemiring{}, ws)
		if err != nil {
			return err
		}
		format = func(name string) string { return formatFloat(res[name]) }
	}
	for _, q := range circ.Queries {
		name := q.Name.String()
		fmt.Fprintf(w, "%s: %s\n", name, format(name))
	}
	return nil
}

func numericOverrides(overrides map[string]string, conv func(float64) float64) (map[string]float64, error) {
	if len(overrides) == 0 {
		return nil, nil
	}
	ws := make(map[string]float64, len(overrides))
	for name, v := range overrides {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("weight %s: %w", name, err)
		}
		ws[name] = conv(f)
	}
	return ws, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
