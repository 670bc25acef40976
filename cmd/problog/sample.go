package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitrdm/goproblog/pkg/problog"
)

func newSampleCmd(a *app) *cobra.Command {
	var (
		n         int
		seed      uint64
		workers   int
		propagate bool
		estimate  bool
	)
	cmd := &cobra.Command{
		Use:   "sample MODEL",
		Short: "Draw possible worlds consistent with the evidence",
		Long: `Draws N possible worlds of MODEL and prints the query values of those
consistent with the evidence, separated by "----". With --estimate the
query frequencies over N trials are printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("samples") {
				a.cfg.Sample.Trials = n
			}
			if cmd.Flags().Changed("seed") {
				a.cfg.Sample.Seed = seed
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Sample.Workers = workers
			}
			if cmd.Flags().Changed("propagate-evidence") {
				a.cfg.Engine.PropagateEvidence = propagate
			}
			db, err := loadModel(args[0])
			if err != nil {
				return err
			}
			dag, err := groundAcyclic(a.engine(), db)
			if err != nil {
				return err
			}
			queries := dag.Queries()

			if estimate {
				res, err := problog.Estimate(cmd.Context(), dag, problog.EstimateOptions{
					Trials:  a.cfg.Sample.Trials,
					Seed:    a.cfg.Sample.Seed,
					Workers: a.cfg.Sample.Workers,
					Logger:  a.logger,
				})
				if err != nil {
					return err
				}
				for _, q := range queries {
					name := q.Name.String()
					fmt.Fprintf(a.out, "%s: %s\n", name, formatFloat(res.Probabilities[name]))
				}
				fmt.Fprintf(a.out, "%% accepted %d of %d\n", res.Accepted, res.Trials)
				return nil
			}

			worlds, err := problog.Sample(dag, a.cfg.Sample.Trials, a.cfg.Sample.Seed)
			if err != nil {
				return err
			}
			for _, w := range worlds {
				for _, q := range queries {
					name := q.Name.String()
					if w[name] {
						fmt.Fprintf(a.out, "%s.\n", name)
					} else {
						fmt.Fprintf(a.out, "\\+%s.\n", name)
					}
				}
				fmt.Fprintln(a.out, "----")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "samples", "n", 1, "Number of samples or trials")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "Estimation workers (0 = number of CPUs)")
	cmd.Flags().BoolVar(&propagate, "propagate-evidence", false, "Propagate evidence before grounding queries")
	cmd.Flags().BoolVar(&estimate, "estimate", false, "Print query frequencies instead of samples")
	return cmd
}
