package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/goproblog/internal/resultstore"
	"github.com/gitrdm/goproblog/pkg/problog"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		store   string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "batch MODEL...",
		Short: "Evaluate several programs concurrently",
		Long: `Evaluates every MODEL independently and prints its query probabilities
under a shared run id. With --store the results are saved to a SQLite
database.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("store") {
				a.cfg.Store.Path = store
			}
			programs := make([]problog.Program, len(args))
			for i, path := range args {
				src, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read model: %w", err)
				}
				programs[i] = problog.Program{Name: filepath.Base(path), Source: string(src)}
			}

			opts := problog.BatchOptions{
				Workers:       workers,
				EngineOptions: a.cfg.EngineOptions(),
				Compiler:      a.cfg.Compiler(a.logger),
				Logger:        a.logger,
			}
			if a.cfg.Store.Path != "" {
				s, err := resultstore.Open(cmd.Context(), a.cfg.Store.Path)
				if err != nil {
					return fmt.Errorf("failed to open store: %w", err)
				}
				defer s.Close()
				opts.Sink = s
			}

			runID, results, err := problog.RunBatch(cmd.Context(), programs, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%% run %s\n", runID)
			var failed []string
			for _, r := range results {
				fmt.Fprintf(a.out, "== %s\n", r.Program)
				if r.Err != nil {
					fmt.Fprintf(a.out, "Error: %v\n", r.Err)
					failed = append(failed, r.Program)
					continue
				}
				for _, q := range r.Queries {
					fmt.Fprintf(a.out, "%s: %s\n", q, formatFloat(r.Probabilities[q]))
				}
			}
			a.logger.Info("batch done", zap.String("run", runID), zap.Int("programs", len(results)), zap.Int("failed", len(failed)))
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d programs failed: %s", len(failed), len(results), strings.Join(failed, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&store, "store", "", "SQLite database for the results")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent programs (0 = number of CPUs)")
	return cmd
}
