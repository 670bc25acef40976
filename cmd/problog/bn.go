package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitrdm/goproblog/pkg/problog"
)

func newBNCmd(a *app) *cobra.Command {
	var (
		format       string
		keepAll      bool
		hideBuiltins bool
		strict       bool
	)
	cmd := &cobra.Command{
		Use:   "bn MODEL",
		Short: "Translate a program into a Bayesian network",
		Long: `Grounds every clause head of MODEL and writes the equivalent Bayesian
network: one latent choice variable per ground clause and a deterministic
OR table per atom.

Formats: hugin, xdsl, uai08, dot, internal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("format") {
				a.cfg.BayesNet.Format = format
			}
			if cmd.Flags().Changed("strict") {
				a.cfg.BayesNet.Strict = strict
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			db, err := loadModel(args[0])
			if err != nil {
				return err
			}
			extra := []problog.Option{problog.WithGroundAllHeads()}
			if cmd.Flags().Changed("keep-all") {
				extra = append(extra, problog.WithKeepAll(keepAll))
			}
			if cmd.Flags().Changed("hide-builtins") {
				extra = append(extra, problog.WithHideBuiltins(hideBuiltins))
			}
			dag, err := groundAcyclic(a.engine(extra...), db)
			if err != nil {
				return err
			}
			pgm, err := problog.CompileBayesNet(dag,
				problog.WithStrictBodies(a.cfg.BayesNet.Strict),
				problog.WithBNLogger(a.logger),
			)
			if err != nil {
				return err
			}
			text, err := exportPGM(pgm, a.cfg.BayesNet.Format)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, text)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "hugin", "Output format: hugin, xdsl, uai08, dot or internal")
	cmd.Flags().BoolVar(&keepAll, "keep-all", false, "Keep deterministic facts as variables")
	cmd.Flags().BoolVar(&hideBuiltins, "hide-builtins", false, "Fold builtin calls to true")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on clause bodies that are not truth values")
	return cmd
}

func exportPGM(pgm *problog.PGM, format string) (string, error) {
	switch format {
	case "hugin":
		return pgm.ToHugin(), nil
	case "xdsl":
		return pgm.ToXDSL()
	case "uai08":
		return pgm.ToUAI08(), nil
	case "dot":
		return pgm.ToDOT(), nil
	case "internal":
		return pgm.String(), nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}
