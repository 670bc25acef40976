package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitrdm/goproblog/pkg/problog"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := problog.GetVersionInfo()
			fmt.Fprintf(a.out, "problog %s (%s)\n", info.Version, info.GoVersion)
			if info.GitCommit != "" {
				fmt.Fprintf(a.out, "commit %s built %s\n", info.GitCommit, info.BuildDate)
			}
			return nil
		},
	}
}
