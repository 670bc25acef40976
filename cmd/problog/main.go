// Command problog grounds and evaluates probabilistic logic programs.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/goproblog/internal/config"
	"github.com/gitrdm/goproblog/internal/logging"
)

// app carries the state shared by the subcommands of one invocation.
type app struct {
	// Global flags
	configPath string
	verbosity  int
	output     string

	cfg    *config.Config
	logger *zap.Logger

	stdout io.Writer
	out    io.Writer
	file   *os.File
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "problog",
		Short: "Ground and evaluate probabilistic logic programs",
		Long: `problog grounds a probabilistic logic program into a propositional
formula and evaluates the probability of its queries given its evidence.

Subcommands also compile the ground program into a Bayesian network,
draw samples and run batches of programs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "", "Write output to file instead of stdout")

	root.AddCommand(newProbCmd(a))
	root.AddCommand(newBNCmd(a))
	root.AddCommand(newGroundCmd(a))
	root.AddCommand(newSampleCmd(a))
	root.AddCommand(newBatchCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

// setup loads the configuration, builds the logger and opens the output.
func (a *app) setup() error {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	a.cfg = cfg

	logger, err := logging.New(logging.Raise(cfg.Logging.Level, a.verbosity), cfg.Logging.JSON)
	if err != nil {
		return err
	}
	a.logger = logger

	if a.output != "" {
		f, err := os.Create(a.output)
		if err != nil {
			return fmt.Errorf("failed to open output: %w", err)
		}
		a.file = f
		a.out = f
	}
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.file != nil {
		a.file.Close()
	}
}

// run executes the command line and returns the process exit code. Errors
// are written to the chosen output.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, out: stdout, logger: zap.NewNop()}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close()

	if err := root.Execute(); err != nil {
		w := a.out
		if a.file == nil {
			w = stderr
		}
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
