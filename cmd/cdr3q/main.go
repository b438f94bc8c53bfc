package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cdr3q/internal/config"
	"cdr3q/internal/logging"
)

var (
	cfgPath  string
	logLevel string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cdr3q",
		Short: "CDR3 selection model",
		Long: `cdr3q builds a length/position/amino-acid selection model from a data set
and a generated set of CDR3 sequences, rejection-samples the generated set into
a post-selection sample and reports generation and post-selection probabilities.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetOutput(cmd.ErrOrStderr())
			return logging.SetLevel(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config path (defaults when empty)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	root.AddCommand(newInitCmd(), newFeaturesCmd(), newRunCmd(), newReportCmd(), newRunsCmd())
	return root
}

// loadConfig reads --config, or the defaults with env overrides when unset.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if cfgPath == "" {
		cfg = config.Default()
		cfg.ResolveEnv()
	} else if cfg, err = config.Load(cfgPath); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
