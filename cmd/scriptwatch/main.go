package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags for the CLI.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}
	root := &cobra.Command{
		Use:   "scriptwatch",
		Short: "Watch script-interpreter processes and report lifecycle events",
		Long: "scriptwatch polls the host for interpreter processes, resolves each to the\n" +
			"script it runs (including crawler jobs started by spider name), and reports\n" +
			"start/stop transitions with resource metrics to a webhook and an event store.\n" +
			"It runs until SIGINT or SIGTERM.",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMonitor(flags.ConfigPath)
		},
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file")
	return root
}
