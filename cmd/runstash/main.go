// Package main is the entry point for the runstash CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/runstash/internal/entry"
	_ "github.com/flemzord/runstash/internal/jobs" // registers the reference entry points
	"github.com/flemzord/runstash/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
}

func (g *globalFlags) params() app.Params {
	return app.Params{
		ConfigPath: g.configPath,
		DataDir:    g.dataDir,
		LogLevel:   g.logLevel,
	}
}

// open builds the App for a command and returns a closer for it.
func (g *globalFlags) open(ctx context.Context, force bool) (*app.App, func(), error) {
	p := g.params()
	p.Force = force
	a, err := app.Open(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	return a, func() { _ = a.Close(context.WithoutCancel(ctx)) }, nil
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "runstash",
		Short:         "Checkpoint and resume long-running jobs across execution quotas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "Data directory for the sqlite store")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		versionCmd(),
		runCmd(g),
		serveCmd(g),
		stateCmd(g),
		triggersCmd(g),
		configCmd(g),
		serviceCmd(g),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and registered entry points",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "runstash %s (commit: %s, built: %s)\n", version, commit, date)
			names := entry.Names()
			if len(names) == 0 {
				fmt.Fprintln(out, "\nNo registered entry points.")
				return
			}
			fmt.Fprintln(out, "\nEntry points:")
			for _, name := range names {
				fmt.Fprintf(out, "  %s\n", name)
			}
		},
	}
}
