package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flemzord/runstash/internal/config"
	"github.com/flemzord/runstash/pkg/app"
)

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				path = resolved
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%s)\n", path)
			fmt.Fprintf(out, "  identity:    %s\n", cfg.Identity)
			fmt.Fprintf(out, "  store:       %s\n", cfg.Store.Driver)
			fmt.Fprintf(out, "  entry point: %s every %s (max runtime %s)\n",
				cfg.Resume.EntryPoint, cfg.Resume.Delay, cfg.Resume.MaxRuntime)
			fmt.Fprintf(out, "  keys:        %v\n", cfg.Resume.Keys)
			return nil
		},
	})
	return cmd
}
