package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/runstash/internal/entry"
	"github.com/flemzord/runstash/pkg/app"
)

func runCmd(g *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "run <entry-point>",
		Short: "Invoke an entry point once, as a fired timer would",
		Long: "Invoke an entry point once. SIGINT or SIGTERM checkpoints the job and\n" +
			"schedules its resume instead of losing the progress made so far.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, closeApp, err := g.open(ctx, force)
			if err != nil {
				return err
			}
			defer closeApp()

			return entry.Invoke(app.NewContext(ctx, a), args[0])
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Take over the checkpoint even if another invocation holds it")
	return cmd
}
