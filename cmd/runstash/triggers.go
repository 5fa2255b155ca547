package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/runstash/internal/trigger"
)

func triggersCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Inspect, arm or clear resume timers",
	}
	cmd.AddCommand(triggersListCmd(g), triggersClearCmd(g), triggersAddCmd(g))
	return cmd
}

func triggersListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending timers in both scopes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeApp, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeApp()

			timers, err := a.Scheduler.Pending(cmd.Context())
			out := cmd.OutOrStdout()
			if len(timers) == 0 && err == nil {
				fmt.Fprintln(out, "No pending timers.")
				return nil
			}
			for _, t := range timers {
				fmt.Fprintf(out, "%s  %-7s  %-20s  %s (in %s)\n",
					t.ID, t.Scope, t.Target,
					t.FireAt.Local().Format(time.DateTime),
					time.Until(t.FireAt).Truncate(time.Second),
				)
			}
			return err
		},
	}
}

func triggersClearCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every pending timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeApp, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeApp()

			n, err := a.Scheduler.ClearAll(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d timer(s).\n", n)
			return err
		},
	}
}

func triggersAddCmd(g *globalFlags) *cobra.Command {
	var (
		after     time.Duration
		inContext bool
	)
	cmd := &cobra.Command{
		Use:   "add <entry-point>",
		Short: "Arm a single timer by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if after < 0 {
				return errors.New("--after must not be negative")
			}
			a, closeApp, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeApp()

			var t trigger.Timer
			if inContext {
				h, ok := a.ContextHost()
				if !ok {
					return fmt.Errorf("store driver %q has no context scope", a.Config.Store.Driver)
				}
				t, err = h.CreateContextTimer(cmd.Context(), args[0], after)
			} else {
				t, err = a.Host.CreateTimer(cmd.Context(), args[0], after)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Armed %s (%s) for %s.\n", t.ID, t.Scope, t.FireAt.Local().Format(time.DateTime))
			return nil
		},
	}
	cmd.Flags().DurationVar(&after, "after", 0, "Delay before the timer fires")
	cmd.Flags().BoolVar(&inContext, "context", false, "Bind the timer to the configured host context")
	return cmd
}
