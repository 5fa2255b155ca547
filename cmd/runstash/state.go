package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func stateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the persisted checkpoint",
	}
	cmd.AddCommand(stateShowCmd(g), stateResetCmd(g))
	return cmd
}

func stateShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the persisted state and lease",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeApp, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeApp()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "identity: %s\n", a.Store.Identity())
			lease, ok, err := a.Store.CurrentLease(ctx)
			switch {
			case err != nil:
				fmt.Fprintf(out, "lease:    unreadable (%v)\n", err)
			case ok:
				fmt.Fprintf(out, "lease:    %s\n", lease)
			default:
				fmt.Fprintln(out, "lease:    none")
			}

			values, err := a.Store.Snapshot(ctx)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				fmt.Fprintln(out, "\nNo persisted state.")
				return nil
			}
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			fmt.Fprintln(out, "\nState:")
			for _, k := range keys {
				fmt.Fprintf(out, "  %s = %q\n", k, values[k])
			}
			return nil
		},
	}
}

var errAborted = errors.New("aborted")

func stateResetCmd(g *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Irreversibly delete every persisted key, including the lease",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeApp, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeApp()

			if !yes {
				confirmed := false
				err := huh.NewConfirm().
					Title(fmt.Sprintf("Delete all checkpoint state for %q?", a.Store.Identity())).
					Description("A job resumed afterwards starts from scratch.").
					Affirmative("Yes, delete").
					Negative("No").
					Value(&confirmed).
					Run()
				if err != nil {
					return fmt.Errorf("prompt: %w", err)
				}
				if !confirmed {
					return errAborted
				}
			}

			if err := a.Store.ResetAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "State deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
