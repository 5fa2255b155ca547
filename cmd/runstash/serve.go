package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/runstash/pkg/app"
)

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Fire due resume timers and serve the status gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, closeApp, err := g.open(ctx, false)
			if err != nil {
				return err
			}
			defer closeApp()

			return a.Serve(ctx)
		},
	}
}

// program adapts App.Serve to the service manager's Start/Stop contract.
type program struct {
	params app.Params
	cancel context.CancelFunc
	done   chan error
}

// Start implements service.Interface. It must not block.
func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.Open(ctx, p.params)
	if err != nil {
		cancel()
		return err
	}

	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := a.Serve(ctx)
		_ = a.Close(context.Background())
		p.done <- err
	}()
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

func newService(g *globalFlags) (service.Service, *program, error) {
	p := g.params()
	args := []string{"service", "run"}
	if p.ConfigPath != "" {
		abs, err := filepath.Abs(p.ConfigPath)
		if err != nil {
			return nil, nil, err
		}
		p.ConfigPath = abs
		args = append(args, "--config", abs)
	}
	if p.DataDir != "" {
		abs, err := filepath.Abs(p.DataDir)
		if err != nil {
			return nil, nil, err
		}
		p.DataDir = abs
		args = append(args, "--data-dir", abs)
	}
	if p.LogLevel != "" {
		args = append(args, "--log-level", p.LogLevel)
	}

	prg := &program{params: p}
	svc, err := service.New(prg, &service.Config{
		Name:        "runstash",
		DisplayName: "runstash",
		Description: "Fires runstash resume timers and serves the status gateway.",
		Arguments:   args,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("service: %w", err)
	}
	return svc, prg, nil
}

func serviceCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage runstash as an OS service",
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the runstash service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, _, err := newService(g)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, _, err := newService(g)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})
	return cmd
}
