package app

import (
	"context"
	"errors"
	"time"

	"github.com/flemzord/runstash/internal/dispatch"
	"github.com/flemzord/runstash/internal/gateway"
)

const shutdownTimeout = 30 * time.Second

// Serve runs the timer dispatcher, and the gateway when a bind address is
// configured, until ctx is cancelled. Entry points fired by the dispatcher
// receive a context carrying a.
func (a *App) Serve(ctx context.Context) error {
	d := dispatch.New(a.Host, dispatch.Config{
		PollInterval: a.Config.Host.PollInterval,
		Logger:       a.Logger,
		Metrics:      a.Metrics,
		Context:      NewContext(context.WithoutCancel(ctx), a),
	})

	var gw *gateway.Gateway
	if bind := a.Config.Gateway.Bind; bind != "" {
		var err error
		gw, err = gateway.New(gateway.Config{
			Bind:        bind,
			BearerToken: a.Config.Gateway.BearerToken,
		}, gateway.Deps{
			State:    a.Store,
			Timers:   a.Scheduler,
			Pinger:   a,
			Gatherer: a.Registry,
			Logger:   a.Logger,
		})
		if err != nil {
			return err
		}
		if err := gw.Start(); err != nil {
			return err
		}
	}

	if err := d.Start(); err != nil {
		if gw != nil {
			_ = gw.Stop(context.Background())
		}
		return err
	}
	a.Logger.Info("app: serving",
		"poll_interval", a.Config.Host.PollInterval,
		"gateway", a.Config.Gateway.Bind,
	)

	<-ctx.Done()
	a.Logger.Info("app: shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if gw != nil {
		errs = append(errs, gw.Stop(stopCtx))
	}
	errs = append(errs, d.Stop(stopCtx))
	a.Logger.Info("app: shutdown complete")
	return errors.Join(errs...)
}
