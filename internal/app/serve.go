package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"currencyconv/internal/api"
)

// Serve runs the HTTP API. Rates are refreshed at start and then once per
// scheduler interval.
func (a *App) Serve(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	session := a.newSession(a.converterOptions())
	defer session.Close()

	deps := api.Deps{Session: session}
	if store != nil {
		deps.Snapshots = store
		deps.Alerts = store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; history endpoints disabled")
	}

	srv, err := api.NewServer(api.Options{
		Addr:             a.Config.Server.Addr,
		Mode:             a.Config.Server.Mode,
		ShutdownTimeout:  a.Config.Server.ShutdownTimeout,
		DefaultPrecision: a.Config.Converter.DefaultPrecision,
	}, deps, a.Logger)
	if err != nil {
		return err
	}

	sched, err := a.newScheduler(true)
	if err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(gctx)
	})
	group.Go(func() error {
		err := sched.Run(gctx, func(tickCtx context.Context, _ time.Time) error {
			session.Refresh(tickCtx)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = group.Wait()
	a.Logger.Info().Msg("http api service stopped")
	return err
}
