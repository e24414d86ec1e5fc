package app

import (
	"context"
	"errors"
	"fmt"

	"currencyconv/internal/storage"
)

// Backfill stores the historical snapshot of every day in the range.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	var store *storage.Store
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
	} else {
		s, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if s == nil {
			return errors.New("database.dsn not configured; cannot backfill")
		}
		if closeStore != nil {
			defer closeStore()
		}
		store = s
	}

	rec, err := a.newRecorder(store, nil)
	if err != nil {
		return err
	}

	res, err := rec.Backfill(ctx, opts.From, opts.To, opts.DryRun)
	if err != nil {
		return fmt.Errorf("backfill %d days (%d stored): %w", res.Days, res.Stored, err)
	}
	return nil
}
