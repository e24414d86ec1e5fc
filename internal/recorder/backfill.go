package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currencyconv/internal/storage"
)

const day = 24 * time.Hour

// BackfillResult counts processed days.
type BackfillResult struct {
	Days   int
	Stored int
	Failed int
}

// ErrEmptyRange is returned when the backfill range contains no whole day.
var ErrEmptyRange = errors.New("backfill range is empty")

// Backfill fetches the historical snapshot for every UTC day in [from, to) and
// persists it unless dryRun is set. Failed days are logged and counted.
func (r *Recorder) Backfill(ctx context.Context, from, to time.Time, dryRun bool) (BackfillResult, error) {
	start := from.UTC().Truncate(day)
	end := to.UTC()
	if !start.Before(end) {
		return BackfillResult{}, ErrEmptyRange
	}
	if !dryRun && r.store == nil {
		return BackfillResult{}, storage.ErrNotConfigured
	}

	var res BackfillResult
	for d := start; d.Before(end); d = d.Add(day) {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		res.Days++

		snap, err := r.source.Historical(ctx, d)
		if err != nil {
			res.Failed++
			r.logger.Error().Err(err).Time("day", d).Msg("historical fetch failed")
			continue
		}
		if snap == nil {
			res.Failed++
			r.logger.Error().Time("day", d).Msg("historical fetch returned no snapshot")
			continue
		}

		if dryRun {
			r.logger.Info().Time("day", d).Str("date", snap.Date).Int("units", len(snap.Rates)).Msg("dry-run: snapshot not stored")
			continue
		}

		record := storage.RecordFromSnapshot(snap, r.now())
		if snap.Timestamp.IsZero() {
			record.SourceTS = d
		}
		if _, err := r.store.InsertSnapshot(ctx, record); err != nil {
			res.Failed++
			r.logger.Error().Err(err).Time("day", d).Msg("store historical snapshot failed")
			continue
		}
		res.Stored++
	}

	r.logger.Info().Int("days", res.Days).Int("stored", res.Stored).Int("failed", res.Failed).Msg("backfill finished")
	if res.Failed > 0 {
		return res, fmt.Errorf("%d of %d days failed to backfill", res.Failed, res.Days)
	}
	return res, nil
}
