package rates

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// loggingSource decorates a Source with one log line per call.
type loggingSource struct {
	next   Source
	logger zerolog.Logger
}

// NewLoggingSource returns a Source that logs every fetch made through next.
func NewLoggingSource(logger zerolog.Logger, next Source) Source {
	return &loggingSource{
		next:   next,
		logger: logger.With().Str("component", "rates_source").Logger(),
	}
}

func (s *loggingSource) Latest(ctx context.Context) (snap *Snapshot, err error) {
	defer func(begin time.Time) {
		s.log("latest", begin, snap, err)
	}(time.Now())
	return s.next.Latest(ctx)
}

func (s *loggingSource) Historical(ctx context.Context, day time.Time) (snap *Snapshot, err error) {
	defer func(begin time.Time) {
		s.log("historical", begin, snap, err)
	}(time.Now())
	return s.next.Historical(ctx, day)
}

func (s *loggingSource) log(method string, begin time.Time, snap *Snapshot, err error) {
	if err != nil {
		s.logger.Warn().Err(err).
			Str("method", method).
			Bool("no_connectivity", IsNoConnectivity(err)).
			Dur("took", time.Since(begin)).
			Msg("rate fetch failed")
		return
	}
	if snap == nil {
		s.logger.Warn().Str("method", method).Dur("took", time.Since(begin)).Msg("rate fetch returned no snapshot")
		return
	}
	s.logger.Info().
		Str("method", method).
		Str("base", snap.Base).
		Str("date", snap.Date).
		Int("units", len(snap.Rates)).
		Dur("took", time.Since(begin)).
		Msg("rates fetched")
}
