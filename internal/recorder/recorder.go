package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"currencyconv/internal/alerting"
	"currencyconv/internal/rates"
	"currencyconv/internal/storage"
)

var hundred = decimal.NewFromInt(100)

// Pair is a source/target unit combination watched for movements.
type Pair struct {
	Source string
	Target string
}

func (p Pair) String() string {
	return p.Source + "/" + p.Target
}

// ParsePair parses "USD/VND".
func ParsePair(raw string) (Pair, error) {
	source, target, found := strings.Cut(strings.TrimSpace(raw), "/")
	source = strings.ToUpper(strings.TrimSpace(source))
	target = strings.ToUpper(strings.TrimSpace(target))
	if !found || source == "" || target == "" {
		return Pair{}, fmt.Errorf("invalid pair %q: expected SOURCE/TARGET", raw)
	}
	return Pair{Source: source, Target: target}, nil
}

// Options configure alert evaluation and locking.
type Options struct {
	AlertsEnabled bool
	ThresholdPct  decimal.Decimal
	Pairs         []Pair
	Channels      []string
	LockKey       int64
}

// Outcome summarises one recorded snapshot.
type Outcome struct {
	SnapshotID int64
	Snapshot   *rates.Snapshot
	Alerts     []alerting.Notification
	// Skipped is set when another instance holds the advisory lock.
	Skipped bool
}

// Recorder fetches rate snapshots, persists them and raises movement alerts.
type Recorder struct {
	source     rates.Source
	store      storage.SnapshotStore
	alertStore storage.AlertStore
	locker     storage.AdvisoryLocker
	notifier   alerting.Notifier
	opts       Options
	logger     zerolog.Logger
	now        func() time.Time
}

// New constructs a Recorder. Any of store, alertStore and notifier may be nil.
// The lock is taken from store when it implements storage.AdvisoryLocker.
func New(opts Options, source rates.Source, store storage.SnapshotStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Recorder {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Recorder{
		source:     source,
		store:      store,
		alertStore: alertStore,
		locker:     locker,
		notifier:   notifier,
		opts:       opts,
		logger:     logger.With().Str("component", "recorder").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Tick is a scheduler.TickFunc recording one snapshot.
func (r *Recorder) Tick(ctx context.Context, slot time.Time) error {
	_, err := r.Record(ctx, slot)
	return err
}

// Record fetches the latest snapshot under the advisory lock, persists it and
// compares every watched pair with the previously stored snapshot.
func (r *Recorder) Record(ctx context.Context, slot time.Time) (Outcome, error) {
	unlock, proceed, err := r.acquireLock(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if !proceed {
		r.logger.Debug().Time("slot", slot).Msg("skip slot because advisory lock held elsewhere")
		return Outcome{Skipped: true}, nil
	}
	if unlock != nil {
		defer unlock()
	}

	snap, err := r.source.Latest(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch latest rates: %w", err)
	}
	if snap == nil {
		return Outcome{}, errors.New("rate source returned no snapshot")
	}

	out := Outcome{Snapshot: snap}
	if r.store == nil {
		r.logger.Info().Time("slot", slot).Str("date", snap.Date).Msg("snapshot fetched; persistence disabled")
		return out, nil
	}

	previous, err := r.previousSnapshot(ctx)
	if err != nil {
		return out, err
	}

	record := storage.RecordFromSnapshot(snap, r.now())
	id, err := r.store.InsertSnapshot(ctx, record)
	if err != nil {
		return out, fmt.Errorf("store snapshot: %w", err)
	}
	out.SnapshotID = id

	r.logger.Info().Time("slot", slot).
		Int64("snapshot_id", id).
		Str("base", snap.Base).
		Str("date", snap.Date).
		Int("units", len(snap.Rates)).
		Msg("snapshot recorded")

	if previous == nil || previous.SourceTS.Equal(record.SourceTS) {
		return out, nil
	}
	out.Alerts = r.evaluate(ctx, id, previous.Snapshot(), snap)
	return out, nil
}

func (r *Recorder) previousSnapshot(ctx context.Context) (*storage.SnapshotRecord, error) {
	prev, err := r.store.LatestSnapshot(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}
	return &prev, nil
}

func (r *Recorder) evaluate(ctx context.Context, snapshotID int64, previous, current *rates.Snapshot) []alerting.Notification {
	if !r.opts.AlertsEnabled || !r.opts.ThresholdPct.IsPositive() {
		return nil
	}

	var fired []alerting.Notification
	for _, pair := range r.opts.Pairs {
		note, ok := EvaluatePair(pair, previous, current, r.opts.ThresholdPct)
		if !ok {
			continue
		}
		note.Channels = r.opts.Channels
		fired = append(fired, note)
		r.dispatch(ctx, snapshotID, note)
	}
	return fired
}

func (r *Recorder) dispatch(ctx context.Context, snapshotID int64, note alerting.Notification) {
	if r.alertStore != nil {
		record := storage.AlertRecord{
			SnapshotID:   &snapshotID,
			Pair:         note.Pair,
			PreviousRate: note.Previous,
			CurrentRate:  note.Current,
			ChangePct:    note.ChangePct,
			ThresholdPct: note.ThresholdPct,
			Direction:    note.Direction,
			Channels:     note.Channels,
		}
		if _, err := r.alertStore.InsertAlert(ctx, record); err != nil {
			r.logger.Error().Err(err).Str("pair", note.Pair).Msg("failed to persist alert record")
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, note); err != nil {
			r.logger.Error().Err(err).Str("pair", note.Pair).Msg("failed to dispatch alert")
		}
	}
}

// ChangePct returns the percentage move from previous to current.
func ChangePct(previous, current decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Div(previous).Sub(decimal.NewFromInt(1)).Mul(hundred)
}

// EvaluatePair reports an alert when the pair's cross rate moved by more than
// thresholdPct between the two snapshots.
func EvaluatePair(pair Pair, previous, current *rates.Snapshot, thresholdPct decimal.Decimal) (alerting.Notification, bool) {
	before := previous.CrossRate(pair.Source, pair.Target)
	after := current.CrossRate(pair.Source, pair.Target)
	change := ChangePct(before, after)
	if !change.Abs().GreaterThan(thresholdPct) {
		return alerting.Notification{}, false
	}

	asOf := current.Timestamp
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return alerting.Notification{
		Pair:         pair.String(),
		Previous:     before,
		Current:      after,
		ChangePct:    change,
		ThresholdPct: thresholdPct,
		Direction:    alerting.Direction(change),
		AsOf:         asOf,
	}, true
}

func (r *Recorder) acquireLock(ctx context.Context) (func(), bool, error) {
	if r.opts.LockKey == 0 || r.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := r.locker.TryAdvisoryLock(ctx, r.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
