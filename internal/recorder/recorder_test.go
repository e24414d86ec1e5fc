package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currencyconv/internal/alerting"
	"currencyconv/internal/rates"
	"currencyconv/internal/storage"
)

type fakeSource struct {
	latest     *rates.Snapshot
	latestErr  error
	historical map[string]*rates.Snapshot
}

func (f *fakeSource) Latest(context.Context) (*rates.Snapshot, error) {
	return f.latest, f.latestErr
}

func (f *fakeSource) Historical(_ context.Context, d time.Time) (*rates.Snapshot, error) {
	snap, ok := f.historical[d.Format("2006-01-02")]
	if !ok {
		return nil, errors.New("no data for day")
	}
	return snap, nil
}

type memStore struct {
	mu        sync.Mutex
	snapshots []storage.SnapshotRecord
	alerts    []storage.AlertRecord
	lockHeld  bool
	unlocked  int
}

func (m *memStore) InsertSnapshot(_ context.Context, rec storage.SnapshotRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.snapshots) + 1)
	m.snapshots = append(m.snapshots, rec)
	return rec.ID, nil
}

func (m *memStore) LatestSnapshot(context.Context) (storage.SnapshotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return storage.SnapshotRecord{}, storage.ErrNoSnapshot
	}
	return m.snapshots[len(m.snapshots)-1], nil
}

func (m *memStore) ListRecentSnapshots(context.Context, int) ([]storage.SnapshotRecord, error) {
	return m.snapshots, nil
}

func (m *memStore) ListSnapshotsBetween(context.Context, time.Time, time.Time) ([]storage.SnapshotRecord, error) {
	return m.snapshots, nil
}

func (m *memStore) CountSnapshots(context.Context) (int64, error) {
	return int64(len(m.snapshots)), nil
}

func (m *memStore) InsertAlert(_ context.Context, rec storage.AlertRecord) (storage.AlertRecord, error) {
	rec.ID = int64(len(m.alerts) + 1)
	m.alerts = append(m.alerts, rec)
	return rec, nil
}

func (m *memStore) ListRecentAlerts(context.Context, int) ([]storage.AlertRecord, error) {
	return m.alerts, nil
}

func (m *memStore) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	if m.lockHeld {
		return nil, false, nil
	}
	return func() { m.unlocked++ }, true, nil
}

type captureNotifier struct {
	notes []alerting.Notification
}

func (c *captureNotifier) Notify(_ context.Context, note alerting.Notification) error {
	c.notes = append(c.notes, note)
	return nil
}

func snapshotAt(ts int64, vnd string) *rates.Snapshot {
	return &rates.Snapshot{
		Base:      "EUR",
		Date:      time.Unix(ts, 0).UTC().Format("2006-01-02"),
		Timestamp: time.Unix(ts, 0).UTC(),
		Rates: map[string]decimal.Decimal{
			"EUR": decimal.NewFromInt(1),
			"USD": decimal.RequireFromString("1.1"),
			"VND": decimal.RequireFromString(vnd),
		},
	}
}

func newTestRecorder(src rates.Source, store *memStore, notifier alerting.Notifier) *Recorder {
	opts := Options{
		AlertsEnabled: true,
		ThresholdPct:  decimal.NewFromInt(1),
		Pairs:         []Pair{{Source: "USD", Target: "VND"}},
		Channels:      []string{"telegram"},
		LockKey:       42,
	}
	var snapshots storage.SnapshotStore
	var alerts storage.AlertStore
	if store != nil {
		snapshots, alerts = store, store
	}
	return New(opts, src, snapshots, alerts, notifier, zerolog.Nop())
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair(" usd/vnd ")
	require.NoError(t, err)
	assert.Equal(t, Pair{Source: "USD", Target: "VND"}, p)
	assert.Equal(t, "USD/VND", p.String())

	for _, bad := range []string{"", "USD", "/VND", "USD/"} {
		_, err := ParsePair(bad)
		assert.Error(t, err, bad)
	}
}

func TestChangePct(t *testing.T) {
	assert.True(t, ChangePct(decimal.NewFromInt(200), decimal.NewFromInt(210)).Equal(decimal.NewFromInt(5)))
	assert.True(t, ChangePct(decimal.NewFromInt(200), decimal.NewFromInt(190)).Equal(decimal.NewFromInt(-5)))
	assert.True(t, ChangePct(decimal.Zero, decimal.NewFromInt(1)).IsZero())
}

func TestEvaluatePairUsesCrossRate(t *testing.T) {
	prev := snapshotAt(1714521600, "26400") // 24000 VND per USD
	curr := snapshotAt(1714608000, "26928") // 24480 VND per USD
	pair := Pair{Source: "USD", Target: "VND"}

	note, ok := EvaluatePair(pair, prev, curr, decimal.NewFromInt(1))
	require.True(t, ok)
	assert.Equal(t, "USD/VND", note.Pair)
	assert.True(t, note.Previous.Equal(decimal.NewFromInt(24000)), note.Previous.String())
	assert.True(t, note.Current.Equal(decimal.NewFromInt(24480)), note.Current.String())
	assert.Equal(t, "2.000", note.ChangePct.StringFixed(3))
	assert.Equal(t, "up", note.Direction)

	_, ok = EvaluatePair(pair, prev, curr, decimal.NewFromInt(3))
	assert.False(t, ok)
}

func TestRecordStoresAndAlerts(t *testing.T) {
	store := &memStore{}
	notifier := &captureNotifier{}
	src := &fakeSource{latest: snapshotAt(1714521600, "26400")}
	rec := newTestRecorder(src, store, notifier)
	ctx := context.Background()

	first, err := rec.Record(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.SnapshotID)
	assert.Empty(t, first.Alerts, "nothing to compare against on the first snapshot")

	src.latest = snapshotAt(1714608000, "25872") // 23520 VND per USD, -2%
	second, err := rec.Record(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, second.Alerts, 1)
	assert.Equal(t, "down", second.Alerts[0].Direction)
	assert.Equal(t, []string{"telegram"}, second.Alerts[0].Channels)

	require.Len(t, store.alerts, 1)
	require.NotNil(t, store.alerts[0].SnapshotID)
	assert.EqualValues(t, 2, *store.alerts[0].SnapshotID)
	assert.Len(t, notifier.notes, 1)
	assert.Equal(t, 2, store.unlocked)
}

func TestRecordSameProviderTimestampDoesNotAlert(t *testing.T) {
	store := &memStore{}
	notifier := &captureNotifier{}
	src := &fakeSource{latest: snapshotAt(1714521600, "26400")}
	rec := newTestRecorder(src, store, notifier)

	_, err := rec.Record(context.Background(), time.Now())
	require.NoError(t, err)
	out, err := rec.Record(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, out.Alerts)
	assert.Empty(t, notifier.notes)
}

func TestRecordSkipsWhenLockHeld(t *testing.T) {
	store := &memStore{lockHeld: true}
	rec := newTestRecorder(&fakeSource{latest: snapshotAt(1714521600, "26400")}, store, nil)

	out, err := rec.Record(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Empty(t, store.snapshots)
}

func TestRecordFetchError(t *testing.T) {
	src := &fakeSource{latestErr: rates.ErrNoConnectivity}
	rec := newTestRecorder(src, &memStore{}, nil)

	err := rec.Tick(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, rates.IsNoConnectivity(err))
}

func TestRecordWithoutStore(t *testing.T) {
	rec := newTestRecorder(&fakeSource{latest: snapshotAt(1714521600, "26400")}, nil, nil)
	out, err := rec.Record(context.Background(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, out.Snapshot)
	assert.Zero(t, out.SnapshotID)
}

func TestBackfill(t *testing.T) {
	store := &memStore{}
	src := &fakeSource{historical: map[string]*rates.Snapshot{
		"2024-05-01": {Base: "EUR", Date: "2024-05-01", Rates: map[string]decimal.Decimal{"USD": decimal.RequireFromString("1.07")}},
		"2024-05-03": {Base: "EUR", Date: "2024-05-03", Rates: map[string]decimal.Decimal{"USD": decimal.RequireFromString("1.08")}},
	}}
	rec := newTestRecorder(src, store, nil)

	from := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	res, err := rec.Backfill(context.Background(), from, to, false)
	require.Error(t, err, "2024-05-02 has no data")
	assert.Equal(t, BackfillResult{Days: 3, Stored: 2, Failed: 1}, res)

	require.Len(t, store.snapshots, 2)
	assert.True(t, store.snapshots[0].SourceTS.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBackfillDryRunAndEmptyRange(t *testing.T) {
	src := &fakeSource{historical: map[string]*rates.Snapshot{
		"2024-05-01": {Base: "EUR", Date: "2024-05-01"},
	}}
	rec := newTestRecorder(src, nil, nil)
	day1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	res, err := rec.Backfill(context.Background(), day1, day1.Add(day), true)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Days: 1}, res)

	_, err = rec.Backfill(context.Background(), day1, day1, true)
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = rec.Backfill(context.Background(), day1, day1.Add(day), false)
	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}
