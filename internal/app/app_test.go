package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currencyconv/internal/config"
	"currencyconv/internal/converter"
	"currencyconv/internal/rates"
	"currencyconv/internal/recorder"
	"currencyconv/internal/storage"
)

type fixedSource struct {
	snap *rates.Snapshot
	err  error
}

func (f *fixedSource) Latest(context.Context) (*rates.Snapshot, error) {
	return f.snap, f.err
}

func (f *fixedSource) Historical(context.Context, time.Time) (*rates.Snapshot, error) {
	return f.snap, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Rates:     config.RatesConfig{RequestTimeout: time.Second},
		Converter: config.ConverterConfig{SourceUnit: "USD", TargetUnit: "VND", DefaultPrecision: 2},
		Scheduler: config.SchedulerConfig{Interval: time.Hour},
		Alerting: config.AlertingConfig{
			ThresholdPct: 1,
			Pairs:        []string{"USD/VND"},
		},
		Export: config.ExportConfig{MaxDataPoints: 10},
	}
}

func testApp(src rates.Source) *App {
	a := NewApp(testConfig(), zerolog.Nop())
	a.source = src
	return a
}

func usdVND() *rates.Snapshot {
	return &rates.Snapshot{
		Base: "USD",
		Date: "2024-05-01",
		Rates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"VND": decimal.NewFromInt(24000),
			"EUR": decimal.RequireFromString("0.8"),
		},
	}
}

func TestAmountKeys(t *testing.T) {
	events, err := amountKeys("1,234.5")
	require.NoError(t, err)
	require.Len(t, events, 6)
	assert.Equal(t, converter.EventDigit, events[0].Kind)
	assert.Equal(t, converter.EventDecimalPoint, events[4].Kind)

	for _, bad := range []string{"", "1.2.3", "12a", "-5"} {
		_, err := amountKeys(bad)
		assert.Error(t, err, bad)
	}
}

func TestConvertPrintsDisplay(t *testing.T) {
	a := testApp(&fixedSource{snap: usdVND()})

	var out bytes.Buffer
	err := a.Convert(context.Background(), ConvertOptions{Amount: "100", Precision: -1}, &out)
	require.NoError(t, err)
	assert.Equal(t, "[ready, 2024-05-01] 100 USD = 2,400,000 VND (precision 2)\n", out.String())

	out.Reset()
	err = a.Convert(context.Background(), ConvertOptions{From: "eur", To: "usd", Amount: "1", Precision: 1}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1 EUR = 1.2 USD (precision 1)")
}

func TestConvertReportsNoConnectivity(t *testing.T) {
	a := testApp(&fixedSource{err: rates.ErrNoConnectivity})

	err := a.Convert(context.Background(), ConvertOptions{Amount: "1", Precision: -1}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRatesUnavailable))
	assert.Contains(t, err.Error(), "no connection")
}

func TestKeypadSession(t *testing.T) {
	a := testApp(&fixedSource{snap: usdVND()})
	in := strings.NewReader(strings.Join([]string{"100", "bogus", "SWAP", "QUIT", "9"}, "\n"))

	var out bytes.Buffer
	require.NoError(t, a.Keypad(context.Background(), in, &out))

	text := out.String()
	assert.Contains(t, text, `error: unknown key "bogus"`)
	assert.Contains(t, text, "100 VND = 0 USD")
	assert.NotContains(t, text, "1,009")
}

func TestKeypadPrintsFinalStateAfterBurst(t *testing.T) {
	a := testApp(&fixedSource{snap: usdVND()})

	lines := []string{"5"}
	for i := 0; i < 150; i++ {
		lines = append(lines, "SWAP")
	}
	lines = append(lines, "DEC")

	var out bytes.Buffer
	require.NoError(t, a.Keypad(context.Background(), strings.NewReader(strings.Join(lines, "\n")), &out))

	printed := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "[ready, 2024-05-01] 5 USD = 120,000 VND (precision 1)", printed[len(printed)-1])
}

func TestConvertRejectsLargePrecision(t *testing.T) {
	a := testApp(&fixedSource{snap: usdVND()})
	err := a.Convert(context.Background(), ConvertOptions{Amount: "1", Precision: 11}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precision")

	var out bytes.Buffer
	require.NoError(t, a.Convert(context.Background(), ConvertOptions{Amount: "1", Precision: 10}, &out))
	assert.Contains(t, out.String(), "(precision 10)")
}

func TestLineEvents(t *testing.T) {
	events, err := lineEvents("to eur")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, converter.EventSetTarget, events[0].Kind)

	events, err = lineEvents("42.5")
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestDownsamplePoints(t *testing.T) {
	points := make([]pairPoint, 10)
	for i := range points {
		points[i] = pairPoint{Rate: decimal.NewFromInt(int64(i))}
	}

	assert.Len(t, downsamplePoints(points, 0), 10)
	assert.Len(t, downsamplePoints(points, 20), 10)

	got := downsamplePoints(points, 4)
	require.Len(t, got, 4)
	assert.True(t, got[0].Rate.Equal(decimal.Zero))
	assert.True(t, got[3].Rate.Equal(decimal.NewFromInt(9)))

	single := downsamplePoints(points, 1)
	require.Len(t, single, 1)
	assert.True(t, single[0].Rate.Equal(decimal.NewFromInt(9)))
}

func snapshotRecords() []storage.SnapshotRecord {
	return []storage.SnapshotRecord{
		{ID: 1, AsOfDate: "2024-05-01", Base: "EUR", SourceTS: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Rates: map[string]decimal.Decimal{"USD": decimal.RequireFromString("1.1"), "VND": decimal.NewFromInt(26400)}},
		{ID: 2, AsOfDate: "2024-05-02", Base: "EUR", SourceTS: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
			Rates: map[string]decimal.Decimal{"USD": decimal.RequireFromString("1.1"), "VND": decimal.NewFromInt(26928)}},
	}
}

func TestWritePointsCSV(t *testing.T) {
	pair := recorder.Pair{Source: "USD", Target: "VND"}
	path := filepath.Join(t.TempDir(), "nested", "usd_vnd.csv")

	require.NoError(t, writePointsCSV(path, pair, pairSeries(snapshotRecords(), pair)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"source_ts", "as_of_date", "pair", "rate"}, rows[0])
	assert.Equal(t, "2024-05-02T00:00:00Z", rows[2][0])
	assert.Equal(t, "USD/VND", rows[2][2])
	assert.Equal(t, "24480", rows[2][3])
}

func TestWritePointsPNGNeedsTwoPoints(t *testing.T) {
	pair := recorder.Pair{Source: "USD", Target: "VND"}
	err := writePointsPNG(filepath.Join(t.TempDir(), "chart.png"), pair, pairSeries(snapshotRecords()[:1], pair))
	assert.Error(t, err)
}

func TestWriteSnapshotTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeSnapshotTable(&out, snapshotRecords(), []recorder.Pair{{Source: "USD", Target: "VND"}}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "USD/VND")
	assert.Contains(t, lines[1], "24000.0000")
	assert.Contains(t, lines[2], "24480.0000")

	out.Reset()
	require.NoError(t, writeSnapshotTable(&out, nil, nil))
	assert.Equal(t, "no snapshots found\n", out.String())
}

func TestWriteAlertTable(t *testing.T) {
	var out bytes.Buffer
	alerts := []storage.AlertRecord{{
		Pair:         "USD/VND",
		PreviousRate: decimal.NewFromInt(24000),
		CurrentRate:  decimal.NewFromInt(24480),
		ChangePct:    decimal.NewFromInt(2),
		ThresholdPct: decimal.NewFromInt(1),
		Direction:    "up",
		Channels:     []string{"telegram"},
	}}
	require.NoError(t, writeAlertTable(&out, alerts))
	assert.Contains(t, out.String(), "2.000")
	assert.Contains(t, out.String(), "telegram")
}

func TestSimulateAlert(t *testing.T) {
	a := testApp(nil)
	err := a.SimulateAlert(context.Background(), "USD/VND", decimal.NewFromInt(24000), decimal.NewFromInt(24480))
	assert.Error(t, err, "alerting disabled")

	a.Config.Alerting.Enabled = true
	err = a.SimulateAlert(context.Background(), "USD/VND", decimal.NewFromInt(24000), decimal.NewFromInt(24100))
	assert.Error(t, err, "below threshold")

	err = a.SimulateAlert(context.Background(), "USD/VND", decimal.NewFromInt(24000), decimal.NewFromInt(24480))
	assert.NoError(t, err)
}

func TestMigrateWithoutDSN(t *testing.T) {
	err := testApp(nil).Migrate()
	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}

func TestBackfillRequiresDatabase(t *testing.T) {
	a := testApp(&fixedSource{snap: usdVND()})
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	err := a.Backfill(context.Background(), BackfillOptions{From: day, To: day.Add(24 * time.Hour)})
	assert.Error(t, err)

	err = a.Backfill(context.Background(), BackfillOptions{From: day, To: day.Add(48 * time.Hour), DryRun: true})
	assert.NoError(t, err)
}
