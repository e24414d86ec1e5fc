package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"currencyconv/internal/recorder"
	"currencyconv/internal/storage"
)

// defaultExportWindow is used when --from is omitted.
const defaultExportWindow = 90 * 24 * time.Hour

// pairPoint is one cross rate of the exported pair.
type pairPoint struct {
	SourceTS time.Time
	Date     string
	Rate     decimal.Decimal
}

// Export renders a pair's stored history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	pair, err := recorder.ParsePair(opts.Pair)
	if err != nil {
		return err
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	snapshots, err := store.ListSnapshotsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		a.Logger.Info().Str("pair", pair.String()).Msg("no snapshots found for export window")
		return nil
	}

	points := downsamplePoints(pairSeries(snapshots, pair), opts.MaxPoints)
	a.Logger.Info().Str("pair", pair.String()).Int("total", len(snapshots)).Int("exported", len(points)).Msg("exporting pair history")

	if opts.CSVPath != "" {
		if err := writePointsCSV(opts.CSVPath, pair, points); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePointsPNG(opts.PNGPath, pair, points); err != nil {
			return err
		}
	}

	return nil
}

func pairSeries(snapshots []storage.SnapshotRecord, pair recorder.Pair) []pairPoint {
	points := make([]pairPoint, 0, len(snapshots))
	for _, rec := range snapshots {
		points = append(points, pairPoint{
			SourceTS: rec.SourceTS,
			Date:     rec.AsOfDate,
			Rate:     rec.Snapshot().CrossRate(pair.Source, pair.Target),
		})
	}
	return points
}

func downsamplePoints(points []pairPoint, max int) []pairPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	result := make([]pairPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writePointsCSV(path string, pair recorder.Pair, points []pairPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"source_ts", "as_of_date", "pair", "rate"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.SourceTS.UTC().Format(time.RFC3339),
			p.Date,
			pair.String(),
			p.Rate.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePointsPNG(path string, pair recorder.Pair, points []pairPoint) error {
	if len(points) < 2 {
		return errors.New("at least two data points are needed to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.SourceTS
		y[i] = p.Rate.InexactFloat64()
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rate (" + pair.Target + " per " + pair.Source + ")",
			ValueFormatter: rateFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    pair.String(),
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
