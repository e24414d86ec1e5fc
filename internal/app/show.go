package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"currencyconv/internal/recorder"
	"currencyconv/internal/storage"
)

// Show prints recent snapshots, or recent alerts with opts.Alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions, out io.Writer) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show snapshots")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts.Limit, out)
	}

	pairs, err := a.alertPairs()
	if err != nil {
		return err
	}

	snapshots, err := store.ListRecentSnapshots(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return writeSnapshotTable(out, snapshots, pairs)
}

func writeSnapshotTable(out io.Writer, snapshots []storage.SnapshotRecord, pairs []recorder.Pair) error {
	if len(snapshots) == 0 {
		fmt.Fprintln(out, "no snapshots found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"ID", "Source TS (UTC)", "Date", "Base", "Units"}
	for _, pair := range pairs {
		header = append(header, pair.String())
	}
	fmt.Fprintln(writer, strings.Join(header, "\t"))

	for _, rec := range snapshots {
		snap := rec.Snapshot()
		row := []string{
			fmt.Sprint(rec.ID),
			rec.SourceTS.UTC().Format(time.RFC3339),
			rec.AsOfDate,
			rec.Base,
			fmt.Sprint(len(rec.Rates)),
		}
		for _, pair := range pairs {
			row = append(row, snap.CrossRate(pair.Source, pair.Target).StringFixed(4))
		}
		fmt.Fprintln(writer, strings.Join(row, "\t"))
	}

	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, store storage.AlertStore, limit int, out io.Writer) error {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	return writeAlertTable(out, alerts)
}

func writeAlertTable(out io.Writer, alerts []storage.AlertRecord) error {
	if len(alerts) == 0 {
		fmt.Fprintln(out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPair\tPrevious\tCurrent\tChange%\tThreshold%\tDirection\tChannels")
	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.Pair,
			alert.PreviousRate.StringFixed(4),
			alert.CurrentRate.StringFixed(4),
			alert.ChangePct.StringFixed(3),
			alert.ThresholdPct.StringFixed(3),
			alert.Direction,
			sanitizeInline(strings.Join(alert.Channels, ",")),
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
