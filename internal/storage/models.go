package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"currencyconv/internal/rates"
)

// SnapshotRecord is a persisted rate table.
type SnapshotRecord struct {
	ID        int64
	FetchedAt time.Time
	Base      string
	AsOfDate  string
	SourceTS  time.Time
	Rates     map[string]decimal.Decimal
	CreatedAt time.Time
}

// AlertRecord audits a pair movement alert.
type AlertRecord struct {
	ID           int64
	SnapshotID   *int64
	Pair         string
	PreviousRate decimal.Decimal
	CurrentRate  decimal.Decimal
	ChangePct    decimal.Decimal
	ThresholdPct decimal.Decimal
	Direction    string
	Channels     []string
	CreatedAt    time.Time
}

// RecordFromSnapshot prepares snap for persistence. Snapshots without a
// provider timestamp are keyed by fetchedAt instead.
func RecordFromSnapshot(snap *rates.Snapshot, fetchedAt time.Time) SnapshotRecord {
	sourceTS := snap.Timestamp
	if sourceTS.IsZero() {
		sourceTS = fetchedAt
	}
	return SnapshotRecord{
		FetchedAt: fetchedAt.UTC(),
		Base:      snap.Base,
		AsOfDate:  snap.Date,
		SourceTS:  sourceTS.UTC(),
		Rates:     snap.Rates,
	}
}

// Snapshot converts the record back into a rate table.
func (r SnapshotRecord) Snapshot() *rates.Snapshot {
	return &rates.Snapshot{
		Base:      r.Base,
		Date:      r.AsOfDate,
		Timestamp: r.SourceTS,
		Rates:     r.Rates,
	}
}
