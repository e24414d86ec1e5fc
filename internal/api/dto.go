package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConvertRequest is the body of POST /api/convert. Amount accepts a JSON
// number or string.
type ConvertRequest struct {
	From      string          `json:"from" binding:"required"`
	To        string          `json:"to" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Precision *int            `json:"precision,omitempty"`
}

// ConvertResponse is the result of a conversion.
type ConvertResponse struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Rate      decimal.Decimal `json:"rate"`
	Converted decimal.Decimal `json:"converted"`
	Display   string          `json:"display"`
	Precision int             `json:"precision"`
	AsOf      string          `json:"as_of"`
}

// RatesResponse describes the snapshot the API currently converts with.
type RatesResponse struct {
	Status    string                     `json:"status"`
	Base      string                     `json:"base,omitempty"`
	Date      string                     `json:"date,omitempty"`
	Timestamp *time.Time                 `json:"timestamp,omitempty"`
	Units     []string                   `json:"units"`
	Rates     map[string]decimal.Decimal `json:"rates,omitempty"`
}

// HistoryPoint is one stored cross rate for a pair.
type HistoryPoint struct {
	SnapshotID int64           `json:"snapshot_id"`
	Date       string          `json:"date"`
	SourceTS   time.Time       `json:"source_ts"`
	Rate       decimal.Decimal `json:"rate"`
}

// AlertResponse renders a stored alert.
type AlertResponse struct {
	ID           int64           `json:"id"`
	Pair         string          `json:"pair"`
	PreviousRate decimal.Decimal `json:"previous_rate"`
	CurrentRate  decimal.Decimal `json:"current_rate"`
	ChangePct    decimal.Decimal `json:"change_pct"`
	ThresholdPct decimal.Decimal `json:"threshold_pct"`
	Direction    string          `json:"direction"`
	CreatedAt    time.Time       `json:"created_at"`
}
