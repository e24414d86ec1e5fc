package rates

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Snapshot is one fetched rate table. Rates are quoted per unit of Base.
// A snapshot is never mutated after it is built; a refresh replaces it.
type Snapshot struct {
	Base      string
	Date      string
	Timestamp time.Time
	Rates     map[string]decimal.Decimal
}

// Source provides rate snapshots.
type Source interface {
	Latest(ctx context.Context) (*Snapshot, error)
	Historical(ctx context.Context, day time.Time) (*Snapshot, error)
}

// Rate returns the rate for code. Unknown codes, non-positive rates and a nil
// snapshot all yield 1.
func (s *Snapshot) Rate(code string) decimal.Decimal {
	if s == nil {
		return one
	}
	rate, ok := s.Rates[code]
	if !ok || !rate.IsPositive() {
		return one
	}
	return rate
}

// Known reports whether code is the base or has a positive rate.
func (s *Snapshot) Known(code string) bool {
	if s == nil {
		return false
	}
	if code == s.Base {
		return true
	}
	rate, ok := s.Rates[code]
	return ok && rate.IsPositive()
}

// CrossRate returns how many units of to one unit of from buys.
func (s *Snapshot) CrossRate(from, to string) decimal.Decimal {
	return s.Rate(to).Div(s.Rate(from))
}

// Units lists the known currency codes in sorted order.
func (s *Snapshot) Units() []string {
	if s == nil {
		return nil
	}
	units := make([]string, 0, len(s.Rates))
	for code := range s.Rates {
		units = append(units, code)
	}
	sort.Strings(units)
	return units
}
