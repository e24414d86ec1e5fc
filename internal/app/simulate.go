package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"currencyconv/internal/rates"
	"currencyconv/internal/recorder"
)

// SimulateAlert 用给定的前后汇率模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, rawPair string, previous, current decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}
	if !previous.IsPositive() || !current.IsPositive() {
		return errors.New("rates must be positive")
	}

	pair, err := recorder.ParsePair(rawPair)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	before := staticSnapshot(pair, previous, now.Add(-a.Config.Scheduler.Interval))
	after := staticSnapshot(pair, current, now)

	threshold := decimal.NewFromFloat(a.Config.Alerting.ThresholdPct)
	note, fired := recorder.EvaluatePair(pair, before, after, threshold)
	if !fired {
		return fmt.Errorf("change of %s%% does not exceed threshold %s%%",
			recorder.ChangePct(previous, current).StringFixed(3), threshold.StringFixed(3))
	}
	note.Channels = a.Config.Alerting.Channels
	note.AdditionalMsg = "(simulated)"

	return a.newNotifier().Notify(ctx, note)
}

// staticSnapshot quotes pair.Target against a pair.Source base.
func staticSnapshot(pair recorder.Pair, rate decimal.Decimal, at time.Time) *rates.Snapshot {
	return &rates.Snapshot{
		Base:      pair.Source,
		Date:      at.Format("2006-01-02"),
		Timestamp: at,
		Rates: map[string]decimal.Decimal{
			pair.Source: decimal.NewFromInt(1),
			pair.Target: rate,
		},
	}
}
