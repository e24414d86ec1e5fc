package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"currencyconv/internal/alerting"
	"currencyconv/internal/config"
	"currencyconv/internal/converter"
	"currencyconv/internal/rates"
	"currencyconv/internal/recorder"
	"currencyconv/internal/scheduler"
	"currencyconv/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// source overrides the HTTP rate client; tests only.
	source rates.Source
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() rates.Source {
	if a.source != nil {
		return a.source
	}
	client := rates.NewClient(rates.ClientOptions{
		BaseURL:   a.Config.Rates.BaseURL,
		AccessKey: a.Config.Rates.AccessKey,
		Timeout:   a.Config.Rates.RequestTimeout,
		UserAgent: a.Config.Rates.UserAgent,
	}, a.Logger)
	return rates.NewLoggingSource(a.Logger, client)
}

func (a *App) converterOptions() converter.Options {
	return converter.Options{
		SourceUnit:       a.Config.Converter.SourceUnit,
		TargetUnit:       a.Config.Converter.TargetUnit,
		DefaultPrecision: a.Config.Converter.DefaultPrecision,
	}
}

func (a *App) newSession(opts converter.Options) *converter.Session {
	return converter.NewSession(
		converter.NewState(opts),
		a.newSource(),
		converter.SessionOptions{FetchTimeout: a.Config.Rates.RequestTimeout},
		a.Logger,
	)
}

func (a *App) newNotifier() alerting.Notifier {
	notifiers := alerting.Multi{alerting.NewLogNotifier(a.Logger)}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	return notifiers
}

func (a *App) alertPairs() ([]recorder.Pair, error) {
	pairs := make([]recorder.Pair, 0, len(a.Config.Alerting.Pairs))
	for _, raw := range a.Config.Alerting.Pairs {
		pair, err := recorder.ParsePair(raw)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (a *App) recorderOptions() (recorder.Options, error) {
	pairs, err := a.alertPairs()
	if err != nil {
		return recorder.Options{}, err
	}
	return recorder.Options{
		AlertsEnabled: a.Config.Alerting.Enabled,
		ThresholdPct:  decimal.NewFromFloat(a.Config.Alerting.ThresholdPct),
		Pairs:         pairs,
		Channels:      a.Config.Alerting.Channels,
		LockKey:       a.Config.Scheduler.AdvisoryLockKey,
	}, nil
}

// newRecorder wires a recorder; store may be nil.
func (a *App) newRecorder(store *storage.Store, notifier alerting.Notifier) (*recorder.Recorder, error) {
	opts, err := a.recorderOptions()
	if err != nil {
		return nil, err
	}
	var snapshots storage.SnapshotStore
	var alerts storage.AlertStore
	if store != nil {
		snapshots = store
		alerts = store
	}
	return recorder.New(opts, a.newSource(), snapshots, alerts, notifier, a.Logger), nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newScheduler(immediate bool) (*scheduler.Scheduler, error) {
	return scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Immediate:    immediate,
	}, a.Logger)
}

// Run executes the long-running recording service.
func (a *App) Run(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched, err := a.newScheduler(a.Config.Scheduler.RunOnStart)
	if err != nil {
		return err
	}

	rec, err := a.newRecorder(store, a.newNotifier())
	if err != nil {
		return err
	}

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting rate recorder")
	err = sched.Run(ctx, rec.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("recorder terminated with error")
		return err
	}

	a.Logger.Info().Msg("rate recorder stopped")
	return nil
}

// ConvertOptions configure a one-shot conversion.
type ConvertOptions struct {
	From   string
	To     string
	Amount string
	// Precision below zero means the configured default.
	Precision int
}

// ExportOptions hold parameters for exporting a pair's history.
type ExportOptions struct {
	Pair      string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}
