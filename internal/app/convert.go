package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"currencyconv/internal/converter"
)

// ErrRatesUnavailable is returned when a conversion cannot load rates.
var ErrRatesUnavailable = errors.New("exchange rates unavailable")

// Convert fetches the latest rates, types opts.Amount into a converter and
// prints the resulting display line.
func (a *App) Convert(ctx context.Context, opts ConvertOptions, out io.Writer) error {
	if opts.Precision > converter.MaxPrecision {
		return fmt.Errorf("precision must be between 0 and %d", converter.MaxPrecision)
	}
	keys, err := amountKeys(opts.Amount)
	if err != nil {
		return err
	}

	copts := a.converterOptions()
	if opts.From != "" {
		copts.SourceUnit = opts.From
	}
	if opts.To != "" {
		copts.TargetUnit = opts.To
	}
	if opts.Precision >= 0 {
		copts.DefaultPrecision = opts.Precision
	}

	session := a.newSession(copts)
	defer session.Close()

	session.Refresh(ctx)
	session.Wait()

	state := session.State()
	switch state.Status {
	case converter.StatusReady:
	case converter.StatusNoConnectivity:
		return fmt.Errorf("%w: no connection to the rate provider", ErrRatesUnavailable)
	default:
		return fmt.Errorf("%w: status %s", ErrRatesUnavailable, state.Status)
	}

	for _, key := range keys {
		state = session.Dispatch(key)
	}

	_, err = fmt.Fprintln(out, renderState(state))
	return err
}

// amountKeys turns "1234.5" into keypad events.
func amountKeys(amount string) ([]converter.Event, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.New("amount is required")
	}

	events := make([]converter.Event, 0, len(amount))
	points := 0
	for i := 0; i < len(amount); i++ {
		ch := amount[i]
		switch {
		case ch >= '0' && ch <= '9':
			events = append(events, converter.Digit(ch))
		case ch == '.':
			points++
			if points > 1 {
				return nil, fmt.Errorf("invalid amount %q: more than one decimal point", amount)
			}
			events = append(events, converter.DecimalPoint())
		case ch == ',':
		default:
			return nil, fmt.Errorf("invalid amount %q", amount)
		}
	}
	return events, nil
}

// Keypad drives a converter from keypad tokens read line by line from in.
// State changes are printed to out; a fast reader may skip intermediate
// states but the final state is always printed. "QUIT" or EOF ends the session.
func (a *App) Keypad(ctx context.Context, in io.Reader, out io.Writer) error {
	out = &lockedWriter{w: out}
	session := a.newSession(a.converterOptions())
	updates := session.Subscribe(64)

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for state := range updates {
			fmt.Fprintln(out, renderState(state))
		}
	}()

	session.Refresh(ctx)
	session.Wait()
	err := a.readKeys(ctx, session, in, out)

	session.Close()
	<-printed
	return err
}

func (a *App) readKeys(ctx context.Context, session *converter.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToUpper(line) {
		case "":
			continue
		case "Q", "QUIT", "EXIT":
			return nil
		}

		events, err := lineEvents(line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		for _, ev := range events {
			session.Press(ctx, ev)
		}
	}
	return scanner.Err()
}

// lineEvents parses one keypad line. A run of digits is typed key by key.
func lineEvents(line string) ([]converter.Event, error) {
	if ev, err := converter.ParseKey(line); err == nil {
		return []converter.Event{ev}, nil
	}
	if strings.Trim(line, "0123456789.,") == "" {
		return amountKeys(line)
	}
	return nil, fmt.Errorf("unknown key %q", line)
}

func renderState(s converter.State) string {
	asOf := "no rates"
	if s.Rates != nil {
		asOf = s.Rates.Date
	}
	return fmt.Sprintf("[%s, %s] %s %s = %s %s (precision %d)",
		s.Status, asOf,
		s.SourceDisplay, s.SourceUnit,
		s.TargetDisplay, s.TargetUnit,
		s.Precision,
	)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
