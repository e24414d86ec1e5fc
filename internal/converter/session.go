package converter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"currencyconv/internal/rates"
)

// SessionOptions tune a Session.
type SessionOptions struct {
	// FetchTimeout bounds a single refresh. Exceeding it counts as no connectivity.
	FetchTimeout time.Duration
}

// Session owns one converter State. All mutations are serialized through
// Dispatch; Refresh is the only asynchronous operation.
//
// A refresh requested while another is in flight cancels the earlier one and
// only the newest result is applied.
type Session struct {
	source  rates.Source
	timeout time.Duration
	logger  zerolog.Logger

	mu          sync.Mutex
	state       State
	generation  uint64
	cancel      context.CancelFunc
	subscribers []chan State
	closed      bool
	inflight    int
	settled     *sync.Cond
}

// NewSession wraps initial with a serialized owner backed by source.
func NewSession(initial State, source rates.Source, opts SessionOptions, logger zerolog.Logger) *Session {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Session{
		source:  source,
		timeout: timeout,
		logger:  logger.With().Str("component", "session").Logger(),
		state:   initial,
	}
	s.settled = sync.NewCond(&s.mu)
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch feeds ev through Reduce and returns the resulting state.
func (s *Session) Dispatch(ev Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ev)
}

// Press handles a keypad event, starting a refresh for EventRefreshRequested.
func (s *Session) Press(ctx context.Context, ev Event) State {
	if ev.Kind == EventRefreshRequested {
		s.Refresh(ctx)
		return s.State()
	}
	return s.Dispatch(ev)
}

// Refresh starts fetching the latest rates and returns immediately. The outcome
// is merged into the state through the same reducer as keypad input.
func (s *Session) Refresh(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	s.cancel = cancel
	s.applyLocked(RefreshStarted())
	s.inflight++
	s.mu.Unlock()

	go s.fetch(fetchCtx, cancel, gen, uuid.NewString())
}

// Wait blocks until no refresh is in flight.
func (s *Session) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.settled.Wait()
	}
}

// Subscribe returns a channel receiving the state after every change. Slow
// readers miss intermediate states but the newest state is always buffered.
// The channel is closed by Close.
func (s *Session) Subscribe(buffer int) <-chan State {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Close cancels any in-flight refresh, waits for it to exit and closes
// subscriber channels.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	for s.inflight > 0 {
		s.settled.Wait()
	}
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	s.mu.Unlock()
}

func (s *Session) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, refreshID string) {
	defer cancel()

	logger := s.logger.With().Str("refresh_id", refreshID).Logger()
	logger.Debug().Msg("refresh started")

	snap, err := s.source.Latest(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		s.inflight--
		s.settled.Broadcast()
	}()

	if gen != s.generation {
		logger.Debug().Msg("discarding superseded refresh")
		return
	}
	s.cancel = nil

	if err != nil {
		state := s.applyLocked(RefreshFailed(err))
		logger.Warn().Err(err).Stringer("status", state.Status).Msg("refresh failed")
		return
	}
	state := s.applyLocked(RefreshSucceeded(snap))
	if snap == nil {
		logger.Warn().Stringer("status", state.Status).Msg("refresh returned no rates")
		return
	}
	logger.Info().Str("base", snap.Base).Str("date", snap.Date).Msg("rates refreshed")
}

func (s *Session) applyLocked(ev Event) State {
	s.state = Reduce(s.state, ev)
	if s.closed {
		return s.state
	}
	for _, ch := range s.subscribers {
		publish(ch, s.state)
	}
	return s.state
}

// publish delivers st, evicting the oldest buffered state when ch is full.
// Callers hold s.mu, so no other send can refill the slot in between.
func publish(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
