package converter

import (
	"fmt"
	"strings"

	"currencyconv/internal/rates"
)

const (
	// DefaultPrecision is used when no precision is configured.
	DefaultPrecision = 2
	// MaxPrecision bounds the fractional digits any display may request.
	MaxPrecision = 10
)

// LoadStatus tracks the outcome of the most recent rate refresh.
type LoadStatus int

const (
	StatusLoading LoadStatus = iota
	StatusNoConnectivity
	StatusFailed
	StatusReady
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusNoConnectivity:
		return "no_connectivity"
	case StatusFailed:
		return "failed"
	case StatusReady:
		return "ready"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status by name.
func (s LoadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is the whole converter display. It is only changed through Reduce.
type State struct {
	SourceUnit    string
	TargetUnit    string
	SourceBuffer  string
	SourceDisplay string
	TargetDisplay string
	Precision     int
	Status        LoadStatus
	Rates         *rates.Snapshot

	// DefaultPrecision is what Precision resets to after every value edit.
	DefaultPrecision int
}

// Options seed a new State.
type Options struct {
	SourceUnit       string
	TargetUnit       string
	DefaultPrecision int
}

// NewState returns the zero display in the Loading status.
func NewState(opts Options) State {
	source := normalizeUnit(opts.SourceUnit)
	if source == "" {
		source = "USD"
	}
	target := normalizeUnit(opts.TargetUnit)
	if target == "" {
		target = "VND"
	}
	precision := opts.DefaultPrecision
	if precision < 0 {
		precision = DefaultPrecision
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}

	return State{
		SourceUnit:       source,
		TargetUnit:       target,
		SourceBuffer:     zeroBuffer,
		SourceDisplay:    zeroBuffer,
		TargetDisplay:    zeroBuffer,
		Precision:        precision,
		Status:           StatusLoading,
		DefaultPrecision: precision,
	}
}

func normalizeUnit(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
