package converter

import (
	"fmt"
	"strings"

	"currencyconv/internal/rates"
)

// EventKind enumerates the inputs Reduce understands.
type EventKind int

const (
	EventDigit EventKind = iota + 1
	EventDecimalPoint
	EventClear
	EventDelete
	EventSwap
	EventSetSource
	EventSetTarget
	EventDecreasePrecision
	// EventRefreshRequested asks the owner to start a refresh. Reduce ignores it.
	EventRefreshRequested
	EventRefreshStarted
	EventRefreshSucceeded
	EventRefreshFailed
)

// Event is a single input to the reducer.
type Event struct {
	Kind     EventKind
	Digit    byte
	Unit     string
	Snapshot *rates.Snapshot
	Err      error
}

func Digit(d byte) Event { return Event{Kind: EventDigit, Digit: d} }
func DecimalPoint() Event { return Event{Kind: EventDecimalPoint} }
func Clear() Event { return Event{Kind: EventClear} }
func Delete() Event { return Event{Kind: EventDelete} }
func Swap() Event { return Event{Kind: EventSwap} }
func SetSource(unit string) Event { return Event{Kind: EventSetSource, Unit: unit} }
func SetTarget(unit string) Event { return Event{Kind: EventSetTarget, Unit: unit} }
func DecreasePrecision() Event { return Event{Kind: EventDecreasePrecision} }
func RefreshRequested() Event { return Event{Kind: EventRefreshRequested} }
func RefreshStarted() Event { return Event{Kind: EventRefreshStarted} }
func RefreshFailed(err error) Event { return Event{Kind: EventRefreshFailed, Err: err} }

func RefreshSucceeded(snap *rates.Snapshot) Event {
	return Event{Kind: EventRefreshSucceeded, Snapshot: snap}
}

// ParseKey maps a keypad token to an event. Tokens are case-insensitive:
// a single digit, ".", "C", "DEL", "SWAP", "DEC", "REFRESH", "FROM XXX", "TO XXX".
func ParseKey(token string) (Event, error) {
	fields := strings.Fields(strings.ToUpper(token))
	if len(fields) == 0 {
		return Event{}, fmt.Errorf("empty key")
	}

	if len(fields) == 2 {
		switch fields[0] {
		case "FROM":
			return SetSource(fields[1]), nil
		case "TO":
			return SetTarget(fields[1]), nil
		}
		return Event{}, fmt.Errorf("unknown key %q", token)
	}
	if len(fields) > 2 {
		return Event{}, fmt.Errorf("unknown key %q", token)
	}

	key := fields[0]
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		return Digit(key[0]), nil
	}
	switch key {
	case ".":
		return DecimalPoint(), nil
	case "C", "CLEAR":
		return Clear(), nil
	case "DEL", "DELETE":
		return Delete(), nil
	case "SWAP":
		return Swap(), nil
	case "DEC":
		return DecreasePrecision(), nil
	case "REFRESH":
		return RefreshRequested(), nil
	}
	return Event{}, fmt.Errorf("unknown key %q", token)
}
