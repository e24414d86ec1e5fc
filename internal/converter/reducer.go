package converter

import (
	"strings"

	"github.com/shopspring/decimal"

	"currencyconv/internal/rates"
)

const zeroBuffer = "0"

// Reduce applies ev to s and returns the new state. It has no side effects.
func Reduce(s State, ev Event) State {
	switch ev.Kind {
	case EventDigit:
		return appendDigit(s, ev.Digit)
	case EventDecimalPoint:
		return appendDecimalPoint(s)
	case EventClear:
		return s.zeroed()
	case EventDelete:
		return deleteLast(s)
	case EventSwap:
		s.SourceUnit, s.TargetUnit = s.TargetUnit, s.SourceUnit
		return s.recompute()
	case EventSetSource:
		if unit := normalizeUnit(ev.Unit); unit != "" {
			s.SourceUnit = unit
			return s.recompute()
		}
	case EventSetTarget:
		if unit := normalizeUnit(ev.Unit); unit != "" {
			s.TargetUnit = unit
			return s.recompute()
		}
	case EventDecreasePrecision:
		if s.Precision > 0 {
			s.Precision--
			s.TargetDisplay = s.convert()
		}
	case EventRefreshStarted:
		s.Status = StatusLoading
	case EventRefreshSucceeded:
		if ev.Snapshot == nil {
			s.Status = StatusFailed
			return s
		}
		s.Rates = ev.Snapshot
		s.Status = StatusReady
		return s.recompute()
	case EventRefreshFailed:
		if rates.IsNoConnectivity(ev.Err) {
			s.Status = StatusNoConnectivity
		} else {
			s.Status = StatusFailed
		}
	}
	return s
}

// Convert turns amount of the source unit into the target unit via the base.
func Convert(amount, sourceRate, targetRate decimal.Decimal) decimal.Decimal {
	return amount.Div(sourceRate).Mul(targetRate)
}

// Value is the numeric value of the source buffer.
func (s State) Value() decimal.Decimal {
	return ParseBuffer(s.SourceBuffer)
}

// Converted is the unrounded target value.
func (s State) Converted() decimal.Decimal {
	return Convert(s.Value(), s.Rates.Rate(s.SourceUnit), s.Rates.Rate(s.TargetUnit))
}

func appendDigit(s State, d byte) State {
	if d < '0' || d > '9' {
		return s
	}
	buffer := s.SourceBuffer
	if buffer == zeroBuffer || buffer == "" {
		buffer = string(d)
	} else {
		buffer += string(d)
	}
	return s.withBuffer(buffer)
}

func appendDecimalPoint(s State) State {
	if strings.Contains(s.SourceBuffer, decimalPoint) {
		return s
	}
	if s.SourceBuffer == "" {
		s.SourceBuffer = zeroBuffer
	}
	s.SourceBuffer += decimalPoint
	s.SourceDisplay = FormatSource(s.SourceBuffer)
	return s
}

func deleteLast(s State) State {
	if len(s.SourceBuffer) <= 1 {
		return s.zeroed()
	}
	return s.withBuffer(s.SourceBuffer[:len(s.SourceBuffer)-1])
}

func (s State) zeroed() State {
	s.SourceBuffer = zeroBuffer
	s.SourceDisplay = zeroBuffer
	s.TargetDisplay = zeroBuffer
	s.Precision = s.DefaultPrecision
	return s
}

func (s State) withBuffer(buffer string) State {
	s.SourceBuffer = buffer
	s.SourceDisplay = FormatSource(buffer)
	return s.recompute()
}

func (s State) recompute() State {
	s.Precision = s.DefaultPrecision
	s.TargetDisplay = s.convert()
	return s
}

func (s State) convert() string {
	return FormatAmount(s.Converted(), s.Precision)
}
