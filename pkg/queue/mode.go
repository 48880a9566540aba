package queue

import (
	"fmt"
	"time"
)

// ModeKind names one of the three dispatch modes.
type ModeKind string

const (
	ModeImmediate ModeKind = "immediate"
	ModeDelay     ModeKind = "delay"
	ModeAt        ModeKind = "at"
)

// Mode describes when a submitted job becomes eligible to run.
type Mode struct {
	Kind  ModeKind
	Delay time.Duration
	At    time.Time
}

// Immediate makes the job runnable as soon as a worker picks it up.
func Immediate() Mode {
	return Mode{Kind: ModeImmediate}
}

// Delay makes the job runnable once d has elapsed since submission.
func Delay(d time.Duration) Mode {
	return Mode{Kind: ModeDelay, Delay: d}
}

// At makes the job runnable at t. A t in the past runs as soon as possible.
func At(t time.Time) Mode {
	return Mode{Kind: ModeAt, At: t}
}

// DueAt computes the due time relative to now.
func (m Mode) DueAt(now time.Time) (time.Time, error) {
	switch m.Kind {
	case ModeImmediate:
		return now, nil
	case ModeDelay:
		if m.Delay < 0 {
			return time.Time{}, fmt.Errorf("%w: negative delay %v", ErrInvalidSchedule, m.Delay)
		}
		return now.Add(m.Delay), nil
	case ModeAt:
		if m.At.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrInvalidSchedule)
		}
		return m.At, nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidSchedule, m.Kind)
	}
}

func (m Mode) String() string {
	switch m.Kind {
	case ModeDelay:
		return fmt.Sprintf("delay(%v)", m.Delay)
	case ModeAt:
		return fmt.Sprintf("at(%s)", m.At.Format(time.RFC3339))
	default:
		return string(m.Kind)
	}
}
