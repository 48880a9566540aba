package queue

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// PromoterOption is a functional option for configuring a promoter
type PromoterOption func(*promoterOptions)

type promoterOptions struct {
	clock      clockwork.Clock
	interval   time.Duration
	batchSize  int
	logger     *slog.Logger
	onPromoted func(n int)
	onRequeued func(n int)
}

// WithPromoterClock sets the clock used for due checks and the tick loop
func WithPromoterClock(clock clockwork.Clock) PromoterOption {
	return func(o *promoterOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithPromoteInterval sets how often due entries are promoted
func WithPromoteInterval(d time.Duration) PromoterOption {
	return func(o *promoterOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithPromoteBatchSize sets how many entries are promoted per broker call
func WithPromoteBatchSize(n int) PromoterOption {
	return func(o *promoterOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithPromoterLogger sets the logger for the promoter
func WithPromoterLogger(logger *slog.Logger) PromoterOption {
	return func(o *promoterOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOnPromoted registers a callback receiving the number of promoted jobs per tick
func WithOnPromoted(fn func(n int)) PromoterOption {
	return func(o *promoterOptions) {
		o.onPromoted = fn
	}
}

// WithOnRequeued registers a callback receiving the number of requeued jobs per tick
func WithOnRequeued(fn func(n int)) PromoterOption {
	return func(o *promoterOptions) {
		o.onRequeued = fn
	}
}
