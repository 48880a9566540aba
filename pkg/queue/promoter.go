package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/logger"
)

// PromoterRepository defines the interface for moving due work to the ready queues
type PromoterRepository interface {
	// PromoteDue moves up to limit schedule entries with due <= now onto their
	// ready queues. Removing the entry is the claim, so concurrent promoters
	// never promote the same entry twice.
	PromoteDue(ctx context.Context, now time.Time, limit int) (int, error)

	// RequeueExpired returns running jobs whose lock expired before now to the
	// ready queue
	RequeueExpired(ctx context.Context, now time.Time) (int, error)
}

// Promoter periodically promotes due schedule entries and recovers jobs
// abandoned by crashed workers. Any number of promoters may run at once.
type Promoter struct {
	repo       PromoterRepository
	clock      clockwork.Clock
	interval   time.Duration
	batchSize  int
	logger     *slog.Logger
	onPromoted func(n int)
	onRequeued func(n int)
}

// NewPromoter creates a new promoter
func NewPromoter(repo PromoterRepository, opts ...PromoterOption) (*Promoter, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &promoterOptions{
		clock:     clockwork.NewRealClock(),
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Promoter{
		repo:       repo,
		clock:      options.clock,
		interval:   options.interval,
		batchSize:  options.batchSize,
		logger:     options.logger,
		onPromoted: options.onPromoted,
		onRequeued: options.onRequeued,
	}, nil
}

// Start runs the promotion loop until ctx is cancelled
func (p *Promoter) Start(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("promoter started",
		slog.Duration("interval", p.interval),
		slog.Int("batch_size", p.batchSize))

	p.tickAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("promoter shutting down")
			return ctx.Err()
		case <-ticker.Chan():
			p.tickAndLog(ctx)
		}
	}
}

// Run returns a function suitable for errgroup
func (p *Promoter) Run(ctx context.Context) func() error {
	return func() error {
		if err := p.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}

// Tick performs a single promotion pass: drain due entries in batches,
// requeue expired leases and purge stale results when the broker needs it.
func (p *Promoter) Tick(ctx context.Context) (promoted, requeued int, err error) {
	now := p.clock.Now()

	for {
		n, err := p.repo.PromoteDue(ctx, now, p.batchSize)
		if err != nil {
			return promoted, requeued, err
		}
		promoted += n
		if n < p.batchSize {
			break
		}
	}

	requeued, err = p.repo.RequeueExpired(ctx, now)
	if err != nil {
		return promoted, requeued, err
	}

	if purger, ok := p.repo.(Purger); ok {
		if _, err := purger.PurgeExpired(ctx, now); err != nil {
			return promoted, requeued, err
		}
	}

	return promoted, requeued, nil
}

func (p *Promoter) tickAndLog(ctx context.Context) {
	promoted, requeued, err := p.Tick(ctx)
	if promoted > 0 {
		p.logger.Debug("promoted due jobs", slog.Int("count", promoted))
		if p.onPromoted != nil {
			p.onPromoted(promoted)
		}
	}
	if requeued > 0 {
		p.logger.Warn("requeued jobs with expired lock", slog.Int("count", requeued))
		if p.onRequeued != nil {
			p.onRequeued(requeued)
		}
	}
	if err != nil && ctx.Err() == nil {
		p.logger.Error("promotion pass failed", logger.Error(err))
	}
}
