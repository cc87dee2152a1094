package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/clock"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/logkey"
)

const (
	defaultSweepInterval = 30 * time.Second
	defaultSweepBatch    = 100
)

// Sweeper reclaims expired checkouts and finalizes delivered orders whose
// contest window has elapsed. It reuses the order service's transitions, so
// a sweep tick and an on-demand cancel cannot diverge; the status guard makes
// overlapping ticks no-ops.
type Sweeper struct {
	orders    OrderRepository
	lifecycle *OrderService
	clock     clock.Clock
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewSweeper(orders OrderRepository, lifecycle *OrderService, clk clock.Clock, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		orders:    orders,
		lifecycle: lifecycle,
		clock:     clk,
		logger:    slog.Default(),
		interval:  defaultSweepInterval,
		batchSize: defaultSweepBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the tick interval.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweepBatchSize caps how many orders one tick processes per phase.
func WithSweepBatchSize(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithSweepLogger overrides the sweeper logger.
func WithSweepLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// Run ticks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep failed", slog.String(logkey.Error, err.Error()))
			}
		}
	}
}

// SweepOnce performs one sweep pass and reports how many orders it
// transitioned. Per-order failures are logged and skipped so one bad row
// cannot stall the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	transitioned := 0

	expired, err := s.orders.ListExpiredPending(ctx, now, s.batchSize)
	if err != nil {
		return transitioned, err
	}
	for _, id := range expired {
		ok, err := s.lifecycle.CancelPending(ctx, id, ActorSweeper)
		if err != nil {
			s.logger.Error("sweep cancel failed",
				slog.String(logkey.OrderID, id),
				slog.String(logkey.Error, err.Error()),
			)
			continue
		}
		if ok {
			transitioned++
		}
	}

	cutoff := now.Add(-s.lifecycle.ContestWindow())
	due, err := s.orders.ListContestElapsed(ctx, cutoff, s.batchSize)
	if err != nil {
		return transitioned, err
	}
	for _, id := range due {
		_, ok, err := s.lifecycle.Finalize(ctx, id, ActorSweeper)
		if err != nil {
			s.logger.Error("sweep finalize failed",
				slog.String(logkey.OrderID, id),
				slog.String(logkey.Error, err.Error()),
			)
			continue
		}
		if ok {
			transitioned++
		}
	}

	return transitioned, nil
}
