package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/repository"
)

// Expirer fails overdue assignments; service.LifecycleService satisfies it.
type Expirer interface {
	ExpireOverdue(ctx context.Context, filter repository.ExpireFilter) (int, error)
}

// ExpirySweeper periodically expires overdue assignments so that deadlines
// are enforced even when nobody reads the department feed.
type ExpirySweeper struct {
	expirer  Expirer
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper builds a sweeper. A non-positive interval disables Run.
func NewExpirySweeper(expirer Expirer, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweeper{expirer: expirer, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("expiry sweep disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweep started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweep stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep expires every overdue assignment once and returns how many were failed.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	n, err := s.expirer.ExpireOverdue(ctx, repository.ExpireFilter{})
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("expired overdue issues", zap.Int("count", n))
	}
	return n
}
