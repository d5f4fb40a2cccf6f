package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/HuyVanh/my-backend-api-movie/internal/service/reservation"
)

// Sweeper periodically resets reserved seats whose holds have expired.
// Readers already treat those as available through lazy expiry; the sweeper
// keeps the stored rows from drifting forever.
type Sweeper struct {
	log      *slog.Logger
	svc      *reservation.Service
	interval time.Duration
}

func New(log *slog.Logger, svc *reservation.Service, interval time.Duration) *Sweeper {
	return &Sweeper{log: log, svc: svc, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval. Sweep
// failures are logged and retried next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.svc.Expire(ctx)
	if err != nil {
		s.log.Error("expired hold sweep failed", "error", err)
		return
	}

	if n > 0 {
		s.log.Info("released expired holds", "count", n)
	}
}
