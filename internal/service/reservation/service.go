package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
	redisrepo "github.com/HuyVanh/my-backend-api-movie/internal/repository/redis"
)

// RateLimiter gates hold creation per client key.
type RateLimiter interface {
	Allow(ctx context.Context, suffix string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

type Config struct {
	DefaultHoldTTL time.Duration
	MinHoldTTL     time.Duration
	MaxHoldTTL     time.Duration
}

// Service owns the hold lifecycle: reserve, confirm, cancel and expiry.
// Every seat-state change funnels through the store's atomic transition, so
// two racing callers can never both win the same seat.
type Service struct {
	log        *slog.Logger
	seatStates repository.SeatStateStore
	cache      *redisrepo.Cache
	limiter    RateLimiter
	cfg        Config
}

func New(
	log *slog.Logger,
	seatStates repository.SeatStateStore,
	cache *redisrepo.Cache,
	limiter RateLimiter,
	cfg Config,
) *Service {
	return &Service{
		log:        log,
		seatStates: seatStates,
		cache:      cache,
		limiter:    limiter,
		cfg:        cfg,
	}
}

// Hold is what a successful Reserve hands back to the client.
type Hold struct {
	ID        uuid.UUID `json:"holdId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Reserve places a hold on the full seat set or fails without touching any
// seat. limitKey identifies the client for rate limiting; empty skips the
// limiter.
func (s *Service) Reserve(ctx context.Context, showtimeID int64, seatIDs []int64, ttl time.Duration, limitKey string) (*Hold, error) {
	const op = "reservation.Service.Reserve"

	if len(seatIDs) == 0 {
		return nil, ErrNoSeatsSelected
	}

	if s.limiter != nil && limitKey != "" {
		allowed, _, retryAfter, err := s.limiter.Allow(ctx, limitKey)
		if err != nil {
			// The limiter is best effort. Redis being down must not take
			// reservations down with it.
			s.log.Warn("rate limiter unavailable", "error", err)
		} else if !allowed {
			return nil, fmt.Errorf("%w: retry after %s", ErrRateLimited, retryAfter)
		}
	}

	ttl = s.clampTTL(ttl)
	holdID := uuid.New()

	err := s.seatStates.TryTransition(ctx, showtimeID, seatIDs, repository.Transition{
		From:    []domain.SeatStatus{domain.SeatAvailable},
		To:      domain.SeatReserved,
		HoldID:  holdID,
		HoldTTL: ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.translate(err))
	}

	s.invalidate(ctx, showtimeID)

	return &Hold{ID: holdID, ExpiresAt: time.Now().Add(ttl)}, nil
}

// Confirm promotes a held seat set to booked, binding it to an order. The
// transition only matches rows still owned by holdID with an unexpired hold,
// so a stale or hijacked confirm comes back as ErrHoldExpired.
func (s *Service) Confirm(ctx context.Context, showtimeID int64, seatIDs []int64, holdID uuid.UUID, orderID string) error {
	const op = "reservation.Service.Confirm"

	if len(seatIDs) == 0 {
		return ErrNoSeatsSelected
	}

	err := s.seatStates.TryTransition(ctx, showtimeID, seatIDs, repository.Transition{
		From:        []domain.SeatStatus{domain.SeatReserved},
		To:          domain.SeatBooked,
		RequireHold: holdID,
		OrderID:     orderID,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, s.translate(err))
	}

	s.invalidate(ctx, showtimeID)

	return nil
}

// Cancel voluntarily releases held seats. Retry-safe: seats that already
// went back to available are accepted as released.
func (s *Service) Cancel(ctx context.Context, showtimeID int64, seatIDs []int64) error {
	const op = "reservation.Service.Cancel"

	if len(seatIDs) == 0 {
		return ErrNoSeatsSelected
	}

	err := s.seatStates.TryTransition(ctx, showtimeID, seatIDs, repository.Transition{
		From: []domain.SeatStatus{domain.SeatReserved, domain.SeatAvailable},
		To:   domain.SeatAvailable,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, s.translate(err))
	}

	s.invalidate(ctx, showtimeID)

	return nil
}

// Expire sweeps every reserved seat whose hold has lapsed back to available.
func (s *Service) Expire(ctx context.Context) (int64, error) {
	const op = "reservation.Service.Expire"

	n, err := s.seatStates.ReleaseExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = s.cfg.DefaultHoldTTL
	}
	if ttl < s.cfg.MinHoldTTL {
		ttl = s.cfg.MinHoldTTL
	}
	if ttl > s.cfg.MaxHoldTTL {
		ttl = s.cfg.MaxHoldTTL
	}
	return ttl
}

func (s *Service) invalidate(ctx context.Context, showtimeID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateShowtime(ctx, showtimeID); err != nil {
		s.log.Warn("seat cache invalidation failed", "showtime_id", showtimeID, "error", err)
	}
}

func (s *Service) translate(err error) error {
	var conflict *repository.SeatConflictError
	if errors.As(err, &conflict) {
		return &SeatConflictError{SeatIDs: conflict.SeatIDs, Statuses: conflict.Statuses}
	}

	var missing *repository.MissingSeatStateError
	if errors.As(err, &missing) {
		return fmt.Errorf("%w: seats %v", ErrSeatStateGap, missing.SeatIDs)
	}

	if errors.Is(err, repository.ErrHoldExpired) {
		return ErrHoldExpired
	}

	return err
}
