package service

import (
	"log/slog"

	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
	redisx "github.com/HuyVanh/my-backend-api-movie/internal/redis"
	redisrepo "github.com/HuyVanh/my-backend-api-movie/internal/repository/redis"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/booking"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/query"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/reservation"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/showtime"
)

// Stores groups the persistence boundaries the services run on. Both the
// Postgres and the in-memory implementations satisfy it.
type Stores struct {
	SeatStates repository.SeatStateStore
	Tickets    repository.TicketStore
	Showtimes  repository.ShowtimeStore
	Catalog    repository.CatalogStore
}

type Config struct {
	Reservation reservation.Config
	Booking     booking.Config
}

type Services struct {
	Reservation *reservation.Service
	Booking     *booking.Service
	Showtime    *showtime.Service
	Query       *query.Service
}

func New(
	log *slog.Logger,
	stores Stores,
	cache *redisrepo.Cache,
	events *redisx.BookingPubSub,
	limiter reservation.RateLimiter,
	cfg Config,
) *Services {
	return &Services{
		Reservation: reservation.New(log, stores.SeatStates, cache, limiter, cfg.Reservation),
		Booking:     booking.New(log, stores.SeatStates, stores.Tickets, stores.Showtimes, stores.Catalog, cache, events, cfg.Booking),
		Showtime:    showtime.New(log, stores.Showtimes, stores.SeatStates, stores.Tickets, stores.Catalog, cache),
		Query:       query.New(log, stores.SeatStates, stores.Showtimes, stores.Catalog, cache),
	}
}
