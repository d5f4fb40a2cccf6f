package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatReserved  SeatStatus = "reserved"
	SeatBooked    SeatStatus = "booked"
)

type TicketStatus string

const (
	TicketPendingPayment TicketStatus = "pending_payment"
	TicketCompleted      TicketStatus = "completed"
	TicketCancelled      TicketStatus = "cancelled"
	TicketUsed           TicketStatus = "used"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentStripe PaymentMethod = "stripe"
)

type Cinema struct {
	ID      int64
	Name    string
	Address string
}

type Room struct {
	ID       int64
	CinemaID int64
	Name     string
}

// Seat is a static catalog entity owned by a room. Price is in cents.
type Seat struct {
	ID         int64
	RoomID     int64
	Name       string
	PriceCents int64
}

type Movie struct {
	ID       int64
	Name     string
	Duration int
}

type Showtime struct {
	ID       int64
	MovieID  int64
	CinemaID int64
	RoomID   int64
	ShowDate time.Time
	StartsAt time.Time
}

// SeatState is the per-(seat, showtime) booking record. HoldID and
// HoldExpiresAt are set only while reserved; OrderID only while booked.
type SeatState struct {
	ShowtimeID    int64
	SeatID        int64
	RoomID        int64
	Status        SeatStatus
	HoldID        *uuid.UUID
	HoldExpiresAt *time.Time
	OrderID       *string
}

// Effective reports the status readers must act on: a reserved state whose
// hold has passed is available even before the sweeper resets it.
func (s SeatState) Effective(now time.Time) SeatStatus {
	if s.Status == SeatReserved && s.HoldExpiresAt != nil && !s.HoldExpiresAt.After(now) {
		return SeatAvailable
	}
	return s.Status
}

type SeatWithState struct {
	Seat
	Status SeatStatus
}

type SeatCounts struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
	Booked    int64 `json:"booked"`
	Total     int64 `json:"total"`
}

type BuyerInfo struct {
	UserID   *int64
	FullName string
	Email    string
	Phone    string
}

type FoodLine struct {
	FoodID     int64
	Quantity   int
	PriceCents int64
}

type Food struct {
	ID         int64
	Name       string
	PriceCents int64
	Available  bool
}

type Discount struct {
	ID       int64
	Code     string
	Percent  int
	DayStart time.Time
	DayEnd   time.Time
	Active   bool
}

// ActiveAt reports whether the discount applies at the given moment.
func (d Discount) ActiveAt(now time.Time) bool {
	return d.Active && !now.Before(d.DayStart) && !now.After(d.DayEnd)
}

// Ticket is the durable purchase record. OrderID is the external-facing key.
type Ticket struct {
	OrderID        string
	ShowtimeID     int64
	MovieID        int64
	CinemaID       int64
	RoomID         int64
	Buyer          BuyerInfo
	SeatIDs        []int64
	FoodLines      []FoodLine
	DiscountID     *int64
	HoldID         *uuid.UUID
	PaymentMethod  PaymentMethod
	Status         TicketStatus
	SeatTotalCents int64
	FoodTotalCents int64
	DiscountCents  int64
	TotalCents     int64
	CreatedAt      time.Time
	ConfirmedAt    *time.Time
	CancelledAt    *time.Time
	CancelReason   string
	UsedAt         *time.Time
}
