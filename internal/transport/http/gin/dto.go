package httpgin

import (
	"time"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
)

type CreateHoldRequest struct {
	SeatIDs []int64 `json:"seat_ids" binding:"required,min=1,dive,required"`
	TTLSec  int     `json:"ttl_sec"`
}

type CancelHoldRequest struct {
	SeatIDs []int64 `json:"seat_ids" binding:"required,min=1,dive,required"`
}

type BuyerInput struct {
	UserID   *int64 `json:"user_id"`
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
}

type FoodLineInput struct {
	FoodID   int64 `json:"food_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,gt=0"`
}

type CreateBookingRequest struct {
	ShowtimeID    int64           `json:"showtime_id" binding:"required"`
	SeatIDs       []int64         `json:"seat_ids" binding:"required,min=1,dive,required"`
	Foods         []FoodLineInput `json:"foods" binding:"dive"`
	DiscountID    *int64          `json:"discount_id"`
	Buyer         BuyerInput      `json:"buyer" binding:"required"`
	PaymentMethod string          `json:"payment_method" binding:"required,oneof=cash stripe"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

type CreateIntentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type ConfirmPaymentRequest struct {
	OrderID  string `json:"order_id" binding:"required"`
	IntentID string `json:"intent_id" binding:"required"`
}

type ShowtimeRequest struct {
	MovieID  int64  `json:"movie_id" binding:"required"`
	CinemaID int64  `json:"cinema_id" binding:"required"`
	RoomID   int64  `json:"room_id" binding:"required"`
	ShowDate string `json:"show_date" binding:"required"`
	StartsAt string `json:"starts_at" binding:"required"`
}

// SuccessResponse is the uniform payload envelope.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`

	// Seats carries the conflicting seat ids on seat-availability errors;
	// SeatStatuses holds each seat's current status in the same order.
	Seats        []int64  `json:"seats,omitempty"`
	SeatStatuses []string `json:"seat_statuses,omitempty"`
}

type HoldResponse struct {
	HoldID    string    `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ShowtimeResponse struct {
	ID       int64     `json:"id"`
	MovieID  int64     `json:"movie_id"`
	CinemaID int64     `json:"cinema_id"`
	RoomID   int64     `json:"room_id"`
	ShowDate time.Time `json:"show_date"`
	StartsAt time.Time `json:"starts_at"`
}

type BuyerResponse struct {
	UserID   *int64 `json:"user_id,omitempty"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

type FoodLineResponse struct {
	FoodID     int64 `json:"food_id"`
	Quantity   int   `json:"quantity"`
	PriceCents int64 `json:"price_cents"`
}

type TicketResponse struct {
	OrderID        string             `json:"order_id"`
	ShowtimeID     int64              `json:"showtime_id"`
	MovieID        int64              `json:"movie_id"`
	CinemaID       int64              `json:"cinema_id"`
	RoomID         int64              `json:"room_id"`
	Buyer          BuyerResponse      `json:"buyer"`
	SeatIDs        []int64            `json:"seat_ids"`
	Foods          []FoodLineResponse `json:"foods,omitempty"`
	DiscountID     *int64             `json:"discount_id,omitempty"`
	PaymentMethod  string             `json:"payment_method"`
	Status         string             `json:"status"`
	SeatTotalCents int64              `json:"seat_total_cents"`
	FoodTotalCents int64              `json:"food_total_cents"`
	DiscountCents  int64              `json:"discount_cents"`
	TotalCents     int64              `json:"total_cents"`
	CreatedAt      time.Time          `json:"created_at"`
	ConfirmedAt    *time.Time         `json:"confirmed_at,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason   string             `json:"cancel_reason,omitempty"`
	UsedAt         *time.Time         `json:"used_at,omitempty"`
}

type IntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

func toShowtimeResponse(st *domain.Showtime) ShowtimeResponse {
	return ShowtimeResponse{
		ID:       st.ID,
		MovieID:  st.MovieID,
		CinemaID: st.CinemaID,
		RoomID:   st.RoomID,
		ShowDate: st.ShowDate,
		StartsAt: st.StartsAt,
	}
}

func toTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		OrderID:    t.OrderID,
		ShowtimeID: t.ShowtimeID,
		MovieID:    t.MovieID,
		CinemaID:   t.CinemaID,
		RoomID:     t.RoomID,
		Buyer: BuyerResponse{
			UserID:   t.Buyer.UserID,
			FullName: t.Buyer.FullName,
			Email:    t.Buyer.Email,
			Phone:    t.Buyer.Phone,
		},
		SeatIDs:        t.SeatIDs,
		DiscountID:     t.DiscountID,
		PaymentMethod:  string(t.PaymentMethod),
		Status:         string(t.Status),
		SeatTotalCents: t.SeatTotalCents,
		FoodTotalCents: t.FoodTotalCents,
		DiscountCents:  t.DiscountCents,
		TotalCents:     t.TotalCents,
		CreatedAt:      t.CreatedAt,
		ConfirmedAt:    t.ConfirmedAt,
		CancelledAt:    t.CancelledAt,
		CancelReason:   t.CancelReason,
		UsedAt:         t.UsedAt,
	}

	for _, fl := range t.FoodLines {
		resp.Foods = append(resp.Foods, FoodLineResponse{
			FoodID:     fl.FoodID,
			Quantity:   fl.Quantity,
			PriceCents: fl.PriceCents,
		})
	}

	return resp
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
