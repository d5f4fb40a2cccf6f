package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/payment"
	redisrepo "github.com/HuyVanh/my-backend-api-movie/internal/repository/redis"
	"github.com/HuyVanh/my-backend-api-movie/internal/service"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/booking"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/query"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/reservation"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/showtime"
)

const paymentCurrency = "usd"

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	gateway payment.Gateway,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/showtimes/:id", handleGetShowtime(svcs))
	r.GET("/showtimes/:id/seats", handleGetSeatMap(svcs))
	r.GET("/showtimes/:id/availability", handleGetAvailability(svcs))

	r.POST("/showtimes/:id/holds", handleCreateHold(svcs, idem))
	r.POST("/showtimes/:id/holds/cancel", handleCancelHold(svcs))

	r.POST("/bookings", handleCreateBooking(svcs, idem))
	r.GET("/bookings/:id", handleGetBooking(svcs))
	r.GET("/bookings", handleListBookings(svcs))
	r.POST("/bookings/:id/cancel", handleCancelBooking(svcs))

	r.POST("/payments/intent", handleCreateIntent(svcs, gateway))
	r.POST("/payments/confirm", handleConfirmPayment(svcs, gateway))

	// Admin API
	// TODO: add admin auth middleware
	adm := r.Group("/admin")
	{
		adm.POST("/showtimes", handleCreateShowtime(svcs))
		adm.PUT("/showtimes/:id", handleUpdateShowtime(svcs))
		adm.DELETE("/showtimes/:id", handleDeleteShowtime(svcs))

		adm.POST("/bookings/:id/scan", handleScanTicket(svcs))
		adm.DELETE("/bookings/:id", handleDeleteBooking(svcs))

		adm.POST("/sweep", handleSweep(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get showtime
// @Param    id  path  int  true  "Showtime ID"
// @Success  200  {object}  SuccessResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /showtimes/{id} [get]
func handleGetShowtime(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		st, err := svcs.Showtime.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, SuccessResponse{Success: true, Data: toShowtimeResponse(st)}, "public, max-age=60")
	}
}

// @Summary  Seat map with per-seat status
// @Param    id  path  int  true  "Showtime ID"
// @Success  200  {object}  SuccessResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /showtimes/{id}/seats [get]
func handleGetSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		m, err := svcs.Query.SeatMap(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, SuccessResponse{Success: true, Data: m}, "public, max-age=5")
	}
}

// @Summary  Availability counters
// @Param    id  path  int  true  "Showtime ID"
// @Success  200  {object}  SuccessResponse
// @Router   /showtimes/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		cnt, err := svcs.Query.Counts(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, SuccessResponse{Success: true, Data: cnt}, "public, max-age=5")
	}
}

// @Summary  Place a hold on seats (idempotent)
// @Param    id  path  int  true  "Showtime ID"
// @Param    req body  CreateHoldRequest true "payload"
// @Success  201 {object} SuccessResponse
// @Failure  409 {object} ErrorResponse "seats unavailable / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /showtimes/{id}/holds [post]
func handleCreateHold(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		showtimeID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var storageKey string
		if idem != nil && idemKey != "" {
			storageKey = redisrepo.KeyIdemHold(showtimeID, idemKey)
			if !beginIdem(c, idem, storageKey, idemKey) {
				return
			}
		}

		hold, err := svcs.Reservation.Reserve(
			c.Request.Context(),
			showtimeID,
			req.SeatIDs,
			time.Duration(req.TTLSec)*time.Second,
			"ip:"+c.ClientIP(),
		)
		if err != nil {
			if storageKey != "" {
				_ = idem.Release(c.Request.Context(), storageKey)
			}
			respondErr(c, err)
			return
		}

		resp := SuccessResponse{Success: true, Data: HoldResponse{
			HoldID:    hold.ID.String(),
			ExpiresAt: hold.ExpiresAt,
		}}

		if storageKey != "" {
			saveIdem(c, idem, storageKey, idemKey, resp)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Release held seats
// @Param    id  path  int  true  "Showtime ID"
// @Param    req body  CancelHoldRequest true "payload"
// @Success  200 {object} SuccessResponse
// @Failure  409 {object} ErrorResponse
// @Router   /showtimes/{id}/holds/cancel [post]
func handleCancelHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showtimeID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CancelHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Reservation.Cancel(c.Request.Context(), showtimeID, req.SeatIDs); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"released": len(req.SeatIDs)}})
	}
}

// @Summary  Create booking (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Success  201 {object} SuccessResponse
// @Failure  409 {object} ErrorResponse "seats unavailable"
// @Router   /bookings [post]
func handleCreateBooking(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var storageKey string
		if idem != nil && idemKey != "" {
			storageKey = redisrepo.KeyIdemBooking(idemKey)
			if !beginIdem(c, idem, storageKey, idemKey) {
				return
			}
		}

		lines := make([]booking.FoodLineInput, 0, len(req.Foods))
		for _, f := range req.Foods {
			lines = append(lines, booking.FoodLineInput{FoodID: f.FoodID, Quantity: f.Quantity})
		}

		t, err := svcs.Booking.Create(c.Request.Context(), booking.CreateRequest{
			ShowtimeID: req.ShowtimeID,
			SeatIDs:    req.SeatIDs,
			FoodLines:  lines,
			DiscountID: req.DiscountID,
			Buyer: domain.BuyerInfo{
				UserID:   req.Buyer.UserID,
				FullName: req.Buyer.FullName,
				Email:    req.Buyer.Email,
				Phone:    req.Buyer.Phone,
			},
			PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		})
		if err != nil {
			if storageKey != "" {
				_ = idem.Release(c.Request.Context(), storageKey)
			}
			respondErr(c, err)
			return
		}

		resp := SuccessResponse{Success: true, Data: toTicketResponse(t)}

		if storageKey != "" {
			saveIdem(c, idem, storageKey, idemKey, resp)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Get booking
// @Param    id  path  string  true  "Order ID"
// @Success  200 {object} SuccessResponse
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svcs.Booking.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: toTicketResponse(t)})
	}
}

// @Summary  List bookings by buyer email
// @Param    email  query  string  true  "Buyer email"
// @Success  200 {object} SuccessResponse
// @Router   /bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ts, err := svcs.Booking.ListByEmail(c.Request.Context(), c.Query("email"))
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]TicketResponse, 0, len(ts))
		for i := range ts {
			out = append(out, toTicketResponse(&ts[i]))
		}
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: out})
	}
}

// @Summary  Cancel booking and release its seats
// @Param    id  path  string  true  "Order ID"
// @Param    req body  CancelBookingRequest false "payload"
// @Success  200 {object} SuccessResponse
// @Failure  400 {object} ErrorResponse "already cancelled / already used"
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelBookingRequest
		_ = c.ShouldBindJSON(&req)

		if err := svcs.Booking.Cancel(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"order_id": c.Param("id"), "status": "cancelled"}})
	}
}

// @Summary  Create payment intent for a pending order
// @Param    req body  CreateIntentRequest true "payload"
// @Success  201 {object} SuccessResponse
// @Failure  400 {object} ErrorResponse "order not pending payment"
// @Router   /payments/intent [post]
func handleCreateIntent(svcs *service.Services, gateway payment.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateIntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		t, err := svcs.Booking.Get(c.Request.Context(), req.OrderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		if t.Status != domain.TicketPendingPayment || t.PaymentMethod != domain.PaymentStripe {
			badRequest(c, "order is not awaiting online payment")
			return
		}

		in, err := gateway.CreateIntent(c.Request.Context(), t.TotalCents, paymentCurrency, t.OrderID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: IntentResponse{
			IntentID:     in.ID,
			ClientSecret: in.ClientSecret,
			AmountCents:  in.AmountCents,
			Currency:     in.Currency,
			Status:       string(in.Status),
		}})
	}
}

// @Summary  Settle an order against its payment intent
// @Param    req body  ConfirmPaymentRequest true "payload"
// @Success  200 {object} SuccessResponse
// @Failure  400 {object} ErrorResponse "payment not settled"
// @Failure  409 {object} ErrorResponse "hold expired"
// @Router   /payments/confirm [post]
func handleConfirmPayment(svcs *service.Services, gateway payment.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		status, err := gateway.IntentStatus(c.Request.Context(), req.IntentID)
		if err != nil {
			respondErr(c, err)
			return
		}

		switch status {
		case payment.IntentSucceeded:
			if err := svcs.Booking.OnPaymentConfirmed(c.Request.Context(), req.OrderID); err != nil {
				respondErr(c, err)
				return
			}
			c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"order_id": req.OrderID, "status": "completed"}})
		case payment.IntentFailed:
			if err := svcs.Booking.OnPaymentFailed(c.Request.Context(), req.OrderID, "payment failed"); err != nil {
				respondErr(c, err)
				return
			}
			c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"order_id": req.OrderID, "status": "cancelled"}})
		default:
			badRequest(c, "payment not settled yet")
		}
	}
}

// @Summary  Create showtime and seed its seat grid
// @Param    req body  ShowtimeRequest true "payload"
// @Success  201 {object} SuccessResponse
// @Router   /admin/showtimes [post]
func handleCreateShowtime(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := bindShowtime(c)
		if !ok {
			return
		}
		id, err := svcs.Showtime.Create(c.Request.Context(), st)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: gin.H{"showtime_id": id}})
	}
}

// @Summary  Update showtime, rebuilding the seat grid on room change
// @Param    id  path  int  true  "Showtime ID"
// @Param    req body  ShowtimeRequest true "payload"
// @Success  200 {object} SuccessResponse
// @Failure  400 {object} ErrorResponse "showtime has active tickets"
// @Router   /admin/showtimes/{id} [put]
func handleUpdateShowtime(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		st, ok := bindShowtime(c)
		if !ok {
			return
		}
		st.ID = id
		if err := svcs.Showtime.Update(c.Request.Context(), st); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: toShowtimeResponse(st)})
	}
}

// @Summary  Delete showtime and its seat grid
// @Param    id  path  int  true  "Showtime ID"
// @Success  200 {object} SuccessResponse
// @Failure  400 {object} ErrorResponse "showtime has active tickets"
// @Router   /admin/showtimes/{id} [delete]
func handleDeleteShowtime(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Showtime.Delete(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"showtime_id": id}})
	}
}

// @Summary  Scan a ticket at the door
// @Param    id  path  string  true  "Order ID"
// @Success  200 {object} SuccessResponse
// @Failure  400 {object} ErrorResponse "not completed / already used"
// @Router   /admin/bookings/{id}/scan [post]
func handleScanTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("id")
		if err := svcs.Booking.MarkUsed(c.Request.Context(), orderID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"order_id": orderID, "status": "used"}})
	}
}

// @Summary  Delete a cancelled booking record
// @Param    id  path  string  true  "Order ID"
// @Success  200 {object} SuccessResponse
// @Failure  400 {object} ErrorResponse "only cancelled tickets can be deleted"
// @Router   /admin/bookings/{id} [delete]
func handleDeleteBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("id")
		if err := svcs.Booking.Delete(c.Request.Context(), orderID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"order_id": orderID}})
	}
}

// @Summary  Release expired holds now
// @Success  200 {object} SuccessResponse
// @Router   /admin/sweep [post]
func handleSweep(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svcs.Reservation.Expire(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"released": n}})
	}
}

// --- Helpers ---

// beginIdem replays a stored response or acquires the in-flight lock.
// Returns false when the request was already answered.
func beginIdem(c *gin.Context, idem *redisrepo.IdempotencyStore, storageKey, idemKey string) bool {
	if payload, ok, _ := idem.GetResult(c.Request.Context(), storageKey); ok {
		c.Header("Idempotency-Key", idemKey)
		c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
		return false
	}

	locked, err := idem.AcquireLock(c.Request.Context(), storageKey, 60*time.Second)
	if err != nil {
		respondErr(c, err)
		return false
	}
	if locked {
		return true
	}

	if payload, ok, _ := idem.GetResult(c.Request.Context(), storageKey); ok {
		c.Header("Idempotency-Key", idemKey)
		c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
		return false
	}

	c.Header("Retry-After", "1")
	c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
	return false
}

func saveIdem(c *gin.Context, idem *redisrepo.IdempotencyStore, storageKey, idemKey string, resp any) {
	b, _ := json.Marshal(resp)
	_ = idem.SaveResult(c.Request.Context(), storageKey, string(b))
	c.Header("Idempotency-Key", idemKey)
}

func bindShowtime(c *gin.Context) (*domain.Showtime, bool) {
	var req ShowtimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return nil, false
	}

	showDate, err := parseRFC3339(req.ShowDate)
	if err != nil {
		badRequest(c, "invalid show_date (RFC3339)")
		return nil, false
	}
	startsAt, err := parseRFC3339(req.StartsAt)
	if err != nil {
		badRequest(c, "invalid starts_at (RFC3339)")
		return nil, false
	}

	return &domain.Showtime{
		MovieID:  req.MovieID,
		CinemaID: req.CinemaID,
		RoomID:   req.RoomID,
		ShowDate: showDate,
		StartsAt: startsAt,
	}, true
}

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// statusesFor flattens a seat->status map into a slice aligned with seatIDs.
func statusesFor(seatIDs []int64, statuses map[int64]domain.SeatStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		out[i] = string(statuses[id])
	}
	return out
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var rConflict *reservation.SeatConflictError
	if errors.As(err, &rConflict) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:        "seats unavailable",
			Seats:        rConflict.SeatIDs,
			SeatStatuses: statusesFor(rConflict.SeatIDs, rConflict.Statuses),
		})
		return
	}
	var bConflict *booking.SeatConflictError
	if errors.As(err, &bConflict) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:        "seats unavailable",
			Seats:        bConflict.SeatIDs,
			SeatStatuses: statusesFor(bConflict.SeatIDs, bConflict.Statuses),
		})
		return
	}

	switch {
	// validation and state violations
	case errors.Is(err, booking.ErrInvalidInput),
		errors.Is(err, showtime.ErrInvalidInput),
		errors.Is(err, reservation.ErrNoSeatsSelected),
		errors.Is(err, booking.ErrSeatRoomMismatch),
		errors.Is(err, booking.ErrFoodUnavailable),
		errors.Is(err, booking.ErrDiscountInactive),
		errors.Is(err, showtime.ErrRoomHasNoSeats),
		errors.Is(err, booking.ErrTicketCancelled),
		errors.Is(err, booking.ErrTicketUsed),
		errors.Is(err, booking.ErrTicketNotPending),
		errors.Is(err, booking.ErrTicketNotComplete),
		errors.Is(err, booking.ErrTicketNotDeletable),
		errors.Is(err, showtime.ErrHasActiveTickets):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	// missing resources
	case errors.Is(err, booking.ErrShowtimeNotFound),
		errors.Is(err, booking.ErrTicketNotFound),
		errors.Is(err, booking.ErrSeatNotFound),
		errors.Is(err, booking.ErrFoodNotFound),
		errors.Is(err, booking.ErrDiscountNotFound),
		errors.Is(err, query.ErrShowtimeNotFound),
		errors.Is(err, showtime.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	// seat races
	case errors.Is(err, reservation.ErrSeatsUnavailable),
		errors.Is(err, booking.ErrSeatsUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seats unavailable"})
	case errors.Is(err, reservation.ErrHoldExpired),
		errors.Is(err, booking.ErrHoldExpired):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "hold expired"})

	case errors.Is(err, reservation.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
