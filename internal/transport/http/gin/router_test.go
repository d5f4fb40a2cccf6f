package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/payment"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository/memory"
	"github.com/HuyVanh/my-backend-api-movie/internal/service"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/booking"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/reservation"
)

type envelope struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data"`
	Error        string          `json:"error"`
	Seats        []int64         `json:"seats"`
	SeatStatuses []string        `json:"seat_statuses"`
}

func newTestRouter(t *testing.T) (*gin.Engine, int64) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	seatStates := memory.NewSeatStateStore()
	tickets := memory.NewTicketStore()
	showtimes := memory.NewShowtimeStore()
	catalog := memory.NewCatalogStore()

	catalog.SeedSeats(
		domain.Seat{ID: 1, RoomID: 1, Name: "A1", PriceCents: 1000},
		domain.Seat{ID: 2, RoomID: 1, Name: "A2", PriceCents: 1000},
		domain.Seat{ID: 3, RoomID: 1, Name: "A3", PriceCents: 1500},
	)

	ctx := context.Background()
	showtimeID, err := showtimes.Create(ctx, &domain.Showtime{
		MovieID: 1, CinemaID: 1, RoomID: 1,
		ShowDate: time.Now(), StartsAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, seatStates.Initialize(ctx, showtimeID, 1, []int64{1, 2, 3}))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.New(log, service.Stores{
		SeatStates: seatStates,
		Tickets:    tickets,
		Showtimes:  showtimes,
		Catalog:    catalog,
	}, nil, nil, nil, service.Config{
		Reservation: reservation.Config{
			DefaultHoldTTL: 15 * time.Minute,
			MinHoldTTL:     30 * time.Second,
			MaxHoldTTL:     30 * time.Minute,
		},
		Booking: booking.Config{PaymentWindow: 15 * time.Minute},
	})

	return NewRouter(svcs, nil, payment.NewMockGateway(), log), showtimeID
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}

	return w, env
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSeatMapEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/showtimes/1/seats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	var m struct {
		Seats   []any `json:"seats"`
		Summary struct {
			Available int64 `json:"available"`
			Total     int64 `json:"total"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Len(t, m.Seats, 3)
	assert.Equal(t, int64(3), m.Summary.Available)

	w, env = doJSON(t, r, http.MethodGet, "/showtimes/99/seats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestHoldLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/showtimes/1/holds", CreateHoldRequest{SeatIDs: []int64{1, 2}})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var hold HoldResponse
	require.NoError(t, json.Unmarshal(env.Data, &hold))
	assert.NotEmpty(t, hold.HoldID)

	// Overlapping hold loses with the exact conflicting seats named,
	// each with its current status.
	w, env = doJSON(t, r, http.MethodPost, "/showtimes/1/holds", CreateHoldRequest{SeatIDs: []int64{2, 3}})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []int64{2}, env.Seats)
	assert.Equal(t, []string{"reserved"}, env.SeatStatuses)

	// Releasing frees the seats for the next hold.
	w, _ = doJSON(t, r, http.MethodPost, "/showtimes/1/holds/cancel", CancelHoldRequest{SeatIDs: []int64{1, 2}})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/showtimes/1/holds", CreateHoldRequest{SeatIDs: []int64{2, 3}})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBookingLifecycleCash(t *testing.T) {
	r, _ := newTestRouter(t)

	req := CreateBookingRequest{
		ShowtimeID:    1,
		SeatIDs:       []int64{1, 2},
		Buyer:         BuyerInput{FullName: "Jane Doe", Email: "jane@example.com"},
		PaymentMethod: "cash",
	}

	w, env := doJSON(t, r, http.MethodPost, "/bookings", req)
	require.Equal(t, http.StatusCreated, w.Code)

	var tk TicketResponse
	require.NoError(t, json.Unmarshal(env.Data, &tk))
	assert.Equal(t, "pending_payment", tk.Status)
	assert.Equal(t, int64(2000), tk.TotalCents)

	w, _ = doJSON(t, r, http.MethodGet, "/bookings/"+tk.OrderID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/bookings?email=jane@example.com", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// The same seats cannot be booked twice.
	w, env = doJSON(t, r, http.MethodPost, "/bookings", req)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, env.Seats)

	w, _ = doJSON(t, r, http.MethodPost, "/bookings/"+tk.OrderID+"/cancel", CancelBookingRequest{Reason: "test"})
	require.Equal(t, http.StatusOK, w.Code)

	// Cancelling an already-cancelled ticket is a state violation, not a
	// seat race: 400, not 409.
	w, _ = doJSON(t, r, http.MethodPost, "/bookings/"+tk.OrderID+"/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Seats are resellable after the cancel.
	w, _ = doJSON(t, r, http.MethodPost, "/bookings", req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestStripePaymentFlowAndScan(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/bookings", CreateBookingRequest{
		ShowtimeID:    1,
		SeatIDs:       []int64{1},
		Buyer:         BuyerInput{FullName: "Jane Doe", Email: "jane@example.com"},
		PaymentMethod: "stripe",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var tk TicketResponse
	require.NoError(t, json.Unmarshal(env.Data, &tk))

	w, env = doJSON(t, r, http.MethodPost, "/payments/intent", CreateIntentRequest{OrderID: tk.OrderID})
	require.Equal(t, http.StatusCreated, w.Code)

	var in IntentResponse
	require.NoError(t, json.Unmarshal(env.Data, &in))
	require.NotEmpty(t, in.IntentID)

	w, _ = doJSON(t, r, http.MethodPost, "/payments/confirm", ConfirmPaymentRequest{
		OrderID:  tk.OrderID,
		IntentID: in.IntentID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/bookings/"+tk.OrderID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Scan at the door, once.
	w, _ = doJSON(t, r, http.MethodPost, "/admin/bookings/"+tk.OrderID+"/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/admin/bookings/"+tk.OrderID+"/scan", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShowtimeAdminEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/admin/showtimes", ShowtimeRequest{
		MovieID:  1,
		CinemaID: 1,
		RoomID:   1,
		ShowDate: time.Now().Format(time.RFC3339),
		StartsAt: time.Now().Add(2 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ShowtimeID int64 `json:"showtime_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotZero(t, created.ShowtimeID)

	w, _ = doJSON(t, r, http.MethodDelete, "/admin/showtimes/2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidationErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/bookings", map[string]any{"showtime_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/showtimes/abc/holds", CreateHoldRequest{SeatIDs: []int64{1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/bookings?email=", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
