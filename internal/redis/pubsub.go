package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// BookingPubSub publishes booking lifecycle events for the notifications
// collaborator. Publishing is fire-and-forget: a failed publish never rolls
// back the booking it describes.
type BookingPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewBookingPubSub(rdb *redis.Client) *BookingPubSub {
	return &BookingPubSub{
		rdb:     rdb,
		channel: ChannelBookingEvents(),
	}
}

const (
	EventBookingCreated   = "booking_created"
	EventPaymentConfirmed = "payment_confirmed"
	EventBookingCancelled = "booking_cancelled"
)

type bookingEventMsg struct {
	Type       string `json:"type"`
	OrderID    string `json:"order_id"`
	ShowtimeID int64  `json:"showtime_id"`
	TsUnix     int64  `json:"ts_unix"`
}

func (p *BookingPubSub) Publish(ctx context.Context, eventType, orderID string, showtimeID int64) error {
	msg := bookingEventMsg{
		Type:       eventType,
		OrderID:    orderID,
		ShowtimeID: showtimeID,
		TsUnix:     time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *BookingPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, eventType, orderID string)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev bookingEventMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil && ev.OrderID != "" {
				handler(ctx, ev.Type, ev.OrderID)
			}
		}
	}
}
