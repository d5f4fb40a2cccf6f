package redisx

import "fmt"

const ns = "moviebooking:v1"

func KeyShowtimeSeats(showtimeID int64) string {
	return fmt.Sprintf("%s:showtime:%d:seats", ns, showtimeID)
}

func KeyShowtimeSummary(showtimeID int64) string {
	return fmt.Sprintf("%s:showtime:%d:summary", ns, showtimeID)
}

// KeyRateLimit is a prefix; the limiter appends the client key.
func KeyRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func ChannelBookingEvents() string {
	return ns + ":bookings:events"
}
