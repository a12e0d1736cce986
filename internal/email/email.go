package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/hotelbooking/internal/kafka"
)

// Sender delivers guest notifications. Delivery is a log line for now.
type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if event.GuestEmail == "" {
		return nil
	}
	subject, body, ok := Compose(event)
	if !ok {
		return nil
	}
	s.logger.InfoContext(ctx, "send email",
		slog.String("to", event.GuestEmail),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

// Compose renders the message for event. Event types guests are not told
// about report ok=false.
func Compose(event kafka.BookingEvent) (subject, body string, ok bool) {
	stay := fmt.Sprintf("%s to %s", event.CheckIn.Format("2 Jan 2006"), event.CheckOut.Format("2 Jan 2006"))
	cost := fmt.Sprintf("£%d.%02d", event.TotalCostPence/100, event.TotalCostPence%100)

	switch event.Type {
	case kafka.EventBookingCreated:
		subject = fmt.Sprintf("Booking %s confirmed", event.BookingID)
		if event.PayOnCheckIn {
			body = fmt.Sprintf("Your stay %s is booked. %s will be taken when you check in.", stay, cost)
		} else {
			body = fmt.Sprintf("Your stay %s is booked. %s will be taken on %s.", stay, cost, event.PaymentDate.Format("2 Jan 2006"))
		}
		return subject, body, true
	case kafka.EventBookingCheckedIn:
		subject = fmt.Sprintf("Welcome, booking %s", event.BookingID)
		body = fmt.Sprintf("You are checked in for %s. Payment reference %s.", stay, event.TransactionID)
		return subject, body, true
	default:
		return "", "", false
	}
}
