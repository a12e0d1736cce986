package hotel

import (
	"context"
	"errors"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

const errInvalidInput = "InvalidInput"

// Activities talks to the hotel and the card processor. Both are simulated:
// every reservation and capture succeeds with a fresh id.
type Activities struct {
	newID func() string
}

func NewActivities() *Activities {
	return &Activities{newID: uuid.NewString}
}

func (a *Activities) ReserveHotel(ctx context.Context, in ReserveHotelInput) (ReserveHotelResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("reserving hotel", "hotel_id", in.HotelID)

	if !in.CheckInDate.Before(in.CheckOutDate) {
		return ReserveHotelResult{}, temporal.NewNonRetryableApplicationError(
			"check-in must be before check-out", errInvalidInput, errors.New("empty stay"))
	}

	result := ReserveHotelResult{BookingID: a.newID()}
	logger.Info("hotel reserved", "booking_id", result.BookingID)
	return result, nil
}

// CapturePayment charges the card for the booking.
func (a *Activities) CapturePayment(ctx context.Context, in PayHotelInput) (domain.PayHotelResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("capturing payment", "booking_id", in.BookingID, "amount_pence", in.TotalCostInPence)

	if in.TotalCostInPence < 0 {
		return domain.PayHotelResult{}, temporal.NewNonRetryableApplicationError(
			"negative amount", errInvalidInput, nil)
	}

	result := domain.PayHotelResult{TransactionID: a.newID()}
	logger.Info("payment captured", "booking_id", in.BookingID, "transaction_id", result.TransactionID)
	return result, nil
}
