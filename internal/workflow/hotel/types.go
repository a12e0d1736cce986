// Package hotel holds the workflow and activity code run by the worker
// process: BookHotel reserves the room and hands payment to a detached
// PayHotel child that settles on the payment date or at check-in.
package hotel

import (
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
)

type ReserveHotelInput struct {
	HotelID      string    `json:"hotelId"`
	CheckInDate  time.Time `json:"checkInDate"`
	CheckOutDate time.Time `json:"checkOutDate"`
}

type ReserveHotelResult struct {
	BookingID string `json:"bookingId"`
}

// PayHotelInput is the argument of the PayHotel child workflow and of the
// payment capture activity it runs.
type PayHotelInput struct {
	BookingID        string             `json:"bookingId"`
	CardDetails      domain.CardDetails `json:"cardDetails"`
	TotalCostInPence int64              `json:"totalCostInPence"`
	// Zero means pay immediately.
	PaymentDate time.Time `json:"paymentDate"`
}
