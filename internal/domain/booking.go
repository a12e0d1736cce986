package domain

import "time"

// Booking is the local projection of a completed BookHotel workflow.
type Booking struct {
	ID                 string    `json:"id"`
	WorkflowID         string    `json:"workflowId"`
	HotelID            string    `json:"hotelId,omitempty"`
	GuestEmail         string    `json:"guestEmail,omitempty"`
	PaymentDate        time.Time `json:"paymentDate"`
	TotalCostPence     int64     `json:"totalCostPence"`
	PayOnCheckIn       bool      `json:"payOnCheckIn"`
	PrePaymentRequired bool      `json:"prePaymentRequired"`
	IsPaid             bool      `json:"isPaid"`
	CheckIn            time.Time `json:"checkIn"`
	CheckOut           time.Time `json:"checkOut"`
}

// BookHotelResult is the value returned by the BookHotel workflow.
type BookHotelResult struct {
	BookingID   string `json:"bookingId"`
	HotelID     string `json:"hotelId"`
	PaymentDate Date   `json:"paymentDate"`
}

// PayHotelResult is the value returned by the payment child workflow.
type PayHotelResult struct {
	TransactionID string `json:"transactionId"`
}

// CheckIn is the outcome of a confirmed check-in: the stored booking plus
// the payment details reported by the payment workflow.
type CheckIn struct {
	Booking
	TransactionID string `json:"transactionId,omitempty"`
}

// NewBooking builds the projection for a finished BookHotel workflow.
func NewBooking(workflowID string, req BookingRequest, result BookHotelResult) Booking {
	hotelID := result.HotelID
	if hotelID == "" {
		hotelID = req.HotelID
	}
	return Booking{
		ID:                 result.BookingID,
		WorkflowID:         workflowID,
		HotelID:            hotelID,
		GuestEmail:         req.GuestEmail,
		PaymentDate:        result.PaymentDate.Time,
		TotalCostPence:     req.TotalCostInPence,
		PayOnCheckIn:       req.PayOnCheckIn,
		PrePaymentRequired: !req.PayOnCheckIn,
		IsPaid:             !req.PayOnCheckIn,
		CheckIn:            req.CheckInDate.Time,
		CheckOut:           req.CheckOutDate.Time,
	}
}

// MergeInto applies b over an already stored record. The workflow id is
// write-once and IsPaid never goes back to false.
func (b Booking) MergeInto(prev Booking) Booking {
	if prev.WorkflowID != "" {
		b.WorkflowID = prev.WorkflowID
	}
	b.IsPaid = b.IsPaid || prev.IsPaid
	return b
}
