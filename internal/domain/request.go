package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// Date is a time.Time that also accepts plain YYYY-MM-DD values in JSON.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}

	if t, err := time.Parse(dateLayout, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", raw)
	}
	d.Time = t
	return nil
}

type CardDetails struct {
	Number       string `json:"number" validate:"omitempty,numeric,min=12,max=19"`
	ExpiryMonth  int    `json:"expiryMonth" validate:"omitempty,min=1,max=12"`
	ExpiryYear   int    `json:"expiryYear" validate:"omitempty,min=2000"`
	SecurityCode int    `json:"securityCode" validate:"omitempty,min=0,max=9999"`
}

// BookingRequest is the argument passed to the BookHotel workflow.
type BookingRequest struct {
	HotelID          string      `json:"hotelId"`
	GuestEmail       string      `json:"guestEmail,omitempty" validate:"omitempty,email"`
	TotalCostInPence int64       `json:"totalCostInPence" validate:"gte=0"`
	CheckInDate      Date        `json:"checkInDate"`
	CheckOutDate     Date        `json:"checkOutDate"`
	PayOnCheckIn     bool        `json:"payOnCheckIn"`
	PrePaymentDate   Date        `json:"prePaymentDate"`
	CardDetails      CardDetails `json:"cardDetails"`
}

var validate = validator.New()

func (r BookingRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	if r.CheckInDate.IsZero() || r.CheckOutDate.IsZero() {
		return errors.New("checkInDate and checkOutDate are required")
	}
	if !r.CheckInDate.Before(r.CheckOutDate.Time) {
		return errors.New("checkInDate must be before checkOutDate")
	}
	if !r.PayOnCheckIn && !r.PrePaymentDate.IsZero() && r.PrePaymentDate.After(r.CheckInDate.Time) {
		return errors.New("prePaymentDate must not be after checkInDate")
	}
	return nil
}
