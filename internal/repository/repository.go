package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/hotelbooking/internal/domain"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	// ErrBookingConflict marks a booking id that is already stored for a
	// different workflow.
	ErrBookingConflict = errors.New("booking id belongs to another workflow")
)

// BookingRepository is the record store behind the reservation projection.
//
// Insert, Update and Delete are atomic per booking id: two writers of the same
// id are serialized, writers of different ids do not wait on each other.
// Flush is the durable commit point.
type BookingRepository interface {
	LoadAll(ctx context.Context) ([]domain.Booking, error)
	// Insert stores booking unless its id is already present. An existing
	// record with the same workflow id is returned untouched with
	// created=false; one with a different workflow id yields
	// ErrBookingConflict.
	Insert(ctx context.Context, booking domain.Booking) (stored domain.Booking, created bool, err error)
	Update(ctx context.Context, id string, apply func(*domain.Booking) error) (*domain.Booking, error)
	Delete(ctx context.Context, id string) error
	Flush(ctx context.Context) error
}
