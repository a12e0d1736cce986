package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const bookingColumns = `id, workflow_id, hotel_id, guest_email, payment_date, total_cost_pence,
	pay_on_check_in, pre_payment_required, is_paid, check_in, check_out`

const createBookingsTable = `CREATE TABLE IF NOT EXISTS bookings (
	id                   TEXT PRIMARY KEY,
	workflow_id          TEXT NOT NULL UNIQUE,
	hotel_id             TEXT NOT NULL DEFAULT '',
	guest_email          TEXT NOT NULL DEFAULT '',
	payment_date         TIMESTAMPTZ NOT NULL,
	total_cost_pence     BIGINT NOT NULL CHECK (total_cost_pence >= 0),
	pay_on_check_in      BOOLEAN NOT NULL,
	pre_payment_required BOOLEAN NOT NULL,
	is_paid              BOOLEAN NOT NULL,
	check_in             TIMESTAMPTZ NOT NULL,
	check_out            TIMESTAMPTZ NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (check_in < check_out)
)`

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PGBookingRepository stores bookings in PostgreSQL. Every write commits in
// its own transaction, so Flush has nothing left to do.
type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) *PGBookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createBookingsTable); err != nil {
		return fmt.Errorf("create bookings table: %w", err)
	}
	return nil
}

func (r *PGBookingRepository) LoadAll(ctx context.Context) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// Insert never overwrites: a conflicting row is read back and compared by
// workflow id.
func (r *PGBookingRepository) Insert(ctx context.Context, b domain.Booking) (domain.Booking, bool, error) {
	inserted, err := scanBooking(r.db.QueryRow(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING
		RETURNING `+bookingColumns,
		b.ID, b.WorkflowID, b.HotelID, b.GuestEmail, b.PaymentDate, b.TotalCostPence,
		b.PayOnCheckIn, b.PrePaymentRequired, b.IsPaid, b.CheckIn, b.CheckOut))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, false, err
	}

	stored, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, b.ID))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// The id is free, so the workflow id is taken by another booking.
		return domain.Booking{}, false, fmt.Errorf("%w: workflow %s already has a booking", ErrBookingConflict, b.WorkflowID)
	case err != nil:
		return domain.Booking{}, false, err
	case stored.WorkflowID != b.WorkflowID:
		return stored, false, fmt.Errorf("%w: %s is bound to %s, not %s",
			ErrBookingConflict, b.ID, stored.WorkflowID, b.WorkflowID)
	}
	return stored, false, nil
}

func (r *PGBookingRepository) Update(ctx context.Context, id string, apply func(*domain.Booking) error) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	updated := current
	if err := apply(&updated); err != nil {
		return nil, err
	}
	updated = updated.MergeInto(current)

	if _, err := tx.Exec(ctx, `UPDATE bookings SET
			hotel_id=$2, guest_email=$3, payment_date=$4, total_cost_pence=$5,
			pay_on_check_in=$6, pre_payment_required=$7, is_paid=$8,
			check_in=$9, check_out=$10, updated_at=now()
		WHERE id=$1`,
		id, updated.HotelID, updated.GuestEmail, updated.PaymentDate, updated.TotalCostPence,
		updated.PayOnCheckIn, updated.PrePaymentRequired, updated.IsPaid,
		updated.CheckIn, updated.CheckOut); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *PGBookingRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PGBookingRepository) Flush(ctx context.Context) error {
	return nil
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.WorkflowID, &b.HotelID, &b.GuestEmail, &b.PaymentDate, &b.TotalCostPence,
		&b.PayOnCheckIn, &b.PrePaymentRequired, &b.IsPaid, &b.CheckIn, &b.CheckOut)
	return b, err
}

var _ BookingRepository = (*PGBookingRepository)(nil)
