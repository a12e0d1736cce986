package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/Domenick1991/hotelbooking/internal/kafka"
	"github.com/Domenick1991/hotelbooking/internal/repository"
	"github.com/Domenick1991/hotelbooking/internal/workflow"
	"github.com/google/uuid"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	ConfirmCheckIn(ctx context.Context, id string) (*domain.CheckIn, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ListBookings(ctx context.Context) ([]domain.Booking, error)
	ReconcilePayments(ctx context.Context) ([]domain.Booking, error)
}

// IdempotencyStore binds client idempotency keys to workflow ids.
type IdempotencyStore interface {
	ReserveWorkflowID(ctx context.Context, key, workflowID string, ttl time.Duration) (string, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// BookingService coordinates the booking workflows with the local booking
// projection. The workflow engine decides whether a booking exists; the
// repository only mirrors what the engine reported.
type BookingService struct {
	bookings           repository.BookingRepository
	workflows          workflow.Client
	idempotency        IdempotencyStore
	idempotencyTTL     time.Duration
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	taskQueue          string
	logger             *slog.Logger
	newID              func() string
}

type CreateBookingInput struct {
	Request        domain.BookingRequest
	IdempotencyKey string
}

type BookingServiceOption func(*BookingService)

func WithTaskQueue(queue string) BookingServiceOption {
	return func(s *BookingService) {
		s.taskQueue = queue
	}
}

func WithIdempotency(store IdempotencyStore, ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.idempotency = store
		s.idempotencyTTL = ttl
	}
}

func WithProducer(producer Producer, bookingTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.bookingTopic = bookingTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithLogger(logger *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = logger
	}
}

func NewBookingService(bookings repository.BookingRepository, workflows workflow.Client, opts ...BookingServiceOption) *BookingService {
	service := &BookingService{
		bookings:  bookings,
		workflows: workflows,
		taskQueue: workflow.DefaultTaskQueue,
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking runs a BookHotel workflow to completion and stores the
// resulting booking. Nothing is stored unless the workflow succeeded.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if err := input.Request.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	workflowID, err := s.workflowID(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve idempotency key: %w", ErrWorkflowStart, err)
	}

	logger := s.logger.With(slog.String("workflow_id", workflowID))
	logger.InfoContext(ctx, "starting booking workflow")

	handle, err := s.workflows.Start(ctx, workflow.BookHotelWorkflow, workflow.StartOptions{
		ID:           workflowID,
		TaskQueue:    s.taskQueue,
		JoinExisting: input.IdempotencyKey != "",
	}, input.Request)
	if err != nil {
		logger.ErrorContext(ctx, "booking workflow did not start", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrWorkflowStart, err)
	}

	var result domain.BookHotelResult
	if err := handle.Result(ctx, &result); err != nil {
		logger.ErrorContext(ctx, "booking workflow failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrWorkflowStart, err)
	}
	if result.BookingID == "" {
		return nil, fmt.Errorf("%w: workflow %s returned no booking id", ErrWorkflowStart, workflowID)
	}

	booking := domain.NewBooking(workflowID, input.Request, result)
	stored, created, err := s.bookings.Insert(ctx, booking)
	if err != nil {
		return nil, s.persistenceLost(ctx, booking, err)
	}
	if !created {
		// A retry joined the run that already produced this booking.
		logger.InfoContext(ctx, "booking already recorded", slog.String("booking_id", stored.ID))
		return &stored, nil
	}
	if err := s.bookings.Flush(ctx); err != nil {
		if delErr := s.bookings.Delete(ctx, booking.ID); delErr != nil {
			err = errors.Join(err, fmt.Errorf("discard unflushed booking: %w", delErr))
		}
		return nil, s.persistenceLost(ctx, booking, err)
	}

	logger.InfoContext(ctx, "booking created", slog.String("booking_id", booking.ID), slog.Bool("is_paid", booking.IsPaid))
	s.publish(ctx, kafka.EventBookingCreated, booking, "", nil)
	return &booking, nil
}

// ConfirmCheckIn signals the booking's payment workflow, waits for the
// payment to settle and only then marks the booking paid.
func (s *BookingService) ConfirmCheckIn(ctx context.Context, id string) (*domain.CheckIn, error) {
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	paymentID := workflow.PaymentWorkflowID(current.WorkflowID)
	logger := s.logger.With(slog.String("booking_id", id), slog.String("workflow_id", paymentID))

	handle := s.workflows.GetHandle(ctx, paymentID)
	info, err := handle.Describe(ctx)
	if err != nil {
		logger.WarnContext(ctx, "payment workflow not reachable", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrWorkflowUnreachable, err)
	}

	switch info.Status {
	case workflow.StatusRunning:
		if err := handle.Signal(ctx, workflow.CheckInSignal, nil); err != nil {
			logger.WarnContext(ctx, "check-in signal failed", slog.String("error", err.Error()))
			if errors.Is(err, workflow.ErrExecutionNotFound) {
				return nil, fmt.Errorf("%w: %w", ErrWorkflowUnreachable, err)
			}
			return nil, fmt.Errorf("%w: %w", ErrSignalFailure, err)
		}
	case workflow.StatusCompleted:
		// Already settled; the stored result is still authoritative.
		logger.InfoContext(ctx, "payment workflow already completed, skipping signal")
	default:
		return nil, fmt.Errorf("%w: payment workflow %s is %s", ErrWorkflowUnreachable, paymentID, info.Status)
	}

	var receipt domain.PayHotelResult
	if err := handle.Result(ctx, &receipt); err != nil {
		logger.WarnContext(ctx, "payment workflow failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrSignalFailure, err)
	}

	updated, err := s.markPaid(ctx, id)
	if err != nil {
		return nil, s.persistenceLost(ctx, *current, err)
	}

	logger.InfoContext(ctx, "booking checked in", slog.String("transaction_id", receipt.TransactionID))
	s.publish(ctx, kafka.EventBookingCheckedIn, *updated, receipt.TransactionID, nil)
	return &domain.CheckIn{Booking: *updated, TransactionID: receipt.TransactionID}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.find(ctx, id)
}

func (s *BookingService) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	bookings, err := s.bookings.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	return bookings, nil
}

// ReconcilePayments marks unpaid bookings paid when their payment workflow
// has already completed, which repairs check-ins whose local write was lost.
// It never starts or signals a workflow.
func (s *BookingService) ReconcilePayments(ctx context.Context) ([]domain.Booking, error) {
	bookings, err := s.bookings.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	var reconciled []domain.Booking
	for _, b := range bookings {
		if b.IsPaid {
			continue
		}
		if err := ctx.Err(); err != nil {
			return reconciled, err
		}

		handle := s.workflows.GetHandle(ctx, workflow.PaymentWorkflowID(b.WorkflowID))
		info, err := handle.Describe(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "reconcile: describe payment workflow",
				slog.String("booking_id", b.ID), slog.String("error", err.Error()))
			continue
		}
		if info.Status != workflow.StatusCompleted {
			continue
		}

		var receipt domain.PayHotelResult
		if err := handle.Result(ctx, &receipt); err != nil {
			s.logger.WarnContext(ctx, "reconcile: payment result",
				slog.String("booking_id", b.ID), slog.String("error", err.Error()))
			continue
		}

		updated, err := s.markPaid(ctx, b.ID)
		if err != nil {
			return reconciled, fmt.Errorf("reconcile booking %s: %w", b.ID, err)
		}
		reconciled = append(reconciled, *updated)
	}

	if len(reconciled) > 0 {
		s.logger.InfoContext(ctx, "reconciled payments", slog.Int("count", len(reconciled)))
	}
	return reconciled, nil
}

func (s *BookingService) find(ctx context.Context, id string) (*domain.Booking, error) {
	bookings, err := s.bookings.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	b, ok := findBooking(bookings, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &b, nil
}

// findBooking reports presence explicitly; the first record is as valid a
// match as any other.
func findBooking(bookings []domain.Booking, id string) (domain.Booking, bool) {
	for _, b := range bookings {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Booking{}, false
}

func (s *BookingService) markPaid(ctx context.Context, id string) (*domain.Booking, error) {
	updated, err := s.bookings.Update(ctx, id, func(b *domain.Booking) error {
		b.IsPaid = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.bookings.Flush(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *BookingService) workflowID(ctx context.Context, idempotencyKey string) (string, error) {
	candidate := "book-" + s.newID()
	if idempotencyKey == "" {
		return candidate, nil
	}
	if s.idempotency == nil {
		return "book-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(idempotencyKey)).String(), nil
	}
	return s.idempotency.ReserveWorkflowID(ctx, idempotencyKey, candidate, s.idempotencyTTL)
}

func (s *BookingService) persistenceLost(ctx context.Context, booking domain.Booking, cause error) error {
	s.logger.ErrorContext(ctx, "booking projection diverged from workflow engine",
		slog.String("booking_id", booking.ID),
		slog.String("workflow_id", booking.WorkflowID),
		slog.String("error", cause.Error()),
	)
	s.publish(ctx, kafka.EventBookingPersistenceLost, booking, "", cause)
	return fmt.Errorf("%w: booking %s (workflow %s): %w", ErrPersistenceLost, booking.ID, booking.WorkflowID, cause)
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking domain.Booking, transactionID string, cause error) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:           eventType,
		BookingID:      booking.ID,
		WorkflowID:     booking.WorkflowID,
		HotelID:        booking.HotelID,
		GuestEmail:     booking.GuestEmail,
		TotalCostPence: booking.TotalCostPence,
		PayOnCheckIn:   booking.PayOnCheckIn,
		IsPaid:         booking.IsPaid,
		PaymentDate:    booking.PaymentDate,
		CheckIn:        booking.CheckIn,
		CheckOut:       booking.CheckOut,
		TransactionID:  transactionID,
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	topics := []string{s.bookingTopic}
	if s.notificationsTopic != "" && eventType != kafka.EventBookingPersistenceLost {
		topics = append(topics, s.notificationsTopic)
	}
	for _, topic := range topics {
		if err := s.producer.Publish(ctx, topic, booking.ID, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish booking event",
				slog.String("type", eventType),
				slog.String("topic", topic),
				slog.String("booking_id", booking.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

var _ BookingUseCase = (*BookingService)(nil)
