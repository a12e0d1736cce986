package booking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/Domenick1991/hotelbooking/internal/kafka"
	"github.com/Domenick1991/hotelbooking/internal/repository"
	"github.com/Domenick1991/hotelbooking/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWorkflowClient struct {
	mock.Mock
}

func (m *MockWorkflowClient) Start(ctx context.Context, workflowType string, opts workflow.StartOptions, args ...any) (workflow.Handle, error) {
	ret := m.Called(ctx, workflowType, opts, args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(workflow.Handle), ret.Error(1)
}

func (m *MockWorkflowClient) GetHandle(ctx context.Context, workflowID string) workflow.Handle {
	return m.Called(ctx, workflowID).Get(0).(workflow.Handle)
}

type MockHandle struct {
	mock.Mock
	id string
}

func (m *MockHandle) ID() string {
	return m.id
}

func (m *MockHandle) Result(ctx context.Context, valuePtr any) error {
	return m.Called(ctx, valuePtr).Error(0)
}

func (m *MockHandle) Signal(ctx context.Context, name string, payload any) error {
	return m.Called(ctx, name, payload).Error(0)
}

func (m *MockHandle) Describe(ctx context.Context) (workflow.ExecutionInfo, error) {
	ret := m.Called(ctx)
	return ret.Get(0).(workflow.ExecutionInfo), ret.Error(1)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) ReserveWorkflowID(ctx context.Context, key, workflowID string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, workflowID, ttl)
	return args.String(0), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value any) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

// countingRepository counts writes and can fail Flush on demand.
type countingRepository struct {
	*repository.FileBookingRepository
	updates  atomic.Int32
	flushErr error
}

func (r *countingRepository) Update(ctx context.Context, id string, apply func(*domain.Booking) error) (*domain.Booking, error) {
	r.updates.Add(1)
	return r.FileBookingRepository.Update(ctx, id, apply)
}

func (r *countingRepository) Flush(ctx context.Context) error {
	if r.flushErr != nil {
		return r.flushErr
	}
	return r.FileBookingRepository.Flush(ctx)
}

func insertBooking(t *testing.T, repo repository.BookingRepository, b domain.Booking) {
	t.Helper()
	_, _, err := repo.Insert(context.Background(), b)
	require.NoError(t, err)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRepository(t *testing.T) *countingRepository {
	t.Helper()
	repo, err := repository.NewFileBookingRepository(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	return &countingRepository{FileBookingRepository: repo}
}

func decodeRequest(t *testing.T, body string) domain.BookingRequest {
	t.Helper()
	var req domain.BookingRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

const (
	payNowRequest     = `{"totalCostInPence": 10000, "payOnCheckIn": false, "checkInDate": "2025-06-01", "checkOutDate": "2025-06-03"}`
	payOnCheckInBody  = `{"totalCostInPence": 10000, "payOnCheckIn": true, "checkInDate": "2025-06-01", "checkOutDate": "2025-06-03", "guestEmail": "guest@example.com"}`
	bookHotelResponse = `{"bookingId": "abc", "paymentDate": "2025-05-25"}`
)

// returnsJSON fills the result pointer the way the engine's JSON converter does.
func returnsJSON(body string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		if err := json.Unmarshal([]byte(body), args.Get(1)); err != nil {
			panic(err)
		}
	}
}

func expectBookHotel(client *MockWorkflowClient, req domain.BookingRequest) *MockHandle {
	handle := &MockHandle{}
	client.On("Start", mock.Anything, workflow.BookHotelWorkflow, mock.MatchedBy(func(o workflow.StartOptions) bool {
		handle.id = o.ID
		return strings.HasPrefix(o.ID, "book-") && o.TaskQueue == workflow.DefaultTaskQueue && !o.JoinExisting
	}), []any{req}).Return(handle, nil).Once()
	handle.On("Result", mock.Anything, mock.AnythingOfType("*domain.BookHotelResult")).
		Run(returnsJSON(bookHotelResponse)).Return(nil).Once()
	return handle
}

func TestBookingService_CreateBooking_PayNow(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	req := decodeRequest(t, payNowRequest)
	expectBookHotel(client, req)

	booking, err := service.CreateBooking(ctx, CreateBookingInput{Request: req})

	require.NoError(t, err)
	assert.Equal(t, "abc", booking.ID)
	assert.True(t, booking.IsPaid)
	assert.True(t, booking.PrePaymentRequired)
	assert.Equal(t, int64(10000), booking.TotalCostPence)
	assert.True(t, strings.HasPrefix(booking.WorkflowID, "book-"))
	assert.True(t, booking.PaymentDate.Equal(time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC)))

	stored, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Booking{*booking}, stored)
	client.AssertExpectations(t)
}

func TestBookingService_CreateBooking_FreshWorkflowIDPerAttempt(t *testing.T) {
	ctx := context.Background()
	client := &MockWorkflowClient{}
	service := NewBookingService(newRepository(t), client, WithLogger(discardLogger()))

	req := decodeRequest(t, payNowRequest)
	expectBookHotel(client, req)
	expectBookHotel(client, req)

	first, err := service.CreateBooking(ctx, CreateBookingInput{Request: req})
	require.NoError(t, err)
	second, err := service.CreateBooking(ctx, CreateBookingInput{Request: req})
	require.NoError(t, err)

	assert.NotEqual(t, first.WorkflowID, second.WorkflowID)
}

func TestBookingService_CreateBooking_ValidationErrors(t *testing.T) {
	client := &MockWorkflowClient{}
	repo := newRepository(t)
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	testCases := []struct {
		name string
		body string
	}{
		{name: "check-in after check-out", body: `{"totalCostInPence": 1, "checkInDate": "2025-06-03", "checkOutDate": "2025-06-01"}`},
		{name: "same day", body: `{"totalCostInPence": 1, "checkInDate": "2025-06-01", "checkOutDate": "2025-06-01"}`},
		{name: "negative cost", body: `{"totalCostInPence": -5, "checkInDate": "2025-06-01", "checkOutDate": "2025-06-03"}`},
		{name: "missing dates", body: `{"totalCostInPence": 1}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			booking, err := service.CreateBooking(context.Background(), CreateBookingInput{Request: decodeRequest(t, tc.body)})
			assert.ErrorIs(t, err, ErrValidation)
			assert.Nil(t, booking)
		})
	}

	client.AssertNotCalled(t, "Start")
	stored, _ := repo.LoadAll(context.Background())
	assert.Empty(t, stored)
}

func TestBookingService_CreateBooking_StartFailure(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	client.On("Start", mock.Anything, workflow.BookHotelWorkflow, mock.Anything, mock.Anything).
		Return(nil, errors.New("frontend unavailable")).Once()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{Request: decodeRequest(t, payNowRequest)})

	assert.ErrorIs(t, err, ErrWorkflowStart)
	assert.ErrorContains(t, err, "frontend unavailable")
	assert.Nil(t, booking)
	stored, _ := repo.LoadAll(ctx)
	assert.Empty(t, stored)
}

func TestBookingService_CreateBooking_WorkflowFailed(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	handle := &MockHandle{id: "book-1"}
	client.On("Start", mock.Anything, workflow.BookHotelWorkflow, mock.Anything, mock.Anything).Return(handle, nil).Once()
	handle.On("Result", mock.Anything, mock.Anything).Return(workflow.ErrTimeout).Once()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{Request: decodeRequest(t, payNowRequest)})

	assert.ErrorIs(t, err, ErrWorkflowStart)
	assert.ErrorIs(t, err, workflow.ErrTimeout)
	assert.Nil(t, booking)
	stored, _ := repo.LoadAll(ctx)
	assert.Empty(t, stored)
}

func TestBookingService_CreateBooking_EmptyBookingID(t *testing.T) {
	client := &MockWorkflowClient{}
	service := NewBookingService(newRepository(t), client, WithLogger(discardLogger()))

	handle := &MockHandle{id: "book-1"}
	client.On("Start", mock.Anything, workflow.BookHotelWorkflow, mock.Anything, mock.Anything).Return(handle, nil).Once()
	handle.On("Result", mock.Anything, mock.Anything).Run(returnsJSON(`{}`)).Return(nil).Once()

	_, err := service.CreateBooking(context.Background(), CreateBookingInput{Request: decodeRequest(t, payNowRequest)})
	assert.ErrorIs(t, err, ErrWorkflowStart)
}

func TestBookingService_CreateBooking_PersistenceLost(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	repo.flushErr = errors.New("disk full")
	client := &MockWorkflowClient{}
	producer := &MockProducer{}
	service := NewBookingService(repo, client,
		WithLogger(discardLogger()),
		WithProducer(producer, "booking-events"),
	)

	req := decodeRequest(t, payNowRequest)
	expectBookHotel(client, req)
	producer.On("Publish", ctx, "booking-events", "abc", mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventBookingPersistenceLost && e.Error == "disk full"
	})).Return(nil).Once()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{Request: req})

	assert.Nil(t, booking)
	assert.ErrorIs(t, err, ErrPersistenceLost)
	assert.NotErrorIs(t, err, ErrWorkflowStart)
	producer.AssertExpectations(t)

	// The unflushed record is discarded, so a later flush cannot persist it.
	_, err = service.GetBooking(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	repo.flushErr = nil
	require.NoError(t, repo.Flush(ctx))
	stored, _ := repo.LoadAll(ctx)
	assert.Empty(t, stored)
}

func TestBookingService_CreateBooking_KeyedRetryKeepsStoredRecord(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	handle := &MockHandle{}
	client.On("Start", mock.Anything, workflow.BookHotelWorkflow, mock.MatchedBy(func(o workflow.StartOptions) bool {
		return o.JoinExisting
	}), mock.Anything).Return(handle, nil).Twice()
	handle.On("Result", mock.Anything, mock.Anything).Run(returnsJSON(bookHotelResponse)).Return(nil).Twice()

	first, err := service.CreateBooking(ctx, CreateBookingInput{
		Request:        decodeRequest(t, payNowRequest),
		IdempotencyKey: "retry-me",
	})
	require.NoError(t, err)

	changed := `{"totalCostInPence": 1, "payOnCheckIn": true, "checkInDate": "2030-01-01", "checkOutDate": "2030-01-05"}`
	retried, err := service.CreateBooking(ctx, CreateBookingInput{
		Request:        decodeRequest(t, changed),
		IdempotencyKey: "retry-me",
	})
	require.NoError(t, err)

	assert.Equal(t, *first, *retried)
	stored, _ := repo.LoadAll(ctx)
	require.Len(t, stored, 1)
	assert.Equal(t, *first, stored[0])
	assert.Equal(t, int64(10000), stored[0].TotalCostPence)
	assert.True(t, stored[0].IsPaid)
	assert.True(t, stored[0].PrePaymentRequired)
}

func TestBookingService_CreateBooking_BookingIDCollision(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	payNow := decodeRequest(t, payNowRequest)
	payLater := decodeRequest(t, payOnCheckInBody)
	expectBookHotel(client, payNow)
	expectBookHotel(client, payLater)

	first, err := service.CreateBooking(ctx, CreateBookingInput{Request: payNow})
	require.NoError(t, err)

	second, err := service.CreateBooking(ctx, CreateBookingInput{Request: payLater})

	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrPersistenceLost)
	assert.ErrorIs(t, err, repository.ErrBookingConflict)

	stored, _ := repo.LoadAll(ctx)
	assert.Equal(t, []domain.Booking{*first}, stored)
}

func TestBookingService_CreateBooking_IdempotencyKey(t *testing.T) {
	ctx := context.Background()

	t.Run("registry returns the first workflow id", func(t *testing.T) {
		client := &MockWorkflowClient{}
		store := &MockIdempotencyStore{}
		service := NewBookingService(newRepository(t), client,
			WithLogger(discardLogger()),
			WithIdempotency(store, time.Hour),
		)

		store.On("ReserveWorkflowID", ctx, "key-1", mock.Anything, time.Hour).Return("book-first", nil).Once()
		handle := &MockHandle{id: "book-first"}
		client.On("Start", mock.Anything, workflow.BookHotelWorkflow, workflow.StartOptions{
			ID:           "book-first",
			TaskQueue:    workflow.DefaultTaskQueue,
			JoinExisting: true,
		}, mock.Anything).Return(handle, nil).Once()
		handle.On("Result", mock.Anything, mock.Anything).Run(returnsJSON(bookHotelResponse)).Return(nil).Once()

		booking, err := service.CreateBooking(ctx, CreateBookingInput{Request: decodeRequest(t, payNowRequest), IdempotencyKey: "key-1"})

		require.NoError(t, err)
		assert.Equal(t, "book-first", booking.WorkflowID)
		store.AssertExpectations(t)
		client.AssertExpectations(t)
	})

	t.Run("registry failure", func(t *testing.T) {
		client := &MockWorkflowClient{}
		store := &MockIdempotencyStore{}
		service := NewBookingService(newRepository(t), client,
			WithLogger(discardLogger()),
			WithIdempotency(store, time.Hour),
		)
		store.On("ReserveWorkflowID", ctx, "key-1", mock.Anything, time.Hour).Return("", errors.New("redis down")).Once()

		_, err := service.CreateBooking(ctx, CreateBookingInput{Request: decodeRequest(t, payNowRequest), IdempotencyKey: "key-1"})

		assert.ErrorIs(t, err, ErrWorkflowStart)
		client.AssertNotCalled(t, "Start")
	})

	t.Run("no registry derives a stable id", func(t *testing.T) {
		service := NewBookingService(newRepository(t), &MockWorkflowClient{}, WithLogger(discardLogger()))

		first, err := service.workflowID(ctx, "key-1")
		require.NoError(t, err)
		second, err := service.workflowID(ctx, "key-1")
		require.NoError(t, err)
		other, err := service.workflowID(ctx, "key-2")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.NotEqual(t, first, other)
		assert.True(t, strings.HasPrefix(first, "book-"))
	})

	t.Run("retry does not duplicate the booking", func(t *testing.T) {
		repo := newRepository(t)
		client := &MockWorkflowClient{}
		service := NewBookingService(repo, client, WithLogger(discardLogger()))

		handle := &MockHandle{}
		client.On("Start", mock.Anything, workflow.BookHotelWorkflow, mock.MatchedBy(func(o workflow.StartOptions) bool {
			return o.JoinExisting
		}), mock.Anything).Return(handle, nil).Twice()
		handle.On("Result", mock.Anything, mock.Anything).Run(returnsJSON(bookHotelResponse)).Return(nil).Twice()

		input := CreateBookingInput{Request: decodeRequest(t, payNowRequest), IdempotencyKey: "retry-me"}
		_, err := service.CreateBooking(ctx, input)
		require.NoError(t, err)
		_, err = service.CreateBooking(ctx, input)
		require.NoError(t, err)

		stored, _ := repo.LoadAll(ctx)
		assert.Len(t, stored, 1)
	})
}

func TestBookingService_CreateBooking_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	client := &MockWorkflowClient{}
	producer := &MockProducer{}
	service := NewBookingService(newRepository(t), client,
		WithLogger(discardLogger()),
		WithProducer(producer, "booking-events"),
		WithNotificationsTopic("notifications"),
	)

	req := decodeRequest(t, payOnCheckInBody)
	expectBookHotel(client, req)
	isCreated := mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventBookingCreated && e.GuestEmail == "guest@example.com" && !e.IsPaid
	})
	producer.On("Publish", ctx, "booking-events", "abc", isCreated).Return(nil).Once()
	producer.On("Publish", ctx, "notifications", "abc", isCreated).Return(errors.New("broker down")).Once()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{Request: req})

	require.NoError(t, err, "event delivery failures do not fail the booking")
	assert.False(t, booking.IsPaid)
	producer.AssertExpectations(t)
}

// seedBooking creates a pay-on-check-in booking "abc" through the service.
func seedBooking(t *testing.T, service *BookingService, client *MockWorkflowClient) *domain.Booking {
	t.Helper()
	req := decodeRequest(t, payOnCheckInBody)
	expectBookHotel(client, req)
	booking, err := service.CreateBooking(context.Background(), CreateBookingInput{Request: req})
	require.NoError(t, err)
	require.False(t, booking.IsPaid)
	return booking
}

func expectPaymentHandle(client *MockWorkflowClient, booking *domain.Booking) *MockHandle {
	paymentID := workflow.PaymentWorkflowID(booking.WorkflowID)
	handle := &MockHandle{id: paymentID}
	client.On("GetHandle", mock.Anything, paymentID).Return(handle)
	return handle
}

func TestBookingService_ConfirmCheckIn_Success(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	booking := seedBooking(t, service, client)
	handle := expectPaymentHandle(client, booking)
	handle.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusRunning}, nil).Once()
	handle.On("Signal", mock.Anything, workflow.CheckInSignal, nil).Return(nil).Once()
	handle.On("Result", mock.Anything, mock.AnythingOfType("*domain.PayHotelResult")).
		Run(returnsJSON(`{"transactionId": "tx-1"}`)).Return(nil).Once()

	checkIn, err := service.ConfirmCheckIn(ctx, "abc")

	require.NoError(t, err)
	assert.True(t, checkIn.IsPaid)
	assert.Equal(t, "tx-1", checkIn.TransactionID)

	expected := *booking
	expected.IsPaid = true
	assert.Equal(t, expected, checkIn.Booking, "only isPaid changes")

	stored, _ := repo.LoadAll(ctx)
	assert.Equal(t, []domain.Booking{expected}, stored)
	handle.AssertExpectations(t)
}

func TestBookingService_ConfirmCheckIn_AlreadyCompleted(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	booking := seedBooking(t, service, client)
	handle := expectPaymentHandle(client, booking)
	handle.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusCompleted}, nil)
	handle.On("Result", mock.Anything, mock.Anything).Run(returnsJSON(`{"transactionId": "tx-1"}`)).Return(nil)

	first, err := service.ConfirmCheckIn(ctx, "abc")
	require.NoError(t, err)
	second, err := service.ConfirmCheckIn(ctx, "abc")
	require.NoError(t, err)

	assert.True(t, first.IsPaid)
	assert.Equal(t, first.Booking, second.Booking)
	handle.AssertNotCalled(t, "Signal", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_ConfirmCheckIn_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	checkIn, err := service.ConfirmCheckIn(ctx, "unknown")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, checkIn)
	assert.Zero(t, repo.updates.Load())
	client.AssertNotCalled(t, "GetHandle", mock.Anything, mock.Anything)
}

func TestBookingService_ConfirmCheckIn_FailuresLeaveStoreUnchanged(t *testing.T) {
	testCases := []struct {
		name        string
		setup       func(h *MockHandle)
		expectedErr error
	}{
		{
			name: "payment workflow missing",
			setup: func(h *MockHandle) {
				h.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{}, workflow.ErrExecutionNotFound)
			},
			expectedErr: ErrWorkflowUnreachable,
		},
		{
			name: "payment workflow terminated",
			setup: func(h *MockHandle) {
				h.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusTerminated}, nil)
			},
			expectedErr: ErrWorkflowUnreachable,
		},
		{
			name: "signal rejected",
			setup: func(h *MockHandle) {
				h.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusRunning}, nil)
				h.On("Signal", mock.Anything, workflow.CheckInSignal, nil).Return(errors.New("rpc error"))
			},
			expectedErr: ErrSignalFailure,
		},
		{
			name: "payment failed after signal",
			setup: func(h *MockHandle) {
				h.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusRunning}, nil)
				h.On("Signal", mock.Anything, workflow.CheckInSignal, nil).Return(nil)
				h.On("Result", mock.Anything, mock.Anything).Return(errors.New("error paying hotel"))
			},
			expectedErr: ErrSignalFailure,
		},
		{
			name: "result timed out",
			setup: func(h *MockHandle) {
				h.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusRunning}, nil)
				h.On("Signal", mock.Anything, workflow.CheckInSignal, nil).Return(nil)
				h.On("Result", mock.Anything, mock.Anything).Return(workflow.ErrTimeout)
			},
			expectedErr: workflow.ErrTimeout,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "db.json")
			fileRepo, err := repository.NewFileBookingRepository(path)
			require.NoError(t, err)
			repo := &countingRepository{FileBookingRepository: fileRepo}
			client := &MockWorkflowClient{}
			service := NewBookingService(repo, client, WithLogger(discardLogger()))

			booking := seedBooking(t, service, client)
			before, err := os.ReadFile(path)
			require.NoError(t, err)

			tc.setup(expectPaymentHandle(client, booking))

			checkIn, err := service.ConfirmCheckIn(ctx, "abc")

			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Nil(t, checkIn)
			assert.Zero(t, repo.updates.Load())

			after, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, before, after)

			stored, _ := repo.LoadAll(ctx)
			assert.False(t, stored[0].IsPaid)
		})
	}
}

func TestBookingService_ConfirmCheckIn_PersistenceLost(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	booking := seedBooking(t, service, client)
	handle := expectPaymentHandle(client, booking)
	handle.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusRunning}, nil)
	handle.On("Signal", mock.Anything, workflow.CheckInSignal, nil).Return(nil)
	handle.On("Result", mock.Anything, mock.Anything).Return(nil)

	repo.flushErr = errors.New("disk full")
	_, err := service.ConfirmCheckIn(ctx, "abc")

	assert.ErrorIs(t, err, ErrPersistenceLost)
}

func TestBookingService_ConfirmCheckIn_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	booking := seedBooking(t, service, client)
	handle := expectPaymentHandle(client, booking)
	handle.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusRunning}, nil)
	handle.On("Signal", mock.Anything, workflow.CheckInSignal, nil).Return(nil)
	handle.On("Result", mock.Anything, mock.Anything).Run(returnsJSON(`{"transactionId": "tx-1"}`)).Return(nil)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.ConfirmCheckIn(ctx, "abc")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(callers), repo.updates.Load())

	stored, _ := repo.LoadAll(ctx)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].IsPaid)
}

func TestBookingService_GetAndList(t *testing.T) {
	ctx := context.Background()
	client := &MockWorkflowClient{}
	service := NewBookingService(newRepository(t), client, WithLogger(discardLogger()))

	seedBooking(t, service, client)

	got, err := service.GetBooking(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)

	_, err = service.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := service.ListBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBookingService_ReconcilePayments(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	client := &MockWorkflowClient{}
	service := NewBookingService(repo, client, WithLogger(discardLogger()))

	insertBooking(t, repo, domain.Booking{ID: "paid", WorkflowID: "book-paid", IsPaid: true})
	insertBooking(t, repo, domain.Booking{ID: "settled", WorkflowID: "book-settled", PayOnCheckIn: true})
	insertBooking(t, repo, domain.Booking{ID: "waiting", WorkflowID: "book-waiting", PayOnCheckIn: true})
	insertBooking(t, repo, domain.Booking{ID: "gone", WorkflowID: "book-gone", PayOnCheckIn: true})

	settled := &MockHandle{id: "book-settled_payment"}
	client.On("GetHandle", mock.Anything, "book-settled_payment").Return(settled)
	settled.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusCompleted}, nil)
	settled.On("Result", mock.Anything, mock.Anything).Return(nil)

	waiting := &MockHandle{id: "book-waiting_payment"}
	client.On("GetHandle", mock.Anything, "book-waiting_payment").Return(waiting)
	waiting.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{Status: workflow.StatusRunning}, nil)

	gone := &MockHandle{id: "book-gone_payment"}
	client.On("GetHandle", mock.Anything, "book-gone_payment").Return(gone)
	gone.On("Describe", mock.Anything).Return(workflow.ExecutionInfo{}, workflow.ErrExecutionNotFound)

	reconciled, err := service.ReconcilePayments(ctx)

	require.NoError(t, err)
	require.Len(t, reconciled, 1)
	assert.Equal(t, "settled", reconciled[0].ID)
	client.AssertNotCalled(t, "GetHandle", mock.Anything, "book-paid_payment")
	waiting.AssertNotCalled(t, "Signal", mock.Anything, mock.Anything, mock.Anything)
	waiting.AssertNotCalled(t, "Result", mock.Anything, mock.Anything)

	stored, _ := repo.LoadAll(ctx)
	paid := map[string]bool{}
	for _, b := range stored {
		paid[b.ID] = b.IsPaid
	}
	assert.Equal(t, map[string]bool{"paid": true, "settled": true, "waiting": false, "gone": false}, paid)
}

func TestFindBooking(t *testing.T) {
	bookings := []domain.Booking{{ID: "first"}, {ID: "second"}}

	b, ok := findBooking(bookings, "first")
	assert.True(t, ok, "a match at index 0 is still a match")
	assert.Equal(t, "first", b.ID)

	_, ok = findBooking(bookings, "third")
	assert.False(t, ok)

	_, ok = findBooking(nil, "first")
	assert.False(t, ok)
}
