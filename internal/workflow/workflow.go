// Package workflow is the boundary to the durable workflow engine that owns
// the booking and payment business logic.
package workflow

import (
	"context"
	"errors"
	"time"
)

const (
	BookHotelWorkflow = "BookHotel"
	PayHotelWorkflow  = "PayHotel"
	DefaultTaskQueue  = "hotel-bookings"
	CheckInSignal     = "check-in"

	paymentSuffix = "_payment"
)

var (
	ErrExecutionNotFound = errors.New("workflow execution not found")
	ErrTimeout           = errors.New("workflow call timed out")
)

// PaymentWorkflowID returns the id of the payment child workflow started by
// the BookHotel execution with the given id.
func PaymentWorkflowID(bookingWorkflowID string) string {
	return bookingWorkflowID + paymentSuffix
}

type ExecutionStatus string

const (
	StatusUnknown        ExecutionStatus = "UNKNOWN"
	StatusRunning        ExecutionStatus = "RUNNING"
	StatusCompleted      ExecutionStatus = "COMPLETED"
	StatusFailed         ExecutionStatus = "FAILED"
	StatusCanceled       ExecutionStatus = "CANCELED"
	StatusTerminated     ExecutionStatus = "TERMINATED"
	StatusContinuedAsNew ExecutionStatus = "CONTINUED_AS_NEW"
	StatusTimedOut       ExecutionStatus = "TIMED_OUT"
)

type ExecutionInfo struct {
	WorkflowID   string
	RunID        string
	WorkflowType string
	Status       ExecutionStatus
	StartTime    time.Time
	CloseTime    time.Time
}

type StartOptions struct {
	ID        string
	TaskQueue string
	// JoinExisting attaches to an execution already started under ID instead
	// of starting a second one.
	JoinExisting bool
}

type Client interface {
	Start(ctx context.Context, workflowType string, opts StartOptions, args ...any) (Handle, error)
	GetHandle(ctx context.Context, workflowID string) Handle
}

// Handle refers to a single workflow execution.
type Handle interface {
	ID() string
	Result(ctx context.Context, valuePtr any) error
	Signal(ctx context.Context, name string, payload any) error
	Describe(ctx context.Context) (ExecutionInfo, error)
}
