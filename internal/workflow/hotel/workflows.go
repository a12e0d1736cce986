package hotel

import (
	"fmt"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	engine "github.com/Domenick1991/hotelbooking/internal/workflow"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var activityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2,
		MaximumAttempts:    3,
	},
}

// Registry is the subset of worker.Worker used to register this package.
type Registry interface {
	RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions)
	RegisterActivity(a any)
}

// Register binds both workflows under the names the API process starts and
// signals them by, plus the activities they call.
func Register(r Registry, activities *Activities) {
	r.RegisterWorkflowWithOptions(BookHotel, workflow.RegisterOptions{Name: engine.BookHotelWorkflow})
	r.RegisterWorkflowWithOptions(PayHotel, workflow.RegisterOptions{Name: engine.PayHotelWorkflow})
	r.RegisterActivity(activities)
}

// BookHotel reserves the room and starts the payment child. It returns as
// soon as the child is running; the child outlives it.
func BookHotel(ctx workflow.Context, req domain.BookingRequest) (domain.BookHotelResult, error) {
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var a *Activities
	var reserved ReserveHotelResult
	err := workflow.ExecuteActivity(ctx, a.ReserveHotel, ReserveHotelInput{
		HotelID:      req.HotelID,
		CheckInDate:  req.CheckInDate.Time,
		CheckOutDate: req.CheckOutDate.Time,
	}).Get(ctx, &reserved)
	if err != nil {
		logger.Error("reserve hotel failed", "error", err)
		return domain.BookHotelResult{}, fmt.Errorf("reserve hotel: %w", err)
	}

	paymentDate := req.CheckInDate
	if !req.PayOnCheckIn {
		paymentDate = req.PrePaymentDate
	}

	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID:        engine.PaymentWorkflowID(workflow.GetInfo(ctx).WorkflowExecution.ID),
		ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_ABANDON,
	})
	payment := workflow.ExecuteChildWorkflow(childCtx, engine.PayHotelWorkflow, PayHotelInput{
		BookingID:        reserved.BookingID,
		CardDetails:      req.CardDetails,
		TotalCostInPence: req.TotalCostInPence,
		PaymentDate:      paymentDate.Time,
	})
	if err := payment.GetChildWorkflowExecution().Get(ctx, nil); err != nil {
		logger.Error("payment workflow did not start", "error", err)
		return domain.BookHotelResult{}, fmt.Errorf("start payment workflow: %w", err)
	}

	logger.Info("hotel booked", "booking_id", reserved.BookingID)
	return domain.BookHotelResult{
		BookingID:   reserved.BookingID,
		HotelID:     req.HotelID,
		PaymentDate: paymentDate,
	}, nil
}

// PayHotel waits until the payment date, or until a check-in signal arrives
// first, then captures the payment.
func PayHotel(ctx workflow.Context, in PayHotelInput) (domain.PayHotelResult, error) {
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	if delay := in.PaymentDate.Sub(workflow.Now(ctx)); !in.PaymentDate.IsZero() && delay > 0 {
		logger.Info("waiting for payment date", "payment_date", in.PaymentDate, "delay", delay)
		if err := waitForPayment(ctx, delay); err != nil {
			return domain.PayHotelResult{}, err
		}
	}

	var a *Activities
	var receipt domain.PayHotelResult
	if err := workflow.ExecuteActivity(ctx, a.CapturePayment, in).Get(ctx, &receipt); err != nil {
		logger.Error("capture payment failed", "error", err)
		return domain.PayHotelResult{}, fmt.Errorf("capture payment: %w", err)
	}
	return receipt, nil
}

func waitForPayment(ctx workflow.Context, delay time.Duration) error {
	logger := workflow.GetLogger(ctx)
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()

	var timerErr error
	selector := workflow.NewSelector(ctx)
	selector.AddFuture(workflow.NewTimer(timerCtx, delay), func(f workflow.Future) {
		timerErr = f.Get(ctx, nil)
	})
	selector.AddReceive(workflow.GetSignalChannel(ctx, engine.CheckInSignal), func(c workflow.ReceiveChannel, _ bool) {
		c.Receive(ctx, nil)
		logger.Info("check-in received before payment date")
	})
	selector.Select(ctx)

	if timerErr != nil {
		return fmt.Errorf("wait for payment date: %w", timerErr)
	}
	return nil
}
