package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/hotelbooking/config"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

// Timeouts bound each suspension point. Zero leaves the call to the engine's
// own timeout policy.
type Timeouts struct {
	Start    time.Duration
	Result   time.Duration
	Signal   time.Duration
	Describe time.Duration
}

// TemporalClient adapts a Temporal SDK client to Client.
type TemporalClient struct {
	client   client.Client
	timeouts Timeouts
}

// Dial connects to the Temporal frontend. The client is heavyweight and
// should be created once per process.
func Dial(cfg config.TemporalConfig, logger *slog.Logger) (*TemporalClient, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, err)
	}
	return NewTemporalClient(c, Timeouts{
		Start:    time.Duration(cfg.StartTimeoutSeconds) * time.Second,
		Result:   time.Duration(cfg.ResultTimeoutSeconds) * time.Second,
		Signal:   time.Duration(cfg.SignalTimeoutSeconds) * time.Second,
		Describe: time.Duration(cfg.DescribeTimeoutSeconds) * time.Second,
	}), nil
}

func NewTemporalClient(c client.Client, timeouts Timeouts) *TemporalClient {
	return &TemporalClient{client: c, timeouts: timeouts}
}

// SDK exposes the underlying client for worker registration.
func (c *TemporalClient) SDK() client.Client {
	return c.client
}

func (c *TemporalClient) Close() {
	c.client.Close()
}

func (c *TemporalClient) Start(ctx context.Context, workflowType string, opts StartOptions, args ...any) (Handle, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Start)
	defer cancel()

	options := client.StartWorkflowOptions{
		ID:        opts.ID,
		TaskQueue: opts.TaskQueue,
	}
	if opts.JoinExisting {
		// A running execution is joined; a closed one is returned as the
		// last run instead of being started again.
		options.WorkflowIDConflictPolicy = enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING
		options.WorkflowIDReusePolicy = enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, workflowType, args...)
	if err != nil {
		return nil, classify("start "+workflowType, err)
	}
	return &temporalHandle{client: c.client, id: run.GetID(), run: run, timeouts: c.timeouts}, nil
}

func (c *TemporalClient) GetHandle(ctx context.Context, workflowID string) Handle {
	return &temporalHandle{
		client:   c.client,
		id:       workflowID,
		run:      c.client.GetWorkflow(ctx, workflowID, ""),
		timeouts: c.timeouts,
	}
}

type temporalHandle struct {
	client   client.Client
	id       string
	run      client.WorkflowRun
	timeouts Timeouts
}

func (h *temporalHandle) ID() string {
	return h.id
}

func (h *temporalHandle) Result(ctx context.Context, valuePtr any) error {
	ctx, cancel := withTimeout(ctx, h.timeouts.Result)
	defer cancel()

	if err := h.run.Get(ctx, valuePtr); err != nil {
		return classify("result of "+h.id, err)
	}
	return nil
}

func (h *temporalHandle) Signal(ctx context.Context, name string, payload any) error {
	ctx, cancel := withTimeout(ctx, h.timeouts.Signal)
	defer cancel()

	if err := h.client.SignalWorkflow(ctx, h.id, "", name, payload); err != nil {
		return classify("signal "+name+" to "+h.id, err)
	}
	return nil
}

func (h *temporalHandle) Describe(ctx context.Context) (ExecutionInfo, error) {
	ctx, cancel := withTimeout(ctx, h.timeouts.Describe)
	defer cancel()

	resp, err := h.client.DescribeWorkflowExecution(ctx, h.id, "")
	if err != nil {
		return ExecutionInfo{}, classify("describe "+h.id, err)
	}

	info := resp.GetWorkflowExecutionInfo()
	if info == nil {
		return ExecutionInfo{}, fmt.Errorf("describe %s: %w", h.id, ErrExecutionNotFound)
	}
	out := ExecutionInfo{
		WorkflowID:   info.GetExecution().GetWorkflowId(),
		RunID:        info.GetExecution().GetRunId(),
		WorkflowType: info.GetType().GetName(),
		Status:       executionStatus(info.GetStatus()),
	}
	if ts := info.GetStartTime(); ts != nil {
		out.StartTime = ts.AsTime()
	}
	if ts := info.GetCloseTime(); ts != nil {
		out.CloseTime = ts.AsTime()
	}
	return out, nil
}

func executionStatus(s enumspb.WorkflowExecutionStatus) ExecutionStatus {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return StatusRunning
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return StatusCompleted
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		return StatusFailed
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return StatusCanceled
	case enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return StatusTerminated
	case enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return StatusContinuedAsNew
	case enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return StatusTimedOut
	default:
		return StatusUnknown
	}
}

func classify(op string, err error) error {
	var (
		notFound *serviceerror.NotFound
		deadline *serviceerror.DeadlineExceeded
	)
	switch {
	case errors.As(err, &notFound):
		return fmt.Errorf("%s: %w: %w", op, ErrExecutionNotFound, err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &deadline):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

var _ Client = (*TemporalClient)(nil)
