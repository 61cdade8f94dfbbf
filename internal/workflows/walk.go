package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/odysseyatlas/atlas/internal/core/domain"
)

// WalkInput is the input for the walk workflow.
type WalkInput struct {
	TourID       string
	StrideMeters float64
	Interval     time.Duration
}

// WalkResult summarises a finished walk.
type WalkResult struct {
	Steps     int
	Published int
}

// WalkWorkflow steps a simulated walker along a tour. Every step is published
// and followed by a durable timer. If a step cannot be published the walk is
// announced as aborted (saga compensation) and the workflow fails.
func WalkWorkflow(ctx workflow.Context, input WalkInput) (*WalkResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting walk workflow", "tour", input.TourID, "stride", input.StrideMeters)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)
	runID := workflow.GetInfo(ctx).WorkflowExecution.RunID

	status := func(ctx workflow.Context, s, reason string) error {
		event := domain.WalkStatusEvent{
			TourID: input.TourID,
			RunID:  runID,
			Status: s,
			Reason: reason,
			Time:   workflow.Now(ctx).UTC(),
		}
		return workflow.ExecuteActivity(ctx, "PublishWalkStatus", event).Get(ctx, nil)
	}

	// Step 1: Resample the tour
	var steps []domain.WalkStep
	if err := workflow.ExecuteActivity(ctx, "LoadWalkSteps", input.TourID, input.StrideMeters).Get(ctx, &steps); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("tour %s has no steps", input.TourID), "EmptyWalk", nil)
	}

	if err := status(ctx, domain.WalkStarted, ""); err != nil {
		return nil, err
	}

	// Step 2: Publish each step, pausing between them
	result := &WalkResult{Steps: len(steps)}
	for i := range steps {
		step := steps[i]
		step.Time = workflow.Now(ctx).UTC()

		if err := workflow.ExecuteActivity(ctx, "PublishWalkStep", step).Get(ctx, nil); err != nil {
			logger.Warn("walk step failed, compensating", "index", i, "error", err)
			// Compensate: tell followers the walk is over
			dctx, _ := workflow.NewDisconnectedContext(ctx)
			_ = status(dctx, domain.WalkAborted, fmt.Sprintf("step %d: %v", i, err))
			return result, err
		}
		result.Published++

		if i+1 < len(steps) && input.Interval > 0 {
			if err := workflow.Sleep(ctx, input.Interval); err != nil {
				dctx, _ := workflow.NewDisconnectedContext(ctx)
				_ = status(dctx, domain.WalkAborted, "cancelled")
				return result, err
			}
		}
	}

	// Step 3: Announce completion
	if err := status(ctx, domain.WalkCompleted, ""); err != nil {
		return result, err
	}

	logger.Info("Walk completed", "tour", input.TourID, "steps", result.Published)
	return result, nil
}
