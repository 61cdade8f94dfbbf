package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/workflows"
)

// Scheduler implements ports.WalkScheduler by starting WalkWorkflow executions.
type Scheduler struct {
	client    client.Client
	taskQueue string
}

// NewScheduler creates a scheduler over an existing Temporal client.
func NewScheduler(c client.Client, taskQueue string) *Scheduler {
	return &Scheduler{client: c, taskQueue: taskQueue}
}

// Dial connects to the Temporal frontend.
func Dial(hostPort, namespace string) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		return nil, fmt.Errorf("temporal dial: %w", err)
	}
	return c, nil
}

// StartWalk starts a walk workflow and returns its workflow and run IDs.
func (s *Scheduler) StartWalk(ctx context.Context, req domain.WalkRequest) (string, string, error) {
	opts := client.StartWorkflowOptions{
		ID:        WalkWorkflowID(req.TourID),
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, workflows.WalkWorkflow, workflows.WalkInput{
		TourID:       req.TourID,
		StrideMeters: req.StrideMeters,
		Interval:     req.Interval,
	})
	if err != nil {
		return "", "", fmt.Errorf("start walk workflow: %w", err)
	}
	return run.GetID(), run.GetRunID(), nil
}

// WalkWorkflowID names a walk execution. Several walks of one tour may run at once.
func WalkWorkflowID(tourID string) string {
	return "walk-" + tourID + "-" + uuid.NewString()[:8]
}
