package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager executes pipeline steps in order, recording per-step status
// and publishing progress events. Each step runs inside its own trace
// span.
type Manager struct {
	logger *slog.Logger
	tracer trace.Tracer
	sink   ProgressSink
}

// NewManager creates a manager. Nil arguments fall back to
// slog.Default, a no-op tracer and a no-op sink.
func NewManager(logger *slog.Logger, tracer trace.Tracer, sink ProgressSink) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("operations")
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Manager{logger: logger, tracer: tracer, sink: sink}
}

// Run executes the steps sequentially against state. The first step
// failure aborts the run and is returned wrapped with the step ID.
// stepStates must come from the same call site that built the steps
// (see Coordinator) and is updated as the run progresses.
func (m *Manager) Run(ctx context.Context, operationID string, state *State, steps []Step, stepStates []*StepState) error {
	if len(steps) != len(stepStates) {
		return fmt.Errorf("steps and step states out of sync: %d vs %d", len(steps), len(stepStates))
	}

	start := time.Now()
	m.logger.InfoContext(ctx, "operation started",
		"operation_id", operationID,
		"steps", len(steps),
		"symbol", state.Symbol,
	)

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			stepStates[i].fail(err)
			m.publish(operationID, step, StatusFailed, err.Error())
			return fmt.Errorf("operation cancelled before step %s: %w", step.ID(), err)
		}

		if err := m.runStep(ctx, operationID, state, step, stepStates[i]); err != nil {
			m.logger.ErrorContext(ctx, "operation failed",
				"operation_id", operationID,
				"step", step.ID(),
				"error", err,
			)
			return fmt.Errorf("step %s: %w", step.ID(), err)
		}
	}

	m.logger.InfoContext(ctx, "operation completed",
		"operation_id", operationID,
		"duration", time.Since(start),
	)
	return nil
}

func (m *Manager) runStep(ctx context.Context, operationID string, state *State, step Step, stepState *StepState) error {
	stepCtx, span := m.tracer.Start(ctx, "operation.step",
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", step.ID()),
		),
	)
	defer span.End()

	stepState.start()
	m.publish(operationID, step, StatusRunning, "")
	m.logger.InfoContext(stepCtx, "step started", "operation_id", operationID, "step", step.ID())

	if err := step.Validate(state); err != nil {
		err = fmt.Errorf("validate: %w", err)
		stepState.fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.publish(operationID, step, StatusFailed, err.Error())
		return err
	}

	if err := step.Execute(stepCtx, state); err != nil {
		stepState.fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.publish(operationID, step, StatusFailed, err.Error())
		return err
	}

	stepState.complete()
	span.SetStatus(codes.Ok, "")
	m.publish(operationID, step, StatusCompleted, "")
	m.logger.InfoContext(stepCtx, "step completed", "operation_id", operationID, "step", step.ID())
	return nil
}

func (m *Manager) publish(operationID string, step Step, status Status, message string) {
	m.sink.Publish(Event{
		OperationID: operationID,
		StepID:      step.ID(),
		StepName:    step.Name(),
		Status:      status,
		Message:     message,
		Time:        time.Now(),
	})
}
