// Package operations runs the analysis pipeline: fetch market data, fit
// an EGARCH model, simulate future returns, and write reports. Steps
// execute strictly in order; a failing step aborts the run. Step status
// transitions are published to a progress sink so the HTTP layer can
// stream them to clients.
package operations

import (
	"time"

	"volsim/internal/egarch"
	"volsim/internal/marketdata"
	"volsim/internal/report"
	"volsim/internal/simulation"
)

// Status is the lifecycle state of a step or a whole operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event is a progress notification published when a step changes state.
type Event struct {
	OperationID string    `json:"operation_id"`
	StepID      string    `json:"step_id"`
	StepName    string    `json:"step_name"`
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Time        time.Time `json:"time"`
}

// ProgressSink receives step progress events. Implementations must be
// safe for concurrent use; publishing must not block the pipeline.
type ProgressSink interface {
	Publish(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// State carries data between steps of one run. It is owned by the run
// goroutine; steps execute sequentially, so no locking is needed.
type State struct {
	Symbol     string
	SpotPrice  float64
	Quotes     []marketdata.Quote
	Returns    []float64
	Model      *egarch.Model
	Result     *simulation.Result
	Projection *report.Projection

	// OutputFiles lists report artifacts written by the report step.
	OutputFiles []string
}
