package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marginreco/internal/ledger"
)

// Stage identifiers, in execution order
const (
	StagePrepare        = "prepare"
	StageTaxNormalize   = "tax_normalize"
	StageShareAggregate = "share_aggregate"
	StageLedgerJoin     = "ledger_join"
	StageMargin         = "margin"
	StageAggregateRow   = "aggregate_row"
)

// StageFunc is a pure transform from one ledger table to the next
type StageFunc func(ctx context.Context, in *ledger.Table) (*ledger.Table, error)

// Stage is a named step of the derivation pipeline
type Stage struct {
	ID   string
	Name string
	Run  StageFunc
}

// StageStatus represents the outcome of a stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// StageState records the runtime state of a stage
type StageState struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    StageStatus `json:"status"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	RowsIn    int         `json:"rows_in"`
	RowsOut   int         `json:"rows_out"`
	Error     string      `json:"error,omitempty"`
}

// Duration returns how long the stage ran
func (s StageState) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// StageError identifies the stage a run failed in
type StageError struct {
	Stage string
	Cause error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying error
func (e *StageError) Unwrap() error {
	return e.Cause
}

// FailedStage returns the failing stage id of a pipeline error, or "".
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
