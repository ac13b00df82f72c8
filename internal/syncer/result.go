package syncer

import (
	"errors"
	"fmt"

	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

var (
	// ErrDependencyFailed marks an operation skipped because the operation
	// it needed a server id from did not succeed.
	ErrDependencyFailed = errors.New("dependency failed")
	// ErrUnknownOp indicates a plan op the executor cannot dispatch.
	ErrUnknownOp = errors.New("unknown operation kind")
)

// OpResult is the outcome of one operation in a plan.
type OpResult struct {
	Op       task.Op
	ServerID string // assigned id, for create operations
	Err      error
}

// Result is the per-operation outcome of executing a plan. State on the
// server after a failure is whatever subset of operations completed.
type Result struct {
	// TaskID is the persisted id of the task the plan targeted; for a
	// create plan it is the server-assigned id.
	TaskID string
	Ops    []OpResult
}

// Failed reports whether any operation failed or was skipped.
func (r Result) Failed() bool {
	for _, op := range r.Ops {
		if op.Err != nil {
			return true
		}
	}
	return false
}

// Err aggregates all operation errors, or nil if everything succeeded.
func (r Result) Err() error {
	var errs []error
	for i, op := range r.Ops {
		if op.Err != nil {
			errs = append(errs, fmt.Errorf("op %d (%s): %w", i, op.Op.Kind, op.Err))
		}
	}
	return errors.Join(errs...)
}
