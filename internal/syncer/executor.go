// Package syncer executes mutation plans against the remote API. Independent
// operations are dispatched concurrently; operations needing a
// server-assigned id wait for the operation that produces it. There is no
// transactionality: operations already in flight when another fails are not
// rolled back, and the result records whatever subset completed.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

// maxInFlight bounds the concurrent fan-out of independent operations.
const maxInFlight = 4

// API is the slice of the HTTP client the executor drives.
type API interface {
	CreateTask(ctx context.Context, projectID string, patch task.ScalarPatch) (task.Task, error)
	UpdateTaskScalars(ctx context.Context, taskID string, patch task.ScalarPatch) (task.Task, error)
	CreateSubTask(ctx context.Context, taskID, text string, done bool) (task.SubTask, error)
	BulkCreateSubTasks(ctx context.Context, taskID string, subs []task.SubTask) ([]task.SubTask, error)
	UpdateSubTask(ctx context.Context, subTaskID, text string, done bool) (task.SubTask, error)
	DeleteSubTask(ctx context.Context, subTaskID string) error
	AddContributor(ctx context.Context, taskID, memberID string) error
	RemoveContributor(ctx context.Context, taskID, memberID string) error
	AddRequiredRole(ctx context.Context, taskID, roleID string) error
	RemoveRequiredRole(ctx context.Context, taskID, roleID string) error
}

// Executor runs plans against one API.
type Executor struct {
	api    API
	logger *slog.Logger
}

// New creates an executor.
func New(api API, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{api: api, logger: logger}
}

// Execute runs the plan. Operations other ops depend on run first, in plan
// order; the rest fan out concurrently. A failed dependency marks its
// dependents as skipped without attempting them.
func (e *Executor) Execute(ctx context.Context, projectID string, plan task.Plan) Result {
	res := Result{Ops: make([]OpResult, len(plan.Ops))}
	for i := range plan.Ops {
		res.Ops[i].Op = plan.Ops[i]
	}
	if plan.Empty() {
		return res
	}

	depended := make(map[int]bool)
	for _, op := range plan.Ops {
		if op.DependsOn != task.Independent {
			depended[op.DependsOn] = true
		}
	}

	// Stage one: producers of server ids, sequential in plan order.
	for i, op := range plan.Ops {
		if !depended[i] {
			continue
		}
		serverID, err := e.run(ctx, projectID, op)
		res.Ops[i].ServerID = serverID
		res.Ops[i].Err = err
		if op.Kind == task.OpCreateTask && err == nil {
			res.TaskID = serverID
		}
	}

	// Stage two: everything else, concurrent and bounded. Each op records
	// its own outcome; a failure never cancels its siblings.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(maxInFlight)
	for i, op := range plan.Ops {
		if depended[i] {
			continue
		}
		op := op
		slot := &res.Ops[i]
		if op.DependsOn != task.Independent {
			dep := res.Ops[op.DependsOn]
			if dep.Err != nil {
				slot.Err = fmt.Errorf("%w: operation %d failed", ErrDependencyFailed, op.DependsOn)
				continue
			}
			op.TaskID = dep.ServerID
		}
		g.Go(func() error {
			serverID, err := e.run(gctx, projectID, op)
			slot.ServerID = serverID
			slot.Err = err
			return nil
		})
	}
	_ = g.Wait()

	if res.TaskID == "" {
		for _, op := range plan.Ops {
			if op.TaskID != "" {
				res.TaskID = op.TaskID
				break
			}
		}
	}
	if err := res.Err(); err != nil {
		e.logger.Warn("plan execution incomplete", "project_id", projectID, "ops", len(plan.Ops), "error", err)
	}
	return res
}

func (e *Executor) run(ctx context.Context, projectID string, op task.Op) (string, error) {
	switch op.Kind {
	case task.OpCreateTask:
		created, err := e.api.CreateTask(ctx, projectID, *op.Scalars)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	case task.OpUpdateScalars:
		_, err := e.api.UpdateTaskScalars(ctx, op.TaskID, *op.Scalars)
		return "", err
	case task.OpAttachLead:
		lead := op.Lead
		_, err := e.api.UpdateTaskScalars(ctx, op.TaskID, task.ScalarPatch{LeadSet: true, Lead: &lead})
		return "", err
	case task.OpBulkCreateSubTasks:
		_, err := e.api.BulkCreateSubTasks(ctx, op.TaskID, op.SubTasks)
		return "", err
	case task.OpCreateSubTask:
		created, err := e.api.CreateSubTask(ctx, op.TaskID, op.SubTask.Text, op.SubTask.Done)
		if err != nil {
			return "", err
		}
		return created.ID.Server(), nil
	case task.OpUpdateSubTask:
		_, err := e.api.UpdateSubTask(ctx, op.SubTaskID, op.SubTask.Text, op.SubTask.Done)
		return "", err
	case task.OpDeleteSubTask:
		return "", e.api.DeleteSubTask(ctx, op.SubTaskID)
	case task.OpAddContributor:
		return "", e.api.AddContributor(ctx, op.TaskID, op.MemberID)
	case task.OpRemoveContributor:
		return "", e.api.RemoveContributor(ctx, op.TaskID, op.MemberID)
	case task.OpAddRequiredRole:
		return "", e.api.AddRequiredRole(ctx, op.TaskID, op.RoleID)
	case task.OpRemoveRequiredRole:
		return "", e.api.RemoveRequiredRole(ctx, op.TaskID, op.RoleID)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownOp, op.Kind)
	}
}
