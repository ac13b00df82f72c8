package syncer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck-go/internal/domain/task"
	"github.com/crewdeck/crewdeck-go/internal/syncer"
)

func TestExecute_EmptyPlanIssuesNothing(t *testing.T) {
	api := &mockAPI{}
	exec := syncer.New(api, nil)

	res := exec.Execute(context.Background(), "p1", task.Plan{})
	require.False(t, res.Failed())
	require.NoError(t, res.Err())
	api.AssertExpectations(t)
}

func TestExecute_CreateFlowResolvesDependentIDs(t *testing.T) {
	ctx := context.Background()
	var seq task.Sequence

	draft := task.NewDraft().SetTitle("Ship v1")
	draft = draft.AddSubTask(&seq, "write tests")
	draft = draft.AddSubTask(&seq, "deploy")
	plan := task.Diff(nil, draft)

	api := &mockAPI{}
	api.On("CreateTask", mock.Anything, "p1", mock.Anything).
		Return(task.Task{ID: "t-new", Title: "Ship v1"}, nil)
	api.On("BulkCreateSubTasks", mock.Anything, "t-new", mock.Anything).
		Return([]task.SubTask{}, nil)

	exec := syncer.New(api, nil)
	res := exec.Execute(ctx, "p1", plan)

	require.False(t, res.Failed())
	require.Equal(t, "t-new", res.TaskID)
	require.Equal(t, "t-new", res.Ops[0].ServerID)
	api.AssertExpectations(t)
}

func TestExecute_FailedCreateSkipsDependents(t *testing.T) {
	var seq task.Sequence
	draft := task.NewDraft().SetTitle("doomed")
	draft = draft.AddSubTask(&seq, "never happens")
	plan := task.Diff(nil, draft)

	api := &mockAPI{}
	api.On("CreateTask", mock.Anything, "p1", mock.Anything).
		Return(task.Task{}, errors.New("boom"))

	exec := syncer.New(api, nil)
	res := exec.Execute(context.Background(), "p1", plan)

	require.True(t, res.Failed())
	require.Error(t, res.Ops[0].Err)
	require.ErrorIs(t, res.Ops[1].Err, syncer.ErrDependencyFailed)
	// The dependent bulk create was never attempted.
	api.AssertNotCalled(t, "BulkCreateSubTasks", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_PartialFailureRunsEveryIndependentOp(t *testing.T) {
	original := task.Task{
		ID:           "t1",
		Title:        "x",
		Status:       task.StatusToDo,
		Contributors: []string{"m2", "m3"},
	}
	draft := task.OpenDraft(original)
	draft = draft.RemoveContributor("m2")
	draft, err := draft.AddContributor("m4")
	require.NoError(t, err)
	plan := task.Diff(&original, draft)
	require.Len(t, plan.Ops, 2)

	api := &mockAPI{}
	api.On("AddContributor", mock.Anything, "t1", "m4").Return(errors.New("500"))
	api.On("RemoveContributor", mock.Anything, "t1", "m2").Return(nil)

	exec := syncer.New(api, nil)
	res := exec.Execute(context.Background(), "p1", plan)

	// One op failed, the other still ran; no rollback happened.
	require.True(t, res.Failed())
	require.Error(t, res.Err())
	api.AssertCalled(t, "RemoveContributor", mock.Anything, "t1", "m2")
	api.AssertCalled(t, "AddContributor", mock.Anything, "t1", "m4")

	failures := 0
	for _, op := range res.Ops {
		if op.Err != nil {
			failures++
		}
	}
	require.Equal(t, 1, failures)
}

func TestExecute_UpdatePlanDispatchesAllOps(t *testing.T) {
	lead := "m9"
	original := task.Task{
		ID:     "t1",
		Title:  "before",
		Status: task.StatusToDo,
		SubTasks: []task.SubTask{
			{ID: task.Persisted("s1"), Text: "drop me"},
		},
		RequiredRoles: []string{"r1"},
	}
	draft := task.OpenDraft(original)
	draft = draft.SetTitle("after").SetLead(&lead)
	draft = draft.RemoveSubTask(task.Persisted("s1"))
	draft = draft.RemoveRequiredRole("r1")
	plan := task.Diff(&original, draft)
	require.Len(t, plan.Ops, 3)

	api := &mockAPI{}
	api.On("UpdateTaskScalars", mock.Anything, "t1", mock.MatchedBy(func(p task.ScalarPatch) bool {
		return p.Title != nil && *p.Title == "after" && p.LeadSet && p.Lead != nil && *p.Lead == "m9"
	})).Return(task.Task{}, nil)
	api.On("DeleteSubTask", mock.Anything, "s1").Return(nil)
	api.On("RemoveRequiredRole", mock.Anything, "t1", "r1").Return(nil)

	exec := syncer.New(api, nil)
	res := exec.Execute(context.Background(), "p1", plan)

	require.False(t, res.Failed())
	require.Equal(t, "t1", res.TaskID)
	api.AssertExpectations(t)
}
