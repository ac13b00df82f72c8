package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

func sampleTask() task.Task {
	lead := "m1"
	return task.Task{
		ID:            "t7",
		ProjectID:     "p1",
		Title:         "Fix login",
		Description:   "Session cookie expires too early",
		Status:        task.StatusInProgress,
		LeadID:        &lead,
		Contributors:  []string{"m2", "m3"},
		RequiredRoles: []string{"r1"},
		SubTasks: []task.SubTask{
			{ID: task.Persisted("s1"), TaskID: "t7", Text: "reproduce", Done: true},
			{ID: task.Persisted("s2"), TaskID: "t7", Text: "fix", Done: false},
		},
		CreatedAt: time.Now(),
	}
}

func TestDiff_NoChanges_EmptyPlan(t *testing.T) {
	original := sampleTask()
	draft := task.OpenDraft(original)

	plan := task.Diff(&original, draft)
	require.True(t, plan.Empty())
}

func TestDiff_ContributorSetDelta(t *testing.T) {
	// Contributors {2,3} -> {3,4} must plan exactly remove(2), add(4).
	original := sampleTask()
	original.Contributors = []string{"m2", "m3"}
	original.RequiredRoles = nil

	draft := task.OpenDraft(original)
	draft = draft.RemoveContributor("m2")
	draft, err := draft.AddContributor("m4")
	require.NoError(t, err)

	plan := task.Diff(&original, draft)
	require.Len(t, plan.Ops, 2)

	kinds := map[task.OpKind]string{}
	for _, op := range plan.Ops {
		require.Equal(t, task.Independent, op.DependsOn)
		require.Equal(t, "t7", op.TaskID)
		kinds[op.Kind] = op.MemberID
	}
	require.Equal(t, "m4", kinds[task.OpAddContributor])
	require.Equal(t, "m2", kinds[task.OpRemoveContributor])
}

func TestDiff_CreateWithSubTasks(t *testing.T) {
	var seq task.Sequence
	draft := task.NewDraft().SetTitle("Ship v1")
	draft = draft.AddSubTask(&seq, "write tests")
	draft = draft.AddSubTask(&seq, "deploy")

	plan := task.Diff(nil, draft)
	require.Len(t, plan.Ops, 2)

	create := plan.Ops[0]
	require.Equal(t, task.OpCreateTask, create.Kind)
	require.Equal(t, task.Independent, create.DependsOn)
	require.Equal(t, "Ship v1", *create.Scalars.Title)

	bulk := plan.Ops[1]
	require.Equal(t, task.OpBulkCreateSubTasks, bulk.Kind)
	require.Equal(t, 0, bulk.DependsOn)
	require.Len(t, bulk.SubTasks, 2)
	require.Equal(t, "write tests", bulk.SubTasks[0].Text)
	require.False(t, bulk.SubTasks[0].Done)
	require.Equal(t, "deploy", bulk.SubTasks[1].Text)
}

func TestDiff_CreateWithLeadAndRelations(t *testing.T) {
	var seq task.Sequence
	lead := "m9"
	draft := task.NewDraft().SetTitle("Launch").SetLead(&lead)
	draft, err := draft.AddContributor("m2")
	require.NoError(t, err)
	draft = draft.AddRequiredRole("r5")
	draft = draft.AddSubTask(&seq, "announce")

	plan := task.Diff(nil, draft)
	require.Len(t, plan.Ops, 5)
	require.Equal(t, task.OpCreateTask, plan.Ops[0].Kind)
	for _, op := range plan.Ops[1:] {
		require.Equal(t, 0, op.DependsOn, "op %s must wait for the created id", op.Kind)
	}
}

func TestDiff_ScalarPatchSingleOp(t *testing.T) {
	original := sampleTask()
	draft := task.OpenDraft(original)
	draft = draft.SetTitle("Fix login flow").SetStatus(task.StatusInReview)

	plan := task.Diff(&original, draft)
	require.Len(t, plan.Ops, 1)

	op := plan.Ops[0]
	require.Equal(t, task.OpUpdateScalars, op.Kind)
	require.Equal(t, "Fix login flow", *op.Scalars.Title)
	require.Equal(t, task.StatusInReview, *op.Scalars.Status)
	require.Nil(t, op.Scalars.Description)
	require.False(t, op.Scalars.LeadSet)
}

func TestDiff_LeadDemotedToContributor(t *testing.T) {
	// Clearing the lead and adding them as contributor is legal and plans
	// both a scalar patch and a contributor add.
	original := sampleTask()
	draft := task.OpenDraft(original)
	draft = draft.SetLead(nil)
	draft, err := draft.AddContributor("m1")
	require.NoError(t, err)

	plan := task.Diff(&original, draft)
	require.Len(t, plan.Ops, 2)

	require.Equal(t, task.OpUpdateScalars, plan.Ops[0].Kind)
	require.True(t, plan.Ops[0].Scalars.LeadSet)
	require.Nil(t, plan.Ops[0].Scalars.Lead)

	require.Equal(t, task.OpAddContributor, plan.Ops[1].Kind)
	require.Equal(t, "m1", plan.Ops[1].MemberID)
}

func TestDiff_SubTaskPartition(t *testing.T) {
	var seq task.Sequence
	original := sampleTask()

	draft := task.OpenDraft(original)
	draft, err := draft.SetSubTaskDone(task.Persisted("s2"), true) // update
	require.NoError(t, err)
	draft = draft.RemoveSubTask(task.Persisted("s1")) // delete
	draft = draft.AddSubTask(&seq, "release notes")   // create

	plan := task.Diff(&original, draft)
	require.Len(t, plan.Ops, 3)

	// Every sub-task id lands in exactly one partition.
	var created, updated, deleted int
	for _, op := range plan.Ops {
		switch op.Kind {
		case task.OpCreateSubTask:
			created++
			require.True(t, op.SubTask.ID.IsProvisional())
			require.Equal(t, "release notes", op.SubTask.Text)
		case task.OpUpdateSubTask:
			updated++
			require.Equal(t, "s2", op.SubTaskID)
			require.True(t, op.SubTask.Done)
		case task.OpDeleteSubTask:
			deleted++
			require.Equal(t, "s1", op.SubTaskID)
		default:
			t.Fatalf("unexpected op kind %s", op.Kind)
		}
	}
	require.Equal(t, 1, created)
	require.Equal(t, 1, updated)
	require.Equal(t, 1, deleted)
}

func TestDiff_UnchangedSubTasksProduceNoOps(t *testing.T) {
	original := sampleTask()
	draft := task.OpenDraft(original)
	draft, err := draft.SetSubTaskText(task.Persisted("s1"), "reproduce")
	require.NoError(t, err) // same text, no semantic change

	plan := task.Diff(&original, draft)
	require.True(t, plan.Empty())
}

func TestDiff_RequiredRoleDelta(t *testing.T) {
	original := sampleTask()
	draft := task.OpenDraft(original)
	draft = draft.RemoveRequiredRole("r1")
	draft = draft.AddRequiredRole("r2")
	draft = draft.AddRequiredRole("r3")

	plan := task.Diff(&original, draft)
	require.Len(t, plan.Ops, 3)

	var adds, removes []string
	for _, op := range plan.Ops {
		switch op.Kind {
		case task.OpAddRequiredRole:
			adds = append(adds, op.RoleID)
		case task.OpRemoveRequiredRole:
			removes = append(removes, op.RoleID)
		default:
			t.Fatalf("unexpected op kind %s", op.Kind)
		}
	}
	require.ElementsMatch(t, []string{"r2", "r3"}, adds)
	require.Equal(t, []string{"r1"}, removes)

	// Disjointness: nothing is both added and removed.
	for _, a := range adds {
		require.NotContains(t, removes, a)
	}
}
