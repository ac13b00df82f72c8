package task_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

func TestNewDraft_Defaults(t *testing.T) {
	d := task.NewDraft()
	require.Empty(t, d.TaskID)
	require.Empty(t, d.Title)
	require.Nil(t, d.LeadID)
	require.Equal(t, task.StatusToDo, d.Status)
	require.Nil(t, d.Source())
}

func TestDraft_EditsDoNotMutateOriginal(t *testing.T) {
	original := sampleTask()
	d := task.OpenDraft(original)

	d2 := d.SetTitle("changed")
	d2 = d2.RemoveContributor("m2")
	d2, err := d2.SetSubTaskDone(task.Persisted("s2"), true)
	require.NoError(t, err)

	// The first draft and the source task are untouched.
	require.Equal(t, "Fix login", d.Title)
	require.Contains(t, d.Contributors, "m2")
	require.False(t, d.SubTasks[1].Done)
	require.Equal(t, "Fix login", original.Title)

	require.Equal(t, "changed", d2.Title)
	require.NotContains(t, d2.Contributors, "m2")
	require.True(t, d2.SubTasks[1].Done)
}

func TestDraft_AddContributorRejectsLead(t *testing.T) {
	original := sampleTask() // lead is m1
	d := task.OpenDraft(original)

	_, err := d.AddContributor("m1")
	require.ErrorIs(t, err, task.ErrLeadContributor)
}

func TestDraft_SetLeadEvictsContributor(t *testing.T) {
	original := sampleTask()
	d := task.OpenDraft(original)

	lead := "m2"
	d = d.SetLead(&lead)
	require.NotContains(t, d.Contributors, "m2")
	require.Contains(t, d.Contributors, "m3")
}

func TestDraft_AddContributorIdempotent(t *testing.T) {
	d := task.OpenDraft(sampleTask())
	d, err := d.AddContributor("m4")
	require.NoError(t, err)
	d, err = d.AddContributor("m4")
	require.NoError(t, err)

	count := 0
	for _, id := range d.Contributors {
		if id == "m4" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestDraft_SubTaskEditUnknownID(t *testing.T) {
	d := task.OpenDraft(sampleTask())
	_, err := d.SetSubTaskText(task.Persisted("nope"), "x")
	require.ErrorIs(t, err, task.ErrSubTaskNotFound)
}

func TestDraft_Stale(t *testing.T) {
	original := sampleTask()
	d := task.OpenDraft(original)

	require.False(t, d.Stale(original))

	// A remote edit to the same task after open makes the draft stale; the
	// draft itself is not informed and keeps its snapshot.
	moved := original.Clone()
	moved.Title = "renamed remotely"
	require.True(t, d.Stale(moved))
	require.Equal(t, "Fix login", d.Source().Title)
}

func TestSequence_ProvisionalIDs(t *testing.T) {
	var seq task.Sequence
	a := seq.Next()
	b := seq.Next()

	require.True(t, a.IsProvisional())
	require.True(t, b.IsProvisional())
	require.NotEqual(t, a, b)
	require.False(t, task.Persisted("s1").IsProvisional())
}
