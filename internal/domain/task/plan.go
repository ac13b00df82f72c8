package task

// OpKind names a mutation operation in a plan.
type OpKind string

const (
	OpCreateTask         OpKind = "create_task"
	OpUpdateScalars      OpKind = "update_task_scalars"
	OpAttachLead         OpKind = "attach_lead"
	OpBulkCreateSubTasks OpKind = "bulk_create_subtasks"
	OpCreateSubTask      OpKind = "create_subtask"
	OpUpdateSubTask      OpKind = "update_subtask"
	OpDeleteSubTask      OpKind = "delete_subtask"
	OpAddContributor     OpKind = "add_contributor"
	OpRemoveContributor  OpKind = "remove_contributor"
	OpAddRequiredRole    OpKind = "add_required_role"
	OpRemoveRequiredRole OpKind = "remove_required_role"
)

// Independent marks an op with no dependency on another op's output.
const Independent = -1

// ScalarPatch carries the changed scalar fields of a task. Nil fields are
// untouched; LeadSet distinguishes "clear the lead" from "leave it alone".
type ScalarPatch struct {
	Title       *string
	Description *string
	Status      *Status
	LeadSet     bool
	Lead        *string
}

// Empty reports whether the patch changes nothing.
func (p ScalarPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && !p.LeadSet
}

// Op is one mutation in a plan. TaskID is the persisted target task id; it is
// empty when the op depends on a prior create, in which case DependsOn holds
// the index of the op whose server-assigned id must be substituted.
type Op struct {
	Kind      OpKind
	DependsOn int
	TaskID    string

	Scalars   *ScalarPatch // create_task, update_task_scalars
	Lead      string       // attach_lead
	SubTasks  []SubTask    // bulk_create_subtasks
	SubTask   *SubTask     // create_subtask, update_subtask
	SubTaskID string       // update_subtask, delete_subtask (server id)
	MemberID  string       // contributor ops
	RoleID    string       // required-role ops
}

// Plan is an ordered list of mutations produced by diffing a draft against
// its source snapshot.
type Plan struct {
	Ops []Op
}

// Empty reports whether committing the plan would issue no request.
func (p Plan) Empty() bool {
	return len(p.Ops) == 0
}

// Diff compares a draft against its originating snapshot and produces the
// minimal mutation plan. original nil means the draft creates a new task.
// Diff is pure: identical draft and original yield an empty plan.
func Diff(original *Task, d Draft) Plan {
	if original == nil {
		return planCreate(d)
	}
	return planUpdate(*original, d)
}

func planCreate(d Draft) Plan {
	var plan Plan
	title, desc, status := d.Title, d.Description, d.Status
	plan.Ops = append(plan.Ops, Op{
		Kind:      OpCreateTask,
		DependsOn: Independent,
		Scalars:   &ScalarPatch{Title: &title, Description: &desc, Status: &status},
	})

	// Everything below needs the server id from op 0.
	if d.LeadID != nil {
		plan.Ops = append(plan.Ops, Op{Kind: OpAttachLead, DependsOn: 0, Lead: *d.LeadID})
	}
	if len(d.SubTasks) > 0 {
		plan.Ops = append(plan.Ops, Op{
			Kind:      OpBulkCreateSubTasks,
			DependsOn: 0,
			SubTasks:  append([]SubTask(nil), d.SubTasks...),
		})
	}
	for _, id := range d.Contributors {
		plan.Ops = append(plan.Ops, Op{Kind: OpAddContributor, DependsOn: 0, MemberID: id})
	}
	for _, id := range d.RequiredRoles {
		plan.Ops = append(plan.Ops, Op{Kind: OpAddRequiredRole, DependsOn: 0, RoleID: id})
	}
	return plan
}

func planUpdate(original Task, d Draft) Plan {
	var plan Plan
	taskID := original.ID

	if patch := scalarDiff(original, d); !patch.Empty() {
		p := patch
		plan.Ops = append(plan.Ops, Op{
			Kind:      OpUpdateScalars,
			DependsOn: Independent,
			TaskID:    taskID,
			Scalars:   &p,
		})
	}

	plan.Ops = append(plan.Ops, subTaskOps(taskID, original.SubTasks, d.SubTasks)...)

	add, remove := setDelta(original.Contributors, d.Contributors)
	for _, id := range add {
		plan.Ops = append(plan.Ops, Op{Kind: OpAddContributor, DependsOn: Independent, TaskID: taskID, MemberID: id})
	}
	for _, id := range remove {
		plan.Ops = append(plan.Ops, Op{Kind: OpRemoveContributor, DependsOn: Independent, TaskID: taskID, MemberID: id})
	}

	add, remove = setDelta(original.RequiredRoles, d.RequiredRoles)
	for _, id := range add {
		plan.Ops = append(plan.Ops, Op{Kind: OpAddRequiredRole, DependsOn: Independent, TaskID: taskID, RoleID: id})
	}
	for _, id := range remove {
		plan.Ops = append(plan.Ops, Op{Kind: OpRemoveRequiredRole, DependsOn: Independent, TaskID: taskID, RoleID: id})
	}

	return plan
}

func scalarDiff(original Task, d Draft) ScalarPatch {
	var patch ScalarPatch
	if d.Title != original.Title {
		title := d.Title
		patch.Title = &title
	}
	if d.Description != original.Description {
		desc := d.Description
		patch.Description = &desc
	}
	if d.Status != original.Status {
		status := d.Status
		patch.Status = &status
	}
	if !equalStrPtr(d.LeadID, original.LeadID) {
		patch.LeadSet = true
		patch.Lead = cloneStr(d.LeadID)
	}
	return patch
}

// subTaskOps partitions the draft's sub-task list against the original by id
// provenance: provisional ids become creates, shared ids with changed fields
// become updates, ids only in the original become deletes.
func subTaskOps(taskID string, original, draft []SubTask) []Op {
	var ops []Op

	origByID := make(map[ID]SubTask, len(original))
	for _, st := range original {
		origByID[st.ID] = st
	}

	seen := make(map[ID]struct{}, len(draft))
	for _, st := range draft {
		seen[st.ID] = struct{}{}
		if st.ID.IsProvisional() {
			sub := st
			ops = append(ops, Op{Kind: OpCreateSubTask, DependsOn: Independent, TaskID: taskID, SubTask: &sub})
			continue
		}
		prev, ok := origByID[st.ID]
		if !ok {
			// Persisted id the snapshot never held; nothing sane to do
			// but treat it as an update against the server copy.
			sub := st
			ops = append(ops, Op{Kind: OpUpdateSubTask, DependsOn: Independent, TaskID: taskID, SubTask: &sub, SubTaskID: st.ID.Server()})
			continue
		}
		if prev.Text != st.Text || prev.Done != st.Done {
			sub := st
			ops = append(ops, Op{Kind: OpUpdateSubTask, DependsOn: Independent, TaskID: taskID, SubTask: &sub, SubTaskID: st.ID.Server()})
		}
	}

	for _, st := range original {
		if _, ok := seen[st.ID]; !ok {
			ops = append(ops, Op{Kind: OpDeleteSubTask, DependsOn: Independent, TaskID: taskID, SubTaskID: st.ID.Server()})
		}
	}

	return ops
}

// setDelta computes toAdd = after \ before and toRemove = before \ after.
// The two are disjoint by construction.
func setDelta(before, after []string) (toAdd, toRemove []string) {
	beforeSet := make(map[string]struct{}, len(before))
	for _, s := range before {
		beforeSet[s] = struct{}{}
	}
	afterSet := make(map[string]struct{}, len(after))
	for _, s := range after {
		afterSet[s] = struct{}{}
	}
	for _, s := range after {
		if _, ok := beforeSet[s]; !ok {
			toAdd = append(toAdd, s)
		}
	}
	for _, s := range before {
		if _, ok := afterSet[s]; !ok {
			toRemove = append(toRemove, s)
		}
	}
	return toAdd, toRemove
}
