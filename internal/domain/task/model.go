package task

import "time"

// Status represents the workflow state of a task.
type Status string

const (
	StatusToDo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInReview   Status = "IN_REVIEW"
	StatusDone       Status = "DONE"
)

// Task is the canonical shape of a task within a project scope. Archived and
// active tasks share this type; ArchivedAt set means archived.
type Task struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        Status     `json:"status"`
	LeadID        *string    `json:"lead_id,omitempty"`
	Contributors  []string   `json:"contributor_ids"`
	RequiredRoles []string   `json:"required_role_ids"`
	SubTasks      []SubTask  `json:"subtasks"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Archived reports whether the task has been moved out of the active view.
func (t Task) Archived() bool {
	return t.ArchivedAt != nil
}

// SubTask is a checklist line owned by a task. Sub-tasks are an unordered
// multiset keyed by id; no move or renumbering semantics exist.
type SubTask struct {
	ID     ID     `json:"id"`
	TaskID string `json:"task_id,omitempty"`
	Text   string `json:"text"`
	Done   bool   `json:"done"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.LeadID != nil {
		lead := *t.LeadID
		out.LeadID = &lead
	}
	if t.ArchivedAt != nil {
		at := *t.ArchivedAt
		out.ArchivedAt = &at
	}
	out.Contributors = append([]string(nil), t.Contributors...)
	out.RequiredRoles = append([]string(nil), t.RequiredRoles...)
	out.SubTasks = append([]SubTask(nil), t.SubTasks...)
	return out
}
