package task

// Draft is a transient, locally-owned working copy of one task. It is a plain
// value: every edit returns a new draft and performs no I/O. A draft opened
// from an existing task keeps the snapshot it was opened against; remote
// updates to that task after open are NOT folded in. Committing such a draft
// overwrites newer remote state — callers that care can check Stale first,
// but nothing in the engine does it for them.
type Draft struct {
	TaskID        string // "" for a create draft
	Title         string
	Description   string
	Status        Status
	LeadID        *string
	Contributors  []string
	RequiredRoles []string
	SubTasks      []SubTask

	source *Task
}

// NewDraft opens a create draft with defaults: empty title, no assignee,
// status ToDo, no id yet.
func NewDraft() Draft {
	return Draft{Status: StatusToDo}
}

// OpenDraft opens an edit draft against a snapshot of src taken now.
func OpenDraft(src Task) Draft {
	snap := src.Clone()
	return Draft{
		TaskID:        snap.ID,
		Title:         snap.Title,
		Description:   snap.Description,
		Status:        snap.Status,
		LeadID:        cloneStr(snap.LeadID),
		Contributors:  append([]string(nil), snap.Contributors...),
		RequiredRoles: append([]string(nil), snap.RequiredRoles...),
		SubTasks:      append([]SubTask(nil), snap.SubTasks...),
		source:        &snap,
	}
}

// Source returns the snapshot the draft was opened against, or nil for a
// create draft.
func (d Draft) Source() *Task {
	return d.source
}

// Stale reports whether current has diverged from the draft's source
// snapshot. Always false for create drafts.
func (d Draft) Stale(current Task) bool {
	if d.source == nil {
		return false
	}
	return !equalTask(*d.source, current)
}

func (d Draft) SetTitle(title string) Draft {
	out := d.clone()
	out.Title = title
	return out
}

func (d Draft) SetDescription(desc string) Draft {
	out := d.clone()
	out.Description = desc
	return out
}

func (d Draft) SetStatus(status Status) Draft {
	out := d.clone()
	out.Status = status
	return out
}

// SetLead changes the lead assignee (nil clears it). The new lead is removed
// from the contributor set to keep the two disjoint.
func (d Draft) SetLead(memberID *string) Draft {
	out := d.clone()
	out.LeadID = cloneStr(memberID)
	if memberID != nil {
		out.Contributors = removeString(out.Contributors, *memberID)
	}
	return out
}

// AddContributor adds a member to the contributor set. Adding the current
// lead assignee is rejected.
func (d Draft) AddContributor(memberID string) (Draft, error) {
	if d.LeadID != nil && *d.LeadID == memberID {
		return d, ErrLeadContributor
	}
	out := d.clone()
	if !containsString(out.Contributors, memberID) {
		out.Contributors = append(out.Contributors, memberID)
	}
	return out, nil
}

func (d Draft) RemoveContributor(memberID string) Draft {
	out := d.clone()
	out.Contributors = removeString(out.Contributors, memberID)
	return out
}

func (d Draft) AddRequiredRole(roleID string) Draft {
	out := d.clone()
	if !containsString(out.RequiredRoles, roleID) {
		out.RequiredRoles = append(out.RequiredRoles, roleID)
	}
	return out
}

func (d Draft) RemoveRequiredRole(roleID string) Draft {
	out := d.clone()
	out.RequiredRoles = removeString(out.RequiredRoles, roleID)
	return out
}

// AddSubTask appends a new sub-task under a provisional id from seq.
func (d Draft) AddSubTask(seq *Sequence, text string) Draft {
	out := d.clone()
	out.SubTasks = append(out.SubTasks, SubTask{
		ID:     seq.Next(),
		TaskID: d.TaskID,
		Text:   text,
	})
	return out
}

func (d Draft) SetSubTaskText(id ID, text string) (Draft, error) {
	return d.patchSubTask(id, func(st *SubTask) { st.Text = text })
}

func (d Draft) SetSubTaskDone(id ID, done bool) (Draft, error) {
	return d.patchSubTask(id, func(st *SubTask) { st.Done = done })
}

func (d Draft) RemoveSubTask(id ID) Draft {
	out := d.clone()
	kept := out.SubTasks[:0]
	for _, st := range out.SubTasks {
		if st.ID != id {
			kept = append(kept, st)
		}
	}
	out.SubTasks = kept
	return out
}

func (d Draft) patchSubTask(id ID, patch func(*SubTask)) (Draft, error) {
	out := d.clone()
	for i := range out.SubTasks {
		if out.SubTasks[i].ID == id {
			patch(&out.SubTasks[i])
			return out, nil
		}
	}
	return d, ErrSubTaskNotFound
}

func (d Draft) clone() Draft {
	out := d
	out.LeadID = cloneStr(d.LeadID)
	out.Contributors = append([]string(nil), d.Contributors...)
	out.RequiredRoles = append([]string(nil), d.RequiredRoles...)
	out.SubTasks = append([]SubTask(nil), d.SubTasks...)
	return out
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func equalTask(a, b Task) bool {
	if a.ID != b.ID || a.Title != b.Title || a.Description != b.Description || a.Status != b.Status {
		return false
	}
	if !equalStrPtr(a.LeadID, b.LeadID) {
		return false
	}
	if !equalStringSet(a.Contributors, b.Contributors) || !equalStringSet(a.RequiredRoles, b.RequiredRoles) {
		return false
	}
	if len(a.SubTasks) != len(b.SubTasks) {
		return false
	}
	byID := make(map[ID]SubTask, len(a.SubTasks))
	for _, st := range a.SubTasks {
		byID[st.ID] = st
	}
	for _, st := range b.SubTasks {
		prev, ok := byID[st.ID]
		if !ok || prev.Text != st.Text || prev.Done != st.Done {
			return false
		}
	}
	return true
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
