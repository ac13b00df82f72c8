package role

import "time"

// AdminRoleName is the conventional name of the protected role each project
// carries. The protected role cannot be edited or deleted.
const AdminRoleName = "Admin"

// JobRole represents a named role members can hold within a project.
type JobRole struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Protected reports whether the role is the project's non-editable,
// non-deletable administrative role.
func (r JobRole) Protected() bool {
	return r.Name == AdminRoleName
}
