package member

import "time"

// Permission is the member's access tier within a project.
type Permission string

const (
	PermissionViewer Permission = "VIEWER"
	PermissionEditor Permission = "EDITOR"
	PermissionAdmin  Permission = "ADMIN"
)

// Member represents one user's membership in a project. Members are never
// deleted client-side; banning is a state flag, not removal.
type Member struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	RoleID      *string    `json:"role_id,omitempty"`
	Permission  Permission `json:"permission"`
	Banned      bool       `json:"banned"`
	Owner       bool       `json:"owner"`
	CreatedAt   time.Time  `json:"created_at"`
}
