package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/crewdeck/crewdeck-go/internal/domain/member"
	"github.com/crewdeck/crewdeck-go/internal/domain/project"
	"github.com/crewdeck/crewdeck-go/internal/domain/role"
	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

// Snapshot is the canonical state of one project scope as fetched from the
// server in a single bootstrap pass.
type Snapshot struct {
	Project project.Project
	Tasks   []task.Task
	Members []member.Member
	Roles   []role.JobRole
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, projectID string) (project.Project, error) {
	var out project.Project
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID, nil, &out)
	return out, err
}

// UpdateProject patches the project's name, business name or description.
func (c *Client) UpdateProject(ctx context.Context, projectID string, fields map[string]any) (project.Project, error) {
	var out project.Project
	err := c.do(ctx, http.MethodPatch, "/api/projects/"+projectID, fields, &out)
	return out, err
}

// TransferOwnership hands the project to another member.
func (c *Client) TransferOwnership(ctx context.Context, projectID, memberID string) error {
	return c.do(ctx, http.MethodPost, "/api/projects/"+projectID+"/transfer", map[string]any{
		"member_id": memberID,
	}, nil)
}

// ListMembers returns the project's members.
func (c *Client) ListMembers(ctx context.Context, projectID string) ([]member.Member, error) {
	var out []member.Member
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/members", nil, &out)
	return out, err
}

// ListRoles returns the project's job roles.
func (c *Client) ListRoles(ctx context.Context, projectID string) ([]role.JobRole, error) {
	var out []role.JobRole
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/roles", nil, &out)
	return out, err
}

// GetSnapshot bootstraps a scope: project, active tasks, members and roles.
func (c *Client) GetSnapshot(ctx context.Context, projectID string) (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.Project, err = c.GetProject(ctx, projectID); err != nil {
		return Snapshot{}, fmt.Errorf("bootstrapping project: %w", err)
	}
	if snap.Tasks, err = c.ListTasks(ctx, projectID); err != nil {
		return Snapshot{}, fmt.Errorf("bootstrapping tasks: %w", err)
	}
	if snap.Members, err = c.ListMembers(ctx, projectID); err != nil {
		return Snapshot{}, fmt.Errorf("bootstrapping members: %w", err)
	}
	if snap.Roles, err = c.ListRoles(ctx, projectID); err != nil {
		return Snapshot{}, fmt.Errorf("bootstrapping roles: %w", err)
	}
	return snap, nil
}
