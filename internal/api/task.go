package api

import (
	"context"
	"net/http"

	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

// ListTasks returns the active tasks in a project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]task.Task, error) {
	var out []task.Task
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/tasks", nil, &out)
	return out, err
}

// ListArchivedTasks returns the archived tasks in a project.
func (c *Client) ListArchivedTasks(ctx context.Context, projectID string) ([]task.Task, error) {
	var out []task.Task
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/tasks?archived=true", nil, &out)
	return out, err
}

// CreateTask creates a task from its scalar fields and returns the server's
// copy, including the assigned id.
func (c *Client) CreateTask(ctx context.Context, projectID string, patch task.ScalarPatch) (task.Task, error) {
	var out task.Task
	err := c.do(ctx, http.MethodPost, "/api/projects/"+projectID+"/tasks", scalarBody(patch), &out)
	return out, err
}

// UpdateTaskScalars patches the changed scalar fields of a task in one
// request.
func (c *Client) UpdateTaskScalars(ctx context.Context, taskID string, patch task.ScalarPatch) (task.Task, error) {
	var out task.Task
	err := c.do(ctx, http.MethodPatch, "/api/tasks/"+taskID, scalarBody(patch), &out)
	return out, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+taskID, nil, nil)
}

// ArchiveTask moves a task to the archived view.
func (c *Client) ArchiveTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/archive", nil, nil)
}

// UnarchiveTask moves a task back to the active view.
func (c *Client) UnarchiveTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/unarchive", nil, nil)
}

// CreateSubTask creates one sub-task under a task.
func (c *Client) CreateSubTask(ctx context.Context, taskID, text string, done bool) (task.SubTask, error) {
	var out task.SubTask
	err := c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/subtasks", map[string]any{
		"text": text,
		"done": done,
	}, &out)
	return out, err
}

// BulkCreateSubTasks creates several sub-tasks in one round trip.
func (c *Client) BulkCreateSubTasks(ctx context.Context, taskID string, subs []task.SubTask) ([]task.SubTask, error) {
	items := make([]map[string]any, 0, len(subs))
	for _, st := range subs {
		items = append(items, map[string]any{"text": st.Text, "done": st.Done})
	}
	var out []task.SubTask
	err := c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/subtasks/bulk", map[string]any{
		"subtasks": items,
	}, &out)
	return out, err
}

// UpdateSubTask patches a sub-task's text and completed flag.
func (c *Client) UpdateSubTask(ctx context.Context, subTaskID, text string, done bool) (task.SubTask, error) {
	var out task.SubTask
	err := c.do(ctx, http.MethodPatch, "/api/subtasks/"+subTaskID, map[string]any{
		"text": text,
		"done": done,
	}, &out)
	return out, err
}

// DeleteSubTask removes a sub-task.
func (c *Client) DeleteSubTask(ctx context.Context, subTaskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/subtasks/"+subTaskID, nil, nil)
}

// AddContributor adds a member to a task's contributor set.
func (c *Client) AddContributor(ctx context.Context, taskID, memberID string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/contributors", map[string]any{
		"member_id": memberID,
	}, nil)
}

// RemoveContributor removes a member from a task's contributor set.
func (c *Client) RemoveContributor(ctx context.Context, taskID, memberID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+taskID+"/contributors", map[string]any{
		"member_id": memberID,
	}, nil)
}

// AddRequiredRole adds a job role to a task's required-role set.
func (c *Client) AddRequiredRole(ctx context.Context, taskID, roleID string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/required-roles", map[string]any{
		"role_id": roleID,
	}, nil)
}

// RemoveRequiredRole removes a job role from a task's required-role set.
func (c *Client) RemoveRequiredRole(ctx context.Context, taskID, roleID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+taskID+"/required-roles", map[string]any{
		"role_id": roleID,
	}, nil)
}

// scalarBody maps a scalar patch into a PATCH body. A set-but-nil lead is
// sent as an explicit null so the server clears the assignee.
func scalarBody(patch task.ScalarPatch) map[string]any {
	body := map[string]any{}
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	if patch.Status != nil {
		body["status"] = string(*patch.Status)
	}
	if patch.LeadSet {
		if patch.Lead != nil {
			body["lead_id"] = *patch.Lead
		} else {
			body["lead_id"] = nil
		}
	}
	return body
}
