package api

import (
	"context"
	"net/http"

	"github.com/crewdeck/crewdeck-go/internal/domain/member"
	"github.com/crewdeck/crewdeck-go/internal/domain/role"
)

// SetMemberRole assigns a job role to a member (nil clears it).
func (c *Client) SetMemberRole(ctx context.Context, memberID string, roleID *string) (member.Member, error) {
	body := map[string]any{}
	if roleID != nil {
		body["role_id"] = *roleID
	} else {
		body["role_id"] = nil
	}
	var out member.Member
	err := c.do(ctx, http.MethodPatch, "/api/members/"+memberID, body, &out)
	return out, err
}

// SetMemberPermission changes a member's permission tier.
func (c *Client) SetMemberPermission(ctx context.Context, memberID string, perm member.Permission) (member.Member, error) {
	var out member.Member
	err := c.do(ctx, http.MethodPatch, "/api/members/"+memberID, map[string]any{
		"permission": string(perm),
	}, &out)
	return out, err
}

// BanMember flags a member as banned. Banning never removes the member.
func (c *Client) BanMember(ctx context.Context, memberID string) error {
	return c.do(ctx, http.MethodPost, "/api/members/"+memberID+"/ban", nil, nil)
}

// UnbanMember clears a member's banned flag.
func (c *Client) UnbanMember(ctx context.Context, memberID string) error {
	return c.do(ctx, http.MethodPost, "/api/members/"+memberID+"/unban", nil, nil)
}

// CreateRole creates a job role in a project.
func (c *Client) CreateRole(ctx context.Context, projectID, name, description string) (role.JobRole, error) {
	var out role.JobRole
	err := c.do(ctx, http.MethodPost, "/api/projects/"+projectID+"/roles", map[string]any{
		"name":        name,
		"description": description,
	}, &out)
	return out, err
}

// UpdateRole patches a role's name or description.
func (c *Client) UpdateRole(ctx context.Context, roleID string, fields map[string]any) (role.JobRole, error) {
	var out role.JobRole
	err := c.do(ctx, http.MethodPatch, "/api/roles/"+roleID, fields, &out)
	return out, err
}

// DeleteRole removes a role. Members holding it are migrated to migrateTo by
// the server before the role is dropped; the fan-out is one member_updated
// event per migrated member followed by role_deleted.
func (c *Client) DeleteRole(ctx context.Context, roleID, migrateTo string) error {
	return c.do(ctx, http.MethodDelete, "/api/roles/"+roleID, map[string]any{
		"migrate_to": migrateTo,
	}, nil)
}
