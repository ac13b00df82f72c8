// Package testserver is an in-process stand-in for the Crewdeck server: the
// same REST surface, anti-forgery handshake and per-project websocket
// fan-out, backed by SQLite. Tests drive the real client against it.
package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck-go/internal/domain/member"
	"github.com/crewdeck/crewdeck-go/internal/domain/project"
	"github.com/crewdeck/crewdeck-go/internal/domain/role"
	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

// Server is one running test server instance.
type Server struct {
	HTTP *httptest.Server
	DB   *DB

	hub *hub

	mu     sync.Mutex
	tokens map[string]struct{}
}

// New starts a test server over an in-memory database, torn down with the
// test.
func New(t *testing.T) *Server {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := NewDB(dsn)
	require.NoError(t, err)

	s := &Server{
		DB:     db,
		hub:    newHub(),
		tokens: make(map[string]struct{}),
	}
	s.HTTP = httptest.NewServer(s.router())

	t.Cleanup(func() {
		s.hub.closeAll()
		s.HTTP.Close()
		_ = db.Close()
	})
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.HTTP.URL
}

// Broadcast injects a raw envelope into a project's push channel, for tests
// exercising delivery the REST surface would not produce (duplicates,
// unknown types, malformed payloads).
func (s *Server) Broadcast(projectID, envType string, data any) {
	s.hub.broadcast(projectID, envType, data)
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/csrf", s.handleCSRF)

	r.Route("/api/projects/{projectID}", func(r chi.Router) {
		r.Get("/", s.handleGetProject)
		r.Patch("/", s.handleUpdateProject)
		r.Post("/transfer", s.handleTransferOwnership)
		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks", s.handleCreateTask)
		r.Get("/members", s.handleListMembers)
		r.Get("/roles", s.handleListRoles)
		r.Post("/roles", s.handleCreateRole)
		r.Get("/ws", s.handleWS)
	})

	r.Route("/api/tasks/{taskID}", func(r chi.Router) {
		r.Patch("/", s.handleUpdateTask)
		r.Delete("/", s.handleDeleteTask)
		r.Post("/archive", s.handleArchiveTask)
		r.Post("/unarchive", s.handleUnarchiveTask)
		r.Post("/subtasks", s.handleCreateSubTask)
		r.Post("/subtasks/bulk", s.handleBulkCreateSubTasks)
		r.Post("/contributors", s.handleAddContributor)
		r.Delete("/contributors", s.handleRemoveContributor)
		r.Post("/required-roles", s.handleAddRequiredRole)
		r.Delete("/required-roles", s.handleRemoveRequiredRole)
	})

	r.Patch("/api/subtasks/{subTaskID}", s.handleUpdateSubTask)
	r.Delete("/api/subtasks/{subTaskID}", s.handleDeleteSubTask)

	r.Route("/api/members/{memberID}", func(r chi.Router) {
		r.Patch("/", s.handleUpdateMember)
		r.Post("/ban", s.handleBanMember)
		r.Post("/unban", s.handleUnbanMember)
	})

	r.Patch("/api/roles/{roleID}", s.handleUpdateRole)
	r.Delete("/api/roles/{roleID}", s.handleDeleteRole)

	return r
}

func (s *Server) handleCSRF(w http.ResponseWriter, _ *http.Request) {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// body decodes the request body and verifies the anti-forgery token arrived
// both in the header and the body, unused and matching.
func (s *Server) body(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	fields := map[string]any{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "malformed body")
			return nil, false
		}
	}

	header := r.Header.Get("X-CSRF-Token")
	embedded, _ := fields["csrf_token"].(string)
	if header == "" || header != embedded {
		writeError(w, http.StatusForbidden, "csrf token mismatch")
		return nil, false
	}

	s.mu.Lock()
	_, issued := s.tokens[header]
	delete(s.tokens, header)
	s.mu.Unlock()
	if !issued {
		writeError(w, http.StatusForbidden, "csrf token not issued")
		return nil, false
	}

	delete(fields, "csrf_token")
	return fields, true
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(chi.URLParam(r, "projectID"), w, r)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.DB.getProject(chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	p, err := s.DB.updateProject(chi.URLParam(r, "projectID"), fields)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	s.hub.broadcast(p.ID, "project_updated", p)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	memberID, _ := fields["member_id"].(string)
	p, err := s.DB.transferOwnership(chi.URLParam(r, "projectID"), memberID)
	if err != nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	s.hub.broadcast(p.ID, "project_ownership_transferred", p)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	archived := r.URL.Query().Get("archived") == "true"
	tasks, err := s.DB.listTasks(chi.URLParam(r, "projectID"), archived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "projectID")
	t := task.Task{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    task.StatusToDo,
		CreatedAt: time.Now().UTC(),
	}
	t.Title, _ = fields["title"].(string)
	t.Description, _ = fields["description"].(string)
	if status, ok := fields["status"].(string); ok && status != "" {
		t.Status = task.Status(status)
	}
	if err := s.DB.insertTask(t); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	created, err := s.DB.getTask(t.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.broadcast(projectID, "task_created", created)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	t, err := s.DB.updateTaskScalars(chi.URLParam(r, "taskID"), fields)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.hub.broadcast(t.ProjectID, "task_updated", t)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.body(w, r); !ok {
		return
	}
	t, err := s.DB.getTask(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err := s.DB.deleteTask(t.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.broadcast(t.ProjectID, "task_deleted", t)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.body(w, r); !ok {
		return
	}
	now := time.Now().UTC()
	t, err := s.DB.setTaskArchived(chi.URLParam(r, "taskID"), &now)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.hub.broadcast(t.ProjectID, "task_archived", t)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUnarchiveTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.body(w, r); !ok {
		return
	}
	t, err := s.DB.setTaskArchived(chi.URLParam(r, "taskID"), nil)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.hub.broadcast(t.ProjectID, "task_unarchived", t)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateSubTask(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "taskID")
	st := task.SubTask{ID: task.Persisted(uuid.NewString()), TaskID: taskID}
	st.Text, _ = fields["text"].(string)
	st.Done, _ = fields["done"].(bool)
	if err := s.DB.insertSubTask(st); err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.broadcastTaskUpdated(taskID)
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleBulkCreateSubTasks(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "taskID")
	items, _ := fields["subtasks"].([]any)
	created := []task.SubTask{}
	for _, item := range items {
		m, _ := item.(map[string]any)
		st := task.SubTask{ID: task.Persisted(uuid.NewString()), TaskID: taskID}
		st.Text, _ = m["text"].(string)
		st.Done, _ = m["done"].(bool)
		if err := s.DB.insertSubTask(st); err != nil {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		created = append(created, st)
	}
	s.broadcastTaskUpdated(taskID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateSubTask(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	st, err := s.DB.updateSubTask(chi.URLParam(r, "subTaskID"), fields)
	if err != nil {
		writeError(w, http.StatusNotFound, "subtask not found")
		return
	}
	s.broadcastTaskUpdated(st.TaskID)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteSubTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.body(w, r); !ok {
		return
	}
	taskID, err := s.DB.deleteSubTask(chi.URLParam(r, "subTaskID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "subtask not found")
		return
	}
	s.broadcastTaskUpdated(taskID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddContributor(w http.ResponseWriter, r *http.Request) {
	s.handleRelation(w, r, "task_contributors", "member_id", true)
}

func (s *Server) handleRemoveContributor(w http.ResponseWriter, r *http.Request) {
	s.handleRelation(w, r, "task_contributors", "member_id", false)
}

func (s *Server) handleAddRequiredRole(w http.ResponseWriter, r *http.Request) {
	s.handleRelation(w, r, "task_required_roles", "role_id", true)
}

func (s *Server) handleRemoveRequiredRole(w http.ResponseWriter, r *http.Request) {
	s.handleRelation(w, r, "task_required_roles", "role_id", false)
}

func (s *Server) handleRelation(w http.ResponseWriter, r *http.Request, table, column string, add bool) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "taskID")
	id, _ := fields[column].(string)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing "+column)
		return
	}

	var err error
	if add {
		err = s.DB.addRelation(table, column, taskID, id)
	} else {
		err = s.DB.removeRelation(table, column, taskID, id)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.broadcastTaskUpdated(taskID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.DB.listMembers(chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	m, err := s.DB.updateMember(chi.URLParam(r, "memberID"), fields)
	if err != nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	s.hub.broadcast(m.ProjectID, "member_updated", m)
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleBanMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.body(w, r); !ok {
		return
	}
	m, err := s.DB.setMemberBanned(chi.URLParam(r, "memberID"), true)
	if err != nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	s.hub.broadcast(m.ProjectID, "member_banned", m)
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUnbanMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.body(w, r); !ok {
		return
	}
	m, err := s.DB.setMemberBanned(chi.URLParam(r, "memberID"), false)
	if err != nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	s.hub.broadcast(m.ProjectID, "member_unbanned", m)
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.DB.listRoles(chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	rl := role.JobRole{
		ID:        uuid.NewString(),
		ProjectID: chi.URLParam(r, "projectID"),
		CreatedAt: time.Now().UTC(),
	}
	rl.Name, _ = fields["name"].(string)
	rl.Description, _ = fields["description"].(string)
	if err := s.DB.insertRole(rl); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.broadcast(rl.ProjectID, "role_created", rl)
	writeJSON(w, http.StatusCreated, rl)
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	existing, err := s.DB.getRole(chi.URLParam(r, "roleID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}
	if existing.Protected() {
		writeError(w, http.StatusForbidden, "role is protected")
		return
	}
	rl, err := s.DB.updateRole(existing.ID, fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.broadcast(rl.ProjectID, "role_updated", rl)
	writeJSON(w, http.StatusOK, rl)
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.body(w, r)
	if !ok {
		return
	}
	existing, err := s.DB.getRole(chi.URLParam(r, "roleID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}
	if existing.Protected() {
		writeError(w, http.StatusForbidden, "role is protected")
		return
	}
	migrateTo, _ := fields["migrate_to"].(string)

	// Members holding the role move first, each with its own event, then
	// the role itself goes.
	migrated, err := s.DB.migrateRole(existing.ID, migrateTo)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, memberID := range migrated {
		if m, err := s.DB.getMember(memberID); err == nil {
			s.hub.broadcast(m.ProjectID, "member_updated", m)
		}
	}
	if err := s.DB.deleteRole(existing.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.broadcast(existing.ProjectID, "role_deleted", existing)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// SeedProject inserts a project with an Admin role and an owning member.
func (s *Server) SeedProject(t *testing.T, name string) (project.Project, member.Member, role.JobRole) {
	t.Helper()

	ownerUser := uuid.NewString()
	p := project.Project{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerUser,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.DB.insertProject(p))

	admin := role.JobRole{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		Name:      role.AdminRoleName,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.DB.insertRole(admin))

	owner := member.Member{
		ID:          uuid.NewString(),
		ProjectID:   p.ID,
		UserID:      ownerUser,
		DisplayName: "Owner",
		RoleID:      &admin.ID,
		Permission:  member.PermissionAdmin,
		Owner:       true,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.DB.insertMember(owner))

	return p, owner, admin
}

// SeedMember inserts a member.
func (s *Server) SeedMember(t *testing.T, projectID, displayName string, roleID *string) member.Member {
	t.Helper()
	m := member.Member{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		UserID:      uuid.NewString(),
		DisplayName: displayName,
		RoleID:      roleID,
		Permission:  member.PermissionEditor,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.DB.insertMember(m))
	return m
}

// SeedRole inserts a job role.
func (s *Server) SeedRole(t *testing.T, projectID, name string) role.JobRole {
	t.Helper()
	r := role.JobRole{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.DB.insertRole(r))
	return r
}

// SeedTask inserts a task and returns its hydrated form.
func (s *Server) SeedTask(t *testing.T, projectID, title string) task.Task {
	t.Helper()
	tk := task.Task{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		Status:    task.StatusToDo,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.DB.insertTask(tk))
	created, err := s.DB.getTask(tk.ID)
	require.NoError(t, err)
	return created
}

// AddTaskContributor seeds a contributor relation without the fan-out.
func (s *Server) AddTaskContributor(t *testing.T, taskID, memberID string) {
	t.Helper()
	require.NoError(t, s.DB.addRelation("task_contributors", "member_id", taskID, memberID))
}

func (s *Server) broadcastTaskUpdated(taskID string) {
	t, err := s.DB.getTask(taskID)
	if err != nil {
		return
	}
	s.hub.broadcast(t.ProjectID, "task_updated", t)
}
