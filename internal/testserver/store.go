package testserver

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crewdeck/crewdeck-go/internal/domain/member"
	"github.com/crewdeck/crewdeck-go/internal/domain/project"
	"github.com/crewdeck/crewdeck-go/internal/domain/role"
	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

// DB wraps the test server's SQLite database.
type DB struct {
	*sql.DB
}

// NewDB opens a SQLite database and creates the schema.
func NewDB(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Concurrent commit fan-out hits this database from several
	// goroutines; one connection serializes access.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &DB{db}, nil
}

const schema = `
CREATE TABLE projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    business_name TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    owner_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE members (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id),
    user_id TEXT NOT NULL,
    display_name TEXT NOT NULL,
    role_id TEXT,
    permission TEXT NOT NULL,
    banned INTEGER NOT NULL DEFAULT 0,
    owner INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE roles (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE tasks (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id),
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    lead_id TEXT,
    archived_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE subtasks (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    done INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE task_contributors (
    task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    member_id TEXT NOT NULL,
    PRIMARY KEY (task_id, member_id)
);

CREATE TABLE task_required_roles (
    task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    role_id TEXT NOT NULL,
    PRIMARY KEY (task_id, role_id)
);
`

func (db *DB) insertProject(p project.Project) error {
	_, err := db.Exec(
		`INSERT INTO projects (id, name, business_name, description, owner_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.BusinessName, p.Description, p.OwnerID, p.CreatedAt,
	)
	return err
}

func (db *DB) getProject(id string) (project.Project, error) {
	var p project.Project
	err := db.QueryRow(
		`SELECT id, name, business_name, description, owner_id, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.BusinessName, &p.Description, &p.OwnerID, &p.CreatedAt)
	return p, err
}

func (db *DB) updateProject(id string, fields map[string]any) (project.Project, error) {
	for col, key := range map[string]string{"name": "name", "business_name": "business_name", "description": "description"} {
		if v, ok := fields[key]; ok {
			if _, err := db.Exec(`UPDATE projects SET `+col+` = ? WHERE id = ?`, v, id); err != nil {
				return project.Project{}, err
			}
		}
	}
	return db.getProject(id)
}

func (db *DB) transferOwnership(projectID, memberID string) (project.Project, error) {
	var userID string
	if err := db.QueryRow(`SELECT user_id FROM members WHERE id = ?`, memberID).Scan(&userID); err != nil {
		return project.Project{}, err
	}
	if _, err := db.Exec(`UPDATE members SET owner = 0 WHERE project_id = ?`, projectID); err != nil {
		return project.Project{}, err
	}
	if _, err := db.Exec(`UPDATE members SET owner = 1 WHERE id = ?`, memberID); err != nil {
		return project.Project{}, err
	}
	if _, err := db.Exec(`UPDATE projects SET owner_id = ? WHERE id = ?`, userID, projectID); err != nil {
		return project.Project{}, err
	}
	return db.getProject(projectID)
}

func (db *DB) insertMember(m member.Member) error {
	_, err := db.Exec(
		`INSERT INTO members (id, project_id, user_id, display_name, role_id, permission, banned, owner, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.UserID, m.DisplayName, m.RoleID, string(m.Permission), m.Banned, m.Owner, m.CreatedAt,
	)
	return err
}

func (db *DB) getMember(id string) (member.Member, error) {
	var m member.Member
	var perm string
	err := db.QueryRow(
		`SELECT id, project_id, user_id, display_name, role_id, permission, banned, owner, created_at
		 FROM members WHERE id = ?`, id,
	).Scan(&m.ID, &m.ProjectID, &m.UserID, &m.DisplayName, &m.RoleID, &perm, &m.Banned, &m.Owner, &m.CreatedAt)
	m.Permission = member.Permission(perm)
	return m, err
}

func (db *DB) listMembers(projectID string) ([]member.Member, error) {
	rows, err := db.Query(
		`SELECT id, project_id, user_id, display_name, role_id, permission, banned, owner, created_at
		 FROM members WHERE project_id = ? ORDER BY created_at, id`, projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []member.Member{}
	for rows.Next() {
		var m member.Member
		var perm string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.DisplayName, &m.RoleID, &perm, &m.Banned, &m.Owner, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Permission = member.Permission(perm)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (db *DB) updateMember(id string, fields map[string]any) (member.Member, error) {
	if v, ok := fields["role_id"]; ok {
		if _, err := db.Exec(`UPDATE members SET role_id = ? WHERE id = ?`, v, id); err != nil {
			return member.Member{}, err
		}
	}
	if v, ok := fields["permission"]; ok {
		if _, err := db.Exec(`UPDATE members SET permission = ? WHERE id = ?`, v, id); err != nil {
			return member.Member{}, err
		}
	}
	return db.getMember(id)
}

func (db *DB) setMemberBanned(id string, banned bool) (member.Member, error) {
	if _, err := db.Exec(`UPDATE members SET banned = ? WHERE id = ?`, banned, id); err != nil {
		return member.Member{}, err
	}
	return db.getMember(id)
}

// migrateRole reassigns every member holding roleID to migrateTo, returning
// the ids of the members that moved.
func (db *DB) migrateRole(roleID, migrateTo string) ([]string, error) {
	rows, err := db.Query(`SELECT id FROM members WHERE role_id = ?`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`UPDATE members SET role_id = ? WHERE role_id = ?`, migrateTo, roleID); err != nil {
		return nil, err
	}
	return ids, nil
}

func (db *DB) insertRole(r role.JobRole) error {
	_, err := db.Exec(
		`INSERT INTO roles (id, project_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.ProjectID, r.Name, r.Description, r.CreatedAt,
	)
	return err
}

func (db *DB) getRole(id string) (role.JobRole, error) {
	var r role.JobRole
	err := db.QueryRow(
		`SELECT id, project_id, name, description, created_at FROM roles WHERE id = ?`, id,
	).Scan(&r.ID, &r.ProjectID, &r.Name, &r.Description, &r.CreatedAt)
	return r, err
}

func (db *DB) listRoles(projectID string) ([]role.JobRole, error) {
	rows, err := db.Query(
		`SELECT id, project_id, name, description, created_at FROM roles WHERE project_id = ? ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []role.JobRole{}
	for rows.Next() {
		var r role.JobRole
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Name, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (db *DB) updateRole(id string, fields map[string]any) (role.JobRole, error) {
	for _, key := range []string{"name", "description"} {
		if v, ok := fields[key]; ok {
			if _, err := db.Exec(`UPDATE roles SET `+key+` = ? WHERE id = ?`, v, id); err != nil {
				return role.JobRole{}, err
			}
		}
	}
	return db.getRole(id)
}

func (db *DB) deleteRole(id string) error {
	_, err := db.Exec(`DELETE FROM task_required_roles WHERE role_id = ?`, id)
	if err != nil {
		return err
	}
	_, err = db.Exec(`DELETE FROM roles WHERE id = ?`, id)
	return err
}

func (db *DB) insertTask(t task.Task) error {
	_, err := db.Exec(
		`INSERT INTO tasks (id, project_id, title, description, status, lead_id, archived_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), t.LeadID, t.ArchivedAt, t.CreatedAt,
	)
	return err
}

// getTask hydrates a task with its sub-tasks, contributor set and
// required-role set.
func (db *DB) getTask(id string) (task.Task, error) {
	var t task.Task
	var status string
	err := db.QueryRow(
		`SELECT id, project_id, title, description, status, lead_id, archived_at, created_at FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &t.LeadID, &t.ArchivedAt, &t.CreatedAt)
	if err != nil {
		return task.Task{}, err
	}
	t.Status = task.Status(status)

	if t.SubTasks, err = db.listSubTasks(id); err != nil {
		return task.Task{}, err
	}
	if t.Contributors, err = db.listRelation(`SELECT member_id FROM task_contributors WHERE task_id = ? ORDER BY member_id`, id); err != nil {
		return task.Task{}, err
	}
	if t.RequiredRoles, err = db.listRelation(`SELECT role_id FROM task_required_roles WHERE task_id = ? ORDER BY role_id`, id); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (db *DB) listTasks(projectID string, archived bool) ([]task.Task, error) {
	cond := "archived_at IS NULL"
	if archived {
		cond = "archived_at IS NOT NULL"
	}
	rows, err := db.Query(
		`SELECT id FROM tasks WHERE project_id = ? AND `+cond+` ORDER BY created_at, id`, projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tasks := []task.Task{}
	for _, id := range ids {
		t, err := db.getTask(id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (db *DB) updateTaskScalars(id string, fields map[string]any) (task.Task, error) {
	for _, key := range []string{"title", "description", "status"} {
		if v, ok := fields[key]; ok {
			if _, err := db.Exec(`UPDATE tasks SET `+key+` = ? WHERE id = ?`, v, id); err != nil {
				return task.Task{}, err
			}
		}
	}
	if v, ok := fields["lead_id"]; ok {
		if _, err := db.Exec(`UPDATE tasks SET lead_id = ? WHERE id = ?`, v, id); err != nil {
			return task.Task{}, err
		}
	}
	return db.getTask(id)
}

func (db *DB) deleteTask(id string) error {
	_, err := db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func (db *DB) setTaskArchived(id string, at *time.Time) (task.Task, error) {
	if _, err := db.Exec(`UPDATE tasks SET archived_at = ? WHERE id = ?`, at, id); err != nil {
		return task.Task{}, err
	}
	return db.getTask(id)
}

func (db *DB) insertSubTask(st task.SubTask) error {
	_, err := db.Exec(
		`INSERT INTO subtasks (id, task_id, text, done) VALUES (?, ?, ?, ?)`,
		st.ID.Server(), st.TaskID, st.Text, st.Done,
	)
	return err
}

func (db *DB) getSubTask(id string) (task.SubTask, error) {
	var st task.SubTask
	var server string
	err := db.QueryRow(`SELECT id, task_id, text, done FROM subtasks WHERE id = ?`, id).
		Scan(&server, &st.TaskID, &st.Text, &st.Done)
	st.ID = task.Persisted(server)
	return st, err
}

func (db *DB) listSubTasks(taskID string) ([]task.SubTask, error) {
	rows, err := db.Query(`SELECT id, task_id, text, done FROM subtasks WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []task.SubTask{}
	for rows.Next() {
		var st task.SubTask
		var server string
		if err := rows.Scan(&server, &st.TaskID, &st.Text, &st.Done); err != nil {
			return nil, err
		}
		st.ID = task.Persisted(server)
		subs = append(subs, st)
	}
	return subs, rows.Err()
}

func (db *DB) updateSubTask(id string, fields map[string]any) (task.SubTask, error) {
	for _, key := range []string{"text", "done"} {
		if v, ok := fields[key]; ok {
			if _, err := db.Exec(`UPDATE subtasks SET `+key+` = ? WHERE id = ?`, v, id); err != nil {
				return task.SubTask{}, err
			}
		}
	}
	return db.getSubTask(id)
}

func (db *DB) deleteSubTask(id string) (string, error) {
	var taskID string
	if err := db.QueryRow(`SELECT task_id FROM subtasks WHERE id = ?`, id).Scan(&taskID); err != nil {
		return "", err
	}
	_, err := db.Exec(`DELETE FROM subtasks WHERE id = ?`, id)
	return taskID, err
}

func (db *DB) addRelation(table, column, taskID, id string) error {
	_, err := db.Exec(
		`INSERT OR IGNORE INTO `+table+` (task_id, `+column+`) VALUES (?, ?)`, taskID, id,
	)
	return err
}

func (db *DB) removeRelation(table, column, taskID, id string) error {
	_, err := db.Exec(`DELETE FROM `+table+` WHERE task_id = ? AND `+column+` = ?`, taskID, id)
	return err
}

func (db *DB) listRelation(query, taskID string) ([]string, error) {
	rows, err := db.Query(query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
