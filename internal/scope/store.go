// Package scope owns the canonical in-memory state for one open project: the
// collection store, the reconciler that folds change events into it, and the
// controller that ties both to a live channel's lifetime.
package scope

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/crewdeck/crewdeck-go/internal/api"
	"github.com/crewdeck/crewdeck-go/internal/domain/member"
	"github.com/crewdeck/crewdeck-go/internal/domain/project"
	"github.com/crewdeck/crewdeck-go/internal/domain/role"
	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

// Store holds the canonical collections for one project scope. It is the
// single source of truth the UI renders; only the reconciler (Apply) and the
// bootstrap loaders write to it. Local commits never touch it directly —
// they come back around as events or refetches.
type Store struct {
	mu sync.RWMutex

	projectID string
	project   *project.Project
	tasks     map[string]task.Task
	archived  map[string]task.Task
	members   map[string]member.Member
	roles     map[string]role.JobRole

	archivedLoaded bool

	logger *slog.Logger
}

// NewStore creates an empty store for one project scope.
func NewStore(projectID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		projectID: projectID,
		tasks:     make(map[string]task.Task),
		archived:  make(map[string]task.Task),
		members:   make(map[string]member.Member),
		roles:     make(map[string]role.JobRole),
		logger:    logger,
	}
}

// ProjectID returns the scope's project id.
func (s *Store) ProjectID() string {
	return s.projectID
}

// Load replaces the store's contents with a bootstrap snapshot.
func (s *Store) Load(snap api.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := snap.Project
	s.project = &p
	s.tasks = make(map[string]task.Task, len(snap.Tasks))
	for _, t := range snap.Tasks {
		s.tasks[t.ID] = t
	}
	s.members = make(map[string]member.Member, len(snap.Members))
	for _, m := range snap.Members {
		s.members[m.ID] = m
	}
	s.roles = make(map[string]role.JobRole, len(snap.Roles))
	for _, r := range snap.Roles {
		s.roles[r.ID] = r
	}
}

// LoadArchived fills the archived-tasks collection, which is fetched on
// demand rather than during bootstrap.
func (s *Store) LoadArchived(tasks []task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = make(map[string]task.Task, len(tasks))
	for _, t := range tasks {
		s.archived[t.ID] = t
	}
	s.archivedLoaded = true
}

// ReplaceMembership swaps the project and member collections, used when an
// ownership transfer invalidates derived permission state.
func (s *Store) ReplaceMembership(p project.Project, members []member.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = &p
	s.members = make(map[string]member.Member, len(members))
	for _, m := range members {
		s.members[m.ID] = m
	}
}

// Project returns a copy of the cached project, or false before bootstrap.
func (s *Store) Project() (project.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return project.Project{}, false
	}
	return *s.project, true
}

// Task returns one active task by id.
func (s *Store) Task(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Tasks returns the active tasks, oldest first.
func (s *Store) Tasks() []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortTasks(s.tasks)
}

// ArchivedTasks returns the archived collection, oldest first. Empty until
// LoadArchived has run.
func (s *Store) ArchivedTasks() []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortTasks(s.archived)
}

// Members returns the project members sorted by display name.
func (s *Store) Members() []member.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]member.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Member returns one member by id.
func (s *Store) Member(id string) (member.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	return m, ok
}

// Roles returns the project's job roles sorted by name.
func (s *Store) Roles() []role.JobRole {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]role.JobRole, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortTasks(m map[string]task.Task) []task.Task {
	out := make([]task.Task, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
