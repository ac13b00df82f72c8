package scope

import (
	"encoding/json"
	"fmt"

	"github.com/crewdeck/crewdeck-go/internal/domain/member"
	"github.com/crewdeck/crewdeck-go/internal/domain/project"
	"github.com/crewdeck/crewdeck-go/internal/domain/role"
	"github.com/crewdeck/crewdeck-go/internal/domain/task"
	"github.com/crewdeck/crewdeck-go/internal/event"
)

// Effect tells the caller what follow-up an applied event requires.
type Effect int

const (
	// EffectNone: the event was applied (or dropped as a lost update).
	EffectNone Effect = iota
	// EffectRefetchMembership: the event invalidated derived permission
	// state; the caller must refetch the scope's project and members.
	EffectRefetchMembership
)

// Apply reconciles one change event into the canonical collections. The same
// path handles changes caused by this client and by others; semantics are
// idempotent per entity id, so duplicate delivery and the create-then-echo
// race are harmless.
func (s *Store) Apply(ev event.Event) (Effect, error) {
	switch ev.Entity {
	case event.EntityTask:
		return EffectNone, s.applyTask(ev)
	case event.EntityMember:
		return EffectNone, s.applyMember(ev)
	case event.EntityRole:
		return EffectNone, s.applyRole(ev)
	case event.EntityProject:
		return s.applyProject(ev)
	default:
		return EffectNone, fmt.Errorf("unhandled entity type %q", ev.Entity)
	}
}

func (s *Store) applyTask(ev event.Event) error {
	var t task.Task
	if err := json.Unmarshal(ev.Data, &t); err != nil {
		return fmt.Errorf("decoding task payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case event.KindCreated:
		// Upsert: a duplicate or an echo of our own create replaces in
		// place instead of appending a second copy.
		s.tasks[t.ID] = t
	case event.KindUpdated:
		if _, ok := s.tasks[t.ID]; !ok {
			s.logger.Warn("update for unknown task dropped", "task_id", t.ID)
			return nil
		}
		s.tasks[t.ID] = t
	case event.KindDeleted:
		delete(s.tasks, t.ID)
		delete(s.archived, t.ID)
	case event.KindArchived:
		delete(s.tasks, t.ID)
		if s.archivedLoaded {
			s.archived[t.ID] = t
		}
	case event.KindUnarchived:
		delete(s.archived, t.ID)
		s.tasks[t.ID] = t
	default:
		return fmt.Errorf("unhandled task event kind %q", ev.Kind)
	}
	return nil
}

func (s *Store) applyMember(ev event.Event) error {
	var m member.Member
	if err := json.Unmarshal(ev.Data, &m); err != nil {
		return fmt.Errorf("decoding member payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case event.KindCreated:
		s.members[m.ID] = m
	case event.KindUpdated, event.KindBanned, event.KindUnbanned:
		if _, ok := s.members[m.ID]; !ok {
			s.logger.Warn("update for unknown member dropped", "member_id", m.ID)
			return nil
		}
		s.members[m.ID] = m
	default:
		return fmt.Errorf("unhandled member event kind %q", ev.Kind)
	}
	return nil
}

func (s *Store) applyRole(ev event.Event) error {
	var r role.JobRole
	if err := json.Unmarshal(ev.Data, &r); err != nil {
		return fmt.Errorf("decoding role payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case event.KindCreated:
		s.roles[r.ID] = r
	case event.KindUpdated:
		if _, ok := s.roles[r.ID]; !ok {
			s.logger.Warn("update for unknown role dropped", "role_id", r.ID)
			return nil
		}
		s.roles[r.ID] = r
	case event.KindDeleted:
		delete(s.roles, r.ID)
	default:
		return fmt.Errorf("unhandled role event kind %q", ev.Kind)
	}
	return nil
}

func (s *Store) applyProject(ev event.Event) (Effect, error) {
	switch ev.Kind {
	case event.KindUpdated:
		var p project.Project
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return EffectNone, fmt.Errorf("decoding project payload: %w", err)
		}
		s.mu.Lock()
		s.project = &p
		s.mu.Unlock()
		return EffectNone, nil
	case event.KindOwnershipTransferred:
		// The payload does not carry the derived permission state a
		// transfer invalidates; the caller refetches instead of
		// patching fields.
		return EffectRefetchMembership, nil
	default:
		return EffectNone, fmt.Errorf("unhandled project event kind %q", ev.Kind)
	}
}
