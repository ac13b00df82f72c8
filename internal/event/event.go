// Package event defines the change-event envelope pushed by the server and
// the tagged form the rest of the engine consumes. Every scope shares this
// one decoder; pages subscribe to typed events instead of re-parsing the
// type string themselves.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EntityType names the entity a change event applies to.
type EntityType string

const (
	EntityTask    EntityType = "task"
	EntityMember  EntityType = "member"
	EntityRole    EntityType = "role"
	EntityProject EntityType = "project"
)

// Kind names the operation a change event carries.
type Kind string

const (
	KindCreated              Kind = "created"
	KindUpdated              Kind = "updated"
	KindDeleted              Kind = "deleted"
	KindArchived             Kind = "archived"
	KindUnarchived           Kind = "unarchived"
	KindBanned               Kind = "banned"
	KindUnbanned             Kind = "unbanned"
	KindOwnershipTransferred Kind = "ownership_transferred"
)

// Envelope is the wire-level message wrapper delivered over the push channel.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event is a decoded change event.
type Event struct {
	Entity EntityType
	Kind   Kind
	Data   json.RawMessage
}

// ErrUnknownType indicates an envelope type string the decoder does not
// recognize. Such events are dropped by the channel, never fatal.
var ErrUnknownType = errors.New("unknown event type")

var types = map[string]Event{
	"task_created":                  {Entity: EntityTask, Kind: KindCreated},
	"task_updated":                  {Entity: EntityTask, Kind: KindUpdated},
	"task_deleted":                  {Entity: EntityTask, Kind: KindDeleted},
	"task_archived":                 {Entity: EntityTask, Kind: KindArchived},
	"task_unarchived":               {Entity: EntityTask, Kind: KindUnarchived},
	"member_created":                {Entity: EntityMember, Kind: KindCreated},
	"member_updated":                {Entity: EntityMember, Kind: KindUpdated},
	"member_banned":                 {Entity: EntityMember, Kind: KindBanned},
	"member_unbanned":               {Entity: EntityMember, Kind: KindUnbanned},
	"role_created":                  {Entity: EntityRole, Kind: KindCreated},
	"role_updated":                  {Entity: EntityRole, Kind: KindUpdated},
	"role_deleted":                  {Entity: EntityRole, Kind: KindDeleted},
	"project_updated":               {Entity: EntityProject, Kind: KindUpdated},
	"project_ownership_transferred": {Entity: EntityProject, Kind: KindOwnershipTransferred},
}

// Decode parses an envelope's type string into a tagged event.
func Decode(env Envelope) (Event, error) {
	ev, ok := types[env.Type]
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	ev.Data = env.Data
	return ev, nil
}

// TypeString returns the wire type string for an entity/kind pair. The
// testserver uses it to build envelopes; it is the inverse of Decode.
func TypeString(entity EntityType, kind Kind) string {
	for s, ev := range types {
		if ev.Entity == entity && ev.Kind == kind {
			return s
		}
	}
	return ""
}
