package event_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck-go/internal/event"
)

func TestDecode_KnownTypes(t *testing.T) {
	cases := []struct {
		wire   string
		entity event.EntityType
		kind   event.Kind
	}{
		{"task_created", event.EntityTask, event.KindCreated},
		{"task_updated", event.EntityTask, event.KindUpdated},
		{"task_deleted", event.EntityTask, event.KindDeleted},
		{"task_archived", event.EntityTask, event.KindArchived},
		{"task_unarchived", event.EntityTask, event.KindUnarchived},
		{"member_created", event.EntityMember, event.KindCreated},
		{"member_updated", event.EntityMember, event.KindUpdated},
		{"member_banned", event.EntityMember, event.KindBanned},
		{"member_unbanned", event.EntityMember, event.KindUnbanned},
		{"role_created", event.EntityRole, event.KindCreated},
		{"role_updated", event.EntityRole, event.KindUpdated},
		{"role_deleted", event.EntityRole, event.KindDeleted},
		{"project_updated", event.EntityProject, event.KindUpdated},
		{"project_ownership_transferred", event.EntityProject, event.KindOwnershipTransferred},
	}

	for _, tc := range cases {
		t.Run(tc.wire, func(t *testing.T) {
			data := json.RawMessage(`{"id":"x"}`)
			ev, err := event.Decode(event.Envelope{Type: tc.wire, Data: data})
			require.NoError(t, err)
			require.Equal(t, tc.entity, ev.Entity)
			require.Equal(t, tc.kind, ev.Kind)
			require.Equal(t, data, ev.Data)
		})
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := event.Decode(event.Envelope{Type: "task_exploded"})
	require.ErrorIs(t, err, event.ErrUnknownType)
}

func TestTypeString_RoundTrip(t *testing.T) {
	s := event.TypeString(event.EntityMember, event.KindBanned)
	require.Equal(t, "member_banned", s)

	ev, err := event.Decode(event.Envelope{Type: s})
	require.NoError(t, err)
	require.Equal(t, event.EntityMember, ev.Entity)
	require.Equal(t, event.KindBanned, ev.Kind)
}
