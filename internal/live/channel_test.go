package live_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck-go/internal/api"
	"github.com/crewdeck/crewdeck-go/internal/domain/task"
	"github.com/crewdeck/crewdeck-go/internal/event"
	"github.com/crewdeck/crewdeck-go/internal/live"
	"github.com/crewdeck/crewdeck-go/internal/testserver"
)

func dialTest(t *testing.T, srv *testserver.Server, projectID string) *live.Channel {
	t.Helper()
	client := api.NewClient(srv.URL(), "", nil)
	ch, err := live.Dial(context.Background(), client.WSURL(projectID), "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	// Give the hub a moment to register the subscription.
	time.Sleep(50 * time.Millisecond)
	return ch
}

func recvEvent(t *testing.T, ch *live.Channel) event.Event {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		require.True(t, ok, "channel closed before event arrived")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event.Event{}
	}
}

func TestChannel_DeliversTypedEvents(t *testing.T) {
	srv := testserver.New(t)
	p, _, _ := srv.SeedProject(t, "Apollo")
	ch := dialTest(t, srv, p.ID)

	srv.Broadcast(p.ID, "task_created", task.Task{ID: "t1", Title: "pushed"})

	ev := recvEvent(t, ch)
	require.Equal(t, event.EntityTask, ev.Entity)
	require.Equal(t, event.KindCreated, ev.Kind)
}

func TestChannel_DropsUnknownAndMalformed(t *testing.T) {
	srv := testserver.New(t)
	p, _, _ := srv.SeedProject(t, "Apollo")
	ch := dialTest(t, srv, p.ID)

	srv.Broadcast(p.ID, "task_exploded", map[string]string{"id": "x"})
	srv.Broadcast(p.ID, "", nil)
	srv.Broadcast(p.ID, "member_banned", map[string]string{"id": "m1"})

	// Only the recognized event comes through; the channel survived the
	// garbage before it.
	ev := recvEvent(t, ch)
	require.Equal(t, event.EntityMember, ev.Entity)
	require.Equal(t, event.KindBanned, ev.Kind)
}

func TestChannel_ScopeIsolation(t *testing.T) {
	srv := testserver.New(t)
	p1, _, _ := srv.SeedProject(t, "Apollo")
	p2, _, _ := srv.SeedProject(t, "Gemini")

	ch1 := dialTest(t, srv, p1.ID)
	ch2 := dialTest(t, srv, p2.ID)

	srv.Broadcast(p2.ID, "task_created", task.Task{ID: "t2"})

	ev := recvEvent(t, ch2)
	require.Equal(t, event.EntityTask, ev.Entity)

	select {
	case ev := <-ch1.Events():
		t.Fatalf("scope p1 received foreign event %v/%v", ev.Entity, ev.Kind)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestChannel_CloseTerminates(t *testing.T) {
	srv := testserver.New(t)
	p, _, _ := srv.SeedProject(t, "Apollo")
	ch := dialTest(t, srv, p.ID)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close()) // idempotent

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not terminate after close")
	}

	_, ok := <-ch.Events()
	require.False(t, ok)
}
