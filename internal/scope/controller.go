package scope

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/crewdeck/crewdeck-go/internal/api"
	"github.com/crewdeck/crewdeck-go/internal/domain/task"
	"github.com/crewdeck/crewdeck-go/internal/event"
	"github.com/crewdeck/crewdeck-go/internal/live"
	"github.com/crewdeck/crewdeck-go/internal/syncer"
)

// Controller owns one open project scope: the canonical store, the live
// channel feeding it, and the executor local commits go through. Open it on
// view entry, Close it on exit. In-flight requests are not cancelled by
// Close; their responses are discarded when they land on a closed scope.
type Controller struct {
	client  *api.Client
	store   *Store
	channel *live.Channel
	exec    *syncer.Executor
	seq     task.Sequence
	logger  *slog.Logger

	closed atomic.Bool
	done   chan struct{}
}

// Open bootstraps the scope's canonical state and starts the live channel.
func Open(ctx context.Context, client *api.Client, projectID string, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}

	snap, err := client.GetSnapshot(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("opening scope %s: %w", projectID, err)
	}

	store := NewStore(projectID, logger)
	store.Load(snap)

	channel, err := live.Dial(ctx, client.WSURL(projectID), client.Token(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening scope %s: %w", projectID, err)
	}

	c := &Controller{
		client:  client,
		store:   store,
		channel: channel,
		exec:    syncer.New(client, logger),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Store exposes the scope's canonical collections.
func (c *Controller) Store() *Store {
	return c.store
}

// Sequence is the provisional-id source for drafts in this scope.
func (c *Controller) Sequence() *task.Sequence {
	return &c.seq
}

// Done is closed when the live channel has terminated.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Close tears the scope down. Idempotent.
func (c *Controller) Close() {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.channel.Close()
	}
}

// CommitDraft plans and executes the mutations that turn the draft's source
// snapshot into the draft, then refetches canonical state so the store
// reflects server truth rather than the optimistic draft. A no-op draft
// issues no request. On partial failure the refetch still runs and the
// aggregate error is returned alongside the per-op results.
func (c *Controller) CommitDraft(ctx context.Context, d task.Draft) (syncer.Result, error) {
	plan := task.Diff(d.Source(), d)
	if plan.Empty() {
		return syncer.Result{TaskID: d.TaskID}, nil
	}

	res := c.exec.Execute(ctx, c.store.ProjectID(), plan)

	if err := c.refetch(ctx); err != nil {
		c.logger.Warn("refetch after commit failed", "project_id", c.store.ProjectID(), "error", err)
	}
	return res, res.Err()
}

// DeleteTask removes a task; the store catches up via the fan-out event.
func (c *Controller) DeleteTask(ctx context.Context, taskID string) error {
	return c.client.DeleteTask(ctx, taskID)
}

// ArchiveTask moves a task to the archived view via its dedicated
// transition.
func (c *Controller) ArchiveTask(ctx context.Context, taskID string) error {
	return c.client.ArchiveTask(ctx, taskID)
}

// UnarchiveTask moves a task back to the active view.
func (c *Controller) UnarchiveTask(ctx context.Context, taskID string) error {
	return c.client.UnarchiveTask(ctx, taskID)
}

// LoadArchived fetches the archived-task collection into the store.
func (c *Controller) LoadArchived(ctx context.Context) error {
	tasks, err := c.client.ListArchivedTasks(ctx, c.store.ProjectID())
	if err != nil {
		return fmt.Errorf("loading archived tasks: %w", err)
	}
	if c.closed.Load() {
		return nil
	}
	c.store.LoadArchived(tasks)
	return nil
}

func (c *Controller) run() {
	defer close(c.done)
	for ev := range c.channel.Events() {
		c.dispatch(ev)
	}
	if err := c.channel.Err(); err != nil && !c.closed.Load() {
		c.logger.Warn("live channel terminated", "project_id", c.store.ProjectID(), "error", err)
	}
}

func (c *Controller) dispatch(ev event.Event) {
	effect, err := c.store.Apply(ev)
	if err != nil {
		c.logger.Warn("dropping unappliable event", "entity", ev.Entity, "kind", ev.Kind, "error", err)
		return
	}
	if effect == EffectRefetchMembership {
		if err := c.refetchMembership(context.Background()); err != nil {
			c.logger.Warn("membership refetch failed", "project_id", c.store.ProjectID(), "error", err)
		}
	}
}

// refetch replaces the scope's canonical state with a fresh snapshot,
// discarding the result if the scope closed while the request was in flight.
func (c *Controller) refetch(ctx context.Context) error {
	snap, err := c.client.GetSnapshot(ctx, c.store.ProjectID())
	if err != nil {
		return err
	}
	if c.closed.Load() {
		return nil
	}
	c.store.Load(snap)
	return nil
}

func (c *Controller) refetchMembership(ctx context.Context) error {
	proj, err := c.client.GetProject(ctx, c.store.ProjectID())
	if err != nil {
		return err
	}
	members, err := c.client.ListMembers(ctx, c.store.ProjectID())
	if err != nil {
		return err
	}
	if c.closed.Load() {
		return nil
	}
	c.store.ReplaceMembership(proj, members)
	return nil
}
