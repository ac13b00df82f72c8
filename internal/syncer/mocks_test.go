package syncer_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/crewdeck/crewdeck-go/internal/domain/task"
)

// mockAPI is a testify mock of the executor's API surface.
type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) CreateTask(ctx context.Context, projectID string, patch task.ScalarPatch) (task.Task, error) {
	args := m.Called(ctx, projectID, patch)
	return args.Get(0).(task.Task), args.Error(1)
}

func (m *mockAPI) UpdateTaskScalars(ctx context.Context, taskID string, patch task.ScalarPatch) (task.Task, error) {
	args := m.Called(ctx, taskID, patch)
	return args.Get(0).(task.Task), args.Error(1)
}

func (m *mockAPI) CreateSubTask(ctx context.Context, taskID, text string, done bool) (task.SubTask, error) {
	args := m.Called(ctx, taskID, text, done)
	return args.Get(0).(task.SubTask), args.Error(1)
}

func (m *mockAPI) BulkCreateSubTasks(ctx context.Context, taskID string, subs []task.SubTask) ([]task.SubTask, error) {
	args := m.Called(ctx, taskID, subs)
	if out, ok := args.Get(0).([]task.SubTask); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) UpdateSubTask(ctx context.Context, subTaskID, text string, done bool) (task.SubTask, error) {
	args := m.Called(ctx, subTaskID, text, done)
	return args.Get(0).(task.SubTask), args.Error(1)
}

func (m *mockAPI) DeleteSubTask(ctx context.Context, subTaskID string) error {
	args := m.Called(ctx, subTaskID)
	return args.Error(0)
}

func (m *mockAPI) AddContributor(ctx context.Context, taskID, memberID string) error {
	args := m.Called(ctx, taskID, memberID)
	return args.Error(0)
}

func (m *mockAPI) RemoveContributor(ctx context.Context, taskID, memberID string) error {
	args := m.Called(ctx, taskID, memberID)
	return args.Error(0)
}

func (m *mockAPI) AddRequiredRole(ctx context.Context, taskID, roleID string) error {
	args := m.Called(ctx, taskID, roleID)
	return args.Error(0)
}

func (m *mockAPI) RemoveRequiredRole(ctx context.Context, taskID, roleID string) error {
	args := m.Called(ctx, taskID, roleID)
	return args.Error(0)
}
