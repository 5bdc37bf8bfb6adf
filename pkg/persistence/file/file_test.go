package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/persistence/file"
)

func newTestStore(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

func saveExecution(t *testing.T, store *file.Persistence, execution *models.WorkflowExecution) {
	t.Helper()

	require.NoError(t, store.Executions().Save(context.Background(), execution))
}

func TestExecutionRepository_SaveAndGetByID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	execution := &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: "wf-1",
		Owner:      "team-a",
		Status:     models.ExecutionStatusRunning,
		Version:    1,
		StartedAt:  time.Now().UTC(),
	}
	saveExecution(t, store, execution)

	loaded, err := store.Executions().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.WorkflowID, loaded.WorkflowID)
	assert.Equal(t, execution.Owner, loaded.Owner)
	assert.Equal(t, 1, loaded.Version)

	_, err = store.Executions().GetByID(ctx, "missing")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_TransitionStatus(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	execution := &models.WorkflowExecution{
		ID:        uuid.New().String(),
		Status:    models.ExecutionStatusRunning,
		Version:   1,
		StartedAt: time.Now().UTC(),
	}
	saveExecution(t, store, execution)

	err := store.Executions().TransitionStatus(ctx, execution.ID,
		models.ExecutionStatusRunning, models.ExecutionStatusCompleted, 1)
	require.NoError(t, err)

	loaded, err := store.Executions().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, 2, loaded.Version)
	require.NotNil(t, loaded.CompletedAt)
}

func TestExecutionRepository_TransitionStatusConflicts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	execution := &models.WorkflowExecution{
		ID:        uuid.New().String(),
		Status:    models.ExecutionStatusRunning,
		Version:   3,
		StartedAt: time.Now().UTC(),
	}
	saveExecution(t, store, execution)

	// Stale version loses the race.
	err := store.Executions().TransitionStatus(ctx, execution.ID,
		models.ExecutionStatusRunning, models.ExecutionStatusPaused, 2)
	assert.True(t, persistence.IsExecutionConflict(err))

	// Wrong current status is a conflict too.
	err = store.Executions().TransitionStatus(ctx, execution.ID,
		models.ExecutionStatusPaused, models.ExecutionStatusRunning, 3)
	assert.True(t, persistence.IsExecutionConflict(err))

	loaded, err := store.Executions().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, loaded.Status)
	assert.Equal(t, 3, loaded.Version)
}

func TestExecutionRepository_GetByIdempotencyKey(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		Status:      models.ExecutionStatusCompleted,
		TriggerData: models.TriggerData{IdempotencyKey: "key-1"},
		StartedAt:   now.Add(-48 * time.Hour),
	}
	saveExecution(t, store, stale)

	recent := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		Status:      models.ExecutionStatusRunning,
		TriggerData: models.TriggerData{IdempotencyKey: "key-1"},
		StartedAt:   now.Add(-time.Minute),
	}
	saveExecution(t, store, recent)

	found, err := store.Executions().GetByIdempotencyKey(ctx, "key-1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, recent.ID, found.ID)

	// Outside the window only the stale record matches, and a window that
	// excludes everything reports not found.
	found, err = store.Executions().GetByIdempotencyKey(ctx, "key-1", now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, recent.ID, found.ID)

	_, err = store.Executions().GetByIdempotencyKey(ctx, "key-1", now.Add(time.Hour))
	assert.True(t, persistence.IsExecutionNotFound(err))

	_, err = store.Executions().GetByIdempotencyKey(ctx, "other-key", now.Add(-24*time.Hour))
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_RunningCountByOwner(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, e := range []*models.WorkflowExecution{
		{ID: uuid.New().String(), Owner: "team-a", Status: models.ExecutionStatusRunning, StartedAt: now},
		{ID: uuid.New().String(), Owner: "team-a", Status: models.ExecutionStatusRunning, StartedAt: now},
		{ID: uuid.New().String(), Owner: "team-a", Status: models.ExecutionStatusCompleted, StartedAt: now},
		{ID: uuid.New().String(), Owner: "team-b", Status: models.ExecutionStatusRunning, StartedAt: now},
	} {
		saveExecution(t, store, e)
	}

	count, err := store.Executions().RunningCountByOwner(ctx, "team-a")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.Executions().RunningCountByOwner(ctx, "team-c")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSignalRepository_PendingAndMarkProcessed(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := &models.Signal{
		ID:          uuid.New().String(),
		ExecutionID: "exec-1",
		Type:        "approval",
		ReceivedAt:  now.Add(-2 * time.Minute),
	}
	second := &models.Signal{
		ID:          uuid.New().String(),
		ExecutionID: "exec-1",
		Type:        "cancel",
		ReceivedAt:  now.Add(-time.Minute),
	}
	other := &models.Signal{
		ID:          uuid.New().String(),
		ExecutionID: "exec-2",
		Type:        "approval",
		ReceivedAt:  now,
	}

	for _, s := range []*models.Signal{second, first, other} {
		require.NoError(t, store.Signals().Append(ctx, s))
	}

	pending, err := store.Signals().Pending(ctx, "exec-1", "")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "pending signals are ordered by receipt time")
	assert.Equal(t, second.ID, pending[1].ID)

	pending, err = store.Signals().Pending(ctx, "exec-1", "cancel")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	require.NoError(t, store.Signals().MarkProcessed(ctx, first.ID))
	// Marking twice is a no-op.
	require.NoError(t, store.Signals().MarkProcessed(ctx, first.ID))

	pending, err = store.Signals().Pending(ctx, "exec-1", "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	err = store.Signals().MarkProcessed(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrSignalNotFound)
}

func TestScheduleRepository_Due(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due, err := models.NewSchedule(uuid.New().String(), "wf-1", "0 * * * *")
	require.NoError(t, err)
	due.NextRunAt = now.Add(-time.Minute)
	require.NoError(t, store.Schedules().Save(ctx, due))

	notYet, err := models.NewSchedule(uuid.New().String(), "wf-2", "0 * * * *")
	require.NoError(t, err)
	require.NoError(t, store.Schedules().Save(ctx, notYet))

	inactive, err := models.NewSchedule(uuid.New().String(), "wf-3", "0 * * * *")
	require.NoError(t, err)
	inactive.NextRunAt = now.Add(-time.Hour)
	inactive.Active = false
	require.NoError(t, store.Schedules().Save(ctx, inactive))

	schedules, err := store.Schedules().Due(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, schedules, 1, "inactive and future schedules are not due")
	assert.Equal(t, due.ID, schedules[0].ID)
}

func TestScheduleRepository_DueLimit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		schedule, err := models.NewSchedule(uuid.New().String(), "wf-1", "* * * * *")
		require.NoError(t, err)
		schedule.NextRunAt = now.Add(-time.Duration(i+1) * time.Minute)
		require.NoError(t, store.Schedules().Save(ctx, schedule))
	}

	schedules, err := store.Schedules().Due(ctx, now, 3)
	require.NoError(t, err)
	assert.Len(t, schedules, 3)
}

func TestScheduleRepository_Delete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	schedule, err := models.NewSchedule(uuid.New().String(), "wf-1", "0 * * * *")
	require.NoError(t, err)
	require.NoError(t, store.Schedules().Save(ctx, schedule))

	require.NoError(t, store.Schedules().Delete(ctx, schedule.ID))

	_, err = store.Schedules().GetByID(ctx, schedule.ID)
	assert.ErrorIs(t, err, persistence.ErrScheduleNotFound)

	err = store.Schedules().Delete(ctx, schedule.ID)
	assert.ErrorIs(t, err, persistence.ErrScheduleNotFound)
}
