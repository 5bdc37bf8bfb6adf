package file

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

const scheduleEntity = "schedules"

// ScheduleRepository stores cron schedules as JSON files.
type ScheduleRepository struct {
	store *Persistence
}

func (r *ScheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.writeJSON(scheduleEntity, schedule.ID, schedule)
}

func (r *ScheduleRepository) GetByID(_ context.Context, id string) (*models.Schedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var schedule models.Schedule
	if err := r.store.readJSON(scheduleEntity, id, &schedule, persistence.ErrScheduleNotFound); err != nil {
		return nil, err
	}

	return &schedule, nil
}

func (r *ScheduleRepository) GetByWorkflowID(_ context.Context, workflowID string) ([]*models.Schedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.listLocked(func(s *models.Schedule) bool {
		return s.WorkflowID == workflowID
	})
}

func (r *ScheduleRepository) Due(_ context.Context, now time.Time, limit int) ([]*models.Schedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	schedules, err := r.listLocked(func(s *models.Schedule) bool {
		return s.IsDue(now)
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(schedules) > limit {
		schedules = schedules[:limit]
	}

	return schedules, nil
}

func (r *ScheduleRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.removeJSON(scheduleEntity, id, persistence.ErrScheduleNotFound)
}

func (r *ScheduleRepository) listLocked(match func(*models.Schedule) bool) ([]*models.Schedule, error) {
	var schedules []*models.Schedule

	err := r.store.listJSON(scheduleEntity, func(data []byte) error {
		var schedule models.Schedule
		if err := json.Unmarshal(data, &schedule); err != nil {
			return err
		}

		if match(&schedule) {
			schedules = append(schedules, &schedule)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].NextRunAt.Before(schedules[j].NextRunAt)
	})

	return schedules, nil
}
