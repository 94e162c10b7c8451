package schedule

import (
	"context"
	"fmt"

	"msgmon/internal/constants"
	"msgmon/internal/history"
	"msgmon/internal/logger"
	"msgmon/pkg/errors"
)

// Purger enforces per-task history retention.
type Purger struct {
	schedules *Monitor
	storage   history.Storage
	logger    logger.Logger
}

func NewPurger(schedules *Monitor, storage history.Storage, log logger.Logger) *Purger {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Purger{schedules: schedules, storage: storage, logger: log}
}

// PurgeTask keeps the keep newest runs of task. Runs finishing in the same
// millisecond as the oldest kept run survive too.
func (p *Purger) PurgeTask(ctx context.Context, task *Task, keep int) (int, error) {
	if keep < 0 {
		return 0, errors.ErrValidation.WithMessage("keep must not be negative, got %d", keep)
	}

	spec := history.NewSpecification().With(task.Tag()).Descending()
	count, err := p.storage.Count(ctx, spec)
	if err != nil {
		return 0, fmt.Errorf("failed to count history of %s: %w", task.Tag(), err)
	}
	if count <= keep {
		return 0, nil
	}

	if keep > 0 {
		oldestKept, err := p.storage.Filter(spec).Take(keep).Last(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to find retention boundary of %s: %w", task.Tag(), err)
		}
		if oldestKept == nil {
			return 0, nil
		}
		spec = spec.To(oldestKept.FinishedAt().Add(-constants.StorageTimeUnit))
	}

	purged, err := p.storage.Purge(ctx, spec)
	if err != nil {
		return 0, fmt.Errorf("failed to purge history of %s: %w", task.Tag(), err)
	}
	return purged, nil
}

// PurgeSchedule applies PurgeTask to every task of info.
func (p *Purger) PurgeSchedule(ctx context.Context, info *Info, keep int) (int, error) {
	total := 0
	for _, task := range info.Tasks() {
		purged, err := p.PurgeTask(ctx, task, keep)
		if err != nil {
			return total, err
		}
		total += purged
	}
	p.logger.InfowCtx(ctx, "Purged schedule history", "schedule", info.Name(), "keep", keep, "purged", total)
	return total, nil
}

// RemoveOrphans purges scheduled history whose task is no longer configured.
func (p *Purger) RemoveOrphans(ctx context.Context) (int, error) {
	spec := history.NewSpecification().With(ScheduleTag).Without(p.schedules.TaskTags()...)
	purged, err := p.storage.Purge(ctx, spec)
	if err != nil {
		return 0, fmt.Errorf("failed to remove orphaned schedule history: %w", err)
	}
	p.logger.InfowCtx(ctx, "Removed orphaned schedule history", "purged", purged)
	return purged, nil
}
