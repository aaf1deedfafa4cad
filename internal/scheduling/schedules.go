package scheduling

import (
	"context"
	"time"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
	"github.com/Nixie-Tech-LLC/premiere/internal/recurrence"
)

// CreateParams describes a new schedule. Force skips the content existence
// and future time checks for administrative recovery.
type CreateParams struct {
	ContentType         model.ContentType
	ContentID           int64
	ScheduledTime       time.Time
	Priority            *int
	PublishStrategy     model.PublishStrategy
	Recurrence          model.Recurrence
	RecurrenceConfig    model.RecurrenceConfig
	NotifySubscribers   bool
	NotifyBeforeMinutes int
	Title               string
	Description         string
	Force               bool
}

func (s *Service) CreateSchedule(ctx context.Context, p CreateParams, createdBy *int64) (*model.Schedule, error) {
	ct, err := model.ParseContentType(string(p.ContentType))
	if err != nil {
		return nil, err
	}
	p.ContentType = ct
	if p.ContentID <= 0 {
		return nil, errors.Validationf("content_id must be positive")
	}
	if p.ScheduledTime.IsZero() {
		return nil, errors.Validationf("scheduled_time is required")
	}

	priority := model.DefaultPriority
	if p.Priority != nil {
		priority = *p.Priority
	}
	if err := validatePriority(priority); err != nil {
		return nil, err
	}
	strategy, err := model.ParsePublishStrategy(string(p.PublishStrategy))
	if err != nil {
		return nil, err
	}
	rec, err := model.ParseRecurrence(string(p.Recurrence))
	if err != nil {
		return nil, err
	}
	if err := recurrence.Validate(rec, p.RecurrenceConfig); err != nil {
		return nil, err
	}
	if err := validateNotice(p.NotifyBeforeMinutes); err != nil {
		return nil, err
	}

	if !p.Force {
		if p.ScheduledTime.Before(s.now()) {
			return nil, errors.WithHint(
				errors.Validationf("scheduled_time %s is in the past", p.ScheduledTime.Format(time.RFC3339)),
				"pass force to schedule in the past")
		}
		exists, err := s.content.Exists(ctx, p.ContentType, p.ContentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errors.Validationf("%s %d does not exist", p.ContentType, p.ContentID)
		}
	}

	sc := &model.Schedule{
		ContentType:         p.ContentType,
		ContentID:           p.ContentID,
		ScheduledTime:       p.ScheduledTime,
		Status:              model.StatusPending,
		Priority:            priority,
		PublishStrategy:     strategy,
		Recurrence:          rec,
		RecurrenceConfig:    p.RecurrenceConfig,
		NotifySubscribers:   p.NotifySubscribers,
		NotifyBeforeMinutes: p.NotifyBeforeMinutes,
		Title:               p.Title,
		Description:         p.Description,
		CreatedBy:           createdBy,
	}
	if _, err := s.store.CreateSchedule(ctx, sc); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("schedule_id", sc.ID).
		Str("content_type", string(sc.ContentType)).
		Int64("content_id", sc.ContentID).
		Time("scheduled_time", sc.ScheduledTime).
		Bool("forced", p.Force).
		Msg("schedule created")
	return s.store.GetSchedule(ctx, sc.ID)
}

// UpdateParams changes a PENDING schedule; nil fields stay unchanged.
type UpdateParams struct {
	model.ScheduleUpdate
	Force bool
}

func (s *Service) UpdateSchedule(ctx context.Context, id int64, p UpdateParams) (*model.Schedule, error) {
	current, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != model.StatusPending {
		return nil, errors.Conflictf("schedule %d is %s and can no longer be edited", id, current.Status)
	}

	u := p.ScheduleUpdate
	if u.Priority != nil {
		if err := validatePriority(*u.Priority); err != nil {
			return nil, err
		}
	}
	if u.PublishStrategy != nil {
		strategy, err := model.ParsePublishStrategy(string(*u.PublishStrategy))
		if err != nil {
			return nil, err
		}
		u.PublishStrategy = &strategy
	}
	if u.NotifyBeforeMinutes != nil {
		if err := validateNotice(*u.NotifyBeforeMinutes); err != nil {
			return nil, err
		}
	}
	if u.ScheduledTime != nil && !p.Force && u.ScheduledTime.Before(s.now()) {
		return nil, errors.Validationf("scheduled_time %s is in the past", u.ScheduledTime.Format(time.RFC3339))
	}
	if u.Recurrence != nil || u.RecurrenceConfig != nil {
		rec, cfg := current.Recurrence, current.RecurrenceConfig
		if u.Recurrence != nil {
			parsed, err := model.ParseRecurrence(string(*u.Recurrence))
			if err != nil {
				return nil, err
			}
			rec = parsed
			u.Recurrence = &parsed
		}
		if u.RecurrenceConfig != nil {
			cfg = *u.RecurrenceConfig
		}
		if err := recurrence.Validate(rec, cfg); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateSchedule(ctx, id, u); err != nil {
		return nil, err
	}
	s.log.Info().Int64("schedule_id", id).Msg("schedule updated")
	return s.store.GetSchedule(ctx, id)
}

// CancelSchedule moves a PENDING schedule to CANCELED. Once a sweep has
// claimed the row the cancel is refused with ErrConflict.
func (s *Service) CancelSchedule(ctx context.Context, id int64) (*model.Schedule, error) {
	sc, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if sc.Status != model.StatusPending {
		return nil, errors.Conflictf("schedule %d is %s and can no longer be canceled", id, sc.Status)
	}

	won, err := s.store.TransitionSchedule(ctx, id, model.StatusPending, model.StatusCanceled, model.Transition{At: s.now()})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, errors.WithHint(
			errors.Conflictf("schedule %d was claimed before it could be canceled", id),
			"a claimed schedule runs to completion")
	}

	s.log.Info().Int64("schedule_id", id).Msg("schedule canceled")
	return s.store.GetSchedule(ctx, id)
}

func (s *Service) GetSchedule(ctx context.Context, id int64) (*model.Schedule, error) {
	return s.store.GetSchedule(ctx, id)
}

// ListSchedules pages through schedules, newest scheduled_time first.
func (s *Service) ListSchedules(ctx context.Context, f model.ScheduleFilter, skip, limit int) ([]model.Schedule, int, error) {
	if skip < 0 {
		return nil, 0, errors.Validationf("skip must not be negative")
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.store.ListSchedules(ctx, f, skip, limit)
}

// GetDueSchedules returns PENDING schedules whose time has come, in
// execution order.
func (s *Service) GetDueSchedules(ctx context.Context, limit int) ([]model.Schedule, error) {
	return s.store.DueSchedules(ctx, s.now(), limit)
}

// GetStatistics aggregates the dashboard counters. Day and week boundaries
// are UTC; weeks start on Monday.
func (s *Service) GetStatistics(ctx context.Context) (model.Statistics, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	in24h := now.Add(24 * time.Hour)

	pending := []model.Status{model.StatusPending}
	published := []model.Status{model.StatusPublished}

	var st model.Statistics
	counters := []struct {
		dst *int
		f   model.ScheduleFilter
	}{
		{&st.PendingCount, model.ScheduleFilter{Statuses: pending}},
		{&st.PublishedToday, model.ScheduleFilter{Statuses: published, PublishedFrom: &today}},
		{&st.PublishedThisWeek, model.ScheduleFilter{Statuses: published, PublishedFrom: &weekStart}},
		{&st.FailedCount, model.ScheduleFilter{Statuses: []model.Status{model.StatusFailed}}},
		{&st.OverdueCount, model.ScheduleFilter{Statuses: pending, ScheduledTo: &now}},
		{&st.Upcoming24h, model.ScheduleFilter{Statuses: pending, ScheduledFrom: &now, ScheduledTo: &in24h}},
	}

	for _, c := range counters {
		n, err := s.store.CountSchedules(ctx, c.f)
		if err != nil {
			return model.Statistics{}, errors.Wrap(err, "compute statistics")
		}
		*c.dst = n
	}
	return st, nil
}

func validatePriority(p int) error {
	if p < model.MinPriority || p > model.MaxPriority {
		return errors.Validationf("priority must be between %d and %d, got %d", model.MinPriority, model.MaxPriority, p)
	}
	return nil
}

func validateNotice(minutes int) error {
	if minutes < 0 {
		return errors.Validationf("notify_before_minutes must not be negative, got %d", minutes)
	}
	return nil
}
