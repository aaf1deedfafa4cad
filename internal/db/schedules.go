package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

const scheduleColumns = `
	id, content_type, content_id, scheduled_time, actual_publish_time, status, priority,
	publish_strategy, recurrence, recurrence_config, notify_subscribers, notify_before_minutes,
	notice_sent_at, title, description, error_message, parent_id, claimed_at, executed_by,
	created_by, created_at, updated_at`

func (s *pgStore) CreateSchedule(ctx context.Context, sc *model.Schedule) (int64, error) {
	const q = `
	INSERT INTO publish_schedules
	  (content_type, content_id, scheduled_time, status, priority, publish_strategy,
	   recurrence, recurrence_config, notify_subscribers, notify_before_minutes,
	   title, description, parent_id, created_by, created_at, updated_at)
	VALUES
	  ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
	RETURNING id;`

	var id int64
	err := s.db.GetContext(ctx, &id, q,
		sc.ContentType,
		sc.ContentID,
		sc.ScheduledTime.UTC(),
		sc.Status,
		sc.Priority,
		sc.PublishStrategy,
		sc.Recurrence,
		sc.RecurrenceConfig,
		sc.NotifySubscribers,
		sc.NotifyBeforeMinutes,
		sc.Title,
		sc.Description,
		sc.ParentID,
		sc.CreatedBy,
	)
	if err != nil {
		log.Error().Err(err).
			Str("content_type", string(sc.ContentType)).
			Int64("content_id", sc.ContentID).
			Msg("CreateSchedule failed")
		return 0, classify(err, "create schedule for %s %d", sc.ContentType, sc.ContentID)
	}
	sc.ID = id
	return id, nil
}

func (s *pgStore) GetSchedule(ctx context.Context, id int64) (*model.Schedule, error) {
	var sc model.Schedule
	q := `SELECT` + scheduleColumns + ` FROM publish_schedules WHERE id = $1;`
	if err := s.db.GetContext(ctx, &sc, q, id); err != nil {
		err = classify(err, "get schedule %d", id)
		if !errors.Is(err, errors.ErrNotFound) {
			log.Error().Err(err).Int64("schedule_id", id).Msg("GetSchedule failed")
		}
		return nil, err
	}
	return &sc, nil
}

// UpdateSchedule applies u only while the row is still PENDING.
func (s *pgStore) UpdateSchedule(ctx context.Context, id int64, u model.ScheduleUpdate) error {
	if u.Empty() {
		return nil
	}

	sets := make([]string, 0, 10)
	args := []any{id}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.ScheduledTime != nil {
		set("scheduled_time", u.ScheduledTime.UTC())
		sets = append(sets, "notice_sent_at = NULL")
	}
	if u.Priority != nil {
		set("priority", *u.Priority)
	}
	if u.PublishStrategy != nil {
		set("publish_strategy", *u.PublishStrategy)
	}
	if u.Recurrence != nil {
		set("recurrence", *u.Recurrence)
	}
	if u.RecurrenceConfig != nil {
		set("recurrence_config", *u.RecurrenceConfig)
	}
	if u.NotifySubscribers != nil {
		set("notify_subscribers", *u.NotifySubscribers)
	}
	if u.NotifyBeforeMinutes != nil {
		set("notify_before_minutes", *u.NotifyBeforeMinutes)
	}
	if u.Title != nil {
		set("title", *u.Title)
	}
	if u.Description != nil {
		set("description", *u.Description)
	}
	sets = append(sets, "updated_at = now()")

	q := fmt.Sprintf(`UPDATE publish_schedules SET %s WHERE id = $1 AND status = 'PENDING';`,
		strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		log.Error().Err(err).Int64("schedule_id", id).Msg("UpdateSchedule failed")
		return classify(err, "update schedule %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "update schedule %d", id)
	}
	if n == 1 {
		return nil
	}

	current, err := s.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	return errors.Conflictf("schedule %d is %s and can no longer be edited", id, current.Status)
}

func (s *pgStore) ListSchedules(ctx context.Context, f model.ScheduleFilter, skip, limit int) ([]model.Schedule, int, error) {
	where, args := scheduleWhere(f)

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM publish_schedules`+where+`;`, args...); err != nil {
		log.Error().Err(err).Msg("ListSchedules count failed")
		return nil, 0, classify(err, "count schedules")
	}

	args = append(args, limit, skip)
	q := fmt.Sprintf(`SELECT%s FROM publish_schedules%s ORDER BY scheduled_time DESC, id DESC LIMIT $%d OFFSET $%d;`,
		scheduleColumns, where, len(args)-1, len(args))

	out := []model.Schedule{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		log.Error().Err(err).Msg("ListSchedules failed")
		return nil, 0, classify(err, "list schedules")
	}
	return out, total, nil
}

func (s *pgStore) CountSchedules(ctx context.Context, f model.ScheduleFilter) (int, error) {
	where, args := scheduleWhere(f)
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM publish_schedules`+where+`;`, args...); err != nil {
		log.Error().Err(err).Msg("CountSchedules failed")
		return 0, classify(err, "count schedules")
	}
	return n, nil
}

// DueSchedules returns PENDING rows whose time has come, in execution order.
func (s *pgStore) DueSchedules(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error) {
	q := `SELECT` + scheduleColumns + `
	  FROM publish_schedules
	 WHERE status = 'PENDING' AND scheduled_time <= $1
	 ORDER BY priority DESC, scheduled_time ASC, id ASC
	 LIMIT $2;`

	out := []model.Schedule{}
	if err := s.db.SelectContext(ctx, &out, q, now.UTC(), limit); err != nil {
		log.Error().Err(err).Time("now", now).Msg("DueSchedules failed")
		return nil, classify(err, "list due schedules")
	}
	return out, nil
}

func (s *pgStore) TransitionSchedule(ctx context.Context, id int64, from, to model.Status, t model.Transition) (bool, error) {
	const q = `
	UPDATE publish_schedules
	   SET status = $3::text,
	       claimed_at = CASE WHEN $3::text = 'IN_PROGRESS' THEN $4 ELSE claimed_at END,
	       actual_publish_time = CASE WHEN $3::text = 'PUBLISHED' THEN $4 ELSE actual_publish_time END,
	       error_message = CASE WHEN $3::text = 'PUBLISHED' THEN NULL ELSE COALESCE($5, error_message) END,
	       executed_by = COALESCE($6, executed_by),
	       updated_at = now()
	 WHERE id = $1 AND status = $2;`

	res, err := s.db.ExecContext(ctx, q, id, from, to, t.At.UTC(), t.ErrorMessage, t.ExecutedBy)
	if err != nil {
		log.Error().Err(err).
			Int64("schedule_id", id).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("TransitionSchedule failed")
		return false, classify(err, "transition schedule %d %s->%s", id, from, to)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "transition schedule %d", id)
	}
	return n == 1, nil
}

func (s *pgStore) ExpireSchedules(ctx context.Context, scheduledBefore time.Time) (int64, error) {
	const q = `
	UPDATE publish_schedules
	   SET status = 'EXPIRED', error_message = 'not executed before expiry', updated_at = now()
	 WHERE status = 'PENDING' AND scheduled_time < $1;`

	res, err := s.db.ExecContext(ctx, q, scheduledBefore.UTC())
	if err != nil {
		log.Error().Err(err).Msg("ExpireSchedules failed")
		return 0, classify(err, "expire schedules")
	}
	return res.RowsAffected()
}

func (s *pgStore) ReapStaleClaims(ctx context.Context, claimedBefore time.Time, message string) (int64, error) {
	const q = `
	UPDATE publish_schedules
	   SET status = 'FAILED', error_message = $2, updated_at = now()
	 WHERE status = 'IN_PROGRESS' AND claimed_at < $1;`

	res, err := s.db.ExecContext(ctx, q, claimedBefore.UTC(), message)
	if err != nil {
		log.Error().Err(err).Msg("ReapStaleClaims failed")
		return 0, classify(err, "reap stale claims")
	}
	return res.RowsAffected()
}

// UpcomingNotices returns PENDING rows inside their lead-time window whose
// notice has not been sent yet.
func (s *pgStore) UpcomingNotices(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error) {
	q := `SELECT` + scheduleColumns + `
	  FROM publish_schedules
	 WHERE status = 'PENDING'
	   AND notify_subscribers
	   AND notify_before_minutes > 0
	   AND notice_sent_at IS NULL
	   AND scheduled_time > $1
	   AND scheduled_time - make_interval(mins => notify_before_minutes) <= $1
	 ORDER BY scheduled_time ASC, id ASC
	 LIMIT $2;`

	out := []model.Schedule{}
	if err := s.db.SelectContext(ctx, &out, q, now.UTC(), limit); err != nil {
		log.Error().Err(err).Msg("UpcomingNotices failed")
		return nil, classify(err, "list upcoming notices")
	}
	return out, nil
}

func (s *pgStore) MarkNoticeSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	const q = `
	UPDATE publish_schedules
	   SET notice_sent_at = $2, updated_at = now()
	 WHERE id = $1 AND status = 'PENDING' AND notice_sent_at IS NULL;`

	res, err := s.db.ExecContext(ctx, q, id, at.UTC())
	if err != nil {
		log.Error().Err(err).Int64("schedule_id", id).Msg("MarkNoticeSent failed")
		return false, classify(err, "mark notice sent for schedule %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "mark notice sent for schedule %d", id)
	}
	return n == 1, nil
}

// scheduleWhere renders f as a WHERE clause with positional arguments.
func scheduleWhere(f model.ScheduleFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	if f.ContentType != "" {
		add("content_type = $%d", f.ContentType)
	}
	if f.ContentID != 0 {
		add("content_id = $%d", f.ContentID)
	}
	if f.ScheduledFrom != nil {
		add("scheduled_time >= $%d", f.ScheduledFrom.UTC())
	}
	if f.ScheduledTo != nil {
		add("scheduled_time < $%d", f.ScheduledTo.UTC())
	}
	if f.PublishedFrom != nil {
		add("actual_publish_time >= $%d", f.PublishedFrom.UTC())
	}
	if f.PublishedTo != nil {
		add("actual_publish_time < $%d", f.PublishedTo.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
