package db

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

const templateColumns = `
	id, name, description, content_types, publish_strategy, priority, recurrence,
	recurrence_config, notify_subscribers, notify_before_minutes, created_by, created_at, updated_at`

func (s *pgStore) CreateTemplate(ctx context.Context, t *model.ScheduleTemplate) (int64, error) {
	const q = `
	INSERT INTO publish_schedule_templates
	  (name, description, content_types, publish_strategy, priority, recurrence,
	   recurrence_config, notify_subscribers, notify_before_minutes, created_by, created_at, updated_at)
	VALUES
	  ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
	RETURNING id;`

	var id int64
	err := s.db.GetContext(ctx, &id, q,
		t.Name,
		t.Description,
		t.ContentTypes,
		t.PublishStrategy,
		t.Priority,
		t.Recurrence,
		t.RecurrenceConfig,
		t.NotifySubscribers,
		t.NotifyBeforeMinutes,
		t.CreatedBy,
	)
	if err != nil {
		err = classify(err, "create template %q", t.Name)
		if errors.Is(err, errors.ErrConflict) {
			return 0, errors.WithHint(err, "template names must be unique")
		}
		log.Error().Err(err).Str("name", t.Name).Msg("CreateTemplate failed")
		return 0, err
	}
	t.ID = id
	return id, nil
}

func (s *pgStore) GetTemplate(ctx context.Context, id int64) (*model.ScheduleTemplate, error) {
	var t model.ScheduleTemplate
	q := `SELECT` + templateColumns + ` FROM publish_schedule_templates WHERE id = $1;`
	if err := s.db.GetContext(ctx, &t, q, id); err != nil {
		err = classify(err, "get template %d", id)
		if !errors.Is(err, errors.ErrNotFound) {
			log.Error().Err(err).Int64("template_id", id).Msg("GetTemplate failed")
		}
		return nil, err
	}
	return &t, nil
}

func (s *pgStore) ListTemplates(ctx context.Context) ([]model.ScheduleTemplate, error) {
	out := []model.ScheduleTemplate{}
	q := `SELECT` + templateColumns + ` FROM publish_schedule_templates ORDER BY name;`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("ListTemplates failed")
		return nil, classify(err, "list templates")
	}
	return out, nil
}

func (s *pgStore) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM publish_schedule_templates WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Int64("template_id", id).Msg("DeleteTemplate failed")
		return classify(err, "delete template %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "delete template %d", id)
	}
	if n == 0 {
		return errors.NotFoundf("template %d not found", id)
	}
	return nil
}
