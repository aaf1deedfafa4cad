package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
	"github.com/Nixie-Tech-LLC/premiere/internal/recurrence"
)

// TemplateParams describes a new template. An empty ContentTypes list
// makes the template applicable to every content type.
type TemplateParams struct {
	Name                string
	Description         string
	ContentTypes        []model.ContentType
	PublishStrategy     model.PublishStrategy
	Priority            *int
	Recurrence          model.Recurrence
	RecurrenceConfig    model.RecurrenceConfig
	NotifySubscribers   bool
	NotifyBeforeMinutes int
}

func (s *Service) CreateTemplate(ctx context.Context, p TemplateParams, createdBy *int64) (*model.ScheduleTemplate, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, errors.Validationf("template name is required")
	}

	types := make(pq.StringArray, 0, len(p.ContentTypes))
	for _, ct := range p.ContentTypes {
		parsed, err := model.ParseContentType(string(ct))
		if err != nil {
			return nil, err
		}
		types = append(types, string(parsed))
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

	t := &model.ScheduleTemplate{
		Name:                name,
		Description:         p.Description,
		ContentTypes:        types,
		PublishStrategy:     strategy,
		Priority:            priority,
		Recurrence:          rec,
		RecurrenceConfig:    p.RecurrenceConfig,
		NotifySubscribers:   p.NotifySubscribers,
		NotifyBeforeMinutes: p.NotifyBeforeMinutes,
		CreatedBy:           createdBy,
	}
	if _, err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.log.Info().Int64("template_id", t.ID).Str("name", t.Name).Msg("template created")
	return s.store.GetTemplate(ctx, t.ID)
}

func (s *Service) GetTemplate(ctx context.Context, id int64) (*model.ScheduleTemplate, error) {
	return s.store.GetTemplate(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context) ([]model.ScheduleTemplate, error) {
	return s.store.ListTemplates(ctx)
}

func (s *Service) DeleteTemplate(ctx context.Context, id int64) error {
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("template_id", id).Msg("template deleted")
	return nil
}

// ApplyParams names the content and time a template is stamped onto.
type ApplyParams struct {
	ContentType   model.ContentType
	ContentID     int64
	ScheduledTime time.Time
	Title         string
	Description   string
	Force         bool
}

// ApplyTemplate creates a schedule from a template, with the same
// validation as CreateSchedule.
func (s *Service) ApplyTemplate(ctx context.Context, templateID int64, p ApplyParams, createdBy *int64) (*model.Schedule, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	ct, err := model.ParseContentType(string(p.ContentType))
	if err != nil {
		return nil, err
	}
	if !t.Supports(ct) {
		return nil, errors.Validationf("template %q does not apply to %s", t.Name, ct)
	}

	title := p.Title
	if title == "" {
		title = t.Name
	}
	description := p.Description
	if description == "" {
		description = t.Description
	}
	priority := t.Priority

	return s.CreateSchedule(ctx, CreateParams{
		ContentType:         ct,
		ContentID:           p.ContentID,
		ScheduledTime:       p.ScheduledTime,
		Priority:            &priority,
		PublishStrategy:     t.PublishStrategy,
		Recurrence:          t.Recurrence,
		RecurrenceConfig:    t.RecurrenceConfig,
		NotifySubscribers:   t.NotifySubscribers,
		NotifyBeforeMinutes: t.NotifyBeforeMinutes,
		Title:               title,
		Description:         description,
		Force:               p.Force,
	}, createdBy)
}
