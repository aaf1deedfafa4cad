package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

type ScheduleResponse struct {
	ID                  int64                  `json:"id"`
	ContentType         string                 `json:"content_type"`
	ContentID           int64                  `json:"content_id"`
	ScheduledTime       string                 `json:"scheduled_time"`
	ActualPublishTime   *string                `json:"actual_publish_time"`
	Status              string                 `json:"status"`
	Priority            int                    `json:"priority"`
	Tier                string                 `json:"tier"`
	PublishStrategy     string                 `json:"publish_strategy"`
	Recurrence          string                 `json:"recurrence"`
	RecurrenceConfig    model.RecurrenceConfig `json:"recurrence_config"`
	NotifySubscribers   bool                   `json:"notify_subscribers"`
	NotifyBeforeMinutes int                    `json:"notify_before_minutes"`
	Title               string                 `json:"title"`
	Description         string                 `json:"description"`
	ErrorMessage        *string                `json:"error_message"`
	ParentID            *int64                 `json:"parent_id"`
	ExecutedBy          *int64                 `json:"executed_by"`
	CreatedBy           *int64                 `json:"created_by"`
	CreatedAt           string                 `json:"created_at"`
	UpdatedAt           string                 `json:"updated_at"`
}

type ListSchedulesResponse struct {
	Items []ScheduleResponse `json:"items"`
	Total int                `json:"total"`
	Skip  int                `json:"skip"`
	Limit int                `json:"limit"`
}

type TemplateResponse struct {
	ID                  int64                  `json:"id"`
	Name                string                 `json:"name"`
	Description         string                 `json:"description"`
	ContentTypes        []string               `json:"content_types"`
	PublishStrategy     string                 `json:"publish_strategy"`
	Priority            int                    `json:"priority"`
	Recurrence          string                 `json:"recurrence"`
	RecurrenceConfig    model.RecurrenceConfig `json:"recurrence_config"`
	NotifySubscribers   bool                   `json:"notify_subscribers"`
	NotifyBeforeMinutes int                    `json:"notify_before_minutes"`
	CreatedBy           *int64                 `json:"created_by"`
	CreatedAt           string                 `json:"created_at"`
	UpdatedAt           string                 `json:"updated_at"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func NewScheduleResponse(s model.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:                  s.ID,
		ContentType:         string(s.ContentType),
		ContentID:           s.ContentID,
		ScheduledTime:       s.ScheduledTime.UTC().Format(time.RFC3339),
		ActualPublishTime:   formatTime(s.ActualPublishTime),
		Status:              string(s.Status),
		Priority:            s.Priority,
		Tier:                s.Tier().String(),
		PublishStrategy:     string(s.PublishStrategy),
		Recurrence:          string(s.Recurrence),
		RecurrenceConfig:    s.RecurrenceConfig,
		NotifySubscribers:   s.NotifySubscribers,
		NotifyBeforeMinutes: s.NotifyBeforeMinutes,
		Title:               s.Title,
		Description:         s.Description,
		ErrorMessage:        s.ErrorMessage,
		ParentID:            s.ParentID,
		ExecutedBy:          s.ExecutedBy,
		CreatedBy:           s.CreatedBy,
		CreatedAt:           s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func NewScheduleResponses(list []model.Schedule) []ScheduleResponse {
	out := make([]ScheduleResponse, 0, len(list))
	for _, s := range list {
		out = append(out, NewScheduleResponse(s))
	}
	return out
}

func NewTemplateResponse(t model.ScheduleTemplate) TemplateResponse {
	types := []string(t.ContentTypes)
	if types == nil {
		types = []string{}
	}
	return TemplateResponse{
		ID:                  t.ID,
		Name:                t.Name,
		Description:         t.Description,
		ContentTypes:        types,
		PublishStrategy:     string(t.PublishStrategy),
		Priority:            t.Priority,
		Recurrence:          string(t.Recurrence),
		RecurrenceConfig:    t.RecurrenceConfig,
		NotifySubscribers:   t.NotifySubscribers,
		NotifyBeforeMinutes: t.NotifyBeforeMinutes,
		CreatedBy:           t.CreatedBy,
		CreatedAt:           t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
