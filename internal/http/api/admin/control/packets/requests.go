package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

type CreateScheduleRequest struct {
	ContentType         string                  `json:"content_type" binding:"required"`
	ContentID           int64                   `json:"content_id" binding:"required,gt=0"`
	ScheduledTime       time.Time               `json:"scheduled_time" binding:"required"`
	Priority            *int                    `json:"priority"`
	PublishStrategy     string                  `json:"publish_strategy"`
	Recurrence          string                  `json:"recurrence"`
	RecurrenceConfig    *model.RecurrenceConfig `json:"recurrence_config"`
	NotifySubscribers   bool                    `json:"notify_subscribers"`
	NotifyBeforeMinutes int                     `json:"notify_before_minutes"`
	Title               string                  `json:"title"`
	Description         string                  `json:"description"`
	Force               bool                    `json:"force"`
}

// UpdateScheduleRequest changes a PENDING schedule; absent fields stay as they are.
type UpdateScheduleRequest struct {
	ScheduledTime       *time.Time              `json:"scheduled_time"`
	Priority            *int                    `json:"priority"`
	PublishStrategy     *string                 `json:"publish_strategy"`
	Recurrence          *string                 `json:"recurrence"`
	RecurrenceConfig    *model.RecurrenceConfig `json:"recurrence_config"`
	NotifySubscribers   *bool                   `json:"notify_subscribers"`
	NotifyBeforeMinutes *int                    `json:"notify_before_minutes"`
	Title               *string                 `json:"title"`
	Description         *string                 `json:"description"`
	Force               bool                    `json:"force"`
}

// ListSchedulesQuery is bound from the query string. Status takes a comma
// separated list.
type ListSchedulesQuery struct {
	Status      string `form:"status"`
	ContentType string `form:"content_type"`
	ContentID   int64  `form:"content_id"`
	Skip        int    `form:"skip"`
	Limit       int    `form:"limit"`
}

type DueSchedulesQuery struct {
	Limit int `form:"limit"`
}

type CreateTemplateRequest struct {
	Name                string                  `json:"name" binding:"required"`
	Description         string                  `json:"description"`
	ContentTypes        []string                `json:"content_types"`
	PublishStrategy     string                  `json:"publish_strategy"`
	Priority            *int                    `json:"priority"`
	Recurrence          string                  `json:"recurrence"`
	RecurrenceConfig    *model.RecurrenceConfig `json:"recurrence_config"`
	NotifySubscribers   bool                    `json:"notify_subscribers"`
	NotifyBeforeMinutes int                     `json:"notify_before_minutes"`
}

type ApplyTemplateRequest struct {
	ContentType   string    `json:"content_type" binding:"required"`
	ContentID     int64     `json:"content_id" binding:"required,gt=0"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Force         bool      `json:"force"`
}
