package model

import (
	"time"

	"github.com/lib/pq"
)

// ScheduleTemplate is a named bundle of schedule settings used to stamp out
// new schedules without repeating every field.
type ScheduleTemplate struct {
	ID                  int64            `db:"id" json:"id"`
	Name                string           `db:"name" json:"name"`
	Description         string           `db:"description" json:"description"`
	ContentTypes        pq.StringArray   `db:"content_types" json:"content_types"`
	PublishStrategy     PublishStrategy  `db:"publish_strategy" json:"publish_strategy"`
	Priority            int              `db:"priority" json:"priority"`
	Recurrence          Recurrence       `db:"recurrence" json:"recurrence"`
	RecurrenceConfig    RecurrenceConfig `db:"recurrence_config" json:"recurrence_config"`
	NotifySubscribers   bool             `db:"notify_subscribers" json:"notify_subscribers"`
	NotifyBeforeMinutes int              `db:"notify_before_minutes" json:"notify_before_minutes"`
	CreatedBy           *int64           `db:"created_by" json:"created_by"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// Supports reports whether the template may be applied to content type ct.
// A template without content types applies to all of them.
func (t ScheduleTemplate) Supports(ct ContentType) bool {
	if len(t.ContentTypes) == 0 {
		return true
	}
	for _, c := range t.ContentTypes {
		if ContentType(c) == ct {
			return true
		}
	}
	return false
}
