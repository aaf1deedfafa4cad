package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
)

const (
	DefaultPriority = 50
	MinPriority     = 0
	MaxPriority     = 100
)

// Schedule is one future publish action for one content item.
type Schedule struct {
	ID                  int64            `db:"id" json:"id"`
	ContentType         ContentType      `db:"content_type" json:"content_type"`
	ContentID           int64            `db:"content_id" json:"content_id"`
	ScheduledTime       time.Time        `db:"scheduled_time" json:"scheduled_time"`
	ActualPublishTime   *time.Time       `db:"actual_publish_time" json:"actual_publish_time"`
	Status              Status           `db:"status" json:"status"`
	Priority            int              `db:"priority" json:"priority"`
	PublishStrategy     PublishStrategy  `db:"publish_strategy" json:"publish_strategy"`
	Recurrence          Recurrence       `db:"recurrence" json:"recurrence"`
	RecurrenceConfig    RecurrenceConfig `db:"recurrence_config" json:"recurrence_config"`
	NotifySubscribers   bool             `db:"notify_subscribers" json:"notify_subscribers"`
	NotifyBeforeMinutes int              `db:"notify_before_minutes" json:"notify_before_minutes"`
	NoticeSentAt        *time.Time       `db:"notice_sent_at" json:"notice_sent_at"`
	Title               string           `db:"title" json:"title"`
	Description         string           `db:"description" json:"description"`
	ErrorMessage        *string          `db:"error_message" json:"error_message"`
	ParentID            *int64           `db:"parent_id" json:"parent_id"`
	ClaimedAt           *time.Time       `db:"claimed_at" json:"claimed_at"`
	ExecutedBy          *int64           `db:"executed_by" json:"executed_by"`
	CreatedBy           *int64           `db:"created_by" json:"created_by"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// PriorityTier buckets a priority for sweep ordering.
type PriorityTier int

const (
	TierHigh PriorityTier = iota
	TierNormal
	TierLow
)

func (t PriorityTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierNormal:
		return "normal"
	default:
		return "low"
	}
}

// Tier returns high for priority >= 80, normal for 50-79 and low below 50.
func (s Schedule) Tier() PriorityTier {
	switch {
	case s.Priority >= 80:
		return TierHigh
	case s.Priority >= 50:
		return TierNormal
	default:
		return TierLow
	}
}

// NextOccurrence copies the configuration of s into a fresh PENDING row
// scheduled at next. Time, status and execution fields are reset.
func (s Schedule) NextOccurrence(next time.Time) Schedule {
	parent := s.ID
	return Schedule{
		ContentType:         s.ContentType,
		ContentID:           s.ContentID,
		ScheduledTime:       next,
		Status:              StatusPending,
		Priority:            s.Priority,
		PublishStrategy:     s.PublishStrategy,
		Recurrence:          s.Recurrence,
		RecurrenceConfig:    s.RecurrenceConfig,
		NotifySubscribers:   s.NotifySubscribers,
		NotifyBeforeMinutes: s.NotifyBeforeMinutes,
		Title:               s.Title,
		Description:         s.Description,
		ParentID:            &parent,
		CreatedBy:           s.CreatedBy,
	}
}

// RecurrenceConfig tunes the recurrence rule. All fields are optional; a nil
// hour or minute keeps the previous occurrence's wall clock value.
type RecurrenceConfig struct {
	Hour       *int       `json:"hour,omitempty"`
	Minute     *int       `json:"minute,omitempty"`
	DayOfWeek  *int       `json:"day_of_week,omitempty"`  // 0 = Sunday
	DayOfMonth *int       `json:"day_of_month,omitempty"` // 1-31, clamped to month length
	Cron       string     `json:"cron,omitempty"`
	Interval   int        `json:"interval,omitempty"` // every N units, 0 means 1
	Until      *time.Time `json:"until,omitempty"`
	Timezone   string     `json:"timezone,omitempty"` // IANA name, default UTC
}

// Value stores the config as JSONB.
func (c RecurrenceConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads the config back from a JSONB column.
func (c *RecurrenceConfig) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = RecurrenceConfig{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Newf("recurrence_config: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*c = RecurrenceConfig{}
		return nil
	}
	return json.Unmarshal(raw, c)
}

// ScheduleUpdate carries the admin-editable fields; nil means unchanged.
type ScheduleUpdate struct {
	ScheduledTime       *time.Time
	Priority            *int
	PublishStrategy     *PublishStrategy
	Recurrence          *Recurrence
	RecurrenceConfig    *RecurrenceConfig
	NotifySubscribers   *bool
	NotifyBeforeMinutes *int
	Title               *string
	Description         *string
}

// Empty reports whether the update changes nothing.
func (u ScheduleUpdate) Empty() bool {
	return u.ScheduledTime == nil && u.Priority == nil && u.PublishStrategy == nil &&
		u.Recurrence == nil && u.RecurrenceConfig == nil && u.NotifySubscribers == nil &&
		u.NotifyBeforeMinutes == nil && u.Title == nil && u.Description == nil
}

// Transition carries the columns written alongside a status change.
type Transition struct {
	At           time.Time
	ErrorMessage *string
	ExecutedBy   *int64
}

// ScheduleFilter selects schedules for listing and counting. Zero values
// are ignored; time bounds are inclusive-exclusive [From, To).
type ScheduleFilter struct {
	Statuses      []Status
	ContentType   ContentType
	ContentID     int64
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
	PublishedFrom *time.Time
	PublishedTo   *time.Time
}

// FailureReport is one entry of an aggregated failure notification.
type FailureReport struct {
	ScheduleID  int64       `json:"schedule_id"`
	ContentType ContentType `json:"content_type"`
	ContentID   int64       `json:"content_id"`
	Error       string      `json:"error"`
}

// Statistics is the read-only dashboard aggregate.
type Statistics struct {
	PendingCount      int `json:"pending_count"`
	PublishedToday    int `json:"published_today"`
	PublishedThisWeek int `json:"published_this_week"`
	FailedCount       int `json:"failed_count"`
	OverdueCount      int `json:"overdue_count"`
	Upcoming24h       int `json:"upcoming_24h"`
}
