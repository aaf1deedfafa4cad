package model

import (
	"strings"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
)

// ContentType is the closed set of content kinds a schedule can publish.
type ContentType string

const (
	ContentVideo   ContentType = "VIDEO"
	ContentSeries  ContentType = "SERIES"
	ContentSeason  ContentType = "SEASON"
	ContentEpisode ContentType = "EPISODE"
)

// ContentTypes lists every supported content type in a stable order.
var ContentTypes = []ContentType{ContentVideo, ContentSeries, ContentSeason, ContentEpisode}

func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ContentTypes {
		if ct == known {
			return ct, nil
		}
	}
	return "", errors.Validationf("unknown content type %q", s)
}

// Status is the lifecycle state of one schedule row.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPublished  Status = "PUBLISHED"
	StatusFailed     Status = "FAILED"
	StatusCanceled   Status = "CANCELED"
	StatusExpired    Status = "EXPIRED"
)

var statuses = []Status{
	StatusPending, StatusInProgress, StatusPublished,
	StatusFailed, StatusCanceled, StatusExpired,
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range statuses {
		if st == known {
			return st, nil
		}
	}
	return "", errors.Validationf("unknown status %q", s)
}

// Terminal reports whether no further transition is possible for the row.
func (s Status) Terminal() bool {
	switch s {
	case StatusPublished, StatusFailed, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// Recurrence selects how the next occurrence is derived after a publish.
type Recurrence string

const (
	RecurrenceOnce    Recurrence = "ONCE"
	RecurrenceDaily   Recurrence = "DAILY"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
	RecurrenceCustom  Recurrence = "CUSTOM"
)

var recurrences = []Recurrence{
	RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceCustom,
}

func ParseRecurrence(s string) (Recurrence, error) {
	if strings.TrimSpace(s) == "" {
		return RecurrenceOnce, nil
	}
	r := Recurrence(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range recurrences {
		if r == known {
			return r, nil
		}
	}
	return "", errors.Validationf("unknown recurrence %q", s)
}

// PublishStrategy is handed through to the content repository untouched.
type PublishStrategy string

const (
	StrategyImmediate PublishStrategy = "IMMEDIATE"
	StrategyGradual   PublishStrategy = "GRADUAL"
)

func ParsePublishStrategy(s string) (PublishStrategy, error) {
	switch PublishStrategy(strings.ToUpper(strings.TrimSpace(s))) {
	case "", StrategyImmediate:
		return StrategyImmediate, nil
	case StrategyGradual:
		return StrategyGradual, nil
	}
	return "", errors.Validationf("unknown publish strategy %q", s)
}
