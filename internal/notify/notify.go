// Package notify delivers scheduler events to subscribers and operators.
//
// Dispatchers are composable: Multi fans out to several sinks and Async puts
// a bounded, rate limited queue in front of any of them so that a slow
// broker never stalls a sweep.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// Dispatcher receives scheduler events.
type Dispatcher interface {
	NotifyFailureBatch(ctx context.Context, failures []model.FailureReport) error
	NotifyUpcoming(ctx context.Context, s model.Schedule) error
	NotifyPublished(ctx context.Context, s model.Schedule) error
}

// Event kinds carried on the wire.
const (
	KindFailureBatch = "failure_batch"
	KindUpcoming     = "upcoming"
	KindPublished    = "published"
)

// Event is the JSON envelope published by the broker backed dispatchers.
type Event struct {
	Kind     string                `json:"kind"`
	At       time.Time             `json:"at"`
	Schedule *model.Schedule       `json:"schedule,omitempty"`
	Failures []model.FailureReport `json:"failures,omitempty"`
}

func (e Event) encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s event", e.Kind)
	}
	return b, nil
}

// Log writes events to a zerolog logger. It is always part of the chain so
// operators see failures even without a broker.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "notify").Logger()}
}

func (l *Log) NotifyFailureBatch(_ context.Context, failures []model.FailureReport) error {
	arr := zerolog.Arr()
	for _, f := range failures {
		arr = arr.Dict(zerolog.Dict().
			Int64("schedule_id", f.ScheduleID).
			Str("content_type", string(f.ContentType)).
			Int64("content_id", f.ContentID).
			Str("error", f.Error))
	}
	l.log.Error().Int("failed", len(failures)).Array("failures", arr).Msg("scheduled publishes failed")
	return nil
}

func (l *Log) NotifyUpcoming(_ context.Context, s model.Schedule) error {
	l.log.Info().
		Int64("schedule_id", s.ID).
		Str("content_type", string(s.ContentType)).
		Int64("content_id", s.ContentID).
		Time("scheduled_time", s.ScheduledTime).
		Msg("publish coming up")
	return nil
}

func (l *Log) NotifyPublished(_ context.Context, s model.Schedule) error {
	l.log.Info().
		Int64("schedule_id", s.ID).
		Str("content_type", string(s.ContentType)).
		Int64("content_id", s.ContentID).
		Msg("content published")
	return nil
}

// Multi fans an event out to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) NotifyFailureBatch(ctx context.Context, failures []model.FailureReport) error {
	var errs []error
	for _, d := range m {
		if err := d.NotifyFailureBatch(ctx, failures); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyUpcoming(ctx context.Context, s model.Schedule) error {
	var errs []error
	for _, d := range m {
		if err := d.NotifyUpcoming(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyPublished(ctx context.Context, s model.Schedule) error {
	var errs []error
	for _, d := range m {
		if err := d.NotifyPublished(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
