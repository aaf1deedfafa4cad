package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
	"github.com/Nixie-Tech-LLC/premiere/internal/recurrence"
)

// Outcome tells the caller what ExecuteSchedule did.
type Outcome string

const (
	OutcomePublished        Outcome = "published"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeNotDue           Outcome = "not_due"
	OutcomeFailed           Outcome = "failed"
)

// Result of one execution. Success is true only for OutcomePublished.
type Result struct {
	Success        bool    `json:"success"`
	Outcome        Outcome `json:"outcome"`
	Message        string  `json:"message"`
	NextScheduleID *int64  `json:"next_schedule_id,omitempty"`
}

// ExecuteSchedule runs one schedule through claim, publish and, for
// recurring schedules, the spawn of the next occurrence.
//
// A row that already left PENDING, or whose claim was lost to a concurrent
// worker, yields OutcomeAlreadyProcessed. A failing content repository marks
// the row FAILED and yields OutcomeFailed. Only store failures come back as
// an error.
func (s *Service) ExecuteSchedule(ctx context.Context, id int64, executedBy *int64, force bool) (Result, error) {
	sc, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if sc.Status != model.StatusPending {
		return Result{Outcome: OutcomeAlreadyProcessed, Message: "already processed"}, nil
	}

	now := s.now()
	if !force && sc.ScheduledTime.After(now) {
		return Result{Outcome: OutcomeNotDue, Message: "not due yet"}, nil
	}

	won, err := s.store.TransitionSchedule(ctx, id, model.StatusPending, model.StatusInProgress,
		model.Transition{At: now, ExecutedBy: executedBy})
	if err != nil {
		return Result{}, errors.Wrapf(err, "claim schedule %d", id)
	}
	if !won {
		s.log.Debug().Int64("schedule_id", id).Msg("claim lost to another worker")
		return Result{Outcome: OutcomeAlreadyProcessed, Message: "already processed"}, nil
	}

	// Once claimed, the row must reach PUBLISHED or FAILED even when the
	// caller goes away; only the publish itself follows ctx.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	if err := s.publish(ctx, sc); err != nil {
		return s.fail(finishCtx, sc, err)
	}

	publishedAt := s.now()
	marked, err := s.store.TransitionSchedule(finishCtx, id, model.StatusInProgress, model.StatusPublished,
		model.Transition{At: publishedAt})
	if err != nil {
		return Result{}, errors.Wrapf(err, "mark schedule %d published", id)
	}
	if !marked {
		res, recovered, err := s.recoverReaped(finishCtx, id, publishedAt)
		if err != nil || !recovered {
			return res, err
		}
	}
	sc.Status = model.StatusPublished
	sc.ActualPublishTime = &publishedAt
	sc.ExecutedBy = executedBy
	sc.ErrorMessage = nil

	s.log.Info().
		Int64("schedule_id", id).
		Str("content_type", string(sc.ContentType)).
		Int64("content_id", sc.ContentID).
		Int("priority", sc.Priority).
		Msg("schedule published")

	res := Result{Success: true, Outcome: OutcomePublished, Message: "published"}
	res.NextScheduleID = s.spawnNext(finishCtx, sc)

	if sc.NotifySubscribers {
		if err := s.notifier.NotifyPublished(finishCtx, *sc); err != nil {
			s.log.Warn().Err(err).Int64("schedule_id", id).Msg("published notification not delivered")
		}
	}
	return res, nil
}

// recoverReaped handles a publish that finished after the reaper marked the
// claim abandoned. The content is live, so a FAILED row is moved back to
// PUBLISHED; any other state is reported as it is stored.
func (s *Service) recoverReaped(ctx context.Context, id int64, publishedAt time.Time) (Result, bool, error) {
	ok, err := s.store.TransitionSchedule(ctx, id, model.StatusFailed, model.StatusPublished,
		model.Transition{At: publishedAt})
	if err != nil {
		return Result{}, false, errors.Wrapf(err, "restore reaped schedule %d", id)
	}
	if ok {
		s.log.Warn().Int64("schedule_id", id).Msg("publish finished after the claim was reaped, row restored to published")
		return Result{}, true, nil
	}

	current, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return Result{}, false, err
	}
	s.log.Warn().Int64("schedule_id", id).Str("status", string(current.Status)).
		Msg("published schedule was taken over by another writer")
	return Result{
		Outcome: OutcomeAlreadyProcessed,
		Message: fmt.Sprintf("schedule is %s", current.Status),
	}, false, nil
}

func (s *Service) publish(ctx context.Context, sc *model.Schedule) error {
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	if err := s.content.Publish(ctx, sc.ContentType, sc.ContentID, sc.PublishStrategy); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.Wrapf(err, "publish timed out after %s", s.publishTimeout)
		}
		return errors.Mark(err, errors.ErrExecution)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, sc *model.Schedule, cause error) (Result, error) {
	msg := cause.Error()
	s.log.Error().Err(cause).
		Int64("schedule_id", sc.ID).
		Str("content_type", string(sc.ContentType)).
		Int64("content_id", sc.ContentID).
		Msg("publish failed")

	if _, err := s.store.TransitionSchedule(ctx, sc.ID, model.StatusInProgress, model.StatusFailed,
		model.Transition{At: s.now(), ErrorMessage: &msg}); err != nil {
		return Result{}, errors.Wrapf(err, "mark schedule %d failed", sc.ID)
	}
	return Result{Outcome: OutcomeFailed, Message: msg}, nil
}

// spawnNext creates the next occurrence of a recurring schedule and returns
// its id. Errors are logged: the publish already happened and stands.
func (s *Service) spawnNext(ctx context.Context, sc *model.Schedule) *int64 {
	if sc.Recurrence == model.RecurrenceOnce {
		return nil
	}
	next, ok, err := recurrence.Next(sc.ScheduledTime, sc.Recurrence, sc.RecurrenceConfig)
	if err != nil {
		s.log.Error().Err(err).Int64("schedule_id", sc.ID).Msg("could not compute next occurrence")
		return nil
	}
	if !ok {
		s.log.Info().Int64("schedule_id", sc.ID).Msg("recurrence finished")
		return nil
	}

	child := sc.NextOccurrence(next)
	id, err := s.store.CreateSchedule(ctx, &child)
	if err != nil {
		if errors.Is(err, errors.ErrConflict) {
			s.log.Warn().Int64("schedule_id", sc.ID).Msg("next occurrence already exists")
		} else {
			s.log.Error().Err(err).Int64("schedule_id", sc.ID).Msg("could not create next occurrence")
		}
		return nil
	}

	s.log.Info().
		Int64("schedule_id", sc.ID).
		Int64("next_schedule_id", id).
		Time("scheduled_time", next).
		Msg("next occurrence scheduled")
	return &id
}
