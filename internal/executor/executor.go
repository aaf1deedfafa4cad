// Package executor runs sweeps: one pass over every due schedule, tier by
// tier, isolating failures per item and reporting them in one batch.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
	"github.com/Nixie-Tech-LLC/premiere/internal/notify"
	"github.com/Nixie-Tech-LLC/premiere/internal/scheduling"
)

// MaxReportedFailures caps the failure batch handed to the dispatcher.
const MaxReportedFailures = 10

// Scheduler is the part of the scheduling service a sweep drives.
type Scheduler interface {
	ExpireOverdue(ctx context.Context, after time.Duration) (int64, error)
	ReapStale(ctx context.Context, after time.Duration) (int64, error)
	GetDueSchedules(ctx context.Context, limit int) ([]model.Schedule, error)
	ExecuteSchedule(ctx context.Context, id int64, executedBy *int64, force bool) (scheduling.Result, error)
	DispatchUpcomingNotices(ctx context.Context, limit int) (int, error)
}

var _ Scheduler = (*scheduling.Service)(nil)

type Config struct {
	Concurrency     int           // workers inside one tier
	BatchLimit      int           // due rows fetched per sweep
	NoticeLimit     int           // upcoming notices per sweep
	ExpireAfter     time.Duration // 0 disables expiry
	StaleClaimAfter time.Duration // 0 disables reaping
	RetryAttempts   int
	RetryBackoff    time.Duration
}

// Summary is what one sweep did.
type Summary struct {
	Executed  int                   `json:"executed_count"`
	Failed    int                   `json:"failed_count"`
	Skipped   int                   `json:"skipped_count"`
	Total     int                   `json:"total"`
	Expired   int64                 `json:"expired_count"`
	Reaped    int64                 `json:"reaped_count"`
	Notices   int                   `json:"notices_sent"`
	Errors    []model.FailureReport `json:"errors"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
}

type Executor struct {
	sched    Scheduler
	notifier notify.Dispatcher
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

func New(sched Scheduler, notifier notify.Dispatcher, cfg Config, log zerolog.Logger) *Executor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 500
	}
	if cfg.NoticeLimit <= 0 {
		cfg.NoticeLimit = cfg.BatchLimit
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	return &Executor{
		sched:    sched,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With().Str("component", "executor").Logger(),
		now:      time.Now,
	}
}

// Sweep runs one pass. The returned error is sweep-level (the store could
// not be reached); individual schedule failures are only counted.
func (e *Executor) Sweep(ctx context.Context) (Summary, error) {
	sum := Summary{StartedAt: e.now(), Errors: []model.FailureReport{}}

	var err error
	if sum.Expired, err = e.sched.ExpireOverdue(ctx, e.cfg.ExpireAfter); err != nil {
		return sum, errors.Wrap(err, "expire overdue schedules")
	}
	if sum.Reaped, err = e.sched.ReapStale(ctx, e.cfg.StaleClaimAfter); err != nil {
		return sum, errors.Wrap(err, "reap stale claims")
	}

	due, err := e.sched.GetDueSchedules(ctx, e.cfg.BatchLimit)
	if err != nil {
		return sum, errors.Wrap(err, "fetch due schedules")
	}
	sum.Total = len(due)

	for tier, items := range partition(due) {
		if len(items) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, errors.Wrap(err, "sweep interrupted")
		}
		e.log.Debug().Str("tier", model.PriorityTier(tier).String()).Int("count", len(items)).Msg("running tier")
		e.runTier(ctx, items, &sum)
	}

	if sum.Failed > 0 {
		batch := sum.Errors
		if len(batch) > MaxReportedFailures {
			batch = batch[:MaxReportedFailures]
		}
		if err := e.notifier.NotifyFailureBatch(ctx, batch); err != nil {
			e.log.Error().Err(err).Int("failed", sum.Failed).Msg("failure notification not delivered")
		}
	}

	if sent, err := e.sched.DispatchUpcomingNotices(ctx, e.cfg.NoticeLimit); err != nil {
		e.log.Warn().Err(err).Msg("upcoming notices skipped this sweep")
	} else {
		sum.Notices = sent
	}

	sum.Duration = e.now().Sub(sum.StartedAt)
	e.log.Info().
		Int("total", sum.Total).
		Int("executed", sum.Executed).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Int64("expired", sum.Expired).
		Int64("reaped", sum.Reaped).
		Int("notices", sum.Notices).
		Dur("duration", sum.Duration).
		Msg("sweep finished")
	return sum, nil
}

type outcome struct {
	res scheduling.Result
	err error
}

// runTier executes items with at most cfg.Concurrency in flight and folds
// the outcomes into sum in the tier's order.
func (e *Executor) runTier(ctx context.Context, items []model.Schedule, sum *Summary) {
	outcomes := make([]outcome, len(items))

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i := range items {
		g.Go(func() error {
			outcomes[i] = e.executeOne(ctx, items[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		sc := items[i]
		switch {
		case o.err != nil:
			sum.Failed++
			sum.Errors = append(sum.Errors, report(sc, o.err.Error()))
		case o.res.Outcome == scheduling.OutcomePublished:
			sum.Executed++
		case o.res.Outcome == scheduling.OutcomeFailed:
			sum.Failed++
			sum.Errors = append(sum.Errors, report(sc, o.res.Message))
		default:
			sum.Skipped++
		}
	}
}

func (e *Executor) executeOne(ctx context.Context, sc model.Schedule) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Int64("schedule_id", sc.ID).Interface("panic", r).Msg("schedule execution panicked")
			o = outcome{err: errors.Mark(errors.Newf("panic: %v", r), errors.ErrExecution)}
		}
	}()

	res, err := e.sched.ExecuteSchedule(ctx, sc.ID, nil, false)
	if err != nil {
		e.log.Error().Err(err).Int64("schedule_id", sc.ID).Msg("schedule execution failed")
	}
	return outcome{res: res, err: err}
}

// RunWithRetry runs Sweep, retrying the whole sweep on transient errors
// with linear backoff. Other errors end the cycle immediately.
func (e *Executor) RunWithRetry(ctx context.Context) (Summary, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
		sum, err := e.Sweep(ctx)
		if err == nil {
			return sum, nil
		}
		lastErr = err
		if !errors.IsTransient(err) {
			return sum, err
		}
		if attempt == e.cfg.RetryAttempts {
			break
		}

		wait := e.cfg.RetryBackoff * time.Duration(attempt)
		e.log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("sweep failed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return Summary{}, errors.Wrap(ctx.Err(), "sweep retry interrupted")
		}
	}

	e.log.Error().Err(lastErr).Int("attempts", e.cfg.RetryAttempts).Msg("sweep abandoned for this cycle")
	return Summary{}, errors.Wrapf(lastErr, "sweep abandoned after %d attempts", e.cfg.RetryAttempts)
}

// partition splits due rows into high, normal and low tiers, keeping the
// store's order inside each tier.
func partition(due []model.Schedule) [3][]model.Schedule {
	var tiers [3][]model.Schedule
	for _, sc := range due {
		t := sc.Tier()
		tiers[t] = append(tiers[t], sc)
	}
	return tiers
}

func report(sc model.Schedule, msg string) model.FailureReport {
	return model.FailureReport{
		ScheduleID:  sc.ID,
		ContentType: sc.ContentType,
		ContentID:   sc.ContentID,
		Error:       msg,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("executed=%d failed=%d skipped=%d total=%d", s.Executed, s.Failed, s.Skipped, s.Total)
}
