package scheduling

import (
	"context"
	"time"
)

// ExpireOverdue marks PENDING rows more than after past their time as
// EXPIRED. after <= 0 disables expiry.
func (s *Service) ExpireOverdue(ctx context.Context, after time.Duration) (int64, error) {
	if after <= 0 {
		return 0, nil
	}
	n, err := s.store.ExpireSchedules(ctx, s.now().Add(-after))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn().Int64("expired", n).Dur("after", after).Msg("expired overdue schedules")
	}
	return n, nil
}

// ReapStale fails IN_PROGRESS rows claimed more than after ago: the worker
// that claimed them is gone.
func (s *Service) ReapStale(ctx context.Context, after time.Duration) (int64, error) {
	if after <= 0 {
		return 0, nil
	}
	n, err := s.store.ReapStaleClaims(ctx, s.now().Add(-after), abandonedClaimMessage)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn().Int64("reaped", n).Dur("after", after).Msg("failed abandoned claims")
	}
	return n, nil
}

// DispatchUpcomingNotices hands every schedule inside its notice window to
// the dispatcher once. The notice is marked before it is sent so that
// concurrent sweeps never send it twice.
func (s *Service) DispatchUpcomingNotices(ctx context.Context, limit int) (int, error) {
	now := s.now()
	due, err := s.store.UpcomingNotices(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sc := range due {
		marked, err := s.store.MarkNoticeSent(ctx, sc.ID, now)
		if err != nil {
			return sent, err
		}
		if !marked {
			continue
		}
		if err := s.notifier.NotifyUpcoming(ctx, sc); err != nil {
			s.log.Warn().Err(err).Int64("schedule_id", sc.ID).Msg("upcoming notice not delivered")
			continue
		}
		sent++
	}
	return sent, nil
}
