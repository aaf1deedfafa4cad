// Package fakestore is an in-memory db.Store for tests of the scheduling
// service, the executor and the HTTP handlers. It mirrors the conditional
// update semantics of the Postgres store, including the atomic claim.
package fakestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Nixie-Tech-LLC/premiere/internal/db"
	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

type Store struct {
	mu        sync.Mutex
	nextID    int64
	schedules map[int64]model.Schedule
	templates map[int64]model.ScheduleTemplate
	now       func() time.Time

	// DueErr, when set, is returned by DueSchedules until cleared.
	DueErr error
}

var _ db.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		schedules: map[int64]model.Schedule{},
		templates: map[int64]model.ScheduleTemplate{},
		now:       time.Now,
	}
}

// Put inserts s verbatim (status and timestamps included) and returns its id.
func (f *Store) Put(s model.Schedule) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = f.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = f.now()
	}
	s.UpdatedAt = s.CreatedAt
	f.schedules[s.ID] = s
	return s.ID
}

// All returns every schedule ordered by id.
func (f *Store) All() []model.Schedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Schedule, 0, len(f.schedules))
	for _, s := range f.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Store) CreateSchedule(_ context.Context, s *model.Schedule) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ParentID != nil {
		for _, existing := range f.schedules {
			if existing.ParentID != nil && *existing.ParentID == *s.ParentID {
				return 0, errors.Conflictf("schedule %d already has a next occurrence", *s.ParentID)
			}
		}
	}
	f.nextID++
	s.ID = f.nextID
	s.CreatedAt = f.now()
	s.UpdatedAt = s.CreatedAt
	f.schedules[s.ID] = *s
	return s.ID, nil
}

func (f *Store) GetSchedule(_ context.Context, id int64) (*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return nil, errors.NotFoundf("schedule %d not found", id)
	}
	return &s, nil
}

func (f *Store) UpdateSchedule(_ context.Context, id int64, u model.ScheduleUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return errors.NotFoundf("schedule %d not found", id)
	}
	if s.Status != model.StatusPending {
		return errors.Conflictf("schedule %d is %s and can no longer be edited", id, s.Status)
	}
	if u.ScheduledTime != nil {
		s.ScheduledTime = *u.ScheduledTime
		s.NoticeSentAt = nil
	}
	if u.Priority != nil {
		s.Priority = *u.Priority
	}
	if u.PublishStrategy != nil {
		s.PublishStrategy = *u.PublishStrategy
	}
	if u.Recurrence != nil {
		s.Recurrence = *u.Recurrence
	}
	if u.RecurrenceConfig != nil {
		s.RecurrenceConfig = *u.RecurrenceConfig
	}
	if u.NotifySubscribers != nil {
		s.NotifySubscribers = *u.NotifySubscribers
	}
	if u.NotifyBeforeMinutes != nil {
		s.NotifyBeforeMinutes = *u.NotifyBeforeMinutes
	}
	if u.Title != nil {
		s.Title = *u.Title
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	s.UpdatedAt = f.now()
	f.schedules[id] = s
	return nil
}

func (f *Store) ListSchedules(_ context.Context, flt model.ScheduleFilter, skip, limit int) ([]model.Schedule, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := f.filter(flt)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ScheduledTime.Equal(matched[j].ScheduledTime) {
			return matched[i].ScheduledTime.After(matched[j].ScheduledTime)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	if skip > total {
		skip = total
	}
	end := total
	if limit > 0 && skip+limit < total {
		end = skip + limit
	}
	return matched[skip:end], total, nil
}

func (f *Store) CountSchedules(_ context.Context, flt model.ScheduleFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.filter(flt)), nil
}

func (f *Store) DueSchedules(_ context.Context, now time.Time, limit int) ([]model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DueErr != nil {
		return nil, f.DueErr
	}
	var out []model.Schedule
	for _, s := range f.schedules {
		if s.Status == model.StatusPending && !s.ScheduledTime.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.ScheduledTime.Equal(b.ScheduledTime) {
			return a.ScheduledTime.Before(b.ScheduledTime)
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Store) TransitionSchedule(_ context.Context, id int64, from, to model.Status, t model.Transition) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	at := t.At
	switch to {
	case model.StatusInProgress:
		s.ClaimedAt = &at
	case model.StatusPublished:
		s.ActualPublishTime = &at
		s.ErrorMessage = nil
	}
	if t.ErrorMessage != nil {
		msg := *t.ErrorMessage
		s.ErrorMessage = &msg
	}
	if t.ExecutedBy != nil {
		by := *t.ExecutedBy
		s.ExecutedBy = &by
	}
	s.UpdatedAt = f.now()
	f.schedules[id] = s
	return true, nil
}

func (f *Store) ExpireSchedules(_ context.Context, scheduledBefore time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.schedules {
		if s.Status == model.StatusPending && s.ScheduledTime.Before(scheduledBefore) {
			s.Status = model.StatusExpired
			msg := "not executed before expiry"
			s.ErrorMessage = &msg
			f.schedules[id] = s
			n++
		}
	}
	return n, nil
}

func (f *Store) ReapStaleClaims(_ context.Context, claimedBefore time.Time, message string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.schedules {
		if s.Status == model.StatusInProgress && s.ClaimedAt != nil && s.ClaimedAt.Before(claimedBefore) {
			s.Status = model.StatusFailed
			msg := message
			s.ErrorMessage = &msg
			f.schedules[id] = s
			n++
		}
	}
	return n, nil
}

func (f *Store) UpcomingNotices(_ context.Context, now time.Time, limit int) ([]model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Schedule
	for _, s := range f.schedules {
		if s.Status != model.StatusPending || !s.NotifySubscribers || s.NotifyBeforeMinutes <= 0 || s.NoticeSentAt != nil {
			continue
		}
		lead := s.ScheduledTime.Add(-time.Duration(s.NotifyBeforeMinutes) * time.Minute)
		if s.ScheduledTime.After(now) && !lead.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Store) MarkNoticeSent(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok || s.Status != model.StatusPending || s.NoticeSentAt != nil {
		return false, nil
	}
	s.NoticeSentAt = &at
	f.schedules[id] = s
	return true, nil
}

func (f *Store) CreateTemplate(_ context.Context, t *model.ScheduleTemplate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.templates {
		if existing.Name == t.Name {
			return 0, errors.Conflictf("template %q already exists", t.Name)
		}
	}
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = f.now()
	t.UpdatedAt = t.CreatedAt
	f.templates[t.ID] = *t
	return t.ID, nil
}

func (f *Store) GetTemplate(_ context.Context, id int64) (*model.ScheduleTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return nil, errors.NotFoundf("template %d not found", id)
	}
	return &t, nil
}

func (f *Store) ListTemplates(_ context.Context) ([]model.ScheduleTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ScheduleTemplate, 0, len(f.templates))
	for _, t := range f.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *Store) DeleteTemplate(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[id]; !ok {
		return errors.NotFoundf("template %d not found", id)
	}
	delete(f.templates, id)
	return nil
}

// filter must be called with f.mu held.
func (f *Store) filter(flt model.ScheduleFilter) []model.Schedule {
	var out []model.Schedule
	for _, s := range f.schedules {
		if matches(s, flt) {
			out = append(out, s)
		}
	}
	return out
}

func matches(s model.Schedule, flt model.ScheduleFilter) bool {
	if len(flt.Statuses) > 0 {
		found := false
		for _, st := range flt.Statuses {
			if s.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if flt.ContentType != "" && s.ContentType != flt.ContentType {
		return false
	}
	if flt.ContentID != 0 && s.ContentID != flt.ContentID {
		return false
	}
	if flt.ScheduledFrom != nil && s.ScheduledTime.Before(*flt.ScheduledFrom) {
		return false
	}
	if flt.ScheduledTo != nil && !s.ScheduledTime.Before(*flt.ScheduledTo) {
		return false
	}
	if flt.PublishedFrom != nil || flt.PublishedTo != nil {
		if s.ActualPublishTime == nil {
			return false
		}
		if flt.PublishedFrom != nil && s.ActualPublishTime.Before(*flt.PublishedFrom) {
			return false
		}
		if flt.PublishedTo != nil && !s.ActualPublishTime.Before(*flt.PublishedTo) {
			return false
		}
	}
	return true
}
