package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/premiere/internal/content"
	"github.com/Nixie-Tech-LLC/premiere/internal/db/fakestore"
	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type notices struct {
	mu        sync.Mutex
	upcoming  []int64
	published []int64
	batches   [][]model.FailureReport
}

func (n *notices) NotifyFailureBatch(_ context.Context, f []model.FailureReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, f)
	return nil
}

func (n *notices) NotifyUpcoming(_ context.Context, s model.Schedule) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.upcoming = append(n.upcoming, s.ID)
	return nil
}

func (n *notices) NotifyPublished(_ context.Context, s model.Schedule) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, s.ID)
	return nil
}

type harness struct {
	svc    *Service
	store  *fakestore.Store
	videos *fakestore.Content
	notes  *notices
	clock  *clock
}

// 2026-03-11 is a Wednesday.
var base = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, contentIDs ...int64) *harness {
	t.Helper()
	store := fakestore.New()
	registry, fakes := fakestore.Registry(contentIDs...)
	notes := &notices{}
	clk := &clock{t: base}
	logger := zerolog.Nop()
	svc := NewService(store, registry, notes, Options{
		Now:            clk.Now,
		PublishTimeout: time.Second,
		Logger:         &logger,
	})
	return &harness{svc: svc, store: store, videos: fakes[model.ContentVideo], notes: notes, clock: clk}
}

func (h *harness) pending(at time.Time, priority int) int64 {
	return h.store.Put(model.Schedule{
		ContentType:     model.ContentVideo,
		ContentID:       42,
		ScheduledTime:   at,
		Status:          model.StatusPending,
		Priority:        priority,
		PublishStrategy: model.StrategyImmediate,
		Recurrence:      model.RecurrenceOnce,
	})
}

func intp(v int) *int { return &v }

func TestCreateScheduleDefaults(t *testing.T) {
	h := newHarness(t, 42)

	sc, err := h.svc.CreateSchedule(context.Background(), CreateParams{
		ContentType:   "video",
		ContentID:     42,
		ScheduledTime: base.Add(time.Hour),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.ContentVideo, sc.ContentType)
	assert.Equal(t, model.StatusPending, sc.Status)
	assert.Equal(t, model.DefaultPriority, sc.Priority)
	assert.Equal(t, model.StrategyImmediate, sc.PublishStrategy)
	assert.Equal(t, model.RecurrenceOnce, sc.Recurrence)
}

func TestCreateSchedulePastTime(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	p := CreateParams{ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: base.Add(-time.Hour)}

	_, err := h.svc.CreateSchedule(ctx, p, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	p.Force = true
	sc, err := h.svc.CreateSchedule(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, sc.Status)
}

func TestCreateScheduleValidation(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	future := base.Add(time.Hour)

	cases := map[string]CreateParams{
		"missing content":  {ContentType: model.ContentVideo, ContentID: 7, ScheduledTime: future},
		"bad content type": {ContentType: "PODCAST", ContentID: 42, ScheduledTime: future},
		"priority too big": {ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: future, Priority: intp(101)},
		"negative notice":  {ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: future, NotifyBeforeMinutes: -5},
		"bad strategy":     {ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: future, PublishStrategy: "SLOW"},
		"bad cron": {ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: future,
			Recurrence: model.RecurrenceCustom, RecurrenceConfig: model.RecurrenceConfig{Cron: "not a cron"}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.CreateSchedule(ctx, p, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation), "got %v", err)
		})
	}

	t.Run("force skips the content check", func(t *testing.T) {
		_, err := h.svc.CreateSchedule(ctx, CreateParams{
			ContentType: model.ContentVideo, ContentID: 7, ScheduledTime: future, Force: true,
		}, nil)
		assert.NoError(t, err)
	})
}

func TestCancelSchedule(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	id := h.pending(base.Add(time.Minute), 50)

	sc, err := h.svc.CancelSchedule(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, sc.Status)

	h.clock.Set(base.Add(time.Hour))
	due, err := h.svc.GetDueSchedules(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, due)

	_, err = h.svc.CancelSchedule(ctx, id)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	_, err = h.svc.CancelSchedule(ctx, 999)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUpdateSchedule(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	id := h.pending(base.Add(time.Hour), 50)

	title := "Premiere night"
	sc, err := h.svc.UpdateSchedule(ctx, id, UpdateParams{ScheduleUpdate: model.ScheduleUpdate{
		Priority: intp(90),
		Title:    &title,
	}})
	require.NoError(t, err)
	assert.Equal(t, 90, sc.Priority)
	assert.Equal(t, title, sc.Title)

	past := base.Add(-time.Hour)
	_, err = h.svc.UpdateSchedule(ctx, id, UpdateParams{ScheduleUpdate: model.ScheduleUpdate{ScheduledTime: &past}})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = h.svc.CancelSchedule(ctx, id)
	require.NoError(t, err)
	_, err = h.svc.UpdateSchedule(ctx, id, UpdateParams{ScheduleUpdate: model.ScheduleUpdate{Priority: intp(10)}})
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestForceExecutePublishesVideo(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	admin := int64(3)

	sc, err := h.svc.CreateSchedule(ctx, CreateParams{
		ContentType:   model.ContentVideo,
		ContentID:     42,
		ScheduledTime: base.Add(5 * time.Minute),
		Priority:      intp(90),
		Recurrence:    model.RecurrenceOnce,
	}, &admin)
	require.NoError(t, err)

	res, err := h.svc.ExecuteSchedule(ctx, sc.ID, &admin, true)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, OutcomePublished, res.Outcome)
	assert.Nil(t, res.NextScheduleID)

	video, ok := h.videos.Get(42)
	require.True(t, ok)
	assert.True(t, video.Published)
	assert.NotNil(t, video.PublishedAt)

	got, err := h.svc.GetSchedule(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, got.Status)
	require.NotNil(t, got.ActualPublishTime)
	require.NotNil(t, got.ExecutedBy)
	assert.Equal(t, admin, *got.ExecutedBy)
}

func TestExecuteIsIdempotent(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	id := h.store.Put(model.Schedule{
		ContentType:     model.ContentVideo,
		ContentID:       42,
		ScheduledTime:   base.Add(-time.Minute),
		Status:          model.StatusPending,
		Priority:        50,
		PublishStrategy: model.StrategyImmediate,
		Recurrence:      model.RecurrenceDaily,
	})

	first, err := h.svc.ExecuteSchedule(ctx, id, nil, false)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := h.svc.ExecuteSchedule(ctx, id, nil, false)
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, OutcomeAlreadyProcessed, second.Outcome)

	video, _ := h.videos.Get(42)
	assert.Equal(t, 1, video.Publishes)
	assert.Len(t, h.store.All(), 2, "one original row and one spawned occurrence")
}

func TestExecuteNotDue(t *testing.T) {
	h := newHarness(t, 42)
	id := h.pending(base.Add(time.Hour), 50)

	res, err := h.svc.ExecuteSchedule(context.Background(), id, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, res.Outcome)

	sc, _ := h.svc.GetSchedule(context.Background(), id)
	assert.Equal(t, model.StatusPending, sc.Status)
}

func TestExecuteMissing(t *testing.T) {
	h := newHarness(t, 42)
	_, err := h.svc.ExecuteSchedule(context.Background(), 404, nil, true)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDailyRecurrenceSpawnsNextOccurrence(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	hour, minute := 20, 0
	at := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	h.clock.Set(at.Add(time.Minute))

	id := h.store.Put(model.Schedule{
		ContentType:      model.ContentVideo,
		ContentID:        42,
		ScheduledTime:    at,
		Status:           model.StatusPending,
		Priority:         70,
		PublishStrategy:  model.StrategyGradual,
		Recurrence:       model.RecurrenceDaily,
		RecurrenceConfig: model.RecurrenceConfig{Hour: &hour, Minute: &minute},
		Title:            "Nightly drop",
	})

	res, err := h.svc.ExecuteSchedule(ctx, id, nil, false)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.NextScheduleID)

	original, err := h.svc.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, original.Status)

	next, err := h.svc.GetSchedule(ctx, *res.NextScheduleID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, next.Status)
	assert.True(t, next.ScheduledTime.Equal(time.Date(2026, 3, 11, 20, 0, 0, 0, time.UTC)), "got %s", next.ScheduledTime)
	assert.Equal(t, 70, next.Priority)
	assert.Equal(t, model.StrategyGradual, next.PublishStrategy)
	assert.Equal(t, "Nightly drop", next.Title)
	require.NotNil(t, next.ParentID)
	assert.Equal(t, id, *next.ParentID)
	assert.Nil(t, next.ActualPublishTime)

	assert.Len(t, h.store.All(), 2)
}

func TestExecuteFailureMarksFailed(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	h.videos.FailWith(42, errors.New("constraint violation"))
	id := h.store.Put(model.Schedule{
		ContentType:   model.ContentVideo,
		ContentID:     42,
		ScheduledTime: base.Add(-time.Minute),
		Status:        model.StatusPending,
		Priority:      50,
		Recurrence:    model.RecurrenceDaily,
	})

	res, err := h.svc.ExecuteSchedule(ctx, id, nil, false)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message, "constraint violation")

	sc, _ := h.svc.GetSchedule(ctx, id)
	assert.Equal(t, model.StatusFailed, sc.Status)
	require.NotNil(t, sc.ErrorMessage)
	assert.Contains(t, *sc.ErrorMessage, "constraint violation")
	assert.Len(t, h.store.All(), 1, "a failed occurrence does not recur")
}

func TestExecuteTimesOut(t *testing.T) {
	store := fakestore.New()
	registry, fakes := fakestore.Registry(42)
	fakes[model.ContentVideo].SlowDown(time.Second)
	logger := zerolog.Nop()
	svc := NewService(store, registry, &notices{}, Options{PublishTimeout: 20 * time.Millisecond, Logger: &logger})

	id := store.Put(model.Schedule{
		ContentType:   model.ContentVideo,
		ContentID:     42,
		ScheduledTime: time.Now().Add(-time.Minute),
		Status:        model.StatusPending,
		Recurrence:    model.RecurrenceOnce,
	})

	res, err := svc.ExecuteSchedule(context.Background(), id, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message, "timed out")
}

func TestExecuteNotifiesSubscribers(t *testing.T) {
	h := newHarness(t, 42)
	id := h.store.Put(model.Schedule{
		ContentType:       model.ContentVideo,
		ContentID:         42,
		ScheduledTime:     base.Add(-time.Minute),
		Status:            model.StatusPending,
		Recurrence:        model.RecurrenceOnce,
		NotifySubscribers: true,
	})

	_, err := h.svc.ExecuteSchedule(context.Background(), id, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, h.notes.published)
}

func TestConcurrentExecutionPublishesOnce(t *testing.T) {
	h := newHarness(t, 42)
	id := h.pending(base.Add(-time.Minute), 50)

	const workers = 8
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.svc.ExecuteSchedule(context.Background(), id, nil, false)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	published := 0
	for _, r := range results {
		switch r.Outcome {
		case OutcomePublished:
			published++
		default:
			assert.Equal(t, OutcomeAlreadyProcessed, r.Outcome)
		}
	}
	assert.Equal(t, 1, published)

	video, _ := h.videos.Get(42)
	assert.Equal(t, 1, video.Publishes)
}

func TestStatistics(t *testing.T) {
	h := newHarness(t, 42)
	for i := 1; i <= 5; i++ {
		h.pending(base.Add(time.Duration(i)*time.Hour), 50)
	}
	for i := 0; i < 2; i++ {
		at := base.Add(-time.Hour)
		h.store.Put(model.Schedule{
			ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: at,
			Status: model.StatusPublished, ActualPublishTime: &at,
		})
	}
	h.store.Put(model.Schedule{ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: base.Add(-3 * time.Hour), Status: model.StatusFailed})
	h.pending(base.Add(-2*time.Hour), 50)

	st, err := h.svc.GetStatistics(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, st.Upcoming24h, 5)
	assert.Equal(t, 2, st.PublishedToday)
	assert.Equal(t, 2, st.PublishedThisWeek)
	assert.Equal(t, 1, st.FailedCount)
	assert.Equal(t, 1, st.OverdueCount)
	assert.Equal(t, 6, st.PendingCount)
}

func TestListSchedulesPaging(t *testing.T) {
	h := newHarness(t, 42)
	for i := 0; i < 5; i++ {
		h.pending(base.Add(time.Duration(i)*time.Hour), 50)
	}

	items, total, err := h.svc.ListSchedules(context.Background(), model.ScheduleFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, items, 2)
	assert.True(t, items[0].ScheduledTime.After(items[1].ScheduledTime))

	_, _, err = h.svc.ListSchedules(context.Background(), model.ScheduleFilter{}, -1, 2)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestExpireAndReap(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	old := h.pending(base.Add(-25*time.Hour), 50)
	recent := h.pending(base.Add(-time.Hour), 50)
	claimedAt := base.Add(-time.Hour)
	stuck := h.store.Put(model.Schedule{
		ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: claimedAt,
		Status: model.StatusInProgress, ClaimedAt: &claimedAt,
	})

	n, err := h.svc.ExpireOverdue(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = h.svc.ExpireOverdue(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.svc.ReapStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sc, _ := h.svc.GetSchedule(ctx, old)
	assert.Equal(t, model.StatusExpired, sc.Status)
	sc, _ = h.svc.GetSchedule(ctx, recent)
	assert.Equal(t, model.StatusPending, sc.Status)
	sc, _ = h.svc.GetSchedule(ctx, stuck)
	assert.Equal(t, model.StatusFailed, sc.Status)
	require.NotNil(t, sc.ErrorMessage)
	assert.Equal(t, "claim abandoned", *sc.ErrorMessage)
}

func TestUpcomingNoticesSentOnce(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()
	soon := h.store.Put(model.Schedule{
		ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: base.Add(10 * time.Minute),
		Status: model.StatusPending, NotifySubscribers: true, NotifyBeforeMinutes: 30,
	})
	h.store.Put(model.Schedule{
		ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: base.Add(2 * time.Hour),
		Status: model.StatusPending, NotifySubscribers: true, NotifyBeforeMinutes: 30,
	})
	h.store.Put(model.Schedule{
		ContentType: model.ContentVideo, ContentID: 42, ScheduledTime: base.Add(5 * time.Minute),
		Status: model.StatusPending, NotifyBeforeMinutes: 30,
	})

	sent, err := h.svc.DispatchUpcomingNotices(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = h.svc.DispatchUpcomingNotices(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, sent)

	assert.Equal(t, []int64{soon}, h.notes.upcoming)
}

func TestTemplates(t *testing.T) {
	h := newHarness(t, 42)
	ctx := context.Background()

	tpl, err := h.svc.CreateTemplate(ctx, TemplateParams{
		Name:              "Weekly episode",
		ContentTypes:      []model.ContentType{model.ContentEpisode, "video"},
		Priority:          intp(85),
		Recurrence:        model.RecurrenceWeekly,
		NotifySubscribers: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 85, tpl.Priority)
	assert.ElementsMatch(t, []string{"EPISODE", "VIDEO"}, []string(tpl.ContentTypes))

	_, err = h.svc.CreateTemplate(ctx, TemplateParams{Name: "Weekly episode"}, nil)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	_, err = h.svc.CreateTemplate(ctx, TemplateParams{Name: "  "}, nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	sc, err := h.svc.ApplyTemplate(ctx, tpl.ID, ApplyParams{
		ContentType:   model.ContentVideo,
		ContentID:     42,
		ScheduledTime: base.Add(time.Hour),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 85, sc.Priority)
	assert.Equal(t, model.RecurrenceWeekly, sc.Recurrence)
	assert.True(t, sc.NotifySubscribers)
	assert.Equal(t, "Weekly episode", sc.Title)

	_, err = h.svc.ApplyTemplate(ctx, tpl.ID, ApplyParams{
		ContentType: model.ContentSeries, ContentID: 42, ScheduledTime: base.Add(time.Hour),
	}, nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	list, err := h.svc.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, h.svc.DeleteTemplate(ctx, tpl.ID))
	_, err = h.svc.GetTemplate(ctx, tpl.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.True(t, errors.Is(h.svc.DeleteTemplate(ctx, tpl.ID), errors.ErrNotFound))
}

// cancelingStore rejects writes once ctx is done, the way a SQL driver does.
type cancelingStore struct {
	*fakestore.Store
}

func (c cancelingStore) TransitionSchedule(ctx context.Context, id int64, from, to model.Status, t model.Transition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.Store.TransitionSchedule(ctx, id, from, to, t)
}

func (c cancelingStore) CreateSchedule(ctx context.Context, sc *model.Schedule) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.Store.CreateSchedule(ctx, sc)
}

// hookedContent runs after once the wrapped publish returns.
type hookedContent struct {
	*fakestore.Content
	after func()
}

func (h hookedContent) Publish(ctx context.Context, id int64, strategy model.PublishStrategy) error {
	err := h.Content.Publish(ctx, id, strategy)
	h.after()
	return err
}

func registryWithVideo(t *testing.T, video content.Repository) (*content.Registry, *fakestore.Content) {
	t.Helper()
	_, fakes := fakestore.Registry(42)
	repos := make(map[model.ContentType]content.Repository, len(fakes))
	for ct, c := range fakes {
		repos[ct] = c
	}
	repos[model.ContentVideo] = video
	reg, err := content.NewRegistry(repos)
	require.NoError(t, err)
	return reg, fakes[model.ContentVideo]
}

func dailyAt(at time.Time) model.Schedule {
	hour, minute := at.Hour(), at.Minute()
	return model.Schedule{
		ContentType:      model.ContentVideo,
		ContentID:        42,
		ScheduledTime:    at,
		Status:           model.StatusPending,
		Priority:         60,
		PublishStrategy:  model.StrategyImmediate,
		Recurrence:       model.RecurrenceDaily,
		RecurrenceConfig: model.RecurrenceConfig{Hour: &hour, Minute: &minute},
	}
}

func TestExecuteFinishesWhenCallerCancelsAfterPublish(t *testing.T) {
	store := cancelingStore{fakestore.New()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	videos := fakestore.NewContent(42)
	registry, _ := registryWithVideo(t, hookedContent{Content: videos, after: cancel})
	logger := zerolog.Nop()
	clk := &clock{t: base}
	svc := NewService(store, registry, &notices{}, Options{Now: clk.Now, Logger: &logger})

	id := store.Put(dailyAt(base.Add(-time.Minute)))

	res, err := svc.ExecuteSchedule(ctx, id, nil, false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.NextScheduleID)

	sc, err := store.GetSchedule(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, sc.Status)

	next, err := store.GetSchedule(context.Background(), *res.NextScheduleID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, next.Status)
	assert.True(t, next.ScheduledTime.Equal(base.Add(-time.Minute).AddDate(0, 0, 1)))

	item, _ := videos.Get(42)
	assert.Equal(t, 1, item.Publishes)
}

func TestExecuteMarksFailedWhenCallerCancelsDuringPublish(t *testing.T) {
	store := cancelingStore{fakestore.New()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	videos := fakestore.NewContent(42)
	videos.SlowDown(5 * time.Second)
	registry, _ := registryWithVideo(t, videos)
	logger := zerolog.Nop()
	clk := &clock{t: base}
	svc := NewService(store, registry, &notices{}, Options{Now: clk.Now, Logger: &logger})

	id := store.Put(dailyAt(base.Add(-time.Minute)))
	time.AfterFunc(20*time.Millisecond, cancel)

	res, err := svc.ExecuteSchedule(ctx, id, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	sc, err := store.GetSchedule(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, sc.Status)
	assert.Len(t, store.All(), 1)
}

func TestExecuteRestoresRowReapedDuringPublish(t *testing.T) {
	store := fakestore.New()
	logger := zerolog.Nop()
	clk := &clock{t: base}
	notes := &notices{}

	var svc *Service
	videos := fakestore.NewContent(42)
	registry, _ := registryWithVideo(t, hookedContent{Content: videos, after: func() {
		// a concurrent sweep reaps the claim while the publish is finishing
		clk.Set(base.Add(31 * time.Minute))
		n, err := svc.ReapStale(context.Background(), 30*time.Minute)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	}})
	svc = NewService(store, registry, notes, Options{Now: clk.Now, Logger: &logger})

	sc := dailyAt(base.Add(-time.Minute))
	sc.NotifySubscribers = true
	id := store.Put(sc)

	res, err := svc.ExecuteSchedule(context.Background(), id, nil, false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, OutcomePublished, res.Outcome)
	require.NotNil(t, res.NextScheduleID)

	got, err := store.GetSchedule(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, got.Status)
	assert.Nil(t, got.ErrorMessage)
	require.NotNil(t, got.ActualPublishTime)
	assert.Equal(t, []int64{id}, notes.published)
}

func TestExecuteReportsStoredStateWhenRowTakenOver(t *testing.T) {
	store := fakestore.New()
	logger := zerolog.Nop()
	clk := &clock{t: base}
	notes := &notices{}

	var id int64
	videos := fakestore.NewContent(42)
	registry, _ := registryWithVideo(t, hookedContent{Content: videos, after: func() {
		ok, err := store.TransitionSchedule(context.Background(), id, model.StatusInProgress, model.StatusCanceled,
			model.Transition{At: base})
		require.NoError(t, err)
		require.True(t, ok)
	}})
	svc := NewService(store, registry, notes, Options{Now: clk.Now, Logger: &logger})

	sc := dailyAt(base.Add(-time.Minute))
	sc.NotifySubscribers = true
	id = store.Put(sc)

	res, err := svc.ExecuteSchedule(context.Background(), id, nil, false)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, OutcomeAlreadyProcessed, res.Outcome)
	assert.Contains(t, res.Message, "CANCELED")
	assert.Nil(t, res.NextScheduleID)

	assert.Len(t, store.All(), 1, "no next occurrence for a row that did not publish")
	assert.Empty(t, notes.published)
}
