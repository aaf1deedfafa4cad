// exposes a Store interface that is passed to the scheduling service and API handlers
package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// Store is the persistence contract of the scheduler. It holds no business
// rules: validation and state machine decisions live in the scheduling
// service, the store only guarantees that conditional transitions are atomic.
type Store interface {
	// schedule functions
	CreateSchedule(ctx context.Context, s *model.Schedule) (int64, error)
	GetSchedule(ctx context.Context, id int64) (*model.Schedule, error)
	UpdateSchedule(ctx context.Context, id int64, u model.ScheduleUpdate) error
	ListSchedules(ctx context.Context, f model.ScheduleFilter, skip, limit int) ([]model.Schedule, int, error)
	CountSchedules(ctx context.Context, f model.ScheduleFilter) (int, error)
	DueSchedules(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error)

	// TransitionSchedule moves a row from one status to another and reports
	// whether this caller won: it succeeds only when the row was still in
	// from. It is the claim primitive for concurrent sweeps.
	TransitionSchedule(ctx context.Context, id int64, from, to model.Status, t model.Transition) (bool, error)
	ExpireSchedules(ctx context.Context, scheduledBefore time.Time) (int64, error)
	ReapStaleClaims(ctx context.Context, claimedBefore time.Time, message string) (int64, error)

	// upcoming notices
	UpcomingNotices(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error)
	MarkNoticeSent(ctx context.Context, id int64, at time.Time) (bool, error)

	// template functions
	CreateTemplate(ctx context.Context, t *model.ScheduleTemplate) (int64, error)
	GetTemplate(ctx context.Context, id int64) (*model.ScheduleTemplate, error)
	ListTemplates(ctx context.Context) ([]model.ScheduleTemplate, error)
	DeleteTemplate(ctx context.Context, id int64) error
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(db *sqlx.DB) Store {
	return &pgStore{db: db}
}
