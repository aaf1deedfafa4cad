package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// openTestDB connects to TEST_DATABASE_URL and applies the migrations.
// Tests using it are skipped when the variable is unset.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	conn, err := Connect(url, 1, 0)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, RunMigrations(conn, "../../migrations"))
	_, err = conn.Exec(`TRUNCATE publish_schedules, publish_schedule_templates RESTART IDENTITY;`)
	require.NoError(t, err)
	return conn
}

func TestStoreIntegration(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sc := &model.Schedule{
		ContentType:     model.ContentVideo,
		ContentID:       1,
		ScheduledTime:   now.Add(-time.Minute),
		Status:          model.StatusPending,
		Priority:        80,
		PublishStrategy: model.StrategyImmediate,
		Recurrence:      model.RecurrenceOnce,
		Title:           "integration",
	}
	id, err := store.CreateSchedule(ctx, sc)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		got, err := store.GetSchedule(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Equal(t, 80, got.Priority)
		assert.True(t, got.ScheduledTime.Equal(sc.ScheduledTime))
	})

	t.Run("due", func(t *testing.T) {
		due, err := store.DueSchedules(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, id, due[0].ID)
	})

	t.Run("exactly one concurrent claim wins", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.TransitionSchedule(ctx, id, model.StatusPending, model.StatusInProgress, model.Transition{At: now})
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)

		got, err := store.GetSchedule(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, got.Status)
		require.NotNil(t, got.ClaimedAt)
	})

	t.Run("statistics filter", func(t *testing.T) {
		n, err := store.CountSchedules(ctx, model.ScheduleFilter{Statuses: []model.Status{model.StatusInProgress}})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
