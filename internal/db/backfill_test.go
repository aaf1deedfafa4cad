package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

func newMockConn(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestBackfillLegacyPublishAt(t *testing.T) {
	conn, mock := newMockConn(t)

	created := map[model.ContentType]int64{
		model.ContentVideo:   3,
		model.ContentSeries:  0,
		model.ContentSeason:  1,
		model.ContentEpisode: 5,
	}
	tables := map[model.ContentType]string{
		model.ContentVideo:   "videos",
		model.ContentSeries:  "series",
		model.ContentSeason:  "seasons",
		model.ContentEpisode: "episodes",
	}

	mock.ExpectBegin()
	for _, ct := range model.ContentTypes {
		mock.ExpectExec(`(?s)INSERT INTO publish_schedules.*FROM ` + tables[ct] + ` c`).
			WithArgs(string(ct), 70).
			WillReturnResult(sqlmock.NewResult(0, created[ct]))
		mock.ExpectExec(`UPDATE ` + tables[ct] + ` c\s+SET publish_at = NULL`).
			WithArgs(string(ct)).
			WillReturnResult(sqlmock.NewResult(0, created[ct]))
	}
	mock.ExpectCommit()

	got, err := BackfillLegacyPublishAt(context.Background(), conn, 70)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillRollsBackOnError(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO publish_schedules.*FROM videos c`).
		WithArgs("VIDEO", 50).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE videos c`).
		WithArgs("VIDEO").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`(?s)INSERT INTO publish_schedules.*FROM series c`).
		WillReturnError(&pq.Error{Code: "57P01", Message: "terminating connection"})
	mock.ExpectRollback()

	got, err := BackfillLegacyPublishAt(context.Background(), conn, model.DefaultPriority)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.IsTransient(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
