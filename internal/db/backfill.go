package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// BackfillLegacyPublishAt moves the legacy publish_at column of every content
// table into PENDING schedules and clears it. Content that already has a
// PENDING or IN_PROGRESS schedule is left alone, so running it twice is harmless.
// It returns the number of schedules created per content type.
func BackfillLegacyPublishAt(ctx context.Context, conn *sqlx.DB, priority int) (map[model.ContentType]int64, error) {
	created := make(map[model.ContentType]int64, len(model.ContentTypes))

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classify(err, "begin backfill")
	}
	defer tx.Rollback()

	for _, ct := range model.ContentTypes {
		table := contentTable(ct)

		insert := `
		INSERT INTO publish_schedules
		  (content_type, content_id, scheduled_time, status, priority, publish_strategy,
		   recurrence, recurrence_config, title, created_at, updated_at)
		SELECT $1, c.id, c.publish_at, 'PENDING', $2, 'IMMEDIATE', 'ONCE', '{}'::jsonb,
		       'backfilled from publish_at', now(), now()
		  FROM ` + table + ` c
		 WHERE c.publish_at IS NOT NULL
		   AND c.status <> 'published'
		   AND NOT EXISTS (
		       SELECT 1 FROM publish_schedules s
		        WHERE s.content_type = $1 AND s.content_id = c.id
		          AND s.status IN ('PENDING', 'IN_PROGRESS'));`

		res, err := tx.ExecContext(ctx, insert, ct, priority)
		if err != nil {
			log.Error().Err(err).Str("table", table).Msg("backfill insert failed")
			return nil, classify(err, "backfill %s", table)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, classify(err, "backfill %s", table)
		}
		created[ct] = n

		clear := `
		UPDATE ` + table + ` c
		   SET publish_at = NULL
		 WHERE c.publish_at IS NOT NULL
		   AND EXISTS (
		       SELECT 1 FROM publish_schedules s
		        WHERE s.content_type = $1 AND s.content_id = c.id
		          AND s.status IN ('PENDING', 'IN_PROGRESS'));`
		if _, err := tx.ExecContext(ctx, clear, ct); err != nil {
			log.Error().Err(err).Str("table", table).Msg("backfill clear failed")
			return nil, classify(err, "clear legacy publish_at on %s", table)
		}

		log.Info().Str("table", table).Int64("created", n).Msg("backfilled legacy publish_at")
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err, "commit backfill")
	}
	return created, nil
}
