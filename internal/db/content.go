package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/content"
	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// contentTable maps a content type onto the platform table that owns it.
func contentTable(ct model.ContentType) string {
	switch ct {
	case model.ContentVideo:
		return "videos"
	case model.ContentSeries:
		return "series"
	case model.ContentSeason:
		return "seasons"
	case model.ContentEpisode:
		return "episodes"
	}
	return ""
}

// ContentRepository publishes rows of one platform content table.
type ContentRepository struct {
	db    *sqlx.DB
	ct    model.ContentType
	table string
}

var _ content.Repository = (*ContentRepository)(nil)

func NewContentRepository(db *sqlx.DB, ct model.ContentType) *ContentRepository {
	return &ContentRepository{db: db, ct: ct, table: contentTable(ct)}
}

// ContentRepositories returns one repository per supported content type.
func ContentRepositories(db *sqlx.DB) map[model.ContentType]content.Repository {
	out := make(map[model.ContentType]content.Repository, len(model.ContentTypes))
	for _, ct := range model.ContentTypes {
		out[ct] = NewContentRepository(db, ct)
	}
	return out
}

func (r *ContentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM ` + r.table + ` WHERE id = $1);`
	if err := r.db.GetContext(ctx, &exists, q, id); err != nil {
		log.Error().Err(err).Str("content_type", string(r.ct)).Int64("content_id", id).Msg("content exists check failed")
		return false, classify(err, "check %s %d", r.ct, id)
	}
	return exists, nil
}

// Publish marks the content item published. Publishing an already published
// item keeps its original published_at.
func (r *ContentRepository) Publish(ctx context.Context, id int64, strategy model.PublishStrategy) error {
	q := `
	UPDATE ` + r.table + `
	   SET status = 'published',
	       published_at = COALESCE(published_at, now()),
	       publish_strategy = $2,
	       updated_at = now()
	 WHERE id = $1;`

	res, err := r.db.ExecContext(ctx, q, id, strategy)
	if err != nil {
		log.Error().Err(err).Str("content_type", string(r.ct)).Int64("content_id", id).Msg("content publish failed")
		return classify(err, "publish %s %d", r.ct, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "publish %s %d", r.ct, id)
	}
	if n == 0 {
		return errors.NotFoundf("%s %d no longer exists", r.ct, id)
	}
	return nil
}
