package pageviews

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/store"
)

// PageView is one visit to an admin page. Rows are never updated.
type PageView struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id"`
	Username   *string   `json:"username,omitempty"`
	SessionKey string    `json:"session_key"`
	UserAgent  string    `json:"user_agent"`
	Path       string    `json:"path"`
	ViewedAt   time.Time `json:"viewed_at"`
}

// Stats summarizes the views of a single path.
type Stats struct {
	Total          int
	Last30         int
	Last7          int
	UniqueAdmins30 int
	UniqueSessions int
	Last           *PageView
}

type PageViewsRepository struct {
	db  *store.DB
	log *zap.Logger
}

func NewPageViewsRepository(db *store.DB, log *zap.Logger) *PageViewsRepository {
	return &PageViewsRepository{db: db, log: log}
}

func (r *PageViewsRepository) Record(ctx context.Context, pv *PageView) error {
	query := `
		INSERT INTO admin_page_views (user_id, session_key, user_agent, path)
		VALUES ($1, $2, $3, $4)
		RETURNING id, viewed_at`
	return r.db.Pool.QueryRow(ctx, query, pv.UserID, pv.SessionKey, pv.UserAgent, pv.Path).
		Scan(&pv.ID, &pv.ViewedAt)
}

func (r *PageViewsRepository) Stats(ctx context.Context, path string, since30, since7 time.Time) (Stats, error) {
	var s Stats
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN viewed_at >= $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN viewed_at >= $3 THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT user_id) FILTER (WHERE viewed_at >= $2 AND user_id IS NOT NULL),
			COUNT(DISTINCT session_key) FILTER (WHERE viewed_at >= $2 AND session_key <> '')
		FROM admin_page_views
		WHERE path = $1`, path, since30, since7).
		Scan(&s.Total, &s.Last30, &s.Last7, &s.UniqueAdmins30, &s.UniqueSessions)
	if err != nil {
		return s, err
	}

	last := &PageView{}
	err = r.db.Pool.QueryRow(ctx, `
		SELECT v.id, v.user_id, u.username, v.session_key, v.user_agent, v.path, v.viewed_at
		FROM admin_page_views v
		LEFT JOIN users u ON u.id = v.user_id
		WHERE v.path = $1
		ORDER BY v.viewed_at DESC, v.id DESC
		LIMIT 1`, path).
		Scan(&last.ID, &last.UserID, &last.Username, &last.SessionKey, &last.UserAgent, &last.Path, &last.ViewedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return s, nil
	case err != nil:
		return s, err
	}
	s.Last = last
	return s, nil
}
