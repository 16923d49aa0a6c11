package applications

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/store"
)

// Application is an inbound submission from the Work With Us form.
type Application struct {
	ID         int64     `json:"id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Experience string    `json:"experience"`
	CreatedAt  time.Time `json:"created_at"`
	Reviewed   bool      `json:"reviewed"`
}

type Filter struct {
	Reviewed *bool
	Query    string
	Limit    int
	Offset   int
}

type ApplicationsRepository struct {
	db  *store.DB
	log *zap.Logger
}

func NewApplicationsRepository(db *store.DB, log *zap.Logger) *ApplicationsRepository {
	return &ApplicationsRepository{db: db, log: log}
}

func (r *ApplicationsRepository) Create(ctx context.Context, a *Application) (*Application, error) {
	query := `
		INSERT INTO applications (full_name, email, phone, experience)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, reviewed`

	err := r.db.Pool.QueryRow(ctx, query, a.FullName, a.Email, a.Phone, a.Experience).
		Scan(&a.ID, &a.CreatedAt, &a.Reviewed)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *ApplicationsRepository) List(ctx context.Context, f Filter) ([]*Application, error) {
	query := `
		SELECT id, full_name, email, phone, experience, created_at, reviewed
		FROM applications
		WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if f.Reviewed != nil {
		query += fmt.Sprintf(" AND reviewed = $%d", argIndex)
		args = append(args, *f.Reviewed)
		argIndex++
	}
	if f.Query != "" {
		query += fmt.Sprintf(` AND (full_name ILIKE $%[1]d ESCAPE '\' OR email ILIKE $%[1]d ESCAPE '\' OR phone ILIKE $%[1]d ESCAPE '\' OR experience ILIKE $%[1]d ESCAPE '\')`, argIndex)
		args = append(args, store.Contains(f.Query))
		argIndex++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Application
	for rows.Next() {
		a := &Application{}
		if err := rows.Scan(&a.ID, &a.FullName, &a.Email, &a.Phone, &a.Experience, &a.CreatedAt, &a.Reviewed); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ApplicationsRepository) MarkReviewed(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE applications SET reviewed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
