package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/store"
)

// Worker is a professional cleaner that clients can request.
type Worker struct {
	ID              int64             `json:"id"`
	Name            string            `json:"name"`
	Headline        string            `json:"headline"`
	ServiceFocus    store.ServiceType `json:"service_focus"`
	ExperienceYears int               `json:"experience_years"`
	PhotoURL        string            `json:"photo_url"`
	Bio             string            `json:"bio"`
	ContactEmail    string            `json:"contact_email"`
	PhoneNumber     string            `json:"phone_number"`
	IsActive        bool              `json:"is_active"`
}

// Filter narrows List. Zero values mean "no constraint".
type Filter struct {
	ServiceFocus string
	Active       *bool
	// Name matches the worker name only; Query also searches headline, email and phone.
	Name  string
	Query string
}

const workerColumns = `id, name, headline, service_focus, experience_years, photo_url, bio, contact_email, phone_number, is_active`

type WorkersRepository struct {
	db  *store.DB
	log *zap.Logger
}

func NewWorkersRepository(db *store.DB, log *zap.Logger) *WorkersRepository {
	return &WorkersRepository{db: db, log: log}
}

func scanWorker(row store.Scanner) (*Worker, error) {
	w := &Worker{}
	err := row.Scan(&w.ID, &w.Name, &w.Headline, &w.ServiceFocus, &w.ExperienceYears,
		&w.PhotoURL, &w.Bio, &w.ContactEmail, &w.PhoneNumber, &w.IsActive)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *WorkersRepository) Create(ctx context.Context, w *Worker) (*Worker, error) {
	query := `
		INSERT INTO workers (name, headline, service_focus, experience_years, photo_url, bio, contact_email, phone_number, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		w.Name, w.Headline, string(w.ServiceFocus), w.ExperienceYears, w.PhotoURL,
		w.Bio, w.ContactEmail, w.PhoneNumber, w.IsActive).Scan(&w.ID)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *WorkersRepository) Get(ctx context.Context, id int64) (*Worker, error) {
	w, err := scanWorker(r.db.Pool.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

func (r *WorkersRepository) List(ctx context.Context, f Filter) ([]*Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if f.ServiceFocus != "" {
		query += fmt.Sprintf(" AND service_focus = $%d", argIndex)
		args = append(args, f.ServiceFocus)
		argIndex++
	}
	if f.Active != nil {
		query += fmt.Sprintf(" AND is_active = $%d", argIndex)
		args = append(args, *f.Active)
		argIndex++
	}
	if f.Name != "" {
		query += fmt.Sprintf(` AND name ILIKE $%d ESCAPE '\'`, argIndex)
		args = append(args, store.Contains(f.Name))
		argIndex++
	}
	if f.Query != "" {
		query += fmt.Sprintf(` AND (name ILIKE $%[1]d ESCAPE '\' OR headline ILIKE $%[1]d ESCAPE '\' OR contact_email ILIKE $%[1]d ESCAPE '\' OR phone_number ILIKE $%[1]d ESCAPE '\')`, argIndex)
		args = append(args, store.Contains(f.Query))
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *WorkersRepository) Update(ctx context.Context, w *Worker) error {
	query := `
		UPDATE workers
		SET name = $1, headline = $2, service_focus = $3, experience_years = $4, photo_url = $5,
		    bio = $6, contact_email = $7, phone_number = $8, is_active = $9
		WHERE id = $10`

	result, err := r.db.Pool.Exec(ctx, query,
		w.Name, w.Headline, string(w.ServiceFocus), w.ExperienceYears, w.PhotoURL,
		w.Bio, w.ContactEmail, w.PhoneNumber, w.IsActive, w.ID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the worker; bookings keep their rows with worker_id set to NULL.
func (r *WorkersRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM workers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
