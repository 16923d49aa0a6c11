package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/store"
)

type Booking struct {
	ID             int64                `json:"id"`
	UserID         int64                `json:"user_id"`
	Username       string               `json:"username,omitempty"`
	ServiceType    store.ServiceType    `json:"service_type"`
	ScheduledFor   time.Time            `json:"scheduled_for"`
	Address        string               `json:"address"`
	Notes          string               `json:"notes"`
	WorkerID       *int64               `json:"worker_id"`
	WorkerName     *string              `json:"worker_name,omitempty"`
	RushCleaning   bool                 `json:"rush_cleaning"`
	Status         store.BookingStatus  `json:"status"`
	WorkerResponse store.WorkerResponse `json:"worker_response"`
	CreatedAt      time.Time            `json:"created_at"`
}

// String renders e.g. "Deep Cleaning on 2025-03-04 10:00 with Ana".
func (b *Booking) String() string {
	s := fmt.Sprintf("%s on %s", b.ServiceType.Label(), b.ScheduledFor.Format("2006-01-02 15:04"))
	if b.WorkerName != nil {
		s += " with " + *b.WorkerName
	}
	return s
}

// Filter drives the admin booking list.
type Filter struct {
	Status         string
	WorkerResponse string
	ServiceType    string
	Query          string
	Limit          int
	Offset         int
}

// ScheduleQuery selects one worker's bookings inside [From, Before).
type ScheduleQuery struct {
	WorkerID int64
	From     *time.Time
	Before   *time.Time
	Desc     bool
	Limit    int
}

// Update carries the fields an administrator may change. Nil means unchanged.
type Update struct {
	Status         *store.BookingStatus
	WorkerID       *int64
	ClearWorker    bool
	WorkerResponse *store.WorkerResponse
}

const bookingSelect = `
		SELECT b.id, b.user_id, u.username, b.service_type, b.scheduled_for, b.address, b.notes,
		       b.worker_id, w.name, b.rush_cleaning, b.status, b.worker_response, b.created_at
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		LEFT JOIN workers w ON w.id = b.worker_id`

type BookingsRepository struct {
	db  *store.DB
	log *zap.Logger
}

func NewBookingsRepository(db *store.DB, log *zap.Logger) *BookingsRepository {
	return &BookingsRepository{db: db, log: log}
}

func scanBooking(row store.Scanner) (*Booking, error) {
	b := &Booking{}
	err := row.Scan(
		&b.ID, &b.UserID, &b.Username, &b.ServiceType, &b.ScheduledFor, &b.Address, &b.Notes,
		&b.WorkerID, &b.WorkerName, &b.RushCleaning, &b.Status, &b.WorkerResponse, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BookingsRepository) collect(ctx context.Context, query string, args ...any) ([]*Booking, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BookingsRepository) getOne(ctx context.Context, query string, args ...any) (*Booking, error) {
	b, err := scanBooking(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// Create inserts the booking with the caller-supplied created_at so the rush
// flag and the stored timestamp agree.
func (r *BookingsRepository) Create(ctx context.Context, b *Booking) (*Booking, error) {
	query := `
		INSERT INTO bookings (user_id, service_type, scheduled_for, address, notes, worker_id,
		                      rush_cleaning, status, worker_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		b.UserID, string(b.ServiceType), b.ScheduledFor, b.Address, b.Notes, b.WorkerID,
		b.RushCleaning, string(b.Status), string(b.WorkerResponse), b.CreatedAt).Scan(&b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BookingsRepository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	return r.getOne(ctx, bookingSelect+` WHERE b.id = $1`, id)
}

// GetForUser returns nil when the booking does not exist or belongs to someone else.
func (r *BookingsRepository) GetForUser(ctx context.Context, id, userID int64) (*Booking, error) {
	return r.getOne(ctx, bookingSelect+` WHERE b.id = $1 AND b.user_id = $2`, id, userID)
}

func (r *BookingsRepository) ListByUser(ctx context.Context, userID int64) ([]*Booking, error) {
	return r.collect(ctx, bookingSelect+` WHERE b.user_id = $1 ORDER BY b.scheduled_for, b.id`, userID)
}

func (r *BookingsRepository) UpdateStatus(ctx context.Context, id int64, status store.BookingStatus) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE bookings SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BookingsRepository) Search(ctx context.Context, f Filter) ([]*Booking, error) {
	query := bookingSelect + ` WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if f.Status != "" {
		query += fmt.Sprintf(" AND b.status = $%d", argIndex)
		args = append(args, f.Status)
		argIndex++
	}
	if f.WorkerResponse != "" {
		query += fmt.Sprintf(" AND b.worker_response = $%d", argIndex)
		args = append(args, f.WorkerResponse)
		argIndex++
	}
	if f.ServiceType != "" {
		query += fmt.Sprintf(" AND b.service_type = $%d", argIndex)
		args = append(args, f.ServiceType)
		argIndex++
	}
	if f.Query != "" {
		query += fmt.Sprintf(` AND (u.username ILIKE $%[1]d ESCAPE '\' OR b.address ILIKE $%[1]d ESCAPE '\' OR b.service_type ILIKE $%[1]d ESCAPE '\')`, argIndex)
		args = append(args, store.Contains(f.Query))
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY b.scheduled_for DESC, b.id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, f.Limit, f.Offset)

	return r.collect(ctx, query, args...)
}

// ApplyUpdate changes the administrator-editable fields and returns the fresh row.
func (r *BookingsRepository) ApplyUpdate(ctx context.Context, id int64, u Update) (*Booking, error) {
	sets := []string{}
	args := []interface{}{}
	argIndex := 1

	if u.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(*u.Status))
		argIndex++
	}
	if u.ClearWorker {
		sets = append(sets, "worker_id = NULL")
	} else if u.WorkerID != nil {
		sets = append(sets, fmt.Sprintf("worker_id = $%d", argIndex))
		args = append(args, *u.WorkerID)
		argIndex++
	}
	if u.WorkerResponse != nil {
		sets = append(sets, fmt.Sprintf("worker_response = $%d", argIndex))
		args = append(args, string(*u.WorkerResponse))
		argIndex++
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	query := "UPDATE bookings SET " + strings.Join(sets, ", ") + fmt.Sprintf(" WHERE id = $%d", argIndex)
	args = append(args, id)

	var b *Booking
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		b, err = scanBooking(tx.QueryRow(ctx, bookingSelect+` WHERE b.id = $1`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BookingsRepository) ListForWorker(ctx context.Context, q ScheduleQuery) ([]*Booking, error) {
	query := bookingSelect + ` WHERE b.worker_id = $1`
	args := []interface{}{q.WorkerID}
	argIndex := 2

	if q.From != nil {
		query += fmt.Sprintf(" AND b.scheduled_for >= $%d", argIndex)
		args = append(args, *q.From)
		argIndex++
	}
	if q.Before != nil {
		query += fmt.Sprintf(" AND b.scheduled_for < $%d", argIndex)
		args = append(args, *q.Before)
		argIndex++
	}
	if q.Desc {
		query += ` ORDER BY b.scheduled_for DESC, b.id DESC`
	} else {
		query += ` ORDER BY b.scheduled_for, b.id`
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
	}

	return r.collect(ctx, query, args...)
}

// ListUpcoming returns bookings scheduled within [from, to], earliest first.
func (r *BookingsRepository) ListUpcoming(ctx context.Context, from, to time.Time, limit int) ([]*Booking, error) {
	return r.collect(ctx, bookingSelect+`
		WHERE b.scheduled_for BETWEEN $1 AND $2
		ORDER BY b.scheduled_for, b.id
		LIMIT $3`, from, to, limit)
}

// ListAssignedBetween returns assigned bookings within [from, to] grouped by worker name.
func (r *BookingsRepository) ListAssignedBetween(ctx context.Context, from, to time.Time) ([]*Booking, error) {
	return r.collect(ctx, bookingSelect+`
		WHERE b.worker_id IS NOT NULL AND b.scheduled_for BETWEEN $1 AND $2
		ORDER BY w.name, b.scheduled_for, b.id`, from, to)
}

// ListCreatedBetween feeds the spreadsheet export: created_at in [from, to).
func (r *BookingsRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*Booking, error) {
	return r.collect(ctx, bookingSelect+`
		WHERE b.created_at >= $1 AND b.created_at < $2
		ORDER BY b.created_at, b.id`, from, to)
}
