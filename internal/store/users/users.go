package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/store"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"` // Don't expose in JSON
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	DateJoined   time.Time `json:"date_joined"`
}

// FullName falls back to the username when no name was given.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

const userColumns = `id, username, email, first_name, last_name, password_hash, is_active, is_superuser, date_joined`

type UsersRepository struct {
	db  *store.DB
	log *zap.Logger
}

func NewUsersRepository(db *store.DB, log *zap.Logger) *UsersRepository {
	return &UsersRepository{db: db, log: log}
}

func (r *UsersRepository) Create(ctx context.Context, user *User) (*User, error) {
	query := `
		INSERT INTO users (username, email, first_name, last_name, password_hash, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, date_joined`

	err := r.db.Pool.QueryRow(ctx, query,
		user.Username, user.Email, user.FirstName, user.LastName,
		user.PasswordHash, user.IsActive, user.IsSuperuser).
		Scan(&user.ID, &user.DateJoined)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	return user, nil
}

func (r *UsersRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UsersRepository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	user := &User{}
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName,
		&user.PasswordHash, &user.IsActive, &user.IsSuperuser, &user.DateJoined,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UsersRepository) UpdateProfile(ctx context.Context, userID int64, firstName, lastName, email string) error {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, email = $3
		WHERE id = $4`

	result, err := r.db.Pool.Exec(ctx, query, firstName, lastName, email, userID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// EnsureSuperuser creates the bootstrap administrator unless the username is taken.
// It reports whether a row was inserted.
func (r *UsersRepository) EnsureSuperuser(ctx context.Context, username, email, passwordHash string) (bool, error) {
	result, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (username, email, first_name, last_name, password_hash, is_active, is_superuser)
		VALUES ($1, $2, 'Admin', 'User', $3, TRUE, TRUE)
		ON CONFLICT (username) DO NOTHING`, username, email, passwordHash)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *UsersRepository) IsActiveSuperuser(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT is_active AND is_superuser FROM users WHERE id = $1`, id).Scan(&ok)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return ok, err
}
