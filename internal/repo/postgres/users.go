package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spendtrack/spendtrack/internal/domain/user"
	"github.com/spendtrack/spendtrack/internal/observability"
)

var ErrEmailAlreadyUsed = errors.New("email already in use")

const userColumns = `id, name, email, password_hash, google_id, is_google_user, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			email,
		).Scan(scanTargets(&u)...)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		).Scan(scanTargets(&u)...)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// GetByEmailOrGoogleID matches a local account on either key so a Google
// login finds the row whether the user registered with a password first or
// signed in with Google on another device.
func (r *UsersRepo) GetByEmailOrGoogleID(ctx context.Context, email, googleID string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email_or_google_id", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1 OR google_id = $2`,
			email, googleID,
		).Scan(scanTargets(&u)...)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// Create checks email uniqueness up front so a duplicate registers as a
// client error. The unique constraint still backstops the pre-check race.
func (r *UsersRepo) Create(ctx context.Context, name, email string, passwordHash, googleID *string, isGoogleUser bool) (user.User, error) {
	var exists bool

	err := r.observe("users.create.duplicate_check", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`,
			email,
		).Scan(&exists)
	})

	if err != nil {
		return user.User{}, err
	}

	if exists {
		return user.User{}, ErrEmailAlreadyUsed
	}

	var u user.User

	err = r.observe("users.create.insert", func() error {
		return r.pool.QueryRow(
			ctx,
			`INSERT INTO users (name, email, password_hash, google_id, is_google_user, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			 RETURNING `+userColumns,
			name, email, passwordHash, googleID, isGoogleUser,
		).Scan(scanTargets(&u)...)
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, ErrEmailAlreadyUsed
		}

		return user.User{}, err
	}

	return u, nil
}

// AttachGoogleIdentity links a Google subject id to an existing account and
// refreshes the display name reported by Google.
func (r *UsersRepo) AttachGoogleIdentity(ctx context.Context, id int64, googleID, name string) error {
	return r.observe("users.attach_google_identity", func() error {
		tag, err := r.pool.Exec(
			ctx,
			`UPDATE users
				SET google_id = $2,
						name = $3,
						is_google_user = TRUE,
						updated_at = NOW()
			 WHERE id = $1`,
			id, googleID, name,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}

func scanTargets(u *user.User) []interface{} {
	return []interface{}{
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.GoogleID,
		&u.IsGoogleUser,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
}
