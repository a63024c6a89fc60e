package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petdor/identity/internal/domain/user"
	"github.com/petdor/identity/internal/observability"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailAlreadyUsed = errors.New("email already used")
)

const uniqueViolation = "23505"

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

// NormalizeEmail is the single write/lookup form for emails: lowercased and
// trimmed. The unique index works on this form, so case variants collide.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const userColumns = `id, name, email, password_hash, role, active, is_admin,
	email_confirmed, created_at, deactivated_at, deactivation_reason`

func (r *UsersRepo) scanUser(ctx context.Context, op, query string, args ...any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, query, args...).Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.PasswordHash,
			&u.Role,
			&u.Active,
			&u.IsAdmin,
			&u.EmailConfirmed,
			&u.CreatedAt,
			&u.DeactivatedAt,
			&u.DeactivationReason,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, name, email, passwordHash, role string) (user.User, error) {
	u := user.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, role, active, is_admin, email_confirmed, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Active, u.IsAdmin, u.EmailConfirmed, u.CreatedAt,
		)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError

		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.User{}, ErrEmailAlreadyUsed
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.scanUser(ctx, "users.get_by_email",
		`SELECT `+userColumns+`
         FROM users
         WHERE email = $1`,
		NormalizeEmail(email),
	)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.scanUser(ctx, "users.get_by_id",
		`SELECT `+userColumns+`
         FROM users
         WHERE id = $1`,
		id,
	)
}

// UpdateProfile changes name and/or email; nil means leave the field alone.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, name, email *string) error {
	if name == nil && email == nil {
		return nil
	}

	var normalized *string

	if email != nil {
		n := NormalizeEmail(*email)
		normalized = &n
	}

	var tag pgconn.CommandTag

	err := r.observe("users.update_profile", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
			SET name = COALESCE($2, name),
			    email = COALESCE($3, email)
			WHERE id = $1`,
			id, name, normalized,
		)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError

		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailAlreadyUsed
		}

		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id string, newHash string) error {
	return r.execExpectingRow(ctx, "users.update_password",
		`UPDATE users SET password_hash = $2 WHERE id = $1`,
		id, newHash,
	)
}

// SetActive flips the soft-delete flag. Deactivation stamps the time and the
// reason; reactivation clears both, keeping the invariant that they are set
// iff the account is inactive.
func (r *UsersRepo) SetActive(ctx context.Context, id string, active bool, reason *string, at time.Time) error {
	if active {
		return r.execExpectingRow(ctx, "users.reactivate",
			`UPDATE users
			SET active = TRUE, deactivated_at = NULL, deactivation_reason = NULL
			WHERE id = $1`,
			id,
		)
	}

	return r.execExpectingRow(ctx, "users.deactivate",
		`UPDATE users
		SET active = FALSE, deactivated_at = $2, deactivation_reason = $3
		WHERE id = $1`,
		id, at, reason,
	)
}

func (r *UsersRepo) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	return r.execExpectingRow(ctx, "users.set_admin",
		`UPDATE users SET is_admin = $2 WHERE id = $1`,
		id, isAdmin,
	)
}

func (r *UsersRepo) SetEmailConfirmed(ctx context.Context, id string, confirmed bool) error {
	return r.execExpectingRow(ctx, "users.set_email_confirmed",
		`UPDATE users SET email_confirmed = $2 WHERE id = $1`,
		id, confirmed,
	)
}

func (r *UsersRepo) execExpectingRow(ctx context.Context, op, query string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, query, args...)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}
