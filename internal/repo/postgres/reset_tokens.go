package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petdor/identity/internal/observability"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

type ResetTokenRow struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

type ResetTokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewResetTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *ResetTokensRepo {
	return &ResetTokensRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *ResetTokensRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *ResetTokensRepo) Create(ctx context.Context, row ResetTokenRow) error {
	return r.observe("password_resets.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO password_resets (id, user_id, token, expires_at, used, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			`,
			row.ID, row.UserID, row.Token, row.ExpiresAt, row.Used, row.CreatedAt,
		)
		return err
	})
}

// CountSince counts tokens issued for the user after the cutoff. The reset
// rate limit queries this instead of keeping a counter, so the window never
// drifts from what was actually inserted.
func (r *ResetTokensRepo) CountSince(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	var n int

	err := r.observe("password_resets.count_since", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*)
			FROM password_resets
			WHERE user_id = $1 AND created_at > $2`,
			userID, cutoff,
		).Scan(&n)
	})

	if err != nil {
		return 0, err
	}

	return n, nil
}

// Consume is the sole arbiter of redemption: one conditional UPDATE, no
// read-then-write. Two racing confirms cannot both see the row flip.
// Returns the owning user id, or ok=false when nothing was consumable.
func (r *ResetTokensRepo) Consume(ctx context.Context, token string, now time.Time) (userID string, ok bool, err error) {
	err = r.observe("password_resets.consume", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE password_resets
			SET used = TRUE
			WHERE token = $1 AND NOT used AND expires_at > $2
			RETURNING user_id`,
			token, now,
		).Scan(&userID)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}

		return "", false, err
	}

	return userID, true, nil
}

// GetByToken is read-only; the reset service uses it purely to classify why a
// Consume came back empty (unknown vs used vs expired).
func (r *ResetTokensRepo) GetByToken(ctx context.Context, token string) (ResetTokenRow, error) {
	var row ResetTokenRow

	err := r.observe("password_resets.get_by_token", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, user_id, token, expires_at, used, created_at
			FROM password_resets
			WHERE token = $1`,
			token,
		).Scan(
			&row.ID,
			&row.UserID,
			&row.Token,
			&row.ExpiresAt,
			&row.Used,
			&row.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResetTokenRow{}, ErrResetTokenNotFound
		}

		return ResetTokenRow{}, err
	}

	return row, nil
}
