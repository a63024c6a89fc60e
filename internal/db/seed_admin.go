package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petdor/identity/internal/config"
	"github.com/petdor/identity/internal/security"
)

// EnsureAdminUser creates the configured admin account on first boot.
// Idempotent: an existing row with the same email wins.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, active, is_admin, email_confirmed, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, TRUE, TRUE, TRUE, NOW())
		`,
		cfg.AdminName, email, hash, cfg.AdminRole,
	)

	return err
}
