package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/destroydevs/TikFetchBot/internal/model"
	"github.com/destroydevs/TikFetchBot/migrations"
)

// PgUserRepository stores users in Postgres through a bounded pgx pool.
// It relies on single-row UPDATE atomicity instead of an application lock.
type PgUserRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewPgUserRepository connects, verifies the connection and creates the schema.
func NewPgUserRepository(ctx context.Context, databaseURL string, poolSize int, logger *slog.Logger, opts ...Option) (*PgUserRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if poolSize > 0 {
		cfg.MaxConns = int32(poolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	r := &PgUserRepository{
		pool:   pool,
		logger: logger.With("component", "repo_pg"),
		now:    o.now,
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ApplyMigrations(ctx, pool, migrations.Files); err != nil {
		pool.Close()
		return nil, err
	}
	r.logger.Info("postgres store ready", "max_conns", cfg.MaxConns)

	return r, nil
}

func (r *PgUserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, storageErr("check user", err)
	}
	return exists, nil
}

func (r *PgUserRepository) Create(ctx context.Context, user model.User) error {
	const q = `
INSERT INTO users (id, chat_id, name, requests_amount, "timestamp", register_timestamp)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING;
`
	ct, err := r.pool.Exec(ctx, q,
		user.ID,
		user.ChatID,
		user.Name,
		user.RequestCount,
		user.LastSeenAt,
		user.RegisteredAt,
	)
	if err != nil {
		return storageErr("insert user", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *PgUserRepository) Fetch(ctx context.Context, id int64) (*model.User, error) {
	const q = `
SELECT id, chat_id, name, requests_amount, "timestamp", register_timestamp
FROM users
WHERE id = $1;
`
	var u model.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.ChatID, &u.Name, &u.RequestCount, &u.LastSeenAt, &u.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("select user", err)
	}
	return &u, nil
}

func (r *PgUserRepository) SetField(ctx context.Context, id int64, field model.Field, raw string) error {
	value, err := checkField(field, raw)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE users SET %s = $1 WHERE id = $2`, pgx.Identifier{string(field)}.Sanitize())
	ct, err := r.pool.Exec(ctx, q, value, id)
	if err != nil {
		return storageErr(fmt.Sprintf("update %s", field), err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) IncrementRequestCount(ctx context.Context, id int64) error {
	const q = `
UPDATE users SET
    requests_amount = requests_amount + 1,
    "timestamp" = $1
WHERE id = $2;
`
	ct, err := r.pool.Exec(ctx, q, model.Millis(r.now()), id)
	if err != nil {
		return storageErr("increment requests", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(requests_amount), 0)::BIGINT FROM users`).
		Scan(&stats.Users, &stats.Requests)
	if err != nil {
		return model.Stats{}, storageErr("user stats", err)
	}
	return stats, nil
}

func (r *PgUserRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete user", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}
