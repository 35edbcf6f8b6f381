package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/destroydevs/TikFetchBot/internal/model"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
	ErrInvalidField  = errors.New("field cannot be modified")
	ErrInvalidValue  = errors.New("invalid field value")
	// ErrStorage wraps every I/O or connection failure of a backend.
	ErrStorage = errors.New("storage failure")
)

// UserStore is the persistence contract shared by every backend.
// A single user id observes the same atomicity on all of them.
type UserStore interface {
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, user model.User) error
	Fetch(ctx context.Context, id int64) (*model.User, error)
	SetField(ctx context.Context, id int64, field model.Field, value string) error
	// IncrementRequestCount bumps the counter and refreshes the last seen
	// timestamp in one step.
	IncrementRequestCount(ctx context.Context, id int64) error
	Stats(ctx context.Context) (model.Stats, error)
	// Delete is administrative; the update pipeline never calls it.
	Delete(ctx context.Context, id int64) error
	Close() error
}

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and parameterises a backend.
type Config struct {
	Backend     string
	FilePath    string
	DatabaseURL string
	PoolSize    int
}

type storeOptions struct {
	now func() time.Time
}

// Option customises a store.
type Option func(*storeOptions)

// WithClock overrides the time source used for last seen timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) storeOptions {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open creates the store selected by cfg.Backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (UserStore, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.FilePath, opts...)
	case BackendSQLite:
		db, err := NewDB(cfg.DatabaseURL, cfg.PoolSize, logger)
		if err != nil {
			return nil, err
		}
		return NewUserRepository(db, opts...), nil
	case BackendPostgres:
		return NewPgUserRepository(ctx, cfg.DatabaseURL, cfg.PoolSize, logger, opts...)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func checkField(field model.Field, raw string) (any, error) {
	if !field.Mutable() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	value, err := field.ParseValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}
