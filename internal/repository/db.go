package repository

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/destroydevs/TikFetchBot/internal/model"
)

const defaultSQLitePath = "tikfetch.db"

// NewDB opens a SQLite database, sizes its connection pool and runs migrations.
func NewDB(dsn string, poolSize int, log *slog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = defaultSQLitePath
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{SkipDefaultTransaction: true}
	if log != nil {
		gormConfig.Logger = logger.New(
			slog.NewLogLogger(log.With("component", "gorm").Handler(), slog.LevelWarn),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
	}

	db, err := gorm.Open(sqlite.Open(withSQLitePragmas(dsn)), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if poolSize > 0 {
		sqlDB.SetMaxOpenConns(poolSize)
		sqlDB.SetMaxIdleConns(poolSize)
	}

	if err := db.AutoMigrate(&model.User{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

// withSQLitePragmas makes concurrent writers wait for the lock instead of
// failing with SQLITE_BUSY.
func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") || isSQLiteMemory(dsn) {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_journal_mode=WAL"
}

func isSQLiteMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if isSQLiteMemory(dsn) {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	return ensureParentDir(clean)
}
