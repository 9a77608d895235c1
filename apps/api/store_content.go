package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrContentNotFound is returned by ContentStore.Get before the document is seeded.
var ErrContentNotFound = errors.New("site content not found")

// ContentStore persists the single site content document.
// Put and EnsureSeeded are single-statement writes, so readers never observe
// a partially written document. Concurrent writers are last-write-wins.
type ContentStore interface {
	Get(ctx context.Context) (json.RawMessage, error)
	Put(ctx context.Context, doc json.RawMessage) error
	EnsureSeeded(ctx context.Context, doc json.RawMessage) error
	Ping(ctx context.Context) error
	Close() error
}

func storageKind(storageURL string) string {
	switch {
	case strings.HasPrefix(storageURL, "postgres://"), strings.HasPrefix(storageURL, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(storageURL, "mongodb://"), strings.HasPrefix(storageURL, "mongodb+srv://"):
		return "mongodb"
	default:
		return "sqlite"
	}
}

func openContentStore(ctx context.Context, cfg *Config, logger *slog.Logger) (ContentStore, error) {
	switch storageKind(cfg.StorageURL) {
	case "postgres":
		return openSQLContentStore(ctx, "pgx", cfg.StorageURL, postgresDialect, logger)
	case "mongodb":
		return openMongoContentStore(ctx, cfg.StorageURL, cfg.MongoDatabase, logger)
	default:
		return openSQLContentStore(ctx, "sqlite", sqliteDSN(cfg.StorageURL), sqliteDialect, logger)
	}
}

func sqliteDSN(filePath string) string {
	return "file:" + filePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

type sqlDialect struct {
	name        string
	placeholder func(n int) string
}

var (
	postgresDialect = sqlDialect{name: "postgres", placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	sqliteDialect   = sqlDialect{name: "sqlite", placeholder: func(int) string { return "?" }}
)

type sqlContentStore struct {
	db      *sql.DB
	dialect sqlDialect
	log     *slog.Logger

	selectQuery string
	upsertQuery string
	seedQuery   string
}

func openSQLContentStore(ctx context.Context, driver, dsn string, dialect sqlDialect, logger *slog.Logger) (*sqlContentStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.name, err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.name, err)
	}

	store := newSQLContentStore(db, dialect, logger)
	if err := store.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func newSQLContentStore(db *sql.DB, dialect sqlDialect, logger *slog.Logger) *sqlContentStore {
	p := dialect.placeholder(1)
	return &sqlContentStore{
		db:          db,
		dialect:     dialect,
		log:         logger,
		selectQuery: `SELECT payload FROM content WHERE id = 1`,
		upsertQuery: `INSERT INTO content (id, payload) VALUES (1, ` + p + `)
			ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		seedQuery: `INSERT INTO content (id, payload) VALUES (1, ` + p + `)
			ON CONFLICT (id) DO NOTHING`,
	}
}

func (s *sqlContentStore) Get(ctx context.Context) (json.RawMessage, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.selectQuery).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select content: %w", err)
	}
	return json.RawMessage(payload), nil
}

func (s *sqlContentStore) Put(ctx context.Context, doc json.RawMessage) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery, string(doc)); err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	return nil
}

func (s *sqlContentStore) EnsureSeeded(ctx context.Context, doc json.RawMessage) error {
	res, err := s.db.ExecContext(ctx, s.seedQuery, string(doc))
	if err != nil {
		return fmt.Errorf("seed content: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.log.Info("seeded site content", "bytes", len(doc))
	}
	return nil
}

func (s *sqlContentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlContentStore) Close() error {
	return s.db.Close()
}

func (s *sqlContentStore) runMigrations(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	p := s.dialect.placeholder(1)
	for _, file := range files {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = `+p+`)`, file).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		content, err := migrationFiles.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES (`+p+`)`, file); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		s.log.Info("applied migration", "file", file, "dialect", s.dialect.name)
	}

	return nil
}
