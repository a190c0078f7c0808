package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	source_repo TEXT NOT NULL,
	create_time INTEGER NOT NULL,
	last_build_date INTEGER,
	build_duration INTEGER NOT NULL DEFAULT 0,
	build_count,
	build_status INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_name ON projects(name);
CREATE INDEX IF NOT EXISTS idx_projects_create_time ON projects(create_time);

CREATE TABLE IF NOT EXISTS build_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	project_id TEXT NOT NULL,
	record TEXT NOT NULL DEFAULT '',
	status INTEGER NOT NULL,
	error_line INTEGER NOT NULL,
	operator TEXT NOT NULL DEFAULT '',
	create_time INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_build_records_project ON build_records(project_id, create_time);
`

// DB owns the SQLite connection shared by ProjectStore and RecordStore.
type DB struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// Open opens (or creates) the database at path. Use ":memory:" for an
// ephemeral database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ErrDatabaseOpenFailed.WithContext("path", path).WithContext("cause", err.Error())
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	d := &DB{db: db, now: time.Now}
	if err := d.initialize(context.Background()); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, errors.WrapError(err, errors.CategoryPersistence, ErrInitializeSchemaFailed.Message()).
			Fatal().
			WithContext("path", path).
			Build()
	}
	return d, nil
}

func (d *DB) initialize(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// WithClock overrides the time source used for create times.
func (d *DB) WithClock(now func() time.Time) *DB {
	if now != nil {
		d.now = now
	}
	return d
}

// Projects returns the project registry backed by this database.
func (d *DB) Projects() *ProjectStore { return &ProjectStore{db: d} }

// Records returns the build record log backed by this database.
func (d *DB) Records() *RecordStore { return &RecordStore{db: d} }

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
