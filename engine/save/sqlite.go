package save

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"

	_ "modernc.org/sqlite"
)

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS snapshots (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLitePersister keeps the snapshot as one row of a key/value table.
type SQLitePersister struct {
	db  *sql.DB
	key string
}

// NewSQLitePersister opens (creating if needed) the database at path.
func NewSQLitePersister(ctx context.Context, path string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Code(CodePersistFailed).With("path", path).Wrapf(err, "opening sqlite database")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, oops.Code(CodePersistFailed).With("path", path).Wrapf(err, "pinging sqlite")
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA journal_mode = WAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, createSnapshotsTable); err != nil {
		db.Close()
		return nil, oops.Code(CodePersistFailed).With("path", path).Wrapf(err, "creating snapshots table")
	}

	return &SQLitePersister{db: db, key: Key}, nil
}

// Load returns the stored snapshot, or ErrNoSnapshot if the row is absent.
func (p *SQLitePersister) Load(ctx context.Context) ([]byte, error) {
	var data string
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE key = ?`, p.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, oops.Code(CodePersistFailed).With("key", p.key).Wrapf(err, "querying snapshot")
	}
	return []byte(data), nil
}

// Save upserts the snapshot row.
func (p *SQLitePersister) Save(ctx context.Context, data []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		p.key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return oops.Code(CodePersistFailed).With("key", p.key).Wrapf(err, "writing snapshot")
	}
	return nil
}

// Close releases the database handle.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
