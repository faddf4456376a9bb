// Package catalog persists one row per archived post per platform in a
// SQLite database, one table per platform.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one archived post record.
type Entry struct {
	ID           int64
	MD5          string
	Source       sql.NullString
	Tags         sql.NullString
	Path         string
	CompressPath sql.NullString
}

// Equal reports whether two entries are field-wise identical.
func (e Entry) Equal(o Entry) bool {
	return e.ID == o.ID &&
		e.MD5 == o.MD5 &&
		e.Source == o.Source &&
		e.Tags == o.Tags &&
		e.Path == o.Path &&
		e.CompressPath == o.CompressPath
}

// Catalog owns the single SQL connection used by the worker.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: connecting to %s: %w", path, err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) ensureTable(platform string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
		id INTEGER PRIMARY KEY,
		md5 TEXT NOT NULL,
		source TEXT,
		tags TEXT,
		path TEXT NOT NULL,
		compress_path TEXT
	)`, platform)
	if _, err := c.db.Exec(stmt); err != nil {
		return fmt.Errorf("catalog: creating table %s: %w", platform, err)
	}
	return nil
}

// Select looks up a catalog entry by platform and id. A missing table or a
// missing row are both reported as (Entry{}, false, nil) — table absence is
// not an error at read time, per the spec's "no prior entry" rule.
func (c *Catalog) Select(platform string, id int64) (Entry, bool, error) {
	query := fmt.Sprintf(`SELECT id, md5, source, tags, path, compress_path FROM %s WHERE id = ?`, platform)
	row := c.db.QueryRow(query, id)

	var e Entry
	err := row.Scan(&e.ID, &e.MD5, &e.Source, &e.Tags, &e.Path, &e.CompressPath)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil && isNoSuchTable(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("catalog: select %s/%d: %w", platform, id, err)
	}
	return e, true, nil
}

// Insert upserts an entry into platform's table, creating the table first
// if needed. A failure here indicates schema drift and is treated by
// callers as fatal.
func (c *Catalog) Insert(platform string, e Entry) error {
	if err := c.ensureTable(platform); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT OR REPLACE INTO %s(id, md5, source, tags, path, compress_path) VALUES (?, ?, ?, ?, ?, ?)`, platform)
	if _, err := c.db.Exec(stmt, e.ID, e.MD5, e.Source, e.Tags, e.Path, e.CompressPath); err != nil {
		return fmt.Errorf("catalog: insert %s/%d: %w", platform, e.ID, err)
	}
	return nil
}

// isNoSuchTable reports whether err is sqlite3's "no such table" error,
// which Select treats the same as a missing row.
func isNoSuchTable(err error) bool {
	return err != nil && containsNoSuchTable(err.Error())
}

func containsNoSuchTable(msg string) bool {
	const needle = "no such table"
	for i := 0; i+len(needle) <= len(msg); i++ {
		if msg[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
