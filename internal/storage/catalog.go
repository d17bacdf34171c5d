/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	applog "cardstash/internal/log"

	// Postgres driver via pgx stdlib adapter
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// Catalog is schema-validated CRUD over one metadata table. Every column
// that enters a query is checked against the schema first, so callers can
// pass loosely-typed field maps without risking malformed SQL.
type Catalog struct {
	db      *sql.DB
	dialect sqlDialect
	schema  Schema
	log     *slog.Logger
}

// OpenCatalog opens (or creates) an embedded SQLite catalog at dbPath and
// ensures the schema's table and indexes exist. The returned Catalog is
// ready for use; close it when the store shuts down.
func OpenCatalog(dbPath string, schema Schema) (*Catalog, error) {
	l := applog.WithOperation(applog.WithComponent("catalog"), "open").With(
		slog.String("table", schema.Table),
		slog.String("path", dbPath),
	)
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("validate schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		l.Error("create db dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	uriPath := filepath.ToSlash(dbPath)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection keeps the embedded writer serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	c := &Catalog{db: db, dialect: dialectSQLite, schema: schema, log: applog.WithComponent("catalog").With(slog.String("table", schema.Table))}
	if err := c.ensureSchema(ctx); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("catalog ready")
	return c, nil
}

// OpenPostgresCatalog opens a shared Postgres catalog via the pgx stdlib
// driver and ensures the schema's table and indexes exist. Intended for
// deployments where several machines share one vault over a network mount.
func OpenPostgresCatalog(ctx context.Context, dsn string, schema Schema) (*Catalog, error) {
	l := applog.WithOperation(applog.WithComponent("catalog"), "open_pg").With(
		slog.String("table", schema.Table),
	)
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("validate schema: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		l.Error("postgres open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		l.Error("postgres ping failed", slog.Any("err", err))
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	c := &Catalog{db: db, dialect: dialectPostgres, schema: schema, log: applog.WithComponent("catalog").With(slog.String("table", schema.Table))}
	if err := c.ensureSchema(ctx); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("catalog ready")
	return c, nil
}

func (c *Catalog) ensureSchema(ctx context.Context) error {
	stmts := []string{
		c.schema.createDDL(c.dialect),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_collection ON %s(collection);", c.schema.Table, c.schema.Table),
	}
	for _, q := range stmts {
		if _, err := c.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Schema returns the schema the catalog was opened with.
func (c *Catalog) Schema() Schema { return c.schema }

// SaveMetadata inserts one record assembled from the schema-declared subset
// of fields and returns the new row id. A unique-constraint violation on the
// content hash maps to ErrDuplicate.
func (c *Catalog) SaveMetadata(ctx context.Context, fields map[string]any) (int64, error) {
	cols, vals := c.schema.Filter(fields)
	if len(cols) == 0 {
		return 0, fmt.Errorf("save %s: no schema fields in input", c.schema.Table)
	}
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = c.dialect.placeholder(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		c.schema.Table, strings.Join(cols, ", "), strings.Join(ph, ", "))
	var id int64
	if err := c.db.QueryRowContext(ctx, q, vals...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		c.log.Error("insert failed", slog.Any("err", err))
		return 0, fmt.Errorf("insert %s: %w", c.schema.Table, err)
	}
	return id, nil
}

// GetByID fetches one record by primary key. A missing row is (nil, nil).
func (c *Catalog) GetByID(ctx context.Context, id int64) (Record, error) {
	return c.getOne(ctx, "id = ?", id)
}

// GetByHash fetches one record by content hash. A missing row is (nil, nil).
func (c *Catalog) GetByHash(ctx context.Context, hash string) (Record, error) {
	return c.getOne(ctx, "hash = ?", hash)
}

func (c *Catalog) getOne(ctx context.Context, cond string, params ...any) (Record, error) {
	recs, err := c.Search(ctx, cond, params...)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// GetByCollection returns all records in the named collection, newest first.
func (c *Catalog) GetByCollection(ctx context.Context, collection string) ([]Record, error) {
	return c.Search(ctx, "collection = ?", collection)
}

// GetAll returns every record in the catalog, newest first.
func (c *Catalog) GetAll(ctx context.Context) ([]Record, error) {
	return c.Search(ctx, "")
}

// Search runs a parameterized predicate against the table. cond uses ?
// placeholders regardless of dialect; an empty cond selects everything.
// Results come back newest first.
func (c *Catalog) Search(ctx context.Context, cond string, params ...any) ([]Record, error) {
	q := fmt.Sprintf("SELECT * FROM %s", c.schema.Table)
	if strings.TrimSpace(cond) != "" {
		q += " WHERE " + cond
	}
	q += " ORDER BY id DESC"
	rows, err := c.db.QueryContext(ctx, c.dialect.rebind(q), params...)
	if err != nil {
		c.log.Error("query failed", slog.Any("err", err))
		return nil, fmt.Errorf("query %s: %w", c.schema.Table, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// UpdateMetadata applies the schema-declared subset of fields to one record
// and reports whether a row changed. updated_at is refreshed automatically
// unless the caller set it.
func (c *Catalog) UpdateMetadata(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	cols, vals := c.schema.Filter(fields)
	if len(cols) == 0 {
		return false, nil
	}
	sets := make([]string, 0, len(cols)+1)
	n := 0
	for _, col := range cols {
		n++
		sets = append(sets, fmt.Sprintf("%s = %s", col, c.dialect.placeholder(n)))
	}
	if _, explicit := fields["updated_at"]; !explicit && c.schema.Has("updated_at") {
		sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	}
	n++
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
		c.schema.Table, strings.Join(sets, ", "), c.dialect.placeholder(n))
	vals = append(vals, id)
	res, err := c.db.ExecContext(ctx, q, vals...)
	if err != nil {
		c.log.Error("update failed", slog.Int64("id", id), slog.Any("err", err))
		return false, fmt.Errorf("update %s: %w", c.schema.Table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update %s rows affected: %w", c.schema.Table, err)
	}
	return affected > 0, nil
}

// DeleteMetadata removes one record and reports whether it existed.
func (c *Catalog) DeleteMetadata(ctx context.Context, id int64) (bool, error) {
	q := fmt.Sprintf("DELETE FROM %s WHERE id = %s", c.schema.Table, c.dialect.placeholder(1))
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		c.log.Error("delete failed", slog.Int64("id", id), slog.Any("err", err))
		return false, fmt.Errorf("delete %s: %w", c.schema.Table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s rows affected: %w", c.schema.Table, err)
	}
	return affected > 0, nil
}

// CountAndSize returns the record count and the summed file_size.
func (c *Catalog) CountAndSize(ctx context.Context) (int, int64, error) {
	q := fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM %s", c.schema.Table)
	var count int
	var size int64
	if err := c.db.QueryRowContext(ctx, q).Scan(&count, &size); err != nil {
		return 0, 0, fmt.Errorf("count %s: %w", c.schema.Table, err)
	}
	return count, size, nil
}

// DistinctCollections returns the non-empty collection names in sorted order.
func (c *Catalog) DistinctCollections(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT collection FROM %s WHERE collection IS NOT NULL AND collection != '' ORDER BY collection", c.schema.Table)
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("collections %s: %w", c.schema.Table, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases the underlying database handle. Safe on a nil catalog.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// isUniqueViolation matches the duplicate-key errors of both drivers.
// modernc.org/sqlite reports "UNIQUE constraint failed", pgx surfaces
// SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}
