/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldType enumerates the column types a catalog schema may declare.
type FieldType int

const (
	Text FieldType = iota
	Integer
	Real
	Timestamp
)

// Field describes one catalog column. The schema is declared once per
// content type and used both to create the table and to filter every
// read/write, so a field never reaches SQL text unvalidated.
type Field struct {
	Name       string
	Type       FieldType
	PrimaryKey bool // surrogate key; implies auto-increment
	Unique     bool
	NotNull    bool
	Default    string // literal SQL default, e.g. CURRENT_TIMESTAMP or 'utf-8'
}

// Schema is the ordered field-descriptor list for one catalog table.
type Schema struct {
	Table  string
	Fields []Field
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks the schema at startup: identifier-safe names, no
// duplicates, exactly one integer primary key, and the base columns every
// content type relies on.
func (s Schema) Validate() error {
	if !identRe.MatchString(s.Table) {
		return fmt.Errorf("invalid table name %q", s.Table)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s has no fields", s.Table)
	}
	seen := make(map[string]bool, len(s.Fields))
	pks := 0
	for _, f := range s.Fields {
		if !identRe.MatchString(f.Name) {
			return fmt.Errorf("schema %s: invalid column name %q", s.Table, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate column %q", s.Table, f.Name)
		}
		seen[f.Name] = true
		if f.PrimaryKey {
			pks++
			if f.Type != Integer {
				return fmt.Errorf("schema %s: primary key %q must be an integer", s.Table, f.Name)
			}
		}
	}
	if pks != 1 {
		return fmt.Errorf("schema %s: want exactly one primary key, have %d", s.Table, pks)
	}
	for _, required := range []string{"id", "filename", "original_name", "file_path", "collection", "file_size", "hash", "created_at"} {
		if !seen[required] {
			return fmt.Errorf("schema %s: missing base column %q", s.Table, required)
		}
	}
	return nil
}

// Has reports whether the schema declares the named column.
func (s Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Filter returns only the fields the schema declares, in schema order,
// with the primary key always excluded. Unknown keys are silently dropped.
func (s Schema) Filter(fields map[string]any) ([]string, []any) {
	cols := make([]string, 0, len(fields))
	vals := make([]any, 0, len(fields))
	for _, f := range s.Fields {
		if f.PrimaryKey {
			continue
		}
		if v, ok := fields[f.Name]; ok {
			cols = append(cols, f.Name)
			vals = append(vals, v)
		}
	}
	return cols, vals
}

// sqlDialect selects the SQL flavor the catalog speaks.
type sqlDialect int

const (
	dialectSQLite sqlDialect = iota
	dialectPostgres
)

func (d sqlDialect) placeholder(n int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// rebind converts ?-style placeholders to the dialect's notation.
// String literals are not expected inside catalog predicates; callers pass
// parameters, never interpolated values.
func (d sqlDialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d sqlDialect) columnDDL(f Field) string {
	if f.PrimaryKey {
		if d == dialectPostgres {
			return f.Name + " BIGSERIAL PRIMARY KEY"
		}
		return f.Name + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	var t string
	switch f.Type {
	case Integer:
		if d == dialectPostgres {
			t = "BIGINT"
		} else {
			t = "INTEGER"
		}
	case Real:
		if d == dialectPostgres {
			t = "DOUBLE PRECISION"
		} else {
			t = "REAL"
		}
	case Timestamp:
		if d == dialectPostgres {
			t = "TIMESTAMPTZ"
		} else {
			t = "TIMESTAMP"
		}
	default:
		t = "TEXT"
	}
	col := f.Name + " " + t
	if f.NotNull {
		col += " NOT NULL"
	}
	if f.Unique {
		col += " UNIQUE"
	}
	if f.Default != "" {
		col += " DEFAULT " + f.Default
	}
	return col
}

// createDDL renders the CREATE TABLE statement for the dialect.
func (s Schema) createDDL(d sqlDialect) string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		cols = append(cols, d.columnDDL(f))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n);", s.Table, strings.Join(cols, ",\n\t"))
}

// ImageSchema declares the catalog table for stored images.
func ImageSchema() Schema {
	return Schema{
		Table: "images",
		Fields: []Field{
			{Name: "id", Type: Integer, PrimaryKey: true},
			{Name: "filename", Type: Text, NotNull: true},
			{Name: "original_name", Type: Text},
			{Name: "file_path", Type: Text, NotNull: true},
			{Name: "collection", Type: Text},
			{Name: "image_type", Type: Text},
			{Name: "region_index", Type: Integer},
			{Name: "parent_image_id", Type: Integer},
			// mask geometry or a mask record reference; advisory, not a FK
			{Name: "mask_image_id", Type: Text},
			{Name: "file_size", Type: Integer},
			{Name: "width", Type: Integer},
			{Name: "height", Type: Integer},
			{Name: "format", Type: Text},
			{Name: "hash", Type: Text, Unique: true},
			{Name: "thumbnail_path", Type: Text},
			{Name: "created_at", Type: Timestamp, Default: "CURRENT_TIMESTAMP"},
			{Name: "updated_at", Type: Timestamp, Default: "CURRENT_TIMESTAMP"},
		},
	}
}

// FlashcardSchema declares the catalog table for stored CSV decks.
func FlashcardSchema() Schema {
	return Schema{
		Table: "flashcards",
		Fields: []Field{
			{Name: "id", Type: Integer, PrimaryKey: true},
			{Name: "filename", Type: Text, NotNull: true},
			{Name: "original_name", Type: Text},
			{Name: "file_path", Type: Text, NotNull: true},
			{Name: "collection", Type: Text},
			// ordered column name list, JSON-serialized
			{Name: "columns", Type: Text},
			{Name: "row_count", Type: Integer},
			{Name: "file_size", Type: Integer},
			{Name: "encoding", Type: Text, Default: "'utf-8'"},
			{Name: "delimiter", Type: Text, Default: "','"},
			{Name: "hash", Type: Text, Unique: true},
			{Name: "created_at", Type: Timestamp, Default: "CURRENT_TIMESTAMP"},
			{Name: "updated_at", Type: Timestamp, Default: "CURRENT_TIMESTAMP"},
		},
	}
}
