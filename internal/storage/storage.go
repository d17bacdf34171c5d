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
	"fmt"
	"path/filepath"

	"log/slog"

	"cardstash/internal/domain"
	applog "cardstash/internal/log"
)

// extractFunc reads type-specific metadata from the source file before it
// is placed. Extraction failures must degrade, not abort: implementations
// return whatever they could determine plus file_size.
type extractFunc func(src string) map[string]any

// Storage is the per-content-type save/lookup/delete workflow. It owns one
// FileManager and one Catalog and keeps them consistent: a file only stays
// placed if its metadata row landed, and a deleted row takes its files with
// it.
type Storage struct {
	contentType domain.ContentType
	files       *FileManager
	catalog     *Catalog
	extract     extractFunc
	thumbnails  bool
	log         *slog.Logger
}

func newStorage(ct domain.ContentType, files *FileManager, catalog *Catalog, extract extractFunc, thumbnails bool) *Storage {
	return &Storage{
		contentType: ct,
		files:       files,
		catalog:     catalog,
		extract:     extract,
		thumbnails:  thumbnails,
		log:         applog.WithComponent("storage").With(slog.String("type", ct.String())),
	}
}

// ContentType returns the type this store handles.
func (s *Storage) ContentType() domain.ContentType { return s.contentType }

// SaveFile runs the full ingest workflow: hash, dedup check, placement,
// metadata extraction, optional thumbnail, catalog insert. attrs override
// extracted values of the same name. On a mid-workflow failure the placed
// files are removed again so the vault never holds uncataloged content.
// A file whose hash is already cataloged returns ErrDuplicate.
func (s *Storage) SaveFile(ctx context.Context, src, collection string, attrs map[string]any) (int64, error) {
	l := applog.WithOperation(s.log, "save").With(slog.String("src", src))

	hash, err := s.files.CalculateHash(src)
	if err != nil {
		return 0, err
	}
	existing, err := s.catalog.GetByHash(ctx, hash)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		l.Info("duplicate content, skipping", slog.Int64("existing_id", existing.ID()))
		return 0, ErrDuplicate
	}

	// Extract from the source before placement; the original name and
	// extension carry information the stored name loses.
	extracted := map[string]any{}
	if s.extract != nil {
		extracted = s.extract(src)
	}

	filename := s.files.GenerateFilename(src)
	placed := s.files.SaveFile(src, filename)
	if placed == "" {
		return 0, ErrPlacement
	}

	thumbPath := ""
	if s.thumbnails {
		thumbPath = s.files.CreateThumbnail(placed)
	}

	data := map[string]any{
		"filename":      filename,
		"original_name": filepath.Base(src),
		"file_path":     s.files.RelativePath(placed),
		"collection":    collection,
		"hash":          hash,
	}
	if thumbPath != "" {
		data["thumbnail_path"] = s.files.RelativePath(thumbPath)
	}
	for k, v := range extracted {
		data[k] = v
	}
	for k, v := range attrs {
		data[k] = v
	}

	id, err := s.catalog.SaveMetadata(ctx, data)
	if err != nil {
		// Undo the placement so files and catalog stay in step.
		s.files.DeleteFile(placed, thumbPath)
		l.Error("catalog insert failed, placement undone", slog.Any("err", err))
		return 0, err
	}
	l.Info("file stored", slog.Int64("id", id), slog.String("collection", collection))
	return id, nil
}

// Get returns one record by id with vault paths absolutized, or (nil, nil)
// when no such record exists.
func (s *Storage) Get(ctx context.Context, id int64) (Record, error) {
	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	s.absolutize(rec)
	return rec, nil
}

// GetByHash returns the record holding the given content hash, or (nil, nil).
func (s *Storage) GetByHash(ctx context.Context, hash string) (Record, error) {
	rec, err := s.catalog.GetByHash(ctx, hash)
	if err != nil || rec == nil {
		return nil, err
	}
	s.absolutize(rec)
	return rec, nil
}

// GetAll returns every record, newest first.
func (s *Storage) GetAll(ctx context.Context) ([]Record, error) {
	recs, err := s.catalog.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	s.absolutizeAll(recs)
	return recs, nil
}

// GetByCollection returns the records of one collection, newest first.
func (s *Storage) GetByCollection(ctx context.Context, collection string) ([]Record, error) {
	recs, err := s.catalog.GetByCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.absolutizeAll(recs)
	return recs, nil
}

// Search runs a parameterized predicate (?-placeholders) over the catalog.
func (s *Storage) Search(ctx context.Context, cond string, params ...any) ([]Record, error) {
	recs, err := s.catalog.Search(ctx, cond, params...)
	if err != nil {
		return nil, err
	}
	s.absolutizeAll(recs)
	return recs, nil
}

// SearchByName matches records whose original filename contains the term.
func (s *Storage) SearchByName(ctx context.Context, term string) ([]Record, error) {
	return s.Search(ctx, "original_name LIKE ?", "%"+term+"%")
}

// UpdateMetadata applies schema-declared fields to one record.
func (s *Storage) UpdateMetadata(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	return s.catalog.UpdateMetadata(ctx, id, fields)
}

// Delete removes the record and its files. Returns false when the id was
// not cataloged. File removal is best-effort; the catalog row always wins.
func (s *Storage) Delete(ctx context.Context, id int64) (bool, error) {
	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	ok, err := s.catalog.DeleteMetadata(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	s.files.DeleteFile(
		s.files.AbsolutePath(rec.String("file_path")),
		s.files.AbsolutePath(rec.String("thumbnail_path")),
	)
	s.log.Info("file deleted", slog.Int64("id", id))
	return true, nil
}

// Collections lists the distinct non-empty collection names.
func (s *Storage) Collections(ctx context.Context) ([]string, error) {
	return s.catalog.DistinctCollections(ctx)
}

// Stats summarizes the store: counts, total bytes, collections.
func (s *Storage) Stats(ctx context.Context) (domain.Stats, error) {
	count, size, err := s.catalog.CountAndSize(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats %s: %w", s.contentType, err)
	}
	names, err := s.catalog.DistinctCollections(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats %s: %w", s.contentType, err)
	}
	return domain.Stats{
		TotalFiles:      count,
		TotalSize:       size,
		Collections:     len(names),
		CollectionNames: names,
	}, nil
}

// PathsInfo reports the directory layout this store writes to.
func (s *Storage) PathsInfo() map[string]string { return s.files.PathsInfo() }

// Close releases the catalog handle.
func (s *Storage) Close() error { return s.catalog.Close() }

func (s *Storage) absolutize(rec Record) {
	for _, key := range []string{"file_path", "thumbnail_path"} {
		if v := rec.String(key); v != "" {
			rec[key] = s.files.AbsolutePath(v)
		}
	}
}

func (s *Storage) absolutizeAll(recs []Record) {
	for _, rec := range recs {
		s.absolutize(rec)
	}
}
