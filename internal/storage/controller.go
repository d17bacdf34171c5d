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
	"os"
	"path/filepath"
	"sync"

	"log/slog"

	"cardstash/internal/domain"
	applog "cardstash/internal/log"
)

const (
	dbDirName         = "db"
	thumbnailsDirName = "thumbnails"
	tempDirName       = "temp"
)

// ContentStorage is the type-independent surface of a per-type store, for
// callers that dispatch on a content type name.
type ContentStorage interface {
	ContentType() domain.ContentType
	SaveFile(ctx context.Context, src, collection string, attrs map[string]any) (int64, error)
	Get(ctx context.Context, id int64) (Record, error)
	GetAll(ctx context.Context) ([]Record, error)
	GetByCollection(ctx context.Context, collection string) ([]Record, error)
	SearchByName(ctx context.Context, term string) ([]Record, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Collections(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (domain.Stats, error)
	PathsInfo() map[string]string
	Close() error
}

// ControllerOptions tunes the vault. The zero value selects the embedded
// SQLite catalog and default thumbnail settings.
type ControllerOptions struct {
	ThumbnailMaxPx   int
	ThumbnailQuality int
	CatalogDriver    string // "sqlite" (default) or "postgres"
	PostgresDSN      string
}

// Controller owns the vault's directory skeleton and hands out one lazily
// provisioned store per content type. One Controller per base path.
type Controller struct {
	base string
	opts ControllerOptions
	log  *slog.Logger

	mu        sync.Mutex
	image     *ImageStorage
	flashcard *FlashcardStorage
}

// NewController creates (or reuses) the vault skeleton under basePath and
// returns a controller over it. Per-type catalogs open on first use.
func NewController(basePath string, opts ControllerOptions) (*Controller, error) {
	l := applog.WithOperation(applog.WithComponent("controller"), "init").With(
		slog.String("base", basePath),
	)
	if basePath == "" {
		return nil, fmt.Errorf("vault base path is required")
	}
	dirs := []string{
		basePath,
		filepath.Join(basePath, dbDirName),
	}
	for _, ct := range domain.AllContentTypes() {
		dirs = append(dirs,
			filepath.Join(basePath, ct.String()),
			filepath.Join(basePath, thumbnailsDirName, ct.String()),
			filepath.Join(basePath, tempDirName, ct.String()),
		)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			l.Error("create vault dir failed", slog.String("dir", d), slog.Any("err", err))
			return nil, fmt.Errorf("create vault dir %s: %w", d, err)
		}
	}
	l.Info("vault ready")
	return &Controller{
		base: basePath,
		opts: opts,
		log:  applog.WithComponent("controller").With(slog.String("base", basePath)),
	}, nil
}

// BasePath returns the vault root.
func (c *Controller) BasePath() string { return c.base }

func (c *Controller) pathsFor(ct domain.ContentType) Paths {
	return Paths{
		Base:       c.base,
		Storage:    filepath.Join(c.base, ct.String()),
		Thumbnails: filepath.Join(c.base, thumbnailsDirName, ct.String()),
		Temp:       filepath.Join(c.base, tempDirName, ct.String()),
	}
}

func (c *Controller) openCatalog(ctx context.Context, ct domain.ContentType, schema Schema) (*Catalog, error) {
	if c.opts.CatalogDriver == "postgres" {
		return OpenPostgresCatalog(ctx, c.opts.PostgresDSN, schema)
	}
	dbPath := filepath.Join(c.base, dbDirName, ct.String()+".sqlite")
	return OpenCatalog(dbPath, schema)
}

// ImageStorage returns the image store, opening its catalog on first call.
func (c *Controller) ImageStorage(ctx context.Context) (*ImageStorage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.image != nil {
		return c.image, nil
	}
	catalog, err := c.openCatalog(ctx, domain.ContentImage, ImageSchema())
	if err != nil {
		return nil, err
	}
	files := NewFileManager(c.pathsFor(domain.ContentImage), c.opts.ThumbnailMaxPx, c.opts.ThumbnailQuality)
	c.image = NewImageStorage(files, catalog)
	return c.image, nil
}

// FlashcardStorage returns the deck store, opening its catalog on first call.
func (c *Controller) FlashcardStorage(ctx context.Context) (*FlashcardStorage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flashcard != nil {
		return c.flashcard, nil
	}
	catalog, err := c.openCatalog(ctx, domain.ContentFlashcard, FlashcardSchema())
	if err != nil {
		return nil, err
	}
	files := NewFileManager(c.pathsFor(domain.ContentFlashcard), c.opts.ThumbnailMaxPx, c.opts.ThumbnailQuality)
	c.flashcard = NewFlashcardStorage(files, catalog)
	return c.flashcard, nil
}

// GetStorage dispatches on a content type name. Unknown names yield
// ErrUnknownType.
func (c *Controller) GetStorage(ctx context.Context, name string) (ContentStorage, error) {
	switch domain.ContentType(name) {
	case domain.ContentImage:
		return c.ImageStorage(ctx)
	case domain.ContentFlashcard:
		return c.FlashcardStorage(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// PathsInfo reports the full vault layout, keyed by content type.
func (c *Controller) PathsInfo() map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, ct := range domain.AllContentTypes() {
		p := c.pathsFor(ct)
		out[ct.String()] = map[string]string{
			"base":       p.Base,
			"storage":    p.Storage,
			"thumbnails": p.Thumbnails,
			"temp":       p.Temp,
		}
	}
	return out
}

// StorageStats aggregates every content type's statistics plus grand totals.
func (c *Controller) StorageStats(ctx context.Context) (domain.VaultStats, error) {
	img, err := c.ImageStorage(ctx)
	if err != nil {
		return domain.VaultStats{}, err
	}
	fc, err := c.FlashcardStorage(ctx)
	if err != nil {
		return domain.VaultStats{}, err
	}
	imgStats, err := img.ImageStats(ctx)
	if err != nil {
		return domain.VaultStats{}, err
	}
	fcStats, err := fc.FlashcardStats(ctx)
	if err != nil {
		return domain.VaultStats{}, err
	}
	return domain.VaultStats{
		Image:      imgStats,
		Flashcard:  fcStats,
		TotalFiles: imgStats.TotalFiles + fcStats.TotalFiles,
		TotalSize:  imgStats.TotalSize + fcStats.TotalSize,
	}, nil
}

// Cleanup closes every open catalog. Idempotent; the controller can be
// reused afterwards, stores reopen on demand.
func (c *Controller) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	if c.image != nil {
		if err := c.image.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.image = nil
	}
	if c.flashcard != nil {
		if err := c.flashcard.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.flashcard = nil
	}
	c.log.Info("vault closed")
	return firstErr
}
