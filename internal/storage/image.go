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
	"image"
	"os"
	"strings"

	"cardstash/internal/domain"
)

// Size-class thresholds on the longer image edge, in pixels.
const (
	sizeSmallMax  = 500
	sizeMediumMax = 1500
)

// ImageStorage stores raster images: thumbnails are derived on ingest and
// the catalog carries dimensions, format and the editor's region lineage
// (originals, split regions, masks).
type ImageStorage struct {
	*Storage
}

// NewImageStorage wires an image store over the given file layout and catalog.
func NewImageStorage(files *FileManager, catalog *Catalog) *ImageStorage {
	return &ImageStorage{
		Storage: newStorage(domain.ContentImage, files, catalog, imageMetadata, true),
	}
}

// imageMetadata reads dimensions and format without decoding pixel data.
// An undecodable file still gets its size recorded; dimension and format
// columns stay NULL.
func imageMetadata(src string) map[string]any {
	m := map[string]any{}
	if fi, err := os.Stat(src); err == nil {
		m["file_size"] = fi.Size()
	}
	f, err := os.Open(src)
	if err != nil {
		return m
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return m
	}
	m["width"] = int64(cfg.Width)
	m["height"] = int64(cfg.Height)
	m["format"] = strings.ToUpper(format)
	return m
}

// Save ingests an image as type "original" unless attrs say otherwise.
func (s *ImageStorage) Save(ctx context.Context, src, collection string, attrs map[string]any) (int64, error) {
	merged := map[string]any{"image_type": domain.ImageTypeOriginal}
	for k, v := range attrs {
		merged[k] = v
	}
	return s.SaveFile(ctx, src, collection, merged)
}

// SaveSplitImage ingests a region cut out of a parent image, recording the
// lineage: parent id, the mask that produced the cut, and the region's
// position in the split. The references are advisory; deleting the parent
// does not cascade.
func (s *ImageStorage) SaveSplitImage(ctx context.Context, src string, parentID int64, maskID string, regionIndex int, collection string, attrs map[string]any) (int64, error) {
	merged := map[string]any{
		"image_type":      domain.ImageTypeSplit,
		"parent_image_id": parentID,
		"region_index":    int64(regionIndex),
	}
	if maskID != "" {
		merged["mask_image_id"] = maskID
	}
	for k, v := range attrs {
		merged[k] = v
	}
	return s.SaveFile(ctx, src, collection, merged)
}

// LinkMask attaches a mask reference to an existing image record.
func (s *ImageStorage) LinkMask(ctx context.Context, id int64, maskID string) (bool, error) {
	return s.UpdateMetadata(ctx, id, map[string]any{"mask_image_id": maskID})
}

// UpdateImageType reclassifies an image record.
func (s *ImageStorage) UpdateImageType(ctx context.Context, id int64, imageType string) (bool, error) {
	return s.UpdateMetadata(ctx, id, map[string]any{"image_type": imageType})
}

// GetChildren returns the split regions derived from one parent image.
func (s *ImageStorage) GetChildren(ctx context.Context, parentID int64) ([]Record, error) {
	return s.Search(ctx, "parent_image_id = ?", parentID)
}

// GetByType returns all images of one classification.
func (s *ImageStorage) GetByType(ctx context.Context, imageType string) ([]Record, error) {
	return s.Search(ctx, "image_type = ?", imageType)
}

// GetByFormat returns all images of one format, case-insensitive.
func (s *ImageStorage) GetByFormat(ctx context.Context, format string) ([]Record, error) {
	return s.Search(ctx, "format = ?", strings.ToUpper(format))
}

// GetBySizeRange returns images whose dimensions fall inside the given
// bounds. Pass 0 for an unbounded maximum.
func (s *ImageStorage) GetBySizeRange(ctx context.Context, minW, maxW, minH, maxH int) ([]Record, error) {
	if maxW <= 0 {
		maxW = 999999
	}
	if maxH <= 0 {
		maxH = 999999
	}
	return s.Search(ctx,
		"width >= ? AND width <= ? AND height >= ? AND height <= ?",
		minW, maxW, minH, maxH)
}

// SpecificFields projects the image-only columns of a record.
func (s *ImageStorage) SpecificFields(rec Record) *domain.ImageInfo {
	info := &domain.ImageInfo{
		Format:        rec.String("format"),
		ThumbnailPath: rec.String("thumbnail_path"),
		ImageType:     rec.String("image_type"),
		MaskImageID:   rec.String("mask_image_id"),
	}
	if v, ok := rec.Int64("width"); ok {
		info.Width = &v
	}
	if v, ok := rec.Int64("height"); ok {
		info.Height = &v
	}
	if v, ok := rec.Int64("region_index"); ok {
		info.RegionIndex = &v
	}
	if v, ok := rec.Int64("parent_image_id"); ok {
		info.ParentImageID = &v
	}
	return info
}

// ImageStats summarizes the store with per-format, per-type and size-class
// breakdowns. The size class follows the longer edge.
func (s *ImageStorage) ImageStats(ctx context.Context) (domain.ImageStats, error) {
	base, err := s.Stats(ctx)
	if err != nil {
		return domain.ImageStats{}, err
	}
	recs, err := s.GetAll(ctx)
	if err != nil {
		return domain.ImageStats{}, fmt.Errorf("image stats: %w", err)
	}
	stats := domain.ImageStats{
		Stats:   base,
		Formats: map[string]int{},
		Types:   map[string]int{},
		Sizes:   map[string]int{"small": 0, "medium": 0, "large": 0},
	}
	for _, rec := range recs {
		if f := rec.String("format"); f != "" {
			stats.Formats[f]++
		}
		if t := rec.String("image_type"); t != "" {
			stats.Types[t]++
		}
		w, wok := rec.Int64("width")
		h, hok := rec.Int64("height")
		if !wok || !hok {
			continue
		}
		edge := w
		if h > edge {
			edge = h
		}
		switch {
		case edge < sizeSmallMax:
			stats.Sizes["small"]++
		case edge < sizeMediumMax:
			stats.Sizes["medium"]++
		default:
			stats.Sizes["large"]++
		}
	}
	return stats, nil
}
