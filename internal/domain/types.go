/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain holds the shared value types of the resource vault:
// content types, per-type statistics and the typed metadata projections
// returned by the storage layer.
package domain

// ContentType identifies one of the supported file categories. Each content
// type owns its own catalog table, storage directory and metadata schema.
type ContentType string

const (
	ContentImage     ContentType = "image"
	ContentFlashcard ContentType = "flashcard"
)

// AllContentTypes lists the supported types in registration order.
func AllContentTypes() []ContentType {
	return []ContentType{ContentImage, ContentFlashcard}
}

// Valid reports whether the content type is one of the supported categories.
func (c ContentType) Valid() bool {
	switch c {
	case ContentImage, ContentFlashcard:
		return true
	}
	return false
}

func (c ContentType) String() string { return string(c) }

// Detected text encodings for flashcard CSV files.
const (
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift-jis"
	EncodingUnknown  = "unknown"
)

// Image type classifications as used by the editor layer.
const (
	ImageTypeOriginal = "original"
	ImageTypeSplit    = "split"
	ImageTypeMask     = "mask"
)

// Stats summarizes one content type's store.
type Stats struct {
	TotalFiles      int      `json:"total_files"`
	TotalSize       int64    `json:"total_size"`
	Collections     int      `json:"collections"`
	CollectionNames []string `json:"collection_names"`
}

// ImageStats extends Stats with image-specific breakdowns.
type ImageStats struct {
	Stats
	Formats map[string]int `json:"formats"`
	Types   map[string]int `json:"types"`
	Sizes   map[string]int `json:"sizes"` // small (<500px), medium (<1500px), large
}

// FlashcardStats extends Stats with deck-specific breakdowns.
type FlashcardStats struct {
	Stats
	TotalRows      int64          `json:"total_flashcards"`
	Encodings      map[string]int `json:"encodings"`
	Delimiters     map[string]int `json:"delimiters"`
	AvgRowsPerFile float64        `json:"avg_rows_per_file"`
}

// VaultStats aggregates every content type plus grand totals.
type VaultStats struct {
	Image      ImageStats     `json:"image"`
	Flashcard  FlashcardStats `json:"flashcard"`
	TotalFiles int            `json:"total_files"`
	TotalSize  int64          `json:"total_size"`
}

// ImageInfo is the image-specific projection of a catalog record.
// Dimension pointers are nil when the stored file could not be decoded.
type ImageInfo struct {
	Width         *int64
	Height        *int64
	Format        string
	ThumbnailPath string
	ImageType     string
	RegionIndex   *int64
	ParentImageID *int64
	MaskImageID   string
}

// FlashcardInfo is the deck-specific projection of a catalog record.
// RowCount is nil and Columns empty when the CSV could not be decoded.
type FlashcardInfo struct {
	Columns   []string
	RowCount  *int64
	Encoding  string
	Delimiter string
}
