/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"cardstash/internal/domain"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// FlashcardStorage stores CSV flashcard decks. Ingest introspects each deck
// for encoding, delimiter, header columns and data row count; a deck that
// cannot be decoded is still stored, with encoding "unknown" and the
// introspected columns left NULL.
type FlashcardStorage struct {
	*Storage
}

// NewFlashcardStorage wires a deck store over the given file layout and catalog.
func NewFlashcardStorage(files *FileManager, catalog *Catalog) *FlashcardStorage {
	return &FlashcardStorage{
		Storage: newStorage(domain.ContentFlashcard, files, catalog, flashcardMetadata, false),
	}
}

// Save ingests one CSV deck.
func (s *FlashcardStorage) Save(ctx context.Context, src, collection string, attrs map[string]any) (int64, error) {
	return s.SaveFile(ctx, src, collection, attrs)
}

// flashcardMetadata introspects a CSV deck: encoding (UTF-8, then Shift-JIS,
// else unknown), sniffed delimiter, JSON-encoded header columns and the data
// row count excluding the header.
func flashcardMetadata(src string) map[string]any {
	m := map[string]any{}
	if fi, err := os.Stat(src); err == nil {
		m["file_size"] = fi.Size()
	}
	data, err := os.ReadFile(src)
	if err != nil {
		m["encoding"] = domain.EncodingUnknown
		return m
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	text, encoding := decodeDeck(data)
	m["encoding"] = encoding
	if encoding == domain.EncodingUnknown {
		return m
	}

	delim := sniffDelimiter(text)
	m["delimiter"] = delim

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = rune(delim[0])
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil || len(rows) == 0 {
		return m
	}
	if cols, err := json.Marshal(rows[0]); err == nil {
		m["columns"] = string(cols)
	}
	m["row_count"] = int64(len(rows) - 1)
	return m
}

// decodeDeck returns the deck text as UTF-8 plus the encoding label. The
// Shift-JIS decoder substitutes U+FFFD instead of failing, so a replacement
// rune in its output means the bytes were not Shift-JIS either.
func decodeDeck(data []byte) (string, string) {
	if utf8.Valid(data) {
		return string(data), domain.EncodingUTF8
	}
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
		return string(out), domain.EncodingShiftJIS
	}
	return "", domain.EncodingUnknown
}

// sniffDelimiter picks the candidate most frequent in the header line.
// Comma wins ties and is the fallback for single-column decks.
func sniffDelimiter(text string) string {
	header := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		header = text[:i]
	}
	best, bestCount := ",", strings.Count(header, ",")
	for _, cand := range []string{";", "\t", "|"} {
		if n := strings.Count(header, cand); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

// UpdateColumns replaces the recorded header columns.
func (s *FlashcardStorage) UpdateColumns(ctx context.Context, id int64, columns []string) (bool, error) {
	data, err := json.Marshal(columns)
	if err != nil {
		return false, fmt.Errorf("encode columns: %w", err)
	}
	return s.UpdateMetadata(ctx, id, map[string]any{"columns": string(data)})
}

// UpdateEncoding corrects the recorded text encoding.
func (s *FlashcardStorage) UpdateEncoding(ctx context.Context, id int64, encoding string) (bool, error) {
	return s.UpdateMetadata(ctx, id, map[string]any{"encoding": encoding})
}

// UpdateDelimiter corrects the recorded field delimiter.
func (s *FlashcardStorage) UpdateDelimiter(ctx context.Context, id int64, delimiter string) (bool, error) {
	return s.UpdateMetadata(ctx, id, map[string]any{"delimiter": delimiter})
}

// GetByEncoding returns all decks recorded with the given encoding.
func (s *FlashcardStorage) GetByEncoding(ctx context.Context, encoding string) ([]Record, error) {
	return s.Search(ctx, "encoding = ?", encoding)
}

// GetByRowCountRange returns decks whose data row count falls inside the
// bounds. Pass 0 for an unbounded maximum.
func (s *FlashcardStorage) GetByRowCountRange(ctx context.Context, minRows, maxRows int) ([]Record, error) {
	if maxRows <= 0 {
		maxRows = 999999999
	}
	return s.Search(ctx, "row_count >= ? AND row_count <= ?", minRows, maxRows)
}

// ColumnNames decodes the recorded header columns of one record.
func (s *FlashcardStorage) ColumnNames(rec Record) []string {
	raw := rec.String("columns")
	if raw == "" {
		return nil
	}
	var cols []string
	if err := json.Unmarshal([]byte(raw), &cols); err != nil {
		return nil
	}
	return cols
}

// SpecificFields projects the deck-only columns of a record.
func (s *FlashcardStorage) SpecificFields(rec Record) *domain.FlashcardInfo {
	info := &domain.FlashcardInfo{
		Columns:   s.ColumnNames(rec),
		Encoding:  rec.String("encoding"),
		Delimiter: rec.String("delimiter"),
	}
	if v, ok := rec.Int64("row_count"); ok {
		info.RowCount = &v
	}
	return info
}

// FlashcardStats summarizes the store with encoding and delimiter
// breakdowns, the total data row count and the per-deck average.
func (s *FlashcardStorage) FlashcardStats(ctx context.Context) (domain.FlashcardStats, error) {
	base, err := s.Stats(ctx)
	if err != nil {
		return domain.FlashcardStats{}, err
	}
	recs, err := s.GetAll(ctx)
	if err != nil {
		return domain.FlashcardStats{}, fmt.Errorf("flashcard stats: %w", err)
	}
	stats := domain.FlashcardStats{
		Stats:      base,
		Encodings:  map[string]int{},
		Delimiters: map[string]int{},
	}
	for _, rec := range recs {
		if e := rec.String("encoding"); e != "" {
			stats.Encodings[e]++
		}
		if d := rec.String("delimiter"); d != "" {
			stats.Delimiters[d]++
		}
		if n, ok := rec.Int64("row_count"); ok {
			stats.TotalRows += n
		}
	}
	if stats.TotalFiles > 0 {
		stats.AvgRowsPerFile = float64(stats.TotalRows) / float64(stats.TotalFiles)
	}
	return stats, nil
}
