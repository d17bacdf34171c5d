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
	"os"
	"path/filepath"
	"testing"

	"cardstash/internal/domain"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func newTestFlashcardStorage(t *testing.T) *FlashcardStorage {
	t.Helper()
	ctrl, err := NewController(t.TempDir(), ControllerOptions{})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	t.Cleanup(func() { _ = ctrl.Cleanup() })
	s, err := ctrl.FlashcardStorage(context.Background())
	if err != nil {
		t.Fatalf("flashcard storage: %v", err)
	}
	return s
}

func writeDeck(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	return path
}

func TestDeckIngestUTF8(t *testing.T) {
	s := newTestFlashcardStorage(t)
	ctx := context.Background()

	src := writeDeck(t, "basics.csv", []byte("front,back,tags\ncat,ねこ,animals\ndog,いぬ,animals\n"))
	id, err := s.Save(ctx, src, "jp-core", nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil || rec == nil {
		t.Fatalf("get: rec=%v err=%v", rec, err)
	}
	if got := rec.String("encoding"); got != domain.EncodingUTF8 {
		t.Fatalf("encoding: %q", got)
	}
	if got := rec.String("delimiter"); got != "," {
		t.Fatalf("delimiter: %q", got)
	}
	// header is not a data row
	if n, _ := rec.Int64("row_count"); n != 2 {
		t.Fatalf("row_count: %d", n)
	}
	cols := s.ColumnNames(rec)
	if len(cols) != 3 || cols[0] != "front" || cols[2] != "tags" {
		t.Fatalf("columns: %v", cols)
	}
	if rec.String("thumbnail_path") != "" {
		t.Fatalf("decks must not get thumbnails")
	}
}

func TestDeckIngestSemicolonDelimiter(t *testing.T) {
	s := newTestFlashcardStorage(t)
	src := writeDeck(t, "semi.csv", []byte("front;back\nein;one\nzwei;two\ndrei;three\n"))
	id, err := s.Save(context.Background(), src, "", nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, _ := s.Get(context.Background(), id)
	if got := rec.String("delimiter"); got != ";" {
		t.Fatalf("delimiter: %q", got)
	}
	if n, _ := rec.Int64("row_count"); n != 3 {
		t.Fatalf("row_count: %d", n)
	}
}

func TestDeckIngestShiftJIS(t *testing.T) {
	s := newTestFlashcardStorage(t)

	sjis, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte("質問,答え\n犬,dog\n猫,cat\n"))
	if err != nil {
		t.Fatalf("encode shift-jis fixture: %v", err)
	}
	src := writeDeck(t, "legacy.csv", sjis)

	id, err := s.Save(context.Background(), src, "legacy", nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, _ := s.Get(context.Background(), id)
	if got := rec.String("encoding"); got != domain.EncodingShiftJIS {
		t.Fatalf("encoding: %q", got)
	}
	if n, _ := rec.Int64("row_count"); n != 2 {
		t.Fatalf("row_count: %d", n)
	}
	cols := s.ColumnNames(rec)
	if len(cols) != 2 || cols[0] != "質問" {
		t.Fatalf("columns not transcoded: %v", cols)
	}
}

func TestDeckIngestUnknownEncodingStillStored(t *testing.T) {
	s := newTestFlashcardStorage(t)
	// invalid in both UTF-8 and Shift-JIS
	src := writeDeck(t, "mystery.csv", []byte{'a', ',', 'b', '\n', 0xfe, 0xff, 0x80})

	id, err := s.Save(context.Background(), src, "", nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, _ := s.Get(context.Background(), id)
	if got := rec.String("encoding"); got != domain.EncodingUnknown {
		t.Fatalf("encoding: %q", got)
	}
	if _, ok := rec.Int64("row_count"); ok {
		t.Fatalf("row_count should be NULL for undecodable deck")
	}
	if cols := s.ColumnNames(rec); cols != nil {
		t.Fatalf("columns should be empty, got %v", cols)
	}
	if _, err := os.Stat(rec.String("file_path")); err != nil {
		t.Fatalf("deck bytes not stored: %v", err)
	}
}

func TestDeckBOMStripped(t *testing.T) {
	s := newTestFlashcardStorage(t)
	src := writeDeck(t, "bom.csv", append([]byte{0xef, 0xbb, 0xbf}, []byte("front,back\na,b\n")...))
	id, err := s.Save(context.Background(), src, "", nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, _ := s.Get(context.Background(), id)
	cols := s.ColumnNames(rec)
	if len(cols) != 2 || cols[0] != "front" {
		t.Fatalf("BOM leaked into header: %v", cols)
	}
}

func TestDeckUpdatesAndRowRange(t *testing.T) {
	s := newTestFlashcardStorage(t)
	ctx := context.Background()

	small := writeDeck(t, "small.csv", []byte("a,b\n1,2\n"))
	big := writeDeck(t, "big.csv", []byte("a,b\n1,2\n3,4\n5,6\n7,8\n"))
	smallID, err := s.Save(ctx, small, "", nil)
	if err != nil {
		t.Fatalf("save small: %v", err)
	}
	if _, err := s.Save(ctx, big, "", nil); err != nil {
		t.Fatalf("save big: %v", err)
	}

	few, err := s.GetByRowCountRange(ctx, 0, 2)
	if err != nil || len(few) != 1 {
		t.Fatalf("row range: n=%d err=%v", len(few), err)
	}

	if ok, err := s.UpdateColumns(ctx, smallID, []string{"question", "answer"}); err != nil || !ok {
		t.Fatalf("update columns: ok=%v err=%v", ok, err)
	}
	if ok, err := s.UpdateEncoding(ctx, smallID, domain.EncodingShiftJIS); err != nil || !ok {
		t.Fatalf("update encoding: ok=%v err=%v", ok, err)
	}
	if ok, err := s.UpdateDelimiter(ctx, smallID, ";"); err != nil || !ok {
		t.Fatalf("update delimiter: ok=%v err=%v", ok, err)
	}
	rec, _ := s.Get(ctx, smallID)
	info := s.SpecificFields(rec)
	if len(info.Columns) != 2 || info.Columns[0] != "question" {
		t.Fatalf("columns: %v", info.Columns)
	}
	if info.Encoding != domain.EncodingShiftJIS || info.Delimiter != ";" {
		t.Fatalf("encoding/delimiter: %q %q", info.Encoding, info.Delimiter)
	}

	byEnc, err := s.GetByEncoding(ctx, domain.EncodingShiftJIS)
	if err != nil || len(byEnc) != 1 {
		t.Fatalf("by encoding: n=%d err=%v", len(byEnc), err)
	}
}

func TestFlashcardStats(t *testing.T) {
	s := newTestFlashcardStorage(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, writeDeck(t, "a.csv", []byte("q,a\n1,2\n3,4\n")), "deckA", nil); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if _, err := s.Save(ctx, writeDeck(t, "b.csv", []byte("q;a\n1;2\n3;4\n5;6\n7;8\n")), "deckB", nil); err != nil {
		t.Fatalf("save b: %v", err)
	}

	stats, err := s.FlashcardStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalFiles != 2 {
		t.Fatalf("total files: %d", stats.TotalFiles)
	}
	if stats.TotalRows != 6 {
		t.Fatalf("total rows: %d", stats.TotalRows)
	}
	if stats.AvgRowsPerFile != 3 {
		t.Fatalf("avg rows: %f", stats.AvgRowsPerFile)
	}
	if stats.Encodings[domain.EncodingUTF8] != 2 {
		t.Fatalf("encodings: %v", stats.Encodings)
	}
	if stats.Delimiters[","] != 1 || stats.Delimiters[";"] != 1 {
		t.Fatalf("delimiters: %v", stats.Delimiters)
	}
	if stats.Collections != 2 {
		t.Fatalf("collections: %d", stats.Collections)
	}
}

func TestSniffDelimiter(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"a,b,c\n1,2,3", ","},
		{"a;b;c\n", ";"},
		{"a\tb\tc", "\t"},
		{"a|b|c", "|"},
		{"single", ","},
		{"a,b;c;d", ";"},
	}
	for _, tc := range cases {
		if got := sniffDelimiter(tc.header); got != tc.want {
			t.Fatalf("sniffDelimiter(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
