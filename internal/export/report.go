/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders vault reports to PDF: a statistics summary and a
// thumbnail contact sheet. Built-in Helvetica keeps text vector without
// font embedding.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"cardstash/internal/domain"
	"cardstash/internal/storage"
	"cardstash/internal/version"
)

// WriteStatsReport renders the aggregated vault statistics as a one-page
// (or more, if the collection lists run long) A4 PDF at outPath.
func WriteStatsReport(outPath string, stats domain.VaultStats) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("CardStash Vault Report", false)
	pdf.SetAuthor("CardStash "+version.String(), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Vault Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d files, %s total", stats.TotalFiles, formatBytes(stats.TotalSize)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	writeSectionHeader(pdf, "Images")
	writeKV(pdf, "Files", fmt.Sprintf("%d", stats.Image.TotalFiles))
	writeKV(pdf, "Size", formatBytes(stats.Image.TotalSize))
	writeKV(pdf, "Collections", strings.Join(stats.Image.CollectionNames, ", "))
	writeCountMap(pdf, "Formats", stats.Image.Formats)
	writeCountMap(pdf, "Types", stats.Image.Types)
	writeCountMap(pdf, "Size classes", stats.Image.Sizes)
	pdf.Ln(4)

	writeSectionHeader(pdf, "Flashcard decks")
	writeKV(pdf, "Files", fmt.Sprintf("%d", stats.Flashcard.TotalFiles))
	writeKV(pdf, "Size", formatBytes(stats.Flashcard.TotalSize))
	writeKV(pdf, "Collections", strings.Join(stats.Flashcard.CollectionNames, ", "))
	writeKV(pdf, "Cards", fmt.Sprintf("%d", stats.Flashcard.TotalRows))
	writeKV(pdf, "Avg cards per deck", fmt.Sprintf("%.1f", stats.Flashcard.AvgRowsPerFile))
	writeCountMap(pdf, "Encodings", stats.Flashcard.Encodings)
	writeCountMap(pdf, "Delimiters", stats.Flashcard.Delimiters)

	return outputPDF(pdf, outPath)
}

// ContactSheetOptions tunes the thumbnail grid. Zero values select a 4x6
// grid on A4 with 10 mm margins.
type ContactSheetOptions struct {
	Columns  int
	Rows     int
	MarginMM float64
}

// WriteContactSheet renders every image of one collection (or the whole
// store when collection is empty) as a paged thumbnail grid at outPath.
// Images whose thumbnail is missing are skipped.
func WriteContactSheet(ctx context.Context, s *storage.ImageStorage, collection, outPath string, opt ContactSheetOptions) error {
	if opt.Columns <= 0 {
		opt.Columns = 4
	}
	if opt.Rows <= 0 {
		opt.Rows = 6
	}
	if opt.MarginMM <= 0 {
		opt.MarginMM = 10
	}

	var recs []storage.Record
	var err error
	if collection == "" {
		recs, err = s.GetAll(ctx)
	} else {
		recs, err = s.GetByCollection(ctx, collection)
	}
	if err != nil {
		return fmt.Errorf("contact sheet query: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("CardStash Contact Sheet", false)
	pdf.SetAuthor("CardStash "+version.String(), false)
	pdf.SetFont("Helvetica", "", 7)

	pageW, pageH := pdf.GetPageSize()
	cellW := (pageW - 2*opt.MarginMM) / float64(opt.Columns)
	cellH := (pageH - 2*opt.MarginMM) / float64(opt.Rows)
	imgH := cellH - 6 // caption strip below the image

	perPage := opt.Columns * opt.Rows
	placed := 0
	for _, rec := range recs {
		thumb := rec.String("thumbnail_path")
		if thumb == "" {
			continue
		}
		if _, err := os.Stat(thumb); err != nil {
			continue
		}
		if placed%perPage == 0 {
			pdf.AddPage()
		}
		slot := placed % perPage
		x := opt.MarginMM + float64(slot%opt.Columns)*cellW
		y := opt.MarginMM + float64(slot/opt.Columns)*cellH

		// image type inferred from the file extension
		pdf.ImageOptions(thumb, x+1, y+1, cellW-2, imgH-2, false,
			gofpdf.ImageOptions{ReadDpi: false}, 0, "")
		caption := rec.String("original_name")
		if caption == "" {
			caption = rec.String("filename")
		}
		pdf.SetXY(x+1, y+imgH)
		pdf.CellFormat(cellW-2, 4, caption, "", 0, "C", false, 0, "")
		placed++
	}
	if placed == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "I", 12)
		pdf.CellFormat(0, 10, "No images with thumbnails.", "", 1, "L", false, 0, "")
	}

	return outputPDF(pdf, outPath)
}

func outputPDF(pdf *gofpdf.Fpdf, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf %s: %w", outPath, err)
	}
	return nil
}

func writeSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 9, title, "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.Ln(1)
}

func writeKV(pdf *gofpdf.Fpdf, key, value string) {
	if value == "" {
		value = "-"
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(45, 6, key, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func writeCountMap(pdf *gofpdf.Fpdf, key string, m map[string]int) {
	if len(m) == 0 {
		writeKV(pdf, key, "-")
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		label := k
		if label == "\t" {
			label = "tab"
		}
		parts = append(parts, fmt.Sprintf("%s: %d", label, m[k]))
	}
	writeKV(pdf, key, strings.Join(parts, "   "))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
