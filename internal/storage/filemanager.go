/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	applog "cardstash/internal/log"
	"github.com/google/uuid"
	"golang.org/x/image/draw"

	// Decoders for the formats the vault accepts.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/png"
)

const hashChunkSize = 4096

// Paths is the directory layout one content type's FileManager works in.
// All four directories exist before the FileManager is handed out.
type Paths struct {
	Base       string // vault root
	Storage    string // placed files
	Thumbnails string // derived thumbnails
	Temp       string // staging area for multi-step workflows
}

// FileManager performs all filesystem work for one content type: hashing,
// collision-free naming, placement, thumbnails and deletion. It never talks
// to the catalog; pairing the two is the Storage layer's job.
type FileManager struct {
	paths        Paths
	thumbMaxPx   int
	thumbQuality int
	log          *slog.Logger
}

// NewFileManager returns a FileManager over the given layout. thumbMaxPx
// bounds the longer thumbnail edge, thumbQuality is JPEG quality 1..100.
func NewFileManager(p Paths, thumbMaxPx, thumbQuality int) *FileManager {
	if thumbMaxPx <= 0 {
		thumbMaxPx = 200
	}
	if thumbQuality <= 0 || thumbQuality > 100 {
		thumbQuality = 85
	}
	return &FileManager{
		paths:        p,
		thumbMaxPx:   thumbMaxPx,
		thumbQuality: thumbQuality,
		log:          applog.WithComponent("files").With(slog.String("base", p.Base)),
	}
}

// CalculateHash returns the lowercase hex SHA-256 of the file's content,
// read in 4 KiB chunks so large files never load whole.
func (fm *FileManager) CalculateHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, hashChunkSize)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// GenerateFilename returns a collision-free storage name: a random UUID in
// hex plus the original extension lowercased.
func (fm *FileManager) GenerateFilename(originalName string) string {
	u := uuid.New()
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%x%s", u[:], ext)
}

// SaveFile copies src into the storage directory under filename and returns
// the destination path, or "" when the copy failed.
func (fm *FileManager) SaveFile(src, filename string) string {
	dst := filepath.Join(fm.paths.Storage, filename)
	if err := copyFile(src, dst); err != nil {
		fm.log.Error("file placement failed", slog.String("src", src), slog.Any("err", err))
		return ""
	}
	return dst
}

// SaveToTemp stages src in the temp directory for multi-step workflows and
// returns the staged path, or "" when the copy failed.
func (fm *FileManager) SaveToTemp(src string) string {
	u := uuid.New()
	ext := strings.ToLower(filepath.Ext(src))
	dst := filepath.Join(fm.paths.Temp, fmt.Sprintf("temp_%x%s", u[:], ext))
	if err := copyFile(src, dst); err != nil {
		fm.log.Error("temp placement failed", slog.String("src", src), slog.Any("err", err))
		return ""
	}
	return dst
}

// MoveFromTemp promotes a staged file into permanent storage under filename.
// Rename is attempted first; a copy+remove covers cross-device temp dirs.
// Returns the final path, or "" on failure.
func (fm *FileManager) MoveFromTemp(tempPath, filename string) string {
	dst := filepath.Join(fm.paths.Storage, filename)
	if err := os.Rename(tempPath, dst); err == nil {
		return dst
	}
	if err := copyFile(tempPath, dst); err != nil {
		fm.log.Error("promote from temp failed", slog.String("temp", tempPath), slog.Any("err", err))
		return ""
	}
	_ = os.Remove(tempPath)
	return dst
}

// CreateThumbnail renders a bounded JPEG preview of the stored image and
// returns the thumbnail path, or "" when the source cannot be decoded or
// the write fails. Images already within bounds are re-encoded unscaled.
func (fm *FileManager) CreateThumbnail(storedPath string) string {
	f, err := os.Open(storedPath)
	if err != nil {
		fm.log.Warn("thumbnail open failed", slog.String("path", storedPath), slog.Any("err", err))
		return ""
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		fm.log.Warn("thumbnail decode failed", slog.String("path", storedPath), slog.Any("err", err))
		return ""
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return ""
	}
	tw, th := w, h
	if w > fm.thumbMaxPx || h > fm.thumbMaxPx {
		if w >= h {
			tw = fm.thumbMaxPx
			th = h * fm.thumbMaxPx / w
		} else {
			th = fm.thumbMaxPx
			tw = w * fm.thumbMaxPx / h
		}
		if tw < 1 {
			tw = 1
		}
		if th < 1 {
			th = 1
		}
	}

	// JPEG has no alpha channel; composite onto white first.
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	stddraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, stddraw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	base := strings.TrimSuffix(filepath.Base(storedPath), filepath.Ext(storedPath))
	thumbPath := filepath.Join(fm.paths.Thumbnails, "thumb_"+base+".jpg")
	out, err := os.OpenFile(thumbPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		fm.log.Warn("thumbnail create failed", slog.String("path", thumbPath), slog.Any("err", err))
		return ""
	}
	if err := jpeg.Encode(out, dst, &jpeg.Options{Quality: fm.thumbQuality}); err != nil {
		_ = out.Close()
		_ = os.Remove(thumbPath)
		fm.log.Warn("thumbnail encode failed", slog.String("path", thumbPath), slog.Any("err", err))
		return ""
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(thumbPath)
		return ""
	}
	return thumbPath
}

// DeleteFile removes a stored file and its thumbnail. Missing files are
// fine; only an unexpected removal error yields false.
func (fm *FileManager) DeleteFile(path, thumbPath string) bool {
	ok := true
	for _, p := range []string{path, thumbPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			fm.log.Warn("remove failed", slog.String("path", p), slog.Any("err", err))
			ok = false
		}
	}
	return ok
}

// FilePath returns the storage path a placed filename resolves to.
func (fm *FileManager) FilePath(filename string) string {
	return filepath.Join(fm.paths.Storage, filename)
}

// RelativePath rewrites an absolute vault path relative to the base so the
// catalog stays valid when the vault directory moves.
func (fm *FileManager) RelativePath(abs string) string {
	rel, err := filepath.Rel(fm.paths.Base, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

// AbsolutePath resolves a catalog-stored relative path against the base.
// Already-absolute paths pass through for older catalogs.
func (fm *FileManager) AbsolutePath(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(fm.paths.Base, filepath.FromSlash(rel))
}

// PathsInfo reports the directory layout for diagnostics.
func (fm *FileManager) PathsInfo() map[string]string {
	return map[string]string{
		"base":       fm.paths.Base,
		"storage":    fm.paths.Storage,
		"thumbnails": fm.paths.Thumbnails,
		"temp":       fm.paths.Temp,
	}
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	if err := df.Sync(); err != nil {
		return err
	}
	return nil
}
