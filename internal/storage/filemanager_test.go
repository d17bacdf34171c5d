/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFileManager(t *testing.T) *FileManager {
	t.Helper()
	base := t.TempDir()
	p := Paths{
		Base:       base,
		Storage:    filepath.Join(base, "image"),
		Thumbnails: filepath.Join(base, "thumbnails", "image"),
		Temp:       filepath.Join(base, "temp", "image"),
	}
	for _, d := range []string{p.Storage, p.Thumbnails, p.Temp} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	return NewFileManager(p, 200, 85)
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestCalculateHash(t *testing.T) {
	fm := newTestFileManager(t)
	src := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(src, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := fm.CalculateHash(src)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("hash mismatch:\n got %s\nwant %s", got, want)
	}
	if _, err := fm.CalculateHash(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestGenerateFilename(t *testing.T) {
	fm := newTestFileManager(t)
	a := fm.GenerateFilename("Photo.PNG")
	b := fm.GenerateFilename("Photo.PNG")
	if a == b {
		t.Fatalf("generated names collide: %s", a)
	}
	if !strings.HasSuffix(a, ".png") {
		t.Fatalf("extension not lowercased: %s", a)
	}
	if len(a) != 32+len(".png") {
		t.Fatalf("unexpected name length: %s", a)
	}
	if got := fm.GenerateFilename("noext"); len(got) != 32 {
		t.Fatalf("extensionless name wrong: %s", got)
	}
}

func TestSaveFileAndDelete(t *testing.T) {
	fm := newTestFileManager(t)
	src := filepath.Join(t.TempDir(), "in.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	placed := fm.SaveFile(src, "abc123.bin")
	if placed == "" {
		t.Fatalf("placement failed")
	}
	data, err := os.ReadFile(placed)
	if err != nil || string(data) != "payload" {
		t.Fatalf("placed content wrong: %q err=%v", data, err)
	}

	if got := fm.SaveFile(filepath.Join(t.TempDir(), "missing"), "x.bin"); got != "" {
		t.Fatalf("expected empty path for missing source, got %s", got)
	}

	if !fm.DeleteFile(placed, "") {
		t.Fatalf("delete failed")
	}
	if _, err := os.Stat(placed); !os.IsNotExist(err) {
		t.Fatalf("file survived delete")
	}
	// deleting the already-gone file again is fine
	if !fm.DeleteFile(placed, "") {
		t.Fatalf("delete of missing file should succeed")
	}
}

func TestTempStaging(t *testing.T) {
	fm := newTestFileManager(t)
	src := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(src, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	staged := fm.SaveToTemp(src)
	if staged == "" {
		t.Fatalf("staging failed")
	}
	if !strings.HasPrefix(filepath.Base(staged), "temp_") {
		t.Fatalf("staged name missing temp_ prefix: %s", staged)
	}

	final := fm.MoveFromTemp(staged, "final.csv")
	if final == "" {
		t.Fatalf("promote failed")
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Fatalf("temp file survived promotion")
	}
	if data, err := os.ReadFile(final); err != nil || string(data) != "a,b\n1,2\n" {
		t.Fatalf("promoted content wrong: %q err=%v", data, err)
	}
}

func TestCreateThumbnailScalesDown(t *testing.T) {
	fm := newTestFileManager(t)
	src := filepath.Join(fm.paths.Storage, "big.png")
	writeTestPNG(t, src, 1000, 500)

	thumb := fm.CreateThumbnail(src)
	if thumb == "" {
		t.Fatalf("thumbnail failed")
	}
	if filepath.Base(thumb) != "thumb_big.jpg" {
		t.Fatalf("unexpected thumbnail name: %s", thumb)
	}
	f, err := os.Open(thumb)
	if err != nil {
		t.Fatalf("open thumb: %v", err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode thumb: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("thumbnail not jpeg: %s", format)
	}
	if cfg.Width != 200 || cfg.Height != 100 {
		t.Fatalf("thumbnail dimensions: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestCreateThumbnailNoUpscale(t *testing.T) {
	fm := newTestFileManager(t)
	src := filepath.Join(fm.paths.Storage, "small.png")
	writeTestPNG(t, src, 120, 80)

	thumb := fm.CreateThumbnail(src)
	if thumb == "" {
		t.Fatalf("thumbnail failed")
	}
	f, err := os.Open(thumb)
	if err != nil {
		t.Fatalf("open thumb: %v", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode thumb: %v", err)
	}
	if cfg.Width != 120 || cfg.Height != 80 {
		t.Fatalf("small image was rescaled: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestCreateThumbnailRejectsGarbage(t *testing.T) {
	fm := newTestFileManager(t)
	src := filepath.Join(fm.paths.Storage, "junk.png")
	if err := os.WriteFile(src, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if thumb := fm.CreateThumbnail(src); thumb != "" {
		t.Fatalf("expected empty path for undecodable file, got %s", thumb)
	}
}

func TestRelativeAndAbsolutePaths(t *testing.T) {
	fm := newTestFileManager(t)
	abs := filepath.Join(fm.paths.Storage, "x.png")
	rel := fm.RelativePath(abs)
	if filepath.IsAbs(rel) {
		t.Fatalf("expected relative path, got %s", rel)
	}
	if got := fm.AbsolutePath(rel); got != abs {
		t.Fatalf("roundtrip mismatch: %s != %s", got, abs)
	}
	// already-absolute catalog values pass through
	if got := fm.AbsolutePath(abs); got != abs {
		t.Fatalf("absolute passthrough mismatch: %s", got)
	}
	if got := fm.AbsolutePath(""); got != "" {
		t.Fatalf("empty path should stay empty, got %s", got)
	}
}
