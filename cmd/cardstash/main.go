/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cardstash/internal/config"
	"cardstash/internal/crash"
	"cardstash/internal/export"
	applog "cardstash/internal/log"
	"cardstash/internal/storage"
	"cardstash/internal/version"
)

func usage() {
	fmt.Println("CardStash — file vault for images and flashcard decks")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cardstash version|-v|--version                 Show version")
	fmt.Println("  cardstash init <dir>                           Create a vault at <dir>")
	fmt.Println("  cardstash add-image <dir> <file> [collection]  Store an image")
	fmt.Println("  cardstash add-deck <dir> <file> [collection]   Store a flashcard CSV deck")
	fmt.Println("  cardstash list <dir> <image|flashcard>         List stored files")
	fmt.Println("  cardstash delete <dir> <image|flashcard> <id>  Delete a stored file")
	fmt.Println("  cardstash stats <dir>                          Print vault statistics as JSON")
	fmt.Println("  cardstash report <dir> <out.pdf>               Write a PDF statistics report")
	fmt.Println("  cardstash sheet <dir> <out.pdf> [collection]   Write a thumbnail contact sheet")
	fmt.Println("  cardstash paths <dir>                          Print the vault directory layout")
	fmt.Println()
	fmt.Println("The vault directory may be omitted when storage.base_path is configured.")
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var ctrl *storage.Controller
	defer func() { crash.Recover(ctrl) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}

	ctx := context.Background()
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("CardStash — file vault for images and flashcard decks")
		fmt.Println(version.String())
		return

	case "init":
		ctrl = openVault(l, argAt(args, 2))
		fmt.Println("Vault ready at", ctrl.BasePath())
		// provision both catalogs now so first use is cheap
		if _, err := ctrl.ImageStorage(ctx); err != nil {
			fail(l, "init image catalog", err)
		}
		if _, err := ctrl.FlashcardStorage(ctx); err != nil {
			fail(l, "init flashcard catalog", err)
		}
		defer closeVault(l, ctrl)
		return

	case "add-image":
		if len(args) < 4 {
			fmt.Println("add-image requires <dir> and <file>")
			usage()
			os.Exit(2)
		}
		ctrl = openVault(l, args[2])
		defer closeVault(l, ctrl)
		s, err := ctrl.ImageStorage(ctx)
		if err != nil {
			fail(l, "open image storage", err)
		}
		id, err := s.Save(ctx, args[3], argAt(args, 4), nil)
		if errors.Is(err, storage.ErrDuplicate) {
			fmt.Println("Already stored (identical content).")
			return
		}
		if err != nil {
			fail(l, "store image", err)
		}
		fmt.Println("Stored image with id", id)
		return

	case "add-deck":
		if len(args) < 4 {
			fmt.Println("add-deck requires <dir> and <file>")
			usage()
			os.Exit(2)
		}
		ctrl = openVault(l, args[2])
		defer closeVault(l, ctrl)
		s, err := ctrl.FlashcardStorage(ctx)
		if err != nil {
			fail(l, "open flashcard storage", err)
		}
		id, err := s.Save(ctx, args[3], argAt(args, 4), nil)
		if errors.Is(err, storage.ErrDuplicate) {
			fmt.Println("Already stored (identical content).")
			return
		}
		if err != nil {
			fail(l, "store deck", err)
		}
		fmt.Println("Stored deck with id", id)
		return

	case "list":
		if len(args) < 4 {
			fmt.Println("list requires <dir> and a content type")
			usage()
			os.Exit(2)
		}
		ctrl = openVault(l, args[2])
		defer closeVault(l, ctrl)
		s, err := ctrl.GetStorage(ctx, args[3])
		if err != nil {
			fail(l, "select storage", err)
		}
		recs, err := s.GetAll(ctx)
		if err != nil {
			fail(l, "list", err)
		}
		for _, rec := range recs {
			fmt.Printf("%6d  %-30s  %s\n", rec.ID(), rec.String("original_name"), rec.String("collection"))
		}
		fmt.Printf("%d files\n", len(recs))
		return

	case "delete":
		if len(args) < 5 {
			fmt.Println("delete requires <dir>, a content type and an id")
			usage()
			os.Exit(2)
		}
		ctrl = openVault(l, args[2])
		defer closeVault(l, ctrl)
		s, err := ctrl.GetStorage(ctx, args[3])
		if err != nil {
			fail(l, "select storage", err)
		}
		id, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil {
			fail(l, "parse id", err)
		}
		ok, err := s.Delete(ctx, id)
		if err != nil {
			fail(l, "delete", err)
		}
		if !ok {
			fmt.Println("No such id.")
			os.Exit(1)
		}
		fmt.Println("Deleted", id)
		return

	case "stats":
		ctrl = openVault(l, argAt(args, 2))
		defer closeVault(l, ctrl)
		stats, err := ctrl.StorageStats(ctx)
		if err != nil {
			fail(l, "stats", err)
		}
		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			fail(l, "encode stats", err)
		}
		fmt.Println(string(out))
		return

	case "report":
		if len(args) < 4 {
			fmt.Println("report requires <dir> and <out.pdf>")
			usage()
			os.Exit(2)
		}
		ctrl = openVault(l, args[2])
		defer closeVault(l, ctrl)
		stats, err := ctrl.StorageStats(ctx)
		if err != nil {
			fail(l, "stats", err)
		}
		if err := export.WriteStatsReport(args[3], stats); err != nil {
			fail(l, "write report", err)
		}
		fmt.Println("Report written to", args[3])
		return

	case "sheet":
		if len(args) < 4 {
			fmt.Println("sheet requires <dir> and <out.pdf>")
			usage()
			os.Exit(2)
		}
		ctrl = openVault(l, args[2])
		defer closeVault(l, ctrl)
		s, err := ctrl.ImageStorage(ctx)
		if err != nil {
			fail(l, "open image storage", err)
		}
		if err := export.WriteContactSheet(ctx, s, argAt(args, 4), args[3], export.ContactSheetOptions{}); err != nil {
			fail(l, "write contact sheet", err)
		}
		fmt.Println("Contact sheet written to", args[3])
		return

	case "paths":
		ctrl = openVault(l, argAt(args, 2))
		defer closeVault(l, ctrl)
		for ct, paths := range ctrl.PathsInfo() {
			fmt.Println(ct + ":")
			for _, k := range []string{"base", "storage", "thumbnails", "temp"} {
				fmt.Printf("  %-11s %s\n", k, paths[k])
			}
		}
		return
	}

	usage()
}

// openVault resolves the vault base path (argument first, then the
// configured storage.base_path) and opens a controller per the user config.
func openVault(l *slog.Logger, dir string) *storage.Controller {
	cfg, pgPassword, err := config.Load()
	if err != nil {
		fail(l, "load config", err)
	}
	base := dir
	if base == "" {
		base = cfg.Storage.BasePath
	}
	if base == "" {
		fmt.Println("No vault directory given and storage.base_path is not configured.")
		usage()
		os.Exit(2)
	}
	abs, _ := filepath.Abs(base)

	dsn := cfg.Catalog.PostgresDSN
	if cfg.Catalog.Driver == "postgres" && pgPassword != "" && !strings.Contains(dsn, "password=") {
		dsn = strings.TrimSpace(dsn + " password=" + pgPassword)
	}
	ctrl, err := storage.NewController(abs, storage.ControllerOptions{
		ThumbnailMaxPx:   cfg.Storage.ThumbnailMaxPx,
		ThumbnailQuality: cfg.Storage.ThumbnailQuality,
		CatalogDriver:    cfg.Catalog.Driver,
		PostgresDSN:      dsn,
	})
	if err != nil {
		fail(l, "open vault", err)
	}
	return ctrl
}

func closeVault(l *slog.Logger, ctrl *storage.Controller) {
	if err := ctrl.Cleanup(); err != nil {
		l.Error("vault close failed", slog.Any("err", err))
	}
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func fail(l *slog.Logger, what string, err error) {
	l.Error(what+" failed", slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}
