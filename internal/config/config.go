/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads and persists the user-editable application
// configuration. The config lives as a YAML file in the per-user config
// directory; environment variables act as read-only overrides at runtime.
// The Postgres catalog password is never written to disk — it lives in the
// OS keyring.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// StorageConfig controls the resource vault on disk.
type StorageConfig struct {
	BasePath         string `yaml:"base_path"`         // vault root; empty means "choose per invocation"
	ThumbnailMaxPx   int    `yaml:"thumbnail_max_px"`  // bounding box edge for thumbnails
	ThumbnailQuality int    `yaml:"thumbnail_quality"` // JPEG quality 1-100
}

// CatalogConfig selects the metadata catalog engine.
// Driver is "sqlite" (default, one db file per content type under <base>/db)
// or "postgres" (shared database, one table per content type).
type CatalogConfig struct {
	Driver      string `yaml:"driver"`
	PostgresDSN string `yaml:"postgres_dsn"`
	// The Postgres password is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Storage       StorageConfig `yaml:"storage"`
	Catalog       CatalogConfig `yaml:"catalog"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Storage:       StorageConfig{BasePath: "", ThumbnailMaxPx: 200, ThumbnailQuality: 85},
		Catalog:       CatalogConfig{Driver: "sqlite", PostgresDSN: ""},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvBasePath         = "CST_BASE_PATH"
	EnvThumbnailMaxPx   = "CST_THUMBNAIL_MAX_PX"
	EnvCatalogDriver    = "CST_CATALOG_DRIVER"
	EnvPostgresDSN      = "CST_PG_DSN"
	EnvLogLevel         = "CST_LOG_LEVEL"
	EnvLogFormat        = "CST_LOG_FORMAT"
	EnvLogSource        = "CST_LOG_SOURCE"
	EnvLogFile          = "CST_LOG_FILE"
	EnvPostgresPassword = "CST_PG_PASSWORD" // test/dev override, bypasses keyring
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "CardStash")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "CardStash")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "cardstash")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides. The Postgres password comes from the keyring (or the
// CST_PG_PASSWORD override) and is returned separately, never kept in the struct.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	pw := os.Getenv(EnvPostgresPassword)
	if pw == "" {
		pw, _ = secretStore.Get(keyringService, keyringPGPassword)
	}
	return cfg, pw, nil
}

// Save writes the user config YAML and persists the Postgres password into
// the OS keyring (if non-empty).
func Save(cfg AppConfig, pgPassword string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if pgPassword != "" {
		if err := secretStore.Set(keyringService, keyringPGPassword, pgPassword); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if strings.TrimSpace(src.Storage.BasePath) != "" {
		dst.Storage.BasePath = strings.TrimSpace(src.Storage.BasePath)
	}
	if src.Storage.ThumbnailMaxPx > 0 {
		dst.Storage.ThumbnailMaxPx = src.Storage.ThumbnailMaxPx
	}
	if src.Storage.ThumbnailQuality > 0 && src.Storage.ThumbnailQuality <= 100 {
		dst.Storage.ThumbnailQuality = src.Storage.ThumbnailQuality
	}
	if strings.TrimSpace(src.Catalog.Driver) != "" {
		dst.Catalog.Driver = strings.ToLower(strings.TrimSpace(src.Catalog.Driver))
	}
	if strings.TrimSpace(src.Catalog.PostgresDSN) != "" {
		dst.Catalog.PostgresDSN = strings.TrimSpace(src.Catalog.PostgresDSN)
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBasePath)); v != "" {
		cfg.Storage.BasePath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvThumbnailMaxPx)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Storage.ThumbnailMaxPx = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCatalogDriver)); v != "" {
		cfg.Catalog.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Catalog.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.Source = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	switch key {
	case "storage.base_path":
		if os.Getenv(EnvBasePath) != "" {
			return EnvBasePath, true
		}
	case "storage.thumbnail_max_px":
		if os.Getenv(EnvThumbnailMaxPx) != "" {
			return EnvThumbnailMaxPx, true
		}
	case "catalog.driver":
		if os.Getenv(EnvCatalogDriver) != "" {
			return EnvCatalogDriver, true
		}
	case "catalog.postgres_dsn":
		if os.Getenv(EnvPostgresDSN) != "" {
			return EnvPostgresDSN, true
		}
	case "logging.level":
		if os.Getenv(EnvLogLevel) != "" {
			return EnvLogLevel, true
		}
	case "logging.format":
		if os.Getenv(EnvLogFormat) != "" {
			return EnvLogFormat, true
		}
	case "logging.source":
		if os.Getenv(EnvLogSource) != "" {
			return EnvLogSource, true
		}
	case "logging.file":
		if os.Getenv(EnvLogFile) != "" {
			return EnvLogFile, true
		}
	}
	return "", false
}
