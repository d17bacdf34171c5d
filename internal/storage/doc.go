/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the content-addressed resource vault.
// It persists user-supplied files (images, CSV flashcard decks) with
// content-hash deduplication, keeps per-type structured metadata in a
// relational catalog (embedded SQLite by default, Postgres optionally),
// and derives artifacts such as thumbnails. The Controller owns the
// directory skeleton and lazily provisions one Storage per content type;
// each Storage composes a FileManager (filesystem only) with a Catalog
// (schema-validated CRUD over one table).
//
// The design is single-writer: one Controller owns a given base path for
// the process lifetime, and callers serialize writes per content type.
package storage
