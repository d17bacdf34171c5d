/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import "errors"

var (
	// ErrDuplicate marks a save whose content hash is already cataloged.
	// This is a normal outcome, not a failure: the bytes are stored once.
	ErrDuplicate = errors.New("duplicate content hash")

	// ErrUnknownType is returned for content type names outside the registry.
	ErrUnknownType = errors.New("unsupported content type")

	// ErrPlacement marks a failed copy of the source file into the vault.
	ErrPlacement = errors.New("file placement failed")
)
