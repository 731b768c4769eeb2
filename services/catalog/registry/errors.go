// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import "errors"

var (
	// ErrContextExists indicates a create collided with an existing
	// context ID.
	ErrContextExists = errors.New("context already exists")

	// ErrContextNotFound indicates no context with the given ID exists.
	ErrContextNotFound = errors.New("context not found")

	// ErrContextInactive indicates the context exists but is deactivated.
	// Inactive contexts reject new observations and are hidden from
	// unscoped queries; their stored data is untouched.
	ErrContextInactive = errors.New("context is inactive")

	// ErrImmutableSchema indicates an update tried to change a context's
	// required keys. Every stored field identity hashes over the required
	// values, so the key set is frozen at creation.
	ErrImmutableSchema = errors.New("required metadata keys are immutable")
)
