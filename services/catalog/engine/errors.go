// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "errors"

var (
	// ErrFieldNotFound is returned when no catalog entry exists for the
	// requested field ID.
	ErrFieldNotFound = errors.New("field not found")

	// ErrInvalidCasing is returned when a canonical casing selection names
	// a casing that was never observed for the field.
	ErrInvalidCasing = errors.New("casing not observed for field")
)
