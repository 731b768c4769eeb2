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

import "time"

// Clock supplies timestamps for merge operations.
//
// FirstObservedAt and LastObservedAt come from here rather than from
// time.Now directly so tests can pin the merge timestamp.
type Clock interface {
	// CurrentTimeMs returns the current time in Unix milliseconds.
	CurrentTimeMs() int64
}

// systemClock reads the wall clock.
type systemClock struct{}

func (systemClock) CurrentTimeMs() int64 {
	return time.Now().UnixMilli()
}

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock {
	return systemClock{}
}
