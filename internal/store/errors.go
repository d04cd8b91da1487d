// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import "errors"

// ErrNotFound is returned by lookups that find no matching row. The
// conversation service passes it through, and the gateway's classifyError
// translates it into the client-visible NOT_FOUND code.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a write would violate a uniqueness
// constraint the caller did not already guard against (e.g. a duplicate
// channel name or re-ingesting the same video for the same user).
var ErrConflict = errors.New("store: conflict")
