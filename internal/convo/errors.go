// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package convo

import "errors"

var (
	// ErrForbidden is returned when a caller who is not the owner attempts
	// to read or mutate a conversation (spec §4.2: "403 if not owner").
	ErrForbidden = errors.New("convo: not the owner")

	// ErrInvalidTitle is returned by UpdateTitle for an empty or
	// over-length title (spec §4.2: "Title ≤ 200 chars, non-empty").
	ErrInvalidTitle = errors.New("convo: title must be 1-200 characters")

	// ErrChannelDeleted names the soft-deleted-channel case (spec §4.2:
	// "asserts channel is not soft-deleted"). No function in this package
	// returns it: Channel.GetOrCreate reports a soft-deleted channel with
	// the store's ErrNotFound.
	ErrChannelDeleted = errors.New("convo: channel is deleted")
)

const maxTitleLen = 200
