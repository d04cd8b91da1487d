// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain holds the core entities and value types shared across the
// online request path: users, transcripts, chunks, channels, conversations,
// messages, and the classifier's intent enumeration.
package domain

import "fmt"

// Intent is a closed enumeration of the classifier's output labels. It is a
// tagged variant rather than a bare string so that an unrecognized value
// fails to parse instead of silently propagating through the pipeline.
type Intent string

const (
	IntentChitchat                   Intent = "chitchat"
	IntentQA                         Intent = "qa"
	IntentLinkedIn                   Intent = "linkedin"
	IntentMetadata                   Intent = "metadata"
	IntentMetadataSearch             Intent = "metadata_search"
	IntentMetadataSearchAndSummarize Intent = "metadata_search_and_summarize"
	IntentVideoLoad                  Intent = "video_load"
)

// ParseIntent validates s against the closed set of known intents. Callers at
// the LLM adapter boundary must call this exactly once and fail closed on an
// unrecognized value rather than let a raw string cross into the pipeline.
func ParseIntent(s string) (Intent, error) {
	switch Intent(s) {
	case IntentChitchat, IntentQA, IntentLinkedIn, IntentMetadata,
		IntentMetadataSearch, IntentMetadataSearchAndSummarize, IntentVideoLoad:
		return Intent(s), nil
	default:
		return "", fmt.Errorf("domain: unrecognized intent %q", s)
	}
}

// RequiresRetrieval reports whether this intent routes through the
// retrieve → grade stages before generation.
func (i Intent) RequiresRetrieval() bool {
	switch i {
	case IntentQA, IntentLinkedIn, IntentMetadataSearch, IntentMetadataSearchAndSummarize:
		return true
	default:
		return false
	}
}

// IsVideoLoad reports whether this intent takes the side-effect ingestion
// path instead of normal generation.
func (i Intent) IsVideoLoad() bool {
	return i == IntentVideoLoad
}

// NeedsVideoListings reports whether this intent's prompt is built from the
// user's video library listing rather than transcript excerpts.
func (i Intent) NeedsVideoListings() bool {
	switch i {
	case IntentMetadata, IntentMetadataSearch, IntentMetadataSearchAndSummarize:
		return true
	default:
		return false
	}
}

func (i Intent) String() string { return string(i) }
