// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retry provides the single reusable retry decorator named in
// spec.md §9 Design Notes: stop-after-N, exponential backoff, retry on a
// predicate. The LLM client, the embedding client and the pipeline's
// classify and generate nodes wrap their calls with Do instead of
// hand-rolling their own loop; the row store and vector store do not retry —
// retries are never nested.
package retry

import (
	"context"
	"time"
)

// Policy configures Do. Zero value is not usable; start from Default.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
	// Retryable decides whether err warrants another attempt. A nil
	// Retryable retries every non-nil error.
	Retryable func(err error) bool
}

// Default mirrors the pipeline executor's node retry policy from spec
// §4.8: 3 attempts, 1s base, 2x factor, capped at 10s.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Factor:       2,
		MaxDelay:     10 * time.Second,
	}
}

// Do runs fn, retrying per p until it succeeds, p.MaxAttempts is exhausted,
// p.Retryable rejects the error, or ctx is canceled. It returns the last
// error on exhaustion.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	delay := p.InitialDelay
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= time.Duration(p.Factor)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
