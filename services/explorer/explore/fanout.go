// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explore

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn for every item concurrently and waits for all of them.
//
// Results are indexed like items. A failing call never cancels its siblings:
// fn reports failure through its result, not an error, so the group context
// stays live until every call has settled. limit bounds concurrency; values
// <= 0 mean unbounded.
func fanOut[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			results[i] = fn(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
