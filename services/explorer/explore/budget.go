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
	"fmt"
	"sync/atomic"
)

// CallBudget tracks proposal call attempts during one iteration.
//
// A slot is reserved before an attempt is issued. Each reserved slot is then
// either issued (MarkIssued) or returned (Refund). The number of reserved
// slots never exceeds the remaining allowance, so concurrent callers cannot
// oversubscribe the exploration's max_llm_calls.
//
// Thread Safety: Safe for concurrent use.
type CallBudget struct {
	available int64

	reserved int64
	issued   int64
}

// NewCallBudget creates a budget for the calls left in an exploration.
//
// Inputs:
//   - limit: The exploration's max_llm_calls.
//   - used: Calls already issued in earlier iterations.
//
// Outputs:
//   - *CallBudget: Budget tracker, ready to use.
func NewCallBudget(limit, used int) *CallBudget {
	available := int64(limit - used)
	if available < 0 {
		available = 0
	}
	return &CallBudget{available: available}
}

// Grant reserves up to n slots and returns how many were reserved.
func (b *CallBudget) Grant(n int) int {
	if n <= 0 {
		return 0
	}
	for {
		cur := atomic.LoadInt64(&b.reserved)
		free := b.available - cur
		if free <= 0 {
			return 0
		}
		take := int64(n)
		if take > free {
			take = free
		}
		if atomic.CompareAndSwapInt64(&b.reserved, cur, cur+take) {
			return int(take)
		}
	}
}

// TryReserve reserves a single slot, typically for a retry.
func (b *CallBudget) TryReserve() bool {
	return b.Grant(1) == 1
}

// Refund returns a reserved slot that was never issued.
func (b *CallBudget) Refund() {
	if atomic.AddInt64(&b.reserved, -1) < 0 {
		atomic.AddInt64(&b.reserved, 1)
	}
}

// MarkIssued records that a reserved slot was spent on an actual call.
func (b *CallBudget) MarkIssued() int64 {
	return atomic.AddInt64(&b.issued, 1)
}

// Used returns the number of attempts issued against this budget.
func (b *CallBudget) Used() int {
	return int(atomic.LoadInt64(&b.issued))
}

// Reserved returns the number of slots currently reserved or issued.
func (b *CallBudget) Reserved() int {
	return int(atomic.LoadInt64(&b.reserved))
}

// Remaining returns the slots that can still be reserved.
func (b *CallBudget) Remaining() int {
	if r := b.available - atomic.LoadInt64(&b.reserved); r > 0 {
		return int(r)
	}
	return 0
}

// Exhausted returns true when no further slot can be reserved.
func (b *CallBudget) Exhausted() bool {
	return b.Remaining() == 0
}

// String returns a human-readable budget status.
func (b *CallBudget) String() string {
	return fmt.Sprintf("CallBudget{issued=%d, reserved=%d, available=%d}",
		b.Used(), b.Reserved(), b.available)
}
