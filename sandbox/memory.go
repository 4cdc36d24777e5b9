// Package sandbox implements the resource and capability limits the host
// applies to a running script: a memory ceiling and a capability-gated
// security context. Neither has a direct teacher equivalent — the teacher
// (a PHP runtime) trusts its host process's own ulimits — so this package
// is grounded directly on the runtime's own sandboxing requirements rather
// than on an existing file; see DESIGN.md.
package sandbox

import (
	"fmt"
	"sync/atomic"
)

// MemoryLimiter tracks bytes charged against a script's execution and
// refuses to let the total exceed Limit. It does not wrap a Go allocator
// (Go gives no portable per-goroutine allocation hook); instead the VM
// calls Charge/Release around every aggregate allocation and string copy,
// which is the same manual accounting discipline the value system already
// uses for reference counts.
type MemoryLimiter struct {
	limit   int64
	used    int64
}

// NewMemoryLimiter creates a limiter. A limit of 0 means unlimited.
func NewMemoryLimiter(limit int64) *MemoryLimiter {
	return &MemoryLimiter{limit: limit}
}

// MemoryLimitError is returned by Charge when the request would exceed the
// configured ceiling; the VM turns it into a MemoryLimitExceeded runtime
// error.
type MemoryLimitError struct {
	Requested int64
	Used      int64
	Limit     int64
}

func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded: used=%d requested=%d limit=%d", e.Used, e.Requested, e.Limit)
}

// Charge accounts for n additional bytes, failing without mutating state if
// it would push usage past the limit.
func (m *MemoryLimiter) Charge(n int64) error {
	if m.limit <= 0 {
		atomic.AddInt64(&m.used, n)
		return nil
	}
	for {
		cur := atomic.LoadInt64(&m.used)
		next := cur + n
		if next > m.limit {
			return &MemoryLimitError{Requested: n, Used: cur, Limit: m.limit}
		}
		if atomic.CompareAndSwapInt64(&m.used, cur, next) {
			return nil
		}
	}
}

// Release gives back n bytes previously charged, e.g. when an aggregate's
// refcount reaches zero and its backing storage is freed.
func (m *MemoryLimiter) Release(n int64) {
	atomic.AddInt64(&m.used, -n)
	if atomic.LoadInt64(&m.used) < 0 {
		atomic.StoreInt64(&m.used, 0)
	}
}

func (m *MemoryLimiter) Used() int64  { return atomic.LoadInt64(&m.used) }
func (m *MemoryLimiter) Limit() int64 { return m.limit }

// ReleaseAll drops all outstanding charges at once, the bulk-teardown
// counterpart to the one-at-a-time Release an aggregate's refcount drop
// triggers. Arena mode calls this at engine Close instead of tracking and
// releasing every string charge individually.
func (m *MemoryLimiter) ReleaseAll() {
	atomic.StoreInt64(&m.used, 0)
}

// EstimateSize returns a rough accounting cost for a value, used by the VM
// before allocating arrays/tables/strings. It does not need to be exact —
// only monotonic enough that growth is charged and shrink-to-zero is
// released — so it counts backing-store bytes, not Go's internal header
// overhead.
func EstimateSize(kind string, n int) int64 {
	switch kind {
	case "string":
		return int64(n)
	case "array_slot":
		return int64(n) * 32
	case "table_slot":
		return int64(n) * 48
	default:
		return int64(n)
	}
}
