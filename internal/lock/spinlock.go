// Package lock provides the spinlock used for the one critical section the
// planner actually needs: quick_stop's four-index swap. Everything else in
// the ring buffer is lock-free (plain atomics), per spec.
package lock

import (
	"sync/atomic"
)

const maxBackoff = 32

// SpinLock is a tiny CAS-based lock, cheap enough to hold for a handful of
// stores without dragging in a general-purpose mutex's wakeup machinery.
type SpinLock uint32

// Lock backs off through Yield rather than a bare runtime.Gosched call, so
// it honors the same scheduler-hint policy (SchedYield on non-Windows,
// Gosched on Windows) as every other spin-wait in this module instead of
// hardcoding the GOOS-naive one.
func (sl *SpinLock) Lock() {
	backoff := 1
	for !atomic.CompareAndSwapUint32((*uint32)(sl), 0, 1) {
		for i := 0; i < backoff; i++ {
			Yield()
		}
		if backoff < maxBackoff {
			backoff <<= 1
		}
	}
}

func (sl *SpinLock) Unlock() {
	atomic.StoreUint32((*uint32)(sl), 0)
}
