//go:build !windows

package lock

import "golang.org/x/sys/unix"

// Yield is used by the planner's back-pressure spin-wait (ring buffer full)
// and by synchronize()'s idle loop. It is a scheduler hint, not a sleep.
func Yield() {
	_, _, _ = unix.Syscall(unix.SYS_SCHED_YIELD, 0, 0, 0)
}
