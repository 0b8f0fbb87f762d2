//go:build windows

package lock

import "runtime"

func Yield() {
	runtime.Gosched()
}
