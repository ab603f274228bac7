//go:build linux

package worker

import (
	"time"

	"golang.org/x/sys/unix"
)

// threadCPUTime returns the CPU time consumed by the calling thread. Time
// spent sleeping, blocked on I/O, or waiting on locks does not advance
// this clock.
func threadCPUTime() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_THREAD_CPUTIME_ID, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}

// threadCPUTimeOf returns the CPU time consumed by another thread in this
// process, identified by kernel thread id. Uses the kernel's per-thread
// CPU clock id encoding: ((~tid) << 3) | CPUCLOCK_SCHED | PERTHREAD_MASK.
func threadCPUTimeOf(tid int) (time.Duration, bool) {
	clockID := int32((^tid)<<3 | 6)
	var ts unix.Timespec
	if err := unix.ClockGettime(clockID, &ts); err != nil {
		return 0, false
	}
	return time.Duration(ts.Nano()), true
}

// CPUTimer measures CPU time spent on the calling thread between start
// and elapsed. Used for task accounting; meaningful only when the
// measuring goroutine stays locked to one OS thread.
type CPUTimer struct {
	start time.Duration
}

// StartCPUTimer begins measuring the calling thread's CPU time.
func StartCPUTimer() CPUTimer {
	return CPUTimer{start: threadCPUTime()}
}

// Elapsed returns CPU time consumed since the timer started.
func (t CPUTimer) Elapsed() time.Duration {
	now := threadCPUTime()
	if now < t.start {
		return 0
	}
	return now - t.start
}
