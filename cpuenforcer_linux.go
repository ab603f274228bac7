//go:build linux

package worker

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// cpuEnforcer terminates a worker that burns more than its CPU-time
// budget. It arms a POSIX per-thread timer on CLOCK_THREAD_CPUTIME_ID, so
// the timer only advances while the worker's thread is actually on a CPU:
// a script sitting in `await sleep(...)` yields the thread and is never
// charged. Wall-clock hangs are the wall-clock guard's job.
//
// Signal path: the timer delivers SIGALRM to the process. The Go runtime's
// signal handler is the only async-signal-safe code involved; it forwards
// the signal to a channel (os/signal), and a single dedicated enforcer
// goroutine consumes it, scans the registry keyed by thread id, verifies
// each armed worker's thread CPU clock against its budget, latches
// CpuTimeExceeded, and calls TerminateExecution. No locking or isolate
// access ever happens in signal context.
type cpuEnforcer struct {
	timer unix.Timer
	tid   int
}

type enforcerEntry struct {
	handle     *IsolateHandle
	latch      *terminationLatch
	deadline   time.Duration // absolute thread-CPU-clock deadline
	terminated bool
}

var (
	enforcerMu   sync.Mutex
	enforcers    = make(map[int]*enforcerEntry) // thread id -> armed worker
	enforcerOnce sync.Once
)

// armCPUEnforcer arms the CPU watchdog for the calling thread. The caller
// must be locked to its OS thread for the lifetime of the enforcer (the
// timer and the registry are both keyed by that thread). Returns nil when
// the budget is zero or timer setup fails; in both cases only the
// wall-clock guard applies.
func armCPUEnforcer(handle *IsolateHandle, latch *terminationLatch, budget time.Duration) *cpuEnforcer {
	if budget <= 0 {
		return nil
	}

	enforcerOnce.Do(startEnforcerThread)

	tid := unix.Gettid()

	enforcerMu.Lock()
	enforcers[tid] = &enforcerEntry{
		handle:   handle,
		latch:    latch,
		deadline: threadCPUTime() + budget,
	}
	enforcerMu.Unlock()

	// A nil sigevent defaults to SIGEV_SIGNAL with SIGALRM, which is
	// exactly the delivery we want.
	var timer unix.Timer
	if err := unix.TimerCreate(unix.CLOCK_THREAD_CPUTIME_ID, nil, &timer); err != nil {
		enforcerMu.Lock()
		delete(enforcers, tid)
		enforcerMu.Unlock()
		return nil
	}

	spec := unix.Itimerspec{Value: unix.NsecToTimespec(budget.Nanoseconds())}
	if err := unix.TimerSettime(timer, 0, &spec, nil); err != nil {
		_ = unix.TimerDelete(timer)
		enforcerMu.Lock()
		delete(enforcers, tid)
		enforcerMu.Unlock()
		return nil
	}

	return &cpuEnforcer{timer: timer, tid: tid}
}

// release deletes the timer, then unregisters the thread.
func (e *cpuEnforcer) release() {
	if e == nil {
		return
	}
	_ = unix.TimerDelete(e.timer)
	enforcerMu.Lock()
	delete(enforcers, e.tid)
	enforcerMu.Unlock()
}

// wasTerminated reports whether this enforcer fired before release. Must
// be called before release.
func (e *cpuEnforcer) wasTerminated() bool {
	if e == nil {
		return false
	}
	enforcerMu.Lock()
	defer enforcerMu.Unlock()
	entry, ok := enforcers[e.tid]
	return ok && entry.terminated
}

// startEnforcerThread spawns the process-wide SIGALRM consumer.
func startEnforcerThread() {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch, syscall.SIGALRM)
	go func() {
		for range ch {
			fireOverBudget()
		}
	}()
}

// fireOverBudget scans the registry and terminates every armed worker
// whose thread CPU clock has passed its budget. The timer fires once per
// expiry, but delivery is process-wide, so each candidate is re-verified
// against its own thread clock before termination.
func fireOverBudget() {
	enforcerMu.Lock()
	defer enforcerMu.Unlock()
	for tid, entry := range enforcers {
		if entry.terminated {
			continue
		}
		used, ok := threadCPUTimeOf(tid)
		if !ok || used < entry.deadline {
			continue
		}
		entry.terminated = true
		entry.latch.latch(TerminationCPUTime, "")
		entry.handle.TerminateExecution()
	}
}
