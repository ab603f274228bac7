package worker

import (
	"fmt"
	"sync"
	"time"

	v8 "github.com/tommie/v8go"
)

// timerEntry is one pending setTimeout or setInterval registration. The
// callback itself stays on the JS side (in the timers polyfill's private
// callback map); Go only
// tracks scheduling metadata.
type timerEntry struct {
	id       int
	deadline time.Time
	interval time.Duration // 0 for one-shot timers
}

// eventLoop drives a worker's timers and promise settlement. Timer delays
// are real wall-clock waits backed by Go sleeps, so a script awaiting
// setTimeout yields the thread and consumes no CPU budget.
type eventLoop struct {
	mu     sync.Mutex
	timers map[int]*timerEntry
	nextID int

	// onIteration runs once per drain iteration on the isolate's thread.
	// The worker hooks its heap sentinel here.
	onIteration func()
}

func newEventLoop() *eventLoop {
	return &eventLoop{timers: make(map[int]*timerEntry)}
}

// registerTimer schedules a one-shot or repeating timer and returns its id.
func (el *eventLoop) registerTimer(delay time.Duration, repeating bool) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	id := el.nextID
	entry := &timerEntry{id: id, deadline: time.Now().Add(delay)}
	if repeating {
		entry.interval = delay
	}
	el.timers[id] = entry
	return id
}

// clearTimer cancels a timer by id.
func (el *eventLoop) clearTimer(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	delete(el.timers, id)
}

// hasPending reports whether any timers are scheduled.
func (el *eventLoop) hasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.timers) > 0
}

// reset drops all timers.
func (el *eventLoop) reset() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.timers = make(map[int]*timerEntry)
}

// next returns the soonest-due timer, or nil.
func (el *eventLoop) next() *timerEntry {
	el.mu.Lock()
	defer el.mu.Unlock()
	var next *timerEntry
	for _, t := range el.timers {
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	return next
}

// fire pops a due timer (rescheduling intervals) and invokes its JS
// callback. Must run on the isolate's thread.
func (el *eventLoop) fire(ctx *v8.Context, entry *timerEntry) {
	el.mu.Lock()
	current, ok := el.timers[entry.id]
	if !ok || current != entry {
		el.mu.Unlock()
		return
	}
	if entry.interval > 0 {
		entry.deadline = time.Now().Add(entry.interval)
	} else {
		delete(el.timers, entry.id)
	}
	el.mu.Unlock()

	// Errors from timer callbacks surface via the terminating-exception
	// path or are swallowed, matching browser behavior.
	_, _ = ctx.RunScript(fmt.Sprintf("__fireTimer(%d)", entry.id), "timer_fire.js")
	ctx.PerformMicrotaskCheckpoint()
}

// drain fires due timers until none remain, the deadline passes, or the
// latch records a termination. Sleeps between timers are real; they never
// advance the thread's CPU clock. Must run on the isolate's thread.
func (el *eventLoop) drain(ctx *v8.Context, deadline time.Time, latch *terminationLatch) {
	for latch.normal() {
		if el.onIteration != nil {
			el.onIteration()
		}
		next := el.next()
		if next == nil {
			return
		}
		if now := time.Now(); next.deadline.After(now) {
			wait := next.deadline.Sub(now)
			if !deadline.IsZero() && now.Add(wait).After(deadline) {
				return
			}
			time.Sleep(wait)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}
		el.fire(ctx, next)
	}
}

// awaitSettled pumps microtasks and timers until the promise stored in
// the given global settles, the deadline passes, or the latch records a
// termination. On fulfillment the resolved value remains available in
// globalThis[resultGlobal].
func (el *eventLoop) awaitSettled(ctx *v8.Context, promiseGlobal, resultGlobal string, deadline time.Time, latch *terminationLatch) error {
	setup := fmt.Sprintf(`
		delete globalThis[%[2]q];
		delete globalThis.__settled_state;
		Promise.resolve(globalThis[%[1]q]).then(
			function(r) { globalThis[%[2]q] = r; globalThis.__settled_state = 'fulfilled'; },
			function(e) { globalThis[%[2]q] = e; globalThis.__settled_state = 'rejected'; }
		);
		delete globalThis[%[1]q];
	`, promiseGlobal, resultGlobal)
	if _, err := ctx.RunScript(setup, "await_settled.js"); err != nil {
		return fmt.Errorf("setting up promise await: %w", err)
	}

	for latch.normal() {
		ctx.PerformMicrotaskCheckpoint()
		if el.onIteration != nil {
			el.onIteration()
		}

		stateVal, err := ctx.Global().Get("__settled_state")
		if err != nil {
			return fmt.Errorf("checking promise state: %w", err)
		}
		if !stateVal.IsUndefined() {
			state := stateVal.String()
			_, _ = ctx.RunScript("delete globalThis.__settled_state;", "await_cleanup.js")
			if state == "rejected" {
				msgVal, _ := ctx.Global().Get(resultGlobal)
				msg := ""
				if msgVal != nil {
					msg = msgVal.String()
				}
				return fmt.Errorf("promise rejected: %s", msg)
			}
			return nil
		}

		// Nothing runnable: sleep until the next timer is due, capped just
		// past the task deadline so the wall-clock guard gets to fire and
		// latch. The sleep is real, so a waiting script consumes
		// wall-clock budget, not CPU budget.
		next := el.next()
		sleep := time.Millisecond
		if next != nil {
			if until := time.Until(next.deadline); until > 0 {
				sleep = until
			} else {
				sleep = 0
			}
		}
		if !deadline.IsZero() {
			if until := time.Until(deadline) + 5*time.Millisecond; until < sleep {
				sleep = until
			}
			if sleep <= 0 {
				sleep = time.Millisecond
			}
		}
		if sleep > 0 {
			time.Sleep(sleep)
		}
		if !latch.normal() {
			break
		}
		if next != nil && !time.Now().Before(next.deadline) {
			el.fire(ctx, next)
		}
	}
	return fmt.Errorf("terminated: %s", latch.reason().Kind)
}
