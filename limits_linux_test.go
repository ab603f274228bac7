//go:build linux

package worker

import (
	"errors"
	"testing"
	"time"
)

// CPU enforcement is Linux-only: it needs per-thread CPU-time timers.

func TestCPUTime_BusyLoopTerminated(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxCPUTimeMS = 100
	limits.MaxWallClockTimeMS = 10000 // backstop only

	w := newTestWorkerLimits(t, `
		addEventListener('fetch', (event) => {
			while (true) { Math.sqrt(Math.random()); }
		});
	`, limits)

	start := time.Now()
	_, err := execFetch(t, w, getReq("http://localhost/"))
	elapsed := time.Since(start)

	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != ErrCPUTimeExceeded {
		t.Fatalf("err = %v, want ErrCPUTimeExceeded", err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("took %v, want termination shortly after 100ms of CPU", elapsed)
	}
	if reason := w.TerminationReason(); reason.Kind != TerminationCPUTime {
		t.Errorf("termination reason = %v, want cpu time", reason.Kind)
	}

	// The worker is poisoned.
	task, _ := NewFetchTask(getReq("http://localhost/"))
	if err := w.Exec(task); err == nil {
		t.Error("poisoned worker accepted another task")
	}
}

func TestCPUTime_ExpensiveRegexTerminated(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxCPUTimeMS = 200
	limits.MaxWallClockTimeMS = 10000

	w := newTestWorkerLimits(t, `
		addEventListener('fetch', (event) => {
			const re = /^(a+)+$/;
			re.test('aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaab');
			event.respondWith(new Response('unreachable'));
		});
	`, limits)

	_, err := execFetch(t, w, getReq("http://localhost/"))
	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != ErrCPUTimeExceeded {
		t.Fatalf("err = %v, want ErrCPUTimeExceeded", err)
	}
}

func TestCPUTime_SleepDoesNotConsumeBudget(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxCPUTimeMS = 50
	limits.MaxWallClockTimeMS = 30000

	w := newTestWorkerLimits(t, `
		addEventListener('fetch', async (event) => {
			await new Promise(r => setTimeout(r, 200));
			event.respondWith(new Response('ok'));
		});
	`, limits)

	resp, err := execFetch(t, w, getReq("http://localhost/"))
	if err != nil {
		t.Fatalf("Exec: %v (sleeping must not consume CPU budget)", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %q, want %q", resp.Body, "ok")
	}
}

func TestThreadCPUTime_MeasuresComputation(t *testing.T) {
	timer := StartCPUTimer()
	var sum uint64
	for i := uint64(0); i < 50_000_000; i++ {
		sum += i
	}
	if sum == 0 {
		t.Fatal("unexpected")
	}
	if timer.Elapsed() == 0 {
		t.Error("CPU timer did not advance during computation")
	}
}

func TestThreadCPUTime_IgnoresSleep(t *testing.T) {
	timer := StartCPUTimer()
	time.Sleep(100 * time.Millisecond)
	if elapsed := timer.Elapsed(); elapsed > 20*time.Millisecond {
		t.Errorf("sleep consumed %v of CPU time, want ~0", elapsed)
	}
}
