package worker

import v8 "github.com/tommie/v8go"

// IsolateHandle is a thread-safe reference to a worker's isolate that
// permits only termination. V8's TerminateExecution may be called from
// any thread; it interrupts the running JavaScript stack at the next safe
// point. Handles may be copied freely and outlive the task they were
// armed for.
type IsolateHandle struct {
	iso *v8.Isolate
}

// TerminateExecution requests termination of any JavaScript currently
// executing in the isolate. Safe to call from any thread.
func (h *IsolateHandle) TerminateExecution() {
	h.iso.TerminateExecution()
}
