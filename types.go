package worker

import "time"

// Header is a single HTTP header. Requests and responses carry headers as
// ordered lists so that scripts observe them exactly as the host sent them.
type Header struct {
	Name  string
	Value string
}

// HttpRequest is an incoming HTTP request dispatched to a worker.
type HttpRequest struct {
	Method  string
	URL     string
	Headers []Header
	Body    []byte // nil when the request has no body
}

// HttpResponse is the response produced by a worker's fetch handler.
// At most one of Body or Stream is set: Body holds an immediate buffered
// body, Stream delivers chunks in order and is closed by the runtime at
// end-of-stream.
type HttpResponse struct {
	Status  int
	Headers []Header
	Body    []byte
	Stream  <-chan []byte
}

// FetchResult is delivered on a fetch task's reply channel exactly once.
// Err is non-nil when the task terminated without a usable response.
type FetchResult struct {
	Response *HttpResponse
	Err      error
}

// ScheduledResult is delivered on a scheduled task's reply channel exactly
// once. Err is non-nil when the handler failed or was terminated.
type ScheduledResult struct {
	Err error
}

// LogEvent is a single console.log/info/warn/error/debug line emitted by
// the script, delivered to the worker's LogSink.
type LogEvent struct {
	Level   string
	Message string
	Time    time.Time
}

// LogSink receives console output from the script. It is called on the
// worker's execution thread and must not block.
type LogSink func(LogEvent)

// RuntimeLimits caps a worker's heap, CPU time, wall-clock time and
// array-buffer bytes.
type RuntimeLimits struct {
	HeapInitialMB       int
	HeapMaxMB           int
	MaxCPUTimeMS        int
	MaxWallClockTimeMS  int
	MaxArrayBufferBytes int
}

// DefaultLimits returns 1 MiB initial heap, 128 MiB max heap, 50 ms CPU,
// 30 s wall clock and 128 MiB of array buffers.
func DefaultLimits() RuntimeLimits {
	return RuntimeLimits{HeapInitialMB: 1, HeapMaxMB: 128, MaxCPUTimeMS: 50, MaxWallClockTimeMS: 30000, MaxArrayBufferBytes: 128 * 1024 * 1024}
}
