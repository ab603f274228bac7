package worker

import "sync"

// streamBufferSize bounds the number of in-flight chunks on a streaming
// response before the chunk op blocks (backpressure).
const streamBufferSize = 16

// streamState tracks a pending fetch's response progress.
type streamState int

const (
	streamIdle streamState = iota
	streamStreaming
	streamClosed
)

// pendingFetch is the host-side record for one in-flight fetch task: the
// original request (taken by op_fetch_init), the single-use reply channel,
// and the streaming state machine Idle -> Streaming -> Closed.
type pendingFetch struct {
	req     *HttpRequest
	reply   chan FetchResult
	replied bool
	state   streamState
	sink    chan []byte
}

// pendingScheduled is the host-side record for one in-flight scheduled
// task.
type pendingScheduled struct {
	init    *ScheduledInit
	replied bool
}

// taskRegistry keys pending tasks and open response streams by 32-bit
// ids. Ids increase monotonically and are never reused within the
// worker's lifetime.
type taskRegistry struct {
	mu        sync.Mutex
	nextID    uint32
	fetches   map[uint32]*pendingFetch
	scheduled map[uint32]*pendingScheduled
	streams   map[uint32]*pendingFetch
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{
		fetches:   make(map[uint32]*pendingFetch),
		scheduled: make(map[uint32]*pendingScheduled),
		streams:   make(map[uint32]*pendingFetch),
	}
}

func (r *taskRegistry) addFetch(init *FetchInit) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.fetches[id] = &pendingFetch{req: init.Request, reply: init.reply}
	return id
}

func (r *taskRegistry) addScheduled(init *ScheduledInit) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.scheduled[id] = &pendingScheduled{init: init}
	return id
}

// takeRequest removes and returns the request payload, leaving the reply
// channel in place. Second calls for the same id return nil.
func (r *taskRegistry) takeRequest(id uint32) *HttpRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	pf, ok := r.fetches[id]
	if !ok || pf.req == nil {
		return nil
	}
	req := pf.req
	pf.req = nil
	return req
}

func (r *taskRegistry) fetch(id uint32) *pendingFetch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches[id]
}

func (r *taskRegistry) scheduledInit(id uint32) *pendingScheduled {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scheduled[id]
}

// respond completes a fetch with a buffered (or empty) body. Returns
// false when the id is unknown, already responded, or streaming.
func (r *taskRegistry) respond(id uint32, resp *HttpResponse) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pf, ok := r.fetches[id]
	if !ok || pf.replied || pf.state != streamIdle {
		return false
	}
	pf.replied = true
	pf.reply <- FetchResult{Response: resp}
	delete(r.fetches, id)
	return true
}

// respondStreamStart sends the response head with a chunk stream attached
// and returns the stream id. Returns 0, false on protocol misuse.
func (r *taskRegistry) respondStreamStart(id uint32, status int, headers []Header) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pf, ok := r.fetches[id]
	if !ok || pf.replied || pf.state != streamIdle {
		return 0, false
	}
	pf.state = streamStreaming
	pf.sink = make(chan []byte, streamBufferSize)
	pf.replied = true
	pf.reply <- FetchResult{Response: &HttpResponse{
		Status:  status,
		Headers: headers,
		Stream:  pf.sink,
	}}
	delete(r.fetches, id)

	r.nextID++
	streamID := r.nextID
	r.streams[streamID] = pf
	return streamID, true
}

// stream returns the streaming record for a stream id, or nil.
func (r *taskRegistry) stream(streamID uint32) *pendingFetch {
	r.mu.Lock()
	defer r.mu.Unlock()
	pf, ok := r.streams[streamID]
	if !ok || pf.state != streamStreaming {
		return nil
	}
	return pf
}

// closeStream ends a streaming response. Returns false when the id is
// unknown or the stream is not open.
func (r *taskRegistry) closeStream(streamID uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pf, ok := r.streams[streamID]
	if !ok || pf.state != streamStreaming {
		return false
	}
	pf.state = streamClosed
	close(pf.sink)
	delete(r.streams, streamID)
	return true
}

// respondScheduled completes a scheduled task. Returns false for unknown
// or already-responded ids.
func (r *taskRegistry) respondScheduled(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.scheduled[id]
	if !ok || ps.replied {
		return false
	}
	ps.replied = true
	ps.init.reply <- ScheduledResult{}
	delete(r.scheduled, id)
	return true
}

// cancelAll fails every unfulfilled reply channel with err and closes any
// open stream. Called when a task ends without responding; late
// respondWith calls find their id gone and are dropped.
func (r *taskRegistry) cancelAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pf := range r.fetches {
		if !pf.replied {
			pf.replied = true
			pf.reply <- FetchResult{Err: err}
		}
		delete(r.fetches, id)
	}
	for id, pf := range r.streams {
		if pf.state == streamStreaming {
			pf.state = streamClosed
			close(pf.sink)
		}
		delete(r.streams, id)
	}
	for id, ps := range r.scheduled {
		if !ps.replied {
			ps.replied = true
			ps.init.reply <- ScheduledResult{Err: err}
		}
		delete(r.scheduled, id)
	}
}

// pendingCount returns the number of unresolved tasks and open streams.
func (r *taskRegistry) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fetches) + len(r.scheduled) + len(r.streams)
}
