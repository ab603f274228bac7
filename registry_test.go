package worker

import (
	"errors"
	"testing"
	"time"
)

func newTestFetchInit(url string) (*FetchInit, <-chan FetchResult) {
	task, rx := NewFetchTask(getReq(url))
	return task.fetch, rx
}

func TestRegistry_IDsNeverReused(t *testing.T) {
	r := newTaskRegistry()
	seen := map[uint32]bool{}
	for i := 0; i < 100; i++ {
		init, _ := newTestFetchInit("http://localhost/")
		id := r.addFetch(init)
		if seen[id] {
			t.Fatalf("id %d reused", id)
		}
		seen[id] = true
		r.respond(id, &HttpResponse{Status: 200})
	}
}

func TestRegistry_TakeRequestIsOneShot(t *testing.T) {
	r := newTaskRegistry()
	init, _ := newTestFetchInit("http://example.com/")
	id := r.addFetch(init)

	req := r.takeRequest(id)
	if req == nil || req.URL != "http://example.com/" {
		t.Fatalf("takeRequest = %+v", req)
	}
	if r.takeRequest(id) != nil {
		t.Error("second take should return nil")
	}
	// The reply channel stays in place after the take.
	if !r.respond(id, &HttpResponse{Status: 200}) {
		t.Error("respond should still work after takeRequest")
	}
}

func TestRegistry_DoubleRespondFails(t *testing.T) {
	r := newTaskRegistry()
	init, rx := newTestFetchInit("http://localhost/")
	id := r.addFetch(init)

	if !r.respond(id, &HttpResponse{Status: 200}) {
		t.Fatal("first respond failed")
	}
	if r.respond(id, &HttpResponse{Status: 500}) {
		t.Error("second respond should fail")
	}
	result := <-rx
	if result.Response.Status != 200 {
		t.Errorf("status = %d, want the first response", result.Response.Status)
	}
}

func TestRegistry_UnknownIDFails(t *testing.T) {
	r := newTaskRegistry()
	if r.respond(42, &HttpResponse{}) {
		t.Error("respond on unknown id should fail")
	}
	if r.takeRequest(42) != nil {
		t.Error("takeRequest on unknown id should return nil")
	}
	if _, ok := r.respondStreamStart(42, 200, nil); ok {
		t.Error("stream start on unknown id should fail")
	}
	if r.closeStream(42) {
		t.Error("closeStream on unknown id should fail")
	}
	if r.respondScheduled(42) {
		t.Error("respondScheduled on unknown id should fail")
	}
}

func TestRegistry_StreamStateMachine(t *testing.T) {
	r := newTaskRegistry()
	init, rx := newTestFetchInit("http://localhost/")
	id := r.addFetch(init)

	streamID, ok := r.respondStreamStart(id, 200, []Header{{Name: "X", Value: "1"}})
	if !ok {
		t.Fatal("stream start failed")
	}
	// Idle -> Streaming: the head is already delivered.
	result := <-rx
	if result.Response.Stream == nil {
		t.Fatal("reply missing stream")
	}

	// Buffered respond after streaming started is misuse.
	if r.respond(id, &HttpResponse{Status: 500}) {
		t.Error("respond after stream start should fail")
	}

	pf := r.stream(streamID)
	if pf == nil {
		t.Fatal("stream lookup failed")
	}
	pf.sink <- []byte("chunk")

	if !r.closeStream(streamID) {
		t.Fatal("closeStream failed")
	}
	// Streaming -> Closed is final.
	if r.closeStream(streamID) {
		t.Error("second closeStream should fail")
	}
	if r.stream(streamID) != nil {
		t.Error("closed stream should not resolve")
	}

	if got := string(<-result.Response.Stream); got != "chunk" {
		t.Errorf("chunk = %q", got)
	}
	if _, open := <-result.Response.Stream; open {
		t.Error("stream not closed")
	}
}

func TestRegistry_CancelAllFailsPendingAndClosesStreams(t *testing.T) {
	r := newTaskRegistry()

	pendingInit, pendingRx := newTestFetchInit("http://localhost/a")
	r.addFetch(pendingInit)

	streamInit, streamRx := newTestFetchInit("http://localhost/b")
	streamTaskID := r.addFetch(streamInit)
	_, ok := r.respondStreamStart(streamTaskID, 200, nil)
	if !ok {
		t.Fatal("stream start failed")
	}

	schedTask, schedRx, err := NewScheduledTask("* * * * *", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	r.addScheduled(schedTask.scheduled)

	cancelErr := newError(ErrWallClockExceeded, "")
	r.cancelAll(cancelErr)

	if result := <-pendingRx; !errors.Is(result.Err, cancelErr) {
		t.Errorf("pending fetch err = %v", result.Err)
	}
	streamResult := <-streamRx
	if _, open := <-streamResult.Response.Stream; open {
		t.Error("open stream not closed by cancelAll")
	}
	if result := <-schedRx; result.Err == nil {
		t.Error("scheduled reply not cancelled")
	}
	if r.pendingCount() != 0 {
		t.Errorf("pendingCount = %d after cancelAll, want 0", r.pendingCount())
	}
}
