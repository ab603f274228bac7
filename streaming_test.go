package worker

import (
	"errors"
	"testing"
	"time"
)

func TestStreaming_ThreeChunksInOrder(t *testing.T) {
	w := newTestWorker(t, `
		addEventListener('fetch', (event) => {
			const stream = new ReadableStream({
				start(controller) {
					controller.enqueue(new TextEncoder().encode('a'));
					controller.enqueue(new TextEncoder().encode('b'));
					controller.enqueue(new TextEncoder().encode('c'));
					controller.close();
				}
			});
			event.respondWith(new Response(stream, {
				headers: { 'Content-Type': 'text/plain' },
			}));
		});
	`)

	task, rx := NewFetchTask(getReq("http://localhost/"))
	if err := w.Exec(task); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	result := <-rx
	if result.Err != nil {
		t.Fatalf("reply: %v", result.Err)
	}
	resp := result.Response
	if resp.Status != 200 {
		t.Errorf("status = %d, want 200", resp.Status)
	}
	if resp.Stream == nil {
		t.Fatal("expected a streaming body")
	}

	var chunks []string
	for chunk := range resp.Stream {
		chunks = append(chunks, string(chunk))
	}
	if len(chunks) != 3 || chunks[0] != "a" || chunks[1] != "b" || chunks[2] != "c" {
		t.Errorf("chunks = %q, want [a b c]", chunks)
	}

	if inFlight := w.allocator.inFlightBytes(); inFlight != 0 {
		t.Errorf("allocator in-flight = %d after task, want baseline 0", inFlight)
	}
}

func TestStreaming_TextEncoderRoundTrip(t *testing.T) {
	w := newTestWorker(t, `
		addEventListener('fetch', (event) => {
			const text = 'héllo wörld — streaming';
			const stream = new ReadableStream({
				start(controller) {
					controller.enqueue(new TextEncoder().encode(text));
					controller.close();
				}
			});
			event.respondWith(new Response(stream));
		});
	`)

	resp, err := execFetch(t, w, getReq("http://localhost/"))
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if got := string(resp.Body); got != "héllo wörld — streaming" {
		t.Errorf("round-tripped body = %q", got)
	}
}

func TestStreaming_PullBasedSource(t *testing.T) {
	w := newTestWorker(t, `
		addEventListener('fetch', (event) => {
			let n = 0;
			const stream = new ReadableStream({
				pull(controller) {
					n++;
					if (n > 4) {
						controller.close();
					} else {
						controller.enqueue(new TextEncoder().encode('chunk' + n));
					}
				}
			});
			event.respondWith(new Response(stream));
		});
	`)

	resp, err := execFetch(t, w, getReq("http://localhost/"))
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if got := string(resp.Body); got != "chunk1chunk2chunk3chunk4" {
		t.Errorf("body = %q", got)
	}
}

func TestStreaming_ManyChunksWithConcurrentConsumer(t *testing.T) {
	// More chunks than the sink buffer, so the chunk op must exercise
	// backpressure while the host drains concurrently.
	w := newTestWorker(t, `
		addEventListener('fetch', (event) => {
			const stream = new ReadableStream({
				start(controller) {
					for (let i = 0; i < 64; i++) {
						controller.enqueue(new TextEncoder().encode('x'));
					}
					controller.close();
				}
			});
			event.respondWith(new Response(stream));
		});
	`)

	task, rx := NewFetchTask(getReq("http://localhost/"))

	total := make(chan int, 1)
	go func() {
		result := <-rx
		if result.Err != nil {
			total <- -1
			return
		}
		n := 0
		for chunk := range result.Response.Stream {
			n += len(chunk)
		}
		total <- n
	}()

	if err := w.Exec(task); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	select {
	case n := <-total:
		if n != 64 {
			t.Errorf("received %d bytes, want 64", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream never completed")
	}
}

func TestStreaming_StringChunkDeliveredAsText(t *testing.T) {
	// A string chunk enqueued on a streamed body is encoded as UTF-8 and
	// delivered like a byte chunk.
	w := newTestWorker(t, `
		addEventListener('fetch', (event) => {
			const stream = new ReadableStream({
				start(controller) {
					controller.enqueue('text chunk is fine');
					controller.close();
				}
			});
			event.respondWith(new Response(stream));
		});
	`)

	resp, err := execFetch(t, w, getReq("http://localhost/"))
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if string(resp.Body) != "text chunk is fine" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestStreaming_LateChunksAfterWallClockCancelled(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxCPUTimeMS = 0
	limits.MaxWallClockTimeMS = 150

	w := newTestWorkerLimits(t, `
		addEventListener('fetch', (event) => {
			const stream = new ReadableStream({
				async pull(controller) {
					await new Promise(r => setTimeout(r, 60000));
					controller.enqueue(new TextEncoder().encode('late'));
				}
			});
			event.respondWith(new Response(stream));
		});
	`, limits)

	task, rx := NewFetchTask(getReq("http://localhost/"))
	err := w.Exec(task)

	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != ErrWallClockExceeded {
		t.Fatalf("err = %v, want ErrWallClockExceeded", err)
	}

	// The reply already carried the stream head; the stream must be
	// closed by cancellation, not left open.
	result := <-rx
	if result.Err != nil {
		// Also acceptable: head never sent before the guard fired.
		return
	}
	select {
	case _, open := <-result.Response.Stream:
		if open {
			t.Error("stream delivered a chunk after termination")
		}
	case <-time.After(time.Second):
		t.Error("stream left open after termination")
	}
}
