package worker

import (
	"testing"
	"time"
)

const poolScript = `
	addEventListener('fetch', (event) => {
		event.respondWith(new Response('pooled'));
	});
`

func TestPool_GetPutReuse(t *testing.T) {
	limits := testLimits()
	p, err := NewPool(2, NewScript(poolScript), &WorkerOptions{Limits: &limits})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(p.Dispose)

	for i := 0; i < 5; i++ {
		w, err := p.Get()
		if err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
		resp, err := execFetch(t, w, getReq("http://localhost/"))
		if err != nil {
			t.Fatalf("Exec #%d: %v", i, err)
		}
		if string(resp.Body) != "pooled" {
			t.Errorf("body #%d = %q", i, resp.Body)
		}
		p.Put(w)
	}
}

func TestPool_PoisonedWorkerReplaced(t *testing.T) {
	limits := testLimits()
	p, err := NewPool(1, NewScript(poolScript), &WorkerOptions{Limits: &limits})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(p.Dispose)

	w, err := p.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	w.Abort() // poison it
	poisonedID := w.ID()
	p.Put(w)

	fresh, err := p.Get()
	if err != nil {
		t.Fatalf("Get after poison: %v", err)
	}
	defer p.Put(fresh)
	if fresh.ID() == poisonedID {
		t.Error("poisoned worker returned to the pool")
	}
	resp, err := execFetch(t, fresh, getReq("http://localhost/"))
	if err != nil {
		t.Fatalf("Exec on replacement: %v", err)
	}
	if string(resp.Body) != "pooled" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestPool_GetBlocksUntilPut(t *testing.T) {
	p, err := NewPool(1, NewScript(poolScript), nil)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(p.Dispose)

	w, err := p.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	got := make(chan *Worker, 1)
	go func() {
		w2, err := p.Get()
		if err != nil {
			got <- nil
			return
		}
		got <- w2
	}()

	select {
	case <-got:
		t.Fatal("Get returned while the only worker was checked out")
	case <-time.After(100 * time.Millisecond):
	}

	p.Put(w)
	select {
	case w2 := <-got:
		if w2 == nil {
			t.Fatal("blocked Get failed")
		}
		p.Put(w2)
	case <-time.After(time.Second):
		t.Fatal("blocked Get never woke up")
	}
}

func TestPool_RejectsBadSize(t *testing.T) {
	if _, err := NewPool(0, NewScript(poolScript), nil); err == nil {
		t.Error("expected error for zero pool size")
	}
}
