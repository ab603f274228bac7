package worker

import "testing"

func TestSnapshot_ColdStartEquivalence(t *testing.T) {
	snap, err := CreateSnapshot()
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if len(snap.Data) == 0 {
		t.Fatal("snapshot has no data")
	}

	limits := testLimits()
	w, err := NewWorker(NewScript(`
		addEventListener('fetch', (event) => {
			event.respondWith(new Response('snapshot ' + btoa('x')));
		});
	`), &WorkerOptions{Limits: &limits, Snapshot: snap})
	if err != nil {
		t.Fatalf("NewWorker with snapshot: %v", err)
	}
	t.Cleanup(w.Close)

	resp, err := execFetch(t, w, getReq("http://localhost/"))
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if string(resp.Body) != "snapshot eA==" {
		t.Errorf("body = %q (snapshot worker must behave like a fresh one)", resp.Body)
	}
}

func TestSnapshot_ReusableAcrossWorkers(t *testing.T) {
	snap, err := CreateSnapshot()
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	for i := 0; i < 3; i++ {
		w, err := NewWorker(NewScript(`
			addEventListener('fetch', (event) => event.respondWith(new Response('ok')));
		`), &WorkerOptions{Snapshot: snap})
		if err != nil {
			t.Fatalf("NewWorker #%d: %v", i, err)
		}
		resp, err := execFetch(t, w, getReq("http://localhost/"))
		if err != nil {
			t.Fatalf("Exec #%d: %v", i, err)
		}
		if string(resp.Body) != "ok" {
			t.Errorf("body #%d = %q", i, resp.Body)
		}
		w.Close()
	}
}
