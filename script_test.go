package worker

import (
	"strings"
	"testing"
)

func TestScript_PlainSourcePassesThrough(t *testing.T) {
	src := `addEventListener('fetch', e => e.respondWith(new Response('hi')));`
	code, err := NewScript(src).prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if code != src {
		t.Errorf("plain JS was rewritten:\n%s", code)
	}
}

func TestScript_TypeScriptTransformed(t *testing.T) {
	s := Script{
		Code: `
			const greet = (name: string): string => 'hello ' + name;
			addEventListener('fetch', (e) => e.respondWith(new Response(greet('ts'))));
		`,
		TypeScript: true,
	}
	code, err := s.prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if strings.Contains(code, ": string") {
		t.Errorf("type annotations survived the transform:\n%s", code)
	}

	w, err := NewWorker(s, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	t.Cleanup(w.Close)
	resp, err := execFetch(t, w, getReq("http://localhost/"))
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if string(resp.Body) != "hello ts" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestScript_ESModuleLowered(t *testing.T) {
	s := NewScript(`
		export const marker = 'm';
		addEventListener('fetch', (e) => e.respondWith(new Response('esm ' + marker)));
	`)
	code, err := s.prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if strings.Contains(code, "export ") {
		t.Errorf("export statement survived lowering:\n%s", code)
	}

	w, err := NewWorker(s, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	t.Cleanup(w.Close)
	resp, err := execFetch(t, w, getReq("http://localhost/"))
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if string(resp.Body) != "esm m" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestScript_SyntaxErrorReported(t *testing.T) {
	s := Script{Code: `const x: = broken;`, TypeScript: true}
	if _, err := s.prepare(); err == nil {
		t.Error("expected a transform error for broken TypeScript")
	}
}

func TestScript_EnvJSON(t *testing.T) {
	s := Script{Env: map[string]string{"K": "v"}}
	if got := s.envJSON(); got != `{"K":"v"}` {
		t.Errorf("envJSON = %s", got)
	}
	if got := NewScript("").envJSON(); got != `{}` {
		t.Errorf("empty envJSON = %s", got)
	}
}
