package worker

import (
	"fmt"
	"strings"

	v8 "github.com/tommie/v8go"
)

// A Snapshot is the compiled form of the runtime's extension bundle,
// produced at build time and fed back to NewWorker to skip parsing and
// compiling the bundle on every cold start. The blob is V8 code cache
// data: it is only valid for the V8 build that produced it, and a stale
// blob is rejected at load.
type Snapshot struct {
	Data []byte
}

// bundleOrigin names the combined extension script in stack traces and
// cache keys.
const bundleOrigin = "runtime_bundle.js"

// runtimeBundleJS concatenates every extension script in install order.
// Evaluating the bundle is behaviorally identical to evaluating each
// extension fresh.
func runtimeBundleJS() string {
	return strings.Join([]string{
		globalsJS,
		consoleJS,
		encodingJS,
		timersJS,
		abortJS,
		urlJS,
		streamsJS,
		textStreamsJS,
		webAPIsJS,
		compressionJS,
		cryptoJS,
		fetchJS,
	}, "\n;\n")
}

// CreateSnapshot compiles the extension bundle in a throwaway isolate and
// captures its code cache. Run this at build time and hand the blob to
// NewWorker via WorkerOptions.Snapshot.
func CreateSnapshot() (*Snapshot, error) {
	iso := v8.NewIsolate()
	defer iso.Dispose()

	script, err := iso.CompileUnboundScript(runtimeBundleJS(), bundleOrigin, v8.CompileOptions{
		Mode: v8.CompileModeEager,
	})
	if err != nil {
		return nil, fmt.Errorf("compiling runtime bundle: %w", err)
	}
	cached := script.CreateCodeCache()
	if cached == nil || len(cached.Bytes) == 0 {
		return nil, fmt.Errorf("code cache creation produced no data")
	}
	return &Snapshot{Data: cached.Bytes}, nil
}

// compileBundle compiles the extension bundle for a worker's isolate,
// using the snapshot's code cache when one is supplied. Stale cache data
// is an error: a snapshot from a different V8 build must not be silently
// recompiled at request latency.
func compileBundle(iso *v8.Isolate, snapshot *Snapshot) (*v8.UnboundScript, error) {
	if snapshot == nil {
		return iso.CompileUnboundScript(runtimeBundleJS(), bundleOrigin, v8.CompileOptions{})
	}
	cached := &v8.CompilerCachedData{Bytes: snapshot.Data}
	script, err := iso.CompileUnboundScript(runtimeBundleJS(), bundleOrigin, v8.CompileOptions{
		CachedData: cached,
	})
	if err != nil {
		return nil, fmt.Errorf("compiling runtime bundle from snapshot: %w", err)
	}
	if cached.Rejected {
		return nil, fmt.Errorf("stale snapshot: code cache rejected by this V8 build")
	}
	return script, nil
}
