package worker

import (
	"encoding/base64"
	"encoding/json"
	"time"

	v8 "github.com/tommie/v8go"
)

// The native op bridge: the host-callable entry points the embedded glue
// uses to read task data, write responses, and stream body chunks. Every
// op is registered as a __op_* global; the bootstrap captures them into
// closures and scrubs the globals before user code runs.
//
// Ops that return data produce a JSON envelope {"ok": ...} or
// {"error": "..."}; mutation ops return an error string ("" on success).
// The glue converts error strings into TypeErrors, so protocol misuse
// (unknown id, double respond, wrong stream state) surfaces into user
// code as a catchable TypeError, never as a process failure.

type opRequest struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers [][2]string `json:"headers"`
	BodyB64 *string     `json:"bodyB64"`
}

type opScheduledEvent struct {
	Cron          string `json:"cron"`
	ScheduledTime int64  `json:"scheduledTime"`
}

func opOK(v any) string {
	data, err := json.Marshal(map[string]any{"ok": v})
	if err != nil {
		return `{"error":"marshaling op result"}`
	}
	return string(data)
}

func opErr(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

// setupOps registers the op bridge on the context.
func (w *Worker) setupOps(iso *v8.Isolate, ctx *v8.Context) error {
	// __op_fetch_init(id) -> {ok: {method, url, headers, bodyB64}}
	// Atomically takes the request payload, leaving the reply channel in
	// place.
	err := registerFunc(iso, ctx, "__op_fetch_init", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 1 {
			return jsString(iso, opErr("fetch init requires a task id"))
		}
		id := uint32(args[0].Integer())
		req := w.registry.takeRequest(id)
		if req == nil {
			return jsString(iso, opErr("unknown or already-taken task id"))
		}
		out := opRequest{Method: req.Method, URL: req.URL, Headers: make([][2]string, 0, len(req.Headers))}
		for _, h := range req.Headers {
			out.Headers = append(out.Headers, [2]string{h.Name, h.Value})
		}
		if req.Body != nil {
			// The body buffer becomes script-visible; charge it against the
			// array-buffer ceiling for the copy's lifetime in the bridge.
			if !w.allocator.charge(len(req.Body)) {
				return jsString(iso, opErr("request body exceeds array buffer limit"))
			}
			b64 := base64.StdEncoding.EncodeToString(req.Body)
			w.allocator.free(len(req.Body))
			out.BodyB64 = &b64
		}
		return jsString(iso, opOK(out))
	})
	if err != nil {
		return err
	}

	// __op_fetch_respond(id, status, headersJSON, bodyB64, hasBody) -> errString
	err = registerFunc(iso, ctx, "__op_fetch_respond", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 5 {
			return jsString(iso, "respond requires (id, status, headers, body, hasBody)")
		}
		id := uint32(args[0].Integer())
		status := int(args[1].Integer())
		headers, err := decodeHeaderJSON(args[2].String())
		if err != nil {
			return jsString(iso, "invalid response headers: "+err.Error())
		}
		var body []byte
		if args[4].Boolean() {
			raw, err := base64.StdEncoding.DecodeString(args[3].String())
			if err != nil {
				return jsString(iso, "invalid response body encoding")
			}
			buf := w.allocator.allocate(len(raw))
			if buf == nil {
				return jsString(iso, "response body exceeds array buffer limit")
			}
			copy(buf, raw)
			body = buf
		}
		ok := w.registry.respond(id, &HttpResponse{Status: status, Headers: headers, Body: body})
		if body != nil {
			// Ownership passes to the host on success; either way the
			// bridge's reservation ends here.
			w.allocator.free(len(body))
		}
		if !ok {
			return jsString(iso, "unknown task id or response already sent")
		}
		return jsString(iso, "")
	})
	if err != nil {
		return err
	}

	// __op_fetch_respond_stream_start(id, status, headersJSON) -> {ok: streamID}
	err = registerFunc(iso, ctx, "__op_fetch_respond_stream_start", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 3 {
			return jsString(iso, opErr("stream start requires (id, status, headers)"))
		}
		id := uint32(args[0].Integer())
		status := int(args[1].Integer())
		headers, err := decodeHeaderJSON(args[2].String())
		if err != nil {
			return jsString(iso, opErr("invalid response headers: "+err.Error()))
		}
		streamID, ok := w.registry.respondStreamStart(id, status, headers)
		if !ok {
			return jsString(iso, opErr("unknown task id or response already sent"))
		}
		return jsString(iso, opOK(streamID))
	})
	if err != nil {
		return err
	}

	// __op_fetch_respond_stream_chunk(streamID, chunkB64) -> Promise
	// The promise resolves once the chunk is accepted; a full sink blocks
	// here, which is how host backpressure reaches the script.
	err = registerFunc(iso, ctx, "__op_fetch_respond_stream_chunk", func(info *v8.FunctionCallbackInfo) *v8.Value {
		resolver, _ := v8.NewPromiseResolver(ctx)
		args := info.Args()
		if len(args) < 2 {
			resolver.Reject(jsString(iso, "stream chunk requires (streamID, chunk)"))
			return resolver.GetPromise().Value
		}
		streamID := uint32(args[0].Integer())
		pf := w.registry.stream(streamID)
		if pf == nil {
			resolver.Reject(jsString(iso, "unknown stream id or stream not open"))
			return resolver.GetPromise().Value
		}
		raw, err := base64.StdEncoding.DecodeString(args[1].String())
		if err != nil {
			resolver.Reject(jsString(iso, "invalid chunk encoding"))
			return resolver.GetPromise().Value
		}
		chunk := w.allocator.allocate(len(raw))
		if chunk == nil {
			resolver.Reject(jsString(iso, "chunk exceeds array buffer limit"))
			return resolver.GetPromise().Value
		}
		copy(chunk, raw)
		select {
		case pf.sink <- chunk:
			w.allocator.free(len(chunk))
			resolver.Resolve(v8.Undefined(iso))
		case <-w.latch.fired:
			w.allocator.free(len(chunk))
			resolver.Reject(jsString(iso, "stream cancelled"))
		}
		return resolver.GetPromise().Value
	})
	if err != nil {
		return err
	}

	// __op_fetch_respond_stream_end(streamID) -> errString
	err = registerFunc(iso, ctx, "__op_fetch_respond_stream_end", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 1 {
			return jsString(iso, "stream end requires a stream id")
		}
		if !w.registry.closeStream(uint32(args[0].Integer())) {
			return jsString(iso, "unknown stream id or stream not open")
		}
		return jsString(iso, "")
	})
	if err != nil {
		return err
	}

	// __op_scheduled_init(id) -> {ok: {cron, scheduledTime}}
	err = registerFunc(iso, ctx, "__op_scheduled_init", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 1 {
			return jsString(iso, opErr("scheduled init requires a task id"))
		}
		ps := w.registry.scheduledInit(uint32(args[0].Integer()))
		if ps == nil {
			return jsString(iso, opErr("unknown task id"))
		}
		return jsString(iso, opOK(opScheduledEvent{
			Cron:          ps.init.Cron,
			ScheduledTime: ps.init.ScheduledTime.UnixMilli(),
		}))
	})
	if err != nil {
		return err
	}

	// __op_scheduled_respond(id) -> errString
	err = registerFunc(iso, ctx, "__op_scheduled_respond", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 1 {
			return jsString(iso, "scheduled respond requires a task id")
		}
		if !w.registry.respondScheduled(uint32(args[0].Integer())) {
			return jsString(iso, "unknown task id or already responded")
		}
		return jsString(iso, "")
	})
	if err != nil {
		return err
	}

	// __op_log(level, message)
	err = registerFunc(iso, ctx, "__op_log", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 2 || w.logSink == nil {
			return v8.Undefined(iso)
		}
		w.logSink(LogEvent{Level: args[0].String(), Message: args[1].String(), Time: time.Now()})
		return v8.Undefined(iso)
	})
	if err != nil {
		return err
	}

	// __op_buffer_charge(n) -> bool; __op_buffer_release(n)
	// Script-side ArrayBuffer accounting: the bootstrap patches the buffer
	// constructors to charge before allocating and registers releases with
	// a FinalizationRegistry.
	err = registerFunc(iso, ctx, "__op_buffer_charge", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 1 {
			return jsBool(iso, false)
		}
		return jsBool(iso, w.allocator.charge(int(args[0].Integer())))
	})
	if err != nil {
		return err
	}
	err = registerFunc(iso, ctx, "__op_buffer_release", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) >= 1 {
			w.allocator.free(int(args[0].Integer()))
		}
		return v8.Undefined(iso)
	})
	if err != nil {
		return err
	}

	// __op_perf_now() -> float ms since worker start (monotonic)
	start := time.Now()
	return registerFunc(iso, ctx, "__op_perf_now", func(info *v8.FunctionCallbackInfo) *v8.Value {
		return jsFloat(iso, float64(time.Since(start).Nanoseconds())/1e6)
	})
}

// decodeHeaderJSON parses the glue's [[name, value], ...] header encoding,
// preserving order.
func decodeHeaderJSON(raw string) ([]Header, error) {
	var pairs [][2]string
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, err
	}
	headers := make([]Header, 0, len(pairs))
	for _, p := range pairs {
		headers = append(headers, Header{Name: p[0], Value: p[1]})
	}
	return headers, nil
}
