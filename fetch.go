package worker

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	v8 "github.com/tommie/v8go"
)

// defaultFetchTimeout bounds a single outbound fetch issued by a script.
const defaultFetchTimeout = 30 * time.Second

// maxFetchResponseBytes bounds the body a script can pull in with one
// fetch.
const maxFetchResponseBytes = 64 * 1024 * 1024

type fetchArgs struct {
	URL     string      `json:"url"`
	Method  string      `json:"method"`
	Headers [][2]string `json:"headers"`
	BodyB64 *string     `json:"bodyB64"`
}

type fetchReply struct {
	Status     int         `json:"status"`
	StatusText string      `json:"statusText"`
	Headers    [][2]string `json:"headers"`
	BodyB64    string      `json:"bodyB64"`
	URL        string      `json:"url"`
}

// fetchJS installs the script-facing fetch(). Argument extraction and
// Response construction stay in JS; the request itself runs host-side.
const fetchJS = `
(function() {
	var opFetch = globalThis.__op_fetch;
	var bytesToB64 = globalThis.__bytesToB64;
	var b64ToBytes = globalThis.__b64ToBytes;

	globalThis.fetch = function(input, init) {
		return new Promise(function(resolve, reject) {
			var req;
			try {
				req = input instanceof Request ? (init ? new Request(input, init) : input) : new Request(input, init);
			} catch (e) {
				reject(e);
				return;
			}
			if (req.signal && req.signal.aborted) {
				reject(new DOMException('The operation was aborted.', 'AbortError'));
				return;
			}
			req.bytes().then(function(bodyBytes) {
				var payload = {
					url: req.url,
					method: req.method,
					headers: req.headers._toList(),
					bodyB64: bodyBytes.length > 0 ? bytesToB64(bodyBytes) : null,
				};
				var parsed = JSON.parse(opFetch(JSON.stringify(payload)));
				if (parsed.error) {
					reject(new TypeError(parsed.error));
					return;
				}
				var r = parsed.ok;
				var resp = new Response(r.bodyB64 ? b64ToBytes(r.bodyB64) : null, {
					status: r.status,
					statusText: r.statusText,
					headers: r.headers,
				});
				resp.url = r.url;
				resolve(resp);
			}, reject);
		});
	};
})();
`

// registerFetchOps registers the Go-backed outbound fetch op. Fetch is
// enabled unconditionally; the op blocks the isolate's thread for the
// duration of the request, bounded by its own timeout.
func (w *Worker) registerFetchOps(iso *v8.Isolate, ctx *v8.Context, _ *eventLoop) error {
	return registerFunc(iso, ctx, "__op_fetch", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 1 {
			return jsString(iso, opErr("fetch requires a request payload"))
		}
		var fa fetchArgs
		if err := json.Unmarshal([]byte(args[0].String()), &fa); err != nil {
			return jsString(iso, opErr("parsing fetch arguments: "+err.Error()))
		}

		var bodyReader io.Reader
		if fa.BodyB64 != nil {
			decoded, err := base64.StdEncoding.DecodeString(*fa.BodyB64)
			if err != nil {
				return jsString(iso, opErr("decoding request body"))
			}
			bodyReader = strings.NewReader(string(decoded))
		}

		httpReq, err := http.NewRequest(fa.Method, fa.URL, bodyReader)
		if err != nil {
			return jsString(iso, opErr("building request: "+err.Error()))
		}
		for _, h := range fa.Headers {
			httpReq.Header.Add(h[0], h[1])
		}
		if httpReq.Header.Get("User-Agent") == "" {
			httpReq.Header.Set("User-Agent", userAgent)
		}

		resp, err := w.fetchClient.Do(httpReq)
		if err != nil {
			return jsString(iso, opErr("fetch failed: "+err.Error()))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchResponseBytes+1))
		if err != nil {
			return jsString(iso, opErr("reading response body: "+err.Error()))
		}
		if len(body) > maxFetchResponseBytes {
			return jsString(iso, opErr(fmt.Sprintf("response body exceeds %d bytes", maxFetchResponseBytes)))
		}
		if !w.allocator.charge(len(body)) {
			return jsString(iso, opErr("response body exceeds array buffer limit"))
		}

		reply := fetchReply{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			URL:        fa.URL,
		}
		for name, values := range resp.Header {
			for _, v := range values {
				reply.Headers = append(reply.Headers, [2]string{name, v})
			}
		}
		if len(body) > 0 {
			reply.BodyB64 = base64.StdEncoding.EncodeToString(body)
		}
		w.allocator.free(len(body))
		return jsString(iso, opOK(reply))
	})
}
