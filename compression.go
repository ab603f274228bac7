package worker

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	v8 "github.com/tommie/v8go"
)

// maxDecompressedBytes bounds decompression output so a small compressed
// payload cannot expand past the array-buffer ceiling unnoticed.
const maxDecompressedBytes = 128 * 1024 * 1024

func compressBytes(format string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch format {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "deflate-raw":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		w = fw
	case "deflate":
		// The web "deflate" format is zlib-wrapped.
		w = zlib.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("unsupported compression format %q", format)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBytes(format string, data []byte) ([]byte, error) {
	var r io.Reader
	switch format {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	case "deflate":
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case "deflate-raw":
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		r = fr
	case "br":
		r = brotli.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported compression format %q", format)
	}
	out, err := io.ReadAll(io.LimitReader(r, maxDecompressedBytes+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxDecompressedBytes {
		return nil, fmt.Errorf("decompressed data exceeds %d bytes", maxDecompressedBytes)
	}
	return out, nil
}

// compressionJS installs CompressionStream and DecompressionStream over a
// buffering TransformStream: chunks accumulate and the codec runs once at
// flush. Output is a single Uint8Array chunk.
const compressionJS = `
(function() {
	var opCompress = globalThis.__op_compress;
	var bytesToB64 = globalThis.__bytesToB64;
	var b64ToBytes = globalThis.__b64ToBytes;

	function toBytes(chunk) {
		if (chunk instanceof Uint8Array) return chunk;
		if (chunk instanceof ArrayBuffer) return new Uint8Array(chunk);
		if (ArrayBuffer.isView(chunk)) return new Uint8Array(chunk.buffer, chunk.byteOffset, chunk.byteLength);
		throw new TypeError('chunk must be an ArrayBuffer or view');
	}

	function makeStream(format, mode) {
		if (format !== 'gzip' && format !== 'deflate' && format !== 'deflate-raw' && format !== 'br') {
			throw new TypeError('unsupported compression format: ' + format);
		}
		var parts = [];
		var total = 0;
		return new TransformStream({
			transform: function(chunk) {
				var bytes = toBytes(chunk);
				parts.push(bytes);
				total += bytes.length;
			},
			flush: function(controller) {
				var all = new Uint8Array(total);
				var off = 0;
				for (var i = 0; i < parts.length; i++) { all.set(parts[i], off); off += parts[i].length; }
				var result = opCompress(format, mode, bytesToB64(all));
				var parsed = JSON.parse(result);
				if (parsed.error) throw new TypeError(parsed.error);
				controller.enqueue(b64ToBytes(parsed.ok));
			}
		});
	}

	class CompressionStream {
		constructor(format) {
			var ts = makeStream(String(format), 'compress');
			this.readable = ts.readable;
			this.writable = ts.writable;
		}
	}

	class DecompressionStream {
		constructor(format) {
			var ts = makeStream(String(format), 'decompress');
			this.readable = ts.readable;
			this.writable = ts.writable;
		}
	}

	globalThis.CompressionStream = CompressionStream;
	globalThis.DecompressionStream = DecompressionStream;
})();
`

func (w *Worker) registerCompressionOps(iso *v8.Isolate, ctx *v8.Context, _ *eventLoop) error {
	return registerFunc(iso, ctx, "__op_compress", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 3 {
			return jsString(iso, opErr("compress requires (format, mode, data)"))
		}
		format := args[0].String()
		mode := args[1].String()
		raw, err := base64.StdEncoding.DecodeString(args[2].String())
		if err != nil {
			return jsString(iso, opErr("invalid data encoding"))
		}
		if !w.allocator.charge(len(raw)) {
			return jsString(iso, opErr("data exceeds array buffer limit"))
		}
		var out []byte
		if mode == "compress" {
			out, err = compressBytes(format, raw)
		} else {
			out, err = decompressBytes(format, raw)
		}
		w.allocator.free(len(raw))
		if err != nil {
			return jsString(iso, opErr(err.Error()))
		}
		return jsString(iso, opOK(base64.StdEncoding.EncodeToString(out)))
	})
}
