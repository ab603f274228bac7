package worker

// bootstrapJS finishes global-scope construction and returns the trigger
// functions the worker invokes per task. It runs after every Web API
// setup script, so it can capture the op bridge into closures and then
// scrub all host-bridge globals before user code ever executes. The
// format placeholder receives the JSON-encoded script environment.
//
// Returned value: ({ fetch: triggerFetchEvent, scheduled: triggerScheduledEvent }).
const bootstrapJS = `
(function(envJSON) {

var opFetchInit = globalThis.__op_fetch_init;
var opFetchRespond = globalThis.__op_fetch_respond;
var opStreamStart = globalThis.__op_fetch_respond_stream_start;
var opStreamChunk = globalThis.__op_fetch_respond_stream_chunk;
var opStreamEnd = globalThis.__op_fetch_respond_stream_end;
var opScheduledInit = globalThis.__op_scheduled_init;
var opScheduledRespond = globalThis.__op_scheduled_respond;
var opBufferCharge = globalThis.__op_buffer_charge;
var opBufferRelease = globalThis.__op_buffer_release;
var bytesToB64 = globalThis.__bytesToB64;
var b64ToBytes = globalThis.__b64ToBytes;

// --- ArrayBuffer ceiling ---
// Length-based constructions charge against the host allocator before
// V8 allocates; releases are registered with a FinalizationRegistry so
// collected buffers return their reservation.
var bufferRegistry = new FinalizationRegistry(function(n) { opBufferRelease(n); });

function chargeOrThrow(n) {
	if (n > 0 && !opBufferCharge(n)) {
		throw new RangeError('Array buffer allocation failed');
	}
}

globalThis.ArrayBuffer = new Proxy(ArrayBuffer, {
	construct: function(target, args, newTarget) {
		var n = args.length > 0 ? Number(args[0]) || 0 : 0;
		chargeOrThrow(n);
		var buf = Reflect.construct(target, args, newTarget);
		if (n > 0) bufferRegistry.register(buf, n);
		return buf;
	}
});

var typedArrayNames = [
	'Uint8Array', 'Int8Array', 'Uint8ClampedArray', 'Uint16Array',
	'Int16Array', 'Uint32Array', 'Int32Array', 'Float32Array',
	'Float64Array', 'BigInt64Array', 'BigUint64Array',
];
for (var ti = 0; ti < typedArrayNames.length; ti++) {
	(function(name) {
		var Native = globalThis[name];
		if (!Native) return;
		var bytesPer = Native.BYTES_PER_ELEMENT;
		globalThis[name] = new Proxy(Native, {
			construct: function(target, args, newTarget) {
				if (args.length === 1 && typeof args[0] === 'number') {
					var n = args[0] * bytesPer;
					chargeOrThrow(n);
					var ta = Reflect.construct(target, args, newTarget);
					if (n > 0) bufferRegistry.register(ta.buffer, n);
					return ta;
				}
				return Reflect.construct(target, args, newTarget);
			}
		});
	})(typedArrayNames[ti]);
}

// --- Event registration ---
// One handler per kind; registering again replaces the prior handler,
// and removal matches by kind.
var listeners = {};

globalThis.addEventListener = function(type, handler) {
	if (typeof handler !== 'function') {
		throw new TypeError('addEventListener requires a function handler');
	}
	listeners[String(type)] = handler;
};

globalThis.removeEventListener = function(type) {
	delete listeners[String(type)];
};

// --- Trigger glue ---

function chunkToBytes(chunk) {
	if (typeof chunk === 'string') return new TextEncoder().encode(chunk);
	if (chunk instanceof ArrayBuffer) return new Uint8Array(chunk);
	if (ArrayBuffer.isView(chunk)) return new Uint8Array(chunk.buffer, chunk.byteOffset, chunk.byteLength);
	throw new TypeError('stream chunks must be strings, ArrayBuffers, or views');
}

async function emitResponse(id, response) {
	var headerList = JSON.stringify(response.headers._toList());
	if (response._body instanceof ReadableStream) {
		var parsed = JSON.parse(opStreamStart(id, response.status, headerList));
		if (parsed.error) throw new TypeError(parsed.error);
		var streamID = parsed.ok;
		var reader = response._body.getReader();
		while (true) {
			var result = await reader.read();
			if (result.done) break;
			await opStreamChunk(streamID, bytesToB64(chunkToBytes(result.value)));
		}
		var endErr = opStreamEnd(streamID);
		if (endErr) throw new TypeError(endErr);
		return;
	}
	var bytes = await response.bytes();
	var err = opFetchRespond(id, response.status, headerList,
		bytes.length > 0 ? bytesToB64(bytes) : '', bytes.length > 0);
	if (err) throw new TypeError(err);
}

async function triggerFetchEvent(id) {
	var handler = listeners['fetch'];
	if (!handler) throw new Error('no fetch event listener registered');

	var parsed = JSON.parse(opFetchInit(id));
	if (parsed.error) throw new TypeError(parsed.error);
	var data = parsed.ok;

	var request = new Request(data.url, {
		method: data.method,
		headers: data.headers,
		body: data.bodyB64 ? b64ToBytes(data.bodyB64) : null,
	});

	var responsePromise = null;
	var responded;
	var respondedPromise = new Promise(function(r) { responded = r; });
	var waits = [];

	var event = {
		type: 'fetch',
		request: request,
		respondWith: function(r) {
			if (responsePromise) throw new TypeError('respondWith has already been called');
			responsePromise = Promise.resolve(r);
			responded();
		},
		waitUntil: function(p) { waits.push(Promise.resolve(p)); },
		passThroughOnException: function() {},
	};

	var handlerDone = Promise.resolve().then(function() {
		return handler.call(globalThis, event);
	});
	await Promise.race([respondedPromise, handlerDone]);
	if (!responsePromise) {
		await handlerDone;
	}
	if (!responsePromise) {
		// Handler completed without respondWith; the host synthesizes the
		// error reply.
		return 'no-response';
	}

	var response = await responsePromise;
	if (!(response instanceof Response)) {
		throw new TypeError('respondWith requires a Response or a promise resolving to one');
	}
	await emitResponse(id, response);

	// A rejection after the response was sent cannot affect the reply.
	await handlerDone.catch(function() {});
	await Promise.allSettled(waits);
	return 'ok';
}

async function triggerScheduledEvent(id) {
	var handler = listeners['scheduled'];
	if (!handler) throw new Error('no scheduled event listener registered');

	var parsed = JSON.parse(opScheduledInit(id));
	if (parsed.error) throw new TypeError(parsed.error);

	var waits = [];
	var event = {
		type: 'scheduled',
		scheduledTime: parsed.ok.scheduledTime,
		cron: parsed.ok.cron,
		waitUntil: function(p) { waits.push(Promise.resolve(p)); },
	};

	await handler.call(globalThis, event);
	await Promise.allSettled(waits);

	var err = opScheduledRespond(id);
	if (err) throw new TypeError(err);
	return 'ok';
}

// --- Script environment ---
var env = {};
try { env = JSON.parse(envJSON); } catch (e) {}
Object.defineProperty(globalThis, 'env', {
	value: Object.freeze(env),
	writable: false,
	configurable: false,
});

// --- Scrub ---
// Remove every host-bridge global and anything that would leak the
// embedding's identity. The trigger closures above keep what they need.
var names = Object.getOwnPropertyNames(globalThis);
for (var i = 0; i < names.length; i++) {
	var n = names[i];
	if (n.indexOf('__op_') === 0 || n === '__bytesToB64' || n === '__b64ToBytes' ||
		n === 'Deno' || n === '__bootstrap' || n === 'bootstrap') {
		try { delete globalThis[n]; } catch (e) {}
	}
}

return { fetch: triggerFetchEvent, scheduled: triggerScheduledEvent };
})(%s)
`
