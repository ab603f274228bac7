package worker

// userAgent identifies the runtime to scripts and outbound fetches.
const userAgent = "openworkers-go/1.0"

// globalsJS installs the simple global APIs: structuredClone, performance,
// queueMicrotask, navigator, self, and location.
const globalsJS = `
(function() {
	var perfNow = globalThis.__op_perf_now;

	globalThis.queueMicrotask = function(fn) {
		Promise.resolve().then(fn);
	};

	class Performance {
		constructor() {
			this.timeOrigin = Date.now() - perfNow();
		}
		now() { return perfNow(); }
	}
	globalThis.Performance = Performance;
	globalThis.performance = new Performance();

	class WorkerNavigator {
		get userAgent() { return "` + userAgent + `"; }
		get language() { return "en"; }
		get languages() { return ["en"]; }
		get hardwareConcurrency() { return 1; }
	}
	globalThis.WorkerNavigator = WorkerNavigator;
	Object.defineProperty(globalThis, 'navigator', {
		value: new WorkerNavigator(),
		writable: false,
		configurable: true,
	});

	globalThis.self = globalThis;
	globalThis.location = { href: '', origin: 'null', protocol: '', host: '', pathname: '/' };

	globalThis.structuredClone = (function() {
		function cloneError(msg) {
			return new DOMException(msg, 'DataCloneError');
		}
		function deepClone(value, seen) {
			if (value === null) return null;
			var type = typeof value;
			if (type === 'boolean' || type === 'number' || type === 'string' ||
				type === 'bigint' || type === 'undefined') return value;
			if (type === 'function' || type === 'symbol') throw cloneError('value could not be cloned');
			if (value instanceof Promise) throw cloneError('Promise cannot be cloned');
			if (seen.has(value)) return seen.get(value);

			if (value instanceof Date) return new Date(value.getTime());
			if (value instanceof RegExp) return new RegExp(value.source, value.flags);
			if (value instanceof ArrayBuffer) return value.slice(0);
			if (ArrayBuffer.isView(value)) {
				var buf = value.buffer.slice(value.byteOffset, value.byteOffset + value.byteLength);
				return value instanceof DataView ? new DataView(buf) : new value.constructor(buf);
			}
			if (value instanceof Map) {
				var m = new Map();
				seen.set(value, m);
				value.forEach(function(v, k) { m.set(deepClone(k, seen), deepClone(v, seen)); });
				return m;
			}
			if (value instanceof Set) {
				var s = new Set();
				seen.set(value, s);
				value.forEach(function(v) { s.add(deepClone(v, seen)); });
				return s;
			}
			if (Array.isArray(value)) {
				var arr = new Array(value.length);
				seen.set(value, arr);
				for (var i = 0; i < value.length; i++) arr[i] = deepClone(value[i], seen);
				return arr;
			}
			var out = {};
			seen.set(value, out);
			var keys = Object.keys(value);
			for (var j = 0; j < keys.length; j++) out[keys[j]] = deepClone(value[keys[j]], seen);
			return out;
		}
		return function structuredClone(value) {
			if (arguments.length === 0) throw new TypeError('structuredClone requires at least 1 argument');
			return deepClone(value, new Map());
		};
	})();
})();
`
