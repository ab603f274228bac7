package worker

// webAPIsJS installs the HTTP classes: Headers, Request, Response, Blob,
// File, and FileReader. Headers preserve insertion order and original
// name casing; lookups are case-insensitive.
const webAPIsJS = `
(function() {

var bytesToB64 = globalThis.__bytesToB64;

class Headers {
	constructor(init) {
		this._pairs = [];
		if (!init) return;
		if (init instanceof Headers) {
			this._pairs = init._pairs.map(function(p) { return [p[0], p[1]]; });
		} else if (Array.isArray(init)) {
			for (var i = 0; i < init.length; i++) this.append(init[i][0], init[i][1]);
		} else if (typeof init === 'object') {
			var keys = Object.keys(init);
			for (var j = 0; j < keys.length; j++) this.append(keys[j], init[keys[j]]);
		}
	}
	_find(name) {
		var lower = String(name).toLowerCase();
		var out = [];
		for (var i = 0; i < this._pairs.length; i++) {
			if (this._pairs[i][0].toLowerCase() === lower) out.push(i);
		}
		return out;
	}
	get(name) {
		var idx = this._find(name);
		if (idx.length === 0) return null;
		var self = this;
		return idx.map(function(i) { return self._pairs[i][1]; }).join(', ');
	}
	set(name, value) {
		this.delete(name);
		this._pairs.push([String(name), String(value)]);
	}
	append(name, value) {
		this._pairs.push([String(name), String(value)]);
	}
	has(name) { return this._find(name).length > 0; }
	delete(name) {
		var lower = String(name).toLowerCase();
		this._pairs = this._pairs.filter(function(p) { return p[0].toLowerCase() !== lower; });
	}
	forEach(cb, thisArg) {
		for (var i = 0; i < this._pairs.length; i++) {
			cb.call(thisArg, this._pairs[i][1], this._pairs[i][0], this);
		}
	}
	keys() { return this._pairs.map(function(p) { return p[0]; })[Symbol.iterator](); }
	values() { return this._pairs.map(function(p) { return p[1]; })[Symbol.iterator](); }
	entries() { return this._pairs.map(function(p) { return [p[0], p[1]]; })[Symbol.iterator](); }
	[Symbol.iterator]() { return this.entries(); }
	_toList() { return this._pairs.map(function(p) { return [p[0], p[1]]; }); }
}

// Shared body handling for Request and Response. _body is stored as a
// Uint8Array, string, ReadableStream, or null.
function initBody(target, body) {
	target.bodyUsed = false;
	if (body == null) {
		target._body = null;
	} else if (typeof body === 'string') {
		target._body = body;
	} else if (body instanceof ReadableStream) {
		target._body = body;
	} else if (body instanceof ArrayBuffer) {
		target._body = new Uint8Array(body.slice(0));
	} else if (ArrayBuffer.isView(body)) {
		target._body = new Uint8Array(body.buffer.slice(body.byteOffset, body.byteOffset + body.byteLength));
	} else if (body instanceof Blob) {
		target._body = body._bytes;
	} else if (body instanceof URLSearchParams) {
		target._body = body.toString();
	} else {
		target._body = String(body);
	}
}

function bodyBytes(target) {
	target.bodyUsed = true;
	var b = target._body;
	if (b == null) return Promise.resolve(new Uint8Array(0));
	if (typeof b === 'string') return Promise.resolve(new TextEncoder().encode(b));
	if (b instanceof Uint8Array) return Promise.resolve(b);
	if (b instanceof ReadableStream) {
		var chunks = [];
		var total = 0;
		var reader = b.getReader();
		function pump() {
			return reader.read().then(function(result) {
				if (result.done) {
					var out = new Uint8Array(total);
					var off = 0;
					for (var i = 0; i < chunks.length; i++) { out.set(chunks[i], off); off += chunks[i].length; }
					return out;
				}
				var chunk = result.value;
				if (typeof chunk === 'string') chunk = new TextEncoder().encode(chunk);
				else if (chunk instanceof ArrayBuffer) chunk = new Uint8Array(chunk);
				else if (ArrayBuffer.isView(chunk)) chunk = new Uint8Array(chunk.buffer, chunk.byteOffset, chunk.byteLength);
				chunks.push(chunk);
				total += chunk.length;
				return pump();
			});
		}
		return pump();
	}
	return Promise.resolve(new TextEncoder().encode(String(b)));
}

var bodyMixin = {
	arrayBuffer: function() {
		return bodyBytes(this).then(function(bytes) {
			return bytes.buffer.slice(bytes.byteOffset, bytes.byteOffset + bytes.byteLength);
		});
	},
	bytes: function() { return bodyBytes(this); },
	text: function() {
		return bodyBytes(this).then(function(bytes) { return new TextDecoder().decode(bytes); });
	},
	json: function() {
		return this.text().then(function(s) { return JSON.parse(s); });
	},
	blob: function() {
		var self = this;
		return bodyBytes(this).then(function(bytes) {
			return new Blob([bytes], { type: self.headers.get('content-type') || '' });
		});
	},
};

function defineBodyGetter(cls) {
	Object.defineProperty(cls.prototype, 'body', {
		get: function() {
			var b = this._body;
			if (b == null) return null;
			if (b instanceof ReadableStream) return b;
			var bytes = typeof b === 'string' ? new TextEncoder().encode(b) : b;
			return new ReadableStream({
				start: function(controller) {
					if (bytes.length > 0) controller.enqueue(bytes);
					controller.close();
				}
			});
		},
		configurable: true,
	});
}

class Request {
	constructor(input, init) {
		init = init || {};
		if (input instanceof Request) {
			this.url = input.url;
			this.method = init.method ? String(init.method).toUpperCase() : input.method;
			this.headers = new Headers(init.headers || input.headers);
			initBody(this, init.body !== undefined ? init.body : input._body);
		} else {
			this.url = String(input);
			this.method = init.method ? String(init.method).toUpperCase() : 'GET';
			this.headers = new Headers(init.headers);
			initBody(this, init.body);
		}
		this.redirect = init.redirect || 'follow';
		this.signal = init.signal || null;
	}
	clone() { return new Request(this); }
}
Object.assign(Request.prototype, bodyMixin);
defineBodyGetter(Request);

class Response {
	constructor(body, init) {
		init = init || {};
		this.status = init.status !== undefined ? Number(init.status) : 200;
		this.statusText = init.statusText !== undefined ? String(init.statusText) : '';
		this.headers = new Headers(init.headers);
		this.ok = this.status >= 200 && this.status < 300;
		this.redirected = false;
		this.type = 'default';
		this.url = '';
		initBody(this, body);
	}
	clone() {
		var c = new Response(null, { status: this.status, statusText: this.statusText, headers: this.headers });
		c._body = this._body;
		return c;
	}
	static json(data, init) {
		var r = new Response(JSON.stringify(data), init);
		if (!r.headers.has('content-type')) r.headers.set('content-type', 'application/json');
		return r;
	}
	static error() {
		var r = new Response(null, { status: 0 });
		r.type = 'error';
		return r;
	}
	static redirect(url, status) {
		var r = new Response(null, { status: status || 302 });
		r.headers.set('location', String(url));
		return r;
	}
}
Object.assign(Response.prototype, bodyMixin);
defineBodyGetter(Response);

class Blob {
	constructor(parts, options) {
		var chunks = [];
		var total = 0;
		parts = parts || [];
		for (var i = 0; i < parts.length; i++) {
			var p = parts[i];
			var bytes;
			if (typeof p === 'string') bytes = new TextEncoder().encode(p);
			else if (p instanceof Blob) bytes = p._bytes;
			else if (p instanceof ArrayBuffer) bytes = new Uint8Array(p);
			else if (ArrayBuffer.isView(p)) bytes = new Uint8Array(p.buffer, p.byteOffset, p.byteLength);
			else bytes = new TextEncoder().encode(String(p));
			chunks.push(bytes);
			total += bytes.length;
		}
		var all = new Uint8Array(total);
		var off = 0;
		for (var j = 0; j < chunks.length; j++) { all.set(chunks[j], off); off += chunks[j].length; }
		this._bytes = all;
		this.size = total;
		this.type = (options && options.type) || '';
	}
	arrayBuffer() {
		return Promise.resolve(this._bytes.buffer.slice(this._bytes.byteOffset, this._bytes.byteOffset + this._bytes.byteLength));
	}
	bytes() { return Promise.resolve(this._bytes); }
	text() { return Promise.resolve(new TextDecoder().decode(this._bytes)); }
	slice(start, end, contentType) {
		var sub = this._bytes.subarray(
			start === undefined ? 0 : start,
			end === undefined ? this._bytes.length : end);
		return new Blob([sub], { type: contentType || '' });
	}
	stream() {
		var bytes = this._bytes;
		return new ReadableStream({
			start: function(controller) {
				if (bytes.length > 0) controller.enqueue(bytes);
				controller.close();
			}
		});
	}
}

class File extends Blob {
	constructor(parts, name, options) {
		super(parts, options);
		this.name = String(name);
		this.lastModified = (options && options.lastModified) || Date.now();
	}
}

class FileReader extends EventTarget {
	constructor() {
		super();
		this.readyState = 0;
		this.result = null;
		this.error = null;
		this.onload = null;
		this.onerror = null;
		this.onloadend = null;
	}
	_finish(result) {
		this.readyState = 2;
		this.result = result;
		var load = new Event('load');
		var loadend = new Event('loadend');
		if (typeof this.onload === 'function') this.onload.call(this, load);
		this.dispatchEvent(load);
		if (typeof this.onloadend === 'function') this.onloadend.call(this, loadend);
		this.dispatchEvent(loadend);
	}
	readAsText(blob) {
		this.readyState = 1;
		var self = this;
		blob.text().then(function(s) { self._finish(s); });
	}
	readAsArrayBuffer(blob) {
		this.readyState = 1;
		var self = this;
		blob.arrayBuffer().then(function(buf) { self._finish(buf); });
	}
	readAsDataURL(blob) {
		this.readyState = 1;
		var self = this;
		blob.bytes().then(function(bytes) {
			self._finish('data:' + (blob.type || 'application/octet-stream') + ';base64,' + bytesToB64(bytes));
		});
	}
}

globalThis.Headers = Headers;
globalThis.Request = Request;
globalThis.Response = Response;
globalThis.Blob = Blob;
globalThis.File = File;
globalThis.FileReader = FileReader;

})();
`
