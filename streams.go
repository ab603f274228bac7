package worker

// streamsJS implements ReadableStream, WritableStream, TransformStream,
// and the queuing strategies as pure JS.
const streamsJS = `
(function() {

class ReadableStreamDefaultController {
	constructor(stream) {
		this._stream = stream;
		this._closeRequested = false;
	}
	enqueue(chunk) {
		if (this._closeRequested) throw new TypeError('cannot enqueue after close');
		if (this._stream._errored) throw this._stream._error;
		this._stream._queue.push(chunk);
		this._stream._deliver();
	}
	close() {
		if (this._closeRequested) return;
		this._closeRequested = true;
		this._stream._closeInternal();
	}
	error(e) {
		this._stream._errorInternal(e);
	}
	get desiredSize() {
		return this._stream._highWaterMark - this._stream._queue.length;
	}
}

class ReadableStreamDefaultReader {
	constructor(stream) {
		if (stream._locked) throw new TypeError('ReadableStream is already locked');
		this._stream = stream;
		stream._locked = true;
		stream._reader = this;
		var self = this;
		this.closed = new Promise(function(resolve, reject) {
			self._closedResolve = resolve;
			self._closedReject = reject;
		});
		if (stream._closed) this._closedResolve();
	}
	read() {
		var stream = this._stream;
		if (stream._queue.length > 0) {
			return Promise.resolve({ value: stream._queue.shift(), done: false });
		}
		if (stream._errored) return Promise.reject(stream._error);
		if (stream._closed) return Promise.resolve({ value: undefined, done: true });
		return new Promise(function(resolve, reject) {
			stream._pendingReads.push({ resolve: resolve, reject: reject });
			stream._requestPull();
		});
	}
	releaseLock() {
		if (this._stream) {
			this._stream._locked = false;
			this._stream._reader = null;
		}
	}
	cancel(reason) {
		return this._stream.cancel(reason);
	}
}

class ReadableStream {
	constructor(underlyingSource, strategy) {
		this._queue = [];
		this._pendingReads = [];
		this._locked = false;
		this._reader = null;
		this._closed = false;
		this._errored = false;
		this._error = null;
		this._pulling = false;
		this._highWaterMark = (strategy && strategy.highWaterMark) || 1;
		this._controller = new ReadableStreamDefaultController(this);
		this._pullFn = null;
		this._cancelFn = null;

		if (underlyingSource) {
			if (typeof underlyingSource.pull === 'function') {
				this._pullFn = underlyingSource.pull.bind(underlyingSource);
			}
			if (typeof underlyingSource.cancel === 'function') {
				this._cancelFn = underlyingSource.cancel.bind(underlyingSource);
			}
			if (typeof underlyingSource.start === 'function') {
				underlyingSource.start(this._controller);
			}
		}
	}

	get locked() { return this._locked; }

	getReader() { return new ReadableStreamDefaultReader(this); }

	cancel(reason) {
		this._closed = true;
		if (this._cancelFn) this._cancelFn(reason);
		this._drainPending();
		return Promise.resolve();
	}

	pipeTo(destination, options) {
		if (this._locked) return Promise.reject(new TypeError('ReadableStream is locked'));
		var reader = this.getReader();
		var writer = destination.getWriter();
		var preventClose = !!(options && options.preventClose);
		function pump() {
			return reader.read().then(function(result) {
				if (result.done) {
					reader.releaseLock();
					return preventClose ? writer.releaseLock() : writer.close();
				}
				return Promise.resolve(writer.write(result.value)).then(pump);
			}, function(e) {
				reader.releaseLock();
				return writer.abort(e).then(function() { throw e; });
			});
		}
		return pump();
	}

	pipeThrough(transform, options) {
		if (this._locked) throw new TypeError('ReadableStream is locked');
		this.pipeTo(transform.writable, options);
		return transform.readable;
	}

	tee() {
		if (this._locked) throw new TypeError('ReadableStream is locked');
		var reader = this.getReader();
		var c1, c2;
		var b1 = new ReadableStream({ start: function(c) { c1 = c; } });
		var b2 = new ReadableStream({ start: function(c) { c2 = c; } });
		function pump() {
			reader.read().then(function(result) {
				if (result.done) {
					c1.close();
					c2.close();
					return;
				}
				c1.enqueue(result.value);
				c2.enqueue(result.value);
				pump();
			}, function(e) {
				c1.error(e);
				c2.error(e);
			});
		}
		pump();
		return [b1, b2];
	}

	_requestPull() {
		var stream = this;
		if (!stream._pullFn || stream._pulling || stream._closed || stream._errored) return;
		stream._pulling = true;
		Promise.resolve().then(function pullLoop() {
			stream._pulling = false;
			if (stream._closed || stream._errored) return;
			try {
				var r = stream._pullFn(stream._controller);
				function after() {
					if (stream._pendingReads.length > 0 && stream._queue.length === 0 &&
						!stream._closed && !stream._errored && stream._pullFn) {
						stream._pulling = true;
						Promise.resolve().then(pullLoop);
					}
				}
				if (r && typeof r.then === 'function') r.then(after, function(e) { stream._errorInternal(e); });
				else after();
			} catch (e) {
				stream._errorInternal(e);
			}
		});
	}

	_deliver() {
		while (this._queue.length > 0 && this._pendingReads.length > 0) {
			var chunk = this._queue.shift();
			this._pendingReads.shift().resolve({ value: chunk, done: false });
		}
	}

	_closeInternal() {
		this._closed = true;
		this._drainPending();
		if (this._reader && this._reader._closedResolve) this._reader._closedResolve();
	}

	_errorInternal(e) {
		this._errored = true;
		this._error = e;
		var pending = this._pendingReads;
		this._pendingReads = [];
		for (var i = 0; i < pending.length; i++) pending[i].reject(e);
		if (this._reader && this._reader._closedReject) this._reader._closedReject(e);
	}

	_drainPending() {
		while (this._pendingReads.length > 0) {
			var p = this._pendingReads.shift();
			if (this._queue.length > 0) p.resolve({ value: this._queue.shift(), done: false });
			else p.resolve({ value: undefined, done: true });
		}
	}

	async *[Symbol.asyncIterator]() {
		var reader = this.getReader();
		try {
			while (true) {
				var result = await reader.read();
				if (result.done) return;
				yield result.value;
			}
		} finally {
			reader.releaseLock();
		}
	}
}

ReadableStream.from = function(iterable) {
	if (iterable == null) throw new TypeError('ReadableStream.from requires an iterable');
	var it = typeof iterable[Symbol.asyncIterator] === 'function'
		? iterable[Symbol.asyncIterator]()
		: iterable[Symbol.iterator]();
	return new ReadableStream({
		pull: function(controller) {
			return Promise.resolve(it.next()).then(function(result) {
				if (result.done) controller.close();
				else controller.enqueue(result.value);
			});
		}
	});
};

class WritableStreamDefaultWriter {
	constructor(stream) {
		if (stream._locked) throw new TypeError('WritableStream is already locked');
		this._stream = stream;
		stream._locked = true;
		var self = this;
		this.closed = new Promise(function(resolve, reject) {
			self._closedResolve = resolve;
			self._closedReject = reject;
		});
		this.ready = Promise.resolve();
		if (stream._closed) this._closedResolve();
	}
	write(chunk) {
		if (this._stream._closed) return Promise.reject(new TypeError('cannot write to a closed stream'));
		if (this._stream._errored) return Promise.reject(this._stream._error);
		if (this._stream._writeFn) {
			try {
				var result = this._stream._writeFn(chunk, this._stream._controller);
				if (result && typeof result.then === 'function') return result;
			} catch (e) {
				return Promise.reject(e);
			}
		}
		return Promise.resolve();
	}
	close() {
		var self = this;
		var finish = function() {
			self._stream._closed = true;
			if (self._closedResolve) self._closedResolve();
		};
		if (this._stream._closeFn) {
			try {
				var result = this._stream._closeFn();
				if (result && typeof result.then === 'function') return result.then(finish);
			} catch (e) {
				return Promise.reject(e);
			}
		}
		finish();
		return Promise.resolve();
	}
	abort(reason) {
		var self = this;
		var finish = function() {
			self._stream._closed = true;
			if (self._closedResolve) self._closedResolve();
		};
		if (this._stream._abortFn) {
			var result = this._stream._abortFn(reason);
			if (result && typeof result.then === 'function') return result.then(finish);
		}
		finish();
		return Promise.resolve();
	}
	releaseLock() {
		this._stream._locked = false;
	}
}

class WritableStreamDefaultController {
	constructor(stream) {
		this._stream = stream;
	}
	error(e) {
		this._stream._errored = true;
		this._stream._error = e;
	}
}

class WritableStream {
	constructor(underlyingSink, strategy) {
		this._locked = false;
		this._closed = false;
		this._errored = false;
		this._error = null;
		this._controller = new WritableStreamDefaultController(this);
		this._writeFn = null;
		this._closeFn = null;
		this._abortFn = null;

		if (underlyingSink) {
			if (typeof underlyingSink.write === 'function') this._writeFn = underlyingSink.write.bind(underlyingSink);
			if (typeof underlyingSink.close === 'function') this._closeFn = underlyingSink.close.bind(underlyingSink);
			if (typeof underlyingSink.abort === 'function') this._abortFn = underlyingSink.abort.bind(underlyingSink);
			if (typeof underlyingSink.start === 'function') underlyingSink.start(this._controller);
		}
	}
	get locked() { return this._locked; }
	getWriter() { return new WritableStreamDefaultWriter(this); }
	abort(reason) {
		if (this._abortFn) this._abortFn(reason);
		this._closed = true;
		return Promise.resolve();
	}
}

class TransformStream {
	constructor(transformer, writableStrategy, readableStrategy) {
		var readableController;
		this.readable = new ReadableStream({
			start: function(c) { readableController = c; }
		}, readableStrategy);

		var transformFn = transformer && typeof transformer.transform === 'function'
			? transformer.transform.bind(transformer) : null;
		var flushFn = transformer && typeof transformer.flush === 'function'
			? transformer.flush.bind(transformer) : null;

		var tc = {
			enqueue: function(chunk) { readableController.enqueue(chunk); },
			error: function(e) { readableController.error(e); },
			terminate: function() { readableController.close(); },
		};

		this.writable = new WritableStream({
			write: function(chunk) {
				if (transformFn) return transformFn(chunk, tc);
				readableController.enqueue(chunk);
			},
			close: function() {
				var done = function() { readableController.close(); };
				if (flushFn) {
					var r = flushFn(tc);
					if (r && typeof r.then === 'function') return r.then(done);
				}
				done();
			}
		}, writableStrategy);

		if (transformer && typeof transformer.start === 'function') {
			transformer.start(tc);
		}
	}
}

class ByteLengthQueuingStrategy {
	constructor(init) { this.highWaterMark = init.highWaterMark; }
	size(chunk) { return chunk.byteLength; }
}

class CountQueuingStrategy {
	constructor(init) { this.highWaterMark = init.highWaterMark; }
	size() { return 1; }
}

globalThis.ReadableStream = ReadableStream;
globalThis.ReadableStreamDefaultReader = ReadableStreamDefaultReader;
globalThis.ReadableStreamDefaultController = ReadableStreamDefaultController;
globalThis.WritableStream = WritableStream;
globalThis.WritableStreamDefaultWriter = WritableStreamDefaultWriter;
globalThis.TransformStream = TransformStream;
globalThis.ByteLengthQueuingStrategy = ByteLengthQueuingStrategy;
globalThis.CountQueuingStrategy = CountQueuingStrategy;

})();
`
