package worker

// abortJS installs the event plumbing user code sees: Event, EventTarget,
// DOMException, AbortSignal, and AbortController.
const abortJS = `
(function() {

class DOMException extends Error {
	constructor(message, name) {
		super(message);
		this.name = name || 'Error';
		this.code = 0;
	}
}

class Event {
	constructor(type, options) {
		this.type = String(type);
		this.bubbles = !!(options && options.bubbles);
		this.cancelable = !!(options && options.cancelable);
		this.defaultPrevented = false;
		this.target = null;
		this.currentTarget = null;
		this.timeStamp = performance.now();
	}
	preventDefault() {
		if (this.cancelable) this.defaultPrevented = true;
	}
	stopPropagation() {}
	stopImmediatePropagation() {}
}

class EventTarget {
	constructor() {
		this._listeners = {};
	}
	addEventListener(type, callback, options) {
		if (typeof callback !== 'function') return;
		if (!this._listeners[type]) this._listeners[type] = [];
		this._listeners[type].push({ callback: callback, once: !!(options && options.once) });
	}
	removeEventListener(type, callback) {
		if (!this._listeners[type]) return;
		this._listeners[type] = this._listeners[type].filter(function(l) {
			return l.callback !== callback;
		});
	}
	dispatchEvent(event) {
		event.target = this;
		event.currentTarget = this;
		var listeners = this._listeners[event.type];
		if (!listeners) return true;
		var copy = listeners.slice();
		for (var i = 0; i < copy.length; i++) {
			copy[i].callback.call(this, event);
			if (copy[i].once) this.removeEventListener(event.type, copy[i].callback);
		}
		return !event.defaultPrevented;
	}
}

class AbortSignal extends EventTarget {
	constructor() {
		super();
		this.aborted = false;
		this.reason = undefined;
		this.onabort = null;
	}
	throwIfAborted() {
		if (this.aborted) throw this.reason;
	}
	_abort(reason) {
		if (this.aborted) return;
		this.aborted = true;
		this.reason = reason !== undefined
			? reason
			: new DOMException('signal is aborted without reason', 'AbortError');
		var ev = new Event('abort');
		if (typeof this.onabort === 'function') this.onabort.call(this, ev);
		this.dispatchEvent(ev);
	}
	static abort(reason) {
		var signal = new AbortSignal();
		signal.aborted = true;
		signal.reason = reason !== undefined
			? reason
			: new DOMException('signal is aborted without reason', 'AbortError');
		return signal;
	}
	static timeout(ms) {
		var signal = new AbortSignal();
		setTimeout(function() {
			signal._abort(new DOMException('signal timed out', 'TimeoutError'));
		}, ms);
		return signal;
	}
	static any(signals) {
		var controller = new AbortController();
		for (var i = 0; i < signals.length; i++) {
			if (signals[i].aborted) {
				controller.abort(signals[i].reason);
				return controller.signal;
			}
		}
		function onAbort(ev) {
			controller.abort(ev.target.reason);
			for (var j = 0; j < signals.length; j++) {
				signals[j].removeEventListener('abort', onAbort);
			}
		}
		for (var k = 0; k < signals.length; k++) {
			signals[k].addEventListener('abort', onAbort);
		}
		return controller.signal;
	}
}

class AbortController {
	constructor() {
		this.signal = new AbortSignal();
	}
	abort(reason) {
		this.signal._abort(reason);
	}
}

globalThis.DOMException = DOMException;
globalThis.Event = Event;
globalThis.EventTarget = EventTarget;
globalThis.AbortSignal = AbortSignal;
globalThis.AbortController = AbortController;

})();
`
