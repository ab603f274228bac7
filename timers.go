package worker

import (
	"time"

	v8 "github.com/tommie/v8go"
)

// timersJS installs setTimeout/setInterval/clearTimeout/clearInterval.
// Callbacks are stored JS-side in a private map; Go schedules and fires
// them by id through the event loop. __fireTimer stays global because the
// event loop invokes it by name from Go.
const timersJS = `
(function() {
	var register = globalThis.__op_timer_register;
	var clear = globalThis.__op_timer_clear;
	var callbacks = {};

	globalThis.setTimeout = function(fn, delay) {
		if (typeof fn !== 'function') return 0;
		var args = Array.prototype.slice.call(arguments, 2);
		var id = register(Number(delay) || 0, false);
		callbacks[id] = { fn: fn, args: args };
		return id;
	};
	globalThis.setInterval = function(fn, interval) {
		if (typeof fn !== 'function') return 0;
		var args = Array.prototype.slice.call(arguments, 2);
		var id = register(Number(interval) || 0, true);
		callbacks[id] = { fn: fn, args: args, repeat: true };
		return id;
	};
	globalThis.clearTimeout = globalThis.clearInterval = function(id) {
		if (typeof id !== 'number') return;
		clear(id);
		delete callbacks[id];
	};
	globalThis.__fireTimer = function(id) {
		var entry = callbacks[id];
		if (!entry) return;
		if (!entry.repeat) delete callbacks[id];
		entry.fn.apply(undefined, entry.args);
	};
})();
`

func registerTimerOps(iso *v8.Isolate, ctx *v8.Context, el *eventLoop) error {
	err := registerFunc(iso, ctx, "__op_timer_register", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 2 {
			return jsInt(iso, 0)
		}
		delay := time.Duration(args[0].Number() * float64(time.Millisecond))
		id := el.registerTimer(delay, args[1].Boolean())
		return jsInt(iso, int32(id))
	})
	if err != nil {
		return err
	}
	err = registerFunc(iso, ctx, "__op_timer_clear", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) >= 1 {
			el.clearTimer(int(args[0].Integer()))
		}
		return v8.Undefined(iso)
	})
	return err
}
