package worker

import (
	"strconv"

	v8 "github.com/tommie/v8go"
)

// jsString builds a V8 string value. Errors are impossible for strings,
// so the value is returned directly.
func jsString(iso *v8.Isolate, s string) *v8.Value {
	v, _ := v8.NewValue(iso, s)
	return v
}

func jsInt(iso *v8.Isolate, n int32) *v8.Value {
	v, _ := v8.NewValue(iso, n)
	return v
}

func jsBool(iso *v8.Isolate, b bool) *v8.Value {
	v, _ := v8.NewValue(iso, b)
	return v
}

func jsFloat(iso *v8.Isolate, f float64) *v8.Value {
	v, _ := v8.NewValue(iso, f)
	return v
}

// registerFunc exposes a Go callback as a global JS function.
func registerFunc(iso *v8.Isolate, ctx *v8.Context, name string, fn func(info *v8.FunctionCallbackInfo) *v8.Value) error {
	tmpl := v8.NewFunctionTemplate(iso, fn)
	return ctx.Global().Set(name, tmpl.GetFunction(ctx))
}

// jsEscape escapes a string for embedding in JavaScript source. Go quoting
// is valid JS string syntax.
func jsEscape(s string) string {
	return strconv.Quote(s)
}
