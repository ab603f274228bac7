package worker

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	v8 "github.com/tommie/v8go"
	"go.uber.org/zap"
)

// WorkerOptions configures worker construction. The zero value is usable:
// default limits, no snapshot, no-op logging.
type WorkerOptions struct {
	// Limits caps the worker's resources; nil means DefaultLimits.
	Limits *RuntimeLimits
	// Snapshot skips bundle compilation on cold start. Stale snapshots are
	// rejected.
	Snapshot *Snapshot
	// Logger receives runtime diagnostics (not script console output).
	Logger *zap.Logger
	// LogSink receives the script's console output.
	LogSink LogSink
	// FetchTimeout bounds each outbound fetch issued by the script.
	FetchTimeout time.Duration
}

// Worker owns one isolate for its entire lifetime and dispatches tasks
// into it. A worker accepts one task at a time; a task that latches a
// non-normal termination leaves the worker unusable and the host must
// construct a fresh one.
type Worker struct {
	id     string
	iso    *v8.Isolate
	ctx    *v8.Context
	handle *IsolateHandle

	latch     *terminationLatch
	limits    RuntimeLimits
	allocator *bufferAllocator
	registry  *taskRegistry
	loop      *eventLoop

	triggerFetch     *v8.Function
	triggerScheduled *v8.Function

	logger      *zap.Logger
	logSink     LogSink
	fetchClient *http.Client

	heapMaxBytes uint64
	busy         atomic.Bool
	closed       atomic.Bool
}

// NewWorker builds an isolate with the custom allocation ceiling and heap
// limits, installs the extension set, runs the runtime bootstrap, and
// evaluates the user script. Construction fails with ErrBootstrapFailed
// when the user script's top-level evaluation throws.
func NewWorker(script Script, opts *WorkerOptions) (*Worker, error) {
	if opts == nil {
		opts = &WorkerOptions{}
	}
	limits := DefaultLimits()
	if opts.Limits != nil {
		limits = *opts.Limits
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	initialHeap := uint64(limits.HeapInitialMB) * 1024 * 1024
	maxHeap := uint64(limits.HeapMaxMB) * 1024 * 1024

	// V8 gets a doubled ceiling so the sentinel can latch the overrun and
	// terminate in an orderly way before V8 itself gives up.
	var iso *v8.Isolate
	if maxHeap > 0 {
		iso = v8.NewIsolate(v8.WithResourceConstraints(initialHeap, maxHeap*2))
	} else {
		iso = v8.NewIsolate()
	}
	ctx := v8.NewContext(iso)

	w := &Worker{
		id:           uuid.NewString(),
		iso:          iso,
		ctx:          ctx,
		handle:       &IsolateHandle{iso: iso},
		latch:        newTerminationLatch(),
		limits:       limits,
		allocator:    newBufferAllocator(limits.MaxArrayBufferBytes),
		registry:     newTaskRegistry(),
		loop:         newEventLoop(),
		logSink:      opts.LogSink,
		heapMaxBytes: maxHeap,
		fetchClient:  &http.Client{Timeout: fetchTimeout},
	}
	w.logger = logger.With(zap.String("worker_id", w.id))
	w.loop.onIteration = w.checkHeap

	fail := func(err error) (*Worker, error) {
		ctx.Close()
		iso.Dispose()
		return nil, err
	}

	// Ops first: every extension script captures its ops at evaluation
	// time.
	if err := w.setupOps(iso, ctx); err != nil {
		return fail(fmt.Errorf("registering ops: %w", err))
	}
	registrars := []func(*v8.Isolate, *v8.Context, *eventLoop) error{
		registerTimerOps,
		registerURLOps,
		registerCryptoOps,
		w.registerCompressionOps,
		w.registerFetchOps,
	}
	for _, register := range registrars {
		if err := register(iso, ctx, w.loop); err != nil {
			return fail(fmt.Errorf("registering ops: %w", err))
		}
	}

	// Extension bundle: from the snapshot's code cache when available,
	// compiled fresh otherwise.
	bundle, err := compileBundle(iso, opts.Snapshot)
	if err != nil {
		return fail(err)
	}
	if _, err := bundle.Run(ctx); err != nil {
		return fail(fmt.Errorf("evaluating runtime bundle: %w", err))
	}
	w.logger.Debug("runtime bundle evaluated",
		zap.Bool("snapshot", opts.Snapshot != nil),
		zap.Int("heap_initial_mb", limits.HeapInitialMB),
		zap.Int("heap_max_mb", limits.HeapMaxMB))

	// Bootstrap: installs the event registration API, scrubs the bridge
	// globals, and hands back the trigger functions.
	triggersVal, err := ctx.RunScript(fmt.Sprintf(bootstrapJS, jsEscape(script.envJSON())), "bootstrap.js")
	if err != nil {
		return fail(fmt.Errorf("bootstrap failed: %w", err))
	}
	triggers, err := triggersVal.AsObject()
	if err != nil {
		return fail(fmt.Errorf("bootstrap returned no trigger object: %w", err))
	}
	w.triggerFetch, err = extractTrigger(triggers, "fetch")
	if err != nil {
		return fail(err)
	}
	w.triggerScheduled, err = extractTrigger(triggers, "scheduled")
	if err != nil {
		return fail(err)
	}

	// User script. A top-level throw fails construction.
	code, err := script.prepare()
	if err != nil {
		return fail(newError(ErrBootstrapFailed, err.Error()))
	}
	if _, err := ctx.RunScript(code, "worker.js"); err != nil {
		return fail(newError(ErrBootstrapFailed, err.Error()))
	}
	ctx.PerformMicrotaskCheckpoint()

	w.logger.Debug("worker ready")
	metricWorkersCreated.Inc()
	return w, nil
}

// extractTrigger pulls a named trigger function out of the bootstrap's
// return value.
func extractTrigger(obj *v8.Object, name string) (*v8.Function, error) {
	val, err := obj.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%s trigger not found in bootstrap response: %w", name, err)
	}
	fn, err := val.AsFunction()
	if err != nil {
		return nil, fmt.Errorf("%s trigger is not a function: %w", name, err)
	}
	return fn, nil
}

// ID returns the worker's identifier, used in diagnostics.
func (w *Worker) ID() string { return w.id }

// TerminationReason reports why the last task ended. Readable after Exec
// returns.
func (w *Worker) TerminationReason() TerminationReason {
	return w.latch.reason()
}

// Abort terminates any in-flight JavaScript and permanently poisons the
// worker. Safe to call from any goroutine.
func (w *Worker) Abort() {
	w.latch.latch(TerminationAborted, "")
	w.handle.TerminateExecution()
}

// Close destroys the isolate. The worker must not be executing a task.
func (w *Worker) Close() {
	if w.closed.Swap(true) {
		return
	}
	w.ctx.Close()
	w.iso.Dispose()
}

// checkHeap latches HeapLimitExceeded once used heap passes the
// configured ceiling. Runs on the isolate's thread at every event-loop
// iteration.
func (w *Worker) checkHeap() {
	if w.heapMaxBytes == 0 {
		return
	}
	stats := w.iso.GetHeapStatistics()
	if stats.UsedHeapSize > w.heapMaxBytes {
		if w.latch.latch(TerminationHeapLimit, "") {
			w.handle.TerminateExecution()
		}
	}
}

// Exec dispatches one task into the worker: arms both watchdogs, invokes
// the embedded trigger, drives the event loop to quiescence or
// termination, and settles the task's reply channel exactly once. It
// returns nil iff the handler produced its reply without termination.
func (w *Worker) Exec(task Task) error {
	if !w.latch.normal() {
		err := newError(ErrWorkerUnusable, w.latch.reason().Kind.String())
		failTask(task, err)
		return err
	}
	if !w.busy.CompareAndSwap(false, true) {
		err := newError(ErrWorkerUnusable, "worker is already executing a task")
		failTask(task, err)
		return err
	}
	defer w.busy.Store(false)

	// Pin the goroutine for the whole dispatch: the isolate must be
	// entered by one thread at a time, and the CPU enforcer keys its
	// timer and registry by this thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	start := time.Now()
	cpuTimer := StartCPUTimer()

	wallTimeout := time.Duration(w.limits.MaxWallClockTimeMS) * time.Millisecond
	guard := armWallClockGuard(w.handle, w.latch, wallTimeout)
	defer guard.release()

	enforcer := armCPUEnforcer(w.handle, w.latch, time.Duration(w.limits.MaxCPUTimeMS)*time.Millisecond)
	defer enforcer.release()

	var deadline time.Time
	if wallTimeout > 0 {
		deadline = start.Add(wallTimeout)
	}

	err := w.dispatch(task, deadline)

	kind := task.Kind()
	outcome := "ok"
	if err != nil {
		// Any unfulfilled reply learns the task's fate; late respondWith
		// calls find their registry entry gone and are dropped.
		w.registry.cancelAll(err)
		outcome = w.latch.reason().Kind.String()
		if w.latch.normal() {
			outcome = "error"
		}
	}

	elapsed := time.Since(start)
	metricTasks.WithLabelValues(kind, outcome).Inc()
	metricTaskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	w.logger.Debug("task finished",
		zap.String("kind", kind),
		zap.String("outcome", outcome),
		zap.Duration("wall_time", elapsed),
		zap.Duration("cpu_time", cpuTimer.Elapsed()),
		zap.Error(err))
	return err
}

// dispatch runs the trigger and classifies the outcome.
func (w *Worker) dispatch(task Task, deadline time.Time) error {
	var id uint32
	var trigger *v8.Function
	switch {
	case task.fetch != nil:
		id = w.registry.addFetch(task.fetch)
		trigger = w.triggerFetch
	case task.scheduled != nil:
		id = w.registry.addScheduled(task.scheduled)
		trigger = w.triggerScheduled
	default:
		return newError(ErrUncaught, "empty task")
	}

	result, callErr := trigger.Call(v8.Undefined(w.iso), jsInt(w.iso, int32(id)))
	if callErr == nil {
		if err := w.ctx.Global().Set("__task_result", result); err != nil {
			callErr = err
		} else {
			callErr = w.loop.awaitSettled(w.ctx, "__task_result", "__task_value", deadline, w.latch)
		}
	}

	// Guards first: a termination makes every in-flight script call
	// error, so the latch outranks whatever surfaced from V8.
	limitHit := w.allocator.wasLimitHit()
	if reason := w.latch.reason(); reason.Kind != TerminationNormal {
		metricTerminations.WithLabelValues(reason.Kind.String()).Inc()
		return terminationError(reason)
	}
	if callErr != nil {
		msg := callErr.Error()
		// A denied buffer allocation raises a catchable RangeError; it only
		// counts as a heap termination when the task actually failed on it.
		if limitHit || looksLikeMemoryError(msg) {
			w.latch.latch(TerminationHeapLimit, "")
			metricTerminations.WithLabelValues(TerminationHeapLimit.String()).Inc()
			return terminationError(w.latch.reason())
		}
		if strings.Contains(msg, "no fetch event listener") || strings.Contains(msg, "no scheduled event listener") {
			// No handler does not poison the worker: nothing user-visible
			// ran.
			return newError(ErrNoHandler, task.Kind())
		}
		w.latch.latch(TerminationUncaught, msg)
		metricTerminations.WithLabelValues(TerminationUncaught.String()).Inc()
		return newError(ErrUncaught, msg)
	}

	// Trigger settled cleanly; a fetch handler may still have finished
	// without calling respondWith.
	markerVal, _ := w.ctx.Global().Get("__task_value")
	_, _ = w.ctx.RunScript("delete globalThis.__task_value;", "task_cleanup.js")
	if task.fetch != nil && markerVal != nil && markerVal.String() == "no-response" {
		return newError(ErrNoResponse, "fetch handler returned without calling respondWith")
	}
	return nil
}

// failTask settles a refused task's reply channel so the host never
// blocks on it.
func failTask(task Task, err error) {
	switch {
	case task.fetch != nil:
		select {
		case task.fetch.reply <- FetchResult{Err: err}:
		default:
		}
	case task.scheduled != nil:
		select {
		case task.scheduled.reply <- ScheduledResult{Err: err}:
		default:
		}
	}
}

// looksLikeMemoryError matches the exception signatures V8 produces for
// allocation failures.
func looksLikeMemoryError(msg string) bool {
	for _, pattern := range []string{
		"Array buffer allocation failed",
		"out of memory",
		"Allocation failed",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
