package worker

import "sync/atomic"

// bufferAllocator enforces the aggregate array-buffer ceiling. Accounting
// is by size: every allocate is paired with a free of the same size, and
// net in-flight bytes never exceed max. The counter is shared between the
// op bridge (request/response body buffers, stream chunks) and the
// script-side ArrayBuffer accounting ops, so concurrent charges stay
// correct.
type bufferAllocator struct {
	max      int64
	inFlight atomic.Int64
	limitHit atomic.Bool
}

func newBufferAllocator(maxBytes int) *bufferAllocator {
	return &bufferAllocator{max: int64(maxBytes)}
}

// charge reserves n bytes. Returns false when the reservation would push
// in-flight bytes past the ceiling; the reservation is rolled back and the
// limit-hit flag is latched so the worker can classify the failure.
func (a *bufferAllocator) charge(n int) bool {
	if n < 0 {
		return false
	}
	if a.max <= 0 {
		return true
	}
	if a.inFlight.Add(int64(n)) > a.max {
		a.inFlight.Add(-int64(n))
		a.limitHit.Store(true)
		return false
	}
	metricBufferBytes.Add(float64(n))
	return true
}

// allocate reserves and returns a zeroed buffer of n bytes, or nil when
// the ceiling would be exceeded.
func (a *bufferAllocator) allocate(n int) []byte {
	if !a.charge(n) {
		return nil
	}
	return make([]byte, n)
}

// allocateUninitialized is allocate without the zero-fill guarantee. Go
// zeroes all allocations, so only the accounting contract differs.
func (a *bufferAllocator) allocateUninitialized(n int) []byte {
	return a.allocate(n)
}

// free releases n reserved bytes. Callers must pass the exact size they
// charged.
func (a *bufferAllocator) free(n int) {
	if a.max <= 0 || n <= 0 {
		return
	}
	a.inFlight.Add(-int64(n))
	metricBufferBytes.Sub(float64(n))
}

// inFlightBytes returns the current net reservation.
func (a *bufferAllocator) inFlightBytes() int64 {
	return a.inFlight.Load()
}

// wasLimitHit reports and clears the limit-hit flag.
func (a *bufferAllocator) wasLimitHit() bool {
	return a.limitHit.Swap(false)
}
