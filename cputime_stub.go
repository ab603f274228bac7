//go:build !linux

package worker

import "time"

// threadCPUTime is unavailable off Linux; readings are zero and CPU
// accounting is disabled.
func threadCPUTime() time.Duration { return 0 }

func threadCPUTimeOf(_ int) (time.Duration, bool) { return 0, false }

// CPUTimer is inert off Linux.
type CPUTimer struct{}

// StartCPUTimer begins measuring the calling thread's CPU time.
func StartCPUTimer() CPUTimer { return CPUTimer{} }

// Elapsed returns CPU time consumed since the timer started.
func (t CPUTimer) Elapsed() time.Duration { return 0 }
