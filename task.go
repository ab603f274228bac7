package worker

import (
	"fmt"
	"time"
)

// Task is a single unit of work dispatched into a worker: an HTTP fetch
// request or a scheduled cron tick. Exactly one of the two variants is
// set.
type Task struct {
	fetch     *FetchInit
	scheduled *ScheduledInit
}

// Kind returns "fetch" or "scheduled".
func (t Task) Kind() string {
	if t.fetch != nil {
		return "fetch"
	}
	return "scheduled"
}

// FetchInit carries a fetch task's request and its single-use reply
// channel. The worker fulfills the channel exactly once per task.
type FetchInit struct {
	Request *HttpRequest
	reply   chan FetchResult
}

// NewFetchTask wraps an HTTP request as a task. The returned channel
// receives exactly one FetchResult: the handler's response, or the error
// the task terminated with.
func NewFetchTask(req *HttpRequest) (Task, <-chan FetchResult) {
	init := &FetchInit{
		Request: req,
		reply:   make(chan FetchResult, 1),
	}
	return Task{fetch: init}, init.reply
}

// ScheduledInit carries a scheduled task's trigger data and its
// single-use reply channel.
type ScheduledInit struct {
	Cron          string
	ScheduledTime time.Time
	reply         chan ScheduledResult
}

// NewScheduledTask wraps a cron tick as a task. The cron expression must
// be a valid 5-field expression; the returned channel receives exactly
// one ScheduledResult when the handler settles or the task terminates.
func NewScheduledTask(cron string, scheduledTime time.Time) (Task, <-chan ScheduledResult, error) {
	if err := validateCron(cron); err != nil {
		return Task{}, nil, fmt.Errorf("scheduled task: %w", err)
	}
	init := &ScheduledInit{
		Cron:          cron,
		ScheduledTime: scheduledTime,
		reply:         make(chan ScheduledResult, 1),
	}
	return Task{scheduled: init}, init.reply, nil
}
