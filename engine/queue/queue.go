// Package queue implements the durable single-concurrency task queue.
//
// The task list lives at a store path, so it survives scene changes and
// snapshot reloads. One drain goroutine runs tasks in order; urgent tasks are
// inserted at the head. A failing task stays at the head and is retried
// after the inter-task delay until its attempt budget runs out.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/types"
)

// Defaults for a new queue.
const (
	DefaultPath       = "queue.tasks"
	DefaultInterval   = 500 * time.Millisecond
	DefaultMaxRetries = 3
)

// Handler runs one task. A task succeeds only when the handler returns true
// and a nil error.
type Handler func(ctx context.Context, task types.Task) (bool, error)

// Option configures a Queue.
type Option func(*Queue)

// WithPath sets the store path holding the task list.
func WithPath(path string) Option {
	return func(q *Queue) { q.path = path }
}

// WithInterval sets the delay before every attempt.
func WithInterval(d time.Duration) Option {
	return func(q *Queue) { q.interval = d }
}

// WithMaxRetries sets how many failed retries a task gets before it is dropped.
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Queue drains tasks through a handler, one at a time.
type Queue struct {
	st         *store.Store
	handler    Handler
	path       string
	interval   time.Duration
	maxRetries int
	logger     *slog.Logger

	mu        sync.Mutex
	retries   map[string]int
	executing bool
	started   bool
	watchID   store.WatchID
	cancel    context.CancelFunc

	wake chan struct{}
	done chan struct{}
}

// New creates a queue over st. The queue does nothing until Start.
func New(st *store.Store, handler Handler, opts ...Option) *Queue {
	q := &Queue{
		st:         st,
		handler:    handler,
		path:       DefaultPath,
		interval:   DefaultInterval,
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
		retries:    map[string]int{},
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the drain goroutine. Tasks already in the store, for
// example from a loaded snapshot, are drained right away.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	q.st.Init(q.path, []types.Task{})
	q.watchID = q.st.Watch(q.path, func(_, _ any) { q.signal() })
	q.mu.Unlock()

	go q.loop(ctx)
	q.signal()
}

// Destroy stops the drain loop and detaches from the store. A handler that
// is already running is not cancelled; Done closes once it returns.
func (q *Queue) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		q.started = true
		close(q.done)
		return
	}
	if q.cancel == nil {
		return
	}
	q.st.Unwatch(q.path, q.watchID)
	q.cancel()
	q.cancel = nil
}

// Done is closed when the drain loop has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Enqueue appends a task and returns it as stored, with its ID assigned.
func (q *Queue) Enqueue(task types.Task) types.Task {
	task = withID(task)
	q.st.Update(q.path, func(old any) any {
		tasks := decode(old)
		return append(tasks, task)
	})
	Depth.Set(float64(q.Len()))
	return task
}

// EnqueueUrgent inserts a task at the head of the queue. A task already
// running is not interrupted; the urgent task runs next.
func (q *Queue) EnqueueUrgent(task types.Task) types.Task {
	task = withID(task)
	q.st.Update(q.path, func(old any) any {
		tasks := decode(old)
		return append([]types.Task{task}, tasks...)
	})
	Depth.Set(float64(q.Len()))
	return task
}

// Tasks returns a copy of the queued tasks in execution order.
func (q *Queue) Tasks() []types.Task {
	v, _ := q.st.Get(q.path)
	return decode(v)
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	return len(q.Tasks())
}

// Remove deletes the task with the given ID. Returns false if it is not queued.
func (q *Queue) Remove(id string) bool {
	var found bool
	q.st.Update(q.path, func(old any) any {
		tasks := decode(old)
		out := tasks[:0]
		for _, t := range tasks {
			if t.ID == id {
				found = true
				continue
			}
			out = append(out, t)
		}
		return out
	})
	q.mu.Lock()
	delete(q.retries, id)
	q.mu.Unlock()
	Depth.Set(float64(q.Len()))
	return found
}

// Clear drops every queued task.
func (q *Queue) Clear() {
	q.st.Set(q.path, []types.Task{})
	q.mu.Lock()
	q.retries = map[string]int{}
	q.mu.Unlock()
	Depth.Set(0)
}

// Busy reports whether a task is queued or running.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	executing := q.executing
	q.mu.Unlock()
	return executing || q.Len() > 0
}

// WaitIdle blocks until the queue is empty and no task is running.
func (q *Queue) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for q.Busy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) loop(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		for q.Len() > 0 {
			if !sleep(ctx, q.interval) {
				return
			}
			tasks := q.Tasks()
			if len(tasks) == 0 {
				break
			}
			q.run(ctx, tasks[0])
		}
	}
}

// run executes one attempt of task and settles it by ID, so an urgent task
// inserted meanwhile is never mistaken for the one that ran.
func (q *Queue) run(ctx context.Context, task types.Task) {
	q.mu.Lock()
	q.executing = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.executing = false
		q.mu.Unlock()
	}()

	start := time.Now()
	ok, err := q.invoke(context.WithoutCancel(ctx), task)
	TaskDuration.WithLabelValues(task.Action).Observe(time.Since(start).Seconds())

	if ok && err == nil {
		TasksProcessed.WithLabelValues(task.Action, StatusSuccess).Inc()
		q.Remove(task.ID)
		return
	}

	TasksProcessed.WithLabelValues(task.Action, StatusFailure).Inc()
	q.mu.Lock()
	q.retries[task.ID]++
	n := q.retries[task.ID]
	q.mu.Unlock()

	if n > q.maxRetries {
		TasksProcessed.WithLabelValues(task.Action, StatusDropped).Inc()
		q.logger.Warn("dropping task after repeated failures",
			"task_id", task.ID,
			"action", task.Action,
			"sender", task.Sender,
			"attempts", n,
			"error", err)
		q.Remove(task.ID)
		return
	}
	q.logger.Debug("task failed, will retry",
		"task_id", task.ID,
		"action", task.Action,
		"attempt", n,
		"error", err)
}

func (q *Queue) invoke(ctx context.Context, task types.Task) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("task %s panicked: %v", task.Action, r)
		}
	}()
	return q.handler(ctx, task)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func withID(task types.Task) types.Task {
	if task.ID == "" {
		task.ID = NewID()
	}
	return task
}

// decode reads a task list from a store value. Values restored from a
// snapshot arrive as generic JSON, so anything else is re-decoded.
func decode(v any) []types.Task {
	switch tasks := v.(type) {
	case nil:
		return nil
	case []types.Task:
		out := make([]types.Task, len(tasks))
		copy(out, tasks)
		return out
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var tasks []types.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil
	}
	return tasks
}
