package provisioning

import (
	"context"
	"sync"
)

// Task is one running poll loop.
type Task struct {
	TenantID string

	cancel context.CancelFunc
	done   chan struct{}
	result *Result
	err    error
}

// Done is closed when the loop has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the loop returns or ctx ends. Ending ctx does not cancel
// the task. A task that has already returned reports its own result.
func (t *Task) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
	}

	select {
	case <-t.done:
		return t.result, t.err
	default:
		return nil, ctx.Err()
	}
}

func (t *Task) Cancel() {
	t.cancel()
}

// Tracker keeps at most one poll task per tenant.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewTracker() *Tracker {
	return &Tracker{
		tasks: make(map[string]*Task),
	}
}

// Watch starts run for the tenant unless a task is already active, in which
// case that task is returned. The task stops when ctx ends, when Cancel is
// called or when run returns; it then removes itself.
func (t *Tracker) Watch(ctx context.Context, tenantID string, run func(ctx context.Context) (*Result, error)) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	if task, ok := t.tasks[tenantID]; ok {
		return task
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &Task{
		TenantID: tenantID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	t.tasks[tenantID] = task

	go func() {
		defer cancel()

		task.result, task.err = run(taskCtx)

		t.mu.Lock()
		if t.tasks[tenantID] == task {
			delete(t.tasks, tenantID)
		}
		t.mu.Unlock()

		close(task.done)
	}()

	return task
}

// Cancel stops the tenant's task, reporting whether one was running.
func (t *Tracker) Cancel(tenantID string) bool {
	t.mu.Lock()
	task, ok := t.tasks[tenantID]
	t.mu.Unlock()

	if ok {
		task.cancel()
	}

	return ok
}

func (t *Tracker) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, task := range t.tasks {
		task.cancel()
	}
}

// Active reports whether a poll loop is running for the tenant.
func (t *Tracker) Active(tenantID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.tasks[tenantID]

	return ok
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.tasks)
}
