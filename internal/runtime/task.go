package runtime

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is one spawned goroutine running script code.
type Task struct {
	ID      string
	Name    string
	Started time.Time

	cancel context.CancelFunc
	done   chan struct{}
	names  []string // unique names held, guarded by Runtime.taskMu
}

// Cancel asks the task to stop at its next statement or blocking wait.
func (t *Task) Cancel() { t.cancel() }

// Done is closed once the task has finished and released its unique names.
func (t *Task) Done() <-chan struct{} { return t.done }

// TaskInfo is a snapshot of a running task.
type TaskInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Started time.Time `json:"started"`
	Unique  []string  `json:"unique,omitempty"`
}

type taskKey struct{}

// TaskFromContext returns the task whose goroutine owns ctx.
func TaskFromContext(ctx context.Context) (*Task, bool) {
	t, ok := ctx.Value(taskKey{}).(*Task)
	return t, ok
}

// Spawn runs fn in a new task. The task context is derived from parent and
// is also cancelled by Close. Spawn never blocks on fn.
func (r *Runtime) Spawn(parent context.Context, name string, fn func(ctx context.Context)) (*Task, error) {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		ID:      uuid.NewString(),
		Name:    name,
		Started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	ctx = context.WithValue(ctx, taskKey{}, t)

	r.taskMu.Lock()
	if r.closed {
		r.taskMu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	r.tasks[t.ID] = t
	r.wg.Add(1)
	r.taskMu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.finish(t)
		fn(ctx)
	}()
	return t, nil
}

// finish releases everything t held.
func (r *Runtime) finish(t *Task) {
	r.taskMu.Lock()
	delete(r.tasks, t.ID)
	for _, name := range t.names {
		if r.unique[name] == t {
			delete(r.unique, name)
		}
	}
	t.names = nil
	r.taskMu.Unlock()

	t.cancel()
	close(t.done)
}

// Tasks returns the running tasks ordered by start time.
func (r *Runtime) Tasks() []TaskInfo {
	r.taskMu.Lock()
	out := make([]TaskInfo, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, TaskInfo{ID: t.ID, Name: t.Name, Started: t.Started, Unique: slices.Clone(t.names)})
	}
	r.taskMu.Unlock()

	slices.SortFunc(out, func(a, b TaskInfo) int {
		if c := a.Started.Compare(b.Started); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Unique makes the task running ctx the only holder of name. When another
// task holds name it is cancelled and waited for; with killMe the caller
// is cancelled instead. A caller that already holds name cancels itself.
// Unique returns the caller's context error once it has been cancelled.
//
// The takeover is recorded before the previous holder is waited for, so
// concurrent challengers each displace the one before them and exactly
// one survives.
func (r *Runtime) Unique(ctx context.Context, name string, killMe bool) error {
	cur, ok := TaskFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: task.unique(%q)", ErrNotInTask, name)
	}

	r.taskMu.Lock()
	prev, held := r.unique[name]
	if held && (killMe || prev == cur) {
		r.taskMu.Unlock()
		cur.Cancel()
		return context.Cause(ctx)
	}
	if held {
		prev.names = slices.DeleteFunc(prev.names, func(n string) bool { return n == name })
	}
	r.unique[name] = cur
	cur.names = append(cur.names, name)
	r.taskMu.Unlock()

	if !held {
		return nil
	}
	prev.Cancel()
	select {
	case <-prev.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
