package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-script/internal/event"
	"github.com/nerrad567/gray-logic-script/internal/notify"
	"github.com/nerrad567/gray-logic-script/internal/runtime"
	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/state"
	"github.com/nerrad567/gray-logic-script/internal/timespec"
)

// Env holds the collaborators shared by every trigger.
type Env struct {
	Runtime  *runtime.Runtime
	Notifier *state.Notifier
	Bus      *event.Bus

	// Sun resolves sunrise and sunset in time specs. May be nil.
	Sun timespec.SunProvider

	// Logger receives trigger lifecycle messages. Nil discards them.
	Logger *slog.Logger

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Config describes one decorated function. A nil or empty field means
// the clause is absent.
type Config struct {
	// Name is the function name; Module and Filename locate it.
	Name     string
	Module   string
	Filename string

	TimeTrigger  []string
	StateTrigger string
	// EventTrigger is [type] or [type, guard expression].
	EventTrigger []string
	StateActive  string
	TimeActive   []string

	Action  *eval.Function
	Globals *eval.SymTable
}

// Status is the lifecycle state of a trigger.
type Status string

// Trigger lifecycle states.
const (
	StatusRegistered Status = "registered"
	StatusRunning    Status = "running"
	StatusStopped    Status = "stopped"
)

// Trigger is one registered function and its watch loop.
type Trigger struct {
	cfg   Config
	env   *Env
	log   *slog.Logger
	queue *notify.Queue

	stateGuard  *guard
	eventGuard  *guard
	activeGuard *guard
	stateNames  []string
	eventType   string

	// invalid clauses never match
	stateInvalid  bool
	eventInvalid  bool
	activeInvalid bool

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// New compiles cfg and installs its notification subscriptions. Malformed
// guards and time specs are logged; the affected clause then never
// matches.
func New(cfg Config, env *Env) (*Trigger, error) {
	if cfg.Action == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoAction, cfg.Name)
	}
	if cfg.Globals == nil {
		cfg.Globals = eval.NewSymTable()
	}

	t := &Trigger{
		cfg:    cfg,
		env:    env,
		log:    env.logger().With("trigger", cfg.Name, "module", cfg.Module),
		queue:  notify.NewQueue(),
		status: StatusRegistered,
	}

	if cfg.StateActive != "" {
		g, err := compileGuard(cfg.StateActive, cfg.Name+" @state_active")
		if err != nil {
			t.log.Error("state_active ignored", "error", err)
			t.activeInvalid = true
		}
		t.activeGuard = g
	}

	for _, spec := range cfg.TimeTrigger {
		if err := timespec.ValidateTrigger(spec); err != nil {
			t.log.Error("time_trigger entry never fires", "spec", spec, "error", err)
		}
	}
	for _, spec := range cfg.TimeActive {
		if err := timespec.ValidateActive(spec); err != nil {
			t.log.Error("time_active entry never matches", "spec", spec, "error", err)
		}
	}

	if cfg.StateTrigger != "" {
		g, err := compileGuard(cfg.StateTrigger, cfg.Name+" @state_trigger")
		if err != nil {
			t.log.Error("state_trigger ignored", "error", err)
			t.stateInvalid = true
		} else {
			t.stateGuard = g
			t.stateNames = g.names
			t.log.Debug("watching state variables", "names", g.names)
			env.Notifier.Subscribe(g.names, t.queue)
		}
	}

	if len(cfg.EventTrigger) > 0 {
		t.eventType = cfg.EventTrigger[0]
		env.Bus.Subscribe(t.eventType, t.queue)
		if len(cfg.EventTrigger) > 1 {
			g, err := compileGuard(cfg.EventTrigger[1], cfg.Name+" @event_trigger")
			if err != nil {
				t.log.Error("event_trigger guard ignored", "error", err)
				t.eventInvalid = true
			}
			t.eventGuard = g
		}
	}

	return t, nil
}

// Name returns the function name.
func (t *Trigger) Name() string { return t.cfg.Name }

// Module returns the owning module name.
func (t *Trigger) Module() string { return t.cfg.Module }

// Status returns the current lifecycle state.
func (t *Trigger) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// hasStimulus reports whether the trigger waits for anything at all.
func (t *Trigger) hasStimulus() bool {
	return len(t.cfg.TimeTrigger) > 0 || t.cfg.StateTrigger != "" || len(t.cfg.EventTrigger) > 0
}

// Start launches the watch loop. Starting a running or stopped trigger is
// a no-op.
func (t *Trigger) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusRegistered {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.status = StatusRunning
	go t.watch(ctx)
	t.log.Debug("trigger started")
}

// Stop cancels the watch loop, waits for it to exit and removes the
// trigger's subscriptions. It is safe to call more than once.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if t.status == StatusStopped {
		t.mu.Unlock()
		return
	}
	cancel, done := t.cancel, t.done
	t.status = StatusStopped
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if t.stateGuard != nil {
		t.env.Notifier.Unsubscribe(t.stateNames, t.queue)
	}
	if t.eventType != "" {
		t.env.Bus.Unsubscribe(t.eventType, t.queue)
	}
	t.log.Debug("trigger stopped")
}

// Next returns the next time-spec instant after now, if any.
func (t *Trigger) Next(now time.Time) (time.Time, bool) {
	if len(t.cfg.TimeTrigger) == 0 {
		return time.Time{}, false
	}
	return timespec.Next(t.cfg.TimeTrigger, now, t.env.Sun)
}

func (t *Trigger) watch(ctx context.Context) {
	defer close(t.done)

	var lastFire time.Time
	for {
		now := t.env.now()
		from := now
		if lastFire.After(from) {
			from = lastFire
		}

		var (
			timer  *time.Timer
			timerC <-chan time.Time
			next   time.Time
		)
		if n, ok := t.Next(from); ok {
			next = n
			timer = time.NewTimer(next.Sub(now))
			timerC = timer.C
		}

		if timerC == nil && !t.hasStimulus() {
			if t.active(ctx, nil) {
				t.dispatch(map[string]any{})
			} else {
				t.log.Debug("startup trigger not active")
			}
			return
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return

		case <-timerC:
			lastFire = next
			if t.active(ctx, nil) {
				t.log.Debug("time trigger fired", "at", next)
				t.dispatch(map[string]any{"trigger_type": "time"})
			} else {
				t.log.Debug("time trigger fired but not active", "at", next)
			}

		case <-t.queue.Ready():
			stopTimer(timer)
			msg, ok := t.queue.TryGet()
			if !ok {
				continue
			}
			t.handle(ctx, msg)
		}
	}
}

func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}

// handle evaluates the guards for one queue message and dispatches the
// action when they all pass.
func (t *Trigger) handle(ctx context.Context, msg notify.Message) {
	switch msg.Kind {
	case notify.KindState:
		if t.stateInvalid {
			return
		}
		if t.stateGuard != nil && !t.stateGuard.eval(ctx, t.env.Runtime, t.cfg.Name, t.cfg.Globals, msg.Vars) {
			return
		}
		if !t.active(ctx, msg.Vars) {
			t.log.Debug("state trigger matched but not active")
			return
		}
		t.dispatch(msg.Args)

	case notify.KindEvent:
		if t.eventInvalid {
			return
		}
		if t.eventGuard != nil && !t.eventGuard.eval(ctx, t.env.Runtime, t.cfg.Name, t.cfg.Globals, msg.Args) {
			return
		}
		if !t.active(ctx, msg.Args) {
			t.log.Debug("event trigger matched but not active")
			return
		}
		t.dispatch(msg.Args)

	default:
		t.log.Error("unexpected queue message", "kind", msg.Kind.String())
	}
}

// active checks the state_active and time_active guards.
func (t *Trigger) active(ctx context.Context, vars map[string]any) bool {
	if t.activeInvalid {
		return false
	}
	if t.activeGuard != nil && !t.activeGuard.eval(ctx, t.env.Runtime, t.cfg.Name, t.cfg.Globals, vars) {
		return false
	}
	if len(t.cfg.TimeActive) > 0 && !timespec.IsActive(t.cfg.TimeActive, t.env.now(), t.env.Sun) {
		return false
	}
	return true
}

// dispatch runs the action as a new runtime task with args as keyword
// arguments. It never blocks the watch loop.
func (t *Trigger) dispatch(args map[string]any) {
	kwargs := eval.NewDict()
	for _, k := range slices.Sorted(maps.Keys(args)) {
		kwargs.SetStr(k, eval.FromNative(args[k]))
	}

	rt := t.env.Runtime
	_, err := rt.Spawn(context.Background(), t.cfg.Name, func(ctx context.Context) {
		c := rt.NewContext(ctx, t.cfg.Name, t.cfg.Filename, t.cfg.Globals)
		c.Invoke(t.cfg.Action, nil, kwargs)
	})
	if err != nil {
		t.log.Error("dispatching action failed", "error", err)
	}
}

// Info is a snapshot of a trigger for listings.
type Info struct {
	Name         string     `json:"name"`
	Module       string     `json:"module"`
	Status       Status     `json:"status"`
	TimeTrigger  []string   `json:"time_trigger,omitempty"`
	StateTrigger string     `json:"state_trigger,omitempty"`
	EventTrigger []string   `json:"event_trigger,omitempty"`
	StateActive  string     `json:"state_active,omitempty"`
	TimeActive   []string   `json:"time_active,omitempty"`
	Watching     []string   `json:"watching,omitempty"`
	Next         *time.Time `json:"next,omitempty"`
}

// Info returns a snapshot of the trigger.
func (t *Trigger) Info() Info {
	info := Info{
		Name:         t.cfg.Name,
		Module:       t.cfg.Module,
		Status:       t.Status(),
		TimeTrigger:  t.cfg.TimeTrigger,
		StateTrigger: t.cfg.StateTrigger,
		EventTrigger: t.cfg.EventTrigger,
		StateActive:  t.cfg.StateActive,
		TimeActive:   t.cfg.TimeActive,
		Watching:     t.stateNames,
	}
	if next, ok := t.Next(t.env.now()); ok {
		info.Next = &next
	}
	return info
}
