package runtime

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/nerrad567/gray-logic-script/internal/event"
	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/state"
)

// Config holds the collaborators a Runtime works with.
type Config struct {
	// Store is the entity state store. Required.
	Store *state.Store
	// Bus receives events fired by scripts. Required.
	Bus *event.Bus
	// Logger is the parent of every per-function script logger. Nil
	// discards output.
	Logger *slog.Logger
}

// Runtime is the host side of script execution.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Runtime struct {
	store *state.Store
	bus   *event.Bus
	log   *slog.Logger

	mu       sync.RWMutex
	funcs    map[string]eval.Value
	services map[string]*Service

	taskMu sync.Mutex
	tasks  map[string]*Task
	unique map[string]*Task
	closed bool
	wg     sync.WaitGroup

	logMu   sync.Mutex
	loggers map[string]*slog.Logger
}

// New creates a runtime with the built-in host functions registered.
func New(cfg Config) *Runtime {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	r := &Runtime{
		store:    cfg.Store,
		bus:      cfg.Bus,
		log:      log,
		funcs:    make(map[string]eval.Value),
		services: make(map[string]*Service),
		tasks:    make(map[string]*Task),
		unique:   make(map[string]*Task),
		loggers:  make(map[string]*slog.Logger),
	}
	r.registerBuiltins()
	return r
}

// Store returns the state store scripts read and write.
func (r *Runtime) Store() *state.Store { return r.store }

// Bus returns the event bus scripts fire events on.
func (r *Runtime) Bus() *event.Bus { return r.bus }

// Register adds or replaces a host function under a dotted name.
func (r *Runtime) Register(name string, fn eval.BuiltinFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = &eval.Builtin{Name: name, Fn: fn}
}

// Functions returns the sorted names of all registered host functions.
func (r *Runtime) Functions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.funcs))
}

// Lookup implements eval.Host. Host functions win over services.
func (r *Runtime) Lookup(name string) (eval.Value, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	_, isService := r.services[name]
	r.mu.RUnlock()

	if ok {
		return fn, true
	}
	if isService {
		return r.serviceCaller(name), true
	}
	return nil, false
}

// StateGet implements eval.Host.
func (r *Runtime) StateGet(name string) (eval.Value, bool) {
	v, ok := r.store.Get(name)
	if !ok {
		return nil, false
	}
	return eval.FromNative(v), true
}

// StateSet implements eval.Host. The value is stored in its str() form.
func (r *Runtime) StateSet(name string, value eval.Value, attrs *eval.Dict) error {
	var native map[string]any
	if attrs != nil {
		native, _ = eval.ToNative(attrs).(map[string]any)
	}
	if err := r.store.Set(name, eval.Str(value), native); err != nil {
		if errors.Is(err, state.ErrInvalidName) {
			return eval.NewError(eval.NameError, "invalid state variable name '%s'", name)
		}
		return err
	}
	return nil
}

// Logger returns the cached logger for a script function or module name.
func (r *Runtime) Logger(name string) *slog.Logger {
	r.logMu.Lock()
	defer r.logMu.Unlock()

	l, ok := r.loggers[name]
	if !ok {
		l = r.log.With("func", name)
		r.loggers[name] = l
	}
	return l
}

// NewContext creates an execution context bound to this runtime, logging
// through the logger for name.
func (r *Runtime) NewContext(ctx context.Context, name, filename string, globals *eval.SymTable) *eval.Context {
	c := eval.NewContext(ctx, name, globals, r)
	c.Filename = filename
	c.SetLogger(r.Logger(name))
	return c
}

// Close cancels every running task and waits for them to finish. It is
// safe to call more than once.
func (r *Runtime) Close() {
	r.taskMu.Lock()
	r.closed = true
	for _, t := range r.tasks {
		t.cancel()
	}
	r.taskMu.Unlock()

	r.wg.Wait()
}
