package loader

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-script/internal/runtime"
	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/script/parser"
	"github.com/nerrad567/gray-logic-script/internal/trigger"
)

// ServiceDomain is the domain of services registered with @service.
const ServiceDomain = "script"

// reloadName is the reserved service that reloads every module.
const reloadName = "reload"

var triggerDecorators = []string{"time_trigger", "state_trigger", "event_trigger", "state_active", "time_active"}

// decoratorArity lists the allowed argument counts of decorators that take
// a fixed number of arguments.
var decoratorArity = map[string][]int{
	"state_trigger": {1},
	"state_active":  {1},
	"event_trigger": {1, 2},
}

// Module is one compiled script file.
type Module struct {
	Name      string
	Path      string
	Globals   *eval.SymTable
	Functions []FunctionInfo
	Triggers  []*trigger.Trigger
	Services  []string

	// Err is the error raised by the module body, if any.
	Err error
}

// FunctionInfo describes one function defined by a module.
type FunctionInfo struct {
	Name       string   `json:"name"`
	Module     string   `json:"module"`
	Args       []string `json:"args"`
	Doc        string   `json:"doc,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	Service    bool     `json:"service"`
	Trigger    bool     `json:"trigger"`
}

// Config configures a Loader.
type Config struct {
	// Folder holds the *.py scripts.
	Folder string
	// Env supplies the runtime and notification plumbing for triggers.
	Env *trigger.Env
	// Logger receives loader messages. Nil discards them.
	Logger *slog.Logger
}

// Loader compiles and owns every module in the script folder.
//
// Thread Safety:
//   - All methods are safe for concurrent use; Load, Reload and Stop are
//     serialised.
type Loader struct {
	folder string
	env    *trigger.Env
	rt     *runtime.Runtime
	log    *slog.Logger

	lifecycle sync.Mutex
	mu        sync.RWMutex
	modules   map[string]*Module
}

// New creates a loader for cfg.Folder.
func New(cfg Config) *Loader {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		folder:  cfg.Folder,
		env:     cfg.Env,
		rt:      cfg.Env.Runtime,
		log:     log,
		modules: make(map[string]*Module),
	}
}

// Folder returns the script folder.
func (l *Loader) Folder() string { return l.folder }

// Load compiles every *.py file in the folder. Triggers are created but
// not started. Problems in individual modules are logged and do not stop
// the others.
func (l *Loader) Load(ctx context.Context) error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	return l.load(ctx)
}

func (l *Loader) load(ctx context.Context) error {
	entries, err := os.ReadDir(l.folder)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFolder, err)
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".py" {
			continue
		}
		path := filepath.Join(l.folder, e.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			l.log.Error("reading script failed", "path", path, "error", err)
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".py")
		if _, err := l.AddModule(ctx, name, path, string(src)); err == nil {
			count++
		}
	}
	l.log.Info("scripts loaded", "folder", l.folder, "modules", count)
	return nil
}

// AddModule compiles src as module name, registering its services and
// creating its triggers. A module with the same name is replaced.
// Syntax errors are returned; errors raised by the module body are
// logged, recorded on Module.Err, and the functions defined before the
// failure are still registered.
func (l *Loader) AddModule(ctx context.Context, name, path, src string) (*Module, error) {
	tree, err := parser.Parse(src, path)
	if err != nil {
		l.log.Error("script has a syntax error", "module", name, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	l.removeModule(name)

	m := &Module{Name: name, Path: path, Globals: eval.NewSymTable()}
	c := l.rt.NewContext(ctx, name, path, m.Globals)
	c.Eval(tree, nil)
	if e := c.Err(); e != nil {
		m.Err = fmt.Errorf("%w: %w", ErrModuleFailed, e)
	}

	for _, fname := range m.Globals.Names() {
		v, _ := m.Globals.Get(fname)
		fn, ok := v.(*eval.Function)
		if !ok || fn.Name != fname {
			continue
		}
		l.bindFunction(m, fn)
	}

	l.mu.Lock()
	l.modules[name] = m
	l.mu.Unlock()
	return m, nil
}

// bindFunction turns fn's decorators into a trigger and services.
func (l *Loader) bindFunction(m *Module, fn *eval.Function) {
	log := l.log.With("module", m.Name, "func", fn.Name)
	info := FunctionInfo{Name: fn.Name, Module: m.Name, Args: fn.PositionalArgs(), Doc: fn.Doc}
	for _, d := range fn.Decorators {
		info.Decorators = append(info.Decorators, d.Name)
	}

	if fn.Name == reloadName {
		log.Error("function conflicts with the reload service; ignoring (please rename)", "path", m.Path)
		m.Functions = append(m.Functions, info)
		return
	}

	trigArgs := make(map[string][]string)
	for _, d := range fn.Decorators {
		switch {
		case slices.Contains(triggerDecorators, d.Name):
			args, err := stringArgs(d.Args)
			if err != nil {
				log.Error("decorator arguments must be strings; ignored", "decorator", d.Name, "error", err)
				continue
			}
			trigArgs[d.Name] = append(trigArgs[d.Name], args...)

		case d.Name == "service":
			if d.Args != nil {
				log.Error("decorator @service takes no arguments; ignored", "path", m.Path)
				continue
			}
			if err := l.registerService(m, fn, log); err != nil {
				log.Error("registering service failed", "error", err)
				continue
			}
			info.Service = true

		default:
			log.Warn("unknown decorator", "decorator", d.Name, "path", m.Path)
		}
	}

	for _, dec := range slices.Sorted(maps.Keys(decoratorArity)) {
		args, ok := trigArgs[dec]
		if !ok || len(args) == 0 {
			continue
		}
		if allowed := decoratorArity[dec]; !slices.Contains(allowed, len(args)) {
			log.Error("decorator got the wrong number of arguments; ignored",
				"decorator", dec, "got", len(args), "expected", allowed, "path", m.Path)
			delete(trigArgs, dec)
		}
	}

	if len(trigArgs) == 0 {
		m.Functions = append(m.Functions, info)
		return
	}

	cfg := trigger.Config{
		Name:         fn.Name,
		Module:       m.Name,
		Filename:     m.Path,
		TimeTrigger:  trigArgs["time_trigger"],
		EventTrigger: trigArgs["event_trigger"],
		TimeActive:   trigArgs["time_active"],
		Action:       fn,
		Globals:      m.Globals,
	}
	if a := trigArgs["state_trigger"]; len(a) > 0 {
		cfg.StateTrigger = a[0]
	}
	if a := trigArgs["state_active"]; len(a) > 0 {
		cfg.StateActive = a[0]
	}

	t, err := trigger.New(cfg, l.env)
	if err != nil {
		log.Error("creating trigger failed", "error", err)
	} else {
		m.Triggers = append(m.Triggers, t)
		info.Trigger = true
	}
	m.Functions = append(m.Functions, info)
}

func stringArgs(args []eval.Value) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		s, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("got %s", eval.TypeName(a))
		}
		out = append(out, s)
	}
	return out, nil
}

// registerService exposes fn as script.<name>. Each call runs fn as a new
// task in a fresh context sharing the module globals, with the call data
// as keyword arguments.
func (l *Loader) registerService(m *Module, fn *eval.Function, log *slog.Logger) error {
	desc, err := describeService(fn)
	if err != nil {
		log.Error("unable to decode yaml doc string", "error", err)
		desc = map[string]any{"description": fmt.Sprintf("script function %s()", fn.Name)}
	}

	err = l.rt.RegisterService(runtime.Service{
		Domain:      ServiceDomain,
		Name:        fn.Name,
		Description: desc,
		Owner:       m.Name,
		Handler: func(_ context.Context, data map[string]any) error {
			kwargs := eval.NewDict()
			for _, k := range slices.Sorted(maps.Keys(data)) {
				kwargs.SetStr(k, eval.FromNative(data[k]))
			}
			_, err := l.rt.Spawn(context.Background(), fn.Name, func(ctx context.Context) {
				c := l.rt.NewContext(ctx, fn.Name, m.Path, m.Globals)
				c.Invoke(fn, nil, kwargs)
			})
			return err
		},
	})
	if err != nil {
		return err
	}
	m.Services = append(m.Services, fn.Name)
	log.Debug("service registered", "service", ServiceDomain+"."+fn.Name)
	return nil
}

// removeModule stops the triggers and unregisters the services of a
// previously loaded module.
func (l *Loader) removeModule(name string) {
	l.mu.Lock()
	m, ok := l.modules[name]
	delete(l.modules, name)
	l.mu.Unlock()

	if ok {
		teardown(l.rt, m)
	}
}

func teardown(rt *runtime.Runtime, m *Module) {
	for _, t := range m.Triggers {
		t.Stop()
	}
	for _, s := range m.Services {
		rt.UnregisterService(ServiceDomain, s)
	}
}

// Start starts every trigger that has not been started.
func (l *Loader) Start() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, m := range l.modules {
		for _, t := range m.Triggers {
			t.Start()
			n++
		}
	}
	l.log.Info("triggers started", "count", n)
}

// Stop stops every trigger and unregisters every service. Modules are
// forgotten.
func (l *Loader) Stop() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	l.stop()
}

func (l *Loader) stop() {
	l.mu.Lock()
	modules := l.modules
	l.modules = make(map[string]*Module)
	l.mu.Unlock()

	for _, m := range modules {
		teardown(l.rt, m)
	}
}

// Reload stops everything, recompiles the folder and starts the new
// triggers.
func (l *Loader) Reload(ctx context.Context) error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	l.log.Info("reloading scripts")
	l.stop()
	if err := l.load(ctx); err != nil {
		return err
	}
	l.Start()
	return nil
}

// RegisterReloadService exposes Reload as the script.reload service.
func (l *Loader) RegisterReloadService() error {
	return l.rt.RegisterService(runtime.Service{
		Domain:      ServiceDomain,
		Name:        reloadName,
		Description: map[string]any{"description": "Reload all scripts."},
		Handler: func(ctx context.Context, _ map[string]any) error {
			return l.Reload(ctx)
		},
	})
}

// Modules returns the loaded modules sorted by name.
func (l *Loader) Modules() []*Module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := slices.Collect(maps.Values(l.modules))
	slices.SortFunc(out, func(a, b *Module) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Functions lists every function of every module, by module then name.
func (l *Loader) Functions() []FunctionInfo {
	var out []FunctionInfo
	for _, m := range l.Modules() {
		out = append(out, m.Functions...)
	}
	slices.SortStableFunc(out, func(a, b FunctionInfo) int {
		return cmp.Or(cmp.Compare(a.Module, b.Module), cmp.Compare(a.Name, b.Name))
	})
	return out
}

// Triggers lists every trigger, by module then name.
func (l *Loader) Triggers() []trigger.Info {
	var out []trigger.Info
	for _, m := range l.Modules() {
		for _, t := range m.Triggers {
			out = append(out, t.Info())
		}
	}
	slices.SortStableFunc(out, func(a, b trigger.Info) int {
		return cmp.Or(cmp.Compare(a.Module, b.Module), cmp.Compare(a.Name, b.Name))
	})
	return out
}
