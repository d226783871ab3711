package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-script/internal/event"
	"github.com/nerrad567/gray-logic-script/internal/runtime"
	"github.com/nerrad567/gray-logic-script/internal/state"
	"github.com/nerrad567/gray-logic-script/internal/trigger"
)

// ─── Helpers ────────────────────────────────────────────────────────

type harness struct {
	loader *Loader
	store  *state.Store
	rt     *runtime.Runtime
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := state.NewStore()
	notifier := state.NewNotifier()
	store.AddListener(notifier)
	bus := event.NewBus()
	rt := runtime.New(runtime.Config{Store: store, Bus: bus})

	env := &trigger.Env{Runtime: rt, Notifier: notifier, Bus: bus}
	env.RegisterHostFunctions()

	dir := t.TempDir()
	l := New(Config{Folder: dir, Env: env})
	t.Cleanup(func() {
		l.Stop()
		rt.Close()
	})
	return &harness{loader: l, store: store, rt: rt, dir: dir}
}

func (h *harness) write(t *testing.T, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(h.dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func (h *harness) add(t *testing.T, name, src string) *Module {
	t.Helper()
	m, err := h.loader.AddModule(context.Background(), name, name+".py", src)
	if err != nil {
		t.Fatalf("AddModule(%s) error = %v", name, err)
	}
	return m
}

func (h *harness) waitState(t *testing.T, name, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		v, _ := h.store.Get(name)
		if v == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s = %v, want %q", name, v, want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// ─── Decorators ─────────────────────────────────────────────────────

func TestServiceDecorator(t *testing.T) {
	h := newHarness(t)
	h.add(t, "lights", `
@service
def set_level(level=0):
    """Set the test level."""
    test.level = level * 2
`)

	if !h.rt.HasService("script", "set_level") {
		t.Fatal("script.set_level not registered")
	}
	if err := h.rt.CallService(context.Background(), "script", "set_level", map[string]any{"level": 21}); err != nil {
		t.Fatalf("CallService() error = %v", err)
	}
	h.waitState(t, "test.level", "42")

	fns := h.loader.Functions()
	if len(fns) != 1 || !fns[0].Service || fns[0].Doc != "Set the test level." {
		t.Errorf("Functions() = %+v", fns)
	}
}

func TestServiceDecoratorWithArgumentsIgnored(t *testing.T) {
	h := newHarness(t)
	h.add(t, "bad", `
@service("nope")
def f():
    pass
`)
	if h.rt.HasService("script", "f") {
		t.Error("service registered despite decorator arguments")
	}
}

func TestReloadNameRejected(t *testing.T) {
	h := newHarness(t)
	h.add(t, "bad", `
@service
def reload():
    pass
`)
	if h.rt.HasService("script", "reload") {
		t.Error("script.reload registered from a script")
	}
}

func TestStateTrigger(t *testing.T) {
	h := newHarness(t)
	h.add(t, "door", `
@state_trigger("sensor.door == 'open'")
def opened(value=None, **kwargs):
    test.seen = value
`)
	h.loader.Start()

	if err := h.store.Set("sensor.door", "open", nil); err != nil {
		t.Fatal(err)
	}
	h.waitState(t, "test.seen", "open")

	got := h.loader.Triggers()
	if len(got) != 1 || got[0].Name != "opened" || got[0].Status != trigger.StatusRunning {
		t.Errorf("Triggers() = %+v", got)
	}
	if diff := cmp.Diff([]string{"sensor.door"}, got[0].Watching); diff != "" {
		t.Errorf("Watching mismatch (-want +got):\n%s", diff)
	}
}

func TestStartupTrigger(t *testing.T) {
	h := newHarness(t)
	h.add(t, "boot", `
@time_trigger
def boot(**kwargs):
    test.booted = "yes"
`)
	h.loader.Start()
	h.waitState(t, "test.booted", "yes")
}

func TestDecoratorArity(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		trigger bool
	}{
		{
			name: "state_trigger with two arguments",
			src: `
@state_trigger("a.b == '1'", "c.d == '2'")
def f():
    pass
`,
		},
		{
			name: "event_trigger with three arguments",
			src: `
@event_trigger("x", "True", "False")
def f():
    pass
`,
		},
		{
			name: "event_trigger with guard",
			src: `
@event_trigger("x", "True")
def f():
    pass
`,
			trigger: true,
		},
		{
			name: "non-string argument",
			src: `
@state_trigger(3)
def f():
    pass
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			m := h.add(t, "m", tt.src)
			if got := len(m.Triggers) == 1; got != tt.trigger {
				t.Errorf("trigger created = %v, want %v", got, tt.trigger)
			}
			if len(m.Functions) != 1 {
				t.Errorf("Functions = %+v, want one entry", m.Functions)
			}
		})
	}
}

func TestUnknownDecoratorIgnored(t *testing.T) {
	h := newHarness(t)
	m := h.add(t, "m", `
@frobnicate
def f():
    pass
`)
	if len(m.Triggers) != 0 || len(m.Services) != 0 {
		t.Errorf("module = %+v, want no triggers or services", m)
	}
}

// ─── Modules ────────────────────────────────────────────────────────

func TestAddModuleSyntaxError(t *testing.T) {
	h := newHarness(t)
	_, err := h.loader.AddModule(context.Background(), "broken", "broken.py", "def f(:\n")
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("AddModule() error = %v, want ErrSyntax", err)
	}
	if len(h.loader.Modules()) != 0 {
		t.Error("broken module was kept")
	}
}

func TestAddModuleBodyError(t *testing.T) {
	h := newHarness(t)
	m := h.add(t, "partial", `
@service
def early():
    pass

1 / 0

@service
def late():
    pass
`)
	if !errors.Is(m.Err, ErrModuleFailed) {
		t.Errorf("Err = %v, want ErrModuleFailed", m.Err)
	}
	if !h.rt.HasService("script", "early") || h.rt.HasService("script", "late") {
		t.Error("want only functions defined before the failure")
	}
}

func TestAddModuleReplaces(t *testing.T) {
	h := newHarness(t)
	h.add(t, "m", "@service\ndef one():\n    pass\n")
	h.add(t, "m", "@service\ndef two():\n    pass\n")

	if h.rt.HasService("script", "one") {
		t.Error("script.one survived replacement")
	}
	if !h.rt.HasService("script", "two") {
		t.Error("script.two not registered")
	}
}

func TestLoadFolder(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.py", "@service\ndef alpha():\n    pass\n")
	h.write(t, "b.py", "def (\n")
	h.write(t, "notes.txt", "ignored")

	if err := h.loader.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var names []string
	for _, m := range h.loader.Modules() {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"a"}, names); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFolder(t *testing.T) {
	h := newHarness(t)
	l := New(Config{Folder: filepath.Join(h.dir, "missing"), Env: h.loader.env})
	if err := l.Load(context.Background()); !errors.Is(err, ErrFolder) {
		t.Errorf("Load() error = %v, want ErrFolder", err)
	}
}

func TestReload(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.py", "@service\ndef alpha():\n    pass\n")
	if err := h.loader.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := h.loader.RegisterReloadService(); err != nil {
		t.Fatal(err)
	}

	h.write(t, "a.py", "@service\ndef beta():\n    pass\n")
	if err := h.rt.CallService(context.Background(), "script", "reload", nil); err != nil {
		t.Fatalf("script.reload error = %v", err)
	}

	if h.rt.HasService("script", "alpha") {
		t.Error("script.alpha survived reload")
	}
	if !h.rt.HasService("script", "beta") {
		t.Error("script.beta not registered after reload")
	}
	if !h.rt.HasService("script", "reload") {
		t.Error("script.reload lost on reload")
	}
}

func TestWatcherReloads(t *testing.T) {
	h := newHarness(t)
	if err := h.loader.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWatcher(h.loader, 20*time.Millisecond).Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(3 * time.Second)
	for !h.rt.HasService("script", "watched") {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not reload")
		}
		// Rewrite until the watcher is registered and picks it up.
		h.write(t, "w.py", "@service\ndef watched():\n    pass\n")
		time.Sleep(50 * time.Millisecond)
	}
}

// ─── Service descriptions ───────────────────────────────────────────

func TestDescribeService(t *testing.T) {
	h := newHarness(t)
	h.add(t, "docs", `
@service
def plain(entity, level):
    """Dim a light."""
    pass

@service
def described():
    """yaml
description: Turn things on.
fields:
  target:
    description: what to turn on
"""
    pass

@service
def broken():
    """yaml
description: [unclosed
"""
    pass
`)

	got := map[string]any{}
	for _, s := range h.rt.Services() {
		got[s.Name] = s.Description
	}
	want := map[string]any{
		"plain": map[string]any{
			"description": "Dim a light.",
			"fields": map[string]any{
				"entity": map[string]any{"description": "argument entity"},
				"level":  map[string]any{"description": "argument level"},
			},
		},
		"described": map[string]any{
			"description": "Turn things on.",
			"fields": map[string]any{
				"target": map[string]any{"description": "what to turn on"},
			},
		},
		"broken": map[string]any{"description": "script function broken()"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("descriptions mismatch (-want +got):\n%s", diff)
	}
}
