package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/script/parser"
)

func (h *harness) scriptContext(ctx context.Context) *eval.Context {
	return h.env.Runtime.NewContext(ctx, "waiter", "test.py", h.globals)
}

// ─── WaitUntil ──────────────────────────────────────────────────────

func TestWaitUntilStateCheckNow(t *testing.T) {
	h := newHarness(t)
	_ = h.store.Set("sensor.door", "open", nil)

	got, err := h.env.WaitUntil(context.Background(), h.scriptContext(context.Background()), WaitOptions{
		StateTrigger:  "sensor.door == 'open'",
		StateCheckNow: true,
	})
	if err != nil {
		t.Fatalf("WaitUntil() error = %v", err)
	}
	if diff := cmp.Diff(map[string]any{"trigger_type": "state"}, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if h.env.Notifier.Subscribers("sensor.door") != 0 {
		t.Error("immediate match left a subscription behind")
	}
}

func TestWaitUntilStateChange(t *testing.T) {
	h := newHarness(t)
	_ = h.store.Set("sensor.door", "closed", nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = h.store.Set("sensor.door", "ajar", nil)
		_ = h.store.Set("sensor.door", "open", nil)
	}()

	got, err := h.env.WaitUntil(context.Background(), h.scriptContext(context.Background()), WaitOptions{
		StateTrigger:  "sensor.door == 'open'",
		StateCheckNow: true,
		Timeout:       2 * time.Second,
	})
	if err != nil {
		t.Fatalf("WaitUntil() error = %v", err)
	}
	want := map[string]any{"trigger_type": "state", "var_name": "sensor.door", "value": "open", "old_value": "ajar"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if h.env.Notifier.Subscribers("sensor.door") != 0 {
		t.Error("subscription left after return")
	}
}

func TestWaitUntilEvent(t *testing.T) {
	h := newHarness(t)
	go func() {
		time.Sleep(20 * time.Millisecond)
		h.env.Bus.Fire("alarm", map[string]any{"zone": 1})
		h.env.Bus.Fire("alarm", map[string]any{"zone": 2})
	}()

	got, err := h.env.WaitUntil(context.Background(), h.scriptContext(context.Background()), WaitOptions{
		EventTrigger: []string{"alarm", "zone == 2"},
		Timeout:      2 * time.Second,
	})
	if err != nil {
		t.Fatalf("WaitUntil() error = %v", err)
	}
	want := map[string]any{"trigger_type": "event", "event_type": "alarm", "zone": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if h.env.Bus.Subscribers("alarm") != 0 {
		t.Error("event subscription left after return")
	}
}

func TestWaitUntilTimeoutAndNone(t *testing.T) {
	h := newHarness(t)
	c := h.scriptContext(context.Background())

	tests := []struct {
		name string
		opts WaitOptions
		want string
	}{
		{"nothing to wait for", WaitOptions{}, "none"},
		{"bare timeout", WaitOptions{Timeout: 10 * time.Millisecond}, "timeout"},
		{"state with timeout", WaitOptions{StateTrigger: "sensor.never == 'x'", Timeout: 20 * time.Millisecond}, "timeout"},
		{"expired time spec", WaitOptions{TimeTrigger: []string{"once(2001/01/01 00:00)"}}, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.env.WaitUntil(context.Background(), c, tt.opts)
			if err != nil {
				t.Fatalf("WaitUntil() error = %v", err)
			}
			if got["trigger_type"] != tt.want {
				t.Errorf("trigger_type = %v, want %s", got["trigger_type"], tt.want)
			}
		})
	}
	if h.env.Notifier.Subscribers("sensor.never") != 0 {
		t.Error("subscription left after timeout")
	}
}

func TestWaitUntilCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.env.WaitUntil(ctx, h.scriptContext(ctx), WaitOptions{EventTrigger: []string{"never"}})
	if err == nil || !eval.IsCancel(err) {
		t.Errorf("WaitUntil() error = %v, want cancellation", err)
	}
	if h.env.Bus.Subscribers("never") != 0 {
		t.Error("subscription left after cancellation")
	}
}

func TestWaitUntilFromScript(t *testing.T) {
	h := newHarness(t)
	mod, err := parser.Parse(`
res = task.wait_until(event_trigger=['go', 'n > 1'], timeout=2)
test.record([res['trigger_type'], res['n']])
`, "test.py")
	if err != nil {
		t.Fatal(err)
	}

	task, err := h.env.Runtime.Spawn(context.Background(), "waiter", func(ctx context.Context) {
		h.scriptContext(ctx).Eval(mod, nil)
	})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.env.Bus.Subscribers("go") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("script never subscribed")
		}
		time.Sleep(2 * time.Millisecond)
	}
	h.env.Bus.Fire("go", map[string]any{"n": 1})
	h.env.Bus.Fire("go", map[string]any{"n": 5})

	h.expectCall(t, "['event', 5]")
	<-task.Done()
}
