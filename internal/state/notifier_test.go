package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-script/internal/notify"
)

// ─── Subscribe / Update ─────────────────────────────────────────────

func TestNotifierDeliversRegisteredVars(t *testing.T) {
	n := NewNotifier()
	q := notify.NewQueue()
	n.Subscribe([]string{"sensor.a", "sensor.a.old", "sensor.b"}, q)

	n.Update(map[string]any{"sensor.b": "5"}, map[string]any{"var_name": "sensor.b"})
	n.Update(
		map[string]any{"sensor.a": "on", "sensor.a.old": "off"},
		map[string]any{"var_name": "sensor.a"},
	)

	first, ok := q.TryGet()
	if !ok {
		t.Fatal("no first message")
	}
	if diff := cmp.Diff(map[string]any{"sensor.b": "5"}, first.Vars); diff != "" {
		t.Errorf("first vars mismatch (-want +got):\n%s", diff)
	}

	second, ok := q.TryGet()
	if !ok {
		t.Fatal("no second message")
	}
	want := map[string]any{"sensor.a": "on", "sensor.a.old": "off", "sensor.b": "5"}
	if diff := cmp.Diff(want, second.Vars); diff != "" {
		t.Errorf("second vars mismatch (-want +got):\n%s", diff)
	}
	if second.Kind != notify.KindState {
		t.Errorf("Kind = %v, want state", second.Kind)
	}
}

func TestNotifierIgnoresUnwatchedEntities(t *testing.T) {
	n := NewNotifier()
	q := notify.NewQueue()
	n.Subscribe([]string{"sensor.a"}, q)

	n.Update(map[string]any{"sensor.z": "1"}, nil)

	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0", q.Len())
	}
}

func TestNotifierSharedKeyFansOut(t *testing.T) {
	n := NewNotifier()
	q1, q2 := notify.NewQueue(), notify.NewQueue()
	n.Subscribe([]string{"light.x"}, q1)
	n.Subscribe([]string{"light.x.brightness"}, q2)

	n.Update(map[string]any{"light.x": "on", "light.x.brightness": 10}, nil)

	m1, _ := q1.TryGet()
	m2, _ := q2.TryGet()
	if diff := cmp.Diff(map[string]any{"light.x": "on"}, m1.Vars); diff != "" {
		t.Errorf("q1 vars mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"light.x.brightness": 10}, m2.Vars); diff != "" {
		t.Errorf("q2 vars mismatch (-want +got):\n%s", diff)
	}
}

// ─── Unsubscribe ────────────────────────────────────────────────────

func TestNotifierUnsubscribe(t *testing.T) {
	n := NewNotifier()
	q1, q2 := notify.NewQueue(), notify.NewQueue()
	n.Subscribe([]string{"sensor.a", "sensor.a.old"}, q1)
	n.Subscribe([]string{"sensor.a"}, q2)

	n.Unsubscribe([]string{"sensor.a"}, q1)
	if got := n.Subscribers("sensor.a"); got != 2 {
		t.Errorf("after partial unsubscribe Subscribers = %d, want 2", got)
	}

	n.Unsubscribe([]string{"sensor.a.old"}, q1)
	n.Unsubscribe([]string{"sensor.a.old"}, q1)
	if got := n.Subscribers("sensor.a"); got != 1 {
		t.Errorf("Subscribers = %d, want 1", got)
	}

	n.Unsubscribe([]string{"sensor.a"}, q2)
	if got := n.Subscribers("sensor.a"); got != 0 {
		t.Errorf("Subscribers = %d, want 0", got)
	}

	n.Update(map[string]any{"sensor.a": "1"}, nil)
	if q1.Len()+q2.Len() != 0 {
		t.Error("unsubscribed queues received a message")
	}
}

// ─── Store integration ──────────────────────────────────────────────

func TestNotifierFromStore(t *testing.T) {
	s, _ := newTestStore(t)
	n := NewNotifier()
	s.AddListener(n)

	q := notify.NewQueue()
	n.Subscribe([]string{"binary_sensor.door", "binary_sensor.door.old", "binary_sensor.door.battery"}, q)

	_ = s.Set("binary_sensor.door", "on", map[string]any{"battery": 90})
	_ = s.Set("binary_sensor.door", "off", nil)

	_, _ = q.TryGet()
	m, ok := q.TryGet()
	if !ok {
		t.Fatal("expected two messages")
	}

	wantVars := map[string]any{
		"binary_sensor.door":         "off",
		"binary_sensor.door.old":     "on",
		"binary_sensor.door.battery": 90,
	}
	if diff := cmp.Diff(wantVars, m.Vars); diff != "" {
		t.Errorf("vars mismatch (-want +got):\n%s", diff)
	}
	wantArgs := map[string]any{
		"trigger_type": "state",
		"var_name":     "binary_sensor.door",
		"value":        "off",
		"old_value":    "on",
	}
	if diff := cmp.Diff(wantArgs, m.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}
