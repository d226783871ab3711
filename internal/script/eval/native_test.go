package eval

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestToNative(t *testing.T) {
	d := NewDict()
	d.SetStr("name", "lamp")
	d.SetStr("levels", NewList(int64(1), 2.5, Tuple{true, nil}))
	d.SetStr("when", DateTime{T: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)})
	d.SetStr("for", TimeDelta{D: 90 * time.Second})

	want := map[string]any{
		"name":   "lamp",
		"levels": []any{int64(1), 2.5, []any{true, nil}},
		"when":   "2026-03-01T08:00:00Z",
		"for":    90.0,
	}
	if diff := cmp.Diff(want, ToNative(d)); diff != "" {
		t.Errorf("ToNative mismatch (-want +got):\n%s", diff)
	}
}

func TestFromNative(t *testing.T) {
	var decoded any
	if err := json.Unmarshal([]byte(`{"b": [1, 2.5, "x"], "a": {"on": true}, "n": null}`), &decoded); err != nil {
		t.Fatal(err)
	}
	got := Repr(FromNative(decoded))
	want := "{'a': {'on': True}, 'b': [1, 2.5, 'x'], 'n': None}"
	if got != want {
		t.Errorf("FromNative = %s, want %s", got, want)
	}
}
