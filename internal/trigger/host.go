package trigger

import (
	"time"

	"github.com/nerrad567/gray-logic-script/internal/script/eval"
)

// RegisterHostFunctions installs task.wait_until on the runtime.
func (e *Env) RegisterHostFunctions() {
	e.Runtime.Register("task.wait_until", e.waitUntilFunc)
}

func (e *Env) waitUntilFunc(c *eval.Context, args []eval.Value, kwargs *eval.Dict) (eval.Value, error) {
	if err := eval.CheckArity("task.wait_until", args, 0, 0); err != nil {
		return nil, err
	}
	opts := WaitOptions{StateCheckNow: true}

	if v, ok := kwargs.GetStr("state_trigger"); ok && v != nil {
		s, err := eval.StringArg("task.wait_until", v)
		if err != nil {
			return nil, err
		}
		opts.StateTrigger = s
	}
	if v, ok := kwargs.GetStr("state_check_now"); ok {
		opts.StateCheckNow = eval.Truthy(v)
	}
	if v, ok := kwargs.GetStr("time_trigger"); ok && v != nil {
		specs, err := stringList("time_trigger", v)
		if err != nil {
			return nil, err
		}
		opts.TimeTrigger = specs
	}
	if v, ok := kwargs.GetStr("event_trigger"); ok && v != nil {
		ev, err := stringList("event_trigger", v)
		if err != nil {
			return nil, err
		}
		if len(ev) == 0 || len(ev) > 2 {
			return nil, eval.NewError(eval.TypeError, "task.wait_until() event_trigger takes 1 or 2 strings, got %d", len(ev))
		}
		opts.EventTrigger = ev
	}
	if v, ok := kwargs.GetStr("timeout"); ok && v != nil {
		secs, err := eval.FloatArg("task.wait_until", v)
		if err != nil {
			return nil, err
		}
		opts.Timeout = time.Duration(secs * float64(time.Second))
	}

	res, err := e.WaitUntil(c.Context(), c, opts)
	if err != nil {
		return nil, err
	}
	return eval.FromNative(res), nil
}

// stringList accepts a str or a list/tuple of str.
func stringList(field string, v eval.Value) ([]string, error) {
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	items, err := eval.ToSlice(v)
	if err != nil {
		return nil, eval.NewError(eval.TypeError, "task.wait_until() %s must be str or list of str", field)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, eval.NewError(eval.TypeError, "task.wait_until() %s must be str or list of str", field)
		}
		out = append(out, s)
	}
	return out, nil
}
