package runtime

import (
	"time"

	"github.com/nerrad567/gray-logic-script/internal/script/eval"
)

// registerBuiltins installs the host functions every script can call.
// task.wait_until is registered by the trigger package.
func (r *Runtime) registerBuiltins() {
	r.Register("event.fire", r.eventFire)
	r.Register("task.sleep", taskSleep)
	r.Register("task.unique", r.taskUnique)
	r.Register("service.call", r.serviceCall)
	r.Register("service.has_service", r.serviceHasService)
	r.Register("state.get", r.stateGet)
	r.Register("state.set", r.stateSet)
	r.Register("log.debug", r.logAt("debug"))
	r.Register("log.info", r.logAt("info"))
	r.Register("log.warning", r.logAt("warning"))
	r.Register("log.error", r.logAt("error"))
}

func (r *Runtime) eventFire(_ *eval.Context, args []eval.Value, kwargs *eval.Dict) (eval.Value, error) {
	if err := eval.CheckArity("event.fire", args, 1, 1); err != nil {
		return nil, err
	}
	eventType, err := eval.StringArg("event.fire", args[0])
	if err != nil {
		return nil, err
	}
	data, _ := eval.ToNative(kwargs).(map[string]any)
	r.bus.Fire(eventType, data)
	return nil, nil
}

func taskSleep(c *eval.Context, args []eval.Value, _ *eval.Dict) (eval.Value, error) {
	if err := eval.CheckArity("task.sleep", args, 1, 1); err != nil {
		return nil, err
	}
	secs, err := eval.FloatArg("task.sleep", args[0])
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil, nil
	case <-c.Context().Done():
		return nil, c.Context().Err()
	}
}

func (r *Runtime) taskUnique(c *eval.Context, args []eval.Value, kwargs *eval.Dict) (eval.Value, error) {
	if err := eval.CheckArity("task.unique", args, 1, 2); err != nil {
		return nil, err
	}
	name, err := eval.StringArg("task.unique", args[0])
	if err != nil {
		return nil, err
	}
	killMe := eval.Truthy(eval.Arg(args, 1, kwargs, "kill_me", false))

	err = r.Unique(c.Context(), name, killMe)
	if err != nil && !eval.IsCancel(err) {
		return nil, eval.NewError(eval.RuntimeError, "%v", err)
	}
	return nil, err
}

func (r *Runtime) serviceCall(c *eval.Context, args []eval.Value, kwargs *eval.Dict) (eval.Value, error) {
	domain, name, err := serviceArgs("service.call", args)
	if err != nil {
		return nil, err
	}
	return nil, r.callFromScript(c, domain, name, kwargs)
}

func (r *Runtime) serviceHasService(_ *eval.Context, args []eval.Value, _ *eval.Dict) (eval.Value, error) {
	domain, name, err := serviceArgs("service.has_service", args)
	if err != nil {
		return nil, err
	}
	return r.HasService(domain, name), nil
}

func serviceArgs(fn string, args []eval.Value) (string, string, error) {
	if err := eval.CheckArity(fn, args, 2, 2); err != nil {
		return "", "", err
	}
	domain, err := eval.StringArg(fn, args[0])
	if err != nil {
		return "", "", err
	}
	name, err := eval.StringArg(fn, args[1])
	if err != nil {
		return "", "", err
	}
	return domain, name, nil
}

func (r *Runtime) stateGet(_ *eval.Context, args []eval.Value, _ *eval.Dict) (eval.Value, error) {
	if err := eval.CheckArity("state.get", args, 1, 1); err != nil {
		return nil, err
	}
	name, err := eval.StringArg("state.get", args[0])
	if err != nil {
		return nil, err
	}
	v, ok := r.StateGet(name)
	if !ok {
		return nil, eval.NewError(eval.NameError, "name '%s' is not defined", name)
	}
	return v, nil
}

func (r *Runtime) stateSet(_ *eval.Context, args []eval.Value, kwargs *eval.Dict) (eval.Value, error) {
	if err := eval.CheckArity("state.set", args, 2, 3); err != nil {
		return nil, err
	}
	name, err := eval.StringArg("state.set", args[0])
	if err != nil {
		return nil, err
	}
	var attrs *eval.Dict
	switch a := eval.Arg(args, 2, kwargs, "attributes", nil).(type) {
	case nil:
	case *eval.Dict:
		attrs = a
	default:
		return nil, eval.NewError(eval.TypeError, "state.set() attributes must be dict, not %s", eval.TypeName(a))
	}
	return nil, r.StateSet(name, args[1], attrs)
}

// logAt returns log.<level>, which logs through the calling context's
// per-function logger.
func (r *Runtime) logAt(level string) eval.BuiltinFunc {
	return func(c *eval.Context, args []eval.Value, _ *eval.Dict) (eval.Value, error) {
		if err := eval.CheckArity("log."+level, args, 1, 1); err != nil {
			return nil, err
		}
		msg := eval.Str(args[0])
		l := r.Logger(c.Name)
		switch level {
		case "debug":
			l.Debug(msg)
		case "info":
			l.Info(msg)
		case "warning":
			l.Warn(msg)
		default:
			l.Error(msg)
		}
		return nil, nil
	}
}
