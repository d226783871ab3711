package trigger

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-script/internal/notify"
	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/timespec"
)

// WaitOptions are the arguments of task.wait_until. Empty fields are
// absent clauses.
type WaitOptions struct {
	StateTrigger  string
	StateCheckNow bool
	TimeTrigger   []string
	// EventTrigger is [type] or [type, guard expression].
	EventTrigger []string
	// Timeout bounds the wait when positive.
	Timeout time.Duration
}

// WaitUntil blocks the calling script until one of the clauses in opts is
// satisfied and returns the matching argument bundle. Its trigger_type is
// "state", "event", "time", "timeout" or "none". Subscriptions are removed
// on every return path. A cancelled ctx returns ctx.Err().
//
// c is the calling script's context; guard expressions see its globals.
func (e *Env) WaitUntil(ctx context.Context, c *eval.Context, opts WaitOptions) (map[string]any, error) {
	name := c.Name
	globals := c.Globals()
	log := e.logger().With("wait_until", name)

	if opts.StateTrigger == "" && len(opts.TimeTrigger) == 0 && len(opts.EventTrigger) == 0 {
		if opts.Timeout <= 0 {
			return map[string]any{"trigger_type": "none"}, nil
		}
		if err := sleep(ctx, opts.Timeout); err != nil {
			return nil, err
		}
		return map[string]any{"trigger_type": "timeout"}, nil
	}

	q := notify.NewQueue()

	var stateGuard, eventGuard *guard
	if opts.StateTrigger != "" {
		g, err := compileGuard(opts.StateTrigger, name+" wait_until state_trigger")
		if err != nil {
			return nil, eval.NewError(eval.SyntaxError, "%v", err)
		}
		if opts.StateCheckNow && g.eval(ctx, e.Runtime, name, globals, nil) {
			return map[string]any{"trigger_type": "state"}, nil
		}
		stateGuard = g
		e.Notifier.Subscribe(g.names, q)
		defer e.Notifier.Unsubscribe(g.names, q)
	}

	if len(opts.EventTrigger) > 0 {
		e.Bus.Subscribe(opts.EventTrigger[0], q)
		defer e.Bus.Unsubscribe(opts.EventTrigger[0], q)
		if len(opts.EventTrigger) > 1 {
			g, err := compileGuard(opts.EventTrigger[1], name+" wait_until event_trigger")
			if err != nil {
				return nil, eval.NewError(eval.SyntaxError, "%v", err)
			}
			eventGuard = g
		}
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = e.now().Add(opts.Timeout)
	}

	for {
		now := e.now()
		var (
			wait    time.Duration
			hasWait bool
			kind    = "time"
		)
		if len(opts.TimeTrigger) > 0 {
			if next, ok := timespec.Next(opts.TimeTrigger, now, e.Sun); ok {
				wait, hasWait = next.Sub(now), true
			}
		}
		if !deadline.IsZero() {
			left := deadline.Sub(now)
			if left <= 0 {
				return map[string]any{"trigger_type": "timeout"}, nil
			}
			if !hasWait || left < wait {
				wait, hasWait, kind = left, true, "timeout"
			}
		}
		if !hasWait && stateGuard == nil && len(opts.EventTrigger) == 0 {
			log.Debug("no next time, returning none")
			return map[string]any{"trigger_type": "none"}, nil
		}

		var timerC <-chan time.Time
		var timer *time.Timer
		if hasWait {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil, ctx.Err()

		case <-timerC:
			return map[string]any{"trigger_type": kind}, nil

		case <-q.Ready():
			stopTimer(timer)
			msg, ok := q.TryGet()
			if !ok {
				continue
			}
			switch msg.Kind {
			case notify.KindState:
				if stateGuard == nil || stateGuard.eval(ctx, e.Runtime, name, globals, msg.Vars) {
					return msg.Args, nil
				}
			case notify.KindEvent:
				if eventGuard == nil || eventGuard.eval(ctx, e.Runtime, name, globals, msg.Args) {
					return msg.Args, nil
				}
			default:
				log.Error("unexpected queue message", "kind", msg.Kind.String())
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
