// Package runtime owns everything scripts reach outside the interpreter:
// the host function registry, services, entity state access and the tasks
// that run trigger actions and service calls.
//
// A Runtime implements eval.Host. Host functions are looked up by dotted
// name (log.info, task.sleep, event.fire); a dotted name that matches a
// registered service resolves to a callable that calls the service.
//
// Tasks are goroutines with their own cancellable context. task.unique
// uses the task found in the calling script's context to decide which
// task holds a unique name.
package runtime
