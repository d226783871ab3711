// Package notify carries stimulus messages from the state store and event
// bus to the goroutines waiting on them.
//
// Each waiter (a trigger's watch loop or a task.wait_until call) owns one
// Queue and registers it with the sources it cares about. Sources never
// block on a slow waiter: Queue is unbounded, and Put only appends.
package notify
