// Package trigger binds script functions to the stimuli that run them.
//
// A Trigger owns one notification queue. New parses its guard expressions
// and subscribes the queue to the state names the state guard reads and to
// its event type. Start launches the watch loop, which sleeps until the
// next time-spec instant or queue message, evaluates the guards and hands
// the action to the runtime as a new task. Stop cancels the loop, waits for
// it and removes the subscriptions.
//
// A trigger with no time, state or event clause runs its action once when
// started (subject to its active guards) and then ends.
//
// WaitUntil implements task.wait_until with the same machinery, scoped to a
// single call.
package trigger
