package event

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-script/internal/notify"
)

// Event is one fired event.
type Event struct {
	Type string         `json:"event_type"`
	Data map[string]any `json:"data"`
	Time time.Time      `json:"time_fired"`
}

// Listener receives every fired event.
type Listener interface {
	EventFired(e Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(e Event)

// EventFired calls f(e).
func (f ListenerFunc) EventFired(e Event) { f(e) }

// Logger defines the logging interface used by the Bus.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bus fans fired events out to subscribed queues.
//
// Each event type keeps its own queue set. The set, and with it the
// type's entry in Types, disappears when the last queue unsubscribes.
type Bus struct {
	mu        sync.Mutex
	queues    map[string]map[*notify.Queue]struct{}
	listeners []Listener
	logger    Logger
	now       func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		queues: make(map[string]map[*notify.Queue]struct{}),
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the bus.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// AddListener registers l to see every fired event.
func (b *Bus) AddListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Subscribe adds q to the queue set for eventType.
func (b *Bus) Subscribe(eventType string, q *notify.Queue) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.queues[eventType]
	if !ok {
		set = make(map[*notify.Queue]struct{})
		b.queues[eventType] = set
		b.logger.Debug("listening for event type", "event_type", eventType)
	}
	set[q] = struct{}{}
}

// Unsubscribe removes q from the queue set for eventType. Removing a queue
// that is not subscribed is a no-op.
func (b *Bus) Unsubscribe(eventType string, q *notify.Queue) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.queues[eventType]
	if !ok {
		return
	}
	delete(set, q)
	if len(set) == 0 {
		delete(b.queues, eventType)
		b.logger.Debug("stopped listening for event type", "event_type", eventType)
	}
}

// Subscribers returns how many queues are subscribed to eventType.
func (b *Bus) Subscribers(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[eventType])
}

// Types returns the sorted event types that have subscribers.
func (b *Bus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Sorted(maps.Keys(b.queues))
}

// Fire delivers an event of eventType carrying data. Queues receive
// args {trigger_type: "event", event_type: eventType, ...data}; the vars
// are the data itself so guard expressions can read payload fields.
func (b *Bus) Fire(eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	ev := Event{Type: eventType, Data: maps.Clone(data), Time: b.now()}

	b.mu.Lock()
	targets := make([]*notify.Queue, 0, len(b.queues[eventType]))
	for q := range b.queues[eventType] {
		targets = append(targets, q)
	}
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()

	b.logger.Debug("event fired", "event_type", eventType, "queues", len(targets))

	if len(targets) > 0 {
		args := make(map[string]any, len(data)+2)
		maps.Copy(args, data)
		args["trigger_type"] = "event"
		args["event_type"] = eventType
		for _, q := range targets {
			q.Put(notify.Message{Kind: notify.KindEvent, Vars: maps.Clone(data), Args: args})
		}
	}
	for _, l := range listeners {
		l.EventFired(ev)
	}
}
