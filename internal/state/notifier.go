package state

import (
	"sync"

	"github.com/nerrad567/gray-logic-script/internal/notify"
)

// Notifier routes state changes to the trigger queues watching them.
//
// Queues register the variable names their guard expression reads. A name
// may be "domain.entity", "domain.entity.attr" or "domain.entity.old"; all
// are keyed by their "domain.entity" part. The notifier remembers the last
// value it delivered for every name, and each message carries only those
// remembered values for the names the receiving queue registered.
type Notifier struct {
	mu     sync.Mutex
	byKey  map[string]map[*notify.Queue]struct{}
	byQ    map[*notify.Queue]map[string]struct{}
	last   map[string]any
	logger Logger
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		byKey:  make(map[string]map[*notify.Queue]struct{}),
		byQ:    make(map[*notify.Queue]map[string]struct{}),
		last:   make(map[string]any),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	n.logger = logger
}

// Subscribe registers q for changes to names. Names that are not valid
// state names are skipped. Repeated subscriptions are harmless.
func (n *Notifier) Subscribe(names []string, q *notify.Queue) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, name := range names {
		key, ok := EntityKey(name)
		if !ok {
			n.logger.Debug("ignoring non-state name", "name", name)
			continue
		}
		if n.byQ[q] == nil {
			n.byQ[q] = make(map[string]struct{})
		}
		n.byQ[q][name] = struct{}{}
		if n.byKey[key] == nil {
			n.byKey[key] = make(map[*notify.Queue]struct{})
		}
		n.byKey[key][q] = struct{}{}
	}
}

// Unsubscribe removes names from q's registration. A key with no queues
// left is dropped. Unsubscribing names that were never registered is a
// no-op.
func (n *Notifier) Unsubscribe(names []string, q *notify.Queue) {
	n.mu.Lock()
	defer n.mu.Unlock()

	registered := n.byQ[q]
	for _, name := range names {
		delete(registered, name)
	}
	if len(registered) == 0 {
		delete(n.byQ, q)
	}

	for _, name := range names {
		key, ok := EntityKey(name)
		if !ok || n.stillWatches(q, key) {
			continue
		}
		delete(n.byKey[key], q)
		if len(n.byKey[key]) == 0 {
			delete(n.byKey, key)
		}
	}
}

func (n *Notifier) stillWatches(q *notify.Queue, key string) bool {
	for name := range n.byQ[q] {
		if k, _ := EntityKey(name); k == key {
			return true
		}
	}
	return false
}

// Subscribers returns how many queues watch the entity key.
func (n *Notifier) Subscribers(key string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.byKey[key])
}

// Update records vars as the latest values and queues a state message to
// every queue watching one of their entity keys.
func (n *Notifier) Update(vars, args map[string]any) {
	n.mu.Lock()
	targets := make(map[*notify.Queue]struct{})
	for name, value := range vars {
		key, ok := EntityKey(name)
		if !ok {
			continue
		}
		queues := n.byKey[key]
		if len(queues) == 0 {
			continue
		}
		n.last[name] = value
		for q := range queues {
			targets[q] = struct{}{}
		}
	}

	msgs := make(map[*notify.Queue]notify.Message, len(targets))
	for q := range targets {
		qvars := make(map[string]any, len(n.byQ[q]))
		for name := range n.byQ[q] {
			if v, ok := n.last[name]; ok {
				qvars[name] = v
			}
		}
		msgs[q] = notify.Message{Kind: notify.KindState, Vars: qvars, Args: args}
	}
	n.mu.Unlock()

	for q, m := range msgs {
		q.Put(m)
	}
}

// StateChanged converts a store change into an Update. Attributes are
// delivered as "domain.entity.attr" alongside the value and old value.
func (n *Notifier) StateChanged(c Change) {
	vars := map[string]any{
		c.EntityID:          c.Value,
		c.EntityID + ".old": c.Old(),
	}
	for attr, v := range c.Attributes {
		if attr != "old" {
			vars[c.EntityID+"."+attr] = v
		}
	}
	n.Update(
		vars,
		map[string]any{
			"trigger_type": "state",
			"var_name":     c.EntityID,
			"value":        c.Value,
			"old_value":    c.Old(),
		},
	)
}
