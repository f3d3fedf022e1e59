// Package notify provides change notification for configuration updates.
//
// Observers subscribe to a single configuration key and are invoked
// synchronously, in registration order, whenever that key's effective
// value changes. A misbehaving observer is isolated: a panic is
// recovered and logged, and neither the remaining observers nor the
// triggering mutation are affected.
package notify

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Change represents a configuration change event.
type Change struct {
	// Key is the configuration key that changed.
	Key string

	// OldValue is the previous effective value (may be nil).
	OldValue any

	// NewValue is the new effective value (may be nil).
	NewValue any

	// Source identifies the mutation that produced the change
	// (e.g., "set", "update", "reset", "reload").
	Source string
}

// Observer is called when a watched key changes.
type Observer func(change Change)

// Subscription represents an active observer registration.
type Subscription struct {
	id       uint64
	key      string
	notifier *Notifier
}

// Key returns the configuration key this subscription watches.
func (s *Subscription) Key() string {
	return s.key
}

// Unsubscribe removes this registration. It is safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.key, s.id)
	}
}

// Notifier manages per-key observer registrations.
type Notifier struct {
	mu sync.RWMutex

	// Observers per key, by subscription ID. IDs are monotonically
	// increasing, so sorting by ID recovers registration order.
	observers map[string]map[uint64]Observer

	nextID uint64
	logger *zap.Logger
	closed bool
}

// New creates a new Notifier. A nil logger disables logging.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		observers: make(map[string]map[uint64]Observer),
		logger:    logger,
	}
}

// Subscribe registers an observer for changes to a specific key.
func (n *Notifier) Subscribe(key string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	if n.observers[key] == nil {
		n.observers[key] = make(map[uint64]Observer)
	}
	n.observers[key][id] = observer

	return &Subscription{
		id:       id,
		key:      key,
		notifier: n,
	}
}

// Notify delivers a change to every observer of change.Key,
// synchronously and in registration order.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}

	bucket := n.observers[change.Key]
	ids := make([]uint64, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	observers := make([]Observer, len(ids))
	for i, id := range ids {
		observers[i] = bucket[id]
	}
	n.mu.RUnlock()

	// Call observers outside the lock so they may subscribe or
	// unsubscribe without deadlocking.
	for _, obs := range observers {
		n.invoke(change, obs)
	}
}

// invoke runs a single observer, converting panics into log entries.
func (n *Notifier) invoke(change Change, obs Observer) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("configuration watcher panicked",
				zap.String("key", change.Key),
				zap.String("source", change.Source),
				zap.Any("panic", r),
			)
		}
	}()
	obs(change)
}

// Count returns the total number of active registrations.
func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	total := 0
	for _, bucket := range n.observers {
		total += len(bucket)
	}
	return total
}

// WatchedKeys returns the keys that currently have observers.
func (n *Notifier) WatchedKeys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	keys := make([]string, 0, len(n.observers))
	for key := range n.observers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Close stops delivery. Subsequent Notify calls are ignored.
// It is safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.observers = make(map[string]map[uint64]Observer)
}

// unsubscribe removes an observer. Removing the last observer for a
// key frees its bucket.
func (n *Notifier) unsubscribe(key string, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	bucket, ok := n.observers[key]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(n.observers, key)
	}
}
