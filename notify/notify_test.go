package notify

import (
	"testing"
)

func TestNotifier_DeliversToWatchedKey(t *testing.T) {
	n := New(nil)
	defer n.Close()

	var got []Change
	n.Subscribe("logLevel", func(c Change) {
		got = append(got, c)
	})

	n.Notify(Change{Key: "logLevel", OldValue: "info", NewValue: "debug", Source: "set"})

	if len(got) != 1 {
		t.Fatalf("expected one delivery, got %d", len(got))
	}
	if got[0].OldValue != "info" || got[0].NewValue != "debug" || got[0].Key != "logLevel" {
		t.Errorf("unexpected change payload: %+v", got[0])
	}
}

func TestNotifier_IgnoresOtherKeys(t *testing.T) {
	n := New(nil)
	defer n.Close()

	called := false
	n.Subscribe("tickRate", func(Change) { called = true })

	n.Notify(Change{Key: "logLevel", NewValue: "warn", Source: "set"})
	if called {
		t.Error("observer for tickRate must not see logLevel changes")
	}
}

func TestNotifier_RegistrationOrder(t *testing.T) {
	n := New(nil)
	defer n.Close()

	var order []int
	n.Subscribe("port", func(Change) { order = append(order, 1) })
	n.Subscribe("port", func(Change) { order = append(order, 2) })
	n.Subscribe("port", func(Change) { order = append(order, 3) })

	n.Notify(Change{Key: "port", NewValue: 25565, Source: "set"})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("expected delivery in registration order, got %v", order)
	}
}

func TestNotifier_PanicIsolation(t *testing.T) {
	n := New(nil)
	defer n.Close()

	second := 0
	n.Subscribe("port", func(Change) { panic("observer failure") })
	n.Subscribe("port", func(Change) { second++ })

	n.Notify(Change{Key: "port", NewValue: 25565, Source: "set"})

	if second != 1 {
		t.Errorf("second observer should run exactly once after first panics, ran %d times", second)
	}
}

func TestSubscription_Unsubscribe(t *testing.T) {
	n := New(nil)
	defer n.Close()

	calls := 0
	sub := n.Subscribe("logLevel", func(Change) { calls++ })

	n.Notify(Change{Key: "logLevel", NewValue: "debug", Source: "set"})
	sub.Unsubscribe()
	n.Notify(Change{Key: "logLevel", NewValue: "warn", Source: "set"})

	if calls != 1 {
		t.Errorf("expected one call before unsubscribe, got %d", calls)
	}
	if n.Count() != 0 {
		t.Errorf("expected empty registry after unsubscribe, got %d", n.Count())
	}
	if len(n.WatchedKeys()) != 0 {
		t.Errorf("expected key bucket to be freed, got %v", n.WatchedKeys())
	}

	// Unsubscribing twice is a no-op.
	sub.Unsubscribe()
}

func TestNotifier_UnsubscribeLeavesOthers(t *testing.T) {
	n := New(nil)
	defer n.Close()

	first, second := 0, 0
	sub := n.Subscribe("port", func(Change) { first++ })
	n.Subscribe("port", func(Change) { second++ })

	sub.Unsubscribe()
	n.Notify(Change{Key: "port", NewValue: 25565, Source: "set"})

	if first != 0 || second != 1 {
		t.Errorf("expected only remaining observer to fire: first=%d second=%d", first, second)
	}
}

func TestNotifier_ObserverMayUnsubscribeDuringDelivery(t *testing.T) {
	n := New(nil)
	defer n.Close()

	var sub *Subscription
	calls := 0
	sub = n.Subscribe("port", func(Change) {
		calls++
		sub.Unsubscribe()
	})

	n.Notify(Change{Key: "port", NewValue: 1, Source: "set"})
	n.Notify(Change{Key: "port", NewValue: 2, Source: "set"})

	if calls != 1 {
		t.Errorf("expected self-unsubscribing observer to fire once, got %d", calls)
	}
}

func TestNotifier_CountAndWatchedKeys(t *testing.T) {
	n := New(nil)
	defer n.Close()

	n.Subscribe("a", func(Change) {})
	n.Subscribe("a", func(Change) {})
	n.Subscribe("b", func(Change) {})

	if n.Count() != 3 {
		t.Errorf("expected 3 registrations, got %d", n.Count())
	}
	keys := n.WatchedKeys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("unexpected watched keys %v", keys)
	}
}

func TestNotifier_CloseStopsDelivery(t *testing.T) {
	n := New(nil)

	calls := 0
	n.Subscribe("port", func(Change) { calls++ })
	n.Close()
	n.Notify(Change{Key: "port", NewValue: 1, Source: "set"})

	if calls != 0 {
		t.Errorf("expected no delivery after Close, got %d", calls)
	}

	n.Close() // idempotent
}
