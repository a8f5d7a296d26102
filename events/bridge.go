// Package events carries out-of-band authorization signals from the transport layer
// to the session manager.
//
// A [Bridge] is created once at startup, handed to HTTP interceptors as a
// [Publisher], and subscribed to by the Manager. Delivery is synchronous on the
// publishing goroutine and observers must not block.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// FeatureAccessDenied reports that a request was rejected for feature-access
// reasons, together with the email-verification status the backend returned.
type FeatureAccessDenied struct {
	IsVerified           bool
	RequiresVerification bool
	// Code is the backend rejection code, when one was sent.
	Code string
	At   time.Time
}

// FeatureAccessObserver receives published [FeatureAccessDenied] events.
type FeatureAccessObserver interface {
	OnFeatureAccessDenied(FeatureAccessDenied)
}

// ObserverFunc adapts a function to [FeatureAccessObserver].
type ObserverFunc func(FeatureAccessDenied)

// OnFeatureAccessDenied calls f(ev).
func (f ObserverFunc) OnFeatureAccessDenied(ev FeatureAccessDenied) {
	f(ev)
}

// Publisher is the write side of a [Bridge].
type Publisher interface {
	Publish(FeatureAccessDenied)
}

// Bridge fans published events out to every subscribed observer in
// registration order. Subscriptions live as long as the Bridge.
type Bridge struct {
	mu        sync.RWMutex
	observers []FeatureAccessObserver
	published atomic.Uint64
}

// NewBridge creates a Bridge with no observers.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Subscribe registers o. A nil observer is ignored.
func (b *Bridge) Subscribe(o FeatureAccessObserver) {
	if o == nil {
		return
	}
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

// Publish delivers ev to every observer. A zero At is stamped with the
// current time.
func (b *Bridge) Publish(ev FeatureAccessDenied) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.published.Add(1)

	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	for _, o := range observers {
		o.OnFeatureAccessDenied(ev)
	}
}

// Published returns the number of events published so far.
func (b *Bridge) Published() uint64 {
	return b.published.Load()
}

// Observers returns the number of registered observers.
func (b *Bridge) Observers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}
