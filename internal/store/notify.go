package store

import (
	"context"
	"sync"
)

// Subscription is a live feed of collection snapshots.
//
// The channel returned by Snapshots() receives the full collection
// contents after every committed change, starting with the state at
// subscription time. A slow consumer is coalesced to the latest
// snapshot rather than blocking writers. Cancel() must be called when
// the owning scope is discarded; the channel is closed on cancellation.
type Subscription struct {
	collection string
	ch         chan []Document

	mu        sync.Mutex
	cancelled bool
	cancel    func(*Subscription)
}

// Snapshots returns the snapshot channel. Closed on Cancel.
func (sub *Subscription) Snapshots() <-chan []Document {
	return sub.ch
}

// Cancel tears down the subscription. Safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.mu.Lock()
	if sub.cancelled {
		sub.mu.Unlock()
		return
	}
	sub.cancelled = true
	sub.mu.Unlock()

	sub.cancel(sub)
	close(sub.ch)
}

// push delivers a snapshot with latest-wins coalescing.
func (sub *Subscription) push(docs []Document) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.cancelled {
		return
	}

	select {
	case sub.ch <- docs:
	default:
		// Drop the stale pending snapshot, keep the fresh one.
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- docs
	}
}

// DocSnapshot is one notification from a single-document subscription.
type DocSnapshot struct {
	// Exists reports whether the document existed at notification time.
	Exists bool
	// Doc is the document contents; zero when Exists is false.
	Doc Document
}

// DocSubscription is a live feed of single-document snapshots.
type DocSubscription struct {
	path string
	id   string
	ch   chan DocSnapshot

	mu        sync.Mutex
	cancelled bool
	cancel    func(*DocSubscription)
}

// Snapshots returns the snapshot channel. Closed on Cancel.
func (sub *DocSubscription) Snapshots() <-chan DocSnapshot {
	return sub.ch
}

// Cancel tears down the subscription. Safe to call more than once.
func (sub *DocSubscription) Cancel() {
	sub.mu.Lock()
	if sub.cancelled {
		sub.mu.Unlock()
		return
	}
	sub.cancelled = true
	sub.mu.Unlock()

	sub.cancel(sub)
	close(sub.ch)
}

func (sub *DocSubscription) push(snap DocSnapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.cancelled {
		return
	}

	select {
	case sub.ch <- snap:
	default:
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
}

// broker fans committed snapshots out to collection and document
// subscribers. Registration is keyed by collection path; document
// subscribers filter the collection snapshot for their own ID.
type broker struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	docSubs map[string]map[*DocSubscription]struct{}
}

func newBroker() *broker {
	return &broker{
		subs:    make(map[string]map[*Subscription]struct{}),
		docSubs: make(map[string]map[*DocSubscription]struct{}),
	}
}

func (b *broker) addSub(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[sub.collection] == nil {
		b.subs[sub.collection] = make(map[*Subscription]struct{})
	}
	b.subs[sub.collection][sub] = struct{}{}
}

func (b *broker) removeSub(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[sub.collection], sub)
}

func (b *broker) addDocSub(collection string, sub *DocSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.docSubs[collection] == nil {
		b.docSubs[collection] = make(map[*DocSubscription]struct{})
	}
	b.docSubs[collection][sub] = struct{}{}
}

func (b *broker) removeDocSub(collection string, sub *DocSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for col, subs := range b.docSubs {
		if col != collection {
			continue
		}
		delete(subs, sub)
	}
}

// publish delivers a collection snapshot to every subscriber of that
// collection and every document subscriber whose document lives in it.
func (b *broker) publish(collection string, docs []Document) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs[collection]))
	for sub := range b.subs[collection] {
		subs = append(subs, sub)
	}
	docSubs := make([]*DocSubscription, 0, len(b.docSubs[collection]))
	for sub := range b.docSubs[collection] {
		docSubs = append(docSubs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.push(docs)
	}

	for _, sub := range docSubs {
		snap := DocSnapshot{}
		for _, doc := range docs {
			if doc.ID == sub.id {
				snap = DocSnapshot{Exists: true, Doc: doc}
				break
			}
		}
		sub.push(snap)
	}
}

// closeAll cancels every live subscription. Called on store close.
func (b *broker) closeAll() {
	b.mu.Lock()
	var subs []*Subscription
	for _, set := range b.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	var docSubs []*DocSubscription
	for _, set := range b.docSubs {
		for sub := range set {
			docSubs = append(docSubs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	for _, sub := range docSubs {
		sub.Cancel()
	}
}

// Subscribe opens a live subscription to a collection. The current
// snapshot is delivered immediately, then one snapshot per committed
// change. The caller must Cancel() the subscription when done.
func (s *Store) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	sub := &Subscription{
		collection: collection,
		ch:         make(chan []Document, 1),
		cancel:     s.broker.removeSub,
	}

	// Register before the initial query so no commit between the query
	// and registration is missed; a duplicate initial snapshot is
	// harmless since every notification is a full replacement.
	s.broker.addSub(sub)

	// The initial read and push happen under the write lock, so the
	// first snapshot cannot read mid-commit state and then land after
	// a newer notification in the coalescing buffer.
	s.writeMu.Lock()
	docs, err := s.List(ctx, collection)
	if err != nil {
		s.writeMu.Unlock()
		sub.Cancel()
		return nil, err
	}
	sub.push(docs)
	s.writeMu.Unlock()

	return sub, nil
}

// SubscribeDoc opens a live subscription to a single document path.
// The current state is delivered immediately, including a
// DocSnapshot{Exists: false} when the document is absent.
func (s *Store) SubscribeDoc(ctx context.Context, path string) (*DocSubscription, error) {
	collection, id, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	sub := &DocSubscription{
		path: path,
		id:   id,
		ch:   make(chan DocSnapshot, 1),
	}
	sub.cancel = func(d *DocSubscription) { s.broker.removeDocSub(collection, d) }

	s.broker.addDocSub(collection, sub)

	s.writeMu.Lock()
	doc, exists, err := s.Get(ctx, path)
	if err != nil {
		s.writeMu.Unlock()
		sub.Cancel()
		return nil, err
	}
	sub.push(DocSnapshot{Exists: exists, Doc: doc})
	s.writeMu.Unlock()

	return sub, nil
}
