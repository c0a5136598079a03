package config

import (
	"context"
	"sync"

	"github.com/switchyard-io/switchyard/internal/logger"
	"github.com/switchyard-io/switchyard/pkg/metrics"
)

// Consumer receives published snapshots.
// Consumers run on their own goroutine; a slow consumer never blocks
// publication or other consumers.
type Consumer func(*Snapshot)

// PushHook is invoked with every snapshot before any First waiter is
// resolved and before any subscriber delivery. The coordinator installs a
// hook that forwards the raw tree to the current adapter, which keeps the
// config-push path ahead of adapter creation for the same snapshot.
type PushHook func(*Snapshot)

// Distributor turns a live configuration source into a replay-latest
// broadcast with a one-shot first-value waiter.
//
// Semantics:
//   - Subscribe delivers the latest snapshot immediately (if any), then
//     every subsequent snapshot. Delivery per subscriber is independent,
//     through a single-slot conflating mailbox: a consumer that falls
//     behind skips straight to the newest snapshot.
//   - First resolves exactly once, with the first snapshot ever published.
//   - Source errors are recorded and surfaced, never fatal: the broadcast
//     continues serving the last good snapshot.
type Distributor struct {
	mu       sync.Mutex
	latest   *Snapshot
	first    *Snapshot
	firstCh  chan struct{}
	push     PushHook
	subs     map[*Subscription]struct{}
	lastErr  error
	revision uint64

	metrics *metrics.ConfigMetrics
}

// NewDistributor creates a Distributor. m may be nil (metrics disabled).
func NewDistributor(m *metrics.ConfigMetrics) *Distributor {
	return &Distributor{
		firstCh: make(chan struct{}),
		subs:    make(map[*Subscription]struct{}),
		metrics: m,
	}
}

// SetPush installs the side-channel push hook. At most one hook is
// supported; installing nil removes it.
func (d *Distributor) SetPush(hook PushHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.push = hook
}

// Publish distributes a snapshot: revision assignment, push hook, first
// waiters, then general subscribers, in that order.
func (d *Distributor) Publish(s *Snapshot) {
	d.mu.Lock()
	d.revision++
	s.revision = d.revision
	d.latest = s

	resolveFirst := false
	if d.first == nil {
		d.first = s
		resolveFirst = true
	}

	push := d.push
	subs := make([]*Subscription, 0, len(d.subs))
	for sub := range d.subs {
		subs = append(subs, sub)
	}
	d.mu.Unlock()

	// Push to the adapter side channel before resolving first waiters so
	// that adapter creation cannot race ahead of the config push for this
	// same snapshot.
	if push != nil {
		push(s)
	}

	if resolveFirst {
		close(d.firstCh)
	}

	for _, sub := range subs {
		sub.offer(s)
	}

	d.metrics.RecordSnapshot()
	logger.Debug("Config snapshot published", logger.Component("distributor"), logger.Revision(s.revision))
}

// First returns the first snapshot ever published, waiting for it if none
// has been published yet. Each call resolves at most once; the returned
// snapshot is the same for every caller.
func (d *Distributor) First(ctx context.Context) (*Snapshot, error) {
	d.mu.Lock()
	if d.first != nil {
		s := d.first
		d.mu.Unlock()
		return s, nil
	}
	d.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.firstCh:
	}

	d.mu.Lock()
	s := d.first
	d.mu.Unlock()
	return s, nil
}

// Latest returns the most recently published snapshot, or nil.
func (d *Distributor) Latest() *Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest
}

// Subscribe registers a consumer. If a snapshot has already been published,
// the latest one is delivered first. Release the returned subscription to
// stop delivery; Release waits for the consumer goroutine to exit.
func (d *Distributor) Subscribe(fn Consumer) *Subscription {
	sub := &Subscription{
		d:       d,
		mailbox: make(chan *Snapshot, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	d.mu.Lock()
	d.subs[sub] = struct{}{}
	if d.latest != nil {
		sub.mailbox <- d.latest
	}
	d.mu.Unlock()

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-sub.stop:
				return
			case snap := <-sub.mailbox:
				fn(snap)
			}
		}
	}()

	d.metrics.RecordSubscribe()
	return sub
}

// RecordSourceError records an error from the underlying configuration
// source. The error is logged and counted but does not terminate the
// broadcast; the last good snapshot remains the latest.
func (d *Distributor) RecordSourceError(err error) {
	if err == nil {
		return
	}

	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()

	d.metrics.RecordSourceError()
	logger.Warn("Config source error", logger.Component("distributor"), logger.Err(err))
}

// LastSourceError returns the most recent source error, or nil.
func (d *Distributor) LastSourceError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Subscription is the handle to an active broadcast link.
type Subscription struct {
	d       *Distributor
	mailbox chan *Snapshot
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// offer places a snapshot in the mailbox, replacing any undelivered one.
func (s *Subscription) offer(snap *Snapshot) {
	for {
		select {
		case <-s.stop:
			return
		case s.mailbox <- snap:
			return
		default:
		}

		// Mailbox full: drop the stale snapshot and retry
		select {
		case <-s.mailbox:
		default:
		}
	}
}

// Release stops delivery and waits for the consumer goroutine to exit.
// Safe to call multiple times.
func (s *Subscription) Release() {
	s.once.Do(func() {
		s.d.mu.Lock()
		delete(s.d.subs, s)
		s.d.mu.Unlock()

		close(s.stop)
		<-s.done

		s.d.metrics.RecordUnsubscribe()
	})
}
