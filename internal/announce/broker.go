// Package announce fans dictionary change events out to in-process
// subscribers.
package announce

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/starford/glossa/internal/models"
)

// Broker delivers every announced event to all current subscribers.
//
// Concurrency model: a single internal event loop (goroutine) owns the
// subscriber set. Public methods communicate with this loop through
// channels, so no mutexes are required.
type Broker struct {
	subscribeCh   chan chan models.Event
	unsubscribeCh chan chan models.Event
	publishCh     chan models.Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	dropped atomic.Int64
}

// NewBroker creates a broker and starts its loop.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan chan models.Event),
		unsubscribeCh: make(chan chan models.Event),
		publishCh:     make(chan models.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[chan models.Event]struct{})

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			subs[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			for ch := range subs {
				select {
				case ch <- ev:
				default:
					// Slow subscriber; never block the loop.
					b.dropped.Add(1)
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes all subscriber channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a subscriber and returns its channel.
func (b *Broker) Subscribe() chan models.Event {
	ch := make(chan models.Event, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch chan models.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// SubscriberCount returns the number of subscribers.
func (b *Broker) SubscriberCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Dropped returns how many deliveries were skipped because a subscriber
// was not keeping up.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}

// Announce publishes ev to all subscribers.
func (b *Broker) Announce(ev models.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// Forward calls fn for every event until ctx is done or the broker closes.
func (b *Broker) Forward(ctx context.Context, fn func(models.Event)) {
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fn(ev)
		}
	}
}

// Title renders ev as a one-line headline.
func Title(ev models.Event) string {
	switch ev.Kind {
	case models.EventCreated:
		return fmt.Sprintf("%s created %s", ev.Actor, ev.Head)
	case models.EventNoted:
		return fmt.Sprintf("%s noted on %s", ev.Actor, ev.Head)
	case models.EventRemoved:
		return fmt.Sprintf("%s removed %s", ev.Actor, ev.Head)
	default:
		return fmt.Sprintf("%s: %s %s", ev.Actor, ev.Kind, ev.Head)
	}
}
