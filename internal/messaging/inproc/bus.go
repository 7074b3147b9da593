package inproc

import (
	"errors"
	"sync"

	"asd_commerce/internal/domain"
)

var (
	ErrNoSubscribers       = errors.New("no subscribers for topic")
	ErrSubscriberQueueFull = errors.New("subscriber queue is full")
)

// Wildcard subscribers receive every topic.
const Wildcard = "*"

type subscription struct {
	topic string
	ch    chan domain.Event
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*subscription
	buffer int
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[string]map[string]*subscription),
		buffer: buffer,
	}
}

// Subscribe registers subscriberID on topic. Subscribing twice returns the
// existing channel.
func (b *Bus) Subscribe(subscriberID, topic string) <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	byID, ok := b.subs[topic]
	if !ok {
		byID = make(map[string]*subscription)
		b.subs[topic] = byID
	}
	if sub, ok := byID[subscriberID]; ok {
		return sub.ch
	}
	sub := &subscription{topic: topic, ch: make(chan domain.Event, b.buffer)}
	byID[subscriberID] = sub
	return sub.ch
}

func (b *Bus) Unsubscribe(subscriberID, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	byID, ok := b.subs[topic]
	if !ok {
		return
	}
	sub, ok := byID[subscriberID]
	if !ok {
		return
	}
	delete(byID, subscriberID)
	if len(byID) == 0 {
		delete(b.subs, topic)
	}
	close(sub.ch)
}

// Publish never blocks. Every subscriber with room gets the event; the
// returned error reports the first one that was skipped.
func (b *Bus) Publish(evt domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	targets := make([]*subscription, 0, len(b.subs[evt.Topic])+len(b.subs[Wildcard]))
	for _, sub := range b.subs[evt.Topic] {
		targets = append(targets, sub)
	}
	if evt.Topic != Wildcard {
		for _, sub := range b.subs[Wildcard] {
			targets = append(targets, sub)
		}
	}
	if len(targets) == 0 {
		return ErrNoSubscribers
	}

	var firstErr error
	for _, sub := range targets {
		select {
		case sub.ch <- evt:
		default:
			if firstErr == nil {
				firstErr = ErrSubscriberQueueFull
			}
		}
	}
	return firstErr
}
