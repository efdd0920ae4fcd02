// Package pubsub implements a typed one-to-many publisher over Go channels.
// Delivery is synchronous per subscriber; a subscriber abandons its
// subscription by closing it, which unblocks and drops any pending delivery.
package pubsub

import (
	"errors"
	"sync"
)

const DefaultBufSize = 1

var ErrPublisherClosed = errors.New("publisher closed")

type Sender[T any] interface {
	// Send delivers a message, returning false if the destination is closed.
	Send(T) bool
}

type Receiver[T any] interface {
	Receive() <-chan T
}

type Closer interface {
	Close()
}

type SenderCloser[T any] interface {
	Sender[T]
	Closer
}

type ReceiverCloser[T any] interface {
	Receiver[T]
	Closer
}

// channel wraps a primitive chan with close-safe Send semantics.
type channel[T any] struct {
	mu      sync.RWMutex
	ch      chan T
	done    chan struct{}
	closed  bool
	waiting sync.WaitGroup
}

func newChannel[T any](bufSize int) *channel[T] {
	return &channel[T]{
		ch:   make(chan T, bufSize),
		done: make(chan struct{}),
	}
}

func (c *channel[T]) Receive() <-chan T {
	return c.ch
}

func (c *channel[T]) Send(msg T) bool {
	// Either the send is never attempted, or Close() waits for it to finish.
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	c.waiting.Add(1)
	defer c.waiting.Done()
	c.mu.RUnlock()

	select {
	case c.ch <- msg:
		return true
	case <-c.done:
		return false
	}
}

// Close idempotently ends the channel; all current and future Send calls fail.
func (c *channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	close(c.done)
	c.waiting.Wait()
	close(c.ch)
	c.closed = true
}

// Publisher fans messages out to any number of subscribers.
type Publisher[T any] struct {
	mu          sync.Mutex
	subscribers map[*channel[T]]struct{}
	closed      bool
}

func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{subscribers: make(map[*channel[T]]struct{})}
}

// Subscribe registers a new subscriber. Messages sent after this call will be
// delivered until either side closes.
func (p *Publisher[T]) Subscribe() (ReceiverCloser[T], error) {
	return p.SubscribeBufSize(DefaultBufSize)
}

func (p *Publisher[T]) SubscribeBufSize(bufSize int) (ReceiverCloser[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPublisherClosed
	}
	s := newChannel[T](bufSize)
	p.subscribers[s] = struct{}{}
	return s, nil
}

// Send delivers the message to every current subscriber, dropping any
// subscriber that is no longer receiving. Returns false once closed.
func (p *Publisher[T]) Send(msg T) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	subscribers := make([]*channel[T], 0, len(p.subscribers))
	for s := range p.subscribers {
		subscribers = append(subscribers, s)
	}
	p.mu.Unlock()

	for _, s := range subscribers {
		if ok := s.Send(msg); !ok {
			p.mu.Lock()
			delete(p.subscribers, s)
			p.mu.Unlock()
		}
	}
	return true
}

// Close idempotently shuts down the publisher and every subscriber.
func (p *Publisher[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	subscribers := make([]*channel[T], 0, len(p.subscribers))
	for s := range p.subscribers {
		subscribers = append(subscribers, s)
	}
	p.subscribers = nil
	p.mu.Unlock()

	for _, s := range subscribers {
		s.Close()
	}
}
