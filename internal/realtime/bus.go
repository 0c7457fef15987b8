// Package realtime is an in-process change bus with topic subscriptions.
//
// The store publishes a ChangeEvent for every session and profile write;
// reconcilers subscribe per topic with a filter. Transport failures are
// modelled by Disconnect, which ends every live subscription with an error,
// and by FailSubscribes, which makes the next Subscribe calls fail.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// DefaultBuffer is the per-subscription event buffer.
const DefaultBuffer = 64

// ErrBusClosed is returned by Subscribe after Close.
var ErrBusClosed = errors.New("realtime: bus closed")

// ErrTransport is the default error reported by Disconnect.
var ErrTransport = errors.New("realtime: transport failure")

// Bus fans published events out to matching subscriptions.
//
// Thread-safety: all methods are safe for concurrent use. Publish blocks
// while a subscriber's buffer is full, until it drains or closes.
type Bus struct {
	mu       sync.Mutex
	subs     map[model.Topic]map[*subscription]struct{}
	buffer   int
	closed   bool
	failNext int
	failErr  error
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-subscription buffer size.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[model.Topic]map[*subscription]struct{}),
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe opens a stream of events on topic that pass filter.
// The subscription ends when ctx is done or Close is called.
func (b *Bus) Subscribe(ctx context.Context, topic model.Topic, filter model.Filter) (model.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if b.failNext > 0 {
		b.failNext--
		return nil, fmt.Errorf("subscribe %s: %w", topic, b.failErr)
	}

	s := &subscription{
		bus:     b,
		topic:   topic,
		filter:  filter,
		changes: make(chan model.ChangeEvent, b.buffer),
		done:    make(chan struct{}),
	}
	stop := context.AfterFunc(ctx, func() { s.end(nil) })
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscription]struct{})
	}
	b.subs[topic][s] = struct{}{}

	slog.Debug("realtime subscribed", "topic", topic, "user", filter.UserID, "exclude", filter.ExcludeUserID)
	return s, nil
}

// Publish delivers ev to every live subscription on ev.Entity whose filter
// matches. It returns the number of subscriptions that received it.
func (b *Bus) Publish(ev model.ChangeEvent) int {
	b.mu.Lock()
	targets := make([]*subscription, 0, len(b.subs[ev.Entity]))
	for s := range b.subs[ev.Entity] {
		if s.filter.Match(ev) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	delivered := 0
	for _, s := range targets {
		if s.deliver(ev) {
			delivered++
		}
	}
	return delivered
}

// Disconnect ends every live subscription with err, or ErrTransport when
// err is nil.
func (b *Bus) Disconnect(err error) {
	if err == nil {
		err = ErrTransport
	}
	for _, s := range b.snapshot() {
		s.end(err)
	}
	slog.Warn("realtime disconnected", "error", err)
}

// FailSubscribes makes the next n Subscribe calls fail with err, or
// ErrTransport when err is nil.
func (b *Bus) FailSubscribes(n int, err error) {
	if err == nil {
		err = ErrTransport
	}
	b.mu.Lock()
	b.failNext = n
	b.failErr = err
	b.mu.Unlock()
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic model.Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Close ends all subscriptions and rejects new ones.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	for _, s := range b.snapshot() {
		s.end(nil)
	}
	return nil
}

func (b *Bus) snapshot() []*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*subscription
	for _, set := range b.subs {
		for s := range set {
			out = append(out, s)
		}
	}
	return out
}

func (b *Bus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set := b.subs[s.topic]; set != nil {
		delete(set, s)
	}
}

// subscription implements model.Subscription.
//
// changes is never closed; consumers watch done.
type subscription struct {
	bus     *Bus
	topic   model.Topic
	filter  model.Filter
	changes chan model.ChangeEvent
	done    chan struct{}
	stop    func() bool

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *subscription) Changes() <-chan model.ChangeEvent { return s.changes }
func (s *subscription) Done() <-chan struct{}             { return s.done }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.end(nil)
	return nil
}

func (s *subscription) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		stop := s.stop
		s.mu.Unlock()
		close(s.done)
		if stop != nil {
			stop()
		}
		s.bus.remove(s)
	})
}

func (s *subscription) deliver(ev model.ChangeEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.changes <- ev:
		return true
	case <-s.done:
		return false
	}
}
