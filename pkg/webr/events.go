package webr

import (
	"context"
	"fmt"
	"sync"

	"github.com/bosonshiggs/webr/internal/domain"
)

// Listener receives events. Listeners run on the client's event goroutine,
// one event at a time, so a slow listener delays every later event.
type Listener interface {
	HandleEvent(evt Event)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(evt Event)

func (f ListenerFunc) HandleEvent(evt Event) { f(evt) }

// Callbacks maps the three event channels onto positional callbacks.
// Nil callbacks are skipped.
type Callbacks struct {
	OnCompleted func(tag, response string)
	OnFailed    func(tag, message string)
	OnError     func(code, message string)
}

func (cb Callbacks) HandleEvent(evt Event) {
	switch evt.Name {
	case domain.EventRequestCompleted:
		if cb.OnCompleted != nil {
			cb.OnCompleted(evt.Tag, evt.Payload)
		}
	case domain.EventRequestFailed:
		if cb.OnFailed != nil {
			cb.OnFailed(evt.Tag, evt.Payload)
		}
	case domain.EventError:
		if cb.OnError != nil {
			cb.OnError(evt.Code, evt.Payload)
		}
	}
}

type subscription struct {
	id int
	l  Listener
}

// eventLoop delivers events from a single goroutine in FIFO order. The queue
// is unbounded so that posting never blocks, which lets listeners issue new
// calls without stalling the loop.
type eventLoop struct {
	mu      sync.Mutex
	queue   []Event
	closing bool
	wake    chan struct{}
	done    chan struct{}

	subsMu sync.RWMutex
	subs   []subscription
	nextID int

	log Logger
}

func newEventLoop(log Logger) *eventLoop {
	return &eventLoop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  ensureLogger(log),
	}
}

func (l *eventLoop) subscribe(listener Listener) func() {
	l.subsMu.Lock()
	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscription{id: id, l: listener})
	l.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.subsMu.Lock()
			defer l.subsMu.Unlock()
			for i, s := range l.subs {
				if s.id == id {
					l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// post enqueues an event. It reports false once the loop is shutting down.
func (l *eventLoop) post(evt Event) bool {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		l.log.DebugObj("event dropped after close", "webr_event", evt)
		return false
	}
	l.queue = append(l.queue, evt)
	l.mu.Unlock()
	l.signal()
	return true
}

func (l *eventLoop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *eventLoop) run() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			if l.closing {
				l.mu.Unlock()
				close(l.done)
				return
			}
			l.mu.Unlock()
			<-l.wake
			continue
		}
		evt := l.queue[0]
		l.queue[0] = Event{}
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.dispatch(evt)
	}
}

func (l *eventLoop) dispatch(evt Event) {
	l.subsMu.RLock()
	subs := make([]subscription, len(l.subs))
	copy(subs, l.subs)
	l.subsMu.RUnlock()

	for _, s := range subs {
		l.deliver(s.l, evt)
	}
}

func (l *eventLoop) deliver(listener Listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			l.log.ErrorObj("listener panicked", "webr_listener_panic", map[string]any{
				"event": evt.Name,
				"key":   evt.Key(),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	listener.HandleEvent(evt)
}

// close stops accepting events and waits until the queue is drained.
func (l *eventLoop) close(ctx context.Context) error {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	l.signal()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
