package bus

import (
	"context"
	"sync"
)

// LocalBus is an in-process, channel-backed Bus: each endpoint gets its own
// buffered slot channel of capacity equal to its prefetch. Deliver runs the
// bound handler synchronously on the caller's goroutine while holding a
// slot, and frees the slot when the handler returns, whether or not it
// failed. It has no network transport and no persistence; it exists so
// the process can run standalone and so tests can exercise Adapter without
// a real broker.
type LocalBus struct {
	mu       sync.Mutex
	handlers map[string]Handler
	slots    map[string]chan struct{}
	replies  map[string][]any
}

// NewLocalBus creates an empty LocalBus.
func NewLocalBus() *LocalBus {
	return &LocalBus{
		handlers: make(map[string]Handler),
		slots:    make(map[string]chan struct{}),
		replies:  make(map[string][]any),
	}
}

// Consume binds handler to endpoint. prefetch sizes the in-flight slot
// channel; Deliver blocks once prefetch deliveries are outstanding.
func (b *LocalBus) Consume(endpoint string, prefetch int, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prefetch <= 0 {
		prefetch = 1
	}
	b.handlers[endpoint] = handler
	b.slots[endpoint] = make(chan struct{}, prefetch)
	return nil
}

// Deliver synchronously delivers body to endpoint's handler, respecting the
// prefetch slot, and returns the handler's reply. A handler error leaves
// the message conceptually unacked (the caller, typically a test or a CLI
// one-shot invocation, decides how to surface that).
func (b *LocalBus) Deliver(ctx context.Context, endpoint string, body []byte) (any, error) {
	b.mu.Lock()
	handler, ok := b.handlers[endpoint]
	slot := b.slots[endpoint]
	b.mu.Unlock()
	if !ok {
		return nil, ErrUnauthorized // unreachable in practice: Start binds every known endpoint
	}

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-slot }()

	reply, err := handler(ctx, body)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.replies[endpoint] = append(b.replies[endpoint], reply)
	b.mu.Unlock()

	return reply, nil
}

// Publish records payload as a reply for endpoint. LocalBus has no
// subscribers of its own; callers that need the reply use Deliver's return
// value directly.
func (b *LocalBus) Publish(_ context.Context, endpoint string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[endpoint] = append(b.replies[endpoint], payload)
	return nil
}

var _ Bus = (*LocalBus)(nil)
