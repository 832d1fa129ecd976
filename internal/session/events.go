package session

import (
	"context"
	"sync"

	"github.com/ndewijer/Finance-Insights/internal/model"
)

// EventType names an identity transition.
type EventType string

const (
	EventSignedIn       EventType = "signed-in"
	EventSignedUp       EventType = "signed-up"
	EventSignedOut      EventType = "signed-out"
	EventTokenRefreshed EventType = "token-refreshed"
)

// Event is published after the store's credential has changed.
// Credential is nil for EventSignedOut.
type Event struct {
	Type       EventType
	Credential *model.Credential
}

type subscriber struct {
	id int
	fn func(ctx context.Context, ev Event)
}

// bus delivers events synchronously, in subscription order, outside of any
// store lock so handlers may call back into the store.
type bus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

func (b *bus) subscribe(fn func(ctx context.Context, ev Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *bus) publish(ctx context.Context, ev Event) {
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()

	for _, s := range subs {
		out := ev
		if ev.Credential != nil {
			cred := *ev.Credential
			out.Credential = &cred
		}
		s.fn(ctx, out)
	}
}
