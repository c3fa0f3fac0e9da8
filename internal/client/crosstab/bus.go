package crosstab

import (
	"context"
	"errors"
	"sync"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("bus closed")

// Bus carries tab messages between instances. Delivery is best-effort and
// unordered across publishers.
type Bus interface {
	Publish(ctx context.Context, msg api.TabMessage) error
	Receive() <-chan api.TabMessage
	Close() error
}

// MemoryHub connects buses living in the same process.
type MemoryHub struct {
	members map[*MemoryBus]struct{}
	mu      sync.RWMutex
}

// NewMemoryHub создает пустой хаб
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{members: make(map[*MemoryBus]struct{})}
}

// Join returns a new bus attached to the hub.
func (h *MemoryHub) Join() *MemoryBus {
	b := &MemoryBus{
		hub:  h,
		ch:   make(chan api.TabMessage, 64),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.members[b] = struct{}{}
	h.mu.Unlock()
	return b
}

// MemoryBus is one member of a MemoryHub. Publish blocks while a
// receiver's buffer is full.
type MemoryBus struct {
	hub       *MemoryHub
	ch        chan api.TabMessage
	done      chan struct{}
	closeOnce sync.Once
}

var _ Bus = (*MemoryBus)(nil)

func (b *MemoryBus) Publish(ctx context.Context, msg api.TabMessage) error {
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}

	b.hub.mu.RLock()
	peers := make([]*MemoryBus, 0, len(b.hub.members))
	for m := range b.hub.members {
		if m != b {
			peers = append(peers, m)
		}
	}
	b.hub.mu.RUnlock()

	for _, p := range peers {
		select {
		case p.ch <- msg:
		case <-p.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Receive returns the incoming channel. It is never closed.
func (b *MemoryBus) Receive() <-chan api.TabMessage { return b.ch }

func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.hub.mu.Lock()
		delete(b.hub.members, b)
		b.hub.mu.Unlock()
	})
	return nil
}
