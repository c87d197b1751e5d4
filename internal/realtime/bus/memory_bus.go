package bus

import (
	"context"
	"sync"

	"github.com/yungbote/studyplan-backend/internal/realtime"
)

// MemoryBus fans events out in-process. It backs single-node deployments without Redis
// and keeps every published event for inspection.
type MemoryBus struct {
	mu        sync.Mutex
	published []realtime.PlanEvent
	handlers  []func(realtime.PlanEvent)
}

func NewMemoryBus() *MemoryBus { return &MemoryBus{} }

func (b *MemoryBus) Publish(ctx context.Context, evt realtime.PlanEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.published = append(b.published, evt)
	handlers := append([]func(realtime.PlanEvent){}, b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(ctx context.Context, onEvt func(e realtime.PlanEvent)) error {
	if onEvt == nil {
		return nil
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, onEvt)
	b.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (b *MemoryBus) Events() []realtime.PlanEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]realtime.PlanEvent(nil), b.published...)
}

func (b *MemoryBus) Close() error { return nil }
