package api

import (
    "sync"
)

type SSEEvent struct {
    Type string
    Data map[string]any
}

type Broker struct {
    mu      sync.Mutex
    subs    map[string]map[chan SSEEvent]struct{} // planId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(planID string) chan SSEEvent {
    ch := make(chan SSEEvent, 8)
    b.mu.Lock()
    if b.subs[planID] == nil { b.subs[planID] = map[chan SSEEvent]struct{}{} }
    b.subs[planID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(planID string, ch chan SSEEvent) {
    b.mu.Lock()
    if m := b.subs[planID]; m != nil {
        delete(m, ch)
        if len(m) == 0 { delete(b.subs, planID) }
    }
    b.mu.Unlock()
    close(ch)
}

func (b *Broker) Publish(planID string, evt SSEEvent) {
    b.mu.Lock()
    m := b.subs[planID]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
