package broadcast

import (
	"context"
	"sync"
)

// Hub is an in-process Bus fanning messages out between endpoints.
// Messages are never delivered back to the sender.
type Hub struct {
	mu        sync.Mutex
	endpoints []*HubEndpoint
}

func NewHub() *Hub {
	return &Hub{}
}

// Endpoint attaches a new participant to the hub.
func (h *Hub) Endpoint() *HubEndpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep := &HubEndpoint{hub: h, ch: make(chan Message, 16)}
	h.endpoints = append(h.endpoints, ep)
	return ep
}

func (h *Hub) send(from *HubEndpoint, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ep := range h.endpoints {
		if ep == from || ep.closed {
			continue
		}
		select {
		case ep.ch <- msg:
		default:
		}
	}
}

// HubEndpoint is one participant's view of a Hub.
type HubEndpoint struct {
	hub    *Hub
	ch     chan Message
	closed bool
}

func (e *HubEndpoint) Send(ctx context.Context, msg Message) error {
	e.hub.send(e, msg)
	return nil
}

func (e *HubEndpoint) Receive() <-chan Message {
	return e.ch
}

func (e *HubEndpoint) Close() error {
	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
	return nil
}
