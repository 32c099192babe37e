package transport

import "sync"

// Handler receives one event payload. Message events carry the decoded
// JSON object; audio events carry raw PCM bytes.
type Handler func(payload interface{})

// HandlerID identifies one registration so the same function can be
// registered twice and removed individually.
type HandlerID uint64

// emitter is a per-transport event registry. Each transport instance gets
// its own; listeners never leak across connections.
type emitter struct {
	mu       sync.RWMutex
	nextID   HandlerID
	handlers map[string]map[HandlerID]Handler
}

func newEmitter() *emitter {
	return &emitter{handlers: make(map[string]map[HandlerID]Handler)}
}

func (e *emitter) on(event string, h Handler) HandlerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	if e.handlers[event] == nil {
		e.handlers[event] = make(map[HandlerID]Handler)
	}
	e.handlers[event][id] = h
	return id
}

func (e *emitter) off(event string, id HandlerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers[event], id)
}

// emit invokes every handler registered for the event synchronously.
// Invocation order across handlers is not specified.
func (e *emitter) emit(event string, payload interface{}) {
	e.mu.RLock()
	hs := make([]Handler, 0, len(e.handlers[event]))
	for _, h := range e.handlers[event] {
		hs = append(hs, h)
	}
	e.mu.RUnlock()

	for _, h := range hs {
		h(payload)
	}
}

// clear drops every registration, used on disconnect
func (e *emitter) clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = make(map[string]map[HandlerID]Handler)
}
