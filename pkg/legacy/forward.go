package legacy

import (
	"net/http"
	"sync"
)

// HandlerRegistry is the default Forwarder implementation: a plain
// observer list with synchronous invocation.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// RegisterHandler adds a handler to the invocation list.
func (hr *HandlerRegistry) RegisterHandler(h Handler) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	hr.handlers = append(hr.handlers, h)
}

// InvokeHandlers invokes every registered handler in registration order
// with the raw transport objects. Invocation is synchronous on the calling
// goroutine; the handlers own the response.
func (hr *HandlerRegistry) InvokeHandlers(w http.ResponseWriter, r *http.Request) {
	hr.mu.RLock()
	handlers := make([]Handler, len(hr.handlers))
	copy(handlers, hr.handlers)
	hr.mu.RUnlock()

	for _, h := range handlers {
		h(w, r)
	}
}

// HandlerCount returns the number of registered handlers.
func (hr *HandlerRegistry) HandlerCount() int {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	return len(hr.handlers)
}
