package logist

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

// UIEvent is one push to the webview: a store changed, a toast appeared, a
// dialog wants the display slot.
type UIEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Broadcaster fans UI events out to every connected SSE client. Slow clients
// have events dropped rather than blocking the stores; the UI re-fetches the
// full state on anything it missed.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan UIEvent
	logger      apt.Logger
}

func NewBroadcaster(logger apt.Logger) *Broadcaster {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan UIEvent),
		logger:      logger,
	}
}

func (b *Broadcaster) Subscribe(id string) <-chan UIEvent {
	ch := make(chan UIEvent, 16)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Publish(evt UIEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Debug("dropping event for slow SSE subscriber", "subscriber_id", id, "type", evt.Type)
		}
	}
}

// Present implements DialogPresenter: the webview renders the dialog and
// answers through the resolve endpoint.
func (b *Broadcaster) Present(d DialogView) {
	b.Publish(UIEvent{Type: "dialog", Data: d})
}

// Bind wires every store's change hook to a typed UI event. Called once
// during setup, after which the webview re-renders off the event stream.
func (b *Broadcaster) Bind(e *Engine) {
	e.Orders.OnChange(func() { b.Publish(UIEvent{Type: "orders"}) })
	e.Notifications.OnChange(func() { b.Publish(UIEvent{Type: "notifications"}) })
	e.Balance.OnChange(func() { b.Publish(UIEvent{Type: "balance"}) })
	e.Toasts.OnChange(func() { b.Publish(UIEvent{Type: "toasts", Data: e.Toasts.Visible()}) })
	e.Modals.OnChange(func() { b.Publish(UIEvent{Type: "modals", Data: e.Modals.OpenModals()}) })
	e.Dialogs.SetPresenter(b)
}

// SSEHandler streams UI events to the webview.
type SSEHandler struct {
	broadcaster *Broadcaster
	logger      apt.Logger
}

func NewSSEHandler(broadcaster *Broadcaster, logger apt.Logger) *SSEHandler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &SSEHandler{broadcaster: broadcaster, logger: logger}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	h.logger.Info("new SSE connection", "subscriber_id", subscriberID)

	events := h.broadcaster.Subscribe(subscriberID)
	defer h.broadcaster.Unsubscribe(subscriberID)

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}

		case evt, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				h.logger.Info("cannot encode UI event", "type", evt.Type, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
