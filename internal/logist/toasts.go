package logist

import (
	"sync"
	"time"
)

const maxVisibleToasts = 3

// Toast is the ephemeral projection of a notification surfaced outside any
// modal.
type Toast struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ToastQueue caps the number of simultaneously visible toasts. Excess items
// spill into a hidden buffer; dismissing a visible toast backfills from the
// buffer, and the modal coordinator captures/restores the whole visible set
// around modal transitions.
type ToastQueue struct {
	mu      sync.Mutex
	visible []Toast
	hidden  []Toast
	notify  func()
}

func NewToastQueue() *ToastQueue {
	return &ToastQueue{}
}

func (q *ToastQueue) OnChange(fn func()) {
	q.mu.Lock()
	q.notify = fn
	q.mu.Unlock()
}

// Push enqueues a toast, deduped by id across both the visible set and the
// hidden buffer.
func (q *ToastQueue) Push(t Toast) {
	q.mu.Lock()
	if q.containsLocked(t.ID) {
		q.mu.Unlock()
		return
	}
	if len(q.visible) < maxVisibleToasts {
		q.visible = append(q.visible, t)
	} else {
		q.hidden = append(q.hidden, t)
	}
	fn := q.notify
	q.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (q *ToastQueue) containsLocked(id int64) bool {
	for i := range q.visible {
		if q.visible[i].ID == id {
			return true
		}
	}
	for i := range q.hidden {
		if q.hidden[i].ID == id {
			return true
		}
	}
	return false
}

// Dismiss removes a visible toast and promotes the oldest hidden one.
func (q *ToastQueue) Dismiss(id int64) {
	q.mu.Lock()
	changed := false
	for i := range q.visible {
		if q.visible[i].ID == id {
			q.visible = append(q.visible[:i], q.visible[i+1:]...)
			changed = true
			break
		}
	}
	if changed && len(q.hidden) > 0 && len(q.visible) < maxVisibleToasts {
		q.visible = append(q.visible, q.hidden[0])
		q.hidden = q.hidden[1:]
	}
	fn := q.notify
	q.mu.Unlock()
	if changed && fn != nil {
		fn()
	}
}

// Visible returns the toasts currently on screen.
func (q *ToastQueue) Visible() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Toast(nil), q.visible...)
}

// Suppress clears the screen when a modal opens. Visible toasts move to the
// front of the hidden buffer so their relative age survives the round trip.
func (q *ToastQueue) Suppress() {
	q.mu.Lock()
	if len(q.visible) > 0 {
		q.hidden = append(append([]Toast(nil), q.visible...), q.hidden...)
		q.visible = nil
	}
	fn := q.notify
	q.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Restore brings buffered toasts back once every modal is closed: deduped by
// id, trimmed to the visible cap with the oldest surviving; the remainder
// stays buffered and resurfaces as visible ones are dismissed.
func (q *ToastQueue) Restore() {
	q.mu.Lock()
	seen := make(map[int64]bool, len(q.visible))
	for _, t := range q.visible {
		seen[t.ID] = true
	}
	var rest []Toast
	for _, t := range q.hidden {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		if len(q.visible) < maxVisibleToasts {
			q.visible = append(q.visible, t)
		} else {
			rest = append(rest, t)
		}
	}
	q.hidden = rest
	fn := q.notify
	q.mu.Unlock()
	if fn != nil {
		fn()
	}
}
