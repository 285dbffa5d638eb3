package logist

import (
	"context"
	"sync"

	"github.com/8gahwyud/test-logggists-sub000/pkg/event"
)

// FocusRegistry tracks which order's chat and which order's management modal
// are currently mounted, plus the callback slots the realtime layer uses to
// reach them. Exactly one owner per slot: the last registration wins and the
// owner clears its slot on unmount. Everything not focused only ever sees
// list-level refreshes.
type FocusRegistry struct {
	mu sync.RWMutex

	chatOrderID  int64
	modalOrderID int64

	addMessage     func(Message)
	updateResponse func(event.ResponseRow)
	loadResponses  func(context.Context)
}

func NewFocusRegistry() *FocusRegistry {
	return &FocusRegistry{}
}

// SetChatFocus points granular message routing at the chat for orderID.
func (f *FocusRegistry) SetChatFocus(orderID int64, addMessage func(Message)) {
	f.mu.Lock()
	f.chatOrderID = orderID
	f.addMessage = addMessage
	f.mu.Unlock()
}

// ClearChatFocus releases the chat slot, but only if orderID still owns it.
// A stale unmount racing a newer mount must not clobber the new owner.
func (f *FocusRegistry) ClearChatFocus(orderID int64) {
	f.mu.Lock()
	if f.chatOrderID == orderID {
		f.chatOrderID = 0
		f.addMessage = nil
	}
	f.mu.Unlock()
}

func (f *FocusRegistry) ChatOrderID() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.chatOrderID
}

// DeliverMessage hands a message to the focused chat, if any. Returns false
// when no chat for that order is mounted and the event should be dropped.
func (f *FocusRegistry) DeliverMessage(orderID int64, m Message) bool {
	f.mu.RLock()
	fn := f.addMessage
	focused := f.chatOrderID == orderID && fn != nil
	f.mu.RUnlock()
	if !focused {
		return false
	}
	fn(m)
	return true
}

// SetModalFocus points granular response routing at the management modal for
// orderID.
func (f *FocusRegistry) SetModalFocus(orderID int64, updateResponse func(event.ResponseRow), loadResponses func(context.Context)) {
	f.mu.Lock()
	f.modalOrderID = orderID
	f.updateResponse = updateResponse
	f.loadResponses = loadResponses
	f.mu.Unlock()
}

func (f *FocusRegistry) ClearModalFocus(orderID int64) {
	f.mu.Lock()
	if f.modalOrderID == orderID {
		f.modalOrderID = 0
		f.updateResponse = nil
		f.loadResponses = nil
	}
	f.mu.Unlock()
}

func (f *FocusRegistry) ModalOrderID() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.modalOrderID
}

// PatchResponse routes a realtime update row to the focused modal. Returns
// false when that order's modal is not mounted.
func (f *FocusRegistry) PatchResponse(orderID int64, row event.ResponseRow) bool {
	f.mu.RLock()
	fn := f.updateResponse
	focused := f.modalOrderID == orderID && fn != nil
	f.mu.RUnlock()
	if !focused {
		return false
	}
	fn(row)
	return true
}

// ReloadResponses asks the focused modal to refetch its list. Used as the
// safe fallback for insert and delete events.
func (f *FocusRegistry) ReloadResponses(ctx context.Context, orderID int64) bool {
	f.mu.RLock()
	fn := f.loadResponses
	focused := f.modalOrderID == orderID && fn != nil
	f.mu.RUnlock()
	if !focused {
		return false
	}
	fn(ctx)
	return true
}
