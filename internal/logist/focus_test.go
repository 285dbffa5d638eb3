package logist

import (
	"context"
	"testing"

	"github.com/8gahwyud/test-logggists-sub000/pkg/event"
)

func TestFocusRegistryDeliversOnlyToFocusedChat(t *testing.T) {
	f := NewFocusRegistry()

	var delivered []Message
	f.SetChatFocus(20, func(m Message) { delivered = append(delivered, m) })

	// Chat for order 20 is focused; a message for order 10 must be dropped.
	if f.DeliverMessage(10, msg("101", "")) {
		t.Error("message for an unfocused order must not be delivered")
	}
	if !f.DeliverMessage(20, msg("201", "")) {
		t.Error("message for the focused order must be delivered")
	}
	if len(delivered) != 1 || delivered[0].ID != "201" {
		t.Fatalf("expected only message 201 delivered, got %+v", delivered)
	}
}

func TestFocusRegistryNoFocusDropsEverything(t *testing.T) {
	f := NewFocusRegistry()
	if f.DeliverMessage(10, msg("101", "")) {
		t.Error("delivery without a focused chat must fail")
	}
	if f.PatchResponse(10, event.ResponseRow{ID: 1}) {
		t.Error("patch without a focused modal must fail")
	}
	if f.ReloadResponses(context.Background(), 10) {
		t.Error("reload without a focused modal must fail")
	}
}

func TestFocusRegistryLastRegistrationWins(t *testing.T) {
	f := NewFocusRegistry()

	var gotA, gotB int
	f.SetChatFocus(10, func(Message) { gotA++ })
	f.SetChatFocus(20, func(Message) { gotB++ })

	f.DeliverMessage(10, msg("101", ""))
	f.DeliverMessage(20, msg("201", ""))

	if gotA != 0 || gotB != 1 {
		t.Errorf("expected only the newest focus to receive, got a=%d b=%d", gotA, gotB)
	}
}

func TestFocusRegistryStaleClearDoesNotClobber(t *testing.T) {
	f := NewFocusRegistry()

	f.SetChatFocus(10, func(Message) {})
	f.SetChatFocus(20, func(Message) {})

	// Order 10's unmount arrives after order 20 took the slot.
	f.ClearChatFocus(10)

	if f.ChatOrderID() != 20 {
		t.Errorf("stale clear must not release the new owner, got order %d", f.ChatOrderID())
	}

	f.ClearChatFocus(20)
	if f.ChatOrderID() != 0 {
		t.Errorf("owner clear must release the slot, got order %d", f.ChatOrderID())
	}
}

func TestFocusRegistryModalRouting(t *testing.T) {
	f := NewFocusRegistry()

	var patched []event.ResponseRow
	reloads := 0
	f.SetModalFocus(30, func(row event.ResponseRow) { patched = append(patched, row) }, func(context.Context) { reloads++ })

	if f.PatchResponse(31, event.ResponseRow{ID: 1}) {
		t.Error("patch for another order's modal must be refused")
	}
	if !f.PatchResponse(30, event.ResponseRow{ID: 1, Status: ResponseAccepted}) {
		t.Error("patch for the focused modal must be delivered")
	}
	if !f.ReloadResponses(context.Background(), 30) {
		t.Error("reload for the focused modal must run")
	}

	if len(patched) != 1 || patched[0].ID != 1 {
		t.Fatalf("expected one patched row, got %+v", patched)
	}
	if reloads != 1 {
		t.Errorf("expected one reload, got %d", reloads)
	}
}
