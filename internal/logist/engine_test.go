package logist

import (
	"context"
	"testing"

	"github.com/8gahwyud/test-logggists-sub000/internal/backend"
	"github.com/8gahwyud/test-logggists-sub000/pkg/event"
)

// scriptRPC routes each action to a canned JSON body; unknown actions get an
// empty success reply.
func scriptRPC(bodies map[string]string) *MockRPC {
	rpc := NewMockRPC()
	rpc.CallFunc = func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
		if body, ok := bodies[action]; ok {
			return okEnvelope(body)
		}
		return okEnvelope(`{}`)
	}
	return rpc
}

func TestEngineStartupLoadsEverything(t *testing.T) {
	rpc := scriptRPC(map[string]string{
		"getUser":         `{"user":{"id":5,"display_name":"Anna"}}`,
		"getLogistOrders": `{"orders":[{"id":1,"created_by":5,"status":"pending"}]}`,
		"getNotifications": `{"notifications":[{"id":9,"user_id":5,"type":"new_response"}]}`,
		"getUserBalance":  `{"balance":"120.50"}`,
	})
	e := newTestEngine(t, rpc)
	rebinder := &MockRebinder{}
	e.SetRebinder(rebinder)

	if err := e.Startup(context.Background(), 777); err != nil {
		t.Fatalf("startup: %v", err)
	}

	if e.UserID() != 5 {
		t.Errorf("expected resolved user id 5, got %d", e.UserID())
	}
	if binds := rebinder.Rebinds(); len(binds) != 1 || binds[0] != 5 {
		t.Errorf("expected realtime rebind to user 5, got %v", binds)
	}
	if got := e.Orders.All(); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("expected one order loaded, got %+v", got)
	}
	if got := e.Notifications.All(); len(got) != 1 || got[0].ID != 9 {
		t.Errorf("expected one notification loaded, got %+v", got)
	}
	if profile, ok := e.Balance.Profile(); !ok || profile.Balance != "120.50" {
		t.Errorf("expected balance loaded, got %+v ok=%v", profile, ok)
	}
}

func TestEngineStartupUnknownUserOpensRegistration(t *testing.T) {
	rpc := scriptRPC(map[string]string{
		"getUser": `{"user_not_found":true}`,
	})
	e := newTestEngine(t, rpc)

	if err := e.Startup(context.Background(), 777); err != nil {
		t.Fatalf("startup must not fail for an unregistered user: %v", err)
	}
	if !e.Modals.IsOpen(ModalRegistration) {
		t.Error("expected the registration modal to open")
	}
	if e.UserID() != 777 {
		t.Errorf("platform id must be remembered for registration, got %d", e.UserID())
	}
}

func TestEngineStartupNetworkFailureIsReturned(t *testing.T) {
	rpc := NewMockRPC()
	rpc.CallFunc = func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
		return errEnvelope("connection refused", true)
	}
	e := newTestEngine(t, rpc)

	err := e.Startup(context.Background(), 777)
	if err == nil {
		t.Fatal("expected startup to fail on a network error")
	}
	if !IsNetworkError(err) {
		t.Errorf("expected a network-classified error, got %v", err)
	}
	if e.UserID() != 777 {
		t.Errorf("platform id must be remembered for the retry path, got %d", e.UserID())
	}
}

func TestEngineRouteNotificationInsert(t *testing.T) {
	row := event.NotificationRow{ID: 1, UserID: 5, Type: NotifyNewResponse}

	t.Run("unread notification raises a toast", func(t *testing.T) {
		e := newTestEngine(t, nil)
		e.RouteNotificationInsert(context.Background(), row)

		if got := e.Notifications.All(); len(got) != 1 {
			t.Fatalf("expected the notification stored, got %d", len(got))
		}
		if got := e.Toasts.Visible(); len(got) != 1 || got[0].ID != 1 {
			t.Errorf("expected one toast, got %v", toastIDs(got))
		}
	})

	t.Run("replayed event raises no second toast", func(t *testing.T) {
		e := newTestEngine(t, nil)
		e.RouteNotificationInsert(context.Background(), row)
		e.Toasts.Dismiss(1)

		e.RouteNotificationInsert(context.Background(), row)

		if got := e.Toasts.Visible(); len(got) != 0 {
			t.Errorf("replay must not re-toast, got %v", toastIDs(got))
		}
		if got := e.Notifications.All(); len(got) != 1 {
			t.Errorf("replay must not duplicate the row, got %d", len(got))
		}
	})

	t.Run("read notification raises no toast", func(t *testing.T) {
		e := newTestEngine(t, nil)
		read := true
		e.RouteNotificationInsert(context.Background(), event.NotificationRow{ID: 2, UserID: 5, Read: &read, Type: NotifyNewMessage})

		if got := e.Toasts.Visible(); len(got) != 0 {
			t.Errorf("read rows must not toast, got %v", toastIDs(got))
		}
	})

	t.Run("open modal suppresses the toast", func(t *testing.T) {
		e := newTestEngine(t, nil)
		if err := e.Modals.Open(ModalSettings); err != nil {
			t.Fatalf("open modal: %v", err)
		}

		e.RouteNotificationInsert(context.Background(), row)

		if got := e.Toasts.Visible(); len(got) != 0 {
			t.Errorf("no toast may surface while a modal is open, got %v", toastIDs(got))
		}
		if got := e.Notifications.All(); len(got) != 1 {
			t.Errorf("the notification itself must still be stored, got %d", len(got))
		}
	})

	t.Run("disabled preference suppresses the toast", func(t *testing.T) {
		e := newTestEngine(t, nil)
		if err := e.SetToastsEnabled(false); err != nil {
			t.Fatalf("disable toasts: %v", err)
		}

		e.RouteNotificationInsert(context.Background(), row)

		if got := e.Toasts.Visible(); len(got) != 0 {
			t.Errorf("toasts are disabled, got %v", toastIDs(got))
		}
	})
}

func TestEngineRouteMessageInsertRespectsFocus(t *testing.T) {
	rpc := scriptRPC(map[string]string{
		"getOrderMessages": `{"messages":[{"id":"101","order_id":20}]}`,
	})
	e := newTestEngine(t, rpc)

	chat, err := e.OpenChat(context.Background(), 20)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}

	e.RouteMessageInsert(context.Background(), event.MessageRow{ID: "501", OrderID: 10})
	e.RouteMessageInsert(context.Background(), event.MessageRow{ID: "201", OrderID: 20})

	assertIDs(t, chat.All(), "101", "201")

	e.CloseChat(20)
	e.RouteMessageInsert(context.Background(), event.MessageRow{ID: "202", OrderID: 20})
	assertIDs(t, chat.All(), "101", "201")
}

func TestEngineMessageRefreshDuringChatSwap(t *testing.T) {
	fetchStarted := make(chan struct{})
	fetchRelease := make(chan struct{})

	rpc := NewMockRPC()
	rpc.CallFunc = func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
		if action != "getOrderMessages" {
			return okEnvelope(`{}`)
		}
		if orderID, _ := params["order_id"].(int64); orderID == 1 {
			return okEnvelope(`{"messages":[{"id":"901","order_id":1}]}`)
		}
		return okEnvelope(`{"messages":[{"id":"201","order_id":2}]}`)
	}
	e := newTestEngine(t, rpc)

	chat1, err := e.OpenChat(context.Background(), 1)
	if err != nil {
		t.Fatalf("open chat 1: %v", err)
	}

	// The next history fetch for order 1 stalls until the chat has been
	// swapped underneath it.
	rpc.CallFunc = func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
		if action != "getOrderMessages" {
			return okEnvelope(`{}`)
		}
		if orderID, _ := params["order_id"].(int64); orderID == 1 {
			close(fetchStarted)
			<-fetchRelease
			return okEnvelope(`{"messages":[{"id":"901","order_id":1},{"id":"902","order_id":1}]}`)
		}
		return okEnvelope(`{"messages":[{"id":"201","order_id":2}]}`)
	}

	done := make(chan error, 1)
	go func() { done <- e.RefreshMessages(context.Background(), true) }()
	<-fetchStarted

	e.CloseChat(1)
	chat2, err := e.OpenChat(context.Background(), 2)
	if err != nil {
		t.Fatalf("open chat 2: %v", err)
	}

	close(fetchRelease)
	if err := <-done; err != nil {
		t.Fatalf("stale refresh: %v", err)
	}

	// Order 1's history lands in order 1's detached store, never in the chat
	// that replaced it.
	assertIDs(t, chat2.All(), "201")
	assertIDs(t, chat1.All(), "901", "902")
}

func TestEngineMessageRefreshAfterChatClose(t *testing.T) {
	fetchStarted := make(chan struct{})
	fetchRelease := make(chan struct{})

	rpc := NewMockRPC()
	rpc.CallFunc = func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
		if action == "getOrderMessages" {
			return okEnvelope(`{"messages":[{"id":"101","order_id":1}]}`)
		}
		return okEnvelope(`{}`)
	}
	e := newTestEngine(t, rpc)

	if _, err := e.OpenChat(context.Background(), 1); err != nil {
		t.Fatalf("open chat: %v", err)
	}

	rpc.CallFunc = func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
		if action == "getOrderMessages" {
			close(fetchStarted)
			<-fetchRelease
			return okEnvelope(`{"messages":[{"id":"101","order_id":1},{"id":"102","order_id":1}]}`)
		}
		return okEnvelope(`{}`)
	}

	done := make(chan error, 1)
	go func() { done <- e.RefreshMessages(context.Background(), true) }()
	<-fetchStarted

	e.CloseChat(1)
	close(fetchRelease)

	// The refresh completes against the detached store instead of crashing
	// on a chat that no longer exists.
	if err := <-done; err != nil {
		t.Fatalf("refresh after close: %v", err)
	}
	if e.Chat() != nil {
		t.Error("no chat may be mounted after close")
	}
}

func TestEngineOpenChatUnwindsOnFailedLoad(t *testing.T) {
	rpc := NewMockRPC()
	rpc.CallFunc = func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
		if action == "getOrderMessages" {
			return errEnvelope("connection refused", true)
		}
		return okEnvelope(`{}`)
	}
	e := newTestEngine(t, rpc)

	if _, err := e.OpenChat(context.Background(), 1); err == nil {
		t.Fatal("expected the failed first load to surface")
	}
	if e.Chat() != nil {
		t.Error("failed open must not leave a chat mounted")
	}
	if e.Focus.ChatOrderID() != 0 {
		t.Error("failed open must release the focus slot")
	}
	if e.Modals.IsOpen(ModalChat) {
		t.Error("failed open must not leave the chat modal open")
	}
}

func TestEngineOpenOrderModalUnwindsOnFailedLoad(t *testing.T) {
	rpc := NewMockRPC()
	rpc.CallFunc = func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
		if action == "getOrderResponses" {
			return errEnvelope("connection refused", true)
		}
		return okEnvelope(`{}`)
	}
	e := newTestEngine(t, rpc)

	if _, err := e.OpenOrderModal(context.Background(), 1); err == nil {
		t.Fatal("expected the failed first load to surface")
	}
	if e.ModalResponses() != nil {
		t.Error("failed open must not leave a response store mounted")
	}
	if e.Focus.ModalOrderID() != 0 {
		t.Error("failed open must release the focus slot")
	}
	if e.Modals.IsOpen(ModalOrderManage) {
		t.Error("failed open must not leave the order modal open")
	}
}

func TestEngineRouteResponseEvent(t *testing.T) {
	rpc := scriptRPC(map[string]string{
		"getOrderResponses": `{"responses":[{"id":1,"order_id":30,"user_id":7,"status":"pending"},{"id":2,"order_id":30,"user_id":8,"status":"pending"}]}`,
	})
	e := newTestEngine(t, rpc)

	store, err := e.OpenOrderModal(context.Background(), 30)
	if err != nil {
		t.Fatalf("open order modal: %v", err)
	}
	ordersBefore := rpc.CallCount("getLogistOrders")

	// An accept round-trips and the same change echoes back as an update
	// event; the store must end with two rows, id 1 accepted.
	if err := e.AcceptResponse(context.Background(), 1); err != nil {
		t.Fatalf("accept: %v", err)
	}
	e.RouteResponseEvent(context.Background(), event.EventUpdate, event.ResponseRow{ID: 1, OrderID: 30, Status: ResponseAccepted})

	got := store.All()
	if len(got) != 2 {
		t.Fatalf("expected exactly 2 responses, got %d", len(got))
	}
	if got[0].ID != 1 || got[0].Status != ResponseAccepted {
		t.Errorf("expected id 1 accepted, got %+v", got[0])
	}

	// Every response event refreshes the order counters, focused or not.
	if rpc.CallCount("getLogistOrders") <= ordersBefore {
		t.Error("expected a silent order refresh after the response event")
	}

	// Insert events reload the focused list instead of patching.
	loads := rpc.CallCount("getOrderResponses")
	e.RouteResponseEvent(context.Background(), event.EventInsert, event.ResponseRow{ID: 3, OrderID: 30})
	if rpc.CallCount("getOrderResponses") != loads+1 {
		t.Error("expected an insert event to trigger a response reload")
	}
}

func TestEngineRouteOrderChange(t *testing.T) {
	e := newTestEngine(t, nil)
	e.setUser(5, &User{ID: 5})

	rpc := scriptRPC(nil)
	e2 := newTestEngine(t, rpc)
	e2.setUser(5, &User{ID: 5})

	before := rpc.CallCount("getLogistOrders")
	e2.RouteOrderChange(context.Background(), event.OrderRow{ID: 1, CreatedBy: 99, Status: OrderPending})
	if rpc.CallCount("getLogistOrders") != before {
		t.Error("another user's order event must be ignored")
	}

	e2.RouteOrderChange(context.Background(), event.OrderRow{ID: 1, CreatedBy: 5, Status: OrderPending})
	if rpc.CallCount("getLogistOrders") != before+1 {
		t.Error("own order event must refresh the order list")
	}

	// A cancelled own order unlocks a pending finalize flow.
	if err := e.Finalize.Begin(42); err != nil {
		t.Fatalf("begin finalize: %v", err)
	}
	e.RouteOrderChange(context.Background(), event.OrderRow{ID: 42, CreatedBy: 5, Status: OrderCancelled})
	if _, pending := e.Finalize.Pending(); pending {
		t.Error("external cancellation must dismiss the finalize flow")
	}
}

func TestEngineSendMessageOptimistic(t *testing.T) {
	var sentClientID string
	rpc := NewMockRPC()
	rpc.CallFunc = func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
		switch action {
		case "getOrderMessages":
			return okEnvelope(`{"messages":[{"id":"101","order_id":20}]}`)
		case "sendOrderMessage":
			sentClientID, _ = params["client_id"].(string)
			return okEnvelope(`{"message":{"id":"102","client_id":"` + sentClientID + `","order_id":20,"message":"hi"}}`)
		}
		return okEnvelope(`{}`)
	}
	e := newTestEngine(t, rpc)

	chat, err := e.OpenChat(context.Background(), 20)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	if err := e.SendMessage(context.Background(), 20, "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// The optimistic temp entry must be replaced by the echoed real id.
	assertIDs(t, chat.All(), "101", "102")
	if sentClientID == "" {
		t.Error("the temporary id must travel as client_id")
	}

	// A later realtime insert carrying the same client id is a no-op in
	// shape.
	e.RouteMessageInsert(context.Background(), event.MessageRow{ID: "102", ClientID: sentClientID, OrderID: 20, Message: "hi"})
	assertIDs(t, chat.All(), "101", "102")
}

func TestEngineUpdateOrderWageEnforcesFloor(t *testing.T) {
	rpc := scriptRPC(map[string]string{
		"getLogistOrders": `{"orders":[{"id":1,"created_by":5,"status":"pending","wage_per_hour":500}]}`,
	})
	e := newTestEngine(t, rpc)
	if err := e.RefreshOrders(context.Background(), false); err != nil {
		t.Fatalf("load orders: %v", err)
	}

	if err := e.UpdateOrderWage(context.Background(), 1, 400); err == nil {
		t.Error("lowering the wage must be rejected before any RPC")
	}
	if rpc.CallCount("updateOrder") != 0 {
		t.Error("a rejected wage edit must not reach the backend")
	}

	if err := e.UpdateOrderWage(context.Background(), 1, 600); err != nil {
		t.Errorf("raising the wage must pass: %v", err)
	}
	if rpc.CallCount("updateOrder") != 1 {
		t.Error("expected the raise to be sent")
	}
}

func TestEngineRefreshOrdersReleasesCancelledFinalize(t *testing.T) {
	rpc := scriptRPC(map[string]string{
		"getLogistOrders": `{"orders":[{"id":42,"created_by":5,"status":"cancelled"}]}`,
	})
	e := newTestEngine(t, rpc)

	if err := e.Finalize.Begin(42); err != nil {
		t.Fatalf("begin finalize: %v", err)
	}
	if err := e.RefreshOrders(context.Background(), true); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, pending := e.Finalize.Pending(); pending {
		t.Error("a cancelled order seen by polling must dismiss the finalize flow")
	}
}
