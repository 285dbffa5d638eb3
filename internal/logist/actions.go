package logist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/8gahwyud/test-logggists-sub000/internal/backend"
)

// User-facing operations. Every mutating action either ends in a state
// refresh or returns the backend failure for the UI to surface; nothing is
// swallowed silently. Validation failures are blocked before any RPC leaves.

// SendMessage appends an optimistic entry with a temporary id, then forwards
// the message. The backend echoes the temporary id as client_id, so both the
// RPC reply and the realtime insert replace the entry in place instead of
// duplicating it.
func (e *Engine) SendMessage(ctx context.Context, orderID int64, text string) error {
	if text == "" {
		return fmt.Errorf("message is empty")
	}
	chat := e.Chat()
	if chat == nil || chat.OrderID() != orderID {
		return fmt.Errorf("chat for order %d is not open", orderID)
	}

	tempID := tempIDPrefix + uuid.NewString()
	chat.Upsert(Message{
		ID:        tempID,
		OrderID:   orderID,
		UserID:    e.UserID(),
		Message:   text,
		CreatedAt: time.Now(),
	})

	sent, err := e.da.SendOrderMessage(ctx, orderID, e.UserID(), text, tempID)
	if err != nil {
		return err
	}
	if sent.ClientID == "" {
		sent.ClientID = tempID
	}
	chat.Upsert(*sent)
	return nil
}

// CreateOrder validates photo limits client-side, normalizes the duration
// and ships the multipart payload.
func (e *Engine) CreateOrder(ctx context.Context, fields map[string]string, durationHours float64, photos []backend.File) (*Order, error) {
	sizes := make([]int, len(photos))
	for i := range photos {
		sizes[i] = len(photos[i].Content)
	}
	if err := ValidatePhotos(sizes); err != nil {
		return nil, err
	}

	params := make(map[string]string, len(fields)+2)
	for k, v := range fields {
		params[k] = v
	}
	params["user_id"] = fmt.Sprintf("%d", e.UserID())
	params["duration_hours"] = fmt.Sprintf("%d", NormalizeDuration(durationHours))

	order, err := e.da.CreateOrder(ctx, params, photos)
	if err != nil {
		return nil, err
	}
	if refreshErr := e.RefreshOrders(ctx, true); refreshErr != nil {
		e.logger.Debug("order refresh after create failed", "error", refreshErr)
	}
	return order, nil
}

// UpdateOrderWage enforces the wage floor before any RPC: an edit below the
// original wage is rejected and the UI reverts to the last valid value.
func (e *Engine) UpdateOrderWage(ctx context.Context, orderID int64, wage float64) error {
	order, ok := e.Orders.Get(orderID)
	if !ok {
		return fmt.Errorf("order %d not found", orderID)
	}
	if err := ValidateWageEdit(order.WagePerHour, wage); err != nil {
		return err
	}
	if _, err := e.da.UpdateOrder(ctx, orderID, map[string]interface{}{"wage_per_hour": wage}); err != nil {
		return err
	}
	return e.RefreshOrders(ctx, true)
}

func (e *Engine) AcceptResponse(ctx context.Context, responseID int64) error {
	return e.setResponseStatus(ctx, responseID, ResponseAccepted)
}

func (e *Engine) ConfirmResponse(ctx context.Context, responseID int64) error {
	return e.setResponseStatus(ctx, responseID, ResponseConfirmed)
}

func (e *Engine) setResponseStatus(ctx context.Context, responseID int64, status string) error {
	if err := e.da.UpdateResponseStatus(ctx, responseID, status); err != nil {
		return err
	}
	if store := e.ModalResponses(); store != nil {
		if r, ok := store.Get(responseID); ok {
			r.Status = status
			store.Upsert(r)
		}
	}
	return e.RefreshOrders(ctx, true)
}

func (e *Engine) RejectResponse(ctx context.Context, responseID int64) error {
	if err := e.da.RejectResponse(ctx, responseID); err != nil {
		return err
	}
	if store := e.ModalResponses(); store != nil {
		if r, ok := store.Get(responseID); ok {
			r.Status = ResponseRejected
			store.Upsert(r)
		}
	}
	return e.RefreshOrders(ctx, true)
}

// CancelOrder fetches the cancellation commission, confirms it with the user
// through the serialized dialog queue and only then cancels.
func (e *Engine) CancelOrder(ctx context.Context, orderID int64) error {
	amount, err := e.da.CancellationCommission(ctx, orderID)
	if err != nil {
		return err
	}
	prompt := fmt.Sprintf("Cancel this order? Commission: %.2f", amount)
	ok, err := e.Dialogs.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := e.da.CancelOrderByLogist(ctx, orderID); err != nil {
		return err
	}
	e.Finalize.HandleOrderCancelled(orderID)
	return e.RefreshOrders(ctx, true)
}

func (e *Engine) MarkNotificationRead(ctx context.Context, id int64) error {
	if err := e.da.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	e.Notifications.MarkRead(id)
	return nil
}

func (e *Engine) DeleteNotification(ctx context.Context, id int64) error {
	if err := e.da.DeleteNotification(ctx, id); err != nil {
		return err
	}
	e.Notifications.Delete(id)
	return nil
}

// Subscriptions lists the available subscription plans for the subscription
// modal. Plans are fetched on demand, not cached; the modal opens rarely.
func (e *Engine) Subscriptions(ctx context.Context) ([]Subscription, error) {
	return e.da.Subscriptions(ctx)
}

func (e *Engine) SetToastsEnabled(enabled bool) error {
	if e.prefs == nil {
		return fmt.Errorf("preferences storage not configured")
	}
	return e.prefs.SetToastsEnabled(enabled)
}

// CompleteFinalize runs the finalize chain and refreshes the order list once
// the flow closed.
func (e *Engine) CompleteFinalize(ctx context.Context) error {
	if err := e.Finalize.Complete(ctx); err != nil {
		return err
	}
	return e.RefreshOrders(ctx, true)
}
