package logist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/appetiteclub/apt"

	"github.com/8gahwyud/test-logggists-sub000/internal/storage"
	"github.com/8gahwyud/test-logggists-sub000/pkg/event"
)

// Rebinder re-scopes the realtime channel set to a new user id. Implemented
// by the realtime manager; faked in tests.
type Rebinder interface {
	Rebind(ctx context.Context, userID int64) error
}

// Engine is the client-side synchronization core: it merges manual polling,
// optimistic local updates and realtime change events into consistent
// in-memory stores, and coordinates the modal/toast/dialog surface around
// them. All store mutation goes through the stores' merge methods; nothing
// overwrites state ad hoc.
type Engine struct {
	logger apt.Logger
	da     *DataAccess
	prefs  *storage.FileStore

	mu     sync.RWMutex
	userID int64
	user   *User

	Focus         *FocusRegistry
	Orders        *OrderStore
	Notifications *NotificationStore
	Balance       *BalanceStore
	Toasts        *ToastQueue
	Modals        *ModalCoordinator
	Dialogs       *DialogQueue
	Finalize      *FinalizeFlow

	chat           *MessageStore
	modalResponses *ResponseStore

	rebinder Rebinder

	// ordersVisible gates the orders poller the way page visibility gates
	// refreshes in a browser.
	ordersVisible bool
}

type EngineDeps struct {
	DataAccess *DataAccess
	Prefs      *storage.FileStore
	Rebinder   Rebinder
}

func NewEngine(deps EngineDeps, logger apt.Logger) *Engine {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	toasts := NewToastQueue()
	modals := NewModalCoordinator(toasts, logger)

	e := &Engine{
		logger:        logger,
		da:            deps.DataAccess,
		prefs:         deps.Prefs,
		rebinder:      deps.Rebinder,
		Focus:         NewFocusRegistry(),
		Orders:        NewOrderStore(logger),
		Notifications: NewNotificationStore(logger),
		Balance:       NewBalanceStore(),
		Toasts:        toasts,
		Modals:        modals,
		Dialogs:       NewDialogQueue(nil, logger),
		ordersVisible: true,
	}
	e.Finalize = NewFinalizeFlow(deps.DataAccess, deps.Prefs, modals, logger)
	return e
}

// SetRebinder wires the realtime manager after construction; the manager
// routes through the engine, so the two reference each other.
func (e *Engine) SetRebinder(r Rebinder) {
	e.mu.Lock()
	e.rebinder = r
	e.mu.Unlock()
}

// Startup resolves the platform user, scopes the realtime channels to it and
// performs the first (non-silent) loads. A network failure here blocks the
// whole app behind a retry screen, so it is returned rather than logged;
// ErrUserNotFound routes to registration instead.
func (e *Engine) Startup(ctx context.Context, platformUserID int64) error {
	// Remember the platform identity even when resolution fails, so the
	// retry path knows who to resolve.
	e.setUser(platformUserID, nil)

	user, err := e.da.GetUser(ctx, platformUserID)
	if err != nil {
		if err == ErrUserNotFound {
			e.setUser(platformUserID, nil)
			if openErr := e.Modals.Open(ModalRegistration); openErr != nil {
				return openErr
			}
			return nil
		}
		return fmt.Errorf("resolve user %d: %w", platformUserID, err)
	}
	e.setUser(user.ID, user)
	e.rebind(ctx, user.ID)

	if err := e.Finalize.Resume(); err != nil {
		e.logger.Error("cannot resume finalize flow", "error", err)
	}

	if err := e.RefreshOrders(ctx, false); err != nil {
		return err
	}
	if err := e.RefreshNotifications(ctx, false); err != nil {
		e.logger.Info("initial notification load failed", "error", err)
	}
	if err := e.RefreshBalance(ctx); err != nil {
		e.logger.Info("initial balance load failed", "error", err)
	}
	return nil
}

// Register creates the logist account for an unregistered platform user and
// re-runs startup under the new identity.
func (e *Engine) Register(ctx context.Context, platformUserID int64, displayName, phone string) error {
	user, err := e.da.RegisterLogist(ctx, platformUserID, displayName, phone)
	if err != nil {
		return err
	}
	if err := e.Modals.Close(ModalRegistration); err != nil {
		e.logger.Debug("registration modal close", "error", err)
	}
	e.setUser(user.ID, user)
	e.rebind(ctx, user.ID)
	return e.RefreshOrders(ctx, false)
}

// rebind re-scopes the realtime channels. Failures are logged only: the
// pollers are the correctness backstop, a missing channel degrades latency.
func (e *Engine) rebind(ctx context.Context, userID int64) {
	e.mu.RLock()
	r := e.rebinder
	e.mu.RUnlock()
	if r == nil {
		return
	}
	if err := r.Rebind(ctx, userID); err != nil {
		e.logger.Error("cannot bind realtime channels", "user_id", userID, "error", err)
	}
}

func (e *Engine) setUser(id int64, user *User) {
	e.mu.Lock()
	e.userID = id
	e.user = user
	e.mu.Unlock()
}

func (e *Engine) UserID() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userID
}

func (e *Engine) User() (*User, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.user == nil {
		return nil, false
	}
	cp := *e.user
	return &cp, true
}

// SetOrdersVisible gates the orders poller on page visibility.
func (e *Engine) SetOrdersVisible(visible bool) {
	e.mu.Lock()
	e.ordersVisible = visible
	e.mu.Unlock()
}

func (e *Engine) OrdersVisible() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ordersVisible
}

// Refreshers. Silent refreshes merge without resetting loading state so a
// tick that changes nothing never causes a list flash.

func (e *Engine) RefreshOrders(ctx context.Context, silent bool) error {
	orders, err := e.da.LogistOrders(ctx, e.UserID())
	if err != nil {
		if silent {
			e.logger.Debug("silent order refresh failed", "error", err)
			return nil
		}
		return err
	}
	e.Orders.Replace(orders)

	// An externally cancelled order releases its locked finalize flow.
	for i := range orders {
		if orders[i].Status == OrderCancelled {
			e.Finalize.HandleOrderCancelled(orders[i].ID)
		}
	}
	return nil
}

func (e *Engine) RefreshNotifications(ctx context.Context, silent bool) error {
	notifications, err := e.da.Notifications(ctx, e.UserID())
	if err != nil {
		if silent {
			e.logger.Debug("silent notification refresh failed", "error", err)
			return nil
		}
		return err
	}
	e.Notifications.Replace(notifications, silent)
	return nil
}

func (e *Engine) RefreshBalance(ctx context.Context) error {
	profile, err := e.da.UserBalance(ctx, e.UserID())
	if err != nil {
		return err
	}
	e.Balance.Set(profile)
	return nil
}

func (e *Engine) RefreshMessages(ctx context.Context, silent bool) error {
	chat := e.Chat()
	if chat == nil {
		return nil
	}
	messages, err := e.da.OrderMessages(ctx, chat.OrderID())
	if err != nil {
		if silent {
			e.logger.Debug("silent message refresh failed", "error", err)
			return nil
		}
		return err
	}
	// Merge into the store captured before the call: the chat may have been
	// closed or swapped to another order while the fetch was in flight, and
	// this history belongs to the store it was fetched for.
	chat.Merge(messages, silent)
	return nil
}

func (e *Engine) RefreshResponses(ctx context.Context, silent bool) error {
	responses := e.ModalResponses()
	if responses == nil {
		return nil
	}
	fresh, err := e.da.OrderResponses(ctx, responses.OrderID())
	if err != nil {
		if silent {
			e.logger.Debug("silent response refresh failed", "error", err)
			return nil
		}
		return err
	}
	responses.Replace(fresh)
	return nil
}

// Chat mount/unmount. Opening a chat registers the message slot with the
// focus registry; only the focused chat receives granular inserts.

func (e *Engine) OpenChat(ctx context.Context, orderID int64) (*MessageStore, error) {
	store := NewMessageStore(orderID, e.logger)

	e.mu.Lock()
	e.chat = store
	e.mu.Unlock()

	e.Focus.SetChatFocus(orderID, store.Upsert)
	if err := e.Modals.Open(ModalChat); err != nil {
		e.CloseChat(orderID)
		return nil, err
	}
	if err := e.RefreshMessages(ctx, false); err != nil {
		// A failed first load leaves nothing mounted: unwind the focus slot
		// and the modal so the coordinator state matches what the UI shows.
		e.CloseChat(orderID)
		return nil, err
	}
	return store, nil
}

func (e *Engine) CloseChat(orderID int64) {
	e.Focus.ClearChatFocus(orderID)

	e.mu.Lock()
	if e.chat != nil && e.chat.OrderID() == orderID {
		e.chat = nil
	}
	e.mu.Unlock()

	if err := e.Modals.Close(ModalChat); err != nil {
		e.logger.Debug("chat modal close", "error", err)
	}
}

func (e *Engine) Chat() *MessageStore {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chat
}

// Order-management modal mount/unmount.

func (e *Engine) OpenOrderModal(ctx context.Context, orderID int64) (*ResponseStore, error) {
	store := NewResponseStore(orderID, e.logger)

	e.mu.Lock()
	e.modalResponses = store
	e.mu.Unlock()

	e.Focus.SetModalFocus(orderID, store.Patch, func(ctx context.Context) {
		if err := e.RefreshResponses(ctx, true); err != nil {
			e.logger.Debug("response reload failed", "order_id", orderID, "error", err)
		}
	})
	if err := e.Modals.Open(ModalOrderManage); err != nil {
		e.CloseOrderModal(orderID)
		return nil, err
	}
	if err := e.RefreshResponses(ctx, false); err != nil {
		e.CloseOrderModal(orderID)
		return nil, err
	}
	return store, nil
}

func (e *Engine) CloseOrderModal(orderID int64) {
	e.Focus.ClearModalFocus(orderID)

	e.mu.Lock()
	if e.modalResponses != nil && e.modalResponses.OrderID() == orderID {
		e.modalResponses = nil
	}
	e.mu.Unlock()

	if err := e.Modals.Close(ModalOrderManage); err != nil {
		e.logger.Debug("order modal close", "error", err)
	}
}

func (e *Engine) ModalResponses() *ResponseStore {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.modalResponses
}

// Realtime routing. The realtime manager calls these from its subscription
// handlers; every path ends in an idempotent store merge, so replays and
// races with poll ticks converge.

func (e *Engine) RouteMessageInsert(ctx context.Context, row event.MessageRow) {
	m := Message{
		ID:        row.ID,
		ClientID:  row.ClientID,
		OrderID:   row.OrderID,
		UserID:    row.UserID,
		Message:   row.Message,
		CreatedAt: row.CreatedAt,
	}
	if !e.Focus.DeliverMessage(row.OrderID, m) {
		e.logger.Debug("message for unfocused chat dropped", "order_id", row.OrderID)
	}
}

func (e *Engine) RouteResponseEvent(ctx context.Context, eventType string, row event.ResponseRow) {
	switch eventType {
	case event.EventUpdate:
		e.Focus.PatchResponse(row.OrderID, row)
	case event.EventInsert, event.EventDelete:
		e.Focus.ReloadResponses(ctx, row.OrderID)
	}
	// Counters on the order cards change with every response event, focused
	// or not.
	if err := e.RefreshOrders(ctx, true); err != nil {
		e.logger.Debug("order refresh after response event failed", "error", err)
	}
}

func (e *Engine) RouteOrderChange(ctx context.Context, row event.OrderRow) {
	if row.CreatedBy != e.UserID() {
		return
	}
	if row.Status == OrderCancelled {
		e.Finalize.HandleOrderCancelled(row.ID)
	}
	if err := e.RefreshOrders(ctx, true); err != nil {
		e.logger.Debug("order refresh after order event failed", "error", err)
	}
}

func (e *Engine) RouteBalanceChange(ctx context.Context) {
	if err := e.RefreshBalance(ctx); err != nil {
		e.logger.Debug("balance refresh failed", "error", err)
	}
}

func (e *Engine) RouteNotificationInsert(ctx context.Context, row event.NotificationRow) {
	n := Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Read:      row.Read,
		Type:      row.Type,
		Payload:   row.Payload,
		CreatedAt: row.CreatedAt,
	}
	if !e.Notifications.Insert(n) {
		return
	}
	if !n.Unread() {
		return
	}
	if e.prefs != nil && !e.prefs.ToastsEnabled() {
		return
	}
	if e.Modals.AnyOpen() {
		return
	}
	e.Toasts.Push(toastFrom(n))
}

func toastFrom(n Notification) Toast {
	return Toast{
		ID:        n.ID,
		Type:      n.Type,
		Text:      toastText(n),
		CreatedAt: n.CreatedAt,
	}
}

func toastText(n Notification) string {
	var payload struct {
		Text string `json:"text"`
	}
	if len(n.Payload) > 0 {
		if err := json.Unmarshal(n.Payload, &payload); err == nil && payload.Text != "" {
			return payload.Text
		}
	}
	switch n.Type {
	case NotifyNewResponse:
		return "New response to your order"
	case NotifyResponseAccepted, NotifyOrderConfirmed:
		return "Order confirmed"
	case NotifyNewMessage:
		return "New message"
	case NotifyOrderCancelled:
		return "Order cancelled"
	default:
		return "Notification"
	}
}
