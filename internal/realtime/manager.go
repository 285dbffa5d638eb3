package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/nats-io/nats.go"

	"github.com/8gahwyud/test-logggists-sub000/pkg/event"
)

// State tracks one logical channel's subscription lifecycle.
type State string

const (
	StateUnsubscribed State = "unsubscribed"
	StateSubscribing  State = "subscribing"
	StateSubscribed   State = "subscribed"
	StateErrored      State = "errored"
	StateClosed       State = "closed"
)

// Router receives routed change events. Implemented by the engine; each
// method must be safe to call from the subscription goroutine.
type Router interface {
	RouteMessageInsert(ctx context.Context, row event.MessageRow)
	RouteResponseEvent(ctx context.Context, eventType string, row event.ResponseRow)
	RouteOrderChange(ctx context.Context, row event.OrderRow)
	RouteBalanceChange(ctx context.Context)
	RouteNotificationInsert(ctx context.Context, row event.NotificationRow)
}

// Manager keeps the fixed set of change subscriptions open for one user.
// Subjects are scoped by user id, which filters server-side; the
// notification channel keeps an additional client-side id check because the
// subject filter proved unreliable for it. Subscription errors are logged
// only: the pollers are the correctness backstop, a broken channel degrades
// latency, not correctness.
type Manager struct {
	conn   *nats.Conn
	router Router
	logger apt.Logger

	mu     sync.Mutex
	userID int64
	subs   []*nats.Subscription
	states map[event.Channel]State
}

func NewManager(conn *nats.Conn, router Router, logger apt.Logger) *Manager {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	states := make(map[event.Channel]State, len(event.Channels))
	for _, ch := range event.Channels {
		states[ch] = StateUnsubscribed
	}
	return &Manager{
		conn:   conn,
		router: router,
		logger: logger,
		states: states,
	}
}

// Rebind tears down every channel and re-opens it scoped to userID. Called
// at startup and whenever the identity changes.
func (m *Manager) Rebind(ctx context.Context, userID int64) error {
	if m.conn == nil {
		return fmt.Errorf("realtime manager not connected")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	m.userID = userID

	for _, ch := range event.Channels {
		m.states[ch] = StateSubscribing
		channel := ch
		sub, err := m.conn.Subscribe(event.Subject(channel, userID), func(msg *nats.Msg) {
			m.handleEvent(ctx, channel, msg.Data)
		})
		if err != nil {
			m.states[channel] = StateErrored
			m.logger.Error("cannot subscribe", "channel", string(channel), "error", err)
			continue
		}
		m.subs = append(m.subs, sub)
		m.states[channel] = StateSubscribed
	}

	m.logger.Info("realtime channels bound", "user_id", userID)
	return nil
}

// Close drops every subscription.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	for _, ch := range event.Channels {
		m.states[ch] = StateClosed
	}
	return nil
}

func (m *Manager) teardownLocked() {
	for _, sub := range m.subs {
		if err := sub.Unsubscribe(); err != nil {
			m.logger.Debug("unsubscribe failed", "error", err)
		}
	}
	m.subs = nil
	for _, ch := range event.Channels {
		m.states[ch] = StateUnsubscribed
	}
}

// ChannelState reports the lifecycle state of one channel.
func (m *Manager) ChannelState(ch event.Channel) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[ch]
}

// handleEvent decodes the change envelope and routes it. Malformed events
// are logged and dropped; the next poll tick reconciles whatever they
// carried.
func (m *Manager) handleEvent(ctx context.Context, ch event.Channel, data []byte) {
	var evt event.ChangeEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		m.logger.Info("invalid change event", "channel", string(ch), "error", err)
		return
	}

	switch ch {
	case event.ChannelMessages:
		if evt.EventType != event.EventInsert {
			return
		}
		var row event.MessageRow
		if err := json.Unmarshal(evt.Row, &row); err != nil {
			m.logger.Info("invalid message row", "error", err)
			return
		}
		m.router.RouteMessageInsert(ctx, row)

	case event.ChannelResponses:
		var row event.ResponseRow
		if err := json.Unmarshal(evt.Row, &row); err != nil {
			m.logger.Info("invalid response row", "error", err)
			return
		}
		m.router.RouteResponseEvent(ctx, evt.EventType, row)

	case event.ChannelOrders:
		var row event.OrderRow
		if err := json.Unmarshal(evt.Row, &row); err != nil {
			m.logger.Info("invalid order row", "error", err)
			return
		}
		m.router.RouteOrderChange(ctx, row)

	case event.ChannelTransactions, event.ChannelUsers:
		m.router.RouteBalanceChange(ctx)

	case event.ChannelNotifications:
		if evt.EventType != event.EventInsert {
			return
		}
		var row event.NotificationRow
		if err := json.Unmarshal(evt.Row, &row); err != nil {
			m.logger.Info("invalid notification row", "error", err)
			return
		}
		// The subject is already user-scoped, but this filter has proven
		// unreliable for notifications; keep the defensive check.
		m.mu.Lock()
		userID := m.userID
		m.mu.Unlock()
		if row.UserID != userID {
			m.logger.Debug("notification for another user dropped", "user_id", row.UserID)
			return
		}
		m.router.RouteNotificationInsert(ctx, row)

	default:
		m.logger.Debug("event on unknown channel", "channel", string(ch))
	}
}
