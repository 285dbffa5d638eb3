package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Channel names the six logical change feeds published by the backend.
type Channel string

const (
	ChannelOrders        Channel = "orders"
	ChannelResponses     Channel = "responses"
	ChannelMessages      Channel = "messages"
	ChannelTransactions  Channel = "transactions"
	ChannelUsers         Channel = "users"
	ChannelNotifications Channel = "notifications"
)

// Channels lists every feed a client keeps open for one user.
var Channels = []Channel{
	ChannelOrders,
	ChannelResponses,
	ChannelMessages,
	ChannelTransactions,
	ChannelUsers,
	ChannelNotifications,
}

const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Subject builds the user-scoped NATS subject for a channel. The backend
// publishes each row change to the subject of the user that owns the row,
// which gives us server-side filtering for free.
func Subject(ch Channel, userID int64) string {
	return fmt.Sprintf("logist.%s.%d", ch, userID)
}

// ChangeEvent is the envelope carried on every change subject. Row holds the
// raw row payload and is decoded per channel by the consumer.
type ChangeEvent struct {
	EventType  string          `json:"event_type"`
	Channel    Channel         `json:"channel"`
	OccurredAt time.Time       `json:"occurred_at"`
	Row        json.RawMessage `json:"row"`
}

// OrderRow is the order projection carried in order change events.
type OrderRow struct {
	ID        int64  `json:"id"`
	CreatedBy int64  `json:"created_by"`
	Status    string `json:"status"`
}

// ResponseRow carries a worker response row. Update events only populate the
// fields that changed; the consumer patches them onto the stored entry.
type ResponseRow struct {
	ID      int64  `json:"id"`
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Status  string `json:"status,omitempty"`
}

// MessageRow carries a chat message row. ClientID echoes the temporary id the
// sender attached so optimistic entries can be replaced in place.
type MessageRow struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id,omitempty"`
	OrderID   int64     `json:"order_id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationRow carries a notification row. Read is a pointer because the
// backend omits the field entirely for rows that were never touched.
type NotificationRow struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Read      *bool           `json:"is_read,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
