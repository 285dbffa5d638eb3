package logist

import (
	"encoding/json"
	"time"
)

// Order statuses as reported by the backend. The working phase arrives under
// two spellings depending on the backend version.
const (
	OrderPending    = "pending"
	OrderAccepted   = "accepted"
	OrderInProgress = "in_progress"
	OrderWorking    = "working"
	OrderCompleted  = "completed"
	OrderCancelled  = "cancelled"
)

// Response statuses.
const (
	ResponsePending    = "pending"
	ResponseAccepted   = "accepted"
	ResponseRejected   = "rejected"
	ResponseConfirmed  = "confirmed"
	ResponseInProgress = "in_progress"
)

// Notification payload types.
const (
	NotifyNewResponse      = "new_response"
	NotifyResponseAccepted = "response_accepted"
	NotifyOrderConfirmed   = "order_confirmed"
	NotifyNewMessage       = "new_message"
	NotifyOrderCancelled   = "order_cancelled"
)

type Order struct {
	ID              int64     `json:"id"`
	CreatedBy       int64     `json:"created_by"`
	Status          string    `json:"status"`
	RequiredSlots   int       `json:"required_slots"`
	WagePerHour     float64   `json:"wage_per_hour"`
	DurationHours   int       `json:"duration_hours"`
	CollectedAmount float64   `json:"collected_amount"`
	MetroStation    string    `json:"metro_station"`
	Photos          []string  `json:"photos,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Active reports whether the order still belongs in the working list. Orders
// are never deleted locally, only filtered out of the active view.
func (o *Order) Active() bool {
	return o.Status != OrderCompleted && o.Status != OrderCancelled
}

// InProgress reports whether the job is running, under either spelling.
func (o *Order) InProgress() bool {
	return o.Status == OrderInProgress || o.Status == OrderWorking
}

type Response struct {
	ID      int64  `json:"id"`
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Status  string `json:"status"`
}

// Message is one chat entry. Optimistically sent messages carry a temporary
// id until the backend echoes the real one; ClientID links the two.
type Message struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id,omitempty"`
	OrderID   int64     `json:"order_id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Notification struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Read      *bool           `json:"is_read,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Unread treats an absent read flag as unread. The backend omits the field
// for rows it never touched, so nil and explicit false mean the same thing
// here.
func (n *Notification) Unread() bool {
	return n.Read == nil || !*n.Read
}

type Transaction struct {
	ID        int64     `json:"id"`
	Amount    float64   `json:"amount"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the wholesale-refreshed balance/profile projection. It is never
// merged incrementally; every refresh replaces the whole thing.
type Profile struct {
	Balance         string        `json:"balance"`
	Transactions    []Transaction `json:"transactions,omitempty"`
	Tier            string        `json:"subscription_tier"`
	OrdersToday     int           `json:"orders_today"`
	ResponsesToday  int           `json:"responses_today"`
}

type Subscription struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone,omitempty"`
}
