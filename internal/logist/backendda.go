package logist

import (
	"context"
	"errors"
	"fmt"

	"github.com/8gahwyud/test-logggists-sub000/internal/backend"
)

// ErrUserNotFound marks the distinguished success-shaped "user_not_found"
// reply that routes to registration instead of an error screen.
var ErrUserNotFound = errors.New("user not found")

// BackendError carries an application or transport failure from the backend.
// Message is the server-provided text, passed through verbatim to the UI.
type BackendError struct {
	Action  string
	Message string
	Network bool
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// IsNetworkError reports whether err is a transport failure, as opposed to a
// request the backend received and rejected.
func IsNetworkError(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Network
}

// ErrorMessage extracts the verbatim server message for the UI, falling back
// to the plain error text.
func ErrorMessage(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func envErr(action string, env *backend.Envelope) error {
	return &BackendError{Action: action, Message: env.Error, Network: env.IsNetworkError}
}

// RPCClient is the slice of the backend client the data access layer needs.
type RPCClient interface {
	Call(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope
	CallMultipart(ctx context.Context, action string, params map[string]string, files []backend.File) *backend.Envelope
}

// DataAccess centralizes decoding of backend action replies.
type DataAccess struct {
	client RPCClient
}

func NewDataAccess(client RPCClient) *DataAccess {
	return &DataAccess{client: client}
}

func (da *DataAccess) call(ctx context.Context, action string, params map[string]interface{}, dest interface{}) error {
	if da == nil || da.client == nil {
		return fmt.Errorf("backend client not configured")
	}
	env := da.client.Call(ctx, action, params)
	if !env.Success {
		return envErr(action, env)
	}
	if dest == nil {
		return nil
	}
	if err := env.Decode(dest); err != nil {
		return fmt.Errorf("decode %s reply: %w", action, err)
	}
	return nil
}

func (da *DataAccess) LogistOrders(ctx context.Context, userID int64) ([]Order, error) {
	var body struct {
		Orders []Order `json:"orders"`
	}
	err := da.call(ctx, "getLogistOrders", map[string]interface{}{"user_id": userID}, &body)
	if err != nil {
		return nil, err
	}
	return body.Orders, nil
}

func (da *DataAccess) CreateOrder(ctx context.Context, fields map[string]string, photos []backend.File) (*Order, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("backend client not configured")
	}
	env := da.client.CallMultipart(ctx, "createOrder", fields, photos)
	if !env.Success {
		return nil, envErr("createOrder", env)
	}
	var body struct {
		Order Order `json:"order"`
	}
	if err := env.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode createOrder reply: %w", err)
	}
	return &body.Order, nil
}

func (da *DataAccess) UpdateOrder(ctx context.Context, orderID int64, fields map[string]interface{}) (*Order, error) {
	params := map[string]interface{}{"order_id": orderID}
	for k, v := range fields {
		params[k] = v
	}
	var body struct {
		Order Order `json:"order"`
	}
	if err := da.call(ctx, "updateOrder", params, &body); err != nil {
		return nil, err
	}
	return &body.Order, nil
}

func (da *DataAccess) OrderResponses(ctx context.Context, orderID int64) ([]Response, error) {
	var body struct {
		Responses []Response `json:"responses"`
	}
	err := da.call(ctx, "getOrderResponses", map[string]interface{}{"order_id": orderID}, &body)
	if err != nil {
		return nil, err
	}
	return body.Responses, nil
}

func (da *DataAccess) UpdateResponseStatus(ctx context.Context, responseID int64, status string) error {
	return da.call(ctx, "updateResponseStatus", map[string]interface{}{
		"response_id": responseID,
		"status":      status,
	}, nil)
}

func (da *DataAccess) RejectResponse(ctx context.Context, responseID int64) error {
	return da.call(ctx, "rejectResponse", map[string]interface{}{"response_id": responseID}, nil)
}

func (da *DataAccess) OrderMessages(ctx context.Context, orderID int64) ([]Message, error) {
	var body struct {
		Messages []Message `json:"messages"`
	}
	err := da.call(ctx, "getOrderMessages", map[string]interface{}{"order_id": orderID}, &body)
	if err != nil {
		return nil, err
	}
	return body.Messages, nil
}

// SendOrderMessage forwards a chat message. clientID is the temporary id of
// the optimistic local entry; the backend echoes it back on the realtime
// channel so the entry can be replaced in place.
func (da *DataAccess) SendOrderMessage(ctx context.Context, orderID, userID int64, text, clientID string) (*Message, error) {
	var body struct {
		Message Message `json:"message"`
	}
	err := da.call(ctx, "sendOrderMessage", map[string]interface{}{
		"order_id":  orderID,
		"user_id":   userID,
		"message":   text,
		"client_id": clientID,
	}, &body)
	if err != nil {
		return nil, err
	}
	return &body.Message, nil
}

func (da *DataAccess) UserBalance(ctx context.Context, userID int64) (*Profile, error) {
	var body Profile
	err := da.call(ctx, "getUserBalance", map[string]interface{}{"user_id": userID}, &body)
	if err != nil {
		return nil, err
	}
	return &body, nil
}

func (da *DataAccess) Notifications(ctx context.Context, userID int64) ([]Notification, error) {
	var body struct {
		Notifications []Notification `json:"notifications"`
	}
	err := da.call(ctx, "getNotifications", map[string]interface{}{"user_id": userID}, &body)
	if err != nil {
		return nil, err
	}
	return body.Notifications, nil
}

func (da *DataAccess) MarkNotificationRead(ctx context.Context, id int64) error {
	return da.call(ctx, "markNotificationAsRead", map[string]interface{}{"notification_id": id}, nil)
}

func (da *DataAccess) DeleteNotification(ctx context.Context, id int64) error {
	return da.call(ctx, "deleteNotification", map[string]interface{}{"notification_id": id}, nil)
}

func (da *DataAccess) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var body struct {
		Subscriptions []Subscription `json:"subscriptions"`
	}
	err := da.call(ctx, "getSubscriptions", nil, &body)
	if err != nil {
		return nil, err
	}
	return body.Subscriptions, nil
}

func (da *DataAccess) SavePerformerRatings(ctx context.Context, orderID int64, ratings map[int64]int) error {
	rated := make(map[string]interface{}, len(ratings))
	for userID, stars := range ratings {
		rated[fmt.Sprintf("%d", userID)] = stars
	}
	return da.call(ctx, "savePerformerRatings", map[string]interface{}{
		"order_id": orderID,
		"ratings":  rated,
	}, nil)
}

func (da *DataAccess) CompleteOrderAfterRating(ctx context.Context, orderID int64) error {
	return da.call(ctx, "completeOrderAfterRating", map[string]interface{}{"order_id": orderID}, nil)
}

func (da *DataAccess) CancelOrderByLogist(ctx context.Context, orderID int64) error {
	return da.call(ctx, "cancelOrderByLogist", map[string]interface{}{"order_id": orderID}, nil)
}

func (da *DataAccess) CancellationCommission(ctx context.Context, orderID int64) (float64, error) {
	var body struct {
		Amount float64 `json:"amount"`
	}
	err := da.call(ctx, "getCancellationCommissionAmount", map[string]interface{}{"order_id": orderID}, &body)
	if err != nil {
		return 0, err
	}
	return body.Amount, nil
}

// GetUser resolves the current platform user. A success-shaped reply with
// user_not_found set means the user has no account yet and must register.
func (da *DataAccess) GetUser(ctx context.Context, userID int64) (*User, error) {
	var body struct {
		User         *User `json:"user"`
		UserNotFound bool  `json:"user_not_found"`
	}
	err := da.call(ctx, "getUser", map[string]interface{}{"user_id": userID}, &body)
	if err != nil {
		return nil, err
	}
	if body.UserNotFound || body.User == nil {
		return nil, ErrUserNotFound
	}
	return body.User, nil
}

func (da *DataAccess) RegisterLogist(ctx context.Context, userID int64, displayName, phone string) (*User, error) {
	var body struct {
		User User `json:"user"`
	}
	err := da.call(ctx, "registerLogist", map[string]interface{}{
		"user_id":      userID,
		"display_name": displayName,
		"phone":        phone,
	}, &body)
	if err != nil {
		return nil, err
	}
	return &body.User, nil
}
