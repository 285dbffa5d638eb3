package logist

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/8gahwyud/test-logggists-sub000/internal/backend"
	"github.com/8gahwyud/test-logggists-sub000/internal/storage"
)

// MockRPC is a mock implementation of RPCClient for testing.
type MockRPC struct {
	mu                sync.Mutex
	CallFunc          func(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope
	CallMultipartFunc func(ctx context.Context, action string, params map[string]string, files []backend.File) *backend.Envelope
	calls             []string
}

func NewMockRPC() *MockRPC {
	return &MockRPC{}
}

func (m *MockRPC) Call(ctx context.Context, action string, params map[string]interface{}) *backend.Envelope {
	m.mu.Lock()
	m.calls = append(m.calls, action)
	m.mu.Unlock()
	if m.CallFunc != nil {
		return m.CallFunc(ctx, action, params)
	}
	return okEnvelope(`{}`)
}

func (m *MockRPC) CallMultipart(ctx context.Context, action string, params map[string]string, files []backend.File) *backend.Envelope {
	m.mu.Lock()
	m.calls = append(m.calls, action)
	m.mu.Unlock()
	if m.CallMultipartFunc != nil {
		return m.CallMultipartFunc(ctx, action, params, files)
	}
	return okEnvelope(`{}`)
}

// Calls returns the actions invoked so far, in order.
func (m *MockRPC) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times one action was invoked.
func (m *MockRPC) CallCount(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.calls {
		if a == action {
			count++
		}
	}
	return count
}

func okEnvelope(body string) *backend.Envelope {
	return &backend.Envelope{Success: true, Data: json.RawMessage(body)}
}

func errEnvelope(message string, network bool) *backend.Envelope {
	return &backend.Envelope{Success: false, Error: message, IsNetworkError: network}
}

// MockRebinder records realtime rebind requests.
type MockRebinder struct {
	mu      sync.Mutex
	userIDs []int64
	Err     error
}

func (m *MockRebinder) Rebind(ctx context.Context, userID int64) error {
	m.mu.Lock()
	m.userIDs = append(m.userIDs, userID)
	m.mu.Unlock()
	return m.Err
}

func (m *MockRebinder) Rebinds() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.userIDs...)
}

// newTestEngine builds an engine over a mock backend and a temp-file store.
func newTestEngine(t *testing.T, rpc *MockRPC) *Engine {
	t.Helper()
	store, err := storage.Open(t.TempDir() + "/logist.json")
	if err != nil {
		t.Fatalf("cannot open test storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if rpc == nil {
		rpc = NewMockRPC()
	}
	return NewEngine(EngineDeps{
		DataAccess: NewDataAccess(rpc),
		Prefs:      store,
	}, nil)
}
