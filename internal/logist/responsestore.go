package logist

import (
	"sync"

	"github.com/appetiteclub/apt"

	"github.com/8gahwyud/test-logggists-sub000/pkg/event"
)

// ResponseStore holds the worker responses for one open order-management
// modal. Entries are upserted by id so replaying an event never duplicates a
// row; realtime update events take the patch path, inserts and deletes fall
// back to a full reload driven by the engine.
type ResponseStore struct {
	mu        sync.RWMutex
	orderID   int64
	responses []Response
	loaded    bool
	logger    apt.Logger
	notify    func()
}

func NewResponseStore(orderID int64, logger apt.Logger) *ResponseStore {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &ResponseStore{orderID: orderID, logger: logger}
}

func (s *ResponseStore) OrderID() int64 { return s.orderID }

func (s *ResponseStore) OnChange(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *ResponseStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *ResponseStore) All() []Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Response(nil), s.responses...)
}

func (s *ResponseStore) Get(id int64) (Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.responses {
		if r.ID == id {
			return r, true
		}
	}
	return Response{}, false
}

func (s *ResponseStore) Replace(responses []Response) {
	s.mu.Lock()
	s.responses = append([]Response(nil), responses...)
	s.loaded = true
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Upsert replaces an existing entry in place, preserving list position, or
// appends when the id is new.
func (s *ResponseStore) Upsert(r Response) {
	s.mu.Lock()
	replaced := false
	for i := range s.responses {
		if s.responses[i].ID == r.ID {
			s.responses[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		s.responses = append(s.responses, r)
	}
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Patch merges only the fields present in a realtime update row onto the
// stored entry. Unknown ids are ignored; the next poll tick reconciles.
func (s *ResponseStore) Patch(row event.ResponseRow) {
	s.mu.Lock()
	changed := false
	for i := range s.responses {
		if s.responses[i].ID == row.ID {
			if row.Status != "" && s.responses[i].Status != row.Status {
				s.responses[i].Status = row.Status
				changed = true
			}
			if row.UserID != 0 && s.responses[i].UserID != row.UserID {
				s.responses[i].UserID = row.UserID
				changed = true
			}
			break
		}
	}
	fn := s.notify
	s.mu.Unlock()
	if changed && fn != nil {
		fn()
	}
}

func (s *ResponseStore) Remove(id int64) {
	s.mu.Lock()
	changed := false
	for i := range s.responses {
		if s.responses[i].ID == id {
			s.responses = append(s.responses[:i], s.responses[i+1:]...)
			changed = true
			break
		}
	}
	fn := s.notify
	s.mu.Unlock()
	if changed && fn != nil {
		fn()
	}
}
