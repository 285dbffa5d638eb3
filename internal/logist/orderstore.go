package logist

import (
	"sync"

	"github.com/appetiteclub/apt"
)

// OrderStore keeps the logist's order list. The order shape is too variable
// for partial patches, so every refresh replaces the whole list; replacement
// is idempotent and a stale tick racing a fresh one converges on whichever
// payload arrived last.
type OrderStore struct {
	mu     sync.RWMutex
	orders []Order
	loaded bool
	logger apt.Logger
	notify func()
}

func NewOrderStore(logger apt.Logger) *OrderStore {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &OrderStore{logger: logger}
}

// OnChange registers the re-render hook. Last registration wins.
func (s *OrderStore) OnChange(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *OrderStore) Replace(orders []Order) {
	s.mu.Lock()
	s.orders = append([]Order(nil), orders...)
	s.loaded = true
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *OrderStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// All returns a copy of the full list, most recent refresh wins.
func (s *OrderStore) All() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Order(nil), s.orders...)
}

// Active returns the orders still shown in the working view. Completed and
// cancelled orders stay in the list but are filtered out here, never deleted.
func (s *OrderStore) Active() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []Order
	for _, o := range s.orders {
		if o.Active() {
			active = append(active, o)
		}
	}
	return active
}

func (s *OrderStore) Get(id int64) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}
