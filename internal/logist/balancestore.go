package logist

import (
	"sync"
)

// BalanceStore holds the derived balance/profile projection. It is always
// refreshed wholesale; there is nothing to merge.
type BalanceStore struct {
	mu      sync.RWMutex
	profile *Profile
	notify  func()
}

func NewBalanceStore() *BalanceStore {
	return &BalanceStore{}
}

func (s *BalanceStore) OnChange(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *BalanceStore) Set(p *Profile) {
	s.mu.Lock()
	if p != nil {
		cp := *p
		s.profile = &cp
	} else {
		s.profile = nil
	}
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *BalanceStore) Profile() (*Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil, false
	}
	cp := *s.profile
	return &cp, true
}
