package logist

import (
	"sync"

	"github.com/appetiteclub/apt"
)

// NotificationStore keeps the persistent notification list for the session.
// New rows arrive both from bulk fetches and from realtime pushes; every
// entry point dedupes by id so the two sources can race freely.
type NotificationStore struct {
	mu            sync.RWMutex
	notifications []Notification
	loaded        bool
	logger        apt.Logger
	notify        func()
}

func NewNotificationStore(logger apt.Logger) *NotificationStore {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &NotificationStore{logger: logger}
}

func (s *NotificationStore) OnChange(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *NotificationStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *NotificationStore) All() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.notifications...)
}

func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for i := range s.notifications {
		if s.notifications[i].Unread() {
			count++
		}
	}
	return count
}

// Replace applies a bulk fetch. Silent ticks keep entries that arrived via
// realtime push between the fetch being issued and applied: anything in
// memory but missing from the fetched list is prepended rather than lost.
func (s *NotificationStore) Replace(fresh []Notification, silent bool) {
	s.mu.Lock()
	if silent && s.loaded {
		seen := make(map[int64]bool, len(fresh))
		for _, n := range fresh {
			seen[n.ID] = true
		}
		var kept []Notification
		for _, n := range s.notifications {
			if !seen[n.ID] {
				kept = append(kept, n)
			}
		}
		s.notifications = append(kept, fresh...)
	} else {
		s.notifications = append([]Notification(nil), fresh...)
	}
	s.loaded = true
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Insert adds a pushed notification, newest first. Returns false when the id
// is already present, so callers can skip the toast for replayed events.
func (s *NotificationStore) Insert(n Notification) bool {
	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == n.ID {
			s.mu.Unlock()
			return false
		}
	}
	s.notifications = append([]Notification{n}, s.notifications...)
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
	return true
}

func (s *NotificationStore) MarkRead(id int64) {
	s.mu.Lock()
	changed := false
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			read := true
			s.notifications[i].Read = &read
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

func (s *NotificationStore) Delete(id int64) {
	s.mu.Lock()
	changed := false
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
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
