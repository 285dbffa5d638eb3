package logist

import (
	"strings"
	"sync"

	"github.com/appetiteclub/apt"
)

const tempIDPrefix = "tmp-"

// MessageStore holds the chat history for one open chat. It only exists
// while that chat is mounted; the focus registry routes granular realtime
// updates to whichever instance is current.
//
// Two merge paths keep the list flicker-free:
//   - silent poll ticks append only the suffix past the last known server id
//     (see Merge), so unchanged prefixes are never replaced;
//   - single inserts upsert by id, replacing an optimistic temporary entry in
//     place once the backend echoes the real id (see Upsert).
type MessageStore struct {
	mu      sync.RWMutex
	orderID int64
	msgs    []Message
	loaded  bool
	logger  apt.Logger
	notify  func()
}

func NewMessageStore(orderID int64, logger apt.Logger) *MessageStore {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &MessageStore{orderID: orderID, logger: logger}
}

func (s *MessageStore) OrderID() int64 { return s.orderID }

func (s *MessageStore) OnChange(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *MessageStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *MessageStore) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.msgs...)
}

// Merge applies a freshly fetched history. The first (non-silent) load always
// replaces the list wholesale. Silent ticks look up the last known server id
// inside the fresh list: when found, only the suffix after it is appended,
// which preserves optimistic temporary entries that have not round-tripped
// yet. When the id is gone (first load, reordering) the fresh list wins.
func (s *MessageStore) Merge(fresh []Message, silent bool) {
	s.mu.Lock()
	changed := s.mergeLocked(fresh, silent)
	fn := s.notify
	s.mu.Unlock()
	if changed && fn != nil {
		fn()
	}
}

func (s *MessageStore) mergeLocked(fresh []Message, silent bool) bool {
	if !silent || !s.loaded {
		s.msgs = append([]Message(nil), fresh...)
		s.loaded = true
		return true
	}

	lastID := s.lastServerIDLocked()
	if lastID == "" {
		s.msgs = append([]Message(nil), fresh...)
		return true
	}

	idx := -1
	for i, m := range fresh {
		if m.ID == lastID {
			idx = i
			break
		}
	}
	if idx == -1 {
		// The anchor disappeared from the server list; safest to replace.
		s.msgs = append([]Message(nil), fresh...)
		return true
	}
	if idx == len(fresh)-1 {
		return false
	}
	s.msgs = append(s.msgs, fresh[idx+1:]...)
	return true
}

// lastServerIDLocked finds the newest message that already has a server id.
// Optimistic entries carry a temporary id and are skipped: the diff anchor
// must be something the server list can contain.
func (s *MessageStore) lastServerIDLocked() string {
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if !strings.HasPrefix(s.msgs[i].ID, tempIDPrefix) {
			return s.msgs[i].ID
		}
	}
	return ""
}

// Upsert applies one message. Matching by id replaces in place; a message
// echoing a known client id replaces the optimistic temporary entry in place;
// otherwise the message is appended. Applying the same message twice is a
// no-op in shape: the second application only rewrites identical fields.
func (s *MessageStore) Upsert(m Message) {
	s.mu.Lock()
	for i := range s.msgs {
		if s.msgs[i].ID == m.ID {
			s.msgs[i] = m
			fn := s.notify
			s.mu.Unlock()
			if fn != nil {
				fn()
			}
			return
		}
	}
	if m.ClientID != "" {
		for i := range s.msgs {
			if s.msgs[i].ID == m.ClientID {
				s.msgs[i] = m
				fn := s.notify
				s.mu.Unlock()
				if fn != nil {
					fn()
				}
				return
			}
		}
	}
	s.msgs = append(s.msgs, m)
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
