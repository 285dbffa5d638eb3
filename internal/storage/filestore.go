package storage

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var ErrNotFound = errors.New("not found")

// FinalizeState tracks how far a pending finalize flow got before the last
// shutdown, so a restart resumes at the right step instead of from scratch.
type FinalizeState string

const (
	FinalizeNotStarted    FinalizeState = "not_started"
	FinalizeSavingRatings FinalizeState = "saving_ratings"
	FinalizeCompleting    FinalizeState = "completing"
	FinalizeDone          FinalizeState = "done"
)

// FinalizeRecord is the durable backup of an in-flight payment+rating flow.
// It exists from the moment the flow opens until both backend steps succeed.
type FinalizeRecord struct {
	OrderID   int64           `json:"order_id"`
	State     FinalizeState   `json:"state"`
	Ratings   map[int64]int   `json:"ratings"`
	Expanded  map[int64]bool  `json:"expanded,omitempty"`
	StartedAt time.Time       `json:"started_at"`
}

type snapshot struct {
	Version       int             `json:"version"`
	Finalize      *FinalizeRecord `json:"finalize,omitempty"`
	ToastsEnabled *bool           `json:"toasts_enabled,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// FileStore is the client's durable local storage: a single JSON file holding
// the pending finalize record and user preferences. Corrupt or missing
// content is discarded and replaced with an empty snapshot.
type FileStore struct {
	mu   sync.RWMutex
	file *os.File
	snap *snapshot
	path string
}

func Open(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	s := &FileStore{file: f, path: path}
	if err := s.load(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Close() error { return s.file.Close() }

func (s *FileStore) load() error {
	info, err := s.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		s.snap = &snapshot{Version: 1, UpdatedAt: time.Now()}
		return s.flushLocked()
	}
	dec := json.NewDecoder(s.file)
	var snap snapshot
	if err := dec.Decode(&snap); err != nil {
		// Tolerate corrupt content: reset rather than refuse to start.
		s.snap = &snapshot{Version: 1, UpdatedAt: time.Now()}
		return s.flushLocked()
	}
	s.snap = &snap
	return nil
}

func (s *FileStore) flushLocked() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	s.snap.UpdatedAt = time.Now()
	enc := json.NewEncoder(s.file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.snap); err != nil {
		return err
	}
	pos, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	return s.file.Truncate(pos)
}

// Finalize returns the pending finalize record, if any.
func (s *FileStore) Finalize() (*FinalizeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.Finalize == nil {
		return nil, ErrNotFound
	}
	rec := *s.snap.Finalize
	return &rec, nil
}

// SaveFinalize persists the finalize record, overwriting any previous one.
func (s *FileStore) SaveFinalize(rec *FinalizeRecord) error {
	if rec == nil {
		return errors.New("finalize record is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.snap.Finalize = &cp
	return s.flushLocked()
}

// ClearFinalize removes the pending finalize record. Only called after both
// backend steps of the flow succeeded, or when the order was cancelled
// externally.
func (s *FileStore) ClearFinalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Finalize = nil
	return s.flushLocked()
}

// ToastsEnabled reports the toast notification preference. Defaults to true
// when the user never set it.
func (s *FileStore) ToastsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.ToastsEnabled == nil {
		return true
	}
	return *s.snap.ToastsEnabled
}

func (s *FileStore) SetToastsEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.ToastsEnabled = &enabled
	return s.flushLocked()
}
