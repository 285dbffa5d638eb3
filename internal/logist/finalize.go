package logist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/8gahwyud/test-logggists-sub000/internal/storage"
)

// FinalizeFlow drives the end-of-job payment confirmation + rating sequence.
// Once started it cannot be dismissed by the user: the modal stays locked
// until both backend steps succeed or the order is cancelled externally. The
// durable record in local storage is the single source of truth for "is
// there a pending flow" across restarts, and its state enum lets a crashed
// chain resume at the right step instead of restarting.
type FinalizeFlow struct {
	mu     sync.Mutex
	da     *DataAccess
	store  *storage.FileStore
	modals *ModalCoordinator
	logger apt.Logger
	rec    *storage.FinalizeRecord
}

func NewFinalizeFlow(da *DataAccess, store *storage.FileStore, modals *ModalCoordinator, logger apt.Logger) *FinalizeFlow {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &FinalizeFlow{da: da, store: store, modals: modals, logger: logger}
}

// Resume re-opens a pending flow found in durable storage. Called on every
// startup before the orders view is served.
func (f *FinalizeFlow) Resume() error {
	rec, err := f.store.Finalize()
	if err != nil {
		if err == storage.ErrNotFound {
			return nil
		}
		return err
	}

	f.mu.Lock()
	f.rec = rec
	f.mu.Unlock()

	f.logger.Info("resuming pending finalize flow", "order_id", rec.OrderID, "state", string(rec.State))
	if f.modals != nil {
		return f.modals.Open(ModalFinalize)
	}
	return nil
}

// Begin opens the flow for an order. Only one flow can be pending at a time.
func (f *FinalizeFlow) Begin(orderID int64) error {
	f.mu.Lock()
	if f.rec != nil && f.rec.OrderID != orderID {
		pending := f.rec.OrderID
		f.mu.Unlock()
		return fmt.Errorf("finalize flow already pending for order %d", pending)
	}
	if f.rec == nil {
		f.rec = &storage.FinalizeRecord{
			OrderID:   orderID,
			State:     storage.FinalizeNotStarted,
			Ratings:   make(map[int64]int),
			Expanded:  make(map[int64]bool),
			StartedAt: time.Now(),
		}
	}
	rec := *f.rec
	f.mu.Unlock()

	if err := f.store.SaveFinalize(&rec); err != nil {
		return fmt.Errorf("persist finalize record: %w", err)
	}
	if f.modals != nil {
		return f.modals.Open(ModalFinalize)
	}
	return nil
}

// SetRating records one performer's stars and persists immediately, so a
// reload restores the exact rating state instead of an empty form.
func (f *FinalizeFlow) SetRating(userID int64, stars int) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	f.mu.Lock()
	if f.rec == nil {
		f.mu.Unlock()
		return fmt.Errorf("no finalize flow pending")
	}
	f.rec.Ratings[userID] = stars
	rec := *f.rec
	f.mu.Unlock()
	return f.store.SaveFinalize(&rec)
}

// SetExpanded persists the per-participant expansion state of the form.
func (f *FinalizeFlow) SetExpanded(userID int64, expanded bool) error {
	f.mu.Lock()
	if f.rec == nil {
		f.mu.Unlock()
		return fmt.Errorf("no finalize flow pending")
	}
	if f.rec.Expanded == nil {
		f.rec.Expanded = make(map[int64]bool)
	}
	f.rec.Expanded[userID] = expanded
	rec := *f.rec
	f.mu.Unlock()
	return f.store.SaveFinalize(&rec)
}

// Pending returns a copy of the current record.
func (f *FinalizeFlow) Pending() (*storage.FinalizeRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rec == nil {
		return nil, false
	}
	rec := *f.rec
	return &rec, true
}

// Complete runs the two-step chain: save ratings, then finalize the order.
// The durable record is advanced before each step and only removed after
// both succeed, so a failure between the steps surfaces an error without
// partially completing the logical transaction, and a restart resumes at the
// finalizing step rather than re-saving ratings.
func (f *FinalizeFlow) Complete(ctx context.Context) error {
	f.mu.Lock()
	if f.rec == nil {
		f.mu.Unlock()
		return fmt.Errorf("no finalize flow pending")
	}
	rec := *f.rec
	f.mu.Unlock()

	if rec.State == storage.FinalizeNotStarted || rec.State == storage.FinalizeSavingRatings {
		if err := f.setState(storage.FinalizeSavingRatings); err != nil {
			return err
		}
		if err := f.da.SavePerformerRatings(ctx, rec.OrderID, rec.Ratings); err != nil {
			return fmt.Errorf("save ratings for order %d: %w", rec.OrderID, err)
		}
		if err := f.setState(storage.FinalizeCompleting); err != nil {
			return err
		}
	}

	if err := f.da.CompleteOrderAfterRating(ctx, rec.OrderID); err != nil {
		return fmt.Errorf("complete order %d: %w", rec.OrderID, err)
	}

	if err := f.setState(storage.FinalizeDone); err != nil {
		return err
	}
	return f.finish(rec.OrderID)
}

// HandleOrderCancelled dismisses the flow when its order was cancelled
// externally. This is the only path besides completion that unlocks the
// modal.
func (f *FinalizeFlow) HandleOrderCancelled(orderID int64) {
	f.mu.Lock()
	pending := f.rec != nil && f.rec.OrderID == orderID
	f.mu.Unlock()
	if !pending {
		return
	}
	f.logger.Info("finalize flow dismissed, order cancelled externally", "order_id", orderID)
	if err := f.finish(orderID); err != nil {
		f.logger.Error("cannot clear finalize record", "order_id", orderID, "error", err)
	}
}

func (f *FinalizeFlow) setState(state storage.FinalizeState) error {
	f.mu.Lock()
	if f.rec == nil {
		f.mu.Unlock()
		return fmt.Errorf("no finalize flow pending")
	}
	f.rec.State = state
	rec := *f.rec
	f.mu.Unlock()
	if err := f.store.SaveFinalize(&rec); err != nil {
		return fmt.Errorf("persist finalize state %s: %w", string(state), err)
	}
	return nil
}

func (f *FinalizeFlow) finish(orderID int64) error {
	f.mu.Lock()
	f.rec = nil
	f.mu.Unlock()
	if err := f.store.ClearFinalize(); err != nil {
		return err
	}
	if f.modals != nil {
		f.modals.forceCloseFinalize()
	}
	f.logger.Info("finalize flow closed", "order_id", orderID)
	return nil
}
