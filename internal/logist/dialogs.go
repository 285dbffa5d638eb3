package logist

import (
	"context"
	"fmt"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

const (
	DialogAlert   = "alert"
	DialogConfirm = "confirm"
)

// DialogView is what the presenter shows: one dialog at a time.
type DialogView struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// DialogPresenter surfaces a dialog to the user. The SSE handler implements
// it for the webview; the platform bridge implements a degraded fallback.
type DialogPresenter interface {
	Present(d DialogView)
}

type pendingDialog struct {
	view   DialogView
	result chan bool
}

// DialogQueue serializes alert/confirm dialogs through a single display
// slot. Calls queue in FIFO order: a dialog is only presented once the
// previous one has been resolved, so concurrent callers never overwrite each
// other's dialog.
type DialogQueue struct {
	mu        sync.Mutex
	queue     []*pendingDialog
	current   *pendingDialog
	presenter DialogPresenter
	logger    apt.Logger
}

func NewDialogQueue(presenter DialogPresenter, logger apt.Logger) *DialogQueue {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &DialogQueue{presenter: presenter, logger: logger}
}

// SetPresenter swaps the display seam. Last registration wins.
func (q *DialogQueue) SetPresenter(p DialogPresenter) {
	q.mu.Lock()
	q.presenter = p
	q.mu.Unlock()
}

// Alert shows a message and blocks until the user acknowledges it or ctx is
// cancelled.
func (q *DialogQueue) Alert(ctx context.Context, message string) error {
	_, err := q.enqueue(ctx, DialogAlert, message)
	return err
}

// Confirm shows a yes/no question and blocks until answered.
func (q *DialogQueue) Confirm(ctx context.Context, message string) (bool, error) {
	return q.enqueue(ctx, DialogConfirm, message)
}

func (q *DialogQueue) enqueue(ctx context.Context, kind, message string) (bool, error) {
	d := &pendingDialog{
		view: DialogView{
			ID:      uuid.NewString(),
			Kind:    kind,
			Message: message,
		},
		result: make(chan bool, 1),
	}

	q.mu.Lock()
	q.queue = append(q.queue, d)
	q.advanceLocked()
	q.mu.Unlock()

	select {
	case ok := <-d.result:
		return ok, nil
	case <-ctx.Done():
		q.abandon(d)
		return false, ctx.Err()
	}
}

// Resolve answers the currently displayed dialog. Answers for anything but
// the current dialog are rejected: the queue owns the display slot.
func (q *DialogQueue) Resolve(id string, ok bool) error {
	q.mu.Lock()
	if q.current == nil || q.current.view.ID != id {
		q.mu.Unlock()
		return fmt.Errorf("dialog %s is not displayed", id)
	}
	d := q.current
	q.current = nil
	q.advanceLocked()
	q.mu.Unlock()

	d.result <- ok
	return nil
}

// Current returns the dialog occupying the display slot, if any. The UI
// fetches it on reconnect so a missed SSE event does not strand the queue.
func (q *DialogQueue) Current() (DialogView, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return DialogView{}, false
	}
	return q.current.view, true
}

func (q *DialogQueue) abandon(d *pendingDialog) {
	q.mu.Lock()
	if q.current == d {
		q.current = nil
		q.advanceLocked()
	} else {
		for i := range q.queue {
			if q.queue[i] == d {
				q.queue = append(q.queue[:i], q.queue[i+1:]...)
				break
			}
		}
	}
	q.mu.Unlock()
}

// advanceLocked presents the next queued dialog when the slot is free.
func (q *DialogQueue) advanceLocked() {
	if q.current != nil || len(q.queue) == 0 {
		return
	}
	q.current = q.queue[0]
	q.queue = q.queue[1:]
	if q.presenter != nil {
		go q.presenter.Present(q.current.view)
	} else {
		q.logger.Debug("no dialog presenter configured", "dialog_id", q.current.view.ID)
	}
}
