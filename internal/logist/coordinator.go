package logist

import (
	"fmt"
	"sync"

	"github.com/appetiteclub/apt"
)

// Modal names tracked system-wide.
const (
	ModalFinance       = "finance"
	ModalSupport       = "support"
	ModalSubscription  = "subscription"
	ModalDocuments     = "documents"
	ModalSettings      = "settings"
	ModalOrderManage   = "order_manage"
	ModalChat          = "chat"
	ModalFilters       = "filters"
	ModalFinalize      = "finalize"
	ModalRegistration  = "registration"
	ModalNotifications = "notifications"
)

var trackedModals = map[string]bool{
	ModalFinance:       true,
	ModalSupport:       true,
	ModalSubscription:  true,
	ModalDocuments:     true,
	ModalSettings:      true,
	ModalOrderManage:   true,
	ModalChat:          true,
	ModalFilters:       true,
	ModalFinalize:      true,
	ModalRegistration:  true,
	ModalNotifications: true,
}

// ModalCoordinator tracks which modals are open system-wide. "Any modal
// open" is the OR of every tracked modal; the false-to-true transition
// suppresses toasts and the true-to-false transition restores them.
//
// The finalize modal is deliberately unclosable through Close: once a
// payment+rating flow is pending it only goes away when the flow completes
// or its order is cancelled externally.
type ModalCoordinator struct {
	mu     sync.Mutex
	open   map[string]bool
	toasts *ToastQueue
	logger apt.Logger
	notify func()
}

func NewModalCoordinator(toasts *ToastQueue, logger apt.Logger) *ModalCoordinator {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &ModalCoordinator{
		open:   make(map[string]bool),
		toasts: toasts,
		logger: logger,
	}
}

func (c *ModalCoordinator) OnChange(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

func (c *ModalCoordinator) Open(name string) error {
	if !trackedModals[name] {
		return fmt.Errorf("unknown modal %q", name)
	}
	c.mu.Lock()
	wasOpen := c.anyOpenLocked()
	c.open[name] = true
	fn := c.notify
	c.mu.Unlock()

	if !wasOpen && c.toasts != nil {
		c.toasts.Suppress()
	}
	if fn != nil {
		fn()
	}
	return nil
}

func (c *ModalCoordinator) Close(name string) error {
	if !trackedModals[name] {
		return fmt.Errorf("unknown modal %q", name)
	}
	c.mu.Lock()
	if name == ModalFinalize && c.open[name] {
		c.mu.Unlock()
		return fmt.Errorf("finalize modal cannot be dismissed while pending")
	}
	delete(c.open, name)
	nowOpen := c.anyOpenLocked()
	fn := c.notify
	c.mu.Unlock()

	if !nowOpen && c.toasts != nil {
		c.toasts.Restore()
	}
	if fn != nil {
		fn()
	}
	return nil
}

// forceCloseFinalize is the coordinator-internal path the finalize flow uses
// once the completion chain succeeded or the order was cancelled externally.
func (c *ModalCoordinator) forceCloseFinalize() {
	c.mu.Lock()
	delete(c.open, ModalFinalize)
	nowOpen := c.anyOpenLocked()
	fn := c.notify
	c.mu.Unlock()

	if !nowOpen && c.toasts != nil {
		c.toasts.Restore()
	}
	if fn != nil {
		fn()
	}
}

func (c *ModalCoordinator) AnyOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anyOpenLocked()
}

func (c *ModalCoordinator) IsOpen(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open[name]
}

// OpenModals returns the names currently open, for the UI state endpoint.
func (c *ModalCoordinator) OpenModals() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for name, open := range c.open {
		if open {
			names = append(names, name)
		}
	}
	return names
}

func (c *ModalCoordinator) anyOpenLocked() bool {
	for _, open := range c.open {
		if open {
			return true
		}
	}
	return false
}
