package logist

import (
	"context"
	"time"

	"github.com/appetiteclub/apt"
)

const (
	ordersPollInterval        = 5 * time.Second
	responsesPollInterval     = 2 * time.Second
	messagesPollInterval      = 3 * time.Second
	notificationsPollInterval = 2 * time.Second
)

// Pollers re-fetch each entity on a fixed interval, independently of the
// realtime channels. They are the correctness backstop: a subscription that
// drops events only costs latency, because every tick ends in the same
// idempotent merges. Ticks that overlap an in-flight call are allowed to
// race; last write wins and the stores converge.
type Pollers struct {
	engine *Engine
	logger apt.Logger
}

func NewPollers(engine *Engine, logger apt.Logger) *Pollers {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Pollers{engine: engine, logger: logger}
}

// Start launches the four loops. Notifications poll for the whole session;
// the others gate themselves on view state each tick, which stands in for
// the mount/unmount lifetime of the corresponding view.
func (p *Pollers) Start(ctx context.Context) error {
	p.logger.Info("starting pollers")
	go p.loop(ctx, ordersPollInterval, p.tickOrders)
	go p.loop(ctx, responsesPollInterval, p.tickResponses)
	go p.loop(ctx, messagesPollInterval, p.tickMessages)
	go p.loop(ctx, notificationsPollInterval, p.tickNotifications)
	return nil
}

func (p *Pollers) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (p *Pollers) tickOrders(ctx context.Context) {
	if !p.engine.OrdersVisible() || !p.engine.Orders.Loaded() {
		return
	}
	if err := p.engine.RefreshOrders(ctx, true); err != nil {
		p.logger.Debug("orders poll failed", "error", err)
	}
}

func (p *Pollers) tickResponses(ctx context.Context) {
	store := p.engine.ModalResponses()
	if store == nil || !store.Loaded() {
		return
	}
	if err := p.engine.RefreshResponses(ctx, true); err != nil {
		p.logger.Debug("responses poll failed", "error", err)
	}
}

// tickMessages only polls while a chat is mounted and its order is actually
// in progress; a chat for a job that has not started has nothing to say.
func (p *Pollers) tickMessages(ctx context.Context) {
	chat := p.engine.Chat()
	if chat == nil || !chat.Loaded() {
		return
	}
	order, ok := p.engine.Orders.Get(chat.OrderID())
	if !ok || !order.InProgress() {
		return
	}
	if err := p.engine.RefreshMessages(ctx, true); err != nil {
		p.logger.Debug("messages poll failed", "error", err)
	}
}

// tickNotifications polls for the whole session. When the initial load at
// startup failed the store is still unloaded here, so the tick retries it
// non-silently instead of waiting for a load that nothing else will perform.
func (p *Pollers) tickNotifications(ctx context.Context) {
	silent := p.engine.Notifications.Loaded()
	if err := p.engine.RefreshNotifications(ctx, silent); err != nil {
		p.logger.Debug("notifications poll failed", "error", err)
	}
}
