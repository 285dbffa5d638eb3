package logist

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"

	"github.com/8gahwyud/test-logggists-sub000/internal/backend"
)

const MaxBodyBytes = 1 << 20

// Handler exposes the engine to the webview. The presentational layer owns
// rendering; this surface only moves state and actions across the wire.
type Handler struct {
	logger apt.Logger
	config *apt.Config
	tlm    *telemetry.HTTP
	engine *Engine
	sse    *SSEHandler
}

func NewHandler(engine *Engine, sse *SSEHandler, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		logger: logger,
		config: config,
		tlm:    telemetry.NewHTTP(),
		engine: engine,
		sse:    sse,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Put("/{id}/wage", h.UpdateOrderWage)
		r.Post("/{id}/cancel", h.CancelOrder)
		r.Post("/{id}/finalize", h.BeginFinalize)

		r.Post("/{id}/chat/open", h.OpenChat)
		r.Post("/{id}/chat/close", h.CloseChat)
		r.Get("/{id}/messages", h.ListMessages)
		r.Post("/{id}/messages", h.SendMessage)

		r.Post("/{id}/manage/open", h.OpenOrderModal)
		r.Post("/{id}/manage/close", h.CloseOrderModal)
		r.Get("/{id}/responses", h.ListResponses)
	})

	r.Route("/responses/{id}", func(r chi.Router) {
		r.Post("/accept", h.AcceptResponse)
		r.Post("/reject", h.RejectResponse)
		r.Post("/confirm", h.ConfirmResponse)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.ListNotifications)
		r.Post("/{id}/read", h.MarkNotificationRead)
		r.Delete("/{id}", h.DeleteNotification)
	})

	r.Route("/finalize", func(r chi.Router) {
		r.Get("/", h.PendingFinalize)
		r.Put("/ratings", h.SetFinalizeRating)
		r.Put("/expanded", h.SetFinalizeExpanded)
		r.Post("/complete", h.CompleteFinalize)
	})

	r.Route("/modals", func(r chi.Router) {
		r.Get("/", h.OpenModals)
		r.Post("/{name}/open", h.OpenModal)
		r.Post("/{name}/close", h.CloseModal)
	})

	r.Route("/dialogs", func(r chi.Router) {
		r.Get("/current", h.CurrentDialog)
		r.Post("/{id}/resolve", h.ResolveDialog)
	})

	r.Route("/toasts", func(r chi.Router) {
		r.Get("/", h.ListToasts)
		r.Post("/{id}/dismiss", h.DismissToast)
	})

	r.Post("/startup", h.RetryStartup)
	r.Get("/balance", h.GetBalance)
	r.Get("/subscriptions", h.ListSubscriptions)
	r.Get("/profile", h.GetProfile)
	r.Post("/register", h.Register)
	r.Post("/visibility", h.SetVisibility)
	r.Get("/settings/toasts", h.GetToastSetting)
	r.Put("/settings/toasts", h.SetToastSetting)

	if h.sse != nil {
		r.Get("/events", h.sse.ServeHTTP)
	}
}

// Order handlers

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	var orders []Order
	if r.URL.Query().Get("all") == "true" {
		orders = h.engine.Orders.All()
	} else {
		orders = h.engine.Orders.Active()
	}
	apt.RespondCollection(w, orders, "order")
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()

	log := h.log(r)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		log.Debug("cannot parse createOrder form", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid form payload")
		return
	}

	fields := make(map[string]string)
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 && key != "duration_hours" {
			fields[key] = values[0]
		}
	}
	duration, _ := strconv.ParseFloat(r.FormValue("duration_hours"), 64)

	var photos []backend.File
	for _, header := range r.MultipartForm.File["photos"] {
		file, err := header.Open()
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Cannot read photo")
			return
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Cannot read photo")
			return
		}
		photos = append(photos, backend.File{Field: "photos", Name: header.Filename, Content: content})
	}

	order, err := h.engine.CreateOrder(r.Context(), fields, duration, photos)
	if err != nil {
		h.respondActionError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, order)
}

func (h *Handler) UpdateOrderWage(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateOrderWage")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req struct {
		WagePerHour float64 `json:"wage_per_hour"`
	}
	if !h.decodeBody(w, r, log, &req) {
		return
	}

	if err := h.engine.UpdateOrderWage(r.Context(), id, req.WagePerHour); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CancelOrder")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	if err := h.engine.CancelOrder(r.Context(), id); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

// Chat handlers

func (h *Handler) OpenChat(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.OpenChat")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	store, err := h.engine.OpenChat(r.Context(), id)
	if err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondCollection(w, store.All(), "message")
}

func (h *Handler) CloseChat(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CloseChat")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	h.engine.CloseChat(id)
	apt.RespondSuccess(w, nil)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListMessages")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	chat := h.engine.Chat()
	if chat == nil || chat.OrderID() != id {
		apt.RespondError(w, http.StatusNotFound, "Chat is not open")
		return
	}
	apt.RespondCollection(w, chat.All(), "message")
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SendMessage")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if !h.decodeBody(w, r, log, &req) {
		return
	}
	if err := h.engine.SendMessage(r.Context(), id, req.Message); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

// Order-management modal handlers

func (h *Handler) OpenOrderModal(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.OpenOrderModal")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	store, err := h.engine.OpenOrderModal(r.Context(), id)
	if err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondCollection(w, store.All(), "response")
}

func (h *Handler) CloseOrderModal(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CloseOrderModal")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	h.engine.CloseOrderModal(id)
	apt.RespondSuccess(w, nil)
}

func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListResponses")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	store := h.engine.ModalResponses()
	if store == nil || store.OrderID() != id {
		apt.RespondError(w, http.StatusNotFound, "Order modal is not open")
		return
	}
	apt.RespondCollection(w, store.All(), "response")
}

// Response action handlers

func (h *Handler) AcceptResponse(w http.ResponseWriter, r *http.Request) {
	h.responseAction(w, r, "Handler.AcceptResponse", h.engine.AcceptResponse)
}

func (h *Handler) RejectResponse(w http.ResponseWriter, r *http.Request) {
	h.responseAction(w, r, "Handler.RejectResponse", h.engine.RejectResponse)
}

func (h *Handler) ConfirmResponse(w http.ResponseWriter, r *http.Request) {
	h.responseAction(w, r, "Handler.ConfirmResponse", h.engine.ConfirmResponse)
}

func (h *Handler) responseAction(w http.ResponseWriter, r *http.Request, span string, action func(ctx context.Context, id int64) error) {
	w, r, finish := h.tlm.Start(w, r, span)
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	if err := action(r.Context(), id); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

// Notification handlers

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListNotifications")
	defer finish()

	apt.RespondCollection(w, h.engine.Notifications.All(), "notification")
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MarkNotificationRead")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	if err := h.engine.MarkNotificationRead(r.Context(), id); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteNotification")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	if err := h.engine.DeleteNotification(r.Context(), id); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

// Finalize handlers

func (h *Handler) BeginFinalize(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.BeginFinalize")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	if err := h.engine.Finalize.Begin(id); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

func (h *Handler) PendingFinalize(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PendingFinalize")
	defer finish()

	rec, ok := h.engine.Finalize.Pending()
	if !ok {
		apt.RespondError(w, http.StatusNotFound, "No finalize flow pending")
		return
	}
	apt.RespondSuccess(w, rec)
}

func (h *Handler) SetFinalizeRating(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetFinalizeRating")
	defer finish()

	log := h.log(r)
	var req struct {
		UserID int64 `json:"user_id"`
		Stars  int   `json:"stars"`
	}
	if !h.decodeBody(w, r, log, &req) {
		return
	}
	if err := h.engine.Finalize.SetRating(req.UserID, req.Stars); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

func (h *Handler) SetFinalizeExpanded(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetFinalizeExpanded")
	defer finish()

	log := h.log(r)
	var req struct {
		UserID   int64 `json:"user_id"`
		Expanded bool  `json:"expanded"`
	}
	if !h.decodeBody(w, r, log, &req) {
		return
	}
	if err := h.engine.Finalize.SetExpanded(req.UserID, req.Expanded); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

func (h *Handler) CompleteFinalize(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CompleteFinalize")
	defer finish()

	log := h.log(r)
	if err := h.engine.CompleteFinalize(r.Context()); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

// Modal handlers

func (h *Handler) OpenModals(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.OpenModals")
	defer finish()

	apt.RespondSuccess(w, h.engine.Modals.OpenModals())
}

func (h *Handler) OpenModal(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.OpenModal")
	defer finish()

	log := h.log(r)
	if err := h.engine.Modals.Open(chi.URLParam(r, "name")); err != nil {
		log.Debug("modal open rejected", "error", err)
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	apt.RespondSuccess(w, nil)
}

func (h *Handler) CloseModal(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CloseModal")
	defer finish()

	log := h.log(r)
	if err := h.engine.Modals.Close(chi.URLParam(r, "name")); err != nil {
		log.Debug("modal close rejected", "error", err)
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	apt.RespondSuccess(w, nil)
}

// Dialog handlers

func (h *Handler) CurrentDialog(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CurrentDialog")
	defer finish()

	d, ok := h.engine.Dialogs.Current()
	if !ok {
		apt.RespondError(w, http.StatusNotFound, "No dialog displayed")
		return
	}
	apt.RespondSuccess(w, d)
}

func (h *Handler) ResolveDialog(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ResolveDialog")
	defer finish()

	log := h.log(r)
	var req struct {
		OK bool `json:"ok"`
	}
	if !h.decodeBody(w, r, log, &req) {
		return
	}
	if err := h.engine.Dialogs.Resolve(chi.URLParam(r, "id"), req.OK); err != nil {
		apt.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	apt.RespondSuccess(w, nil)
}

// Toast handlers

func (h *Handler) ListToasts(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListToasts")
	defer finish()

	apt.RespondCollection(w, h.engine.Toasts.Visible(), "toast")
}

func (h *Handler) DismissToast(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DismissToast")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}
	h.engine.Toasts.Dismiss(id)
	apt.RespondSuccess(w, nil)
}

// Profile, registration, settings

// RetryStartup re-runs the startup sequence. A network failure at startup
// blocks the whole app behind a retry screen; this is its retry button.
func (h *Handler) RetryStartup(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RetryStartup")
	defer finish()

	log := h.log(r)
	if err := h.engine.Startup(r.Context(), h.engine.UserID()); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBalance")
	defer finish()

	profile, ok := h.engine.Balance.Profile()
	if !ok {
		apt.RespondError(w, http.StatusNotFound, "Balance not loaded yet")
		return
	}
	apt.RespondSuccess(w, profile)
}

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListSubscriptions")
	defer finish()

	log := h.log(r)
	subs, err := h.engine.Subscriptions(r.Context())
	if err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondCollection(w, subs, "subscription")
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetProfile")
	defer finish()

	user, ok := h.engine.User()
	if !ok {
		// Startup resolved an unregistered platform user; the UI shows the
		// registration flow, not an error screen.
		apt.RespondSuccess(w, map[string]interface{}{"user_not_found": true})
		return
	}
	apt.RespondSuccess(w, user)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Register")
	defer finish()

	log := h.log(r)
	var req struct {
		UserID      int64  `json:"user_id"`
		DisplayName string `json:"display_name"`
		Phone       string `json:"phone"`
	}
	if !h.decodeBody(w, r, log, &req) {
		return
	}
	if req.UserID == 0 {
		req.UserID = h.engine.UserID()
	}
	if err := h.engine.Register(r.Context(), req.UserID, req.DisplayName, req.Phone); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetVisibility")
	defer finish()

	log := h.log(r)
	var req struct {
		Visible bool `json:"visible"`
	}
	if !h.decodeBody(w, r, log, &req) {
		return
	}
	h.engine.SetOrdersVisible(req.Visible)
	if req.Visible {
		// Regaining visibility refreshes immediately rather than waiting a
		// full poll interval.
		if err := h.engine.RefreshOrders(r.Context(), true); err != nil {
			log.Debug("visibility refresh failed", "error", err)
		}
	}
	apt.RespondSuccess(w, nil)
}

func (h *Handler) GetToastSetting(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetToastSetting")
	defer finish()

	apt.RespondSuccess(w, map[string]bool{"enabled": h.engine.prefs != nil && h.engine.prefs.ToastsEnabled()})
}

func (h *Handler) SetToastSetting(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetToastSetting")
	defer finish()

	log := h.log(r)
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !h.decodeBody(w, r, log, &req) {
		return
	}
	if err := h.engine.SetToastsEnabled(req.Enabled); err != nil {
		h.respondActionError(w, log, err)
		return
	}
	apt.RespondSuccess(w, nil)
}

// Helpers

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("component", "Handler", "path", r.URL.Path)
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log apt.Logger) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		log.Debug("invalid id parameter", "id", raw)
		apt.RespondError(w, http.StatusBadRequest, "Invalid id parameter")
		return 0, false
	}
	return id, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, log apt.Logger, dest interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		log.Debug("cannot decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondActionError maps the error taxonomy onto the wire: transport
// failures are retriable (503 + isNetworkError), everything else passes the
// server message through verbatim.
func (h *Handler) respondActionError(w http.ResponseWriter, log apt.Logger, err error) {
	if IsNetworkError(err) {
		log.Info("backend unreachable", "error", err)
		w.Header().Set("X-Network-Error", "true")
		apt.RespondError(w, http.StatusServiceUnavailable, ErrorMessage(err))
		return
	}
	if err == ErrUserNotFound {
		apt.RespondError(w, http.StatusConflict, "user_not_found")
		return
	}
	log.Debug("action rejected", "error", err)
	apt.RespondError(w, http.StatusBadRequest, ErrorMessage(err))
}
