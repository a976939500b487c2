package orders

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/platform/httpx"
	"github.com/odyssey-erp/distro/internal/rbac"
)

// IdempotencyHeader carries the client generated key of a payment request.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes orders as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		rbac:      rbac,
	}
}

// MountRoutes registers routes under /orders.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth)
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})

	// Sales
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(pipeline.RoleSales))
		r.Post("/", h.create)
		r.Get("/drafts/search", h.searchDrafts)
		r.Put("/{id}", h.update)
		r.Patch("/{id}/confirm", h.confirm)
		r.Patch("/{id}/payment", h.payment)
	})

	// Pipeline boards
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(pipeline.RoleDeposit, pipeline.RoleControl, pipeline.RoleLogistics, pipeline.RoleDriver))
		r.Patch("/{id}/status", h.setStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(pipeline.RoleDriver))
		r.Patch("/{id}/delivery", h.delivery)
	})
}

// list handles GET /orders?status=A,B&last_2_weeks=true
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListRequest{}
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := pipeline.ParseStatus(part)
			if err != nil {
				h.fail(w, "list orders", fmt.Errorf("%w: %s", ErrUnknownStatus, part))
				return
			}
			req.Statuses = append(req.Statuses, status)
		}
	}
	if raw := q.Get("last_2_weeks"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(w, "list orders", fmt.Errorf("%w: last_2_weeks must be a boolean", httpx.ErrValidation))
			return
		}
		req.Last2Weeks = v
	}
	orders, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

// show handles GET /orders/{id}
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// searchDrafts handles GET /orders/drafts/search?name=..|phone=..
func (h *Handler) searchDrafts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.service.SearchDrafts(r.Context(), DraftSearchRequest{
		Name:  q.Get("name"),
		Phone: q.Get("phone"),
	})
	if err != nil {
		h.fail(w, "search drafts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

// create handles POST /orders
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.Create(r.Context(), req, actorFrom(r))
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

// update handles PUT /orders/{id}
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req SaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.Update(r.Context(), id, req, actorFrom(r))
	if err != nil {
		h.fail(w, "update order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// confirm handles PATCH /orders/{id}/confirm
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req ConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.Confirm(r.Context(), id, req, actorFrom(r)); err != nil {
		h.fail(w, "confirm order", err)
		return
	}
	httpx.NoContent(w)
}

// payment handles PATCH /orders/{id}/payment
func (h *Handler) payment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), id, req, r.Header.Get(IdempotencyHeader), actorFrom(r))
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

// setStatus handles PATCH /orders/{id}/status
func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req SetStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.SetStatus(r.Context(), id, req, actorFrom(r)); err != nil {
		h.fail(w, "set order status", err)
		return
	}
	httpx.NoContent(w)
}

// delivery handles PATCH /orders/{id}/delivery
func (h *Handler) delivery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req DeliveryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ConfirmDelivery(r.Context(), id, req, actorFrom(r)); err != nil {
		h.fail(w, "confirm delivery", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		h.fail(w, "decode request", err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			err = fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(msgs, "; "))
		}
		h.fail(w, "validate request", err)
		return false
	}
	return true
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var coded httpx.CodedError
	switch {
	case errors.As(err, &coded), errors.Is(err, httpx.ErrValidation):
		h.logger.Info(op+" rejected", slog.Any("error", err))
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actorFrom(r *http.Request) Actor {
	p, _ := rbac.PrincipalFromContext(r.Context())
	return Actor{ID: p.UserID, Role: p.Role}
}
