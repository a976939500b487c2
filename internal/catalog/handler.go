package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/distro/internal/platform/httpx"
	"github.com/odyssey-erp/distro/internal/rbac"
)

// Handler exposes catalog lookups as JSON endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler creates a catalog handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers the catalog endpoints on the root router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth)
		r.Get("/products", h.listProducts)
		r.Get("/clients/search", h.searchClients)
		r.Get("/logistics/municipalities", h.listMunicipalities)
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Products(r.Context())
	if err != nil {
		h.logger.Error("list products failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) searchClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.SearchClients(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("search clients failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, clients)
}

func (h *Handler) listMunicipalities(w http.ResponseWriter, r *http.Request) {
	munis, err := h.service.Municipalities(r.Context())
	if err != nil {
		h.logger.Error("list municipalities failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, munis)
}
