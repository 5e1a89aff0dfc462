package tenants

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zapflow/zapflow/internal/platform/httpx"
	"github.com/zapflow/zapflow/internal/rbac"
	"github.com/zapflow/zapflow/internal/shared"
)

// Handler serves tenant endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	rbac         rbac.Middleware
	authenticate func(http.Handler) http.Handler
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, authenticate func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, authenticate: authenticate}
}

// MountRoutes registers tenant routes under /tenants.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Route(h.authenticate, rbac.RequireSuperAdmin())).Get("/tenants", h.List)
	r.With(h.rbac.Route(h.authenticate, rbac.RequirePermission(rbac.PermSettingsView), rbac.RequireTenantMembership())).
		Get("/tenants/{tenantID}", h.Show)
}

type listResponse struct {
	Tenants    []Tenant          `json:"tenants"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	list, pagination, err := h.service.List(r.Context(), ListFilters{
		Page:    page,
		PerPage: perPage,
		Search:  r.URL.Query().Get("search"),
	})
	if err != nil {
		h.logger.Error("list tenants failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, listResponse{Tenants: list, Pagination: pagination})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "invalid tenant id")
		return
	}
	tenant, err := h.service.Get(r.Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "tenant not found")
		return
	}
	if err != nil {
		h.logger.Error("get tenant failed", slog.Int64("tenant_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, tenant)
}
