package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/zapflow/zapflow/internal/audit"
	"github.com/zapflow/zapflow/internal/platform/httpx"
	"github.com/zapflow/zapflow/internal/rbac"
	"github.com/zapflow/zapflow/internal/shared"
)

// Rejection codes specific to user management.
const (
	CodeRoleNotManageable = "ROLE_NOT_MANAGEABLE"
	CodeSelfAction        = "SELF_ACTION"
)

// Handler manages user management endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	rbac         rbac.Middleware
	authenticate func(http.Handler) http.Handler
	validator    *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, authenticate func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, authenticate: authenticate, validator: validator.New()}
}

// MountRoutes registers user routes. Paths are absolute under the API root
// because tenant listing shares the /tenants prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Route(h.authenticate, rbac.RequirePermission(rbac.PermUsersView), rbac.RequireTenantMembership())).
		Get("/tenants/{tenantID}/users", h.listUsers)
	r.With(h.rbac.Route(h.authenticate, rbac.RequirePermission(rbac.PermUsersManage), rbac.RequireTenantAccess())).
		Post("/users", h.createUser)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Route(h.authenticate, rbac.RequirePermission(rbac.PermUsersManage)))
		r.Patch("/users/{userID}/role", h.changeRole)
		r.Post("/users/{userID}/deactivate", h.deactivate)
	})
}

type listResponse struct {
	Users      []User            `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "invalid tenant id")
		return
	}
	page, perPage := shared.PageFromRequest(r)
	users, pagination, err := h.service.ListByTenant(r.Context(), tenantID, page, perPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, listResponse{Users: users, Pagination: pagination})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}
	user, err := h.service.Create(r.Context(), rbac.UserFromContext(r.Context()), in, audit.FromRequest(r, audit.KindUserCreated, ""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, user)
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	targetID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}
	user, err := h.service.ChangeRole(r.Context(), rbac.UserFromContext(r.Context()), targetID, req.Role, audit.FromRequest(r, audit.KindUserRoleChanged, ""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	targetID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	user, err := h.service.Deactivate(r.Context(), rbac.UserFromContext(r.Context()), targetID, audit.FromRequest(r, audit.KindUserDeactivated, ""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "invalid user id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "user not found")
	case errors.Is(err, ErrEmailTaken):
		httpx.Fail(w, http.StatusConflict, httpx.CodeConflict, err.Error())
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrTenantRequired):
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, err.Error())
	case errors.Is(err, ErrRoleNotManageable):
		httpx.Fail(w, http.StatusForbidden, CodeRoleNotManageable, err.Error())
	case errors.Is(err, ErrTenantMismatch):
		httpx.Fail(w, http.StatusForbidden, rbac.CodeTenantMismatch, err.Error())
	case errors.Is(err, ErrSelfAction):
		httpx.Fail(w, http.StatusForbidden, CodeSelfAction, err.Error())
	default:
		h.logger.Error("user management failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fieldErrs[0].Field() + " is invalid (" + fieldErrs[0].Tag() + ")"
	}
	return "invalid request"
}
