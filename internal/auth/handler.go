package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/zapflow/zapflow/internal/audit"
	"github.com/zapflow/zapflow/internal/platform/httpx"
	"github.com/zapflow/zapflow/internal/rbac"
	"github.com/zapflow/zapflow/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	matrix       *rbac.Matrix
	authenticate func(http.Handler) http.Handler
	loginLimit   func(http.Handler) http.Handler
	audit        rbac.Auditor
	validator    *validator.Validate
}

// HandlerConfig collects Handler dependencies. LoginLimit is optional.
type HandlerConfig struct {
	Logger       *slog.Logger
	Service      *Service
	Matrix       *rbac.Matrix
	Authenticate func(http.Handler) http.Handler
	LoginLimit   func(http.Handler) http.Handler
	Audit        rbac.Auditor
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:       logger,
		service:      cfg.Service,
		matrix:       cfg.Matrix,
		authenticate: cfg.Authenticate,
		loginLimit:   cfg.LoginLimit,
		audit:        cfg.Audit,
		validator:    validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	login := r
	if h.loginLimit != nil {
		login = r.With(h.loginLimit)
	}
	login.Post("/login", h.handleLogin)
	r.With(h.authenticate).Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string                  `json:"token"`
	ExpiresAt time.Time               `json:"expires_at"`
	User      *rbac.AuthenticatedUser `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			event := audit.FromRequest(r, audit.KindLoginFailed, CodeInvalidCredentials)
			event.Meta = map[string]any{"email": req.Email}
			h.record(r, event)
			httpx.Fail(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
			return
		}
		h.logger.Error("login", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	event := audit.FromRequest(r, audit.KindLoginSucceeded, "")
	event.ActorID = &result.User.ID
	event.TenantID = result.User.TenantID
	h.record(r, event)

	httpx.OK(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.User.Identity(h.matrix),
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		httpx.RespondError(w, httpx.Unauthenticated(httpx.CodeUnauthenticated, "authentication required"))
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) record(r *http.Request, event audit.Event) {
	if h.audit != nil {
		h.audit.Record(r.Context(), event)
	}
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fieldErrs[0].Field() + " is invalid (" + fieldErrs[0].Tag() + ")"
	}
	return "invalid request"
}
