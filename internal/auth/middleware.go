package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zapflow/zapflow/internal/audit"
	"github.com/zapflow/zapflow/internal/observability"
	"github.com/zapflow/zapflow/internal/platform/httpx"
	"github.com/zapflow/zapflow/internal/rbac"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*Claims, error)
}

// IdentityResolver maps a token subject to the current active user.
type IdentityResolver interface {
	ActiveUser(ctx context.Context, id int64) (*User, error)
}

// AuthenticatorConfig collects the Authenticator collaborators.
type AuthenticatorConfig struct {
	Tokens  TokenVerifier
	Users   IdentityResolver
	Matrix  *rbac.Matrix
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Audit   rbac.Auditor
}

// Authenticator turns a bearer token into a request identity.
type Authenticator struct {
	tokens  TokenVerifier
	users   IdentityResolver
	matrix  *rbac.Matrix
	logger  *slog.Logger
	metrics *observability.Metrics
	audit   rbac.Auditor
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(cfg AuthenticatorConfig) *Authenticator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		tokens:  cfg.Tokens,
		users:   cfg.Users,
		matrix:  cfg.Matrix,
		logger:  logger,
		metrics: cfg.Metrics,
		audit:   cfg.Audit,
	}
}

// Middleware attaches the identity or rejects the request.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Authenticate(r)
		if err != nil {
			a.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(rbac.ContextWithUser(r.Context(), user)))
	})
}

// Authenticate runs the verification pipeline. Rejections are *httpx.Error
// values with status 401; anything else is an infrastructure failure.
func (a *Authenticator) Authenticate(r *http.Request) (*rbac.AuthenticatedUser, error) {
	raw, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, httpx.Unauthenticated(httpx.CodeUnauthenticated, "missing bearer credential")
	}

	claims, err := a.tokens.Verify(raw)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return nil, httpx.Unauthenticated(CodeTokenExpired, "token expired")
	case err != nil:
		return nil, httpx.Unauthenticated(CodeTokenInvalid, "token invalid")
	}

	user, err := a.users.ActiveUser(r.Context(), claims.UserID)
	if errors.Is(err, ErrUserUnavailable) {
		return nil, httpx.Unauthenticated(CodeUserInactive, "user not found or inactive")
	}
	if err != nil {
		return nil, err
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, httpx.Unauthenticated(CodeTokenRevoked, "token revoked")
	}
	if user.Role != claims.Role || !sameTenant(user.TenantID, claims.TenantID) {
		a.logger.Debug("token claims differ from stored user",
			slog.Int64("user_id", user.ID),
			slog.String("claim_role", string(claims.Role)),
			slog.String("role", string(user.Role)))
	}
	return user.Identity(a.matrix), nil
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *httpx.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) {
			a.logger.Debug("identity lookup cancelled", slog.String("path", r.URL.Path))
		} else {
			a.logger.Error("identity lookup failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		a.metrics.RecordAuthDecision("error", httpx.CodeInternal)
		httpx.RespondError(w, err)
		return
	}
	a.metrics.RecordAuthDecision("unauthenticated", apiErr.Code)
	a.logger.Info("authentication rejected", slog.String("code", apiErr.Code), slog.String("path", r.URL.Path))
	if a.audit != nil {
		a.audit.Record(r.Context(), audit.FromRequest(r, audit.KindAuthRejected, apiErr.Code))
	}
	httpx.RespondError(w, apiErr)
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func sameTenant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
