// Package audit records security events: rejected requests and changes to
// user accounts. Events travel through the job queue and land in the
// security_events table.
package audit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Kind classifies a security event.
type Kind string

const (
	KindAuthRejected    Kind = "auth.rejected"
	KindAccessDenied    Kind = "access.denied"
	KindLoginSucceeded  Kind = "auth.login"
	KindLoginFailed     Kind = "auth.login_failed"
	KindUserCreated     Kind = "user.created"
	KindUserRoleChanged Kind = "user.role_changed"
	KindUserDeactivated Kind = "user.deactivated"
)

// Event is one security-relevant occurrence.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Kind       Kind           `json:"kind"`
	Code       string         `json:"code,omitempty"`
	ActorID    *int64         `json:"actor_id,omitempty"`
	TenantID   *int64         `json:"tenant_id,omitempty"`
	TargetID   *int64         `json:"target_id,omitempty"`
	Method     string         `json:"method,omitempty"`
	Path       string         `json:"path,omitempty"`
	RemoteIP   string         `json:"remote_ip,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// FromRequest starts an event carrying the request coordinates.
func FromRequest(r *http.Request, kind Kind, code string) Event {
	return Event{
		Kind:      kind,
		Code:      code,
		Method:    r.Method,
		Path:      r.URL.Path,
		RemoteIP:  remoteIP(r.RemoteAddr),
		RequestID: requestID(r),
	}
}

func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(middleware.RequestIDHeader)
}

func (e *Event) stamp(now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now.UTC()
	}
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}
